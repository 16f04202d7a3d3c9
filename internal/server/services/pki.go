package services

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/gophvault/internal/common"
	"github.com/dmitrijs2005/gophvault/internal/cryptox"
	"github.com/dmitrijs2005/gophvault/internal/dbx"
	"github.com/dmitrijs2005/gophvault/internal/events"
	"github.com/dmitrijs2005/gophvault/internal/logging"
	"github.com/dmitrijs2005/gophvault/internal/server/config"
	"github.com/dmitrijs2005/gophvault/internal/server/models"
	"github.com/dmitrijs2005/gophvault/internal/server/repositories/repomanager"
	"github.com/google/uuid"
)

// SubmitRequest is an enrollment attempt by a prospective device.
type SubmitRequest struct {
	EnrollmentID     uuid.UUID
	Certificate      []byte
	CertificateSHA1  []byte
	PayloadSignature []byte
	Payload          []byte
	Force            bool
}

// AcceptRequest admits a submitted enrollment as a new user and device.
type AcceptRequest struct {
	AccepterCertificate []byte
	PayloadSignature    []byte
	Payload             []byte
	User                *models.User
	Device              *models.Device
}

// PkiService drives the enrollment state machine
// SUBMITTED -> {CANCELLED, REJECTED, ACCEPTED}. Every mutating operation
// holds the organization write lock for the duration of its transaction.
type PkiService struct {
	store
	repomanager repomanager.RepositoryManager
	bus         *events.Bus
}

func NewPkiService(db *sql.DB, m repomanager.RepositoryManager, bus *events.Bus, cfg *config.Config, logger logging.Logger) *PkiService {
	return &PkiService{
		store:       store{db: db, timeout: cfg.StoreOperationTimeout, logger: logger.With("module", "pki")},
		repomanager: m,
		bus:         bus,
	}
}

func (s *PkiService) Submit(ctx context.Context, org string, req *SubmitRequest, now time.Time) error {
	if !bytes.Equal(req.CertificateSHA1, cryptox.CertificateSHA1(req.Certificate)) {
		return fmt.Errorf("%w: certificate hash mismatch", common.ErrInvalidInput)
	}

	var emitted []events.Event
	err := s.inTx(ctx, "pki_submit", func(ctx context.Context, tx dbx.DBTX) error {
		emitted = nil
		enrollments := s.repomanager.Enrollments(tx)
		users := s.repomanager.Users(tx)

		if err := users.TakeWriteLock(ctx, org); err != nil {
			return err
		}

		_, err := enrollments.GetForUpdate(ctx, org, req.EnrollmentID)
		switch {
		case err == nil:
			return common.ErrIDAlreadyUsed
		case !errors.Is(err, common.ErrorNotFound):
			return err
		}

		previous, err := enrollments.ListByCertificateHash(ctx, org, req.CertificateSHA1)
		if err != nil {
			return err
		}
		for _, p := range previous {
			switch p.State {
			case models.EnrollmentSubmitted:
				if !req.Force {
					return &common.SubmittedOnError{Err: common.ErrCertificateAlreadySubmitted, SubmittedOn: p.SubmittedOn}
				}
				if err := enrollments.Cancel(ctx, org, p.EnrollmentID, now); err != nil {
					return err
				}
				emitted = append(emitted, events.PkiEnrollmentUpdated{OrganizationID: org})

			case models.EnrollmentAccepted:
				if p.AcceptedDevice == nil {
					return fmt.Errorf("%w: accepted enrollment %s has no device", common.ErrIntegrityViolation, p.EnrollmentID)
				}
				user, err := users.GetUserByDevice(ctx, org, *p.AcceptedDevice)
				if err != nil {
					if errors.Is(err, common.ErrorNotFound) {
						return fmt.Errorf("%w: device %s of enrollment %s is missing", common.ErrIntegrityViolation, *p.AcceptedDevice, p.EnrollmentID)
					}
					return err
				}
				if !user.IsRevoked(now) {
					return &common.SubmittedOnError{Err: common.ErrAlreadyEnrolled, SubmittedOn: p.SubmittedOn}
				}

			default:
				// CANCELLED and REJECTED attempts do not block a new one.
			}
		}

		err = enrollments.Create(ctx, &models.Enrollment{
			OrganizationID:           org,
			EnrollmentID:             req.EnrollmentID,
			SubmitterCertificate:     req.Certificate,
			SubmitterCertificateSHA1: req.CertificateSHA1,
			SubmitPayloadSignature:   req.PayloadSignature,
			SubmitPayload:            req.Payload,
			SubmittedOn:              now,
		})
		if err != nil {
			return err
		}
		emitted = append(emitted, events.PkiEnrollmentUpdated{OrganizationID: org})
		return nil
	})
	if err != nil {
		return err
	}

	s.bus.Publish(ctx, emitted...)
	return nil
}

// Info returns the state projection of one enrollment or common.ErrorNotFound.
func (s *PkiService) Info(ctx context.Context, org string, id uuid.UUID) (*models.EnrollmentInfo, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	e, err := s.repomanager.Enrollments(s.db).Get(ctx, org, id)
	if err != nil {
		return nil, err
	}
	return e.Info(), nil
}

// List returns pending enrollments in submission order.
func (s *PkiService) List(ctx context.Context, org string) ([]models.SubmittedEnrollment, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	pending, err := s.repomanager.Enrollments(s.db).ListSubmitted(ctx, org)
	if err != nil {
		return nil, err
	}

	result := make([]models.SubmittedEnrollment, 0, len(pending))
	for _, e := range pending {
		result = append(result, models.SubmittedEnrollment{
			EnrollmentID:           e.EnrollmentID,
			SubmittedOn:            e.SubmittedOn,
			SubmitterCertificate:   e.SubmitterCertificate,
			SubmitPayloadSignature: e.SubmitPayloadSignature,
			SubmitPayload:          e.SubmitPayload,
		})
	}
	return result, nil
}

// loadSubmitted locks the record and checks it can still be decided.
func (s *PkiService) loadSubmitted(ctx context.Context, tx dbx.DBTX, org string, id uuid.UUID) error {
	if err := s.repomanager.Users(tx).TakeWriteLock(ctx, org); err != nil {
		return err
	}
	e, err := s.repomanager.Enrollments(tx).GetForUpdate(ctx, org, id)
	if err != nil {
		return err
	}
	if e.State != models.EnrollmentSubmitted {
		return common.ErrNoLongerAvailable
	}
	return nil
}

func (s *PkiService) Reject(ctx context.Context, org string, id uuid.UUID, now time.Time) error {
	err := s.inTx(ctx, "pki_reject", func(ctx context.Context, tx dbx.DBTX) error {
		if err := s.loadSubmitted(ctx, tx, org, id); err != nil {
			return err
		}
		return s.repomanager.Enrollments(tx).Reject(ctx, org, id, now)
	})
	if err != nil {
		return err
	}

	s.bus.Publish(ctx, events.PkiEnrollmentUpdated{OrganizationID: org})
	return nil
}

// Accept creates the new user and its first device, then marks the
// enrollment ACCEPTED. If the account cannot be created the enrollment stays
// SUBMITTED.
func (s *PkiService) Accept(ctx context.Context, org, accepterDevice string, id uuid.UUID, req *AcceptRequest, now time.Time) error {
	if req.User == nil || req.Device == nil {
		return fmt.Errorf("%w: user and device are required", common.ErrInvalidInput)
	}

	user := *req.User
	user.OrganizationID = org
	if user.CreatedOn.IsZero() {
		user.CreatedOn = now
	}
	device := *req.Device
	device.OrganizationID = org
	if device.CreatedOn.IsZero() {
		device.CreatedOn = now
	}
	if err := validateAccount(&user, &device); err != nil {
		return err
	}

	err := s.inTx(ctx, "pki_accept", func(ctx context.Context, tx dbx.DBTX) error {
		if err := s.loadSubmitted(ctx, tx, org, id); err != nil {
			return err
		}
		if err := s.repomanager.Users(tx).CreateUserWithDevice(ctx, &user, &device); err != nil {
			return err
		}
		return s.repomanager.Enrollments(tx).Accept(ctx, org, id, &models.Acceptance{
			AcceptedOn:             now,
			AccepterCertificate:    req.AccepterCertificate,
			AcceptPayloadSignature: req.PayloadSignature,
			AcceptPayload:          req.Payload,
			AccepterDevice:         accepterDevice,
			AcceptedDevice:         device.DeviceID,
		})
	})
	if err != nil {
		return err
	}

	s.bus.Publish(ctx, events.PkiEnrollmentUpdated{OrganizationID: org})
	return nil
}
