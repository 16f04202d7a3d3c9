// Package enrollments persists PKI enrollment records. Every state change
// out of SUBMITTED is guarded in SQL so a second terminal transition on the
// same record is reported instead of applied.
package enrollments

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/gophvault/internal/common"
	"github.com/dmitrijs2005/gophvault/internal/dbx"
	"github.com/dmitrijs2005/gophvault/internal/server/models"
	"github.com/google/uuid"
)

const columns = `enrollment_id, submitter_der_x509_certificate, submitter_der_x509_certificate_sha1,
		 submit_payload_signature, submit_payload, enrollment_state, submitted_on,
		 cancelled_on, rejected_on, accepted_on, accepter_der_x509_certificate,
		 accept_payload_signature, accept_payload, accepter, accepted`

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

type scanner interface {
	Scan(dest ...any) error
}

func scanEnrollment(s scanner, org string) (*models.Enrollment, error) {
	e := &models.Enrollment{OrganizationID: org}
	var (
		state                 string
		cancelled, rejected   sql.NullTime
		accepted              sql.NullTime
		accepter, acceptedDev sql.NullString
	)
	err := s.Scan(&e.EnrollmentID, &e.SubmitterCertificate, &e.SubmitterCertificateSHA1,
		&e.SubmitPayloadSignature, &e.SubmitPayload, &state, &e.SubmittedOn,
		&cancelled, &rejected, &accepted, &e.AccepterCertificate,
		&e.AcceptPayloadSignature, &e.AcceptPayload, &accepter, &acceptedDev)
	if err != nil {
		return nil, err
	}
	e.State = models.EnrollmentState(state)
	e.CancelledOn = nullTime(cancelled)
	e.RejectedOn = nullTime(rejected)
	e.AcceptedOn = nullTime(accepted)
	e.AccepterDevice = nullString(accepter)
	e.AcceptedDevice = nullString(acceptedDev)
	return e, nil
}

func nullTime(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	return &t.Time
}

func nullString(s sql.NullString) *string {
	if !s.Valid {
		return nil
	}
	return &s.String
}

func (r *PostgresRepository) get(ctx context.Context, org string, id uuid.UUID, suffix string) (*models.Enrollment, error) {
	query := `SELECT ` + columns + ` FROM pki_enrollment
		 WHERE organization_id = $1 AND enrollment_id = $2` + suffix

	e, err := scanEnrollment(r.db.QueryRowContext(ctx, query, org, id), org)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return e, nil
}

func (r *PostgresRepository) Get(ctx context.Context, org string, id uuid.UUID) (*models.Enrollment, error) {
	return r.get(ctx, org, id, "")
}

// GetForUpdate row-locks the record until the surrounding transaction ends.
func (r *PostgresRepository) GetForUpdate(ctx context.Context, org string, id uuid.UUID) (*models.Enrollment, error) {
	return r.get(ctx, org, id, " FOR UPDATE")
}

func (r *PostgresRepository) list(ctx context.Context, org string, query string, args ...any) ([]*models.Enrollment, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	var result []*models.Enrollment
	for rows.Next() {
		e, err := scanEnrollment(rows, org)
		if err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		result = append(result, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return result, nil
}

// ListByCertificateHash returns every attempt made with a certificate,
// ordered by the lexical state name (ACCEPTED, CANCELLED, REJECTED,
// SUBMITTED), then insertion order. Submit relies on this order: when an
// ACCEPTED and a SUBMITTED record coexist, the ACCEPTED one is seen first.
func (r *PostgresRepository) ListByCertificateHash(ctx context.Context, org string, sha1 []byte) ([]*models.Enrollment, error) {
	query := `SELECT ` + columns + ` FROM pki_enrollment
		 WHERE organization_id = $1 AND submitter_der_x509_certificate_sha1 = $2
		 ORDER BY enrollment_state ASC, _id ASC`
	return r.list(ctx, org, query, org, sha1)
}

// ListSubmitted returns pending enrollments in insertion order.
func (r *PostgresRepository) ListSubmitted(ctx context.Context, org string) ([]*models.Enrollment, error) {
	query := `SELECT ` + columns + ` FROM pki_enrollment
		 WHERE organization_id = $1 AND enrollment_state = 'SUBMITTED'
		 ORDER BY _id ASC`
	return r.list(ctx, org, query, org)
}

func (r *PostgresRepository) Create(ctx context.Context, e *models.Enrollment) error {
	query :=
		`INSERT INTO pki_enrollment (organization_id, enrollment_id, submitter_der_x509_certificate,
			submitter_der_x509_certificate_sha1, submit_payload_signature, submit_payload,
			enrollment_state, submitted_on)
		 VALUES ($1, $2, $3, $4, $5, $6, 'SUBMITTED', $7)
		 `

	_, err := r.db.ExecContext(ctx, query, e.OrganizationID, e.EnrollmentID, e.SubmitterCertificate,
		e.SubmitterCertificateSHA1, e.SubmitPayloadSignature, e.SubmitPayload, e.SubmittedOn)
	if err != nil {
		if dbx.IsUniqueViolation(err) {
			return common.ErrIDAlreadyUsed
		}
		return fmt.Errorf("db error: %w", err)
	}
	e.State = models.EnrollmentSubmitted
	return nil
}

func (r *PostgresRepository) transition(ctx context.Context, query string, args ...any) error {
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	if n != 1 {
		return fmt.Errorf("%w: %d enrollment rows left SUBMITTED", common.ErrIntegrityViolation, n)
	}
	return nil
}

func (r *PostgresRepository) Cancel(ctx context.Context, org string, id uuid.UUID, now time.Time) error {
	query :=
		`UPDATE pki_enrollment SET enrollment_state = 'CANCELLED', cancelled_on = $3
		 WHERE organization_id = $1 AND enrollment_id = $2 AND enrollment_state = 'SUBMITTED'
		 `
	return r.transition(ctx, query, org, id, now)
}

func (r *PostgresRepository) Reject(ctx context.Context, org string, id uuid.UUID, now time.Time) error {
	query :=
		`UPDATE pki_enrollment SET enrollment_state = 'REJECTED', rejected_on = $3
		 WHERE organization_id = $1 AND enrollment_id = $2 AND enrollment_state = 'SUBMITTED'
		 `
	return r.transition(ctx, query, org, id, now)
}

func (r *PostgresRepository) Accept(ctx context.Context, org string, id uuid.UUID, a *models.Acceptance) error {
	query :=
		`UPDATE pki_enrollment SET enrollment_state = 'ACCEPTED', accepted_on = $3,
			accepter_der_x509_certificate = $4, accept_payload_signature = $5, accept_payload = $6,
			accepter = $7, accepted = $8
		 WHERE organization_id = $1 AND enrollment_id = $2 AND enrollment_state = 'SUBMITTED'
		 `
	return r.transition(ctx, query, org, id, a.AcceptedOn, a.AccepterCertificate,
		a.AcceptPayloadSignature, a.AcceptPayload, a.AccepterDevice, a.AcceptedDevice)
}
