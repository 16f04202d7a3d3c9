package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/gophvault/internal/common"
	"github.com/dmitrijs2005/gophvault/internal/dbx"
	"github.com/dmitrijs2005/gophvault/internal/logging"
	"github.com/dmitrijs2005/gophvault/internal/manifest"
	"github.com/dmitrijs2005/gophvault/internal/server/auth"
	"github.com/dmitrijs2005/gophvault/internal/server/config"
	"github.com/dmitrijs2005/gophvault/internal/server/models"
	"github.com/dmitrijs2005/gophvault/internal/server/repositories/repomanager"
)

// UserService manages accounts outside of enrollment: bootstrap users,
// revocation, and device access tokens.
type UserService struct {
	store
	repomanager                 repomanager.RepositoryManager
	jwtSecret                   []byte
	accessTokenValidityDuration time.Duration
}

func NewUserService(db *sql.DB, m repomanager.RepositoryManager, cfg *config.Config, logger logging.Logger) *UserService {
	return &UserService{
		store:                       store{db: db, timeout: cfg.StoreOperationTimeout, logger: logger.With("module", "users")},
		repomanager:                 m,
		jwtSecret:                   []byte(cfg.SecretKey),
		accessTokenValidityDuration: cfg.AccessTokenValidityDuration,
	}
}

// CreateUser adds a user and its first device under the organization write
// lock, so it serializes with enrollment decisions.
func (s *UserService) CreateUser(ctx context.Context, user *models.User, device *models.Device) error {
	if err := validateAccount(user, device); err != nil {
		return err
	}
	return s.inTx(ctx, "create_user", func(ctx context.Context, tx dbx.DBTX) error {
		repo := s.repomanager.Users(tx)
		if err := repo.TakeWriteLock(ctx, user.OrganizationID); err != nil {
			return err
		}
		return repo.CreateUserWithDevice(ctx, user, device)
	})
}

// Revoke marks a user revoked as of now.
func (s *UserService) Revoke(ctx context.Context, org, userID string, now time.Time) error {
	return s.inTx(ctx, "revoke_user", func(ctx context.Context, tx dbx.DBTX) error {
		repo := s.repomanager.Users(tx)
		if err := repo.TakeWriteLock(ctx, org); err != nil {
			return err
		}
		return repo.Revoke(ctx, org, userID, now)
	})
}

// IssueToken mints an access token for an existing, non-revoked device.
func (s *UserService) IssueToken(ctx context.Context, org, deviceID string) (string, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	user, err := s.repomanager.Users(s.db).GetUserByDevice(ctx, org, deviceID)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return "", common.ErrorUnauthorized
		}
		return "", err
	}
	if user.IsRevoked(time.Now()) {
		return "", common.ErrorUnauthorized
	}

	return auth.GenerateToken(auth.Identity{
		OrganizationID: org,
		DeviceID:       deviceID,
		Profile:        string(user.Profile),
	}, s.jwtSecret, s.accessTokenValidityDuration)
}

// validateAccount checks identifiers and that the device belongs to the user.
func validateAccount(user *models.User, device *models.Device) error {
	if !user.Profile.Valid() {
		return fmt.Errorf("%w: unknown profile %q", common.ErrInvalidInput, user.Profile)
	}
	if _, err := manifest.ParseUserID(user.UserID); err != nil {
		return err
	}
	deviceID, err := manifest.ParseDeviceID(device.DeviceID)
	if err != nil {
		return err
	}
	if string(deviceID.UserID()) != user.UserID {
		return fmt.Errorf("%w: device %s does not belong to user %s", common.ErrInvalidInput, device.DeviceID, user.UserID)
	}
	return nil
}
