// Package users persists organization members and their devices.
package users

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/gophvault/internal/common"
	"github.com/dmitrijs2005/gophvault/internal/dbx"
	"github.com/dmitrijs2005/gophvault/internal/server/models"
)

// WriteLockName namespaces the organization-wide lock shared by user/device
// creation and enrollment admission.
const WriteLockName = "user_device_write_lock"

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// TakeWriteLock must run inside a transaction; the lock is released on
// commit or rollback.
func (r *PostgresRepository) TakeWriteLock(ctx context.Context, org string) error {
	if err := dbx.AdvisoryXactLock(ctx, r.db, dbx.LockKey(WriteLockName, org)); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

// CreateUserWithDevice inserts a user and its first device. The caller is
// expected to hold the organization write lock so the active users count
// cannot change underneath.
func (r *PostgresRepository) CreateUserWithDevice(ctx context.Context, user *models.User, device *models.Device) error {
	quota :=
		`SELECT o.active_users_limit, (
			SELECT COUNT(*) FROM user_ u
			WHERE u.organization_id = o.organization_id
			AND (u.revoked_on IS NULL OR u.revoked_on > $2)
		 ) FROM organization o
		 WHERE o.organization_id = $1
		 `

	var (
		limit  sql.NullInt64
		active int64
	)
	err := r.db.QueryRowContext(ctx, quota, user.OrganizationID, user.CreatedOn).Scan(&limit, &active)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return common.ErrorNotFound
		}
		return fmt.Errorf("db error: %w", err)
	}
	if limit.Valid && active >= limit.Int64 {
		return common.ErrActiveUsersLimitReached
	}

	insertUser :=
		`INSERT INTO user_ (organization_id, user_id, profile, user_certificate, user_certifier, created_on)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 `
	_, err = r.db.ExecContext(ctx, insertUser, user.OrganizationID, user.UserID, string(user.Profile),
		user.UserCertificate, nullIfEmpty(user.UserCertifier), user.CreatedOn)
	if err != nil {
		if dbx.IsUniqueViolation(err) {
			return common.ErrAlreadyExists
		}
		return fmt.Errorf("db error: %w", err)
	}

	insertDevice :=
		`INSERT INTO device (organization_id, device_id, user_id, device_certificate, device_certifier, created_on)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 `
	_, err = r.db.ExecContext(ctx, insertDevice, device.OrganizationID, device.DeviceID, user.UserID,
		device.DeviceCertificate, nullIfEmpty(device.DeviceCertifier), device.CreatedOn)
	if err != nil {
		if dbx.IsUniqueViolation(err) {
			return common.ErrAlreadyExists
		}
		return fmt.Errorf("db error: %w", err)
	}

	return nil
}

const userColumns = `u.user_id, u.profile, u.user_certificate, u.user_certifier, u.created_on, u.revoked_on`

func scanUser(row *sql.Row, org string) (*models.User, error) {
	u := &models.User{OrganizationID: org}
	var (
		profile   string
		certifier sql.NullString
		revoked   sql.NullTime
	)
	err := row.Scan(&u.UserID, &profile, &u.UserCertificate, &certifier, &u.CreatedOn, &revoked)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	u.Profile = models.UserProfile(profile)
	u.UserCertifier = certifier.String
	if revoked.Valid {
		u.RevokedOn = &revoked.Time
	}
	return u, nil
}

func (r *PostgresRepository) GetUser(ctx context.Context, org, userID string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM user_ u
		 WHERE u.organization_id = $1 AND u.user_id = $2`

	return scanUser(r.db.QueryRowContext(ctx, query, org, userID), org)
}

// GetUserByDevice resolves the owner of a device.
func (r *PostgresRepository) GetUserByDevice(ctx context.Context, org, deviceID string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM user_ u
		 JOIN device d ON d.organization_id = u.organization_id AND d.user_id = u.user_id
		 WHERE d.organization_id = $1 AND d.device_id = $2`

	return scanUser(r.db.QueryRowContext(ctx, query, org, deviceID), org)
}

// Revoke marks the user revoked as of now. Revoking twice keeps the first
// revocation time.
func (r *PostgresRepository) Revoke(ctx context.Context, org, userID string, now time.Time) error {
	query :=
		`UPDATE user_ SET revoked_on = COALESCE(revoked_on, $3)
		 WHERE organization_id = $1 AND user_id = $2
		 `

	res, err := r.db.ExecContext(ctx, query, org, userID, now)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	if n == 0 {
		return common.ErrorNotFound
	}
	return nil
}

func nullIfEmpty(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
