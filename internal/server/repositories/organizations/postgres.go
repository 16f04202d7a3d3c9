// Package organizations stores per-organization settings.
package organizations

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/gophvault/internal/common"
	"github.com/dmitrijs2005/gophvault/internal/dbx"
	"github.com/dmitrijs2005/gophvault/internal/server/models"
)

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Create(ctx context.Context, org *models.Organization) error {
	query :=
		`INSERT INTO organization (organization_id, active_users_limit, created_on)
		 VALUES ($1, $2, $3)
		 `

	_, err := r.db.ExecContext(ctx, query, org.ID, nullInt(org.ActiveUsersLimit), org.CreatedOn)
	if err != nil {
		if dbx.IsUniqueViolation(err) {
			return common.ErrAlreadyExists
		}
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *PostgresRepository) Get(ctx context.Context, id string) (*models.Organization, error) {
	query :=
		`SELECT active_users_limit, created_on FROM organization
		 WHERE organization_id = $1
		 `

	org := &models.Organization{ID: id}
	var limit sql.NullInt64
	err := r.db.QueryRowContext(ctx, query, id).Scan(&limit, &org.CreatedOn)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	if limit.Valid {
		org.ActiveUsersLimit = &limit.Int64
	}
	return org, nil
}

// SetActiveUsersLimit replaces the quota; nil removes it.
func (r *PostgresRepository) SetActiveUsersLimit(ctx context.Context, id string, limit *int64) error {
	query :=
		`UPDATE organization SET active_users_limit = $2
		 WHERE organization_id = $1
		 `

	res, err := r.db.ExecContext(ctx, query, id, nullInt(limit))
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

func nullInt(v *int64) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *v, Valid: true}
}
