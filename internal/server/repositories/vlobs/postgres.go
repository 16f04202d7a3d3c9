// Package vlobs stores the append-only version history of versioned blobs.
package vlobs

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/gophvault/internal/common"
	"github.com/dmitrijs2005/gophvault/internal/dbx"
	"github.com/dmitrijs2005/gophvault/internal/server/models"
	"github.com/google/uuid"
)

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Read returns exactly the requested version or common.ErrVersionNotFound.
func (r *PostgresRepository) Read(ctx context.Context, org string, id uuid.UUID, version uint64) (*models.Vlob, error) {
	query :=
		`SELECT version, blob, author, created_on FROM vlob_atom
		 WHERE organization_id = $1 AND vlob_id = $2 AND version = $3
		 `

	v := &models.Vlob{OrganizationID: org, VlobID: id}
	err := r.db.QueryRowContext(ctx, query, org, id, int64(version)).Scan(&v.Version, &v.Blob, &v.Author, &v.CreatedOn)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrVersionNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}

	return v, nil
}

// ReadLatest returns the highest version or common.ErrorNotFound when the
// vlob was never written.
func (r *PostgresRepository) ReadLatest(ctx context.Context, org string, id uuid.UUID) (*models.Vlob, error) {
	query :=
		`SELECT version, blob, author, created_on FROM vlob_atom
		 WHERE organization_id = $1 AND vlob_id = $2
		 ORDER BY version DESC
		 LIMIT 1
		 `

	v := &models.Vlob{OrganizationID: org, VlobID: id}
	err := r.db.QueryRowContext(ctx, query, org, id).Scan(&v.Version, &v.Blob, &v.Author, &v.CreatedOn)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}

	return v, nil
}

// Append inserts v only if v.Version directly follows the current maximum.
// The check and the insert are one statement; a concurrent writer that
// slips in between is caught by the unique constraint.
func (r *PostgresRepository) Append(ctx context.Context, v *models.Vlob) error {
	if v.Version == 0 {
		return common.ErrVersionConflict
	}

	query :=
		`INSERT INTO vlob_atom (organization_id, vlob_id, version, blob, author, created_on)
		 SELECT $1, $2, $3, $4, $5, $6
		 WHERE (
			SELECT COALESCE(MAX(version), 0) FROM vlob_atom
			WHERE organization_id = $1 AND vlob_id = $2
		 ) = $3 - 1
		 `

	res, err := r.db.ExecContext(ctx, query,
		v.OrganizationID, v.VlobID, int64(v.Version), v.Blob, v.Author, v.CreatedOn)
	if err != nil {
		if dbx.IsUniqueViolation(err) {
			return common.ErrVersionConflict
		}
		return fmt.Errorf("db error: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	if n == 0 {
		return common.ErrVersionConflict
	}

	return nil
}

// ListVersions returns every persisted version of the vlob in ascending order.
func (r *PostgresRepository) ListVersions(ctx context.Context, org string, id uuid.UUID) ([]uint64, error) {
	query :=
		`SELECT version FROM vlob_atom
		 WHERE organization_id = $1 AND vlob_id = $2
		 ORDER BY version ASC
		 `

	rows, err := r.db.QueryContext(ctx, query, org, id)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	var versions []uint64
	for rows.Next() {
		var v uint64
		if err := rows.Scan(&v); err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		versions = append(versions, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}

	return versions, nil
}
