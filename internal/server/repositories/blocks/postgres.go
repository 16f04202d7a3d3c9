// Package blocks registers block ids per organization.
package blocks

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

func (r *PostgresRepository) Create(ctx context.Context, b *models.Block) error {
	query :=
		`INSERT INTO block (organization_id, block_id, author, created_on)
		 VALUES ($1, $2, $3, $4)
		 `

	_, err := r.db.ExecContext(ctx, query, b.OrganizationID, b.BlockID, b.Author, b.CreatedOn)
	if err != nil {
		if dbx.IsUniqueViolation(err) {
			return common.ErrAlreadyExists
		}
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *PostgresRepository) Get(ctx context.Context, org string, id uuid.UUID) (*models.Block, error) {
	query :=
		`SELECT author, created_on FROM block
		 WHERE organization_id = $1 AND block_id = $2
		 `

	b := &models.Block{OrganizationID: org, BlockID: id}
	err := r.db.QueryRowContext(ctx, query, org, id).Scan(&b.Author, &b.CreatedOn)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return b, nil
}
