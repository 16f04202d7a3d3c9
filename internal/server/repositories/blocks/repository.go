package blocks

import (
	"context"

	"github.com/dmitrijs2005/gophvault/internal/server/models"
	"github.com/google/uuid"
)

type Repository interface {
	// Create returns common.ErrAlreadyExists when the id is taken.
	Create(ctx context.Context, b *models.Block) error
	Get(ctx context.Context, org string, id uuid.UUID) (*models.Block, error)
}
