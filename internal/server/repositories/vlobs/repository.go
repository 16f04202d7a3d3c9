package vlobs

import (
	"context"

	"github.com/dmitrijs2005/gophvault/internal/server/models"
	"github.com/google/uuid"
)

type Repository interface {
	Read(ctx context.Context, org string, id uuid.UUID, version uint64) (*models.Vlob, error)
	ReadLatest(ctx context.Context, org string, id uuid.UUID) (*models.Vlob, error)
	Append(ctx context.Context, v *models.Vlob) error
	ListVersions(ctx context.Context, org string, id uuid.UUID) ([]uint64, error)
}
