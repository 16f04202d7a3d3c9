package organizations

import (
	"context"

	"github.com/dmitrijs2005/gophvault/internal/server/models"
)

type Repository interface {
	Create(ctx context.Context, org *models.Organization) error
	Get(ctx context.Context, id string) (*models.Organization, error)
	SetActiveUsersLimit(ctx context.Context, id string, limit *int64) error
}
