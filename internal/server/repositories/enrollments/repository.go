package enrollments

import (
	"context"
	"time"

	"github.com/dmitrijs2005/gophvault/internal/server/models"
	"github.com/google/uuid"
)

type Repository interface {
	Get(ctx context.Context, org string, id uuid.UUID) (*models.Enrollment, error)
	GetForUpdate(ctx context.Context, org string, id uuid.UUID) (*models.Enrollment, error)
	ListByCertificateHash(ctx context.Context, org string, sha1 []byte) ([]*models.Enrollment, error)
	ListSubmitted(ctx context.Context, org string) ([]*models.Enrollment, error)
	Create(ctx context.Context, e *models.Enrollment) error
	Cancel(ctx context.Context, org string, id uuid.UUID, now time.Time) error
	Reject(ctx context.Context, org string, id uuid.UUID, now time.Time) error
	Accept(ctx context.Context, org string, id uuid.UUID, a *models.Acceptance) error
}
