package client

import (
	"context"

	"github.com/dmitrijs2005/gophvault/internal/client/models"
	"github.com/google/uuid"
)

// Client is the backend contract used by the sync and block services.
type Client interface {
	Close() error
	Ping(ctx context.Context) (apiVersion string, err error)
	VlobRead(ctx context.Context, id uuid.UUID, version *uint64) (*models.RemoteVlob, error)
	VlobUpdate(ctx context.Context, id uuid.UUID, version uint64, blob []byte) error
	BlockCreateURL(ctx context.Context, id uuid.UUID) (string, error)
	BlockReadURL(ctx context.Context, id uuid.UUID) (string, error)
	PkiSubmit(ctx context.Context, org string, req *models.EnrollmentSubmission) error
	PkiInfo(ctx context.Context, org string, id uuid.UUID) (*models.EnrollmentStatus, error)
	OrganizationConfig(ctx context.Context) (*models.OrganizationConfig, error)
}
