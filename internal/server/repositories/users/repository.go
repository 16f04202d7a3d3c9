package users

import (
	"context"
	"time"

	"github.com/dmitrijs2005/gophvault/internal/server/models"
)

type Repository interface {
	TakeWriteLock(ctx context.Context, org string) error
	CreateUserWithDevice(ctx context.Context, user *models.User, device *models.Device) error
	GetUser(ctx context.Context, org, userID string) (*models.User, error)
	GetUserByDevice(ctx context.Context, org, deviceID string) (*models.User, error)
	Revoke(ctx context.Context, org, userID string, now time.Time) error
}
