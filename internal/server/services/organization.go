package services

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/dmitrijs2005/gophvault/internal/common"
	"github.com/dmitrijs2005/gophvault/internal/logging"
	"github.com/dmitrijs2005/gophvault/internal/manifest"
	"github.com/dmitrijs2005/gophvault/internal/server/config"
	"github.com/dmitrijs2005/gophvault/internal/server/models"
	"github.com/dmitrijs2005/gophvault/internal/server/repositories/repomanager"
)

type OrganizationService struct {
	store
	repomanager repomanager.RepositoryManager
}

func NewOrganizationService(db *sql.DB, m repomanager.RepositoryManager, cfg *config.Config, logger logging.Logger) *OrganizationService {
	return &OrganizationService{
		store:       store{db: db, timeout: cfg.StoreOperationTimeout, logger: logger.With("module", "organizations")},
		repomanager: m,
	}
}

func (s *OrganizationService) Create(ctx context.Context, id string, activeUsersLimit *int64, now time.Time) (*models.Organization, error) {
	if _, err := manifest.ParseOrganizationID(id); err != nil {
		return nil, err
	}
	if activeUsersLimit != nil && *activeUsersLimit < 0 {
		return nil, fmt.Errorf("%w: negative active users limit", common.ErrInvalidInput)
	}

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	org := &models.Organization{ID: id, ActiveUsersLimit: activeUsersLimit, CreatedOn: now}
	if err := s.repomanager.Organizations(s.db).Create(ctx, org); err != nil {
		return nil, err
	}
	return org, nil
}

// Config returns the organization settings exposed to clients.
func (s *OrganizationService) Config(ctx context.Context, id string) (*models.Organization, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	return s.repomanager.Organizations(s.db).Get(ctx, id)
}

func (s *OrganizationService) SetActiveUsersLimit(ctx context.Context, id string, limit *int64) error {
	if limit != nil && *limit < 0 {
		return fmt.Errorf("%w: negative active users limit", common.ErrInvalidInput)
	}

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	return s.repomanager.Organizations(s.db).SetActiveUsersLimit(ctx, id, limit)
}
