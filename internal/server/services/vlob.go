package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/gophvault/internal/common"
	"github.com/dmitrijs2005/gophvault/internal/dbx"
	"github.com/dmitrijs2005/gophvault/internal/events"
	"github.com/dmitrijs2005/gophvault/internal/logging"
	"github.com/dmitrijs2005/gophvault/internal/server/config"
	"github.com/dmitrijs2005/gophvault/internal/server/models"
	"github.com/dmitrijs2005/gophvault/internal/server/repositories/repomanager"
	"github.com/google/uuid"
)

// VlobService is the versioned object store. Every key has a single history
// of versions 1..N; a write must name N+1 exactly.
type VlobService struct {
	store
	repomanager repomanager.RepositoryManager
	bus         *events.Bus
}

func NewVlobService(db *sql.DB, m repomanager.RepositoryManager, bus *events.Bus, cfg *config.Config, logger logging.Logger) *VlobService {
	return &VlobService{
		store:       store{db: db, timeout: cfg.StoreOperationTimeout, logger: logger.With("module", "vlobs")},
		repomanager: m,
		bus:         bus,
	}
}

// Read returns a vlob version. A nil version means latest, falling back to
// the placeholder when the key was never written; version 0 always yields
// the placeholder without touching the store.
func (s *VlobService) Read(ctx context.Context, org string, id uuid.UUID, version *uint64) (*models.Vlob, error) {
	if version != nil && *version == 0 {
		return models.PlaceholderVlob(org, id), nil
	}

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	repo := s.repomanager.Vlobs(s.db)
	if version == nil {
		v, err := repo.ReadLatest(ctx, org, id)
		if errors.Is(err, common.ErrorNotFound) {
			return models.PlaceholderVlob(org, id), nil
		}
		return v, err
	}
	return repo.Read(ctx, org, id, *version)
}

// Update appends version to the key's history. On success a VlobUpdated
// event is published once the transaction has committed.
func (s *VlobService) Update(ctx context.Context, org, author string, id uuid.UUID, version uint64, blob []byte, now time.Time) error {
	if version == 0 {
		return common.ErrVersionConflict
	}

	v := &models.Vlob{
		OrganizationID: org,
		VlobID:         id,
		Version:        version,
		Blob:           blob,
		Author:         author,
		CreatedOn:      now,
	}
	err := s.inTx(ctx, "vlob_update", func(ctx context.Context, tx dbx.DBTX) error {
		return s.repomanager.Vlobs(tx).Append(ctx, v)
	})
	if err != nil {
		return err
	}

	s.bus.Publish(ctx, events.VlobUpdated{OrganizationID: org, VlobID: id, Version: version, Author: author})
	return nil
}

// History lists the persisted versions of a key and checks they form 1..N.
func (s *VlobService) History(ctx context.Context, org string, id uuid.UUID) ([]uint64, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	versions, err := s.repomanager.Vlobs(s.db).ListVersions(ctx, org, id)
	if err != nil {
		return nil, err
	}
	for i, v := range versions {
		if v != uint64(i+1) {
			err := fmt.Errorf("%w: vlob %s has version %d at position %d", common.ErrIntegrityViolation, id, v, i+1)
			s.logger.Error(ctx, "vlob history gap", "organization", org, "vlob_id", id, "error", err)
			return nil, err
		}
	}
	return versions, nil
}
