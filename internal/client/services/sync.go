package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/gophvault/internal/client/client"
	"github.com/dmitrijs2005/gophvault/internal/client/models"
	"github.com/dmitrijs2005/gophvault/internal/codec"
	"github.com/dmitrijs2005/gophvault/internal/common"
	"github.com/dmitrijs2005/gophvault/internal/cryptox"
	"github.com/dmitrijs2005/gophvault/internal/logging"
	"github.com/dmitrijs2005/gophvault/internal/manifest"
)

// ErrTooManyConflicts is returned by Push when every attempt lost the race
// against another device.
var ErrTooManyConflicts = errors.New("too many sync conflicts")

// Storage is the part of the local workspace cache the sync service needs.
// *storage.WorkspaceStorage implements it.
type Storage interface {
	LockEntry(ctx context.Context, id manifest.EntryID) (func(), error)
	GetManifest(ctx context.Context, id manifest.EntryID) (manifest.LocalManifest, error)
	SetManifest(ctx context.Context, id manifest.EntryID, m manifest.LocalManifest) error
	NeedSyncEntries(ctx context.Context) ([]manifest.EntryID, error)
}

type SyncService struct {
	client      client.Client
	storage     Storage
	device      manifest.DeviceID
	key         []byte
	maxAttempts int
	logger      logging.Logger
}

// NewSyncService builds a service that authors uploads as device and seals
// vlob blobs with key. maxAttempts below 1 is treated as 1.
func NewSyncService(c client.Client, s Storage, device manifest.DeviceID, key []byte, maxAttempts int, l logging.Logger) *SyncService {
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	return &SyncService{
		client:      c,
		storage:     s,
		device:      device,
		key:         key,
		maxAttempts: maxAttempts,
		logger:      l.With("module", "sync"),
	}
}

// Push uploads the local changes of id as the next vlob version. On a
// version conflict the latest remote manifest is merged in and the upload
// is retried.
func (s *SyncService) Push(ctx context.Context, id manifest.EntryID) error {
	unlock, err := s.storage.LockEntry(ctx, id)
	if err != nil {
		return err
	}
	defer unlock()

	local, err := s.storage.GetManifest(ctx, id)
	if err != nil {
		return fmt.Errorf("load %s: %w", id, err)
	}

	for attempt := 1; attempt <= s.maxAttempts; attempt++ {
		if !local.NeedSync() {
			return nil
		}

		version := local.BaseVersion() + 1
		remote, err := local.Remote(manifest.RemoteOverrides{Author: &s.device, Version: &version})
		if err != nil {
			return fmt.Errorf("materialize %s: %w", id, err)
		}
		blob, err := s.seal(remote)
		if err != nil {
			return err
		}

		err = s.client.VlobUpdate(ctx, id.UUID(), version, blob)
		if err == nil {
			s.logger.Debug(ctx, "entry pushed", "entry_id", id, "version", version)
			return s.storage.SetManifest(ctx, id, manifest.FromRemote(remote))
		}
		if !errors.Is(err, common.ErrVersionConflict) {
			return err
		}

		s.logger.Info(ctx, "version conflict, rebasing", "entry_id", id, "version", version, "attempt", attempt)

		latest, err := s.fetch(ctx, id)
		if err != nil {
			return err
		}
		if latest == nil {
			// conflict on an entry the server reports as empty: retry as is
			continue
		}
		if local, err = manifest.Merge(local, latest); err != nil {
			return fmt.Errorf("merge %s: %w", id, err)
		}
		if err := s.storage.SetManifest(ctx, id, local); err != nil {
			return err
		}
	}

	return fmt.Errorf("%w: %s after %d attempts", ErrTooManyConflicts, id, s.maxAttempts)
}

// Pull merges the latest remote manifest of id into the local cache. An
// entry unknown to the server is left untouched.
func (s *SyncService) Pull(ctx context.Context, id manifest.EntryID) error {
	unlock, err := s.storage.LockEntry(ctx, id)
	if err != nil {
		return err
	}
	defer unlock()

	latest, err := s.fetch(ctx, id)
	if err != nil || latest == nil {
		return err
	}

	local, err := s.storage.GetManifest(ctx, id)
	switch {
	case errors.Is(err, common.ErrorNotFound):
		local = manifest.FromRemote(latest)
	case err != nil:
		return fmt.Errorf("load %s: %w", id, err)
	default:
		if local, err = manifest.Merge(local, latest); err != nil {
			return fmt.Errorf("merge %s: %w", id, err)
		}
	}

	return s.storage.SetManifest(ctx, id, local)
}

// SyncAll pushes every entry with local changes. Failures are collected
// per entry; an unreachable server stops the run.
func (s *SyncService) SyncAll(ctx context.Context) error {
	ids, err := s.storage.NeedSyncEntries(ctx)
	if err != nil {
		return err
	}

	var errs []error
	for _, id := range ids {
		if err := s.Push(ctx, id); err != nil {
			s.logger.Warn(ctx, "push failed", "entry_id", id, "error", err)
			errs = append(errs, fmt.Errorf("entry %s: %w", id, err))
			if errors.Is(err, client.ErrUnavailable) || ctx.Err() != nil {
				break
			}
		}
	}
	return errors.Join(errs...)
}

// fetch reads and decodes the latest manifest of id. It returns nil when
// nothing was ever uploaded.
func (s *SyncService) fetch(ctx context.Context, id manifest.EntryID) (manifest.RemoteManifest, error) {
	v, err := s.client.VlobRead(ctx, id.UUID(), nil)
	if err != nil {
		return nil, err
	}
	if v.IsPlaceholder() {
		return nil, nil
	}
	return s.open(v)
}

func (s *SyncService) seal(m manifest.RemoteManifest) ([]byte, error) {
	raw, err := manifest.DumpRemote(m)
	if err != nil {
		return nil, err
	}
	return cryptox.Seal(s.key, codec.Compress(raw))
}

// open decodes a vlob blob and checks it against the vlob's own metadata.
func (s *SyncService) open(v *models.RemoteVlob) (manifest.RemoteManifest, error) {
	plain, err := cryptox.Open(s.key, v.Blob)
	if err != nil {
		return nil, fmt.Errorf("%w: vlob %s v%d: %v", common.ErrInvalidInput, v.ID, v.Version, err)
	}
	raw, err := codec.Decompress(plain)
	if err != nil {
		return nil, fmt.Errorf("%w: vlob %s v%d: %v", common.ErrInvalidInput, v.ID, v.Version, err)
	}
	m, err := manifest.LoadRemote(raw)
	if err != nil {
		return nil, err
	}

	h := m.ManifestHeader()
	if h.Version != v.Version || string(h.Author) != v.Author {
		return nil, fmt.Errorf("%w: vlob %s v%d carries manifest v%d by %s",
			common.ErrInvalidInput, v.ID, v.Version, h.Version, h.Author)
	}
	return m, nil
}
