// Package manifests persists the client's local manifest cache in SQLite.
// Rows carry the sealed manifest plus a few clear columns used for lookups.
package manifests

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/gophvault/internal/client/models"
	"github.com/dmitrijs2005/gophvault/internal/common"
	"github.com/dmitrijs2005/gophvault/internal/dbx"
	"github.com/dmitrijs2005/gophvault/internal/manifest"
)

type Repository interface {
	Get(ctx context.Context, id manifest.EntryID) (*models.StoredManifest, error)
	Put(ctx context.Context, m *models.StoredManifest) error
	Delete(ctx context.Context, id manifest.EntryID) error
	ListNeedSync(ctx context.Context) ([]manifest.EntryID, error)
}

type SQLiteRepository struct {
	db dbx.DBTX
}

func NewSQLiteRepository(db dbx.DBTX) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

func (r *SQLiteRepository) Get(ctx context.Context, id manifest.EntryID) (*models.StoredManifest, error) {
	var (
		kind     string
		version  int64
		needSync bool
		updated  string
		sealed   []byte
	)

	err := r.db.QueryRowContext(ctx, `
		SELECT kind, base_version, need_sync, updated, sealed
		  FROM manifests WHERE entry_id = ?
	`, id.String()).Scan(&kind, &version, &needSync, &updated, &sealed)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.ErrorNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("db error: get manifest %s: %w", id, err)
	}

	ts, err := time.Parse(time.RFC3339Nano, updated)
	if err != nil {
		return nil, fmt.Errorf("db error: manifest %s: bad updated %q: %w", id, updated, err)
	}

	return &models.StoredManifest{
		EntryID:     id,
		Kind:        manifest.Kind(kind),
		BaseVersion: uint64(version),
		NeedSync:    needSync,
		Updated:     ts,
		Sealed:      sealed,
	}, nil
}

func (r *SQLiteRepository) Put(ctx context.Context, m *models.StoredManifest) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO manifests (entry_id, kind, base_version, need_sync, updated, sealed)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(entry_id) DO UPDATE SET
		  kind         = excluded.kind,
		  base_version = excluded.base_version,
		  need_sync    = excluded.need_sync,
		  updated      = excluded.updated,
		  sealed       = excluded.sealed
	`, m.EntryID.String(), string(m.Kind), int64(m.BaseVersion), m.NeedSync,
		m.Updated.UTC().Format(time.RFC3339Nano), m.Sealed)
	if err != nil {
		return fmt.Errorf("db error: put manifest %s: %w", m.EntryID, err)
	}
	return nil
}

// Delete is a no-op for unknown entries.
func (r *SQLiteRepository) Delete(ctx context.Context, id manifest.EntryID) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM manifests WHERE entry_id = ?`, id.String()); err != nil {
		return fmt.Errorf("db error: delete manifest %s: %w", id, err)
	}
	return nil
}

// ListNeedSync returns the entries with local changes, oldest update first.
func (r *SQLiteRepository) ListNeedSync(ctx context.Context) ([]manifest.EntryID, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT entry_id FROM manifests WHERE need_sync = 1 ORDER BY updated, entry_id
	`)
	if err != nil {
		return nil, fmt.Errorf("db error: list need-sync: %w", err)
	}
	defer rows.Close()

	var ids []manifest.EntryID
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("db error: scan need-sync: %w", err)
		}
		id, err := manifest.ParseEntryID(raw)
		if err != nil {
			return nil, fmt.Errorf("db error: bad entry id %q: %w", raw, err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: iterate need-sync: %w", err)
	}
	return ids, nil
}
