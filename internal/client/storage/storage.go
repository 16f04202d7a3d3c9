// Package storage is the client's local view of a workspace: an encrypted
// cache of local manifests plus per-realm sync checkpoints, kept in SQLite.
//
// Manifests are sealed with a key derived from the device password; the
// salt and a verifier of that key live in the metadata table so a wrong
// password is rejected before anything is decrypted.
package storage

import (
	"context"
	"crypto/subtle"
	"database/sql"
	"encoding/binary"
	"errors"
	"fmt"
	"path/filepath"
	"sync"

	"github.com/dmitrijs2005/gophvault/internal/client/migrations"
	"github.com/dmitrijs2005/gophvault/internal/client/models"
	"github.com/dmitrijs2005/gophvault/internal/client/repositories/manifests"
	"github.com/dmitrijs2005/gophvault/internal/client/repositories/metadata"
	"github.com/dmitrijs2005/gophvault/internal/codec"
	"github.com/dmitrijs2005/gophvault/internal/common"
	"github.com/dmitrijs2005/gophvault/internal/cryptox"
	"github.com/dmitrijs2005/gophvault/internal/dbx"
	"github.com/dmitrijs2005/gophvault/internal/filex"
	"github.com/dmitrijs2005/gophvault/internal/manifest"
	"github.com/pressly/goose/v3"

	_ "modernc.org/sqlite"
)

// DBFileName is the cache database inside the workspace directory.
const DBFileName = "workspace.sqlite"

const (
	keySalt             = "salt"
	keyVerifier         = "verifier"
	keyWorkspaceKey     = "workspace_key"
	checkpointKeyPrefix = "checkpoint/"
	saltSize            = 32
)

type WorkspaceStorage struct {
	db  *sql.DB
	key []byte

	mu    sync.Mutex
	locks map[manifest.EntryID]*entryLock
}

type entryLock struct {
	ch   chan struct{}
	refs int
}

// Open prepares dir, applies the schema and unlocks the cache with
// password. A fresh cache adopts the password; an existing one returns
// common.ErrorUnauthorized when it does not match.
func Open(ctx context.Context, dir string, password []byte) (*WorkspaceStorage, error) {
	abs, err := filex.EnsureDir(dir)
	if err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", filepath.Join(abs, DBFileName))
	if err != nil {
		return nil, fmt.Errorf("db error: open: %w", err)
	}
	// sqlite serializes writers; one connection keeps it simple
	db.SetMaxOpenConns(1)

	if err := RunMigrations(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrations: %w", err)
	}

	key, err := unlock(ctx, db, password)
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	return &WorkspaceStorage{
		db:    db,
		key:   key,
		locks: make(map[manifest.EntryID]*entryLock),
	}, nil
}

func RunMigrations(ctx context.Context, db *sql.DB) error {
	goose.SetBaseFS(migrations.Migrations)
	if err := goose.SetDialect("sqlite3"); err != nil {
		return err
	}
	return goose.UpContext(ctx, db, ".")
}

func unlock(ctx context.Context, db *sql.DB, password []byte) ([]byte, error) {
	meta := metadata.NewSQLiteRepository(db)

	salt, err := meta.Get(ctx, keySalt)
	if errors.Is(err, common.ErrorNotFound) {
		salt = common.GenerateRandByteArray(saltSize)
		key := cryptox.DeriveMasterKey(password, salt)

		err = dbx.WithTx(ctx, db, nil, func(ctx context.Context, tx dbx.DBTX) error {
			m := metadata.NewSQLiteRepository(tx)
			if err := m.Set(ctx, keySalt, salt); err != nil {
				return err
			}
			return m.Set(ctx, keyVerifier, cryptox.MakeVerifier(key))
		})
		if err != nil {
			return nil, err
		}
		return key, nil
	}
	if err != nil {
		return nil, err
	}

	verifier, err := meta.Get(ctx, keyVerifier)
	if err != nil {
		return nil, fmt.Errorf("read verifier: %w", err)
	}

	key := cryptox.DeriveMasterKey(password, salt)
	if subtle.ConstantTimeCompare(verifier, cryptox.MakeVerifier(key)) == 0 {
		return nil, common.ErrorUnauthorized
	}
	return key, nil
}

// Close releases the database and wipes the key from memory.
func (s *WorkspaceStorage) Close() error {
	common.WipeByteArray(s.key)
	return s.db.Close()
}

// LockEntry serializes work on one entry across goroutines. The returned
// func releases the lock and is safe to call more than once.
func (s *WorkspaceStorage) LockEntry(ctx context.Context, id manifest.EntryID) (func(), error) {
	s.mu.Lock()
	l, ok := s.locks[id]
	if !ok {
		l = &entryLock{ch: make(chan struct{}, 1)}
		s.locks[id] = l
	}
	l.refs++
	s.mu.Unlock()

	select {
	case l.ch <- struct{}{}:
	case <-ctx.Done():
		s.release(id, l)
		return nil, ctx.Err()
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			<-l.ch
			s.release(id, l)
		})
	}, nil
}

func (s *WorkspaceStorage) release(id manifest.EntryID, l *entryLock) {
	s.mu.Lock()
	defer s.mu.Unlock()
	l.refs--
	if l.refs == 0 {
		delete(s.locks, id)
	}
}

// GetManifest returns common.ErrorNotFound when the entry is not cached.
func (s *WorkspaceStorage) GetManifest(ctx context.Context, id manifest.EntryID) (manifest.LocalManifest, error) {
	row, err := manifests.NewSQLiteRepository(s.db).Get(ctx, id)
	if err != nil {
		return nil, err
	}

	plain, err := cryptox.Open(s.key, row.Sealed)
	if err != nil {
		return nil, fmt.Errorf("open manifest %s: %w", id, err)
	}
	raw, err := codec.Decompress(plain)
	if err != nil {
		return nil, fmt.Errorf("decompress manifest %s: %w", id, err)
	}
	return manifest.LoadLocal(raw)
}

func (s *WorkspaceStorage) SetManifest(ctx context.Context, id manifest.EntryID, m manifest.LocalManifest) error {
	raw, err := manifest.DumpLocal(m)
	if err != nil {
		return err
	}
	sealed, err := cryptox.Seal(s.key, codec.Compress(raw))
	if err != nil {
		return fmt.Errorf("seal manifest %s: %w", id, err)
	}

	return manifests.NewSQLiteRepository(s.db).Put(ctx, &models.StoredManifest{
		EntryID:     id,
		Kind:        m.Kind(),
		BaseVersion: m.BaseVersion(),
		NeedSync:    m.NeedSync(),
		Updated:     m.Updated(),
		Sealed:      sealed,
	})
}

func (s *WorkspaceStorage) ClearManifest(ctx context.Context, id manifest.EntryID) error {
	return manifests.NewSQLiteRepository(s.db).Delete(ctx, id)
}

// NeedSyncEntries lists entries with local changes not yet uploaded.
func (s *WorkspaceStorage) NeedSyncEntries(ctx context.Context) ([]manifest.EntryID, error) {
	return manifests.NewSQLiteRepository(s.db).ListNeedSync(ctx)
}

// RealmCheckpoint is the index of the last processed realm event; 0 when
// the realm was never synced.
func (s *WorkspaceStorage) RealmCheckpoint(ctx context.Context, realm manifest.EntryID) (uint64, error) {
	v, err := metadata.NewSQLiteRepository(s.db).Get(ctx, checkpointKeyPrefix+realm.String())
	if errors.Is(err, common.ErrorNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	if len(v) != 8 {
		return 0, fmt.Errorf("checkpoint %s: bad length %d", realm, len(v))
	}
	return binary.BigEndian.Uint64(v), nil
}

// SetRealmCheckpoint never moves a checkpoint backwards.
func (s *WorkspaceStorage) SetRealmCheckpoint(ctx context.Context, realm manifest.EntryID, checkpoint uint64) error {
	current, err := s.RealmCheckpoint(ctx, realm)
	if err != nil {
		return err
	}
	if checkpoint <= current {
		return nil
	}
	return metadata.NewSQLiteRepository(s.db).Set(ctx, checkpointKeyPrefix+realm.String(),
		binary.BigEndian.AppendUint64(nil, checkpoint))
}

// WorkspaceKey returns the key sealing this workspace's vlob blobs,
// creating it on first use. It is stored sealed under the device key.
func (s *WorkspaceStorage) WorkspaceKey(ctx context.Context) ([]byte, error) {
	meta := metadata.NewSQLiteRepository(s.db)

	sealed, err := meta.Get(ctx, keyWorkspaceKey)
	if errors.Is(err, common.ErrorNotFound) {
		key := cryptox.NewSecretKey()
		if sealed, err = cryptox.Seal(s.key, key); err != nil {
			return nil, err
		}
		if err := meta.Set(ctx, keyWorkspaceKey, sealed); err != nil {
			return nil, err
		}
		return key, nil
	}
	if err != nil {
		return nil, err
	}

	key, err := cryptox.Open(s.key, sealed)
	if err != nil {
		return nil, fmt.Errorf("open workspace key: %w", err)
	}
	return key, nil
}
