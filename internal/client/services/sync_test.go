package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/dmitrijs2005/gophvault/internal/client/client"
	"github.com/dmitrijs2005/gophvault/internal/client/models"
	"github.com/dmitrijs2005/gophvault/internal/codec"
	"github.com/dmitrijs2005/gophvault/internal/common"
	"github.com/dmitrijs2005/gophvault/internal/cryptox"
	"github.com/dmitrijs2005/gophvault/internal/logging"
	"github.com/dmitrijs2005/gophvault/internal/manifest"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	alice manifest.DeviceID = "alice@laptop"
	bob   manifest.DeviceID = "bob@phone"
)

var t0 = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

// fakeVlobs is an in-memory vlob store with the backend's gapless rule.
type fakeVlobs struct {
	client.Client

	mu        sync.Mutex
	author    manifest.DeviceID
	vlobs     map[uuid.UUID][]models.RemoteVlob
	updates   int
	updateErr map[uuid.UUID]error
	// beforeUpdate runs without the lock, ahead of every VlobUpdate.
	beforeUpdate func(id uuid.UUID)
}

func newFakeVlobs() *fakeVlobs {
	return &fakeVlobs{
		author:    alice,
		vlobs:     map[uuid.UUID][]models.RemoteVlob{},
		updateErr: map[uuid.UUID]error{},
	}
}

func (f *fakeVlobs) put(id uuid.UUID, author manifest.DeviceID, blob []byte) uint64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	v := uint64(len(f.vlobs[id]) + 1)
	f.vlobs[id] = append(f.vlobs[id], models.RemoteVlob{ID: id, Version: v, Blob: blob, Author: string(author), CreatedOn: t0})
	return v
}

func (f *fakeVlobs) VlobRead(_ context.Context, id uuid.UUID, version *uint64) (*models.RemoteVlob, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	history := f.vlobs[id]
	if version != nil {
		return nil, errors.New("unexpected versioned read")
	}
	if len(history) == 0 {
		return &models.RemoteVlob{ID: id}, nil
	}
	latest := history[len(history)-1]
	return &latest, nil
}

func (f *fakeVlobs) VlobUpdate(_ context.Context, id uuid.UUID, version uint64, blob []byte) error {
	if f.beforeUpdate != nil {
		f.beforeUpdate(id)
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.updates++
	if err := f.updateErr[id]; err != nil {
		return err
	}
	if version != uint64(len(f.vlobs[id])+1) {
		return common.ErrVersionConflict
	}
	f.vlobs[id] = append(f.vlobs[id], models.RemoteVlob{ID: id, Version: version, Blob: blob, Author: string(f.author), CreatedOn: t0})
	return nil
}

// memStorage keeps manifests in a map; locking is a no-op.
type memStorage struct {
	mu        sync.Mutex
	manifests map[manifest.EntryID]manifest.LocalManifest
}

func newMemStorage() *memStorage {
	return &memStorage{manifests: map[manifest.EntryID]manifest.LocalManifest{}}
}

func (s *memStorage) LockEntry(ctx context.Context, _ manifest.EntryID) (func(), error) {
	return func() {}, ctx.Err()
}

func (s *memStorage) GetManifest(_ context.Context, id manifest.EntryID) (manifest.LocalManifest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.manifests[id]
	if !ok {
		return nil, common.ErrorNotFound
	}
	return m, nil
}

func (s *memStorage) SetManifest(_ context.Context, id manifest.EntryID, m manifest.LocalManifest) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.manifests[id] = m
	return nil
}

func (s *memStorage) NeedSyncEntries(context.Context) ([]manifest.EntryID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var ids []manifest.EntryID
	for id, m := range s.manifests {
		if m.NeedSync() {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

type syncFixture struct {
	vlobs   *fakeVlobs
	storage *memStorage
	key     []byte
	svc     *SyncService
}

func newSyncFixture(maxAttempts int) *syncFixture {
	f := &syncFixture{vlobs: newFakeVlobs(), storage: newMemStorage(), key: cryptox.NewSecretKey()}
	f.svc = NewSyncService(f.vlobs, f.storage, alice, f.key, maxAttempts, logging.Discard())
	return f
}

func (f *syncFixture) seal(t *testing.T, m manifest.RemoteManifest) []byte {
	t.Helper()
	raw, err := manifest.DumpRemote(m)
	require.NoError(t, err)
	blob, err := cryptox.Seal(f.key, codec.Compress(raw))
	require.NoError(t, err)
	return blob
}

func (f *syncFixture) remote(t *testing.T, id manifest.EntryID) manifest.RemoteManifest {
	t.Helper()
	v, err := f.vlobs.VlobRead(context.Background(), id.UUID(), nil)
	require.NoError(t, err)
	require.False(t, v.IsPlaceholder())
	m, err := f.svc.open(v)
	require.NoError(t, err)
	return m
}

func bobFolder(version uint64, parent manifest.EntryID, children map[manifest.EntryName]manifest.EntryID) manifest.FolderManifest {
	return manifest.FolderManifest{
		Header:   manifest.Header{Author: bob, Version: version, Created: t0, Updated: t0.Add(time.Duration(version) * time.Minute)},
		ParentID: parent,
		Children: children,
	}
}

func TestPush_NewEntry(t *testing.T) {
	f := newSyncFixture(3)
	ctx := context.Background()
	id := manifest.NewEntryID()
	child := manifest.NewEntryID()

	local := manifest.MakeFolderPlaceholder(alice, manifest.NewEntryID(), t0).
		EvolveChildrenAndMarkUpdated(manifest.ChildrenPatch{"docs": &child}, t0.Add(time.Second))
	require.NoError(t, f.storage.SetManifest(ctx, id, local))

	require.NoError(t, f.svc.Push(ctx, id))

	stored, err := f.storage.GetManifest(ctx, id)
	require.NoError(t, err)
	assert.False(t, stored.NeedSync())
	assert.Equal(t, uint64(1), stored.BaseVersion())

	remote := f.remote(t, id).(manifest.FolderManifest)
	assert.Equal(t, alice, remote.Author)
	assert.Equal(t, uint64(1), remote.Version)
	assert.Equal(t, map[manifest.EntryName]manifest.EntryID{"docs": child}, remote.Children)
}

func TestPush_NothingToSync(t *testing.T) {
	f := newSyncFixture(3)
	ctx := context.Background()
	id := manifest.NewEntryID()

	require.NoError(t, f.storage.SetManifest(ctx, id, manifest.FromRemote(bobFolder(2, manifest.NewEntryID(), nil))))
	require.NoError(t, f.svc.Push(ctx, id))
	assert.Equal(t, 0, f.vlobs.updates)
}

func TestPush_MissingLocal(t *testing.T) {
	f := newSyncFixture(3)

	err := f.svc.Push(context.Background(), manifest.NewEntryID())
	assert.ErrorIs(t, err, common.ErrorNotFound)
}

func TestPush_ConflictIsMergedAndRetried(t *testing.T) {
	f := newSyncFixture(3)
	ctx := context.Background()
	id := manifest.NewEntryID()
	parent := manifest.NewEntryID()
	mine, theirs := manifest.NewEntryID(), manifest.NewEntryID()

	// another device created the entry first
	f.vlobs.put(id.UUID(), bob, f.seal(t, bobFolder(1, parent, map[manifest.EntryName]manifest.EntryID{"theirs": theirs})))

	local := manifest.MakeFolderPlaceholder(alice, parent, t0).
		EvolveChildrenAndMarkUpdated(manifest.ChildrenPatch{"mine": &mine}, t0.Add(time.Hour))
	require.NoError(t, f.storage.SetManifest(ctx, id, local))

	require.NoError(t, f.svc.Push(ctx, id))
	assert.Equal(t, 2, f.vlobs.updates)

	remote := f.remote(t, id).(manifest.FolderManifest)
	assert.Equal(t, uint64(2), remote.Version)
	assert.Equal(t, alice, remote.Author)
	assert.Equal(t, map[manifest.EntryName]manifest.EntryID{"mine": mine, "theirs": theirs}, remote.Children)

	stored, err := f.storage.GetManifest(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, uint64(2), stored.BaseVersion())
	assert.False(t, stored.NeedSync())
}

func TestPush_GivesUpAfterMaxAttempts(t *testing.T) {
	f := newSyncFixture(3)
	ctx := context.Background()
	id := manifest.NewEntryID()
	parent := manifest.NewEntryID()

	// bob always wins the race
	f.vlobs.beforeUpdate = func(u uuid.UUID) {
		f.vlobs.mu.Lock()
		next := uint64(len(f.vlobs.vlobs[u]) + 1)
		f.vlobs.mu.Unlock()
		f.vlobs.put(u, bob, f.seal(t, bobFolder(next, parent, map[manifest.EntryName]manifest.EntryID{
			manifest.EntryName("b" + string(rune('0'+next))): manifest.NewEntryID(),
		})))
	}

	mine := manifest.NewEntryID()
	local := manifest.MakeFolderPlaceholder(alice, parent, t0).
		EvolveChildrenAndMarkUpdated(manifest.ChildrenPatch{"mine": &mine}, t0)
	require.NoError(t, f.storage.SetManifest(ctx, id, local))

	err := f.svc.Push(ctx, id)
	assert.ErrorIs(t, err, ErrTooManyConflicts)
	assert.Equal(t, 3, f.vlobs.updates)

	// local changes survive, rebased on the last seen remote version
	stored, err := f.storage.GetManifest(ctx, id)
	require.NoError(t, err)
	assert.True(t, stored.NeedSync())
	assert.Equal(t, uint64(3), stored.BaseVersion())
	assert.Contains(t, stored.(manifest.LocalFolderManifest).Children(), manifest.EntryName("mine"))
}

func TestPush_UnavailableIsNotRetried(t *testing.T) {
	f := newSyncFixture(5)
	ctx := context.Background()
	id := manifest.NewEntryID()
	f.vlobs.updateErr[id.UUID()] = client.ErrUnavailable

	require.NoError(t, f.storage.SetManifest(ctx, id, manifest.MakeFilePlaceholder(alice, manifest.NewEntryID(), t0)))

	err := f.svc.Push(ctx, id)
	assert.ErrorIs(t, err, client.ErrUnavailable)
	assert.Equal(t, 1, f.vlobs.updates)
}

func TestPull_NewEntry(t *testing.T) {
	f := newSyncFixture(3)
	ctx := context.Background()
	id := manifest.NewEntryID()
	remote := bobFolder(1, manifest.NewEntryID(), map[manifest.EntryName]manifest.EntryID{"x": manifest.NewEntryID()})
	f.vlobs.put(id.UUID(), bob, f.seal(t, remote))

	require.NoError(t, f.svc.Pull(ctx, id))

	stored, err := f.storage.GetManifest(ctx, id)
	require.NoError(t, err)
	assert.False(t, stored.NeedSync())
	assert.Equal(t, uint64(1), stored.BaseVersion())
	assert.Equal(t, remote.Children, stored.(manifest.LocalFolderManifest).Children())
}

func TestPull_MergesIntoLocalChanges(t *testing.T) {
	f := newSyncFixture(3)
	ctx := context.Background()
	id := manifest.NewEntryID()
	parent := manifest.NewEntryID()
	theirs, mine := manifest.NewEntryID(), manifest.NewEntryID()

	v1 := bobFolder(1, parent, map[manifest.EntryName]manifest.EntryID{})
	local := manifest.FromRemote(v1).(manifest.LocalFolderManifest).
		EvolveChildrenAndMarkUpdated(manifest.ChildrenPatch{"mine": &mine}, t0.Add(time.Hour))
	require.NoError(t, f.storage.SetManifest(ctx, id, local))

	f.vlobs.put(id.UUID(), bob, f.seal(t, v1))
	f.vlobs.put(id.UUID(), bob, f.seal(t, bobFolder(2, parent, map[manifest.EntryName]manifest.EntryID{"theirs": theirs})))

	require.NoError(t, f.svc.Pull(ctx, id))

	stored, err := f.storage.GetManifest(ctx, id)
	require.NoError(t, err)
	assert.True(t, stored.NeedSync())
	assert.Equal(t, uint64(2), stored.BaseVersion())
	assert.Equal(t, map[manifest.EntryName]manifest.EntryID{"mine": mine, "theirs": theirs},
		stored.(manifest.LocalFolderManifest).Children())
}

func TestPull_NothingUploaded(t *testing.T) {
	f := newSyncFixture(3)
	ctx := context.Background()
	id := manifest.NewEntryID()

	require.NoError(t, f.svc.Pull(ctx, id))

	_, err := f.storage.GetManifest(ctx, id)
	assert.ErrorIs(t, err, common.ErrorNotFound)
}

func TestPull_RejectsMismatchedBlob(t *testing.T) {
	f := newSyncFixture(3)
	ctx := context.Background()
	id := manifest.NewEntryID()

	// manifest claims version 5 while stored as version 1
	f.vlobs.put(id.UUID(), bob, f.seal(t, bobFolder(5, manifest.NewEntryID(), nil)))
	assert.ErrorIs(t, f.svc.Pull(ctx, id), common.ErrInvalidInput)

	other := manifest.NewEntryID()
	f.vlobs.put(other.UUID(), alice, f.seal(t, bobFolder(1, manifest.NewEntryID(), nil)))
	assert.ErrorIs(t, f.svc.Pull(ctx, other), common.ErrInvalidInput)

	garbage := manifest.NewEntryID()
	f.vlobs.put(garbage.UUID(), bob, []byte("not sealed"))
	assert.ErrorIs(t, f.svc.Pull(ctx, garbage), common.ErrInvalidInput)
}

func TestSyncAll_CollectsErrors(t *testing.T) {
	f := newSyncFixture(3)
	ctx := context.Background()
	ok, bad := manifest.NewEntryID(), manifest.NewEntryID()
	f.vlobs.updateErr[bad.UUID()] = common.ErrorUnauthorized

	require.NoError(t, f.storage.SetManifest(ctx, ok, manifest.MakeFilePlaceholder(alice, manifest.NewEntryID(), t0)))
	require.NoError(t, f.storage.SetManifest(ctx, bad, manifest.MakeFilePlaceholder(alice, manifest.NewEntryID(), t0)))

	err := f.svc.SyncAll(ctx)
	assert.ErrorIs(t, err, common.ErrorUnauthorized)
	assert.Contains(t, err.Error(), bad.String())
	assert.Equal(t, 2, f.vlobs.updates)

	stored, err := f.storage.GetManifest(ctx, ok)
	require.NoError(t, err)
	assert.False(t, stored.NeedSync())
}

func TestSyncAll_StopsWhenUnavailable(t *testing.T) {
	f := newSyncFixture(3)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		id := manifest.NewEntryID()
		f.vlobs.updateErr[id.UUID()] = client.ErrUnavailable
		require.NoError(t, f.storage.SetManifest(ctx, id, manifest.MakeFilePlaceholder(alice, manifest.NewEntryID(), t0)))
	}

	err := f.svc.SyncAll(ctx)
	assert.ErrorIs(t, err, client.ErrUnavailable)
	assert.Equal(t, 1, f.vlobs.updates)
}

func TestSyncAll_Clean(t *testing.T) {
	f := newSyncFixture(3)
	assert.NoError(t, f.svc.SyncAll(context.Background()))
}
