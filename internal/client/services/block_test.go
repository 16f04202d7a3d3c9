package services

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/dmitrijs2005/gophvault/internal/client/client"
	"github.com/dmitrijs2005/gophvault/internal/manifest"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// objectStore mimics presigned PUT/GET on /blocks/<id>.
type objectStore struct {
	mu      sync.Mutex
	objects map[string][]byte
}

func (o *objectStore) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	o.mu.Lock()
	defer o.mu.Unlock()
	key := strings.TrimPrefix(r.URL.Path, "/blocks/")
	switch r.Method {
	case http.MethodPut:
		b, _ := io.ReadAll(r.Body)
		o.objects[key] = b
	case http.MethodGet:
		b, ok := o.objects[key]
		if !ok {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write(b)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

type fakeBlocks struct {
	client.Client
	base string
}

func (f *fakeBlocks) BlockCreateURL(_ context.Context, id uuid.UUID) (string, error) {
	return f.base + "/blocks/" + id.String() + "?X-Amz-Signature=put", nil
}

func (f *fakeBlocks) BlockReadURL(_ context.Context, id uuid.UUID) (string, error) {
	return f.base + "/blocks/" + id.String() + "?X-Amz-Signature=get", nil
}

func newBlockFixture(t *testing.T) (*BlockService, *objectStore) {
	t.Helper()
	store := &objectStore{objects: map[string][]byte{}}
	ts := httptest.NewServer(store)
	t.Cleanup(ts.Close)
	return NewBlockService(&fakeBlocks{base: ts.URL}, ts.Client()), store
}

func TestBlock_UploadDownload(t *testing.T) {
	svc, store := newBlockFixture(t)
	ctx := context.Background()
	data := []byte("the quick brown fox")

	access, err := svc.Upload(ctx, data)
	require.NoError(t, err)
	assert.Equal(t, uint64(len(data)), access.Size)
	assert.Equal(t, manifest.HashBlock(data), access.Digest)
	assert.Len(t, access.Key, 32)

	stored := store.objects[access.ID.String()]
	require.NotEmpty(t, stored)
	assert.NotContains(t, string(stored), "quick brown")

	got, err := svc.Download(ctx, access)
	require.NoError(t, err)
	assert.Equal(t, data, got)
}

func TestBlock_DigestMismatch(t *testing.T) {
	svc, _ := newBlockFixture(t)
	ctx := context.Background()

	access, err := svc.Upload(ctx, []byte("original"))
	require.NoError(t, err)

	access.Digest = manifest.HashBlock([]byte("something else"))
	_, err = svc.Download(ctx, access)
	assert.ErrorIs(t, err, ErrBlockCorrupted)
}

func TestBlock_WrongKey(t *testing.T) {
	svc, _ := newBlockFixture(t)
	ctx := context.Background()

	access, err := svc.Upload(ctx, []byte("original"))
	require.NoError(t, err)

	access.Key = make([]byte, 32)
	_, err = svc.Download(ctx, access)
	assert.ErrorContains(t, err, "decrypt")
}

func TestBlock_Missing(t *testing.T) {
	svc, _ := newBlockFixture(t)

	_, err := svc.Download(context.Background(), manifest.BlockAccess{ID: uuid.New(), Key: make([]byte, 32)})
	assert.ErrorContains(t, err, "download failed: 404")
}
