package manifest

import (
	"testing"

	"github.com/dmitrijs2005/gophvault/internal/codec"
	"github.com/dmitrijs2005/gophvault/internal/common"
	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var localOpts = []cmp.Option{
	cmp.AllowUnexported(LocalFileManifest{}, LocalFolderManifest{}, LocalWorkspaceManifest{}, LocalUserManifest{}),
	cmpopts.EquateEmpty(),
}

func sampleRemotes() []RemoteManifest {
	h := Header{Author: alice, Version: 5, Created: t0, Updated: t1}
	child := NewEntryID()
	data := []byte("cipher")
	return []RemoteManifest{
		FileManifest{Header: h, ParentID: NewEntryID(), Size: 6, Blocks: []BlockAccess{
			{ID: uuid.New(), Key: []byte("key"), Offset: 0, Size: 6, Digest: HashBlock(data)},
		}},
		FolderManifest{Header: h, ParentID: NewEntryID(), Children: map[EntryName]EntryID{"a": child, "b": NewEntryID()}},
		WorkspaceManifest{Header: h, ParentID: child, Children: map[EntryName]EntryID{}},
		UserManifest{Header: h, LastProcessedMessage: 3, Workspaces: []WorkspaceEntry{
			{Name: "w", ID: NewEntryID(), Key: []byte("wk"), EncryptedOn: t0},
		}},
	}
}

func TestRemote_DumpLoad(t *testing.T) {
	for _, r := range sampleRemotes() {
		t.Run(string(r.Kind()), func(t *testing.T) {
			b, err := DumpRemote(r)
			require.NoError(t, err)

			again, err := DumpRemote(r)
			require.NoError(t, err)
			assert.Equal(t, b, again, "dump must be deterministic")

			var env map[string]any
			require.NoError(t, codec.Unmarshal(b, &env))
			assert.Equal(t, string(r.Kind()), env["type"])

			back, err := LoadRemote(b)
			require.NoError(t, err)
			if diff := cmp.Diff(r, back, cmpopts.EquateEmpty()); diff != "" {
				t.Fatalf("round trip mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestLocal_DumpLoad(t *testing.T) {
	for _, r := range sampleRemotes() {
		t.Run(string(r.Kind()), func(t *testing.T) {
			l := FromRemote(r)
			switch m := l.(type) {
			case LocalFolderManifest:
				l = m.EvolveChildrenAndMarkUpdated(ChildrenPatch{"a": nil, "c": Ptr(NewEntryID())}, t2)
			case LocalFileManifest:
				l = m.EvolveAndMarkUpdated(FileChanges{DirtyBlocks: []DirtyBlockAccess{{ID: uuid.New(), Offset: 6, Size: 2}}}, t2)
			}

			b, err := DumpLocal(l)
			require.NoError(t, err)
			back, err := LoadLocal(b)
			require.NoError(t, err)
			if diff := cmp.Diff(l, back, localOpts...); diff != "" {
				t.Fatalf("round trip mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestLoad_Rejects(t *testing.T) {
	unknown, err := codec.Marshal(map[string]any{"type": "bogus_manifest", "format": 1})
	require.NoError(t, err)
	_, err = LoadRemote(unknown)
	require.ErrorIs(t, err, common.ErrInvalidInput)
	_, err = LoadLocal(unknown)
	require.ErrorIs(t, err, common.ErrInvalidInput)

	badFormat, err := codec.Marshal(map[string]any{"type": "file_manifest", "format": 99})
	require.NoError(t, err)
	_, err = LoadRemote(badFormat)
	require.ErrorIs(t, err, common.ErrInvalidInput)

	_, err = LoadRemote([]byte{0xff, 0x00})
	require.ErrorIs(t, err, common.ErrInvalidInput)

	// a remote blob is not a local one
	b, err := DumpRemote(sampleRemotes()[0])
	require.NoError(t, err)
	_, err = LoadLocal(b)
	require.ErrorIs(t, err, common.ErrInvalidInput)
}
