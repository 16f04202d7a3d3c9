package manifest

import (
	"maps"
	"time"
)

// Kind is the stable discriminant of a manifest on the wire.
type Kind string

const (
	KindFile      Kind = "file_manifest"
	KindFolder    Kind = "folder_manifest"
	KindWorkspace Kind = "workspace_manifest"
	KindUser      Kind = "user_manifest"
)

// PlaceholderVersion is the version of an entry that was never synced.
// It is never persisted by the vlob store.
const PlaceholderVersion uint64 = 0

// Header carries the fields shared by every remote manifest kind.
type Header struct {
	Author  DeviceID  `cbor:"author"`
	Version uint64    `cbor:"version"`
	Created time.Time `cbor:"created"`
	Updated time.Time `cbor:"updated"`
}

// ManifestHeader returns the shared header of a manifest.
func (h Header) ManifestHeader() Header { return h }

// RemoteManifest is the canonical, versioned form of an entry: one of
// FileManifest, FolderManifest, WorkspaceManifest or UserManifest.
// Values are never modified after construction.
type RemoteManifest interface {
	Kind() Kind
	ManifestHeader() Header
	isRemote()
}

type FileManifest struct {
	Header
	ParentID EntryID       `cbor:"parent"`
	Size     uint64        `cbor:"size"`
	Blocks   []BlockAccess `cbor:"blocks"`
}

func (FileManifest) Kind() Kind { return KindFile }
func (FileManifest) isRemote()  {}

type FolderManifest struct {
	Header
	ParentID EntryID               `cbor:"parent"`
	Children map[EntryName]EntryID `cbor:"children"`
}

func (FolderManifest) Kind() Kind { return KindFolder }
func (FolderManifest) isRemote()  {}

type WorkspaceManifest struct {
	Header
	ParentID EntryID               `cbor:"parent"`
	Children map[EntryName]EntryID `cbor:"children"`
}

func (WorkspaceManifest) Kind() Kind { return KindWorkspace }
func (WorkspaceManifest) isRemote()  {}

// WorkspaceEntry is a user's reference to a workspace and its secret key.
type WorkspaceEntry struct {
	Name        EntryName `cbor:"name"`
	ID          EntryID   `cbor:"id"`
	Key         []byte    `cbor:"key"`
	EncryptedOn time.Time `cbor:"encrypted_on"`
}

type UserManifest struct {
	Header
	LastProcessedMessage uint64           `cbor:"last_processed_message"`
	Workspaces           []WorkspaceEntry `cbor:"workspaces"`
}

func (UserManifest) Kind() Kind { return KindUser }
func (UserManifest) isRemote()  {}

// RemoteOverrides replaces header fields when materializing a remote
// manifest from a local one. Nil fields keep the local value.
type RemoteOverrides struct {
	Author  *DeviceID
	Version *uint64
	Updated *time.Time
}

func (o RemoteOverrides) apply(h Header) Header {
	if o.Author != nil {
		h.Author = *o.Author
	}
	if o.Version != nil {
		h.Version = *o.Version
	}
	if o.Updated != nil {
		h.Updated = *o.Updated
	}
	return h
}

// Ptr returns a pointer to v; handy for change sets and overrides.
func Ptr[T any](v T) *T { return &v }

func cloneChildren(in map[EntryName]EntryID) map[EntryName]EntryID {
	out := make(map[EntryName]EntryID, len(in))
	maps.Copy(out, in)
	return out
}

func cloneWorkspaces(in []WorkspaceEntry) []WorkspaceEntry {
	if in == nil {
		return nil
	}
	out := make([]WorkspaceEntry, len(in))
	for i, w := range in {
		w.Key = append([]byte(nil), w.Key...)
		out[i] = w
	}
	return out
}

func (m FileManifest) clone() FileManifest {
	m.Blocks = cloneBlocks(m.Blocks)
	return m
}

func (m FolderManifest) clone() FolderManifest {
	m.Children = cloneChildren(m.Children)
	return m
}

func (m WorkspaceManifest) clone() WorkspaceManifest {
	m.Children = cloneChildren(m.Children)
	return m
}

func (m UserManifest) clone() UserManifest {
	m.Workspaces = cloneWorkspaces(m.Workspaces)
	return m
}

// WithVersion returns a copy of m carrying version v.
func (m FileManifest) WithVersion(v uint64) FileManifest {
	out := m.clone()
	out.Version = v
	return out
}

func (m FolderManifest) WithVersion(v uint64) FolderManifest {
	out := m.clone()
	out.Version = v
	return out
}

func (m WorkspaceManifest) WithVersion(v uint64) WorkspaceManifest {
	out := m.clone()
	out.Version = v
	return out
}

func (m UserManifest) WithVersion(v uint64) UserManifest {
	out := m.clone()
	out.Version = v
	return out
}

// WorkspaceEntry looks up a workspace by id.
func (m UserManifest) WorkspaceEntry(id EntryID) (WorkspaceEntry, bool) {
	return findWorkspace(m.Workspaces, id)
}

func findWorkspace(in []WorkspaceEntry, id EntryID) (WorkspaceEntry, bool) {
	for _, w := range in {
		if w.ID == id {
			w.Key = append([]byte(nil), w.Key...)
			return w, true
		}
	}
	return WorkspaceEntry{}, false
}
