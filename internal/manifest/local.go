package manifest

import (
	"errors"
	"time"
)

// ErrDirtyBlocks is returned when a file still references unflushed data
// and cannot be materialized as a remote manifest.
var ErrDirtyBlocks = errors.New("file manifest has dirty blocks")

// LocalManifest is a client working copy of an entry wrapping the last known
// remote manifest (or a version 0 placeholder).
//
// ParentID, Created, BaseVersion and IsPlaceholder always read through to
// the base manifest.
type LocalManifest interface {
	Kind() Kind
	Author() DeviceID
	BaseVersion() uint64
	IsPlaceholder() bool
	NeedSync() bool
	Created() time.Time
	Updated() time.Time
	// Remote materializes the canonical form of the local state.
	Remote(o RemoteOverrides) (RemoteManifest, error)
	isLocal()
}

// FromRemote wraps a freshly fetched remote manifest. The result does not
// need sync.
func FromRemote(r RemoteManifest) LocalManifest {
	switch m := r.(type) {
	case FileManifest:
		return LocalFileFromRemote(m)
	case FolderManifest:
		return LocalFolderFromRemote(m)
	case WorkspaceManifest:
		return LocalWorkspaceFromRemote(m)
	case UserManifest:
		return LocalUserFromRemote(m)
	default:
		panic("manifest: unknown remote manifest kind")
	}
}

// ---------------------------------------------------------------- file

type LocalFileManifest struct {
	base        FileManifest
	needSync    bool
	updated     time.Time
	size        uint64
	blocks      []BlockAccess
	dirtyBlocks []DirtyBlockAccess
}

// LocalFileState holds the client-side fields of a LocalFileManifest.
// A zero Updated defaults to the base manifest's Updated.
type LocalFileState struct {
	NeedSync    bool
	Updated     time.Time
	Size        uint64
	Blocks      []BlockAccess
	DirtyBlocks []DirtyBlockAccess
}

func NewLocalFileManifest(base FileManifest, s LocalFileState) LocalFileManifest {
	if s.Updated.IsZero() {
		s.Updated = base.Updated
	}
	return LocalFileManifest{
		base:        base.clone(),
		needSync:    s.NeedSync,
		updated:     s.Updated,
		size:        s.Size,
		blocks:      cloneBlocks(s.Blocks),
		dirtyBlocks: cloneDirtyBlocks(s.DirtyBlocks),
	}
}

func LocalFileFromRemote(r FileManifest) LocalFileManifest {
	return NewLocalFileManifest(r, LocalFileState{
		Updated: r.Updated,
		Size:    r.Size,
		Blocks:  r.Blocks,
	})
}

// MakeFilePlaceholder creates a new empty file that was never synced.
func MakeFilePlaceholder(author DeviceID, parentID EntryID, now time.Time) LocalFileManifest {
	base := FileManifest{
		Header:   Header{Author: author, Version: PlaceholderVersion, Created: now, Updated: now},
		ParentID: parentID,
	}
	return NewLocalFileManifest(base, LocalFileState{NeedSync: true, Updated: now})
}

func (m LocalFileManifest) Kind() Kind                      { return KindFile }
func (m LocalFileManifest) isLocal()                        {}
func (m LocalFileManifest) Author() DeviceID                { return m.base.Author }
func (m LocalFileManifest) ParentID() EntryID               { return m.base.ParentID }
func (m LocalFileManifest) Created() time.Time              { return m.base.Created }
func (m LocalFileManifest) IsPlaceholder() bool             { return m.base.Version == PlaceholderVersion }
func (m LocalFileManifest) NeedSync() bool                  { return m.needSync }
func (m LocalFileManifest) Updated() time.Time              { return m.updated }
func (m LocalFileManifest) Size() uint64                    { return m.size }
func (m LocalFileManifest) Blocks() []BlockAccess           { return cloneBlocks(m.blocks) }
func (m LocalFileManifest) DirtyBlocks() []DirtyBlockAccess { return cloneDirtyBlocks(m.dirtyBlocks) }

// Base returns a copy of the remote manifest this local state was built on.
func (m LocalFileManifest) Base() FileManifest { return m.base.clone() }

// BaseVersion is the remote version the local state derives from; zero
// for a placeholder.
func (m LocalFileManifest) BaseVersion() uint64 { return m.base.Version }

// IsReshaped reports whether every byte of the file lives in uploaded blocks.
func (m LocalFileManifest) IsReshaped() bool { return len(m.dirtyBlocks) == 0 }

// FileChanges lists the fields an Evolve call replaces. Nil fields and nil
// slices are left untouched; pass an empty slice to clear blocks.
type FileChanges struct {
	NeedSync    *bool
	Updated     *time.Time
	Size        *uint64
	Blocks      []BlockAccess
	DirtyBlocks []DirtyBlockAccess
}

// Evolve returns a copy with the given fields replaced. need_sync and
// updated only change when explicitly listed.
func (m LocalFileManifest) Evolve(c FileChanges) LocalFileManifest {
	out := m
	out.blocks = cloneBlocks(m.blocks)
	out.dirtyBlocks = cloneDirtyBlocks(m.dirtyBlocks)
	if c.NeedSync != nil {
		out.needSync = *c.NeedSync
	}
	if c.Updated != nil {
		out.updated = *c.Updated
	}
	if c.Size != nil {
		out.size = *c.Size
	}
	if c.Blocks != nil {
		out.blocks = cloneBlocks(c.Blocks)
	}
	if c.DirtyBlocks != nil {
		out.dirtyBlocks = cloneDirtyBlocks(c.DirtyBlocks)
	}
	return out
}

// EvolveAndMarkUpdated is Evolve for user-visible edits: updated defaults
// to now and need_sync is forced to true.
func (m LocalFileManifest) EvolveAndMarkUpdated(c FileChanges, now time.Time) LocalFileManifest {
	if c.Updated == nil {
		c.Updated = &now
	}
	c.NeedSync = Ptr(true)
	return m.Evolve(c)
}

// ToRemote materializes the canonical file manifest. Dirty blocks must be
// flushed first.
func (m LocalFileManifest) ToRemote(o RemoteOverrides) (FileManifest, error) {
	if !m.IsReshaped() {
		return FileManifest{}, ErrDirtyBlocks
	}
	h := m.base.Header
	h.Updated = m.updated
	return FileManifest{
		Header:   o.apply(h),
		ParentID: m.base.ParentID,
		Size:     m.size,
		Blocks:   cloneBlocks(m.blocks),
	}, nil
}

func (m LocalFileManifest) Remote(o RemoteOverrides) (RemoteManifest, error) {
	r, err := m.ToRemote(o)
	if err != nil {
		return nil, err
	}
	return r, nil
}

// ---------------------------------------------------------------- folder

// ChildrenPatch maps child names to their new id. A nil value deletes the child.
type ChildrenPatch map[EntryName]*EntryID

// applyChildrenPatch unions current with patch, patch winning, and prunes
// names whose patch value is the nil delete marker.
func applyChildrenPatch(current map[EntryName]EntryID, patch ChildrenPatch) map[EntryName]EntryID {
	out := cloneChildren(current)
	for name, id := range patch {
		if id == nil {
			delete(out, name)
			continue
		}
		out[name] = *id
	}
	return out
}

type LocalFolderManifest struct {
	base     FolderManifest
	needSync bool
	updated  time.Time
	children map[EntryName]EntryID
}

// LocalFolderState holds the client-side fields of a folder or workspace.
// A zero Updated defaults to the base manifest's Updated.
type LocalFolderState struct {
	NeedSync bool
	Updated  time.Time
	Children map[EntryName]EntryID
}

func NewLocalFolderManifest(base FolderManifest, s LocalFolderState) LocalFolderManifest {
	if s.Updated.IsZero() {
		s.Updated = base.Updated
	}
	return LocalFolderManifest{
		base:     base.clone(),
		needSync: s.NeedSync,
		updated:  s.Updated,
		children: cloneChildren(s.Children),
	}
}

func LocalFolderFromRemote(r FolderManifest) LocalFolderManifest {
	return NewLocalFolderManifest(r, LocalFolderState{Updated: r.Updated, Children: r.Children})
}

// MakeFolderPlaceholder creates a new empty folder that was never synced.
func MakeFolderPlaceholder(author DeviceID, parentID EntryID, now time.Time) LocalFolderManifest {
	base := FolderManifest{
		Header:   Header{Author: author, Version: PlaceholderVersion, Created: now, Updated: now},
		ParentID: parentID,
		Children: map[EntryName]EntryID{},
	}
	return NewLocalFolderManifest(base, LocalFolderState{NeedSync: true, Updated: now})
}

func (m LocalFolderManifest) Kind() Kind          { return KindFolder }
func (m LocalFolderManifest) isLocal()            {}
func (m LocalFolderManifest) Author() DeviceID    { return m.base.Author }
func (m LocalFolderManifest) ParentID() EntryID   { return m.base.ParentID }
func (m LocalFolderManifest) Created() time.Time  { return m.base.Created }
func (m LocalFolderManifest) IsPlaceholder() bool { return m.base.Version == PlaceholderVersion }
func (m LocalFolderManifest) NeedSync() bool      { return m.needSync }
func (m LocalFolderManifest) Updated() time.Time  { return m.updated }

// Base returns a copy of the remote manifest this local state was built on.
func (m LocalFolderManifest) Base() FolderManifest { return m.base.clone() }

// BaseVersion is the remote version the local state derives from; zero
// for a placeholder.
func (m LocalFolderManifest) BaseVersion() uint64 { return m.base.Version }

// Children returns a copy of the name to id mapping, local changes included.
func (m LocalFolderManifest) Children() map[EntryName]EntryID { return cloneChildren(m.children) }

// Child looks up a child id by name.
func (m LocalFolderManifest) Child(name EntryName) (EntryID, bool) {
	id, ok := m.children[name]
	return id, ok
}

// FolderChanges lists the fields an Evolve call replaces. A nil Children
// map is left untouched.
type FolderChanges struct {
	NeedSync *bool
	Updated  *time.Time
	Children map[EntryName]EntryID
}

func (m LocalFolderManifest) Evolve(c FolderChanges) LocalFolderManifest {
	out := m
	out.children = cloneChildren(m.children)
	if c.NeedSync != nil {
		out.needSync = *c.NeedSync
	}
	if c.Updated != nil {
		out.updated = *c.Updated
	}
	if c.Children != nil {
		out.children = cloneChildren(c.Children)
	}
	return out
}

func (m LocalFolderManifest) EvolveAndMarkUpdated(c FolderChanges, now time.Time) LocalFolderManifest {
	if c.Updated == nil {
		c.Updated = &now
	}
	c.NeedSync = Ptr(true)
	return m.Evolve(c)
}

// EvolveChildren applies patch to the children map without touching
// need_sync or updated.
func (m LocalFolderManifest) EvolveChildren(patch ChildrenPatch) LocalFolderManifest {
	return m.Evolve(FolderChanges{Children: applyChildrenPatch(m.children, patch)})
}

func (m LocalFolderManifest) EvolveChildrenAndMarkUpdated(patch ChildrenPatch, now time.Time) LocalFolderManifest {
	return m.EvolveAndMarkUpdated(FolderChanges{Children: applyChildrenPatch(m.children, patch)}, now)
}

func (m LocalFolderManifest) ToRemote(o RemoteOverrides) FolderManifest {
	h := m.base.Header
	h.Updated = m.updated
	return FolderManifest{
		Header:   o.apply(h),
		ParentID: m.base.ParentID,
		Children: cloneChildren(m.children),
	}
}

func (m LocalFolderManifest) Remote(o RemoteOverrides) (RemoteManifest, error) {
	return m.ToRemote(o), nil
}

// ---------------------------------------------------------------- workspace

type LocalWorkspaceManifest struct {
	base     WorkspaceManifest
	needSync bool
	updated  time.Time
	children map[EntryName]EntryID
}

func NewLocalWorkspaceManifest(base WorkspaceManifest, s LocalFolderState) LocalWorkspaceManifest {
	if s.Updated.IsZero() {
		s.Updated = base.Updated
	}
	return LocalWorkspaceManifest{
		base:     base.clone(),
		needSync: s.NeedSync,
		updated:  s.Updated,
		children: cloneChildren(s.Children),
	}
}

func LocalWorkspaceFromRemote(r WorkspaceManifest) LocalWorkspaceManifest {
	return NewLocalWorkspaceManifest(r, LocalFolderState{Updated: r.Updated, Children: r.Children})
}

// MakeWorkspacePlaceholder creates a new empty workspace root. A workspace
// is its own parent.
func MakeWorkspacePlaceholder(author DeviceID, id EntryID, now time.Time) LocalWorkspaceManifest {
	base := WorkspaceManifest{
		Header:   Header{Author: author, Version: PlaceholderVersion, Created: now, Updated: now},
		ParentID: id,
		Children: map[EntryName]EntryID{},
	}
	return NewLocalWorkspaceManifest(base, LocalFolderState{NeedSync: true, Updated: now})
}

func (m LocalWorkspaceManifest) Kind() Kind          { return KindWorkspace }
func (m LocalWorkspaceManifest) isLocal()            {}
func (m LocalWorkspaceManifest) Author() DeviceID    { return m.base.Author }
func (m LocalWorkspaceManifest) ParentID() EntryID   { return m.base.ParentID }
func (m LocalWorkspaceManifest) Created() time.Time  { return m.base.Created }
func (m LocalWorkspaceManifest) IsPlaceholder() bool { return m.base.Version == PlaceholderVersion }
func (m LocalWorkspaceManifest) NeedSync() bool      { return m.needSync }
func (m LocalWorkspaceManifest) Updated() time.Time  { return m.updated }

// Base returns a copy of the remote manifest this local state was built on.
func (m LocalWorkspaceManifest) Base() WorkspaceManifest { return m.base.clone() }

// BaseVersion is the remote version the local state derives from; zero
// for a placeholder.
func (m LocalWorkspaceManifest) BaseVersion() uint64 { return m.base.Version }

// Children returns a copy of the name to id mapping, local changes included.
func (m LocalWorkspaceManifest) Children() map[EntryName]EntryID { return cloneChildren(m.children) }

// Child looks up a child id by name.
func (m LocalWorkspaceManifest) Child(name EntryName) (EntryID, bool) {
	id, ok := m.children[name]
	return id, ok
}

func (m LocalWorkspaceManifest) Evolve(c FolderChanges) LocalWorkspaceManifest {
	out := m
	out.children = cloneChildren(m.children)
	if c.NeedSync != nil {
		out.needSync = *c.NeedSync
	}
	if c.Updated != nil {
		out.updated = *c.Updated
	}
	if c.Children != nil {
		out.children = cloneChildren(c.Children)
	}
	return out
}

func (m LocalWorkspaceManifest) EvolveAndMarkUpdated(c FolderChanges, now time.Time) LocalWorkspaceManifest {
	if c.Updated == nil {
		c.Updated = &now
	}
	c.NeedSync = Ptr(true)
	return m.Evolve(c)
}

func (m LocalWorkspaceManifest) EvolveChildren(patch ChildrenPatch) LocalWorkspaceManifest {
	return m.Evolve(FolderChanges{Children: applyChildrenPatch(m.children, patch)})
}

func (m LocalWorkspaceManifest) EvolveChildrenAndMarkUpdated(patch ChildrenPatch, now time.Time) LocalWorkspaceManifest {
	return m.EvolveAndMarkUpdated(FolderChanges{Children: applyChildrenPatch(m.children, patch)}, now)
}

func (m LocalWorkspaceManifest) ToRemote(o RemoteOverrides) WorkspaceManifest {
	h := m.base.Header
	h.Updated = m.updated
	return WorkspaceManifest{
		Header:   o.apply(h),
		ParentID: m.base.ParentID,
		Children: cloneChildren(m.children),
	}
}

func (m LocalWorkspaceManifest) Remote(o RemoteOverrides) (RemoteManifest, error) {
	return m.ToRemote(o), nil
}

// ---------------------------------------------------------------- user

type LocalUserManifest struct {
	base                 UserManifest
	needSync             bool
	updated              time.Time
	lastProcessedMessage uint64
	workspaces           []WorkspaceEntry
}

// LocalUserState holds the client-side fields of a LocalUserManifest.
// A zero Updated defaults to the base manifest's Updated.
type LocalUserState struct {
	NeedSync             bool
	Updated              time.Time
	LastProcessedMessage uint64
	Workspaces           []WorkspaceEntry
}

func NewLocalUserManifest(base UserManifest, s LocalUserState) LocalUserManifest {
	if s.Updated.IsZero() {
		s.Updated = base.Updated
	}
	return LocalUserManifest{
		base:                 base.clone(),
		needSync:             s.NeedSync,
		updated:              s.Updated,
		lastProcessedMessage: s.LastProcessedMessage,
		workspaces:           cloneWorkspaces(s.Workspaces),
	}
}

func LocalUserFromRemote(r UserManifest) LocalUserManifest {
	return NewLocalUserManifest(r, LocalUserState{
		Updated:              r.Updated,
		LastProcessedMessage: r.LastProcessedMessage,
		Workspaces:           r.Workspaces,
	})
}

func MakeUserPlaceholder(author DeviceID, now time.Time) LocalUserManifest {
	base := UserManifest{
		Header: Header{Author: author, Version: PlaceholderVersion, Created: now, Updated: now},
	}
	return NewLocalUserManifest(base, LocalUserState{NeedSync: true, Updated: now})
}

func (m LocalUserManifest) Kind() Kind                   { return KindUser }
func (m LocalUserManifest) isLocal()                     {}
func (m LocalUserManifest) Author() DeviceID             { return m.base.Author }
func (m LocalUserManifest) Created() time.Time           { return m.base.Created }
func (m LocalUserManifest) IsPlaceholder() bool          { return m.base.Version == PlaceholderVersion }
func (m LocalUserManifest) NeedSync() bool               { return m.needSync }
func (m LocalUserManifest) Updated() time.Time           { return m.updated }
func (m LocalUserManifest) LastProcessedMessage() uint64 { return m.lastProcessedMessage }

// Base returns a copy of the remote manifest this local state was built on.
func (m LocalUserManifest) Base() UserManifest { return m.base.clone() }

// BaseVersion is the remote version the local state derives from; zero
// for a placeholder.
func (m LocalUserManifest) BaseVersion() uint64 { return m.base.Version }

// Workspaces returns a copy of the known workspace entries.
func (m LocalUserManifest) Workspaces() []WorkspaceEntry { return cloneWorkspaces(m.workspaces) }

// WorkspaceEntry looks up a workspace entry by workspace id.
func (m LocalUserManifest) WorkspaceEntry(id EntryID) (WorkspaceEntry, bool) {
	return findWorkspace(m.workspaces, id)
}

// UserChanges lists the fields an Evolve call replaces. A nil Workspaces
// slice is left untouched.
type UserChanges struct {
	NeedSync             *bool
	Updated              *time.Time
	LastProcessedMessage *uint64
	Workspaces           []WorkspaceEntry
}

func (m LocalUserManifest) Evolve(c UserChanges) LocalUserManifest {
	out := m
	out.workspaces = cloneWorkspaces(m.workspaces)
	if c.NeedSync != nil {
		out.needSync = *c.NeedSync
	}
	if c.Updated != nil {
		out.updated = *c.Updated
	}
	if c.LastProcessedMessage != nil {
		out.lastProcessedMessage = *c.LastProcessedMessage
	}
	if c.Workspaces != nil {
		out.workspaces = cloneWorkspaces(c.Workspaces)
	}
	return out
}

func (m LocalUserManifest) EvolveAndMarkUpdated(c UserChanges, now time.Time) LocalUserManifest {
	if c.Updated == nil {
		c.Updated = &now
	}
	c.NeedSync = Ptr(true)
	return m.Evolve(c)
}

// mergeWorkspaces replaces entries sharing an id and appends the rest,
// keeping the existing order.
func mergeWorkspaces(current []WorkspaceEntry, entries ...WorkspaceEntry) []WorkspaceEntry {
	out := cloneWorkspaces(current)
	if out == nil {
		out = []WorkspaceEntry{}
	}
next:
	for _, e := range entries {
		e.Key = append([]byte(nil), e.Key...)
		for i := range out {
			if out[i].ID == e.ID {
				out[i] = e
				continue next
			}
		}
		out = append(out, e)
	}
	return out
}

// EvolveWorkspaces adds or replaces workspace entries by id.
func (m LocalUserManifest) EvolveWorkspaces(entries ...WorkspaceEntry) LocalUserManifest {
	return m.Evolve(UserChanges{Workspaces: mergeWorkspaces(m.workspaces, entries...)})
}

func (m LocalUserManifest) EvolveWorkspacesAndMarkUpdated(now time.Time, entries ...WorkspaceEntry) LocalUserManifest {
	return m.EvolveAndMarkUpdated(UserChanges{Workspaces: mergeWorkspaces(m.workspaces, entries...)}, now)
}

func (m LocalUserManifest) ToRemote(o RemoteOverrides) UserManifest {
	h := m.base.Header
	h.Updated = m.updated
	return UserManifest{
		Header:               o.apply(h),
		LastProcessedMessage: m.lastProcessedMessage,
		Workspaces:           cloneWorkspaces(m.workspaces),
	}
}

func (m LocalUserManifest) Remote(o RemoteOverrides) (RemoteManifest, error) {
	return m.ToRemote(o), nil
}
