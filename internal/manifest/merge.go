package manifest

import (
	"bytes"
	"fmt"
	"maps"
	"time"

	"github.com/dmitrijs2005/gophvault/internal/common"
)

// Merge rebases local on top of a newer remote manifest of the same entry,
// typically after a VersionConflict.
//
//   - remote not newer than the local base: local is returned unchanged.
//   - local has nothing to sync: the remote manifest is adopted as is.
//   - folders and workspaces: three-way merge of children; on a name clash
//     the local id wins.
//   - files: local content wins on top of the new base.
//   - user manifests: workspace entries are unioned by id, local wins.
func Merge(local LocalManifest, remote RemoteManifest) (LocalManifest, error) {
	if local.Kind() != remote.Kind() {
		return nil, fmt.Errorf("%w: cannot merge %s into %s", common.ErrInvalidInput, remote.Kind(), local.Kind())
	}
	rh := remote.ManifestHeader()
	if rh.Version <= local.BaseVersion() {
		return local, nil
	}
	if !local.NeedSync() {
		return FromRemote(remote), nil
	}

	switch l := local.(type) {
	case LocalFileManifest:
		r, ok := remote.(FileManifest)
		if !ok {
			return nil, unexpectedRemote(remote)
		}
		return NewLocalFileManifest(r, LocalFileState{
			NeedSync:    true,
			Updated:     laterOf(l.updated, r.Updated),
			Size:        l.size,
			Blocks:      l.blocks,
			DirtyBlocks: l.dirtyBlocks,
		}), nil

	case LocalFolderManifest:
		r, ok := remote.(FolderManifest)
		if !ok {
			return nil, unexpectedRemote(remote)
		}
		children := mergeChildren(l.base.Children, l.children, r.Children)
		return NewLocalFolderManifest(r, folderMergeState(l.updated, r.Header, children, r.Children)), nil

	case LocalWorkspaceManifest:
		r, ok := remote.(WorkspaceManifest)
		if !ok {
			return nil, unexpectedRemote(remote)
		}
		children := mergeChildren(l.base.Children, l.children, r.Children)
		return NewLocalWorkspaceManifest(r, folderMergeState(l.updated, r.Header, children, r.Children)), nil

	case LocalUserManifest:
		r, ok := remote.(UserManifest)
		if !ok {
			return nil, unexpectedRemote(remote)
		}
		var changed []WorkspaceEntry
		for _, w := range l.workspaces {
			if prev, ok := findWorkspace(l.base.Workspaces, w.ID); !ok || !sameWorkspace(prev, w) {
				changed = append(changed, w)
			}
		}
		workspaces := mergeWorkspaces(r.Workspaces, changed...)
		last := max(l.lastProcessedMessage, r.LastProcessedMessage)
		needSync := len(changed) > 0 || last != r.LastProcessedMessage
		updated := r.Updated
		if needSync {
			updated = laterOf(l.updated, r.Updated)
		}
		return NewLocalUserManifest(r, LocalUserState{
			NeedSync:             needSync,
			Updated:              updated,
			LastProcessedMessage: last,
			Workspaces:           workspaces,
		}), nil
	}
	return nil, fmt.Errorf("%w: unsupported local manifest %T", common.ErrInvalidInput, local)
}

func unexpectedRemote(r RemoteManifest) error {
	return fmt.Errorf("%w: unexpected remote manifest %T", common.ErrInvalidInput, r)
}

func folderMergeState(localUpdated time.Time, remote Header, merged, remoteChildren map[EntryName]EntryID) LocalFolderState {
	needSync := !maps.Equal(merged, remoteChildren)
	updated := remote.Updated
	if needSync {
		updated = laterOf(localUpdated, remote.Updated)
	}
	return LocalFolderState{NeedSync: needSync, Updated: updated, Children: merged}
}

// mergeChildren starts from the remote children and replays the local
// additions, renames and removals made since base.
func mergeChildren(base, local, remote map[EntryName]EntryID) map[EntryName]EntryID {
	out := cloneChildren(remote)
	for name, id := range local {
		if prev, ok := base[name]; !ok || prev != id {
			out[name] = id
		}
	}
	for name, id := range base {
		if _, kept := local[name]; kept {
			continue
		}
		// Removed locally; keep it only if the remote side changed it.
		if rid, ok := remote[name]; ok && rid == id {
			delete(out, name)
		}
	}
	return out
}

func sameWorkspace(a, b WorkspaceEntry) bool {
	return a.ID == b.ID && a.Name == b.Name && bytes.Equal(a.Key, b.Key) && a.EncryptedOn.Equal(b.EncryptedOn)
}

func laterOf(a, b time.Time) time.Time {
	if a.After(b) {
		return a
	}
	return b
}
