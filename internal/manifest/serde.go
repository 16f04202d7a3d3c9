package manifest

import (
	"fmt"
	"time"

	"github.com/dmitrijs2005/gophvault/internal/codec"
	"github.com/dmitrijs2005/gophvault/internal/common"
)

// FormatVersion is written next to the type discriminant of every blob.
const FormatVersion = 1

const (
	kindLocalFile      Kind = "local_file_manifest"
	kindLocalFolder    Kind = "local_folder_manifest"
	kindLocalWorkspace Kind = "local_workspace_manifest"
	kindLocalUser      Kind = "local_user_manifest"
)

type envelope struct {
	Type   Kind `cbor:"type"`
	Format int  `cbor:"format"`
}

type fileWire struct {
	Type   Kind `cbor:"type"`
	Format int  `cbor:"format"`
	FileManifest
}

type folderWire struct {
	Type   Kind `cbor:"type"`
	Format int  `cbor:"format"`
	FolderManifest
}

type workspaceWire struct {
	Type   Kind `cbor:"type"`
	Format int  `cbor:"format"`
	WorkspaceManifest
}

type userWire struct {
	Type   Kind `cbor:"type"`
	Format int  `cbor:"format"`
	UserManifest
}

// DumpRemote serializes a remote manifest. Equal manifests produce equal bytes.
func DumpRemote(m RemoteManifest) ([]byte, error) {
	switch v := m.(type) {
	case FileManifest:
		return codec.Marshal(fileWire{KindFile, FormatVersion, v})
	case FolderManifest:
		return codec.Marshal(folderWire{KindFolder, FormatVersion, v})
	case WorkspaceManifest:
		return codec.Marshal(workspaceWire{KindWorkspace, FormatVersion, v})
	case UserManifest:
		return codec.Marshal(userWire{KindUser, FormatVersion, v})
	default:
		return nil, fmt.Errorf("%w: cannot dump %T", common.ErrInvalidInput, m)
	}
}

func readEnvelope(b []byte) (envelope, error) {
	var env envelope
	if err := codec.Unmarshal(b, &env); err != nil {
		return env, fmt.Errorf("%w: malformed manifest: %v", common.ErrInvalidInput, err)
	}
	if env.Format != FormatVersion {
		return env, fmt.Errorf("%w: unsupported manifest format %d", common.ErrInvalidInput, env.Format)
	}
	return env, nil
}

func decodeAs[T any](b []byte) (T, error) {
	var v T
	if err := codec.Unmarshal(b, &v); err != nil {
		return v, fmt.Errorf("%w: malformed manifest: %v", common.ErrInvalidInput, err)
	}
	return v, nil
}

// LoadRemote parses a blob produced by DumpRemote.
func LoadRemote(b []byte) (RemoteManifest, error) {
	env, err := readEnvelope(b)
	if err != nil {
		return nil, err
	}
	switch env.Type {
	case KindFile:
		w, err := decodeAs[fileWire](b)
		return w.FileManifest, err
	case KindFolder:
		w, err := decodeAs[folderWire](b)
		if w.Children == nil {
			w.Children = map[EntryName]EntryID{}
		}
		return w.FolderManifest, err
	case KindWorkspace:
		w, err := decodeAs[workspaceWire](b)
		if w.Children == nil {
			w.Children = map[EntryName]EntryID{}
		}
		return w.WorkspaceManifest, err
	case KindUser:
		w, err := decodeAs[userWire](b)
		return w.UserManifest, err
	default:
		return nil, fmt.Errorf("%w: unknown manifest type %q", common.ErrInvalidInput, env.Type)
	}
}

type localFileWire struct {
	Type        Kind               `cbor:"type"`
	Format      int                `cbor:"format"`
	Base        FileManifest       `cbor:"base"`
	NeedSync    bool               `cbor:"need_sync"`
	Updated     time.Time          `cbor:"updated"`
	Size        uint64             `cbor:"size"`
	Blocks      []BlockAccess      `cbor:"blocks"`
	DirtyBlocks []DirtyBlockAccess `cbor:"dirty_blocks"`
}

type localFolderWire struct {
	Type     Kind                  `cbor:"type"`
	Format   int                   `cbor:"format"`
	Base     FolderManifest        `cbor:"base"`
	NeedSync bool                  `cbor:"need_sync"`
	Updated  time.Time             `cbor:"updated"`
	Children map[EntryName]EntryID `cbor:"children"`
}

type localWorkspaceWire struct {
	Type     Kind                  `cbor:"type"`
	Format   int                   `cbor:"format"`
	Base     WorkspaceManifest     `cbor:"base"`
	NeedSync bool                  `cbor:"need_sync"`
	Updated  time.Time             `cbor:"updated"`
	Children map[EntryName]EntryID `cbor:"children"`
}

type localUserWire struct {
	Type                 Kind             `cbor:"type"`
	Format               int              `cbor:"format"`
	Base                 UserManifest     `cbor:"base"`
	NeedSync             bool             `cbor:"need_sync"`
	Updated              time.Time        `cbor:"updated"`
	LastProcessedMessage uint64           `cbor:"last_processed_message"`
	Workspaces           []WorkspaceEntry `cbor:"workspaces"`
}

// DumpLocal serializes a local manifest for the client cache.
func DumpLocal(m LocalManifest) ([]byte, error) {
	switch v := m.(type) {
	case LocalFileManifest:
		return codec.Marshal(localFileWire{
			Type: kindLocalFile, Format: FormatVersion, Base: v.base,
			NeedSync: v.needSync, Updated: v.updated,
			Size: v.size, Blocks: v.blocks, DirtyBlocks: v.dirtyBlocks,
		})
	case LocalFolderManifest:
		return codec.Marshal(localFolderWire{
			Type: kindLocalFolder, Format: FormatVersion, Base: v.base,
			NeedSync: v.needSync, Updated: v.updated, Children: v.children,
		})
	case LocalWorkspaceManifest:
		return codec.Marshal(localWorkspaceWire{
			Type: kindLocalWorkspace, Format: FormatVersion, Base: v.base,
			NeedSync: v.needSync, Updated: v.updated, Children: v.children,
		})
	case LocalUserManifest:
		return codec.Marshal(localUserWire{
			Type: kindLocalUser, Format: FormatVersion, Base: v.base,
			NeedSync: v.needSync, Updated: v.updated,
			LastProcessedMessage: v.lastProcessedMessage, Workspaces: v.workspaces,
		})
	default:
		return nil, fmt.Errorf("%w: cannot dump %T", common.ErrInvalidInput, m)
	}
}

// LoadLocal parses a blob produced by DumpLocal.
func LoadLocal(b []byte) (LocalManifest, error) {
	env, err := readEnvelope(b)
	if err != nil {
		return nil, err
	}
	switch env.Type {
	case kindLocalFile:
		w, err := decodeAs[localFileWire](b)
		if err != nil {
			return nil, err
		}
		return NewLocalFileManifest(w.Base, LocalFileState{
			NeedSync: w.NeedSync, Updated: w.Updated, Size: w.Size,
			Blocks: w.Blocks, DirtyBlocks: w.DirtyBlocks,
		}), nil
	case kindLocalFolder:
		w, err := decodeAs[localFolderWire](b)
		if err != nil {
			return nil, err
		}
		return NewLocalFolderManifest(w.Base, LocalFolderState{
			NeedSync: w.NeedSync, Updated: w.Updated, Children: w.Children,
		}), nil
	case kindLocalWorkspace:
		w, err := decodeAs[localWorkspaceWire](b)
		if err != nil {
			return nil, err
		}
		return NewLocalWorkspaceManifest(w.Base, LocalFolderState{
			NeedSync: w.NeedSync, Updated: w.Updated, Children: w.Children,
		}), nil
	case kindLocalUser:
		w, err := decodeAs[localUserWire](b)
		if err != nil {
			return nil, err
		}
		return NewLocalUserManifest(w.Base, LocalUserState{
			NeedSync: w.NeedSync, Updated: w.Updated,
			LastProcessedMessage: w.LastProcessedMessage, Workspaces: w.Workspaces,
		}), nil
	default:
		return nil, fmt.Errorf("%w: unknown local manifest type %q", common.ErrInvalidInput, env.Type)
	}
}
