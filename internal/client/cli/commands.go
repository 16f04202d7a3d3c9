package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/dmitrijs2005/gophvault/internal/client/client"
	"github.com/dmitrijs2005/gophvault/internal/manifest"
	"github.com/google/uuid"
)

// blockSize is the chunk size files are split into on put.
const blockSize = 512 * 1024

func (a *App) Ping(ctx context.Context) error {
	v, err := a.client.Ping(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "pong (api %s)\n", v)
	return nil
}

func (a *App) Pending(ctx context.Context) error {
	ids, err := a.store.NeedSyncEntries(ctx)
	if err != nil {
		return err
	}
	if len(ids) == 0 {
		fmt.Fprintln(a.out, "nothing to sync")
		return nil
	}
	for _, id := range ids {
		fmt.Fprintln(a.out, id)
	}
	return nil
}

func (a *App) Sync(ctx context.Context) error {
	if err := a.sync.SyncAll(ctx); err != nil {
		return err
	}
	fmt.Fprintln(a.out, "synced")
	return nil
}

func (a *App) Pull(ctx context.Context, entryID string) error {
	id, err := manifest.ParseEntryID(entryID)
	if err != nil {
		return err
	}
	if err := a.sync.Pull(ctx, id); err != nil {
		return err
	}
	fmt.Fprintln(a.out, "up to date")
	return nil
}

// Put uploads the file at path block by block, records it as a new entry
// and pushes it. An unreachable backend leaves the entry pending.
func (a *App) Put(ctx context.Context, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	var blocks []manifest.BlockAccess
	for off := 0; off < len(data); off += blockSize {
		end := min(off+blockSize, len(data))
		access, err := a.blocks.Upload(ctx, data[off:end])
		if err != nil {
			return err
		}
		access.Offset = uint64(off)
		blocks = append(blocks, access)
	}

	now := a.now()
	id := manifest.NewEntryID()
	m := manifest.MakeFilePlaceholder(a.device, manifest.EntryID{}, now).
		EvolveAndMarkUpdated(manifest.FileChanges{
			Size:   manifest.Ptr(uint64(len(data))),
			Blocks: blocks,
		}, now)
	if err := a.store.SetManifest(ctx, id, m); err != nil {
		return err
	}

	err = a.sync.Push(ctx, id)
	if errors.Is(err, client.ErrUnavailable) {
		fmt.Fprintf(a.out, "%s (stored locally, pending sync)\n", id)
		return nil
	}
	if err != nil {
		return err
	}
	fmt.Fprintln(a.out, id)
	return nil
}

// Get reassembles a file entry from its blocks and writes it to path.
func (a *App) Get(ctx context.Context, entryID, path string) error {
	id, err := manifest.ParseEntryID(entryID)
	if err != nil {
		return err
	}
	m, err := a.store.GetManifest(ctx, id)
	if err != nil {
		return err
	}
	file, ok := m.(manifest.LocalFileManifest)
	if !ok {
		return fmt.Errorf("%s is a %s, not a file", id, m.Kind())
	}
	if !file.IsReshaped() {
		return manifest.ErrDirtyBlocks
	}

	buf := make([]byte, file.Size())
	for _, b := range file.Blocks() {
		data, err := a.blocks.Download(ctx, b)
		if err != nil {
			return err
		}
		if b.Offset+uint64(len(data)) > uint64(len(buf)) {
			return fmt.Errorf("block %s overflows file size %d", b.ID, len(buf))
		}
		copy(buf[b.Offset:], data)
	}

	if err := os.WriteFile(path, buf, 0o600); err != nil {
		return err
	}
	fmt.Fprintf(a.out, "%d bytes written to %s\n", len(buf), path)
	return nil
}

func (a *App) Enrollment(ctx context.Context, org, enrollmentID string) error {
	id, err := uuid.Parse(enrollmentID)
	if err != nil {
		return err
	}
	st, err := a.client.PkiInfo(ctx, org, id)
	if err != nil {
		return err
	}

	fmt.Fprintf(a.out, "enrollment %s: %s\n", st.EnrollmentID, st.State)
	for _, ts := range []struct {
		label string
		at    *time.Time
	}{
		{"submitted", st.SubmittedOn},
		{"cancelled", st.CancelledOn},
		{"rejected", st.RejectedOn},
		{"accepted", st.AcceptedOn},
	} {
		if ts.at != nil {
			fmt.Fprintf(a.out, "  %-9s %s\n", ts.label, ts.at.UTC().Format(time.RFC3339))
		}
	}
	return nil
}

func (a *App) OrgConfig(ctx context.Context) error {
	c, err := a.client.OrganizationConfig(ctx)
	if err != nil {
		return err
	}
	if c.ActiveUsersLimit == nil {
		fmt.Fprintln(a.out, "active users limit: unlimited")
		return nil
	}
	fmt.Fprintf(a.out, "active users limit: %d\n", *c.ActiveUsersLimit)
	return nil
}
