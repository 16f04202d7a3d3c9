package cli

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/dmitrijs2005/gophvault/internal/client/client"
	"github.com/dmitrijs2005/gophvault/internal/client/config"
	"github.com/dmitrijs2005/gophvault/internal/client/services"
	"github.com/dmitrijs2005/gophvault/internal/client/storage"
	"github.com/dmitrijs2005/gophvault/internal/logging"
	"github.com/dmitrijs2005/gophvault/internal/manifest"
)

// workspace is the local cache as seen by the commands.
type workspace interface {
	services.Storage
	Close() error
}

type App struct {
	client client.Client
	store  workspace
	sync   *services.SyncService
	blocks *services.BlockService
	device manifest.DeviceID
	in     io.Reader
	out    io.Writer
	now    func() time.Time
}

// NewApp opens the local cache in c.LocalDir with password and prepares a
// lazily connected backend client.
func NewApp(ctx context.Context, c *config.Config, password []byte) (*App, error) {
	device, err := manifest.ParseDeviceID(c.DeviceID)
	if err != nil {
		return nil, err
	}

	st, err := storage.Open(ctx, c.LocalDir, password)
	if err != nil {
		return nil, err
	}
	key, err := st.WorkspaceKey(ctx)
	if err != nil {
		_ = st.Close()
		return nil, err
	}

	logger := logging.NewJSONLogger(os.Stderr, slog.LevelWarn)
	api := client.NewGRPCClient(c.ServerEndpointAddr, c.AccessToken, c.RequestTimeout)

	return newApp(api, st, device, key, c.MaxSyncAttempts, logger), nil
}

func newApp(c client.Client, st workspace, device manifest.DeviceID, key []byte, maxAttempts int, l logging.Logger) *App {
	return &App{
		client: c,
		store:  st,
		sync:   services.NewSyncService(c, st, device, key, maxAttempts, l),
		blocks: services.NewBlockService(c, nil),
		device: device,
		in:     os.Stdin,
		out:    os.Stdout,
		now:    time.Now,
	}
}

// Run executes args as a single command, or starts the prompt when args is
// empty.
func (a *App) Run(ctx context.Context, args []string) error {
	if len(args) == 0 {
		runREPL(ctx, a, a.in, a.out)
		return nil
	}
	_, err := dispatch(ctx, a, a.out, args)
	return err
}

func (a *App) Close() error {
	return errors.Join(a.client.Close(), a.store.Close())
}

// IsUsage reports whether err came from a malformed command line.
func IsUsage(err error) bool {
	var u errUsage
	return errors.As(err, &u) || errors.Is(err, errUnknownCommand)
}
