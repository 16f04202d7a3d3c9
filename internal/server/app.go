// Package server wires the backend together: the PostgreSQL store, the
// services, the gRPC endpoint, the websocket event stream and the
// cross-instance notification bridge.
package server

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/dmitrijs2005/gophvault/internal/events"
	"github.com/dmitrijs2005/gophvault/internal/logging"
	"github.com/dmitrijs2005/gophvault/internal/server/config"
	"github.com/dmitrijs2005/gophvault/internal/server/httpapi"
	"github.com/dmitrijs2005/gophvault/internal/server/notify"
	"github.com/dmitrijs2005/gophvault/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/gophvault/internal/server/services"
	"github.com/dmitrijs2005/gophvault/internal/server/wshub"
	"golang.org/x/sync/errgroup"

	gs "github.com/dmitrijs2005/gophvault/internal/server/grpc"
)

// runner is a long-lived component stopped by cancelling its context.
type runner interface {
	Run(ctx context.Context) error
}

type App struct {
	config  *config.Config
	logger  logging.Logger
	db      *sql.DB
	runners map[string]runner
}

func NewApp(ctx context.Context, c *config.Config) (*App, error) {

	logger := logging.NewSlogLogger(slog.New(slog.NewJSONHandler(os.Stdout, nil)))

	db, err := sql.Open("pgx", c.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("db init error: %w", err)
	}

	m := repomanager.NewPostgresRepositoryManager()
	if err := m.RunMigrations(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrations error: %w", err)
	}

	return newApp(c, logger, db, m), nil
}

func newApp(c *config.Config, logger logging.Logger, db *sql.DB, m repomanager.RepositoryManager) *App {
	bus := events.NewBus(logger)
	hub := wshub.NewHub(logger)

	// Local events reach the hub through the NOTIFY round trip like those
	// of any other instance.
	bus.Subscribe("pg_notify", notify.NewEmitter(db, c.NotifyChannel))

	vs := services.NewVlobService(db, m, bus, c, logger)
	ps := services.NewPkiService(db, m, bus, c, logger)
	orgs := services.NewOrganizationService(db, m, c, logger)
	bs := services.NewBlockService(db, m, c, logger)

	return &App{
		config: c,
		logger: logger,
		db:     db,
		runners: map[string]runner{
			"grpc":     gs.NewGRPCServer(c.EndpointAddrGRPC, logger, vs, ps, bs, orgs, c.SecretKey),
			"http":     httpapi.NewServer(c.EndpointAddrHTTP, httpapi.NewRouter(db, hub.Handler(c.SecretKey)), logger),
			"wshub":    hub,
			"listener": notify.NewListener(c.DatabaseDSN, c.NotifyChannel, hub, logger),
		},
	}
}

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) {
	// Channel to catch OS signals.
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

// Run blocks until a signal arrives or a component fails; the first
// failure stops the others.
func (app *App) Run(ctx context.Context) error {

	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.logger.Info(ctx, "Starting app...")

	app.initSignalHandler(cancelFunc)

	g, ctx := errgroup.WithContext(ctx)
	for name, r := range app.runners {
		g.Go(func() error {
			if err := r.Run(ctx); err != nil {
				app.logger.Error(ctx, "component failed", "component", name, "error", err)
				return fmt.Errorf("%s: %w", name, err)
			}
			return nil
		})
	}

	err := g.Wait()
	if cerr := app.db.Close(); cerr != nil {
		app.logger.Warn(context.Background(), "db close failed", "error", cerr)
	}
	app.logger.Info(context.Background(), "App stopped")
	return err
}
