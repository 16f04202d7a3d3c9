// Command tokengen mints device access tokens. With -bootstrap it first
// creates the organization and its first admin user and device.
package main

import (
	"context"
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"time"

	"github.com/dmitrijs2005/gophvault/internal/common"
	"github.com/dmitrijs2005/gophvault/internal/flagx"
	"github.com/dmitrijs2005/gophvault/internal/logging"
	"github.com/dmitrijs2005/gophvault/internal/manifest"
	"github.com/dmitrijs2005/gophvault/internal/server/config"
	"github.com/dmitrijs2005/gophvault/internal/server/models"
	"github.com/dmitrijs2005/gophvault/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/gophvault/internal/server/services"
)

type options struct {
	org       string
	device    string
	bootstrap bool
	limit     int64
}

func parseOptions(argv []string) (*options, error) {
	o := &options{}
	fs := flag.NewFlagSet("tokengen", flag.ContinueOnError)
	fs.StringVar(&o.org, "org", "", "organization id")
	fs.StringVar(&o.device, "device", "", "device id (user@device)")
	fs.BoolVar(&o.bootstrap, "bootstrap", false, "create the organization and an admin device first")
	fs.Int64Var(&o.limit, "limit", -1, "active users limit for -bootstrap (-1: unlimited)")

	if err := fs.Parse(flagx.FilterArgs(argv, []string{"-org", "-device", "-bootstrap", "-limit"})); err != nil {
		return nil, err
	}
	if o.org == "" || o.device == "" {
		return nil, errors.New("-org and -device are required")
	}
	return o, nil
}

func bootstrap(ctx context.Context, o *options, orgs *services.OrganizationService, users *services.UserService) error {
	deviceID, err := manifest.ParseDeviceID(o.device)
	if err != nil {
		return err
	}

	var limit *int64
	if o.limit >= 0 {
		limit = &o.limit
	}

	now := time.Now().UTC()
	if _, err := orgs.Create(ctx, o.org, limit, now); err != nil && !errors.Is(err, common.ErrAlreadyExists) {
		return fmt.Errorf("create organization: %w", err)
	}

	err = users.CreateUser(ctx,
		&models.User{OrganizationID: o.org, UserID: string(deviceID.UserID()), Profile: models.UserProfileAdmin, CreatedOn: now},
		&models.Device{OrganizationID: o.org, DeviceID: o.device, CreatedOn: now},
	)
	if err != nil && !errors.Is(err, common.ErrAlreadyExists) {
		return fmt.Errorf("create admin: %w", err)
	}
	return nil
}

func main() {

	ctx := context.Background()

	o, err := parseOptions(os.Args[1:])
	if err != nil {
		log.Fatalf("%v", err)
	}

	cfg := config.LoadConfig()
	logger := logging.NewSlogLogger(slog.New(slog.NewTextHandler(os.Stderr, nil)))

	db, err := sql.Open("pgx", cfg.DatabaseDSN)
	if err != nil {
		log.Fatalf("db init error: %v", err)
	}
	defer db.Close()

	m := repomanager.NewPostgresRepositoryManager()
	users := services.NewUserService(db, m, cfg, logger)

	if o.bootstrap {
		if err := m.RunMigrations(ctx, db); err != nil {
			log.Fatalf("migrations error: %v", err)
		}
		if err := bootstrap(ctx, o, services.NewOrganizationService(db, m, cfg, logger), users); err != nil {
			log.Fatalf("%v", err)
		}
	}

	token, err := users.IssueToken(ctx, o.org, o.device)
	if err != nil {
		log.Fatalf("issue token: %v", err)
	}
	fmt.Println(token)

}
