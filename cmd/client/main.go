package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/dmitrijs2005/gophvault/internal/client/cli"
	"github.com/dmitrijs2005/gophvault/internal/client/config"
	"github.com/dmitrijs2005/gophvault/internal/common"
	"github.com/dmitrijs2005/gophvault/internal/flagx"
)

// passwordEnv lets scripts unlock the local cache without a terminal.
const passwordEnv = "GOPHVAULT_PASSWORD"

func main() {
	cfg := config.LoadConfig()
	args := flagx.Positional(os.Args[1:], config.FlagNames())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	password := []byte(os.Getenv(passwordEnv))
	if len(password) == 0 {
		var err error
		if password, err = cli.GetPassword(os.Stderr, "Cache password: "); err != nil {
			log.Fatalf("read password: %v", err)
		}
	}

	app, err := cli.NewApp(ctx, cfg, password)
	common.WipeByteArray(password)
	if err != nil {
		log.Fatalf("%v", err)
	}

	err = app.Run(ctx, args)
	_ = app.Close()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		if cli.IsUsage(err) {
			os.Exit(2)
		}
		os.Exit(1)
	}
}
