package config

import (
	"flag"
	"os"

	"github.com/dmitrijs2005/gophvault/internal/flagx"
)

// FlagNames lists the value flags understood by the client, the config
// file flags included.
func FlagNames() []string {
	return []string{"-a", "-k", "-i", "-f", "-m", "-r", "-c", "-config"}
}

// parseFlags populates selected Config fields from command-line flags.
// Arguments are filtered with flagx.FilterArgs so flags meant for other
// components do not interfere.
func parseFlags(cfg *Config) {
	args := flagx.FilterArgs(os.Args[1:], []string{"-a", "-k", "-i", "-f", "-m", "-r"})

	fs := flag.NewFlagSet("main", flag.ContinueOnError)

	fs.StringVar(&cfg.ServerEndpointAddr, "a", cfg.ServerEndpointAddr, "address and port to access server")
	fs.StringVar(&cfg.AccessToken, "k", cfg.AccessToken, "access token")
	fs.StringVar(&cfg.DeviceID, "i", cfg.DeviceID, "device id")
	fs.StringVar(&cfg.LocalDir, "f", cfg.LocalDir, "local cache directory")
	fs.IntVar(&cfg.MaxSyncAttempts, "m", cfg.MaxSyncAttempts, "sync attempts per entry")
	fs.DurationVar(&cfg.RequestTimeout, "r", cfg.RequestTimeout, "request timeout")

	if err := fs.Parse(args); err != nil {
		panic(err)
	}
}
