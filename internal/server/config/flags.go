package config

import (
	"flag"
	"os"

	"github.com/dmitrijs2005/gophvault/internal/flagx"
)

// parseFlags overlays command-line flags.
//
//	-a string     gRPC bind address (e.g. ":50051")
//	-w string     websocket bind address (e.g. ":8080")
//	-d string     PostgreSQL DSN
//	-s string     JWT HMAC secret key
//	-t duration   access token validity
//	-o duration   store operation timeout
//	-n string     notify channel
//	-u string     S3 root user
//	-p string     S3 root password
//	-b string     S3 bucket name
//	-g string     S3 region
//	-e string     S3 base endpoint
//	-l duration   presigned block URL validity
func parseFlags(config *Config) {
	parseFlagArgs(config, os.Args[1:])
}

var knownFlags = []string{"-a", "-w", "-d", "-s", "-t", "-o", "-n", "-u", "-p", "-b", "-g", "-e", "-l"}

func parseFlagArgs(config *Config, argv []string) {
	args := flagx.FilterArgs(argv, knownFlags)

	fs := flag.NewFlagSet("main", flag.ContinueOnError)

	fs.StringVar(&config.EndpointAddrGRPC, "a", config.EndpointAddrGRPC, "gRPC address and port")
	fs.StringVar(&config.EndpointAddrHTTP, "w", config.EndpointAddrHTTP, "websocket address and port")
	fs.StringVar(&config.DatabaseDSN, "d", config.DatabaseDSN, "database DSN")
	fs.StringVar(&config.SecretKey, "s", config.SecretKey, "secret key")
	fs.DurationVar(&config.AccessTokenValidityDuration, "t", config.AccessTokenValidityDuration, "access token validity")
	fs.DurationVar(&config.StoreOperationTimeout, "o", config.StoreOperationTimeout, "store operation timeout")
	fs.StringVar(&config.NotifyChannel, "n", config.NotifyChannel, "notify channel")
	fs.StringVar(&config.S3RootUser, "u", config.S3RootUser, "S3 root user")
	fs.StringVar(&config.S3RootPassword, "p", config.S3RootPassword, "S3 root password")
	fs.StringVar(&config.S3Bucket, "b", config.S3Bucket, "S3 bucket")
	fs.StringVar(&config.S3Region, "g", config.S3Region, "S3 region")
	fs.StringVar(&config.S3BaseEndpoint, "e", config.S3BaseEndpoint, "S3 base endpoint")
	fs.DurationVar(&config.BlockURLValidityDuration, "l", config.BlockURLValidityDuration, "presigned block URL validity")

	if err := fs.Parse(args); err != nil {
		panic(err)
	}
}
