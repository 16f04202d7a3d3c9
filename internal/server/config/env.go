package config

import (
	"os"
	"time"

	"github.com/joho/godotenv"
)

const envPrefix = "GOPHVAULT_"

// envFile is read if present; a missing file is not an error.
var envFile = ".env"

// parseEnv overlays GOPHVAULT_* variables. Values already present in the
// process environment take precedence over the .env file.
func parseEnv(config *Config) {
	_ = godotenv.Load(envFile)

	setString(&config.EndpointAddrGRPC, "ENDPOINT_ADDR_GRPC")
	setString(&config.EndpointAddrHTTP, "ENDPOINT_ADDR_HTTP")
	setString(&config.DatabaseDSN, "DATABASE_DSN")
	setString(&config.SecretKey, "SECRET_KEY")
	setDuration(&config.AccessTokenValidityDuration, "ACCESS_TOKEN_VALIDITY_DURATION")
	setDuration(&config.StoreOperationTimeout, "STORE_OPERATION_TIMEOUT")
	setString(&config.NotifyChannel, "NOTIFY_CHANNEL")
	setString(&config.S3RootUser, "S3_ROOT_USER")
	setString(&config.S3RootPassword, "S3_ROOT_PASSWORD")
	setString(&config.S3Bucket, "S3_BUCKET")
	setString(&config.S3Region, "S3_REGION")
	setString(&config.S3BaseEndpoint, "S3_BASE_ENDPOINT")
	setDuration(&config.BlockURLValidityDuration, "BLOCK_URL_VALIDITY_DURATION")
}

func setString(dst *string, name string) {
	if v, ok := os.LookupEnv(envPrefix + name); ok {
		*dst = v
	}
}

func setDuration(dst *time.Duration, name string) {
	v, ok := os.LookupEnv(envPrefix + name)
	if !ok {
		return
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		panic(err)
	}
	*dst = d
}
