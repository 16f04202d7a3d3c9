package config

import (
	"encoding/json"
	"os"
	"time"

	"github.com/dmitrijs2005/gophvault/internal/flagx"
	"github.com/dmitrijs2005/gophvault/internal/timex"
)

// JsonConfig is the on-disk shape of the configuration file. Durations
// accept either "1s" strings or integer nanoseconds. Absent fields keep the
// value from earlier sources.
type JsonConfig struct {
	EndpointAddrGRPC            *string         `json:"endpoint_addr_grpc"`
	EndpointAddrHTTP            *string         `json:"endpoint_addr_http"`
	DatabaseDSN                 *string         `json:"database_dsn"`
	SecretKey                   *string         `json:"secret_key"`
	AccessTokenValidityDuration *timex.Duration `json:"access_token_validity_duration"`
	StoreOperationTimeout       *timex.Duration `json:"store_operation_timeout"`
	NotifyChannel               *string         `json:"notify_channel"`
	S3RootUser                  *string         `json:"s3_root_user"`
	S3RootPassword              *string         `json:"s3_root_password"`
	S3Bucket                    *string         `json:"s3_bucket"`
	S3Region                    *string         `json:"s3_region"`
	S3BaseEndpoint              *string         `json:"s3_base_endpoint"`
	BlockURLValidityDuration    *timex.Duration `json:"block_url_validity_duration"`
}

// parseJson loads the file named by -c/-config, if any. Unreadable or
// invalid files panic.
func parseJson(config *Config) {
	jsonConfigFile := flagx.JsonConfigFlags()
	if jsonConfigFile == "" {
		return
	}

	file, err := os.ReadFile(jsonConfigFile)
	if err != nil {
		panic(err)
	}

	c := &JsonConfig{}
	if err := json.Unmarshal(file, c); err != nil {
		panic(err)
	}

	c.apply(config)
}

func (c *JsonConfig) apply(config *Config) {
	copyString(&config.EndpointAddrGRPC, c.EndpointAddrGRPC)
	copyString(&config.EndpointAddrHTTP, c.EndpointAddrHTTP)
	copyString(&config.DatabaseDSN, c.DatabaseDSN)
	copyString(&config.SecretKey, c.SecretKey)
	copyDuration(&config.AccessTokenValidityDuration, c.AccessTokenValidityDuration)
	copyDuration(&config.StoreOperationTimeout, c.StoreOperationTimeout)
	copyString(&config.NotifyChannel, c.NotifyChannel)
	copyString(&config.S3RootUser, c.S3RootUser)
	copyString(&config.S3RootPassword, c.S3RootPassword)
	copyString(&config.S3Bucket, c.S3Bucket)
	copyString(&config.S3Region, c.S3Region)
	copyString(&config.S3BaseEndpoint, c.S3BaseEndpoint)
	copyDuration(&config.BlockURLValidityDuration, c.BlockURLValidityDuration)
}

func copyString(dst *string, src *string) {
	if src != nil {
		*dst = *src
	}
}

func copyDuration(dst *time.Duration, src *timex.Duration) {
	if src != nil {
		*dst = src.Duration
	}
}
