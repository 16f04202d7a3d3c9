package config

import "time"

// Config holds runtime settings for a GophVault client device.
//
// Fields:
//   - ServerEndpointAddr: host:port of the backend gRPC endpoint.
//   - AccessToken: device token minted by the backend.
//   - DeviceID: "<user>@<device>" this client authors changes as.
//   - LocalDir: directory holding the local manifest cache.
//   - MaxSyncAttempts: upload attempts per entry before giving up on conflicts.
//   - RequestTimeout: deadline applied to every backend request.
type Config struct {
	ServerEndpointAddr string
	AccessToken        string
	DeviceID           string
	LocalDir           string
	MaxSyncAttempts    int
	RequestTimeout     time.Duration
}

// LoadDefaults populates c with sensible defaults.
func (c *Config) LoadDefaults() {
	c.ServerEndpointAddr = "127.0.0.1:50051"
	c.LocalDir = "data"
	c.MaxSyncAttempts = 5
	c.RequestTimeout = 10 * time.Second
}

// LoadConfig constructs a Config, applies defaults, then overlays values from
// JSON (if present) and command-line flags (if present). Later sources take
// precedence over earlier ones.
func LoadConfig() *Config {
	cfg := &Config{}
	cfg.LoadDefaults()
	parseJson(cfg)
	parseFlags(cfg)
	return cfg
}
