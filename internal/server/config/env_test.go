package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseEnv_OverridesDefaults(t *testing.T) {
	origEnvFile := envFile
	t.Cleanup(func() { envFile = origEnvFile })
	envFile = filepath.Join(t.TempDir(), "missing.env")

	t.Setenv("GOPHVAULT_DATABASE_DSN", "postgres://env")
	t.Setenv("GOPHVAULT_STORE_OPERATION_TIMEOUT", "750ms")
	t.Setenv("GOPHVAULT_NOTIFY_CHANNEL", "chan")

	var c Config
	c.LoadDefaults()
	parseEnv(&c)

	assert.Equal(t, "postgres://env", c.DatabaseDSN)
	assert.Equal(t, 750*time.Millisecond, c.StoreOperationTimeout)
	assert.Equal(t, "chan", c.NotifyChannel)
	assert.Equal(t, ":50051", c.EndpointAddrGRPC)
}

func TestParseEnv_DotEnvFile(t *testing.T) {
	origEnvFile := envFile
	t.Cleanup(func() { envFile = origEnvFile })

	envFile = filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(envFile, []byte("GOPHVAULT_S3_BUCKET=from-dotenv\nGOPHVAULT_SECRET_KEY=dotenv-secret\n"), 0o600))
	t.Cleanup(func() {
		os.Unsetenv("GOPHVAULT_S3_BUCKET")
		os.Unsetenv("GOPHVAULT_SECRET_KEY")
	})
	// real environment wins over the file
	t.Setenv("GOPHVAULT_SECRET_KEY", "real-secret")

	var c Config
	c.LoadDefaults()
	parseEnv(&c)

	assert.Equal(t, "from-dotenv", c.S3Bucket)
	assert.Equal(t, "real-secret", c.SecretKey)
}

func TestParseEnv_BadDurationPanics(t *testing.T) {
	origEnvFile := envFile
	t.Cleanup(func() { envFile = origEnvFile })
	envFile = filepath.Join(t.TempDir(), "missing.env")

	t.Setenv("GOPHVAULT_ACCESS_TOKEN_VALIDITY_DURATION", "soon")

	var c Config
	require.Panics(t, func() { parseEnv(&c) })
}
