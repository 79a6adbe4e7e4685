package config_test

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leontov-kolibri/kolibri-x/internal/config"
)

func TestNewAppliesDefaults(t *testing.T) {
	c := config.New()
	assert.Equal(t, time.Hour, c.Cache.OfflineTTL)
	assert.Equal(t, 30*time.Minute, c.Cache.RAGTTL)
	assert.Equal(t, int64(256), c.Sandbox.DefaultRAMMB)
	assert.Equal(t, 750.0, c.SLO.DefaultThresholdMS)
}

func TestEnvOverridesDefaults(t *testing.T) {
	t.Setenv("KOLIBRI_REDIS_ADDR", "localhost:6379")
	t.Setenv("KOLIBRI_SANDBOX_RAM_MB", "512")

	c := config.New()
	assert.Equal(t, "localhost:6379", c.RedisAddr)
	assert.Equal(t, int64(512), c.Sandbox.DefaultRAMMB)
}

func TestOptionsOverrideEnv(t *testing.T) {
	t.Setenv("KOLIBRI_REDIS_ADDR", "localhost:6379")

	c := config.New(config.WithRedisAddr("cache.internal:6379"))
	assert.Equal(t, "cache.internal:6379", c.RedisAddr)
}

func TestWithSandboxLimitsAndCacheTTLs(t *testing.T) {
	c := config.New(
		config.WithSandboxLimits(10*time.Second, 128),
		config.WithCacheTTLs(2*time.Hour, 5*time.Minute),
	)
	assert.Equal(t, 10*time.Second, c.Sandbox.DefaultTimeLimit)
	assert.Equal(t, int64(128), c.Sandbox.DefaultRAMMB)
	assert.Equal(t, 2*time.Hour, c.Cache.OfflineTTL)
	assert.Equal(t, 5*time.Minute, c.Cache.RAGTTL)
}

func TestLoadFileAppliesYAMLOverrides(t *testing.T) {
	f, err := os.CreateTemp(t.TempDir(), "kolibri-*.yaml")
	require.NoError(t, err)
	_, err = f.WriteString("journal_path: /var/lib/kolibri/journal.jsonl\nsandbox_ram_mb: 1024\n")
	require.NoError(t, err)
	require.NoError(t, f.Close())

	opt, err := config.LoadFile(f.Name())
	require.NoError(t, err)

	c := config.New(opt)
	assert.Equal(t, "/var/lib/kolibri/journal.jsonl", c.JournalPath)
	assert.Equal(t, int64(1024), c.Sandbox.DefaultRAMMB)
}

func TestLoadFileMissingPathErrors(t *testing.T) {
	_, err := config.LoadFile("/nonexistent/kolibri.yaml")
	assert.Error(t, err)
}
