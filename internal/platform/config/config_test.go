package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "rentbridge", cfg.ServiceName)
	assert.Equal(t, "8080", cfg.HTTPPort)
	assert.Equal(t, 25, cfg.BatchSize)
	assert.Equal(t, 5*time.Second, cfg.PollInterval)
	assert.Equal(t, 7*24*time.Hour, cfg.Retention)
	assert.Equal(t, 30*time.Second, cfg.BackoffBase)
	assert.Equal(t, 30*time.Minute, cfg.BackoffMax)
	assert.Equal(t, 5, cfg.MaxAttempts)
	assert.Equal(t, "json", cfg.LogFormat)
	assert.True(t, cfg.EnsureSchema)
	assert.False(t, cfg.EmbeddedWorker)
}

func TestLoadReadsEnvironment(t *testing.T) {
	t.Setenv("HTTP_PORT", "9090")
	t.Setenv("POSTGRES_DSN", "postgres://sync@localhost/rentbridge")
	t.Setenv("BATCH_SIZE", "10")
	t.Setenv("STALE_TIMEOUT", "90s")
	t.Setenv("ENSURE_SCHEMA", "off")
	t.Setenv("EMBEDDED_WORKER", "yes")
	t.Setenv("LOG_FORMAT", "TEXT")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "9090", cfg.HTTPPort)
	assert.Equal(t, "postgres://sync@localhost/rentbridge", cfg.PostgresDSN)
	assert.Equal(t, 10, cfg.BatchSize)
	assert.Equal(t, 90*time.Second, cfg.StaleTimeout)
	assert.False(t, cfg.EnsureSchema)
	assert.True(t, cfg.EmbeddedWorker)
	assert.Equal(t, "text", cfg.LogFormat)
}

func TestLoadConfigFileIsOverriddenByEnvironment(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rentbridge.yaml")
	body := []byte("legacy_base_url: https://legacy.example.test\nmax_attempts: 8\nbatch_size: 40\n")
	require.NoError(t, os.WriteFile(path, body, 0o600))
	t.Setenv("CONFIG_FILE", path)
	t.Setenv("BATCH_SIZE", "12")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "https://legacy.example.test", cfg.LegacyBaseURL)
	assert.Equal(t, 8, cfg.MaxAttempts)
	assert.Equal(t, 12, cfg.BatchSize)
}

func TestLoadRejectsInvalidTuning(t *testing.T) {
	t.Setenv("BATCH_SIZE", "0")
	t.Setenv("BACKOFF_BASE", "10m")
	t.Setenv("BACKOFF_MAX", "1m")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "BATCH_SIZE")
	assert.Contains(t, err.Error(), "BACKOFF_MAX")
}

func TestLoadMissingConfigFile(t *testing.T) {
	t.Setenv("CONFIG_FILE", filepath.Join(t.TempDir(), "missing.yaml"))

	_, err := Load()
	require.Error(t, err)
}
