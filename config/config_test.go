package config

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	assert.Equal(t, "development", cfg.Env)
	assert.Equal(t, "127.0.0.1", cfg.Server.Host)
	assert.Equal(t, 3000, cfg.Server.Port)
	assert.Equal(t, runtime.NumCPU(), cfg.Pool.Workers)
	assert.Equal(t, 10*time.Second, cfg.Server.ReadTimeout)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.False(t, cfg.Stats.Enabled)
	assert.Equal(t, "/_stats", cfg.Stats.Path)
	assert.Equal(t, "json", cfg.Stats.Format)
	assert.True(t, cfg.Stats.Metrics)
	assert.Equal(t, 100*time.Millisecond, cfg.Stats.SlowThreshold)
	assert.Equal(t, "127.0.0.1:3000", cfg.Addr())
	assert.NoError(t, cfg.Validate())
}

func TestDefaultIgnoresEnvironment(t *testing.T) {
	t.Setenv("SEGSERVE_POOL_WORKERS", "0")
	t.Setenv("SEGSERVE_SERVER_PORT", "9999")

	var cfg *Config
	require.NotPanics(t, func() { cfg = Default() })
	assert.Equal(t, runtime.NumCPU(), cfg.Pool.Workers)
	assert.Equal(t, 3000, cfg.Server.Port)

	// Load still applies the environment and rejects the value
	_, err := Load(nil)
	assert.ErrorContains(t, err, "pool.workers must be positive")
}

func TestLoadFlags(t *testing.T) {
	cfg, err := Load([]string{"--port", "9090", "--workers", "3", "--env", "production", "--stats"})
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, 3, cfg.Pool.Workers)
	assert.Equal(t, "production", cfg.Env)
	assert.True(t, cfg.Stats.Enabled)
}

func TestLoadEnv(t *testing.T) {
	t.Setenv("SEGSERVE_POOL_WORKERS", "5")
	t.Setenv("SEGSERVE_SERVER_READ_TIMEOUT", "2s")

	cfg, err := Load(nil)
	require.NoError(t, err)

	assert.Equal(t, 5, cfg.Pool.Workers)
	assert.Equal(t, 2*time.Second, cfg.Server.ReadTimeout)
}

func TestLoadFlagBeatsEnv(t *testing.T) {
	t.Setenv("SEGSERVE_POOL_WORKERS", "5")

	cfg, err := Load([]string{"--workers", "7"})
	require.NoError(t, err)
	assert.Equal(t, 7, cfg.Pool.Workers)
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "segserve.yaml")
	content := `
env: staging
server:
  host: 0.0.0.0
  port: 8081
  max_conns: 64
pool:
  workers: 6
log:
  level: debug
stats:
  enabled: true
  path: /metrics
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := Load([]string{"--config", path})
	require.NoError(t, err)

	assert.Equal(t, "staging", cfg.Env)
	assert.Equal(t, "0.0.0.0:8081", cfg.Addr())
	assert.Equal(t, 64, cfg.Server.MaxConns)
	assert.Equal(t, 6, cfg.Pool.Workers)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.True(t, cfg.Stats.Enabled)
	assert.Equal(t, "/metrics", cfg.Stats.Path)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load([]string{"--config", filepath.Join(t.TempDir(), "nope.yaml")})
	assert.Error(t, err)
}

func TestLoadRejectsInvalid(t *testing.T) {
	tests := [][]string{
		{"--workers", "0"},
		{"--workers", "-2"},
		{"--port", "70000"},
		{"--max-conns", "-1"},
		{"--not-a-flag"},
	}

	for _, args := range tests {
		_, err := Load(args)
		assert.Error(t, err, "args %v", args)
	}
}

func TestValidate(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())

	cfg.Stats.Enabled = true
	cfg.Stats.Path = "stats"
	assert.Error(t, cfg.Validate())

	cfg = Default()
	cfg.Server.WriteTimeout = -time.Second
	assert.Error(t, cfg.Validate())

	cfg = Default()
	cfg.Stats.Format = "xml"
	assert.Error(t, cfg.Validate())

	cfg = Default()
	cfg.Stats.Format = "text"
	assert.NoError(t, cfg.Validate())
}
