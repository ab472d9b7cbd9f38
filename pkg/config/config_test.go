package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadEmptyFilenameReturnsDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoadSparseFileKeepsDefaults(t *testing.T) {
	path := writeConfig(t, `
server:
  listen_addr: ":9090"
cache:
  backend: memory
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.Server.ListenAddr)
	assert.Equal(t, "memory", cfg.Cache.Backend)
	assert.Equal(t, 100, cfg.Cache.FastCapacity)
	assert.Equal(t, 30*time.Minute, cfg.Cache.DefaultTTL.Std())
	assert.Equal(t, 300*time.Millisecond, cfg.Scheduler.MoveDelay.Std())
}

func TestLoadParsesDurations(t *testing.T) {
	path := writeConfig(t, `
cache:
  default_ttl: 2h
scheduler:
  move_delay: 750ms
  min_date_change: 90s
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 2*time.Hour, cfg.Cache.DefaultTTL.Std())
	assert.Equal(t, 750*time.Millisecond, cfg.Scheduler.MoveDelay.Std())
	assert.Equal(t, 90*time.Second, cfg.Scheduler.MinDateChange.Std())
}

func TestLoadRejectsBadDuration(t *testing.T) {
	path := writeConfig(t, "cache:\n  default_ttl: soon\n")

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid duration")
}

func TestLoadRejectsUnknownBackend(t *testing.T) {
	path := writeConfig(t, "cache:\n  backend: etcd\n")

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown cache backend")
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
}

func TestValidateRedisRequiresAddr(t *testing.T) {
	cfg := Default()
	cfg.Cache.Backend = "redis"
	require.Error(t, cfg.Validate())

	cfg.Cache.Redis.Addr = "localhost:6379"
	require.NoError(t, cfg.Validate())
}

func TestValidateFetchZoomRange(t *testing.T) {
	cfg := Default()
	cfg.Footprints.FetchZoom = 9
	assert.Error(t, cfg.Validate())
	cfg.Footprints.FetchZoom = 19
	assert.Error(t, cfg.Validate())
	cfg.Footprints.FetchZoom = 15
	assert.NoError(t, cfg.Validate())
}
