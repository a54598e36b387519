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
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Server.Address)
	assert.Equal(t, 5*time.Second, cfg.Server.LockTimeout)
	assert.Equal(t, 10*time.Second, cfg.Server.ShutdownTimeout)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, "file", cfg.Storage.Backend)
	assert.Equal(t, "games", cfg.Storage.Dir)
	assert.Equal(t, 12, cfg.Validation.MaxNameLength)
	assert.Equal(t, 1, cfg.Validation.MinDeckSize)
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, ":8080", cfg.Server.Address)
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
server:
  address: ":9090"
  lock_timeout: 2s
logging:
  level: debug
storage:
  backend: redis
  redis:
    addr: "redis:6379"
    db: 3
validation:
  max_name_length: 20
`), 0644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.Server.Address)
	assert.Equal(t, 2*time.Second, cfg.Server.LockTimeout)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, "redis", cfg.Storage.Backend)
	assert.Equal(t, "redis:6379", cfg.Storage.Redis.Addr)
	assert.Equal(t, 3, cfg.Storage.Redis.DB)
	assert.Equal(t, 20, cfg.Validation.MaxNameLength)
	// Untouched keys keep their defaults.
	assert.Equal(t, 10*time.Second, cfg.Server.ShutdownTimeout)
	assert.Equal(t, 1, cfg.Validation.MinDeckSize)
}

func TestLoadRejectsUnknownBackend(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("storage:\n  backend: etcd\n"), 0644))

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown storage backend")
}
