package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gametable/gametable-server-go/internal/config"
)

func TestLoadDefaultsWhenFileMissing(t *testing.T) {
	cfg, err := config.Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)

	assert.Equal(t, ":3001", cfg.Server.Address)
	assert.Equal(t, 64, cfg.Server.BroadcastBuffer)
	assert.Equal(t, 10*time.Second, cfg.Server.ShutdownTimeout)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, "console", cfg.Logging.Format)
	assert.Equal(t, "https://api.scryfall.com", cfg.Catalog.BaseURL)
	assert.Equal(t, 75*time.Millisecond, cfg.Catalog.RequestDelay)
	assert.Equal(t, "/GameTableData", cfg.Storage.DataDir)
	assert.Empty(t, cfg.Catalog.Sets)
}

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
server:
  address: ":9000"
  broadcast_buffer: 16
logging:
  level: debug
  format: json
catalog:
  sets: ["lea", "arn"]
storage:
  data_dir: /tmp/tables
`), 0o644))

	cfg, err := config.Load(path)
	require.NoError(t, err)

	assert.Equal(t, ":9000", cfg.Server.Address)
	assert.Equal(t, 16, cfg.Server.BroadcastBuffer)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, "json", cfg.Logging.Format)
	assert.Equal(t, []string{"lea", "arn"}, cfg.Catalog.Sets)
	assert.Equal(t, "/tmp/tables", cfg.Storage.DataDir)

	// Unset keys keep their defaults.
	assert.Equal(t, "postgres://localhost:5432/gametable", cfg.Database.URL)
}

func TestLoadEnvOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server:\n  address: \":9000\"\n"), 0o644))

	t.Setenv("GAMETABLE_SERVER_ADDRESS", ":7777")

	cfg, err := config.Load(path)
	require.NoError(t, err)
	assert.Equal(t, ":7777", cfg.Server.Address)
}

func TestLoadRejectsUnparsableFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server: [::bad yaml"), 0o644))

	_, err := config.Load(path)
	assert.Error(t, err)
}
