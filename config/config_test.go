package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/transitboard/arrivals/config"
)

func writeConfig(t *testing.T, content string) string {
	path := filepath.Join(t.TempDir(), "config.yml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad(t *testing.T) {
	path := writeConfig(t, `
static:
  url: http://example.com/gtfs.zip
realtime:
  url: http://example.com/tripupdates.pb
  refreshInterval: 30s
server:
  addr: ":9090"
storage:
  driver: sqlite
  directory: /var/lib/arrivals
`)

	cfg, err := config.Load(path)
	require.NoError(t, err)

	assert.Equal(t, "http://example.com/gtfs.zip", cfg.Static.URL)
	assert.Equal(t, "http://example.com/tripupdates.pb", cfg.Realtime.URL)
	assert.Equal(t, 30*time.Second, cfg.Realtime.RefreshInterval.Std())
	assert.Equal(t, ":9090", cfg.Server.Addr)
	assert.Equal(t, "sqlite", cfg.Storage.Driver)
	assert.Equal(t, "/var/lib/arrivals", cfg.Storage.Directory)
}

func TestLoadDefaults(t *testing.T) {
	path := writeConfig(t, `
static:
  url: http://example.com/gtfs.zip
`)

	cfg, err := config.Load(path)
	require.NoError(t, err)

	assert.Equal(t, time.Minute, cfg.Realtime.RefreshInterval.Std())
	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Equal(t, "memory", cfg.Storage.Driver)
}

func TestLoadEnvOverrides(t *testing.T) {
	path := writeConfig(t, `
static:
  url: http://example.com/gtfs.zip
`)

	t.Setenv("ARRIVALS_STATIC_URL", "http://other.example.com/gtfs.zip")
	t.Setenv("ARRIVALS_ADDR", ":7070")
	t.Setenv("ARRIVALS_REFRESH_INTERVAL", "15s")

	cfg, err := config.Load(path)
	require.NoError(t, err)

	assert.Equal(t, "http://other.example.com/gtfs.zip", cfg.Static.URL)
	assert.Equal(t, ":7070", cfg.Server.Addr)
	assert.Equal(t, 15*time.Second, cfg.Realtime.RefreshInterval.Std())
}

func TestLoadValidation(t *testing.T) {
	// Static URL is required
	_, err := config.Load(writeConfig(t, `
server:
  addr: ":8080"
`))
	assert.Error(t, err)

	// Driver must be a known backend
	_, err = config.Load(writeConfig(t, `
static:
  url: http://example.com/gtfs.zip
storage:
  driver: cassandra
`))
	assert.Error(t, err)

	// Bad URL
	_, err = config.Load(writeConfig(t, `
static:
  url: not a url
`))
	assert.Error(t, err)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := config.Load("/does/not/exist.yml")
	assert.Error(t, err)
}
