package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeLayer(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := NewLoader().Load()
	require.NoError(t, err)

	assert.Equal(t, "layr-server", cfg.Server.Name)
	assert.True(t, cfg.HTTP.Enabled)
	assert.Equal(t, ":4400", cfg.HTTP.Addr)
	assert.Equal(t, "/query", cfg.HTTP.Path)
	assert.Equal(t, 9090, cfg.Metrics.Port)
}

func TestLoadLayerOverrides(t *testing.T) {
	base := writeLayer(t, "base.yaml", `
http:
  addr: ":8080"
logging:
  level: debug
`)
	override := writeLayer(t, "prod.yaml", `
http:
  addr: ":80"
`)

	loader := NewLoader()
	loader.AddLayer(base)
	loader.AddLayer(override)

	cfg, err := loader.Load()
	require.NoError(t, err)

	assert.Equal(t, ":80", cfg.HTTP.Addr, "later layers override earlier ones")
	assert.Equal(t, "debug", cfg.Logging.Level, "untouched keys survive overlay")
}

func TestLoadRejectsNoTransports(t *testing.T) {
	layer := writeLayer(t, "none.yaml", `
http:
  enabled: false
`)

	loader := NewLoader()
	loader.AddLayer(layer)

	_, err := loader.Load()
	require.Error(t, err)
}

func TestLoadRejectsBadLogLevel(t *testing.T) {
	layer := writeLayer(t, "bad.yaml", `
logging:
  level: shouting
`)

	loader := NewLoader()
	loader.AddLayer(layer)

	_, err := loader.Load()
	require.Error(t, err)
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("LAYR_HTTP_ADDR", ":9999")
	t.Setenv("LAYR_LOG_LEVEL", "warn")

	cfg, err := NewLoader().Load()
	require.NoError(t, err)

	assert.Equal(t, ":9999", cfg.HTTP.Addr)

	level, err := cfg.Logging.SlogLevel()
	require.NoError(t, err)
	assert.Equal(t, slog.LevelWarn, level)
}

func TestMissingLayerFails(t *testing.T) {
	loader := NewLoader()
	loader.AddLayer("/does/not/exist.yaml")

	_, err := loader.Load()
	require.Error(t, err)
}
