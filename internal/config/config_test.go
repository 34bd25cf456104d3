package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/OpenTraceLab/OpenTraceTLP/pkg/importers"
	"github.com/OpenTraceLab/OpenTraceTLP/pkg/storage"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "tlp.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestDefaultConfig(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)

	c, err := cfg.Compression()
	require.NoError(t, err)
	assert.Equal(t, storage.DefaultCompression, c)
	assert.Equal(t, importers.DefaultBarthWindow, cfg.BarthWindow())
}

func TestLoadFile(t *testing.T) {
	path := writeConfig(t, `
log:
  level: debug
  format: json
storage:
  compression: LZ4
import:
  barth_window_start: 0.5
  barth_window_end: 0.75
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
	c, err := cfg.Compression()
	require.NoError(t, err)
	assert.Equal(t, storage.CompressionLZ4, c)
	assert.Equal(t, importers.Window{Start: 0.5, End: 0.75}, cfg.BarthWindow())
}

func TestPartialFileKeepsDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, "log:\n  level: warn\n"))
	require.NoError(t, err)
	assert.Equal(t, "warn", cfg.Log.Level)
	assert.Equal(t, "console", cfg.Log.Format)
	assert.Equal(t, importers.DefaultBarthWindow, cfg.BarthWindow())
}

func TestEnvironmentOverridesFile(t *testing.T) {
	t.Setenv("TLP_LOG_LEVEL", "error")
	t.Setenv("TLP_STORAGE_COMPRESSION", "snappy")
	t.Setenv("TLP_IMPORT_BARTH_WINDOW_END", "0.8")

	cfg, err := Load(writeConfig(t, "log:\n  level: debug\nstorage:\n  compression: brotli\n"))
	require.NoError(t, err)
	assert.Equal(t, "error", cfg.Log.Level)
	assert.Equal(t, "snappy", cfg.Storage.Compression)
	assert.Equal(t, 0.8, cfg.Import.BarthWindowEnd)
	assert.Equal(t, importers.DefaultBarthWindow.Start, cfg.Import.BarthWindowStart)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"level", func(c *Config) { c.Log.Level = "verbose" }},
		{"format", func(c *Config) { c.Log.Format = "xml" }},
		{"compression", func(c *Config) { c.Storage.Compression = "gzip" }},
		{"window start", func(c *Config) { c.Import.BarthWindowStart = -0.1 }},
		{"window end", func(c *Config) { c.Import.BarthWindowEnd = 1.5 }},
		{"window order", func(c *Config) { c.Import.BarthWindowStart, c.Import.BarthWindowEnd = 0.9, 0.7 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), "config: ")
		})
	}
	assert.NoError(t, DefaultConfig().Validate())
}

func TestLoadErrors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.ErrorIs(t, err, os.ErrNotExist)

	_, err = Load(writeConfig(t, "log: [unterminated"))
	assert.Error(t, err)

	_, err = Load(writeConfig(t, "log:\n  format: xml\n"))
	assert.ErrorContains(t, err, "Config.Log.Format")

	t.Setenv("TLP_IMPORT_BARTH_WINDOW_START", "half")
	_, err = Load("")
	assert.ErrorContains(t, err, "config: environment")
}
