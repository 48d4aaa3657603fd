package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, 10, cfg.Statistics.MaxDisplayedItems)
	require.Len(t, cfg.Statistics.Categories, 5)
	assert.Equal(t, "auth_security", cfg.Statistics.Categories[0].Name)
	assert.Equal(t, "temporary_cache", cfg.Statistics.Categories[4].Name)
}

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoadOverlaysFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "schemapack.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
log_level: debug
statistics:
  max_displayed_items: 5
  categories:
    - name: billing
      keywords: [invoice, payment]
`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, 5, cfg.Statistics.MaxDisplayedItems)
	require.Len(t, cfg.Statistics.Categories, 1)
	assert.Equal(t, Category{Name: "billing", Keywords: []string{"invoice", "payment"}}, cfg.Statistics.Categories[0])
}

func TestLoadBackfillsZeroValues(t *testing.T) {
	path := filepath.Join(t.TempDir(), "schemapack.yaml")
	require.NoError(t, os.WriteFile(path, []byte("log_level: warn\n"), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "warn", cfg.LogLevel)
	assert.Equal(t, 10, cfg.Statistics.MaxDisplayedItems)
	assert.Len(t, cfg.Statistics.Categories, 5)
}

func TestLoadMalformedFileFails(t *testing.T) {
	path := filepath.Join(t.TempDir(), "schemapack.yaml")
	require.NoError(t, os.WriteFile(path, []byte("statistics: [not a mapping\n"), 0o644))

	_, err := Load(path)
	assert.Error(t, err)
}
