package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaults(t *testing.T) {
	Reset()
	t.Cleanup(Reset)

	cfg, err := Load()
	require.NoError(t, err)
	assert.NotEmpty(t, cfg.StorePath)
	assert.Equal(t, 30*time.Second, cfg.HTTPTimeout)
	assert.Equal(t, 100, cfg.BulkLogEvery)
	assert.False(t, cfg.JSONLogs)
}

func TestEnvOverride(t *testing.T) {
	Reset()
	t.Cleanup(Reset)
	t.Setenv("JIRALOAD_BULK_LOG_EVERY", "5")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 5, cfg.BulkLogEvery)
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "jiraload.yaml")
	require.NoError(t, os.WriteFile(path, []byte("store_path: /tmp/custom.db\nhttp_timeout: 5s\n"), 0o600))

	cfg, err := LoadFromFile(path)
	require.NoError(t, err)
	assert.Equal(t, "/tmp/custom.db", cfg.StorePath)
	assert.Equal(t, 5*time.Second, cfg.HTTPTimeout)
}

func TestLoadFromMissingFile(t *testing.T) {
	_, err := LoadFromFile(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}
