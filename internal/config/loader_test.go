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
	t.Chdir(t.TempDir())

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0:8080", cfg.HTTP.Addr)
	assert.Equal(t, 5*time.Second, cfg.Panel.ConnectTimeout)
	assert.Equal(t, 20*time.Second, cfg.Panel.Timeout)
	assert.False(t, cfg.Panel.Retry.Enabled)
	assert.Equal(t, "/api/webhook", cfg.Webhook.Path)
	assert.Equal(t, 4, cfg.Sync.Workers)
	assert.Equal(t, 168*time.Hour, cfg.Sync.Retention)
	assert.False(t, cfg.Units.LegacyMiBRatio)
	assert.Equal(t, "data/panelmirror.db", cfg.DB.Path)
}

func TestLoadYAMLAndEnv(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	yaml := []byte("panel:\n  url: https://panel.example.com/\n  application_token: app-token\nsync:\n  workers: 8\n")
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), yaml, 0o600))
	t.Setenv("PANELMIRROR_SYNC_WORKERS", "2")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "https://panel.example.com", cfg.Panel.URL, "trailing slash trimmed")
	assert.Equal(t, "app-token", cfg.Panel.ApplicationToken)
	assert.Equal(t, 2, cfg.Sync.Workers, "environment overrides the file")
}

func TestLoadDotEnvLegacyKeys(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("PANEL_API_URL=https://legacy.example.com\nPANEL_API_CLIENT_TOKEN=client\n"), 0o600))
	t.Setenv("PANELMIRROR_PANEL_CLIENT_TOKEN", "from-env")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "https://legacy.example.com", cfg.Panel.URL)
	assert.Equal(t, "from-env", cfg.Panel.ClientToken)
}

func TestRedacted(t *testing.T) {
	cfg := Config{}
	cfg.Panel.ApplicationToken = "ptla_secret"
	cfg.Admin.Token = "abc"

	red := cfg.Redacted()
	assert.Equal(t, "ptla*******", red.Panel.ApplicationToken)
	assert.Equal(t, "****", red.Admin.Token)
	assert.Equal(t, "ptla_secret", cfg.Panel.ApplicationToken, "source config untouched")
}

func TestSlogLevel(t *testing.T) {
	assert.Equal(t, "DEBUG", LogConfig{Level: "Debug"}.SlogLevel().String())
	assert.Equal(t, "INFO", LogConfig{Level: "bogus"}.SlogLevel().String())
}
