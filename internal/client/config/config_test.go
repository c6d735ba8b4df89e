package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfig_Validate_NormalizesAndDefaults(t *testing.T) {
	tmp := t.TempDir()
	cfg := &Config{
		DataDir:   tmp,
		Username:  " Alice ",
		ServerURL: "http://127.0.0.1:8080/",
	}

	require.NoError(t, cfg.Validate())
	assert.Equal(t, "alice", cfg.Username)
	assert.Equal(t, "http://127.0.0.1:8080", cfg.ServerURL)
	assert.Equal(t, filepath.Join(tmp, "config.json"), cfg.Path)
	assert.Equal(t, DefaultRetryLimit, cfg.Sync.RetryLimit)
	assert.Equal(t, DefaultSyncInterval, cfg.Sync.Interval)
	assert.Equal(t, slog.LevelInfo, cfg.LogLevel())
	assert.Equal(t, filepath.Join(tmp, "vault.db"), cfg.StorePath())
	assert.Equal(t, filepath.Join(tmp, "vault.lock"), cfg.LockPath())
}

func TestConfig_Validate_ErrorsOnInvalidInputs(t *testing.T) {
	tmp := t.TempDir()

	cases := []struct {
		name   string
		mutate func(c *Config)
		err    error
	}{
		{"empty username", func(c *Config) { c.Username = "" }, ErrInvalidUsername},
		{"username with slash", func(c *Config) { c.Username = "a/b" }, ErrInvalidUsername},
		{"ftp server", func(c *Config) { c.ServerURL = "ftp://bad.example.com" }, ErrInvalidServerURL},
		{"server without host", func(c *Config) { c.ServerURL = "http://" }, ErrInvalidServerURL},
		{"log level", func(c *Config) { c.Log.Level = "loud" }, ErrInvalidLogLevel},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := &Config{DataDir: tmp, Username: "alice", ServerURL: "http://localhost:8080"}
			tc.mutate(cfg)
			assert.ErrorIs(t, cfg.Validate(), tc.err)
		})
	}
}

func TestConfig_SaveAndLoad(t *testing.T) {
	tmp := t.TempDir()
	cfg := &Config{
		DataDir:   tmp,
		Username:  "alice",
		ServerURL: "https://vault.example.com",
		Sync:      SyncConfig{RetryLimit: 3, Interval: time.Minute},
		Log:       LogConfig{Level: "debug"},
	}
	require.NoError(t, cfg.Validate())
	require.NoError(t, cfg.Save())

	raw, err := os.ReadFile(cfg.Path)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"interval": "1m0s"`)

	loaded, err := Load(viper.New(), cfg.Path)
	require.NoError(t, err)
	assert.Equal(t, cfg, loaded)
	assert.Equal(t, slog.LevelDebug, loaded.LogLevel())
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	tmp := t.TempDir()
	path := filepath.Join(tmp, "config.json")
	require.NoError(t, os.WriteFile(path, []byte(`{
	"data_dir": "`+filepath.ToSlash(tmp)+`",
	"username": "alice",
	"server_url": "http://localhost:8080",
	"sync": {"retry_limit": 4, "interval": "10s"}
}`), 0o600))

	t.Setenv("SYFTVAULT_SERVER_URL", "https://override.example.com")
	t.Setenv("SYFTVAULT_SYNC_RETRY_LIMIT", "7")

	cfg, err := Load(viper.New(), path)
	require.NoError(t, err)
	assert.Equal(t, "alice", cfg.Username)
	assert.Equal(t, "https://override.example.com", cfg.ServerURL)
	assert.Equal(t, 7, cfg.Sync.RetryLimit)
	assert.Equal(t, 10*time.Second, cfg.Sync.Interval)
	assert.Equal(t, path, cfg.Path)
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	tmp := t.TempDir()
	t.Setenv("SYFTVAULT_USERNAME", "bob")
	t.Setenv("SYFTVAULT_DATA_DIR", tmp)

	cfg, err := Load(viper.New(), filepath.Join(tmp, "missing.json"))
	require.NoError(t, err)
	assert.Equal(t, "bob", cfg.Username)
	assert.Equal(t, DefaultServerURL, cfg.ServerURL)
	assert.Equal(t, tmp, cfg.DataDir)
}
