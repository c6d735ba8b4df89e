package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/openmined/syftvault/internal/server"
	"github.com/openmined/syftvault/internal/server/blob"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func resetFlags(t *testing.T) {
	t.Helper()
	t.Cleanup(func() {
		for _, name := range []string{"config", "bind", "cert", "key", "data-dir", "blob-backend"} {
			f := rootCmd.Flags().Lookup(name)
			f.Value.Set(f.DefValue)
			f.Changed = false
		}
	})
}

func TestLoadConfigDefaults(t *testing.T) {
	resetFlags(t)

	cfg, err := loadConfig(rootCmd)
	require.NoError(t, err)
	assert.Equal(t, server.DefaultAddr, cfg.HTTP.Addr)
	assert.Equal(t, blob.BackendLocal, cfg.Blob.Backend)
	assert.Equal(t, server.DefaultRateLimit, cfg.RateLimit.Rate)
	assert.True(t, filepath.IsAbs(cfg.DataDir))
	assert.False(t, cfg.HTTP.TLS())
}

func TestLoadConfigEnv(t *testing.T) {
	resetFlags(t)
	t.Setenv("SYFTVAULT_HTTP_ADDR", ":9090")
	t.Setenv("SYFTVAULT_BLOB_BACKEND", "s3")
	t.Setenv("SYFTVAULT_BLOB_S3_BUCKET_NAME", "vault")
	t.Setenv("SYFTVAULT_BLOB_S3_REGION", "us-east-1")
	t.Setenv("SYFTVAULT_BLOB_S3_ENDPOINT", "http://localhost:9000")
	t.Setenv("SYFTVAULT_BLOB_S3_USE_PATH_STYLE", "true")
	t.Setenv("SYFTVAULT_RATE_LIMIT_RATE", "10-S")

	cfg, err := loadConfig(rootCmd)
	require.NoError(t, err)
	assert.Equal(t, ":9090", cfg.HTTP.Addr)
	assert.Equal(t, blob.BackendS3, cfg.Blob.Backend)
	assert.Equal(t, "vault", cfg.Blob.S3.BucketName)
	assert.Equal(t, "us-east-1", cfg.Blob.S3.Region)
	assert.Equal(t, "http://localhost:9000", cfg.Blob.S3.Endpoint)
	assert.True(t, cfg.Blob.S3.UsePathStyle)
	assert.False(t, cfg.Blob.S3.StaticCredentials(), "no keys falls back to the aws credential chain")
	assert.Equal(t, "10-S", cfg.RateLimit.Rate)
}

func TestLoadConfigRejectsHalfS3Credentials(t *testing.T) {
	resetFlags(t)
	t.Setenv("SYFTVAULT_BLOB_BACKEND", "s3")
	t.Setenv("SYFTVAULT_BLOB_S3_BUCKET_NAME", "vault")
	t.Setenv("SYFTVAULT_BLOB_S3_REGION", "us-east-1")
	t.Setenv("SYFTVAULT_BLOB_S3_ACCESS_KEY", "AKIA")

	_, err := loadConfig(rootCmd)
	assert.Error(t, err)
}

func TestLoadConfigYAML(t *testing.T) {
	resetFlags(t)
	tmp := t.TempDir()
	path := filepath.Join(tmp, "server.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
http:
  addr: 0.0.0.0:8443
  cert_file: cert.pem
  key_file: key.pem
data_dir: `+filepath.ToSlash(tmp)+`
rate_limit:
  rate: 100-M
`), 0o644))

	require.NoError(t, rootCmd.Flags().Set("config", path))
	cfg, err := loadConfig(rootCmd)
	require.NoError(t, err)
	assert.Equal(t, "0.0.0.0:8443", cfg.HTTP.Addr)
	assert.True(t, cfg.HTTP.TLS())
	assert.Equal(t, filepath.Clean(tmp), cfg.DataDir)
	assert.Equal(t, "100-M", cfg.RateLimit.Rate)
}

func TestLoadConfigFlagsOverrideFile(t *testing.T) {
	resetFlags(t)
	path := filepath.Join(t.TempDir(), "server.yaml")
	require.NoError(t, os.WriteFile(path, []byte("http:\n  addr: 127.0.0.1:1\n"), 0o644))

	require.NoError(t, rootCmd.Flags().Set("config", path))
	require.NoError(t, rootCmd.Flags().Set("bind", "127.0.0.1:2"))
	cfg, err := loadConfig(rootCmd)
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1:2", cfg.HTTP.Addr)
}

func TestLoadConfigRejectsUnknownBackend(t *testing.T) {
	resetFlags(t)
	require.NoError(t, rootCmd.Flags().Set("blob-backend", "tape"))
	_, err := loadConfig(rootCmd)
	assert.Error(t, err)
}
