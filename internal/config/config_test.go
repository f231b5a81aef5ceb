package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	// Change to temp dir so no config.yaml is found
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) })

	cfg, err := Load()
	require.NoError(t, err)

	assert.Contains(t, cfg.Data.ZHVIURL, "files.zillowstatic.com")
	assert.Equal(t, "data", cfg.Data.DataDir)
	assert.Equal(t, "output", cfg.Data.OutputDir)
	assert.Equal(t, "500k", cfg.Refdata.DetailTier)
	assert.Equal(t, 5, cfg.Map.BucketCount)
	assert.Equal(t, 60, cfg.Fetch.TimeoutSecs)
	assert.Equal(t, 3, cfg.Fetch.MaxRetries)
	assert.Equal(t, "sqlite", cfg.Store.Driver)
	assert.Equal(t, "data/pricemaps.db", cfg.Store.Path)
	assert.Equal(t, "copy", cfg.Deploy.Mode)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
}

func TestLoadFromYAML(t *testing.T) {
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) })

	yaml := `
map:
  bucket_count: 7
store:
  driver: postgres
  database_url: postgres://localhost/pricemaps
deploy:
  mode: ftp
  ftp_host: ftp.example.com:21
log:
  level: debug
  format: console
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0644))

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 7, cfg.Map.BucketCount)
	assert.Equal(t, "postgres", cfg.Store.Driver)
	assert.Equal(t, "postgres://localhost/pricemaps", cfg.Store.DatabaseURL)
	assert.Equal(t, "ftp", cfg.Deploy.Mode)
	assert.Equal(t, "ftp.example.com:21", cfg.Deploy.FTPHost)
	assert.Equal(t, "debug", cfg.Log.Level)
	// Defaults still apply for unset values
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "data", cfg.Data.DataDir)
}

func TestLoadEnvOverridesFile(t *testing.T) {
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) })

	yaml := `
log:
  level: debug
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0644))

	t.Setenv("PRICEMAPS_LOG_LEVEL", "warn")
	t.Setenv("PRICEMAPS_MAP_BUCKET_COUNT", "4")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "warn", cfg.Log.Level)
	assert.Equal(t, 4, cfg.Map.BucketCount)
}

func TestInitLoggerBadLevel(t *testing.T) {
	err := InitLogger(LogConfig{Level: "shouting", Format: "json"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse log level")
}

func TestInitLoggerConsole(t *testing.T) {
	require.NoError(t, InitLogger(LogConfig{Level: "debug", Format: "console"}))
}
