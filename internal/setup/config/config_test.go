package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/harborchat/harbor/internal/setup/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) {
	t.Helper()

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "harbor.toml"), []byte(content), 0o600))
	t.Chdir(dir)
}

func TestLoadConfig(t *testing.T) {
	writeConfig(t, `
version = 1

[debug]
log_level = "info"

[postgresql]
host = "localhost"
port = 5432
user = "harbor"
db_name = "harbor"
max_open_conns = 8

[redis]
host = "localhost"
port = 6379

[snowflake]
worker_id = 3

[events]
workers = 4
`)

	cfg, usedPath, err := config.LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, ".", usedPath)
	assert.Equal(t, "info", cfg.Debug.LogLevel)
	assert.Equal(t, "localhost", cfg.PostgreSQL.Host)
	assert.Equal(t, 5432, cfg.PostgreSQL.Port)
	assert.Equal(t, 8, cfg.PostgreSQL.MaxOpenConns)
	assert.Equal(t, int64(3), cfg.Snowflake.WorkerID)
	assert.Equal(t, 4, cfg.Events.Workers)
}

func TestLoadConfigMissingVersion(t *testing.T) {
	writeConfig(t, `
[debug]
log_level = "info"
`)

	_, _, err := config.LoadConfig()
	require.ErrorIs(t, err, config.ErrConfigVersionMissing)
}

func TestLoadConfigVersionMismatch(t *testing.T) {
	writeConfig(t, `
version = 99
`)

	_, _, err := config.LoadConfig()
	require.ErrorIs(t, err, config.ErrConfigVersionMismatch)
}

func TestLoadConfigNotFound(t *testing.T) {
	t.Chdir(t.TempDir())

	_, _, err := config.LoadConfig()
	require.ErrorIs(t, err, config.ErrConfigFileNotFound)
}
