package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "server.toml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, ""))
	require.NoError(t, err)
	assert.Equal(t, BackendPostgres, cfg.Database.Backend)
	assert.Equal(t, "0.0.0.0:8080", cfg.Server.BindAddress)
	assert.Equal(t, "is_IS", cfg.Server.DefaultLocale)
	assert.False(t, cfg.Redis.Enabled)
	assert.Equal(t, 2, cfg.Nightly.RunHourUTC)
	assert.NotZero(t, cfg.Server.StartTime)
}

func TestBackendAliases(t *testing.T) {
	for _, alias := range []string{"pg", "postgres", "PostgreSQL"} {
		cfg, err := Load(writeConfig(t, "[database]\nbackend = \""+alias+"\"\n"))
		require.NoError(t, err)
		assert.Equal(t, BackendPostgres, cfg.Database.Backend, alias)
	}
	for _, alias := range []string{"mongo", "mongodb", "ndb"} {
		cfg, err := Load(writeConfig(t, "[database]\nbackend = \""+alias+"\"\n"))
		require.NoError(t, err)
		assert.Equal(t, BackendMongo, cfg.Database.Backend, alias)
	}

	_, err := Load(writeConfig(t, "[database]\nbackend = \"dynamo\"\n"))
	assert.Error(t, err)
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("DATABASE_BACKEND", "ndb")
	t.Setenv("DATABASE_URL", "mongodb://db.internal:27017")
	t.Setenv("REDIS_HOST", "cache.internal")
	t.Setenv("REDIS_PORT", "6380")

	cfg, err := Load(writeConfig(t, "[database]\nbackend = \"pg\"\n"))
	require.NoError(t, err)
	assert.Equal(t, BackendMongo, cfg.Database.Backend)
	assert.Equal(t, "mongodb://db.internal:27017", cfg.Database.URL)
	assert.True(t, cfg.Redis.Enabled)
	assert.Equal(t, "cache.internal:6380", cfg.Redis.Addr())
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.toml"))
	assert.Error(t, err)
}
