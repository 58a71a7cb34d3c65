package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("JWT_SECRET", "s3cret")

	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))

	require.NoError(t, err)
	assert.Equal(t, StoreMemory, cfg.Store)
	assert.Equal(t, ":4000", cfg.Addr())
	assert.Equal(t, "s3cret", cfg.Auth.JWTSecret)
	assert.Equal(t, 72*time.Hour, cfg.Auth.TokenTTL)
}

func TestLoadYAMLThenEnv(t *testing.T) {
	t.Chdir(t.TempDir())
	path := filepath.Join(t.TempDir(), "pilgrimsafe.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
store: mongo
server:
  port: "8080"
mongo:
  database: kumbh
redis:
  addr: localhost:6379
  cache_ttl: 30s
auth:
  jwt_secret: from-file
cards:
  font_path: /fonts/from-file.ttf
`), 0o644))
	t.Setenv("MONGO_DB", "kumbh2027")
	t.Setenv("JWT_SECRET", "")
	t.Setenv("CARD_FONT", "/fonts/NotoSansDevanagari.ttf")

	cfg, err := Load(path)

	require.NoError(t, err)
	assert.Equal(t, StoreMongo, cfg.Store)
	assert.Equal(t, ":8080", cfg.Addr())
	assert.Equal(t, "kumbh2027", cfg.Mongo.Database)
	assert.Equal(t, "localhost:6379", cfg.Redis.Addr)
	assert.Equal(t, 30*time.Second, cfg.Redis.CacheTTL)
	assert.Equal(t, "from-file", cfg.Auth.JWTSecret)
	assert.Equal(t, "/fonts/NotoSansDevanagari.ttf", cfg.Cards.FontPath)
}

func TestLoadReadsDotEnv(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("JWT_SECRET=dotenv\nPORT=9000\n"), 0o600))
	// godotenv never overrides a variable that is present, even when empty.
	for _, key := range []string{"JWT_SECRET", "PORT"} {
		t.Setenv(key, "")
		require.NoError(t, os.Unsetenv(key))
	}

	cfg, err := Load("")

	require.NoError(t, err)
	assert.Equal(t, "dotenv", cfg.Auth.JWTSecret)
	assert.Equal(t, ":9000", cfg.Addr())
}

func TestValidate(t *testing.T) {
	cfg := DefaultConfig()
	assert.Error(t, cfg.Validate())

	cfg.Auth.JWTSecret = "x"
	require.NoError(t, cfg.Validate())

	cfg.Store = "sqlite"
	assert.Error(t, cfg.Validate())
}

func TestEnvOverrideBadRedisDB(t *testing.T) {
	t.Setenv("REDIS_DB", "one")

	cfg := DefaultConfig()

	assert.Error(t, cfg.applyEnvOverrides())
}
