package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeYAML(t *testing.T, body string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(p, []byte(body), 0o600))
	return p
}

func TestLoadDefaultsWithoutFile(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)
	assert.Equal(t, 3001, cfg.App.HTTP.Port)
	assert.Equal(t, "postgres", cfg.DB.Driver)
	assert.Equal(t, "shelf-taught-api", cfg.JWT.Issuer)
	assert.NotEmpty(t, cfg.JWT.Secret)
}

func TestLoadFileAndEnvAliases(t *testing.T) {
	p := writeYAML(t, `
app:
  http:
    port: 4000
db:
  driver: sqlite
  dsn: file::memory:
jwt:
  secret: from-file
`)
	t.Setenv("DATABASE_URL", "file:override.db")
	t.Setenv("JWT_SECRET", "from-env")
	t.Setenv("FRONTEND_URL", "https://shelftaught.example")

	cfg, err := Load(p)
	require.NoError(t, err)
	assert.Equal(t, 4000, cfg.App.HTTP.Port)
	assert.Equal(t, "sqlite", cfg.DB.Driver)
	assert.Equal(t, "file:override.db", cfg.DB.DSN)
	assert.Equal(t, "from-env", cfg.JWT.Secret)
	assert.Equal(t, "https://shelftaught.example", cfg.App.FrontendURL)
}

func TestLoadPrefixedEnv(t *testing.T) {
	p := writeYAML(t, "db:\n  driver: sqlite\n")
	t.Setenv("APP_LOG_LEVEL", "error")
	t.Setenv("PORT", "8088")

	cfg, err := Load(p)
	require.NoError(t, err)
	assert.Equal(t, "error", cfg.Log.Level)
	assert.Equal(t, 8088, cfg.App.HTTP.Port)
}

func TestValidateProductionSecret(t *testing.T) {
	p := writeYAML(t, "app:\n  env: production\njwt:\n  secret: short\n")
	_, err := Load(p)
	assert.Error(t, err)
}

func TestValidateDriver(t *testing.T) {
	p := writeYAML(t, "db:\n  driver: oracle\n")
	_, err := Load(p)
	assert.Error(t, err)
}
