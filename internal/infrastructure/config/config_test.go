package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var envKeys = []string{
	"SERVER_HOST", "SERVER_PORT", "LISTEN_URL", "MAX_BODY_SIZE", "CORS_ALLOWED_ORIGINS",
	"REDIS_URL", "REDIS_POOL_SIZE", "SESSION_TTL", "MAX_REQUESTS_PER_SESSION", "LOG_LEVEL", "DEV_MODE",
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range envKeys {
		t.Setenv(k, "")
	}
}

func TestDefaults(t *testing.T) {
	clearEnv(t)
	cfg := FromEnv()
	assert.Equal(t, "0.0.0.0", cfg.Host)
	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, "0.0.0.0:8080", cfg.Addr())
	assert.Equal(t, "http://localhost:8080", cfg.ListenURL)
	assert.Equal(t, 10485760, cfg.MaxBodySize)
	assert.Equal(t, []string{"*"}, cfg.CORSAllowedOrigins)
	assert.True(t, cfg.AllowsAnyOrigin())
	assert.Equal(t, "redis://localhost:6379", cfg.RedisURL)
	assert.False(t, cfg.UsesMemoryStore())
	assert.Equal(t, 10, cfg.RedisPoolSize)
	assert.Equal(t, 10800, cfg.SessionTTLSeconds)
	assert.Equal(t, 1000, cfg.MaxRequestsPerSession)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.False(t, cfg.DevMode)
}

func TestOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("SERVER_PORT", "9000")
	t.Setenv("LISTEN_URL", "https://hooks.example.com/")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://a.example, https://b.example,")
	t.Setenv("REDIS_URL", "memory://")
	t.Setenv("SESSION_TTL", "60")
	t.Setenv("MAX_REQUESTS_PER_SESSION", "not-a-number")
	t.Setenv("DEV_MODE", "true")

	cfg := FromEnv()
	assert.Equal(t, 9000, cfg.Port)
	assert.Equal(t, "https://hooks.example.com", cfg.ListenURL)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.CORSAllowedOrigins)
	assert.False(t, cfg.AllowsAnyOrigin())
	assert.True(t, cfg.UsesMemoryStore())
	assert.Equal(t, 60, cfg.SessionTTLSeconds)
	assert.Equal(t, 1000, cfg.MaxRequestsPerSession)
	assert.True(t, cfg.DevMode)
}

func TestListenURLFollowsPort(t *testing.T) {
	clearEnv(t)
	t.Setenv("SERVER_PORT", "3001")
	assert.Equal(t, "http://localhost:3001", FromEnv().ListenURL)
}

func TestLoadDotEnv(t *testing.T) {
	clearEnv(t)
	// godotenv does not override variables that are already set, even when empty.
	os.Unsetenv("SESSION_TTL")
	t.Cleanup(func() { os.Unsetenv("SESSION_TTL") })
	t.Setenv("LOG_LEVEL", "warn")

	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("SESSION_TTL=120\nLOG_LEVEL=debug\n"), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 120, cfg.SessionTTLSeconds)
	assert.Equal(t, "warn", cfg.LogLevel)

	_, err = Load(filepath.Join(t.TempDir(), "missing.env"))
	assert.NoError(t, err)
}
