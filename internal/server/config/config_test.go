package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func withArgs(t *testing.T, args ...string) {
	t.Helper()
	orig := os.Args
	os.Args = append([]string{"server"}, args...)
	t.Cleanup(func() { os.Args = orig })
}

func TestLoadDefaults(t *testing.T) {
	cfg := &Config{}
	cfg.LoadDefaults()

	assert.Equal(t, ":8080", cfg.EndpointAddrHTTP)
	assert.Empty(t, cfg.RedisAddr)
	assert.Equal(t, "https://api.groq.com/openai", cfg.GroqBaseURL)
	assert.Equal(t, 24*time.Hour, cfg.AccessTokenValidityDuration)
	assert.False(t, cfg.LimitsEnabled)
}

func TestParseEnv_Overlay(t *testing.T) {
	t.Setenv("SERVER_ADDRESS", ":9999")
	t.Setenv("REDIS_ADDR", "redis:6379")
	t.Setenv("REDIS_DB", "3")
	t.Setenv("GROQ_API_KEY", "gsk-test")
	t.Setenv("LIMITS_ENABLED", "true")

	cfg := &Config{}
	cfg.LoadDefaults()
	parseEnv(cfg)

	assert.Equal(t, ":9999", cfg.EndpointAddrHTTP)
	assert.Equal(t, "redis:6379", cfg.RedisAddr)
	assert.Equal(t, 3, cfg.RedisDB)
	assert.Equal(t, "gsk-test", cfg.GroqAPIKey)
	assert.True(t, cfg.LimitsEnabled)
}

func TestParseEnv_InvalidValuesIgnored(t *testing.T) {
	t.Setenv("REDIS_DB", "not-a-number")
	t.Setenv("LIMITS_ENABLED", "maybe")

	cfg := &Config{}
	cfg.LoadDefaults()
	parseEnv(cfg)

	assert.Equal(t, 0, cfg.RedisDB)
	assert.False(t, cfg.LimitsEnabled)
}

func TestParseJson_PartialOverlay(t *testing.T) {
	path := filepath.Join(t.TempDir(), "conf.json")
	require.NoError(t, os.WriteFile(path, []byte(`{
		"redis_addr": "redis:6379",
		"jwt_secret": "file-secret",
		"access_token_validity_minutes": 60,
		"limits_enabled": true
	}`), 0o600))

	withArgs(t, "-c", path)

	cfg := &Config{}
	cfg.LoadDefaults()
	parseJson(cfg)

	assert.Equal(t, "redis:6379", cfg.RedisAddr)
	assert.Equal(t, "file-secret", cfg.JWTSecret)
	assert.Equal(t, time.Hour, cfg.AccessTokenValidityDuration)
	assert.True(t, cfg.LimitsEnabled)
	// Untouched fields keep their defaults.
	assert.Equal(t, ":8080", cfg.EndpointAddrHTTP)
}

func TestParseJson_NoFileFlag(t *testing.T) {
	withArgs(t)

	cfg := &Config{}
	cfg.LoadDefaults()
	parseJson(cfg)

	assert.Equal(t, ":8080", cfg.EndpointAddrHTTP)
}

func TestParseFlags(t *testing.T) {
	withArgs(t, "-a", ":7070", "-r", "10.0.0.5:6379", "-l")

	cfg := &Config{}
	cfg.LoadDefaults()
	parseFlags(cfg)

	assert.Equal(t, ":7070", cfg.EndpointAddrHTTP)
	assert.Equal(t, "10.0.0.5:6379", cfg.RedisAddr)
	assert.True(t, cfg.LimitsEnabled)
}

func TestLoadConfig_Precedence(t *testing.T) {
	path := filepath.Join(t.TempDir(), "conf.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"endpoint_addr_http": ":1111"}`), 0o600))

	t.Setenv("SERVER_ADDRESS", ":2222")
	withArgs(t, "-c", path, "-a", ":3333")

	cfg := LoadConfig()

	// Flags win over env, env wins over file.
	assert.Equal(t, ":3333", cfg.EndpointAddrHTTP)
}
