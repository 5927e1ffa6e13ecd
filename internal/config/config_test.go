package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o600))
	return path
}

func TestDefaultsAreValid(t *testing.T) {
	cfg := Defaults()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "full", cfg.Mode)
	assert.Equal(t, 5*time.Minute, cfg.Cache.TTL.Duration)
	assert.InDelta(t, 0.995, cfg.Cache.Epsilon, 1e-9)
	assert.False(t, cfg.Paper.AutoTradingEnabled)
}

func TestLoadMergesOnDefaults(t *testing.T) {
	path := writeConfig(t, `
mode = "server"

[cache]
ttl = "90s"

[paper]
auto_trading_enabled = true
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "server", cfg.Mode)
	assert.Equal(t, 90*time.Second, cfg.Cache.TTL.Duration)
	assert.True(t, cfg.Paper.AutoTradingEnabled)

	// Untouched sections keep their defaults.
	assert.Equal(t, "https://gamma-api.polymarket.com", cfg.Polymarket.GammaHost)
	assert.Equal(t, 200, cfg.Polymarket.PageSize)
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("ARBDESK_MODE", "monitor")
	t.Setenv("ARBDESK_REDIS_ADDR", "redis.internal:6380")
	t.Setenv("ARBDESK_CACHE_TTL", "2m")
	t.Setenv("ARBDESK_PAPER_AUTO_TRADING_ENABLED", "true")

	path := writeConfig(t, `mode = "server"`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "monitor", cfg.Mode)
	assert.Equal(t, "redis.internal:6380", cfg.Redis.Addr)
	assert.Equal(t, 2*time.Minute, cfg.Cache.TTL.Duration)
	assert.True(t, cfg.Paper.AutoTradingEnabled)
}

func TestValidateRejectsBadValues(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"bad mode", func(c *Config) { c.Mode = "turbo" }, "unknown mode"},
		{"bad epsilon", func(c *Config) { c.Cache.Epsilon = 1.5 }, "epsilon"},
		{"zero ttl", func(c *Config) { c.Cache.TTL.Duration = 0 }, "ttl"},
		{"bad port", func(c *Config) { c.Server.Port = 90000 }, "port"},
		{"empty gamma host", func(c *Config) { c.Polymarket.GammaHost = "" }, "gamma_host"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Defaults()
			tt.mutate(&cfg)

			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestRedactedConfigHidesSecrets(t *testing.T) {
	cfg := Defaults()
	cfg.Supabase.Password = "hunter2"
	cfg.Redis.Password = "redispass"
	cfg.S3.SecretKey = "s3secret"
	cfg.Server.APIKey = "apikey"
	cfg.Notify.TelegramToken = "tg-token"

	red := RedactedConfig(&cfg)

	assert.NotContains(t, []string{
		red.Supabase.Password,
		red.Redis.Password,
		red.S3.SecretKey,
		red.Server.APIKey,
		red.Notify.TelegramToken,
	}, "hunter2")
	assert.Equal(t, "***", red.Supabase.Password)
	assert.Equal(t, "***", red.Redis.Password)
	assert.Equal(t, "***", red.S3.SecretKey)

	// Original is untouched.
	assert.Equal(t, "hunter2", cfg.Supabase.Password)
}
