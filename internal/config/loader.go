package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Load reads a TOML configuration file at path, merges it on top of the
// built-in defaults, applies ARBDESK_* environment variable overrides, and
// returns the final Config. The returned Config has NOT been validated; the
// caller should invoke Config.Validate() after Load.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return nil, err
	}

	// Load .env file if present (silently ignore if missing).
	_ = godotenv.Load()

	applyEnvOverrides(&cfg)

	return &cfg, nil
}

// applyEnvOverrides reads well-known ARBDESK_* environment variables and
// overwrites the corresponding Config fields when a variable is set. This
// lets operators inject secrets at deploy time without touching the TOML
// file.
func applyEnvOverrides(cfg *Config) {
	// ── Polymarket ──
	setStr(&cfg.Polymarket.GammaHost, "ARBDESK_POLYMARKET_GAMMA_HOST")
	setInt(&cfg.Polymarket.PageSize, "ARBDESK_POLYMARKET_PAGE_SIZE")

	// ── Yields ──
	setBool(&cfg.Yields.Enabled, "ARBDESK_YIELDS_ENABLED")
	setStr(&cfg.Yields.BaseURL, "ARBDESK_YIELDS_BASE_URL")
	setFloat64(&cfg.Yields.MinTVL, "ARBDESK_YIELDS_MIN_TVL")
	setInt(&cfg.Yields.Limit, "ARBDESK_YIELDS_LIMIT")

	// ── Supabase ──
	setBool(&cfg.Supabase.Enabled, "ARBDESK_SUPABASE_ENABLED")
	setStr(&cfg.Supabase.DSN, "ARBDESK_SUPABASE_DSN")
	setStr(&cfg.Supabase.Host, "ARBDESK_SUPABASE_HOST")
	setInt(&cfg.Supabase.Port, "ARBDESK_SUPABASE_PORT")
	setStr(&cfg.Supabase.Database, "ARBDESK_SUPABASE_DATABASE")
	setStr(&cfg.Supabase.User, "ARBDESK_SUPABASE_USER")
	setStr(&cfg.Supabase.Password, "ARBDESK_SUPABASE_PASSWORD")
	setStr(&cfg.Supabase.SSLMode, "ARBDESK_SUPABASE_SSLMODE")
	setInt(&cfg.Supabase.PoolMaxConns, "ARBDESK_SUPABASE_POOL_MAX_CONNS")
	setInt(&cfg.Supabase.PoolMinConns, "ARBDESK_SUPABASE_POOL_MIN_CONNS")
	setBool(&cfg.Supabase.RunMigrations, "ARBDESK_SUPABASE_RUN_MIGRATIONS")

	// ── Redis ──
	setBool(&cfg.Redis.Enabled, "ARBDESK_REDIS_ENABLED")
	setStr(&cfg.Redis.Addr, "ARBDESK_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "ARBDESK_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "ARBDESK_REDIS_DB")
	setInt(&cfg.Redis.PoolSize, "ARBDESK_REDIS_POOL_SIZE")
	setInt(&cfg.Redis.MaxRetries, "ARBDESK_REDIS_MAX_RETRIES")
	setBool(&cfg.Redis.TLSEnabled, "ARBDESK_REDIS_TLS_ENABLED")

	// ── S3 ──
	setBool(&cfg.S3.Enabled, "ARBDESK_S3_ENABLED")
	setStr(&cfg.S3.Endpoint, "ARBDESK_S3_ENDPOINT")
	setStr(&cfg.S3.Region, "ARBDESK_S3_REGION")
	setStr(&cfg.S3.Bucket, "ARBDESK_S3_BUCKET")
	setStr(&cfg.S3.AccessKey, "ARBDESK_S3_ACCESS_KEY")
	setStr(&cfg.S3.SecretKey, "ARBDESK_S3_SECRET_KEY")
	setBool(&cfg.S3.UseSSL, "ARBDESK_S3_USE_SSL")
	setBool(&cfg.S3.ForcePathStyle, "ARBDESK_S3_FORCE_PATH_STYLE")

	// ── Cache ──
	setDuration(&cfg.Cache.TTL, "ARBDESK_CACHE_TTL")
	setFloat64(&cfg.Cache.Epsilon, "ARBDESK_CACHE_EPSILON")

	// ── Paper ──
	setFloat64(&cfg.Paper.AutoExecuteThreshold, "ARBDESK_PAPER_AUTO_EXECUTE_THRESHOLD")
	setFloat64(&cfg.Paper.MaxTradeSizeUSD, "ARBDESK_PAPER_MAX_TRADE_SIZE_USD")
	setFloat64(&cfg.Paper.MaxTokenLimit, "ARBDESK_PAPER_MAX_TOKEN_LIMIT")
	setBool(&cfg.Paper.AutoTradingEnabled, "ARBDESK_PAPER_AUTO_TRADING_ENABLED")

	// ── Pipeline ──
	setBool(&cfg.Pipeline.Enabled, "ARBDESK_PIPELINE_ENABLED")
	setStr(&cfg.Pipeline.RefreshCron, "ARBDESK_PIPELINE_REFRESH_CRON")
	setBool(&cfg.Pipeline.AutoScan, "ARBDESK_PIPELINE_AUTO_SCAN")
	setInt(&cfg.Pipeline.ArchiveRetentionDays, "ARBDESK_PIPELINE_ARCHIVE_RETENTION_DAYS")
	setStr(&cfg.Pipeline.ArchiveCron, "ARBDESK_PIPELINE_ARCHIVE_CRON")

	// ── Server ──
	setBool(&cfg.Server.Enabled, "ARBDESK_SERVER_ENABLED")
	setInt(&cfg.Server.Port, "ARBDESK_SERVER_PORT")
	setStringSlice(&cfg.Server.CORSOrigins, "ARBDESK_SERVER_CORS_ORIGINS")
	setStr(&cfg.Server.APIKey, "ARBDESK_SERVER_API_KEY")
	setInt(&cfg.Server.RateLimit, "ARBDESK_SERVER_RATE_LIMIT")
	setDuration(&cfg.Server.RateLimitWindow, "ARBDESK_SERVER_RATE_LIMIT_WINDOW")

	// ── Notify ──
	setStr(&cfg.Notify.TelegramToken, "ARBDESK_NOTIFY_TELEGRAM_TOKEN")
	setStr(&cfg.Notify.TelegramChatID, "ARBDESK_NOTIFY_TELEGRAM_CHAT_ID")
	setStr(&cfg.Notify.DiscordWebhookURL, "ARBDESK_NOTIFY_DISCORD_WEBHOOK_URL")
	setStringSlice(&cfg.Notify.Events, "ARBDESK_NOTIFY_EVENTS")

	// ── Top-level ──
	setStr(&cfg.Mode, "ARBDESK_MODE")
	setStr(&cfg.LogLevel, "ARBDESK_LOG_LEVEL")
}

// ---------------------------------------------------------------------------
// Typed env-var helpers. Each only mutates the target when the environment
// variable is present and non-empty.
// ---------------------------------------------------------------------------

func setStr(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setFloat64(dst *float64, key string) {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = f
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setDuration(dst *duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			dst.Duration = d
		}
	}
}

func setStringSlice(dst *[]string, key string) {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		cleaned := make([]string, 0, len(parts))
		for _, p := range parts {
			p = strings.TrimSpace(p)
			if p != "" {
				cleaned = append(cleaned, p)
			}
		}
		if len(cleaned) > 0 {
			*dst = cleaned
		}
	}
}
