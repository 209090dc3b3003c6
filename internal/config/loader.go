package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"

	"github.com/alanyoungcy/limitlessbot/internal/domain"
)

// Load merges the TOML file at path (if it exists) over Defaults, loads a
// .env file from the working directory when present, and applies environment
// overrides. The result has not been validated.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if path != "" {
		if _, err := toml.DecodeFile(path, &cfg); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, domain.ConfigFailure("config: decode "+path, err)
		}
	}

	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, domain.ConfigFailure("config: load .env", err)
	}

	if err := applyEnvOverrides(&cfg); err != nil {
		return nil, domain.ConfigFailure("config: env", err)
	}
	return &cfg, nil
}

// envReader applies variables and remembers the first parse error.
type envReader struct {
	err error
}

func (r *envReader) fail(key, v string, err error) {
	if r.err == nil {
		r.err = fmt.Errorf("%s=%q: %w", key, v, err)
	}
}

// applyEnvOverrides reads LIMITLESS_* variables. The unprefixed names the
// bot has always accepted are read first so the prefixed form wins when both
// are set.
func applyEnvOverrides(cfg *Config) error {
	r := &envReader{}

	// Legacy names.
	r.str(&cfg.Limitless.APIKey, "LIMITLESS_API_KEY")
	r.float(&cfg.Strategy.EdgeThreshold, "EDGE_THRESHOLD")
	r.float(&cfg.Strategy.TakeProfitPercent, "TAKE_PROFIT_PERCENT")
	r.float(&cfg.Strategy.MaxPositionPercent, "MAX_POSITION_PERCENT")
	r.boolean(&cfg.PaperTrading, "PAPER_TRADING")
	r.str(&cfg.LogLevel, "LOG_LEVEL")
	r.str(&cfg.LogFile, "LOG_FILE")

	// ── Limitless ──
	r.str(&cfg.Limitless.BaseURL, "LIMITLESS_BASE_URL")
	r.dur(&cfg.Limitless.RequestTimeout, "LIMITLESS_REQUEST_TIMEOUT")
	r.float(&cfg.Limitless.RateLimit, "LIMITLESS_RATE_LIMIT")
	r.integer(&cfg.Limitless.RateBurst, "LIMITLESS_RATE_BURST")
	r.integer(&cfg.Limitless.MaxRetries, "LIMITLESS_MAX_RETRIES")

	// ── Wallet ──
	r.str(&cfg.Wallet.PrivateKey, "LIMITLESS_WALLET_PRIVATE_KEY")
	r.str(&cfg.Wallet.EncryptedKeyPath, "LIMITLESS_WALLET_ENCRYPTED_KEY_PATH")
	r.str(&cfg.Wallet.KeyPassword, "LIMITLESS_WALLET_KEY_PASSWORD")
	r.int64(&cfg.Wallet.ChainID, "LIMITLESS_WALLET_CHAIN_ID")
	r.str(&cfg.Wallet.VerifyingContract, "LIMITLESS_WALLET_VERIFYING_CONTRACT")

	// ── Feed ──
	r.str(&cfg.Feed.URL, "LIMITLESS_FEED_URL")
	r.str(&cfg.Feed.Symbol, "LIMITLESS_FEED_SYMBOL")
	r.dur(&cfg.Feed.ReconnectBackoff, "LIMITLESS_FEED_RECONNECT_BACKOFF")
	r.dur(&cfg.Feed.PingInterval, "LIMITLESS_FEED_PING_INTERVAL")
	r.dur(&cfg.Feed.PongTimeout, "LIMITLESS_FEED_PONG_TIMEOUT")
	r.dur(&cfg.Feed.MirrorInterval, "LIMITLESS_FEED_MIRROR_INTERVAL")

	// ── Catalog ──
	r.dur(&cfg.Catalog.RefreshInterval, "LIMITLESS_CATALOG_REFRESH_INTERVAL")
	r.list(&cfg.Catalog.Statuses, "LIMITLESS_CATALOG_STATUSES")
	r.list(&cfg.Catalog.AssetKeywords, "LIMITLESS_CATALOG_ASSET_KEYWORDS")
	r.list(&cfg.Catalog.DurationKeywords, "LIMITLESS_CATALOG_DURATION_KEYWORDS")
	r.boolean(&cfg.Catalog.KeepSnapshotOnError, "LIMITLESS_CATALOG_KEEP_SNAPSHOT_ON_ERROR")

	// ── Strategy ──
	r.float(&cfg.Strategy.EdgeThreshold, "LIMITLESS_STRATEGY_EDGE_THRESHOLD")
	r.float(&cfg.Strategy.TakeProfitPercent, "LIMITLESS_STRATEGY_TAKE_PROFIT_PERCENT")
	r.float(&cfg.Strategy.MaxPositionPercent, "LIMITLESS_STRATEGY_MAX_POSITION_PERCENT")
	r.dur(&cfg.Strategy.CycleInterval, "LIMITLESS_STRATEGY_CYCLE_INTERVAL")
	r.dur(&cfg.Strategy.OrphanInterval, "LIMITLESS_STRATEGY_ORPHAN_INTERVAL")

	// ── Redis ──
	r.boolean(&cfg.Redis.Enabled, "LIMITLESS_REDIS_ENABLED")
	r.str(&cfg.Redis.Addr, "LIMITLESS_REDIS_ADDR")
	r.str(&cfg.Redis.Password, "LIMITLESS_REDIS_PASSWORD")
	r.integer(&cfg.Redis.DB, "LIMITLESS_REDIS_DB")
	r.boolean(&cfg.Redis.TLSEnabled, "LIMITLESS_REDIS_TLS_ENABLED")
	r.str(&cfg.Redis.KeyPrefix, "LIMITLESS_REDIS_KEY_PREFIX")

	// ── Postgres ──
	r.boolean(&cfg.Postgres.Enabled, "LIMITLESS_POSTGRES_ENABLED")
	r.str(&cfg.Postgres.DSN, "LIMITLESS_POSTGRES_DSN")
	r.str(&cfg.Postgres.Host, "LIMITLESS_POSTGRES_HOST")
	r.integer(&cfg.Postgres.Port, "LIMITLESS_POSTGRES_PORT")
	r.str(&cfg.Postgres.Database, "LIMITLESS_POSTGRES_DATABASE")
	r.str(&cfg.Postgres.User, "LIMITLESS_POSTGRES_USER")
	r.str(&cfg.Postgres.Password, "LIMITLESS_POSTGRES_PASSWORD")
	r.str(&cfg.Postgres.SSLMode, "LIMITLESS_POSTGRES_SSL_MODE")

	// ── S3 ──
	r.boolean(&cfg.S3.Enabled, "LIMITLESS_S3_ENABLED")
	r.str(&cfg.S3.Endpoint, "LIMITLESS_S3_ENDPOINT")
	r.str(&cfg.S3.Region, "LIMITLESS_S3_REGION")
	r.str(&cfg.S3.Bucket, "LIMITLESS_S3_BUCKET")
	r.str(&cfg.S3.AccessKey, "LIMITLESS_S3_ACCESS_KEY")
	r.str(&cfg.S3.SecretKey, "LIMITLESS_S3_SECRET_KEY")
	r.str(&cfg.S3.Prefix, "LIMITLESS_S3_PREFIX")

	// ── Notify ──
	r.str(&cfg.Notify.TelegramToken, "LIMITLESS_NOTIFY_TELEGRAM_TOKEN")
	r.str(&cfg.Notify.TelegramChatID, "LIMITLESS_NOTIFY_TELEGRAM_CHAT_ID")
	r.str(&cfg.Notify.DiscordWebhookURL, "LIMITLESS_NOTIFY_DISCORD_WEBHOOK_URL")
	r.list(&cfg.Notify.Events, "LIMITLESS_NOTIFY_EVENTS")

	// ── Server ──
	r.boolean(&cfg.Server.Enabled, "LIMITLESS_SERVER_ENABLED")
	r.str(&cfg.Server.Addr, "LIMITLESS_SERVER_ADDR")
	r.str(&cfg.Server.AuthToken, "LIMITLESS_SERVER_AUTH_TOKEN")
	r.list(&cfg.Server.CORSOrigins, "LIMITLESS_SERVER_CORS_ORIGINS")

	// ── Top-level ──
	r.boolean(&cfg.PaperTrading, "LIMITLESS_PAPER_TRADING")
	r.str(&cfg.LogLevel, "LIMITLESS_LOG_LEVEL")
	r.str(&cfg.LogFormat, "LIMITLESS_LOG_FORMAT")
	r.str(&cfg.LogFile, "LIMITLESS_LOG_FILE")
	r.integer(&cfg.LogMaxSizeMB, "LIMITLESS_LOG_MAX_SIZE_MB")
	r.integer(&cfg.LogMaxBackups, "LIMITLESS_LOG_MAX_BACKUPS")

	cfg.Limitless.APIKey = strings.TrimSpace(cfg.Limitless.APIKey)
	cfg.LogLevel = strings.ToLower(cfg.LogLevel)
	cfg.LogFormat = strings.ToLower(cfg.LogFormat)
	return r.err
}

// Each helper mutates its target only when the variable is set and
// non-empty.

func (r *envReader) str(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func (r *envReader) integer(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			r.fail(key, v, err)
			return
		}
		*dst = n
	}
}

func (r *envReader) int64(dst *int64, key string) {
	if v := os.Getenv(key); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			r.fail(key, v, err)
			return
		}
		*dst = n
	}
}

func (r *envReader) float(dst *float64, key string) {
	if v := os.Getenv(key); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			r.fail(key, v, err)
			return
		}
		*dst = f
	}
}

// boolean accepts 1/true/yes/on as true; any other non-empty value is false.
func (r *envReader) boolean(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = parseBool(v)
	}
}

func (r *envReader) dur(dst *duration, key string) {
	if v := os.Getenv(key); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			r.fail(key, v, err)
			return
		}
		dst.Duration = d
	}
}

func (r *envReader) list(dst *[]string, key string) {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		cleaned := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				cleaned = append(cleaned, p)
			}
		}
		if len(cleaned) > 0 {
			*dst = cleaned
		}
	}
}

func parseBool(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "1", "true", "yes", "on":
		return true
	}
	return false
}
