// Package config defines the bot's configuration and its validation rules.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/alanyoungcy/limitlessbot/internal/domain"
)

// Config is the root configuration. Fields come from a TOML file and are
// then overridden by environment variables. It is not modified after Load.
type Config struct {
	Limitless LimitlessConfig `toml:"limitless"`
	Wallet    WalletConfig    `toml:"wallet"`
	Feed      FeedConfig      `toml:"feed"`
	Catalog   CatalogConfig   `toml:"catalog"`
	Strategy  StrategyConfig  `toml:"strategy"`
	Redis     RedisConfig     `toml:"redis"`
	Postgres  PostgresConfig  `toml:"postgres"`
	S3        S3Config        `toml:"s3"`
	Notify    NotifyConfig    `toml:"notify"`
	Server    ServerConfig    `toml:"server"`

	PaperTrading bool   `toml:"paper_trading"`
	LogLevel     string `toml:"log_level"`
	LogFormat    string `toml:"log_format"`
	LogFile      string `toml:"log_file"`

	// Rotation for LogFile.
	LogMaxSizeMB  int `toml:"log_max_size_mb"`
	LogMaxBackups int `toml:"log_max_backups"`
}

// LimitlessConfig holds the venue API settings.
type LimitlessConfig struct {
	APIKey         string   `toml:"api_key"`
	BaseURL        string   `toml:"base_url"`
	RequestTimeout duration `toml:"request_timeout"`
	RateLimit      float64  `toml:"rate_limit"` // requests per second
	RateBurst      int      `toml:"rate_burst"`
	MaxRetries     int      `toml:"max_retries"`
}

// WalletConfig holds the optional order-signing key.
type WalletConfig struct {
	PrivateKey        string `toml:"private_key"`
	EncryptedKeyPath  string `toml:"encrypted_key_path"`
	KeyPassword       string `toml:"key_password"`
	ChainID           int64  `toml:"chain_id"`
	VerifyingContract string `toml:"verifying_contract"`
}

// HasKey reports whether a signing key source is configured.
func (w WalletConfig) HasKey() bool {
	return w.PrivateKey != "" || w.EncryptedKeyPath != ""
}

// FeedConfig holds the reference price stream settings.
type FeedConfig struct {
	URL              string   `toml:"url"`
	Symbol           string   `toml:"symbol"`
	ReconnectBackoff duration `toml:"reconnect_backoff"`
	PingInterval     duration `toml:"ping_interval"`
	PongTimeout      duration `toml:"pong_timeout"`
	MirrorInterval   duration `toml:"mirror_interval"`
}

// CatalogConfig holds market discovery settings.
type CatalogConfig struct {
	RefreshInterval     duration `toml:"refresh_interval"`
	Statuses            []string `toml:"statuses"`
	AssetKeywords       []string `toml:"asset_keywords"`
	DurationKeywords    []string `toml:"duration_keywords"`
	KeepSnapshotOnError bool     `toml:"keep_snapshot_on_error"`
}

// StrategyConfig holds the entry and exit policy.
type StrategyConfig struct {
	EdgeThreshold      float64  `toml:"edge_threshold"`
	TakeProfitPercent  float64  `toml:"take_profit_percent"`
	MaxPositionPercent float64  `toml:"max_position_percent"`
	CycleInterval      duration `toml:"cycle_interval"`
	OrphanInterval     duration `toml:"orphan_interval"`
}

// RedisConfig holds Redis connection parameters.
type RedisConfig struct {
	Enabled    bool     `toml:"enabled"`
	Addr       string   `toml:"addr"`
	Password   string   `toml:"password"`
	DB         int      `toml:"db"`
	PoolSize   int      `toml:"pool_size"`
	MaxRetries int      `toml:"max_retries"`
	TLSEnabled bool     `toml:"tls_enabled"`
	KeyPrefix  string   `toml:"key_prefix"`
	LockTTL    duration `toml:"lock_ttl"`
	PriceTTL   duration `toml:"price_ttl"`
}

// PostgresConfig holds PostgreSQL connection parameters.
type PostgresConfig struct {
	Enabled       bool   `toml:"enabled"`
	DSN           string `toml:"dsn"`
	Host          string `toml:"host"`
	Port          int    `toml:"port"`
	Database      string `toml:"database"`
	User          string `toml:"user"`
	Password      string `toml:"password"`
	SSLMode       string `toml:"ssl_mode"`
	PoolMaxConns  int    `toml:"pool_max_conns"`
	PoolMinConns  int    `toml:"pool_min_conns"`
	RunMigrations bool   `toml:"run_migrations"`
	PreferIPv4    bool   `toml:"prefer_ipv4"`
}

// S3Config holds S3-compatible object storage parameters.
type S3Config struct {
	Enabled        bool   `toml:"enabled"`
	Endpoint       string `toml:"endpoint"`
	Region         string `toml:"region"`
	Bucket         string `toml:"bucket"`
	AccessKey      string `toml:"access_key"`
	SecretKey      string `toml:"secret_key"`
	UseSSL         bool   `toml:"use_ssl"`
	ForcePathStyle bool   `toml:"force_path_style"`
	Prefix         string `toml:"prefix"`
}

// NotifyConfig holds chat notification settings. A channel is active when its
// credentials are set.
type NotifyConfig struct {
	TelegramToken     string   `toml:"telegram_token"`
	TelegramChatID    string   `toml:"telegram_chat_id"`
	DiscordWebhookURL string   `toml:"discord_webhook_url"`
	Events            []string `toml:"events"`
}

// Enabled reports whether any channel is configured.
func (n NotifyConfig) Enabled() bool {
	return n.TelegramToken != "" || n.DiscordWebhookURL != ""
}

// ServerConfig holds the status API settings.
type ServerConfig struct {
	Enabled     bool     `toml:"enabled"`
	Addr        string   `toml:"addr"`
	AuthToken   string   `toml:"auth_token"`
	CORSOrigins []string `toml:"cors_origins"`
	RateLimit   float64  `toml:"rate_limit"`
	RateBurst   int      `toml:"rate_burst"`
}

// duration wraps time.Duration so TOML strings like "5s" decode directly.
type duration struct {
	time.Duration
}

func (d *duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

func (d duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// Defaults returns a Config populated with sensible defaults. Paper trading
// is on unless explicitly disabled.
func Defaults() Config {
	return Config{
		Limitless: LimitlessConfig{
			BaseURL:        "https://api.limitless.exchange",
			RequestTimeout: duration{15 * time.Second},
			RateLimit:      5,
			RateBurst:      5,
			MaxRetries:     3,
		},
		Wallet: WalletConfig{
			ChainID: 8453,
		},
		Feed: FeedConfig{
			URL:              "wss://stream.binance.com:9443/ws/btcusdt@trade",
			Symbol:           "BTCUSDT",
			ReconnectBackoff: duration{5 * time.Second},
			PingInterval:     duration{20 * time.Second},
			PongTimeout:      duration{20 * time.Second},
			MirrorInterval:   duration{time.Second},
		},
		Catalog: CatalogConfig{
			RefreshInterval:     duration{60 * time.Second},
			Statuses:            []string{"active", "open", "trading"},
			AssetKeywords:       []string{"btc", "bitcoin"},
			DurationKeywords:    []string{"1h", "1 hour"},
			KeepSnapshotOnError: true,
		},
		Strategy: StrategyConfig{
			EdgeThreshold:      0.05,
			TakeProfitPercent:  0.03,
			MaxPositionPercent: 0.6,
			CycleInterval:      duration{250 * time.Millisecond},
			OrphanInterval:     duration{30 * time.Second},
		},
		Redis: RedisConfig{
			Addr:       "localhost:6379",
			PoolSize:   10,
			MaxRetries: 3,
			KeyPrefix:  "limitlessbot",
			LockTTL:    duration{30 * time.Second},
			PriceTTL:   duration{5 * time.Minute},
		},
		Postgres: PostgresConfig{
			Host:          "localhost",
			Port:          5432,
			Database:      "postgres",
			User:          "postgres",
			SSLMode:       "disable",
			PoolMaxConns:  5,
			PoolMinConns:  1,
			RunMigrations: true,
		},
		S3: S3Config{
			Region:         "us-east-1",
			Bucket:         "limitlessbot",
			ForcePathStyle: true,
			Prefix:         "journals",
		},
		Server: ServerConfig{
			Addr:      ":8080",
			RateLimit: 10,
			RateBurst: 20,
		},
		PaperTrading: true,
		LogLevel:     "info",
		LogFormat:    "text",
		LogFile:      "limitless_bot.log",

		LogMaxSizeMB:  5,
		LogMaxBackups: 5,
	}
}

var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

var validLogFormats = map[string]bool{
	"text": true,
	"json": true,
}

// Validate checks the whole config and reports every problem at once as a
// configuration failure.
func (c *Config) Validate() error {
	var errs []string
	add := func(format string, args ...any) {
		errs = append(errs, fmt.Sprintf(format, args...))
	}

	if !validLogLevels[strings.ToLower(c.LogLevel)] {
		add("unknown log_level %q (valid: debug, info, warn, error)", c.LogLevel)
	}
	if !validLogFormats[strings.ToLower(c.LogFormat)] {
		add("unknown log_format %q (valid: text, json)", c.LogFormat)
	}

	if c.LogFile != "" {
		if c.LogMaxSizeMB <= 0 {
			add("log_max_size_mb must be > 0")
		}
		if c.LogMaxBackups < 0 {
			add("log_max_backups must be >= 0")
		}
	}

	if strings.TrimSpace(c.Limitless.APIKey) == "" {
		add("limitless: api_key is required (LIMITLESS_API_KEY)")
	}
	if c.Limitless.BaseURL == "" {
		add("limitless: base_url must not be empty")
	}
	if c.Limitless.RequestTimeout.Duration <= 0 {
		add("limitless: request_timeout must be > 0")
	}
	if c.Limitless.RateLimit <= 0 {
		add("limitless: rate_limit must be > 0")
	}
	if c.Limitless.MaxRetries < 0 {
		add("limitless: max_retries must be >= 0")
	}

	if c.Wallet.EncryptedKeyPath != "" && c.Wallet.KeyPassword == "" {
		add("wallet: key_password is required when encrypted_key_path is set")
	}
	if c.Wallet.HasKey() {
		if c.Wallet.ChainID <= 0 {
			add("wallet: chain_id must be positive")
		}
		if !common.IsHexAddress(c.Wallet.VerifyingContract) {
			add("wallet: verifying_contract must be a hex address when a signing key is set")
		}
	}

	if c.Feed.URL == "" {
		add("feed: url must not be empty")
	}
	if c.Feed.ReconnectBackoff.Duration <= 0 {
		add("feed: reconnect_backoff must be > 0")
	}
	if c.Feed.PingInterval.Duration <= 0 || c.Feed.PongTimeout.Duration <= 0 {
		add("feed: ping_interval and pong_timeout must be > 0")
	}

	if c.Catalog.RefreshInterval.Duration <= 0 {
		add("catalog: refresh_interval must be > 0")
	}
	if len(c.Catalog.Statuses) == 0 || len(c.Catalog.AssetKeywords) == 0 || len(c.Catalog.DurationKeywords) == 0 {
		add("catalog: statuses, asset_keywords and duration_keywords must not be empty")
	}

	if c.Strategy.EdgeThreshold < 0 || c.Strategy.EdgeThreshold >= 1 {
		add("strategy: edge_threshold must be in [0, 1), got %g", c.Strategy.EdgeThreshold)
	}
	if c.Strategy.TakeProfitPercent <= 0 {
		add("strategy: take_profit_percent must be > 0, got %g", c.Strategy.TakeProfitPercent)
	}
	if c.Strategy.MaxPositionPercent <= 0 || c.Strategy.MaxPositionPercent > 1 {
		add("strategy: max_position_percent must be in (0, 1], got %g", c.Strategy.MaxPositionPercent)
	}
	if c.Strategy.CycleInterval.Duration <= 0 {
		add("strategy: cycle_interval must be > 0")
	}
	if c.Strategy.OrphanInterval.Duration < 0 {
		add("strategy: orphan_interval must be >= 0")
	}

	if c.Redis.Enabled {
		if c.Redis.Addr == "" {
			add("redis: addr must not be empty")
		}
		if c.Redis.PoolSize < 1 {
			add("redis: pool_size must be >= 1")
		}
		if c.Redis.LockTTL.Duration < time.Second {
			add("redis: lock_ttl must be >= 1s")
		}
	}

	if c.Postgres.Enabled {
		if strings.TrimSpace(c.Postgres.DSN) == "" {
			if c.Postgres.Host == "" {
				add("postgres: host must not be empty (or set postgres.dsn)")
			}
			if c.Postgres.Port <= 0 || c.Postgres.Port > 65535 {
				add("postgres: port must be 1-65535, got %d", c.Postgres.Port)
			}
			if c.Postgres.Database == "" {
				add("postgres: database must not be empty")
			}
		}
		if c.Postgres.PoolMaxConns < 1 {
			add("postgres: pool_max_conns must be >= 1")
		}
		if c.Postgres.PoolMinConns > c.Postgres.PoolMaxConns {
			add("postgres: pool_min_conns must not exceed pool_max_conns")
		}
	}

	if c.S3.Enabled {
		if c.S3.Bucket == "" {
			add("s3: bucket must not be empty")
		}
		if c.S3.Region == "" {
			add("s3: region must not be empty")
		}
	}

	if c.Notify.TelegramToken != "" && c.Notify.TelegramChatID == "" {
		add("notify: telegram_chat_id is required when telegram_token is set")
	}

	if c.Server.Enabled && c.Server.Addr == "" {
		add("server: addr must not be empty")
	}

	if len(errs) > 0 {
		return domain.ConfigFailure("config: validate",
			errors.New("\n  - "+strings.Join(errs, "\n  - ")))
	}
	return nil
}
