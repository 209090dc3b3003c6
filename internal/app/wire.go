package app

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"

	s3blob "github.com/alanyoungcy/limitlessbot/internal/blob/s3"
	"github.com/alanyoungcy/limitlessbot/internal/cache/redis"
	"github.com/alanyoungcy/limitlessbot/internal/config"
	"github.com/alanyoungcy/limitlessbot/internal/crypto"
	"github.com/alanyoungcy/limitlessbot/internal/domain"
	"github.com/alanyoungcy/limitlessbot/internal/journal"
	"github.com/alanyoungcy/limitlessbot/internal/notify"
	"github.com/alanyoungcy/limitlessbot/internal/platform/limitless"
	"github.com/alanyoungcy/limitlessbot/internal/store/postgres"
)

// Dependencies bundles the concrete collaborators built from config. Every
// field except Venue and Account is nil when its backend is disabled.
type Dependencies struct {
	Venue   *limitless.Client
	Account string // identifies the trading account for the instance lock

	PriceCache domain.PriceCache
	Locks      domain.LockManager
	Sinks      journal.Sinks
	Archiver   journal.Archiver
}

// Wire constructs the dependencies and returns a cleanup function that
// releases them in reverse order.
func Wire(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Dependencies, func(), error) {
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}
	fail := func(what string, err error) (*Dependencies, func(), error) {
		cleanup()
		return nil, nil, fmt.Errorf("wire: %s: %w", what, err)
	}

	deps := &Dependencies{}

	// --- Signing key (optional) ---
	var signer *crypto.OrderSigner
	keyCfg := crypto.KeyConfig{
		RawPrivateKey:    cfg.Wallet.PrivateKey,
		EncryptedKeyPath: cfg.Wallet.EncryptedKeyPath,
		KeyPassword:      cfg.Wallet.KeyPassword,
	}
	if keyCfg.Configured() {
		keyHex, err := crypto.LoadKey(keyCfg)
		if err != nil {
			return fail("wallet key", domain.ConfigFailure("load key", err))
		}
		signer, err = crypto.NewOrderSigner(keyHex, cfg.Wallet.ChainID, cfg.Wallet.VerifyingContract)
		if err != nil {
			return fail("order signer", domain.ConfigFailure("signer", err))
		}
		deps.Account = signer.Address().Hex()
		logger.Info("wire: order signing enabled", slog.String("address", deps.Account))
	} else {
		deps.Account = accountFromAPIKey(cfg.Limitless.APIKey)
	}

	// --- Venue ---
	deps.Venue = limitless.NewClient(limitless.Config{
		BaseURL:    cfg.Limitless.BaseURL,
		APIKey:     cfg.Limitless.APIKey,
		Timeout:    cfg.Limitless.RequestTimeout.Duration,
		RatePerSec: cfg.Limitless.RateLimit,
		Burst:      cfg.Limitless.RateBurst,
		MaxRetries: cfg.Limitless.MaxRetries,
	}, signer, logger)

	// --- Redis ---
	if cfg.Redis.Enabled {
		rc, err := redis.New(ctx, redis.ClientConfig{
			Addr:       cfg.Redis.Addr,
			Password:   cfg.Redis.Password,
			DB:         cfg.Redis.DB,
			PoolSize:   cfg.Redis.PoolSize,
			MaxRetries: cfg.Redis.MaxRetries,
			TLSEnabled: cfg.Redis.TLSEnabled,
			KeyPrefix:  cfg.Redis.KeyPrefix,
		})
		if err != nil {
			return fail("redis", err)
		}
		closers = append(closers, func() { _ = rc.Close() })

		bus := redis.NewSignalBus(rc)
		deps.PriceCache = redis.NewPriceMirror(rc, cfg.Redis.PriceTTL.Duration)
		deps.Locks = redis.NewInstanceLock(rc)
		deps.Sinks.Bus = bus
		deps.Sinks.Channel = bus.Channel
		deps.Sinks.Stream = bus.Stream
	}

	// --- PostgreSQL ---
	if cfg.Postgres.Enabled {
		pg, err := postgres.New(ctx, postgres.ClientConfig{
			DSN:        cfg.Postgres.DSN,
			Host:       cfg.Postgres.Host,
			Port:       cfg.Postgres.Port,
			Database:   cfg.Postgres.Database,
			User:       cfg.Postgres.User,
			Password:   cfg.Postgres.Password,
			SSLMode:    cfg.Postgres.SSLMode,
			MaxConns:   cfg.Postgres.PoolMaxConns,
			MinConns:   cfg.Postgres.PoolMinConns,
			PreferIPv4: cfg.Postgres.PreferIPv4,
		})
		if err != nil {
			return fail("postgres", err)
		}
		closers = append(closers, pg.Close)

		if cfg.Postgres.RunMigrations {
			if err := pg.RunMigrations(ctx); err != nil {
				return fail("postgres migrations", err)
			}
		}
		deps.Sinks.Store = postgres.NewEventStore(pg.Pool())
	}

	// --- S3 ---
	if cfg.S3.Enabled {
		sc, err := s3blob.New(ctx, s3blob.ClientConfig{
			Endpoint:       cfg.S3.Endpoint,
			Region:         cfg.S3.Region,
			Bucket:         cfg.S3.Bucket,
			AccessKey:      cfg.S3.AccessKey,
			SecretKey:      cfg.S3.SecretKey,
			UseSSL:         cfg.S3.UseSSL,
			ForcePathStyle: cfg.S3.ForcePathStyle,
		})
		if err != nil {
			return fail("s3", err)
		}
		if err := sc.Health(ctx); err != nil {
			logger.Warn("wire: s3 bucket not reachable, archive may fail", slog.String("error", err.Error()))
		}
		deps.Archiver = s3blob.NewArchiver(s3blob.NewWriter(sc), cfg.S3.Prefix)
	}

	// --- Notifications ---
	if cfg.Notify.Enabled() {
		var senders []notify.Sender
		if cfg.Notify.TelegramToken != "" {
			senders = append(senders, notify.NewTelegramSender(cfg.Notify.TelegramToken, cfg.Notify.TelegramChatID, ""))
		}
		if cfg.Notify.DiscordWebhookURL != "" {
			senders = append(senders, notify.NewDiscordSender(cfg.Notify.DiscordWebhookURL))
		}
		deps.Sinks.Notifier = notify.NewNotifier(senders, cfg.Notify.Events, logger)
	}

	return deps, cleanup, nil
}

// accountFromAPIKey derives a stable account label without exposing the key.
func accountFromAPIKey(apiKey string) string {
	sum := sha256.Sum256([]byte(apiKey))
	return "key-" + hex.EncodeToString(sum[:6])
}
