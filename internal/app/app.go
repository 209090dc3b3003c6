// Package app owns the bot's lifecycle: it wires collaborators from config,
// runs the trading engine next to the optional status API, and tears
// everything down in order on shutdown.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/alanyoungcy/limitlessbot/internal/catalog"
	"github.com/alanyoungcy/limitlessbot/internal/config"
	"github.com/alanyoungcy/limitlessbot/internal/domain"
	"github.com/alanyoungcy/limitlessbot/internal/engine"
	"github.com/alanyoungcy/limitlessbot/internal/executor"
	"github.com/alanyoungcy/limitlessbot/internal/feed"
	"github.com/alanyoungcy/limitlessbot/internal/journal"
	"github.com/alanyoungcy/limitlessbot/internal/ledger"
	"github.com/alanyoungcy/limitlessbot/internal/server"
	"github.com/alanyoungcy/limitlessbot/internal/server/handler"
	"github.com/alanyoungcy/limitlessbot/internal/server/ws"
)

const shutdownTimeout = 15 * time.Second

// App is the root application object.
type App struct {
	cfg     *config.Config
	logger  *slog.Logger
	closers []func()
}

// New creates an App. cfg must already be validated.
func New(cfg *config.Config, logger *slog.Logger) *App {
	return &App{
		cfg:    cfg,
		logger: logger.With(slog.String("component", "app")),
	}
}

// Run wires the bot and blocks until ctx is cancelled or a component fails.
// The session journal is drained, archived and the instance lock released
// before it returns.
func (a *App) Run(ctx context.Context) error {
	cfg := a.cfg
	session := uuid.NewString()
	mode := "live"
	if cfg.PaperTrading {
		mode = "paper"
	}
	logger := a.logger.With(slog.String("session", session))
	logger.InfoContext(ctx, "starting", slog.String("mode", mode))

	deps, cleanup, err := Wire(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("app: wire dependencies: %w", err)
	}
	a.closers = append(a.closers, cleanup)

	var hub *ws.Hub
	sinks := deps.Sinks
	if cfg.Server.Enabled {
		hub = ws.NewHub(session, logger)
		sinks.Broadcast = hub
	}
	j := journal.New(journal.Config{
		Session: session,
		Paper:   cfg.PaperTrading,
		Retain:  deps.Archiver != nil,
	}, sinks, logger)
	j.Start()

	var lock domain.Lock
	if deps.Locks != nil {
		lock, err = deps.Locks.Acquire(ctx, deps.Account, cfg.Redis.LockTTL.Duration)
		if err != nil {
			_ = j.Close(context.Background())
			if errors.Is(err, domain.ErrLockHeld) {
				return fmt.Errorf("app: another instance is trading account %s: %w", deps.Account, err)
			}
			return fmt.Errorf("app: acquire instance lock: %w", err)
		}
		logger.InfoContext(ctx, "instance lock acquired", slog.String("account", deps.Account))
	}

	pf := feed.New(feed.Config{
		URL:              cfg.Feed.URL,
		Symbol:           cfg.Feed.Symbol,
		ReconnectBackoff: cfg.Feed.ReconnectBackoff.Duration,
		PingInterval:     cfg.Feed.PingInterval.Duration,
		PongTimeout:      cfg.Feed.PongTimeout.Duration,
		MirrorInterval:   cfg.Feed.MirrorInterval.Duration,
	}, deps.PriceCache, j, logger)

	cat := catalog.New(deps.Venue, catalog.Config{
		Filter: catalog.Filter{
			Statuses:         cfg.Catalog.Statuses,
			AssetKeywords:    cfg.Catalog.AssetKeywords,
			DurationKeywords: cfg.Catalog.DurationKeywords,
		},
		KeepSnapshotOnError: cfg.Catalog.KeepSnapshotOnError,
	}, j, logger)

	led := ledger.New(cfg.Strategy.TakeProfitPercent, logger)
	coord := executor.New(deps.Venue, led, j, cfg.PaperTrading, logger)
	eng := engine.New(engine.Config{
		RefreshInterval:     cfg.Catalog.RefreshInterval.Duration,
		CycleInterval:       cfg.Strategy.CycleInterval.Duration,
		OrphanInterval:      cfg.Strategy.OrphanInterval.Duration,
		EdgeThreshold:       cfg.Strategy.EdgeThreshold,
		MaxPositionFraction: cfg.Strategy.MaxPositionPercent,
	}, pf, cat, deps.Venue, led, coord, logger)

	_ = j.Emit(ctx, domain.Event{
		Type: domain.EventSessionStarted,
		Detail: map[string]any{
			"mode":           mode,
			"edge_threshold": cfg.Strategy.EdgeThreshold,
			"take_profit":    cfg.Strategy.TakeProfitPercent,
			"max_position":   cfg.Strategy.MaxPositionPercent,
		},
	})

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, gctx := errgroup.WithContext(runCtx)

	// The engine never sees the signal context. A stop request is passed on
	// through eng.Stop so an order already on the wire gets its response;
	// venue calls stay bounded by limitless.request_timeout.
	engCtx, engCancel := context.WithCancel(context.WithoutCancel(ctx))
	defer engCancel()
	g.Go(func() error {
		defer cancel()
		defer engCancel()
		return eng.Run(engCtx)
	})
	g.Go(func() error {
		<-gctx.Done()
		eng.Stop()
		return nil
	})
	if lock != nil {
		g.Go(func() error {
			return keepLock(engCtx, lock, cfg.Redis.LockTTL.Duration, logger)
		})
	}
	if cfg.Server.Enabled {
		srv := server.NewServer(server.Config{
			Addr:        cfg.Server.Addr,
			AuthToken:   cfg.Server.AuthToken,
			CORSOrigins: cfg.Server.CORSOrigins,
			RatePerSec:  cfg.Server.RateLimit,
			RateBurst:   cfg.Server.RateBurst,
		}, server.Handlers{
			Health: handler.NewHealthHandler(pf),
			Status: handler.NewStatusHandler(handler.StatusDeps{
				Mode:      mode,
				Session:   session,
				StartedAt: j.StartedAt(),
				Price:     pf,
				Markets:   cat,
				Positions: led,
				Cycles:    eng,
			}),
			Markets:   handler.NewMarketHandler(cat),
			Positions: handler.NewPositionHandler(led),
		}, hub, logger)

		g.Go(func() error { return ignoreCanceled(hub.Run(gctx)) })
		g.Go(func() error { return srv.Run(gctx) })
	}

	runErr := g.Wait()
	if runErr == nil {
		runErr = ctx.Err()
	}
	a.shutdown(ctx, j, lock, deps.Archiver, led.Stats(), logger)
	return runErr
}

// shutdown records the session end, drains the journal, archives it and
// releases the instance lock. It runs on a fresh context so a cancelled
// parent does not cut it short.
func (a *App) shutdown(parent context.Context, j *journal.Journal, lock domain.Lock, archiver journal.Archiver, stats domain.SessionStats, logger *slog.Logger) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(parent), shutdownTimeout)
	defer cancel()

	_ = j.Emit(ctx, domain.Event{
		Type: domain.EventSessionStopped,
		Detail: map[string]any{
			"open":         stats.Open,
			"opened":       stats.Opened,
			"closed":       stats.Closed,
			"realized_pnl": stats.RealizedPnL,
		},
	})
	logger.Info("session summary",
		slog.Int("open", stats.Open),
		slog.Int("opened", stats.Opened),
		slog.Int("closed", stats.Closed),
		slog.Float64("realized_pnl", stats.RealizedPnL),
	)

	if err := j.Close(ctx); err != nil {
		logger.Warn("journal did not drain", slog.String("error", err.Error()))
	}
	if dropped := j.Dropped(); dropped > 0 {
		logger.Warn("journal dropped deliveries", slog.Int64("dropped", dropped))
	}

	if archiver != nil {
		key, err := j.Archive(ctx, archiver)
		if err != nil {
			logger.Error("session archive failed", slog.String("error", err.Error()))
		} else if key != "" {
			logger.Info("session archived", slog.String("key", key))
		}
	}

	if lock != nil {
		if err := lock.Release(ctx); err != nil {
			logger.Warn("instance lock release failed", slog.String("error", err.Error()))
		}
	}
}

// Close tears down all resources in reverse registration order. Safe to call
// more than once.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}

func ignoreCanceled(err error) error {
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
