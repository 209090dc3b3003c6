// Package engine runs the bot's three long-lived loops: price ingestion,
// catalog refresh and the decision cycle.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/alanyoungcy/limitlessbot/internal/domain"
	"github.com/alanyoungcy/limitlessbot/internal/executor"
	"github.com/alanyoungcy/limitlessbot/internal/ledger"
	"github.com/alanyoungcy/limitlessbot/internal/strategy"
)

// PriceSource is the reference price feed.
type PriceSource interface {
	Latest() (float64, bool)
	Run(ctx context.Context) error
	Stop()
}

// MarketSource is the market catalog.
type MarketSource interface {
	Refresh(ctx context.Context) error
	Snapshot() []domain.Market
	Get(id string) (domain.Market, bool)
}

// Config holds loop cadences and entry policy.
type Config struct {
	RefreshInterval     time.Duration
	CycleInterval       time.Duration
	OrphanInterval      time.Duration
	EdgeThreshold       float64
	MaxPositionFraction float64
}

// Engine owns the loops. Feed, catalog and ledger are the only state the
// loops share.
type Engine struct {
	cfg     Config
	feed    PriceSource
	catalog MarketSource
	venue   domain.Venue
	ledger  *ledger.Ledger
	exec    *executor.Coordinator
	scanner strategy.Scanner
	logger  *slog.Logger

	orphanMu   sync.Mutex
	lastOrphan time.Time

	cycles    atomic.Int64
	lastCycle atomic.Int64 // unix nanos

	stopOnce sync.Once
	done     chan struct{}
}

// New creates an Engine.
func New(
	cfg Config,
	feed PriceSource,
	catalog MarketSource,
	venue domain.Venue,
	l *ledger.Ledger,
	exec *executor.Coordinator,
	logger *slog.Logger,
) *Engine {
	return &Engine{
		cfg:     cfg,
		feed:    feed,
		catalog: catalog,
		venue:   venue,
		ledger:  l,
		exec:    exec,
		scanner: strategy.Scanner{
			Threshold: cfg.EdgeThreshold,
			Sizer:     strategy.Sizer{MaxPositionFraction: cfg.MaxPositionFraction},
		},
		logger: logger.With(slog.String("component", "engine")),
		done:   make(chan struct{}),
	}
}

// Stop asks every loop to finish its current iteration and return. Safe to
// call more than once.
func (e *Engine) Stop() {
	e.stopOnce.Do(func() {
		e.logger.Info("engine: stop requested")
		close(e.done)
		e.feed.Stop()
	})
}

func (e *Engine) stopping() bool {
	select {
	case <-e.done:
		return true
	default:
		return false
	}
}

// Cycles returns how many decision cycles have completed.
func (e *Engine) Cycles() int64 { return e.cycles.Load() }

// LastCycle returns when the last decision cycle finished.
func (e *Engine) LastCycle() time.Time {
	n := e.lastCycle.Load()
	if n == 0 {
		return time.Time{}
	}
	return time.Unix(0, n)
}

// Run starts the three loops and blocks until all of them have returned.
// It returns nil after Stop and ctx.Err() after cancellation.
func (e *Engine) Run(ctx context.Context) error {
	e.logger.InfoContext(ctx, "engine: starting",
		slog.Duration("refresh_interval", e.cfg.RefreshInterval),
		slog.Duration("cycle_interval", e.cfg.CycleInterval),
		slog.Float64("edge_threshold", e.cfg.EdgeThreshold),
		slog.Bool("paper", e.exec.Paper()),
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return e.feed.Run(gctx)
	})
	g.Go(func() error {
		return e.loop(gctx, "catalog_refresh", e.cfg.RefreshInterval, e.catalog.Refresh)
	})
	g.Go(func() error {
		return e.loop(gctx, "decision_cycle", e.cfg.CycleInterval, func(ctx context.Context) error {
			e.RunCycle(ctx)
			return nil
		})
	})

	err := g.Wait()
	e.logger.InfoContext(ctx, "engine: stopped", slog.Int64("cycles", e.Cycles()))
	if e.stopping() {
		return nil
	}
	return err
}

// loop runs fn every interval until Stop or cancellation. Errors and panics
// from fn are logged and never end the loop.
func (e *Engine) loop(ctx context.Context, name string, interval time.Duration, fn func(context.Context) error) error {
	logger := e.logger.With(slog.String("loop", name))
	logger.DebugContext(ctx, "engine: loop started")

	timer := time.NewTimer(0)
	defer timer.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-e.done:
			return nil
		case <-timer.C:
		}

		if err := safeCall(ctx, fn); err != nil {
			logFailure(ctx, logger, "engine: iteration failed", err)
		}
		timer.Reset(interval)
	}
}

func safeCall(ctx context.Context, fn func(context.Context) error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return fn(ctx)
}

// logFailure logs err at the level its kind calls for.
func logFailure(ctx context.Context, logger *slog.Logger, msg string, err error) {
	attrs := []any{slog.String("error", err.Error())}
	kind, ok := domain.KindOf(err)
	if ok {
		attrs = append(attrs, slog.String("kind", kind.String()))
	}
	switch {
	case ok && kind == domain.KindInvariant:
		logger.InfoContext(ctx, msg, attrs...)
	case ok && kind == domain.KindMalformed:
		logger.WarnContext(ctx, msg, attrs...)
	default:
		logger.ErrorContext(ctx, msg, attrs...)
	}
}
