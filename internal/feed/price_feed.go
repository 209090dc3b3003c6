// Package feed maintains the latest reference price from a websocket trade
// stream, reconnecting with a fixed backoff whenever the stream drops.
package feed

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/alanyoungcy/limitlessbot/internal/domain"
	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"
)

const (
	// writeWait is the time allowed to write a control frame to the peer.
	writeWait = 10 * time.Second

	defaultMirrorInterval = time.Second
	mirrorTimeout         = 2 * time.Second
)

// Config tunes the feed connection.
type Config struct {
	URL              string
	Symbol           string
	ReconnectBackoff time.Duration
	PingInterval     time.Duration
	PongTimeout      time.Duration
	HandshakeTimeout time.Duration
	MirrorInterval   time.Duration
}

// PriceFeed owns the reference price. Run is the only writer; Latest may be
// called from any goroutine.
type PriceFeed struct {
	cfg    Config
	mirror domain.PriceCache
	every  *rate.Sometimes
	sink   domain.EventSink
	logger *slog.Logger

	mu      sync.RWMutex
	price   float64
	has     bool
	updated time.Time

	reconnects atomic.Int64
	connected  atomic.Bool

	stopOnce sync.Once
	done     chan struct{}
}

// New creates a feed. mirror and sink may be nil.
func New(cfg Config, mirror domain.PriceCache, sink domain.EventSink, logger *slog.Logger) *PriceFeed {
	if cfg.HandshakeTimeout <= 0 {
		cfg.HandshakeTimeout = 15 * time.Second
	}
	if cfg.PingInterval <= 0 {
		cfg.PingInterval = 20 * time.Second
	}
	if cfg.PongTimeout <= 0 {
		cfg.PongTimeout = 20 * time.Second
	}
	interval := cfg.MirrorInterval
	if interval <= 0 {
		interval = defaultMirrorInterval
	}
	if sink == nil {
		sink = domain.NopSink{}
	}
	return &PriceFeed{
		cfg:    cfg,
		mirror: mirror,
		every:  &rate.Sometimes{Interval: interval},
		sink:   sink,
		logger: logger.With(slog.String("component", "price_feed")),
		done:   make(chan struct{}),
	}
}

// Latest returns the most recent price, or false if none has arrived yet.
func (f *PriceFeed) Latest() (float64, bool) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.price, f.has
}

// LastUpdate returns when the price was last replaced.
func (f *PriceFeed) LastUpdate() time.Time {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.updated
}

// Connected reports whether a stream connection is currently open.
func (f *PriceFeed) Connected() bool { return f.connected.Load() }

// Reconnects returns how many times the stream has dropped.
func (f *PriceFeed) Reconnects() int64 { return f.reconnects.Load() }

// Stop makes Run return. Safe to call more than once.
func (f *PriceFeed) Stop() {
	f.stopOnce.Do(func() { close(f.done) })
}

func (f *PriceFeed) stopped(ctx context.Context) bool {
	select {
	case <-f.done:
		return true
	case <-ctx.Done():
		return true
	default:
		return false
	}
}

func (f *PriceFeed) exitErr(ctx context.Context) error {
	select {
	case <-f.done:
		return nil
	default:
		return ctx.Err()
	}
}

// Run connects to the stream and keeps the price current until Stop is
// called or ctx is cancelled. Any connection failure is followed by the
// configured backoff and a fresh connection. It returns nil after Stop and
// ctx.Err() after cancellation.
func (f *PriceFeed) Run(ctx context.Context) error {
	for {
		if f.stopped(ctx) {
			return f.exitErr(ctx)
		}

		err := f.runConnection(ctx)
		f.connected.Store(false)
		if f.stopped(ctx) {
			return f.exitErr(ctx)
		}

		f.reconnects.Add(1)
		f.logger.Error("feed: stream disconnected, reconnecting",
			slog.String("error", err.Error()),
			slog.Duration("backoff", f.cfg.ReconnectBackoff),
		)
		f.emit(ctx, domain.Event{
			Type:   domain.EventFeedReconnect,
			Detail: map[string]any{"error": err.Error(), "reconnects": f.reconnects.Load()},
		})

		timer := time.NewTimer(f.cfg.ReconnectBackoff)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-f.done:
			timer.Stop()
			return nil
		case <-timer.C:
		}
	}
}

// runConnection holds one stream connection open. It always returns a
// non-nil error unless the feed was stopped.
func (f *PriceFeed) runConnection(ctx context.Context) error {
	f.logger.Info("feed: connecting", slog.String("url", f.cfg.URL))
	dialer := websocket.Dialer{HandshakeTimeout: f.cfg.HandshakeTimeout}
	conn, _, err := dialer.DialContext(ctx, f.cfg.URL, nil)
	if err != nil {
		return domain.Transient("feed: dial", err)
	}
	defer conn.Close()

	f.connected.Store(true)
	f.logger.Info("feed: connected", slog.String("url", f.cfg.URL))

	readWait := f.cfg.PingInterval + f.cfg.PongTimeout
	_ = conn.SetReadDeadline(time.Now().Add(readWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(readWait))
	})

	connDone := make(chan struct{})
	defer close(connDone)
	go f.keepalive(ctx, conn, connDone)

	for {
		if f.stopped(ctx) {
			return nil
		}
		_, msg, err := conn.ReadMessage()
		if err != nil {
			if f.stopped(ctx) {
				return nil
			}
			return domain.Transient("feed: read", fmt.Errorf("%w: %v", domain.ErrWSDisconnect, err))
		}
		_ = conn.SetReadDeadline(time.Now().Add(readWait))

		if err := f.handleMessage(ctx, msg); err != nil {
			f.logger.Warn("feed: skipping message", slog.String("error", err.Error()))
		}
	}
}

// keepalive pings the peer and closes conn when the feed stops so a blocked
// read returns immediately.
func (f *PriceFeed) keepalive(ctx context.Context, conn *websocket.Conn, connDone <-chan struct{}) {
	ticker := time.NewTicker(f.cfg.PingInterval)
	defer ticker.Stop()

	shutdown := func() {
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(writeWait))
		_ = conn.Close()
	}

	for {
		select {
		case <-connDone:
			return
		case <-ctx.Done():
			shutdown()
			return
		case <-f.done:
			shutdown()
			return
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				f.logger.Debug("feed: ping failed", slog.String("error", err.Error()))
				return
			}
		}
	}
}

func (f *PriceFeed) handleMessage(ctx context.Context, raw []byte) error {
	price, ok, err := ParsePrice(raw)
	if err != nil {
		return domain.Malformed("feed: parse", err)
	}
	if !ok {
		return nil
	}

	now := time.Now()
	f.mu.Lock()
	first := !f.has
	f.price = price
	f.has = true
	f.updated = now
	f.mu.Unlock()

	if first {
		f.logger.Info("feed: first price received", slog.Float64("price", price))
	} else {
		f.logger.Debug("feed: price update", slog.Float64("price", price))
	}

	if f.mirror != nil {
		f.every.Do(func() {
			mctx, cancel := context.WithTimeout(ctx, mirrorTimeout)
			defer cancel()
			if err := f.mirror.SetPrice(mctx, f.cfg.Symbol, price, now); err != nil {
				f.logger.Warn("feed: mirror price failed", slog.String("error", err.Error()))
			}
		})
	}
	return nil
}

func (f *PriceFeed) emit(ctx context.Context, evt domain.Event) {
	evt.Timestamp = time.Now().UTC()
	if err := f.sink.Emit(ctx, evt); err != nil {
		f.logger.Warn("feed: emit event failed", slog.String("error", err.Error()))
	}
}
