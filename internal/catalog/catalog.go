// Package catalog keeps the filtered set of tradable markets, refreshed from
// the venue and replaced as a whole on every refresh.
package catalog

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/alanyoungcy/limitlessbot/internal/domain"
)

// Lister is the subset of the venue the catalog needs.
type Lister interface {
	ListMarkets(ctx context.Context) ([]domain.RawMarket, error)
}

// Config tunes the catalog.
type Config struct {
	Filter Filter
	// KeepSnapshotOnError keeps the last good snapshot when the venue fetch
	// fails. When false a failed fetch empties the catalog.
	KeepSnapshotOnError bool
}

// Catalog holds the current market snapshot. Refresh is the only writer;
// readers always see a complete snapshot.
type Catalog struct {
	venue  Lister
	cfg    Config
	sink   domain.EventSink
	logger *slog.Logger

	mu        sync.RWMutex
	markets   []domain.Market
	byID      map[string]int
	updatedAt time.Time
}

// New creates an empty catalog. sink may be nil.
func New(venue Lister, cfg Config, sink domain.EventSink, logger *slog.Logger) *Catalog {
	if sink == nil {
		sink = domain.NopSink{}
	}
	return &Catalog{
		venue:  venue,
		cfg:    cfg,
		sink:   sink,
		logger: logger.With(slog.String("component", "catalog")),
		byID:   map[string]int{},
	}
}

// Refresh fetches, filters and swaps in a new snapshot. A fetch failure is
// returned as a transient failure after the keep/empty policy is applied.
// Records that fail coercion are dropped and logged.
func (c *Catalog) Refresh(ctx context.Context) error {
	raw, err := c.venue.ListMarkets(ctx)
	if err != nil {
		if !c.cfg.KeepSnapshotOnError {
			c.swap(nil)
		}
		c.logger.ErrorContext(ctx, "catalog: fetch markets failed",
			slog.String("error", err.Error()),
			slog.Bool("kept_snapshot", c.cfg.KeepSnapshotOnError),
		)
		return domain.Transient("catalog: list markets", err)
	}

	markets := make([]domain.Market, 0, len(raw))
	seen := make(map[string]struct{}, len(raw))
	var dropped int
	for _, r := range raw {
		if !c.cfg.Filter.Accept(r) {
			continue
		}
		m, err := Coerce(r)
		if err != nil {
			dropped++
			c.logger.WarnContext(ctx, "catalog: dropping malformed market",
				slog.String("error", domain.Malformed("catalog: coerce", err).Error()),
			)
			continue
		}
		if _, dup := seen[m.ID]; dup {
			continue
		}
		seen[m.ID] = struct{}{}
		markets = append(markets, m)
	}

	c.swap(markets)
	c.logger.InfoContext(ctx, "catalog: refreshed",
		slog.Int("fetched", len(raw)),
		slog.Int("tradable", len(markets)),
		slog.Int("dropped", dropped),
	)
	if err := c.sink.Emit(ctx, domain.Event{
		Type:      domain.EventCatalogRefresh,
		Detail:    map[string]any{"fetched": len(raw), "tradable": len(markets), "dropped": dropped},
		Timestamp: time.Now().UTC(),
	}); err != nil && !errors.Is(err, context.Canceled) {
		c.logger.WarnContext(ctx, "catalog: emit event failed", slog.String("error", err.Error()))
	}
	return nil
}

func (c *Catalog) swap(markets []domain.Market) {
	byID := make(map[string]int, len(markets))
	for i, m := range markets {
		byID[m.ID] = i
	}
	c.mu.Lock()
	c.markets = markets
	c.byID = byID
	c.updatedAt = time.Now()
	c.mu.Unlock()
}

// Snapshot returns a copy of the current markets.
func (c *Catalog) Snapshot() []domain.Market {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]domain.Market, len(c.markets))
	copy(out, c.markets)
	return out
}

// Get looks up a market in the current snapshot.
func (c *Catalog) Get(id string) (domain.Market, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	i, ok := c.byID[id]
	if !ok {
		return domain.Market{}, false
	}
	return c.markets[i], true
}

// Len returns the snapshot size.
func (c *Catalog) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.markets)
}

// UpdatedAt returns when the snapshot was last replaced.
func (c *Catalog) UpdatedAt() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.updatedAt
}
