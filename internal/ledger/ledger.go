// Package ledger tracks the bot's open positions, at most one per market,
// and decides when an open position should be exited.
package ledger

import (
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/alanyoungcy/limitlessbot/internal/domain"
)

// Ledger is the in-memory position book. It is safe for concurrent use;
// mutations of the same market are serialised by a single mutex and no I/O
// happens under it.
type Ledger struct {
	takeProfit float64
	logger     *slog.Logger
	now        func() time.Time

	mu      sync.Mutex
	open    map[string]domain.Position
	history []domain.ClosedPosition
	opened  int
}

// New creates an empty Ledger. takeProfit is the fractional gain on the
// entry price at which EvaluateExit signals an exit.
func New(takeProfit float64, logger *slog.Logger) *Ledger {
	return &Ledger{
		takeProfit: takeProfit,
		logger:     logger.With(slog.String("component", "ledger")),
		now:        time.Now,
		open:       make(map[string]domain.Position),
	}
}

// Open records a new position for market. It is a no-op returning false
// when the market already has an open position, or when size or entryPrice
// is not positive.
func (l *Ledger) Open(market domain.Market, size, entryPrice float64, clientID string) (domain.Position, bool) {
	if !(size > 0) || !(entryPrice > 0) {
		l.logger.Warn("ledger: refusing open with non-positive values",
			slog.String("market_id", market.ID),
			slog.Float64("size", size),
			slog.Float64("entry_price", entryPrice),
		)
		return domain.Position{}, false
	}

	l.mu.Lock()
	if existing, ok := l.open[market.ID]; ok {
		l.mu.Unlock()
		l.logger.Info("ledger: position already open, ignoring duplicate",
			slog.String("market_id", market.ID),
			slog.Float64("entry_price", existing.EntryPrice),
			slog.Float64("size", existing.Size),
		)
		return existing, false
	}
	pos := domain.Position{
		MarketID:   market.ID,
		Title:      market.Title,
		EntryPrice: entryPrice,
		Size:       size,
		EntryTime:  l.now(),
		ClientID:   clientID,
	}
	l.open[market.ID] = pos
	l.opened++
	l.mu.Unlock()

	l.logger.Info("ledger: position opened",
		slog.String("market_id", pos.MarketID),
		slog.String("title", pos.Title),
		slog.Float64("entry_price", pos.EntryPrice),
		slog.Float64("size", pos.Size),
	)
	return pos, true
}

// Close removes the open position for marketID and records it in the
// session history. It is a no-op returning false when the market is flat.
func (l *Ledger) Close(marketID string, exitPrice float64, reason domain.ExitReason) (domain.ClosedPosition, bool) {
	l.mu.Lock()
	pos, ok := l.open[marketID]
	if !ok {
		l.mu.Unlock()
		l.logger.Info("ledger: no open position to close", slog.String("market_id", marketID))
		return domain.ClosedPosition{}, false
	}
	delete(l.open, marketID)
	closed := domain.ClosedPosition{
		Position:    pos,
		ExitPrice:   exitPrice,
		ExitTime:    l.now(),
		Reason:      reason,
		RealizedPnL: pos.Shares() * (exitPrice - pos.EntryPrice),
	}
	l.history = append(l.history, closed)
	l.mu.Unlock()

	l.logger.Info("ledger: position closed",
		slog.String("market_id", marketID),
		slog.String("reason", string(reason)),
		slog.Float64("entry_price", pos.EntryPrice),
		slog.Float64("exit_price", exitPrice),
		slog.Float64("realized_pnl", closed.RealizedPnL),
	)
	return closed, true
}

// Get returns the open position for marketID.
func (l *Ledger) Get(marketID string) (domain.Position, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	pos, ok := l.open[marketID]
	return pos, ok
}

// Has reports whether marketID has an open position.
func (l *Ledger) Has(marketID string) bool {
	_, ok := l.Get(marketID)
	return ok
}

// Positions returns the open positions ordered by entry time.
func (l *Ledger) Positions() []domain.Position {
	l.mu.Lock()
	out := make([]domain.Position, 0, len(l.open))
	for _, p := range l.open {
		out = append(out, p)
	}
	l.mu.Unlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].EntryTime.Equal(out[j].EntryTime) {
			return out[i].MarketID < out[j].MarketID
		}
		return out[i].EntryTime.Before(out[j].EntryTime)
	})
	return out
}

// History returns the positions closed during this session, oldest first.
func (l *Ledger) History() []domain.ClosedPosition {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]domain.ClosedPosition, len(l.history))
	copy(out, l.history)
	return out
}

// Stats summarises the session.
func (l *Ledger) Stats() domain.SessionStats {
	l.mu.Lock()
	defer l.mu.Unlock()
	st := domain.SessionStats{
		Open:   len(l.open),
		Opened: l.opened,
		Closed: len(l.history),
	}
	for _, c := range l.history {
		st.RealizedPnL += c.RealizedPnL
	}
	return st
}
