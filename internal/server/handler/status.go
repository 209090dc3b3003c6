package handler

import (
	"net/http"
	"time"
)

// StatusHandler reports the bot's runtime state.
type StatusHandler struct {
	mode      string
	session   string
	startedAt time.Time
	price     PriceView
	markets   MarketView
	positions PositionView
	cycles    CycleView
}

// StatusDeps bundles what StatusHandler reads from.
type StatusDeps struct {
	Mode      string
	Session   string
	StartedAt time.Time
	Price     PriceView
	Markets   MarketView
	Positions PositionView
	Cycles    CycleView
}

// NewStatusHandler creates a StatusHandler.
func NewStatusHandler(d StatusDeps) *StatusHandler {
	return &StatusHandler{
		mode:      d.Mode,
		session:   d.Session,
		startedAt: d.StartedAt,
		price:     d.Price,
		markets:   d.Markets,
		positions: d.Positions,
		cycles:    d.Cycles,
	}
}

// GetStatus responds with mode, price, catalog and session figures.
// GET /api/status
func (h *StatusHandler) GetStatus(w http.ResponseWriter, _ *http.Request) {
	now := time.Now().UTC()
	body := map[string]any{
		"mode":           h.mode,
		"session":        h.session,
		"uptime_seconds": int64(now.Sub(h.startedAt).Seconds()),
	}

	price, ok := h.price.Latest()
	feed := map[string]any{
		"connected":  h.price.Connected(),
		"reconnects": h.price.Reconnects(),
		"has_price":  ok,
	}
	if ok {
		feed["price"] = price
		feed["last_update"] = h.price.LastUpdate().UTC()
	}
	body["feed"] = feed

	body["catalog"] = map[string]any{
		"markets":    h.markets.Len(),
		"updated_at": optionalTime(h.markets.UpdatedAt()),
	}

	stats := h.positions.Stats()
	body["session_stats"] = map[string]any{
		"open":         stats.Open,
		"opened":       stats.Opened,
		"closed":       stats.Closed,
		"realized_pnl": stats.RealizedPnL,
	}

	body["engine"] = map[string]any{
		"cycles":     h.cycles.Cycles(),
		"last_cycle": optionalTime(h.cycles.LastCycle()),
	}

	writeJSON(w, http.StatusOK, body)
}

func optionalTime(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t.UTC()
}
