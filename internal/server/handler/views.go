package handler

import (
	"time"

	"github.com/alanyoungcy/limitlessbot/internal/domain"
)

// PriceView is the read side of the price feed.
type PriceView interface {
	Latest() (float64, bool)
	LastUpdate() time.Time
	Connected() bool
	Reconnects() int64
}

// MarketView is the read side of the market catalog.
type MarketView interface {
	Snapshot() []domain.Market
	Get(id string) (domain.Market, bool)
	Len() int
	UpdatedAt() time.Time
}

// PositionView is the read side of the position ledger.
type PositionView interface {
	Positions() []domain.Position
	History() []domain.ClosedPosition
	Stats() domain.SessionStats
}

// CycleView reports decision cycle progress.
type CycleView interface {
	Cycles() int64
	LastCycle() time.Time
}

type marketJSON struct {
	ID          string     `json:"id"`
	Title       string     `json:"title"`
	Status      string     `json:"status"`
	YesPrice    float64    `json:"yes_price"`
	NoPrice     float64    `json:"no_price"`
	TargetPrice float64    `json:"target_price"`
	ExpiresAt   *time.Time `json:"expires_at,omitempty"`
}

func toMarketJSON(m domain.Market) marketJSON {
	out := marketJSON{
		ID:          m.ID,
		Title:       m.Title,
		Status:      m.Status,
		YesPrice:    m.YesPrice,
		NoPrice:     m.NoPrice,
		TargetPrice: m.TargetPrice,
	}
	if !m.ExpiresAt.IsZero() {
		t := m.ExpiresAt.UTC()
		out.ExpiresAt = &t
	}
	return out
}

type positionJSON struct {
	MarketID   string    `json:"market_id"`
	Title      string    `json:"title"`
	EntryPrice float64   `json:"entry_price"`
	Size       float64   `json:"size"`
	Shares     float64   `json:"shares"`
	EntryTime  time.Time `json:"entry_time"`
	ClientID   string    `json:"client_id,omitempty"`
}

func toPositionJSON(p domain.Position) positionJSON {
	return positionJSON{
		MarketID:   p.MarketID,
		Title:      p.Title,
		EntryPrice: p.EntryPrice,
		Size:       p.Size,
		Shares:     p.Shares(),
		EntryTime:  p.EntryTime.UTC(),
		ClientID:   p.ClientID,
	}
}

type closedPositionJSON struct {
	positionJSON
	ExitPrice   float64   `json:"exit_price"`
	ExitTime    time.Time `json:"exit_time"`
	Reason      string    `json:"reason"`
	RealizedPnL float64   `json:"realized_pnl"`
}

func toClosedJSON(c domain.ClosedPosition) closedPositionJSON {
	return closedPositionJSON{
		positionJSON: toPositionJSON(c.Position),
		ExitPrice:    c.ExitPrice,
		ExitTime:     c.ExitTime.UTC(),
		Reason:       string(c.Reason),
		RealizedPnL:  c.RealizedPnL,
	}
}

func mapSlice[T, U any](in []T, f func(T) U) []U {
	out := make([]U, 0, len(in))
	for _, v := range in {
		out = append(out, f(v))
	}
	return out
}
