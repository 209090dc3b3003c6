package domain

import "time"

// ExitReason records why a position was closed.
type ExitReason string

const (
	ExitReasonTakeProfit   ExitReason = "take_profit"
	ExitReasonEdgeReversed ExitReason = "edge_reversed"
)

// Position is an open YES position on a single market.
type Position struct {
	MarketID   string
	Title      string
	EntryPrice float64
	Size       float64 // collateral spent at entry
	EntryTime  time.Time
	ClientID   string
}

// Shares returns the number of YES shares the entry bought.
func (p Position) Shares() float64 {
	if p.EntryPrice <= 0 {
		return 0
	}
	return p.Size / p.EntryPrice
}

// ClosedPosition is a position after its exit was confirmed.
type ClosedPosition struct {
	Position
	ExitPrice   float64
	ExitTime    time.Time
	Reason      ExitReason
	RealizedPnL float64
}

// SessionStats summarises ledger activity since process start.
type SessionStats struct {
	Open        int
	Opened      int
	Closed      int
	RealizedPnL float64
}
