package ledger

import "github.com/alanyoungcy/limitlessbot/internal/domain"

// EvaluateExit reports whether the open position on market should be
// exited. Take-profit fires when the relative gain over the entry price
// reaches the configured fraction; the model exit fires whenever the
// current edge is negative. A flat market never signals.
func (l *Ledger) EvaluateExit(market domain.Market, currentYes, currentEdge float64) (domain.Position, domain.ExitReason, bool) {
	pos, ok := l.Get(market.ID)
	if !ok {
		return domain.Position{}, "", false
	}

	if pos.EntryPrice > 0 {
		change := (currentYes - pos.EntryPrice) / pos.EntryPrice
		if change >= l.takeProfit {
			return pos, domain.ExitReasonTakeProfit, true
		}
	}
	if currentEdge < 0 {
		return pos, domain.ExitReasonEdgeReversed, true
	}
	return domain.Position{}, "", false
}
