// Package strategy holds the pure pricing and sizing rules of the bot: the
// implied-probability edge model, the tiered position sizer and the entry
// scan that combines them.
package strategy

import (
	"math"

	"github.com/alanyoungcy/limitlessbot/internal/domain"
)

// ImpliedProbability maps the reference price against a market's target to
// a probability in [0, 1]. A non-positive target yields 0.
func ImpliedProbability(referencePrice, targetPrice float64) float64 {
	if targetPrice <= 0 || math.IsNaN(targetPrice) || math.IsNaN(referencePrice) {
		return 0
	}
	p := referencePrice / targetPrice
	switch {
	case p < 0:
		return 0
	case p > 1:
		return 1
	default:
		return p
	}
}

// Edge is the implied probability minus the market's YES price.
func Edge(m domain.Market, referencePrice float64) float64 {
	return ImpliedProbability(referencePrice, m.TargetPrice) - m.YesPrice
}

// Edges computes Edge for every market, keyed by market ID.
func Edges(markets []domain.Market, referencePrice float64) map[string]float64 {
	out := make(map[string]float64, len(markets))
	for _, m := range markets {
		out[m.ID] = Edge(m, referencePrice)
	}
	return out
}
