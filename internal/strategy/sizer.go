package strategy

import "math"

type tier struct {
	minEdge  float64
	fraction float64
}

// Ordered most favourable first; bounds are inclusive.
var tiers = []tier{
	{minEdge: 0.10, fraction: 0.60},
	{minEdge: 0.07, fraction: 0.40},
	{minEdge: 0.05, fraction: 0.20},
}

// Sizer converts an edge into a stake using a fixed step table, capped by
// MaxPositionFraction of the balance.
type Sizer struct {
	MaxPositionFraction float64
}

// Tier returns the uncapped balance fraction for edge, or 0 when the edge
// is below the lowest tier.
func (s Sizer) Tier(edge float64) float64 {
	for _, t := range tiers {
		if edge >= t.minEdge {
			return t.fraction
		}
	}
	return 0
}

// Fraction returns the capped balance fraction for edge.
func (s Sizer) Fraction(edge float64) float64 {
	f := s.Tier(edge)
	if f > s.MaxPositionFraction {
		f = s.MaxPositionFraction
	}
	if f < 0 {
		return 0
	}
	return f
}

// Size returns the stake for edge given balance. Never negative.
func (s Sizer) Size(balance, edge float64) float64 {
	if balance <= 0 || math.IsNaN(balance) || math.IsInf(balance, 0) {
		return 0
	}
	size := balance * s.Fraction(edge)
	if size < 0 {
		return 0
	}
	return size
}
