package strategy

import (
	"testing"

	"github.com/alanyoungcy/limitlessbot/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestImpliedProbability_NonPositiveTarget(t *testing.T) {
	for _, target := range []float64{0, -1, -65000} {
		assert.Equal(t, 0.0, ImpliedProbability(65000, target), "target %v", target)
	}
}

func TestImpliedProbability_Clamps(t *testing.T) {
	assert.Equal(t, 1.0, ImpliedProbability(10*64000, 64000))
	assert.Equal(t, 0.0, ImpliedProbability(-5, 64000))
	assert.InDelta(t, 0.5, ImpliedProbability(32000, 64000), 1e-12)

	for _, ref := range []float64{0, 1, 100, 63999, 64000, 64001, 1e9} {
		p := ImpliedProbability(ref, 64000)
		assert.GreaterOrEqual(t, p, 0.0)
		assert.LessOrEqual(t, p, 1.0)
	}
}

func TestEdge(t *testing.T) {
	m := domain.Market{ID: "m1", YesPrice: 0.40, TargetPrice: 100}
	assert.InDelta(t, 0.55, Edge(m, 95), 1e-9)
	assert.InDelta(t, -0.40, Edge(domain.Market{YesPrice: 0.40}, 95), 1e-9)

	edges := Edges([]domain.Market{m, {ID: "m2", YesPrice: 0.9, TargetPrice: 100}}, 95)
	require.Len(t, edges, 2)
	assert.InDelta(t, 0.05, edges["m2"], 1e-9)
}

func TestSizer_Tiers(t *testing.T) {
	s := Sizer{MaxPositionFraction: 1}
	cases := []struct {
		edge float64
		want float64
	}{
		{0.20, 600},
		{0.10, 600},
		{0.0999, 400},
		{0.07, 400},
		{0.06, 200},
		{0.05, 200},
		{0.0499, 0},
		{0, 0},
		{-0.3, 0},
	}
	for _, tc := range cases {
		assert.InDelta(t, tc.want, s.Size(1000, tc.edge), 1e-9, "edge %v", tc.edge)
	}
}

func TestSizer_CappedByMaxFraction(t *testing.T) {
	s := Sizer{MaxPositionFraction: 0.5}
	assert.InDelta(t, 500, s.Size(1000, 0.10), 1e-9)
	assert.InDelta(t, 400, s.Size(1000, 0.08), 1e-9)
	assert.Equal(t, 0.60, s.Tier(0.10))
}

func TestSizer_Monotonic(t *testing.T) {
	s := Sizer{MaxPositionFraction: 0.6}
	prev := 0.0
	for e := -0.05; e <= 0.2; e += 0.001 {
		got := s.Size(1000, e)
		assert.GreaterOrEqual(t, got, prev, "edge %v", e)
		prev = got
	}
}

func TestSizer_NonPositiveBalance(t *testing.T) {
	s := Sizer{MaxPositionFraction: 0.6}
	assert.Equal(t, 0.0, s.Size(0, 0.2))
	assert.Equal(t, 0.0, s.Size(-50, 0.2))
}

func TestScanner_Scan(t *testing.T) {
	markets := []domain.Market{
		{ID: "strong", YesPrice: 0.50, TargetPrice: 100},
		{ID: "weak", YesPrice: 0.94, TargetPrice: 100},
		{ID: "held", YesPrice: 0.50, TargetPrice: 100},
	}
	edges := Edges(markets, 95)
	sc := Scanner{Threshold: 0.05, Sizer: Sizer{MaxPositionFraction: 0.6}}

	got := sc.Scan(markets, edges, 1000, func(id string) bool { return id == "held" })
	require.Len(t, got, 1)
	assert.Equal(t, "strong", got[0].Market.ID)
	assert.InDelta(t, 0.45, got[0].Edge, 1e-9)
	assert.InDelta(t, 600, got[0].Size, 1e-9)
}

func TestScanner_ThresholdAboveSizerFloor(t *testing.T) {
	markets := []domain.Market{{ID: "m", YesPrice: 0.89, TargetPrice: 100}}
	edges := Edges(markets, 95)

	sc := Scanner{Threshold: 0.08, Sizer: Sizer{MaxPositionFraction: 0.6}}
	assert.Empty(t, sc.Scan(markets, edges, 1000, nil))

	// Below the sizer's lowest tier the stake is zero and the market is dropped.
	sc = Scanner{Threshold: 0.01, Sizer: Sizer{MaxPositionFraction: 0.6}}
	markets[0].YesPrice = 0.92
	assert.Empty(t, sc.Scan(markets, Edges(markets, 95), 1000, nil))
}
