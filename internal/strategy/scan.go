package strategy

import "github.com/alanyoungcy/limitlessbot/internal/domain"

// Scanner builds entry candidates from a market snapshot.
type Scanner struct {
	Threshold float64
	Sizer     Sizer
}

// Qualifies reports whether edge clears the entry threshold.
func (s Scanner) Qualifies(edge float64) bool {
	return edge >= s.Threshold
}

// Scan returns a candidate for every market whose edge meets the threshold,
// which has no open position and which sizes to a positive stake. edges must
// hold an entry for every market; markets without one are skipped.
func (s Scanner) Scan(markets []domain.Market, edges map[string]float64, balance float64, isOpen func(marketID string) bool) []domain.Candidate {
	var out []domain.Candidate
	for _, m := range markets {
		edge, ok := edges[m.ID]
		if !ok || !s.Qualifies(edge) {
			continue
		}
		if isOpen != nil && isOpen(m.ID) {
			continue
		}
		size := s.Sizer.Size(balance, edge)
		if size <= 0 {
			continue
		}
		out = append(out, domain.Candidate{Market: m, Edge: edge, Size: size})
	}
	return out
}
