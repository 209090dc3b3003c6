package domain

import "time"

// RawMarket is a market record as returned by the venue, before coercion.
type RawMarket map[string]any

// Market is an immutable snapshot of a tradable binary market.
type Market struct {
	ID          string
	Title       string
	Status      string
	YesPrice    float64
	NoPrice     float64
	TargetPrice float64
	ExpiresAt   time.Time // zero when the venue did not send a parseable expiry
	ExpiryRaw   string
}

// Candidate is an entry decision produced within a single decision cycle.
type Candidate struct {
	Market Market
	Edge   float64
	Size   float64
}
