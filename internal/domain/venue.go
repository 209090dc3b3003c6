package domain

import "context"

// Venue is the exchange client the trading core depends on. Every call may
// fail; a failed call is treated as having had no effect.
type Venue interface {
	ListMarkets(ctx context.Context) ([]RawMarket, error)
	// GetMarket returns ErrNotFound when the venue has no such market.
	GetMarket(ctx context.Context, id string) (RawMarket, error)
	GetBalance(ctx context.Context) (float64, error)
	SubmitBuy(ctx context.Context, marketID string, amount float64) (OrderResult, error)
	SubmitSell(ctx context.Context, marketID string, amount float64) (OrderResult, error)
}
