package domain

import "context"

// EventStore persists an append-only record of bot events. The bot never
// reads it back.
type EventStore interface {
	Append(ctx context.Context, evt Event) error
}
