package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/alanyoungcy/limitlessbot/internal/domain"
)

// EventStore implements domain.EventStore on the bot_events table.
type EventStore struct {
	pool *pgxpool.Pool
}

// NewEventStore creates an EventStore backed by the given connection pool.
func NewEventStore(pool *pgxpool.Pool) *EventStore {
	return &EventStore{pool: pool}
}

// Append inserts one event. Detail is stored as JSONB; an empty market ID is
// stored as NULL.
func (s *EventStore) Append(ctx context.Context, evt domain.Event) error {
	var detail []byte
	if len(evt.Detail) > 0 {
		b, err := json.Marshal(evt.Detail)
		if err != nil {
			return fmt.Errorf("postgres: marshal event detail: %w", err)
		}
		detail = b
	}

	var marketID *string
	if evt.MarketID != "" {
		marketID = &evt.MarketID
	}

	const query = `
		INSERT INTO bot_events (session_id, event_type, market_id, paper, detail, occurred_at)
		VALUES ($1, $2, $3, $4, $5, $6)`
	if _, err := s.pool.Exec(ctx, query,
		evt.Session, string(evt.Type), marketID, evt.Paper, detail, evt.Timestamp,
	); err != nil {
		return fmt.Errorf("postgres: append event %s: %w", evt.Type, err)
	}
	return nil
}

var _ domain.EventStore = (*EventStore)(nil)
