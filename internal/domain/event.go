package domain

import (
	"context"
	"time"
)

// EventType names a bot lifecycle event.
type EventType string

const (
	EventPositionOpened EventType = "position_opened"
	EventPositionClosed EventType = "position_closed"
	EventOrderSubmitted EventType = "order_submitted"
	EventOrderFailed    EventType = "order_failed"
	EventFeedReconnect  EventType = "feed_reconnect"
	EventCatalogRefresh EventType = "catalog_refreshed"
	EventSessionStarted EventType = "session_started"
	EventSessionStopped EventType = "session_stopped"
)

// Event is a single journal entry describing something the bot did.
type Event struct {
	Type      EventType      `json:"type"`
	Session   string         `json:"session"`
	MarketID  string         `json:"market_id,omitempty"`
	Paper     bool           `json:"paper"`
	Detail    map[string]any `json:"detail,omitempty"`
	Timestamp time.Time      `json:"ts"`
}

// EventSink receives bot events. Implementations must not block trading on
// slow downstreams; errors are for logging only.
type EventSink interface {
	Emit(ctx context.Context, evt Event) error
}

// NopSink discards every event.
type NopSink struct{}

func (NopSink) Emit(context.Context, Event) error { return nil }
