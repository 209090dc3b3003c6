package redis

import (
	"context"
	"fmt"

	"github.com/alanyoungcy/limitlessbot/internal/domain"
	"github.com/redis/go-redis/v9"
)

// streamMaxLen is the approximate maximum length for Redis streams, enforced
// via XADD MAXLEN ~.
const streamMaxLen int64 = 10000

// SignalBus implements domain.SignalBus using Redis Pub/Sub for live
// listeners and Redis Streams for a bounded replayable history.
type SignalBus struct {
	rdb *redis.Client

	// Channel and Stream are where bot events are published.
	Channel string
	Stream  string
}

// NewSignalBus creates a SignalBus backed by the given Client, with the event
// channel "{prefix}:events" and stream "{prefix}:events:stream".
func NewSignalBus(c *Client) *SignalBus {
	return &SignalBus{
		rdb:     c.rdb,
		Channel: c.Key("events"),
		Stream:  c.Key("events", "stream"),
	}
}

// Publish sends a raw byte payload to a Redis Pub/Sub channel.
func (sb *SignalBus) Publish(ctx context.Context, channel string, payload []byte) error {
	if err := sb.rdb.Publish(ctx, channel, payload).Err(); err != nil {
		return fmt.Errorf("redis: publish %s: %w", channel, err)
	}
	return nil
}

// StreamAppend appends a payload to a Redis stream with XADD MAXLEN ~.
func (sb *SignalBus) StreamAppend(ctx context.Context, stream string, payload []byte) error {
	args := &redis.XAddArgs{
		Stream: stream,
		MaxLen: streamMaxLen,
		Approx: true,
		Values: map[string]interface{}{
			"payload": payload,
		},
	}
	if err := sb.rdb.XAdd(ctx, args).Err(); err != nil {
		return fmt.Errorf("redis: stream append %s: %w", stream, err)
	}
	return nil
}

var _ domain.SignalBus = (*SignalBus)(nil)
