package redis

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/alanyoungcy/limitlessbot/internal/domain"
	"github.com/redis/go-redis/v9"
)

// PriceMirror mirrors the reference price into a hash at "price:{symbol}"
// with fields "price" and "ts" (unix nanos).
type PriceMirror struct {
	c   *Client
	ttl time.Duration
}

// NewPriceMirror creates a PriceMirror. Keys expire after ttl so a dead bot
// does not leave a stale price behind; zero disables expiry.
func NewPriceMirror(c *Client, ttl time.Duration) *PriceMirror {
	return &PriceMirror{c: c, ttl: ttl}
}

// SetPrice stores the latest price and timestamp for symbol.
func (pm *PriceMirror) SetPrice(ctx context.Context, symbol string, price float64, ts time.Time) error {
	key := "price:" + symbol
	pipe := pm.c.rdb.TxPipeline()
	pipe.HSet(ctx, key, map[string]interface{}{
		"price": strconv.FormatFloat(price, 'f', -1, 64),
		"ts":    strconv.FormatInt(ts.UnixNano(), 10),
	})
	if pm.ttl > 0 {
		pipe.Expire(ctx, key, pm.ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis: set price %s: %w", symbol, err)
	}
	return nil
}

// GetPrice returns domain.ErrNotFound when nothing is mirrored for symbol.
func (pm *PriceMirror) GetPrice(ctx context.Context, symbol string) (float64, time.Time, error) {
	vals, err := pm.c.rdb.HGetAll(ctx, "price:" + symbol).Result()
	if err != nil && err != redis.Nil {
		return 0, time.Time{}, fmt.Errorf("redis: get price %s: %w", symbol, err)
	}
	priceStr, ok := vals["price"]
	if !ok {
		return 0, time.Time{}, domain.ErrNotFound
	}
	price, err := strconv.ParseFloat(priceStr, 64)
	if err != nil {
		return 0, time.Time{}, fmt.Errorf("redis: parse price %s: %w", symbol, err)
	}
	tsNano, err := strconv.ParseInt(vals["ts"], 10, 64)
	if err != nil {
		return 0, time.Time{}, fmt.Errorf("redis: parse ts %s: %w", symbol, err)
	}
	return price, time.Unix(0, tsNano), nil
}

var _ domain.PriceCache = (*PriceMirror)(nil)
