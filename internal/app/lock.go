package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/alanyoungcy/limitlessbot/internal/domain"
)

// keepLock extends lock every ttl/3 until ctx ends. Losing the lock to
// another holder is fatal; other extend errors are retried on the next tick
// and become fatal only once the lock has expired.
func keepLock(ctx context.Context, lock domain.Lock, ttl time.Duration, logger *slog.Logger) error {
	every := ttl / 3
	if every <= 0 {
		every = time.Second
	}
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	lastOK := time.Now()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}

		err := lock.Extend(ctx, ttl)
		switch {
		case err == nil:
			lastOK = time.Now()
		case errors.Is(err, domain.ErrLockHeld):
			return fmt.Errorf("app: instance lock lost: %w", err)
		case ctx.Err() != nil:
			return nil
		default:
			if time.Since(lastOK) >= ttl {
				return fmt.Errorf("app: instance lock expired: %w", err)
			}
			logger.Warn("instance lock extend failed", slog.String("error", err.Error()))
		}
	}
}
