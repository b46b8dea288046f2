package redis

import (
	"context"
	_ "embed"
	"fmt"
	"time"

	"github.com/alanyoungcy/arbengine/internal/domain"
	"github.com/redis/go-redis/v9"
)

//go:embed scripts/sliding_window.lua
var budgetWindowLua string

// budgetPollInterval is how often Wait re-checks an exhausted budget. Venue
// budgets refill continuously as old requests age out of the window, so a
// short fixed poll is enough.
const budgetPollInterval = 50 * time.Millisecond

// RateLimiter implements domain.RateLimiter with a sliding window per key,
// kept in a Redis sorted set and advanced atomically by a Lua script. The
// engine keys budgets per venue ("orders:polymarket") so one instance's order
// flow stays inside exchange API limits even when several engines share the
// Redis.
type RateLimiter struct {
	rdb    *redis.Client
	window *redis.Script
}

// NewRateLimiter creates a RateLimiter backed by the given Client.
func NewRateLimiter(c *Client) *RateLimiter {
	return &RateLimiter{
		rdb:    c.Underlying(),
		window: redis.NewScript(budgetWindowLua),
	}
}

// Allow spends one unit of the key's budget if any remains in the window.
// The decision and the spend are atomic, so concurrent callers cannot
// overshoot the limit between check and count.
func (rl *RateLimiter) Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	allowed, _, err := rl.take(ctx, key, limit, window)
	return allowed, err
}

// Remaining reports how much budget the key has left after spending one unit,
// or -1 with allowed=false when the budget is exhausted.
func (rl *RateLimiter) Remaining(ctx context.Context, key string, limit int, window time.Duration) (allowed bool, remaining int64, err error) {
	allowed, remaining, err = rl.take(ctx, key, limit, window)
	if err == nil && !allowed {
		remaining = -1
	}
	return allowed, remaining, err
}

func (rl *RateLimiter) take(ctx context.Context, key string, limit int, window time.Duration) (bool, int64, error) {
	now := time.Now().UnixMicro()
	reply, err := rl.window.Run(
		ctx,
		rl.rdb,
		[]string{"arb:budget:" + key},
		now,
		window.Microseconds(),
		limit,
	).Int64Slice()
	if err != nil {
		return false, 0, fmt.Errorf("redis: budget %s: %w", key, err)
	}
	if len(reply) != 2 {
		return false, 0, fmt.Errorf("redis: budget %s: malformed script reply (%d values)", key, len(reply))
	}
	return reply[0] == 1, reply[1], nil
}

// Wait blocks until one unit of a 1-per-second budget for the key is granted,
// or until ctx is cancelled. Callers with venue-specific limits should loop
// on Allow instead.
func (rl *RateLimiter) Wait(ctx context.Context, key string) error {
	ticker := time.NewTicker(budgetPollInterval)
	defer ticker.Stop()

	for {
		allowed, err := rl.Allow(ctx, key, 1, time.Second)
		if err != nil {
			return err
		}
		if allowed {
			return nil
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("redis: budget wait %s: %w", key, ctx.Err())
		case <-ticker.C:
		}
	}
}

var _ domain.RateLimiter = (*RateLimiter)(nil)
