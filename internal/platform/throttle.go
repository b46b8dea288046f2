// Package platform provides venue-independent wrappers around execution
// adapters.
package platform

import (
	"context"
	"fmt"
	"time"

	"github.com/alanyoungcy/arbengine/internal/domain"
)

// ThrottledAdapter wraps a PlatformAdapter with a distributed rate limit on
// order placement. When the limiter denies a request the order is rejected
// with domain.ErrRateLimited before touching the venue.
type ThrottledAdapter struct {
	inner   domain.PlatformAdapter
	limiter domain.RateLimiter
	limit   int
	window  time.Duration
}

// NewThrottledAdapter wraps inner with the given per-window order budget.
func NewThrottledAdapter(inner domain.PlatformAdapter, limiter domain.RateLimiter, limit int, window time.Duration) *ThrottledAdapter {
	if limit <= 0 {
		limit = 10
	}
	if window <= 0 {
		window = time.Second
	}
	return &ThrottledAdapter{
		inner:   inner,
		limiter: limiter,
		limit:   limit,
		window:  window,
	}
}

func (t *ThrottledAdapter) Name() string { return t.inner.Name() }

func (t *ThrottledAdapter) PlaceOrder(ctx context.Context, req domain.OrderRequest) (domain.OrderResult, error) {
	key := "orders:" + t.inner.Name()
	ok, err := t.limiter.Allow(ctx, key, t.limit, t.window)
	if err != nil {
		return domain.OrderResult{}, fmt.Errorf("platform: rate limit check: %w", err)
	}
	if !ok {
		return domain.OrderResult{}, fmt.Errorf("platform %s: order budget exhausted: %w", t.inner.Name(), domain.ErrRateLimited)
	}
	return t.inner.PlaceOrder(ctx, req)
}

// CancelAll is not throttled: cancels are how positions get out of trouble.
func (t *ThrottledAdapter) CancelAll(ctx context.Context, marketID string) error {
	return t.inner.CancelAll(ctx, marketID)
}

var _ domain.PlatformAdapter = (*ThrottledAdapter)(nil)
