package domain

import (
	"context"
	"time"
)

// QuoteCache provides fast access to the latest quote per platform/market.
type QuoteCache interface {
	SetQuote(ctx context.Context, q MarketQuote) error
	GetQuote(ctx context.Context, platform, marketID string) (MarketQuote, error)
	ListPlatform(ctx context.Context, platform string) ([]MarketQuote, error)
}

// OrderbookCache stores live orderbook state.
type OrderbookCache interface {
	SetSnapshot(ctx context.Context, snap OrderbookSnapshot) error
	GetSnapshot(ctx context.Context, platform, marketID string, side Side) (OrderbookSnapshot, error)
	UpdateLevel(ctx context.Context, platform, marketID string, side Side, bookSide string, price, size float64) error
	GetBBO(ctx context.Context, platform, marketID string, side Side) (bestBid, bestAsk float64, err error)
}

// RateLimiter provides distributed rate limiting.
type RateLimiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}

// LockManager provides distributed locking.
type LockManager interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (unlock func(), err error)
}

// StreamMessage represents a single entry from a Redis stream.
type StreamMessage struct {
	ID      string
	Payload []byte
}

// BusChannel names a pub/sub topic on the signal bus. The engine publishes
// on a fixed set of channels; consumers subscribe by constant rather than by
// ad-hoc string.
type BusChannel string

const (
	// ChannelQuotes carries fresh market quotes from the venue feeds.
	ChannelQuotes BusChannel = "quotes"
	// ChannelOpportunities carries newly detected opportunities.
	ChannelOpportunities BusChannel = "opportunities"
	// ChannelExecutions carries per-plan execution results.
	ChannelExecutions BusChannel = "executions"
	// ChannelRisk carries risk-state transitions: settled outcomes,
	// emergency stops, resumes.
	ChannelRisk BusChannel = "risk"
)

// SignalBus provides pub/sub and durable streams for detected opportunities
// and risk state changes.
type SignalBus interface {
	Publish(ctx context.Context, channel BusChannel, payload []byte) error
	Subscribe(ctx context.Context, channel BusChannel) (<-chan []byte, error)
	StreamAppend(ctx context.Context, stream string, payload []byte) error
	StreamRead(ctx context.Context, stream string, lastID string, count int) ([]StreamMessage, error)
}
