package redis

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/alanyoungcy/arbengine/internal/domain"
	"github.com/redis/go-redis/v9"
)

// QuoteCache implements domain.QuoteCache using Redis hashes.
// Each market's latest two-sided quote is stored as a hash at key
// "quote:{platform}:{marketID}". A per-platform set "quotes:{platform}"
// indexes the market IDs currently cached for that platform.
type QuoteCache struct {
	rdb *redis.Client
}

// NewQuoteCache creates a QuoteCache backed by the given Client.
func NewQuoteCache(c *Client) *QuoteCache {
	return &QuoteCache{rdb: c.Underlying()}
}

func quoteKey(platform, marketID string) string {
	return "quote:" + platform + ":" + marketID
}

func quoteIndexKey(platform string) string {
	return "quotes:" + platform
}

// SetQuote stores the latest quote for a market and registers the market in
// the platform index.
func (qc *QuoteCache) SetQuote(ctx context.Context, q domain.MarketQuote) error {
	key := quoteKey(q.Platform, q.MarketID)
	fields := map[string]interface{}{
		"event":    q.Event,
		"yes_bid":  strconv.FormatFloat(q.YesBid, 'f', -1, 64),
		"yes_ask":  strconv.FormatFloat(q.YesAsk, 'f', -1, 64),
		"no_bid":   strconv.FormatFloat(q.NoBid, 'f', -1, 64),
		"no_ask":   strconv.FormatFloat(q.NoAsk, 'f', -1, 64),
		"yes_vol":  strconv.FormatFloat(q.YesVolume, 'f', -1, 64),
		"no_vol":   strconv.FormatFloat(q.NoVolume, 'f', -1, 64),
		"fee":      strconv.FormatFloat(q.TakerFee, 'f', -1, 64),
		"horizon":  strconv.FormatFloat(q.HoursToResolution, 'f', -1, 64),
		"ts":       strconv.FormatInt(q.Timestamp.UnixNano(), 10),
	}

	pipe := qc.rdb.TxPipeline()
	pipe.HSet(ctx, key, fields)
	pipe.SAdd(ctx, quoteIndexKey(q.Platform), q.MarketID)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis: set quote %s/%s: %w", q.Platform, q.MarketID, err)
	}
	return nil
}

// GetQuote retrieves the latest quote for a market.
// It returns domain.ErrNotFound when the key does not exist.
func (qc *QuoteCache) GetQuote(ctx context.Context, platform, marketID string) (domain.MarketQuote, error) {
	vals, err := qc.rdb.HGetAll(ctx, quoteKey(platform, marketID)).Result()
	if err != nil {
		return domain.MarketQuote{}, fmt.Errorf("redis: get quote %s/%s: %w", platform, marketID, err)
	}
	if len(vals) == 0 {
		return domain.MarketQuote{}, domain.ErrNotFound
	}
	return parseQuote(platform, marketID, vals), nil
}

// ListPlatform retrieves all cached quotes for a platform using a pipeline.
// Markets whose hashes have expired are silently omitted.
func (qc *QuoteCache) ListPlatform(ctx context.Context, platform string) ([]domain.MarketQuote, error) {
	ids, err := qc.rdb.SMembers(ctx, quoteIndexKey(platform)).Result()
	if err != nil {
		return nil, fmt.Errorf("redis: list quotes %s: %w", platform, err)
	}
	if len(ids) == 0 {
		return []domain.MarketQuote{}, nil
	}

	pipe := qc.rdb.Pipeline()
	cmds := make(map[string]*redis.MapStringStringCmd, len(ids))
	for _, id := range ids {
		cmds[id] = pipe.HGetAll(ctx, quoteKey(platform, id))
	}
	if _, err := pipe.Exec(ctx); err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("redis: list quotes pipeline %s: %w", platform, err)
	}

	quotes := make([]domain.MarketQuote, 0, len(ids))
	for _, id := range ids {
		vals, err := cmds[id].Result()
		if err != nil || len(vals) == 0 {
			continue
		}
		quotes = append(quotes, parseQuote(platform, id, vals))
	}
	return quotes, nil
}

func parseQuote(platform, marketID string, vals map[string]string) domain.MarketQuote {
	q := domain.MarketQuote{
		Platform: platform,
		MarketID: marketID,
		Event:    vals["event"],
	}
	q.YesBid = parseFloatField(vals, "yes_bid")
	q.YesAsk = parseFloatField(vals, "yes_ask")
	q.NoBid = parseFloatField(vals, "no_bid")
	q.NoAsk = parseFloatField(vals, "no_ask")
	q.YesVolume = parseFloatField(vals, "yes_vol")
	q.NoVolume = parseFloatField(vals, "no_vol")
	q.TakerFee = parseFloatField(vals, "fee")
	q.HoursToResolution = parseFloatField(vals, "horizon")
	if tsStr, ok := vals["ts"]; ok {
		if tsNano, err := strconv.ParseInt(tsStr, 10, 64); err == nil {
			q.Timestamp = time.Unix(0, tsNano)
		}
	}
	return q
}

func parseFloatField(vals map[string]string, field string) float64 {
	s, ok := vals[field]
	if !ok {
		return 0
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return f
}

// Compile-time interface check.
var _ domain.QuoteCache = (*QuoteCache)(nil)
