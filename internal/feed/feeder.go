// Package feed streams real-time market data from venue WebSocket endpoints
// into the local caches and the microstructure analyzer.
package feed

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/alanyoungcy/arbengine/internal/domain"
)

// Observer receives orderbook snapshots and trade prints for microstructure
// analysis. *micro.Analyzer satisfies it.
type Observer interface {
	Observe(snap domain.OrderbookSnapshot) domain.MakerSignature
	ObservePrint(p domain.TradePrint)
}

// Config holds the connection parameters for one venue feed.
type Config struct {
	URL      string
	Platform string
	Markets  []string
	Channels []string
}

func (c *Config) setDefaults() {
	if len(c.Channels) == 0 {
		c.Channels = []string{"quote", "book", "level", "trade"}
	}
}

// MarketFeed subscribes to one venue's market-data WebSocket and fans
// messages out to the quote cache, the orderbook cache, the microstructure
// observer, and the signal bus. Every collaborator is optional; nil ones are
// skipped.
type MarketFeed struct {
	cfg    Config
	quotes domain.QuoteCache
	books  domain.OrderbookCache
	micro  Observer
	bus    domain.SignalBus
	logger *slog.Logger
}

// NewMarketFeed creates a MarketFeed for the given venue.
func NewMarketFeed(
	cfg Config,
	quotes domain.QuoteCache,
	books domain.OrderbookCache,
	micro Observer,
	bus domain.SignalBus,
	logger *slog.Logger,
) *MarketFeed {
	cfg.setDefaults()
	return &MarketFeed{
		cfg:    cfg,
		quotes: quotes,
		books:  books,
		micro:  micro,
		bus:    bus,
		logger: logger.With(
			slog.String("component", "market_feed"),
			slog.String("platform", cfg.Platform),
		),
	}
}

// Run connects, subscribes to the configured channels, and blocks until ctx
// is cancelled. The underlying client reconnects with backoff on disconnect
// and restores subscriptions.
func (f *MarketFeed) Run(ctx context.Context) error {
	if len(f.cfg.Markets) == 0 {
		f.logger.Info("no markets to subscribe, exiting")
		return nil
	}

	client := NewWSClient(f.cfg.URL)
	defer client.Close()

	client.OnQuote(func(q domain.MarketQuote) { f.handleQuote(ctx, q) })
	client.OnBook(func(snap domain.OrderbookSnapshot) { f.handleBook(ctx, snap) })
	client.OnLevel(func(change domain.PriceChange) { f.handleLevel(ctx, change) })
	client.OnTrade(func(p domain.TradePrint) { f.handleTrade(p) })

	connCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	err := client.Connect(connCtx)
	cancel()
	if err != nil {
		return err
	}

	if err := client.Subscribe(ctx, f.cfg.Channels, f.cfg.Platform, f.cfg.Markets); err != nil {
		return err
	}
	f.logger.Info("feed subscribed",
		slog.Int("markets", len(f.cfg.Markets)),
		slog.Any("channels", f.cfg.Channels),
	)

	<-ctx.Done()
	return ctx.Err()
}

func (f *MarketFeed) handleQuote(ctx context.Context, q domain.MarketQuote) {
	if err := q.Validate(); err != nil {
		f.logger.Debug("dropping invalid quote",
			slog.String("market_id", q.MarketID),
			slog.String("error", err.Error()),
		)
		return
	}

	if f.quotes != nil {
		if err := f.quotes.SetQuote(ctx, q); err != nil && !errors.Is(err, context.Canceled) {
			f.logger.Warn("quote cache write failed",
				slog.String("market_id", q.MarketID),
				slog.String("error", err.Error()),
			)
		}
	}

	if f.bus != nil {
		payload, err := json.Marshal(q)
		if err != nil {
			return
		}
		if err := f.bus.Publish(ctx, domain.ChannelQuotes, payload); err != nil && !errors.Is(err, context.Canceled) {
			f.logger.Debug("quote publish failed", slog.String("error", err.Error()))
		}
	}
}

func (f *MarketFeed) handleBook(ctx context.Context, snap domain.OrderbookSnapshot) {
	if f.books != nil {
		if err := f.books.SetSnapshot(ctx, snap); err != nil && !errors.Is(err, context.Canceled) {
			f.logger.Warn("orderbook cache write failed",
				slog.String("market_id", snap.MarketID),
				slog.String("error", err.Error()),
			)
		}
	}
	if f.micro != nil {
		_ = f.micro.Observe(snap)
	}
}

func (f *MarketFeed) handleLevel(ctx context.Context, change domain.PriceChange) {
	if f.books == nil {
		return
	}
	err := f.books.UpdateLevel(ctx, change.Platform, change.MarketID, change.Side, change.BookSide, change.Price, change.Size)
	if err != nil && !errors.Is(err, context.Canceled) {
		f.logger.Debug("orderbook level update failed",
			slog.String("market_id", change.MarketID),
			slog.String("error", err.Error()),
		)
	}
}

func (f *MarketFeed) handleTrade(p domain.TradePrint) {
	if f.micro != nil {
		f.micro.ObservePrint(p)
	}
}
