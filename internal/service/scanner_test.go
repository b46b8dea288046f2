package service

import (
	"context"
	"testing"
	"time"

	"github.com/alanyoungcy/arbengine/internal/domain"
	"github.com/google/uuid"
)

type memQuoteCache struct {
	quotes map[string]domain.MarketQuote // platform:marketID
}

func quoteCacheKey(platform, marketID string) string { return platform + ":" + marketID }

func (m *memQuoteCache) SetQuote(ctx context.Context, q domain.MarketQuote) error {
	if m.quotes == nil {
		m.quotes = make(map[string]domain.MarketQuote)
	}
	m.quotes[quoteCacheKey(q.Platform, q.MarketID)] = q
	return nil
}
func (m *memQuoteCache) GetQuote(ctx context.Context, platform, marketID string) (domain.MarketQuote, error) {
	q, ok := m.quotes[quoteCacheKey(platform, marketID)]
	if !ok {
		return domain.MarketQuote{}, domain.ErrNotFound
	}
	return q, nil
}
func (m *memQuoteCache) ListPlatform(ctx context.Context, platform string) ([]domain.MarketQuote, error) {
	var out []domain.MarketQuote
	for _, q := range m.quotes {
		if q.Platform == platform {
			out = append(out, q)
		}
	}
	return out, nil
}

func TestScannerCycleExecutes(t *testing.T) {
	f := newFixture(t, map[string]domain.PlatformAdapter{"polymarket": alwaysFill{name: "polymarket"}})
	cache := &memQuoteCache{}
	_ = cache.SetQuote(context.Background(), dutchQuote())

	s := NewScanner(ScannerConfig{
		Platforms: []string{"polymarket", "kalshi"},
		Execute:   true,
	}, f.engine, cache, testLogger())

	s.scanCycle(context.Background())

	if len(f.opps.inserted) != 1 {
		t.Fatalf("persisted %d opportunities, want 1", len(f.opps.inserted))
	}
	if len(f.trades.outcomes) != 1 {
		t.Fatalf("recorded %d trades, want 1", len(f.trades.outcomes))
	}
	if len(f.opps.executed) != 1 {
		t.Errorf("marked executed %d, want 1", len(f.opps.executed))
	}
}

func TestScannerMonitorOnlyNeverTrades(t *testing.T) {
	f := newFixture(t, map[string]domain.PlatformAdapter{"polymarket": alwaysFill{name: "polymarket"}})
	cache := &memQuoteCache{}
	_ = cache.SetQuote(context.Background(), dutchQuote())

	s := NewScanner(ScannerConfig{
		Platforms: []string{"polymarket"},
		Execute:   false,
	}, f.engine, cache, testLogger())

	s.scanCycle(context.Background())

	if len(f.opps.inserted) != 1 {
		t.Fatalf("persisted %d opportunities, want 1", len(f.opps.inserted))
	}
	if len(f.trades.outcomes) != 0 {
		t.Errorf("recorded %d trades in monitor mode, want 0", len(f.trades.outcomes))
	}
}

func TestScannerPlanFailureReleasesReservation(t *testing.T) {
	f := newFixture(t, nil)
	cache := &memQuoteCache{}
	s := NewScanner(ScannerConfig{Platforms: []string{"polymarket"}, Execute: true}, f.engine, cache, testLogger())

	// Sizes and reserves, but planning fails on the legless opportunity.
	opp := domain.Opportunity{
		ID: uuid.New(), Event: "fed cut",
		Confidence: 0.8, ROI: 0.05, TotalCost: 0.95,
	}
	if err := s.executeOne(context.Background(), opp); err == nil {
		t.Fatal("executeOne() succeeded on an opportunity with no legs")
	}
	if exp := f.engine.Snapshot().Exposure; exp > 1e-6 {
		t.Errorf("Exposure = %v, want reservation released after plan failure", exp)
	}
}

func TestScannerFreshness(t *testing.T) {
	f := newFixture(t, nil)
	cache := &memQuoteCache{}
	q := dutchQuote()
	_ = cache.SetQuote(context.Background(), q)

	s := NewScanner(ScannerConfig{Platforms: []string{"polymarket"}}, f.engine, cache, testLogger())

	plan := domain.ExecutionPlan{
		ID: uuid.New(),
		Steps: []domain.ExecutionStep{
			{Platform: "polymarket", MarketID: "m1", Side: domain.SideYes, Price: 0.48, MaxPrice: 0.485, Size: 100},
			{Platform: "polymarket", MarketID: "m1", Side: domain.SideNo, Price: 0.47, MaxPrice: 0.475, Size: 100},
		},
	}

	if !s.freshness(plan, 0) {
		t.Fatal("fresh quotes reported stale")
	}

	// Second leg's ask gaps through its ceiling after the first fill.
	q.NoAsk = 0.52
	q.NoBid = 0.50
	_ = cache.SetQuote(context.Background(), q)
	if s.freshness(plan, 1) {
		t.Fatal("widened quote not reported stale")
	}

	// A cache miss on a pending leg also aborts.
	plan.Steps[1].MarketID = "missing"
	if s.freshness(plan, 1) {
		t.Fatal("cache miss not reported stale")
	}
}

func TestScannerTickLoopStopsOnCancel(t *testing.T) {
	f := newFixture(t, nil)
	cache := &memQuoteCache{}
	s := NewScanner(ScannerConfig{
		Platforms: []string{"polymarket"},
		Interval:  10 * time.Millisecond,
	}, f.engine, cache, testLogger())

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	if err := s.Run(ctx); err != context.DeadlineExceeded {
		t.Fatalf("Run() = %v, want context.DeadlineExceeded", err)
	}
}
