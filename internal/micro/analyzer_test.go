package micro

import (
	"io"
	"log/slog"
	"math"
	"testing"
	"time"

	"github.com/alanyoungcy/arbengine/internal/domain"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

var baseTime = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

// makerBook is a mirrored, uniformly sized ladder quoting a constant spread.
func makerBook(ts time.Time) domain.OrderbookSnapshot {
	return domain.OrderbookSnapshot{
		Platform: "polymarket",
		MarketID: "m1",
		Side:     domain.SideYes,
		Bids:     []domain.PriceLevel{{Price: 0.49, Size: 100}, {Price: 0.48, Size: 100}, {Price: 0.47, Size: 100}},
		Asks:     []domain.PriceLevel{{Price: 0.51, Size: 100}, {Price: 0.52, Size: 100}, {Price: 0.53, Size: 100}},
		BestBid:  0.49, BestAsk: 0.51, MidPrice: 0.50,
		Timestamp: ts,
	}
}

// retailBook is lopsided with irregular sizes.
func retailBook(ts time.Time) domain.OrderbookSnapshot {
	return domain.OrderbookSnapshot{
		Platform: "polymarket",
		MarketID: "m2",
		Side:     domain.SideYes,
		Bids:     []domain.PriceLevel{{Price: 0.40, Size: 900}, {Price: 0.35, Size: 12}},
		Asks:     []domain.PriceLevel{{Price: 0.60, Size: 7}},
		BestBid:  0.40, BestAsk: 0.60, MidPrice: 0.50,
		Timestamp: ts,
	}
}

func TestObserveMakerSignature(t *testing.T) {
	a := NewAnalyzer(Config{}, testLogger())

	var sig domain.MakerSignature
	for i := 0; i < 20; i++ {
		sig = a.Observe(makerBook(baseTime.Add(time.Duration(i) * time.Second)))
	}
	if !sig.IsMaker {
		t.Fatalf("IsMaker = false, confidence %v, want maker detection", sig.Confidence)
	}
	if sig.Pattern != domain.PatternUniform {
		t.Errorf("Pattern = %v, want uniform", sig.Pattern)
	}
	if math.Abs(sig.Symmetry-1) > 1e-9 {
		t.Errorf("Symmetry = %v, want 1", sig.Symmetry)
	}
	if sig.SpreadConsistency < 0.99 {
		t.Errorf("SpreadConsistency = %v, want near 1", sig.SpreadConsistency)
	}
	if sig.UpdateFrequency < 1-1e-9 {
		t.Errorf("UpdateFrequency = %v, want saturated", sig.UpdateFrequency)
	}
}

func TestObserveRetailBook(t *testing.T) {
	a := NewAnalyzer(Config{}, testLogger())
	var sig domain.MakerSignature
	for i := 0; i < 3; i++ {
		sig = a.Observe(retailBook(baseTime.Add(time.Duration(i) * time.Minute)))
	}
	if sig.IsMaker {
		t.Fatalf("IsMaker = true (confidence %v) for lopsided retail book", sig.Confidence)
	}
}

func TestSizePatternClassification(t *testing.T) {
	levels := func(sizes ...float64) []domain.PriceLevel {
		out := make([]domain.PriceLevel, len(sizes))
		for i, s := range sizes {
			out[i] = domain.PriceLevel{Price: 0.5, Size: s}
		}
		return out
	}
	tests := []struct {
		name string
		bids []domain.PriceLevel
		asks []domain.PriceLevel
		want domain.SizePattern
	}{
		{"uniform", levels(100, 100, 100), levels(100, 100, 100), domain.PatternUniform},
		{"increasing", levels(10, 50, 200), levels(10, 60, 250), domain.PatternIncreasing},
		{"decreasing", levels(200, 50, 10), levels(250, 60, 10), domain.PatternDecreasing},
		{"random", levels(5, 500, 3), levels(80, 2, 300), domain.PatternRandom},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, _ := sizePattern(domain.OrderbookSnapshot{Bids: tt.bids, Asks: tt.asks})
			if got != tt.want {
				t.Errorf("sizePattern() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestMakerConfidenceRequiresSamples(t *testing.T) {
	a := NewAnalyzer(Config{MinSamples: 10}, testLogger())
	for i := 0; i < 9; i++ {
		a.Observe(makerBook(baseTime.Add(time.Duration(i) * time.Second)))
	}
	if _, ok := a.MakerConfidence("polymarket", "m1"); ok {
		t.Fatal("MakerConfidence reported with 9 samples, want suppressed below 10")
	}
	a.Observe(makerBook(baseTime.Add(10 * time.Second)))
	conf, ok := a.MakerConfidence("polymarket", "m1")
	if !ok {
		t.Fatal("MakerConfidence suppressed at 10 samples, want reported")
	}
	if conf <= 0 || conf > 1 {
		t.Errorf("confidence = %v, want in (0,1]", conf)
	}
}

func TestProfilesReporting(t *testing.T) {
	a := NewAnalyzer(Config{MinSamples: 5}, testLogger())
	for i := 0; i < 6; i++ {
		a.Observe(makerBook(baseTime.Add(time.Duration(i) * time.Second)))
	}
	a.Observe(retailBook(baseTime)) // below minimum, not reported

	profiles := a.Profiles()
	if len(profiles) != 1 {
		t.Fatalf("len(Profiles()) = %d, want 1", len(profiles))
	}
	p := profiles[0]
	if p.MarketID != "m1" || p.Platform != "polymarket" {
		t.Errorf("profile market = %s/%s, want polymarket/m1", p.Platform, p.MarketID)
	}
	if p.Samples != 6 {
		t.Errorf("Samples = %d, want 6", p.Samples)
	}
	if math.Abs(p.AvgSpread-0.02) > 1e-9 {
		t.Errorf("AvgSpread = %v, want 0.02", p.AvgSpread)
	}
	if p.AvgExploitability <= 0 || p.AvgExploitability > 1 {
		t.Errorf("AvgExploitability = %v, want in (0,1]", p.AvgExploitability)
	}
}

func TestProfileEviction(t *testing.T) {
	a := NewAnalyzer(Config{MaxProfiles: 2, ProfileTTL: time.Hour}, testLogger())
	book := func(id string, ts time.Time) domain.OrderbookSnapshot {
		b := makerBook(ts)
		b.MarketID = id
		return b
	}

	a.Observe(book("m1", baseTime))
	a.Observe(book("m2", baseTime.Add(time.Second)))
	// A third market at the cap pushes out the stalest.
	a.Observe(book("m3", baseTime.Add(2*time.Second)))

	a.mu.Lock()
	_, m1 := a.profiles[marketKey("polymarket", "m1")]
	_, m3 := a.profiles[marketKey("polymarket", "m3")]
	count := len(a.profiles)
	a.mu.Unlock()
	if m1 {
		t.Error("stalest profile survived the cap")
	}
	if !m3 {
		t.Error("newly observed market has no profile")
	}
	if count != 2 {
		t.Errorf("tracked profiles = %d, want 2", count)
	}

	// Markets idle past the TTL go when a new one arrives.
	a.Observe(book("m4", baseTime.Add(2*time.Hour)))
	a.mu.Lock()
	count = len(a.profiles)
	_, m4 := a.profiles[marketKey("polymarket", "m4")]
	a.mu.Unlock()
	if count != 1 || !m4 {
		t.Errorf("profiles after TTL sweep = %d, want only the fresh market", count)
	}
}

func TestSnapshotWindowEviction(t *testing.T) {
	a := NewAnalyzer(Config{Window: time.Minute, MaxSnapshots: 100}, testLogger())
	a.Observe(makerBook(baseTime))
	a.Observe(makerBook(baseTime.Add(2 * time.Minute)))

	a.mu.Lock()
	got := len(a.windows[marketKey("polymarket", "m1")])
	a.mu.Unlock()
	if got != 1 {
		t.Fatalf("window length = %d, want 1 after time eviction", got)
	}
}

func TestExploitability(t *testing.T) {
	a := NewAnalyzer(Config{}, testLogger())
	var sig domain.MakerSignature
	for i := 0; i < 20; i++ {
		sig = a.Observe(makerBook(baseTime.Add(time.Duration(i) * time.Second)))
	}

	report := a.Exploitability(sig)
	if !report.Exploitable {
		t.Fatalf("Exploitable = false (score %v), want true for textbook maker", report.Score)
	}
	names := make(map[string]time.Duration)
	for _, s := range report.Strategies {
		names[s.Name] = s.Window
		if s.ExpectedEdge <= 0 {
			t.Errorf("strategy %s edge = %v, want positive", s.Name, s.ExpectedEdge)
		}
		if s.Window <= 0 {
			t.Errorf("strategy %s window = %v, want positive", s.Name, s.Window)
		}
	}
	for _, want := range []string{"spread_compression", "mirror_and_undercut", "frequency"} {
		if _, ok := names[want]; !ok {
			t.Errorf("missing strategy %q in %v", want, report.Strategies)
		}
	}
	// A saturated update frequency means stale-quote gaps are a fraction of
	// the retention window.
	if names["frequency"] >= names["spread_compression"] {
		t.Errorf("frequency window = %v, want below retention window %v",
			names["frequency"], names["spread_compression"])
	}

	weak := a.Exploitability(domain.MakerSignature{MarketID: "m2", Symmetry: 0.1, SpreadConsistency: 0.1})
	if weak.Exploitable || len(weak.Strategies) != 0 {
		t.Errorf("weak signature report = %+v, want not exploitable", weak)
	}
}

func TestLiquidityProfile(t *testing.T) {
	a := NewAnalyzer(Config{}, testLogger())
	snap := domain.OrderbookSnapshot{
		Platform: "polymarket", MarketID: "m1", Side: domain.SideYes,
		Bids: []domain.PriceLevel{
			{Price: 0.4996, Size: 100},
			{Price: 0.4980, Size: 200},
			{Price: 0.4960, Size: 300},
		},
		Asks: []domain.PriceLevel{
			{Price: 0.5004, Size: 50},
			{Price: 0.5020, Size: 100},
			{Price: 0.5045, Size: 150},
		},
		BestBid: 0.4996, BestAsk: 0.5004, MidPrice: 0.50,
		Timestamp: baseTime,
	}

	p := a.Liquidity(snap)
	if math.Abs(p.SpreadBps-16) > 1e-9 {
		t.Errorf("SpreadBps = %v, want 16", p.SpreadBps)
	}
	if math.Abs(p.Depth10-150) > 1e-9 {
		t.Errorf("Depth10 = %v, want 150 (top of book only)", p.Depth10)
	}
	if math.Abs(p.Depth50-450) > 1e-9 {
		t.Errorf("Depth50 = %v, want 450", p.Depth50)
	}
	if math.Abs(p.Depth100-900) > 1e-9 {
		t.Errorf("Depth100 = %v, want 900 (full book)", p.Depth100)
	}
	if math.Abs(p.Imbalance-1.0/3) > 1e-9 {
		t.Errorf("Imbalance = %v, want 1/3 bid-heavy", p.Imbalance)
	}

	// A snapshot without a mid yields an empty profile rather than NaNs.
	empty := a.Liquidity(domain.OrderbookSnapshot{MarketID: "m2"})
	if empty.SpreadBps != 0 || empty.Depth100 != 0 || empty.Imbalance != 0 {
		t.Errorf("profile without mid = %+v, want zeros", empty)
	}
}

func TestOrderFlow(t *testing.T) {
	a := NewAnalyzer(Config{}, testLogger())
	print := func(aggressor string, size float64, offset time.Duration) domain.TradePrint {
		return domain.TradePrint{
			Platform: "polymarket", MarketID: "m1",
			Price: 0.5, Size: size, Aggressor: aggressor,
			Timestamp: baseTime.Add(offset),
		}
	}
	a.ObservePrint(print("BUY", 300, 0))
	a.ObservePrint(print("SELL", 100, time.Second))

	stats := a.OrderFlow("polymarket", "m1")
	if stats.Prints != 2 {
		t.Fatalf("Prints = %d, want 2", stats.Prints)
	}
	if math.Abs(stats.Imbalance-0.5) > 1e-9 {
		t.Errorf("Imbalance = %v, want 0.5", stats.Imbalance)
	}
	if math.Abs(stats.AvgPrintSize-200) > 1e-9 {
		t.Errorf("AvgPrintSize = %v, want 200", stats.AvgPrintSize)
	}

	// Prints age out of the window.
	a.ObservePrint(print("BUY", 50, 10*time.Minute))
	if got := len(a.flowWindow("polymarket", "m1")); got != 1 {
		t.Fatalf("retained prints = %d, want 1 after eviction", got)
	}

	empty := a.OrderFlow("polymarket", "missing")
	if empty.Prints != 0 || empty.Imbalance != 0 {
		t.Errorf("empty market stats = %+v, want zeros", empty)
	}
}
