package detect

import (
	"io"
	"log/slog"
	"math"
	"reflect"
	"testing"
	"time"

	"github.com/alanyoungcy/arbengine/internal/domain"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestDetector(cfg Config) *Detector {
	return New(cfg, nil, testLogger())
}

func quote(platform, marketID, event string, yesAsk, noAsk float64) domain.MarketQuote {
	return domain.MarketQuote{
		Platform:  platform,
		MarketID:  marketID,
		Event:     event,
		YesBid:    math.Max(0, yesAsk-0.02),
		YesAsk:    yesAsk,
		NoBid:     math.Max(0, noAsk-0.02),
		NoAsk:     noAsk,
		YesVolume: 5000,
		NoVolume:  5000,
		Timestamp: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}
}

func TestDutchBook(t *testing.T) {
	tests := []struct {
		name       string
		yesAsk     float64
		noAsk      float64
		wantOpp    bool
		wantProfit float64
		wantROI    float64
	}{
		{"clear mispricing", 0.48, 0.47, true, 0.05, 0.05 / 0.95},
		{"fair pricing", 0.52, 0.48, false, 0, 0},
		{"overpriced", 0.55, 0.50, false, 0, 0},
		{"below noise floor", 0.501, 0.4985, false, 0, 0},
		{"exactly one", 0.50, 0.50, false, 0, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := newTestDetector(Config{})
			opp := d.dutchBook(quote("polymarket", "m1", "Event", tt.yesAsk, tt.noAsk))
			if !tt.wantOpp {
				if opp != nil {
					t.Fatalf("dutchBook() = %+v, want nil", opp)
				}
				return
			}
			if opp == nil {
				t.Fatal("dutchBook() = nil, want opportunity")
			}
			if math.Abs(opp.Profit-tt.wantProfit) > 1e-9 {
				t.Errorf("Profit = %v, want %v", opp.Profit, tt.wantProfit)
			}
			if math.Abs(opp.ROI-tt.wantROI) > 1e-9 {
				t.Errorf("ROI = %v, want %v", opp.ROI, tt.wantROI)
			}
			if opp.Kind != domain.OpportunityDutchBook {
				t.Errorf("Kind = %v, want dutch_book", opp.Kind)
			}
			if len(opp.Legs) != 2 {
				t.Fatalf("len(Legs) = %d, want 2", len(opp.Legs))
			}
			if opp.Legs[0].Side != domain.SideYes || opp.Legs[1].Side != domain.SideNo {
				t.Errorf("leg sides = %v/%v, want YES/NO", opp.Legs[0].Side, opp.Legs[1].Side)
			}
		})
	}
}

func TestDutchBookConfidence(t *testing.T) {
	d := newTestDetector(Config{})

	q := quote("polymarket", "m1", "Event", 0.48, 0.47)
	q.YesVolume, q.NoVolume = 20000, 20000 // saturated liquidity
	opp := d.dutchBook(q)
	if opp == nil {
		t.Fatal("dutchBook() = nil, want opportunity")
	}
	// liquidity score saturates at 1; tighter spread is 0.02
	want := 0.6*1 + 0.4*(1-0.02)
	if math.Abs(opp.Confidence-want) > 1e-9 {
		t.Errorf("Confidence = %v, want %v", opp.Confidence, want)
	}

	q.YesVolume, q.NoVolume = 0, 0
	opp = d.dutchBook(q)
	if opp.Confidence >= want {
		t.Errorf("Confidence with no volume = %v, want below %v", opp.Confidence, want)
	}
}

func TestSyntheticDirect(t *testing.T) {
	d := newTestDetector(Config{})
	a := quote("polymarket", "a1", "Will the Fed cut rates in March", 0.52, 0.49)
	a.TakerFee = 0.002
	b := quote("kalshi", "b1", "Fed cut rates March decision", 0.55, 0.46)
	b.TakerFee = 0.005

	opp := d.synthetic(a, b)
	if opp == nil {
		t.Fatal("synthetic() = nil, want opportunity")
	}
	if opp.Direction != domain.DirectionDirect {
		t.Errorf("Direction = %v, want direct", opp.Direction)
	}
	if math.Abs(opp.TotalCost-0.987) > 1e-9 {
		t.Errorf("TotalCost = %v, want 0.987", opp.TotalCost)
	}
	if math.Abs(opp.Profit-0.013) > 1e-9 {
		t.Errorf("Profit = %v, want 0.013", opp.Profit)
	}
	if opp.Legs[0].Side != domain.SideYes || opp.Legs[0].Platform != "polymarket" {
		t.Errorf("leg 0 = %+v, want polymarket YES", opp.Legs[0])
	}
	if opp.Legs[1].Side != domain.SideNo || opp.Legs[1].Platform != "kalshi" {
		t.Errorf("leg 1 = %+v, want kalshi NO", opp.Legs[1])
	}
	if opp.ExecutionRisk <= 0 || opp.ExecutionRisk > 1 {
		t.Errorf("ExecutionRisk = %v, want in (0,1]", opp.ExecutionRisk)
	}
}

func TestSyntheticReverse(t *testing.T) {
	d := newTestDetector(Config{})
	a := quote("polymarket", "a1", "Will the Fed cut rates in March", 0.60, 0.42)
	b := quote("kalshi", "b1", "Fed cut rates March decision", 0.54, 0.50)

	opp := d.synthetic(a, b)
	if opp == nil {
		t.Fatal("synthetic() = nil, want opportunity")
	}
	if opp.Direction != domain.DirectionReverse {
		t.Errorf("Direction = %v, want reverse", opp.Direction)
	}
	// reverse cost: a.NoAsk + b.YesAsk = 0.42 + 0.54 = 0.96
	if math.Abs(opp.Profit-0.04) > 1e-9 {
		t.Errorf("Profit = %v, want 0.04", opp.Profit)
	}
}

func TestSyntheticNoEdge(t *testing.T) {
	d := newTestDetector(Config{})
	a := quote("polymarket", "a1", "Will the Fed cut rates in March", 0.55, 0.48)
	b := quote("kalshi", "b1", "Fed cut rates March decision", 0.54, 0.47)
	if opp := d.synthetic(a, b); opp != nil {
		t.Fatalf("synthetic() = %+v, want nil", opp)
	}
}

func TestSyntheticCrossPlatformRiskHigher(t *testing.T) {
	a := quote("polymarket", "a1", "x", 0.50, 0.45)
	b := quote("kalshi", "b1", "x", 0.50, 0.45)
	cross := executionRisk(a, b)
	b.Platform = "polymarket"
	same := executionRisk(a, b)
	if cross <= same {
		t.Errorf("cross risk %v not above same-platform risk %v", cross, same)
	}
}

func TestEndgame(t *testing.T) {
	d := newTestDetector(Config{})

	q := quote("polymarket", "m1", "Event", 0.96, 0.06)
	q.YesBid = 0.94
	q.HoursToResolution = 24
	opp := d.endgame(q)
	if opp == nil {
		t.Fatal("endgame() = nil, want opportunity")
	}
	if opp.Kind != domain.OpportunityEndgame {
		t.Errorf("Kind = %v, want endgame", opp.Kind)
	}
	wantROI := (1 - 0.96) / 0.96
	if math.Abs(opp.ROI-wantROI) > 1e-9 {
		t.Errorf("ROI = %v, want %v", opp.ROI, wantROI)
	}
	if math.Abs(opp.AnnualizedROI-wantROI*365) > 1e-9 {
		t.Errorf("AnnualizedROI = %v, want %v", opp.AnnualizedROI, wantROI*365)
	}

	// bid below threshold
	q.YesBid = 0.85
	if opp := d.endgame(q); opp != nil {
		t.Fatalf("endgame() below threshold = %+v, want nil", opp)
	}

	// no resolution horizon annualizes to zero, filtered out
	q.YesBid = 0.94
	q.HoursToResolution = 0
	if opp := d.endgame(q); opp != nil {
		t.Fatalf("endgame() without horizon = %+v, want nil", opp)
	}
}

func TestSameEvent(t *testing.T) {
	tests := []struct {
		name string
		a, b string
		want bool
	}{
		{"identical", "Will BTC close above 100k", "Will BTC close above 100k", true},
		{"shared tokens", "Fed rate cut in March 2026", "March 2026 Fed decision", true},
		{"punctuation and case", "TRUMP-WINS-2028!", "trump wins 2028", true},
		{"substring", "Superbowl winner", "Superbowl", true},
		{"unrelated", "BTC above 100k", "Fed cuts rates", false},
		{"single shared token", "BTC price today", "ETH price tomorrow", false},
		{"empty", "", "anything here", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var m TokenOverlapMatcher
			if got := m.SameEvent(tt.a, tt.b); got != tt.want {
				t.Errorf("SameEvent(%q, %q) = %v, want %v", tt.a, tt.b, got, tt.want)
			}
		})
	}
}

// pairAll pairs every event with every other, exposing cross-platform pairs
// the token heuristic would miss.
type pairAll struct{}

func (pairAll) SameEvent(a, b string) bool { return true }

func TestDetectCustomMatcher(t *testing.T) {
	// Differently worded listings of the same outcome: YES on one platform
	// plus NO on the other costs under a dollar, but no tokens overlap.
	quotes := []domain.MarketQuote{
		{
			Platform: "polymarket", MarketID: "p1", Event: "rate decision outcome",
			YesBid: 0.44, YesAsk: 0.46, NoBid: 0.52, NoAsk: 0.54,
			YesVolume: 20000, NoVolume: 20000, Timestamp: time.Now(),
		},
		{
			Platform: "kalshi", MarketID: "k1", Event: "FOMC March meeting",
			YesBid: 0.48, YesAsk: 0.50, NoBid: 0.50, NoAsk: 0.52,
			YesVolume: 20000, NoVolume: 20000, Timestamp: time.Now(),
		},
	}

	if opps := newTestDetector(Config{}).Detect(quotes); len(opps) != 0 {
		t.Fatalf("default matcher paired unrelated names: %+v", opps)
	}
	opps := newTestDetector(Config{Matcher: pairAll{}}).Detect(quotes)
	if len(opps) == 0 {
		t.Fatal("injected matcher found no synthetic pair")
	}
	if opps[0].Kind != domain.OpportunitySynthetic {
		t.Errorf("Kind = %v, want synthetic", opps[0].Kind)
	}
}

func TestDetectRankingAndIdempotence(t *testing.T) {
	d := newTestDetector(Config{})
	quotes := []domain.MarketQuote{
		quote("polymarket", "m1", "Fed cut rates March", 0.48, 0.47),   // profit 0.05
		quote("polymarket", "m2", "BTC above 100k April", 0.45, 0.45), // profit 0.10
		quote("kalshi", "k1", "Fed cut rates March decision", 0.55, 0.44),
	}

	first := d.Detect(quotes)
	if len(first) < 2 {
		t.Fatalf("Detect() returned %d opportunities, want at least 2", len(first))
	}
	for i := 1; i < len(first); i++ {
		if first[i].Profit > first[i-1].Profit {
			t.Errorf("ranking violated at %d: %v > %v", i, first[i].Profit, first[i-1].Profit)
		}
	}

	second := d.Detect(quotes)
	if !reflect.DeepEqual(first, second) {
		t.Error("Detect() is not idempotent on identical input")
	}
}

func TestDetectSkipsInvalidQuotes(t *testing.T) {
	d := newTestDetector(Config{})
	bad := quote("polymarket", "m1", "Event", 0.48, 0.47)
	bad.YesBid = 0.99 // crossed book
	if got := d.Detect([]domain.MarketQuote{bad}); len(got) != 0 {
		t.Fatalf("Detect() with invalid quote = %d opportunities, want 0", len(got))
	}
}

type stubMakers struct{ conf float64 }

func (s stubMakers) MakerConfidence(platform, marketID string) (float64, bool) {
	return s.conf, true
}

func TestDetectMakerDiscount(t *testing.T) {
	quotes := []domain.MarketQuote{quote("polymarket", "m1", "Event", 0.48, 0.47)}

	plain := New(Config{}, nil, testLogger()).Detect(quotes)
	discounted := New(Config{}, stubMakers{conf: 1}, testLogger()).Detect(quotes)

	if len(plain) != 1 || len(discounted) != 1 {
		t.Fatalf("Detect() lengths = %d/%d, want 1/1", len(plain), len(discounted))
	}
	want := plain[0].Confidence * 0.7
	if math.Abs(discounted[0].Confidence-want) > 1e-9 {
		t.Errorf("discounted confidence = %v, want %v", discounted[0].Confidence, want)
	}
}
