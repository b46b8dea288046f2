package risk

import (
	"errors"
	"io"
	"log/slog"
	"math"
	"testing"

	"github.com/alanyoungcy/arbengine/internal/domain"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestKelly(t *testing.T) {
	tests := []struct {
		name         string
		in           domain.KellyInputs
		wantFraction float64
		wantErr      error
	}{
		{"reference case", domain.KellyInputs{WinProb: 0.6, AvgWin: 0.2, AvgLoss: 0.1}, 0.4, nil},
		{"even odds coin flip edge", domain.KellyInputs{WinProb: 0.55, AvgWin: 0.1, AvgLoss: 0.1}, 0.1, nil},
		{"zero probability", domain.KellyInputs{WinProb: 0, AvgWin: 0.2, AvgLoss: 0.1}, 0, domain.ErrInvalidProbability},
		{"probability of one", domain.KellyInputs{WinProb: 1, AvgWin: 0.2, AvgLoss: 0.1}, 0, domain.ErrInvalidProbability},
		{"negative win", domain.KellyInputs{WinProb: 0.6, AvgWin: -0.1, AvgLoss: 0.1}, 0, domain.ErrInvalidPayoff},
		{"zero loss", domain.KellyInputs{WinProb: 0.6, AvgWin: 0.2, AvgLoss: 0}, 0, domain.ErrInvalidPayoff},
		{"negative edge", domain.KellyInputs{WinProb: 0.3, AvgWin: 0.1, AvgLoss: 0.1}, 0, domain.ErrNoEdge},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, _, err := Kelly(tt.in)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("Kelly() error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("Kelly() error = %v", err)
			}
			if math.Abs(got-tt.wantFraction) > 1e-9 {
				t.Errorf("Kelly() = %v, want %v", got, tt.wantFraction)
			}
		})
	}
}

func TestSizeFromHistoryCapped(t *testing.T) {
	// Safety multiplier of 1 exposes the hard cap.
	s := NewSizer(Config{SafetyMultiplier: 1}, testLogger())
	stats := domain.TradeStats{
		Trades: 50, Wins: 30, Losses: 20,
		WinRate: 0.6, AvgWin: 0.2, AvgLoss: 0.1, AvgReturn: 0.02,
	}
	dec, err := s.SizeFromHistory(stats, 10000, false)
	if err != nil {
		t.Fatalf("SizeFromHistory() error = %v", err)
	}
	if math.Abs(dec.Kelly-0.4) > 1e-9 {
		t.Errorf("Kelly = %v, want 0.4", dec.Kelly)
	}
	if dec.Fraction > 0.25 {
		t.Errorf("Fraction = %v, want at most 0.25", dec.Fraction)
	}
	if math.Abs(dec.Amount-dec.Fraction*10000) > 1e-9 {
		t.Errorf("Amount = %v, want %v", dec.Amount, dec.Fraction*10000)
	}
}

func TestSizeFromHistoryInsufficient(t *testing.T) {
	s := NewSizer(Config{}, testLogger())
	stats := domain.TradeStats{Trades: 5, WinRate: 0.8, AvgWin: 0.2, AvgLoss: 0.1}

	dec, err := s.SizeFromHistory(stats, 10000, false)
	if !errors.Is(err, domain.ErrInsufficientHistory) {
		t.Fatalf("error = %v, want ErrInsufficientHistory", err)
	}
	if dec.Fraction != 0 {
		t.Errorf("Fraction = %v, want 0", dec.Fraction)
	}
	if dec.Reason == "" {
		t.Error("Reason empty, want insufficient history explanation")
	}
}

func TestSizeFromHistoryColdStart(t *testing.T) {
	s := NewSizer(Config{}, testLogger())
	dec, err := s.SizeFromHistory(domain.TradeStats{Trades: 0}, 10000, true)
	if err != nil {
		t.Fatalf("SizeFromHistory() cold start error = %v", err)
	}
	if dec.Fraction <= 0 {
		t.Errorf("Fraction = %v, want positive from seeded priors", dec.Fraction)
	}
}

func TestSizeOpportunityDiscountsExecutionRisk(t *testing.T) {
	s := NewSizer(Config{}, testLogger())
	opp := domain.Opportunity{Confidence: 0.8, ROI: 0.05}

	clean, err := s.SizeOpportunity(opp, 10000)
	if err != nil {
		t.Fatalf("SizeOpportunity() error = %v", err)
	}
	opp.ExecutionRisk = 0.5
	risky, err := s.SizeOpportunity(opp, 10000)
	if err != nil {
		t.Fatalf("SizeOpportunity() error = %v", err)
	}
	want := clean.Fraction * 0.5
	if math.Abs(risky.Fraction-want) > 1e-9 {
		t.Errorf("risky fraction = %v, want %v", risky.Fraction, want)
	}
}

func TestSizeOpportunityNoEdge(t *testing.T) {
	s := NewSizer(Config{}, testLogger())
	opp := domain.Opportunity{Confidence: 0.2, ROI: 0.05}
	if _, err := s.SizeOpportunity(opp, 10000); !errors.Is(err, domain.ErrNoEdge) {
		t.Fatalf("error = %v, want ErrNoEdge", err)
	}
}

func TestExpectedGrowth(t *testing.T) {
	in := domain.KellyInputs{WinProb: 0.6, AvgWin: 0.2, AvgLoss: 0.1}
	full, _, err := Kelly(in)
	if err != nil {
		t.Fatalf("Kelly() error = %v", err)
	}
	// Growth peaks at the full-Kelly fraction.
	g := ExpectedGrowth(in, full)
	if over := ExpectedGrowth(in, full*2.4); g <= over {
		t.Errorf("growth at kelly %v not above overbet %v", g, over)
	}
	if under := ExpectedGrowth(in, full*0.5); g <= under {
		t.Errorf("growth at kelly %v not above half stake %v", g, under)
	}
	if beyond := ExpectedGrowth(in, full*1.5); g <= beyond {
		t.Errorf("growth at kelly %v not above 1.5x stake %v", g, beyond)
	}
	// Closed form at the kelly point: 0.6·ln(1.8) + 0.4·ln(0.6).
	want := 0.6*math.Log(1.8) + 0.4*math.Log(0.6)
	if math.Abs(g-want) > 1e-9 {
		t.Errorf("ExpectedGrowth(kelly) = %v, want %v", g, want)
	}
	if got := ExpectedGrowth(in, 0); got != 0 {
		t.Errorf("ExpectedGrowth(0) = %v, want 0", got)
	}
	if got := ExpectedGrowth(in, 1); got != 0 {
		t.Errorf("ExpectedGrowth(1) = %v, want 0 at full ruin", got)
	}
}
