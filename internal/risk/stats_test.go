package risk

import (
	"math"
	"testing"
	"time"

	"github.com/alanyoungcy/arbengine/internal/domain"
)

func TestHistoryStats(t *testing.T) {
	h := NewHistory(100, 24*time.Hour)
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	returns := []struct {
		ret float64
		won bool
	}{
		{0.10, true}, {0.20, true}, {-0.05, false}, {0.30, true}, {-0.15, false}, {-0.05, false},
	}
	for i, r := range returns {
		h.Record(domain.TradeOutcome{Return: r.ret, Won: r.won, SettledAt: base.Add(time.Duration(i) * time.Minute)})
	}

	stats := h.Stats()
	if stats.Trades != 6 || stats.Wins != 3 || stats.Losses != 3 {
		t.Fatalf("counts = %d/%d/%d, want 6/3/3", stats.Trades, stats.Wins, stats.Losses)
	}
	if math.Abs(stats.WinRate-0.5) > 1e-9 {
		t.Errorf("WinRate = %v, want 0.5", stats.WinRate)
	}
	if math.Abs(stats.AvgWin-0.2) > 1e-9 {
		t.Errorf("AvgWin = %v, want 0.2", stats.AvgWin)
	}
	wantAvgLoss := (0.05 + 0.15 + 0.05) / 3
	if math.Abs(stats.AvgLoss-wantAvgLoss) > 1e-9 {
		t.Errorf("AvgLoss = %v, want %v", stats.AvgLoss, wantAvgLoss)
	}
	if stats.ConsecutiveLosses != 2 {
		t.Errorf("ConsecutiveLosses = %d, want 2", stats.ConsecutiveLosses)
	}

	// Sharpe: mean return over the sample standard deviation.
	mean := stats.AvgReturn
	var ss float64
	for _, r := range returns {
		d := r.ret - mean
		ss += d * d
	}
	wantSharpe := mean / math.Sqrt(ss/5)
	if math.Abs(stats.Sharpe-wantSharpe) > 1e-9 {
		t.Errorf("Sharpe = %v, want %v", stats.Sharpe, wantSharpe)
	}
}

func TestHistoryTimeEviction(t *testing.T) {
	h := NewHistory(100, time.Hour)
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	h.Record(domain.TradeOutcome{Won: true, Return: 0.1, SettledAt: base})
	h.Record(domain.TradeOutcome{Won: false, Return: -0.1, SettledAt: base.Add(2 * time.Hour)})

	stats := h.Stats()
	if stats.Trades != 1 {
		t.Fatalf("Trades = %d, want 1 after time eviction", stats.Trades)
	}
	if stats.Wins != 0 {
		t.Errorf("Wins = %d, want 0 (aged-out win evicted)", stats.Wins)
	}
}

func TestHistorySizeBound(t *testing.T) {
	h := NewHistory(3, 24*time.Hour)
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	for i := 0; i < 10; i++ {
		h.Record(domain.TradeOutcome{Won: true, Return: 0.1, SettledAt: base.Add(time.Duration(i) * time.Minute)})
	}
	stats := h.Stats()
	if stats.Trades != 3 {
		t.Fatalf("Trades = %d, want 3 after size eviction", stats.Trades)
	}
	if stats.Sharpe != 0 {
		t.Errorf("Sharpe = %v, want 0 for identical returns", stats.Sharpe)
	}
}

func TestHistoryEmpty(t *testing.T) {
	h := NewHistory(0, 0)
	stats := h.Stats()
	if stats.Trades != 0 || stats.WinRate != 0 || stats.AvgWin != 0 {
		t.Fatalf("empty stats = %+v, want zero value", stats)
	}
}
