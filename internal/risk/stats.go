package risk

import (
	"math"
	"sync"
	"time"

	"github.com/alanyoungcy/arbengine/internal/domain"
)

// History is a bounded rolling window of settled trades from which sizing
// statistics are derived. Safe for concurrent use.
type History struct {
	mu       sync.Mutex
	window   time.Duration
	maxSize  int
	outcomes []domain.TradeOutcome
}

// NewHistory bounds the window by count and age. Zero values fall back to
// 200 trades and 7 days.
func NewHistory(maxSize int, window time.Duration) *History {
	if maxSize <= 0 {
		maxSize = 200
	}
	if window <= 0 {
		window = 7 * 24 * time.Hour
	}
	return &History{window: window, maxSize: maxSize}
}

// Record appends one settled trade, evicting anything aged out of the
// window or beyond the size bound.
func (h *History) Record(outcome domain.TradeOutcome) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.outcomes = append(h.outcomes, outcome)
	h.evictLocked(outcome.SettledAt)
}

func (h *History) evictLocked(now time.Time) {
	cutoff := now.Add(-h.window)
	start := 0
	for start < len(h.outcomes) && h.outcomes[start].SettledAt.Before(cutoff) {
		start++
	}
	if over := len(h.outcomes) - start - h.maxSize; over > 0 {
		start += over
	}
	if start > 0 {
		h.outcomes = append(h.outcomes[:0], h.outcomes[start:]...)
	}
}

// Stats summarizes the current window.
func (h *History) Stats() domain.TradeStats {
	h.mu.Lock()
	defer h.mu.Unlock()

	stats := domain.TradeStats{Trades: len(h.outcomes)}
	if stats.Trades == 0 {
		return stats
	}

	var winSum, lossSum, returnSum float64
	for _, o := range h.outcomes {
		returnSum += o.Return
		if o.Won {
			stats.Wins++
			winSum += o.Return
		} else {
			stats.Losses++
			lossSum += -o.Return
		}
	}
	stats.WinRate = float64(stats.Wins) / float64(stats.Trades)
	stats.AvgReturn = returnSum / float64(stats.Trades)
	if stats.Wins > 0 {
		stats.AvgWin = winSum / float64(stats.Wins)
	}
	if stats.Losses > 0 {
		stats.AvgLoss = lossSum / float64(stats.Losses)
	}
	stats.Sharpe = sharpe(h.outcomes, stats.AvgReturn)
	for i := len(h.outcomes) - 1; i >= 0 && !h.outcomes[i].Won; i-- {
		stats.ConsecutiveLosses++
	}
	return stats
}

// sharpe is the per-trade Sharpe ratio: mean return over the sample standard
// deviation of returns, with no risk-free leg. Undefined variance (fewer
// than two trades, or identical returns) reports zero.
func sharpe(outcomes []domain.TradeOutcome, mean float64) float64 {
	if len(outcomes) < 2 {
		return 0
	}
	var ss float64
	for _, o := range outcomes {
		d := o.Return - mean
		ss += d * d
	}
	sd := math.Sqrt(ss / float64(len(outcomes)-1))
	if sd == 0 {
		return 0
	}
	return mean / sd
}
