package micro

import (
	"time"

	"github.com/alanyoungcy/arbengine/internal/domain"
)

// ObservePrint ingests one trade print into the market's bounded window.
func (a *Analyzer) ObservePrint(p domain.TradePrint) {
	a.mu.Lock()
	defer a.mu.Unlock()

	key := marketKey(p.Platform, p.MarketID)
	prints := append(a.prints[key], p)
	cutoff := p.Timestamp.Add(-a.cfg.Window)
	start := 0
	for start < len(prints) && prints[start].Timestamp.Before(cutoff) {
		start++
	}
	if over := len(prints) - start - a.cfg.MaxSnapshots; over > 0 {
		start += over
	}
	if start > 0 {
		prints = append(prints[:0], prints[start:]...)
	}
	a.prints[key] = prints
}

// OrderFlow summarizes the retained prints for one market: signed imbalance
// in [-1, 1] where positive means buyer-initiated flow dominates.
func (a *Analyzer) OrderFlow(platform, marketID string) domain.OrderFlowStats {
	a.mu.Lock()
	defer a.mu.Unlock()

	prints := a.prints[marketKey(platform, marketID)]
	stats := domain.OrderFlowStats{
		MarketID: marketID,
		Prints:   len(prints),
		Window:   a.cfg.Window,
	}
	if len(prints) == 0 {
		return stats
	}

	var sizeSum float64
	for _, p := range prints {
		sizeSum += p.Size
		if p.Aggressor == "BUY" {
			stats.BuyVolume += p.Price * p.Size
		} else {
			stats.SellVolume += p.Price * p.Size
		}
	}
	if total := stats.BuyVolume + stats.SellVolume; total > 0 {
		stats.Imbalance = (stats.BuyVolume - stats.SellVolume) / total
	}
	stats.AvgPrintSize = sizeSum / float64(len(prints))
	return stats
}

// flowWindow exposes the retained print timestamps; used by tests to verify
// eviction behavior.
func (a *Analyzer) flowWindow(platform, marketID string) []time.Time {
	a.mu.Lock()
	defer a.mu.Unlock()
	prints := a.prints[marketKey(platform, marketID)]
	ts := make([]time.Time, len(prints))
	for i, p := range prints {
		ts[i] = p.Timestamp
	}
	return ts
}
