// Package micro analyzes order-book microstructure: it detects automated
// market-maker signatures from rolling snapshot windows, grades how
// mechanically a detected maker can be traded against, and tracks order
// flow imbalance from trade prints.
package micro

import (
	"fmt"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/alanyoungcy/arbengine/internal/domain"
)

// Config bounds the analyzer's windows.
type Config struct {
	// Window is how long snapshots and prints are retained per market.
	Window time.Duration
	// MaxSnapshots bounds the per-market snapshot buffer.
	MaxSnapshots int
	// MinSamples is the analysis count a profile needs before it is
	// reported or used to discount detection confidence.
	MinSamples int
	// FreqNorm is the snapshot count per window that scores update
	// frequency as fully automated.
	FreqNorm int
	// DepthNorm is the aggregate book size that scores depth at 1.
	DepthNorm float64
	// MaxProfiles caps tracked per-market profiles; the stalest markets
	// are dropped when a new one arrives at the cap.
	MaxProfiles int
	// ProfileTTL drops a market's profile and buffers when nothing has
	// been observed on it for this long.
	ProfileTTL time.Duration
}

func (c *Config) setDefaults() {
	if c.Window == 0 {
		c.Window = 5 * time.Minute
	}
	if c.MaxSnapshots == 0 {
		c.MaxSnapshots = 100
	}
	if c.MinSamples == 0 {
		c.MinSamples = 10
	}
	if c.FreqNorm == 0 {
		c.FreqNorm = 20
	}
	if c.DepthNorm == 0 {
		c.DepthNorm = 1000
	}
	if c.MaxProfiles == 0 {
		c.MaxProfiles = 1000
	}
	if c.ProfileTTL == 0 {
		c.ProfileTTL = 24 * time.Hour
	}
}

type profile struct {
	samples       int
	confidenceSum float64
	spreadSum     float64
	depthSum      float64
	exploitSum    float64
	pattern       domain.SizePattern
	firstSeen     time.Time
	lastSeen      time.Time
}

// Analyzer accumulates snapshots and prints per market. Safe for concurrent
// use; feeds run it from their own goroutines.
type Analyzer struct {
	cfg    Config
	logger *slog.Logger

	mu       sync.Mutex
	windows  map[string][]domain.OrderbookSnapshot
	prints   map[string][]domain.TradePrint
	profiles map[string]*profile
}

func NewAnalyzer(cfg Config, logger *slog.Logger) *Analyzer {
	cfg.setDefaults()
	return &Analyzer{
		cfg:      cfg,
		logger:   logger.With(slog.String("component", "micro_analyzer")),
		windows:  make(map[string][]domain.OrderbookSnapshot),
		prints:   make(map[string][]domain.TradePrint),
		profiles: make(map[string]*profile),
	}
}

func marketKey(platform, marketID string) string {
	return platform + "/" + marketID
}

// Observe ingests one snapshot, evicting anything aged out of the window,
// and folds a fresh signature into the market's running profile.
func (a *Analyzer) Observe(snap domain.OrderbookSnapshot) domain.MakerSignature {
	a.mu.Lock()
	defer a.mu.Unlock()

	key := marketKey(snap.Platform, snap.MarketID)
	window := append(a.windows[key], snap)
	window = evictSnapshots(window, snap.Timestamp.Add(-a.cfg.Window), a.cfg.MaxSnapshots)
	a.windows[key] = window

	sig := a.signatureLocked(snap, window)

	p := a.profiles[key]
	if p == nil {
		a.evictProfilesLocked(snap.Timestamp)
		p = &profile{firstSeen: snap.Timestamp, pattern: sig.Pattern}
		a.profiles[key] = p
	}
	p.samples++
	p.confidenceSum += sig.Confidence
	p.spreadSum += snap.Spread()
	p.depthSum += snap.BidDepth() + snap.AskDepth()
	p.exploitSum += exploitScore(sig)
	p.pattern = sig.Pattern
	p.lastSeen = snap.Timestamp

	if sig.IsMaker && p.samples == a.cfg.MinSamples {
		a.logger.Info("market maker signature confirmed",
			slog.String("platform", snap.Platform),
			slog.String("market_id", snap.MarketID),
			slog.Float64("confidence", sig.Confidence))
	}
	return sig
}

// Analyze computes a signature for a snapshot against an explicit history,
// without mutating analyzer state. The snapshot itself counts as the most
// recent observation.
func (a *Analyzer) Analyze(snap domain.OrderbookSnapshot, history []domain.OrderbookSnapshot) domain.MakerSignature {
	window := make([]domain.OrderbookSnapshot, 0, len(history)+1)
	window = append(window, history...)
	window = append(window, snap)
	return a.signatureLocked(snap, window)
}

func (a *Analyzer) signatureLocked(snap domain.OrderbookSnapshot, window []domain.OrderbookSnapshot) domain.MakerSignature {
	sym := symmetry(snap)
	consistency := spreadConsistency(window)
	pattern, sizes := sizePattern(snap)
	freq := math.Min(1, float64(len(window))/float64(a.cfg.FreqNorm))
	depth := math.Min(1, (snap.BidDepth()+snap.AskDepth())/a.cfg.DepthNorm)

	confidence := blend(sym, consistency, sizes, freq, depth)
	return domain.MakerSignature{
		MarketID:          snap.MarketID,
		Platform:          snap.Platform,
		Symmetry:          sym,
		SpreadConsistency: consistency,
		SizePatternScore:  sizes,
		UpdateFrequency:   freq,
		DepthScore:        depth,
		Pattern:           pattern,
		Confidence:        confidence,
		IsMaker:           confidence >= makerCutoff,
		ObservedAt:        snap.Timestamp,
	}
}

// MakerConfidence reports the running average confidence for a market once
// enough samples have accumulated. Satisfies the detector's confidence
// source.
func (a *Analyzer) MakerConfidence(platform, marketID string) (float64, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	p := a.profiles[marketKey(platform, marketID)]
	if p == nil || p.samples < a.cfg.MinSamples {
		return 0, false
	}
	return p.confidenceSum / float64(p.samples), true
}

// Profiles lists every market whose sample count clears the reporting
// minimum.
func (a *Analyzer) Profiles() []domain.MakerProfile {
	a.mu.Lock()
	defer a.mu.Unlock()

	var out []domain.MakerProfile
	for key, p := range a.profiles {
		if p.samples < a.cfg.MinSamples {
			continue
		}
		platform, marketID := splitKey(key)
		n := float64(p.samples)
		out = append(out, domain.MakerProfile{
			MarketID:          marketID,
			Platform:          platform,
			Samples:           p.samples,
			AvgConfidence:     p.confidenceSum / n,
			AvgSpread:         p.spreadSum / n,
			AvgDepth:          p.depthSum / n,
			AvgExploitability: p.exploitSum / n,
			Pattern:           p.pattern,
			FirstSeen:         p.firstSeen,
			LastSeen:          p.lastSeen,
		})
	}
	return out
}

func splitKey(key string) (platform, marketID string) {
	for i := 0; i < len(key); i++ {
		if key[i] == '/' {
			return key[:i], key[i+1:]
		}
	}
	return "", key
}

// evictProfilesLocked drops markets not seen within the TTL and, when the
// count still sits at the cap, the stalest one. Windows and prints go with
// their profile so a dead market leaves no residue in any map.
func (a *Analyzer) evictProfilesLocked(now time.Time) {
	cutoff := now.Add(-a.cfg.ProfileTTL)
	for key, p := range a.profiles {
		if p.lastSeen.Before(cutoff) {
			a.dropMarketLocked(key)
		}
	}
	for len(a.profiles) >= a.cfg.MaxProfiles {
		stalest := ""
		for key, p := range a.profiles {
			if stalest == "" || p.lastSeen.Before(a.profiles[stalest].lastSeen) {
				stalest = key
			}
		}
		a.dropMarketLocked(stalest)
	}
}

func (a *Analyzer) dropMarketLocked(key string) {
	delete(a.profiles, key)
	delete(a.windows, key)
	delete(a.prints, key)
}

func evictSnapshots(window []domain.OrderbookSnapshot, cutoff time.Time, maxLen int) []domain.OrderbookSnapshot {
	start := 0
	for start < len(window) && window[start].Timestamp.Before(cutoff) {
		start++
	}
	if over := len(window) - start - maxLen; over > 0 {
		start += over
	}
	if start > 0 {
		window = append(window[:0], window[start:]...)
	}
	return window
}

// exploitScore grades a signature: high symmetry plus spread consistency,
// uniform sizing, and rapid updates make a maker mechanically predictable.
func exploitScore(sig domain.MakerSignature) float64 {
	structural := (sig.Symmetry + sig.SpreadConsistency) / 2
	uniformity := sig.SizePatternScore
	if sig.Pattern != domain.PatternUniform {
		uniformity *= 0.5
	}
	return structural*0.4 + uniformity*0.3 + sig.UpdateFrequency*0.2 + sig.DepthScore*0.1
}

// Exploitability reports whether a signature clears the exploit cutoff and,
// when it does, the concrete strategies with their execution windows.
func (a *Analyzer) Exploitability(sig domain.MakerSignature) domain.ExploitabilityReport {
	score := exploitScore(sig)
	report := domain.ExploitabilityReport{
		MarketID:    sig.MarketID,
		Score:       score,
		Exploitable: score >= exploitCutoff,
	}
	if !report.Exploitable {
		return report
	}

	avgSpread := a.avgSpread(sig.Platform, sig.MarketID)
	refresh := a.refreshInterval(sig)
	if sig.SpreadConsistency >= 0.8 && avgSpread > 0 {
		report.Strategies = append(report.Strategies, domain.ExploitStrategy{
			Name:         "spread_compression",
			Detail:       fmt.Sprintf("quote inside the maker's static %.4f spread and capture the crossing flow", avgSpread),
			ExpectedEdge: avgSpread / 2,
			Window:       a.cfg.Window,
		})
	}
	if sig.Pattern == domain.PatternUniform {
		report.Strategies = append(report.Strategies, domain.ExploitStrategy{
			Name:         "mirror_and_undercut",
			Detail:       "mirror the maker's uniform ladder one tick inside to gain queue priority",
			ExpectedEdge: avgSpread / 4,
			Window:       a.cfg.Window,
		})
	}
	if sig.UpdateFrequency >= 0.8 {
		report.Strategies = append(report.Strategies, domain.ExploitStrategy{
			Name:         "frequency",
			Detail:       "lean on the maker's refresh cadence: hit stale quotes in the gap between re-quotes",
			ExpectedEdge: avgSpread / 3,
			Window:       refresh,
		})
	}
	return report
}

// refreshInterval estimates the maker's re-quote cadence from the observed
// update frequency over the retention window.
func (a *Analyzer) refreshInterval(sig domain.MakerSignature) time.Duration {
	updates := sig.UpdateFrequency * float64(a.cfg.FreqNorm)
	if updates < 1 {
		return a.cfg.Window
	}
	return time.Duration(float64(a.cfg.Window) / updates)
}

func (a *Analyzer) avgSpread(platform, marketID string) float64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	p := a.profiles[marketKey(platform, marketID)]
	if p == nil || p.samples == 0 {
		return 0
	}
	return p.spreadSum / float64(p.samples)
}
