// Package detect finds arbitrage opportunities in binary prediction-market
// quotes: single-market Dutch books, cross-platform synthetic pairs, and
// near-resolution endgame carries. Detection is pure: the same quotes always
// produce the same opportunities.
package detect

import (
	"log/slog"
	"sort"
	"time"

	"github.com/alanyoungcy/arbengine/internal/domain"
)

// SortKey selects how detected opportunities are ranked.
type SortKey string

const (
	SortByProfit     SortKey = "profit"
	SortByAnnualized SortKey = "annualized"
)

// Config tunes detection thresholds.
type Config struct {
	// MinProfit is the absolute per-contract profit floor; anything below
	// is treated as quote noise.
	MinProfit float64
	// VolumeNorm is the 24h volume at which a market counts as fully
	// liquid for confidence scoring.
	VolumeNorm float64
	// EndgameMinBid is the bid a side must clear before the residual
	// carry is considered.
	EndgameMinBid float64
	// EndgameMinAnnualized filters endgame candidates whose annualized
	// return does not justify the resolution risk.
	EndgameMinAnnualized float64
	SortKey              SortKey
	// Matcher pairs event names across platforms for synthetic detection.
	// Nil selects TokenOverlapMatcher.
	Matcher domain.EventMatcher
}

func (c *Config) setDefaults() {
	if c.MinProfit == 0 {
		c.MinProfit = 0.001
	}
	if c.VolumeNorm == 0 {
		c.VolumeNorm = 10000
	}
	if c.EndgameMinBid == 0 {
		c.EndgameMinBid = 0.90
	}
	if c.EndgameMinAnnualized == 0 {
		c.EndgameMinAnnualized = 0.20
	}
	if c.SortKey == "" {
		c.SortKey = SortByProfit
	}
	if c.Matcher == nil {
		c.Matcher = TokenOverlapMatcher{}
	}
}

// ConfidenceSource supplies microstructure maker confidence per market,
// used to discount opportunities quoted by detected automated makers.
type ConfidenceSource interface {
	MakerConfidence(platform, marketID string) (float64, bool)
}

// Detector runs all detection strategies over a quote snapshot.
type Detector struct {
	cfg    Config
	makers ConfidenceSource
	logger *slog.Logger
}

// New builds a Detector. makers may be nil when no microstructure feed is
// wired.
func New(cfg Config, makers ConfidenceSource, logger *slog.Logger) *Detector {
	cfg.setDefaults()
	return &Detector{
		cfg:    cfg,
		makers: makers,
		logger: logger.With(slog.String("component", "detector")),
	}
}

// Detect evaluates every quote and cross-platform pair, returning ranked
// opportunities. Invalid quotes are skipped with a warning rather than
// failing the scan.
func (d *Detector) Detect(quotes []domain.MarketQuote) []domain.Opportunity {
	valid := make([]domain.MarketQuote, 0, len(quotes))
	for _, q := range quotes {
		if err := q.Validate(); err != nil {
			d.logger.Warn("skipping invalid quote",
				slog.String("platform", q.Platform),
				slog.String("market_id", q.MarketID),
				slog.String("error", err.Error()))
			continue
		}
		valid = append(valid, q)
	}

	var opps []domain.Opportunity
	for _, q := range valid {
		if opp := d.dutchBook(q); opp != nil {
			opps = append(opps, *opp)
		}
		if opp := d.endgame(q); opp != nil {
			opps = append(opps, *opp)
		}
	}
	for i := 0; i < len(valid); i++ {
		for j := i + 1; j < len(valid); j++ {
			a, b := valid[i], valid[j]
			if a.Platform == b.Platform && a.MarketID == b.MarketID {
				continue
			}
			if !d.cfg.Matcher.SameEvent(a.Event, b.Event) {
				continue
			}
			if opp := d.synthetic(a, b); opp != nil {
				opps = append(opps, *opp)
			}
		}
	}

	if d.makers != nil {
		for i := range opps {
			opps[i].Confidence *= 1 - 0.3*d.makerPresence(opps[i].Legs)
		}
	}

	d.rank(opps)
	return opps
}

// makerPresence averages maker confidence over the legs' markets.
func (d *Detector) makerPresence(legs []domain.OpportunityLeg) float64 {
	var sum float64
	var n int
	for _, leg := range legs {
		if c, ok := d.makers.MakerConfidence(leg.Platform, leg.MarketID); ok {
			sum += c
			n++
		}
	}
	if n == 0 {
		return 0
	}
	return sum / float64(n)
}

func (d *Detector) rank(opps []domain.Opportunity) {
	key := func(o domain.Opportunity) float64 {
		if d.cfg.SortKey == SortByAnnualized {
			return o.AnnualizedROI
		}
		return o.Profit
	}
	sort.SliceStable(opps, func(i, j int) bool {
		return key(opps[i]) > key(opps[j])
	})
}

func laterOf(a, b time.Time) time.Time {
	if a.After(b) {
		return a
	}
	return b
}
