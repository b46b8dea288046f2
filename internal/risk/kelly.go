// Package risk sizes positions with the Kelly family of rules and gates
// trading through an adaptive controller fed by realized results.
package risk

import (
	"fmt"
	"log/slog"
	"math"

	"github.com/alanyoungcy/arbengine/internal/domain"
)

// Config tunes the sizer.
type Config struct {
	// SafetyMultiplier scales full Kelly down to the recommended fraction.
	// Conservative range is 0.25 to 0.5.
	SafetyMultiplier float64
	// MaxFraction hard-caps any single trade's share of bankroll.
	MaxFraction float64
	// MinSamples is the trade count required before history-based sizing
	// produces a nonzero recommendation.
	MinSamples int
	// OpportunityLoss is the assumed fractional loss when a multi-leg
	// opportunity partially fills and must be unwound at market.
	OpportunityLoss float64
	// Priors seed cold-start sizing when a caller explicitly asks for it.
	PriorWinProb float64
	PriorAvgWin  float64
	PriorAvgLoss float64
}

func (c *Config) setDefaults() {
	if c.SafetyMultiplier == 0 {
		c.SafetyMultiplier = 0.25
	}
	if c.MaxFraction == 0 {
		c.MaxFraction = 0.25
	}
	if c.MinSamples == 0 {
		c.MinSamples = 10
	}
	if c.OpportunityLoss == 0 {
		c.OpportunityLoss = 0.02
	}
	if c.PriorWinProb == 0 {
		c.PriorWinProb = 0.55
	}
	if c.PriorAvgWin == 0 {
		c.PriorAvgWin = 0.12
	}
	if c.PriorAvgLoss == 0 {
		c.PriorAvgLoss = 0.08
	}
}

// Sizer converts edge estimates into bankroll fractions.
type Sizer struct {
	cfg    Config
	logger *slog.Logger
}

func NewSizer(cfg Config, logger *slog.Logger) *Sizer {
	cfg.setDefaults()
	return &Sizer{cfg: cfg, logger: logger.With(slog.String("component", "sizer"))}
}

// Kelly computes the full-Kelly fraction f = (b·p − q)/b with b = w/l.
// Invalid inputs return a sentinel error; a non-positive edge returns
// ErrNoEdge. Callers wanting half or quarter Kelly scale the result.
func Kelly(in domain.KellyInputs) (fraction, edge float64, err error) {
	if in.WinProb <= 0 || in.WinProb >= 1 {
		return 0, 0, fmt.Errorf("risk: win prob %.4f: %w", in.WinProb, domain.ErrInvalidProbability)
	}
	if in.AvgWin <= 0 || in.AvgLoss <= 0 {
		return 0, 0, fmt.Errorf("risk: win %.4f loss %.4f: %w", in.AvgWin, in.AvgLoss, domain.ErrInvalidPayoff)
	}
	b := in.AvgWin / in.AvgLoss
	q := 1 - in.WinProb
	edge = b*in.WinProb - q
	fraction = edge / b
	if edge <= 0 || fraction <= 0 {
		return 0, edge, fmt.Errorf("risk: edge %.4f: %w", edge, domain.ErrNoEdge)
	}
	return fraction, edge, nil
}

// ExpectedGrowth is the long-run log-growth rate of staking fraction f with
// the given edge statistics: p·ln(1+f·b) + q·ln(1−f), with b = AvgWin/AvgLoss
// the payoff odds per unit staked. Maximized at the full-Kelly fraction;
// useful for comparing fractional-Kelly choices.
func ExpectedGrowth(in domain.KellyInputs, f float64) float64 {
	if f <= 0 || f >= 1 || in.AvgLoss <= 0 {
		return 0
	}
	b := in.AvgWin / in.AvgLoss
	return in.WinProb*math.Log(1+f*b) + (1-in.WinProb)*math.Log(1-f)
}

// size runs the shared Kelly pipeline: full Kelly, safety multiplier, cap.
func (s *Sizer) size(in domain.KellyInputs, bankroll float64, method domain.SizingMethod) (domain.SizingDecision, error) {
	full, edge, err := Kelly(in)
	if err != nil {
		s.logger.Warn("sizing rejected", slog.String("reason", err.Error()))
		return domain.SizingDecision{Method: method, Edge: edge, Reason: err.Error()}, err
	}

	fraction := full * s.cfg.SafetyMultiplier
	switch method {
	case domain.SizingHalf:
		fraction = full * 0.5
	case domain.SizingQuarter:
		fraction = full * 0.25
	}
	if fraction > s.cfg.MaxFraction {
		fraction = s.cfg.MaxFraction
	}

	confidence := math.Min(1, in.WinProb*10)*0.4 + math.Min(1, edge*5)*0.6

	return domain.SizingDecision{
		Method:     method,
		Kelly:      full,
		Fraction:   fraction,
		Amount:     fraction * bankroll,
		Edge:       edge,
		Confidence: confidence,
	}, nil
}

// SizeOpportunity sizes a detected opportunity. The opportunity's confidence
// stands in for win probability, its ROI for the win payoff, and the
// configured unwind loss for the downside of a partial fill. Execution risk
// additionally discounts the final fraction.
func (s *Sizer) SizeOpportunity(opp domain.Opportunity, bankroll float64) (domain.SizingDecision, error) {
	in := domain.KellyInputs{
		WinProb: opp.Confidence,
		AvgWin:  opp.ROI,
		AvgLoss: s.cfg.OpportunityLoss,
	}
	dec, err := s.size(in, bankroll, domain.SizingAdaptive)
	if err != nil {
		return dec, err
	}
	if opp.ExecutionRisk > 0 {
		dec.Fraction *= 1 - opp.ExecutionRisk
		dec.Amount = dec.Fraction * bankroll
	}
	return dec, nil
}

// SizeFromHistory sizes from aggregate trade statistics. Below the minimum
// sample size it declines with ErrInsufficientHistory unless the caller
// explicitly opts into the seeded cold-start priors.
func (s *Sizer) SizeFromHistory(stats domain.TradeStats, bankroll float64, allowColdStart bool) (domain.SizingDecision, error) {
	in := domain.KellyInputs{WinProb: stats.WinRate, AvgWin: stats.AvgWin, AvgLoss: stats.AvgLoss}
	if stats.Trades < s.cfg.MinSamples {
		if !allowColdStart {
			err := fmt.Errorf("risk: %d of %d trades: %w", stats.Trades, s.cfg.MinSamples, domain.ErrInsufficientHistory)
			return domain.SizingDecision{Method: domain.SizingAdaptive, Reason: err.Error()}, err
		}
		in = domain.KellyInputs{WinProb: s.cfg.PriorWinProb, AvgWin: s.cfg.PriorAvgWin, AvgLoss: s.cfg.PriorAvgLoss}
	}

	dec, err := s.size(in, bankroll, domain.SizingAdaptive)
	if err != nil {
		return dec, err
	}
	if stats.Trades >= s.cfg.MinSamples {
		mult := adaptiveMultiplier(stats)
		dec.Fraction = math.Min(dec.Fraction*mult, s.cfg.MaxFraction)
		dec.Amount = dec.Fraction * bankroll
	}
	return dec, nil
}
