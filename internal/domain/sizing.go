package domain

import "time"

// KellyInputs are the estimates a Kelly sizing is computed from.
type KellyInputs struct {
	WinProb float64 // probability the trade wins
	AvgWin  float64 // average fractional gain on a win
	AvgLoss float64 // average fractional loss on a loss, positive
}

// SizingMethod names the Kelly variant used for a decision.
type SizingMethod string

const (
	SizingFull     SizingMethod = "full"
	SizingHalf     SizingMethod = "half"
	SizingQuarter  SizingMethod = "quarter"
	SizingAdaptive SizingMethod = "adaptive"
)

// SizingDecision is the output of the risk sizer for one candidate trade.
type SizingDecision struct {
	Method     SizingMethod
	Kelly      float64 // raw full-Kelly fraction before scaling
	Fraction   float64 // final fraction of bankroll to commit
	Amount     float64 // Fraction * bankroll, in dollars
	Edge       float64 // expected value per $1 staked
	Confidence float64
	Reason     string // populated when Fraction is zero
}

// TradeOutcome is one settled trade fed back into performance tracking.
type TradeOutcome struct {
	OpportunityID string
	Platform      string
	Event         string
	Return        float64 // fractional return on stake, negative on loss
	PnL           float64 // dollar profit or loss
	Stake         float64 // dollars actually filled
	Reserved      float64 // exposure reserved at approval; zero when none was held
	Won           bool
	SettledAt     time.Time
}

// TradeStats summarizes recent trade history for adaptive sizing and risk
// gating.
type TradeStats struct {
	Trades            int
	Wins              int
	Losses            int
	WinRate           float64
	AvgWin            float64 // mean fractional gain over winning trades
	AvgLoss           float64 // mean fractional loss over losing trades, positive
	AvgReturn         float64 // mean fractional return over all trades
	Sharpe            float64 // mean return over return stddev; zero below two trades
	ConsecutiveLosses int
}
