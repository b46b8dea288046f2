package domain

import (
	"time"

	"github.com/google/uuid"
)

// OpportunityKind distinguishes the detection strategies.
type OpportunityKind string

const (
	OpportunityDutchBook OpportunityKind = "dutch_book"
	OpportunitySynthetic OpportunityKind = "synthetic"
	OpportunityEndgame   OpportunityKind = "endgame"
)

// SyntheticDirection says which pairing of legs a synthetic opportunity uses.
type SyntheticDirection string

const (
	// DirectionDirect buys YES on market A and NO on market B.
	DirectionDirect SyntheticDirection = "direct"
	// DirectionReverse buys NO on market A and YES on market B.
	DirectionReverse SyntheticDirection = "reverse"
)

// OpportunityLeg is one position to open as part of an opportunity.
type OpportunityLeg struct {
	Platform string
	MarketID string
	Side     Side
	Price    float64
	Fee      float64
	Volume   float64
}

// Opportunity is a detected arbitrage: a set of legs whose combined cost
// guarantees a profit at resolution.
type Opportunity struct {
	ID            uuid.UUID
	Kind          OpportunityKind
	Event         string
	Legs          []OpportunityLeg
	Direction     SyntheticDirection // synthetic only
	TotalCost     float64
	Profit        float64 // guaranteed profit per $1 payout contract
	ROI           float64 // Profit / TotalCost
	AnnualizedROI float64
	Confidence    float64
	ExecutionRisk float64 // synthetic only
	Liquidity     float64 // synthetic only
	DetectedAt    time.Time
}

// Annualize converts a per-trade ROI to an annualized figure given the hours
// remaining until market resolution. Unknown or elapsed horizons yield zero.
func Annualize(roi, hoursToResolution float64) float64 {
	if hoursToResolution <= 0 {
		return 0
	}
	return roi * (365 * 24 / hoursToResolution)
}
