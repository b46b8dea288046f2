package domain

import "time"

// SizePattern classifies how order sizes are laid out across book levels.
type SizePattern string

const (
	PatternUniform    SizePattern = "uniform"
	PatternIncreasing SizePattern = "increasing"
	PatternDecreasing SizePattern = "decreasing"
	PatternRandom     SizePattern = "random"
)

// MakerSignature scores the structural evidence that a single automated
// market maker is quoting a book. Component scores are in [0, 1].
type MakerSignature struct {
	MarketID          string
	Platform          string
	Symmetry          float64
	SpreadConsistency float64
	SizePatternScore  float64
	UpdateFrequency   float64
	DepthScore        float64
	Pattern           SizePattern
	Confidence        float64 // weighted blend of the component scores
	IsMaker           bool    // Confidence above detection cutoff
	ObservedAt        time.Time
}

// ExploitStrategy is one suggested way to trade against a detected maker.
type ExploitStrategy struct {
	Name         string
	Detail       string
	ExpectedEdge float64
	// Window is the horizon within which the edge is expected to hold
	// before the maker re-quotes or the structure decays.
	Window time.Duration
}

// ExploitabilityReport grades how mechanically a detected maker can be
// traded against, with concrete strategies when the score clears the cutoff.
type ExploitabilityReport struct {
	MarketID    string
	Score       float64
	Exploitable bool
	Strategies  []ExploitStrategy
}

// MakerProfile is the running per-market aggregate of maker observations.
type MakerProfile struct {
	MarketID          string
	Platform          string
	Samples           int
	AvgConfidence     float64
	AvgSpread         float64
	AvgDepth          float64
	AvgExploitability float64
	Pattern           SizePattern
	FirstSeen         time.Time
	LastSeen          time.Time
}

// LiquidityProfile measures how much size a book offers around its mid and
// how lopsided the two sides are.
type LiquidityProfile struct {
	MarketID  string
	Platform  string
	MidPrice  float64
	SpreadBps float64
	Depth10   float64 // size within 10 bps of mid, both sides
	Depth50   float64 // size within 50 bps of mid, both sides
	Depth100  float64 // size within 100 bps of mid, both sides
	Imbalance float64 // (bid-ask depth)/(bid+ask), in [-1, 1]
	Timestamp time.Time
}

// OrderFlowStats summarizes recent prints for one market.
type OrderFlowStats struct {
	MarketID     string
	Prints       int
	BuyVolume    float64
	SellVolume   float64
	Imbalance    float64 // (buy-sell)/(buy+sell), in [-1, 1]
	AvgPrintSize float64
	Window       time.Duration
}
