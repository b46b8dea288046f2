package domain

import (
	"time"

	"github.com/google/uuid"
)

// ExecutionStep is one leg order within an execution plan.
type ExecutionStep struct {
	Platform  string
	MarketID  string
	Side      Side
	Price     float64 // quoted price at planning time
	MaxPrice  float64 // slippage ceiling; orders above this are rejected
	Size      float64 // contracts
	TimeLimit time.Duration
	Retries   int
}

// ExecutionPlan sequences the legs of an opportunity, slowest platform first,
// with a fallback variant per step carrying a looser price ceiling.
type ExecutionPlan struct {
	ID               uuid.UUID
	OpportunityID    uuid.UUID
	Steps            []ExecutionStep
	Fallbacks        []ExecutionStep // index-aligned with Steps
	ExpectedDuration time.Duration
	CreatedAt        time.Time
}

// Fill is one completed order from running a plan.
type Fill struct {
	Platform string
	MarketID string
	Side     Side
	Price    float64
	Size     float64
	Fee      float64 // taker fee charged on this fill, dollars
	Fallback bool
	FilledAt time.Time
}

// ExecutionResult reports how far a plan got. Success requires every step to
// have filled; a partial run leaves the completed legs in place.
type ExecutionResult struct {
	PlanID         uuid.UUID
	Success        bool
	StepsCompleted int
	TotalSteps     int
	Fills          []Fill
	AvgSlippage    float64
	Fees           float64 // summed taker fees across fills, dollars
	NetProfit      float64 // realized value net of slippage and fees
	Duration       time.Duration
	FailedStep     int      // -1 when Success
	StepErrors     []string // one entry per step-level failure, fallbacks included
	Err            string   // terminal error that stopped the plan
}

// OrderRequest is what an execution runner submits to a platform adapter.
type OrderRequest struct {
	MarketID string
	Side     Side
	Price    float64 // limit ceiling
	Size     float64
}

// OrderResult is the adapter's report for one submitted order.
type OrderResult struct {
	Filled    bool
	FillPrice float64
	FillSize  float64
	Fee       float64 // taker fee charged, dollars; zero when unreported
	Latency   time.Duration
}

// LatencyMetrics is the rolling latency summary for one platform.
type LatencyMetrics struct {
	Platform string
	Avg      time.Duration
	P95      time.Duration
	P99      time.Duration
	Samples  int
}

// SlippageEstimate is the projected cost of taking a given size from a book.
type SlippageEstimate struct {
	FillPrice  float64 // size-weighted average fill price
	Slippage   float64 // FillPrice - best price, signed against the taker
	Confidence float64 // 0 when the book cannot absorb the size
	Fillable   bool
}
