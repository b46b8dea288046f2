package exec

import (
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/alanyoungcy/arbengine/internal/domain"
)

// PlannerConfig tunes plan construction.
type PlannerConfig struct {
	// MaxSlippage sets the primary price ceiling: quoted price scaled by
	// (1 + MaxSlippage).
	MaxSlippage float64
	// FallbackExtraSlippage loosens the fallback ceiling beyond the
	// primary one.
	FallbackExtraSlippage float64
	// TimeLimit is the whole-plan wall-clock budget, split evenly across
	// steps.
	TimeLimit time.Duration
	// Retries is the per-step primary retry budget; fallbacks get two
	// more.
	Retries int
	// Buffer pads the expected duration beyond the summed leg latencies.
	Buffer time.Duration
}

func (c *PlannerConfig) setDefaults() {
	if c.MaxSlippage == 0 {
		c.MaxSlippage = 0.01
	}
	if c.FallbackExtraSlippage == 0 {
		c.FallbackExtraSlippage = 0.02
	}
	if c.TimeLimit == 0 {
		c.TimeLimit = 30 * time.Second
	}
	if c.Retries == 0 {
		c.Retries = 3
	}
	if c.Buffer == 0 {
		c.Buffer = 50 * time.Millisecond
	}
}

// Planner builds execution plans ordered by platform latency.
type Planner struct {
	cfg     PlannerConfig
	latency *LatencyMonitor
	logger  *slog.Logger
}

func NewPlanner(cfg PlannerConfig, latency *LatencyMonitor, logger *slog.Logger) *Planner {
	cfg.setDefaults()
	return &Planner{
		cfg:     cfg,
		latency: latency,
		logger:  logger.With(slog.String("component", "planner")),
	}
}

// Plan sequences an opportunity's legs for the given contract count. The
// slowest platform executes first: its fill is the long pole, and
// committing it early narrows the window in which the faster leg's price
// can move. Each step gets an even share of the plan's time budget; the
// fallback twin loosens the price ceiling and adds retries.
func (p *Planner) Plan(opp domain.Opportunity, contracts float64) (domain.ExecutionPlan, error) {
	if len(opp.Legs) == 0 {
		return domain.ExecutionPlan{}, fmt.Errorf("exec: opportunity %s has no legs: %w", opp.ID, domain.ErrInvalidQuote)
	}
	if contracts <= 0 {
		return domain.ExecutionPlan{}, fmt.Errorf("exec: non-positive size %.2f: %w", contracts, domain.ErrInvalidQuote)
	}

	legs := make([]domain.OpportunityLeg, len(opp.Legs))
	copy(legs, opp.Legs)
	sort.SliceStable(legs, func(i, j int) bool {
		return p.latency.Avg(legs[i].Platform) > p.latency.Avg(legs[j].Platform)
	})

	stepBudget := p.cfg.TimeLimit / time.Duration(len(legs))
	var expected time.Duration
	steps := make([]domain.ExecutionStep, len(legs))
	fallbacks := make([]domain.ExecutionStep, len(legs))
	for i, leg := range legs {
		expected += p.latency.Avg(leg.Platform)
		steps[i] = domain.ExecutionStep{
			Platform:  leg.Platform,
			MarketID:  leg.MarketID,
			Side:      leg.Side,
			Price:     leg.Price,
			MaxPrice:  leg.Price * (1 + p.cfg.MaxSlippage),
			Size:      contracts,
			TimeLimit: stepBudget,
			Retries:   p.cfg.Retries,
		}
		fallbacks[i] = steps[i]
		fallbacks[i].MaxPrice = leg.Price * (1 + p.cfg.MaxSlippage + p.cfg.FallbackExtraSlippage)
		fallbacks[i].Retries = p.cfg.Retries + 2
	}

	plan := domain.ExecutionPlan{
		ID:               uuid.New(),
		OpportunityID:    opp.ID,
		Steps:            steps,
		Fallbacks:        fallbacks,
		ExpectedDuration: expected + p.cfg.Buffer,
		CreatedAt:        time.Now(),
	}
	p.logger.Info("plan built",
		slog.String("plan_id", plan.ID.String()),
		slog.Int("steps", len(steps)),
		slog.String("first_platform", steps[0].Platform),
		slog.Duration("expected", plan.ExpectedDuration))
	return plan, nil
}
