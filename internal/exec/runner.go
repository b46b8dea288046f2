package exec

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/alanyoungcy/arbengine/internal/domain"
)

// FreshnessCheck re-validates an opportunity between steps. Returning false
// abandons the remaining steps; already-filled legs stay in place.
type FreshnessCheck func(plan domain.ExecutionPlan, completed int) bool

// Runner drives execution plans step by step against platform adapters.
// Steps never run in parallel: the planned order is the hedge against
// price movement, and running legs concurrently would void it.
type Runner struct {
	adapters map[string]domain.PlatformAdapter
	latency  *LatencyMonitor
	logger   *slog.Logger
}

func NewRunner(adapters map[string]domain.PlatformAdapter, latency *LatencyMonitor, logger *slog.Logger) *Runner {
	return &Runner{
		adapters: adapters,
		latency:  latency,
		logger:   logger.With(slog.String("component", "runner")),
	}
}

// Execute runs the plan. A primary step failure triggers its fallback twin;
// if both fail the plan stops there and the result reports exactly how far
// it got. No unwind of completed legs is attempted. fresh may be nil.
func (r *Runner) Execute(ctx context.Context, plan domain.ExecutionPlan, fresh FreshnessCheck) domain.ExecutionResult {
	start := time.Now()
	result := domain.ExecutionResult{
		PlanID:     plan.ID,
		TotalSteps: len(plan.Steps),
		FailedStep: -1,
	}

	var slippageSum float64
	for i, step := range plan.Steps {
		if i > 0 && fresh != nil && !fresh(plan, i) {
			result.FailedStep = i
			result.Err = fmt.Sprintf("step %d: freshness re-check failed: %s", i, domain.ErrPlanAbandoned)
			break
		}
		if ctx.Err() != nil {
			result.FailedStep = i
			result.Err = fmt.Sprintf("step %d: %s", i, ctx.Err())
			break
		}

		fill, err := r.runStep(ctx, step, false)
		if err != nil {
			result.StepErrors = append(result.StepErrors,
				fmt.Sprintf("step %d on %s: primary: %s", i, step.Platform, err))
			r.logger.Warn("primary step failed, trying fallback",
				slog.String("plan_id", plan.ID.String()),
				slog.Int("step", i),
				slog.String("error", err.Error()))
			fill, err = r.runStep(ctx, plan.Fallbacks[i], true)
		}
		if err != nil {
			result.StepErrors = append(result.StepErrors,
				fmt.Sprintf("step %d on %s: fallback: %s", i, step.Platform, err))
			result.FailedStep = i
			result.Err = fmt.Sprintf("step %d on %s: %s: %s", i, step.Platform, err, domain.ErrPlanAbandoned)
			break
		}

		result.Fills = append(result.Fills, fill)
		result.StepsCompleted++
		result.Fees += fill.Fee
		slippageSum += fill.Price - step.Price
	}

	if len(result.Fills) > 0 {
		result.AvgSlippage = slippageSum / float64(len(result.Fills))
	}
	result.Success = result.StepsCompleted == result.TotalSteps
	result.Duration = time.Since(start)

	level := slog.LevelInfo
	if !result.Success {
		level = slog.LevelWarn
	}
	r.logger.Log(ctx, level, "plan finished",
		slog.String("plan_id", plan.ID.String()),
		slog.Bool("success", result.Success),
		slog.Int("steps_completed", result.StepsCompleted),
		slog.Int("total_steps", result.TotalSteps))
	return result
}

// runStep submits one leg with its retry budget inside its time budget.
func (r *Runner) runStep(ctx context.Context, step domain.ExecutionStep, fallback bool) (domain.Fill, error) {
	adapter, ok := r.adapters[step.Platform]
	if !ok {
		return domain.Fill{}, fmt.Errorf("exec: %s: %w", step.Platform, domain.ErrUnknownPlatform)
	}

	stepCtx, cancel := context.WithTimeout(ctx, step.TimeLimit)
	defer cancel()

	req := domain.OrderRequest{
		MarketID: step.MarketID,
		Side:     step.Side,
		Price:    step.MaxPrice,
		Size:     step.Size,
	}

	var lastErr error
	for attempt := 0; attempt < step.Retries; attempt++ {
		if stepCtx.Err() != nil {
			lastErr = stepCtx.Err()
			break
		}
		placed := time.Now()
		res, err := adapter.PlaceOrder(stepCtx, req)
		if res.Latency > 0 {
			r.latency.Record(step.Platform, res.Latency)
		} else {
			r.latency.Record(step.Platform, time.Since(placed))
		}
		if err != nil {
			lastErr = err
			continue
		}
		if !res.Filled {
			lastErr = fmt.Errorf("exec: order not filled at ceiling %.4f", step.MaxPrice)
			continue
		}
		return domain.Fill{
			Platform: step.Platform,
			MarketID: step.MarketID,
			Side:     step.Side,
			Price:    res.FillPrice,
			Size:     res.FillSize,
			Fee:      res.Fee,
			Fallback: fallback,
			FilledAt: time.Now(),
		}, nil
	}
	if lastErr == nil {
		lastErr = fmt.Errorf("exec: retry budget exhausted")
	}
	return domain.Fill{}, lastErr
}
