package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/alanyoungcy/arbengine/internal/detect"
	"github.com/alanyoungcy/arbengine/internal/domain"
	"github.com/alanyoungcy/arbengine/internal/exec"
	"github.com/alanyoungcy/arbengine/internal/micro"
	"github.com/alanyoungcy/arbengine/internal/risk"
)

// Bus channels published by the engine.
const (
	ChannelOpportunities = domain.ChannelOpportunities
	ChannelExecutions    = domain.ChannelExecutions
	ChannelRisk          = domain.ChannelRisk
)

// EngineConfig holds the cross-component parameters the engine itself owns.
type EngineConfig struct {
	// ExposureCap bounds the summed bankroll fraction across a batch of
	// concurrent opportunities.
	ExposureCap float64
	// ColdStart lets history-based sizing fall back to seeded priors
	// before enough trades have settled.
	ColdStart bool
}

// Engine is the decision core's facade: it wires detection, sizing, risk
// gating, planning, and execution together and owns all persistence and
// signal publication around them.
type Engine struct {
	cfg        EngineConfig
	detector   *detect.Detector
	sizer      *risk.Sizer
	controller *risk.Controller
	history    *risk.History
	analyzer   *micro.Analyzer
	planner    *exec.Planner
	runner     *exec.Runner
	latency    *exec.LatencyMonitor

	opps   domain.OpportunityStore
	trades domain.TradeStore
	perf   domain.PerformanceStore
	bus    domain.SignalBus
	audit  domain.AuditStore

	logger *slog.Logger
}

// Deps carries the engine's collaborators. Stores, bus, and audit may be
// nil in scan-only setups; the engine degrades to in-memory operation.
type Deps struct {
	Detector   *detect.Detector
	Sizer      *risk.Sizer
	Controller *risk.Controller
	History    *risk.History
	Analyzer   *micro.Analyzer
	Planner    *exec.Planner
	Runner     *exec.Runner
	Latency    *exec.LatencyMonitor

	Opportunities domain.OpportunityStore
	Trades        domain.TradeStore
	Performance   domain.PerformanceStore
	Bus           domain.SignalBus
	Audit         domain.AuditStore
}

func NewEngine(cfg EngineConfig, deps Deps, logger *slog.Logger) *Engine {
	if cfg.ExposureCap == 0 {
		cfg.ExposureCap = 0.5
	}
	return &Engine{
		cfg:        cfg,
		detector:   deps.Detector,
		sizer:      deps.Sizer,
		controller: deps.Controller,
		history:    deps.History,
		analyzer:   deps.Analyzer,
		planner:    deps.Planner,
		runner:     deps.Runner,
		latency:    deps.Latency,
		opps:       deps.Opportunities,
		trades:     deps.Trades,
		perf:       deps.Performance,
		bus:        deps.Bus,
		audit:      deps.Audit,
		logger:     logger.With(slog.String("component", "engine")),
	}
}

// Restore loads the last persisted performance snapshot into the risk
// controller. Missing state is not an error on first boot.
func (e *Engine) Restore(ctx context.Context) error {
	if e.perf == nil {
		return nil
	}
	snap, err := e.perf.Latest(ctx)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			e.logger.InfoContext(ctx, "engine: no persisted state, starting fresh")
			return nil
		}
		return fmt.Errorf("engine: load performance state: %w", err)
	}
	e.controller.Restore(snap)
	e.logger.InfoContext(ctx, "engine: state restored",
		slog.Float64("bankroll", snap.Bankroll),
		slog.Int("trades", snap.TotalTrades),
		slog.String("state", string(snap.State)))
	return nil
}

// DetectOpportunities runs detection over a quote snapshot, assigns IDs,
// persists the results, and publishes each to the signal bus. Persistence
// and publication are best-effort; detection output is returned regardless.
func (e *Engine) DetectOpportunities(ctx context.Context, quotes []domain.MarketQuote) []domain.Opportunity {
	opps := e.detector.Detect(quotes)
	for i := range opps {
		opps[i].ID = uuid.New()
	}

	for _, opp := range opps {
		if e.opps != nil {
			if err := e.opps.Insert(ctx, opp); err != nil {
				e.logger.WarnContext(ctx, "engine: persist opportunity failed",
					slog.String("opp_id", opp.ID.String()),
					slog.String("error", err.Error()))
			}
		}
		e.publish(ctx, ChannelOpportunities, map[string]any{
			"event":      "opportunity_detected",
			"opp_id":     opp.ID.String(),
			"kind":       opp.Kind,
			"market":     opp.Event,
			"profit":     opp.Profit,
			"roi":        opp.ROI,
			"annualized": opp.AnnualizedROI,
			"confidence": opp.Confidence,
		})
	}

	if len(opps) > 0 {
		e.logger.InfoContext(ctx, "engine: opportunities detected",
			slog.Int("count", len(opps)),
			slog.Float64("best_profit", opps[0].Profit))
	}
	return opps
}

// SizePosition sizes one opportunity against the current bankroll and
// reserves the amount with the risk controller. A gate rejection returns a
// zero decision with the gate's reason and ErrTradingHalted-family error.
func (e *Engine) SizePosition(ctx context.Context, opp domain.Opportunity) (domain.SizingDecision, error) {
	bankroll := e.controller.Snapshot().Bankroll
	dec, err := e.sizer.SizeOpportunity(opp, bankroll)
	if err != nil {
		return dec, err
	}

	approval := e.controller.Approve(dec.Amount)
	if !approval.Approved {
		e.auditEvent(ctx, domain.AuditSizingGated, map[string]any{
			"opp_id": opp.ID.String(),
			"reason": approval.Reason,
			"amount": dec.Amount,
		})
		dec.Fraction, dec.Amount = 0, 0
		dec.Reason = approval.Reason
		return dec, fmt.Errorf("engine: %s: %w", approval.Reason, gateError(approval.Reason))
	}
	return dec, nil
}

// ReleaseReservation frees exposure reserved by SizePosition for a decision
// that never reached execution.
func (e *Engine) ReleaseReservation(amount float64) {
	e.controller.Release(amount)
}

// SizeFromHistory sizes from the rolling settled-trade window rather than a
// single opportunity. No exposure is reserved; callers size a concrete
// trade afterwards.
func (e *Engine) SizeFromHistory(ctx context.Context) (domain.SizingDecision, error) {
	bankroll := e.controller.Snapshot().Bankroll
	return e.sizer.SizeFromHistory(e.history.Stats(), bankroll, e.cfg.ColdStart)
}

// AllocatePortfolio sizes a batch of concurrent opportunities under the
// global exposure cap.
func (e *Engine) AllocatePortfolio(ctx context.Context, opps []domain.Opportunity, corr risk.CorrelationFn) []risk.Allocation {
	bankroll := e.controller.Snapshot().Bankroll
	return e.sizer.Allocate(opps, bankroll, e.cfg.ExposureCap, corr)
}

// PlanExecution builds the latency-ordered plan for a sized opportunity.
func (e *Engine) PlanExecution(ctx context.Context, opp domain.Opportunity, dec domain.SizingDecision) (domain.ExecutionPlan, error) {
	if dec.Amount <= 0 {
		return domain.ExecutionPlan{}, fmt.Errorf("engine: zero-sized decision: %w", domain.ErrNoEdge)
	}
	contracts := dec.Amount / opp.TotalCost
	plan, err := e.planner.Plan(opp, contracts)
	if err != nil {
		return domain.ExecutionPlan{}, fmt.Errorf("engine: build plan: %w", err)
	}
	return plan, nil
}

// ExecutePlan drives the plan, re-checking freshness between legs via the
// supplied check (nil skips the re-check), then publishes and records the
// outcome.
func (e *Engine) ExecutePlan(ctx context.Context, opp domain.Opportunity, plan domain.ExecutionPlan, fresh exec.FreshnessCheck) domain.ExecutionResult {
	result := e.runner.Execute(ctx, plan, fresh)
	_, result.NetProfit = settleValue(opp, result)

	e.publish(ctx, ChannelExecutions, map[string]any{
		"event":           "plan_executed",
		"plan_id":         plan.ID.String(),
		"opp_id":          opp.ID.String(),
		"success":         result.Success,
		"steps_completed": result.StepsCompleted,
		"total_steps":     result.TotalSteps,
		"avg_slippage":    result.AvgSlippage,
		"fees":            result.Fees,
		"net_profit":      result.NetProfit,
	})
	if result.Success && e.opps != nil {
		if err := e.opps.MarkExecuted(ctx, opp.ID.String()); err != nil {
			e.logger.WarnContext(ctx, "engine: mark executed failed",
				slog.String("opp_id", opp.ID.String()),
				slog.String("error", err.Error()))
		}
	}

	e.RecordResult(ctx, opp, plan, result)
	return result
}

// RecordResult settles an execution result against the exposure reserved at
// approval. A plan that placed no orders only frees the reservation: nothing
// was at risk, so no trade settles. Anything with fills becomes an outcome
// fed through the risk controller, history window, and stores. A successful
// multi-leg fill realizes the opportunity's locked-in profit net of slippage
// and fees; a partial fill books the unhedged legs as a loss at the slippage
// actually paid plus an unwind haircut.
func (e *Engine) RecordResult(ctx context.Context, opp domain.Opportunity, plan domain.ExecutionPlan, result domain.ExecutionResult) {
	reserved := plannedNotional(plan)
	if len(result.Fills) == 0 {
		e.controller.Release(reserved)
		e.auditEvent(ctx, domain.AuditExecutionAbandoned, map[string]any{
			"opp_id":  opp.ID.String(),
			"plan_id": plan.ID.String(),
			"error":   result.Err,
		})
		e.logger.InfoContext(ctx, "engine: unfilled plan released",
			slog.String("plan_id", plan.ID.String()),
			slog.Float64("released", reserved))
		return
	}

	stake, pnl := settleValue(opp, result)
	outcome := domain.TradeOutcome{
		OpportunityID: opp.ID.String(),
		Event:         opp.Event,
		PnL:           pnl,
		Stake:         stake,
		Reserved:      reserved,
		Won:           result.Success && pnl >= 0,
		SettledAt:     time.Now(),
	}
	if stake > 0 {
		outcome.Return = pnl / stake
	}
	e.RecordOutcome(ctx, outcome)
}

// plannedNotional is the dollar commitment across a plan's legs at their
// planned prices. It matches the amount reserved when the decision cleared
// the risk gate.
func plannedNotional(plan domain.ExecutionPlan) float64 {
	var n float64
	for _, s := range plan.Steps {
		n += s.Price * s.Size
	}
	return n
}

// settleValue prices an execution result: dollars filled and realized PnL
// net of slippage and taker fees.
func settleValue(opp domain.Opportunity, result domain.ExecutionResult) (stake, pnl float64) {
	for _, f := range result.Fills {
		stake += f.Price * f.Size
	}
	if result.Success {
		var contracts float64
		if len(result.Fills) > 0 {
			contracts = result.Fills[0].Size
		}
		pnl = opp.Profit*contracts - result.AvgSlippage*stake - result.Fees
	} else {
		pnl = -(result.AvgSlippage+0.01)*stake - result.Fees
	}
	return stake, pnl
}

// RecordOutcome settles one trade against all performance state.
func (e *Engine) RecordOutcome(ctx context.Context, outcome domain.TradeOutcome) {
	e.controller.RecordOutcome(outcome)
	e.history.Record(outcome)

	if e.trades != nil {
		if err := e.trades.Insert(ctx, outcome); err != nil {
			e.logger.WarnContext(ctx, "engine: persist trade failed",
				slog.String("opp_id", outcome.OpportunityID),
				slog.String("error", err.Error()))
		}
	}
	snap := e.controller.Snapshot()
	if e.perf != nil {
		if err := e.perf.Save(ctx, snap); err != nil {
			e.logger.WarnContext(ctx, "engine: persist performance failed",
				slog.String("error", err.Error()))
		}
	}
	e.publish(ctx, ChannelRisk, map[string]any{
		"event":    "outcome_recorded",
		"won":      outcome.Won,
		"pnl":      outcome.PnL,
		"bankroll": snap.Bankroll,
		"streak":   snap.Streak,
		"drawdown": snap.Drawdown(),
	})
}

// AnalyzeSnapshot scores one order-book snapshot against an explicit
// history without touching analyzer state.
func (e *Engine) AnalyzeSnapshot(snap domain.OrderbookSnapshot, history []domain.OrderbookSnapshot) domain.MakerSignature {
	return e.analyzer.Analyze(snap, history)
}

// ObserveSnapshot ingests a live snapshot into the analyzer's windows.
func (e *Engine) ObserveSnapshot(snap domain.OrderbookSnapshot) domain.MakerSignature {
	return e.analyzer.Observe(snap)
}

// LiquidityProfile measures the depth and balance of one book snapshot.
func (e *Engine) LiquidityProfile(snap domain.OrderbookSnapshot) domain.LiquidityProfile {
	return e.analyzer.Liquidity(snap)
}

// EmergencyStop halts all trading until Resume. Audited.
func (e *Engine) EmergencyStop(ctx context.Context, reason string) {
	e.controller.EmergencyStop(reason)
	e.auditEvent(ctx, domain.AuditEmergencyStop, map[string]any{"reason": reason})
	e.publish(ctx, ChannelRisk, map[string]any{"event": "emergency_stop", "reason": reason})
}

// Resume re-enables trading after an emergency stop. Audited.
func (e *Engine) Resume(ctx context.Context) {
	e.controller.Resume()
	e.auditEvent(ctx, domain.AuditResume, nil)
	e.publish(ctx, ChannelRisk, map[string]any{"event": "resumed"})
}

// Snapshot exposes the current performance state.
func (e *Engine) Snapshot() domain.PerformanceSnapshot {
	return e.controller.Snapshot()
}

// LatencyMetrics reports the rolling latency summary for one platform.
func (e *Engine) LatencyMetrics(platform string) domain.LatencyMetrics {
	return e.latency.Metrics(platform)
}

func (e *Engine) publish(ctx context.Context, channel domain.BusChannel, payload map[string]any) {
	if e.bus == nil {
		return
	}
	evt, _ := json.Marshal(payload)
	if err := e.bus.Publish(ctx, channel, evt); err != nil {
		e.logger.WarnContext(ctx, "engine: publish failed",
			slog.String("channel", string(channel)),
			slog.String("error", err.Error()))
	}
}

func (e *Engine) auditEvent(ctx context.Context, event domain.AuditEvent, detail map[string]any) {
	if e.audit == nil {
		return
	}
	if err := e.audit.Log(ctx, event, detail); err != nil {
		e.logger.WarnContext(ctx, "engine: audit log failed",
			slog.String("event", string(event)),
			slog.String("error", err.Error()))
	}
}

// gateError maps a controller rejection reason to its sentinel.
func gateError(reason string) error {
	switch reason {
	case "emergency stop":
		return domain.ErrEmergencyStop
	case "daily exposure cap reached":
		return domain.ErrExposureCap
	case "win rate below floor":
		return domain.ErrWinRateFloor
	case "loss cooldown active":
		return domain.ErrCooldownActive
	default:
		return domain.ErrTradingHalted
	}
}
