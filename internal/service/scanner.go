package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/alanyoungcy/arbengine/internal/domain"
)

// Scanner drives the detection cycle: on every tick it pulls the latest
// quotes for the configured platforms from the quote cache, runs detection,
// and (when execution is enabled) sizes, plans, and executes each
// opportunity in ranked order.
type Scanner struct {
	engine    *Engine
	quotes    domain.QuoteCache
	platforms []string
	interval  time.Duration
	execute   bool
	logger    *slog.Logger
}

// ScannerConfig configures the scan loop.
type ScannerConfig struct {
	Platforms []string
	Interval  time.Duration
	// Execute controls whether detected opportunities are traded or only
	// published and persisted.
	Execute bool
}

// NewScanner creates a Scanner over the given engine and quote cache.
func NewScanner(cfg ScannerConfig, engine *Engine, quotes domain.QuoteCache, logger *slog.Logger) *Scanner {
	if cfg.Interval <= 0 {
		cfg.Interval = 2 * time.Second
	}
	return &Scanner{
		engine:    engine,
		quotes:    quotes,
		platforms: cfg.Platforms,
		interval:  cfg.Interval,
		execute:   cfg.Execute,
		logger:    logger.With(slog.String("component", "scanner")),
	}
}

// Run blocks until ctx is cancelled, running one scan cycle per tick.
func (s *Scanner) Run(ctx context.Context) error {
	s.logger.Info("scanner started",
		slog.Any("platforms", s.platforms),
		slog.Duration("interval", s.interval),
		slog.Bool("execute", s.execute),
	)
	defer s.logger.Info("scanner stopped")

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			s.scanCycle(ctx)
		}
	}
}

// scanCycle runs one full detect/size/plan/execute pass. Failures on a
// single opportunity never abort the cycle.
func (s *Scanner) scanCycle(ctx context.Context) {
	var quotes []domain.MarketQuote
	for _, platform := range s.platforms {
		qs, err := s.quotes.ListPlatform(ctx, platform)
		if err != nil {
			s.logger.WarnContext(ctx, "scanner: list quotes failed",
				slog.String("platform", platform),
				slog.String("error", err.Error()))
			continue
		}
		quotes = append(quotes, qs...)
	}
	if len(quotes) == 0 {
		return
	}

	opps := s.engine.DetectOpportunities(ctx, quotes)
	if !s.execute {
		return
	}

	for _, opp := range opps {
		if err := s.executeOne(ctx, opp); err != nil {
			if errors.Is(err, domain.ErrTradingHalted) ||
				errors.Is(err, domain.ErrEmergencyStop) ||
				errors.Is(err, domain.ErrExposureCap) ||
				errors.Is(err, domain.ErrCooldownActive) ||
				errors.Is(err, domain.ErrWinRateFloor) {
				// Gate rejections apply to the whole cycle, not one opp.
				s.logger.InfoContext(ctx, "scanner: trading gated, cycle abandoned",
					slog.String("reason", err.Error()))
				return
			}
			s.logger.WarnContext(ctx, "scanner: opportunity skipped",
				slog.String("opp_id", opp.ID.String()),
				slog.String("error", err.Error()))
		}
	}
}

func (s *Scanner) executeOne(ctx context.Context, opp domain.Opportunity) error {
	dec, err := s.engine.SizePosition(ctx, opp)
	if err != nil {
		return err
	}
	if dec.Amount <= 0 {
		return domain.ErrNoEdge
	}

	plan, err := s.engine.PlanExecution(ctx, opp, dec)
	if err != nil {
		// The approval already reserved the amount; planning failures must
		// hand it back or the daily cap fills with dead reservations.
		s.engine.ReleaseReservation(dec.Amount)
		return err
	}

	result := s.engine.ExecutePlan(ctx, opp, plan, s.freshness)
	if !result.Success {
		s.logger.WarnContext(ctx, "scanner: plan incomplete",
			slog.String("plan_id", plan.ID.String()),
			slog.Int("steps_completed", result.StepsCompleted),
			slog.Int("total_steps", result.TotalSteps),
			slog.String("error", result.Err))
	}
	return nil
}

// freshness re-validates the remaining legs of a plan between steps: each
// pending leg's current ask must still be at or under its slippage ceiling.
// Cache misses count as stale.
func (s *Scanner) freshness(plan domain.ExecutionPlan, completed int) bool {
	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()

	for i := completed; i < len(plan.Steps); i++ {
		step := plan.Steps[i]
		q, err := s.quotes.GetQuote(ctx, step.Platform, step.MarketID)
		if err != nil {
			return false
		}
		ask := q.YesAsk
		if step.Side == domain.SideNo {
			ask = q.NoAsk
		}
		if ask <= 0 || ask > step.MaxPrice {
			return false
		}
	}
	return true
}
