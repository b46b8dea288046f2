package app

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/alanyoungcy/arbengine/internal/crypto"
	"github.com/alanyoungcy/arbengine/internal/detect"
	"github.com/alanyoungcy/arbengine/internal/domain"
	"github.com/alanyoungcy/arbengine/internal/exec"
	"github.com/alanyoungcy/arbengine/internal/feed"
	"github.com/alanyoungcy/arbengine/internal/micro"
	"github.com/alanyoungcy/arbengine/internal/platform"
	"github.com/alanyoungcy/arbengine/internal/platform/kalshi"
	"github.com/alanyoungcy/arbengine/internal/platform/polymarket"
	"github.com/alanyoungcy/arbengine/internal/risk"
	"github.com/alanyoungcy/arbengine/internal/service"
)

// orderBudget is the per-venue order placement budget enforced through the
// distributed rate limiter.
const (
	orderBudgetLimit  = 10
	orderBudgetWindow = time.Second
)

// engineParts carries the engine plus the collaborators app modes wire into
// feeds and scanners.
type engineParts struct {
	engine   *service.Engine
	analyzer *micro.Analyzer
	scanner  *service.Scanner
}

// TradeMode runs the full decision loop: market-data feeds, detection,
// sizing, and execution against live venues.
func (a *App) TradeMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting trade mode")
	return a.runDecisionLoop(ctx, deps, true)
}

// MonitorMode runs feeds and detection but never places orders: detected
// opportunities are published and persisted only.
func (a *App) MonitorMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting monitor mode")
	return a.runDecisionLoop(ctx, deps, false)
}

// ArchiveMode runs one cold-storage archival pass and exits. A distributed
// lock guards against concurrent archive runs from other instances.
func (a *App) ArchiveMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting archive mode",
		slog.Int("retention_days", a.cfg.Archive.RetentionDays))
	return a.runArchivePass(ctx, deps)
}

// FullMode runs the trade loop plus a daily archival pass when archival is
// enabled.
func (a *App) FullMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting full mode")

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return a.runDecisionLoop(ctx, deps, true)
	})

	if a.cfg.Archive.Enabled && deps.Archiver != nil {
		g.Go(func() error {
			ticker := time.NewTicker(24 * time.Hour)
			defer ticker.Stop()
			for {
				select {
				case <-ctx.Done():
					return ctx.Err()
				case <-ticker.C:
					if err := a.runArchivePass(ctx, deps); err != nil {
						a.logger.WarnContext(ctx, "full mode: archive pass failed",
							slog.String("error", err.Error()))
					}
				}
			}
		})
	}

	return g.Wait()
}

// runDecisionLoop builds the engine, starts all configured feeds, and drives
// the scan loop until the context is cancelled.
func (a *App) runDecisionLoop(ctx context.Context, deps *Dependencies, execute bool) error {
	g, ctx := errgroup.WithContext(ctx)

	parts, err := a.buildEngine(ctx, deps, execute)
	if err != nil {
		return err
	}
	if err := parts.engine.Restore(ctx); err != nil {
		return err
	}

	for _, fc := range a.cfg.Feeds {
		mf := feed.NewMarketFeed(feed.Config{
			URL:      fc.URL,
			Platform: fc.Platform,
			Markets:  fc.Markets,
			Channels: fc.Channels,
		}, deps.Quotes, deps.Books, parts.analyzer, deps.Bus, a.logger)
		platformName := fc.Platform
		g.Go(func() error {
			if err := mf.Run(ctx); err != nil && ctx.Err() == nil {
				return fmt.Errorf("feed %s: %w", platformName, err)
			}
			return nil
		})
	}
	if len(a.cfg.Feeds) == 0 {
		a.logger.WarnContext(ctx, "no feeds configured; scanner will see only pre-cached quotes")
	}

	g.Go(func() error {
		return parts.scanner.Run(ctx)
	})

	return g.Wait()
}

// buildEngine constructs the full decision core from configuration. Venue
// adapters are only built when execute is true; a venue whose credentials
// fail to load is skipped with a warning rather than aborting startup.
func (a *App) buildEngine(ctx context.Context, deps *Dependencies, execute bool) (*engineParts, error) {
	analyzer := micro.NewAnalyzer(micro.Config{
		Window:       a.cfg.Micro.Window.Duration,
		MaxSnapshots: a.cfg.Micro.MaxSnapshots,
		MinSamples:   a.cfg.Micro.MinSamples,
		FreqNorm:     a.cfg.Micro.FreqNorm,
		DepthNorm:    a.cfg.Micro.DepthNorm,
	}, a.logger)

	detector := detect.New(detect.Config{
		MinProfit:            a.cfg.Detector.MinProfit,
		VolumeNorm:           a.cfg.Detector.VolumeNorm,
		EndgameMinBid:        a.cfg.Detector.EndgameMinBid,
		EndgameMinAnnualized: a.cfg.Detector.EndgameMinAnnualized,
		SortKey:              detect.SortKey(a.cfg.Detector.SortKey),
	}, analyzer, a.logger)

	sizer := risk.NewSizer(risk.Config{
		SafetyMultiplier: a.cfg.Sizer.SafetyMultiplier,
		MaxFraction:      a.cfg.Sizer.MaxFraction,
		MinSamples:       a.cfg.Sizer.MinSamples,
		OpportunityLoss:  a.cfg.Sizer.OpportunityLoss,
		PriorWinProb:     a.cfg.Sizer.PriorWinProb,
		PriorAvgWin:      a.cfg.Sizer.PriorAvgWin,
		PriorAvgLoss:     a.cfg.Sizer.PriorAvgLoss,
	}, a.logger)

	controller := risk.NewController(risk.ControllerConfig{
		Bankroll:       a.cfg.Controller.Bankroll,
		DailyRiskLimit: a.cfg.Controller.DailyRiskLimit,
		WinRateFloor:   a.cfg.Controller.WinRateFloor,
		MinTrades:      a.cfg.Controller.MinTrades,
		Cooldown:       a.cfg.Controller.Cooldown.Duration,
	}, a.logger)

	latency := exec.NewLatencyMonitor()
	planner := exec.NewPlanner(exec.PlannerConfig{
		MaxSlippage:           a.cfg.Exec.MaxSlippage,
		FallbackExtraSlippage: a.cfg.Exec.FallbackExtraSlippage,
		TimeLimit:             a.cfg.Exec.TimeLimit.Duration,
		Retries:               a.cfg.Exec.Retries,
	}, latency, a.logger)

	var adapters map[string]domain.PlatformAdapter
	if execute {
		adapters = a.buildAdapters(ctx, deps)
		if len(adapters) == 0 {
			a.logger.WarnContext(ctx, "no venue adapters available; orders cannot be placed")
		}
	}
	runner := exec.NewRunner(adapters, latency, a.logger)

	engine := service.NewEngine(service.EngineConfig{
		ExposureCap: a.cfg.Engine.ExposureCap,
		ColdStart:   a.cfg.Engine.ColdStart,
	}, service.Deps{
		Detector:      detector,
		Sizer:         sizer,
		Controller:    controller,
		History:       risk.NewHistory(0, 0),
		Analyzer:      analyzer,
		Planner:       planner,
		Runner:        runner,
		Latency:       latency,
		Opportunities: deps.Opportunities,
		Trades:        deps.Trades,
		Performance:   deps.Performance,
		Bus:           deps.Bus,
		Audit:         deps.Audit,
	}, a.logger)

	platforms := make([]string, 0, len(a.cfg.Feeds))
	seen := make(map[string]bool)
	for _, fc := range a.cfg.Feeds {
		if !seen[fc.Platform] {
			seen[fc.Platform] = true
			platforms = append(platforms, fc.Platform)
		}
	}
	if len(platforms) == 0 {
		platforms = []string{"polymarket", "kalshi"}
	}

	scanner := service.NewScanner(service.ScannerConfig{
		Platforms: platforms,
		Interval:  a.cfg.Engine.DetectInterval.Duration,
		Execute:   execute,
	}, engine, deps.Quotes, a.logger)

	return &engineParts{engine: engine, analyzer: analyzer, scanner: scanner}, nil
}

// buildAdapters creates the venue execution adapters, each wrapped with the
// distributed order-rate throttle. A venue with missing or broken
// credentials is skipped.
func (a *App) buildAdapters(ctx context.Context, deps *Dependencies) map[string]domain.PlatformAdapter {
	adapters := make(map[string]domain.PlatformAdapter)

	if a.cfg.Polymarket.ApiKey != "" {
		secret, err := crypto.LoadSecret(crypto.SecretConfig{
			RawSecret:     a.cfg.Polymarket.ApiSecret,
			EncryptedPath: a.cfg.Polymarket.EncryptedSecretPath,
			Password:      a.cfg.Polymarket.SecretPassword,
		})
		if err != nil {
			a.logger.WarnContext(ctx, "polymarket adapter disabled: secret unavailable",
				slog.String("error", err.Error()))
		} else {
			pm := polymarket.NewAdapter(polymarket.Config{
				BaseURL: a.cfg.Polymarket.ClobHost,
				Address: a.cfg.Polymarket.Address,
			}, &crypto.HMACAuth{
				Key:        a.cfg.Polymarket.ApiKey,
				Secret:     secret,
				Passphrase: a.cfg.Polymarket.ApiPassphrase,
			})
			adapters[pm.Name()] = platform.NewThrottledAdapter(pm, deps.RateLimiter, orderBudgetLimit, orderBudgetWindow)
		}
	}

	if a.cfg.Kalshi.ApiKey != "" && a.cfg.Kalshi.RsaPrivateKeyPath != "" {
		ka := kalshi.NewAdapter(kalshi.Config{
			BaseURL:  a.cfg.Kalshi.BaseURL,
			APIKeyID: a.cfg.Kalshi.ApiKey,
		})
		keyBytes, err := os.ReadFile(a.cfg.Kalshi.RsaPrivateKeyPath)
		if err != nil {
			a.logger.WarnContext(ctx, "kalshi adapter disabled: reading RSA key failed",
				slog.String("path", a.cfg.Kalshi.RsaPrivateKeyPath),
				slog.String("error", err.Error()))
		} else if err := ka.SetRSAPrivateKey(keyBytes); err != nil {
			a.logger.WarnContext(ctx, "kalshi adapter disabled: parsing RSA key failed",
				slog.String("error", err.Error()))
		} else {
			adapters[ka.Name()] = platform.NewThrottledAdapter(ka, deps.RateLimiter, orderBudgetLimit, orderBudgetWindow)
		}
	}

	return adapters
}

// runArchivePass archives trades, opportunities, and performance snapshots
// older than the retention window under a distributed lock.
func (a *App) runArchivePass(ctx context.Context, deps *Dependencies) error {
	if deps.Archiver == nil {
		return fmt.Errorf("archive: archiver not wired (postgres and s3 required)")
	}

	unlock, err := deps.Locks.Acquire(ctx, "archive", 10*time.Minute)
	if err != nil {
		return fmt.Errorf("archive: acquire lock: %w", err)
	}
	defer unlock()

	before := time.Now().UTC().AddDate(0, 0, -a.cfg.Archive.RetentionDays)

	trades, err := deps.Archiver.ArchiveTrades(ctx, before)
	if err != nil {
		return fmt.Errorf("archive trades: %w", err)
	}
	opps, err := deps.Archiver.ArchiveOpportunities(ctx, before)
	if err != nil {
		return fmt.Errorf("archive opportunities: %w", err)
	}
	perf, err := deps.Archiver.ArchivePerformance(ctx, before)
	if err != nil {
		return fmt.Errorf("archive performance: %w", err)
	}

	a.logger.InfoContext(ctx, "archive pass complete",
		slog.Time("before", before),
		slog.Int64("trades", trades),
		slog.Int64("opportunities", opps),
		slog.Int64("performance", perf))
	return nil
}
