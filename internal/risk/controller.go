package risk

import (
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/alanyoungcy/arbengine/internal/domain"
)

// ControllerConfig tunes the trading gate.
type ControllerConfig struct {
	Bankroll       float64
	DailyRiskLimit float64 // fraction of bankroll open at once
	WinRateFloor   float64
	MinTrades      int // settled trades before the win-rate gate applies
	Cooldown       time.Duration
}

func (c *ControllerConfig) setDefaults() {
	if c.DailyRiskLimit == 0 {
		c.DailyRiskLimit = 0.10
	}
	if c.WinRateFloor == 0 {
		c.WinRateFloor = 0.40
	}
	if c.MinTrades == 0 {
		c.MinTrades = 10
	}
	if c.Cooldown == 0 {
		c.Cooldown = 30 * time.Minute
	}
}

// Controller is the single serialized gate every sizing and execution
// decision passes through. It holds the bankroll, exposure, streak, and
// drawdown state, and is the only mutable shared state in the decision path.
type Controller struct {
	cfg    ControllerConfig
	logger *slog.Logger
	now    func() time.Time

	mu         sync.Mutex
	state      domain.RiskState
	haltReason string
	bankroll   float64
	exposure   float64
	cumPnL     float64
	peakPnL    float64
	maxDD      float64
	streak     int
	trades     int
	wins       int
	losses     int
	lastTrade  time.Time
}

func NewController(cfg ControllerConfig, logger *slog.Logger) *Controller {
	cfg.setDefaults()
	return &Controller{
		cfg:      cfg,
		logger:   logger.With(slog.String("component", "risk_controller")),
		now:      time.Now,
		state:    domain.RiskActive,
		bankroll: cfg.Bankroll,
	}
}

// Approve gates a proposed trade of the given notional and, when approved,
// reserves it as open exposure in the same critical section so concurrent
// requests cannot jointly breach the daily limit.
func (c *Controller) Approve(amount float64) domain.TradeApproval {
	c.mu.Lock()
	defer c.mu.Unlock()

	deny := func(reason string) domain.TradeApproval {
		c.logger.Warn("trade rejected", slog.String("reason", reason), slog.Float64("amount", amount))
		return domain.TradeApproval{Approved: false, Reason: reason, State: c.state}
	}

	if c.state == domain.RiskHalted {
		return deny("emergency stop")
	}
	limit := c.cfg.DailyRiskLimit * c.bankroll
	if c.exposure >= limit || c.exposure+amount > limit {
		return deny("daily exposure cap reached")
	}
	if c.trades >= c.cfg.MinTrades {
		if rate := float64(c.wins) / float64(c.trades); rate < c.cfg.WinRateFloor {
			return deny("win rate below floor")
		}
	}
	if c.streak <= -2 && c.now().Sub(c.lastTrade) < c.cfg.Cooldown {
		return deny("loss cooldown active")
	}

	c.exposure += amount
	return domain.TradeApproval{Approved: true, State: c.state}
}

// Release frees reserved exposure for a trade that never executed.
func (c *Controller) Release(amount float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.exposure = math.Max(0, c.exposure-amount)
}

// RecordOutcome settles one trade: frees the exposure reserved at approval
// (falling back to the filled stake for outcomes that never went through
// Approve), updates the streak (sign change resets to ±1), cumulative PnL,
// and peak-to-trough drawdown.
func (c *Controller) RecordOutcome(o domain.TradeOutcome) {
	c.mu.Lock()
	defer c.mu.Unlock()

	held := o.Reserved
	if held == 0 {
		held = o.Stake
	}
	c.exposure = math.Max(0, c.exposure-held)
	c.trades++
	if o.Won {
		c.wins++
		c.streak = max(0, c.streak) + 1
	} else {
		c.losses++
		c.streak = min(0, c.streak) - 1
	}

	c.bankroll += o.PnL
	c.cumPnL += o.PnL
	if c.cumPnL > c.peakPnL {
		c.peakPnL = c.cumPnL
	}
	if dd := c.peakPnL - c.cumPnL; dd > c.maxDD {
		c.maxDD = dd
	}

	if !o.SettledAt.IsZero() {
		c.lastTrade = o.SettledAt
	} else {
		c.lastTrade = c.now()
	}

	c.logger.Info("trade settled",
		slog.String("opportunity_id", o.OpportunityID),
		slog.Bool("won", o.Won),
		slog.Float64("pnl", o.PnL),
		slog.Int("streak", c.streak),
		slog.Float64("drawdown", c.peakPnL-c.cumPnL))
}

// EmergencyStop halts all new decisions until an explicit Resume.
func (c *Controller) EmergencyStop(reason string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state = domain.RiskHalted
	c.haltReason = reason
	c.logger.Warn("emergency stop engaged", slog.String("reason", reason))
}

// Resume re-enables trading. Never automatic.
func (c *Controller) Resume() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state = domain.RiskActive
	c.haltReason = ""
	c.logger.Info("trading resumed")
}

// Snapshot exports the controller state for persistence and reporting.
func (c *Controller) Snapshot() domain.PerformanceSnapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return domain.PerformanceSnapshot{
		Bankroll:      c.bankroll,
		Exposure:      c.exposure,
		CumulativePnL: c.cumPnL,
		PeakPnL:       c.peakPnL,
		MaxDrawdown:   c.maxDD,
		Streak:        c.streak,
		TotalTrades:   c.trades,
		Wins:          c.wins,
		Losses:        c.losses,
		State:         c.state,
		HaltReason:    c.haltReason,
		UpdatedAt:     c.now(),
	}
}

// Restore loads persisted state at startup.
func (c *Controller) Restore(snap domain.PerformanceSnapshot) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.bankroll = snap.Bankroll
	c.exposure = snap.Exposure
	c.cumPnL = snap.CumulativePnL
	c.peakPnL = snap.PeakPnL
	c.maxDD = snap.MaxDrawdown
	c.streak = snap.Streak
	c.trades = snap.TotalTrades
	c.wins = snap.Wins
	c.losses = snap.Losses
	if snap.State != "" {
		c.state = snap.State
	}
	c.haltReason = snap.HaltReason
	c.lastTrade = snap.UpdatedAt
}
