package domain

import "time"

// RiskState is the trading gate state machine.
type RiskState string

const (
	RiskActive RiskState = "active"
	RiskHalted RiskState = "halted"
)

// PerformanceSnapshot is the running account of realized results, drawdown,
// and streaks the risk controller gates on.
type PerformanceSnapshot struct {
	Bankroll      float64
	Exposure      float64 // open notional across platforms
	CumulativePnL float64
	PeakPnL       float64 // running high-water mark of CumulativePnL
	MaxDrawdown   float64 // largest peak-to-trough decline, positive
	Streak        int     // >0 consecutive wins, <0 consecutive losses
	TotalTrades   int
	Wins          int
	Losses        int
	State         RiskState
	HaltReason    string
	UpdatedAt     time.Time
}

// WinRate returns wins over settled trades, zero before any settle.
func (p PerformanceSnapshot) WinRate() float64 {
	if p.TotalTrades == 0 {
		return 0
	}
	return float64(p.Wins) / float64(p.TotalTrades)
}

// Drawdown returns the current decline from the PnL high-water mark.
func (p PerformanceSnapshot) Drawdown() float64 {
	return p.PeakPnL - p.CumulativePnL
}

// TradeApproval is the controller's verdict on a proposed trade.
type TradeApproval struct {
	Approved bool
	Reason   string
	State    RiskState
}
