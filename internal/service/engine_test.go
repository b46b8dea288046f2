package service

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"math"
	"testing"
	"time"

	"github.com/alanyoungcy/arbengine/internal/detect"
	"github.com/alanyoungcy/arbengine/internal/domain"
	"github.com/alanyoungcy/arbengine/internal/exec"
	"github.com/alanyoungcy/arbengine/internal/micro"
	"github.com/alanyoungcy/arbengine/internal/risk"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type memOppStore struct {
	inserted []domain.Opportunity
	executed []string
}

func (m *memOppStore) Insert(ctx context.Context, opp domain.Opportunity) error {
	m.inserted = append(m.inserted, opp)
	return nil
}
func (m *memOppStore) MarkExecuted(ctx context.Context, id string) error {
	m.executed = append(m.executed, id)
	return nil
}
func (m *memOppStore) GetByID(ctx context.Context, id string) (domain.Opportunity, error) {
	return domain.Opportunity{}, domain.ErrNotFound
}
func (m *memOppStore) ListRecent(ctx context.Context, limit int) ([]domain.Opportunity, error) {
	return m.inserted, nil
}
func (m *memOppStore) ListByKind(ctx context.Context, kind domain.OpportunityKind, opts domain.ListOpts) ([]domain.Opportunity, error) {
	return nil, nil
}

type memTradeStore struct{ outcomes []domain.TradeOutcome }

func (m *memTradeStore) Insert(ctx context.Context, o domain.TradeOutcome) error {
	m.outcomes = append(m.outcomes, o)
	return nil
}
func (m *memTradeStore) ListRecent(ctx context.Context, limit int) ([]domain.TradeOutcome, error) {
	return m.outcomes, nil
}
func (m *memTradeStore) ListBefore(ctx context.Context, cutoff time.Time, opts domain.ListOpts) ([]domain.TradeOutcome, error) {
	return nil, nil
}
func (m *memTradeStore) DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	return 0, nil
}
func (m *memTradeStore) SumPnL(ctx context.Context, since time.Time) (float64, error) {
	var sum float64
	for _, o := range m.outcomes {
		sum += o.PnL
	}
	return sum, nil
}

type memPerfStore struct{ snaps []domain.PerformanceSnapshot }

func (m *memPerfStore) Save(ctx context.Context, s domain.PerformanceSnapshot) error {
	m.snaps = append(m.snaps, s)
	return nil
}
func (m *memPerfStore) Latest(ctx context.Context) (domain.PerformanceSnapshot, error) {
	if len(m.snaps) == 0 {
		return domain.PerformanceSnapshot{}, domain.ErrNotFound
	}
	return m.snaps[len(m.snaps)-1], nil
}
func (m *memPerfStore) ListSince(ctx context.Context, since time.Time) ([]domain.PerformanceSnapshot, error) {
	return m.snaps, nil
}

type memBus struct{ published map[domain.BusChannel]int }

func (m *memBus) Publish(ctx context.Context, channel domain.BusChannel, payload []byte) error {
	if m.published == nil {
		m.published = make(map[domain.BusChannel]int)
	}
	m.published[channel]++
	return nil
}
func (m *memBus) Subscribe(ctx context.Context, channel domain.BusChannel) (<-chan []byte, error) {
	return nil, nil
}
func (m *memBus) StreamAppend(ctx context.Context, stream string, payload []byte) error { return nil }
func (m *memBus) StreamRead(ctx context.Context, stream, lastID string, count int) ([]domain.StreamMessage, error) {
	return nil, nil
}

// alwaysFill fills everything at the quoted ceiling minus a tick.
type alwaysFill struct{ name string }

func (a alwaysFill) Name() string { return a.name }
func (a alwaysFill) PlaceOrder(ctx context.Context, req domain.OrderRequest) (domain.OrderResult, error) {
	return domain.OrderResult{Filled: true, FillPrice: req.Price - 0.001, FillSize: req.Size, Latency: 5 * time.Millisecond}, nil
}
func (a alwaysFill) CancelAll(ctx context.Context, marketID string) error { return nil }

type neverFill struct{ name string }

func (n neverFill) Name() string { return n.name }
func (n neverFill) PlaceOrder(ctx context.Context, req domain.OrderRequest) (domain.OrderResult, error) {
	return domain.OrderResult{}, nil
}
func (n neverFill) CancelAll(ctx context.Context, marketID string) error { return nil }

type engineFixture struct {
	engine *Engine
	opps   *memOppStore
	trades *memTradeStore
	perf   *memPerfStore
	bus    *memBus
}

func newFixture(t *testing.T, adapters map[string]domain.PlatformAdapter) *engineFixture {
	t.Helper()
	logger := testLogger()
	latency := exec.NewLatencyMonitor()

	f := &engineFixture{
		opps:   &memOppStore{},
		trades: &memTradeStore{},
		perf:   &memPerfStore{},
		bus:    &memBus{},
	}
	f.engine = NewEngine(EngineConfig{}, Deps{
		Detector:      detect.New(detect.Config{}, nil, logger),
		Sizer:         risk.NewSizer(risk.Config{}, logger),
		Controller:    risk.NewController(risk.ControllerConfig{Bankroll: 10000, DailyRiskLimit: 0.5}, logger),
		History:       risk.NewHistory(0, 0),
		Analyzer:      micro.NewAnalyzer(micro.Config{}, logger),
		Planner:       exec.NewPlanner(exec.PlannerConfig{TimeLimit: 2 * time.Second}, latency, logger),
		Runner:        exec.NewRunner(adapters, latency, logger),
		Latency:       latency,
		Opportunities: f.opps,
		Trades:        f.trades,
		Performance:   f.perf,
		Bus:           f.bus,
	}, logger)
	return f
}

func dutchQuote() domain.MarketQuote {
	return domain.MarketQuote{
		Platform: "polymarket", MarketID: "m1", Event: "fed cut",
		YesBid: 0.46, YesAsk: 0.48, NoBid: 0.45, NoAsk: 0.47,
		YesVolume: 20000, NoVolume: 20000,
		Timestamp: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}
}

func TestEnginePipeline(t *testing.T) {
	f := newFixture(t, map[string]domain.PlatformAdapter{"polymarket": alwaysFill{name: "polymarket"}})
	ctx := context.Background()

	opps := f.engine.DetectOpportunities(ctx, []domain.MarketQuote{dutchQuote()})
	if len(opps) != 1 {
		t.Fatalf("detected %d opportunities, want 1", len(opps))
	}
	if opps[0].ID.String() == "00000000-0000-0000-0000-000000000000" {
		t.Error("opportunity not assigned an ID")
	}
	if len(f.opps.inserted) != 1 {
		t.Errorf("persisted %d opportunities, want 1", len(f.opps.inserted))
	}
	if f.bus.published[ChannelOpportunities] != 1 {
		t.Errorf("published %d opportunity events, want 1", f.bus.published[ChannelOpportunities])
	}

	dec, err := f.engine.SizePosition(ctx, opps[0])
	if err != nil {
		t.Fatalf("SizePosition() error = %v", err)
	}
	if dec.Amount <= 0 {
		t.Fatalf("Amount = %v, want positive", dec.Amount)
	}

	plan, err := f.engine.PlanExecution(ctx, opps[0], dec)
	if err != nil {
		t.Fatalf("PlanExecution() error = %v", err)
	}
	if len(plan.Steps) != 2 {
		t.Fatalf("plan steps = %d, want 2", len(plan.Steps))
	}

	result := f.engine.ExecutePlan(ctx, opps[0], plan, nil)
	if !result.Success {
		t.Fatalf("execution failed: %s", result.Err)
	}
	if len(f.opps.executed) != 1 {
		t.Errorf("marked executed %d, want 1", len(f.opps.executed))
	}
	if len(f.trades.outcomes) != 1 {
		t.Fatalf("recorded %d trades, want 1", len(f.trades.outcomes))
	}
	if len(f.perf.snaps) != 1 {
		t.Errorf("persisted %d performance snapshots, want 1", len(f.perf.snaps))
	}

	snap := f.engine.Snapshot()
	if snap.TotalTrades != 1 || snap.Wins != 1 {
		t.Errorf("snapshot trades/wins = %d/%d, want 1/1", snap.TotalTrades, snap.Wins)
	}
}

// fillFirst fills its first order and rejects every later one, leaving one
// leg of a two-leg plan unhedged.
type fillFirst struct{ placed int }

func (a *fillFirst) Name() string { return "polymarket" }
func (a *fillFirst) PlaceOrder(ctx context.Context, req domain.OrderRequest) (domain.OrderResult, error) {
	a.placed++
	if a.placed > 1 {
		return domain.OrderResult{}, nil
	}
	return domain.OrderResult{Filled: true, FillPrice: req.Price, FillSize: req.Size, Latency: 5 * time.Millisecond}, nil
}
func (a *fillFirst) CancelAll(ctx context.Context, marketID string) error { return nil }

func TestEngineUnfilledPlanReleasesReservation(t *testing.T) {
	f := newFixture(t, map[string]domain.PlatformAdapter{"polymarket": neverFill{name: "polymarket"}})
	ctx := context.Background()

	opps := f.engine.DetectOpportunities(ctx, []domain.MarketQuote{dutchQuote()})

	// Repeated zero-fill runs must hand every reservation back: the daily
	// cap stays open and no trade settles when nothing was at risk.
	for i := 0; i < 5; i++ {
		dec, err := f.engine.SizePosition(ctx, opps[0])
		if err != nil {
			t.Fatalf("iteration %d: SizePosition() error = %v", i, err)
		}
		plan, err := f.engine.PlanExecution(ctx, opps[0], dec)
		if err != nil {
			t.Fatalf("iteration %d: PlanExecution() error = %v", i, err)
		}
		result := f.engine.ExecutePlan(ctx, opps[0], plan, nil)
		if result.Success {
			t.Fatal("execution succeeded against a never-filling adapter")
		}
		if result.StepsCompleted != 0 {
			t.Fatalf("StepsCompleted = %d, want 0", result.StepsCompleted)
		}
	}

	snap := f.engine.Snapshot()
	if snap.Exposure > 1e-6 {
		t.Errorf("Exposure = %v, want 0 after all reservations released", snap.Exposure)
	}
	if snap.TotalTrades != 0 || snap.Losses != 0 {
		t.Errorf("trades/losses = %d/%d, want 0/0 with nothing filled", snap.TotalTrades, snap.Losses)
	}
	if len(f.trades.outcomes) != 0 {
		t.Errorf("persisted %d trades, want 0", len(f.trades.outcomes))
	}
	if len(f.opps.executed) != 0 {
		t.Errorf("marked executed %d, want 0", len(f.opps.executed))
	}
}

func TestEnginePartialFillBooksLossAndFreesReservation(t *testing.T) {
	f := newFixture(t, map[string]domain.PlatformAdapter{"polymarket": &fillFirst{}})
	ctx := context.Background()

	opps := f.engine.DetectOpportunities(ctx, []domain.MarketQuote{dutchQuote()})
	dec, err := f.engine.SizePosition(ctx, opps[0])
	if err != nil {
		t.Fatalf("SizePosition() error = %v", err)
	}
	plan, err := f.engine.PlanExecution(ctx, opps[0], dec)
	if err != nil {
		t.Fatalf("PlanExecution() error = %v", err)
	}

	result := f.engine.ExecutePlan(ctx, opps[0], plan, nil)
	if result.Success {
		t.Fatal("execution succeeded with only one leg filling")
	}
	if result.StepsCompleted != 1 {
		t.Fatalf("StepsCompleted = %d, want 1", result.StepsCompleted)
	}

	snap := f.engine.Snapshot()
	if snap.Losses != 1 {
		t.Errorf("Losses = %d, want 1 for the unhedged leg", snap.Losses)
	}
	if snap.Exposure > 1e-6 {
		t.Errorf("Exposure = %v, want full reservation freed at settlement", snap.Exposure)
	}
	if len(f.trades.outcomes) != 1 {
		t.Fatalf("persisted %d trades, want 1", len(f.trades.outcomes))
	}
	if o := f.trades.outcomes[0]; o.Reserved <= o.Stake {
		t.Errorf("Reserved = %v, Stake = %v, want reservation covering the whole plan", o.Reserved, o.Stake)
	}
}

func TestSettleValueSubtractsFees(t *testing.T) {
	opp := domain.Opportunity{Profit: 0.05}
	res := domain.ExecutionResult{
		Success: true,
		Fills: []domain.Fill{
			{Price: 0.48, Size: 100},
			{Price: 0.47, Size: 100},
		},
		Fees: 1.5,
	}

	stake, pnl := settleValue(opp, res)
	if math.Abs(stake-95) > 1e-9 {
		t.Errorf("stake = %v, want 95", stake)
	}
	if want := 0.05*100 - 1.5; math.Abs(pnl-want) > 1e-9 {
		t.Errorf("pnl = %v, want %v net of fees", pnl, want)
	}

	// A partial fill pays its fees on top of the unwind loss.
	res.Success = false
	res.Fills = res.Fills[:1]
	res.AvgSlippage = 0.005
	stake, pnl = settleValue(opp, res)
	if want := -(0.005+0.01)*stake - 1.5; math.Abs(pnl-want) > 1e-9 {
		t.Errorf("partial pnl = %v, want %v", pnl, want)
	}
}

func TestEngineEmergencyStopGatesSizing(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	opps := f.engine.DetectOpportunities(ctx, []domain.MarketQuote{dutchQuote()})
	f.engine.EmergencyStop(ctx, "operator")

	dec, err := f.engine.SizePosition(ctx, opps[0])
	if !errors.Is(err, domain.ErrEmergencyStop) {
		t.Fatalf("error = %v, want ErrEmergencyStop", err)
	}
	if dec.Amount != 0 || dec.Reason != "emergency stop" {
		t.Errorf("decision = %+v, want zeroed with reason", dec)
	}

	f.engine.Resume(ctx)
	if _, err := f.engine.SizePosition(ctx, opps[0]); err != nil {
		t.Fatalf("SizePosition() after resume error = %v", err)
	}
}

func TestEngineSizeFromHistoryInsufficient(t *testing.T) {
	f := newFixture(t, nil)
	if _, err := f.engine.SizeFromHistory(context.Background()); !errors.Is(err, domain.ErrInsufficientHistory) {
		t.Fatalf("error = %v, want ErrInsufficientHistory", err)
	}
}

func TestEngineRestore(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	f.engine.RecordOutcome(ctx, domain.TradeOutcome{Won: true, PnL: 250, Stake: 500, Return: 0.5, SettledAt: time.Now()})

	g := newFixture(t, nil)
	g.perf.snaps = f.perf.snaps
	if err := g.engine.Restore(ctx); err != nil {
		t.Fatalf("Restore() error = %v", err)
	}
	snap := g.engine.Snapshot()
	if snap.TotalTrades != 1 || snap.CumulativePnL != 250 {
		t.Errorf("restored snapshot = %+v, want 1 trade with 250 PnL", snap)
	}

	// First boot with empty store is not an error.
	h := newFixture(t, nil)
	if err := h.engine.Restore(ctx); err != nil {
		t.Fatalf("Restore() on empty store error = %v", err)
	}
}
