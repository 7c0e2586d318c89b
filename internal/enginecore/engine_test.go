package enginecore

import (
	"context"
	"log/slog"
	"os"
	"testing"
	"time"

	"polymarket-arb/internal/execution"
	"polymarket-arb/internal/fanout"
	"polymarket-arb/internal/market"
	"polymarket-arb/internal/risk"
	"polymarket-arb/internal/strategy"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

// stubStrategy emits a fixed intent once, then goes quiet — enough to
// drive one deterministic tick without depending on real analyzer timing.
type stubStrategy struct {
	name    string
	active  bool
	intent  strategy.TradeIntent
	emitted bool
}

func (s *stubStrategy) Name() string    { return s.name }
func (s *stubStrategy) IsActive() bool  { return s.active }
func (s *stubStrategy) Evaluate(_ *market.Store) (strategy.TradeIntent, bool) {
	if s.emitted {
		return strategy.TradeIntent{}, false
	}
	s.emitted = true
	return s.intent, true
}

func setupEngine(t *testing.T, strategies []strategy.Strategy) (*Engine, *market.Store, *risk.Gate) {
	t.Helper()
	store := market.NewStore()
	store.RegisterPair(market.MarketPair{MarketID: "m1", YesToken: "yes", NoToken: "no"})
	store.UpdateOrderBook("yes", nil, []market.DepthLevel{market.NewDepthLevel(0.45, 100)})
	store.UpdateOrderBook("no", nil, []market.DepthLevel{market.NewDepthLevel(0.50, 100)})
	store.UpdateTopOfBook("yes", 0.44, 0.45)
	store.UpdateTopOfBook("no", 0.49, 0.50)

	gate := risk.NewGate(risk.Config{MaxPosition: 1000, MaxNotional: 1000, MaxDailyLoss: 1000}, testLogger(), nil)
	exec := execution.NewExecutor(execution.Config{DryRun: true, PaperFeeRate: 0.01}, nil, store, testLogger())
	hub := fanout.NewHub(testLogger())

	eng := New(Config{
		Store:      store,
		Strategies: strategies,
		Gate:       gate,
		Executor:   exec,
		Hub:        hub,
	}, testLogger())
	return eng, store, gate
}

func TestTickRecordsBuyOnGate(t *testing.T) {
	t.Parallel()
	buy := strategy.NewBuyIntent("yes", 0.45, 50, "test-buy")
	stub := &stubStrategy{name: "stub", active: true, intent: buy}
	eng, _, gate := setupEngine(t, []strategy.Strategy{stub})

	eng.tick(context.Background())

	pos, ok := gate.GetPosition("yes")
	if !ok {
		t.Fatal("expected a position to be recorded after a successful buy")
	}
	if pos.Size != 50 {
		t.Errorf("Size = %v, want 50", pos.Size)
	}
	if eng.Evaluations() != 1 {
		t.Errorf("Evaluations() = %v, want 1", eng.Evaluations())
	}
	if eng.Signals() != 1 {
		t.Errorf("Signals() = %v, want 1", eng.Signals())
	}
}

func TestTickSkipsInactiveStrategy(t *testing.T) {
	t.Parallel()
	buy := strategy.NewBuyIntent("yes", 0.45, 50, "test-buy")
	stub := &stubStrategy{name: "stub", active: false, intent: buy}
	eng, _, gate := setupEngine(t, []strategy.Strategy{stub})

	eng.tick(context.Background())

	if _, ok := gate.GetPosition("yes"); ok {
		t.Error("expected no position from an inactive strategy")
	}
	if eng.Signals() != 0 {
		t.Errorf("Signals() = %v, want 0", eng.Signals())
	}
}

func TestTickRejectsIntentOverPositionLimit(t *testing.T) {
	t.Parallel()
	buy := strategy.NewBuyIntent("yes", 0.10, 5000, "too-big") // notional 500 is within limits; size 5000 > max position 1000
	stub := &stubStrategy{name: "stub", active: true, intent: buy}
	eng, _, gate := setupEngine(t, []strategy.Strategy{stub})

	eng.tick(context.Background())

	if _, ok := gate.GetPosition("yes"); ok {
		t.Error("expected the oversized intent to be rejected, not recorded")
	}
}

func TestArbitrageIntentRecordsBothLegs(t *testing.T) {
	t.Parallel()
	arb := strategy.NewArbitrageIntent("yes", "no", 0.45, 0.50, 0.04, 50)
	stub := &stubStrategy{name: "stub", active: true, intent: arb}
	eng, _, gate := setupEngine(t, []strategy.Strategy{stub})

	eng.tick(context.Background())

	yesPos, yesOk := gate.GetPosition("yes")
	noPos, noOk := gate.GetPosition("no")
	if !yesOk || !noOk {
		t.Fatal("expected both legs to record positions")
	}
	if yesPos.Size != 50 || noPos.Size != 50 {
		t.Errorf("leg sizes = %v/%v, want 50/50", yesPos.Size, noPos.Size)
	}
	if gate.DailyPnL() <= 0 {
		t.Errorf("DailyPnL() = %v, want positive locked-in edge", gate.DailyPnL())
	}
}

func TestRunExitsOnContextCancel(t *testing.T) {
	t.Parallel()
	eng, _, _ := setupEngine(t, nil)
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	err := eng.Run(ctx)
	if err == nil {
		t.Error("expected Run to return the context's cancellation error")
	}
}
