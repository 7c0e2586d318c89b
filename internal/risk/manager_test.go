package risk

import (
	"log/slog"
	"os"
	"testing"

	"polymarket-arb/internal/strategy"
)

func testConfig() Config {
	return Config{
		MaxPosition:  100.0,
		MaxNotional:  1000.0,
		MaxDailyLoss: 500.0,
	}
}

func newTestGate() *Gate {
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
	return NewGate(testConfig(), logger, nil)
}

func TestCheckIntentBuyWithinLimits(t *testing.T) {
	t.Parallel()
	g := newTestGate()
	intent := strategy.NewBuyIntent("token1", 0.50, 50.0, "test")
	if !g.CheckIntent(intent) {
		t.Error("expected intent to be admitted")
	}
}

func TestCheckIntentBuyExceedsPosition(t *testing.T) {
	t.Parallel()
	g := newTestGate()

	first := strategy.NewBuyIntent("token1", 0.50, 80.0, "test")
	if !g.CheckIntent(first) {
		t.Fatal("expected first buy to be admitted")
	}
	g.RecordTrade(first)

	second := strategy.NewBuyIntent("token1", 0.50, 30.0, "test") // 80+30 > 100
	if g.CheckIntent(second) {
		t.Error("expected second buy to be rejected for exceeding position limit")
	}
}

func TestCheckIntentSellWithoutPositionRejected(t *testing.T) {
	t.Parallel()
	g := newTestGate()
	sell := strategy.NewSellIntent("token1", 0.50, 10.0, "test")
	if g.CheckIntent(sell) {
		t.Error("expected sell with no prior position to be rejected")
	}
}

func TestCheckIntentNotionalLimit(t *testing.T) {
	t.Parallel()
	g := newTestGate()
	intent := strategy.NewBuyIntent("token1", 0.99, 2000.0, "test") // notional ~1980 > 1000
	if g.CheckIntent(intent) {
		t.Error("expected intent over notional limit to be rejected")
	}
}

func TestCheckIntentArbitrageSizeLimit(t *testing.T) {
	t.Parallel()
	g := newTestGate()
	intent := strategy.NewArbitrageIntent("yes", "no", 0.40, 0.50, 0.05, 150.0) // size > MaxPosition
	if g.CheckIntent(intent) {
		t.Error("expected oversized arbitrage intent to be rejected")
	}
}

func TestDailyPnLTracking(t *testing.T) {
	t.Parallel()
	g := newTestGate()

	buy := strategy.NewBuyIntent("token1", 0.50, 10.0, "test")
	g.RecordTrade(buy)

	sell := strategy.NewSellIntent("token1", 0.60, 10.0, "test")
	g.RecordTrade(sell)

	// PnL should be (0.60 - 0.50) * 10 = $1.00
	if diff := g.DailyPnL() - 1.0; diff > 0.001 || diff < -0.001 {
		t.Errorf("DailyPnL() = %v, want 1.0", g.DailyPnL())
	}
	if g.DailyTrades() != 2 {
		t.Errorf("DailyTrades() = %v, want 2", g.DailyTrades())
	}
}

func TestArbitrageLocksInProfit(t *testing.T) {
	t.Parallel()
	g := newTestGate()
	intent := strategy.NewArbitrageIntent("yes", "no", 0.45, 0.50, 0.04, 100.0)
	g.RecordTrade(intent)

	if diff := g.DailyPnL() - 4.0; diff > 0.001 || diff < -0.001 {
		t.Errorf("DailyPnL() = %v, want 4.0", g.DailyPnL())
	}

	yesPos, ok := g.GetPosition("yes")
	if !ok || yesPos.Size != 100.0 || yesPos.AvgCost != 0.45 {
		t.Errorf("yes position = %+v, want size=100 avg_cost=0.45", yesPos)
	}
}

func TestEmergencyStopRejectsAllIntents(t *testing.T) {
	t.Parallel()
	g := newTestGate()
	intent := strategy.NewBuyIntent("token1", 0.50, 50.0, "test")

	if g.IsEmergencyStopped() {
		t.Fatal("expected emergency stop to start inactive")
	}
	if !g.CheckIntent(intent) {
		t.Fatal("expected intent to pass before emergency stop")
	}

	g.EmergencyStop("test halt")
	if !g.IsEmergencyStopped() {
		t.Error("expected emergency stop to be active")
	}
	if g.CheckIntent(intent) {
		t.Error("expected intent to be rejected during emergency stop")
	}

	g.ClearEmergencyStop()
	if g.IsEmergencyStopped() {
		t.Error("expected emergency stop to be cleared")
	}
	if !g.CheckIntent(intent) {
		t.Error("expected intent to pass again after clearing emergency stop")
	}
}

func TestDailyLossLimitRejectsFurtherBuys(t *testing.T) {
	t.Parallel()
	g := newTestGate()

	buy := strategy.NewBuyIntent("token1", 0.90, 1000.0, "test")
	g.RecordTrade(buy)
	sell := strategy.NewSellIntent("token1", 0.0, 1000.0, "test") // full loss: -$900
	g.RecordTrade(sell)

	if g.DailyPnL() > -g.cfg.MaxDailyLoss {
		t.Fatalf("test setup invalid: pnl %v did not breach max daily loss %v", g.DailyPnL(), g.cfg.MaxDailyLoss)
	}

	next := strategy.NewBuyIntent("token2", 0.50, 10.0, "test")
	if g.CheckIntent(next) {
		t.Error("expected intent to be rejected once daily loss limit is breached")
	}
}

func TestResetDailyClearsStats(t *testing.T) {
	t.Parallel()
	g := newTestGate()
	g.RecordTrade(strategy.NewBuyIntent("token1", 0.5, 10, "test"))
	g.RecordTrade(strategy.NewSellIntent("token1", 0.6, 10, "test"))

	g.ResetDaily()
	if g.DailyPnL() != 0 || g.DailyTrades() != 0 || g.DailyVolume() != 0 {
		t.Errorf("expected all daily stats reset, got pnl=%v trades=%v volume=%v",
			g.DailyPnL(), g.DailyTrades(), g.DailyVolume())
	}
}

func TestOnRejectCallbackInvoked(t *testing.T) {
	t.Parallel()
	var got RejectReason
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
	g := NewGate(testConfig(), logger, func(r RejectReason) { got = r })

	g.EmergencyStop("test")
	g.CheckIntent(strategy.NewBuyIntent("t", 0.5, 1, "test"))

	if got != RejectEmergencyStop {
		t.Errorf("onReject reason = %v, want %v", got, RejectEmergencyStop)
	}
}

func TestStopChSignalsTransitions(t *testing.T) {
	t.Parallel()
	g := newTestGate()

	g.EmergencyStop("halt")
	select {
	case sig := <-g.StopCh():
		if !sig.Active {
			t.Error("expected Active=true on emergency stop signal")
		}
	default:
		t.Error("expected a StopSignal to be queued")
	}

	g.ClearEmergencyStop()
	select {
	case sig := <-g.StopCh():
		if sig.Active {
			t.Error("expected Active=false on clear signal")
		}
	default:
		t.Error("expected a StopSignal to be queued on clear")
	}
}
