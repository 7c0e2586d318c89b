package execution

import (
	"testing"

	"polymarket-arb/internal/market"
)

func setupPairWithBooks(t *testing.T) *market.Store {
	t.Helper()
	store := market.NewStore()
	store.RegisterPair(market.MarketPair{MarketID: "test", YesToken: "yes", NoToken: "no", Question: "Test?"})
	store.UpdateOrderBook("yes", nil, []market.DepthLevel{market.NewDepthLevel(0.45, 100)})
	store.UpdateOrderBook("no", nil, []market.DepthLevel{market.NewDepthLevel(0.50, 100)})
	return store
}

func TestSimulateBuyMatchesVwap(t *testing.T) {
	t.Parallel()
	store := setupPairWithBooks(t)
	trader := NewPaperTrader(0.01)

	fill, ok := trader.SimulateBuy(store, "yes", 50.0)
	if !ok {
		t.Fatal("expected a simulated fill")
	}
	if diff := fill.Price - 0.45; diff > 0.001 || diff < -0.001 {
		t.Errorf("Price = %v, want 0.45", fill.Price)
	}
	if diff := fill.Size - 50.0; diff > 0.001 || diff < -0.001 {
		t.Errorf("Size = %v, want 50.0", fill.Size)
	}
}

func TestSimulateBuyMissingBookFails(t *testing.T) {
	t.Parallel()
	store := market.NewStore()
	trader := NewPaperTrader(0.01)
	if _, ok := trader.SimulateBuy(store, "nope", 10.0); ok {
		t.Error("expected no fill for a token with no book")
	}
}

func TestSimulateArbTradeLocksProfit(t *testing.T) {
	t.Parallel()
	store := setupPairWithBooks(t)
	trader := NewPaperTrader(0.01)

	trade, ok := trader.SimulateArbTrade(store, "yes", "no", 50.0)
	if !ok {
		t.Fatal("expected an arb trade")
	}
	// 50 shares * ($1 - $0.95) = $2.50 gross profit
	if trade.GrossProfit <= 0 {
		t.Errorf("GrossProfit = %v, want positive", trade.GrossProfit)
	}
	if trade.NetProfit <= 0 {
		t.Errorf("NetProfit = %v, want positive", trade.NetProfit)
	}
	if trader.GetPnL() <= 0 {
		t.Errorf("GetPnL() = %v, want positive", trader.GetPnL())
	}
	if trader.GetTradeCount() != 1 {
		t.Errorf("GetTradeCount() = %v, want 1", trader.GetTradeCount())
	}
}

func TestGetStatsEmptyBeforeAnyTrade(t *testing.T) {
	t.Parallel()
	trader := NewPaperTrader(0.01)
	stats := trader.GetStats()
	if stats.TradeCount != 0 {
		t.Errorf("TradeCount = %v, want 0", stats.TradeCount)
	}
}

func TestResetClearsState(t *testing.T) {
	t.Parallel()
	store := setupPairWithBooks(t)
	trader := NewPaperTrader(0.01)
	trader.SimulateArbTrade(store, "yes", "no", 50.0)

	trader.Reset()
	if trader.GetPnL() != 0 || trader.GetTradeCount() != 0 || len(trader.GetArbTrades()) != 0 {
		t.Error("expected trader state fully reset")
	}
}
