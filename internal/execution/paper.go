package execution

import (
	"sync"
	"sync/atomic"
	"time"

	"polymarket-arb/internal/market"
)

// PaperFill is a simulated fill produced by walking the current order book.
type PaperFill struct {
	Token       string
	Side        string
	Price       float64
	Size        float64
	TimestampNs int64
}

// PaperArbTrade is a completed two-leg paper arbitrage trade.
type PaperArbTrade struct {
	YesFill     PaperFill
	NoFill      PaperFill
	GrossProfit float64
	NetProfit   float64
	TimestampNs int64
}

// PaperTraderStats summarizes accumulated paper-trading performance.
type PaperTraderStats struct {
	TradeCount         int
	WinningTrades       int
	TotalGrossProfit   float64
	TotalNetProfit     float64
	WinRate            float64
	AvgProfitPerTrade  float64
}

// PaperTrader simulates fills against live order book depth so a strategy
// can be validated with VWAP-realistic pricing before risking real capital.
// Running P&L is kept in integer microdollars (matching the Risk Gate's
// precision) rather than the original's cents, since this project's P&L
// accounting is already microdollar-scaled end to end.
type PaperTrader struct {
	mu        sync.RWMutex
	fills     []PaperFill
	arbTrades []PaperArbTrade

	totalPnLMicro atomic.Int64
	tradeCount    atomic.Uint64

	feeRate float64
}

// NewPaperTrader builds a paper trader charging feeRate on simulated
// arbitrage notional.
func NewPaperTrader(feeRate float64) *PaperTrader {
	return &PaperTrader{feeRate: feeRate}
}

func nowNs() int64 { return time.Now().UnixNano() }

// SimulateBuy walks the token's ask side for targetSize and records a fill
// at the resulting VWAP. Returns false if the book is missing or empty.
func (pt *PaperTrader) SimulateBuy(store *market.Store, token string, targetSize float64) (PaperFill, bool) {
	book, ok := store.GetOrderBook(token)
	if !ok {
		return PaperFill{}, false
	}
	vwap := book.VwapBuy(targetSize)
	if vwap == nil {
		return PaperFill{}, false
	}

	fill := PaperFill{
		Token:       token,
		Side:        "BUY",
		Price:       vwap.Vwap,
		Size:        vwap.TotalSize,
		TimestampNs: nowNs(),
	}

	pt.mu.Lock()
	pt.fills = append(pt.fills, fill)
	pt.mu.Unlock()

	return fill, true
}

// SimulateArbTrade simulates buying both legs of a sum-to-100 pair and
// records the locked-in profit. Returns false if either leg can't be
// simulated.
func (pt *PaperTrader) SimulateArbTrade(store *market.Store, yesToken, noToken string, targetSize float64) (PaperArbTrade, bool) {
	yesFill, ok := pt.SimulateBuy(store, yesToken, targetSize)
	if !ok {
		return PaperArbTrade{}, false
	}
	noFill, ok := pt.SimulateBuy(store, noToken, targetSize)
	if !ok {
		return PaperArbTrade{}, false
	}

	actualSize := yesFill.Size
	if noFill.Size < actualSize {
		actualSize = noFill.Size
	}

	totalCost := yesFill.Price*actualSize + noFill.Price*actualSize
	totalFees := totalCost * pt.feeRate
	grossProfit := actualSize - totalCost // 1 share YES + 1 share NO = $1
	netProfit := grossProfit - totalFees

	trade := PaperArbTrade{
		YesFill:     yesFill,
		NoFill:      noFill,
		GrossProfit: grossProfit,
		NetProfit:   netProfit,
		TimestampNs: nowNs(),
	}

	pt.mu.Lock()
	pt.arbTrades = append(pt.arbTrades, trade)
	pt.mu.Unlock()

	pt.totalPnLMicro.Add(int64(netProfit * microPerDollar))
	pt.tradeCount.Add(1)

	return trade, true
}

// FeeRate returns the fee rate charged on simulated arbitrage notional, for
// callers computing the equivalent live-order fee.
func (pt *PaperTrader) FeeRate() float64 { return pt.feeRate }

// GetPnL returns the running paper P&L in dollars.
func (pt *PaperTrader) GetPnL() float64 {
	return float64(pt.totalPnLMicro.Load()) / microPerDollar
}

// GetTradeCount returns the number of simulated arbitrage trades.
func (pt *PaperTrader) GetTradeCount() uint64 {
	return pt.tradeCount.Load()
}

// GetFills returns a snapshot copy of every simulated single-leg fill.
func (pt *PaperTrader) GetFills() []PaperFill {
	pt.mu.RLock()
	defer pt.mu.RUnlock()
	out := make([]PaperFill, len(pt.fills))
	copy(out, pt.fills)
	return out
}

// GetArbTrades returns a snapshot copy of every simulated arbitrage trade.
func (pt *PaperTrader) GetArbTrades() []PaperArbTrade {
	pt.mu.RLock()
	defer pt.mu.RUnlock()
	out := make([]PaperArbTrade, len(pt.arbTrades))
	copy(out, pt.arbTrades)
	return out
}

// GetStats summarizes accumulated paper-trading performance.
func (pt *PaperTrader) GetStats() PaperTraderStats {
	pt.mu.RLock()
	trades := make([]PaperArbTrade, len(pt.arbTrades))
	copy(trades, pt.arbTrades)
	pt.mu.RUnlock()

	if len(trades) == 0 {
		return PaperTraderStats{}
	}

	var totalGross, totalNet float64
	winning := 0
	for _, t := range trades {
		totalGross += t.GrossProfit
		totalNet += t.NetProfit
		if t.NetProfit > 0 {
			winning++
		}
	}

	return PaperTraderStats{
		TradeCount:        len(trades),
		WinningTrades:      winning,
		TotalGrossProfit:  totalGross,
		TotalNetProfit:    totalNet,
		WinRate:           float64(winning) / float64(len(trades)),
		AvgProfitPerTrade: totalNet / float64(len(trades)),
	}
}

// Reset clears all recorded fills, trades, and running P&L.
func (pt *PaperTrader) Reset() {
	pt.mu.Lock()
	pt.fills = nil
	pt.arbTrades = nil
	pt.mu.Unlock()
	pt.totalPnLMicro.Store(0)
	pt.tradeCount.Store(0)
}
