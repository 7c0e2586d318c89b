package strategy

import "polymarket-arb/internal/market"

// feeRateFixed1Pct is the Clipper strategy's fixed fee estimate, matching
// original_source/engine/src/strategy/clipper.rs exactly — it does not read
// a configurable fee_rate the way SumTo100 does.
const feeRateFixed1Pct = 0.01

// ClipperConfig configures the Clipper strategy.
type ClipperConfig struct {
	Enabled     bool
	MinProfit   float64
	MaxPosition float64
	MaxNotional float64
}

// ClipperStrategy is the same sum-to-100 shape as SumTo100Strategy but
// looks only at top-of-book, trading latency for simplicity (spec §4.4:
// "same shape with top-of-book only").
type ClipperStrategy struct {
	cfg ClipperConfig
}

// NewClipperStrategy builds a Clipper strategy.
func NewClipperStrategy(cfg ClipperConfig) *ClipperStrategy {
	return &ClipperStrategy{cfg: cfg}
}

// Name identifies this strategy.
func (c *ClipperStrategy) Name() string { return "Clipper" }

// IsActive reports the strategy's enable flag.
func (c *ClipperStrategy) IsActive() bool { return c.cfg.Enabled }

// Evaluate walks every registered pair's top-of-book and returns the first
// pair clearing min_profit as an Arbitrage intent.
func (c *ClipperStrategy) Evaluate(store *market.Store) (TradeIntent, bool) {
	for _, pair := range store.GetAllPairs() {
		yesAsk, ok := store.GetBestAsk(pair.YesToken)
		if !ok {
			continue
		}
		noAsk, ok := store.GetBestAsk(pair.NoToken)
		if !ok {
			continue
		}

		totalCost := yesAsk + noAsk
		profitPerShare := 1.0 - totalCost
		fees := totalCost * feeRateFixed1Pct
		netProfit := profitPerShare - fees

		if netProfit < c.cfg.MinProfit {
			continue
		}

		size := c.calculateSize(yesAsk, noAsk)
		return NewArbitrageIntent(pair.YesToken, pair.NoToken, yesAsk, noAsk, netProfit, size), true
	}
	return TradeIntent{}, false
}

func (c *ClipperStrategy) calculateSize(yesAsk, noAsk float64) float64 {
	sharesAffordable := c.cfg.MaxNotional / (yesAsk + noAsk)
	size := c.cfg.MaxPosition
	if sharesAffordable < size {
		size = sharesAffordable
	}
	return size
}
