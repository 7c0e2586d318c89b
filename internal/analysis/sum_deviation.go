// Package analysis implements pure functions over the Market Store that
// rank arbitrage opportunities. SumDeviation is the one algorithm spelled
// out in detail (spec §4.3); it is grounded line-for-line on
// original_source/engine/src/analysis/sum_deviation.rs.
package analysis

import (
	"sort"

	"polymarket-arb/internal/market"
)

// Config holds the tunables for SumDeviation, mirroring the teacher's
// per-strategy config blocks (field names chosen to match SPEC_FULL.md's
// configuration surface).
type Config struct {
	MinEdge      float64
	MaxPosition  float64
	MaxNotional  float64
	MinLiquidity float64
	FeeRate      float64
	MaxBookAgeMs int64
}

// Opportunity is one ranked sum-to-100 candidate.
type Opportunity struct {
	MarketID         string
	YesToken         string
	NoToken          string
	YesVwap          market.VwapResult
	NoVwap           market.VwapResult
	Sum              float64
	Edge             float64
	RecommendedSize  float64
	Confidence       float64
}

// SumDeviationAnalyzer finds sum-to-100 arbitrage opportunities across every
// registered market pair.
type SumDeviationAnalyzer struct {
	cfg Config
}

// NewSumDeviationAnalyzer builds an analyzer from the given config.
func NewSumDeviationAnalyzer(cfg Config) *SumDeviationAnalyzer {
	return &SumDeviationAnalyzer{cfg: cfg}
}

// Analyze scans every registered pair and returns opportunities sorted by
// edge descending. Ties are broken by the map iteration order the pairs
// happened to be visited in — spec §4.3 leaves this undefined.
func (a *SumDeviationAnalyzer) Analyze(store *market.Store) []Opportunity {
	pairs := store.GetAllPairs()
	out := make([]Opportunity, 0, len(pairs))

	for _, pair := range pairs {
		if opp, ok := a.analyzePair(store, pair); ok {
			out = append(out, opp)
		}
	}

	sort.SliceStable(out, func(i, j int) bool { return out[i].Edge > out[j].Edge })
	return out
}

func (a *SumDeviationAnalyzer) analyzePair(store *market.Store, pair market.MarketPair) (Opportunity, bool) {
	yesBook, ok := store.GetOrderBook(pair.YesToken)
	if !ok {
		return Opportunity{}, false
	}
	noBook, ok := store.GetOrderBook(pair.NoToken)
	if !ok {
		return Opportunity{}, false
	}

	maxAgeNs := a.cfg.MaxBookAgeMs * 1_000_000
	if market.IsStale(yesBook, maxAgeNs) || market.IsStale(noBook, maxAgeNs) {
		return Opportunity{}, false
	}

	yesVwap := yesBook.VwapBuy(a.cfg.MaxPosition)
	if yesVwap == nil {
		return Opportunity{}, false
	}
	noVwap := noBook.VwapBuy(a.cfg.MaxPosition)
	if noVwap == nil {
		return Opportunity{}, false
	}

	if yesVwap.TotalSize < a.cfg.MinLiquidity || noVwap.TotalSize < a.cfg.MinLiquidity {
		return Opportunity{}, false
	}

	sum := yesVwap.Vwap + noVwap.Vwap
	edge := 1.0 - sum - a.cfg.FeeRate
	if edge < a.cfg.MinEdge {
		return Opportunity{}, false
	}

	maxFillable := yesVwap.TotalSize
	if noVwap.TotalSize < maxFillable {
		maxFillable = noVwap.TotalSize
	}

	recommendedSize := maxFillable
	if a.cfg.MaxPosition < recommendedSize {
		recommendedSize = a.cfg.MaxPosition
	}
	if byNotional := a.cfg.MaxNotional / sum; byNotional < recommendedSize {
		recommendedSize = byNotional
	}

	// Confidence rescales liquidity_ratio (fillable/target) so 1x target
	// size maps to 0.5 and 2x (or more) maps to 1.0.
	liquidityRatio := maxFillable / a.cfg.MaxPosition
	confidence := liquidityRatio
	if confidence > 2.0 {
		confidence = 2.0
	}
	confidence = confidence / 2.0
	if confidence > 1.0 {
		confidence = 1.0
	}

	return Opportunity{
		MarketID:        pair.MarketID,
		YesToken:        pair.YesToken,
		NoToken:         pair.NoToken,
		YesVwap:         *yesVwap,
		NoVwap:          *noVwap,
		Sum:             sum,
		Edge:            edge,
		RecommendedSize: recommendedSize,
		Confidence:      confidence,
	}, true
}
