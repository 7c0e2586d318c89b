package strategy

import (
	"sync/atomic"
	"time"

	"polymarket-arb/internal/analysis"
	"polymarket-arb/internal/market"
)

// SumTo100Config configures the SumTo100 strategy; fields mirror
// analysis.Config plus the enable flag and a paper-trading flag. PaperTrading
// is carried from config but not read by the strategy or the executor; the
// executor's own DryRun setting decides paper fills.
type SumTo100Config struct {
	Enabled       bool
	MinEdge       float64
	MaxPosition   float64
	MaxNotional   float64
	MinLiquidity  float64
	FeeRate       float64
	PaperTrading  bool
	MaxBookAgeMs  int64
}

// SumTo100Strategy applies analysis.SumDeviationAnalyzer and emits the
// single highest-edge opportunity as an Arbitrage intent, rate-limited
// independently of the engine's own tick cadence.
type SumTo100Strategy struct {
	cfg      SumTo100Config
	analyzer *analysis.SumDeviationAnalyzer

	lastEvalNs     atomic.Int64
	minIntervalNs  int64
}

// NewSumTo100Strategy builds a SumTo100 strategy with a 100ms minimum
// interval between evaluations (spec §4.4), independent of the Strategy
// Engine's own cadence.
func NewSumTo100Strategy(cfg SumTo100Config) *SumTo100Strategy {
	return &SumTo100Strategy{
		cfg: cfg,
		analyzer: analysis.NewSumDeviationAnalyzer(analysis.Config{
			MinEdge:      cfg.MinEdge,
			MaxPosition:  cfg.MaxPosition,
			MaxNotional:  cfg.MaxNotional,
			MinLiquidity: cfg.MinLiquidity,
			FeeRate:      cfg.FeeRate,
			MaxBookAgeMs: cfg.MaxBookAgeMs,
		}),
		minIntervalNs: int64(100 * time.Millisecond),
	}
}

// Name identifies this strategy in logs, metrics labels, and broadcast
// payloads.
func (s *SumTo100Strategy) Name() string { return "SumTo100" }

// IsActive reports the strategy's enable flag.
func (s *SumTo100Strategy) IsActive() bool { return s.cfg.Enabled }

// Evaluate applies the SumDeviation analyzer and, rate limit permitting,
// returns the best-edge opportunity as an Arbitrage intent.
func (s *SumTo100Strategy) Evaluate(store *market.Store) (TradeIntent, bool) {
	now := time.Now().UnixNano()
	last := s.lastEvalNs.Load()
	if satSubNs(now, last) < s.minIntervalNs {
		return TradeIntent{}, false
	}
	s.lastEvalNs.Store(now)

	opps := s.analyzer.Analyze(store)
	if len(opps) == 0 {
		return TradeIntent{}, false
	}

	best := opps[0]
	return NewArbitrageIntent(best.YesToken, best.NoToken, best.YesVwap.Vwap, best.NoVwap.Vwap, best.Edge, best.RecommendedSize), true
}

func satSubNs(a, b int64) int64 {
	if a < b {
		return 0
	}
	return a - b
}
