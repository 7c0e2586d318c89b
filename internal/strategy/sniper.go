package strategy

import (
	"context"
	"fmt"
	"sync"

	"polymarket-arb/internal/market"
	"polymarket-arb/internal/sportsfeed"
)

// SniperConfig configures the Sniper strategy.
type SniperConfig struct {
	Enabled   bool
	MinPrice  float64
	MaxPrice  float64
	MinProfit float64
	OrderSize float64
}

// SniperStrategy buys stale winning outcomes reported by an external
// sports-results feed. Per spec §9's open question, the winning token is
// always an explicit input from the injected ResultsFeed — this strategy
// never assumes the YES leg won, unlike original_source's stubbed
// pass-through of pair.yes_token.
type SniperStrategy struct {
	cfg  SniperConfig
	feed sportsfeed.ResultsFeed

	mu     sync.Mutex
	sniped map[string]bool // game IDs already acted on
}

// NewSniperStrategy builds a Sniper strategy backed by a ResultsFeed.
func NewSniperStrategy(cfg SniperConfig, feed sportsfeed.ResultsFeed) *SniperStrategy {
	return &SniperStrategy{
		cfg:    cfg,
		feed:   feed,
		sniped: make(map[string]bool),
	}
}

// Name identifies this strategy.
func (s *SniperStrategy) Name() string { return "Sniper" }

// IsActive reports the strategy's enable flag.
func (s *SniperStrategy) IsActive() bool { return s.cfg.Enabled }

// AlreadySniped reports whether a game has already produced a Buy intent.
func (s *SniperStrategy) AlreadySniped(gameID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sniped[gameID]
}

func (s *SniperStrategy) markSniped(gameID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sniped[gameID] = true
}

// Evaluate polls the injected ResultsFeed for finished games and, for the
// first one not already acted on whose winning token is still underpriced,
// returns a Buy intent.
func (s *SniperStrategy) Evaluate(store *market.Store) (TradeIntent, bool) {
	games, err := s.feed.FinishedGames(context.Background())
	if err != nil {
		return TradeIntent{}, false
	}

	for _, g := range games {
		if s.AlreadySniped(g.GameID) {
			continue
		}
		if intent, ok := s.findOpportunity(store, g); ok {
			s.markSniped(g.GameID)
			return intent, true
		}
	}
	return TradeIntent{}, false
}

func (s *SniperStrategy) findOpportunity(store *market.Store, g sportsfeed.FinishedGame) (TradeIntent, bool) {
	ask, ok := store.GetBestAsk(g.WinningToken)
	if !ok {
		return TradeIntent{}, false
	}
	if ask < s.cfg.MinPrice || ask > s.cfg.MaxPrice {
		return TradeIntent{}, false
	}

	expectedProfit := 1.0 - ask
	if expectedProfit < s.cfg.MinProfit {
		return TradeIntent{}, false
	}

	reason := fmt.Sprintf("time_arb: EV $%.4f", expectedProfit)
	return NewBuyIntent(g.WinningToken, ask, s.cfg.OrderSize, reason), true
}
