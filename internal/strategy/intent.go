// Package strategy implements the stateless-over-market-data policies that
// turn analyzer output into trade intents: SumTo100, Clipper, and Sniper.
// Grounded on original_source/engine/src/strategy/{sum_to_100,clipper,sniper}.rs
// for the formulas, and on the teacher's internal/strategy/maker.go for the
// Go struct-plus-methods idiom (no teacher strategy shares a common
// interface since the teacher ships exactly one strategy — the Strategy
// interface here is grounded directly on the Rust trait, translated to
// idiomatic Go, per spec §9's "avoid implementation inheritance" note).
package strategy

import "polymarket-arb/internal/market"

// IntentKind tags which variant of TradeIntent a value holds.
type IntentKind string

const (
	IntentBuy       IntentKind = "BUY"
	IntentSell      IntentKind = "SELL"
	IntentArbitrage IntentKind = "ARBITRAGE"
)

// TradeIntent is the tagged union spec §3 names: Buy/Sell carry a single
// token, price, and size; Arbitrage carries both legs. Only the fields
// relevant to Kind are meaningful; the zero value of the others is unused.
type TradeIntent struct {
	Kind IntentKind

	// Buy / Sell fields.
	Token string
	Price float64

	// Arbitrage fields.
	YesToken     string
	NoToken      string
	YesPrice     float64
	NoPrice      float64
	EdgePerShare float64

	Size   float64
	Reason string
}

// NewBuyIntent builds a Buy TradeIntent.
func NewBuyIntent(token string, price, size float64, reason string) TradeIntent {
	return TradeIntent{Kind: IntentBuy, Token: token, Price: price, Size: size, Reason: reason}
}

// NewSellIntent builds a Sell TradeIntent.
func NewSellIntent(token string, price, size float64, reason string) TradeIntent {
	return TradeIntent{Kind: IntentSell, Token: token, Price: price, Size: size, Reason: reason}
}

// NewArbitrageIntent builds an Arbitrage TradeIntent.
func NewArbitrageIntent(yesToken, noToken string, yesPrice, noPrice, edgePerShare, size float64) TradeIntent {
	return TradeIntent{
		Kind:         IntentArbitrage,
		YesToken:     yesToken,
		NoToken:      noToken,
		YesPrice:     yesPrice,
		NoPrice:      noPrice,
		EdgePerShare: edgePerShare,
		Size:         size,
	}
}

// Notional is price·size for a single leg, or (yes_price+no_price)·size for
// an arbitrage intent (spec §3).
func (t TradeIntent) Notional() float64 {
	if t.Kind == IntentArbitrage {
		return (t.YesPrice + t.NoPrice) * t.Size
	}
	return t.Price * t.Size
}

// Strategy is the common capability every trading policy exposes. A small
// interface rather than a variant enum — both are acceptable per spec §9;
// Go's interfaces are the idiomatic choice here.
type Strategy interface {
	Name() string
	IsActive() bool
	Evaluate(store *market.Store) (TradeIntent, bool)
}
