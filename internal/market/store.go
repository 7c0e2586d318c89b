// Package market owns the concurrent order-book fabric at the center of the
// trading core: per-token order books, derived top-of-book summaries, a
// bounded price history, and the market-pair registry that binds a market
// to its YES and NO tokens.
//
// Writers (the feed handler) replace a whole book per write; readers
// (analyzers, strategies) take a snapshot clone and never observe a torn
// value. Concurrency is a plain sync.RWMutex guarding plain maps — grounded
// on the teacher's internal/market/book.go idiom, since no concurrent-map
// library appears anywhere in the example pack to ground a lock-free
// alternative on.
package market

import (
	"sort"
	"sync"
	"sync/atomic"
	"time"
)

// DepthLevel is a single resting price/size pair. Price is expected in
// [0, 1] and Size > 0; the feed handler is responsible for filtering
// anything else out before it reaches the store.
type DepthLevel struct {
	Price float64
	Size  float64
}

// NewDepthLevel is a small constructor used by tests and analyzers that
// build synthetic books.
func NewDepthLevel(price, size float64) DepthLevel {
	return DepthLevel{Price: price, Size: size}
}

// OrderBook is the full depth for one token. Bids are ordered descending by
// price, asks ascending; both invariants are enforced by UpdateOrderBook
// sorting its inputs before storing them, so a caller supplying data out of
// order still gets a well-formed book rather than a rejected update — the
// feed handler additionally validates and drops ill-formed levels before
// they ever reach here (spec: "ill-ordered inputs are the feed's
// responsibility").
type OrderBook struct {
	TokenID     string
	Bids        []DepthLevel
	Asks        []DepthLevel
	TimestampNs int64
}

// clone returns a defensive copy safe to hand to a reader outside the lock.
func (b *OrderBook) clone() *OrderBook {
	if b == nil {
		return nil
	}
	out := &OrderBook{
		TokenID:     b.TokenID,
		TimestampNs: b.TimestampNs,
		Bids:        make([]DepthLevel, len(b.Bids)),
		Asks:        make([]DepthLevel, len(b.Asks)),
	}
	copy(out.Bids, b.Bids)
	copy(out.Asks, b.Asks)
	return out
}

// BestBid returns the top bid, or (0, false) if there are none.
func (b *OrderBook) BestBid() (float64, bool) {
	if len(b.Bids) == 0 {
		return 0, false
	}
	return b.Bids[0].Price, true
}

// BestAsk returns the top ask, or (0, false) if there are none.
func (b *OrderBook) BestAsk() (float64, bool) {
	if len(b.Asks) == 0 {
		return 0, false
	}
	return b.Asks[0].Price, true
}

// TotalBidSize sums size across all bid levels.
func (b *OrderBook) TotalBidSize() float64 {
	var total float64
	for _, l := range b.Bids {
		total += l.Size
	}
	return total
}

// TotalAskSize sums size across all ask levels.
func (b *OrderBook) TotalAskSize() float64 {
	var total float64
	for _, l := range b.Asks {
		total += l.Size
	}
	return total
}

// VwapResult is the outcome of walking one side of a book to a target size.
// Undefined (returns nil) when targetSize <= 0 or the relevant side is
// empty.
type VwapResult struct {
	Vwap       float64
	TotalSize  float64
	LevelsUsed int
}

// VwapBuy walks the ask side (ascending price) to fill targetSize, exactly
// as the feed's asks are stored: best price first.
func (b *OrderBook) VwapBuy(targetSize float64) *VwapResult {
	return vwapWalk(b.Asks, targetSize)
}

// VwapSell walks the bid side (descending price) to fill targetSize.
func (b *OrderBook) VwapSell(targetSize float64) *VwapResult {
	return vwapWalk(b.Bids, targetSize)
}

func vwapWalk(levels []DepthLevel, targetSize float64) *VwapResult {
	if len(levels) == 0 || targetSize <= 0 {
		return nil
	}

	remaining := targetSize
	var totalCost, totalFilled float64
	levelsUsed := 0

	for _, lvl := range levels {
		if remaining <= 0 {
			break
		}
		take := remaining
		if lvl.Size < take {
			take = lvl.Size
		}
		totalCost += take * lvl.Price
		totalFilled += take
		remaining -= take
		levelsUsed++
	}

	if totalFilled == 0 {
		return nil
	}

	return &VwapResult{
		Vwap:       totalCost / totalFilled,
		TotalSize:  totalFilled,
		LevelsUsed: levelsUsed,
	}
}

// PriceLevel is the cheap top-of-book summary derived redundantly from an
// OrderBook so hot-path readers (strategies) need not walk the full book
// just to read mid/spread.
type PriceLevel struct {
	BestBid     float64
	BestAsk     float64
	Mid         float64
	Spread      float64
	TimestampNs int64
}

func newPriceLevel(bid, ask float64, ts int64) PriceLevel {
	return PriceLevel{
		BestBid:     bid,
		BestAsk:     ask,
		Mid:         (bid + ask) / 2,
		Spread:      ask - bid,
		TimestampNs: ts,
	}
}

// PriceTick is one history sample: a mid price stamped with the wall-clock
// time it was observed.
type PriceTick struct {
	Mid         float64
	TimestampNs int64
}

// MarketPair binds a MarketId to its YES/NO tokens and question text.
// Registration (Store.RegisterPair) is idempotent: re-registering the same
// pair overwrites the prior entry without duplicating token→market links.
type MarketPair struct {
	MarketID string
	YesToken string
	NoToken  string
	Question string
}

// Store is the concurrent Market Store. Zero value is not usable; build one
// with NewStore.
type Store struct {
	mu sync.RWMutex

	orderBooks  map[string]*OrderBook
	priceLevels map[string]*PriceLevel
	history     map[string][]PriceTick

	pairs         map[string]MarketPair // marketID -> pair
	tokenToMarket map[string]string     // tokenID -> marketID

	maxHistorySize int
	lastUpdateNs   atomic.Int64
}

// DefaultHistorySize is the ring-buffer capacity spec §3 names as default.
const DefaultHistorySize = 1024

// NewStore creates an empty Market Store with the default history
// capacity.
func NewStore() *Store {
	return NewStoreWithHistorySize(DefaultHistorySize)
}

// NewStoreWithHistorySize creates an empty Market Store with a custom
// per-token history ring capacity.
func NewStoreWithHistorySize(maxHistorySize int) *Store {
	return &Store{
		orderBooks:     make(map[string]*OrderBook),
		priceLevels:    make(map[string]*PriceLevel),
		history:        make(map[string][]PriceTick),
		pairs:          make(map[string]MarketPair),
		tokenToMarket:  make(map[string]string),
		maxHistorySize: maxHistorySize,
	}
}

func nowNs() int64 {
	return time.Now().UnixNano()
}

// UpdateOrderBook replaces both sides of a token's book, stamps the
// timestamp, and bumps the store's global last-update clock. Callers are
// expected to hand in already-validated levels (price finite in [0,1], size
// finite > 0) — this method sorts them into the required ordering but does
// not itself reject malformed input, matching spec §4.1's "no panics on
// empty, zero, or ill-ordered inputs" contract.
func (s *Store) UpdateOrderBook(token string, bids, asks []DepthLevel) {
	sortedBids := append([]DepthLevel(nil), bids...)
	sortedAsks := append([]DepthLevel(nil), asks...)
	sort.Slice(sortedBids, func(i, j int) bool { return sortedBids[i].Price > sortedBids[j].Price })
	sort.Slice(sortedAsks, func(i, j int) bool { return sortedAsks[i].Price < sortedAsks[j].Price })

	ts := nowNs()
	book := &OrderBook{
		TokenID:     token,
		Bids:        sortedBids,
		Asks:        sortedAsks,
		TimestampNs: ts,
	}

	s.mu.Lock()
	s.orderBooks[token] = book
	s.mu.Unlock()

	s.lastUpdateNs.Store(ts)
}

// UpdateTopOfBook replaces the derived PriceLevel summary for a token and
// appends a PriceTick to its history, trimming the oldest entry once the
// ring is at capacity.
func (s *Store) UpdateTopOfBook(token string, bid, ask float64) {
	ts := nowNs()
	pl := newPriceLevel(bid, ask, ts)

	s.mu.Lock()
	s.priceLevels[token] = &pl
	s.addToHistory(token, PriceTick{Mid: pl.Mid, TimestampNs: ts})
	s.mu.Unlock()

	s.lastUpdateNs.Store(ts)
}

// addToHistory must be called with s.mu held for writing.
func (s *Store) addToHistory(token string, tick PriceTick) {
	h := append(s.history[token], tick)
	if len(h) > s.maxHistorySize {
		h = h[len(h)-s.maxHistorySize:]
	}
	s.history[token] = h
}

// GetOrderBook returns a snapshot clone of a token's order book, or
// (nil, false) if none has been written yet.
func (s *Store) GetOrderBook(token string) (*OrderBook, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	b, ok := s.orderBooks[token]
	if !ok {
		return nil, false
	}
	return b.clone(), true
}

// GetTopOfBook returns the derived PriceLevel summary for a token.
func (s *Store) GetTopOfBook(token string) (PriceLevel, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	pl, ok := s.priceLevels[token]
	if !ok {
		return PriceLevel{}, false
	}
	return *pl, true
}

// GetBestBid returns the best bid for a token read from the derived
// PriceLevel summary (cheap — no book walk).
func (s *Store) GetBestBid(token string) (float64, bool) {
	pl, ok := s.GetTopOfBook(token)
	if !ok {
		return 0, false
	}
	return pl.BestBid, true
}

// GetBestAsk returns the best ask for a token read from the derived
// PriceLevel summary.
func (s *Store) GetBestAsk(token string) (float64, bool) {
	pl, ok := s.GetTopOfBook(token)
	if !ok {
		return 0, false
	}
	return pl.BestAsk, true
}

// RegisterPair inserts the pair keyed by MarketID and links both its tokens
// to that market. Re-registering the same pair is idempotent: map
// assignment simply overwrites, so no token→market link is ever
// duplicated.
func (s *Store) RegisterPair(pair MarketPair) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pairs[pair.MarketID] = pair
	s.tokenToMarket[pair.YesToken] = pair.MarketID
	s.tokenToMarket[pair.NoToken] = pair.MarketID
}

// GetPair looks up a registered pair by market ID.
func (s *Store) GetPair(marketID string) (MarketPair, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.pairs[marketID]
	return p, ok
}

// GetComplement returns the other token in a token's market pair.
func (s *Store) GetComplement(token string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	marketID, ok := s.tokenToMarket[token]
	if !ok {
		return "", false
	}
	pair, ok := s.pairs[marketID]
	if !ok {
		return "", false
	}
	if pair.YesToken == token {
		return pair.NoToken, true
	}
	return pair.YesToken, true
}

// GetAllPairs returns every registered pair. Order is not guaranteed.
func (s *Store) GetAllPairs() []MarketPair {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]MarketPair, 0, len(s.pairs))
	for _, p := range s.pairs {
		out = append(out, p)
	}
	return out
}

// GetSportsMarkets returns candidate sports markets for the Sniper
// strategy. In scope there is no distinct "sports market" subset of the
// registry — spec §4.4 treats candidate selection as external, so this
// returns every registered pair, the same stance original_source's
// get_sports_markets stub takes pending a real sports-market classifier.
func (s *Store) GetSportsMarkets() []MarketPair {
	return s.GetAllPairs()
}

// TokenCount returns the number of tokens with an order book entry.
func (s *Store) TokenCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.orderBooks)
}

// MarketCount returns the number of registered market pairs.
func (s *Store) MarketCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.pairs)
}

// OrderBookCount returns the number of tokens with an order book entry
// (distinct from TokenCount only in name, kept for parity with the
// /health response's separate "order_books" field).
func (s *Store) OrderBookCount() int {
	return s.TokenCount()
}

// HasData reports whether any price data has been written yet. Used by the
// Strategy Engine to gate evaluation until the feed has produced at least
// one update.
func (s *Store) HasData() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.priceLevels) > 0 || len(s.orderBooks) > 0
}

// GetHistory returns a copy of a token's price-tick history.
func (s *Store) GetHistory(token string) []PriceTick {
	s.mu.RLock()
	defer s.mu.RUnlock()
	h := s.history[token]
	out := make([]PriceTick, len(h))
	copy(out, h)
	return out
}

// IsPriceStable reports whether the last n history ticks for a token all
// lie within tol of their mean. Returns false if fewer than n ticks exist.
func (s *Store) IsPriceStable(token string, n int, tol float64) bool {
	hist := s.GetHistory(token)
	if len(hist) < n || n <= 0 {
		return false
	}
	recent := hist[len(hist)-n:]

	var sum float64
	for _, t := range recent {
		sum += t.Mid
	}
	mean := sum / float64(len(recent))

	for _, t := range recent {
		d := t.Mid - mean
		if d < 0 {
			d = -d
		}
		if d > tol {
			return false
		}
	}
	return true
}

// LastUpdateNs returns the wall-clock nanosecond timestamp of the most
// recent write to any token, 0 if nothing has been written yet.
func (s *Store) LastUpdateNs() int64 {
	return s.lastUpdateNs.Load()
}

// IsStale reports whether an OrderBook's timestamp is older than maxAgeNs
// relative to the current wall clock. Uses a saturating subtraction so
// clock skew (now < book timestamp) never produces a negative age that
// could otherwise be misread — spec §9's timestamp discipline.
func IsStale(book *OrderBook, maxAgeNs int64) bool {
	if book == nil {
		return true
	}
	return satSubNs(nowNs(), book.TimestampNs) > maxAgeNs
}

// satSubNs computes a-b, clamped to 0 when the result would be negative.
func satSubNs(a, b int64) int64 {
	if a < b {
		return 0
	}
	return a - b
}
