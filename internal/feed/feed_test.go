package feed

import (
	"log/slog"
	"os"
	"testing"
	"time"

	"polymarket-arb/internal/market"
	"polymarket-arb/pkg/types"
)

func newTestHandler(t *testing.T) *Handler {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
	return NewHandler("wss://example.invalid/ws", market.NewStore(), nil, logger)
}

func TestParsePriceRejectsOutOfRange(t *testing.T) {
	t.Parallel()
	cases := []struct {
		in string
		ok bool
	}{
		{"0.45", true},
		{"0.0", true},
		{"1.0", true},
		{"1.5", false},
		{"-0.1", false},
		{"not-a-number", false},
	}
	for _, c := range cases {
		_, ok := parsePrice(c.in)
		if ok != c.ok {
			t.Errorf("parsePrice(%q) ok = %v, want %v", c.in, ok, c.ok)
		}
	}
}

func TestParseLevelsDropsInvalid(t *testing.T) {
	t.Parallel()
	raw := []types.PriceLevel{
		{Price: "0.45", Size: "100"},
		{Price: "1.5", Size: "10"},    // out of range, dropped
		{Price: "0.40", Size: "0"},    // zero size, dropped
		{Price: "bad", Size: "10"},    // unparsable, dropped
		{Price: "0.30", Size: "50"},
	}
	levels := parseLevels(raw)
	if len(levels) != 2 {
		t.Fatalf("len(levels) = %v, want 2", len(levels))
	}
}

func TestHandleBookUpdatesStore(t *testing.T) {
	t.Parallel()
	h := newTestHandler(t)
	msg := []byte(`{"type":"book","asset_id":"tok1","bids":[{"price":"0.44","size":"100"}],"asks":[{"price":"0.45","size":"100"}]}`)

	h.dispatch(msg)

	book, ok := h.store.GetOrderBook("tok1")
	if !ok {
		t.Fatal("expected order book to be stored")
	}
	if len(book.Bids) != 1 || len(book.Asks) != 1 {
		t.Fatalf("book = %+v, want 1 bid and 1 ask", book)
	}
	if h.Metrics.BookUpdates.Load() != 1 {
		t.Errorf("BookUpdates = %v, want 1", h.Metrics.BookUpdates.Load())
	}
}

func TestHandlePriceChangeUpdatesTopOfBook(t *testing.T) {
	t.Parallel()
	h := newTestHandler(t)
	h.store.UpdateTopOfBook("tok1", 0.40, 0.45)

	msg := []byte(`{"type":"price_change","asset_id":"tok1","price":"0.42","side":"BUY"}`)
	h.dispatch(msg)

	top, ok := h.store.GetTopOfBook("tok1")
	if !ok {
		t.Fatal("expected top of book to exist")
	}
	if top.BestBid != 0.42 {
		t.Errorf("BestBid = %v, want 0.42", top.BestBid)
	}
	if top.BestAsk != 0.45 {
		t.Errorf("BestAsk = %v, want unchanged at 0.45", top.BestAsk)
	}
	if h.Metrics.PriceChanges.Load() != 1 {
		t.Errorf("PriceChanges = %v, want 1", h.Metrics.PriceChanges.Load())
	}
}

func TestDispatchIgnoresUnknownType(t *testing.T) {
	t.Parallel()
	h := newTestHandler(t)
	h.dispatch([]byte(`{"type":"new_market"}`))
	if h.Metrics.MessagesReceived.Load() != 0 {
		// dispatch itself doesn't bump MessagesReceived (connectAndRead does);
		// this just confirms dispatch doesn't panic on an unhandled type.
		t.Errorf("unexpected MessagesReceived increment from dispatch")
	}
}

func TestJitterStaysWithinBound(t *testing.T) {
	t.Parallel()
	base := 5 * time.Second
	for i := 0; i < 20; i++ {
		got := jitter(base, 0.20)
		if got < base || got > base+time.Duration(float64(base)*0.20) {
			t.Fatalf("jitter(%v) = %v, out of bound", base, got)
		}
	}
}

func TestTrackedTokenIDsReflectsRegisteredPairs(t *testing.T) {
	t.Parallel()
	h := newTestHandler(t)
	h.store.RegisterPair(market.MarketPair{MarketID: "m1", YesToken: "y1", NoToken: "n1"})

	ids := h.trackedTokenIDs()
	if len(ids) != 2 {
		t.Fatalf("len(ids) = %v, want 2", len(ids))
	}
}
