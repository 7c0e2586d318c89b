package market

import (
	"testing"
	"time"
)

func testPair() MarketPair {
	return MarketPair{MarketID: "m1", YesToken: "yes", NoToken: "no", Question: "Test?"}
}

func TestRegisterPairIdempotent(t *testing.T) {
	t.Parallel()
	s := NewStore()
	s.RegisterPair(testPair())
	s.RegisterPair(testPair())

	if s.MarketCount() != 1 {
		t.Fatalf("MarketCount = %d, want 1 after re-registration", s.MarketCount())
	}

	no, ok := s.GetComplement("yes")
	if !ok || no != "no" {
		t.Fatalf("GetComplement(yes) = %q, %v, want no, true", no, ok)
	}
	yes, ok := s.GetComplement("no")
	if !ok || yes != "yes" {
		t.Fatalf("GetComplement(no) = %q, %v, want yes, true", yes, ok)
	}
}

func TestUpdateOrderBookSortsLevels(t *testing.T) {
	t.Parallel()
	s := NewStore()
	s.UpdateOrderBook("yes",
		[]DepthLevel{{Price: 0.40, Size: 10}, {Price: 0.45, Size: 20}},
		[]DepthLevel{{Price: 0.55, Size: 10}, {Price: 0.50, Size: 20}},
	)

	book, ok := s.GetOrderBook("yes")
	if !ok {
		t.Fatal("GetOrderBook returned false")
	}
	if book.Bids[0].Price != 0.45 || book.Bids[1].Price != 0.40 {
		t.Errorf("bids not sorted descending: %+v", book.Bids)
	}
	if book.Asks[0].Price != 0.50 || book.Asks[1].Price != 0.55 {
		t.Errorf("asks not sorted ascending: %+v", book.Asks)
	}
}

func TestVwapBuySingleLevel(t *testing.T) {
	t.Parallel()
	book := &OrderBook{Asks: []DepthLevel{{Price: 0.45, Size: 100}}}
	res := book.VwapBuy(50)
	if res == nil {
		t.Fatal("expected a VwapResult")
	}
	if res.Vwap != 0.45 || res.TotalSize != 50 || res.LevelsUsed != 1 {
		t.Errorf("got %+v", res)
	}
}

func TestVwapBuyAcrossTwoLevels(t *testing.T) {
	t.Parallel()
	book := &OrderBook{Asks: []DepthLevel{{Price: 0.45, Size: 50}, {Price: 0.46, Size: 50}}}
	res := book.VwapBuy(100)
	if res == nil {
		t.Fatal("expected a VwapResult")
	}
	if res.LevelsUsed != 2 || res.TotalSize != 100 {
		t.Errorf("got %+v", res)
	}
	want := 0.455
	if diff := res.Vwap - want; diff > 1e-9 || diff < -1e-9 {
		t.Errorf("Vwap = %v, want %v", res.Vwap, want)
	}
}

func TestVwapBuyInsufficientLiquidity(t *testing.T) {
	t.Parallel()
	book := &OrderBook{Asks: []DepthLevel{{Price: 0.45, Size: 5}}}
	res := book.VwapBuy(100)
	if res == nil {
		t.Fatal("expected a partial fill result, got nil")
	}
	if res.TotalSize != 5 {
		t.Errorf("TotalSize = %v, want 5 (capped at available liquidity)", res.TotalSize)
	}
}

func TestVwapBuyEmptyBookReturnsNil(t *testing.T) {
	t.Parallel()
	book := &OrderBook{}
	if res := book.VwapBuy(10); res != nil {
		t.Errorf("expected nil for empty book, got %+v", res)
	}
}

func TestVwapBuyZeroTargetReturnsNil(t *testing.T) {
	t.Parallel()
	book := &OrderBook{Asks: []DepthLevel{{Price: 0.45, Size: 10}}}
	if res := book.VwapBuy(0); res != nil {
		t.Errorf("expected nil for zero target size, got %+v", res)
	}
}

func TestVwapSellWalksBids(t *testing.T) {
	t.Parallel()
	book := &OrderBook{Bids: []DepthLevel{{Price: 0.50, Size: 50}, {Price: 0.49, Size: 50}}}
	res := book.VwapSell(100)
	if res == nil {
		t.Fatal("expected a VwapResult")
	}
	if res.LevelsUsed != 2 {
		t.Errorf("LevelsUsed = %d, want 2", res.LevelsUsed)
	}
}

func TestIsStaleSaturatingSubtraction(t *testing.T) {
	t.Parallel()
	// A timestamp "in the future" relative to now must not make IsStale
	// panic or report stale due to a negative delta wrapping around.
	future := &OrderBook{TimestampNs: nowNs() + int64(time.Hour)}
	if IsStale(future, int64(time.Second)) {
		t.Error("a book timestamped in the future should not be considered stale")
	}

	if !IsStale(nil, int64(time.Second)) {
		t.Error("a nil book should be considered stale")
	}
}

func TestHistoryRingEviction(t *testing.T) {
	t.Parallel()
	s := NewStoreWithHistorySize(3)
	for i := 0; i < 5; i++ {
		s.UpdateTopOfBook("yes", 0.40, 0.41)
	}
	hist := s.GetHistory("yes")
	if len(hist) != 3 {
		t.Errorf("history length = %d, want 3 (capped)", len(hist))
	}
}

func TestIsPriceStable(t *testing.T) {
	t.Parallel()
	s := NewStore()
	s.UpdateTopOfBook("yes", 0.40, 0.41)
	s.UpdateTopOfBook("yes", 0.401, 0.411)
	s.UpdateTopOfBook("yes", 0.399, 0.409)

	if !s.IsPriceStable("yes", 3, 0.01) {
		t.Error("expected price to be stable within tolerance")
	}
	if s.IsPriceStable("yes", 3, 0.0001) {
		t.Error("expected price to be unstable at a tight tolerance")
	}
	if s.IsPriceStable("yes", 10, 1.0) {
		t.Error("expected false when fewer than n ticks exist")
	}
}

func TestHasData(t *testing.T) {
	t.Parallel()
	s := NewStore()
	if s.HasData() {
		t.Error("fresh store should report no data")
	}
	s.UpdateTopOfBook("yes", 0.4, 0.41)
	if !s.HasData() {
		t.Error("store should report data after an update")
	}
}
