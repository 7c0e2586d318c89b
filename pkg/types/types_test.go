package types

import (
	"encoding/json"
	"testing"
)

func TestOrderRequestRoundTrip(t *testing.T) {
	t.Parallel()

	req := OrderRequest{
		TokenID:   "yes-token",
		Price:     "0.4500",
		Size:      "100.00",
		Side:      BUY,
		OrderType: OrderTypeGTC,
		Signature: "0xdead",
		Timestamp: 1700000000,
		Nonce:     1700000000123,
	}

	data, err := json.Marshal(req)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	var got OrderRequest
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if got != req {
		t.Errorf("round-trip mismatch: got %+v, want %+v", got, req)
	}
}

func TestSignalMsgOptionalFieldsOmitted(t *testing.T) {
	t.Parallel()

	msg := SignalMsg{
		TimestampMs: 1,
		Strategy:    "Sniper",
		SignalType:  "BUY",
		Size:        10,
		Reason:      "time_arb",
	}

	data, err := json.Marshal(msg)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	for _, absent := range []string{"token_id", "yes_token_id", "no_token_id", "price", "yes_price", "no_price", "edge"} {
		if _, ok := raw[absent]; ok {
			t.Errorf("expected field %q to be omitted, got %v", absent, raw[absent])
		}
	}
}

func TestTradeMsgEmbedsSignal(t *testing.T) {
	t.Parallel()

	price := 0.45
	tm := TradeMsg{
		SignalMsg: SignalMsg{
			TimestampMs: 1,
			Strategy:    "Clipper",
			SignalType:  "ARBITRAGE",
			Size:        50,
			Price:       &price,
			Reason:      "clip",
		},
		Status:  "FILLED",
		IsPaper: true,
	}

	data, err := json.Marshal(tm)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if raw["strategy"] != "Clipper" {
		t.Errorf("expected embedded strategy field, got %v", raw["strategy"])
	}
	if raw["status"] != "FILLED" {
		t.Errorf("expected status field, got %v", raw["status"])
	}
}
