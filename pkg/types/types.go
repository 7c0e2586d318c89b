// Package types defines the wire-level data structures shared across the
// feed, engine, and fan-out packages: streaming feed events, REST order
// payloads, and broadcast channel JSON shapes. It has no dependency on any
// other internal package so any layer may import it.
package types

// ————————————————————————————————————————————————————————————————————————
// Core enums
// ————————————————————————————————————————————————————————————————————————

// Side represents the direction of an order: BUY or SELL.
type Side string

const (
	BUY  Side = "BUY"
	SELL Side = "SELL"
)

// OrderType enumerates the supported order lifecycles.
type OrderType string

const (
	OrderTypeGTC OrderType = "GTC" // Good-Til-Cancelled
	OrderTypeFOK OrderType = "FOK" // Fill-Or-Kill
	OrderTypeIOC OrderType = "IOC" // Immediate-Or-Cancel
)

// ————————————————————————————————————————————————————————————————————————
// Order book wire shapes
// ————————————————————————————————————————————————————————————————————————

// PriceLevel is a single bid or ask level as it arrives over the wire.
// Price and Size are strings because the venue sends decimal strings to
// preserve precision; callers parse them at the feed boundary.
type PriceLevel struct {
	Price string `json:"price"`
	Size  string `json:"size"`
}

// ————————————————————————————————————————————————————————————————————————
// Streaming feed events (§4.2 / §6)
// ————————————————————————————————————————————————————————————————————————

// WSSubscribeMsg is the outbound subscribe frame sent on connect.
type WSSubscribeMsg struct {
	Type     string   `json:"type"`
	AssetIDs []string `json:"assets_ids"`
}

// WSBookEvent is a full depth snapshot for one asset.
type WSBookEvent struct {
	EventType string       `json:"type"` // "book"
	AssetID   string       `json:"asset_id"`
	Market    string       `json:"market"`
	Timestamp string       `json:"timestamp"`
	Bids      []PriceLevel `json:"bids"`
	Asks      []PriceLevel `json:"asks"`
}

// WSPriceChangeEvent is a single-sided top-of-book update.
type WSPriceChangeEvent struct {
	EventType string `json:"type"` // "price_change"
	AssetID   string `json:"asset_id"`
	Price     string `json:"price"`
	Side      string `json:"side"` // "BUY" or "SELL"
}

// WSTickSizeChangeEvent is accepted and discarded (spec §4.2).
type WSTickSizeChangeEvent struct {
	EventType string `json:"type"` // "tick_size_change"
	AssetID   string `json:"asset_id"`
}

// ————————————————————————————————————————————————————————————————————————
// Order REST (§4.7 / §6)
// ————————————————————————————————————————————————————————————————————————

// OrderRequest is the POST <base>/order request body.
type OrderRequest struct {
	TokenID   string    `json:"tokenId"`
	Price     string    `json:"price"`
	Size      string    `json:"size"`
	Side      Side      `json:"side"`
	OrderType OrderType `json:"orderType"`
	Signature string    `json:"signature"`
	Timestamp int64     `json:"timestamp"`
	Nonce     int64     `json:"nonce"`
}

// OrderResponse is the REST response for an order placement.
type OrderResponse struct {
	OrderID string `json:"orderId"`
	Status  string `json:"status"`
}

// CancelResponse is the REST response for DELETE <base>/order/<id>.
type CancelResponse struct {
	Canceled []string `json:"canceled"`
}

// ————————————————————————————————————————————————————————————————————————
// Broadcast channel payloads (§6)
// ————————————————————————————————————————————————————————————————————————

// PositionView is the per-token position summary published in StateMsg.
type PositionView struct {
	TokenID       string  `json:"token_id"`
	Size          float64 `json:"size"`
	AvgCost       float64 `json:"avg_cost"`
	UnrealizedPnL float64 `json:"unrealized_pnl"`
}

// StateMsg is the `state` broadcast channel payload.
type StateMsg struct {
	TimestampMs       int64          `json:"timestamp_ms"`
	Status            string         `json:"status"`
	MarketsTracked    int            `json:"markets_tracked"`
	OpportunitiesFound int64         `json:"opportunities_found"`
	DailyPnL          float64        `json:"daily_pnl"`
	DailyTrades       int64          `json:"daily_trades"`
	Positions         []PositionView `json:"positions"`
}

// SignalMsg is the `signals` broadcast channel payload.
type SignalMsg struct {
	TimestampMs int64    `json:"timestamp_ms"`
	Strategy    string   `json:"strategy"`
	SignalType  string   `json:"signal_type"` // BUY, SELL, ARBITRAGE
	TokenID     *string  `json:"token_id,omitempty"`
	YesTokenID  *string  `json:"yes_token_id,omitempty"`
	NoTokenID   *string  `json:"no_token_id,omitempty"`
	Price       *float64 `json:"price,omitempty"`
	YesPrice    *float64 `json:"yes_price,omitempty"`
	NoPrice     *float64 `json:"no_price,omitempty"`
	Size        float64  `json:"size"`
	Edge        *float64 `json:"edge,omitempty"`
	Reason      string   `json:"reason"`
}

// TradeMsg is the `trades` broadcast channel payload — a SignalMsg plus
// execution outcome fields.
type TradeMsg struct {
	SignalMsg
	OrderID   *string  `json:"order_id,omitempty"`
	YesOrderID *string `json:"yes_order_id,omitempty"`
	NoOrderID *string  `json:"no_order_id,omitempty"`
	Status    string   `json:"status"`
	PnL       *float64 `json:"pnl,omitempty"`
	IsPaper   bool     `json:"is_paper"`
}

// ErrorMsg is the `errors` broadcast channel payload.
type ErrorMsg struct {
	TimestampMs int64  `json:"timestamp_ms"`
	Source      string `json:"source"`
	ErrorType   string `json:"error_type"`
	Message     string `json:"message"`
	Details     string `json:"details,omitempty"`
}
