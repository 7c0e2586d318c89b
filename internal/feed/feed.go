// Package feed implements the Feed Handler (spec §4.2): one long-lived
// streaming connection to the venue that translates inbound book/price
// messages into Market Store writes, reconnecting with backoff on loss.
//
// Grounded on the teacher's internal/exchange/ws.go for the connection
// lifecycle (dial, read loop, ping loop, JSON dispatch on the "type" field) —
// simplified to a single public market channel since spec §4.2 has no user
// channel, and retuned to spec's own cadence numbers (30s ping, 5s/factor-2/
// cap-300s/20%-jitter backoff) rather than the teacher's 50s/1s-30s.
package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math/rand"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/shopspring/decimal"

	"polymarket-arb/internal/market"
	"polymarket-arb/internal/metrics"
	"polymarket-arb/pkg/types"
)

const (
	pingInterval       = 30 * time.Second
	readTimeout        = 90 * time.Second
	connectTimeout     = 10 * time.Second
	writeTimeout       = 10 * time.Second
	backoffBase        = 5 * time.Second
	backoffFactor      = 2
	backoffCap         = 300 * time.Second
	backoffJitterFrac  = 0.20
	resubscribeSweep   = 30 * time.Second
	heartbeatInterval  = 60 * time.Second
)

// Metrics is the set of counters the Feed Handler exposes. Only
// MessagesReceived is also mirrored to a Prometheus collector in
// internal/metrics; the other counters are exposed only here.
type Metrics struct {
	MessagesReceived atomic.Uint64
	BookUpdates      atomic.Uint64
	PriceChanges     atomic.Uint64
	Reconnects       atomic.Uint64
}

// Handler maintains the streaming connection and applies inbound messages
// to a Market Store.
type Handler struct {
	url     string
	store   *market.Store
	metrics *metrics.Bundle
	logger  *slog.Logger

	connMu sync.Mutex
	conn   *websocket.Conn

	subscribedMu sync.RWMutex
	subscribed   map[string]bool

	connStartNs atomic.Int64 // 0 when disconnected
	Metrics     Metrics
}

// NewHandler builds a Feed Handler for the given venue WebSocket URL.
// bundle may be nil in tests that don't care about Prometheus export.
func NewHandler(wsURL string, store *market.Store, bundle *metrics.Bundle, logger *slog.Logger) *Handler {
	return &Handler{
		url:        wsURL,
		store:      store,
		metrics:    bundle,
		logger:     logger.With("component", "feed"),
		subscribed: make(map[string]bool),
	}
}

// UptimeNs returns nanoseconds since the current connection was established,
// or 0 if disconnected.
func (h *Handler) UptimeNs() int64 {
	start := h.connStartNs.Load()
	if start == 0 {
		return 0
	}
	return time.Now().UnixNano() - start
}

// Run connects and maintains the connection with exponential backoff until
// ctx is cancelled. On cancellation it sends a close frame and returns.
func (h *Handler) Run(ctx context.Context) error {
	backoff := backoffBase
	reconnects := 0

	for {
		connected, err := h.connectAndRead(ctx)
		if ctx.Err() != nil {
			h.sendClose()
			return ctx.Err()
		}
		if connected {
			backoff = backoffBase
		}

		reconnects++
		h.Metrics.Reconnects.Add(1)
		h.logger.Warn("feed disconnected, reconnecting", "error", err, "backoff", backoff, "attempt", reconnects)

		wait := jitter(backoff, backoffJitterFrac)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}

		backoff *= backoffFactor
		if backoff > backoffCap {
			backoff = backoffCap
		}
	}
}

func jitter(d time.Duration, frac float64) time.Duration {
	j := float64(d) * frac * rand.Float64()
	return d + time.Duration(j)
}

// connectAndRead dials once, subscribes to every token currently in the
// Market Store, and reads until the connection drops or ctx is cancelled.
// The returned bool reports whether the dial succeeded, so Run knows
// whether to reset its backoff.
func (h *Handler) connectAndRead(ctx context.Context) (bool, error) {
	dialCtx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()

	conn, _, err := websocket.DefaultDialer.DialContext(dialCtx, h.url, nil)
	if err != nil {
		return false, fmt.Errorf("dial: %w", err)
	}

	h.connMu.Lock()
	h.conn = conn
	h.connMu.Unlock()
	h.connStartNs.Store(time.Now().UnixNano())

	defer func() {
		if ctx.Err() != nil {
			h.sendClose()
		}
		h.connMu.Lock()
		conn.Close()
		h.conn = nil
		h.connMu.Unlock()
		h.connStartNs.Store(0)
	}()

	if err := h.subscribeAll(); err != nil {
		return true, fmt.Errorf("subscribe: %w", err)
	}
	h.logger.Info("feed connected")

	runCtx, runCancel := context.WithCancel(ctx)
	defer runCancel()

	go h.pingLoop(runCtx)
	go h.resubscribeLoop(runCtx)
	go h.heartbeatLoop(runCtx)

	for {
		if ctx.Err() != nil {
			return true, ctx.Err()
		}

		conn.SetReadDeadline(time.Now().Add(readTimeout))
		_, msg, err := conn.ReadMessage()
		if err != nil {
			return true, fmt.Errorf("read: %w", err)
		}

		h.Metrics.MessagesReceived.Add(1)
		if h.metrics != nil {
			h.metrics.MessagesReceived.Inc()
		}
		h.dispatch(msg)
	}
}

// subscribeAll sends a subscribe frame for every token currently present in
// the Market Store (spec §4.2's documented limit: tokens registered after
// connect are not picked up by this call — resubscribeLoop covers that gap).
func (h *Handler) subscribeAll() error {
	ids := h.trackedTokenIDs()
	h.subscribedMu.Lock()
	for _, id := range ids {
		h.subscribed[id] = true
	}
	h.subscribedMu.Unlock()

	return h.writeJSON(types.WSSubscribeMsg{Type: "subscribe", AssetIDs: ids})
}

func (h *Handler) trackedTokenIDs() []string {
	ids := make([]string, 0)
	for _, pair := range h.store.GetAllPairs() {
		ids = append(ids, pair.YesToken, pair.NoToken)
	}
	return ids
}

// resubscribeLoop periodically diffs the Market Store's current pairs
// against the subscribed set and subscribes to anything new. This is the
// resolution to spec §9's late-registration open question: rather than
// coupling the Market Store to the feed, the feed polls it.
func (h *Handler) resubscribeLoop(ctx context.Context) {
	ticker := time.NewTicker(resubscribeSweep)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			h.sweepNewTokens()
		}
	}
}

func (h *Handler) sweepNewTokens() {
	var fresh []string
	h.subscribedMu.Lock()
	for _, id := range h.trackedTokenIDs() {
		if !h.subscribed[id] {
			h.subscribed[id] = true
			fresh = append(fresh, id)
		}
	}
	h.subscribedMu.Unlock()

	if len(fresh) == 0 {
		return
	}
	if err := h.writeJSON(types.WSSubscribeMsg{Type: "subscribe", AssetIDs: fresh}); err != nil {
		h.logger.Warn("resubscribe sweep failed", "error", err)
	} else {
		h.logger.Info("resubscribed to newly registered tokens", "count", len(fresh))
	}
}

func (h *Handler) dispatch(data []byte) {
	var envelope struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &envelope); err != nil {
		h.logger.Debug("ignoring non-json feed message", "data", string(data))
		return
	}

	switch envelope.Type {
	case "book":
		h.handleBook(data)
	case "price_change":
		h.handlePriceChange(data)
	case "tick_size_change":
		// accepted and discarded per spec §4.2
	default:
		h.logger.Debug("unknown feed message type", "type", envelope.Type)
	}
}

func (h *Handler) handleBook(data []byte) {
	var evt types.WSBookEvent
	if err := json.Unmarshal(data, &evt); err != nil {
		h.logger.Error("unmarshal book event", "error", err)
		return
	}

	bids := parseLevels(evt.Bids)
	asks := parseLevels(evt.Asks)
	h.store.UpdateOrderBook(evt.AssetID, bids, asks)
	h.Metrics.BookUpdates.Add(1)

	bestBid, bestAsk := 0.0, 1.0
	if len(bids) > 0 {
		bestBid = bids[0].Price
	}
	if len(asks) > 0 {
		bestAsk = asks[0].Price
	}
	h.store.UpdateTopOfBook(evt.AssetID, bestBid, bestAsk)
}

func (h *Handler) handlePriceChange(data []byte) {
	var evt types.WSPriceChangeEvent
	if err := json.Unmarshal(data, &evt); err != nil {
		h.logger.Error("unmarshal price_change event", "error", err)
		return
	}

	price, ok := parsePrice(evt.Price)
	if !ok {
		return
	}
	h.Metrics.PriceChanges.Add(1)

	top, _ := h.store.GetTopOfBook(evt.AssetID)
	bestBid, bestAsk := top.BestBid, top.BestAsk
	if bestAsk == 0 {
		bestAsk = 1.0
	}
	if evt.Side == "BUY" {
		bestBid = price
	} else {
		bestAsk = price
	}
	h.store.UpdateTopOfBook(evt.AssetID, bestBid, bestAsk)
}

// parseLevels drops any level whose price or size string does not parse to
// a finite value in range (spec §4.2's parsing rules).
func parseLevels(raw []types.PriceLevel) []market.DepthLevel {
	out := make([]market.DepthLevel, 0, len(raw))
	for _, lvl := range raw {
		price, ok := parsePrice(lvl.Price)
		if !ok {
			continue
		}
		size, ok := parseSize(lvl.Size)
		if !ok {
			continue
		}
		out = append(out, market.NewDepthLevel(price, size))
	}
	return out
}

// parsePrice and parseSize go through decimal.NewFromString rather than
// strconv.ParseFloat: the venue sends prices/sizes as decimal strings, and
// parsing them as exact decimals before converting to float64 avoids a
// binary-float rounding step the venue's own string never had.
func parsePrice(s string) (float64, bool) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, false
	}
	p, _ := d.Float64()
	if p < 0.0 || p > 1.0 {
		return 0, false
	}
	return p, true
}

func parseSize(s string) (float64, bool) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, false
	}
	sz, _ := d.Float64()
	if sz <= 0 {
		return 0, false
	}
	return sz, true
}

func (h *Handler) pingLoop(ctx context.Context) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := h.writeMessage(websocket.PingMessage, nil); err != nil {
				h.logger.Warn("ping failed", "error", err)
				return
			}
		}
	}
}

func (h *Handler) heartbeatLoop(ctx context.Context) {
	ticker := time.NewTicker(heartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			h.logger.Info("feed heartbeat",
				"uptime_ns", h.UptimeNs(),
				"messages_received", h.Metrics.MessagesReceived.Load(),
				"book_updates", h.Metrics.BookUpdates.Load(),
				"price_changes", h.Metrics.PriceChanges.Load(),
				"tracked_tokens", len(h.trackedTokenIDs()),
			)
		}
	}
}

func (h *Handler) writeJSON(v interface{}) error {
	h.connMu.Lock()
	defer h.connMu.Unlock()
	if h.conn == nil {
		return fmt.Errorf("feed not connected")
	}
	h.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return h.conn.WriteJSON(v)
}

func (h *Handler) writeMessage(msgType int, data []byte) error {
	h.connMu.Lock()
	defer h.connMu.Unlock()
	if h.conn == nil {
		return fmt.Errorf("feed not connected")
	}
	h.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return h.conn.WriteMessage(msgType, data)
}

func (h *Handler) sendClose() {
	h.connMu.Lock()
	defer h.connMu.Unlock()
	if h.conn == nil {
		return
	}
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	h.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	h.conn.WriteMessage(websocket.CloseMessage, msg)
}
