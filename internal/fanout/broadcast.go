// Package fanout implements the side-effect sinks spec §4.8 names:
// a broadcast hub, a webhook notifier, and a persistent store — every
// sink is fire-and-forget so a slow or failing sink can never stall the
// engine's hot path.
//
// The broadcast hub is grounded on the teacher's internal/api Hub
// (register/unregister/broadcast channel loop, drop-on-full subscriber
// sends), repurposed from a single websocket-client set to four named
// channels (state, signals, trades, errors) since spec §6 has no
// dashboard websocket surface of its own — just named JSON channels any
// future consumer can subscribe to.
package fanout

import (
	"encoding/json"
	"log/slog"
	"sync"
)

// Channel names spec §6 enumerates.
const (
	ChannelState   = "state"
	ChannelSignals = "signals"
	ChannelTrades  = "trades"
	ChannelErrors  = "errors"
)

const subscriberBuffer = 64

// Hub is a named-channel broadcast sink. Publish never blocks the
// caller: serialization happens inline (it's cheap) but delivery to a
// slow subscriber is dropped rather than awaited.
type Hub struct {
	logger *slog.Logger

	mu          sync.RWMutex
	subscribers map[string][]chan []byte
}

// NewHub builds an empty broadcast hub.
func NewHub(logger *slog.Logger) *Hub {
	return &Hub{
		logger:      logger.With("component", "fanout-hub"),
		subscribers: make(map[string][]chan []byte),
	}
}

// Subscribe returns a channel that receives every message published to
// channel from this point forward.
func (h *Hub) Subscribe(channel string) <-chan []byte {
	ch := make(chan []byte, subscriberBuffer)
	h.mu.Lock()
	h.subscribers[channel] = append(h.subscribers[channel], ch)
	h.mu.Unlock()
	return ch
}

// Publish marshals v and fans it out to every subscriber of channel.
// Marshal errors are logged, not propagated; a full subscriber buffer
// is dropped rather than blocked on.
func (h *Hub) Publish(channel string, v interface{}) {
	data, err := json.Marshal(v)
	if err != nil {
		h.logger.Error("marshal broadcast payload", "channel", channel, "error", err)
		return
	}

	h.mu.RLock()
	subs := h.subscribers[channel]
	h.mu.RUnlock()

	for _, sub := range subs {
		select {
		case sub <- data:
		default:
			h.logger.Warn("subscriber channel full, dropping message", "channel", channel)
		}
	}
}
