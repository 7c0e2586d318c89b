// Package httpapi serves the operational HTTP surface: a liveness/readiness
// probe at /health and a Prometheus exposition endpoint at /metrics. Spec §1
// keeps these out of the core's scope; this package is the thin external
// collaborator the core is fed into.
//
// Grounded on the teacher's internal/api/server.go for the http.Server +
// graceful Shutdown(ctx) idiom, stripped down to the two routes spec §6
// actually names — no dashboard, no websocket hub.
package httpapi

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"polymarket-arb/internal/market"
	"polymarket-arb/internal/metrics"
)

// HealthStatus is the /health response body (spec §6).
type HealthStatus struct {
	Status     string `json:"status"`
	UptimeSecs int64  `json:"uptime_secs"`
	Tokens     int    `json:"tokens"`
	OrderBooks int    `json:"order_books"`
	Markets    int    `json:"markets"`
	HasData    bool   `json:"has_data"`
}

// Server is the /health and /metrics HTTP surface.
type Server struct {
	store     *market.Store
	metrics   *metrics.Bundle
	server    *http.Server
	startedAt time.Time
	logger    *slog.Logger
}

// New builds a Server bound to addr (e.g. ":9090"). metricsBundle may be nil,
// in which case no /metrics route is registered and requests to it get 404.
func New(addr string, store *market.Store, metricsBundle *metrics.Bundle, logger *slog.Logger) *Server {
	logger = logger.With("component", "httpapi")
	s := &Server{
		store:     store,
		metrics:   metricsBundle,
		startedAt: time.Now(),
		logger:    logger,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/health", s.handleHealth)
	if metricsBundle != nil {
		mux.Handle("/metrics", promhttp.HandlerFor(metricsBundle.Registry, promhttp.HandlerOpts{}))
	}

	s.server = &http.Server{
		Addr:         addr,
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return s
}

// Start serves until Stop is called or the listener fails.
func (s *Server) Start() error {
	s.logger.Info("http api starting", "addr", s.server.Addr)
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("http api: %w", err)
	}
	return nil
}

// Stop gracefully shuts the server down within ctx's deadline.
func (s *Server) Stop(ctx context.Context) error {
	s.logger.Info("http api stopping")
	return s.server.Shutdown(ctx)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	hasData := s.store.HasData()
	status := "waiting_for_data"
	if hasData {
		status = "healthy"
	}

	body := HealthStatus{
		Status:     status,
		UptimeSecs: int64(time.Since(s.startedAt).Seconds()),
		Tokens:     s.store.TokenCount(),
		OrderBooks: s.store.OrderBookCount(),
		Markets:    s.store.MarketCount(),
		HasData:    hasData,
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(body); err != nil {
		s.logger.Warn("encode health response failed", "error", err)
	}
}
