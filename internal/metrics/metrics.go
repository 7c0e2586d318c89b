// Package metrics bundles the Prometheus collectors the engine updates
// during operation, grounded on the only client_golang usage in the
// retrieved pack (a package-level collector bundle registered once at
// startup) but built on a private registry rather than the default one,
// so multiple engines (and tests) can construct independent bundles.
package metrics

import "github.com/prometheus/client_golang/prometheus"

// Bundle holds every collector the engine touches. Zero value is not
// usable; build one with New.
type Bundle struct {
	Registry *prometheus.Registry

	EvaluationsTotal prometheus.Counter
	SignalsTotal     *prometheus.CounterVec
	RiskRejections   *prometheus.CounterVec
	OrdersTotal      *prometheus.CounterVec
	OrderLatency     *prometheus.HistogramVec
	DailyPnL         prometheus.Gauge
	MessagesReceived prometheus.Counter
}

// New builds a Bundle and registers every collector on a fresh registry.
func New() *Bundle {
	reg := prometheus.NewRegistry()

	b := &Bundle{
		Registry: reg,
		EvaluationsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "poly_evaluations_total",
			Help: "Total strategy evaluations performed by the engine.",
		}),
		SignalsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "poly_signals_total",
			Help: "Total trade intents generated, by strategy and kind.",
		}, []string{"strategy", "kind"}),
		RiskRejections: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "poly_risk_rejections_total",
			Help: "Intents rejected by the risk gate, by reason.",
		}, []string{"reason"}),
		OrdersTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "poly_orders_total",
			Help: "Orders placed, by side, outcome, and execution mode.",
		}, []string{"side", "outcome", "mode"}),
		OrderLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "poly_order_latency_seconds",
			Help:    "Order placement latency.",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5},
		}, []string{"side"}),
		DailyPnL: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "poly_daily_pnl_dollars",
			Help: "Current daily realized P&L in dollars.",
		}),
		MessagesReceived: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "poly_websocket_messages_total",
			Help: "WebSocket messages received from the feed.",
		}),
	}

	reg.MustRegister(
		b.EvaluationsTotal,
		b.SignalsTotal,
		b.RiskRejections,
		b.OrdersTotal,
		b.OrderLatency,
		b.DailyPnL,
		b.MessagesReceived,
	)
	return b
}
