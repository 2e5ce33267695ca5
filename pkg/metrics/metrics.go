// Package metrics exposes the engine's Prometheus instrumentation: tick and
// bar throughput, order flow, open exposure, and realized P&L.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics bundles every collector on one registry so cmd/engine can mount a
// single /metrics handler.
type Metrics struct {
	Registry *prometheus.Registry

	TicksTotal      prometheus.Counter
	BarsTotal       prometheus.Counter
	OrdersPlaced    *prometheus.CounterVec
	OrderUpdates    *prometheus.CounterVec
	TradesRecorded  prometheus.Counter
	OpenPositions   prometheus.Gauge
	CandidateCount  prometheus.Gauge
	SubscribedCount prometheus.Gauge
	RealizedPnL     prometheus.Gauge
	EngineUp        prometheus.Gauge
}

// New creates a Metrics set on a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)
	return &Metrics{
		Registry: reg,
		TicksTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "engine_ticks_total",
			Help: "Trade ticks consumed from the real-time feed.",
		}),
		BarsTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "engine_bars_total",
			Help: "Completed one-minute bars emitted by the aggregator.",
		}),
		OrdersPlaced: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "engine_orders_placed_total",
			Help: "Orders placed through the gateway, by side.",
		}, []string{"side"}),
		OrderUpdates: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "engine_order_updates_total",
			Help: "Order-update events applied, by status.",
		}, []string{"status"}),
		TradesRecorded: factory.NewCounter(prometheus.CounterOpts{
			Name: "engine_trades_recorded_total",
			Help: "Completed exits appended to the trade journal.",
		}),
		OpenPositions: factory.NewGauge(prometheus.GaugeOpts{
			Name: "engine_open_positions",
			Help: "Symbols currently held.",
		}),
		CandidateCount: factory.NewGauge(prometheus.GaugeOpts{
			Name: "engine_candidates",
			Help: "Symbols on the screener watchlist.",
		}),
		SubscribedCount: factory.NewGauge(prometheus.GaugeOpts{
			Name: "engine_subscribed_symbols",
			Help: "Symbols with active real-time feeds.",
		}),
		RealizedPnL: factory.NewGauge(prometheus.GaugeOpts{
			Name: "engine_realized_pnl",
			Help: "Cumulative realized profit from the trade journal, in price units.",
		}),
		EngineUp: factory.NewGauge(prometheus.GaugeOpts{
			Name: "engine_running",
			Help: "1 while the engine is in the running state.",
		}),
	}
}
