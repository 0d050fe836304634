// Package metrics exposes the bot's Prometheus instrumentation:
//   - bot_positions_opened_total{side}          – opens confirmed by the exchange
//   - bot_positions_closed_total{reason,side}   – closes split by exit reason
//   - bot_close_races_lost_total                – removes that found the record already gone
//   - bot_unreconciled_closes_total             – closes that failed twice and await reconciliation
//   - bot_sizing_skips_total                    – opens skipped because the notional was untradeable
//   - bot_decision_cycles_total{status}         – orchestrator cycles by outcome
//   - bot_price_fetch_failures_total            – transient per-symbol price failures
//   - bot_open_positions                        – current registry size (gauge)
//
// Served at /metrics in Prometheus text exposition format.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	PositionsOpened = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bot_positions_opened_total",
			Help: "Positions opened, by side",
		},
		[]string{"side"},
	)

	PositionsClosed = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bot_positions_closed_total",
			Help: "Positions closed, by exit reason and side",
		},
		[]string{"reason", "side"},
	)

	CloseRacesLost = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "bot_close_races_lost_total",
			Help: "Close attempts that found the position already closed by the other loop",
		},
	)

	UnreconciledCloses = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "bot_unreconciled_closes_total",
			Help: "Close submissions that failed twice and were left for reconciliation",
		},
	)

	SizingSkips = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "bot_sizing_skips_total",
			Help: "Opens skipped because the clamped notional fell below the exchange minimum",
		},
	)

	DecisionCycles = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bot_decision_cycles_total",
			Help: "Orchestrator cycles, by outcome (ok|decision_error)",
		},
		[]string{"status"},
	)

	PriceFetchFailures = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "bot_price_fetch_failures_total",
			Help: "Price fetches that timed out or failed; the symbol is skipped for the tick",
		},
	)

	OpenPositions = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "bot_open_positions",
			Help: "Open positions currently tracked in the registry",
		},
	)
)

func init() {
	prometheus.MustRegister(
		PositionsOpened,
		PositionsClosed,
		CloseRacesLost,
		UnreconciledCloses,
		SizingSkips,
		DecisionCycles,
		PriceFetchFailures,
		OpenPositions,
	)
}

// Handler returns the /metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}
