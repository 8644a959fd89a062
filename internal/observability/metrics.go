// Package observability exposes Prometheus metrics for the engine and
// scheduler.
package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics bundles the engine's Prometheus collectors.
type Metrics struct {
	CyclesTotal    *prometheus.CounterVec
	SwapsTotal     *prometheus.CounterVec
	BurnsTotal     prometheus.Counter
	ClaimsTotal    prometheus.Counter
	ClaimedSOL     prometheus.Counter
	SpentSOL       prometheus.Counter
	BurnedTokens   prometheus.Counter
	NotifyErrors   prometheus.Counter
	CycleDuration  prometheus.Histogram
	ActiveAccounts prometheus.Gauge
}

// New registers the collectors on the given registerer.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		CyclesTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "flywheel",
			Name:      "cycles_total",
			Help:      "Cycles finished, labeled by terminal status.",
		}, []string{"status"}),
		SwapsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "flywheel",
			Name:      "swaps_total",
			Help:      "Swap attempts, labeled by outcome.",
		}, []string{"outcome"}),
		BurnsTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "flywheel",
			Name:      "burns_total",
			Help:      "Confirmed burn transactions.",
		}),
		ClaimsTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "flywheel",
			Name:      "claims_total",
			Help:      "Successful creator-fee claims.",
		}),
		ClaimedSOL: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "flywheel",
			Name:      "claimed_sol_total",
			Help:      "Cumulative SOL claimed from creator fees.",
		}),
		SpentSOL: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "flywheel",
			Name:      "spent_sol_total",
			Help:      "Cumulative SOL spent on buybacks.",
		}),
		BurnedTokens: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "flywheel",
			Name:      "burned_tokens_total",
			Help:      "Cumulative tokens burned.",
		}),
		NotifyErrors: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "flywheel",
			Name:      "notify_errors_total",
			Help:      "Notification deliveries that failed.",
		}),
		CycleDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: "flywheel",
			Name:      "cycle_duration_seconds",
			Help:      "Wall time of one account cycle.",
			Buckets:   []float64{0.5, 1, 2, 5, 10, 20, 30, 60},
		}),
		ActiveAccounts: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "flywheel",
			Name:      "active_accounts",
			Help:      "Accounts eligible for scheduling.",
		}),
	}
}

// Handler returns the /metrics HTTP handler for the registry.
func Handler(reg *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
}
