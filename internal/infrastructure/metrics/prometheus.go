// Package metrics exposes client telemetry to prometheus.
package metrics

import (
	"net/http"
	"time"

	"token_farm/internal/app/port"
	"token_farm/internal/domain/entity"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// PrometheusMetrics implements port.Metrics on a private registry.
type PrometheusMetrics struct {
	registry *prometheus.Registry

	transactions   *prometheus.CounterVec
	balanceQueries *prometheus.CounterVec
	startupStages  *prometheus.HistogramVec
	loading        prometheus.Gauge
}

var _ port.Metrics = (*PrometheusMetrics)(nil)

// NewPrometheusMetrics creates a new PrometheusMetrics instance.
func NewPrometheusMetrics(namespace string) *PrometheusMetrics {
	registry := prometheus.NewRegistry()

	m := &PrometheusMetrics{
		registry: registry,

		transactions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "transactions_total",
				Help:      "Transaction steps by kind and outcome",
			},
			[]string{"kind", "outcome"},
		),
		balanceQueries: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "balance_queries_total",
				Help:      "Balance reads by slot and outcome",
			},
			[]string{"slot", "outcome"},
		),
		startupStages: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "startup_stage_seconds",
				Help:      "Duration of each startup stage",
				Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 15, 60, 120},
			},
			[]string{"stage"},
		),
		loading: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "loading",
				Help:      "1 while the client is busy",
			},
		),
	}

	m.registry.MustRegister(
		m.transactions,
		m.balanceQueries,
		m.startupStages,
		m.loading,
	)

	return m
}

func (m *PrometheusMetrics) ObserveStartupStage(stage string, d time.Duration) {
	m.startupStages.WithLabelValues(stage).Observe(d.Seconds())
}

func (m *PrometheusMetrics) IncBalanceQuery(slot entity.BalanceSlot, outcome string) {
	m.balanceQueries.WithLabelValues(string(slot), outcome).Inc()
}

func (m *PrometheusMetrics) IncTransaction(kind entity.TransactionKind, outcome string) {
	m.transactions.WithLabelValues(string(kind), outcome).Inc()
}

func (m *PrometheusMetrics) SetLoading(loading bool) {
	if loading {
		m.loading.Set(1)
		return
	}
	m.loading.Set(0)
}

// Registry returns the underlying registry.
func (m *PrometheusMetrics) Registry() *prometheus.Registry {
	return m.registry
}

// HTTPHandler returns a typed HTTP handler for serving metrics.
func (m *PrometheusMetrics) HTTPHandler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{
		Registry: m.registry,
	})
}
