// Package metrics provides Prometheus instrumentation for the broadcast
// service. A nil *Metrics is a valid no-op receiver, so callers that run
// without metrics pay nothing.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the broadcast service collectors.
type Metrics struct {
	publishes     prometheus.Counter
	fetches       *prometheus.CounterVec
	fetchDuration prometheus.Histogram
	sweepRemovals prometheus.Counter
	registrySize  prometheus.Gauge
}

// New registers the broadcast collectors with reg.
func New(reg prometheus.Registerer) *Metrics {
	return &Metrics{
		publishes: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Name: "broadcast_publishes_total",
			Help: "Total number of broadcast values published by this origin",
		}),
		fetches: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "broadcast_fetches_total",
			Help: "Total number of broadcast dereferences by outcome",
		}, []string{"outcome"}), // "cache_hit", "remote", "error"
		fetchDuration: promauto.With(reg).NewHistogram(prometheus.HistogramOpts{
			Name:    "broadcast_fetch_duration_seconds",
			Help:    "Duration of remote broadcast fetches",
			Buckets: prometheus.DefBuckets,
		}),
		sweepRemovals: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Name: "broadcast_sweep_removals_total",
			Help: "Total number of registry entries removed by the cleanup sweep",
		}),
		registrySize: promauto.With(reg).NewGauge(prometheus.GaugeOpts{
			Name: "broadcast_registry_entries",
			Help: "Current number of entries in the origin file registry",
		}),
	}
}

// ObservePublish records one published broadcast.
func (m *Metrics) ObservePublish() {
	if m != nil {
		m.publishes.Inc()
	}
}

// ObserveFetch records one dereference with its outcome.
func (m *Metrics) ObserveFetch(outcome string) {
	if m != nil {
		m.fetches.WithLabelValues(outcome).Inc()
	}
}

// ObserveFetchDuration records the duration of a remote fetch in seconds.
func (m *Metrics) ObserveFetchDuration(seconds float64) {
	if m != nil {
		m.fetchDuration.Observe(seconds)
	}
}

// ObserveSweepRemovals records entries removed by one sweep.
func (m *Metrics) ObserveSweepRemovals(n int) {
	if m != nil {
		m.sweepRemovals.Add(float64(n))
	}
}

// SetRegistrySize records the current registry entry count.
func (m *Metrics) SetRegistrySize(n int) {
	if m != nil {
		m.registrySize.Set(float64(n))
	}
}
