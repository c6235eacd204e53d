// Package obs carries the observability ambient concern: Prometheus
// metrics and structured logging, wired into the façade but never
// required by it (both default to no-ops).
package obs

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the index-level Prometheus collectors, a struct of
// promauto-style collectors registered into a private *prometheus.Registry
// rather than the global default one: an Index can be constructed many
// times in a single process (tests, multiple indexes), and the default
// registry would panic on the second registration of the same metric name.
type Metrics struct {
	Registry *prometheus.Registry

	Size              prometheus.Gauge
	InsertTotal       prometheus.Counter
	InsertDuration    prometheus.Histogram
	SearchTotal       prometheus.Counter
	SearchDuration    prometheus.Histogram
	SearchEfEffective prometheus.Histogram
}

// NewMetrics builds a fresh, independently registered Metrics instance.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		Registry: reg,
		Size: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "proxigraph_size",
			Help: "Number of vectors currently stored in the index.",
		}),
		InsertTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "proxigraph_insert_total",
			Help: "Total number of successful inserts.",
		}),
		InsertDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "proxigraph_insert_duration_seconds",
			Help:    "Insert latency in seconds.",
			Buckets: prometheus.DefBuckets,
		}),
		SearchTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "proxigraph_search_total",
			Help: "Total number of searches.",
		}),
		SearchDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "proxigraph_search_duration_seconds",
			Help:    "Search latency in seconds.",
			Buckets: prometheus.DefBuckets,
		}),
		SearchEfEffective: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "proxigraph_search_ef_effective",
			Help:    "Effective beam width (max(ef_search, k)) used per search.",
			Buckets: []float64{8, 16, 32, 64, 128, 256, 512, 1024},
		}),
	}
	reg.MustRegister(m.Size, m.InsertTotal, m.InsertDuration, m.SearchTotal, m.SearchDuration, m.SearchEfEffective)
	return m
}
