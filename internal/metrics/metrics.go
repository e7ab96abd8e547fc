// Package metrics defines the daemon's prometheus instrumentation.
package metrics

import "github.com/prometheus/client_golang/prometheus"

// Metrics groups every collector the daemon registers.
type Metrics struct {
	ConnectedSessions prometheus.Gauge
	PluginRestarts    *prometheus.CounterVec
	QueryLatency      prometheus.Histogram
	IndexedItems      *prometheus.GaugeVec
}

// New constructs and registers all collectors against reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		ConnectedSessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "hamr",
			Name:      "connected_sessions",
			Help:      "Number of currently connected daemon sessions.",
		}),
		PluginRestarts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "hamr",
			Name:      "plugin_restarts_total",
			Help:      "Total number of supervised plugin process restarts.",
		}, []string{"plugin_id"}),
		QueryLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "hamr",
			Name:      "query_latency_seconds",
			Help:      "Latency of query_changed handling end to end.",
			Buckets:   prometheus.DefBuckets,
		}),
		IndexedItems: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "hamr",
			Name:      "indexed_items",
			Help:      "Number of indexed items per plugin.",
		}, []string{"plugin_id"}),
	}

	reg.MustRegister(m.ConnectedSessions, m.PluginRestarts, m.QueryLatency, m.IndexedItems)
	return m
}
