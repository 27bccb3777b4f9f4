package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the Prometheus metrics for the registry cache.
type Metrics struct {
	Refreshes     *prometheus.CounterVec
	SnapshotSize  prometheus.Gauge
	ResolveMisses prometheus.Counter
}

// New creates and registers the registry metrics.
func New() *Metrics {
	return &Metrics{
		Refreshes: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "rtp_registry_refreshes_total",
			Help: "Registry snapshot refreshes by outcome.",
		}, []string{"outcome"}),
		SnapshotSize: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "rtp_registry_snapshot_providers",
			Help: "Service providers in the current registry snapshot.",
		}),
		ResolveMisses: promauto.NewCounter(prometheus.CounterOpts{
			Name: "rtp_registry_resolve_misses_total",
			Help: "Lookups for service providers absent from the snapshot.",
		}),
	}
}
