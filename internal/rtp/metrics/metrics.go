package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the Prometheus metrics for the RTP lifecycle.
type Metrics struct {
	Sends     *prometheus.CounterVec
	Callbacks *prometheus.CounterVec
	SendTime  prometheus.Histogram
}

// New creates and registers the RTP metrics.
func New() *Metrics {
	return &Metrics{
		Sends: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "rtp_sends_total",
			Help: "Outbound RTP dispatches by outcome.",
		}, []string{"outcome"}),
		Callbacks: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "rtp_callbacks_total",
			Help: "Inbound callback triggers by applied event.",
		}, []string{"trigger"}),
		SendTime: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "rtp_send_duration_seconds",
			Help:    "Wall time of the full outbound dispatch sequence.",
			Buckets: prometheus.DefBuckets,
		}),
	}
}
