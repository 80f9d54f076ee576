// Package metrics exposes Prometheus collectors for the proxy runtime,
// mirroring the shape of the teacher's internal/metrics.go: package-level
// promauto collectors registered once at import time, updated from the
// connection handler, the prober and the dispatcher.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RequestsTotal counts forwarded requests by chosen backend and
	// outcome.
	RequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rlb_requests_total",
			Help: "Total number of requests handled by the proxy.",
		},
		[]string{"backend", "outcome"},
	)

	// RequestDurationSeconds measures forwarding latency, from just before
	// the upstream dial to the end of the client write.
	RequestDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "rlb_request_duration_seconds",
			Help:    "Duration of proxied requests in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"backend", "outcome"},
	)

	// BackendTrafficBytes mirrors each backend's cumulative byte counter.
	BackendTrafficBytes = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "rlb_backend_traffic_bytes",
			Help: "Cumulative bytes forwarded to and from each backend.",
		},
		[]string{"backend"},
	)

	// BackendAlive is 1 when the prober last observed a backend online, 0
	// otherwise.
	BackendAlive = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "rlb_backend_alive",
			Help: "Liveness of each backend as last observed by the health prober.",
		},
		[]string{"backend"},
	)

	// AcceptBackoffSeconds tracks the dispatcher's current exponential
	// backoff duration, 0 when the accept loop is healthy.
	AcceptBackoffSeconds = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "rlb_accept_backoff_seconds",
			Help: "Current accept-loop backoff duration in seconds.",
		},
	)
)

// SetBackendAlive records the prober's verdict for a backend.
func SetBackendAlive(address string, alive bool) {
	v := 0.0
	if alive {
		v = 1.0
	}
	BackendAlive.WithLabelValues(address).Set(v)
}

// ObserveTraffic mirrors a backend's cumulative counter into the gauge
// after the handler updates it.
func ObserveTraffic(address string, total uint64) {
	BackendTrafficBytes.WithLabelValues(address).Set(float64(total))
}
