package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var registry = prometheus.NewRegistry()

var registerer = prometheus.WrapRegistererWith(nil, registry)

var (
	// Latency buckets in seconds, sized for a remote classification call
	// bounded by a 30s timeout.
	checkDurationBuckets = []float64{
		0.005, 0.01, 0.025,
		0.05, 0.1, 0.25,
		0.5, 1, 2.5,
		5, 10, 30,
	}

	ChecksTotal = promauto.With(registerer).NewCounterVec(
		prometheus.CounterOpts{
			Name: "railguard_checks_total",
			Help: "Total number of guardrail checks by stage and status",
		},
		[]string{"stage", "status"},
	)

	CheckDuration = promauto.With(registerer).NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "railguard_check_duration_seconds",
			Help:    "Guardrail check duration in seconds",
			Buckets: checkDurationBuckets,
		},
		[]string{"stage"},
	)

	BlockedTotal = promauto.With(registerer).NewCounterVec(
		prometheus.CounterOpts{
			Name: "railguard_blocked_total",
			Help: "Total number of blocked messages by violated policy",
		},
		[]string{"policy"},
	)
)

// Registry exposes the metrics registry for the /metrics handler.
func Registry() *prometheus.Registry {
	return registry
}
