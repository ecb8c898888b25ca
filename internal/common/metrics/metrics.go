// internal/common/metrics/metrics.go
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	NavigationTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "onboarding_navigation_transitions_total",
			Help: "Navigation attempts by direction and resulting status",
		},
		[]string{"flow_type", "direction", "status"},
	)

	ValidationFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "onboarding_validation_failures_total",
			Help: "Blocked navigation attempts by error code",
		},
		[]string{"flow_type", "error_code"},
	)

	Completions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "onboarding_completions_total",
			Help: "Completion attempts by outcome",
		},
		[]string{"flow_type", "outcome"},
	)

	RemoteCallDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "onboarding_remote_call_duration_seconds",
			Help:    "Latency of uniqueness and save calls",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"endpoint", "outcome"},
	)

	CacheMirrorFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "onboarding_cache_mirror_failures_total",
			Help: "Fire-and-forget durable cache writes that failed",
		},
		[]string{"operation"},
	)

	ActiveSessions = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "onboarding_active_sessions",
			Help: "Sessions currently held in memory",
		},
		[]string{"flow_type"},
	)
)
