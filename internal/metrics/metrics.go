// Package metrics provides Prometheus metrics for structured output
// generation: request outcomes, retries, provider fallbacks, and cache
// behavior.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	namespace = "jsonmux"
)

// AttemptBuckets defines histogram buckets for attempt latency (in seconds).
var AttemptBuckets = []float64{
	0.05, 0.1, 0.25, 0.5, 1.0, 2.0, 4.0, 8.0, 15.0, 30.0, 60.0, 120.0,
}

var (
	// RequestsTotal counts structured generation requests by final outcome.
	RequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "requests_total",
			Help:      "Structured generation requests by provider and outcome",
		},
		[]string{"provider", "model", "outcome"},
	)

	// RetriesTotal counts in-provider retry attempts beyond the first.
	RetriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "retries_total",
			Help:      "Retry attempts beyond the first, by provider and error code",
		},
		[]string{"provider", "code"},
	)

	// ProviderSwitchesTotal counts fallbacks from one provider to the next.
	ProviderSwitchesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "provider_switches_total",
			Help:      "Fallback transitions between providers",
		},
		[]string{"from", "to"},
	)

	// AttemptDuration tracks the latency of individual provider attempts.
	AttemptDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "attempt_duration_seconds",
			Help:      "Latency of individual provider attempts in seconds",
			Buckets:   AttemptBuckets,
		},
		[]string{"provider", "model"},
	)

	// CacheHitsTotal counts requests served from a completed cache entry.
	CacheHitsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_hits_total",
			Help:      "Requests served from the result cache",
		},
	)

	// CacheCoalescedTotal counts requests that joined an in-flight generation.
	CacheCoalescedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_coalesced_total",
			Help:      "Requests coalesced onto an in-flight generation",
		},
	)

	// RateLimitWait tracks time spent waiting on the client-side limiter.
	RateLimitWait = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "rate_limit_wait_seconds",
			Help:      "Time spent waiting on the client-side rate limiter",
			Buckets:   []float64{0.001, 0.01, 0.05, 0.1, 0.5, 1.0, 5.0, 15.0},
		},
		[]string{"provider"},
	)
)

// Outcome labels for RequestsTotal.
const (
	OutcomeSuccess = "success"
	OutcomeError   = "error"
	OutcomeCached  = "cached"
)
