// Package metrics holds the gateway's Prometheus collectors.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Inbound HTTP
	HTTPRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gateway_http_requests_total",
			Help: "Total inbound HTTP requests",
		},
		[]string{"method", "route", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "gateway_http_request_duration_seconds",
			Help:    "Inbound HTTP request latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	RateLimited = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "gateway_rate_limited_total",
			Help: "Requests rejected by the per-client rate limiter",
		},
	)

	// Auth classification
	Classifications = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gateway_auth_classifications_total",
			Help: "Auth classifications by resolved mode and source (override, cache, table)",
		},
		[]string{"mode", "source"},
	)

	ClassificationCacheEntries = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "gateway_classification_cache_entries",
			Help: "Number of path segments held in the classification cache",
		},
	)

	RoutingRejections = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gateway_routing_rejections_total",
			Help: "Requests rejected before any upstream call",
		},
		[]string{"reason"},
	)

	// Upstream
	UpstreamRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gateway_upstream_requests_total",
			Help: "Upstream calls by auth mode and outcome (success, upstream_error, unreachable, timeout, rejected, canceled)",
		},
		[]string{"mode", "outcome"},
	)

	UpstreamDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "gateway_upstream_duration_seconds",
			Help:    "Upstream round-trip latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"mode"},
	)

	UpstreamReady = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "gateway_upstream_ready",
			Help: "1 when the last readiness probe reached the upstream, 0 otherwise",
		},
	)

	// Circuit breaker
	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "gateway_circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)

	CircuitBreakerTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gateway_circuit_breaker_transitions_total",
			Help: "Circuit breaker state transitions",
		},
		[]string{"name", "from", "to"},
	)
)

// RecordHTTPRequest records one inbound request
func RecordHTTPRequest(method, route, status string, d time.Duration) {
	HTTPRequests.WithLabelValues(method, route, status).Inc()
	HTTPRequestDuration.WithLabelValues(method, route).Observe(d.Seconds())
}

// RecordUpstream records one upstream call
func RecordUpstream(mode, outcome string, d time.Duration) {
	UpstreamRequests.WithLabelValues(mode, outcome).Inc()
	if d > 0 {
		UpstreamDuration.WithLabelValues(mode).Observe(d.Seconds())
	}
}
