// Package metrics defines and registers all custom Prometheus metrics for the
// marketplace client. It is the single source of truth for metric names,
// labels, and help strings.
//
// Metrics are registered with the default Prometheus registry on import and
// exposed by the ops API at /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "marketplace"

// ── Request pipeline ─────────────────────────────────────────────────────────

// RequestsTotal counts completed outbound API calls.
// Labels:
//   - method: HTTP method
//   - route: the path actually requested, ids collapsed to ":id"
//   - status: HTTP status code, or "error" on transport failure
var RequestsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "requests_total",
		Help:      "Total number of outbound API requests.",
	},
	[]string{"method", "route", "status"},
)

// RequestDuration measures outbound request latency.
var RequestDuration = promauto.NewHistogramVec(
	prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "request_duration_seconds",
		Help:      "Duration of outbound API requests.",
		Buckets:   prometheus.DefBuckets,
	},
	[]string{"method"},
)

// RetriesTotal counts retry attempts.
// Label:
//   - type: the error taxonomy value that triggered the retry
var RetriesTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "retries_total",
		Help:      "Total number of retried requests, by error type.",
	},
	[]string{"type"},
)

// CircuitOpen is 1 while the named breaker is open, 0 otherwise.
var CircuitOpen = promauto.NewGaugeVec(
	prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "circuit_open",
		Help:      "Whether the circuit breaker is currently open.",
	},
	[]string{"breaker"},
)

// RouteFallbacksTotal counts requests redirected to a fallback route.
var RouteFallbacksTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "route_fallbacks_total",
		Help:      "Total number of requests sent to a fallback route.",
	},
	[]string{"from"},
)

// ── Cache ────────────────────────────────────────────────────────────────────

// CacheLookupsTotal counts cache decisions.
// Label:
//   - result: "hit" (fresh), "stale" (served while revalidating) or "miss"
var CacheLookupsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "cache_lookups_total",
		Help:      "Total number of cache lookups, labelled by result (hit/stale/miss).",
	},
	[]string{"result"},
)

// RefreshQueueDepth tracks pending background revalidations per worker.
var RefreshQueueDepth = promauto.NewGaugeVec(
	prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "refresh_queue_depth",
		Help:      "Current number of cache refresh jobs pending in each worker channel.",
	},
	[]string{"worker_id"},
)

// ── Domain ───────────────────────────────────────────────────────────────────

// BookingsCreatedTotal counts bookings committed by this client.
var BookingsCreatedTotal = promauto.NewCounter(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "bookings_created_total",
		Help:      "Total number of bookings created through this client.",
	},
)
