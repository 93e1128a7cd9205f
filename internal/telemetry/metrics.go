// Package telemetry wires the Prometheus metrics registry shared across the
// gateway, rate limiter, and audit WAL, using promauto.With(reg) on a
// dedicated Registerer under this service's namespace.
package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "edgegateway"

// Metrics is the full set of gauges/counters/histograms the gateway
// publishes at /metrics on the internal control-plane listener.
type Metrics struct {
	RequestsTotal     *prometheus.CounterVec
	RequestDuration   *prometheus.HistogramVec
	RateLimitRejected *prometheus.CounterVec
	ReadOnlyRejected  prometheus.Counter
	PolicyDenied      *prometheus.CounterVec
	WALQueueDepth     prometheus.Gauge
	WALDropsTotal     prometheus.Counter
	DispatcherRetries prometheus.Counter
	JWKSRefreshTotal  *prometheus.CounterVec
	UpstreamRequestsTotal *prometheus.CounterVec
	UpstreamBreakerState  *prometheus.GaugeVec
}

// NewMetrics registers and returns a Metrics bundle against reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		RequestsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "requests_total",
			Help:      "Total inbound requests handled by the edge gateway.",
		}, []string{"method", "slug", "status"}),

		RequestDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "request_duration_seconds",
			Help:      "End-to-end request latency, from request-id assignment to response finalize.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "slug", "status"}),

		RateLimitRejected: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rate_limit_rejected_total",
			Help:      "Requests denied by the fixed-window rate limiter.",
		}, []string{"method"}),

		ReadOnlyRejected: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "read_only_rejected_total",
			Help:      "Requests denied by the read-only gate.",
		}),

		PolicyDenied: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "policy_denied_total",
			Help:      "Requests denied by the route-policy gate, by reason code.",
		}, []string{"code"}),

		WALQueueDepth: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "wal_queue_depth",
			Help:      "Events enqueued but not yet acknowledged or poisoned.",
		}),

		WALDropsTotal: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "wal_drops_total",
			Help:      "Audit events refused due to back-pressure (disk usage over DROP_AFTER_MB).",
		}),

		DispatcherRetries: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "dispatcher_retries_total",
			Help:      "Audit dispatcher batch-send retries due to retriable failures.",
		}),

		JWKSRefreshTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "jwks_refresh_total",
			Help:      "JWKS cache refresh attempts, by outcome.",
		}, []string{"outcome"}),

		UpstreamRequestsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "upstream_requests_total",
			Help:      "S2SProxy upstream calls, by target host and outcome (ok, circuit_open, error, or an apperr code such as upstream_timeout).",
		}, []string{"host", "outcome"}),

		UpstreamBreakerState: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "upstream_breaker_state",
			Help:      "Per-host circuit breaker state: 0=closed, 1=half-open, 2=open.",
		}, []string{"host"}),
	}
}
