package netutil

import (
	"net/url"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	clientRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: MetricsNamespace,
			Subsystem: MetricsSubsystemHTTPClient,
			Name:      "requests_total",
			Help:      "Total number of outbound HTTP requests, labeled by target and outcome (ok, non_2xx, error).",
		},
		[]string{"target", "outcome"},
	)

	clientRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: MetricsNamespace,
			Subsystem: MetricsSubsystemHTTPClient,
			Name:      "request_duration_seconds",
			Help:      "Outbound HTTP request latency in seconds, labeled by target.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"target"},
	)
)

// sanitizeTarget collapses a request URL to scheme+host+path so labels
// stay low-cardinality: sync_triggers' payload and query strings vary
// request to request, but the endpoint shape it hits doesn't.
func sanitizeTarget(rawURL string) string {
	parsed, err := url.Parse(rawURL)
	if err != nil || parsed.Host == "" {
		return "unknown"
	}
	path := parsed.Path
	if path == "" {
		path = "/"
	}
	return parsed.Scheme + "://" + parsed.Host + path
}

// recordClientRequest records one outbound request's outcome and latency.
func recordClientRequest(target, outcome string, duration time.Duration) {
	clientRequestsTotal.WithLabelValues(target, outcome).Inc()
	clientRequestDuration.WithLabelValues(target).Observe(duration.Seconds())
}
