package vcsdriver

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/sitehost/scmcore/pkg/netutil"
)

var (
	invocationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: netutil.MetricsNamespace,
			Subsystem: netutil.MetricsSubsystemDriver,
			Name:      "invocations_total",
			Help:      "Total number of version-control commands invoked, labeled by subcommand and backend.",
		},
		[]string{"subcommand", "backend"},
	)

	invocationFailuresTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: netutil.MetricsNamespace,
			Subsystem: netutil.MetricsSubsystemDriver,
			Name:      "invocation_failures_total",
			Help:      "Total number of version-control commands that failed, labeled by subcommand and backend.",
		},
		[]string{"subcommand", "backend"},
	)

	invocationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: netutil.MetricsNamespace,
			Subsystem: netutil.MetricsSubsystemDriver,
			Name:      "invocation_duration_seconds",
			Help:      "Duration of version-control command invocations in seconds, labeled by subcommand and backend.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"subcommand", "backend"},
	)
)

// subcommandLabel reduces an argv to its first token, the label cardinality
// boundary: "status --porcelain" and "status --porcelain -uall" both record
// under "status".
func subcommandLabel(argv []string) string {
	if len(argv) == 0 {
		return "none"
	}
	return argv[0]
}

func observe(backend string, argv []string, start time.Time, err error) {
	label := subcommandLabel(argv)
	invocationsTotal.WithLabelValues(label, backend).Inc()
	invocationDuration.WithLabelValues(label, backend).Observe(time.Since(start).Seconds())
	if err != nil {
		invocationFailuresTotal.WithLabelValues(label, backend).Inc()
	}
}
