package netutil

const (
	// MetricsNamespace is the namespace for all metrics emitted by this module.
	MetricsNamespace = "scmcore"
	// MetricsSubsystemDriver is the subsystem for VC command driver metrics.
	MetricsSubsystemDriver = "vcsdriver"
	// MetricsSubsystemHTTPClient is the subsystem for HTTP client metrics.
	MetricsSubsystemHTTPClient = "http_client"
)
