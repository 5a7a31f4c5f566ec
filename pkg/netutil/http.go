// Package netutil builds the retrying, metrics-instrumented HTTP client
// opsclient uses to POST the sync_triggers aggregate, and the
// Recover/RecoverWithExit panic-isolation helpers shared across this
// module's suspending operations.
package netutil

import (
	"net/http"
	"time"

	"github.com/hashicorp/go-retryablehttp"
)

// userAgentTransport tags every outbound request before handing it to the
// next RoundTripper.
type userAgentTransport struct {
	next http.RoundTripper
}

func newUserAgentTransport(next http.RoundTripper) *userAgentTransport {
	if next == nil {
		next = http.DefaultTransport
	}
	return &userAgentTransport{next: next}
}

func (t *userAgentTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	req.Header.Set("User-Agent", "scmcore")
	return t.next.RoundTrip(req)
}

// instrumentedTransport wraps a RoundTripper with the Prometheus metrics
// defined in http_metrics.go, keyed on a sanitized request target.
type instrumentedTransport struct {
	next http.RoundTripper
}

// NewInstrumentedTransport wraps next (http.DefaultTransport if nil) so every
// round trip records request-count and latency metrics.
func NewInstrumentedTransport(next http.RoundTripper) http.RoundTripper {
	if next == nil {
		next = http.DefaultTransport
	}
	return &instrumentedTransport{next: next}
}

func (t *instrumentedTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	target := sanitizeTarget(req.URL.String())
	start := time.Now()
	resp, err := t.next.RoundTrip(req)
	switch {
	case err != nil:
		recordClientRequest(target, "error", time.Since(start))
	case resp.StatusCode >= 300:
		recordClientRequest(target, "non_2xx", time.Since(start))
	default:
		recordClientRequest(target, "ok", time.Since(start))
	}
	return resp, err
}

// RetryableHTTPClient returns an *http.Client backed by
// hashicorp/go-retryablehttp (up to three retries after the first attempt,
// exponential backoff between them; once the retries are used up the
// request fails with an error instead of returning the last response),
// instrumented with request metrics and a fixed user agent.
// opsclient.New falls back to this when the caller supplies no client of
// its own.
func RetryableHTTPClient() *http.Client {
	retrying := retryablehttp.NewClient()
	retrying.RetryMax = 3
	retrying.Logger = nil
	retrying.HTTPClient.Transport = NewInstrumentedTransport(newUserAgentTransport(nil))
	return retrying.StandardClient()
}
