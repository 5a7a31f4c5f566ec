// Package opsclient posts operational payloads — currently just the
// aggregated trigger-binding list — to the runtime's operations endpoint.
package opsclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/sitehost/scmcore/pkg/netutil"
	"github.com/sitehost/scmcore/pkg/sctx"
)

// defaultTimeout is a conservative ceiling applied when the caller's
// context carries no deadline of its own.
const defaultTimeout = 30 * time.Second

var (
	postsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: netutil.MetricsNamespace,
			Subsystem: "opsclient",
			Name:      "posts_total",
			Help:      "Total number of operations-endpoint POSTs, labeled by relative path and outcome.",
		},
		[]string{"path", "outcome"},
	)
)

// Client posts JSON bodies to paths relative to a base operations URL.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// New returns a Client that posts against baseURL (e.g.
// "http://localhost:31003", to which a path such as
// "/operations/settriggers" is appended), using httpClient if non-nil or
// netutil.RetryableHTTPClient() otherwise.
func New(baseURL string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = netutil.RetryableHTTPClient()
	}
	return &Client{baseURL: strings.TrimRight(baseURL, "/"), httpClient: httpClient}
}

// Post sends body, JSON-encoded, to relativePath under the client's base
// URL. body is typically a []jsonvalue.Value so unknown fields on each
// element survive re-marshaling verbatim.
func (c *Client) Post(ctx sctx.Context, relativePath string, body any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("opsclient: marshal body for %s: %w", relativePath, err)
	}

	reqCtx, cancel := contextWithDefaultTimeout(ctx)
	defer cancel()

	fullURL, err := url.JoinPath(c.baseURL, relativePath)
	if err != nil {
		return fmt.Errorf("opsclient: build URL for %s: %w", relativePath, err)
	}

	req, err := http.NewRequestWithContext(reqCtx, http.MethodPost, fullURL, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("opsclient: build request for %s: %w", relativePath, err)
	}
	req.Header.Set("Content-Type", "application/json")

	log := ctx.Logger().WithValues("path", relativePath, "bodyBytes", len(payload))
	log.V(1).Info("posting operation")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		postsTotal.WithLabelValues(relativePath, "error").Inc()
		return fmt.Errorf("opsclient: POST %s: %w", relativePath, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		postsTotal.WithLabelValues(relativePath, "non_2xx").Inc()
		return fmt.Errorf("opsclient: POST %s: unexpected status %s", relativePath, resp.Status)
	}
	postsTotal.WithLabelValues(relativePath, "ok").Inc()
	return nil
}

func contextWithDefaultTimeout(ctx sctx.Context) (context.Context, context.CancelFunc) {
	if _, ok := ctx.Deadline(); ok {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, defaultTimeout)
}
