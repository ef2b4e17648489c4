// Package client provides the HTTP client used to fetch third-party URLs.
package client

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"time"

	"cors-gateway-go/internal/config"
	"cors-gateway-go/internal/metrics"
	"cors-gateway-go/internal/model"
)

// maxRedirects matches the redirect limit of net/http's default policy.
const maxRedirects = 10

// ErrResponseTooLarge is returned when the upstream body exceeds upstream.max_response_bytes.
var ErrResponseTooLarge = errors.New("upstream response exceeds size limit")

// UpstreamClient performs single GET fetches against caller-supplied URLs.
type UpstreamClient struct {
	httpClient *http.Client
	userAgent  string
	maxBody    int64
	logger     *slog.Logger
	metrics    *metrics.Metrics
}

// NewUpstreamClient creates an UpstreamClient with the configured timeouts and target policy.
// The metrics parameter is optional; pass nil to disable upstream metrics recording.
func NewUpstreamClient(cfg *config.Config, logger *slog.Logger, m *metrics.Metrics) *UpstreamClient {
	dialer := &net.Dialer{
		Timeout:   time.Duration(cfg.Upstream.DialTimeoutSeconds) * time.Second,
		KeepAlive: 30 * time.Second,
	}
	if cfg.Proxy.BlockPrivateNetworks {
		dialer.Control = denyPrivateAddresses
	}

	transport := &http.Transport{
		DialContext:         dialer.DialContext,
		MaxIdleConns:        cfg.Upstream.IdleConnections,
		MaxIdleConnsPerHost: cfg.Upstream.IdleConnections,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: 10 * time.Second,
	}

	// An environment proxy would hide the real destination from the dial guard.
	if !cfg.Proxy.BlockPrivateNetworks {
		transport.Proxy = http.ProxyFromEnvironment
	}

	allow := HostAllowList(cfg.Proxy.AllowedHosts)

	return &UpstreamClient{
		httpClient: &http.Client{
			Transport: transport,
			Timeout:   time.Duration(cfg.Upstream.TimeoutSeconds) * time.Second,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= maxRedirects {
					return fmt.Errorf("stopped after %d redirects", maxRedirects)
				}
				if !allow.Allows(req.URL.Hostname()) {
					return fmt.Errorf("%w: redirect to %q", ErrHostNotAllowed, req.URL.Hostname())
				}
				return nil
			},
		},
		userAgent: cfg.Upstream.UserAgent,
		maxBody:   cfg.Upstream.MaxResponseBytes,
		logger:    logger.With("component", "upstream_client"),
		metrics:   m,
	}
}

// Fetch issues a GET for target and reads the whole response body.
// Any upstream status code counts as success; only transport, timeout and
// read failures are returned as errors.
func (c *UpstreamClient) Fetch(ctx context.Context, target string) (*model.UpstreamResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("build upstream request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)

	start := time.Now()
	resp, err := c.do(req)
	c.observe(start, resp, err)
	return resp, err
}

func (c *UpstreamClient) do(req *http.Request) (*model.UpstreamResponse, error) {
	c.logger.Debug("upstream request", "host", req.URL.Host, "path", req.URL.Path)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("upstream request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	var body io.Reader = resp.Body
	if c.maxBody > 0 {
		body = io.LimitReader(resp.Body, c.maxBody+1)
	}

	data, err := io.ReadAll(body)
	if err != nil {
		return nil, fmt.Errorf("read upstream body: %w", err)
	}
	if c.maxBody > 0 && int64(len(data)) > c.maxBody {
		return nil, fmt.Errorf("%w of %d bytes", ErrResponseTooLarge, c.maxBody)
	}

	contentType := resp.Header.Get("Content-Type")
	if contentType == "" {
		contentType = model.DefaultContentType
	}

	return &model.UpstreamResponse{
		StatusCode:  resp.StatusCode,
		ContentType: contentType,
		Body:        data,
	}, nil
}

func (c *UpstreamClient) observe(start time.Time, resp *model.UpstreamResponse, err error) {
	if c.metrics == nil {
		return
	}
	c.metrics.UpstreamDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		c.metrics.UpstreamErrors.Inc()
		return
	}
	c.metrics.UpstreamResponses.WithLabelValues(metrics.StatusClass(resp.StatusCode)).Inc()
}
