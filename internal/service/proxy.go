// Package service implements the core forwarding logic.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"

	"cors-gateway-go/internal/client"
	"cors-gateway-go/internal/config"
	"cors-gateway-go/internal/model"
)

// MissingURLMessage is the fixed response text for requests without a target.
const MissingURLMessage = "Missing 'url' parameter"

// ErrMissingURL is returned when the caller did not supply a target URL.
var ErrMissingURL = errors.New("missing url parameter")

// ErrHostNotAllowed is returned when the target host is outside proxy.allowed_hosts.
var ErrHostNotAllowed = client.ErrHostNotAllowed

// UpstreamError wraps every failure that happens while building, sending or
// reading the upstream fetch. Callers see a single error kind regardless of
// whether the cause was DNS, a refused connection, a timeout or a bad URL.
type UpstreamError struct {
	Err error
}

func (e *UpstreamError) Error() string { return e.Err.Error() }

func (e *UpstreamError) Unwrap() error { return e.Err }

// Fetcher performs a single upstream GET.
type Fetcher interface {
	Fetch(ctx context.Context, target string) (*model.UpstreamResponse, error)
}

// ProxyService handles the forwarding logic for proxy requests.
type ProxyService struct {
	fetcher       Fetcher
	allow         client.HostAllowList
	forwardStatus bool
	logger        *slog.Logger
}

// NewProxyService creates a ProxyService backed by the upstream client.
func NewProxyService(c *client.UpstreamClient, cfg *config.Config, logger *slog.Logger) *ProxyService {
	return newProxyService(c, cfg, logger)
}

func newProxyService(f Fetcher, cfg *config.Config, logger *slog.Logger) *ProxyService {
	return &ProxyService{
		fetcher:       f,
		allow:         client.HostAllowList(cfg.Proxy.AllowedHosts),
		forwardStatus: cfg.Upstream.ForwardStatus,
		logger:        logger.With("component", "proxy_service"),
	}
}

// Forward fetches pr.TargetURL exactly once and returns the response to relay.
//
// The returned StatusCode is what the caller should see: a fixed 200 unless
// upstream.forward_status is enabled.
func (s *ProxyService) Forward(pr *model.ProxyRequest) (*model.UpstreamResponse, error) {
	if pr.TargetURL == "" {
		return nil, ErrMissingURL
	}

	if len(s.allow) > 0 {
		u, err := url.Parse(pr.TargetURL)
		if err != nil {
			return nil, &UpstreamError{Err: fmt.Errorf("parse target: %w", err)}
		}
		if !s.allow.Allows(u.Hostname()) {
			return nil, fmt.Errorf("%w: %q", ErrHostNotAllowed, u.Hostname())
		}
	}

	s.logger.Info("proxying request", "target", RedactSecrets(pr.TargetURL))

	resp, err := s.fetcher.Fetch(pr.Ctx, pr.TargetURL)
	if err != nil {
		return nil, &UpstreamError{Err: err}
	}

	if resp.StatusCode != http.StatusOK {
		s.logger.Debug("upstream returned non-200 status",
			"status", resp.StatusCode,
			"forward_status", s.forwardStatus,
		)
	}
	if !s.forwardStatus {
		resp.StatusCode = http.StatusOK
	}
	return resp, nil
}
