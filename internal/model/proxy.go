// Package model defines shared types for the gateway.
package model

import "context"

// DefaultContentType is used when the upstream response omits Content-Type.
const DefaultContentType = "application/json"

// ProxyRequest represents a caller's request to fetch a third-party URL.
type ProxyRequest struct {
	Ctx       context.Context
	TargetURL string
}

// UpstreamResponse is the fully read upstream response relayed to the caller.
type UpstreamResponse struct {
	StatusCode  int
	ContentType string
	Body        []byte
}
