package handler

import (
	"strings"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"cors-gateway-go/internal/config"
	"cors-gateway-go/internal/metrics"
)

// RegisterRoutes wires all route handlers onto the Echo instance. Paths that
// start with the proxy prefix go to the proxy handler; everything the router
// does not own is served from the static root.
func RegisterRoutes(e *echo.Echo, cfg *config.Config, proxy *ProxyHandler, health *HealthHandler, m *metrics.Metrics) {
	e.GET("/healthz", health.Healthz)
	e.GET("/gateway/status", health.Status)

	// Prefix match: /api/proxy, /api/proxy/ and /api/proxy?url=... all land here.
	e.GET(config.ProxyPrefix, proxy.Handle)
	e.GET(config.ProxyPrefix+"*", proxy.Handle)

	// The proxy route matches by raw prefix; the others own only their path and subpaths.
	reserved := make([]string, 0, len(config.ReservedRoutes)+1)
	for _, r := range config.ReservedRoutes {
		if r == config.ProxyPrefix {
			r += "*"
		}
		reserved = append(reserved, r)
	}
	if cfg.Metrics.Enabled && m != nil {
		e.GET(cfg.Metrics.Path, echo.WrapHandler(promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{})))
		reserved = append(reserved, cfg.Metrics.Path)
	}

	e.Use(echomw.StaticWithConfig(echomw.StaticConfig{
		Skipper: StaticSkipper(reserved...),
		Root:    cfg.Static.Root,
		Index:   cfg.Static.Index,
		Browse:  cfg.Static.BrowseEnabled(),
	}))
}

// StaticSkipper keeps the static file server away from the gateway's own routes.
// A route ending in "*" matches every path with that prefix; any other route
// matches itself and the paths below it.
func StaticSkipper(routes ...string) echomw.Skipper {
	return func(c echo.Context) bool {
		p := c.Request().URL.Path
		for _, r := range routes {
			if prefix, ok := strings.CutSuffix(r, "*"); ok {
				if strings.HasPrefix(p, prefix) {
					return true
				}
				continue
			}
			if p == r || strings.HasPrefix(p, r+"/") {
				return true
			}
		}
		return false
	}
}
