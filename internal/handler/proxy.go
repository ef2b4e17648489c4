package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"

	"cors-gateway-go/internal/model"
	"cors-gateway-go/internal/service"
)

// ProxyHandler fetches the URL named by the "url" query parameter and relays it
// with a permissive CORS header.
type ProxyHandler struct {
	service *service.ProxyService
	logger  *slog.Logger
}

// NewProxyHandler creates a ProxyHandler.
func NewProxyHandler(svc *service.ProxyService, logger *slog.Logger) *ProxyHandler {
	return &ProxyHandler{
		service: svc,
		logger:  logger.With("component", "proxy_handler"),
	}
}

// Handle serves GET /api/proxy?url=<target>.
//
// Nothing is written to the caller until the upstream body has been read in
// full, so a failed fetch always turns into a clean error response.
func (h *ProxyHandler) Handle(c echo.Context) error {
	req := c.Request()

	pr := &model.ProxyRequest{
		Ctx:       req.Context(),
		TargetURL: c.QueryParam("url"),
	}

	resp, err := h.service.Forward(pr)
	if err != nil {
		return h.mapError(c, err)
	}

	c.Response().Header().Set(echo.HeaderAccessControlAllowOrigin, "*")
	if !bodyAllowedForStatus(resp.StatusCode) {
		c.Response().Header().Set(echo.HeaderContentType, resp.ContentType)
		return c.NoContent(resp.StatusCode)
	}
	return c.Blob(resp.StatusCode, resp.ContentType, resp.Body)
}

// bodyAllowedForStatus reports whether a response with the given status may carry a body.
func bodyAllowedForStatus(status int) bool {
	switch {
	case status >= 100 && status <= 199:
		return false
	case status == http.StatusNoContent, status == http.StatusNotModified:
		return false
	}
	return true
}

func (h *ProxyHandler) mapError(c echo.Context, err error) error {
	msg := service.RedactSecrets(err.Error())

	// Let browser callers read the failure text too.
	c.Response().Header().Set(echo.HeaderAccessControlAllowOrigin, "*")

	if errors.Is(err, service.ErrMissingURL) {
		h.logger.Warn("proxy request rejected", "err", msg, "path", c.Request().URL.Path)
		return c.String(http.StatusBadRequest, service.MissingURLMessage)
	}

	var upErr *service.UpstreamError
	if errors.As(err, &upErr) {
		h.logger.Error("proxy error", "err", msg, "path", c.Request().URL.Path)
		return c.String(http.StatusInternalServerError, msg)
	}

	if errors.Is(err, service.ErrHostNotAllowed) {
		h.logger.Warn("proxy request rejected", "err", msg, "path", c.Request().URL.Path)
		return c.String(http.StatusForbidden, msg)
	}

	h.logger.Error("proxy error", "err", msg, "path", c.Request().URL.Path)
	return c.String(http.StatusInternalServerError, msg)
}
