package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	dto "github.com/prometheus/client_model/go"

	"cors-gateway-go/internal/metrics"
)

// findRequestMetric returns the cors_gateway_http_requests_total sample whose
// labels include every entry of want, or nil.
func findRequestMetric(t *testing.T, m *metrics.Metrics, want map[string]string) *dto.Metric {
	t.Helper()
	families, err := m.Registry.Gather()
	if err != nil {
		t.Fatalf("Gather() error = %v", err)
	}
	for _, f := range families {
		if f.GetName() != "cors_gateway_http_requests_total" {
			continue
		}
	next:
		for _, metric := range f.GetMetric() {
			labels := make(map[string]string)
			for _, lp := range metric.GetLabel() {
				labels[lp.GetName()] = lp.GetValue()
			}
			for k, v := range want {
				if labels[k] != v {
					continue next
				}
			}
			return metric
		}
	}
	return nil
}

func TestMetricsMiddleware_IncrementsCounter(t *testing.T) {
	m := metrics.New()

	e := echo.New()
	e.Use(MetricsMiddleware(m))
	e.GET("/api/proxy", func(c echo.Context) error {
		return c.String(http.StatusOK, "ok")
	})

	req := httptest.NewRequest(http.MethodGet, "/api/proxy?url=https%3A%2F%2Fexample.com", http.NoBody)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}

	metric := findRequestMetric(t, m, map[string]string{"path_prefix": "/api/proxy", "status_code": "200"})
	if metric == nil {
		t.Fatal("expected cors_gateway_http_requests_total with path_prefix=/api/proxy")
	}
	if v := metric.GetCounter().GetValue(); v != 1 {
		t.Errorf("counter value = %v, want 1", v)
	}
}

func TestMetricsMiddleware_RecordsDuration(t *testing.T) {
	m := metrics.New()

	e := echo.New()
	e.Use(MetricsMiddleware(m))
	e.GET("/healthz", func(c echo.Context) error {
		return c.String(http.StatusOK, "ok")
	})

	req := httptest.NewRequest(http.MethodGet, "/healthz", http.NoBody)
	e.ServeHTTP(httptest.NewRecorder(), req)

	families, err := m.Registry.Gather()
	if err != nil {
		t.Fatalf("Gather() error = %v", err)
	}

	found := false
	for _, f := range families {
		if f.GetName() == "cors_gateway_http_request_duration_seconds" {
			for _, metric := range f.GetMetric() {
				if metric.GetHistogram().GetSampleCount() > 0 {
					found = true
				}
			}
		}
	}
	if !found {
		t.Error("expected cors_gateway_http_request_duration_seconds with at least one sample")
	}
}

func TestMetricsMiddleware_HTTPErrorStatus(t *testing.T) {
	m := metrics.New()

	e := echo.New()
	e.Use(MetricsMiddleware(m))
	e.GET("/api/proxy", func(c echo.Context) error {
		return echo.NewHTTPError(http.StatusBadGateway, "upstream down")
	})

	req := httptest.NewRequest(http.MethodGet, "/api/proxy", http.NoBody)
	e.ServeHTTP(httptest.NewRecorder(), req)

	if findRequestMetric(t, m, map[string]string{"path_prefix": "/api/proxy", "status_code": "502"}) == nil {
		t.Error("expected cors_gateway_http_requests_total with path_prefix=/api/proxy, status_code=502")
	}
}

func TestMetricsMiddleware_UnknownMethodNormalized(t *testing.T) {
	m := metrics.New()

	e := echo.New()
	e.Use(MetricsMiddleware(m))
	e.Any("/api/proxy", func(c echo.Context) error {
		return c.String(http.StatusOK, "ok")
	})

	req := httptest.NewRequest("XYZZY", "/api/proxy", http.NoBody)
	e.ServeHTTP(httptest.NewRecorder(), req)

	if findRequestMetric(t, m, map[string]string{"path_prefix": "/api/proxy", "method": "other"}) == nil {
		t.Error("expected cors_gateway_http_requests_total with method=other")
	}
}

func TestMetricsMiddleware_StaticNotFound(t *testing.T) {
	m := metrics.New()

	e := echo.New()
	e.Use(MetricsMiddleware(m))

	req := httptest.NewRequest(http.MethodGet, "/missing.html", http.NoBody)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusNotFound)
	}
	want := map[string]string{"path_prefix": "static", "method": "GET", "status_code": "404"}
	if findRequestMetric(t, m, want) == nil {
		t.Error("expected cors_gateway_http_requests_total with path_prefix=static, method=GET, status_code=404")
	}
}

func TestMetricsMiddleware_SkipsScrapePath(t *testing.T) {
	m := metrics.New()

	e := echo.New()
	e.Use(MetricsMiddleware(m, "/metrics"))
	e.GET("/metrics", func(c echo.Context) error {
		return c.String(http.StatusOK, "# metrics")
	})

	req := httptest.NewRequest(http.MethodGet, "/metrics", http.NoBody)
	e.ServeHTTP(httptest.NewRecorder(), req)

	if findRequestMetric(t, m, map[string]string{"path_prefix": "/metrics"}) != nil {
		t.Error("scrape requests should not be recorded")
	}
}
