package api

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	echo "github.com/labstack/echo/v5"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"

	"github.com/tarsygate/llmgate/pkg/metrics"
)

func TestSecurityHeaders(t *testing.T) {
	e := echo.New()
	e.Use(securityHeaders())
	e.GET("/test", func(c *echo.Context) error {
		return c.String(http.StatusOK, "ok")
	})

	req := httptest.NewRequest(http.MethodGet, "/test", nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "DENY", rec.Header().Get("X-Frame-Options"))
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "strict-origin-when-cross-origin", rec.Header().Get("Referrer-Policy"))
	assert.Equal(t, "camera=(), microphone=(), geolocation=()", rec.Header().Get("Permissions-Policy"))
}

func countRequests(route, outcome string) float64 {
	return testutil.ToFloat64(metrics.RequestsTotal.WithLabelValues(route, outcome))
}

func TestRequestMetrics_SuccessRecordsOutcomeBucket(t *testing.T) {
	e := echo.New()
	e.Use(requestMetrics())
	e.GET("/test-ok", func(c *echo.Context) error {
		return c.String(http.StatusOK, "ok")
	})

	before := countRequests("/test-ok", "2xx")

	req := httptest.NewRequest(http.MethodGet, "/test-ok", nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, before+1, countRequests("/test-ok", "2xx"))
}

func TestRequestMetrics_HTTPErrorRecordsItsOwnCode(t *testing.T) {
	e := echo.New()
	e.HTTPErrorHandler = detailErrorHandler
	e.Use(requestMetrics())
	e.GET("/test-forbidden", func(c *echo.Context) error {
		return echo.NewHTTPError(http.StatusForbidden, "nope")
	})

	before := countRequests("/test-forbidden", "4xx")

	req := httptest.NewRequest(http.MethodGet, "/test-forbidden", nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, before+1, countRequests("/test-forbidden", "4xx"))
}

func TestRequestMetrics_PlainErrorBucketsAs5xx(t *testing.T) {
	e := echo.New()
	e.Use(requestMetrics())
	e.GET("/test-broken", func(c *echo.Context) error {
		return errors.New("boom")
	})

	before := countRequests("/test-broken", "5xx")

	req := httptest.NewRequest(http.MethodGet, "/test-broken", nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	assert.Equal(t, before+1, countRequests("/test-broken", "5xx"))
}
