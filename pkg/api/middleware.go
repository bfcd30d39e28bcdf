package api

import (
	"strconv"

	echo "github.com/labstack/echo/v5"

	"github.com/tarsygate/llmgate/pkg/metrics"
)

// securityHeaders returns middleware that sets standard security response headers.
func securityHeaders() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c *echo.Context) error {
			h := c.Response().Header()
			h.Set("X-Frame-Options", "DENY")
			h.Set("X-Content-Type-Options", "nosniff")
			h.Set("Referrer-Policy", "strict-origin-when-cross-origin")
			h.Set("Permissions-Policy", "camera=(), microphone=(), geolocation=()")
			return next(c)
		}
	}
}

// requestMetrics increments llmgate_requests_total for every request by
// route and outcome bucket (2xx/4xx/5xx), independent of which handler
// ran or whether it returned an error.
func requestMetrics() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c *echo.Context) error {
			err := next(c)

			status := c.Response().Status
			if he, ok := err.(*echo.HTTPError); ok {
				status = he.Code
			} else if err != nil && status == 0 {
				status = 500
			}

			outcome := strconv.Itoa(status/100) + "xx"
			route := c.Path()
			if route == "" {
				route = c.Request().URL.Path
			}
			metrics.RequestsTotal.WithLabelValues(route, outcome).Inc()

			return err
		}
	}
}
