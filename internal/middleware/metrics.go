package middleware

import (
	"strconv"

	"github.com/anonto42/garage-club/backend/internal/metrics"
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics records request counts and latencies per route template.
func Metrics() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			route := c.Path()
			method := c.Request().Method
			timer := prometheus.NewTimer(metrics.HttpRequestDuration.WithLabelValues(route, method))

			err := next(c)

			timer.ObserveDuration()
			status := c.Response().Status
			if err != nil {
				if he, ok := err.(*echo.HTTPError); ok {
					status = he.Code
				} else {
					status = 500
				}
			}
			metrics.HttpRequestsTotal.WithLabelValues(route, method, strconv.Itoa(status)).Inc()
			return err
		}
	}
}
