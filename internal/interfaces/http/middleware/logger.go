package middleware

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"keyforge.backend/pkg/logger"
	"keyforge.backend/pkg/metrics"
)

// LoggerMiddleware logs HTTP requests using the structured logger and counts
// them per route when m is set.
func LoggerMiddleware(m *metrics.Registry) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		raw := c.Request.URL.RawQuery

		c.Next()

		latency := time.Since(start)
		if raw != "" {
			path = path + "?" + raw
		}
		logger.LogRequest(c.Request.Context(), c.Request.Method, path, c.Writer.Status(), latency, c.ClientIP())

		if m != nil {
			route := c.FullPath()
			if route == "" {
				route = "unmatched"
			}
			m.HTTPRequests.WithLabelValues(c.Request.Method, route, strconv.Itoa(c.Writer.Status())).Inc()
		}
	}
}
