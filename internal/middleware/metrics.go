package middleware

import (
	"strconv"
	"time"

	srmetrics "satriarisk/backend/pkg/metrics"

	"github.com/gin-gonic/gin"
)

// Metrics is a gin middleware that records Prometheus metrics for HTTP requests.
func Metrics() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		status := c.Writer.Status()
		method := c.Request.Method

		// Use the route template for label cardinality; fall back to the raw
		// path for unmatched routes.
		path := c.FullPath()
		if path == "" {
			path = c.Request.URL.Path
		}

		latency := time.Since(start)

		if srmetrics.HTTPRequestCounter != nil {
			srmetrics.HTTPRequestCounter.WithLabelValues(method, path, strconv.Itoa(status)).Inc()
		}
		if srmetrics.HTTPRequestDuration != nil {
			srmetrics.HTTPRequestDuration.WithLabelValues(method, path).Observe(latency.Seconds())
		}
	}
}
