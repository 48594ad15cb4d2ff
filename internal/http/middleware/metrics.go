package middleware

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/essayfeed-backend/internal/observability"
)

// Metrics records request counts and latency per route template. Unmatched paths share one label
// so scanners cannot blow up series cardinality; the scrape endpoint is not counted. A nil m
// disables it.
func Metrics(m *observability.Metrics) gin.HandlerFunc {
	if m == nil {
		return func(c *gin.Context) { c.Next() }
	}
	return func(c *gin.Context) {
		route := c.FullPath()
		if route == "/metrics" {
			c.Next()
			return
		}
		if route == "" {
			route = "unmatched"
		}
		start := time.Now()
		m.APIInflight(1)
		c.Next()
		m.APIInflight(-1)
		m.ObserveAPI(c.Request.Method, route, c.Writer.Status(), time.Since(start))
	}
}
