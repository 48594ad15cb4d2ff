package middleware

import (
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/essayfeed-backend/internal/platform/ctxutil"
	"github.com/yungbote/essayfeed-backend/internal/platform/logger"
)

// quietRoutes are polled by infrastructure and only logged at debug level when they succeed.
var quietRoutes = map[string]bool{
	"/healthz": true,
	"/metrics": true,
}

// RequestLogger writes one access log line per request. Streamed responses (feed runs and event
// subscriptions) are logged when the stream closes, with the streamed byte count.
func RequestLogger(log *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		if log == nil {
			c.Next()
			return
		}
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		status := c.Writer.Status()
		kv := []interface{}{
			"method", c.Request.Method,
			"route", route,
			"status", status,
			"bytes", c.Writer.Size(),
			"duration_ms", time.Since(start).Milliseconds(),
		}
		if id := c.Param("id"); id != "" {
			kv = append(kv, resourceKey(route), id)
		}
		if strings.HasPrefix(c.Writer.Header().Get("Content-Type"), "text/event-stream") {
			kv = append(kv, "stream", true)
		}
		kv = append(kv, ctxutil.LogFields(c.Request.Context())...)
		if len(c.Errors) > 0 {
			kv = append(kv, "errors", c.Errors.String())
		}

		switch {
		case status >= 500:
			log.Error("HTTP request", kv...)
		case status >= 400:
			log.Warn("HTTP request", kv...)
		case quietRoutes[route]:
			log.Debug("HTTP request", kv...)
		default:
			log.Info("HTTP request", kv...)
		}
	}
}

func resourceKey(route string) string {
	switch {
	case strings.HasPrefix(route, "/api/feeds/"):
		return "feed_id"
	case strings.HasPrefix(route, "/api/jobs/"):
		return "job_id"
	default:
		return "resource_id"
	}
}
