package http

import (
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	httpH "github.com/yungbote/essayfeed-backend/internal/http/handlers"
	httpMW "github.com/yungbote/essayfeed-backend/internal/http/middleware"
	"github.com/yungbote/essayfeed-backend/internal/observability"
	"github.com/yungbote/essayfeed-backend/internal/platform/logger"
)

type RouterConfig struct {
	Log         *logger.Logger
	ServiceName string
	CORSOrigins []string
	// Metrics is mounted at /metrics when MountMetrics is set.
	Metrics      *observability.Metrics
	MountMetrics bool

	HealthHandler   *httpH.HealthHandler
	FeedHandler     *httpH.FeedHandler
	JobHandler      *httpH.JobHandler
	RealtimeHandler *httpH.RealtimeHandler
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	if cfg.ServiceName != "" {
		r.Use(otelgin.Middleware(cfg.ServiceName))
	}
	r.Use(httpMW.AttachTraceContext())
	r.Use(httpMW.RequestLogger(cfg.Log))
	r.Use(httpMW.Metrics(cfg.Metrics))
	r.Use(httpMW.CORS(cfg.CORSOrigins))

	// Health
	if cfg.HealthHandler != nil {
		r.GET("/healthz", cfg.HealthHandler.HealthCheck)
	}
	if cfg.MountMetrics && cfg.Metrics != nil {
		r.GET("/metrics", gin.WrapF(cfg.Metrics.WriteHTTP))
	}

	api := r.Group("/api")
	{
		// Feeds
		if cfg.FeedHandler != nil {
			api.POST("/feeds/:id/run", cfg.FeedHandler.RunFeed)
			api.POST("/feeds/:id/jobs", cfg.FeedHandler.EnqueueFeed)
			api.POST("/feeds/:id/preview", cfg.FeedHandler.PreviewFeed)
		}

		// Job
		if cfg.JobHandler != nil {
			api.GET("/jobs/:id", cfg.JobHandler.GetJob)
		}

		// Realtime (SSE)
		if cfg.RealtimeHandler != nil {
			api.GET("/events", cfg.RealtimeHandler.SSEStream)
		}
	}

	return r
}
