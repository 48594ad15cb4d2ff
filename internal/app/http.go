package app

import (
	"gorm.io/gorm"

	"github.com/yungbote/essayfeed-backend/internal/config"
	"github.com/yungbote/essayfeed-backend/internal/http"
	httpH "github.com/yungbote/essayfeed-backend/internal/http/handlers"
	"github.com/yungbote/essayfeed-backend/internal/observability"
	"github.com/yungbote/essayfeed-backend/internal/platform/logger"
)

type Handlers struct {
	Health   *httpH.HealthHandler
	Feed     *httpH.FeedHandler
	Job      *httpH.JobHandler
	Realtime *httpH.RealtimeHandler
}

func wireHandlers(db *gorm.DB, log *logger.Logger, r Repos, s Services, c Clients) Handlers {
	log.Info("Wiring handlers...")
	return Handlers{
		Health: httpH.NewHealthHandler(db),
		Feed: httpH.NewFeedHandlerWithDeps(httpH.FeedHandlerDeps{
			Log:    log,
			Runner: s.Orchestrator,
			Essays: r.Essay,
			Jobs:   r.JobRun,
		}),
		Job:      httpH.NewJobHandler(r.JobRun),
		Realtime: httpH.NewRealtimeHandler(log, c.SSEHub),
	}
}

func wireServer(cfg *config.Config, log *logger.Logger, handlers Handlers, metrics *observability.Metrics) *http.Server {
	serviceName := ""
	if cfg.OTel.Enabled {
		serviceName = cfg.OTel.ServiceName
	}
	return http.NewServer(http.RouterConfig{
		Log:             log,
		ServiceName:     serviceName,
		CORSOrigins:     cfg.HTTP.CORSOrigins,
		Metrics:         metrics,
		MountMetrics:    cfg.Metrics.Addr == "",
		HealthHandler:   handlers.Health,
		FeedHandler:     handlers.Feed,
		JobHandler:      handlers.Job,
		RealtimeHandler: handlers.Realtime,
	})
}
