package app

import (
	"strings"

	"github.com/yungbote/essayfeed-backend/internal/config"
	"github.com/yungbote/essayfeed-backend/internal/platform/logger"
	"github.com/yungbote/essayfeed-backend/internal/realtime"
	"github.com/yungbote/essayfeed-backend/internal/realtime/bus"
)

type Clients struct {
	SSEHub *realtime.SSEHub
	// SSEBus fans job events out across instances; Local when Redis is not configured.
	SSEBus bus.Bus
}

func wireClients(cfg *config.Config, log *logger.Logger) (Clients, error) {
	log.Info("Wiring clients...")
	hub := realtime.NewSSEHub(log)
	if strings.TrimSpace(cfg.Redis.Addr) == "" {
		log.Info("Redis not configured; SSE events stay in-process")
		return Clients{SSEHub: hub, SSEBus: bus.Local{Hub: hub}}, nil
	}
	b, err := bus.NewRedisBus(cfg.Redis, log)
	if err != nil {
		return Clients{}, err
	}
	return Clients{SSEHub: hub, SSEBus: b}, nil
}
