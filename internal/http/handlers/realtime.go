package handlers

import (
	"errors"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/essayfeed-backend/internal/http/response"
	"github.com/yungbote/essayfeed-backend/internal/platform/apierr"
	"github.com/yungbote/essayfeed-backend/internal/platform/logger"
	"github.com/yungbote/essayfeed-backend/internal/realtime"
)

type RealtimeHandler struct {
	log *logger.Logger
	hub *realtime.SSEHub
}

func NewRealtimeHandler(log *logger.Logger, hub *realtime.SSEHub) *RealtimeHandler {
	return &RealtimeHandler{log: log.With("handler", "RealtimeHandler"), hub: hub}
}

// GET /api/events?channel=job:<id>[&channel=...]
func (h *RealtimeHandler) SSEStream(c *gin.Context) {
	var channels []string
	for _, raw := range c.QueryArray("channel") {
		for _, ch := range strings.Split(raw, ",") {
			if ch = strings.TrimSpace(ch); ch != "" {
				channels = append(channels, ch)
			}
		}
	}
	if len(channels) == 0 {
		response.RespondAPIError(c, apierr.BadRequest("missing_channel", errors.New("at least one channel is required")))
		return
	}

	client := h.hub.NewSSEClient()
	for _, ch := range channels {
		h.hub.AddChannel(client, ch)
	}
	h.log.Debug("SSE stream open", "client_id", client.ID, "channels", h.hub.ChannelsOf(client))

	h.hub.ServeHTTP(c.Writer, c.Request, client)
	h.hub.CloseClient(client)
}
