package sink

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/yungbote/essayfeed-backend/internal/platform/logger"
	"github.com/yungbote/essayfeed-backend/internal/realtime"
	"github.com/yungbote/essayfeed-backend/internal/realtime/bus"
)

// Bus publishes events as SSE messages on one channel through a realtime bus.
type Bus struct {
	bus     bus.Bus
	channel string
	timeout time.Duration
	log     *logger.Logger
}

func NewBus(b bus.Bus, channel string, log *logger.Logger) *Bus {
	return &Bus{bus: b, channel: channel, timeout: 5 * time.Second, log: log.With("component", "BusSink")}
}

func (s *Bus) Emit(eventType string, payload map[string]any, isError bool) {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()
	msg := realtime.SSEMessage{Channel: s.channel, Event: eventType, Data: payload, IsError: isError}
	if err := s.bus.Publish(ctx, msg); err != nil {
		s.log.Warn("publish failed", "channel", s.channel, "event", eventType, "error", err)
	}
}

// SSEWriter streams events straight to an HTTP response as SSE frames.
type SSEWriter struct {
	mu      sync.Mutex
	w       http.ResponseWriter
	flusher http.Flusher
}

func NewSSEWriter(w http.ResponseWriter) *SSEWriter {
	f, _ := w.(http.Flusher)
	return &SSEWriter{w: w, flusher: f}
}

func (s *SSEWriter) Emit(eventType string, payload map[string]any, isError bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	data := map[string]any{"type": eventType, "payload": payload}
	if isError {
		data["is_error"] = true
	}
	if err := realtime.WriteFrame(s.w, eventType, data); err != nil {
		return
	}
	if s.flusher != nil {
		s.flusher.Flush()
	}
}
