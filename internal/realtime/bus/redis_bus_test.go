package bus

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/yungbote/essayfeed-backend/internal/config"
	"github.com/yungbote/essayfeed-backend/internal/platform/logger"
	"github.com/yungbote/essayfeed-backend/internal/realtime"
)

func TestRedisBusRoundTrip(t *testing.T) {
	addr := os.Getenv("TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("set TEST_REDIS_ADDR to run redis bus integration tests")
	}
	log, err := logger.New("test")
	if err != nil {
		t.Fatalf("logger: %v", err)
	}
	b, err := NewRedisBus(config.RedisConfig{Addr: addr, Channel: "essayfeed:test:" + t.Name()}, log)
	if err != nil {
		t.Fatalf("NewRedisBus: %v", err)
	}
	defer b.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	got := make(chan realtime.SSEMessage, 1)
	if err := b.StartForwarder(ctx, func(m realtime.SSEMessage) { got <- m }); err != nil {
		t.Fatalf("StartForwarder: %v", err)
	}
	if err := b.Publish(ctx, realtime.SSEMessage{Channel: "job:1", Event: "feed_start"}); err != nil {
		t.Fatalf("Publish: %v", err)
	}
	select {
	case m := <-got:
		if m.Channel != "job:1" || m.Event != "feed_start" {
			t.Fatalf("unexpected message %+v", m)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for forwarded message")
	}
}

func TestLocalBusBroadcasts(t *testing.T) {
	hub := realtime.NewSSEHub(logger.Nop())
	client := hub.NewSSEClient()
	hub.AddChannel(client, "job:1")

	var b Bus = Local{Hub: hub}
	if err := b.Publish(context.Background(), realtime.SSEMessage{Channel: "job:1", Event: "feed_error", IsError: true}); err != nil {
		t.Fatalf("Publish: %v", err)
	}
	select {
	case m := <-client.Outbound:
		if !m.IsError {
			t.Fatalf("expected error flag: %+v", m)
		}
	case <-time.After(time.Second):
		t.Fatalf("no message")
	}
}

func TestDecodeFrame(t *testing.T) {
	msg, err := decodeFrame(`{"v":1,"msg":{"channel":"job:7","event":"feed_complete","data":{"feedback":"ok"}}}`)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if msg.Channel != "job:7" || msg.Event != "feed_complete" {
		t.Fatalf("msg=%+v", msg)
	}

	for name, payload := range map[string]string{
		"not json":      `feed_start`,
		"future format": `{"v":2,"msg":{"channel":"job:7","event":"feed_start"}}`,
		"bare frame":    `{"channel":"job:7","event":"feed_start"}`,
		"no channel":    `{"v":1,"msg":{"event":"feed_start"}}`,
	} {
		if _, err := decodeFrame(payload); err == nil {
			t.Errorf("%s: expected error", name)
		}
	}
}
