package bus

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/yungbote/essayfeed-backend/internal/config"
	"github.com/yungbote/essayfeed-backend/internal/platform/logger"
	"github.com/yungbote/essayfeed-backend/internal/realtime"
)

const (
	defaultRedisChannel = "essayfeed:events"
	envelopeVersion     = 1
	publishTimeout      = 3 * time.Second
)

var errBusClosed = errors.New("redis bus not initialized")

// envelope wraps a frame on the wire so the payload format can change without breaking instances
// that are mid-deploy.
type envelope struct {
	V   int                 `json:"v"`
	Msg realtime.SSEMessage `json:"msg"`
}

type redisBus struct {
	log   *logger.Logger
	rdb   goredis.UniversalClient
	topic string
}

// NewRedisBus dials cfg.Addr and checks it with a PING before returning.
func NewRedisBus(cfg config.RedisConfig, log *logger.Logger) (Bus, error) {
	if log == nil {
		return nil, fmt.Errorf("redis bus: logger required")
	}
	addr := strings.TrimSpace(cfg.Addr)
	if addr == "" {
		return nil, fmt.Errorf("redis bus: addr required")
	}
	rdb := goredis.NewClient(&goredis.Options{
		Addr:         addr,
		DialTimeout:  5 * time.Second,
		WriteTimeout: publishTimeout,
	})

	pingCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis bus: ping %s: %w", addr, err)
	}
	return NewRedisBusWithClient(rdb, cfg.Channel, log), nil
}

// NewRedisBusWithClient wraps a client whose connectivity the caller has already checked.
func NewRedisBusWithClient(rdb goredis.UniversalClient, topic string, log *logger.Logger) Bus {
	if topic = strings.TrimSpace(topic); topic == "" {
		topic = defaultRedisChannel
	}
	return &redisBus{
		log:   log.With("component", "RedisBus", "topic", topic),
		rdb:   rdb,
		topic: topic,
	}
}

func (b *redisBus) Publish(ctx context.Context, msg realtime.SSEMessage) error {
	if b == nil || b.rdb == nil {
		return errBusClosed
	}
	if msg.Channel == "" {
		return nil
	}
	raw, err := json.Marshal(envelope{V: envelopeVersion, Msg: msg})
	if err != nil {
		return fmt.Errorf("encode %s frame: %w", msg.Event, err)
	}
	ctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()
	return b.rdb.Publish(ctx, b.topic, raw).Err()
}

func (b *redisBus) StartForwarder(ctx context.Context, onMsg func(m realtime.SSEMessage)) error {
	if b == nil || b.rdb == nil {
		return errBusClosed
	}
	if onMsg == nil {
		return fmt.Errorf("redis bus: forwarder callback required")
	}

	sub := b.rdb.Subscribe(ctx, b.topic)
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return fmt.Errorf("redis bus: subscribe %s: %w", b.topic, err)
	}
	go b.forward(ctx, sub, onMsg)
	return nil
}

func (b *redisBus) forward(ctx context.Context, sub *goredis.PubSub, onMsg func(m realtime.SSEMessage)) {
	defer sub.Close()
	incoming := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case m, ok := <-incoming:
			if !ok {
				b.log.Warn("redis subscription closed")
				return
			}
			msg, err := decodeFrame(m.Payload)
			if err != nil {
				b.log.Warn("dropping redis frame", "error", err)
				continue
			}
			onMsg(msg)
		}
	}
}

func decodeFrame(payload string) (realtime.SSEMessage, error) {
	var env envelope
	if err := json.Unmarshal([]byte(payload), &env); err != nil {
		return realtime.SSEMessage{}, err
	}
	if env.V != envelopeVersion {
		return realtime.SSEMessage{}, fmt.Errorf("unsupported envelope version %d", env.V)
	}
	if env.Msg.Channel == "" {
		return realtime.SSEMessage{}, fmt.Errorf("frame %q has no channel", env.Msg.Event)
	}
	return env.Msg, nil
}

func (b *redisBus) Close() error {
	if b == nil || b.rdb == nil {
		return nil
	}
	return b.rdb.Close()
}
