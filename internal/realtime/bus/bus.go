// Package bus carries job progress frames between the worker that produces them and the SSE hub
// of whichever instance holds the subscriber.
package bus

import (
	"context"

	"github.com/yungbote/essayfeed-backend/internal/realtime"
)

// Bus publishes frames and forwards received frames to a local callback. StartForwarder returns
// once the subscription is live; forwarding stops when ctx is done.
type Bus interface {
	Publish(ctx context.Context, msg realtime.SSEMessage) error
	StartForwarder(ctx context.Context, onMsg func(m realtime.SSEMessage)) error
	Close() error
}

// Local delivers straight to an in-process hub. Used when Redis is not configured, so a single
// instance serves both workers and subscribers.
type Local struct {
	Hub *realtime.SSEHub
}

func (l Local) Publish(_ context.Context, msg realtime.SSEMessage) error {
	if l.Hub != nil {
		l.Hub.Broadcast(msg)
	}
	return nil
}

func (Local) StartForwarder(context.Context, func(realtime.SSEMessage)) error { return nil }

func (Local) Close() error { return nil }
