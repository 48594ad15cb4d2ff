package sink

import (
	"sync"
	"time"
)

// Channel queues events on a buffered channel drained by a single consumer goroutine, so the
// handler never runs concurrently with itself and sees events in emit order.
type Channel struct {
	ch     chan Event
	done   chan struct{}
	once   sync.Once
	mu     sync.RWMutex
	closed bool
}

func NewChannel(buffer int, handle func(Event)) *Channel {
	if buffer <= 0 {
		buffer = 64
	}
	c := &Channel{
		ch:   make(chan Event, buffer),
		done: make(chan struct{}),
	}
	go func() {
		defer close(c.done)
		for e := range c.ch {
			handle(e)
		}
	}()
	return c
}

// Emit blocks when the buffer is full. Events emitted after Close are dropped.
func (c *Channel) Emit(eventType string, payload map[string]any, isError bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return
	}
	c.ch <- Event{Type: eventType, Payload: payload, IsError: isError, At: time.Now()}
}

// Close stops accepting events and waits for the consumer to drain the queue.
func (c *Channel) Close() {
	c.once.Do(func() {
		c.mu.Lock()
		c.closed = true
		close(c.ch)
		c.mu.Unlock()
	})
	<-c.done
}
