// Package sink carries orchestrator events to whoever is listening. Implementations must be safe
// for concurrent Emit calls; pooled dispatch emits from several goroutines.
package sink

import (
	"sync"
	"time"
)

const (
	EventFeedStart        = "feed_start"
	EventBatchProcessing  = "batch_processing"
	EventParallelProgress = "parallel_progress"
	EventParallelError    = "parallel_error"
	EventParallelComplete = "parallel_complete"
	EventFeedComplete     = "feed_complete"
	EventFeedError        = "feed_error"
)

type Sink interface {
	Emit(eventType string, payload map[string]any, isError bool)
}

type Event struct {
	Type    string         `json:"type"`
	Payload map[string]any `json:"payload"`
	IsError bool           `json:"is_error,omitempty"`
	At      time.Time      `json:"at"`
}

type Func func(eventType string, payload map[string]any, isError bool)

func (f Func) Emit(eventType string, payload map[string]any, isError bool) {
	f(eventType, payload, isError)
}

type discard struct{}

func (discard) Emit(string, map[string]any, bool) {}

var Discard Sink = discard{}

// Multi emits to every sink in order.
type Multi []Sink

func (m Multi) Emit(eventType string, payload map[string]any, isError bool) {
	for _, s := range m {
		if s != nil {
			s.Emit(eventType, payload, isError)
		}
	}
}

// Recorder keeps every event in memory.
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *Recorder) Emit(eventType string, payload map[string]any, isError bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, Event{Type: eventType, Payload: payload, IsError: isError, At: time.Now()})
}

func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event(nil), r.events...)
}

func (r *Recorder) Types() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.events))
	for i, e := range r.events {
		out[i] = e.Type
	}
	return out
}

// OfType returns the events with the given type, in emit order.
func (r *Recorder) OfType(eventType string) []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Event
	for _, e := range r.events {
		if e.Type == eventType {
			out = append(out, e)
		}
	}
	return out
}
