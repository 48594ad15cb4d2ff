// Package dispatch sends expanded prompts to language-model providers, streaming a single prompt
// or running a bounded pool for prompt variants.
package dispatch

import (
	"context"
	"errors"
	"fmt"

	"github.com/yungbote/essayfeed-backend/internal/modules/feedback/vault"
)

var (
	ErrUnknownProvider = errors.New("unknown provider")
	ErrCredential      = errors.New("credential unavailable")
	ErrEmptyCompletion = errors.New("empty upstream completion")
)

type Request struct {
	Prompt       string
	SystemPrompt string
	Model        string
	Temperature  *float64
	MaxTokens    int
}

// Provider speaks one upstream API. Stream calls onDelta for every content chunk in arrival order
// and returns the accumulated text.
type Provider interface {
	Name() string
	Stream(ctx context.Context, cred vault.Credential, req Request, onDelta func(string)) (string, error)
	Complete(ctx context.Context, cred vault.Credential, req Request) (string, error)
}

type HTTPError struct {
	StatusCode int
	Body       string
}

func (e *HTTPError) Error() string {
	if e == nil {
		return "upstream http error"
	}
	if e.Body == "" {
		return fmt.Sprintf("upstream http error: status=%d", e.StatusCode)
	}
	return fmt.Sprintf("upstream http error: status=%d body=%s", e.StatusCode, e.Body)
}

// StreamError is an error event received inside an otherwise successful stream.
type StreamError struct {
	Message string
}

func (e *StreamError) Error() string { return "upstream stream error: " + e.Message }
