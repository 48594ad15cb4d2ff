package dispatch

import (
	"context"
	"errors"
	"net/http"
	"time"
)

// RetryPolicy bounds attempts per request. The zero Backoff retries immediately.
type RetryPolicy struct {
	MaxRetries int
	Backoff    time.Duration
	// SkipClientErrors stops retrying 4xx responses other than 408 and 429.
	SkipClientErrors bool
}

func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{MaxRetries: 3}
}

func (p RetryPolicy) attempts() int {
	if p.MaxRetries < 0 {
		return 1
	}
	return p.MaxRetries + 1
}

func (p RetryPolicy) retryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, ErrCredential) || errors.Is(err, ErrUnknownProvider) {
		return false
	}
	if !p.SkipClientErrors {
		return true
	}
	var he *HTTPError
	if errors.As(err, &he) && he.StatusCode >= 400 && he.StatusCode < 500 {
		return he.StatusCode == http.StatusRequestTimeout || he.StatusCode == http.StatusTooManyRequests
	}
	return true
}

// wait sleeps before attempt n (1-based retries), doubling the backoff each time.
func (p RetryPolicy) wait(ctx context.Context, n int) error {
	if p.Backoff <= 0 {
		return ctx.Err()
	}
	d := p.Backoff << (n - 1)
	if d > 30*time.Second || d <= 0 {
		d = 30 * time.Second
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
