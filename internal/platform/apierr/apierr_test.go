package apierr

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"
)

func TestFrom(t *testing.T) {
	notFound := NotFound("essay_not_found", errors.New("essay 1 not found"))
	tests := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{"classified", notFound, http.StatusNotFound, "essay_not_found"},
		{"wrapped", fmt.Errorf("load: %w", notFound), http.StatusNotFound, "essay_not_found"},
		{"deadline", fmt.Errorf("dispatch: %w", context.DeadlineExceeded), http.StatusGatewayTimeout, "timeout"},
		{"canceled", context.Canceled, StatusClientClosed, "canceled"},
		{"plain", errors.New("boom"), http.StatusInternalServerError, "internal_error"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := From(tt.err)
			if got.Status != tt.status || got.Code != tt.code {
				t.Fatalf("From()=%d/%s, want %d/%s", got.Status, got.Code, tt.status, tt.code)
			}
		})
	}
	if From(nil) != nil {
		t.Fatalf("From(nil) should be nil")
	}
}

func TestErrorMessage(t *testing.T) {
	if got := Conflict("feed_disabled", nil).Error(); got != "feed_disabled" {
		t.Fatalf("code fallback=%q", got)
	}
	if got := New(http.StatusTeapot, "", nil).Error(); got != "api error 418" {
		t.Fatalf("status fallback=%q", got)
	}
	inner := errors.New("bad step")
	if err := Unprocessable("invalid_feed", inner); !errors.Is(err, inner) || err.Error() != "bad step" {
		t.Fatalf("unwrap/message: %v", err)
	}
}
