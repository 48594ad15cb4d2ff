package runtime

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

type namedHandler string

func (h namedHandler) Type() string       { return string(h) }
func (h namedHandler) Run(*Context) error { return nil }

func TestRegistry(t *testing.T) {
	r := NewRegistry()
	for _, jt := range []string{"feed_run", "reindex"} {
		if err := r.Register(namedHandler(jt)); err != nil {
			t.Fatalf("register %s: %v", jt, err)
		}
	}
	if err := r.Register(namedHandler("feed_run")); err == nil || !strings.Contains(err.Error(), "already handled") {
		t.Fatalf("duplicate register err=%v", err)
	}
	for _, bad := range []string{"", "Feed-Run", "1job"} {
		if err := r.Register(namedHandler(bad)); err == nil {
			t.Fatalf("expected %q to be rejected", bad)
		}
	}
	if err := r.Register(nil); err == nil {
		t.Fatalf("expected nil handler to be rejected")
	}

	if h, ok := r.Get("feed_run"); !ok || h.Type() != "feed_run" {
		t.Fatalf("Get(feed_run)=%v,%v", h, ok)
	}
	if _, ok := r.Get("missing"); ok {
		t.Fatalf("Get(missing) should report false")
	}
	if diff := cmp.Diff([]string{"feed_run", "reindex"}, r.Types()); diff != "" {
		t.Fatalf("Types() mismatch (-want +got):\n%s", diff)
	}
}
