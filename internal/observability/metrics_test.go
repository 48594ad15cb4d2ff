package observability

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/yungbote/essayfeed-backend/internal/repos/testutil"
	"github.com/yungbote/essayfeed-backend/internal/types"
)

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	m.ObserveAPI("GET", "/healthz", 200, time.Millisecond)
	m.ObserveLLMRequest("openai", "gpt-4o", "pool", true, 1, time.Second)
	m.ObserveJob("feed_run", "succeeded", time.Second)
	m.APIInflight(1)
	if err := m.WritePrometheus(&bytes.Buffer{}); err != nil {
		t.Fatalf("WritePrometheus: %v", err)
	}
}

func TestWritePrometheus(t *testing.T) {
	m := NewMetrics()
	m.ObserveAPI("POST", "/api/feeds/:id/run", 200, 300*time.Millisecond)
	m.ObserveLLMRequest("anthropic", "claude", "stream", false, 3, 2*time.Second)
	m.ObserveLLMRequest("anthropic", "claude", "stream", true, 1, time.Second)

	if got := m.llmRetries.Value("anthropic"); got != 2 {
		t.Fatalf("retries=%v", got)
	}
	if got := m.llmLatency.Count("anthropic", "stream"); got != 2 {
		t.Fatalf("latency count=%d", got)
	}

	var buf bytes.Buffer
	if err := m.WritePrometheus(&buf); err != nil {
		t.Fatalf("WritePrometheus: %v", err)
	}
	out := buf.String()
	for _, want := range []string{
		`essayfeed_api_requests_total{method="POST",route="/api/feeds/:id/run",status="200"} 1`,
		`essayfeed_llm_requests_total{provider="anthropic",model="claude",mode="stream",status="error"} 1`,
		`essayfeed_api_request_duration_seconds_bucket{method="POST",route="/api/feeds/:id/run",le="0.5"} 1`,
		`essayfeed_api_request_duration_seconds_bucket{method="POST",route="/api/feeds/:id/run",le="0.25"} 0`,
		"# TYPE essayfeed_llm_request_duration_seconds histogram",
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("missing %q in:\n%s", want, out)
		}
	}
}

func TestCollectQueueDepth(t *testing.T) {
	db := testutil.DB(t)
	jobs := []*types.JobRun{
		{JobType: types.JobTypeFeedRun, FeedID: uuid.New(), EssayID: uuid.New(), Status: types.JobStatusQueued},
		{JobType: types.JobTypeFeedRun, FeedID: uuid.New(), EssayID: uuid.New(), Status: types.JobStatusQueued},
		{JobType: types.JobTypeFeedRun, FeedID: uuid.New(), EssayID: uuid.New(), Status: types.JobStatusFailed},
	}
	if err := db.Create(&jobs).Error; err != nil {
		t.Fatalf("seed: %v", err)
	}
	m := NewMetrics()
	if err := m.collectQueueDepth(context.Background(), db); err != nil {
		t.Fatalf("collect: %v", err)
	}
	if m.queueDepth.Value(types.JobStatusQueued) != 2 || m.queueDepth.Value(types.JobStatusFailed) != 1 || m.queueDepth.Value(types.JobStatusRunning) != 0 {
		t.Fatalf("depth queued=%v failed=%v", m.queueDepth.Value(types.JobStatusQueued), m.queueDepth.Value(types.JobStatusFailed))
	}
}

func TestEscapeLabel(t *testing.T) {
	if got := labelString([]string{"a", "b"}, []string{`x"y`}); got != `{a="x\"y",b="unknown"}` {
		t.Fatalf("labelString=%s", got)
	}
}
