package ctxutil

import (
	"context"
	"testing"
)

func TestTraceDataAccessors(t *testing.T) {
	bare := context.Background()
	if GetTraceData(bare) != nil || RequestID(bare) != "" || TraceID(bare) != "" || LogFields(bare) != nil {
		t.Fatalf("bare context should carry nothing")
	}

	ctx := WithTraceData(bare, &TraceData{RequestID: "req-9"})
	if RequestID(ctx) != "req-9" || TraceID(ctx) != "" {
		t.Fatalf("ids=%q/%q", RequestID(ctx), TraceID(ctx))
	}
	if kv := LogFields(ctx); len(kv) != 2 || kv[0] != "request_id" || kv[1] != "req-9" {
		t.Fatalf("LogFields=%v", kv)
	}

	ctx = WithTraceData(bare, &TraceData{RequestID: "req-9", TraceID: "abc"})
	if kv := LogFields(ctx); len(kv) != 4 || kv[3] != "abc" {
		t.Fatalf("LogFields=%v", kv)
	}
}
