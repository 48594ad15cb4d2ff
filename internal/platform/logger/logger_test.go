package logger

import (
	"strings"
	"testing"
)

func testPolicy() policy {
	return policy{enabled: true, textLimit: 10}
}

func TestPolicyValue(t *testing.T) {
	p := testPolicy()
	cases := []struct {
		key  string
		in   interface{}
		want interface{}
	}{
		{key: "api_key", in: "sk-abc", want: redacted},
		{key: "provider_credential", in: "whatever", want: redacted},
		{key: "error", in: "sk-0123456789abcdefghijkl", want: redacted},
		{key: "error", in: "Bearer abc", want: redacted},
		{key: "error", in: "upstream 500", want: "upstream 500"},
		{key: "essay_id", in: "e1", want: "e1"},
		{key: "prompt", in: "short", want: "short"},
		{key: "prompt", in: "Review this essay carefully", want: "Review thi...(+17 chars)"},
		{key: "attempts", in: 3, want: 3},
	}
	for _, tc := range cases {
		if got := p.value(tc.key, tc.in); got != tc.want {
			t.Fatalf("value(%q, %v) = %v, want %v", tc.key, tc.in, got, tc.want)
		}
	}

	nested, ok := p.value("payload", map[string]interface{}{"Authorization": "x", "step": "cot"}).(map[string]interface{})
	if !ok || nested["Authorization"] != redacted || nested["step"] != "cot" {
		t.Fatalf("nested=%v", nested)
	}
}

func TestClipCountsRunes(t *testing.T) {
	got := clip(strings.Repeat("é", 12), 10)
	if !strings.HasPrefix(got, strings.Repeat("é", 10)) || !strings.HasSuffix(got, "(+2 chars)") {
		t.Fatalf("clip=%q", got)
	}
	if got := clip("unchanged", 0); got != "unchanged" {
		t.Fatalf("limit 0 clip=%q", got)
	}
}

func TestScrubLeavesCallerSliceAlone(t *testing.T) {
	policyOnce.Do(func() { active = testPolicy() })
	in := []interface{}{"token", "x", "dangling"}
	out := scrub(in)
	if len(out) != 3 || out[1] != redacted || out[2] != "dangling" {
		t.Fatalf("unexpected %v", out)
	}
	if in[1] != "x" {
		t.Fatalf("input mutated: %v", in)
	}
}
