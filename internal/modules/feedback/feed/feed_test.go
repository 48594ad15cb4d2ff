package feed

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/uuid"

	"github.com/yungbote/essayfeed-backend/internal/types"
)

func TestStepTypeEventNameAndColumn(t *testing.T) {
	cases := []struct {
		step   StepType
		event  string
		column string
	}{
		{StepChainOfThought, "CHAIN_OF_THOUGHT", "cot"},
		{StepScoring, "SCORING", "score"},
		{StepFeedback, "FEEDBACK", "feedback"},
		{"paragraph summary", "PARAGRAPH_SUMMARY", "feedback"},
	}
	for _, tc := range cases {
		if got := tc.step.EventName(); got != tc.event {
			t.Errorf("%q.EventName() = %q, want %q", tc.step, got, tc.event)
		}
		if got := tc.step.Column(); got != tc.column {
			t.Errorf("%q.Column() = %q, want %q", tc.step, got, tc.column)
		}
	}
}

func TestFromRecord(t *testing.T) {
	steps, err := EncodeSteps(
		StoredStep{Type: "chain-of-thought", Config: map[string]map[string]any{
			"general-setting":  {"englishPrompt": "Think about {|essay:question||}", "apiProvider": "OpenRouter", "model": "m1"},
			"advanced-setting": {"temperature": "0.2", "maxToken": 512, "concurrency": "3"},
			"display-setting":  {"color": "blue"},
		}},
		StoredStep{Type: "scoring", Config: map[string]map[string]any{
			"general-setting":  {"englishPrompt": "Score it", "apiProvider": "anthropic", "model": "m2"},
			"advanced-setting": {"temperature": "", "maxToken": ""},
		}},
	)
	if err != nil {
		t.Fatalf("EncodeSteps: %v", err)
	}
	rec := &types.Feed{ID: uuid.New(), Name: "Clarity", Criteria: "clarity", ApplyTo: "Paragraph", Steps: steps}

	f, err := FromRecord(rec)
	if err != nil {
		t.Fatalf("FromRecord: %v", err)
	}
	if f.ApplyTo != ScopeParagraph || f.SegmentScope() {
		t.Fatalf("ApplyTo=%q SegmentScope=%v", f.ApplyTo, f.SegmentScope())
	}
	if len(f.Steps) != 2 {
		t.Fatalf("expected 2 steps, got %d", len(f.Steps))
	}

	temp := 0.2
	want := StepConfig{
		Prompt:      "Think about {|essay:question||}",
		Provider:    "openrouter",
		Model:       "m1",
		Temperature: &temp,
		MaxTokens:   512,
		Concurrency: 3,
		Extra:       map[string]map[string]any{"display-setting": {"color": "blue"}},
	}
	if diff := cmp.Diff(want, f.Steps[0].Config); diff != "" {
		t.Fatalf("step 0 config mismatch (-want +got):\n%s", diff)
	}
	if f.Steps[1].Config.Temperature != nil || f.Steps[1].Config.MaxTokens != 0 {
		t.Fatalf("empty advanced settings should stay unset: %+v", f.Steps[1].Config)
	}
}

func TestFromRecordRejectsIncompleteSteps(t *testing.T) {
	cases := map[string][]StoredStep{
		"no steps":       nil,
		"missing prompt": {{Type: "scoring", Config: map[string]map[string]any{"general-setting": {"apiProvider": "openai", "model": "m"}}}},
		"missing type":   {{Config: map[string]map[string]any{"general-setting": {"englishPrompt": "p", "apiProvider": "openai", "model": "m"}}}},
		"bad temperature": {{Type: "scoring", Config: map[string]map[string]any{
			"general-setting":  {"englishPrompt": "p", "apiProvider": "openai", "model": "m"},
			"advanced-setting": {"temperature": "hot"},
		}}},
	}
	for name, steps := range cases {
		t.Run(name, func(t *testing.T) {
			raw, err := EncodeSteps(steps...)
			if err != nil {
				t.Fatalf("EncodeSteps: %v", err)
			}
			_, err = FromRecord(&types.Feed{ID: uuid.New(), Steps: raw})
			if !errors.Is(err, ErrInvalidStep) {
				t.Fatalf("expected ErrInvalidStep, got %v", err)
			}
		})
	}
}
