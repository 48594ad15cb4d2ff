package main

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/yungbote/essayfeed-backend/internal/modules/feedback/feed"
)

const feedsYAML = `
feeds:
  - name: Clarity
    criteria: clarity
    apply_to: essay
    steps:
      - type: chain-of-thought
        config:
          general-setting:
            englishPrompt: "Think about {|essay:content||}"
            apiProvider: openai
            model: gpt-4o-mini
          advanced-setting:
            temperature: 0.2
      - type: feedback
        config:
          general-setting:
            englishPrompt: "Write feedback using {Notes: |essay_feedback:cot[criteria:clarity]|}"
            apiProvider: openai
            model: gpt-4o-mini
  - name: Evidence
    criteria: evidence
    apply_to: main-point
    enabled: false
    steps:
      - type: scoring
        config:
          general-setting:
            englishPrompt: "Score {|segment:content[type:main-point]||}"
            apiProvider: anthropic
            model: claude-x
`

func TestParseFeedFile(t *testing.T) {
	recs, err := parseFeedFile([]byte(feedsYAML))
	if err != nil {
		t.Fatalf("parseFeedFile: %v", err)
	}
	if len(recs) != 2 {
		t.Fatalf("len=%d", len(recs))
	}
	if !recs[0].Enabled || recs[1].Enabled {
		t.Fatalf("enabled=%v,%v", recs[0].Enabled, recs[1].Enabled)
	}

	var steps []map[string]any
	if err := json.Unmarshal(recs[0].Steps, &steps); err != nil {
		t.Fatalf("decode steps: %v", err)
	}
	if len(steps) != 2 || steps[0]["type"] != "chain-of-thought" {
		t.Fatalf("steps=%v", steps)
	}

	f, err := feed.FromRecord(recs[0])
	if err != nil {
		t.Fatalf("FromRecord: %v", err)
	}
	if f.Steps[0].Config.Temperature == nil || *f.Steps[0].Config.Temperature != 0.2 {
		t.Fatalf("temperature=%v", f.Steps[0].Config.Temperature)
	}
}

func TestParseFeedFileRejectsInvalidFeeds(t *testing.T) {
	cases := map[string]string{
		"empty":          "feeds: []",
		"missing name":   "feeds:\n  - criteria: c\n    steps: []\n",
		"no steps":       "feeds:\n  - name: n\n    criteria: c\n",
		"missing model":  "feeds:\n  - name: n\n    criteria: c\n    steps:\n      - type: feedback\n        config:\n          general-setting:\n            englishPrompt: p\n            apiProvider: openai\n",
		"malformed yaml": "feeds: [",
		"bad modifier":   "feeds:\n  - name: n\n    criteria: c\n    steps:\n      - type: feedback\n        config:\n          general-setting:\n            englishPrompt: \"{|essay:content:trim:shout||}\"\n            apiProvider: openai\n            model: m\n",
	}
	for name, in := range cases {
		t.Run(name, func(t *testing.T) {
			if _, err := parseFeedFile([]byte(in)); err == nil {
				t.Fatalf("expected error")
			}
		})
	}
	_, err := parseFeedFile([]byte("feeds:\n  - name: n\n    criteria: c\n"))
	if !errors.Is(err, feed.ErrInvalidStep) {
		t.Fatalf("no steps should wrap ErrInvalidStep, got %v", err)
	}
}

func TestUnknownModifiers(t *testing.T) {
	got := unknownModifiers("{|essay:content:Trim:flatten||} {Notes: |essay_feedback:cot:shout:markdown|} {|segment:title:sentense||}")
	if len(got) != 2 || got[0] != "shout" || got[1] != "sentense" {
		t.Fatalf("unknownModifiers=%v", got)
	}
	if got := unknownModifiers("plain prompt"); got != nil {
		t.Fatalf("plain prompt=%v", got)
	}
}
