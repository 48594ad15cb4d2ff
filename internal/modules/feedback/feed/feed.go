// Package feed holds the typed, validated form of a stored feedback feed.
package feed

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/yungbote/essayfeed-backend/internal/types"
)

var ErrInvalidStep = errors.New("invalid feed step")

// Scopes a feed can apply to. Any other value names a segment type.
const (
	ScopeEssay     = "essay"
	ScopeParagraph = "paragraph"
	ScopeSegment   = "segment"
)

type StepType string

const (
	StepChainOfThought StepType = "chain-of-thought"
	StepScoring        StepType = "scoring"
	StepFeedback       StepType = "feedback"
)

// EventName is the sink event type used for content produced by this step.
func (t StepType) EventName() string {
	var b strings.Builder
	for _, r := range strings.TrimSpace(string(t)) {
		switch {
		case r == '-' || r == ' ' || r == '.':
			b.WriteByte('_')
		default:
			b.WriteString(strings.ToUpper(string(r)))
		}
	}
	return b.String()
}

// Column is the feedback content column this step's output is written to.
func (t StepType) Column() string {
	switch t {
	case StepChainOfThought:
		return types.FeedbackColumnCoT
	case StepScoring:
		return types.FeedbackColumnScore
	default:
		return types.FeedbackColumnFeedback
	}
}

type Step struct {
	Type   StepType
	Config StepConfig
}

type Feed struct {
	ID       uuid.UUID
	Name     string
	Criteria string
	ApplyTo  string
	Steps    []Step
}

// SegmentScope reports whether the feed targets existing segments rather than the essay or
// paragraph extraction.
func (f *Feed) SegmentScope() bool {
	return f.ApplyTo != ScopeEssay && f.ApplyTo != ScopeParagraph
}

type storedStep struct {
	Type   string                    `json:"type"`
	Config map[string]map[string]any `json:"config"`
}

// FromRecord decodes and validates every step once; dispatch never reads raw configuration.
func FromRecord(rec *types.Feed) (*Feed, error) {
	if rec == nil {
		return nil, errors.New("nil feed record")
	}
	var raw []storedStep
	if len(rec.Steps) > 0 {
		if err := json.Unmarshal(rec.Steps, &raw); err != nil {
			return nil, fmt.Errorf("feed %s: decode steps: %w", rec.ID, err)
		}
	}
	applyTo := strings.ToLower(strings.TrimSpace(rec.ApplyTo))
	if applyTo == "" {
		applyTo = ScopeEssay
	}
	f := &Feed{
		ID:       rec.ID,
		Name:     rec.Name,
		Criteria: rec.Criteria,
		ApplyTo:  applyTo,
		Steps:    make([]Step, 0, len(raw)),
	}
	if len(raw) == 0 {
		return nil, fmt.Errorf("feed %s: %w: no steps", rec.ID, ErrInvalidStep)
	}
	for i, s := range raw {
		st := StepType(strings.TrimSpace(s.Type))
		if st == "" {
			return nil, fmt.Errorf("feed %s step %d: %w: missing type", rec.ID, i, ErrInvalidStep)
		}
		cfg, err := NewStepConfigBuilder().Sections(s.Config).Build()
		if err != nil {
			return nil, fmt.Errorf("feed %s step %d (%s): %w", rec.ID, i, st, err)
		}
		f.Steps = append(f.Steps, Step{Type: st, Config: cfg})
	}
	return f, nil
}

// EncodeSteps is the inverse of the stored step shape, used when seeding feeds.
func EncodeSteps(steps ...StoredStep) ([]byte, error) {
	out := make([]storedStep, 0, len(steps))
	for _, s := range steps {
		out = append(out, storedStep{Type: s.Type, Config: s.Config})
	}
	return json.Marshal(out)
}

type StoredStep struct {
	Type   string
	Config map[string]map[string]any
}

// EssayRef identifies the essay a feed runs against. SegmentID narrows segment-scoped feeds to
// one segment.
type EssayRef struct {
	EssayID   uuid.UUID
	SegmentID *uuid.UUID
}
