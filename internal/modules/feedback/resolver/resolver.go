// Package resolver turns a merge tag spec into content from the essay store.
package resolver

import (
	"context"

	"github.com/google/uuid"

	"github.com/yungbote/essayfeed-backend/internal/modules/feedback/feed"
	"github.com/yungbote/essayfeed-backend/internal/modules/feedback/mergetag"
	"github.com/yungbote/essayfeed-backend/internal/modules/feedback/modifier"
	"github.com/yungbote/essayfeed-backend/internal/platform/logger"
	"github.com/yungbote/essayfeed-backend/internal/repos"
)

const (
	TableEssay           = "essay"
	TableSegment         = "segment"
	TableEssayFeedback   = "essay_feedback"
	TableSegmentFeedback = "segment_feedback"
)

// CurrentEssay is the filter value replaced by the current essay's id.
const CurrentEssay = "uuid"

type Record interface {
	Field(name string) (string, bool)
}

// Source is the read side of the essay store. Every lookup is scoped to one essay.
type Source interface {
	Essay(ctx context.Context, essayID uuid.UUID, filters repos.Filters) (Record, error)
	Segments(ctx context.Context, essayID uuid.UUID, filters repos.Filters) ([]Record, error)
	EssayFeedback(ctx context.Context, essayID uuid.UUID, filters repos.Filters) ([]Record, error)
	SegmentFeedback(ctx context.Context, essayID uuid.UUID, filters repos.Filters) ([]Record, error)
}

type Resolver struct {
	src Source
	log *logger.Logger
}

func New(src Source, baseLog *logger.Logger) *Resolver {
	return &Resolver{src: src, log: baseLog.With("component", "MergeTagResolver")}
}

var _ mergetag.Resolver = (*Resolver)(nil)

// Resolve never fails: lookup errors and unknown tables read as "nothing resolved".
func (r *Resolver) Resolve(ctx context.Context, spec mergetag.TagSpec, ref feed.EssayRef) (modifier.Value, bool) {
	switch spec.Table {
	case TableEssay, TableSegment, TableEssayFeedback, TableSegmentFeedback:
	default:
		return modifier.Value{}, false
	}

	essay, err := r.src.Essay(ctx, ref.EssayID, nil)
	if err != nil {
		r.log.Warn("essay lookup failed", "essay_id", ref.EssayID, "error", err)
		return modifier.Value{}, false
	}
	if essay == nil {
		return modifier.Value{}, false
	}

	filters := tagFilters(spec, ref)

	var records []Record
	switch spec.Table {
	case TableEssay:
		if len(filters) > 0 {
			essay, err = r.src.Essay(ctx, ref.EssayID, filters)
		}
		if essay != nil {
			records = []Record{essay}
		}
	case TableSegment:
		narrowToSegment(filters, ref, "id")
		records, err = r.src.Segments(ctx, ref.EssayID, filters)
	case TableEssayFeedback:
		records, err = r.src.EssayFeedback(ctx, ref.EssayID, filters)
	case TableSegmentFeedback:
		narrowToSegment(filters, ref, "segment_id")
		records, err = r.src.SegmentFeedback(ctx, ref.EssayID, filters)
	}
	if err != nil {
		r.log.Warn("merge tag lookup failed", "table", spec.Table, "field", spec.Field, "error", err)
		return modifier.Value{}, false
	}

	values := make([]string, 0, len(records))
	for _, rec := range records {
		v, ok := rec.Field(spec.Field)
		if !ok {
			return modifier.Value{}, false
		}
		values = append(values, v)
	}

	var out modifier.Value
	switch len(values) {
	case 0:
		return modifier.Value{}, false
	case 1:
		out = modifier.Scalar(values[0])
	default:
		out = modifier.List(values...)
	}
	if spec.Modifiers != "" && !out.Empty() {
		out = modifier.Apply(out, spec.Modifiers)
	}
	return out, true
}

func tagFilters(spec mergetag.TagSpec, ref feed.EssayRef) repos.Filters {
	filters := repos.Filters{}
	if spec.Filter != nil {
		value := spec.Filter.Value
		if value == CurrentEssay {
			value = ref.EssayID.String()
		}
		filters[spec.Filter.Field] = value
	}
	return filters
}

// SegmentFilters returns the filters of the first segment tag in prompt, as Resolve applies them.
// Nil when the prompt reads no segments.
func SegmentFilters(prompt string, ref feed.EssayRef) repos.Filters {
	for _, t := range mergetag.Parse(prompt) {
		if t.Spec.Table == TableSegment {
			return tagFilters(t.Spec, ref)
		}
	}
	return nil
}

// narrowToSegment scopes a segment-targeted run to its own segment unless the tag already
// filters by id.
func narrowToSegment(filters repos.Filters, ref feed.EssayRef, field string) {
	if ref.SegmentID == nil || *ref.SegmentID == uuid.Nil {
		return
	}
	if _, ok := filters["id"]; ok {
		return
	}
	if _, ok := filters["segment_id"]; ok {
		return
	}
	filters[field] = ref.SegmentID.String()
}
