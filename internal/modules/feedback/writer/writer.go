// Package writer persists step output. Generation never overwrites: a column is written only while
// it is empty, and paragraph extraction runs only for essays without segments.
package writer

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/yungbote/essayfeed-backend/internal/modules/feedback/feed"
	"github.com/yungbote/essayfeed-backend/internal/modules/feedback/segments"
	"github.com/yungbote/essayfeed-backend/internal/platform/logger"
	"github.com/yungbote/essayfeed-backend/internal/repos"
	"github.com/yungbote/essayfeed-backend/internal/types"
)

type Status string

const (
	StatusCreated         Status = "created"
	StatusFilled          Status = "filled"
	StatusSkipped         Status = "skipped"
	StatusNotFound        Status = "not_found"
	StatusSegmentsCreated Status = "segments_created"
	StatusSegmentsExist   Status = "segments_exist"
	StatusNoop            Status = "noop"
)

// Output is what a step produced. Variants is set for pooled steps, one entry per prompt index,
// empty where the request failed. SegmentFilters are the filters of the segment tag the variants
// were expanded from; segment-scoped output is paired with the segments they select.
type Output struct {
	Content        string
	Variants       []string
	SegmentFilters repos.Filters
}

func (o Output) empty() bool {
	if strings.TrimSpace(o.Content) != "" {
		return false
	}
	for _, v := range o.Variants {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}

type Outcome struct {
	Status  Status `json:"status"`
	Column  string `json:"column,omitempty"`
	Created int    `json:"created"`
	Filled  int    `json:"filled"`
	Skipped int    `json:"skipped"`
}

func (o *Outcome) add(s Status) {
	switch s {
	case StatusCreated:
		o.Created++
	case StatusFilled:
		o.Filled++
	case StatusSkipped:
		o.Skipped++
	}
}

func (o *Outcome) settle() {
	switch {
	case o.Created > 0:
		o.Status = StatusCreated
	case o.Filled > 0:
		o.Status = StatusFilled
	case o.Skipped > 0:
		o.Status = StatusSkipped
	default:
		o.Status = StatusNotFound
	}
}

type Writer struct {
	db              *gorm.DB
	essays          repos.EssayRepo
	segments        repos.SegmentRepo
	essayFeedback   repos.EssayFeedbackRepo
	segmentFeedback repos.SegmentFeedbackRepo
	log             *logger.Logger
}

func New(
	db *gorm.DB,
	essays repos.EssayRepo,
	segmentRepo repos.SegmentRepo,
	essayFeedback repos.EssayFeedbackRepo,
	segmentFeedback repos.SegmentFeedbackRepo,
	baseLog *logger.Logger,
) *Writer {
	return &Writer{
		db:              db,
		essays:          essays,
		segments:        segmentRepo,
		essayFeedback:   essayFeedback,
		segmentFeedback: segmentFeedback,
		log:             baseLog.With("component", "FeedbackWriter"),
	}
}

// SaveStepOutput routes output by the feed's scope. A populated column is reported as skipped,
// not as an error.
func (w *Writer) SaveStepOutput(ctx context.Context, ref feed.EssayRef, f *feed.Feed, stepType feed.StepType, out Output) (Outcome, error) {
	column := stepType.Column()
	if out.empty() {
		return Outcome{Status: StatusNoop, Column: column}, nil
	}

	switch {
	case f.ApplyTo == feed.ScopeParagraph:
		// Only the feedback step describes paragraphs; reasoning and scores have no segment shape.
		if column != types.FeedbackColumnFeedback {
			return Outcome{Status: StatusNoop, Column: column}, nil
		}
		return w.saveParagraphs(ctx, ref.EssayID, out)
	case f.SegmentScope():
		return w.saveSegments(ctx, ref, f, column, out)
	default:
		return w.saveEssay(ctx, ref.EssayID, f.Criteria, column, out.Content)
	}
}

func (w *Writer) saveEssay(ctx context.Context, essayID uuid.UUID, criteria, column, content string) (Outcome, error) {
	res := Outcome{Column: column}
	essay, err := w.essays.GetByID(ctx, nil, essayID)
	if err != nil {
		return res, fmt.Errorf("load essay: %w", err)
	}
	if essay == nil {
		res.Status = StatusNotFound
		return res, nil
	}
	s, err := w.upsertEssayFeedback(ctx, essayID, criteria, column, content)
	if err != nil {
		return res, err
	}
	res.add(s)
	res.settle()
	return res, nil
}

func (w *Writer) upsertEssayFeedback(ctx context.Context, essayID uuid.UUID, criteria, column, content string) (Status, error) {
	row, err := w.essayFeedback.GetBySubjectCriteria(ctx, nil, essayID, criteria)
	if err != nil {
		return "", fmt.Errorf("load essay feedback: %w", err)
	}
	if row == nil {
		fresh := &types.EssayFeedback{EssayID: essayID, Criteria: criteria}
		setColumn(column, content, &fresh.CoT, &fresh.Score, &fresh.Feedback)
		_, cerr := w.essayFeedback.Create(ctx, nil, []*types.EssayFeedback{fresh})
		if cerr == nil {
			return StatusCreated, nil
		}
		// Lost a race with another writer; fall through to the fill path.
		row, err = w.essayFeedback.GetBySubjectCriteria(ctx, nil, essayID, criteria)
		if err != nil || row == nil {
			return "", fmt.Errorf("create essay feedback: %w", cerr)
		}
	}
	ok, err := w.essayFeedback.FillColumnIfEmpty(ctx, nil, row.ID, column, content)
	if err != nil {
		return "", fmt.Errorf("fill essay feedback: %w", err)
	}
	if !ok {
		w.log.Debug("essay feedback column already populated", "essay_id", essayID, "criteria", criteria, "column", column)
		return StatusSkipped, nil
	}
	return StatusFilled, nil
}

func (w *Writer) upsertSegmentFeedback(ctx context.Context, segmentID uuid.UUID, criteria, column, content string) (Status, error) {
	row, err := w.segmentFeedback.GetBySubjectCriteria(ctx, nil, segmentID, criteria)
	if err != nil {
		return "", fmt.Errorf("load segment feedback: %w", err)
	}
	if row == nil {
		fresh := &types.SegmentFeedback{SegmentID: segmentID, Criteria: criteria}
		setColumn(column, content, &fresh.CoT, &fresh.Score, &fresh.Feedback)
		_, cerr := w.segmentFeedback.Create(ctx, nil, []*types.SegmentFeedback{fresh})
		if cerr == nil {
			return StatusCreated, nil
		}
		row, err = w.segmentFeedback.GetBySubjectCriteria(ctx, nil, segmentID, criteria)
		if err != nil || row == nil {
			return "", fmt.Errorf("create segment feedback: %w", cerr)
		}
	}
	ok, err := w.segmentFeedback.FillColumnIfEmpty(ctx, nil, row.ID, column, content)
	if err != nil {
		return "", fmt.Errorf("fill segment feedback: %w", err)
	}
	if !ok {
		return StatusSkipped, nil
	}
	return StatusFilled, nil
}

// saveParagraphs extracts segments from the output and creates them, unless the essay already has
// segments.
func (w *Writer) saveParagraphs(ctx context.Context, essayID uuid.UUID, out Output) (Outcome, error) {
	res := Outcome{}
	n, err := w.segments.CountByEssayID(ctx, nil, essayID)
	if err != nil {
		return res, fmt.Errorf("count segments: %w", err)
	}
	if n > 0 {
		res.Status = StatusSegmentsExist
		return res, nil
	}
	essay, err := w.essays.GetByID(ctx, nil, essayID)
	if err != nil {
		return res, fmt.Errorf("load essay: %w", err)
	}
	if essay == nil {
		res.Status = StatusNotFound
		return res, nil
	}

	extracted := segments.Extract(paragraphText(out))
	if len(extracted) == 0 {
		res.Status = StatusNoop
		return res, nil
	}
	rows := make([]*types.Segment, 0, len(extracted))
	for _, s := range extracted {
		rows = append(rows, &types.Segment{
			EssayID: essayID,
			Title:   s.Title,
			Content: s.Content,
			Type:    s.Type,
			Order:   s.Order,
			Source:  "generated",
		})
	}

	err = w.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		_, err := w.segments.Create(ctx, tx, rows)
		return err
	})
	if err != nil {
		// A concurrent run may have extracted first; the (essay_id, order) key rejects ours.
		if n, cerr := w.segments.CountByEssayID(ctx, nil, essayID); cerr == nil && n > 0 {
			res.Status = StatusSegmentsExist
			return res, nil
		}
		return res, fmt.Errorf("create segments: %w", err)
	}
	res.Status = StatusSegmentsCreated
	res.Created = len(rows)
	w.log.Info("segments created", "essay_id", essayID, "count", len(rows))
	return res, nil
}

// paragraphText drops failed pooled variants so their error markers never become segments.
func paragraphText(out Output) string {
	if len(out.Variants) == 0 {
		return out.Content
	}
	kept := make([]string, 0, len(out.Variants))
	for _, v := range out.Variants {
		if strings.TrimSpace(v) != "" {
			kept = append(kept, v)
		}
	}
	return strings.Join(kept, segments.Separator)
}

// saveSegments writes feedback for an explicit segment, or zips pooled variants in order with the
// essay's segments of the feed's type, narrowed by the prompt's segment tag filter. A single output
// goes to the first matching segment.
func (w *Writer) saveSegments(ctx context.Context, ref feed.EssayRef, f *feed.Feed, column string, out Output) (Outcome, error) {
	res := Outcome{Column: column}

	var targets []*types.Segment
	if ref.SegmentID != nil {
		seg, err := w.segments.GetByID(ctx, nil, *ref.SegmentID)
		if err != nil {
			return res, fmt.Errorf("load segment: %w", err)
		}
		if seg != nil && seg.EssayID == ref.EssayID {
			targets = []*types.Segment{seg}
		}
	} else {
		filters := repos.Filters{}
		if f.ApplyTo != feed.ScopeSegment {
			filters["type"] = f.ApplyTo
		}
		for k, v := range out.SegmentFilters {
			filters[k] = v
		}
		list, err := w.segments.ListByEssayID(ctx, nil, ref.EssayID, filters)
		if err != nil {
			return res, fmt.Errorf("list segments: %w", err)
		}
		targets = list
	}
	if len(targets) == 0 {
		res.Status = StatusNotFound
		return res, nil
	}

	contents := out.Variants
	if len(contents) == 0 || ref.SegmentID != nil {
		contents = []string{out.Content}
	}
	for i, content := range contents {
		if i >= len(targets) {
			break
		}
		if strings.TrimSpace(content) == "" {
			continue
		}
		s, err := w.upsertSegmentFeedback(ctx, targets[i].ID, f.Criteria, column, content)
		if err != nil {
			return res, err
		}
		res.add(s)
	}
	res.settle()
	return res, nil
}

func setColumn(column, content string, cot, score, feedback *string) {
	switch column {
	case types.FeedbackColumnCoT:
		*cot = content
	case types.FeedbackColumnScore:
		*score = content
	default:
		*feedback = content
	}
}
