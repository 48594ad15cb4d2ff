package resolver

import (
	"context"

	"github.com/google/uuid"

	"github.com/yungbote/essayfeed-backend/internal/repos"
)

// RepoSource reads through the gorm repos.
type RepoSource struct {
	essays          repos.EssayRepo
	segments        repos.SegmentRepo
	essayFeedback   repos.EssayFeedbackRepo
	segmentFeedback repos.SegmentFeedbackRepo
}

func NewRepoSource(essays repos.EssayRepo, segments repos.SegmentRepo, essayFeedback repos.EssayFeedbackRepo, segmentFeedback repos.SegmentFeedbackRepo) *RepoSource {
	return &RepoSource{
		essays:          essays,
		segments:        segments,
		essayFeedback:   essayFeedback,
		segmentFeedback: segmentFeedback,
	}
}

func (s *RepoSource) Essay(ctx context.Context, essayID uuid.UUID, filters repos.Filters) (Record, error) {
	e, err := s.essays.Find(ctx, nil, essayID, filters)
	if err != nil || e == nil {
		return nil, err
	}
	return e, nil
}

func (s *RepoSource) Segments(ctx context.Context, essayID uuid.UUID, filters repos.Filters) ([]Record, error) {
	rows, err := s.segments.ListByEssayID(ctx, nil, essayID, filters)
	if err != nil {
		return nil, err
	}
	out := make([]Record, len(rows))
	for i, r := range rows {
		out[i] = r
	}
	return out, nil
}

func (s *RepoSource) EssayFeedback(ctx context.Context, essayID uuid.UUID, filters repos.Filters) ([]Record, error) {
	rows, err := s.essayFeedback.ListByEssayID(ctx, nil, essayID, filters)
	if err != nil {
		return nil, err
	}
	out := make([]Record, len(rows))
	for i, r := range rows {
		out[i] = r
	}
	return out, nil
}

func (s *RepoSource) SegmentFeedback(ctx context.Context, essayID uuid.UUID, filters repos.Filters) ([]Record, error) {
	rows, err := s.segmentFeedback.ListByEssayID(ctx, nil, essayID, filters)
	if err != nil {
		return nil, err
	}
	out := make([]Record, len(rows))
	for i, r := range rows {
		out[i] = r
	}
	return out, nil
}
