package types

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Content columns shared by both feedback tables. A column is written by generation only
// while it is empty.
const (
	FeedbackColumnCoT      = "cot"
	FeedbackColumnScore    = "score"
	FeedbackColumnFeedback = "feedback"
)

type EssayFeedback struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	EssayID   uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_essay_feedback_subject,priority:1" json:"essay_id"`
	Essay     *Essay    `gorm:"constraint:OnDelete:CASCADE;foreignKey:EssayID;references:ID" json:"essay,omitempty"`
	Criteria  string    `gorm:"column:criteria;not null;uniqueIndex:idx_essay_feedback_subject,priority:2" json:"criteria"`
	CoT       string    `gorm:"column:cot" json:"cot"`
	Score     string    `gorm:"column:score" json:"score"`
	Feedback  string    `gorm:"column:feedback" json:"feedback"`
	Source    string    `gorm:"column:source;not null;default:'generated'" json:"source"`
	CreatedAt time.Time `gorm:"not null" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null" json:"updated_at"`
}

func (EssayFeedback) TableName() string { return "essay_feedback" }

func (f *EssayFeedback) BeforeCreate(*gorm.DB) error {
	ensureID(&f.ID)
	return nil
}

func (f *EssayFeedback) Field(name string) (string, bool) {
	switch name {
	case "id", "uuid":
		return f.ID.String(), true
	case "essay_id":
		return f.EssayID.String(), true
	case "criteria":
		return f.Criteria, true
	case FeedbackColumnCoT:
		return f.CoT, true
	case FeedbackColumnScore:
		return f.Score, true
	case FeedbackColumnFeedback:
		return f.Feedback, true
	case "source":
		return f.Source, true
	default:
		return "", false
	}
}

type SegmentFeedback struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	SegmentID uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_segment_feedback_subject,priority:1" json:"segment_id"`
	Segment   *Segment  `gorm:"constraint:OnDelete:CASCADE;foreignKey:SegmentID;references:ID" json:"segment,omitempty"`
	Criteria  string    `gorm:"column:criteria;not null;uniqueIndex:idx_segment_feedback_subject,priority:2" json:"criteria"`
	CoT       string    `gorm:"column:cot" json:"cot"`
	Score     string    `gorm:"column:score" json:"score"`
	Feedback  string    `gorm:"column:feedback" json:"feedback"`
	Source    string    `gorm:"column:source;not null;default:'generated'" json:"source"`
	CreatedAt time.Time `gorm:"not null" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null" json:"updated_at"`
}

func (SegmentFeedback) TableName() string { return "segment_feedback" }

func (f *SegmentFeedback) BeforeCreate(*gorm.DB) error {
	ensureID(&f.ID)
	return nil
}

func (f *SegmentFeedback) Field(name string) (string, bool) {
	switch name {
	case "id", "uuid":
		return f.ID.String(), true
	case "segment_id":
		return f.SegmentID.String(), true
	case "criteria":
		return f.Criteria, true
	case FeedbackColumnCoT:
		return f.CoT, true
	case FeedbackColumnScore:
		return f.Score, true
	case FeedbackColumnFeedback:
		return f.Feedback, true
	case "source":
		return f.Source, true
	default:
		return "", false
	}
}
