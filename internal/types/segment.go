package types

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Segment is a titled, typed, ordered sub-unit of an essay.
type Segment struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	EssayID   uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_segment_essay_order,priority:1" json:"essay_id"`
	Essay     *Essay    `gorm:"constraint:OnDelete:CASCADE;foreignKey:EssayID;references:ID" json:"essay,omitempty"`
	Title     string    `gorm:"column:title" json:"title"`
	Content   string    `gorm:"column:content" json:"content"`
	Type      string    `gorm:"column:type;not null;default:'unknown';index" json:"type"`
	Order     int       `gorm:"column:position;not null;uniqueIndex:idx_segment_essay_order,priority:2" json:"order"`
	Source    string    `gorm:"column:source;not null;default:'generated'" json:"source"`
	CreatedAt time.Time `gorm:"not null" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null" json:"updated_at"`
}

func (Segment) TableName() string { return "segment" }

func (s *Segment) BeforeCreate(*gorm.DB) error {
	ensureID(&s.ID)
	return nil
}

func (s *Segment) Field(name string) (string, bool) {
	switch name {
	case "id", "uuid":
		return s.ID.String(), true
	case "essay_id":
		return s.EssayID.String(), true
	case "title":
		return s.Title, true
	case "content":
		return s.Content, true
	case "type":
		return s.Type, true
	case "order":
		return itoa(s.Order), true
	default:
		return "", false
	}
}
