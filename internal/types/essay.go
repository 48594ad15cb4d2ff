package types

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type Essay struct {
	ID        uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	Title     string         `gorm:"column:title" json:"title"`
	Question  string         `gorm:"column:question" json:"question"`
	Content   string         `gorm:"column:content" json:"content"`
	Status    string         `gorm:"column:status;not null;default:'draft';index" json:"status"`
	CreatedAt time.Time      `gorm:"not null;index" json:"created_at"`
	UpdatedAt time.Time      `gorm:"not null" json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
}

func (Essay) TableName() string { return "essay" }

func (e *Essay) BeforeCreate(*gorm.DB) error {
	ensureID(&e.ID)
	return nil
}

// Field exposes columns addressable from merge tags.
func (e *Essay) Field(name string) (string, bool) {
	switch name {
	case "id", "uuid":
		return e.ID.String(), true
	case "title":
		return e.Title, true
	case "question":
		return e.Question, true
	case "content":
		return e.Content, true
	case "status":
		return e.Status, true
	default:
		return "", false
	}
}
