package types

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Feed is the stored form of a feedback feed. Steps holds a JSON array of
// {"type": "...", "config": {"section": {"field": value}}}.
type Feed struct {
	ID        uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	Name      string         `gorm:"column:name;not null" json:"name"`
	Criteria  string         `gorm:"column:criteria;not null;index" json:"criteria"`
	ApplyTo   string         `gorm:"column:apply_to;not null;default:'essay'" json:"apply_to"`
	Steps     datatypes.JSON `gorm:"column:steps" json:"steps"`
	Enabled   bool           `gorm:"column:enabled;not null;default:true" json:"enabled"`
	CreatedAt time.Time      `gorm:"not null" json:"created_at"`
	UpdatedAt time.Time      `gorm:"not null" json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
}

func (Feed) TableName() string { return "feed" }

func (f *Feed) BeforeCreate(*gorm.DB) error {
	ensureID(&f.ID)
	return nil
}
