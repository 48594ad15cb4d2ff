package types

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// AICallLog records one provider request (after retries) made while running a feed.
type AICallLog struct {
	ID           uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	FeedID       *uuid.UUID `gorm:"type:uuid;index" json:"feed_id,omitempty"`
	EssayID      *uuid.UUID `gorm:"type:uuid;index" json:"essay_id,omitempty"`
	StepType     string     `gorm:"column:step_type;not null" json:"step_type"`
	Provider     string     `gorm:"column:provider;not null" json:"provider"`
	Model        string     `gorm:"column:model;not null" json:"model"`
	Mode         string     `gorm:"column:mode;not null" json:"mode"`
	VariantIndex int        `gorm:"column:variant_index;not null;default:0" json:"variant_index"`
	Attempts     int        `gorm:"column:attempts;not null;default:1" json:"attempts"`
	Prompt       string     `gorm:"column:prompt" json:"prompt"`
	Response     string     `gorm:"column:response" json:"response"`
	Success      bool       `gorm:"column:success;not null" json:"success"`
	Error        string     `gorm:"column:error" json:"error"`
	LatencyMS    int64      `gorm:"column:latency_ms;not null;default:0" json:"latency_ms"`
	CreatedAt    time.Time  `gorm:"not null;index" json:"created_at"`
}

func (AICallLog) TableName() string { return "ai_call_log" }

func (l *AICallLog) BeforeCreate(*gorm.DB) error {
	ensureID(&l.ID)
	return nil
}
