package types

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// APIKey is a sealed provider credential. Ciphertext is opened with the vault master key.
type APIKey struct {
	ID         uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	Provider   string     `gorm:"column:provider;not null;uniqueIndex" json:"provider"`
	Ciphertext []byte     `gorm:"column:ciphertext;not null" json:"-"`
	UsageCount int64      `gorm:"column:usage_count;not null;default:0" json:"usage_count"`
	Active     bool       `gorm:"column:active;not null;default:true" json:"active"`
	LastUsedAt *time.Time `gorm:"column:last_used_at" json:"last_used_at,omitempty"`
	CreatedAt  time.Time  `gorm:"not null" json:"created_at"`
	UpdatedAt  time.Time  `gorm:"not null" json:"updated_at"`
}

func (APIKey) TableName() string { return "api_key" }

func (k *APIKey) BeforeCreate(*gorm.DB) error {
	ensureID(&k.ID)
	return nil
}
