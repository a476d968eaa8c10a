package model

import (
	"time"

	"github.com/google/uuid"
)

// Register is a physical cash point. Registers are configured, never deleted
// while shifts reference them — only deactivated.
type Register struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	Name      string    `gorm:"not null"`
	Active    bool      `gorm:"not null;default:true"`
	CreatedAt time.Time
	UpdatedAt time.Time
}
