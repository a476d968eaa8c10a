package model

import (
	"time"

	"github.com/google/uuid"
)

// Series is a (document type, code) pair owning a monotonic counter.
// LastNumber is mutated exclusively through the allocator's atomic
// UPDATE … RETURNING — never read-then-write from application code.
type Series struct {
	ID           uuid.UUID `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	DocumentType string    `gorm:"type:varchar(20);not null;uniqueIndex:idx_series_type_code"`
	Code         string    `gorm:"type:varchar(10);not null;uniqueIndex:idx_series_type_code"`
	LastNumber   int64     `gorm:"not null;default:0"`
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
