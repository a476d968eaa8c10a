package model

import (
	"time"

	"github.com/google/uuid"
)

// IdempotencyRecord maps a caller-supplied key to the outcome of a completed
// issuance. It is written in the SAME transaction as the payment, document and
// ledger movement — a separate later write would leave a crash window allowing
// duplicate issuance on retry. Records are created once and never updated.
type IdempotencyRecord struct {
	Key        string    `gorm:"type:varchar(80);primaryKey"`
	PaymentID  uuid.UUID `gorm:"type:uuid;not null"`
	DocumentID uuid.UUID `gorm:"type:uuid;not null"`
	CreatedAt  time.Time
}
