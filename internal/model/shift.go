package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Shift statuses. open → closed is the only transition; a closed shift is
// never reopened or amended.
const (
	ShiftOpen   = "open"
	ShiftClosed = "closed"
)

// Movement directions and kinds.
const (
	DirectionIn  = "in"
	DirectionOut = "out"

	MovementManual  = "manual"  // float top-up, expense, etc.
	MovementPayment = "payment" // guest payment recorded by the coordinator
	MovementRefund  = "refund"  // cash refund driven by a credit note
)

// Variance classifications produced at reconcile time.
const (
	VarianceExact    = "EXACT"
	VarianceSurplus  = "SURPLUS"
	VarianceShortage = "SHORTAGE"
)

// Shift is one operator's session on one register, bounded by open/close.
// At most one open shift may exist per register at any time; a partial unique
// index on (register_id) WHERE status='open' backs this at the DB level.
type Shift struct {
	ID         uuid.UUID `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	RegisterID uuid.UUID `gorm:"type:uuid;not null;index"`
	OperatorID uuid.UUID `gorm:"type:uuid;not null"`
	Status     string    `gorm:"type:varchar(10);not null;default:'open'"`
	Note       *string
	// Breakdown stores the denomination count declared at close, as JSON.
	Breakdown *string `gorm:"type:jsonb"`
	OpenedAt  time.Time
	ClosedAt  *time.Time

	Totals    []ShiftTotal `gorm:"foreignKey:ShiftID"`
	Movements []Movement   `gorm:"foreignKey:ShiftID"`
}

// ShiftTotal carries the per-currency opening amount and, after close, the
// reconciliation result. Closing columns are written exactly once and are
// immutable thereafter.
type ShiftTotal struct {
	ID             uuid.UUID       `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	ShiftID        uuid.UUID       `gorm:"type:uuid;not null;uniqueIndex:idx_shift_currency"`
	Currency       string          `gorm:"type:varchar(3);not null;uniqueIndex:idx_shift_currency"`
	Opening        decimal.Decimal `gorm:"type:decimal(12,2);not null"`
	Expected       *decimal.Decimal `gorm:"type:decimal(12,2)"`
	Declared       *decimal.Decimal `gorm:"type:decimal(12,2)"`
	Variance       *decimal.Decimal `gorm:"type:decimal(12,2)"`
	Classification *string          `gorm:"type:varchar(10)"`
}

// Movement is an immutable entry in the shift ledger. Movements are NEVER
// modified or deleted — corrections create offsetting entries (or, for
// payments, a credit note).
type Movement struct {
	ID         uuid.UUID       `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	ShiftID    uuid.UUID       `gorm:"type:uuid;not null;index"`
	Kind       string          `gorm:"type:varchar(10);not null"`
	Direction  string          `gorm:"type:varchar(3);not null"`
	Amount     decimal.Decimal `gorm:"type:decimal(12,2);not null"` // always positive; direction carries the sign
	Currency   string          `gorm:"type:varchar(3);not null"`
	Category   string          `gorm:"type:varchar(40);not null"`
	Reason     string          `gorm:"not null"`
	OperatorID uuid.UUID       `gorm:"type:uuid;not null"`
	// ReferenceID links to the originating Payment or FiscalDocument
	ReferenceID *uuid.UUID `gorm:"type:uuid"`
	CreatedAt   time.Time
}

// Signed returns the movement amount with its direction applied.
func (m *Movement) Signed() decimal.Decimal {
	if m.Direction == DirectionOut {
		return m.Amount.Neg()
	}
	return m.Amount
}
