package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Payment methods accepted at the desk.
const (
	MethodCash     = "cash"
	MethodCard     = "card"
	MethodWallet   = "wallet"
	MethodTransfer = "transfer"
)

// Payment is a guest-facing collection event, immutable once created. It is
// always created together with its fiscal document and ledger movement in a
// single transaction by the issuance coordinator.
type Payment struct {
	ID             uuid.UUID       `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	ShiftID        uuid.UUID       `gorm:"type:uuid;not null;index"`
	ReservationRef string          `gorm:"type:varchar(40)"`
	Method         string          `gorm:"type:varchar(10);not null"`
	Amount         decimal.Decimal `gorm:"type:decimal(12,2);not null"`
	Currency       string          `gorm:"type:varchar(3);not null"`
	// ExternalRef holds e.g. the card authorization code
	ExternalRef *string   `gorm:"type:varchar(60)"`
	DocumentID  uuid.UUID `gorm:"type:uuid;not null;index"`
	OperatorID  uuid.UUID `gorm:"type:uuid;not null"`
	CreatedAt   time.Time
}

// ValidMethod reports whether m is one of the accepted payment methods.
func ValidMethod(m string) bool {
	switch m {
	case MethodCash, MethodCard, MethodWallet, MethodTransfer:
		return true
	}
	return false
}
