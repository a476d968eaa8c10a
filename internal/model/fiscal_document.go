package model

import (
	"time"

	"frontdesk/internal/apierror"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Fiscal document types. Each type resolves to its own series and carries its
// own buyer-identity requirements.
const (
	DocReceipt        = "receipt"
	DocInvoice        = "invoice"
	DocCreditNote     = "credit_note"
	DocInternalTicket = "internal_ticket"
)

// Authority states. PENDING → ACCEPTED | REJECTED; ACCEPTED → CANCELLED
// (only via a credit note). REJECTED and CANCELLED are terminal.
const (
	StatePending   = "pending"
	StateAccepted  = "accepted"
	StateRejected  = "rejected"
	StateCancelled = "cancelled"
)

// Buyer identity document classes.
const (
	BuyerDocNone     = "none"
	BuyerDocNational = "national_id"
	BuyerDocTaxID    = "tax_id"
	BuyerDocPassport = "passport"
)

// Correction types for credit notes.
const (
	CorrectionFullCancellation = "full_cancellation"
	CorrectionPartialAmount    = "partial_amount"
	CorrectionAccountingAdj    = "accounting_adjustment"
)

// FiscalDocument is a legally numbered sale or correction document.
// (type, series, number) identifies a document; numbers are strictly
// increasing per series and never reused. A credit note references exactly one
// prior document via CorrectsID, and that reference is never itself a credit
// note.
type FiscalDocument struct {
	ID     uuid.UUID `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	Type   string    `gorm:"type:varchar(20);not null;uniqueIndex:idx_type_series_number"`
	Series string    `gorm:"type:varchar(10);not null;uniqueIndex:idx_type_series_number"`
	Number int64     `gorm:"not null;uniqueIndex:idx_type_series_number"`

	BuyerDocType   string  `gorm:"type:varchar(15);not null;default:'none'"`
	BuyerDocNumber *string `gorm:"type:varchar(20)"`
	BuyerName      *string
	BuyerAddress   *string

	Currency      string          `gorm:"type:varchar(3);not null"`
	TaxableAmount decimal.Decimal `gorm:"type:decimal(12,2);not null"`
	ExemptAmount  decimal.Decimal `gorm:"type:decimal(12,2);not null;default:0"`
	TaxAmount     decimal.Decimal `gorm:"type:decimal(12,2);not null;default:0"`
	TotalAmount   decimal.Decimal `gorm:"type:decimal(12,2);not null"`

	AuthorityState string `gorm:"type:varchar(10);not null;default:'pending'"`
	// AuthorityRef is the acceptance code assigned by the fiscal authority
	AuthorityRef *string `gorm:"type:varchar(40)"`
	RejectReason *string

	// Correction fields — only for credit notes
	CorrectsID     *uuid.UUID `gorm:"type:uuid;index"`
	CorrectionType *string    `gorm:"type:varchar(25)"`
	RefundMethod   *string    `gorm:"type:varchar(10)"`

	// ManualSubmission is set when the retry horizon is exhausted and the
	// document must be resubmitted by an operator.
	ManualSubmission bool `gorm:"not null;default:false"`

	// Retry bookkeeping for the submission cron
	RetryCount  int `gorm:"not null;default:0"`
	NextRetryAt *time.Time
	LastError   *string

	IssuedAt  time.Time
	CreatedAt time.Time
	UpdatedAt time.Time

	Lines []DocumentLine `gorm:"foreignKey:DocumentID"`
}

// DocumentLine is one billable line of a fiscal document.
type DocumentLine struct {
	ID          uuid.UUID       `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	DocumentID  uuid.UUID       `gorm:"type:uuid;not null;index"`
	Description string          `gorm:"not null"`
	Quantity    decimal.Decimal `gorm:"type:decimal(10,3);not null"`
	UnitPrice   decimal.Decimal `gorm:"type:decimal(12,2);not null"`
	Subtotal    decimal.Decimal `gorm:"type:decimal(12,2);not null"`
	TaxAmount   decimal.Decimal `gorm:"type:decimal(12,2);not null;default:0"`
	Exempt      bool            `gorm:"not null;default:false"`
}

// ValidDocumentType reports whether t is an issuable sale document type.
// Credit notes are issued through their own path, never directly.
func ValidDocumentType(t string) bool {
	switch t {
	case DocReceipt, DocInvoice, DocInternalTicket:
		return true
	}
	return false
}

// transitions is the full authority state machine. Anything absent here is
// an invalid transition.
var transitions = map[string]map[string]bool{
	StatePending:  {StateAccepted: true, StateRejected: true},
	StateAccepted: {StateCancelled: true},
}

// CanTransition reports whether the document may move to the target state.
func (d *FiscalDocument) CanTransition(to string) bool {
	return transitions[d.AuthorityState][to]
}

// Transition moves the document to the target state or fails with a
// StateError carrying the current state.
func (d *FiscalDocument) Transition(to string) error {
	if !d.CanTransition(to) {
		return apierror.Statef(d.AuthorityState,
			"document %s/%d cannot move from %s to %s", d.Series, d.Number, d.AuthorityState, to)
	}
	d.AuthorityState = to
	return nil
}
