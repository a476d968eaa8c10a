package dto

import "github.com/shopspring/decimal"

type BuyerRequest struct {
	DocType   string  `json:"doc_type"   validate:"required,oneof=none national_id tax_id passport"`
	DocNumber *string `json:"doc_number"`
	Name      *string `json:"name"`
	Address   *string `json:"address"`
}

type LineItemRequest struct {
	Description string          `json:"description" validate:"required,min=1"`
	Quantity    decimal.Decimal `json:"quantity"    validate:"required"`
	UnitPrice   decimal.Decimal `json:"unit_price"  validate:"required"`
	Subtotal    decimal.Decimal `json:"subtotal"    validate:"required"`
	TaxAmount   decimal.Decimal `json:"tax_amount"`
	Exempt      bool            `json:"exempt"`
}

// IssuePaymentRequest is the single entry point for collecting a guest payment
// together with its fiscal document. IdempotencyKey makes the whole operation
// safe to retry after a timeout: the same key always yields the original
// outcome, never a duplicate charge.
type IssuePaymentRequest struct {
	IdempotencyKey string            `json:"idempotency_key" validate:"required,min=8,max=80"`
	ShiftID        string            `json:"shift_id"        validate:"required,uuid"`
	ReservationRef string            `json:"reservation_ref"`
	Method         string            `json:"method"          validate:"required,oneof=cash card wallet transfer"`
	Amount         decimal.Decimal   `json:"amount"          validate:"required"`
	Currency       string            `json:"currency"        validate:"required,len=3"`
	ExternalRef    *string           `json:"external_ref"`
	DocumentType   string            `json:"document_type"   validate:"required,oneof=receipt invoice internal_ticket"`
	SeriesCode     string            `json:"series_code"     validate:"required,min=1,max=10"`
	Buyer          BuyerRequest      `json:"buyer"           validate:"required"`
	Lines          []LineItemRequest `json:"lines"           validate:"required,min=1,dive"`
	GuestEmail     *string           `json:"guest_email"     validate:"omitempty,email"`
}

type PaymentResponse struct {
	ID             string          `json:"id"`
	ShiftID        string          `json:"shift_id"`
	ReservationRef string          `json:"reservation_ref,omitempty"`
	Method         string          `json:"method"`
	Amount         decimal.Decimal `json:"amount"`
	Currency       string          `json:"currency"`
	DocumentID     string          `json:"document_id"`
	CreatedAt      string          `json:"created_at"`
}

type IssuePaymentResponse struct {
	Payment  PaymentResponse  `json:"payment"`
	Document DocumentResponse `json:"document"`
}
