package dto

import "github.com/shopspring/decimal"

type DocumentResponse struct {
	ID             string          `json:"id"`
	Type           string          `json:"type"`
	Series         string          `json:"series"`
	Number         int64           `json:"number"`
	BuyerDocType   string          `json:"buyer_doc_type"`
	BuyerDocNumber *string         `json:"buyer_doc_number,omitempty"`
	BuyerName      *string         `json:"buyer_name,omitempty"`
	Currency       string          `json:"currency"`
	TaxableAmount  decimal.Decimal `json:"taxable_amount"`
	ExemptAmount   decimal.Decimal `json:"exempt_amount"`
	TaxAmount      decimal.Decimal `json:"tax_amount"`
	TotalAmount    decimal.Decimal `json:"total_amount"`
	AuthorityState string          `json:"authority_state"`
	AuthorityRef   *string         `json:"authority_ref,omitempty"`
	RejectReason   *string         `json:"reject_reason,omitempty"`
	CorrectsID     *string         `json:"corrects_id,omitempty"`
	CorrectionType *string         `json:"correction_type,omitempty"`
	ManualFlag     bool            `json:"manual_submission"`
	IssuedAt       string          `json:"issued_at"`
}

// IssueCreditNoteRequest corrects one prior accepted document. SeriesCode
// defaults to the original document's series when omitted. ShiftID is
// required whenever the correction refunds cash.
type IssueCreditNoteRequest struct {
	OriginalDocumentID string          `json:"original_document_id" validate:"required,uuid"`
	ShiftID            *string         `json:"shift_id"             validate:"omitempty,uuid"`
	CorrectionType     string          `json:"correction_type"      validate:"required,oneof=full_cancellation partial_amount accounting_adjustment"`
	Amount             decimal.Decimal `json:"amount"               validate:"required"`
	Reason             string          `json:"reason"               validate:"required,min=3"`
	RefundMethod       *string         `json:"refund_method"        validate:"omitempty,oneof=cash card wallet transfer"`
	SeriesCode         *string         `json:"series_code"          validate:"omitempty,min=1,max=10"`
	ReleaseReservation bool            `json:"release_reservation"`
}

// AuthorityCallbackRequest is posted by the fiscal gateway once the authority
// has resolved a submitted document.
type AuthorityCallbackRequest struct {
	DocumentID   string  `json:"document_id" validate:"required,uuid"`
	Status       string  `json:"status"      validate:"required,oneof=accepted rejected"`
	AuthorityRef *string `json:"authority_ref"`
	Reason       *string `json:"reason"`
}
