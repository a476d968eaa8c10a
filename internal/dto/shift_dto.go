package dto

import "github.com/shopspring/decimal"

// ─── Request DTOs ────────────────────────────────────────────────────────────

type OpenShiftRequest struct {
	RegisterID string `json:"register_id" validate:"required,uuid"`
	// OpeningAmounts per ISO currency code, e.g. {"PEN": "100.00"}
	OpeningAmounts map[string]decimal.Decimal `json:"opening_amounts" validate:"required,min=1"`
}

type RecordMovementRequest struct {
	ShiftID   string          `json:"shift_id"  validate:"required,uuid"`
	Direction string          `json:"direction" validate:"required,oneof=in out"`
	Amount    decimal.Decimal `json:"amount"    validate:"required"`
	Currency  string          `json:"currency"  validate:"required,len=3"`
	Category  string          `json:"category"  validate:"required,min=2"`
	Reason    string          `json:"reason"    validate:"required,min=3"`
}

// CloseShiftRequest carries the operator's blind declaration. The expected
// amounts are computed only after this request is received and are returned
// with the result — never exposed beforehand.
type CloseShiftRequest struct {
	ShiftID         string                     `json:"shift_id"         validate:"required,uuid"`
	DeclaredAmounts map[string]decimal.Decimal `json:"declared_amounts" validate:"required,min=1"`
	// Breakdown optionally records the physical denomination count, e.g. {"100": 3, "50": 1}
	Breakdown map[string]int `json:"breakdown"`
	Note      *string        `json:"note"`
}

// ─── Response DTOs ───────────────────────────────────────────────────────────

// CurrencyVariance is the reconciliation result for one currency.
type CurrencyVariance struct {
	Currency       string          `json:"currency"`
	Expected       decimal.Decimal `json:"expected"`
	Declared       decimal.Decimal `json:"declared"`
	Variance       decimal.Decimal `json:"variance"`
	Classification string          `json:"classification"` // EXACT | SURPLUS | SHORTAGE
}

type CloseShiftResponse struct {
	ShiftID        string             `json:"shift_id"`
	Status         string             `json:"status"`
	Reconciliation []CurrencyVariance `json:"reconciliation"`
	ClosedAt       string             `json:"closed_at"`
}

type MovementResponse struct {
	ID        string          `json:"id"`
	Kind      string          `json:"kind"`
	Direction string          `json:"direction"`
	Amount    decimal.Decimal `json:"amount"`
	Currency  string          `json:"currency"`
	Category  string          `json:"category"`
	Reason    string          `json:"reason"`
	CreatedAt string          `json:"created_at"`
}

type ShiftReportResponse struct {
	ShiftID        string                     `json:"shift_id"`
	RegisterID     string                     `json:"register_id"`
	OperatorID     string                     `json:"operator_id"`
	Status         string                     `json:"status"`
	OpeningAmounts map[string]decimal.Decimal `json:"opening_amounts"`
	// Balances is the running ledger balance per currency (Σin − Σout)
	Balances       map[string]decimal.Decimal `json:"balances"`
	Movements      []MovementResponse         `json:"movements"`
	Reconciliation []CurrencyVariance         `json:"reconciliation,omitempty"`
	Note           *string                    `json:"note,omitempty"`
	OpenedAt       string                     `json:"opened_at"`
	ClosedAt       *string                    `json:"closed_at,omitempty"`
}

type ShiftListItem struct {
	ShiftID    string  `json:"shift_id"`
	RegisterID string  `json:"register_id"`
	OperatorID string  `json:"operator_id"`
	Status     string  `json:"status"`
	OpenedAt   string  `json:"opened_at"`
	ClosedAt   *string `json:"closed_at,omitempty"`
}
