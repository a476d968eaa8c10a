package service

import (
	"sort"

	"frontdesk/internal/dto"
	"frontdesk/internal/model"

	"github.com/shopspring/decimal"
)

// ReconciliationEngine computes expected-vs-declared variance at shift close.
// The close workflow is blind: the operator's physically-counted declaration
// is collected BEFORE expected amounts are computed or revealed, so the count
// cannot be anchored to the expectation.
type ReconciliationEngine struct {
	tolerance decimal.Decimal
}

// NewReconciliationEngine creates an engine with the given absolute tolerance
// (in the local unit, e.g. 0.50).
func NewReconciliationEngine(tolerance decimal.Decimal) *ReconciliationEngine {
	if tolerance.IsNegative() {
		tolerance = decimal.Zero
	}
	return &ReconciliationEngine{tolerance: tolerance}
}

// Reconcile computes the per-currency result:
//
//	expected = opening + Σ(in movements) − Σ(out movements)
//	variance = declared − expected
//
// Currencies that appear on only one side reconcile against zero. Results are
// sorted by currency for deterministic output.
func (e *ReconciliationEngine) Reconcile(openings, balances, declared map[string]decimal.Decimal) []dto.CurrencyVariance {
	currencies := make(map[string]struct{})
	for c := range openings {
		currencies[c] = struct{}{}
	}
	for c := range balances {
		currencies[c] = struct{}{}
	}
	for c := range declared {
		currencies[c] = struct{}{}
	}

	ordered := make([]string, 0, len(currencies))
	for c := range currencies {
		ordered = append(ordered, c)
	}
	sort.Strings(ordered)

	results := make([]dto.CurrencyVariance, 0, len(ordered))
	for _, c := range ordered {
		expected := openings[c].Add(balances[c])
		decl := declared[c]
		variance := decl.Sub(expected)
		results = append(results, dto.CurrencyVariance{
			Currency:       c,
			Expected:       expected,
			Declared:       decl,
			Variance:       variance,
			Classification: e.classify(variance),
		})
	}
	return results
}

func (e *ReconciliationEngine) classify(variance decimal.Decimal) string {
	switch {
	case variance.Abs().LessThanOrEqual(e.tolerance):
		return model.VarianceExact
	case variance.IsPositive():
		return model.VarianceSurplus
	default:
		return model.VarianceShortage
	}
}
