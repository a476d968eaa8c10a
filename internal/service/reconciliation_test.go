package service_test

import (
	"testing"

	"frontdesk/internal/model"
	"frontdesk/internal/service"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func TestReconcileClassification(t *testing.T) {
	engine := service.NewReconciliationEngine(d("0.50"))

	cases := []struct {
		name     string
		opening  string
		balance  string
		declared string
		variance string
		class    string
	}{
		{"exact", "100", "30", "130", "0", model.VarianceExact},
		{"within tolerance under", "100", "0", "99.60", "-0.40", model.VarianceExact},
		{"within tolerance over", "100", "0", "100.50", "0.50", model.VarianceExact},
		{"surplus", "100", "0", "101", "1", model.VarianceSurplus},
		{"shortage", "100", "0", "98", "-2", model.VarianceShortage},
		{"shortage just past tolerance", "100", "0", "99.49", "-0.51", model.VarianceShortage},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			results := engine.Reconcile(
				map[string]decimal.Decimal{"PEN": d(tc.opening)},
				map[string]decimal.Decimal{"PEN": d(tc.balance)},
				map[string]decimal.Decimal{"PEN": d(tc.declared)},
			)
			require.Len(t, results, 1)
			// Decimal equality, not string: decimal drops trailing zeros.
			assert.True(t, results[0].Variance.Equal(d(tc.variance)),
				"variance = %s, want %s", results[0].Variance, tc.variance)
			assert.Equal(t, tc.class, results[0].Classification)
		})
	}
}

func TestReconcileCurrencyUnion(t *testing.T) {
	engine := service.NewReconciliationEngine(d("0.50"))

	// USD appears only in movements, EUR only in the declaration.
	results := engine.Reconcile(
		map[string]decimal.Decimal{"PEN": d("100")},
		map[string]decimal.Decimal{"USD": d("50")},
		map[string]decimal.Decimal{"PEN": d("100"), "EUR": d("10")},
	)
	require.Len(t, results, 3)

	// Sorted by currency: EUR, PEN, USD.
	assert.Equal(t, "EUR", results[0].Currency)
	assert.Equal(t, model.VarianceSurplus, results[0].Classification)
	assert.Equal(t, "PEN", results[1].Currency)
	assert.Equal(t, model.VarianceExact, results[1].Classification)
	assert.Equal(t, "USD", results[2].Currency)
	assert.True(t, results[2].Variance.Equal(d("-50")), "variance = %s", results[2].Variance)
	assert.Equal(t, model.VarianceShortage, results[2].Classification)
}

func TestReconcileNegativeToleranceClamped(t *testing.T) {
	engine := service.NewReconciliationEngine(d("-1"))
	results := engine.Reconcile(
		map[string]decimal.Decimal{"PEN": d("100")},
		nil,
		map[string]decimal.Decimal{"PEN": d("100")},
	)
	require.Len(t, results, 1)
	assert.Equal(t, model.VarianceExact, results[0].Classification)
}
