// Package budget tracks monthly category limits and how spending measures up.
package budget

import (
	"github.com/Veraticus/spice-ledger/internal/model"
	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// Status measures one month of expenses against b. Only expense transactions
// in the budget's category count. A zero limit yields a zero percentage.
func Status(b model.Budget, transactions []model.Transaction) model.BudgetStatus {
	spent := decimal.Zero
	for _, txn := range transactions {
		if txn.Type == model.TypeExpense && txn.Category == b.Category {
			spent = spent.Add(txn.Amount)
		}
	}

	threshold := b.AlertThreshold
	if threshold.IsZero() {
		threshold = model.DefaultAlertThreshold
	}

	// Alerts compare the exact ratio; only the reported percentage is rounded.
	exact := decimal.Zero
	if b.MonthlyLimit.IsPositive() {
		exact = spent.Mul(hundred).Div(b.MonthlyLimit)
	}

	return model.BudgetStatus{
		Budget:      b,
		Spent:       spent,
		Limit:       b.MonthlyLimit,
		Remaining:   b.MonthlyLimit.Sub(spent),
		Percentage:  exact.Round(2),
		IsOver:      spent.GreaterThan(b.MonthlyLimit),
		ShouldAlert: exact.GreaterThanOrEqual(threshold.Mul(hundred)),
	}
}
