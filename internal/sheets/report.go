package sheets

import (
	"fmt"
	"slices"
	"time"

	"github.com/Veraticus/spice-ledger/internal/analytics"
	"github.com/Veraticus/spice-ledger/internal/model"
)

// transactionColumns heads the transaction section of the report.
var transactionColumns = []any{"Date", "Merchant", "Category", "Type", "Amount", "Description", "Notes"}

// layout records where each report section starts, zero-based.
type layout struct {
	categoryHeader    int
	transactionHeader int
	rows              int
}

// MonthlyValues lays out a month as sheet rows: a title, the totals, the
// category breakdown and every transaction, newest first. Amounts are plain
// numbers so the sheet can format and sum them.
func MonthlyValues(summary *analytics.MonthlySummary, transactions []model.Transaction) [][]any {
	values, _ := monthlyValues(summary, transactions)
	return values
}

func monthlyValues(summary *analytics.MonthlySummary, transactions []model.Transaction) ([][]any, layout) {
	values := make([][]any, 0, 12+len(summary.Categories)+len(transactions))
	period := time.Date(summary.Year, summary.Month, 1, 0, 0, 0, 0, time.UTC).Format("January 2006")

	values = append(values,
		[]any{"Monthly Report", period},
		[]any{},
		[]any{"Summary"},
		[]any{"Income", summary.TotalIncome.InexactFloat64()},
		[]any{"Expenses", summary.TotalExpenses.InexactFloat64()},
		[]any{"Savings", summary.Savings.InexactFloat64()},
		[]any{"Savings Rate", fmt.Sprintf("%s%%", summary.SavingsRate.StringFixed(1))},
		[]any{"Transactions", summary.TransactionCount},
		[]any{},
		[]any{"Category", "Count", "Amount", "Share"},
	)
	var l layout
	l.categoryHeader = len(values) - 1
	for _, c := range summary.Categories {
		values = append(values, []any{c.Category, c.Count, c.Amount.InexactFloat64(), c.Percentage.StringFixed(1) + "%"})
	}

	values = append(values, []any{}, transactionColumns)
	l.transactionHeader = len(values) - 1

	sorted := slices.Clone(transactions)
	slices.SortStableFunc(sorted, func(a, b model.Transaction) int {
		return b.Date.Compare(a.Date)
	})
	for _, t := range sorted {
		amount := t.Amount
		if t.Type == model.TypeExpense {
			amount = amount.Neg()
		}
		values = append(values, []any{
			model.FormatDate(t.Date),
			t.Merchant,
			t.Category,
			string(t.Type),
			amount.InexactFloat64(),
			t.Description,
			t.Notes,
		})
	}
	l.rows = len(values)
	return values, l
}
