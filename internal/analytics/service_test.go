package analytics

import (
	"context"
	"testing"
	"time"

	"github.com/Veraticus/spice-ledger/internal/common"
	"github.com/Veraticus/spice-ledger/internal/model"
	"github.com/Veraticus/spice-ledger/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decEq(t *testing.T, want string, got interface{ String() string }, msg string) {
	t.Helper()
	assert.Equal(t, testutil.Dec(want).String(), got.String(), msg)
}

func setup(t *testing.T) (*Service, *testutil.TestDB, *model.Account) {
	t.Helper()
	db := testutil.SetupTestDB(t)
	svc := NewService(db.Storage).WithClock(testutil.Clock(testutil.Day(2025, time.March, 20)))
	return svc, db, db.Account("Checking", model.AccountChecking, "1000")
}

func TestMonthlySummary(t *testing.T) {
	svc, db, checking := setup(t)
	ctx := context.Background()

	db.Income(checking.ID, testutil.Day(2025, time.March, 1), "Salary", "4000")
	db.Expense(checking.ID, testutil.Day(2025, time.March, 2), "Landlord", "Housing", "1500")
	db.Expense(checking.ID, testutil.Day(2025, time.March, 3), "Grocer", "Food", "300")
	db.Expense(checking.ID, testutil.Day(2025, time.March, 9), "Grocer", "Food", "200")
	db.Expense(checking.ID, testutil.Day(2025, time.March, 10), "", "Misc", "100")
	db.Expense(checking.ID, testutil.Day(2025, time.February, 10), "Grocer", "Food", "999")

	summary, err := svc.MonthlySummary(ctx, db.Session, 2025, time.March)
	require.NoError(t, err)

	decEq(t, "4000", summary.TotalIncome, "income")
	decEq(t, "2100", summary.TotalExpenses, "expenses")
	decEq(t, "1900", summary.Savings, "savings")
	decEq(t, "47.5", summary.SavingsRate, "savings rate")
	assert.Equal(t, 5, summary.TransactionCount)

	require.Len(t, summary.Categories, 3)
	assert.Equal(t, "Housing", summary.Categories[0].Category)
	decEq(t, "71.43", summary.Categories[0].Percentage, "housing share")
	assert.Equal(t, "Food", summary.Categories[1].Category)
	assert.Equal(t, 2, summary.Categories[1].Count)
	decEq(t, "500", summary.Categories[1].Amount, "food")

	require.Len(t, summary.TopMerchants, 3)
	assert.Equal(t, "Landlord", summary.TopMerchants[0].Merchant)
	assert.Equal(t, "Unknown", summary.TopMerchants[2].Merchant)
}

func TestMonthlySummary_NoIncome(t *testing.T) {
	summary := Summarize(2025, time.March, []model.Transaction{
		{Type: model.TypeExpense, Amount: testutil.Dec("50"), Category: "Food"},
	})
	decEq(t, "-50", summary.Savings, "savings")
	decEq(t, "0", summary.SavingsRate, "rate")
}

func TestCompareToPrevious(t *testing.T) {
	svc, db, checking := setup(t)
	ctx := context.Background()

	db.Income(checking.ID, testutil.Day(2025, time.February, 1), "Salary", "2000")
	db.Expense(checking.ID, testutil.Day(2025, time.February, 5), "Grocer", "Food", "400")
	db.Income(checking.ID, testutil.Day(2025, time.March, 1), "Salary", "2500")
	db.Expense(checking.ID, testutil.Day(2025, time.March, 5), "Grocer", "Food", "300")

	cmp, err := svc.CompareToPrevious(ctx, db.Session, 2025, time.March)
	require.NoError(t, err)
	decEq(t, "500", cmp.IncomeChange, "income change")
	decEq(t, "25", cmp.IncomeChangePct, "income pct")
	decEq(t, "-100", cmp.ExpenseChange, "expense change")
	decEq(t, "-25", cmp.ExpenseChangePct, "expense pct")
	decEq(t, "600", cmp.SavingsChange, "savings change")

	// January has nothing, so the percentages are zero.
	cmp, err = svc.CompareToPrevious(ctx, db.Session, 2025, time.February)
	require.NoError(t, err)
	decEq(t, "2000", cmp.IncomeChange, "income change")
	decEq(t, "0", cmp.IncomeChangePct, "income pct")
}

func TestCategoryAnalysis(t *testing.T) {
	svc, db, checking := setup(t)
	ctx := context.Background()

	db.Expense(checking.ID, testutil.Day(2024, time.December, 31), "Old", "Food", "1000")
	db.Expense(checking.ID, testutil.Day(2025, time.January, 4), "Grocer", "Food", "100")
	db.Expense(checking.ID, testutil.Day(2025, time.February, 4), "Grocer", "Food", "150")
	db.Expense(checking.ID, testutil.Day(2025, time.March, 4), "Grocer", "Food", "200")
	db.Expense(checking.ID, testutil.Day(2025, time.March, 8), "Bakery", "Food", "50")
	db.Expense(checking.ID, testutil.Day(2025, time.March, 8), "Cinema", "Fun", "30")

	got, err := svc.CategoryAnalysis(ctx, db.Session, "Food", 3)
	require.NoError(t, err)

	require.Len(t, got.Monthly, 3)
	assert.Equal(t, time.January, got.Monthly[0].Month)
	assert.Equal(t, time.March, got.Monthly[2].Month)
	decEq(t, "250", got.Monthly[2].Total, "march")
	assert.Equal(t, 2, got.Monthly[2].Count)

	assert.Equal(t, 4, got.Count)
	decEq(t, "500", got.Total, "total")
	decEq(t, "125", got.Average, "average")
	decEq(t, "50", got.Min, "min")
	decEq(t, "200", got.Max, "max")

	require.Len(t, got.TopMerchants, 2)
	assert.Equal(t, "Grocer", got.TopMerchants[0].Merchant)
	decEq(t, "90", got.TopMerchants[0].Percentage, "grocer share")

	// First half is January alone, second half February and March.
	assert.Equal(t, TrendIncreasing, got.Trend)
	decEq(t, "100", got.TrendChange, "trend change")

	single, err := svc.CategoryAnalysis(ctx, db.Session, "Food", 1)
	require.NoError(t, err)
	assert.Equal(t, TrendStable, single.Trend)

	_, err = svc.CategoryAnalysis(ctx, db.Session, "Food", 0)
	assert.ErrorIs(t, err, common.ErrValidation)
}

func TestSpendingTrends(t *testing.T) {
	svc, db, checking := setup(t)
	ctx := context.Background()

	// Windows end on Feb 27, Mar 6, Mar 13 and Mar 20.
	db.Expense(checking.ID, testutil.Day(2025, time.March, 20), "Cafe", "Food", "70")
	db.Expense(checking.ID, testutil.Day(2025, time.March, 14), "Cafe", "Food", "70")
	db.Expense(checking.ID, testutil.Day(2025, time.March, 13), "Grocer", "Food", "35")
	db.Expense(checking.ID, testutil.Day(2025, time.February, 21), "Grocer", "Food", "7")
	db.Expense(checking.ID, testutil.Day(2025, time.February, 20), "Grocer", "Food", "1000")
	db.Income(checking.ID, testutil.Day(2025, time.March, 18), "Refund", "500")

	trends, err := svc.SpendingTrends(ctx, db.Session, 4)
	require.NoError(t, err)
	require.Len(t, trends.Weekly, 4)

	oldest := trends.Weekly[0]
	assert.Equal(t, testutil.Day(2025, time.February, 21), oldest.Start)
	assert.Equal(t, testutil.Day(2025, time.February, 27), oldest.End)
	decEq(t, "7", oldest.Total, "oldest")
	decEq(t, "1", oldest.AvgPerDay, "oldest per day")

	newest := trends.Weekly[3]
	assert.Equal(t, testutil.Day(2025, time.March, 14), newest.Start)
	assert.Equal(t, testutil.Day(2025, time.March, 20), newest.End)
	decEq(t, "140", newest.Total, "newest")
	assert.Equal(t, 2, newest.Count)
	decEq(t, "35", trends.Weekly[2].Total, "third")

	decEq(t, "45.5", trends.AverageWeekly, "average")
	require.Len(t, trends.Unusual, 1)
	assert.Equal(t, newest.End, trends.Unusual[0].End)

	last, err := svc.LastWeekSpending(ctx, db.Session)
	require.NoError(t, err)
	decEq(t, "140", last, "last week")
}

func TestAccountSummary(t *testing.T) {
	svc, db, checking := setup(t)
	ctx := context.Background()

	savings := db.Account("Savings", model.AccountSavings, "5000")
	closed := db.Account("Old", model.AccountChecking, "99")
	closed.IsActive = false
	require.NoError(t, db.Storage.UpdateAccount(ctx, closed))

	db.Income(checking.ID, testutil.Day(2025, time.March, 1), "Salary", "2000")
	db.Expense(checking.ID, testutil.Day(2025, time.March, 2), "Grocer", "Food", "150")
	db.Expense(checking.ID, testutil.Day(2025, time.January, 2), "Grocer", "Food", "999")

	summary, err := svc.AccountSummary(ctx, db.Session)
	require.NoError(t, err)
	assert.Equal(t, 2, summary.AccountCount)
	decEq(t, "6000", summary.NetWorth, "net worth")

	require.Len(t, summary.Accounts, 2)
	assert.Equal(t, savings.ID, summary.Accounts[0].Account.ID)
	activity := summary.Accounts[1]
	decEq(t, "2000", activity.Income, "income")
	decEq(t, "150", activity.Expenses, "expenses")
	decEq(t, "1850", activity.Net, "net")
	assert.Equal(t, 2, activity.Count)
}

func TestTopCategories(t *testing.T) {
	svc, db, checking := setup(t)
	ctx := context.Background()

	db.Expense(checking.ID, testutil.Day(2025, time.March, 1), "A", "Food", "60")
	db.Expense(checking.ID, testutil.Day(2025, time.March, 2), "B", "Fun", "30")
	db.Expense(checking.ID, testutil.Day(2025, time.March, 3), "C", "Travel", "10")
	db.Expense(checking.ID, testutil.Day(2025, time.January, 3), "D", "Travel", "1000")

	top, err := svc.TopCategories(ctx, db.Session, 2, 30)
	require.NoError(t, err)
	require.Len(t, top, 2)
	assert.Equal(t, "Food", top[0].Category)
	decEq(t, "60", top[0].Percentage, "food share")
	assert.Equal(t, "Fun", top[1].Category)
}
