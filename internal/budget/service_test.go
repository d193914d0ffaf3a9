package budget

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

func TestService_Create(t *testing.T) {
	db := testutil.SetupTestDB(t)
	svc := NewService(db.Storage)
	ctx := context.Background()

	b, err := svc.Create(ctx, db.Session, " Food ", testutil.Dec("300"), nil)
	require.NoError(t, err)
	assert.Equal(t, "Food", b.Category)
	assert.True(t, b.AlertThreshold.Equal(model.DefaultAlertThreshold))

	_, err = svc.Create(ctx, db.Session, "Food", testutil.Dec("100"), nil)
	assert.ErrorIs(t, err, common.ErrValidation, "duplicate category")

	tests := []struct {
		name      string
		category  string
		limit     string
		threshold string
	}{
		{name: "negative limit", category: "Rent", limit: "-1", threshold: "0.9"},
		{name: "zero threshold", category: "Rent", limit: "100", threshold: "0"},
		{name: "threshold above one", category: "Rent", limit: "100", threshold: "1.5"},
		{name: "empty category", category: "  ", limit: "100", threshold: "0.9"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			threshold := testutil.Dec(tt.threshold)
			_, err := svc.Create(ctx, db.Session, tt.category, testutil.Dec(tt.limit), &threshold)
			assert.ErrorIs(t, err, common.ErrValidation)
		})
	}

	one := testutil.Dec("1")
	_, err = svc.Create(ctx, db.Session, "Travel", testutil.Dec("0"), &one)
	require.NoError(t, err, "zero limit and full threshold are allowed")
}

func TestService_StatusAll(t *testing.T) {
	db := testutil.SetupTestDB(t)
	svc := NewService(db.Storage).WithClock(testutil.Clock(testutil.Day(2025, time.March, 20)))
	ctx := context.Background()
	checking := db.Account("Checking", model.AccountChecking, "1000")

	db.Budget("Food", "300")
	db.Budget("Transport", "100")

	db.Expense(checking.ID, testutil.Day(2025, time.March, 2), "Grocer", "Food", "200")
	db.Expense(checking.ID, testutil.Day(2025, time.March, 31), "Cafe", "Food", "80")
	db.Expense(checking.ID, testutil.Day(2025, time.February, 28), "Grocer", "Food", "999")
	db.Expense(checking.ID, testutil.Day(2025, time.April, 1), "Grocer", "Food", "999")
	db.Expense(checking.ID, testutil.Day(2025, time.March, 5), "Metro", "Transport", "20")
	db.Income(checking.ID, testutil.Day(2025, time.March, 1), "Salary", "3000")

	statuses, err := svc.CurrentStatus(ctx, db.Session)
	require.NoError(t, err)
	require.Len(t, statuses, 2)

	food := statuses[0]
	assert.Equal(t, "Food", food.Budget.Category)
	assert.True(t, food.Spent.Equal(testutil.Dec("280")))
	assert.True(t, food.Remaining.Equal(testutil.Dec("20")))
	assert.True(t, food.Percentage.Equal(testutil.Dec("93.33")))
	assert.False(t, food.IsOver)
	assert.True(t, food.ShouldAlert)

	transport := statuses[1]
	assert.True(t, transport.Spent.Equal(testutil.Dec("20")))
	assert.False(t, transport.ShouldAlert)

	one, err := svc.StatusFor(ctx, db.Session, food.Budget.ID, 2025, time.February)
	require.NoError(t, err)
	assert.True(t, one.Spent.Equal(testutil.Dec("999")))
	assert.True(t, one.IsOver)
}

func TestService_UpdateAndDelete(t *testing.T) {
	db := testutil.SetupTestDB(t)
	svc := NewService(db.Storage)
	ctx := context.Background()

	b := db.Budget("Food", "300")

	limit := testutil.Dec("450")
	updated, err := svc.Update(ctx, db.Session, b.ID, model.BudgetUpdate{MonthlyLimit: &limit})
	require.NoError(t, err)
	assert.True(t, updated.MonthlyLimit.Equal(limit))
	assert.True(t, updated.AlertThreshold.Equal(model.DefaultAlertThreshold))

	bad := testutil.Dec("2")
	_, err = svc.Update(ctx, db.Session, b.ID, model.BudgetUpdate{AlertThreshold: &bad})
	assert.ErrorIs(t, err, common.ErrValidation)

	stored, err := svc.GetByCategory(ctx, db.Session, "Food")
	require.NoError(t, err)
	assert.True(t, stored.MonthlyLimit.Equal(limit))

	require.NoError(t, svc.Delete(ctx, db.Session, b.ID))
	_, err = svc.Get(ctx, db.Session, b.ID)
	assert.ErrorIs(t, err, common.ErrNotFound)
	assert.ErrorIs(t, svc.Delete(ctx, db.Session, b.ID), common.ErrNotFound)

	statuses, err := svc.StatusAll(ctx, db.Session, 2025, time.March)
	require.NoError(t, err)
	assert.Empty(t, statuses)
}

func TestService_IsolatesUsers(t *testing.T) {
	db := testutil.SetupTestDB(t)
	svc := NewService(db.Storage)
	ctx := context.Background()

	b := db.Budget("Food", "300")
	other := db.User("other")

	_, err := svc.Get(ctx, other, b.ID)
	assert.ErrorIs(t, err, common.ErrNotFound)

	list, err := svc.List(ctx, other)
	require.NoError(t, err)
	assert.Empty(t, list)
}
