package ledger

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

func TestService_Categories(t *testing.T) {
	svc, db := newService(t)
	ctx := context.Background()
	checking := db.Account("Checking", model.AccountChecking, "0")

	db.Expense(checking.ID, testutil.Day(2025, time.March, 1), "Cafe", "Coffee", "4")
	db.Expense(checking.ID, testutil.Day(2025, time.March, 2), "Cafe", "Coffee", "5")
	db.Expense(checking.ID, testutil.Day(2025, time.March, 3), "Deli", "Lunch", "11")
	db.Expense(checking.ID, testutil.Day(2025, time.March, 4), "Grocer", "Groceries", "70")
	db.Budget("Coffee", "30")
	require.NoError(t, svc.SetCategoryRule(ctx, db.Session, "Cafe", "Coffee"))

	usage, err := svc.ListCategories(ctx, db.Session, true)
	require.NoError(t, err)
	require.Len(t, usage, 3)
	assert.Equal(t, "Coffee", usage[0].Name)
	assert.Equal(t, 2, usage[0].Count)
	assert.True(t, usage[0].Total.Equal(testutil.Dec("9")))

	names, err := svc.ListCategories(ctx, db.Session, false)
	require.NoError(t, err)
	assert.Zero(t, names[0].Count)

	changed, err := svc.RenameCategory(ctx, db.Session, "Coffee", "Cafes")
	require.NoError(t, err)
	assert.Equal(t, int64(2), changed)

	rule, err := svc.CategoryRule(ctx, db.Session, "Cafe")
	require.NoError(t, err)
	assert.Equal(t, "Cafes", rule.Category, "rules follow the rename")
	_, err = db.Storage.GetBudgetByCategory(ctx, db.Session.UserID, "Cafes")
	require.NoError(t, err, "budgets follow the rename")

	_, err = svc.RenameCategory(ctx, db.Session, "Coffee", "Anything")
	assert.ErrorIs(t, err, common.ErrNotFound)

	_, err = svc.MergeCategories(ctx, db.Session, "Lunch", "Dining")
	assert.ErrorIs(t, err, common.ErrNotFound, "merge target must exist")

	changed, err = svc.MergeCategories(ctx, db.Session, "Lunch", "Groceries")
	require.NoError(t, err)
	assert.Equal(t, int64(1), changed)

	usage, err = svc.ListCategories(ctx, db.Session, true)
	require.NoError(t, err)
	require.Len(t, usage, 2)

	_, err = svc.RenameCategory(ctx, db.Session, "Cafes", "Cafes")
	assert.ErrorIs(t, err, common.ErrValidation)
}

func TestService_Rules(t *testing.T) {
	svc, db := newService(t)
	ctx := context.Background()

	require.NoError(t, svc.SetCategoryRule(ctx, db.Session, "Shell", "Gas"))
	require.NoError(t, svc.SetCategoryRule(ctx, db.Session, "Shell", "Transportation - Gas"))
	assert.ErrorIs(t, svc.SetCategoryRule(ctx, db.Session, "", "Gas"), common.ErrValidation)

	rules, err := svc.ListRules(ctx, db.Session)
	require.NoError(t, err)
	require.Len(t, rules, 1)
	assert.Equal(t, "Transportation - Gas", rules[0].Category)
	assert.Equal(t, model.RuleSourceUser, rules[0].Source)

	require.NoError(t, svc.DeleteRule(ctx, db.Session, "Shell"))
	_, err = svc.CategoryRule(ctx, db.Session, "Shell")
	assert.ErrorIs(t, err, common.ErrNotFound)
}

func TestService_Tags(t *testing.T) {
	svc, db := newService(t)
	ctx := context.Background()
	checking := db.Account("Checking", model.AccountChecking, "0")
	dinner := db.Expense(checking.ID, testutil.Day(2025, time.March, 1), "Bistro", "Dining", "80")
	flight := db.Expense(checking.ID, testutil.Day(2025, time.March, 2), "Airline", "Travel", "320")

	_, err := svc.CreateTag(ctx, db.Session, "vacation", "Spring trip", "blue")
	require.NoError(t, err)
	_, err = svc.CreateTag(ctx, db.Session, "vacation", "", "")
	assert.ErrorIs(t, err, common.ErrValidation)
	_, err = svc.CreateTag(ctx, db.Session, "a,b", "", "")
	assert.ErrorIs(t, err, common.ErrValidation)

	require.NoError(t, svc.TagTransaction(ctx, db.Session, dinner.ID, "vacation", "date-night"))
	require.NoError(t, svc.TagTransaction(ctx, db.Session, flight.ID, "vacation"))
	require.NoError(t, svc.TagTransaction(ctx, db.Session, flight.ID, "vacation"), "tagging twice is harmless")

	tags, err := svc.ListTags(ctx, db.Session)
	require.NoError(t, err)
	assert.Len(t, tags, 2, "date-night was created on demand")

	onDinner, err := svc.TransactionTags(ctx, db.Session, dinner.ID)
	require.NoError(t, err)
	assert.Len(t, onDinner, 2)

	tagged, err := svc.TransactionsByTag(ctx, db.Session, "vacation", 0)
	require.NoError(t, err)
	assert.Len(t, tagged, 2)

	stats, err := svc.TagStats(ctx, db.Session)
	require.NoError(t, err)
	require.NotEmpty(t, stats)
	assert.Equal(t, "vacation", stats[0].Name)
	assert.Equal(t, 2, stats[0].Count)
	assert.True(t, stats[0].Total.Equal(testutil.Dec("400")))

	require.NoError(t, svc.UntagTransaction(ctx, db.Session, dinner.ID, "date-night"))
	onDinner, err = svc.TransactionTags(ctx, db.Session, dinner.ID)
	require.NoError(t, err)
	assert.Len(t, onDinner, 1)

	require.NoError(t, svc.DeleteTag(ctx, db.Session, "vacation"))
	tagged, err = svc.TransactionsByTag(ctx, db.Session, "vacation", 0)
	require.NoError(t, err)
	assert.Empty(t, tagged)

	err = svc.TagTransaction(ctx, db.User("other"), dinner.ID, "mine")
	assert.ErrorIs(t, err, common.ErrNotFound)
}
