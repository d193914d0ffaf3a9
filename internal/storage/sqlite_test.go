package storage

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/Veraticus/spice-ledger/internal/common"
	"github.com/Veraticus/spice-ledger/internal/model"
	"github.com/Veraticus/spice-ledger/internal/service"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Helper function to create test storage.
func createTestStorage(t *testing.T) *SQLiteStorage {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")

	store, err := NewSQLiteStorage(dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	require.NoError(t, store.Migrate(context.Background()))
	return store
}

func createTestUser(t *testing.T, store service.Store, username string) *model.User {
	t.Helper()
	user := &model.User{Username: username, IsActive: true}
	require.NoError(t, store.CreateUser(context.Background(), user))
	return user
}

func createTestAccount(t *testing.T, store service.Store, userID int64, name string, balance string) *model.Account {
	t.Helper()
	account := &model.Account{
		UserID:   userID,
		Name:     name,
		Type:     model.AccountChecking,
		Balance:  decimal.RequireFromString(balance),
		IsActive: true,
	}
	require.NoError(t, store.CreateAccount(context.Background(), account))
	return account
}

func createTestTransaction(t *testing.T, store service.Store, userID, accountID int64, date time.Time, merchant, category, amount string) *model.Transaction {
	t.Helper()
	txn := &model.Transaction{
		UserID:    userID,
		AccountID: accountID,
		Date:      date,
		Amount:    decimal.RequireFromString(amount),
		Merchant:  merchant,
		Category:  category,
		Type:      model.TypeExpense,
	}
	require.NoError(t, store.CreateTransaction(context.Background(), txn))
	return txn
}

func decimalPtr(s string) *decimal.Decimal {
	d := decimal.RequireFromString(s)
	return &d
}

func TestNewSQLiteStorageInMemory(t *testing.T) {
	store, err := NewSQLiteStorage(":memory:")
	require.NoError(t, err)
	defer func() { _ = store.Close() }()

	ctx := context.Background()
	require.NoError(t, store.Migrate(ctx))

	version, err := store.SchemaVersion(ctx)
	require.NoError(t, err)
	assert.Equal(t, ExpectedSchemaVersion, version)
	assert.Equal(t, ":memory:", store.Path())
}

func TestNewSQLiteStorageRejectsEmptyPath(t *testing.T) {
	_, err := NewSQLiteStorage("  ")
	assert.ErrorIs(t, err, ErrEmptyString)
}

func TestUsers(t *testing.T) {
	store := createTestStorage(t)
	ctx := context.Background()

	alice := &model.User{Username: "alice", Email: "alice@example.com", IsActive: true}
	require.NoError(t, store.CreateUser(ctx, alice))
	assert.Positive(t, alice.ID)

	t.Run("duplicate username", func(t *testing.T) {
		err := store.CreateUser(ctx, &model.User{Username: "alice", IsActive: true})
		assert.ErrorIs(t, err, common.ErrDuplicateEntry)
		assert.ErrorIs(t, err, common.ErrValidation)
	})

	t.Run("users without email do not collide", func(t *testing.T) {
		require.NoError(t, store.CreateUser(ctx, &model.User{Username: "bob", IsActive: true}))
		require.NoError(t, store.CreateUser(ctx, &model.User{Username: "carol", IsActive: false}))
	})

	t.Run("lookups", func(t *testing.T) {
		got, err := store.GetUserByUsername(ctx, "alice")
		require.NoError(t, err)
		assert.Equal(t, alice.ID, got.ID)
		assert.Equal(t, "alice@example.com", got.Email)

		got, err = store.GetUserByEmail(ctx, "alice@example.com")
		require.NoError(t, err)
		assert.Equal(t, "alice", got.Username)

		_, err = store.GetUserByID(ctx, 9999)
		assert.ErrorIs(t, err, common.ErrNotFound)
	})

	t.Run("list hides inactive users", func(t *testing.T) {
		active, err := store.ListUsers(ctx, false)
		require.NoError(t, err)
		assert.Len(t, active, 2)

		all, err := store.ListUsers(ctx, true)
		require.NoError(t, err)
		assert.Len(t, all, 3)
	})

	t.Run("password and last login", func(t *testing.T) {
		require.NoError(t, store.SetUserPassword(ctx, alice.ID, "hash", true))
		require.NoError(t, store.TouchLastLogin(ctx, alice.ID, time.Now()))

		got, err := store.GetUserByID(ctx, alice.ID)
		require.NoError(t, err)
		assert.Equal(t, "hash", got.PasswordHash)
		assert.True(t, got.RequirePassword)
		require.NotNil(t, got.LastLogin)
	})
}

func TestSessions(t *testing.T) {
	store := createTestStorage(t)
	ctx := context.Background()
	user := createTestUser(t, store, "alice")
	now := time.Now()

	live := &model.Session{Token: "live", UserID: user.ID, ExpiresAt: now.Add(time.Hour)}
	stale := &model.Session{Token: "stale", UserID: user.ID, ExpiresAt: now.Add(-time.Hour)}
	require.NoError(t, store.CreateSession(ctx, live))
	require.NoError(t, store.CreateSession(ctx, stale))

	got, err := store.GetSession(ctx, "live")
	require.NoError(t, err)
	assert.Equal(t, user.ID, got.UserID)
	assert.Equal(t, "alice", got.Username)

	removed, err := store.DeleteExpiredSessions(ctx, now)
	require.NoError(t, err)
	assert.Equal(t, int64(1), removed)

	_, err = store.GetSession(ctx, "stale")
	assert.ErrorIs(t, err, common.ErrNotFound)

	require.NoError(t, store.DeleteSession(ctx, "live"))
	_, err = store.GetSession(ctx, "live")
	assert.ErrorIs(t, err, common.ErrNotFound)
}

func TestAccounts(t *testing.T) {
	store := createTestStorage(t)
	ctx := context.Background()
	alice := createTestUser(t, store, "alice")
	bob := createTestUser(t, store, "bob")

	checking := createTestAccount(t, store, alice.ID, "Checking", "1000")
	createTestAccount(t, store, bob.ID, "Checking", "5")

	t.Run("duplicate name per user", func(t *testing.T) {
		err := store.CreateAccount(ctx, &model.Account{UserID: alice.ID, Name: "Checking", Type: model.AccountSavings})
		assert.ErrorIs(t, err, common.ErrDuplicateEntry)
	})

	t.Run("scoped to owner", func(t *testing.T) {
		_, err := store.GetAccount(ctx, bob.ID, checking.ID)
		assert.ErrorIs(t, err, common.ErrNotFound)
	})

	t.Run("balance adjustments keep exact decimals", func(t *testing.T) {
		require.NoError(t, store.AdjustAccountBalance(ctx, alice.ID, checking.ID, decimal.RequireFromString("-0.10")))
		require.NoError(t, store.AdjustAccountBalance(ctx, alice.ID, checking.ID, decimal.RequireFromString("-0.20")))

		got, err := store.GetAccount(ctx, alice.ID, checking.ID)
		require.NoError(t, err)
		assert.Equal(t, "999.7", got.Balance.String())
	})

	t.Run("update and list", func(t *testing.T) {
		checking.IsActive = false
		checking.Institution = "Credit Union"
		require.NoError(t, store.UpdateAccount(ctx, checking))

		active, err := store.ListAccounts(ctx, alice.ID, true)
		require.NoError(t, err)
		assert.Empty(t, active)

		all, err := store.ListAccounts(ctx, alice.ID, false)
		require.NoError(t, err)
		require.Len(t, all, 1)
		assert.Equal(t, "Credit Union", all[0].Institution)
	})

	t.Run("missing account", func(t *testing.T) {
		err := store.SetAccountBalance(ctx, alice.ID, 9999, decimal.Zero)
		assert.ErrorIs(t, err, common.ErrNotFound)
	})
}

func TestBeginTxRollback(t *testing.T) {
	store := createTestStorage(t)
	ctx := context.Background()
	user := createTestUser(t, store, "alice")
	account := createTestAccount(t, store, user.ID, "Checking", "100")

	err := service.RunInTx(ctx, store, func(tx service.Store) error {
		if err := tx.AdjustAccountBalance(ctx, user.ID, account.ID, decimal.NewFromInt(-50)); err != nil {
			return err
		}
		return common.ErrInsufficientFunds
	})
	assert.ErrorIs(t, err, common.ErrInsufficientFunds)

	got, err := store.GetAccount(ctx, user.ID, account.ID)
	require.NoError(t, err)
	assert.Equal(t, "100", got.Balance.String())

	require.NoError(t, service.RunInTx(ctx, store, func(tx service.Store) error {
		return tx.AdjustAccountBalance(ctx, user.ID, account.ID, decimal.NewFromInt(-50))
	}))
	got, err = store.GetAccount(ctx, user.ID, account.ID)
	require.NoError(t, err)
	assert.Equal(t, "50", got.Balance.String())
}

func TestBudgets(t *testing.T) {
	store := createTestStorage(t)
	ctx := context.Background()
	user := createTestUser(t, store, "alice")

	budget := &model.Budget{UserID: user.ID, Category: "Food", MonthlyLimit: decimal.NewFromInt(300), AlertThreshold: model.DefaultAlertThreshold}
	require.NoError(t, store.CreateBudget(ctx, budget))

	err := store.CreateBudget(ctx, &model.Budget{UserID: user.ID, Category: "Food", MonthlyLimit: decimal.NewFromInt(1), AlertThreshold: model.DefaultAlertThreshold})
	assert.ErrorIs(t, err, common.ErrDuplicateEntry)

	got, err := store.GetBudgetByCategory(ctx, user.ID, "Food")
	require.NoError(t, err)
	assert.True(t, got.AlertThreshold.Equal(model.DefaultAlertThreshold))

	got.MonthlyLimit = decimal.NewFromInt(450)
	require.NoError(t, store.UpdateBudget(ctx, got))

	list, err := store.ListBudgets(ctx, user.ID)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "450", list[0].MonthlyLimit.String())

	require.NoError(t, store.DeleteBudget(ctx, user.ID, budget.ID))
	_, err = store.GetBudget(ctx, user.ID, budget.ID)
	assert.ErrorIs(t, err, common.ErrNotFound)
}

func TestRecurringCharges(t *testing.T) {
	store := createTestStorage(t)
	ctx := context.Background()
	user := createTestUser(t, store, "alice")

	day := 15
	next := model.Date(2025, time.February, 15)
	netflix := &model.RecurringCharge{
		UserID:           user.ID,
		Merchant:         "Netflix",
		Category:         "Entertainment - Streaming",
		TypicalAmount:    decimal.RequireFromString("15.99"),
		Frequency:        model.FrequencyMonthly,
		DayOfPeriod:      &day,
		FirstSeen:        model.Date(2024, time.September, 15),
		LastSeen:         model.Date(2025, time.January, 15),
		NextExpectedDate: &next,
		OccurrenceCount:  5,
		Confidence:       0.9,
	}
	require.NoError(t, store.CreateRecurringCharge(ctx, netflix))
	assert.Equal(t, model.RecurringActive, netflix.Status)

	later := model.Date(2025, time.March, 30)
	gym := &model.RecurringCharge{
		UserID: user.ID, Merchant: "Gym", Category: "Healthcare - Fitness",
		TypicalAmount: decimal.NewFromInt(40), Frequency: model.FrequencyMonthly,
		FirstSeen: later, LastSeen: later, NextExpectedDate: &later, OccurrenceCount: 1, Confidence: 1,
	}
	require.NoError(t, store.CreateRecurringCharge(ctx, gym))

	t.Run("round trip", func(t *testing.T) {
		got, err := store.GetRecurringCharge(ctx, user.ID, netflix.ID)
		require.NoError(t, err)
		assert.Equal(t, "15.99", got.TypicalAmount.String())
		require.NotNil(t, got.DayOfPeriod)
		assert.Equal(t, 15, *got.DayOfPeriod)
		require.NotNil(t, got.NextExpectedDate)
		assert.Equal(t, next, *got.NextExpectedDate)
		assert.Equal(t, model.Date(2024, time.September, 15), got.FirstSeen)
	})

	t.Run("find by merchant ignores case", func(t *testing.T) {
		got, err := store.FindRecurringChargeByMerchant(ctx, user.ID, "NETFLIX")
		require.NoError(t, err)
		assert.Equal(t, netflix.ID, got.ID)
	})

	t.Run("upcoming includes overdue and respects the horizon", func(t *testing.T) {
		upcoming, err := store.ListUpcomingCharges(ctx, user.ID, model.Date(2025, time.February, 20))
		require.NoError(t, err)
		require.Len(t, upcoming, 1)
		assert.Equal(t, "Netflix", upcoming[0].Merchant)

		upcoming, err = store.ListUpcomingCharges(ctx, user.ID, model.Date(2025, time.April, 1))
		require.NoError(t, err)
		assert.Len(t, upcoming, 2)
	})

	t.Run("paused charges are not upcoming", func(t *testing.T) {
		gym.Status = model.RecurringPaused
		require.NoError(t, store.UpdateRecurringCharge(ctx, gym))

		upcoming, err := store.ListUpcomingCharges(ctx, user.ID, model.Date(2025, time.April, 1))
		require.NoError(t, err)
		assert.Len(t, upcoming, 1)

		paused := model.RecurringPaused
		list, err := store.ListRecurringCharges(ctx, user.ID, &paused)
		require.NoError(t, err)
		require.Len(t, list, 1)
		assert.Equal(t, "Gym", list[0].Merchant)
	})

	t.Run("delete", func(t *testing.T) {
		require.NoError(t, store.DeleteRecurringCharge(ctx, user.ID, gym.ID))
		err := store.DeleteRecurringCharge(ctx, user.ID, gym.ID)
		assert.ErrorIs(t, err, common.ErrNotFound)
	})
}

func TestGoals(t *testing.T) {
	store := createTestStorage(t)
	ctx := context.Background()
	user := createTestUser(t, store, "alice")

	deadline := model.Date(2030, time.January, 1)
	goal := &model.Goal{UserID: user.ID, Name: "Vacation", TargetAmount: decimal.NewFromInt(2000), Deadline: &deadline, Priority: 5}
	require.NoError(t, store.CreateGoal(ctx, goal))

	err := store.CreateGoal(ctx, &model.Goal{UserID: user.ID, Name: "Vacation", TargetAmount: decimal.NewFromInt(1), Priority: 5})
	assert.ErrorIs(t, err, common.ErrDuplicateEntry)

	require.NoError(t, store.AddContribution(ctx, &model.Contribution{GoalID: goal.ID, Amount: decimal.NewFromInt(250), Date: model.Date(2025, time.May, 1), Note: "bonus"}))
	goal.CurrentAmount = decimal.NewFromInt(250)
	require.NoError(t, store.UpdateGoal(ctx, goal))

	got, err := store.GetGoalByName(ctx, user.ID, "Vacation")
	require.NoError(t, err)
	assert.Equal(t, "250", got.CurrentAmount.String())
	require.NotNil(t, got.Deadline)
	assert.Equal(t, deadline, *got.Deadline)

	contributions, err := store.ListContributions(ctx, goal.ID)
	require.NoError(t, err)
	require.Len(t, contributions, 1)
	assert.Equal(t, "bonus", contributions[0].Note)

	active := model.GoalActive
	goals, err := store.ListGoals(ctx, user.ID, &active)
	require.NoError(t, err)
	assert.Len(t, goals, 1)

	require.NoError(t, store.DeleteGoal(ctx, user.ID, goal.ID))
	contributions, err = store.ListContributions(ctx, goal.ID)
	require.NoError(t, err)
	assert.Empty(t, contributions)
}

func TestPurchases(t *testing.T) {
	store := createTestStorage(t)
	ctx := context.Background()
	user := createTestUser(t, store, "alice")

	past := model.Date(2020, time.January, 1)
	items := []*model.Purchase{
		{UserID: user.ID, Name: "Laptop", EstimatedCost: decimal.NewFromInt(1500), Priority: 2},
		{UserID: user.ID, Name: "Headphones", EstimatedCost: decimal.NewFromInt(200), Priority: 4, Deadline: &past},
		{UserID: user.ID, Name: "Tires", EstimatedCost: decimal.NewFromInt(600), Priority: 1},
	}
	for _, p := range items {
		require.NoError(t, store.CreatePurchase(ctx, p))
	}

	byPriority, err := store.ListPurchases(ctx, user.ID, model.PurchaseFilter{Status: model.PurchasePlanned})
	require.NoError(t, err)
	require.Len(t, byPriority, 3)
	assert.Equal(t, []string{"Tires", "Laptop", "Headphones"}, purchaseNames(byPriority))

	byCost, err := store.ListPurchases(ctx, user.ID, model.PurchaseFilter{SortBy: model.SortByCost})
	require.NoError(t, err)
	assert.Equal(t, []string{"Laptop", "Tires", "Headphones"}, purchaseNames(byCost))

	overdue, err := store.ListOverduePurchases(ctx, user.ID, model.Date(2025, time.January, 1))
	require.NoError(t, err)
	require.Len(t, overdue, 1)
	assert.Equal(t, "Headphones", overdue[0].Name)

	laptop := items[0]
	bought := model.Date(2025, time.March, 3)
	laptop.Status = model.PurchasePurchased
	laptop.ActualCost = decimalPtr("1399.99")
	laptop.PurchasedAt = &bought
	require.NoError(t, store.UpdatePurchase(ctx, laptop))

	got, err := store.GetPurchase(ctx, user.ID, laptop.ID)
	require.NoError(t, err)
	assert.Equal(t, model.PurchasePurchased, got.Status)
	require.NotNil(t, got.ActualCost)
	assert.Equal(t, "1399.99", got.ActualCost.String())
	assert.Equal(t, bought, *got.PurchasedAt)
}

func purchaseNames(purchases []model.Purchase) []string {
	names := make([]string, len(purchases))
	for i, p := range purchases {
		names[i] = p.Name
	}
	return names
}

func TestCategoryRules(t *testing.T) {
	store := createTestStorage(t)
	ctx := context.Background()
	user := createTestUser(t, store, "alice")

	require.NoError(t, store.UpsertCategoryRule(ctx, &model.CategoryRule{UserID: user.ID, Merchant: "Starbucks", Category: "Coffee", Confidence: 0.9, Source: model.RuleSourceAI}))
	require.NoError(t, store.UpsertCategoryRule(ctx, &model.CategoryRule{UserID: user.ID, Merchant: "starbucks", Category: "Food & Dining - Restaurants", Confidence: 1}))

	rule, err := store.GetCategoryRule(ctx, user.ID, "STARBUCKS")
	require.NoError(t, err)
	assert.Equal(t, "Food & Dining - Restaurants", rule.Category)
	assert.Equal(t, model.RuleSourceUser, rule.Source)

	require.NoError(t, store.RecordRuleUse(ctx, user.ID, "Starbucks", time.Now()))
	rules, err := store.ListCategoryRules(ctx, user.ID)
	require.NoError(t, err)
	require.Len(t, rules, 1)
	assert.Equal(t, 1, rules[0].UseCount)
	assert.NotNil(t, rules[0].LastUsed)

	require.NoError(t, store.DeleteCategoryRule(ctx, user.ID, "Starbucks"))
	_, err = store.GetCategoryRule(ctx, user.ID, "Starbucks")
	assert.ErrorIs(t, err, common.ErrNotFound)
}
