// Package testutil provides test fixtures backed by a real in-memory database.
package testutil

import (
	"context"
	"testing"
	"time"

	"github.com/Veraticus/spice-ledger/internal/model"
	"github.com/Veraticus/spice-ledger/internal/service"
	"github.com/Veraticus/spice-ledger/internal/storage"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

// TestDB represents a migrated test database with a default user.
type TestDB struct {
	Storage service.Storage
	Session model.Session
	t       *testing.T
}

// SetupTestDB creates a new in-memory test database, migrates it and signs in a
// default user named "tester". Cleanup is registered on t.
//
// Example:
//
//	db := testutil.SetupTestDB(t)
//	checking := db.Account("Checking", model.AccountChecking, "1000")
//	db.Expense(checking.ID, testutil.Day(2025, 1, 15), "Netflix", "Streaming", "15.99")
func SetupTestDB(t *testing.T) *TestDB {
	t.Helper()

	store, err := storage.NewSQLiteStorage(":memory:")
	require.NoError(t, err, "failed to create test database")
	t.Cleanup(func() { _ = store.Close() })

	require.NoError(t, store.Migrate(context.Background()), "failed to run migrations")

	db := &TestDB{Storage: store, t: t}
	db.Session = db.User("tester")
	return db
}

// User creates an active, passwordless user and returns a session for it.
func (db *TestDB) User(username string) model.Session {
	db.t.Helper()

	user := &model.User{Username: username, DisplayName: username, IsActive: true}
	require.NoError(db.t, db.Storage.CreateUser(context.Background(), user))
	return model.Session{UserID: user.ID, Username: user.Username}
}

// Account creates an account for the default user.
func (db *TestDB) Account(name string, accountType model.AccountType, balance string) *model.Account {
	db.t.Helper()
	return db.AccountFor(db.Session, name, accountType, balance)
}

// AccountFor creates an account for any user.
func (db *TestDB) AccountFor(session model.Session, name string, accountType model.AccountType, balance string) *model.Account {
	db.t.Helper()

	account := &model.Account{
		UserID:   session.UserID,
		Name:     name,
		Type:     accountType,
		Balance:  decimal.RequireFromString(balance),
		Currency: "USD",
		IsActive: true,
	}
	require.NoError(db.t, db.Storage.CreateAccount(context.Background(), account))
	return account
}

// Expense records an expense for the default user without touching the balance.
func (db *TestDB) Expense(accountID int64, date time.Time, merchant, category, amount string) *model.Transaction {
	db.t.Helper()
	return db.insert(accountID, date, merchant, category, amount, model.TypeExpense)
}

// Income records income for the default user without touching the balance.
func (db *TestDB) Income(accountID int64, date time.Time, description, amount string) *model.Transaction {
	db.t.Helper()
	txn := db.insert(accountID, date, "", "Income", amount, model.TypeIncome)
	txn.Description = description
	require.NoError(db.t, db.Storage.UpdateTransaction(context.Background(), txn))
	return txn
}

func (db *TestDB) insert(accountID int64, date time.Time, merchant, category, amount string, kind model.TransactionType) *model.Transaction {
	db.t.Helper()

	txn := &model.Transaction{
		UserID:    db.Session.UserID,
		AccountID: accountID,
		Date:      model.Day(date),
		Amount:    decimal.RequireFromString(amount),
		Merchant:  merchant,
		Category:  category,
		Type:      kind,
	}
	require.NoError(db.t, db.Storage.CreateTransaction(context.Background(), txn))
	return txn
}

// Budget creates a budget for the default user with the default alert threshold.
func (db *TestDB) Budget(category, limit string) *model.Budget {
	db.t.Helper()

	budget := &model.Budget{
		UserID:         db.Session.UserID,
		Category:       category,
		MonthlyLimit:   decimal.RequireFromString(limit),
		AlertThreshold: model.DefaultAlertThreshold,
	}
	require.NoError(db.t, db.Storage.CreateBudget(context.Background(), budget))
	return budget
}

// Balance reads an account's current balance.
func (db *TestDB) Balance(accountID int64) decimal.Decimal {
	db.t.Helper()

	account, err := db.Storage.GetAccount(context.Background(), db.Session.UserID, accountID)
	require.NoError(db.t, err)
	return account.Balance
}

// Day is shorthand for a UTC calendar date.
func Day(year int, month time.Month, day int) time.Time {
	return model.Date(year, month, day)
}

// Clock returns a clock function frozen at t.
func Clock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

// Dec parses a decimal literal, panicking on malformed test input.
func Dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}
