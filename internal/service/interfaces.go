// Package service defines the persistence contract shared by the ledger's services.
package service

import (
	"context"
	"time"

	"github.com/Veraticus/spice-ledger/internal/model"
	"github.com/shopspring/decimal"
)

// Store is the entity-level persistence contract. Every lookup is scoped to a user;
// a row owned by someone else is reported as common.ErrNotFound.
type Store interface {
	// User operations
	CreateUser(ctx context.Context, user *model.User) error
	GetUserByID(ctx context.Context, id int64) (*model.User, error)
	GetUserByUsername(ctx context.Context, username string) (*model.User, error)
	GetUserByEmail(ctx context.Context, email string) (*model.User, error)
	ListUsers(ctx context.Context, includeInactive bool) ([]model.User, error)
	UpdateUser(ctx context.Context, user *model.User) error
	SetUserPassword(ctx context.Context, userID int64, hash string, required bool) error
	TouchLastLogin(ctx context.Context, userID int64, at time.Time) error

	// Session operations
	CreateSession(ctx context.Context, session *model.Session) error
	GetSession(ctx context.Context, token string) (*model.Session, error)
	DeleteSession(ctx context.Context, token string) error
	DeleteExpiredSessions(ctx context.Context, now time.Time) (int64, error)

	// Account operations
	CreateAccount(ctx context.Context, account *model.Account) error
	GetAccount(ctx context.Context, userID, id int64) (*model.Account, error)
	GetAccountByName(ctx context.Context, userID int64, name string) (*model.Account, error)
	ListAccounts(ctx context.Context, userID int64, activeOnly bool) ([]model.Account, error)
	UpdateAccount(ctx context.Context, account *model.Account) error
	AdjustAccountBalance(ctx context.Context, userID, id int64, delta decimal.Decimal) error
	SetAccountBalance(ctx context.Context, userID, id int64, balance decimal.Decimal) error

	// Transaction operations
	CreateTransaction(ctx context.Context, txn *model.Transaction) error
	GetTransaction(ctx context.Context, userID, id int64) (*model.Transaction, error)
	SearchTransactions(ctx context.Context, userID int64, filter model.TransactionFilter) ([]model.Transaction, error)
	UpdateTransaction(ctx context.Context, txn *model.Transaction) error
	SetTransferPair(ctx context.Context, userID, id, pairID int64) error
	DeleteTransaction(ctx context.Context, userID, id int64) error
	TransactionHashExists(ctx context.Context, userID int64, hash string) (bool, error)
	ListCategoryUsage(ctx context.Context, userID int64) ([]model.CategoryUsage, error)
	RenameCategory(ctx context.Context, userID int64, from, to string) (int64, error)

	// Budget operations
	CreateBudget(ctx context.Context, budget *model.Budget) error
	GetBudget(ctx context.Context, userID, id int64) (*model.Budget, error)
	GetBudgetByCategory(ctx context.Context, userID int64, category string) (*model.Budget, error)
	ListBudgets(ctx context.Context, userID int64) ([]model.Budget, error)
	UpdateBudget(ctx context.Context, budget *model.Budget) error
	DeleteBudget(ctx context.Context, userID, id int64) error

	// Recurring charge operations
	CreateRecurringCharge(ctx context.Context, charge *model.RecurringCharge) error
	GetRecurringCharge(ctx context.Context, userID, id int64) (*model.RecurringCharge, error)
	FindRecurringChargeByMerchant(ctx context.Context, userID int64, merchant string) (*model.RecurringCharge, error)
	ListRecurringCharges(ctx context.Context, userID int64, status *model.RecurringStatus) ([]model.RecurringCharge, error)
	ListUpcomingCharges(ctx context.Context, userID int64, through time.Time) ([]model.RecurringCharge, error)
	UpdateRecurringCharge(ctx context.Context, charge *model.RecurringCharge) error
	DeleteRecurringCharge(ctx context.Context, userID, id int64) error

	// Savings goal operations
	CreateGoal(ctx context.Context, goal *model.Goal) error
	GetGoal(ctx context.Context, userID, id int64) (*model.Goal, error)
	GetGoalByName(ctx context.Context, userID int64, name string) (*model.Goal, error)
	ListGoals(ctx context.Context, userID int64, status *model.GoalStatus) ([]model.Goal, error)
	UpdateGoal(ctx context.Context, goal *model.Goal) error
	DeleteGoal(ctx context.Context, userID, id int64) error
	AddContribution(ctx context.Context, contribution *model.Contribution) error
	ListContributions(ctx context.Context, goalID int64) ([]model.Contribution, error)

	// Planned purchase operations
	CreatePurchase(ctx context.Context, purchase *model.Purchase) error
	GetPurchase(ctx context.Context, userID, id int64) (*model.Purchase, error)
	ListPurchases(ctx context.Context, userID int64, filter model.PurchaseFilter) ([]model.Purchase, error)
	UpdatePurchase(ctx context.Context, purchase *model.Purchase) error
	DeletePurchase(ctx context.Context, userID, id int64) error
	ListOverduePurchases(ctx context.Context, userID int64, today time.Time) ([]model.Purchase, error)

	// Tag operations
	CreateTag(ctx context.Context, tag *model.Tag) error
	GetTagByName(ctx context.Context, userID int64, name string) (*model.Tag, error)
	ListTags(ctx context.Context, userID int64) ([]model.Tag, error)
	DeleteTag(ctx context.Context, userID, id int64) error
	AddTagToTransaction(ctx context.Context, txnID, tagID int64) error
	RemoveTagFromTransaction(ctx context.Context, txnID, tagID int64) error
	ListTransactionTags(ctx context.Context, txnID int64) ([]model.Tag, error)
	TagStats(ctx context.Context, userID int64) ([]model.TagStat, error)

	// Category rule operations
	GetCategoryRule(ctx context.Context, userID int64, merchant string) (*model.CategoryRule, error)
	UpsertCategoryRule(ctx context.Context, rule *model.CategoryRule) error
	RecordRuleUse(ctx context.Context, userID int64, merchant string, at time.Time) error
	ListCategoryRules(ctx context.Context, userID int64) ([]model.CategoryRule, error)
	DeleteCategoryRule(ctx context.Context, userID int64, merchant string) error
}

// Storage is the top-level handle on the database.
type Storage interface {
	Store

	// Database management
	Migrate(ctx context.Context) error
	BeginTx(ctx context.Context) (Transaction, error)
	Close() error
}

// Transaction represents a database transaction.
type Transaction interface {
	Store
	Commit() error
	Rollback() error
}

// RunInTx runs fn inside a database transaction, committing on success and rolling
// back on any error or panic.
func RunInTx(ctx context.Context, s Storage, fn func(Store) error) (err error) {
	tx, err := s.BeginTx(ctx)
	if err != nil {
		return err
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if err = fn(tx); err != nil {
		return err
	}
	if err = tx.Commit(); err != nil {
		return err
	}
	return nil
}
