// Package advisor turns ledger data into language-model prompts: affordability
// decisions, monthly spending insights and free-text transaction parsing.
package advisor

import (
	"context"
	"log/slog"
	"time"

	"github.com/Veraticus/spice-ledger/internal/analytics"
	"github.com/Veraticus/spice-ledger/internal/common"
	"github.com/Veraticus/spice-ledger/internal/llm"
	"github.com/Veraticus/spice-ledger/internal/model"
	"github.com/shopspring/decimal"
)

// AccountLister lists a user's accounts.
type AccountLister interface {
	ListAccounts(ctx context.Context, userID int64, activeOnly bool) ([]model.Account, error)
}

// BudgetReporter provides budgets and their monthly status.
type BudgetReporter interface {
	List(ctx context.Context, session model.Session) ([]model.Budget, error)
	StatusAll(ctx context.Context, session model.Session, year int, month time.Month) ([]model.BudgetStatus, error)
}

// UpcomingLister lists recurring charges due soon.
type UpcomingLister interface {
	Upcoming(ctx context.Context, session model.Session, days int) ([]model.UpcomingCharge, error)
}

// SpendingReporter provides spending totals.
type SpendingReporter interface {
	LastWeekSpending(ctx context.Context, session model.Session) (decimal.Decimal, error)
	MonthlySummary(ctx context.Context, session model.Session, year int, month time.Month) (analytics.MonthlySummary, error)
}

// Deps are the read models the advisor draws on.
type Deps struct {
	Accounts  AccountLister
	Budgets   BudgetReporter
	Recurring UpcomingLister
	Spending  SpendingReporter
	Generator llm.Generator
}

// Advisor answers spending questions with help from a language model.
type Advisor struct {
	deps   Deps
	retry  common.RetryOptions
	now    func() time.Time
	logger *slog.Logger
}

// New creates an advisor.
func New(deps Deps) *Advisor {
	return &Advisor{
		deps:   deps,
		retry:  common.DefaultRetryOptions(),
		now:    time.Now,
		logger: slog.Default().With("component", "advisor"),
	}
}

// WithClock replaces the advisor clock, for tests.
func (a *Advisor) WithClock(now func() time.Time) *Advisor {
	a.now = now
	return a
}

// WithRetryOptions sets the retry policy used for insights.
func (a *Advisor) WithRetryOptions(opts common.RetryOptions) *Advisor {
	a.retry = opts
	return a
}
