package budget

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/Veraticus/spice-ledger/internal/common"
	"github.com/Veraticus/spice-ledger/internal/model"
	"github.com/Veraticus/spice-ledger/internal/service"
	"github.com/shopspring/decimal"
)

// Service manages a user's budgets.
type Service struct {
	store  service.Store
	now    func() time.Time
	logger *slog.Logger
}

// NewService creates a budget service.
func NewService(store service.Store) *Service {
	return &Service{
		store:  store,
		now:    time.Now,
		logger: slog.Default().With("component", "budget"),
	}
}

// WithClock replaces the service clock, for tests.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// Create adds a budget. A nil threshold means the default of 0.9.
func (s *Service) Create(ctx context.Context, session model.Session, category string, limit decimal.Decimal, threshold *decimal.Decimal) (*model.Budget, error) {
	if err := session.Require(); err != nil {
		return nil, err
	}

	category = strings.TrimSpace(category)
	if category == "" {
		return nil, common.Validationf("category is required")
	}
	alert := model.DefaultAlertThreshold
	if threshold != nil {
		alert = *threshold
	}
	if err := model.ValidateBudget(limit, alert); err != nil {
		return nil, err
	}

	b := &model.Budget{
		UserID:         session.UserID,
		Category:       category,
		MonthlyLimit:   limit,
		AlertThreshold: alert,
	}
	if err := s.store.CreateBudget(ctx, b); err != nil {
		return nil, fmt.Errorf("failed to create budget for %s: %w", category, err)
	}
	s.logger.Info("Budget created", "category", category, "limit", limit.StringFixed(2))
	return b, nil
}

// Get returns one budget.
func (s *Service) Get(ctx context.Context, session model.Session, id int64) (*model.Budget, error) {
	if err := session.Require(); err != nil {
		return nil, err
	}
	return s.store.GetBudget(ctx, session.UserID, id)
}

// GetByCategory returns the budget for a category.
func (s *Service) GetByCategory(ctx context.Context, session model.Session, category string) (*model.Budget, error) {
	if err := session.Require(); err != nil {
		return nil, err
	}
	return s.store.GetBudgetByCategory(ctx, session.UserID, category)
}

// List returns all of the user's budgets.
func (s *Service) List(ctx context.Context, session model.Session) ([]model.Budget, error) {
	if err := session.Require(); err != nil {
		return nil, err
	}
	return s.store.ListBudgets(ctx, session.UserID)
}

// Update applies a partial update.
func (s *Service) Update(ctx context.Context, session model.Session, id int64, update model.BudgetUpdate) (*model.Budget, error) {
	if err := session.Require(); err != nil {
		return nil, err
	}

	b, err := s.store.GetBudget(ctx, session.UserID, id)
	if err != nil {
		return nil, err
	}
	update.Apply(b)
	if err := model.ValidateBudget(b.MonthlyLimit, b.AlertThreshold); err != nil {
		return nil, err
	}
	if err := s.store.UpdateBudget(ctx, b); err != nil {
		return nil, fmt.Errorf("failed to update budget: %w", err)
	}
	return b, nil
}

// Delete removes a budget.
func (s *Service) Delete(ctx context.Context, session model.Session, id int64) error {
	if err := session.Require(); err != nil {
		return err
	}
	return s.store.DeleteBudget(ctx, session.UserID, id)
}

// StatusFor computes one budget's status for a month.
func (s *Service) StatusFor(ctx context.Context, session model.Session, id int64, year int, month time.Month) (model.BudgetStatus, error) {
	if err := session.Require(); err != nil {
		return model.BudgetStatus{}, err
	}

	b, err := s.store.GetBudget(ctx, session.UserID, id)
	if err != nil {
		return model.BudgetStatus{}, err
	}
	txns, err := s.monthExpenses(ctx, session, year, month, b.Category)
	if err != nil {
		return model.BudgetStatus{}, err
	}
	return Status(*b, txns), nil
}

// StatusAll computes the status of every budget for a month, in category order.
func (s *Service) StatusAll(ctx context.Context, session model.Session, year int, month time.Month) ([]model.BudgetStatus, error) {
	if err := session.Require(); err != nil {
		return nil, err
	}

	budgets, err := s.store.ListBudgets(ctx, session.UserID)
	if err != nil {
		return nil, fmt.Errorf("failed to load budgets: %w", err)
	}
	if len(budgets) == 0 {
		return nil, nil
	}

	txns, err := s.monthExpenses(ctx, session, year, month, "")
	if err != nil {
		return nil, err
	}

	statuses := make([]model.BudgetStatus, 0, len(budgets))
	for _, b := range budgets {
		statuses = append(statuses, Status(b, txns))
	}
	return statuses, nil
}

// CurrentStatus is StatusAll for the month containing today.
func (s *Service) CurrentStatus(ctx context.Context, session model.Session) ([]model.BudgetStatus, error) {
	now := s.now()
	return s.StatusAll(ctx, session, now.Year(), now.Month())
}

func (s *Service) monthExpenses(ctx context.Context, session model.Session, year int, month time.Month, category string) ([]model.Transaction, error) {
	start, end := model.MonthRange(year, month)
	txns, err := s.store.SearchTransactions(ctx, session.UserID, model.TransactionFilter{
		StartDate: &start,
		EndDate:   &end,
		Category:  category,
		Type:      model.TypeExpense,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to load %s %d expenses: %w", month, year, err)
	}
	return txns, nil
}
