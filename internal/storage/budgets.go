package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/Veraticus/spice-ledger/internal/common"
	"github.com/Veraticus/spice-ledger/internal/model"
)

const budgetColumns = `id, user_id, category, monthly_limit, alert_threshold, created_at`

func scanBudget(row rowScanner) (*model.Budget, error) {
	var b model.Budget
	if err := row.Scan(&b.ID, &b.UserID, &b.Category, &b.MonthlyLimit, &b.AlertThreshold, &b.CreatedAt); err != nil {
		return nil, err
	}
	return &b, nil
}

// CreateBudget inserts a budget and sets its ID.
func (s *queries) CreateBudget(ctx context.Context, budget *model.Budget) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if budget == nil {
		return fmt.Errorf("%w: budget", ErrNilParameter)
	}
	if err := validateString(budget.Category, "category"); err != nil {
		return err
	}

	res, err := s.q.ExecContext(ctx, `
		INSERT INTO budgets (user_id, category, monthly_limit, alert_threshold)
		VALUES (?, ?, ?, ?)`,
		budget.UserID, budget.Category, budget.MonthlyLimit.String(), budget.AlertThreshold.String())
	if err != nil {
		return mapWriteError(err, fmt.Sprintf("budget for %q", budget.Category))
	}

	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get budget id: %w", err)
	}
	budget.ID = id
	budget.CreatedAt = time.Now()
	return nil
}

// GetBudget returns one of the user's budgets.
func (s *queries) GetBudget(ctx context.Context, userID, id int64) (*model.Budget, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	row := s.q.QueryRowContext(ctx,
		`SELECT `+budgetColumns+` FROM budgets WHERE user_id = ? AND id = ?`, userID, id)
	budget, err := scanBudget(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.NotFoundf("budget %d", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query budget: %w", err)
	}
	return budget, nil
}

// GetBudgetByCategory returns the user's budget for a category.
func (s *queries) GetBudgetByCategory(ctx context.Context, userID int64, category string) (*model.Budget, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(category, "category"); err != nil {
		return nil, err
	}

	row := s.q.QueryRowContext(ctx,
		`SELECT `+budgetColumns+` FROM budgets WHERE user_id = ? AND category = ?`, userID, category)
	budget, err := scanBudget(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.NotFoundf("budget for %q", category)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query budget: %w", err)
	}
	return budget, nil
}

// ListBudgets returns the user's budgets ordered by category.
func (s *queries) ListBudgets(ctx context.Context, userID int64) ([]model.Budget, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	rows, err := s.q.QueryContext(ctx,
		`SELECT `+budgetColumns+` FROM budgets WHERE user_id = ? ORDER BY category`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query budgets: %w", err)
	}
	defer rows.Close()

	var budgets []model.Budget
	for rows.Next() {
		budget, err := scanBudget(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan budget: %w", err)
		}
		budgets = append(budgets, *budget)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating budgets: %w", err)
	}
	return budgets, nil
}

// UpdateBudget saves the limit and threshold of an existing budget.
func (s *queries) UpdateBudget(ctx context.Context, budget *model.Budget) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if budget == nil {
		return fmt.Errorf("%w: budget", ErrNilParameter)
	}

	res, err := s.q.ExecContext(ctx, `
		UPDATE budgets SET monthly_limit = ?, alert_threshold = ?
		WHERE user_id = ? AND id = ?`,
		budget.MonthlyLimit.String(), budget.AlertThreshold.String(), budget.UserID, budget.ID)
	if err != nil {
		return fmt.Errorf("failed to update budget: %w", err)
	}
	return expectOneRow(res, "budget", budget.ID)
}

// DeleteBudget removes one of the user's budgets.
func (s *queries) DeleteBudget(ctx context.Context, userID, id int64) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	res, err := s.q.ExecContext(ctx, `DELETE FROM budgets WHERE user_id = ? AND id = ?`, userID, id)
	if err != nil {
		return fmt.Errorf("failed to delete budget: %w", err)
	}
	return expectOneRow(res, "budget", id)
}
