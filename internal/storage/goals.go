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

const goalColumns = `id, user_id, name, description, target_amount, current_amount, deadline,
	category, priority, status, notes, created_at`

func scanGoal(row rowScanner) (*model.Goal, error) {
	var (
		g                            model.Goal
		description, category, notes sql.NullString
		deadline                     sql.NullString
	)
	if err := row.Scan(&g.ID, &g.UserID, &g.Name, &description, &g.TargetAmount, &g.CurrentAmount,
		&deadline, &category, &g.Priority, &g.Status, &notes, &g.CreatedAt); err != nil {
		return nil, err
	}

	var err error
	if g.Deadline, err = parseNullDate(deadline); err != nil {
		return nil, err
	}
	g.Description = description.String
	g.Category = category.String
	g.Notes = notes.String
	return &g, nil
}

// CreateGoal inserts a savings goal and sets its ID.
func (s *queries) CreateGoal(ctx context.Context, goal *model.Goal) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if goal == nil {
		return fmt.Errorf("%w: goal", ErrNilParameter)
	}
	if err := validateString(goal.Name, "name"); err != nil {
		return err
	}
	if goal.Status == "" {
		goal.Status = model.GoalActive
	}

	res, err := s.q.ExecContext(ctx, `
		INSERT INTO savings_goals (user_id, name, description, target_amount, current_amount,
			deadline, category, priority, status, notes)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		goal.UserID, goal.Name, nullString(goal.Description), goal.TargetAmount.String(),
		goal.CurrentAmount.String(), nullDate(goal.Deadline), nullString(goal.Category),
		goal.Priority, goal.Status, nullString(goal.Notes))
	if err != nil {
		return mapWriteError(err, fmt.Sprintf("goal %q", goal.Name))
	}

	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get goal id: %w", err)
	}
	goal.ID = id
	goal.CreatedAt = time.Now()
	return nil
}

// GetGoal returns one of the user's goals.
func (s *queries) GetGoal(ctx context.Context, userID, id int64) (*model.Goal, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	row := s.q.QueryRowContext(ctx,
		`SELECT `+goalColumns+` FROM savings_goals WHERE user_id = ? AND id = ?`, userID, id)
	goal, err := scanGoal(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.NotFoundf("goal %d", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query goal: %w", err)
	}
	return goal, nil
}

// GetGoalByName returns one of the user's goals by name.
func (s *queries) GetGoalByName(ctx context.Context, userID int64, name string) (*model.Goal, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(name, "name"); err != nil {
		return nil, err
	}

	row := s.q.QueryRowContext(ctx,
		`SELECT `+goalColumns+` FROM savings_goals WHERE user_id = ? AND name = ?`, userID, name)
	goal, err := scanGoal(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.NotFoundf("goal %q", name)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query goal: %w", err)
	}
	return goal, nil
}

// ListGoals returns the user's goals by priority, then deadline.
func (s *queries) ListGoals(ctx context.Context, userID int64, status *model.GoalStatus) ([]model.Goal, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	query := `SELECT ` + goalColumns + ` FROM savings_goals WHERE user_id = ?`
	args := []any{userID}
	if status != nil {
		query += ` AND status = ?`
		args = append(args, *status)
	}
	query += ` ORDER BY priority, deadline IS NULL, deadline, name`

	rows, err := s.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query goals: %w", err)
	}
	defer rows.Close()

	var goals []model.Goal
	for rows.Next() {
		goal, err := scanGoal(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan goal: %w", err)
		}
		goals = append(goals, *goal)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating goals: %w", err)
	}
	return goals, nil
}

// UpdateGoal saves every column of an existing goal.
func (s *queries) UpdateGoal(ctx context.Context, goal *model.Goal) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if goal == nil {
		return fmt.Errorf("%w: goal", ErrNilParameter)
	}

	res, err := s.q.ExecContext(ctx, `
		UPDATE savings_goals SET name = ?, description = ?, target_amount = ?, current_amount = ?,
			deadline = ?, category = ?, priority = ?, status = ?, notes = ?
		WHERE user_id = ? AND id = ?`,
		goal.Name, nullString(goal.Description), goal.TargetAmount.String(), goal.CurrentAmount.String(),
		nullDate(goal.Deadline), nullString(goal.Category), goal.Priority, goal.Status,
		nullString(goal.Notes), goal.UserID, goal.ID)
	if err != nil {
		return mapWriteError(err, fmt.Sprintf("goal %q", goal.Name))
	}
	return expectOneRow(res, "goal", goal.ID)
}

// DeleteGoal removes a goal and its contributions.
func (s *queries) DeleteGoal(ctx context.Context, userID, id int64) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	res, err := s.q.ExecContext(ctx, `DELETE FROM savings_goals WHERE user_id = ? AND id = ?`, userID, id)
	if err != nil {
		return fmt.Errorf("failed to delete goal: %w", err)
	}
	return expectOneRow(res, "goal", id)
}

// AddContribution records a deposit. The goal's current amount is updated separately.
func (s *queries) AddContribution(ctx context.Context, contribution *model.Contribution) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if contribution == nil {
		return fmt.Errorf("%w: contribution", ErrNilParameter)
	}

	res, err := s.q.ExecContext(ctx,
		`INSERT INTO goal_contributions (goal_id, amount, note, date) VALUES (?, ?, ?, ?)`,
		contribution.GoalID, contribution.Amount.String(), nullString(contribution.Note),
		dateValue(contribution.Date))
	if err != nil {
		return mapWriteError(err, "contribution")
	}

	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get contribution id: %w", err)
	}
	contribution.ID = id
	return nil
}

// ListContributions returns a goal's deposits, oldest first.
func (s *queries) ListContributions(ctx context.Context, goalID int64) ([]model.Contribution, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	rows, err := s.q.QueryContext(ctx,
		`SELECT id, goal_id, amount, note, date FROM goal_contributions WHERE goal_id = ? ORDER BY date, id`, goalID)
	if err != nil {
		return nil, fmt.Errorf("failed to query contributions: %w", err)
	}
	defer rows.Close()

	var contributions []model.Contribution
	for rows.Next() {
		var (
			c    model.Contribution
			note sql.NullString
			date string
		)
		if err := rows.Scan(&c.ID, &c.GoalID, &c.Amount, &note, &date); err != nil {
			return nil, fmt.Errorf("failed to scan contribution: %w", err)
		}
		if c.Date, err = parseDate(date); err != nil {
			return nil, err
		}
		c.Note = note.String
		contributions = append(contributions, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating contributions: %w", err)
	}
	return contributions, nil
}
