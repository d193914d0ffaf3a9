// Package goals tracks savings goals, their contributions and how far each
// one is from its target.
package goals

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/Veraticus/spice-ledger/internal/analytics"
	"github.com/Veraticus/spice-ledger/internal/common"
	"github.com/Veraticus/spice-ledger/internal/model"
	"github.com/Veraticus/spice-ledger/internal/service"
	"github.com/shopspring/decimal"
)

// TrendSource reports recent weekly spending.
type TrendSource interface {
	SpendingTrends(ctx context.Context, session model.Session, weeks int) (analytics.SpendingTrends, error)
}

// NewGoal describes a goal to create. Zero Priority means the default.
type NewGoal struct {
	Deadline    *time.Time
	Target      decimal.Decimal
	Name        string
	Description string
	Category    string
	Notes       string
	Priority    int
}

// Service manages savings goals.
type Service struct {
	storage service.Storage
	trends  TrendSource
	now     func() time.Time
	logger  *slog.Logger
}

// NewService creates a goal service. trends may be nil, in which case
// recommendations skip the spending comparison.
func NewService(storage service.Storage, trends TrendSource) *Service {
	return &Service{
		storage: storage,
		trends:  trends,
		now:     time.Now,
		logger:  slog.Default().With("component", "goals"),
	}
}

// WithClock replaces the service clock, for tests.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

func (s *Service) today() time.Time {
	return model.Day(s.now())
}

func (s *Service) validate(target decimal.Decimal, priority int, deadline *time.Time) error {
	if !target.IsPositive() {
		return common.Validationf("target amount must be positive")
	}
	if priority < model.MinGoalPriority || priority > model.MaxGoalPriority {
		return common.Validationf("priority must be between %d and %d", model.MinGoalPriority, model.MaxGoalPriority)
	}
	if deadline != nil && model.Day(*deadline).Before(s.today()) {
		return common.Validationf("deadline cannot be in the past")
	}
	return nil
}

// Create adds a goal.
func (s *Service) Create(ctx context.Context, session model.Session, in NewGoal) (*model.Goal, error) {
	if err := session.Require(); err != nil {
		return nil, err
	}
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, common.Validationf("goal name is required")
	}
	if in.Priority == 0 {
		in.Priority = model.DefaultGoalPriority
	}
	if err := s.validate(in.Target, in.Priority, in.Deadline); err != nil {
		return nil, err
	}

	goal := &model.Goal{
		UserID:        session.UserID,
		Name:          name,
		Description:   strings.TrimSpace(in.Description),
		Category:      strings.TrimSpace(in.Category),
		Notes:         strings.TrimSpace(in.Notes),
		TargetAmount:  in.Target,
		CurrentAmount: decimal.Zero,
		Priority:      in.Priority,
		Status:        model.GoalActive,
	}
	if in.Deadline != nil {
		d := model.Day(*in.Deadline)
		goal.Deadline = &d
	}
	if err := s.storage.CreateGoal(ctx, goal); err != nil {
		return nil, fmt.Errorf("failed to create goal: %w", err)
	}
	s.logger.Info("Created savings goal", "name", name, "target", in.Target.StringFixed(2))
	return goal, nil
}

// Get returns one goal.
func (s *Service) Get(ctx context.Context, session model.Session, id int64) (*model.Goal, error) {
	if err := session.Require(); err != nil {
		return nil, err
	}
	return s.storage.GetGoal(ctx, session.UserID, id)
}

// GetByName returns a goal by exact name.
func (s *Service) GetByName(ctx context.Context, session model.Session, name string) (*model.Goal, error) {
	if err := session.Require(); err != nil {
		return nil, err
	}
	return s.storage.GetGoalByName(ctx, session.UserID, strings.TrimSpace(name))
}

// List returns goals by priority, optionally limited to one status.
func (s *Service) List(ctx context.Context, session model.Session, status *model.GoalStatus) ([]model.Goal, error) {
	if err := session.Require(); err != nil {
		return nil, err
	}
	return s.storage.ListGoals(ctx, session.UserID, status)
}

// Update edits a goal's details.
func (s *Service) Update(ctx context.Context, session model.Session, id int64, update model.GoalUpdate) (*model.Goal, error) {
	if err := session.Require(); err != nil {
		return nil, err
	}
	goal, err := s.storage.GetGoal(ctx, session.UserID, id)
	if err != nil {
		return nil, err
	}
	if update.Name != nil {
		name := strings.TrimSpace(*update.Name)
		if name == "" {
			return nil, common.Validationf("goal name is required")
		}
		update.Name = &name
	}

	update.Apply(goal)
	var deadline *time.Time
	if update.Deadline != nil {
		deadline = goal.Deadline
	}
	if err := s.validate(goal.TargetAmount, goal.Priority, deadline); err != nil {
		return nil, err
	}
	if err := s.storage.UpdateGoal(ctx, goal); err != nil {
		return nil, fmt.Errorf("failed to update goal: %w", err)
	}
	return goal, nil
}

// Contribute adds money to an active goal and completes it once the target is reached.
func (s *Service) Contribute(ctx context.Context, session model.Session, id int64, amount decimal.Decimal, note string) (*model.Goal, error) {
	if err := session.Require(); err != nil {
		return nil, err
	}
	if !amount.IsPositive() {
		return nil, common.Validationf("contribution amount must be positive")
	}

	var goal *model.Goal
	err := service.RunInTx(ctx, s.storage, func(store service.Store) error {
		var err error
		goal, err = store.GetGoal(ctx, session.UserID, id)
		if err != nil {
			return err
		}
		if goal.Status != model.GoalActive {
			return common.Validationf("cannot contribute to %s goal", goal.Status)
		}

		if err := store.AddContribution(ctx, &model.Contribution{
			GoalID: goal.ID,
			Amount: amount,
			Note:   strings.TrimSpace(note),
			Date:   s.today(),
		}); err != nil {
			return err
		}

		goal.CurrentAmount = goal.CurrentAmount.Add(amount)
		if goal.CurrentAmount.GreaterThanOrEqual(goal.TargetAmount) {
			goal.Status = model.GoalCompleted
		}
		return store.UpdateGoal(ctx, goal)
	})
	if err != nil {
		return nil, err
	}
	if goal.Status == model.GoalCompleted {
		s.logger.Info("Savings goal reached", "name", goal.Name)
	}
	return goal, nil
}

// Withdraw takes money back out of a goal.
func (s *Service) Withdraw(ctx context.Context, session model.Session, id int64, amount decimal.Decimal) (*model.Goal, error) {
	if err := session.Require(); err != nil {
		return nil, err
	}
	if !amount.IsPositive() {
		return nil, common.Validationf("withdrawal amount must be positive")
	}
	goal, err := s.storage.GetGoal(ctx, session.UserID, id)
	if err != nil {
		return nil, err
	}
	if amount.GreaterThan(goal.CurrentAmount) {
		return nil, common.Validationf("cannot withdraw %s, current balance is %s",
			model.FormatMoney(amount), model.FormatMoney(goal.CurrentAmount))
	}
	goal.CurrentAmount = goal.CurrentAmount.Sub(amount)
	if err := s.storage.UpdateGoal(ctx, goal); err != nil {
		return nil, fmt.Errorf("failed to update goal: %w", err)
	}
	return goal, nil
}

// UpdateStatus moves a goal to any valid status.
func (s *Service) UpdateStatus(ctx context.Context, session model.Session, id int64, status string) (*model.Goal, error) {
	if err := session.Require(); err != nil {
		return nil, err
	}
	st, err := model.ParseGoalStatus(status)
	if err != nil {
		return nil, err
	}
	goal, err := s.storage.GetGoal(ctx, session.UserID, id)
	if err != nil {
		return nil, err
	}
	goal.Status = st
	if err := s.storage.UpdateGoal(ctx, goal); err != nil {
		return nil, fmt.Errorf("failed to update goal: %w", err)
	}
	return goal, nil
}

// Delete removes a goal and its contributions.
func (s *Service) Delete(ctx context.Context, session model.Session, id int64) error {
	if err := session.Require(); err != nil {
		return err
	}
	return s.storage.DeleteGoal(ctx, session.UserID, id)
}

// Contributions lists a goal's deposits, oldest first.
func (s *Service) Contributions(ctx context.Context, session model.Session, id int64) ([]model.Contribution, error) {
	if _, err := s.Get(ctx, session, id); err != nil {
		return nil, err
	}
	return s.storage.ListContributions(ctx, id)
}

// Resolve finds a goal by numeric ID or by name.
func (s *Service) Resolve(ctx context.Context, session model.Session, ref string) (*model.Goal, error) {
	if id, err := strconv.ParseInt(strings.TrimSpace(ref), 10, 64); err == nil {
		goal, err := s.Get(ctx, session, id)
		if err == nil || !errors.Is(err, common.ErrNotFound) {
			return goal, err
		}
	}
	return s.GetByName(ctx, session, ref)
}
