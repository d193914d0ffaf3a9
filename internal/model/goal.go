package model

import (
	"strings"
	"time"

	"github.com/Veraticus/spice-ledger/internal/common"
	"github.com/shopspring/decimal"
)

// GoalStatus is the lifecycle state of a savings goal.
type GoalStatus string

// Goal statuses.
const (
	GoalActive    GoalStatus = "active"
	GoalCompleted GoalStatus = "completed"
	GoalPaused    GoalStatus = "paused"
	GoalCancelled GoalStatus = "cancelled"
)

// ParseGoalStatus validates a user-supplied status.
func ParseGoalStatus(s string) (GoalStatus, error) {
	switch st := GoalStatus(strings.ToLower(strings.TrimSpace(s))); st {
	case GoalActive, GoalCompleted, GoalPaused, GoalCancelled:
		return st, nil
	default:
		return "", common.Validationf("status must be one of: active, completed, paused, cancelled")
	}
}

// Goal priority bounds.
const (
	MinGoalPriority     = 1
	MaxGoalPriority     = 10
	DefaultGoalPriority = 5
)

// Goal is a savings target.
type Goal struct {
	CreatedAt     time.Time
	Deadline      *time.Time
	TargetAmount  decimal.Decimal
	CurrentAmount decimal.Decimal
	Name          string
	Description   string
	Category      string
	Notes         string
	Status        GoalStatus
	Priority      int
	ID            int64
	UserID        int64
}

// GoalUpdate lists the goal fields that may change; nil means unchanged.
type GoalUpdate struct {
	Deadline     *time.Time
	TargetAmount *decimal.Decimal
	Name         *string
	Description  *string
	Category     *string
	Notes        *string
	Priority     *int
}

// Apply copies the set fields onto g.
func (u GoalUpdate) Apply(g *Goal) {
	if u.Deadline != nil {
		d := Day(*u.Deadline)
		g.Deadline = &d
	}
	if u.TargetAmount != nil {
		g.TargetAmount = *u.TargetAmount
	}
	if u.Name != nil {
		g.Name = *u.Name
	}
	if u.Description != nil {
		g.Description = *u.Description
	}
	if u.Category != nil {
		g.Category = *u.Category
	}
	if u.Notes != nil {
		g.Notes = *u.Notes
	}
	if u.Priority != nil {
		g.Priority = *u.Priority
	}
}

// Contribution is a deposit towards a goal.
type Contribution struct {
	Date   time.Time
	Amount decimal.Decimal
	Note   string
	ID     int64
	GoalID int64
}
