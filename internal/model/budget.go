package model

import (
	"time"

	"github.com/Veraticus/spice-ledger/internal/common"
	"github.com/shopspring/decimal"
)

// DefaultAlertThreshold is the fraction of the limit at which a budget warns.
var DefaultAlertThreshold = decimal.RequireFromString("0.9")

// Budget is a monthly spending limit for one category.
type Budget struct {
	CreatedAt      time.Time
	MonthlyLimit   decimal.Decimal
	AlertThreshold decimal.Decimal
	Category       string
	ID             int64
	UserID         int64
}

// ValidateBudget checks a limit and threshold pair.
func ValidateBudget(limit, threshold decimal.Decimal) error {
	if limit.IsNegative() {
		return common.Validationf("monthly limit cannot be negative")
	}
	if !threshold.IsPositive() || threshold.GreaterThan(decimal.NewFromInt(1)) {
		return common.Validationf("alert threshold must be between 0 and 1")
	}
	return nil
}

// BudgetUpdate lists the budget fields that may change; nil means unchanged.
type BudgetUpdate struct {
	MonthlyLimit   *decimal.Decimal
	AlertThreshold *decimal.Decimal
}

// Apply copies the set fields onto b.
func (u BudgetUpdate) Apply(b *Budget) {
	if u.MonthlyLimit != nil {
		b.MonthlyLimit = *u.MonthlyLimit
	}
	if u.AlertThreshold != nil {
		b.AlertThreshold = *u.AlertThreshold
	}
}

// BudgetStatus is the computed position of a budget within one month.
type BudgetStatus struct {
	Budget      Budget
	Spent       decimal.Decimal
	Limit       decimal.Decimal
	Remaining   decimal.Decimal
	Percentage  decimal.Decimal
	IsOver      bool
	ShouldAlert bool
}
