package goals

import (
	"context"
	"fmt"
	"time"

	"github.com/Veraticus/spice-ledger/internal/model"
	"github.com/shopspring/decimal"
)

const (
	trendWeeks       = 4
	heavySavingsRate = 30
)

var hundred = decimal.NewFromInt(100)

// Progress measures a goal against its target and deadline.
type Progress struct {
	Current    decimal.Decimal
	Target     decimal.Decimal
	Remaining  decimal.Decimal
	Percentage decimal.Decimal
	// DaysUntilDeadline is nil without a deadline or once the goal is complete.
	DaysUntilDeadline *int
	OverdueDays       int
	IsComplete        bool
	OnTrack           bool
}

// ProgressOf computes progress as of today.
func ProgressOf(goal model.Goal, today time.Time) Progress {
	p := Progress{
		Current:    goal.CurrentAmount,
		Target:     goal.TargetAmount,
		Remaining:  decimal.Max(decimal.Zero, goal.TargetAmount.Sub(goal.CurrentAmount)),
		Percentage: decimal.Min(hundred, model.Percent(goal.CurrentAmount, goal.TargetAmount)),
		IsComplete: goal.CurrentAmount.GreaterThanOrEqual(goal.TargetAmount),
	}
	if goal.Deadline != nil && !p.IsComplete {
		days := model.DaysBetween(today, *goal.Deadline)
		p.DaysUntilDeadline = &days
		if days > 0 {
			p.OnTrack = true
		} else {
			p.OverdueDays = -days
		}
	}
	return p
}

// Progress computes a goal's progress as of the service clock.
func (s *Service) Progress(goal model.Goal) Progress {
	return ProgressOf(goal, s.today())
}

// RequiredSavings is the pace needed to reach a goal by its deadline.
type RequiredSavings struct {
	Daily         decimal.Decimal
	Weekly        decimal.Decimal
	Monthly       decimal.Decimal
	DaysRemaining int
}

// Recommendation is advice for reaching one goal.
type Recommendation struct {
	Required    *RequiredSavings
	Goal        model.Goal
	Suggestions []string
	Progress    Progress
}

// Recommendations works out the saving pace a goal needs and how that compares
// with recent spending.
func (s *Service) Recommendations(ctx context.Context, session model.Session, id int64) (*Recommendation, error) {
	goal, err := s.Get(ctx, session, id)
	if err != nil {
		return nil, err
	}

	rec := &Recommendation{Goal: *goal, Progress: s.Progress(*goal)}

	if goal.Deadline != nil && rec.Progress.Remaining.IsPositive() {
		days := model.DaysBetween(s.today(), *goal.Deadline)
		if days > 0 {
			daily := rec.Progress.Remaining.Div(decimal.NewFromInt(int64(days)))
			rec.Required = &RequiredSavings{
				Daily:         daily.Round(2),
				Weekly:        daily.Mul(decimal.NewFromInt(7)).Round(2),
				Monthly:       daily.Mul(decimal.NewFromInt(30)).Round(2),
				DaysRemaining: days,
			}
			rec.Suggestions = append(rec.Suggestions, s.paceSuggestions(ctx, session, rec.Required.Weekly)...)
		}
	}

	rec.Suggestions = append(rec.Suggestions, progressMessage(rec.Progress.Percentage))
	return rec, nil
}

func (s *Service) paceSuggestions(ctx context.Context, session model.Session, weekly decimal.Decimal) []string {
	if s.trends == nil {
		return nil
	}
	trends, err := s.trends.SpendingTrends(ctx, session, trendWeeks)
	if err != nil {
		s.logger.Warn("Spending trends unavailable", "error", err)
		return nil
	}
	if !trends.AverageWeekly.IsPositive() {
		return nil
	}

	share := weekly.Div(trends.AverageWeekly).Mul(hundred)
	var out []string
	if share.IsPositive() {
		out = append(out, fmt.Sprintf("Save %s%% of your weekly spending (%s/week)",
			share.StringFixed(1), model.FormatMoney(weekly)))
	}
	if share.GreaterThan(decimal.NewFromInt(heavySavingsRate)) {
		out = append(out, "Consider extending deadline or reducing discretionary spending")
	}
	return out
}

func progressMessage(pct decimal.Decimal) string {
	switch {
	case pct.LessThan(decimal.NewFromInt(25)):
		return "Get started! Make your first contribution to build momentum"
	case pct.LessThan(decimal.NewFromInt(50)):
		return "You're making progress! Consider automating weekly contributions"
	case pct.LessThan(decimal.NewFromInt(75)):
		return "Great progress! You're over halfway there"
	default:
		return "Almost there! Just a bit more to reach your goal"
	}
}
