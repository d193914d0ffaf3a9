package analytics

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/Veraticus/spice-ledger/internal/common"
	"github.com/Veraticus/spice-ledger/internal/model"
	"github.com/Veraticus/spice-ledger/internal/service"
	"github.com/shopspring/decimal"
)

const (
	topMerchantLimit         = 10
	categoryTopMerchantLimit = 5
	activityWindowDays       = 30
	unknownMerchant          = "Unknown"
)

var (
	seven         = decimal.NewFromInt(7)
	unusualFactor = decimal.RequireFromString("1.2")
)

// Service computes reports. It never writes.
type Service struct {
	store service.Store
	now   func() time.Time
}

// NewService creates an analytics service.
func NewService(store service.Store) *Service {
	return &Service{store: store, now: time.Now}
}

// WithClock replaces the service clock, for tests.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

func (s *Service) today() time.Time {
	return model.Day(s.now())
}

func (s *Service) search(ctx context.Context, session model.Session, filter model.TransactionFilter) ([]model.Transaction, error) {
	txns, err := s.store.SearchTransactions(ctx, session.UserID, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to load transactions: %w", err)
	}
	return txns, nil
}

// MonthlySummary totals income and expenses for a month with a category
// breakdown and the top merchants. Transfers count toward the transaction
// count only.
func (s *Service) MonthlySummary(ctx context.Context, session model.Session, year int, month time.Month) (MonthlySummary, error) {
	if err := session.Require(); err != nil {
		return MonthlySummary{}, err
	}

	start, end := model.MonthRange(year, month)
	txns, err := s.search(ctx, session, model.TransactionFilter{StartDate: &start, EndDate: &end})
	if err != nil {
		return MonthlySummary{}, err
	}
	return Summarize(year, month, txns), nil
}

// Summarize builds a MonthlySummary from a month's transactions.
func Summarize(year int, month time.Month, txns []model.Transaction) MonthlySummary {
	summary := MonthlySummary{
		Year:             year,
		Month:            month,
		TotalIncome:      decimal.Zero,
		TotalExpenses:    decimal.Zero,
		TransactionCount: len(txns),
	}

	var expenses []model.Transaction
	for _, txn := range txns {
		switch txn.Type {
		case model.TypeIncome:
			summary.TotalIncome = summary.TotalIncome.Add(txn.Amount)
		case model.TypeExpense:
			summary.TotalExpenses = summary.TotalExpenses.Add(txn.Amount)
			expenses = append(expenses, txn)
		}
	}

	summary.Savings = summary.TotalIncome.Sub(summary.TotalExpenses)
	summary.SavingsRate = model.Percent(summary.Savings, summary.TotalIncome)
	summary.Categories = byCategory(expenses, summary.TotalExpenses, 0)
	summary.TopMerchants = byMerchant(expenses, summary.TotalExpenses, topMerchantLimit)
	return summary
}

// CompareToPrevious sets a month against the one before it. Percent changes
// are zero when the previous value was zero.
func (s *Service) CompareToPrevious(ctx context.Context, session model.Session, year int, month time.Month) (Comparison, error) {
	current, err := s.MonthlySummary(ctx, session, year, month)
	if err != nil {
		return Comparison{}, err
	}
	py, pm := model.PreviousMonth(year, month)
	previous, err := s.MonthlySummary(ctx, session, py, pm)
	if err != nil {
		return Comparison{}, err
	}

	incomeChange := current.TotalIncome.Sub(previous.TotalIncome)
	expenseChange := current.TotalExpenses.Sub(previous.TotalExpenses)
	return Comparison{
		Current:          current,
		Previous:         previous,
		IncomeChange:     incomeChange,
		IncomeChangePct:  model.Percent(incomeChange, previous.TotalIncome),
		ExpenseChange:    expenseChange,
		ExpenseChangePct: model.Percent(expenseChange, previous.TotalExpenses),
		SavingsChange:    current.Savings.Sub(previous.Savings),
	}, nil
}

// CategoryAnalysis looks at one category over the last months calendar
// months, including the current one.
func (s *Service) CategoryAnalysis(ctx context.Context, session model.Session, category string, months int) (CategoryAnalysis, error) {
	if err := session.Require(); err != nil {
		return CategoryAnalysis{}, err
	}
	if months <= 0 {
		return CategoryAnalysis{}, common.Validationf("months must be positive")
	}

	today := s.today()
	year, month := today.Year(), today.Month()
	for i := 1; i < months; i++ {
		year, month = model.PreviousMonth(year, month)
	}
	start, _ := model.MonthRange(year, month)
	_, end := model.MonthRange(today.Year(), today.Month())

	txns, err := s.search(ctx, session, model.TransactionFilter{
		StartDate: &start,
		EndDate:   &end,
		Category:  category,
		Type:      model.TypeExpense,
	})
	if err != nil {
		return CategoryAnalysis{}, err
	}

	analysis := CategoryAnalysis{
		Category: category,
		Months:   months,
		Count:    len(txns),
		Total:    decimal.Zero,
		Average:  decimal.Zero,
		Min:      decimal.Zero,
		Max:      decimal.Zero,
	}

	monthly := make([]MonthTotal, months)
	index := make(map[[2]int]int, months)
	y, m := year, month
	for i := range monthly {
		monthly[i] = MonthTotal{Year: y, Month: m, Total: decimal.Zero}
		index[[2]int{y, int(m)}] = i
		if m == time.December {
			y, m = y+1, time.January
		} else {
			m++
		}
	}

	for i, txn := range txns {
		analysis.Total = analysis.Total.Add(txn.Amount)
		if i == 0 || txn.Amount.LessThan(analysis.Min) {
			analysis.Min = txn.Amount
		}
		if i == 0 || txn.Amount.GreaterThan(analysis.Max) {
			analysis.Max = txn.Amount
		}
		if idx, ok := index[[2]int{txn.Date.Year(), int(txn.Date.Month())}]; ok {
			monthly[idx].Total = monthly[idx].Total.Add(txn.Amount)
			monthly[idx].Count++
		}
	}
	if len(txns) > 0 {
		analysis.Average = analysis.Total.Div(decimal.NewFromInt(int64(len(txns)))).Round(2)
	}

	analysis.Monthly = monthly
	analysis.TopMerchants = byMerchant(txns, analysis.Total, categoryTopMerchantLimit)
	analysis.Trend, analysis.TrendChange = trendOf(monthly)
	return analysis, nil
}

// trendOf compares the average of the first half of the months with the
// second half.
func trendOf(monthly []MonthTotal) (Trend, decimal.Decimal) {
	if len(monthly) < 2 {
		return TrendStable, decimal.Zero
	}

	half := len(monthly) / 2
	avg := func(ms []MonthTotal) decimal.Decimal {
		total := decimal.Zero
		for _, m := range ms {
			total = total.Add(m.Total)
		}
		return total.Div(decimal.NewFromInt(int64(len(ms))))
	}

	first, second := avg(monthly[:half]), avg(monthly[half:])
	change := second.Sub(first).Round(2)
	if second.GreaterThan(first) {
		return TrendIncreasing, change
	}
	return TrendDecreasing, change
}

// SpendingTrends splits the last weeks*7 days into seven-day windows ending
// today. Weeks more than 20% above the average are flagged as unusual.
func (s *Service) SpendingTrends(ctx context.Context, session model.Session, weeks int) (SpendingTrends, error) {
	if err := session.Require(); err != nil {
		return SpendingTrends{}, err
	}
	if weeks <= 0 {
		return SpendingTrends{}, common.Validationf("weeks must be positive")
	}

	today := s.today()
	start := today.AddDate(0, 0, -7*weeks+1)
	txns, err := s.search(ctx, session, model.TransactionFilter{
		StartDate: &start,
		EndDate:   &today,
		Type:      model.TypeExpense,
	})
	if err != nil {
		return SpendingTrends{}, err
	}

	weekly := make([]WeekTotal, weeks)
	for i := range weekly {
		// weekly[0] is the oldest window.
		end := today.AddDate(0, 0, -7*(weeks-1-i))
		weekly[i] = WeekTotal{Start: end.AddDate(0, 0, -6), End: end, Total: decimal.Zero}
	}
	for _, txn := range txns {
		back := model.DaysBetween(txn.Date, today) / 7
		if back < 0 || back >= weeks {
			continue
		}
		w := &weekly[weeks-1-back]
		w.Total = w.Total.Add(txn.Amount)
		w.Count++
	}

	trends := SpendingTrends{Weeks: weeks, Weekly: weekly}
	total := decimal.Zero
	for i := range weekly {
		weekly[i].AvgPerDay = weekly[i].Total.Div(seven).Round(2)
		total = total.Add(weekly[i].Total)
	}
	trends.AverageWeekly = total.Div(decimal.NewFromInt(int64(weeks))).Round(2)

	threshold := trends.AverageWeekly.Mul(unusualFactor)
	for _, w := range weekly {
		if w.Total.GreaterThan(threshold) {
			trends.Unusual = append(trends.Unusual, w)
		}
	}
	return trends, nil
}

// LastWeekSpending is the expense total for the seven days ending today.
func (s *Service) LastWeekSpending(ctx context.Context, session model.Session) (decimal.Decimal, error) {
	trends, err := s.SpendingTrends(ctx, session, 1)
	if err != nil {
		return decimal.Zero, err
	}
	return trends.Weekly[0].Total, nil
}

// AccountSummary reports net worth and the last 30 days of activity for each
// active account, richest first.
func (s *Service) AccountSummary(ctx context.Context, session model.Session) (AccountSummary, error) {
	if err := session.Require(); err != nil {
		return AccountSummary{}, err
	}

	accounts, err := s.store.ListAccounts(ctx, session.UserID, true)
	if err != nil {
		return AccountSummary{}, fmt.Errorf("failed to load accounts: %w", err)
	}

	today := s.today()
	start := today.AddDate(0, 0, -activityWindowDays)
	summary := AccountSummary{NetWorth: decimal.Zero, AccountCount: len(accounts)}

	for _, acc := range accounts {
		summary.NetWorth = summary.NetWorth.Add(acc.Balance)

		id := acc.ID
		txns, err := s.search(ctx, session, model.TransactionFilter{StartDate: &start, EndDate: &today, AccountID: &id})
		if err != nil {
			return AccountSummary{}, err
		}

		activity := AccountActivity{Account: acc, Income: decimal.Zero, Expenses: decimal.Zero, Count: len(txns)}
		for _, txn := range txns {
			switch txn.Type {
			case model.TypeIncome:
				activity.Income = activity.Income.Add(txn.Amount)
			case model.TypeExpense:
				activity.Expenses = activity.Expenses.Add(txn.Amount)
			}
		}
		activity.Net = activity.Income.Sub(activity.Expenses)
		summary.Accounts = append(summary.Accounts, activity)
	}

	sort.SliceStable(summary.Accounts, func(i, j int) bool {
		return summary.Accounts[i].Account.Balance.GreaterThan(summary.Accounts[j].Account.Balance)
	})
	return summary, nil
}

// TopCategories ranks expense categories over the last days days.
func (s *Service) TopCategories(ctx context.Context, session model.Session, limit, days int) ([]CategoryAmount, error) {
	if err := session.Require(); err != nil {
		return nil, err
	}
	if days <= 0 {
		return nil, common.Validationf("days must be positive")
	}

	today := s.today()
	start := today.AddDate(0, 0, -days)
	txns, err := s.search(ctx, session, model.TransactionFilter{StartDate: &start, EndDate: &today, Type: model.TypeExpense})
	if err != nil {
		return nil, err
	}

	total := decimal.Zero
	for _, txn := range txns {
		total = total.Add(txn.Amount)
	}
	return byCategory(txns, total, limit), nil
}

// byCategory groups expenses by category, largest first. A limit of zero
// keeps every category.
func byCategory(txns []model.Transaction, total decimal.Decimal, limit int) []CategoryAmount {
	totals := make(map[string]*CategoryAmount)
	for _, txn := range txns {
		name := txn.Category
		if name == "" {
			name = model.UncategorizedCategory
		}
		c, ok := totals[name]
		if !ok {
			c = &CategoryAmount{Category: name, Amount: decimal.Zero}
			totals[name] = c
		}
		c.Amount = c.Amount.Add(txn.Amount)
		c.Count++
	}

	out := make([]CategoryAmount, 0, len(totals))
	for _, c := range totals {
		c.Percentage = model.Percent(c.Amount, total)
		out = append(out, *c)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Amount.Equal(out[j].Amount) {
			return out[i].Amount.GreaterThan(out[j].Amount)
		}
		return out[i].Category < out[j].Category
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

func byMerchant(txns []model.Transaction, total decimal.Decimal, limit int) []MerchantAmount {
	totals := make(map[string]decimal.Decimal)
	for _, txn := range txns {
		name := txn.Merchant
		if name == "" {
			name = unknownMerchant
		}
		totals[name] = totals[name].Add(txn.Amount)
	}

	out := make([]MerchantAmount, 0, len(totals))
	for name, amount := range totals {
		out = append(out, MerchantAmount{Merchant: name, Amount: amount, Percentage: model.Percent(amount, total)})
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Amount.Equal(out[j].Amount) {
			return out[i].Amount.GreaterThan(out[j].Amount)
		}
		return out[i].Merchant < out[j].Merchant
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}
