// Package analytics builds read-only reports over a user's transactions and accounts.
package analytics

import (
	"time"

	"github.com/Veraticus/spice-ledger/internal/model"
	"github.com/shopspring/decimal"
)

// Trend is the direction of spending across a period.
type Trend string

// Trend directions.
const (
	TrendIncreasing Trend = "increasing"
	TrendDecreasing Trend = "decreasing"
	TrendStable     Trend = "stable"
)

// CategoryAmount is a category's share of spending.
type CategoryAmount struct {
	Amount     decimal.Decimal
	Percentage decimal.Decimal
	Category   string
	Count      int
}

// MerchantAmount is a merchant's share of spending.
type MerchantAmount struct {
	Amount     decimal.Decimal
	Percentage decimal.Decimal
	Merchant   string
}

// MonthlySummary totals one calendar month.
type MonthlySummary struct {
	TotalIncome      decimal.Decimal
	TotalExpenses    decimal.Decimal
	Savings          decimal.Decimal
	SavingsRate      decimal.Decimal
	Categories       []CategoryAmount
	TopMerchants     []MerchantAmount
	Month            time.Month
	Year             int
	TransactionCount int
}

// Comparison contrasts a month with the one before it.
type Comparison struct {
	Current          MonthlySummary
	Previous         MonthlySummary
	IncomeChange     decimal.Decimal
	IncomeChangePct  decimal.Decimal
	ExpenseChange    decimal.Decimal
	ExpenseChangePct decimal.Decimal
	SavingsChange    decimal.Decimal
}

// MonthTotal is one month of spending in a category.
type MonthTotal struct {
	Total decimal.Decimal
	Month time.Month
	Year  int
	Count int
}

// CategoryAnalysis describes spending in one category over several months.
type CategoryAnalysis struct {
	Total        decimal.Decimal
	Average      decimal.Decimal
	Min          decimal.Decimal
	Max          decimal.Decimal
	TrendChange  decimal.Decimal
	Category     string
	Trend        Trend
	Monthly      []MonthTotal
	TopMerchants []MerchantAmount
	Months       int
	Count        int
}

// WeekTotal is spending in a seven-day window ending on End.
type WeekTotal struct {
	Start     time.Time
	End       time.Time
	Total     decimal.Decimal
	AvgPerDay decimal.Decimal
	Count     int
}

// SpendingTrends is a run of consecutive weeks, oldest first.
type SpendingTrends struct {
	AverageWeekly decimal.Decimal
	Weekly        []WeekTotal
	Unusual       []WeekTotal
	Weeks         int
}

// AccountActivity is an account with its recent income and spending.
type AccountActivity struct {
	Account  model.Account
	Income   decimal.Decimal
	Expenses decimal.Decimal
	Net      decimal.Decimal
	Count    int
}

// AccountSummary covers all active accounts.
type AccountSummary struct {
	NetWorth     decimal.Decimal
	Accounts     []AccountActivity
	AccountCount int
}
