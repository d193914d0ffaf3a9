package advisor

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/Veraticus/spice-ledger/internal/analytics"
	"github.com/Veraticus/spice-ledger/internal/budget"
	"github.com/Veraticus/spice-ledger/internal/common"
	"github.com/Veraticus/spice-ledger/internal/llm"
	"github.com/Veraticus/spice-ledger/internal/model"
	"github.com/Veraticus/spice-ledger/internal/recurring"
	"github.com/Veraticus/spice-ledger/internal/testutil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var today = testutil.Day(2025, time.March, 28)

type fixture struct {
	db      *testutil.TestDB
	gen     *llm.MockGenerator
	advisor *Advisor
}

func newFixture(t *testing.T, responses ...string) *fixture {
	t.Helper()
	db := testutil.SetupTestDB(t)
	clock := testutil.Clock(today)
	gen := llm.NewMockGenerator(responses...)
	adv := New(Deps{
		Accounts:  db.Storage,
		Budgets:   budget.NewService(db.Storage).WithClock(clock),
		Recurring: recurring.NewService(db.Storage).WithClock(clock),
		Spending:  analytics.NewService(db.Storage).WithClock(clock),
		Generator: gen,
	}).WithClock(clock).WithRetryOptions(common.RetryOptions{MaxAttempts: 2, InitialDelay: time.Millisecond, MaxDelay: time.Millisecond})
	return &fixture{db: db, gen: gen, advisor: adv}
}

func (f *fixture) seed(t *testing.T) {
	t.Helper()
	checking := f.db.Account("Checking", model.AccountChecking, "1000")
	f.db.Account("Savings", model.AccountSavings, "500")

	f.db.Budget("Food", "300")
	f.db.Expense(checking.ID, testutil.Day(2025, time.March, 2), "Grocer", "Food", "200")
	f.db.Expense(checking.ID, testutil.Day(2025, time.March, 25), "Cafe", "Food", "80")

	last := testutil.Day(2025, time.March, 1)
	day := 1
	_, err := recurring.NewService(f.db.Storage).WithClock(testutil.Clock(today)).Create(context.Background(), f.db.Session, recurring.NewCharge{
		Merchant:      "Netflix",
		TypicalAmount: testutil.Dec("15.99"),
		Frequency:     model.FrequencyMonthly,
		DayOfPeriod:   &day,
		FirstSeen:     &last,
		LastSeen:      &last,
	})
	require.NoError(t, err)
}

func TestExtractAmount(t *testing.T) {
	tests := []struct {
		name     string
		question string
		want     string
		wantErr  bool
	}{
		{name: "dollar sign", question: "Can I afford $80 dinner?", want: "80"},
		{name: "dollar sign with cents", question: "Can I buy a $49.99 game?", want: "49.99"},
		{name: "space after sign", question: "Should I spend $ 120 on shoes?", want: "120"},
		{name: "dollars word", question: "Is 200 dollars for concert tickets ok?", want: "200"},
		{name: "bucks case insensitive", question: "Can I spend 150 BUCKS", want: "150"},
		{name: "usd", question: "Can I spend 75 usd on a jacket", want: "75"},
		{name: "sign wins over word", question: "$30 or 40 dollars?", want: "30"},
		{name: "no amount", question: "Can I afford a new phone?", wantErr: true},
		{name: "bare number", question: "Can I buy 3 pizzas?", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ExtractAmount(tt.question)
			if tt.wantErr {
				assert.ErrorIs(t, err, common.ErrAmountNotFound)
				return
			}
			require.NoError(t, err)
			assert.True(t, got.Equal(testutil.Dec(tt.want)), "got %s", got)
		})
	}
}

func TestParseDecision(t *testing.T) {
	tests := []struct {
		name      string
		response  string
		verdict   Verdict
		reasoning string
	}{
		{
			name:      "well formed",
			response:  "DECISION: YES\nREASONING: You have plenty of room in your budget.",
			verdict:   VerdictYes,
			reasoning: "You have plenty of room in your budget.",
		},
		{
			name:      "lowercase",
			response:  "decision: no\nreasoning: Rent is due tomorrow.",
			verdict:   VerdictNo,
			reasoning: "Rent is due tomorrow.",
		},
		{
			name:      "reasoning stops at blank line",
			response:  "DECISION: MAYBE\nREASONING: It is tight.\nWatch groceries.\n\nExtra notes here.",
			verdict:   VerdictMaybe,
			reasoning: "It is tight.\nWatch groceries.",
		},
		{
			name:      "missing decision",
			response:  "REASONING: Hard to say.",
			verdict:   VerdictMaybe,
			reasoning: "Hard to say.",
		},
		{
			name:      "label mid sentence is ignored",
			response:  "My decision: YES would be risky.",
			verdict:   VerdictMaybe,
			reasoning: "My decision: YES would be risky.",
		},
		{
			name:      "unstructured",
			response:  "  I think you should wait until payday.  ",
			verdict:   VerdictMaybe,
			reasoning: "I think you should wait until payday.",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := ParseDecision(tt.response)
			assert.Equal(t, tt.verdict, d.Verdict)
			assert.Equal(t, tt.reasoning, d.Reasoning)
		})
	}
}

func TestAdvisor_Assess(t *testing.T) {
	f := newFixture(t, "DECISION: MAYBE\nREASONING: Food budget is nearly used up.")
	f.seed(t)

	got, err := f.advisor.Assess(context.Background(), f.db.Session, "Can I afford $80 dinner?")
	require.NoError(t, err)

	assert.Equal(t, VerdictMaybe, got.Decision.Verdict)
	assert.Equal(t, "Food budget is nearly used up.", got.Decision.Reasoning)
	assert.True(t, got.Amount.Equal(testutil.Dec("80")))

	c := got.Context
	assert.Empty(t, c.Degraded)
	assert.True(t, c.TotalBalance.Equal(testutil.Dec("1500")))
	assert.Equal(t, 2, c.AccountCount)
	require.Len(t, c.Budgets, 1)
	assert.True(t, c.Budgets[0].Percentage.Equal(testutil.Dec("93.33")))
	require.Len(t, c.Upcoming, 1)
	assert.Equal(t, "Netflix", c.Upcoming[0].Merchant)
	assert.True(t, c.UpcomingTotal.Equal(testutil.Dec("15.99")))
	assert.True(t, c.LastWeekSpending.Equal(testutil.Dec("80")))

	require.Equal(t, 1, f.gen.Calls())
	assert.Equal(t, decisionMaxTokens, f.gen.MaxTokens[0])

	prompt := f.gen.LastPrompt()
	for _, want := range []string{
		"USER QUESTION: Can I afford $80 dinner?",
		"PURCHASE AMOUNT: $80.00",
		"- Total Account Balance: $1500.00",
		"- Active Accounts: 2",
		"  - Food: $280.00 of $300.00 spent (93.3%)",
		"    Remaining: $20.00",
		"UPCOMING RECURRING CHARGES (Next 7 Days): $15.99",
		"  - Netflix: $15.99 on 2025-04-01",
		"RECENT SPENDING (Last 7 Days): $80.00",
		"DECISION: [YES/MAYBE/NO]",
	} {
		assert.Contains(t, prompt, want)
	}
}

func TestAdvisor_AssessWithoutData(t *testing.T) {
	f := newFixture(t, "DECISION: YES\nREASONING: Fine.")

	got, err := f.advisor.Assess(context.Background(), f.db.Session, "Can I spend 20 dollars?")
	require.NoError(t, err)
	assert.Equal(t, VerdictYes, got.Decision.Verdict)
	assert.True(t, got.Context.TotalBalance.IsZero())
	assert.Contains(t, f.gen.LastPrompt(), "  - No budgets set")
	assert.Contains(t, f.gen.LastPrompt(), "UPCOMING RECURRING CHARGES (Next 7 Days): $0.00")
}

func TestAdvisor_AssessErrors(t *testing.T) {
	t.Run("no amount skips the model", func(t *testing.T) {
		f := newFixture(t, "DECISION: YES")
		_, err := f.advisor.Assess(context.Background(), f.db.Session, "Can I buy a boat?")
		assert.ErrorIs(t, err, common.ErrAmountNotFound)
		assert.Zero(t, f.gen.Calls())
	})

	t.Run("model failure is not retried", func(t *testing.T) {
		f := newFixture(t)
		f.gen.Err = errors.New("overloaded")
		_, err := f.advisor.Assess(context.Background(), f.db.Session, "Can I afford $10?")
		assert.ErrorIs(t, err, common.ErrRecommendationFailed)
		assert.Equal(t, 1, f.gen.Calls())
	})

	t.Run("anonymous session", func(t *testing.T) {
		f := newFixture(t, "DECISION: YES")
		_, err := f.advisor.Assess(context.Background(), model.Session{}, "Can I afford $10?")
		assert.ErrorIs(t, err, common.ErrUnauthorized)
	})
}

type failingAccounts struct{}

func (failingAccounts) ListAccounts(context.Context, int64, bool) ([]model.Account, error) {
	return nil, errors.New("database locked")
}

type failingSpending struct{ SpendingReporter }

func (failingSpending) LastWeekSpending(context.Context, model.Session) (decimal.Decimal, error) {
	return decimal.Zero, errors.New("timeout")
}

func TestAdvisor_GatherDegrades(t *testing.T) {
	f := newFixture(t, "DECISION: NO\nREASONING: Unknown balance.")
	f.seed(t)
	f.advisor.deps.Accounts = failingAccounts{}
	f.advisor.deps.Spending = failingSpending{f.advisor.deps.Spending}

	got, err := f.advisor.Assess(context.Background(), f.db.Session, "Can I afford $80 dinner?")
	require.NoError(t, err)

	c := got.Context
	assert.Equal(t, []string{"accounts", "trend"}, c.Degraded)
	assert.True(t, c.TotalBalance.IsZero())
	assert.Zero(t, c.AccountCount)
	assert.True(t, c.LastWeekSpending.IsZero())
	assert.Len(t, c.Budgets, 1, "budgets still load")
	assert.Len(t, c.Upcoming, 1, "upcoming charges still load")
	assert.Equal(t, VerdictNo, got.Decision.Verdict)
}

func TestFetch(t *testing.T) {
	ok := Ok(5)
	assert.False(t, ok.IsDegraded())
	assert.Equal(t, 5, ok.Value)

	bad := Degraded(0, errors.New("boom"))
	assert.True(t, bad.IsDegraded())
	assert.Zero(t, bad.Value)
}

func TestAdvisor_Insights(t *testing.T) {
	f := newFixture(t, "  1. Food is your largest category.  ")
	f.seed(t)
	checking, err := f.db.Storage.ListAccounts(context.Background(), f.db.Session.UserID, true)
	require.NoError(t, err)
	f.db.Income(checking[0].ID, testutil.Day(2025, time.March, 1), "Salary", "3000")

	text, err := f.advisor.Insights(context.Background(), f.db.Session, 2025, time.March)
	require.NoError(t, err)
	assert.Equal(t, "1. Food is your largest category.", text)

	prompt := f.gen.LastPrompt()
	assert.Contains(t, prompt, "Total Income: $3000.00")
	assert.Contains(t, prompt, "Total Expenses: $280.00")
	assert.Contains(t, prompt, "Savings: $2720.00")
	assert.Contains(t, prompt, "  - Food: $280.00\n")
	assert.Contains(t, prompt, "Budget Limits:\n  - Food: $300.00")
	assert.Contains(t, prompt, "Be concise and helpful.")
}

func TestAdvisor_InsightsFailure(t *testing.T) {
	f := newFixture(t)
	f.gen.Err = errors.New("service unavailable")

	text, err := f.advisor.Insights(context.Background(), f.db.Session, 2025, time.March)
	require.NoError(t, err)
	assert.Contains(t, text, "Unable to generate insights: ")
	assert.Contains(t, text, "service unavailable")
	assert.Equal(t, 2, f.gen.Calls(), "retried up to the attempt limit")
}
