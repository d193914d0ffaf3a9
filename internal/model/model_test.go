package model

import (
	"testing"
	"time"

	"github.com/Veraticus/spice-ledger/internal/common"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseAmount(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    string
		wantErr bool
	}{
		{name: "plain", input: "12.50", want: "12.5"},
		{name: "dollar sign", input: "$80", want: "80"},
		{name: "thousands separator", input: "$1,234.56", want: "1234.56"},
		{name: "whitespace", input: "  7 ", want: "7"},
		{name: "empty", input: "", wantErr: true},
		{name: "garbage", input: "abc", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseAmount(tt.input)
			if tt.wantErr {
				require.Error(t, err)
				assert.ErrorIs(t, err, common.ErrValidation)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got.String())
		})
	}
}

func TestFormatMoney(t *testing.T) {
	assert.Equal(t, "$15.99", FormatMoney(decimal.RequireFromString("15.99")))
	assert.Equal(t, "$80.00", FormatMoney(decimal.NewFromInt(80)))
	assert.Equal(t, "-$20.50", FormatMoney(decimal.RequireFromString("-20.5")))
}

func TestPercent(t *testing.T) {
	assert.Equal(t, "93.33", Percent(decimal.NewFromInt(280), decimal.NewFromInt(300)).String())
	assert.True(t, Percent(decimal.NewFromInt(10), decimal.Zero).IsZero())
}

func TestDateHelpers(t *testing.T) {
	loc := time.FixedZone("EST", -5*3600)
	assert.Equal(t, Date(2024, time.March, 10), Day(time.Date(2024, time.March, 10, 23, 30, 0, 0, loc)))
	assert.Equal(t, 29, DaysIn(2024, time.February))
	assert.Equal(t, 28, DaysIn(2023, time.February))
	assert.Equal(t, 31, DaysBetween(Date(2024, time.January, 1), Date(2024, time.February, 1)))

	start, end := MonthRange(2024, time.February)
	assert.Equal(t, Date(2024, time.February, 1), start)
	assert.Equal(t, Date(2024, time.February, 29), end)

	y, m := PreviousMonth(2024, time.January)
	assert.Equal(t, 2023, y)
	assert.Equal(t, time.December, m)
}

func TestParseMonth(t *testing.T) {
	now := Date(2025, time.June, 15)
	tests := []struct {
		input     string
		wantYear  int
		wantMonth time.Month
		wantErr   bool
	}{
		{input: "", wantYear: 2025, wantMonth: time.June},
		{input: "2024-11", wantYear: 2024, wantMonth: time.November},
		{input: "03", wantYear: 2025, wantMonth: time.March},
		{input: "3", wantYear: 2025, wantMonth: time.March},
		{input: "13", wantErr: true},
		{input: "soon", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			y, m, err := ParseMonth(tt.input, now)
			if tt.wantErr {
				assert.ErrorIs(t, err, common.ErrValidation)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantYear, y)
			assert.Equal(t, tt.wantMonth, m)
		})
	}
}

func TestBalanceEffect(t *testing.T) {
	to := int64(2)
	pair := int64(10)
	amount := decimal.NewFromInt(50)

	tests := []struct {
		name string
		txn  Transaction
		want int64
	}{
		{name: "expense", txn: Transaction{Type: TypeExpense, Amount: amount}, want: -50},
		{name: "income", txn: Transaction{Type: TypeIncome, Amount: amount}, want: 50},
		{name: "outgoing transfer", txn: Transaction{Type: TypeTransfer, Amount: amount, ToAccountID: &to}, want: -50},
		{name: "incoming transfer", txn: Transaction{Type: TypeTransfer, Amount: amount, TransferPairID: &pair}, want: 50},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.True(t, decimal.NewFromInt(tt.want).Equal(tt.txn.BalanceEffect()))
		})
	}
}

func TestGenerateHash(t *testing.T) {
	date := Date(2024, time.May, 1)
	a := GenerateHash(1, date, decimal.RequireFromString("10.00"), "Netflix", "")
	b := GenerateHash(1, date, decimal.RequireFromString("10"), " netflix ", "")
	c := GenerateHash(2, date, decimal.RequireFromString("10"), "Netflix", "")

	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
	assert.Len(t, a, 64)
}

func TestTransactionDraftValidate(t *testing.T) {
	valid := TransactionDraft{AccountID: 1, Amount: decimal.NewFromInt(5), Type: TypeExpense}
	require.NoError(t, valid.Validate())

	zero := valid
	zero.Amount = decimal.Zero
	assert.ErrorIs(t, zero.Validate(), common.ErrValidation)

	transfer := valid
	transfer.Type = TypeTransfer
	assert.ErrorIs(t, transfer.Validate(), common.ErrValidation)

	noAccount := valid
	noAccount.AccountID = 0
	assert.ErrorIs(t, noAccount.Validate(), common.ErrValidation)
}

func TestTransactionUpdateApply(t *testing.T) {
	txn := Transaction{Merchant: "Old", Category: "Food", Amount: decimal.NewFromInt(5)}
	merchant := "New"
	amount := decimal.NewFromInt(9)

	update := TransactionUpdate{Merchant: &merchant, Amount: &amount}
	assert.False(t, update.Empty())
	assert.True(t, update.ChangesBalance())
	update.Apply(&txn)

	assert.Equal(t, "New", txn.Merchant)
	assert.Equal(t, "Food", txn.Category)
	assert.True(t, amount.Equal(txn.Amount))
	assert.True(t, TransactionUpdate{}.Empty())
}

func TestRecurringChargeUpdate(t *testing.T) {
	notes := "streaming"
	assert.False(t, RecurringChargeUpdate{Notes: &notes}.AffectsSchedule())

	freq := FrequencyAnnual
	update := RecurringChargeUpdate{Frequency: &freq}
	assert.True(t, update.AffectsSchedule())

	charge := RecurringCharge{Frequency: FrequencyMonthly}
	update.Apply(&charge)
	assert.Equal(t, FrequencyAnnual, charge.Frequency)
}

func TestParseEnums(t *testing.T) {
	f, err := ParseFrequency("Yearly")
	require.NoError(t, err)
	assert.Equal(t, FrequencyAnnual, f)

	_, err = ParseFrequency("daily")
	assert.ErrorIs(t, err, common.ErrValidation)

	at, err := ParseAccountType("Credit_Card")
	require.NoError(t, err)
	assert.Equal(t, AccountCreditCard, at)

	_, err = ParseAccountType("mattress")
	assert.ErrorIs(t, err, common.ErrValidation)

	_, err = ParseGoalStatus("done")
	assert.ErrorIs(t, err, common.ErrValidation)

	st, err := ParsePurchaseStatus(" Cancelled ")
	require.NoError(t, err)
	assert.Equal(t, PurchaseCancelled, st)
	_, err = ParsePurchaseStatus("bought")
	assert.ErrorIs(t, err, common.ErrValidation)

	sort, err := ParsePurchaseSort("deadline")
	require.NoError(t, err)
	assert.Equal(t, SortByDeadline, sort)
	_, err = ParsePurchaseSort("name")
	assert.ErrorIs(t, err, common.ErrValidation)

	_, err = NormalizeTagName("a,b")
	assert.ErrorIs(t, err, common.ErrValidation)

	assert.Equal(t, "Want/Luxury", PriorityLabel(5))
	assert.Equal(t, "Unknown", PriorityLabel(9))
}

func TestBudgetValidation(t *testing.T) {
	assert.NoError(t, ValidateBudget(decimal.NewFromInt(300), DefaultAlertThreshold))
	assert.NoError(t, ValidateBudget(decimal.Zero, decimal.NewFromInt(1)))
	assert.ErrorIs(t, ValidateBudget(decimal.NewFromInt(-1), DefaultAlertThreshold), common.ErrValidation)
	assert.ErrorIs(t, ValidateBudget(decimal.NewFromInt(10), decimal.Zero), common.ErrValidation)
	assert.ErrorIs(t, ValidateBudget(decimal.NewFromInt(10), decimal.RequireFromString("1.5")), common.ErrValidation)
}

func TestSessionRequire(t *testing.T) {
	assert.ErrorIs(t, Session{}.Require(), common.ErrUnauthorized)
	assert.NoError(t, Session{UserID: 1}.Require())

	now := Date(2025, time.January, 2)
	assert.True(t, Session{UserID: 1, ExpiresAt: Date(2025, time.January, 1)}.Expired(now))
	assert.False(t, Session{UserID: 1}.Expired(now))
}

func TestCleanMerchant(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"STARBUCKS", "Starbucks"},
		{"POS PURCHASE WHOLE FOODS MARKET", "Whole Foods Market"},
		{"PURCHASE AUTHORIZED ON 03/14 SHELL OIL 57442145", "Shell Oil"},
		{"ACME WIDGETS INC", "Acme Widgets"},
		{"Blue Bottle Coffee Co LLC", "Blue Bottle Coffee"},
		{"  trader joe's  ", "Trader Joe's"},
		{"AMAZON 123", "Amazon 123"},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.want, CleanMerchant(tt.input))
		})
	}
}
