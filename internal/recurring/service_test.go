package recurring

import (
	"context"
	"testing"
	"time"

	"github.com/Veraticus/spice-ledger/internal/common"
	"github.com/Veraticus/spice-ledger/internal/model"
	"github.com/Veraticus/spice-ledger/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupService(t *testing.T) (*Service, *testutil.TestDB) {
	t.Helper()
	db := testutil.SetupTestDB(t)
	svc := NewService(db.Storage).WithClock(testutil.Clock(testutil.Day(2025, time.June, 10)))
	return svc, db
}

func TestService_DetectAndConfirm(t *testing.T) {
	svc, db := setupService(t)
	ctx := context.Background()
	checking := db.Account("Checking", model.AccountChecking, "1000")

	for m := time.January; m <= time.May; m++ {
		db.Expense(checking.ID, testutil.Day(2025, m, 15), "Netflix", "Entertainment", "15.99")
		db.Expense(checking.ID, testutil.Day(2025, m, 3), "Gym", "Health", "40.00")
	}
	db.Expense(checking.ID, testutil.Day(2025, time.March, 9), "Hardware Store", "Home", "83.10")

	candidates, err := svc.Detect(ctx, db.Session, DefaultMinOccurrences)
	require.NoError(t, err)
	require.Len(t, candidates, 2)
	assert.Equal(t, "Gym", candidates[0].Merchant)
	assert.Equal(t, "Netflix", candidates[1].Merchant)

	charge, err := svc.Confirm(ctx, db.Session, candidates[1])
	require.NoError(t, err)
	assert.Equal(t, model.RecurringActive, charge.Status)
	require.NotNil(t, charge.NextExpectedDate)
	assert.Equal(t, testutil.Day(2025, time.June, 15), *charge.NextExpectedDate)
	assert.Equal(t, 5, charge.OccurrenceCount)

	// Netflix is tracked now, so only Gym is proposed.
	candidates, err = svc.Detect(ctx, db.Session, DefaultMinOccurrences)
	require.NoError(t, err)
	require.Len(t, candidates, 1)
	assert.Equal(t, "Gym", candidates[0].Merchant)

	// A cancelled charge no longer hides its merchant.
	_, err = svc.Cancel(ctx, db.Session, charge.ID)
	require.NoError(t, err)
	candidates, err = svc.Detect(ctx, db.Session, DefaultMinOccurrences)
	require.NoError(t, err)
	assert.Len(t, candidates, 2)
}

func TestService_DetectIsScopedToUser(t *testing.T) {
	svc, db := setupService(t)
	other := db.User("other")
	account := db.AccountFor(other, "Other Checking", model.AccountChecking, "0")

	for m := time.January; m <= time.March; m++ {
		txn := &model.Transaction{
			UserID: other.UserID, AccountID: account.ID, Date: testutil.Day(2025, m, 1),
			Amount: testutil.Dec("9.99"), Merchant: "Hulu", Type: model.TypeExpense,
		}
		require.NoError(t, db.Storage.CreateTransaction(context.Background(), txn))
	}

	candidates, err := svc.Detect(context.Background(), db.Session, 2)
	require.NoError(t, err)
	assert.Empty(t, candidates)
}

func TestService_Create(t *testing.T) {
	svc, db := setupService(t)
	ctx := context.Background()
	dayOf := 5

	tests := []struct {
		name    string
		in      NewCharge
		wantErr error
		check   func(t *testing.T, c *model.RecurringCharge)
	}{
		{
			name: "monthly with day of period",
			in:   NewCharge{Merchant: "Rent", TypicalAmount: testutil.Dec("1500"), Frequency: "monthly", DayOfPeriod: &dayOf},
			check: func(t *testing.T, c *model.RecurringCharge) {
				assert.Equal(t, testutil.Day(2025, time.June, 10), c.LastSeen)
				assert.Equal(t, testutil.Day(2025, time.July, 5), *c.NextExpectedDate)
				assert.Equal(t, 1, c.OccurrenceCount)
				assert.InDelta(t, 1.0, c.Confidence, 1e-9)
				assert.Equal(t, model.UncategorizedCategory, c.Category)
			},
		},
		{
			name: "yearly alias",
			in:   NewCharge{Merchant: "Insurance", TypicalAmount: testutil.Dec("600"), Frequency: "yearly", Category: "Insurance"},
			check: func(t *testing.T, c *model.RecurringCharge) {
				assert.Equal(t, model.FrequencyAnnual, c.Frequency)
				assert.Equal(t, testutil.Day(2026, time.June, 10), *c.NextExpectedDate)
			},
		},
		{name: "bad frequency", in: NewCharge{Merchant: "X", TypicalAmount: testutil.Dec("1"), Frequency: "daily"}, wantErr: common.ErrValidation},
		{name: "zero amount", in: NewCharge{Merchant: "X", TypicalAmount: testutil.Dec("0"), Frequency: "weekly"}, wantErr: common.ErrValidation},
		{name: "no merchant", in: NewCharge{TypicalAmount: testutil.Dec("1"), Frequency: "weekly"}, wantErr: common.ErrValidation},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			charge, err := svc.Create(ctx, db.Session, tt.in)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, model.RecurringActive, charge.Status)
			tt.check(t, charge)
		})
	}
}

func TestService_StatusTransitions(t *testing.T) {
	svc, db := setupService(t)
	ctx := context.Background()

	charge, err := svc.Create(ctx, db.Session, NewCharge{Merchant: "Spotify", TypicalAmount: testutil.Dec("10.99"), Frequency: model.FrequencyMonthly})
	require.NoError(t, err)

	_, err = svc.Resume(ctx, db.Session, charge.ID)
	require.ErrorIs(t, err, common.ErrValidation, "active charges cannot be resumed")

	paused, err := svc.Pause(ctx, db.Session, charge.ID)
	require.NoError(t, err)
	assert.Equal(t, model.RecurringPaused, paused.Status)

	_, err = svc.Pause(ctx, db.Session, charge.ID)
	require.ErrorIs(t, err, common.ErrValidation)

	resumed, err := svc.Resume(ctx, db.Session, charge.ID)
	require.NoError(t, err)
	assert.Equal(t, model.RecurringActive, resumed.Status)

	cancelled, err := svc.Cancel(ctx, db.Session, charge.ID)
	require.NoError(t, err)
	assert.Equal(t, model.RecurringCancelled, cancelled.Status)

	for _, op := range []func(context.Context, model.Session, int64) (*model.RecurringCharge, error){svc.Pause, svc.Resume, svc.Cancel} {
		_, err = op(ctx, db.Session, charge.ID)
		assert.ErrorIs(t, err, common.ErrValidation)
	}

	require.NoError(t, svc.Delete(ctx, db.Session, charge.ID))
	_, err = svc.Get(ctx, db.Session, charge.ID)
	assert.ErrorIs(t, err, common.ErrNotFound)
}

func TestService_Upcoming(t *testing.T) {
	svc, db := setupService(t)
	ctx := context.Background()
	today := testutil.Day(2025, time.June, 10)

	mk := func(merchant string, last time.Time, freq model.Frequency, amount string) *model.RecurringCharge {
		c, err := svc.Create(ctx, db.Session, NewCharge{Merchant: merchant, TypicalAmount: testutil.Dec(amount), Frequency: freq, FirstSeen: &last, LastSeen: &last})
		require.NoError(t, err)
		return c
	}

	mk("Overdue", today.AddDate(0, 0, -10), model.FrequencyWeekly, "5")
	mk("Soon", today.AddDate(0, 0, -4), model.FrequencyWeekly, "20")
	mk("Later", today.AddDate(0, 0, 20), model.FrequencyWeekly, "100")
	paused := mk("Paused", today.AddDate(0, 0, -5), model.FrequencyWeekly, "7")
	_, err := svc.Pause(ctx, db.Session, paused.ID)
	require.NoError(t, err)

	upcoming, err := svc.Upcoming(ctx, db.Session, 7)
	require.NoError(t, err)
	require.Len(t, upcoming, 2)
	assert.Equal(t, "Overdue", upcoming[0].Merchant)
	assert.Equal(t, "Soon", upcoming[1].Merchant)
	assert.Equal(t, testutil.Day(2025, time.June, 13), upcoming[1].DueDate)
	assert.True(t, UpcomingTotal(upcoming).Equal(testutil.Dec("25")))

	_, err = svc.Upcoming(ctx, db.Session, -1)
	assert.ErrorIs(t, err, common.ErrValidation)
}

func TestService_UpdateRecomputesSchedule(t *testing.T) {
	svc, db := setupService(t)
	ctx := context.Background()

	charge, err := svc.Create(ctx, db.Session, NewCharge{Merchant: "Phone", TypicalAmount: testutil.Dec("45"), Frequency: model.FrequencyMonthly})
	require.NoError(t, err)
	assert.Equal(t, testutil.Day(2025, time.July, 10), *charge.NextExpectedDate)

	weekly := model.FrequencyWeekly
	updated, err := svc.Update(ctx, db.Session, charge.ID, model.RecurringChargeUpdate{Frequency: &weekly})
	require.NoError(t, err)
	assert.Equal(t, testutil.Day(2025, time.June, 17), *updated.NextExpectedDate)

	notes := "family plan"
	updated, err = svc.Update(ctx, db.Session, charge.ID, model.RecurringChargeUpdate{Notes: &notes})
	require.NoError(t, err)
	assert.Equal(t, testutil.Day(2025, time.June, 17), *updated.NextExpectedDate)

	stored, err := svc.Get(ctx, db.Session, charge.ID)
	require.NoError(t, err)
	assert.Equal(t, "family plan", stored.Notes)
	assert.Equal(t, model.FrequencyWeekly, stored.Frequency)

	bad := model.Frequency("hourly")
	_, err = svc.Update(ctx, db.Session, charge.ID, model.RecurringChargeUpdate{Frequency: &bad})
	assert.ErrorIs(t, err, common.ErrValidation)
}

func TestService_RecordOccurrence(t *testing.T) {
	svc, db := setupService(t)
	ctx := context.Background()
	start := testutil.Day(2025, time.May, 1)

	charge, err := svc.Create(ctx, db.Session, NewCharge{Merchant: "Water", TypicalAmount: testutil.Dec("30"), Frequency: model.FrequencyMonthly, FirstSeen: &start, LastSeen: &start})
	require.NoError(t, err)

	amount := testutil.Dec("32.50")
	got, err := svc.RecordOccurrence(ctx, db.Session, charge.ID, testutil.Day(2025, time.June, 2), &amount)
	require.NoError(t, err)
	assert.Equal(t, 2, got.OccurrenceCount)
	assert.Equal(t, testutil.Day(2025, time.June, 2), got.LastSeen)
	assert.Equal(t, testutil.Day(2025, time.July, 2), *got.NextExpectedDate)
	assert.True(t, got.TypicalAmount.Equal(amount))

	// An older sighting counts but does not move last_seen back.
	got, err = svc.RecordOccurrence(ctx, db.Session, charge.ID, testutil.Day(2025, time.April, 1), nil)
	require.NoError(t, err)
	assert.Equal(t, 3, got.OccurrenceCount)
	assert.Equal(t, testutil.Day(2025, time.June, 2), got.LastSeen)
}

func TestService_GetByMerchantOrID(t *testing.T) {
	svc, db := setupService(t)
	ctx := context.Background()

	charge, err := svc.Create(ctx, db.Session, NewCharge{Merchant: "Netflix", TypicalAmount: testutil.Dec("15.99"), Frequency: model.FrequencyMonthly})
	require.NoError(t, err)

	byName, err := svc.GetByMerchantOrID(ctx, db.Session, "netflix")
	require.NoError(t, err)
	assert.Equal(t, charge.ID, byName.ID)

	byID, err := svc.GetByMerchantOrID(ctx, db.Session, "1")
	require.NoError(t, err)
	assert.Equal(t, charge.ID, byID.ID)

	_, err = svc.GetByMerchantOrID(ctx, db.Session, "Hulu")
	assert.ErrorIs(t, err, common.ErrNotFound)

	_, err = svc.List(ctx, model.Session{}, nil)
	assert.ErrorIs(t, err, common.ErrUnauthorized)
}
