package ledger

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

var today = testutil.Day(2025, time.March, 15)

func newService(t *testing.T) (*Service, *testutil.TestDB) {
	t.Helper()
	db := testutil.SetupTestDB(t)
	return NewService(db.Storage).WithClock(testutil.Clock(today)), db
}

func TestService_CreateAccount(t *testing.T) {
	svc, db := newService(t)
	ctx := context.Background()

	acc, err := svc.CreateAccount(ctx, db.Session, NewAccount{
		Name:           " Checking ",
		Type:           "Checking",
		InitialBalance: testutil.Dec("250.50"),
		Institution:    "Credit Union",
	})
	require.NoError(t, err)
	assert.Equal(t, "Checking", acc.Name)
	assert.Equal(t, model.AccountChecking, acc.Type)
	assert.Equal(t, "USD", acc.Currency)
	assert.True(t, acc.IsActive)

	tests := []struct {
		name string
		in   NewAccount
	}{
		{name: "duplicate name", in: NewAccount{Name: "Checking", Type: model.AccountSavings}},
		{name: "bad type", in: NewAccount{Name: "Brokerage", Type: "stocks"}},
		{name: "blank name", in: NewAccount{Name: " ", Type: model.AccountSavings}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.CreateAccount(ctx, db.Session, tt.in)
			assert.ErrorIs(t, err, common.ErrValidation)
		})
	}

	other := db.User("other")
	_, err = svc.CreateAccount(ctx, other, NewAccount{Name: "Checking", Type: model.AccountChecking})
	require.NoError(t, err, "names are unique per user only")

	_, err = svc.CreateAccount(ctx, model.Session{}, NewAccount{Name: "X", Type: model.AccountChecking})
	assert.ErrorIs(t, err, common.ErrUnauthorized)
}

func TestService_AccountLifecycle(t *testing.T) {
	svc, db := newService(t)
	ctx := context.Background()

	checking := db.Account("Checking", model.AccountChecking, "100")
	savings := db.Account("Savings", model.AccountSavings, "900")

	total, err := svc.TotalBalance(ctx, db.Session)
	require.NoError(t, err)
	assert.True(t, total.Equal(testutil.Dec("1000")))

	taken := "Savings"
	_, err = svc.UpdateAccount(ctx, db.Session, checking.ID, model.AccountUpdate{Name: &taken})
	assert.ErrorIs(t, err, common.ErrValidation)

	renamed := "Everyday"
	updated, err := svc.UpdateAccount(ctx, db.Session, checking.ID, model.AccountUpdate{Name: &renamed})
	require.NoError(t, err)
	assert.Equal(t, "Everyday", updated.Name)

	got, err := svc.GetAccountByName(ctx, db.Session, "Everyday")
	require.NoError(t, err)
	assert.Equal(t, checking.ID, got.ID)

	reset, err := svc.SetBalance(ctx, db.Session, checking.ID, testutil.Dec("42.10"))
	require.NoError(t, err)
	assert.True(t, reset.Balance.Equal(testutil.Dec("42.10")))

	require.NoError(t, svc.CloseAccount(ctx, db.Session, savings.ID))
	active, err := svc.ListAccounts(ctx, db.Session, true)
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, checking.ID, active[0].ID)

	all, err := svc.ListAccounts(ctx, db.Session, false)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	total, err = svc.TotalBalance(ctx, db.Session)
	require.NoError(t, err)
	assert.True(t, total.Equal(testutil.Dec("42.10")), "closed accounts are excluded")

	_, err = svc.GetAccount(ctx, db.User("mallory"), checking.ID)
	assert.ErrorIs(t, err, common.ErrNotFound)
}
