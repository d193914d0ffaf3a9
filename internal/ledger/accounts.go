package ledger

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/Veraticus/spice-ledger/internal/common"
	"github.com/Veraticus/spice-ledger/internal/model"
	"github.com/shopspring/decimal"
)

// NewAccount describes an account to open.
type NewAccount struct {
	InitialBalance decimal.Decimal
	Name           string
	Type           model.AccountType
	Institution    string
	Currency       string
}

// CreateAccount opens an account. Names are unique per user.
func (s *Service) CreateAccount(ctx context.Context, session model.Session, in NewAccount) (*model.Account, error) {
	if err := session.Require(); err != nil {
		return nil, err
	}

	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, common.Validationf("account name is required")
	}
	accountType, err := model.ParseAccountType(string(in.Type))
	if err != nil {
		return nil, err
	}
	if _, err := s.storage.GetAccountByName(ctx, session.UserID, name); err == nil {
		return nil, common.Validationf("account %q already exists", name)
	} else if !errors.Is(err, common.ErrNotFound) {
		return nil, fmt.Errorf("failed to check account name: %w", err)
	}

	currency := strings.ToUpper(strings.TrimSpace(in.Currency))
	if currency == "" {
		currency = "USD"
	}
	account := &model.Account{
		UserID:      session.UserID,
		Name:        name,
		Type:        accountType,
		Institution: strings.TrimSpace(in.Institution),
		Currency:    currency,
		Balance:     in.InitialBalance,
		IsActive:    true,
	}
	if err := s.storage.CreateAccount(ctx, account); err != nil {
		return nil, fmt.Errorf("failed to create account: %w", err)
	}
	s.logger.Info("Created account", "name", name, "type", accountType)
	return account, nil
}

// GetAccount returns one account.
func (s *Service) GetAccount(ctx context.Context, session model.Session, id int64) (*model.Account, error) {
	if err := session.Require(); err != nil {
		return nil, err
	}
	return s.storage.GetAccount(ctx, session.UserID, id)
}

// GetAccountByName returns the account with exactly this name.
func (s *Service) GetAccountByName(ctx context.Context, session model.Session, name string) (*model.Account, error) {
	if err := session.Require(); err != nil {
		return nil, err
	}
	return s.storage.GetAccountByName(ctx, session.UserID, strings.TrimSpace(name))
}

// ListAccounts lists accounts by name.
func (s *Service) ListAccounts(ctx context.Context, session model.Session, activeOnly bool) ([]model.Account, error) {
	if err := session.Require(); err != nil {
		return nil, err
	}
	return s.storage.ListAccounts(ctx, session.UserID, activeOnly)
}

// UpdateAccount changes descriptive fields. Renaming onto another account's
// name is rejected.
func (s *Service) UpdateAccount(ctx context.Context, session model.Session, id int64, update model.AccountUpdate) (*model.Account, error) {
	if err := session.Require(); err != nil {
		return nil, err
	}
	account, err := s.storage.GetAccount(ctx, session.UserID, id)
	if err != nil {
		return nil, err
	}

	if update.Name != nil {
		name := strings.TrimSpace(*update.Name)
		if name == "" {
			return nil, common.Validationf("account name is required")
		}
		if other, err := s.storage.GetAccountByName(ctx, session.UserID, name); err == nil && other.ID != id {
			return nil, common.Validationf("account %q already exists", name)
		}
		update.Name = &name
	}
	if update.Type != nil {
		t, err := model.ParseAccountType(string(*update.Type))
		if err != nil {
			return nil, err
		}
		update.Type = &t
	}

	update.Apply(account)
	if err := s.storage.UpdateAccount(ctx, account); err != nil {
		return nil, fmt.Errorf("failed to update account: %w", err)
	}
	return account, nil
}

// SetBalance overwrites an account's balance, for reconciling with a statement.
func (s *Service) SetBalance(ctx context.Context, session model.Session, id int64, balance decimal.Decimal) (*model.Account, error) {
	if err := session.Require(); err != nil {
		return nil, err
	}
	if err := s.storage.SetAccountBalance(ctx, session.UserID, id, balance); err != nil {
		return nil, err
	}
	s.logger.Info("Balance reset", "account_id", id, "balance", balance.StringFixed(2))
	return s.storage.GetAccount(ctx, session.UserID, id)
}

// CloseAccount deactivates an account. Its history is kept.
func (s *Service) CloseAccount(ctx context.Context, session model.Session, id int64) error {
	inactive := false
	_, err := s.UpdateAccount(ctx, session, id, model.AccountUpdate{IsActive: &inactive})
	return err
}

// TotalBalance sums the balances of active accounts.
func (s *Service) TotalBalance(ctx context.Context, session model.Session) (decimal.Decimal, error) {
	accounts, err := s.ListAccounts(ctx, session, true)
	if err != nil {
		return decimal.Zero, err
	}
	total := decimal.Zero
	for _, a := range accounts {
		total = total.Add(a.Balance)
	}
	return total, nil
}
