package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/Veraticus/spice-ledger/internal/common"
	"github.com/Veraticus/spice-ledger/internal/model"
	"github.com/shopspring/decimal"
)

const accountColumns = `id, user_id, name, type, institution, balance, currency, is_active, created_at`

func scanAccount(row rowScanner) (*model.Account, error) {
	var (
		account     model.Account
		institution sql.NullString
	)
	if err := row.Scan(&account.ID, &account.UserID, &account.Name, &account.Type, &institution,
		&account.Balance, &account.Currency, &account.IsActive, &account.CreatedAt); err != nil {
		return nil, err
	}
	account.Institution = institution.String
	return &account, nil
}

// CreateAccount inserts an account and sets its ID.
func (s *queries) CreateAccount(ctx context.Context, account *model.Account) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if account == nil {
		return fmt.Errorf("%w: account", ErrNilParameter)
	}
	if err := validateString(account.Name, "name"); err != nil {
		return err
	}
	if account.Currency == "" {
		account.Currency = "USD"
	}

	res, err := s.q.ExecContext(ctx, `
		INSERT INTO accounts (user_id, name, type, institution, balance, currency, is_active)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		account.UserID, account.Name, account.Type, nullString(account.Institution),
		account.Balance.String(), account.Currency, account.IsActive)
	if err != nil {
		return mapWriteError(err, fmt.Sprintf("account %q", account.Name))
	}

	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get account id: %w", err)
	}
	account.ID = id
	account.CreatedAt = time.Now()
	return nil
}

// GetAccount returns one of the user's accounts.
func (s *queries) GetAccount(ctx context.Context, userID, id int64) (*model.Account, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	row := s.q.QueryRowContext(ctx,
		`SELECT `+accountColumns+` FROM accounts WHERE user_id = ? AND id = ?`, userID, id)
	account, err := scanAccount(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.NotFoundf("account %d", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query account: %w", err)
	}
	return account, nil
}

// GetAccountByName returns one of the user's accounts by its exact name.
func (s *queries) GetAccountByName(ctx context.Context, userID int64, name string) (*model.Account, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(name, "name"); err != nil {
		return nil, err
	}

	row := s.q.QueryRowContext(ctx,
		`SELECT `+accountColumns+` FROM accounts WHERE user_id = ? AND name = ?`, userID, name)
	account, err := scanAccount(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.NotFoundf("account %q", name)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query account: %w", err)
	}
	return account, nil
}

// ListAccounts returns the user's accounts ordered by name.
func (s *queries) ListAccounts(ctx context.Context, userID int64, activeOnly bool) ([]model.Account, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	query := `SELECT ` + accountColumns + ` FROM accounts WHERE user_id = ?`
	if activeOnly {
		query += ` AND is_active = 1`
	}
	query += ` ORDER BY name`

	rows, err := s.q.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query accounts: %w", err)
	}
	defer rows.Close()

	var accounts []model.Account
	for rows.Next() {
		account, err := scanAccount(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan account: %w", err)
		}
		accounts = append(accounts, *account)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating accounts: %w", err)
	}
	return accounts, nil
}

// UpdateAccount saves the descriptive fields of an account. Balance is not touched.
func (s *queries) UpdateAccount(ctx context.Context, account *model.Account) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if account == nil {
		return fmt.Errorf("%w: account", ErrNilParameter)
	}
	if err := validateString(account.Name, "name"); err != nil {
		return err
	}

	res, err := s.q.ExecContext(ctx, `
		UPDATE accounts SET name = ?, type = ?, institution = ?, is_active = ?
		WHERE user_id = ? AND id = ?`,
		account.Name, account.Type, nullString(account.Institution), account.IsActive,
		account.UserID, account.ID)
	if err != nil {
		return mapWriteError(err, fmt.Sprintf("account %q", account.Name))
	}
	return expectOneRow(res, "account", account.ID)
}

// AdjustAccountBalance adds delta to the stored balance.
func (s *queries) AdjustAccountBalance(ctx context.Context, userID, id int64, delta decimal.Decimal) error {
	if err := validateContext(ctx); err != nil {
		return err
	}

	var balance decimal.Decimal
	err := s.q.QueryRowContext(ctx,
		`SELECT balance FROM accounts WHERE user_id = ? AND id = ?`, userID, id).Scan(&balance)
	if errors.Is(err, sql.ErrNoRows) {
		return common.NotFoundf("account %d", id)
	}
	if err != nil {
		return fmt.Errorf("failed to read balance: %w", err)
	}

	return s.SetAccountBalance(ctx, userID, id, balance.Add(delta))
}

// SetAccountBalance overwrites the stored balance.
func (s *queries) SetAccountBalance(ctx context.Context, userID, id int64, balance decimal.Decimal) error {
	if err := validateContext(ctx); err != nil {
		return err
	}

	res, err := s.q.ExecContext(ctx,
		`UPDATE accounts SET balance = ? WHERE user_id = ? AND id = ?`, balance.String(), userID, id)
	if err != nil {
		return fmt.Errorf("failed to update balance: %w", err)
	}
	return expectOneRow(res, "account", id)
}
