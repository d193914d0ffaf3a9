package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Veraticus/spice-ledger/internal/common"
	"github.com/Veraticus/spice-ledger/internal/model"
)

const transactionColumns = `t.id, t.user_id, t.account_id, t.date, t.amount, t.merchant, t.category,
	t.description, t.notes, t.type, t.to_account_id, t.transfer_pair_id, t.hash, t.external_id,
	t.source, t.import_batch, t.created_at,
	(SELECT GROUP_CONCAT(g.name) FROM transaction_tags tt JOIN tags g ON g.id = tt.tag_id
		WHERE tt.transaction_id = t.id) AS tag_names`

func scanTransaction(row rowScanner) (*model.Transaction, error) {
	var (
		txn                                 model.Transaction
		date                                string
		merchant, description, notes        sql.NullString
		hash, externalID, importBatch, tags sql.NullString
		toAccountID, transferPairID         sql.NullInt64
	)
	if err := row.Scan(&txn.ID, &txn.UserID, &txn.AccountID, &date, &txn.Amount, &merchant,
		&txn.Category, &description, &notes, &txn.Type, &toAccountID, &transferPairID,
		&hash, &externalID, &txn.Source, &importBatch, &txn.CreatedAt, &tags); err != nil {
		return nil, err
	}

	parsed, err := parseDate(date)
	if err != nil {
		return nil, err
	}
	txn.Date = parsed
	txn.Merchant = merchant.String
	txn.Description = description.String
	txn.Notes = notes.String
	txn.Hash = hash.String
	txn.ExternalID = externalID.String
	txn.ImportBatch = importBatch.String
	txn.ToAccountID = int64Ptr(toAccountID)
	txn.TransferPairID = int64Ptr(transferPairID)
	if tags.Valid && tags.String != "" {
		txn.Tags = strings.Split(tags.String, ",")
	}
	return &txn, nil
}

func scanTransactions(rows *sql.Rows) ([]model.Transaction, error) {
	defer rows.Close()

	var transactions []model.Transaction
	for rows.Next() {
		txn, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan transaction: %w", err)
		}
		transactions = append(transactions, *txn)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating transactions: %w", err)
	}
	return transactions, nil
}

// CreateTransaction inserts a transaction and sets its ID. It does not touch balances.
func (s *queries) CreateTransaction(ctx context.Context, txn *model.Transaction) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateTransaction(txn); err != nil {
		return err
	}
	if txn.Category == "" {
		txn.Category = model.UncategorizedCategory
	}
	if txn.Source == "" {
		txn.Source = model.SourceManual
	}

	res, err := s.q.ExecContext(ctx, `
		INSERT INTO transactions (
			user_id, account_id, date, amount, merchant, category, description, notes, type,
			to_account_id, transfer_pair_id, hash, external_id, source, import_batch
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		txn.UserID, txn.AccountID, dateValue(txn.Date), txn.Amount.String(), nullString(txn.Merchant),
		txn.Category, nullString(txn.Description), nullString(txn.Notes), txn.Type,
		nullInt64(txn.ToAccountID), nullInt64(txn.TransferPairID), nullString(txn.Hash),
		nullString(txn.ExternalID), txn.Source, nullString(txn.ImportBatch))
	if err != nil {
		return mapWriteError(err, "transaction")
	}

	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get transaction id: %w", err)
	}
	txn.ID = id
	txn.CreatedAt = time.Now()
	return nil
}

// GetTransaction returns one of the user's transactions with its tags.
func (s *queries) GetTransaction(ctx context.Context, userID, id int64) (*model.Transaction, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	row := s.q.QueryRowContext(ctx,
		`SELECT `+transactionColumns+` FROM transactions t WHERE t.user_id = ? AND t.id = ?`, userID, id)
	txn, err := scanTransaction(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.NotFoundf("transaction %d", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query transaction: %w", err)
	}
	return txn, nil
}

// SearchTransactions returns the user's transactions matching filter, newest first.
func (s *queries) SearchTransactions(ctx context.Context, userID int64, filter model.TransactionFilter) ([]model.Transaction, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateDateRange(filter.StartDate, filter.EndDate); err != nil {
		return nil, err
	}

	conditions := []string{"t.user_id = ?"}
	args := []any{userID}

	if filter.StartDate != nil {
		conditions = append(conditions, "t.date >= ?")
		args = append(args, dateValue(*filter.StartDate))
	}
	if filter.EndDate != nil {
		conditions = append(conditions, "t.date <= ?")
		args = append(args, dateValue(*filter.EndDate))
	}
	if filter.MinAmount != nil {
		conditions = append(conditions, "CAST(t.amount AS REAL) >= ?")
		args = append(args, filter.MinAmount.InexactFloat64())
	}
	if filter.MaxAmount != nil {
		conditions = append(conditions, "CAST(t.amount AS REAL) <= ?")
		args = append(args, filter.MaxAmount.InexactFloat64())
	}
	if filter.AccountID != nil {
		conditions = append(conditions, "t.account_id = ?")
		args = append(args, *filter.AccountID)
	}
	if filter.Category != "" {
		conditions = append(conditions, "t.category = ?")
		args = append(args, filter.Category)
	}
	if filter.Type != "" {
		conditions = append(conditions, "t.type = ?")
		args = append(args, filter.Type)
	}
	if text := strings.TrimSpace(filter.Text); text != "" {
		like := "%" + text + "%"
		conditions = append(conditions, "(t.merchant LIKE ? OR t.description LIKE ? OR t.notes LIKE ?)")
		args = append(args, like, like, like)
	}
	for _, tag := range filter.Tags {
		conditions = append(conditions, `EXISTS (
			SELECT 1 FROM transaction_tags tt JOIN tags g ON g.id = tt.tag_id
			WHERE tt.transaction_id = t.id AND g.name = ?)`)
		args = append(args, tag)
	}

	query := `SELECT ` + transactionColumns + ` FROM transactions t WHERE ` +
		strings.Join(conditions, " AND ") + ` ORDER BY t.date DESC, t.id DESC`
	if filter.Limit > 0 {
		query += ` LIMIT ? OFFSET ?`
		args = append(args, filter.Limit, filter.Offset)
	}

	rows, err := s.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query transactions: %w", err)
	}
	return scanTransactions(rows)
}

// UpdateTransaction saves every editable column of an existing transaction.
func (s *queries) UpdateTransaction(ctx context.Context, txn *model.Transaction) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateTransaction(txn); err != nil {
		return err
	}

	res, err := s.q.ExecContext(ctx, `
		UPDATE transactions SET account_id = ?, date = ?, amount = ?, merchant = ?, category = ?,
			description = ?, notes = ?, type = ?
		WHERE user_id = ? AND id = ?`,
		txn.AccountID, dateValue(txn.Date), txn.Amount.String(), nullString(txn.Merchant),
		txn.Category, nullString(txn.Description), nullString(txn.Notes), txn.Type,
		txn.UserID, txn.ID)
	if err != nil {
		return mapWriteError(err, "transaction")
	}
	return expectOneRow(res, "transaction", txn.ID)
}

// SetTransferPair links a transfer leg to its counterpart.
func (s *queries) SetTransferPair(ctx context.Context, userID, id, pairID int64) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateID(pairID, "pairID"); err != nil {
		return err
	}
	res, err := s.q.ExecContext(ctx,
		`UPDATE transactions SET transfer_pair_id = ? WHERE user_id = ? AND id = ?`, pairID, userID, id)
	if err != nil {
		return fmt.Errorf("failed to link transfer: %w", err)
	}
	return expectOneRow(res, "transaction", id)
}

// DeleteTransaction removes one transaction. It does not touch balances.
func (s *queries) DeleteTransaction(ctx context.Context, userID, id int64) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	res, err := s.q.ExecContext(ctx, `DELETE FROM transactions WHERE user_id = ? AND id = ?`, userID, id)
	if err != nil {
		return fmt.Errorf("failed to delete transaction: %w", err)
	}
	return expectOneRow(res, "transaction", id)
}

// TransactionHashExists reports whether an import fingerprint is already stored.
func (s *queries) TransactionHashExists(ctx context.Context, userID int64, hash string) (bool, error) {
	if err := validateContext(ctx); err != nil {
		return false, err
	}
	if err := validateString(hash, "hash"); err != nil {
		return false, err
	}

	var exists bool
	err := s.q.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM transactions WHERE user_id = ? AND hash = ?)`, userID, hash).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check transaction hash: %w", err)
	}
	return exists, nil
}

// ListCategoryUsage returns every category the user's transactions carry, with counts
// and totals, ordered by name.
func (s *queries) ListCategoryUsage(ctx context.Context, userID int64) ([]model.CategoryUsage, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	rows, err := s.q.QueryContext(ctx, `
		SELECT category, COUNT(*), COALESCE(SUM(CAST(amount AS REAL)), 0)
		FROM transactions
		WHERE user_id = ?
		GROUP BY category
		ORDER BY category`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query categories: %w", err)
	}
	defer rows.Close()

	var usage []model.CategoryUsage
	for rows.Next() {
		var u model.CategoryUsage
		if err := rows.Scan(&u.Name, &u.Count, &u.Total); err != nil {
			return nil, fmt.Errorf("failed to scan category: %w", err)
		}
		u.Total = u.Total.Round(2)
		usage = append(usage, u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating categories: %w", err)
	}
	return usage, nil
}

// RenameCategory moves every reference to a category onto a new name and returns
// the number of transactions changed. Budgets on the target survive a merge.
func (s *queries) RenameCategory(ctx context.Context, userID int64, from, to string) (int64, error) {
	if err := validateContext(ctx); err != nil {
		return 0, err
	}
	if err := validateString(from, "from"); err != nil {
		return 0, err
	}
	if err := validateString(to, "to"); err != nil {
		return 0, err
	}

	res, err := s.q.ExecContext(ctx,
		`UPDATE transactions SET category = ? WHERE user_id = ? AND category = ?`, to, userID, from)
	if err != nil {
		return 0, fmt.Errorf("failed to rename transaction categories: %w", err)
	}
	changed, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to check affected rows: %w", err)
	}

	statements := []string{
		`UPDATE OR IGNORE budgets SET category = ? WHERE user_id = ? AND category = ?`,
		`DELETE FROM budgets WHERE user_id = ? AND category = ?`,
		`UPDATE recurring_charges SET category = ? WHERE user_id = ? AND category = ?`,
		`UPDATE category_rules SET category = ? WHERE user_id = ? AND category = ?`,
	}
	for _, stmt := range statements {
		args := []any{to, userID, from}
		if strings.HasPrefix(stmt, "DELETE") {
			args = []any{userID, from}
		}
		if _, err := s.q.ExecContext(ctx, stmt, args...); err != nil {
			return 0, fmt.Errorf("failed to rename category references: %w", err)
		}
	}

	return changed, nil
}
