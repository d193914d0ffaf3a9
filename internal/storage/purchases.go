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

const purchaseColumns = `id, user_id, name, description, estimated_cost, actual_cost, priority, category,
	deadline, status, notes, url, transaction_id, purchased_at, created_at`

func scanPurchase(row rowScanner) (*model.Purchase, error) {
	var (
		p                                 model.Purchase
		description, category, notes, url sql.NullString
		deadline, purchasedAt             sql.NullString
		actualCost                        decimal.NullDecimal
		transactionID                     sql.NullInt64
	)
	if err := row.Scan(&p.ID, &p.UserID, &p.Name, &description, &p.EstimatedCost, &actualCost,
		&p.Priority, &category, &deadline, &p.Status, &notes, &url, &transactionID,
		&purchasedAt, &p.CreatedAt); err != nil {
		return nil, err
	}

	var err error
	if p.Deadline, err = parseNullDate(deadline); err != nil {
		return nil, err
	}
	if p.PurchasedAt, err = parseNullDate(purchasedAt); err != nil {
		return nil, err
	}
	if actualCost.Valid {
		cost := actualCost.Decimal
		p.ActualCost = &cost
	}
	p.TransactionID = int64Ptr(transactionID)
	p.Description = description.String
	p.Category = category.String
	p.Notes = notes.String
	p.URL = url.String
	return &p, nil
}

func (s *queries) queryPurchases(ctx context.Context, query string, args ...any) ([]model.Purchase, error) {
	rows, err := s.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query purchases: %w", err)
	}
	defer rows.Close()

	var purchases []model.Purchase
	for rows.Next() {
		p, err := scanPurchase(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan purchase: %w", err)
		}
		purchases = append(purchases, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating purchases: %w", err)
	}
	return purchases, nil
}

func nullDecimal(d *decimal.Decimal) any {
	if d == nil {
		return nil
	}
	return d.String()
}

// CreatePurchase inserts a planned purchase and sets its ID.
func (s *queries) CreatePurchase(ctx context.Context, purchase *model.Purchase) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if purchase == nil {
		return fmt.Errorf("%w: purchase", ErrNilParameter)
	}
	if err := validateString(purchase.Name, "name"); err != nil {
		return err
	}
	if purchase.Status == "" {
		purchase.Status = model.PurchasePlanned
	}

	res, err := s.q.ExecContext(ctx, `
		INSERT INTO planned_purchases (user_id, name, description, estimated_cost, priority,
			category, deadline, status, notes, url)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		purchase.UserID, purchase.Name, nullString(purchase.Description), purchase.EstimatedCost.String(),
		purchase.Priority, nullString(purchase.Category), nullDate(purchase.Deadline), purchase.Status,
		nullString(purchase.Notes), nullString(purchase.URL))
	if err != nil {
		return mapWriteError(err, "purchase")
	}

	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get purchase id: %w", err)
	}
	purchase.ID = id
	purchase.CreatedAt = time.Now()
	return nil
}

// GetPurchase returns one of the user's planned purchases.
func (s *queries) GetPurchase(ctx context.Context, userID, id int64) (*model.Purchase, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	row := s.q.QueryRowContext(ctx,
		`SELECT `+purchaseColumns+` FROM planned_purchases WHERE user_id = ? AND id = ?`, userID, id)
	p, err := scanPurchase(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.NotFoundf("purchase %d", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query purchase: %w", err)
	}
	return p, nil
}

// ListPurchases returns the user's purchases filtered and sorted as requested.
func (s *queries) ListPurchases(ctx context.Context, userID int64, filter model.PurchaseFilter) ([]model.Purchase, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	query := `SELECT ` + purchaseColumns + ` FROM planned_purchases WHERE user_id = ?`
	args := []any{userID}
	if filter.Status != "" {
		query += ` AND status = ?`
		args = append(args, filter.Status)
	}
	if filter.Priority > 0 {
		query += ` AND priority = ?`
		args = append(args, filter.Priority)
	}

	switch filter.SortBy {
	case model.SortByDeadline:
		query += ` ORDER BY deadline IS NULL, deadline, priority`
	case model.SortByCost:
		query += ` ORDER BY CAST(estimated_cost AS REAL) DESC`
	case model.SortByCreated:
		query += ` ORDER BY created_at DESC, id DESC`
	default:
		query += ` ORDER BY priority, deadline IS NULL, deadline, created_at DESC, id DESC`
	}

	return s.queryPurchases(ctx, query, args...)
}

// UpdatePurchase saves every column of an existing purchase.
func (s *queries) UpdatePurchase(ctx context.Context, purchase *model.Purchase) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if purchase == nil {
		return fmt.Errorf("%w: purchase", ErrNilParameter)
	}

	res, err := s.q.ExecContext(ctx, `
		UPDATE planned_purchases SET name = ?, description = ?, estimated_cost = ?, actual_cost = ?,
			priority = ?, category = ?, deadline = ?, status = ?, notes = ?, url = ?,
			transaction_id = ?, purchased_at = ?
		WHERE user_id = ? AND id = ?`,
		purchase.Name, nullString(purchase.Description), purchase.EstimatedCost.String(),
		nullDecimal(purchase.ActualCost), purchase.Priority, nullString(purchase.Category),
		nullDate(purchase.Deadline), purchase.Status, nullString(purchase.Notes), nullString(purchase.URL),
		nullInt64(purchase.TransactionID), nullDate(purchase.PurchasedAt), purchase.UserID, purchase.ID)
	if err != nil {
		return fmt.Errorf("failed to update purchase: %w", err)
	}
	return expectOneRow(res, "purchase", purchase.ID)
}

// DeletePurchase removes one of the user's purchases.
func (s *queries) DeletePurchase(ctx context.Context, userID, id int64) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	res, err := s.q.ExecContext(ctx, `DELETE FROM planned_purchases WHERE user_id = ? AND id = ?`, userID, id)
	if err != nil {
		return fmt.Errorf("failed to delete purchase: %w", err)
	}
	return expectOneRow(res, "purchase", id)
}

// ListOverduePurchases returns planned purchases whose deadline is before today.
func (s *queries) ListOverduePurchases(ctx context.Context, userID int64, today time.Time) ([]model.Purchase, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	return s.queryPurchases(ctx, `
		SELECT `+purchaseColumns+` FROM planned_purchases
		WHERE user_id = ? AND status = 'planned' AND deadline IS NOT NULL AND deadline < ?
		ORDER BY deadline`, userID, dateValue(today))
}
