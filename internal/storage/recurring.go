package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/Veraticus/spice-ledger/internal/common"
	"github.com/Veraticus/spice-ledger/internal/model"
)

const recurringColumns = `id, user_id, merchant, category, typical_amount, frequency, day_of_period,
	first_seen, last_seen, next_expected_date, occurrence_count, confidence, status, notes, created_at`

func scanRecurringCharge(row rowScanner) (*model.RecurringCharge, error) {
	var (
		c                   model.RecurringCharge
		firstSeen, lastSeen string
		nextExpected, notes sql.NullString
		dayOfPeriod         sql.NullInt64
	)
	if err := row.Scan(&c.ID, &c.UserID, &c.Merchant, &c.Category, &c.TypicalAmount, &c.Frequency,
		&dayOfPeriod, &firstSeen, &lastSeen, &nextExpected, &c.OccurrenceCount, &c.Confidence,
		&c.Status, &notes, &c.CreatedAt); err != nil {
		return nil, err
	}

	var err error
	if c.FirstSeen, err = parseDate(firstSeen); err != nil {
		return nil, err
	}
	if c.LastSeen, err = parseDate(lastSeen); err != nil {
		return nil, err
	}
	if c.NextExpectedDate, err = parseNullDate(nextExpected); err != nil {
		return nil, err
	}
	c.DayOfPeriod = intPtr(dayOfPeriod)
	c.Notes = notes.String
	return &c, nil
}

func (s *queries) queryRecurringCharges(ctx context.Context, query string, args ...any) ([]model.RecurringCharge, error) {
	rows, err := s.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query recurring charges: %w", err)
	}
	defer rows.Close()

	var charges []model.RecurringCharge
	for rows.Next() {
		c, err := scanRecurringCharge(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan recurring charge: %w", err)
		}
		charges = append(charges, *c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating recurring charges: %w", err)
	}
	return charges, nil
}

// CreateRecurringCharge inserts a charge and sets its ID.
func (s *queries) CreateRecurringCharge(ctx context.Context, charge *model.RecurringCharge) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if charge == nil {
		return fmt.Errorf("%w: recurring charge", ErrNilParameter)
	}
	if err := validateString(charge.Merchant, "merchant"); err != nil {
		return err
	}
	if charge.Status == "" {
		charge.Status = model.RecurringActive
	}

	res, err := s.q.ExecContext(ctx, `
		INSERT INTO recurring_charges (
			user_id, merchant, category, typical_amount, frequency, day_of_period, first_seen,
			last_seen, next_expected_date, occurrence_count, confidence, status, notes
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		charge.UserID, charge.Merchant, charge.Category, charge.TypicalAmount.String(), charge.Frequency,
		nullInt(charge.DayOfPeriod), dateValue(charge.FirstSeen), dateValue(charge.LastSeen),
		nullDate(charge.NextExpectedDate), charge.OccurrenceCount, charge.Confidence, charge.Status,
		nullString(charge.Notes))
	if err != nil {
		return mapWriteError(err, "recurring charge")
	}

	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get recurring charge id: %w", err)
	}
	charge.ID = id
	charge.CreatedAt = time.Now()
	return nil
}

// GetRecurringCharge returns one of the user's charges.
func (s *queries) GetRecurringCharge(ctx context.Context, userID, id int64) (*model.RecurringCharge, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	row := s.q.QueryRowContext(ctx,
		`SELECT `+recurringColumns+` FROM recurring_charges WHERE user_id = ? AND id = ?`, userID, id)
	c, err := scanRecurringCharge(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.NotFoundf("recurring charge %d", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query recurring charge: %w", err)
	}
	return c, nil
}

// FindRecurringChargeByMerchant returns the most recent non-cancelled charge for a merchant,
// matched case-insensitively.
func (s *queries) FindRecurringChargeByMerchant(ctx context.Context, userID int64, merchant string) (*model.RecurringCharge, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(merchant, "merchant"); err != nil {
		return nil, err
	}

	row := s.q.QueryRowContext(ctx, `
		SELECT `+recurringColumns+` FROM recurring_charges
		WHERE user_id = ? AND merchant = ? COLLATE NOCASE AND status != 'cancelled'
		ORDER BY id DESC LIMIT 1`, userID, merchant)
	c, err := scanRecurringCharge(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.NotFoundf("recurring charge for %q", merchant)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query recurring charge: %w", err)
	}
	return c, nil
}

// ListRecurringCharges returns the user's charges, optionally filtered by status,
// ordered by next expected date (unknown dates last) then merchant.
func (s *queries) ListRecurringCharges(ctx context.Context, userID int64, status *model.RecurringStatus) ([]model.RecurringCharge, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	query := `SELECT ` + recurringColumns + ` FROM recurring_charges WHERE user_id = ?`
	args := []any{userID}
	if status != nil {
		query += ` AND status = ?`
		args = append(args, *status)
	}
	query += ` ORDER BY next_expected_date IS NULL, next_expected_date, merchant`

	return s.queryRecurringCharges(ctx, query, args...)
}

// ListUpcomingCharges returns active charges expected on or before through,
// including overdue ones, ordered by date.
func (s *queries) ListUpcomingCharges(ctx context.Context, userID int64, through time.Time) ([]model.RecurringCharge, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	return s.queryRecurringCharges(ctx, `
		SELECT `+recurringColumns+` FROM recurring_charges
		WHERE user_id = ? AND status = 'active'
			AND next_expected_date IS NOT NULL AND next_expected_date <= ?
		ORDER BY next_expected_date, merchant`, userID, dateValue(through))
}

// UpdateRecurringCharge saves every column of an existing charge.
func (s *queries) UpdateRecurringCharge(ctx context.Context, charge *model.RecurringCharge) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if charge == nil {
		return fmt.Errorf("%w: recurring charge", ErrNilParameter)
	}

	res, err := s.q.ExecContext(ctx, `
		UPDATE recurring_charges SET merchant = ?, category = ?, typical_amount = ?, frequency = ?,
			day_of_period = ?, first_seen = ?, last_seen = ?, next_expected_date = ?,
			occurrence_count = ?, confidence = ?, status = ?, notes = ?
		WHERE user_id = ? AND id = ?`,
		charge.Merchant, charge.Category, charge.TypicalAmount.String(), charge.Frequency,
		nullInt(charge.DayOfPeriod), dateValue(charge.FirstSeen), dateValue(charge.LastSeen),
		nullDate(charge.NextExpectedDate), charge.OccurrenceCount, charge.Confidence, charge.Status,
		nullString(charge.Notes), charge.UserID, charge.ID)
	if err != nil {
		return fmt.Errorf("failed to update recurring charge: %w", err)
	}
	return expectOneRow(res, "recurring charge", charge.ID)
}

// DeleteRecurringCharge removes one of the user's charges.
func (s *queries) DeleteRecurringCharge(ctx context.Context, userID, id int64) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	res, err := s.q.ExecContext(ctx, `DELETE FROM recurring_charges WHERE user_id = ? AND id = ?`, userID, id)
	if err != nil {
		return fmt.Errorf("failed to delete recurring charge: %w", err)
	}
	return expectOneRow(res, "recurring charge", id)
}
