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

func scanTag(row rowScanner) (*model.Tag, error) {
	var (
		tag                model.Tag
		description, color sql.NullString
	)
	if err := row.Scan(&tag.ID, &tag.UserID, &tag.Name, &description, &color, &tag.CreatedAt); err != nil {
		return nil, err
	}
	tag.Description = description.String
	tag.Color = color.String
	return &tag, nil
}

func (s *queries) queryTags(ctx context.Context, query string, args ...any) ([]model.Tag, error) {
	rows, err := s.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query tags: %w", err)
	}
	defer rows.Close()

	var tags []model.Tag
	for rows.Next() {
		tag, err := scanTag(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan tag: %w", err)
		}
		tags = append(tags, *tag)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating tags: %w", err)
	}
	return tags, nil
}

// CreateTag inserts a tag and sets its ID.
func (s *queries) CreateTag(ctx context.Context, tag *model.Tag) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if tag == nil {
		return fmt.Errorf("%w: tag", ErrNilParameter)
	}
	if err := validateString(tag.Name, "name"); err != nil {
		return err
	}

	res, err := s.q.ExecContext(ctx,
		`INSERT INTO tags (user_id, name, description, color) VALUES (?, ?, ?, ?)`,
		tag.UserID, tag.Name, nullString(tag.Description), nullString(tag.Color))
	if err != nil {
		return mapWriteError(err, fmt.Sprintf("tag %q", tag.Name))
	}

	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get tag id: %w", err)
	}
	tag.ID = id
	tag.CreatedAt = time.Now()
	return nil
}

// GetTagByName returns one of the user's tags.
func (s *queries) GetTagByName(ctx context.Context, userID int64, name string) (*model.Tag, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(name, "name"); err != nil {
		return nil, err
	}

	row := s.q.QueryRowContext(ctx,
		`SELECT id, user_id, name, description, color, created_at FROM tags WHERE user_id = ? AND name = ?`,
		userID, name)
	tag, err := scanTag(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.NotFoundf("tag %q", name)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query tag: %w", err)
	}
	return tag, nil
}

// ListTags returns the user's tags ordered by name.
func (s *queries) ListTags(ctx context.Context, userID int64) ([]model.Tag, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	return s.queryTags(ctx,
		`SELECT id, user_id, name, description, color, created_at FROM tags WHERE user_id = ? ORDER BY name`, userID)
}

// DeleteTag removes a tag and detaches it from every transaction.
func (s *queries) DeleteTag(ctx context.Context, userID, id int64) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	res, err := s.q.ExecContext(ctx, `DELETE FROM tags WHERE user_id = ? AND id = ?`, userID, id)
	if err != nil {
		return fmt.Errorf("failed to delete tag: %w", err)
	}
	return expectOneRow(res, "tag", id)
}

// AddTagToTransaction attaches a tag. Attaching twice is a no-op.
func (s *queries) AddTagToTransaction(ctx context.Context, txnID, tagID int64) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateID(txnID, "txnID"); err != nil {
		return err
	}
	if err := validateID(tagID, "tagID"); err != nil {
		return err
	}
	if _, err := s.q.ExecContext(ctx,
		`INSERT OR IGNORE INTO transaction_tags (transaction_id, tag_id) VALUES (?, ?)`, txnID, tagID); err != nil {
		return fmt.Errorf("failed to tag transaction: %w", err)
	}
	return nil
}

// RemoveTagFromTransaction detaches a tag.
func (s *queries) RemoveTagFromTransaction(ctx context.Context, txnID, tagID int64) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	res, err := s.q.ExecContext(ctx,
		`DELETE FROM transaction_tags WHERE transaction_id = ? AND tag_id = ?`, txnID, tagID)
	if err != nil {
		return fmt.Errorf("failed to untag transaction: %w", err)
	}
	return expectOneRow(res, "tag on transaction", txnID)
}

// ListTransactionTags returns the tags attached to a transaction.
func (s *queries) ListTransactionTags(ctx context.Context, txnID int64) ([]model.Tag, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	return s.queryTags(ctx, `
		SELECT g.id, g.user_id, g.name, g.description, g.color, g.created_at
		FROM tags g
		JOIN transaction_tags tt ON tt.tag_id = g.id
		WHERE tt.transaction_id = ?
		ORDER BY g.name`, txnID)
}

// TagStats returns usage counts and totals for every tag, busiest first.
func (s *queries) TagStats(ctx context.Context, userID int64) ([]model.TagStat, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	rows, err := s.q.QueryContext(ctx, `
		SELECT g.id, g.name, COUNT(t.id), COALESCE(SUM(CAST(t.amount AS REAL)), 0)
		FROM tags g
		LEFT JOIN transaction_tags tt ON tt.tag_id = g.id
		LEFT JOIN transactions t ON t.id = tt.transaction_id
		WHERE g.user_id = ?
		GROUP BY g.id, g.name
		ORDER BY COUNT(t.id) DESC, g.name`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query tag stats: %w", err)
	}
	defer rows.Close()

	var stats []model.TagStat
	for rows.Next() {
		var st model.TagStat
		if err := rows.Scan(&st.TagID, &st.Name, &st.Count, &st.Total); err != nil {
			return nil, fmt.Errorf("failed to scan tag stat: %w", err)
		}
		st.Total = st.Total.Round(2)
		stats = append(stats, st)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating tag stats: %w", err)
	}
	return stats, nil
}
