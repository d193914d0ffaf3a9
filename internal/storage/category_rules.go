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

const ruleColumns = `id, user_id, merchant, category, confidence, source, use_count, last_used, created_at`

func scanRule(row rowScanner) (*model.CategoryRule, error) {
	var (
		rule     model.CategoryRule
		lastUsed sql.NullTime
	)
	if err := row.Scan(&rule.ID, &rule.UserID, &rule.Merchant, &rule.Category, &rule.Confidence,
		&rule.Source, &rule.UseCount, &lastUsed, &rule.CreatedAt); err != nil {
		return nil, err
	}
	rule.LastUsed = timePtr(lastUsed)
	return &rule, nil
}

// GetCategoryRule returns the rule for a merchant, matched case-insensitively.
func (s *queries) GetCategoryRule(ctx context.Context, userID int64, merchant string) (*model.CategoryRule, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(merchant, "merchant"); err != nil {
		return nil, err
	}

	row := s.q.QueryRowContext(ctx,
		`SELECT `+ruleColumns+` FROM category_rules WHERE user_id = ? AND merchant = ?`, userID, merchant)
	rule, err := scanRule(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.NotFoundf("category rule for %q", merchant)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query category rule: %w", err)
	}
	return rule, nil
}

// UpsertCategoryRule creates the rule for a merchant or replaces its category.
func (s *queries) UpsertCategoryRule(ctx context.Context, rule *model.CategoryRule) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if rule == nil {
		return fmt.Errorf("%w: rule", ErrNilParameter)
	}
	if err := validateString(rule.Merchant, "merchant"); err != nil {
		return err
	}
	if err := validateString(rule.Category, "category"); err != nil {
		return err
	}
	if rule.Source == "" {
		rule.Source = model.RuleSourceUser
	}

	_, err := s.q.ExecContext(ctx, `
		INSERT INTO category_rules (user_id, merchant, category, confidence, source)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (user_id, merchant) DO UPDATE SET
			category = excluded.category,
			confidence = excluded.confidence,
			source = excluded.source`,
		rule.UserID, rule.Merchant, rule.Category, rule.Confidence, rule.Source)
	if err != nil {
		return fmt.Errorf("failed to save category rule: %w", err)
	}
	return nil
}

// RecordRuleUse bumps the use counter of a merchant's rule.
func (s *queries) RecordRuleUse(ctx context.Context, userID int64, merchant string, at time.Time) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	res, err := s.q.ExecContext(ctx,
		`UPDATE category_rules SET use_count = use_count + 1, last_used = ? WHERE user_id = ? AND merchant = ?`,
		at.UTC(), userID, merchant)
	if err != nil {
		return fmt.Errorf("failed to record rule use: %w", err)
	}
	return expectOneRow(res, "category rule for", merchant)
}

// ListCategoryRules returns the user's rules, most used first.
func (s *queries) ListCategoryRules(ctx context.Context, userID int64) ([]model.CategoryRule, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	rows, err := s.q.QueryContext(ctx,
		`SELECT `+ruleColumns+` FROM category_rules WHERE user_id = ? ORDER BY use_count DESC, merchant`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query category rules: %w", err)
	}
	defer rows.Close()

	var rules []model.CategoryRule
	for rows.Next() {
		rule, err := scanRule(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan category rule: %w", err)
		}
		rules = append(rules, *rule)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating category rules: %w", err)
	}
	return rules, nil
}

// DeleteCategoryRule removes a merchant's rule.
func (s *queries) DeleteCategoryRule(ctx context.Context, userID int64, merchant string) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	res, err := s.q.ExecContext(ctx,
		`DELETE FROM category_rules WHERE user_id = ? AND merchant = ?`, userID, merchant)
	if err != nil {
		return fmt.Errorf("failed to delete category rule: %w", err)
	}
	return expectOneRow(res, "category rule for", merchant)
}
