package ledger

import (
	"context"
	"fmt"
	"strings"

	"github.com/Veraticus/spice-ledger/internal/common"
	"github.com/Veraticus/spice-ledger/internal/model"
	"github.com/Veraticus/spice-ledger/internal/service"
)

// ListCategories returns the categories in use. Without usage the counts and
// totals are left zero.
func (s *Service) ListCategories(ctx context.Context, session model.Session, withUsage bool) ([]model.CategoryUsage, error) {
	if err := session.Require(); err != nil {
		return nil, err
	}
	usage, err := s.storage.ListCategoryUsage(ctx, session.UserID)
	if err != nil {
		return nil, fmt.Errorf("failed to list categories: %w", err)
	}
	if !withUsage {
		for i := range usage {
			usage[i] = model.CategoryUsage{Name: usage[i].Name}
		}
	}
	return usage, nil
}

// RenameCategory moves transactions, budgets, recurring charges and rules from
// one category name to another and returns the number of transactions changed.
func (s *Service) RenameCategory(ctx context.Context, session model.Session, from, to string) (int64, error) {
	return s.moveCategory(ctx, session, from, to, false)
}

// MergeCategories folds src into an existing dst. A budget on dst wins over one on src.
func (s *Service) MergeCategories(ctx context.Context, session model.Session, src, dst string) (int64, error) {
	return s.moveCategory(ctx, session, src, dst, true)
}

func (s *Service) moveCategory(ctx context.Context, session model.Session, from, to string, targetMustExist bool) (int64, error) {
	if err := session.Require(); err != nil {
		return 0, err
	}
	from, to = strings.TrimSpace(from), strings.TrimSpace(to)
	if from == "" || to == "" {
		return 0, common.Validationf("both category names are required")
	}
	if from == to {
		return 0, common.Validationf("categories are the same")
	}

	var changed int64
	err := s.inTx(ctx, func(store service.Store) error {
		usage, err := store.ListCategoryUsage(ctx, session.UserID)
		if err != nil {
			return err
		}
		known := make(map[string]bool, len(usage))
		for _, u := range usage {
			known[u.Name] = true
		}
		if !known[from] {
			return common.NotFoundf("category %q", from)
		}
		if targetMustExist && !known[to] {
			return common.NotFoundf("category %q", to)
		}

		changed, err = store.RenameCategory(ctx, session.UserID, from, to)
		return err
	})
	if err != nil {
		return 0, err
	}
	s.logger.Info("Moved category", "from", from, "to", to, "transactions", changed)
	return changed, nil
}

// CategoryRule returns the remembered category for a merchant.
func (s *Service) CategoryRule(ctx context.Context, session model.Session, merchant string) (*model.CategoryRule, error) {
	if err := session.Require(); err != nil {
		return nil, err
	}
	return s.storage.GetCategoryRule(ctx, session.UserID, strings.TrimSpace(merchant))
}

// SetCategoryRule remembers a merchant's category as a user rule.
func (s *Service) SetCategoryRule(ctx context.Context, session model.Session, merchant, category string) error {
	if err := session.Require(); err != nil {
		return err
	}
	merchant, category = strings.TrimSpace(merchant), strings.TrimSpace(category)
	if merchant == "" || category == "" {
		return common.Validationf("merchant and category are required")
	}
	return s.storage.UpsertCategoryRule(ctx, &model.CategoryRule{
		UserID:     session.UserID,
		Merchant:   merchant,
		Category:   category,
		Confidence: 1,
		Source:     model.RuleSourceUser,
	})
}

// ListRules lists remembered merchant categories, most used first.
func (s *Service) ListRules(ctx context.Context, session model.Session) ([]model.CategoryRule, error) {
	if err := session.Require(); err != nil {
		return nil, err
	}
	return s.storage.ListCategoryRules(ctx, session.UserID)
}

// DeleteRule forgets a merchant's category.
func (s *Service) DeleteRule(ctx context.Context, session model.Session, merchant string) error {
	if err := session.Require(); err != nil {
		return err
	}
	return s.storage.DeleteCategoryRule(ctx, session.UserID, strings.TrimSpace(merchant))
}
