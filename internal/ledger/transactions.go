package ledger

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Veraticus/spice-ledger/internal/advisor"
	"github.com/Veraticus/spice-ledger/internal/common"
	"github.com/Veraticus/spice-ledger/internal/model"
	"github.com/Veraticus/spice-ledger/internal/service"
	"github.com/shopspring/decimal"
)

// ruleConfidence is the parser confidence at which a categorization is
// remembered for the merchant.
const ruleConfidence = 0.8

const defaultRecentLimit = 10

// CreateTransaction records an expense or income and moves the account balance.
func (s *Service) CreateTransaction(ctx context.Context, session model.Session, draft model.TransactionDraft) (*model.Transaction, error) {
	if err := session.Require(); err != nil {
		return nil, err
	}
	if draft.Date.IsZero() {
		draft.Date = s.today()
	}
	if err := draft.Validate(); err != nil {
		return nil, err
	}

	txn := fromDraft(session.UserID, draft)
	err := s.inTx(ctx, func(store service.Store) error {
		return Post(ctx, store, txn)
	})
	if err != nil {
		return nil, err
	}
	s.logger.Debug("Recorded transaction", "id", txn.ID, "type", txn.Type, "amount", txn.Amount.StringFixed(2))
	return txn, nil
}

func fromDraft(userID int64, d model.TransactionDraft) *model.Transaction {
	category := strings.TrimSpace(d.Category)
	if category == "" {
		category = model.UncategorizedCategory
	}
	source := d.Source
	if source == "" {
		source = model.SourceManual
	}
	return &model.Transaction{
		UserID:      userID,
		AccountID:   d.AccountID,
		Date:        model.Day(d.Date),
		Amount:      d.Amount,
		Merchant:    strings.TrimSpace(d.Merchant),
		Category:    category,
		Description: strings.TrimSpace(d.Description),
		Notes:       strings.TrimSpace(d.Notes),
		Type:        d.Type,
		ExternalID:  d.ExternalID,
		Source:      source,
	}
}

// Post saves txn through store and applies its balance effect. The account
// must belong to the transaction's user.
func Post(ctx context.Context, store service.Store, txn *model.Transaction) error {
	if _, err := store.GetAccount(ctx, txn.UserID, txn.AccountID); err != nil {
		return err
	}
	if err := store.CreateTransaction(ctx, txn); err != nil {
		return fmt.Errorf("failed to create transaction: %w", err)
	}
	if err := store.AdjustAccountBalance(ctx, txn.UserID, txn.AccountID, txn.BalanceEffect()); err != nil {
		return fmt.Errorf("failed to update balance: %w", err)
	}
	return nil
}

// LogFromText records an expense described in plain words, such as
// "Starbucks $5.50". A remembered merchant category wins over the parser's
// guess, and confident guesses are remembered. overrideCategory bypasses both.
func (s *Service) LogFromText(ctx context.Context, session model.Session, accountID int64, text string, date *time.Time, overrideCategory string) (*model.Transaction, error) {
	if err := session.Require(); err != nil {
		return nil, err
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, common.Validationf("description is required")
	}

	categories, err := s.categoryChoices(ctx, session)
	if err != nil {
		return nil, err
	}
	parsed := s.parser.Parse(ctx, text, categories)
	if !parsed.Amount.IsPositive() {
		return nil, common.Validationf("could not find an amount in %q", text)
	}

	category := parsed.Category
	if override := strings.TrimSpace(overrideCategory); override != "" {
		category = override
	} else {
		category, err = s.applyRule(ctx, session, parsed)
		if err != nil {
			return nil, err
		}
	}

	draft := model.TransactionDraft{
		AccountID:   accountID,
		Amount:      parsed.Amount,
		Merchant:    parsed.Merchant,
		Category:    category,
		Description: text,
		Type:        model.TypeExpense,
		Source:      model.SourceAI,
	}
	if parsed.Fallback {
		draft.Source = model.SourceManual
	}
	if date != nil {
		draft.Date = *date
	}
	return s.CreateTransaction(ctx, session, draft)
}

// applyRule returns the remembered category for the parsed merchant, or the
// parser's category, remembering it when the parser was confident.
func (s *Service) applyRule(ctx context.Context, session model.Session, parsed advisor.ParsedTransaction) (string, error) {
	rule, err := s.storage.GetCategoryRule(ctx, session.UserID, parsed.Merchant)
	switch {
	case err == nil:
		if err := s.storage.RecordRuleUse(ctx, session.UserID, rule.Merchant, s.now()); err != nil {
			s.logger.Warn("Failed to record rule use", "merchant", rule.Merchant, "error", err)
		}
		return rule.Category, nil
	case !errors.Is(err, common.ErrNotFound):
		return "", fmt.Errorf("failed to look up category rule: %w", err)
	}

	if parsed.Confidence >= ruleConfidence && !parsed.Fallback {
		err := s.storage.UpsertCategoryRule(ctx, &model.CategoryRule{
			UserID:     session.UserID,
			Merchant:   parsed.Merchant,
			Category:   parsed.Category,
			Confidence: parsed.Confidence,
			Source:     model.RuleSourceAI,
		})
		if err != nil {
			s.logger.Warn("Failed to remember category", "merchant", parsed.Merchant, "error", err)
		}
	}
	return parsed.Category, nil
}

// categoryChoices offers the defaults plus whatever the user already uses.
func (s *Service) categoryChoices(ctx context.Context, session model.Session) ([]string, error) {
	usage, err := s.storage.ListCategoryUsage(ctx, session.UserID)
	if err != nil {
		return nil, fmt.Errorf("failed to load categories: %w", err)
	}
	choices := append([]string(nil), model.DefaultCategories...)
	seen := make(map[string]bool, len(choices))
	for _, c := range choices {
		seen[c] = true
	}
	for _, u := range usage {
		if !seen[u.Name] && u.Name != model.UncategorizedCategory {
			seen[u.Name] = true
			choices = append(choices, u.Name)
		}
	}
	return choices, nil
}

// Transfer moves money between two of the user's accounts as a linked pair of
// transfer legs.
func (s *Service) Transfer(ctx context.Context, session model.Session, fromID, toID int64, amount decimal.Decimal, date *time.Time, description string) (out, in *model.Transaction, err error) {
	if err := session.Require(); err != nil {
		return nil, nil, err
	}
	if !amount.IsPositive() {
		return nil, nil, common.Validationf("amount must be positive")
	}
	if fromID == toID {
		return nil, nil, common.Validationf("cannot transfer to the same account")
	}
	day := s.today()
	if date != nil {
		day = model.Day(*date)
	}
	description = strings.TrimSpace(description)
	if description == "" {
		description = "Transfer"
	}

	err = s.inTx(ctx, func(store service.Store) error {
		from, err := store.GetAccount(ctx, session.UserID, fromID)
		if err != nil {
			return err
		}
		to, err := store.GetAccount(ctx, session.UserID, toID)
		if err != nil {
			return err
		}
		if from.Balance.LessThan(amount) {
			return fmt.Errorf("%w: %s has %s, transfer needs %s", common.ErrInsufficientFunds,
				from.Name, model.FormatMoney(from.Balance), model.FormatMoney(amount))
		}

		out = &model.Transaction{
			UserID:      session.UserID,
			AccountID:   from.ID,
			ToAccountID: &to.ID,
			Date:        day,
			Amount:      amount,
			Category:    model.UncategorizedCategory,
			Description: fmt.Sprintf("%s (to %s)", description, to.Name),
			Type:        model.TypeTransfer,
			Source:      model.SourceManual,
		}
		if err := Post(ctx, store, out); err != nil {
			return err
		}

		in = &model.Transaction{
			UserID:         session.UserID,
			AccountID:      to.ID,
			TransferPairID: &out.ID,
			Date:           day,
			Amount:         amount,
			Category:       model.UncategorizedCategory,
			Description:    fmt.Sprintf("%s (from %s)", description, from.Name),
			Type:           model.TypeTransfer,
			Source:         model.SourceManual,
		}
		if err := Post(ctx, store, in); err != nil {
			return err
		}

		if err := store.SetTransferPair(ctx, session.UserID, out.ID, in.ID); err != nil {
			return err
		}
		out.TransferPairID = &in.ID
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	s.logger.Info("Transferred", "from", fromID, "to", toID, "amount", amount.StringFixed(2))
	return out, in, nil
}

// GetTransaction returns one transaction with its tags.
func (s *Service) GetTransaction(ctx context.Context, session model.Session, id int64) (*model.Transaction, error) {
	if err := session.Require(); err != nil {
		return nil, err
	}
	return s.storage.GetTransaction(ctx, session.UserID, id)
}

// ListRecent returns the newest transactions. A non-positive limit means 10.
func (s *Service) ListRecent(ctx context.Context, session model.Session, limit int) ([]model.Transaction, error) {
	if limit <= 0 {
		limit = defaultRecentLimit
	}
	return s.Search(ctx, session, model.TransactionFilter{Limit: limit})
}

// ListByMonth returns a calendar month's transactions, newest first.
func (s *Service) ListByMonth(ctx context.Context, session model.Session, year int, month time.Month) ([]model.Transaction, error) {
	start, end := model.MonthRange(year, month)
	return s.Search(ctx, session, model.TransactionFilter{StartDate: &start, EndDate: &end})
}

// Search finds transactions, newest first. Every tag in the filter must match.
func (s *Service) Search(ctx context.Context, session model.Session, filter model.TransactionFilter) ([]model.Transaction, error) {
	if err := session.Require(); err != nil {
		return nil, err
	}
	if filter.StartDate != nil && filter.EndDate != nil && filter.EndDate.Before(*filter.StartDate) {
		return nil, common.Validationf("end date is before start date")
	}
	if filter.MinAmount != nil && filter.MaxAmount != nil && filter.MaxAmount.LessThan(*filter.MinAmount) {
		return nil, common.Validationf("maximum amount is below minimum amount")
	}
	txns, err := s.storage.SearchTransactions(ctx, session.UserID, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to search transactions: %w", err)
	}
	return txns, nil
}

// UpdateTransaction edits a transaction, moving balances when the amount, type
// or account changes. Transfer legs keep their amount and account.
func (s *Service) UpdateTransaction(ctx context.Context, session model.Session, id int64, update model.TransactionUpdate) (*model.Transaction, error) {
	if err := session.Require(); err != nil {
		return nil, err
	}
	if update.Empty() {
		return nil, common.Validationf("nothing to update")
	}
	if update.Amount != nil && !update.Amount.IsPositive() {
		return nil, common.Validationf("amount must be greater than zero")
	}
	if update.Type != nil {
		t, err := model.ParseTransactionType(string(*update.Type))
		if err != nil {
			return nil, err
		}
		if t == model.TypeTransfer {
			return nil, common.Validationf("transactions cannot be turned into transfers")
		}
		update.Type = &t
	}

	var updated *model.Transaction
	err := s.inTx(ctx, func(store service.Store) error {
		current, err := store.GetTransaction(ctx, session.UserID, id)
		if err != nil {
			return err
		}
		if current.IsTransferLeg() && update.ChangesBalance() {
			return common.Validationf("transfer legs cannot change amount, type or account")
		}

		next := *current
		update.Apply(&next)

		if update.ChangesBalance() {
			if _, err := store.GetAccount(ctx, session.UserID, next.AccountID); err != nil {
				return err
			}
			if err := store.AdjustAccountBalance(ctx, session.UserID, current.AccountID, current.BalanceEffect().Neg()); err != nil {
				return fmt.Errorf("failed to reverse balance: %w", err)
			}
			if err := store.AdjustAccountBalance(ctx, session.UserID, next.AccountID, next.BalanceEffect()); err != nil {
				return fmt.Errorf("failed to apply balance: %w", err)
			}
		}
		if err := store.UpdateTransaction(ctx, &next); err != nil {
			return err
		}
		updated = &next
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// DeleteTransaction removes a transaction and reverses its balance effect.
// Deleting either leg of a transfer deletes both.
func (s *Service) DeleteTransaction(ctx context.Context, session model.Session, id int64) error {
	if err := session.Require(); err != nil {
		return err
	}
	return s.inTx(ctx, func(store service.Store) error {
		txn, err := store.GetTransaction(ctx, session.UserID, id)
		if err != nil {
			return err
		}
		legs := []*model.Transaction{txn}
		if txn.TransferPairID != nil {
			pair, err := store.GetTransaction(ctx, session.UserID, *txn.TransferPairID)
			switch {
			case err == nil:
				legs = append(legs, pair)
			case !errors.Is(err, common.ErrNotFound):
				return err
			}
		}
		for _, leg := range legs {
			if err := store.AdjustAccountBalance(ctx, session.UserID, leg.AccountID, leg.BalanceEffect().Neg()); err != nil {
				return fmt.Errorf("failed to reverse balance: %w", err)
			}
			if err := store.DeleteTransaction(ctx, session.UserID, leg.ID); err != nil {
				return err
			}
		}
		return nil
	})
}

// MonthlyTotal sums a month's transactions of one type.
func (s *Service) MonthlyTotal(ctx context.Context, session model.Session, year int, month time.Month, kind model.TransactionType) (decimal.Decimal, error) {
	start, end := model.MonthRange(year, month)
	txns, err := s.Search(ctx, session, model.TransactionFilter{StartDate: &start, EndDate: &end, Type: kind})
	if err != nil {
		return decimal.Zero, err
	}
	total := decimal.Zero
	for _, t := range txns {
		total = total.Add(t.Amount)
	}
	return total, nil
}
