package ledger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/Veraticus/spice-ledger/internal/common"
	"github.com/Veraticus/spice-ledger/internal/model"
	"github.com/Veraticus/spice-ledger/internal/recurring"
	"github.com/Veraticus/spice-ledger/internal/service"
	"github.com/google/uuid"
)

// Progress receives one tick per processed draft. *progressbar.ProgressBar
// satisfies it.
type Progress interface {
	Add(n int) error
}

// Feed pulls posted bank transactions for a date range.
type Feed interface {
	GetTransactions(ctx context.Context, start, end time.Time) ([]model.TransactionDraft, error)
}

// ImportOptions tunes an import run.
type ImportOptions struct {
	Progress Progress
	DryRun   bool
}

// ImportResult summarizes an import run.
type ImportResult struct {
	Batch            string
	Transactions     []model.Transaction
	Imported         int
	Skipped          int
	Duplicates       int
	RecurringMatched int
	DryRun           bool
}

// Importer loads drafts from files or bank feeds into one account.
type Importer struct {
	storage service.Storage
	logger  *slog.Logger
}

// NewImporter creates an importer.
func NewImporter(storage service.Storage) *Importer {
	return &Importer{storage: storage, logger: slog.Default().With("component", "importer")}
}

// Import saves drafts to accountID in a single database transaction. Drafts
// already imported (same fingerprint) are counted as duplicates; invalid
// drafts are skipped. Uncategorized drafts take the merchant's remembered
// category, and expenses from a known recurring merchant advance that charge.
func (im *Importer) Import(ctx context.Context, session model.Session, accountID int64, drafts []model.TransactionDraft, opts ImportOptions) (*ImportResult, error) {
	if err := session.Require(); err != nil {
		return nil, err
	}

	result := &ImportResult{Batch: uuid.NewString(), DryRun: opts.DryRun}
	start := time.Now()

	err := service.RunInTx(ctx, im.storage, func(store service.Store) error {
		if _, err := store.GetAccount(ctx, session.UserID, accountID); err != nil {
			return err
		}

		seen := make(map[string]bool, len(drafts))
		for i := range drafts {
			if err := ctx.Err(); err != nil {
				return err
			}
			tick(opts.Progress)

			draft := drafts[i]
			draft.AccountID = accountID
			if err := draft.Validate(); err != nil {
				im.logger.Debug("Skipping draft", "index", i, "merchant", draft.Merchant, "error", err)
				result.Skipped++
				continue
			}

			hash := model.GenerateHash(accountID, draft.Date, draft.Amount, draft.Merchant, draft.ExternalID)
			exists, err := store.TransactionHashExists(ctx, session.UserID, hash)
			if err != nil {
				return fmt.Errorf("failed to check for duplicate: %w", err)
			}
			if exists || seen[hash] {
				result.Duplicates++
				continue
			}
			seen[hash] = true

			txn := fromDraft(session.UserID, draft)
			txn.Hash = hash
			txn.ImportBatch = result.Batch
			if err := im.categorize(ctx, store, txn); err != nil {
				return err
			}

			if !opts.DryRun {
				if err := Post(ctx, store, txn); err != nil {
					return err
				}
				matched, err := im.matchRecurring(ctx, store, txn)
				if err != nil {
					return err
				}
				if matched {
					result.RecurringMatched++
				}
			}
			result.Transactions = append(result.Transactions, *txn)
			result.Imported++
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	im.logger.Info("Import finished",
		"batch", result.Batch,
		"imported", result.Imported,
		"duplicates", result.Duplicates,
		"skipped", result.Skipped,
		"dry_run", opts.DryRun,
		"duration", time.Since(start))
	return result, nil
}

func (im *Importer) categorize(ctx context.Context, store service.Store, txn *model.Transaction) error {
	if txn.Category != model.UncategorizedCategory || txn.Merchant == "" {
		return nil
	}
	rule, err := store.GetCategoryRule(ctx, txn.UserID, txn.Merchant)
	if errors.Is(err, common.ErrNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to look up category rule: %w", err)
	}
	txn.Category = rule.Category
	return store.RecordRuleUse(ctx, txn.UserID, rule.Merchant, time.Now())
}

func (im *Importer) matchRecurring(ctx context.Context, store service.Store, txn *model.Transaction) (bool, error) {
	if txn.Type != model.TypeExpense || txn.Merchant == "" {
		return false, nil
	}
	charge, err := store.FindRecurringChargeByMerchant(ctx, txn.UserID, txn.Merchant)
	if errors.Is(err, common.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to match recurring charge: %w", err)
	}
	if charge.Status != model.RecurringActive {
		return false, nil
	}
	amount := txn.Amount
	if err := recurring.RecordOccurrence(ctx, store, charge, txn.Date, &amount); err != nil {
		return false, err
	}
	return true, nil
}

func tick(p Progress) {
	if p != nil {
		_ = p.Add(1)
	}
}
