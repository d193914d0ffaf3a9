// Package purchases keeps a prioritized list of planned purchases and works
// out which of them the current balance can cover.
package purchases

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/Veraticus/spice-ledger/internal/common"
	"github.com/Veraticus/spice-ledger/internal/ledger"
	"github.com/Veraticus/spice-ledger/internal/model"
	"github.com/Veraticus/spice-ledger/internal/service"
	"github.com/shopspring/decimal"
)

// NewPurchase describes a purchase to plan. Zero Priority means the default.
type NewPurchase struct {
	Deadline      *time.Time
	EstimatedCost decimal.Decimal
	Name          string
	Description   string
	Category      string
	Notes         string
	URL           string
	Priority      int
}

// Bought records how a planned purchase was paid for. With AccountID set an
// expense is posted to that account; TransactionID links an existing one.
type Bought struct {
	ActualCost    *decimal.Decimal
	AccountID     *int64
	TransactionID *int64
}

// Service manages planned purchases.
type Service struct {
	storage service.Storage
	now     func() time.Time
	logger  *slog.Logger
}

// NewService creates a purchase service.
func NewService(storage service.Storage) *Service {
	return &Service{
		storage: storage,
		now:     time.Now,
		logger:  slog.Default().With("component", "purchases"),
	}
}

// WithClock replaces the service clock, for tests.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

func (s *Service) today() time.Time {
	return model.Day(s.now())
}

func (s *Service) validate(cost decimal.Decimal, priority int, deadline *time.Time) error {
	if !cost.IsPositive() {
		return common.Validationf("estimated cost must be positive")
	}
	if priority < model.MinPurchasePriority || priority > model.MaxPurchasePriority {
		return common.Validationf("priority must be between %d (critical) and %d (want)",
			model.MinPurchasePriority, model.MaxPurchasePriority)
	}
	if deadline != nil && model.Day(*deadline).Before(s.today()) {
		return common.Validationf("deadline cannot be in the past")
	}
	return nil
}

// Create plans a purchase.
func (s *Service) Create(ctx context.Context, session model.Session, in NewPurchase) (*model.Purchase, error) {
	if err := session.Require(); err != nil {
		return nil, err
	}
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, common.Validationf("purchase name is required")
	}
	if in.Priority == 0 {
		in.Priority = model.DefaultPurchasePriority
	}
	if err := s.validate(in.EstimatedCost, in.Priority, in.Deadline); err != nil {
		return nil, err
	}

	p := &model.Purchase{
		UserID:        session.UserID,
		Name:          name,
		Description:   strings.TrimSpace(in.Description),
		Category:      strings.TrimSpace(in.Category),
		Notes:         strings.TrimSpace(in.Notes),
		URL:           strings.TrimSpace(in.URL),
		EstimatedCost: in.EstimatedCost,
		Priority:      in.Priority,
		Status:        model.PurchasePlanned,
	}
	if in.Deadline != nil {
		d := model.Day(*in.Deadline)
		p.Deadline = &d
	}
	if err := s.storage.CreatePurchase(ctx, p); err != nil {
		return nil, fmt.Errorf("failed to create purchase: %w", err)
	}
	s.logger.Info("Planned purchase", "name", name, "cost", in.EstimatedCost.StringFixed(2), "priority", in.Priority)
	return p, nil
}

// Get returns one purchase.
func (s *Service) Get(ctx context.Context, session model.Session, id int64) (*model.Purchase, error) {
	if err := session.Require(); err != nil {
		return nil, err
	}
	return s.storage.GetPurchase(ctx, session.UserID, id)
}

// Update edits a planned purchase.
func (s *Service) Update(ctx context.Context, session model.Session, id int64, update model.PurchaseUpdate) (*model.Purchase, error) {
	if err := session.Require(); err != nil {
		return nil, err
	}
	p, err := s.storage.GetPurchase(ctx, session.UserID, id)
	if err != nil {
		return nil, err
	}
	if update.Name != nil {
		name := strings.TrimSpace(*update.Name)
		if name == "" {
			return nil, common.Validationf("purchase name is required")
		}
		update.Name = &name
	}

	update.Apply(p)
	var deadline *time.Time
	if update.Deadline != nil {
		deadline = p.Deadline
	}
	if err := s.validate(p.EstimatedCost, p.Priority, deadline); err != nil {
		return nil, err
	}
	if err := s.storage.UpdatePurchase(ctx, p); err != nil {
		return nil, fmt.Errorf("failed to update purchase: %w", err)
	}
	return p, nil
}

// MarkBought closes a planned purchase. The actual cost defaults to the
// estimate. Posting the expense and updating the purchase happen atomically.
func (s *Service) MarkBought(ctx context.Context, session model.Session, id int64, in Bought) (*model.Purchase, error) {
	if err := session.Require(); err != nil {
		return nil, err
	}
	if in.AccountID != nil && in.TransactionID != nil {
		return nil, common.Validationf("give either an account or a transaction, not both")
	}

	var p *model.Purchase
	err := service.RunInTx(ctx, s.storage, func(store service.Store) error {
		var err error
		p, err = store.GetPurchase(ctx, session.UserID, id)
		if err != nil {
			return err
		}
		if p.Status != model.PurchasePlanned {
			return common.Validationf("purchase %q is already %s", p.Name, p.Status)
		}

		cost := p.EstimatedCost
		if in.ActualCost != nil {
			cost = *in.ActualCost
		}
		if !cost.IsPositive() {
			return common.Validationf("actual cost must be positive")
		}

		switch {
		case in.AccountID != nil:
			category := p.Category
			if category == "" {
				category = model.UncategorizedCategory
			}
			txn := &model.Transaction{
				UserID:      session.UserID,
				AccountID:   *in.AccountID,
				Date:        s.today(),
				Amount:      cost,
				Merchant:    p.Name,
				Category:    category,
				Description: "Planned purchase: " + p.Name,
				Type:        model.TypeExpense,
				Source:      model.SourceManual,
			}
			if err := ledger.Post(ctx, store, txn); err != nil {
				return err
			}
			p.TransactionID = &txn.ID
		case in.TransactionID != nil:
			if _, err := store.GetTransaction(ctx, session.UserID, *in.TransactionID); err != nil {
				return err
			}
			p.TransactionID = in.TransactionID
		}

		now := s.now().UTC()
		p.ActualCost = &cost
		p.PurchasedAt = &now
		p.Status = model.PurchasePurchased
		return store.UpdatePurchase(ctx, p)
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("Purchase bought", "name", p.Name, "cost", p.ActualCost.StringFixed(2))
	return p, nil
}

// Cancel drops a planned purchase but keeps it on record.
func (s *Service) Cancel(ctx context.Context, session model.Session, id int64) (*model.Purchase, error) {
	if err := session.Require(); err != nil {
		return nil, err
	}
	p, err := s.storage.GetPurchase(ctx, session.UserID, id)
	if err != nil {
		return nil, err
	}
	if p.Status != model.PurchasePlanned {
		return nil, common.Validationf("purchase %q is already %s", p.Name, p.Status)
	}
	p.Status = model.PurchaseCancelled
	if err := s.storage.UpdatePurchase(ctx, p); err != nil {
		return nil, fmt.Errorf("failed to cancel purchase: %w", err)
	}
	return p, nil
}

// Delete removes a purchase.
func (s *Service) Delete(ctx context.Context, session model.Session, id int64) error {
	if err := session.Require(); err != nil {
		return err
	}
	return s.storage.DeletePurchase(ctx, session.UserID, id)
}

// Overdue lists planned purchases whose deadline has passed.
func (s *Service) Overdue(ctx context.Context, session model.Session) ([]model.Purchase, error) {
	if err := session.Require(); err != nil {
		return nil, err
	}
	return s.storage.ListOverduePurchases(ctx, session.UserID, s.today())
}
