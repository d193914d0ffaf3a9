package recurring

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/Veraticus/spice-ledger/internal/common"
	"github.com/Veraticus/spice-ledger/internal/model"
	"github.com/Veraticus/spice-ledger/internal/service"
	"github.com/shopspring/decimal"
)

// NewCharge is the input for manually tracking a recurring charge.
type NewCharge struct {
	FirstSeen     *time.Time
	LastSeen      *time.Time
	DayOfPeriod   *int
	TypicalAmount decimal.Decimal
	Merchant      string
	Category      string
	Frequency     model.Frequency
	Notes         string
}

// Service manages a user's recurring charges.
type Service struct {
	store  service.Store
	now    func() time.Time
	logger *slog.Logger
}

// NewService creates a recurring charge service.
func NewService(store service.Store) *Service {
	return &Service{
		store:  store,
		now:    time.Now,
		logger: slog.Default().With("component", "recurring"),
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

// Detect scans all of the user's transactions for repeating expenses that are
// not already tracked by an active or paused charge.
func (s *Service) Detect(ctx context.Context, session model.Session, minOccurrences int) ([]model.RecurringCandidate, error) {
	if err := session.Require(); err != nil {
		return nil, err
	}

	txns, err := s.store.SearchTransactions(ctx, session.UserID, model.TransactionFilter{Type: model.TypeExpense})
	if err != nil {
		return nil, fmt.Errorf("failed to load transactions: %w", err)
	}

	charges, err := s.store.ListRecurringCharges(ctx, session.UserID, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to load recurring charges: %w", err)
	}
	existing := make(map[string]bool, len(charges))
	for _, c := range charges {
		if c.Status != model.RecurringCancelled {
			existing[c.Merchant] = true
		}
	}

	candidates := Detect(txns, minOccurrences, existing)
	s.logger.Info("Recurring detection finished",
		"transactions", len(txns),
		"candidates", len(candidates))
	return candidates, nil
}

// Confirm starts tracking a detected candidate.
func (s *Service) Confirm(ctx context.Context, session model.Session, candidate model.RecurringCandidate) (*model.RecurringCharge, error) {
	if err := session.Require(); err != nil {
		return nil, err
	}

	next := ProjectNext(candidate.LastSeen, candidate.Frequency, nil)
	charge := &model.RecurringCharge{
		UserID:           session.UserID,
		Merchant:         candidate.Merchant,
		Category:         candidate.Category,
		TypicalAmount:    candidate.TypicalAmount,
		Frequency:        candidate.Frequency,
		FirstSeen:        model.Day(candidate.FirstSeen),
		LastSeen:         model.Day(candidate.LastSeen),
		NextExpectedDate: &next,
		OccurrenceCount:  candidate.OccurrenceCount,
		Confidence:       candidate.Confidence,
		Status:           model.RecurringActive,
	}
	if err := s.store.CreateRecurringCharge(ctx, charge); err != nil {
		return nil, fmt.Errorf("failed to confirm recurring charge: %w", err)
	}
	return charge, nil
}

// Create tracks a charge entered by hand. Manual entries are fully trusted.
func (s *Service) Create(ctx context.Context, session model.Session, in NewCharge) (*model.RecurringCharge, error) {
	if err := session.Require(); err != nil {
		return nil, err
	}

	merchant := strings.TrimSpace(in.Merchant)
	if merchant == "" {
		return nil, common.Validationf("merchant is required")
	}
	frequency, err := model.ParseFrequency(string(in.Frequency))
	if err != nil {
		return nil, err
	}
	if !in.TypicalAmount.IsPositive() {
		return nil, common.Validationf("typical amount must be positive")
	}
	if err := validateDayOfPeriod(in.DayOfPeriod); err != nil {
		return nil, err
	}

	today := s.today()
	first, last := today, today
	if in.FirstSeen != nil {
		first = model.Day(*in.FirstSeen)
	}
	if in.LastSeen != nil {
		last = model.Day(*in.LastSeen)
	}

	category := strings.TrimSpace(in.Category)
	if category == "" {
		category = model.UncategorizedCategory
	}

	next := ProjectNext(last, frequency, in.DayOfPeriod)
	charge := &model.RecurringCharge{
		UserID:           session.UserID,
		Merchant:         merchant,
		Category:         category,
		TypicalAmount:    in.TypicalAmount,
		Frequency:        frequency,
		DayOfPeriod:      in.DayOfPeriod,
		FirstSeen:        first,
		LastSeen:         last,
		NextExpectedDate: &next,
		OccurrenceCount:  1,
		Confidence:       1,
		Status:           model.RecurringActive,
		Notes:            in.Notes,
	}
	if err := s.store.CreateRecurringCharge(ctx, charge); err != nil {
		return nil, fmt.Errorf("failed to create recurring charge: %w", err)
	}
	return charge, nil
}

func validateDayOfPeriod(day *int) error {
	if day != nil && (*day < 1 || *day > 31) {
		return common.Validationf("day of period must be between 1 and 31")
	}
	return nil
}

// Get returns one charge.
func (s *Service) Get(ctx context.Context, session model.Session, id int64) (*model.RecurringCharge, error) {
	if err := session.Require(); err != nil {
		return nil, err
	}
	return s.store.GetRecurringCharge(ctx, session.UserID, id)
}

// GetByMerchantOrID resolves a CLI reference: a numeric ID first, then a
// case-insensitive merchant name.
func (s *Service) GetByMerchantOrID(ctx context.Context, session model.Session, ref string) (*model.RecurringCharge, error) {
	if err := session.Require(); err != nil {
		return nil, err
	}

	ref = strings.TrimSpace(ref)
	if id, err := strconv.ParseInt(ref, 10, 64); err == nil {
		charge, err := s.store.GetRecurringCharge(ctx, session.UserID, id)
		if err == nil || !errors.Is(err, common.ErrNotFound) {
			return charge, err
		}
	}
	return s.store.FindRecurringChargeByMerchant(ctx, session.UserID, ref)
}

// List returns charges, optionally filtered by status.
func (s *Service) List(ctx context.Context, session model.Session, status *model.RecurringStatus) ([]model.RecurringCharge, error) {
	if err := session.Require(); err != nil {
		return nil, err
	}
	return s.store.ListRecurringCharges(ctx, session.UserID, status)
}

// Upcoming returns active charges due within days of today, overdue ones included.
func (s *Service) Upcoming(ctx context.Context, session model.Session, days int) ([]model.UpcomingCharge, error) {
	if err := session.Require(); err != nil {
		return nil, err
	}
	if days < 0 {
		return nil, common.Validationf("days cannot be negative")
	}

	charges, err := s.store.ListUpcomingCharges(ctx, session.UserID, s.today().AddDate(0, 0, days))
	if err != nil {
		return nil, fmt.Errorf("failed to load upcoming charges: %w", err)
	}

	upcoming := make([]model.UpcomingCharge, 0, len(charges))
	for _, c := range charges {
		upcoming = append(upcoming, model.UpcomingCharge{
			ID:       c.ID,
			Merchant: c.Merchant,
			Amount:   c.TypicalAmount,
			DueDate:  *c.NextExpectedDate,
		})
	}
	return upcoming, nil
}

// UpcomingTotal sums the amounts of a set of upcoming charges.
func UpcomingTotal(charges []model.UpcomingCharge) decimal.Decimal {
	total := decimal.Zero
	for _, c := range charges {
		total = total.Add(c.Amount)
	}
	return total
}

// Update applies a partial update, recomputing the next expected date when the
// schedule changed.
func (s *Service) Update(ctx context.Context, session model.Session, id int64, update model.RecurringChargeUpdate) (*model.RecurringCharge, error) {
	if err := session.Require(); err != nil {
		return nil, err
	}
	if update.Frequency != nil {
		if _, err := model.ParseFrequency(string(*update.Frequency)); err != nil {
			return nil, err
		}
	}
	if update.TypicalAmount != nil && !update.TypicalAmount.IsPositive() {
		return nil, common.Validationf("typical amount must be positive")
	}
	if update.Merchant != nil && strings.TrimSpace(*update.Merchant) == "" {
		return nil, common.Validationf("merchant cannot be empty")
	}
	if err := validateDayOfPeriod(update.DayOfPeriod); err != nil {
		return nil, err
	}

	charge, err := s.store.GetRecurringCharge(ctx, session.UserID, id)
	if err != nil {
		return nil, err
	}

	update.Apply(charge)
	if update.AffectsSchedule() {
		next := ProjectNext(charge.LastSeen, charge.Frequency, charge.DayOfPeriod)
		charge.NextExpectedDate = &next
	}

	if err := s.store.UpdateRecurringCharge(ctx, charge); err != nil {
		return nil, fmt.Errorf("failed to update recurring charge: %w", err)
	}
	return charge, nil
}

// Pause suspends an active charge.
func (s *Service) Pause(ctx context.Context, session model.Session, id int64) (*model.RecurringCharge, error) {
	return s.transition(ctx, session, id, model.RecurringActive, model.RecurringPaused)
}

// Resume reactivates a paused charge.
func (s *Service) Resume(ctx context.Context, session model.Session, id int64) (*model.RecurringCharge, error) {
	return s.transition(ctx, session, id, model.RecurringPaused, model.RecurringActive)
}

// Cancel stops tracking a charge for good.
func (s *Service) Cancel(ctx context.Context, session model.Session, id int64) (*model.RecurringCharge, error) {
	return s.transition(ctx, session, id, "", model.RecurringCancelled)
}

// transition moves a charge to status to. An empty from allows any state
// except cancelled.
func (s *Service) transition(ctx context.Context, session model.Session, id int64, from, to model.RecurringStatus) (*model.RecurringCharge, error) {
	if err := session.Require(); err != nil {
		return nil, err
	}

	charge, err := s.store.GetRecurringCharge(ctx, session.UserID, id)
	if err != nil {
		return nil, err
	}

	switch {
	case charge.Status == model.RecurringCancelled:
		return nil, common.Validationf("recurring charge %d is cancelled", id)
	case from != "" && charge.Status != from:
		return nil, common.Validationf("recurring charge %d is %s, not %s", id, charge.Status, from)
	}

	charge.Status = to
	if err := s.store.UpdateRecurringCharge(ctx, charge); err != nil {
		return nil, fmt.Errorf("failed to update recurring charge: %w", err)
	}
	s.logger.Info("Recurring charge status changed", "id", id, "status", to)
	return charge, nil
}

// Delete removes a charge entirely.
func (s *Service) Delete(ctx context.Context, session model.Session, id int64) error {
	if err := session.Require(); err != nil {
		return err
	}
	return s.store.DeleteRecurringCharge(ctx, session.UserID, id)
}

// RecordOccurrence notes that a charge was seen again on date.
func (s *Service) RecordOccurrence(ctx context.Context, session model.Session, id int64, date time.Time, amount *decimal.Decimal) (*model.RecurringCharge, error) {
	if err := session.Require(); err != nil {
		return nil, err
	}

	charge, err := s.store.GetRecurringCharge(ctx, session.UserID, id)
	if err != nil {
		return nil, err
	}
	if err := RecordOccurrence(ctx, s.store, charge, date, amount); err != nil {
		return nil, err
	}
	return charge, nil
}

// RecordOccurrence bumps the occurrence count of charge, moves last_seen
// forward when date is newer, recomputes the next expected date and saves it
// through store. A non-nil amount becomes the new typical amount. The import
// pipeline calls it with its transaction-scoped store.
func RecordOccurrence(ctx context.Context, store service.Store, charge *model.RecurringCharge, date time.Time, amount *decimal.Decimal) error {
	date = model.Day(date)
	charge.OccurrenceCount++
	if date.After(charge.LastSeen) {
		charge.LastSeen = date
	}
	if amount != nil && amount.IsPositive() {
		charge.TypicalAmount = *amount
	}
	next := ProjectNext(charge.LastSeen, charge.Frequency, charge.DayOfPeriod)
	charge.NextExpectedDate = &next

	if err := store.UpdateRecurringCharge(ctx, charge); err != nil {
		return fmt.Errorf("failed to record occurrence: %w", err)
	}
	return nil
}
