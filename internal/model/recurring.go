package model

import (
	"strings"
	"time"

	"github.com/Veraticus/spice-ledger/internal/common"
	"github.com/shopspring/decimal"
)

// Frequency is how often a recurring charge repeats.
type Frequency string

// Frequencies recognised by detection and manual entry.
const (
	FrequencyWeekly  Frequency = "weekly"
	FrequencyMonthly Frequency = "monthly"
	FrequencyAnnual  Frequency = "annual"
)

// ParseFrequency validates a user-supplied frequency. "yearly" is accepted as annual.
func ParseFrequency(s string) (Frequency, error) {
	switch f := strings.ToLower(strings.TrimSpace(s)); f {
	case "weekly", "monthly", "annual":
		return Frequency(f), nil
	case "yearly":
		return FrequencyAnnual, nil
	default:
		return "", common.Validationf("invalid frequency %q, must be weekly, monthly or annual", s)
	}
}

// RecurringStatus is the lifecycle state of a recurring charge.
type RecurringStatus string

// Statuses. Cancelled is terminal.
const (
	RecurringActive    RecurringStatus = "active"
	RecurringPaused    RecurringStatus = "paused"
	RecurringCancelled RecurringStatus = "cancelled"
)

// ParseRecurringStatus validates a status filter.
func ParseRecurringStatus(s string) (RecurringStatus, error) {
	switch st := RecurringStatus(strings.ToLower(strings.TrimSpace(s))); st {
	case RecurringActive, RecurringPaused, RecurringCancelled:
		return st, nil
	default:
		return "", common.Validationf("invalid status %q, must be active, paused or cancelled", s)
	}
}

// RecurringCandidate is a detected but unconfirmed recurring charge.
type RecurringCandidate struct {
	FirstSeen       time.Time
	LastSeen        time.Time
	TypicalAmount   decimal.Decimal
	Merchant        string
	Category        string
	Frequency       Frequency
	Confidence      float64
	OccurrenceCount int
}

// RecurringCharge is a tracked repeating expense.
type RecurringCharge struct {
	FirstSeen        time.Time
	LastSeen         time.Time
	CreatedAt        time.Time
	NextExpectedDate *time.Time
	DayOfPeriod      *int
	TypicalAmount    decimal.Decimal
	Merchant         string
	Category         string
	Frequency        Frequency
	Status           RecurringStatus
	Notes            string
	Confidence       float64
	OccurrenceCount  int
	ID               int64
	UserID           int64
}

// RecurringChargeUpdate lists the fields that may change; nil means unchanged.
// Status moves through Pause, Resume and Cancel instead.
type RecurringChargeUpdate struct {
	LastSeen      *time.Time
	DayOfPeriod   *int
	TypicalAmount *decimal.Decimal
	Merchant      *string
	Category      *string
	Frequency     *Frequency
	Notes         *string
}

// AffectsSchedule reports whether the next expected date must be recomputed.
func (u RecurringChargeUpdate) AffectsSchedule() bool {
	return u.LastSeen != nil || u.Frequency != nil || u.DayOfPeriod != nil
}

// Apply copies the set fields onto c.
func (u RecurringChargeUpdate) Apply(c *RecurringCharge) {
	if u.LastSeen != nil {
		c.LastSeen = Day(*u.LastSeen)
	}
	if u.DayOfPeriod != nil {
		day := *u.DayOfPeriod
		c.DayOfPeriod = &day
	}
	if u.TypicalAmount != nil {
		c.TypicalAmount = *u.TypicalAmount
	}
	if u.Merchant != nil {
		c.Merchant = *u.Merchant
	}
	if u.Category != nil {
		c.Category = *u.Category
	}
	if u.Frequency != nil {
		c.Frequency = *u.Frequency
	}
	if u.Notes != nil {
		c.Notes = *u.Notes
	}
}

// UpcomingCharge is a charge projected to fall due soon.
type UpcomingCharge struct {
	DueDate  time.Time
	Amount   decimal.Decimal
	Merchant string
	ID       int64
}
