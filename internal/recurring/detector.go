// Package recurring finds and tracks charges that repeat on a schedule.
package recurring

import (
	"math"
	"sort"
	"time"

	"github.com/Veraticus/spice-ledger/internal/model"
	"github.com/shopspring/decimal"
)

// DefaultMinOccurrences is the smallest group Detect will consider.
const DefaultMinOccurrences = 2

const (
	maxConfidence = 0.9
	minConfidence = 0.5
)

// band is an interval window, in days, that identifies one frequency.
type band struct {
	frequency    model.Frequency
	minInterval  float64
	maxInterval  float64
	maxDeviation float64
}

// Bands are checked in order and do not overlap.
var bands = []band{
	{frequency: model.FrequencyWeekly, minInterval: 5, maxInterval: 9, maxDeviation: 3},
	{frequency: model.FrequencyMonthly, minInterval: 25, maxInterval: 34, maxDeviation: 4},
	{frequency: model.FrequencyAnnual, minInterval: 358, maxInterval: 372, maxDeviation: 10},
}

// Detect groups expenses by merchant and proposes a candidate for each group
// whose spacing fits a weekly, monthly or annual band with confidence of at
// least 0.5. Merchants in existing are skipped.
//
// Grouping is by the exact merchant string, so "NETFLIX.COM" and "Netflix"
// are separate merchants. Detect never fails: groups that do not fit simply
// produce nothing. Candidates are sorted by merchant.
func Detect(transactions []model.Transaction, minOccurrences int, existing map[string]bool) []model.RecurringCandidate {
	if minOccurrences < DefaultMinOccurrences {
		minOccurrences = DefaultMinOccurrences
	}

	groups := make(map[string][]model.Transaction)
	for _, txn := range transactions {
		if txn.Type != model.TypeExpense || txn.Merchant == "" {
			continue
		}
		groups[txn.Merchant] = append(groups[txn.Merchant], txn)
	}

	var candidates []model.RecurringCandidate
	for merchant, group := range groups {
		if len(group) < minOccurrences || existing[merchant] {
			continue
		}
		if candidate, ok := classify(merchant, group); ok {
			candidates = append(candidates, candidate)
		}
	}

	sort.Slice(candidates, func(i, j int) bool {
		return candidates[i].Merchant < candidates[j].Merchant
	})
	return candidates
}

func classify(merchant string, group []model.Transaction) (model.RecurringCandidate, bool) {
	sort.SliceStable(group, func(i, j int) bool {
		return group[i].Date.Before(group[j].Date)
	})

	gaps := make([]float64, 0, len(group)-1)
	for i := 1; i < len(group); i++ {
		gaps = append(gaps, float64(model.DaysBetween(group[i-1].Date, group[i].Date)))
	}
	if len(gaps) == 0 {
		return model.RecurringCandidate{}, false
	}

	avg, deviation := intervalStats(gaps)
	if avg <= 0 {
		return model.RecurringCandidate{}, false
	}

	frequency, ok := matchBand(avg, deviation)
	if !ok {
		return model.RecurringCandidate{}, false
	}

	confidence := math.Min(maxConfidence, 1-deviation/avg)
	if confidence < minConfidence {
		return model.RecurringCandidate{}, false
	}

	amounts := make([]decimal.Decimal, len(group))
	for i, txn := range group {
		amounts[i] = txn.Amount
	}

	category := group[0].Category
	if category == "" {
		category = model.UncategorizedCategory
	}

	return model.RecurringCandidate{
		Merchant:        merchant,
		Category:        category,
		TypicalAmount:   decimal.Avg(amounts[0], amounts[1:]...).Round(2),
		Frequency:       frequency,
		OccurrenceCount: len(group),
		Confidence:      confidence,
		FirstSeen:       group[0].Date,
		LastSeen:        group[len(group)-1].Date,
	}, true
}

// intervalStats returns the mean gap and the largest absolute distance from it.
func intervalStats(gaps []float64) (float64, float64) {
	var sum float64
	for _, g := range gaps {
		sum += g
	}
	avg := sum / float64(len(gaps))

	var deviation float64
	for _, g := range gaps {
		deviation = math.Max(deviation, math.Abs(g-avg))
	}
	return avg, deviation
}

func matchBand(avg, deviation float64) (model.Frequency, bool) {
	for _, b := range bands {
		if avg >= b.minInterval && avg <= b.maxInterval && deviation <= b.maxDeviation {
			return b.frequency, true
		}
	}
	return "", false
}

// ProjectNext returns the date after last on which a charge of the given
// frequency is expected again. A monthly charge lands on dayOfPeriod (or the
// day of last) in the following month, never later than the 28th. An annual
// charge anchored on Feb 29 falls on Feb 28 in a non-leap year.
func ProjectNext(last time.Time, frequency model.Frequency, dayOfPeriod *int) time.Time {
	last = model.Day(last)

	switch frequency {
	case model.FrequencyWeekly:
		return last.AddDate(0, 0, 7)

	case model.FrequencyMonthly:
		year, month := last.Year(), last.Month()+1
		if month > time.December {
			year, month = year+1, time.January
		}
		day := last.Day()
		if dayOfPeriod != nil && *dayOfPeriod > 0 {
			day = *dayOfPeriod
		}
		day = min(day, 28, model.DaysIn(year, month))
		return model.Date(year, month, day)

	case model.FrequencyAnnual:
		year := last.Year() + 1
		day := min(last.Day(), model.DaysIn(year, last.Month()))
		return model.Date(year, last.Month(), day)

	default:
		return last
	}
}
