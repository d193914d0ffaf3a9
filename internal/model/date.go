package model

import (
	"strings"
	"time"

	"github.com/Veraticus/spice-ledger/internal/common"
)

// DateLayout is the storage and CLI format for calendar dates.
const DateLayout = "2006-01-02"

// Day truncates t to a UTC calendar date so day arithmetic ignores zones and DST.
func Day(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// Date builds a UTC calendar date.
func Date(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

// ParseDate accepts YYYY-MM-DD.
func ParseDate(s string) (time.Time, error) {
	t, err := time.Parse(DateLayout, strings.TrimSpace(s))
	if err != nil {
		return time.Time{}, common.Validationf("invalid date %q, expected YYYY-MM-DD", s)
	}
	return t, nil
}

// FormatDate renders a date as YYYY-MM-DD.
func FormatDate(t time.Time) string {
	return t.Format(DateLayout)
}

// DaysBetween returns the whole days from a to b.
func DaysBetween(a, b time.Time) int {
	return int(Day(b).Sub(Day(a)).Hours() / 24)
}

// DaysIn returns the number of days in the given month.
func DaysIn(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// MonthRange returns the first and last day of a month.
func MonthRange(year int, month time.Month) (time.Time, time.Time) {
	return Date(year, month, 1), Date(year, month, DaysIn(year, month))
}

// PreviousMonth steps back one calendar month.
func PreviousMonth(year int, month time.Month) (int, time.Month) {
	if month == time.January {
		return year - 1, time.December
	}
	return year, month - 1
}

// ParseMonth accepts "YYYY-MM" or "MM" (current year). An empty string means the month containing now.
func ParseMonth(s string, now time.Time) (int, time.Month, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return now.Year(), now.Month(), nil
	}
	if t, err := time.Parse("2006-01", s); err == nil {
		return t.Year(), t.Month(), nil
	}
	if t, err := time.Parse("01", s); err == nil {
		return now.Year(), t.Month(), nil
	}
	if t, err := time.Parse("1", s); err == nil {
		return now.Year(), t.Month(), nil
	}
	return 0, 0, common.Validationf("invalid month %q, expected YYYY-MM or MM", s)
}
