/*
date.go - Billing-cycle date arithmetic

PURPOSE:
  Computes the next occurrence of a recurring charge with correct
  month-end and leap-year handling:
    2026-01-31 + monthly -> 2026-02-28 (clamped, 2026 is not a leap year)
    2024-01-31 + monthly -> 2024-02-29 (leap year)
    2024-02-29 + yearly  -> 2025-02-28

CLAMPING:
  When the anchor day-of-month does not exist in the target month
  (Jan 31 -> February), the result is clamped to the last day of the
  intended month rather than rolling into the following one. time.Time's
  AddDate would roll over (Jan 31 + 1 month = Mar 2/3), so the month and
  year steps are computed from components instead.

ITERATIVE ADVANCEMENT:
  AdvanceToFutureOrToday steps one occurrence at a time. A closed-form
  shortcut would not preserve per-step clamping: repeated monthly steps
  from Jan 31 land on the 28th/29th/31st depending on each intermediate
  month, which a single jump cannot reproduce.

SEE ALSO:
  - types.go: Cycle definition
  - money.go: Cycle-based monthly normalization
*/
package billing

import (
	"time"
)

// =============================================================================
// DATE - Calendar date with no time-of-day component
// =============================================================================

// Date is a calendar date. All dates are normalized to midnight UTC so
// that comparisons are never shifted by caller timezones.
type Date struct {
	Time time.Time
}

// NewDate constructs a Date from components.
func NewDate(year int, month time.Month, day int) Date {
	return Date{Time: time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}
}

// Today returns the current date in UTC.
func Today() Date {
	now := time.Now().UTC()
	return NewDate(now.Year(), now.Month(), now.Day())
}

// ParseDate parses an ISO YYYY-MM-DD string.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return Date{}, &InvalidDateError{Input: s, Cause: err}
	}
	return NewDate(t.Year(), t.Month(), t.Day()), nil
}

// FromTime truncates a time.Time to its UTC calendar date.
func FromTime(t time.Time) Date {
	u := t.UTC()
	return NewDate(u.Year(), u.Month(), u.Day())
}

// Comparison
func (d Date) Before(other Date) bool        { return d.Time.Before(other.Time) }
func (d Date) After(other Date) bool         { return d.Time.After(other.Time) }
func (d Date) Equal(other Date) bool         { return d.Time.Equal(other.Time) }
func (d Date) BeforeOrEqual(other Date) bool { return d.Before(other) || d.Equal(other) }
func (d Date) AfterOrEqual(other Date) bool  { return d.After(other) || d.Equal(other) }

// Properties
func (d Date) Year() int         { return d.Time.Year() }
func (d Date) Month() time.Month { return d.Time.Month() }
func (d Date) Day() int          { return d.Time.Day() }
func (d Date) IsZero() bool      { return d.Time.IsZero() }

// AddDays returns the date n days later. Day addition never needs clamping.
func (d Date) AddDays(n int) Date {
	return Date{Time: d.Time.AddDate(0, 0, n)}
}

// String returns the ISO YYYY-MM-DD form.
func (d Date) String() string {
	return d.Time.Format("2006-01-02")
}

// daysInMonth returns the number of days in the given month.
func daysInMonth(year int, month time.Month) int {
	// Day 0 of the next month is the last day of this month.
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// =============================================================================
// NEXT OCCURRENCE - Single-step advancement with clamping
// =============================================================================

// NextOccurrence returns the next calendar date a charge of the given
// cycle occurs after the anchor date. Pure and total: any valid Date
// yields a valid Date.
func NextOccurrence(anchor Date, cycle Cycle) Date {
	switch cycle {
	case CycleWeekly:
		return anchor.AddDays(7)
	case CycleMonthly:
		return addMonthsClamped(anchor, 1)
	case CycleYearly:
		return addYearsClamped(anchor, 1)
	default:
		// Unreachable for a parsed Cycle; treat as monthly, the most
		// common case, rather than panicking on bad data.
		return addMonthsClamped(anchor, 1)
	}
}

// addMonthsClamped advances by whole months, clamping the day to the last
// day of the target month when the anchor day does not exist there.
func addMonthsClamped(d Date, months int) Date {
	year, month := d.Year(), d.Month()
	// Normalize the target month via a day-1 date so overflow (month 13)
	// carries into the year without touching the day component.
	t := time.Date(year, month+time.Month(months), 1, 0, 0, 0, 0, time.UTC)
	day := d.Day()
	if last := daysInMonth(t.Year(), t.Month()); day > last {
		day = last
	}
	return NewDate(t.Year(), t.Month(), day)
}

// addYearsClamped advances by whole years, clamping Feb 29 anchors to
// Feb 28 in non-leap target years.
func addYearsClamped(d Date, years int) Date {
	year := d.Year() + years
	day := d.Day()
	if last := daysInMonth(year, d.Month()); day > last {
		day = last
	}
	return NewDate(year, d.Month(), day)
}

// =============================================================================
// ADVANCEMENT TO TODAY - Nearest due-or-future occurrence
// =============================================================================

// AdvanceToFutureOrToday steps from start one occurrence at a time until
// the result is on or after today. "Due today" counts as the current
// occurrence and is returned as-is. A start date already in the future is
// returned unchanged with zero iterations.
//
// The loop is bounded: each step advances at least 7 days, so it runs at
// most (today-start)/7 + 1 times.
func AdvanceToFutureOrToday(start Date, cycle Cycle, today Date) Date {
	next := start
	for next.Before(today) {
		next = NextOccurrence(next, cycle)
	}
	return next
}
