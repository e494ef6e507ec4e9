package model

import (
	"fmt"
	"time"
)

// Recurrence is the rule by which an expiring offering spawns its successor.
type Recurrence string

// Recurrence values. RecurNone is stored as NULL.
const (
	RecurNone    Recurrence = ""
	RecurDaily   Recurrence = "daily"
	RecurWeekly  Recurrence = "weekly"
	RecurMonthly Recurrence = "monthly"
)

// recurNoneInput is the value the submission form sends for "does not
// repeat".
const recurNoneInput = "none"

// ParseRecurrence maps user input to a Recurrence. Both the empty string and
// "none" mean no recurrence.
func ParseRecurrence(s string) (Recurrence, error) {
	switch s {
	case "", recurNoneInput:
		return RecurNone, nil
	}
	r := Recurrence(s)
	if !r.Valid() {
		return RecurNone, fmt.Errorf("%w: unknown value %q", ErrRecurrence, s)
	}
	return r, nil
}

// Valid reports whether r is one of the repeating rules.
func (r Recurrence) Valid() bool {
	switch r {
	case RecurDaily, RecurWeekly, RecurMonthly:
		return true
	}
	return false
}

// Next advances t by one period. Monthly recurrence keeps the day of month
// when the target month has it and otherwise clamps to that month's last
// day, so Jan 31 becomes Feb 28 (or 29) rather than rolling into March.
func (r Recurrence) Next(t time.Time) time.Time {
	switch r {
	case RecurDaily:
		return t.AddDate(0, 0, 1)
	case RecurWeekly:
		return t.AddDate(0, 0, 7)
	case RecurMonthly:
		return addMonthClamped(t)
	}
	return t
}

func addMonthClamped(t time.Time) time.Time {
	year, month, day := t.Date()
	// Day 0 of the month after next is the last day of next month.
	last := time.Date(year, month+2, 0, 0, 0, 0, 0, t.Location()).Day()
	if day > last {
		day = last
	}
	return time.Date(year, month+1, day, t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), t.Location())
}
