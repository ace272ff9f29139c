package accrual

import (
	"fmt"
	"strings"
	"time"
)

// DefaultFallbackMonth is the documented safety net for unparseable month
// labels. It is only consulted when the configured fallback itself fails to
// parse.
const DefaultFallbackMonth = "Feb 2026"

// monthLabelLayout parses labels like "Feb 2026".
const monthLabelLayout = "Jan 2006"

// ProcessingPeriod describes the calendar window of one processing month and
// of the month immediately before it.
type ProcessingPeriod struct {
	Year       int
	MonthIndex int // zero-based, January = 0

	MonthStart time.Time
	MonthEnd   time.Time

	PrevMonthStart time.Time
	PrevMonthEnd   time.Time

	Label     string
	PrevLabel string
}

// ParsePeriod strictly parses a "MMM YYYY" label into a ProcessingPeriod.
func ParsePeriod(label string) (ProcessingPeriod, error) {
	parsed, err := time.Parse(monthLabelLayout, strings.TrimSpace(label))
	if err != nil {
		return ProcessingPeriod{}, fmt.Errorf("accrual: parse month label %q: %w", label, err)
	}
	return periodFor(parsed.Year(), parsed.Month()), nil
}

// ResolvePeriod parses a month label, falling back to the supplied default
// when the label is malformed. It never fails: a bad fallback degrades to
// DefaultFallbackMonth. The second return reports whether the fallback was
// used, so callers can emit a signal instead of silently shifting months.
func ResolvePeriod(label, fallback string) (ProcessingPeriod, bool) {
	if p, err := ParsePeriod(label); err == nil {
		return p, false
	}
	if p, err := ParsePeriod(fallback); err == nil {
		return p, true
	}
	p, _ := ParsePeriod(DefaultFallbackMonth)
	return p, true
}

func periodFor(year int, month time.Month) ProcessingPeriod {
	start := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
	// Day zero of the next month is the last day of this one; the time
	// package normalises January rollovers for us.
	end := time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC)
	prevStart := start.AddDate(0, -1, 0)
	prevEnd := start.AddDate(0, 0, -1)
	return ProcessingPeriod{
		Year:           year,
		MonthIndex:     int(month) - 1,
		MonthStart:     start,
		MonthEnd:       end,
		PrevMonthStart: prevStart,
		PrevMonthEnd:   prevEnd,
		Label:          start.Format(monthLabelLayout),
		PrevLabel:      prevStart.Format(monthLabelLayout),
	}
}

// Contains reports whether the date falls inside the processing month.
func (p ProcessingPeriod) Contains(t time.Time) bool {
	d := dateOf(t)
	return !d.Before(p.MonthStart) && !d.After(p.MonthEnd)
}

// ContainsPrev reports whether the date falls inside the previous month.
func (p ProcessingPeriod) ContainsPrev(t time.Time) bool {
	d := dateOf(t)
	return !d.Before(p.PrevMonthStart) && !d.After(p.PrevMonthEnd)
}

// OverlapDays returns the inclusive day count of the intersection of
// [periodStart, periodEnd] and [rangeStart, rangeEnd]. A one-day overlap
// counts as 1; an empty intersection counts as 0.
func OverlapDays(periodStart, periodEnd, rangeStart, rangeEnd time.Time) int {
	start := laterDate(periodStart, rangeStart)
	end := earlierDate(periodEnd, rangeEnd)
	if end.Before(start) {
		return 0
	}
	return daysBetween(start, end) + 1
}

// InclusiveDays counts days in [start, end] including both endpoints.
// Inverted ranges yield values <= 0 and are floored by the caller.
func InclusiveDays(start, end time.Time) int {
	return daysBetween(dateOf(start), dateOf(end)) + 1
}

// daysBetween operates on UTC-midnight dates, so dividing by 24h is exact
// regardless of month length or leap years.
func daysBetween(a, b time.Time) int {
	return int(b.Sub(a) / (24 * time.Hour))
}

func dateOf(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

func laterDate(a, b time.Time) time.Time {
	a, b = dateOf(a), dateOf(b)
	if a.After(b) {
		return a
	}
	return b
}

func earlierDate(a, b time.Time) time.Time {
	a, b = dateOf(a), dateOf(b)
	if a.Before(b) {
		return a
	}
	return b
}

// dateLayouts are the posting/contract date formats accepted at ingestion.
// Anything else is treated as absent rather than failing the line.
var dateLayouts = []string{
	"2006-01-02",
	"02-01-2006",
	"02/01/2006",
	"2006/01/02",
	"02.01.2006",
	"2 Jan 2006",
	time.RFC3339,
}

// ParseDate parses a free-text date string. The boolean is false when the
// value is empty or matches no accepted layout.
func ParseDate(raw string) (time.Time, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, false
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return dateOf(t), true
		}
	}
	return time.Time{}, false
}
