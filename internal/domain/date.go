package domain

import (
	"strings"
	"time"
)

// DateLayout is the canonical text form of a row date.
const DateLayout = "2006-01-02"

const day = 24 * time.Hour

// dateLayouts are tried in order by ParseDate. Layouts without a zone are
// read as UTC.
var dateLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05.999999999-07:00",
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05",
	DateLayout,
	"2006 Jan 2",
	"2006 January 2",
	"2006-Jan-02",
	time.RFC1123,
	time.RFC1123Z,
	"Mon Jan 2 2006",
	"Jan 2, 2006",
}

// NormalizeDate returns midnight UTC of t's UTC calendar day. The zero time
// stays zero.
func NormalizeDate(t time.Time) time.Time {
	if t.IsZero() {
		return time.Time{}
	}
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// ParseDate reads a date or timestamp string and normalizes it with
// NormalizeDate. It reports false for empty or unrecognised input.
func ParseDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return NormalizeDate(t), true
		}
	}
	return time.Time{}, false
}

// FormatDate renders a row date as YYYY-MM-DD.
func FormatDate(t time.Time) string {
	return NormalizeDate(t).Format(DateLayout)
}

// AddDays moves t by n whole days.
func AddDays(t time.Time, n int) time.Time {
	return t.Add(time.Duration(n) * day)
}

// DaysBetween returns the whole number of days from a to b, rounded to the
// nearest day.
func DaysBetween(a, b time.Time) int {
	return int(b.Sub(a).Round(day) / day)
}
