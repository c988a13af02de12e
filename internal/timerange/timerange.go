package timerange

import (
	"fmt"
	"time"
)

// Range is a half-open interval [Start, End).
type Range struct {
	Start time.Time
	End   time.Time
}

// WeekRange returns the week containing now: the most recent Sunday at
// 00:00:00.000 local time through the following Saturday at 23:59:59.999.
func WeekRange(now time.Time) Range {
	daysSinceSunday := int(now.Weekday())

	year, month, day := now.AddDate(0, 0, -daysSinceSunday).Date()
	start := time.Date(year, month, day, 0, 0, 0, 0, now.Location())
	end := start.AddDate(0, 0, 7).Add(-time.Millisecond)

	return Range{Start: start, End: end}
}

// Overlaps reports whether [aStart, aEnd) and [bStart, bEnd) intersect.
// Touching endpoints do not overlap.
func Overlaps(aStart, aEnd, bStart, bEnd time.Time) bool {
	return aStart.Before(bEnd) && bStart.Before(aEnd)
}

// FormatISODate renders t as YYYY-MM-DD using UTC calendar fields.
func FormatISODate(t time.Time) (string, error) {
	if t.IsZero() {
		return "", fmt.Errorf("format iso date: zero time")
	}
	return t.UTC().Format("2006-01-02"), nil
}

// ParseISODate parses a YYYY-MM-DD string into a UTC midnight time.
func ParseISODate(s string) (time.Time, error) {
	t, err := time.ParseInLocation("2006-01-02", s, time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse iso date %q: %w", s, err)
	}
	return t, nil
}
