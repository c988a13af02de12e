package timerange

import (
	"testing"
	"time"
)

func TestWeekRangeStartsOnSunday(t *testing.T) {
	// Wednesday 2024-06-12
	now := time.Date(2024, 6, 12, 15, 30, 0, 0, time.UTC)

	r := WeekRange(now)

	wantStart := time.Date(2024, 6, 9, 0, 0, 0, 0, time.UTC)
	if !r.Start.Equal(wantStart) {
		t.Fatalf("week start = %s, want %s", r.Start, wantStart)
	}
	if r.Start.Weekday() != time.Sunday {
		t.Fatalf("week start weekday = %s, want Sunday", r.Start.Weekday())
	}

	wantEnd := time.Date(2024, 6, 15, 23, 59, 59, 999_000_000, time.UTC)
	if !r.End.Equal(wantEnd) {
		t.Fatalf("week end = %s, want %s", r.End, wantEnd)
	}
	if r.End.Weekday() != time.Saturday {
		t.Fatalf("week end weekday = %s, want Saturday", r.End.Weekday())
	}
}

func TestWeekRangeOnSundayIsSameDay(t *testing.T) {
	now := time.Date(2024, 6, 9, 8, 0, 0, 0, time.UTC)

	r := WeekRange(now)

	wantStart := time.Date(2024, 6, 9, 0, 0, 0, 0, time.UTC)
	if !r.Start.Equal(wantStart) {
		t.Fatalf("week start = %s, want %s", r.Start, wantStart)
	}
}

func TestOverlaps(t *testing.T) {
	base := time.Date(2024, 6, 10, 9, 0, 0, 0, time.UTC)
	at := func(m int) time.Time { return base.Add(time.Duration(m) * time.Minute) }

	cases := []struct {
		name                           string
		aStart, aEnd, bStart, bEnd     time.Time
		want                           bool
	}{
		{"identical", at(0), at(30), at(0), at(30), true},
		{"partial overlap", at(0), at(30), at(15), at(45), true},
		{"b inside a", at(0), at(60), at(15), at(30), true},
		{"touching endpoints", at(0), at(30), at(30), at(60), false},
		{"disjoint", at(0), at(30), at(45), at(60), false},
		{"reversed order disjoint", at(45), at(60), at(0), at(30), false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := Overlaps(tc.aStart, tc.aEnd, tc.bStart, tc.bEnd); got != tc.want {
				t.Fatalf("Overlaps = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestFormatISODateUsesUTC(t *testing.T) {
	// 23:30 in UTC-5 is the next day in UTC.
	loc := time.FixedZone("UTC-5", -5*3600)
	local := time.Date(2024, 6, 10, 23, 30, 0, 0, loc)

	got, err := FormatISODate(local)
	if err != nil {
		t.Fatalf("FormatISODate: %v", err)
	}
	if got != "2024-06-11" {
		t.Fatalf("FormatISODate = %q, want %q", got, "2024-06-11")
	}
}

func TestFormatISODateRejectsZeroTime(t *testing.T) {
	if _, err := FormatISODate(time.Time{}); err == nil {
		t.Fatal("expected error for zero time")
	}
}

func TestParseISODate(t *testing.T) {
	got, err := ParseISODate("2024-06-10")
	if err != nil {
		t.Fatalf("ParseISODate: %v", err)
	}
	want := time.Date(2024, 6, 10, 0, 0, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Fatalf("ParseISODate = %s, want %s", got, want)
	}

	if _, err := ParseISODate("not-a-date"); err == nil {
		t.Fatal("expected error for malformed input")
	}
}
