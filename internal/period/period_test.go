package period

import (
	"errors"
	"testing"
	"time"
)

var phnomPenh = time.FixedZone("ICT", 7*3600)

func fixedResolver(now time.Time) *Resolver {
	return NewResolver(phnomPenh, func() time.Time { return now })
}

func TestEndOfMonth(t *testing.T) {
	cases := []struct {
		year  int
		month time.Month
		last  int
	}{
		{2025, time.January, 31},
		{2023, time.February, 28},
		{2024, time.February, 29},
		{1900, time.February, 28},
		{2000, time.February, 29},
		{2025, time.March, 31},
		{2025, time.April, 30},
		{2025, time.May, 31},
		{2025, time.June, 30},
		{2025, time.July, 31},
		{2025, time.August, 31},
		{2025, time.September, 30},
		{2025, time.October, 31},
		{2025, time.November, 30},
		{2025, time.December, 31},
	}
	for _, tc := range cases {
		got := EndOfMonth(time.Date(tc.year, tc.month, 15, 10, 0, 0, 0, phnomPenh))
		want := time.Date(tc.year, tc.month, tc.last, 23, 59, 59, 999999000, phnomPenh)
		if !got.Equal(want) {
			t.Errorf("%d-%02d: got %v, want %v", tc.year, tc.month, got, want)
		}
	}
}

func TestResolver_TodayAndThisMonth(t *testing.T) {
	now := time.Date(2025, 11, 19, 14, 30, 0, 0, phnomPenh)
	r := fixedResolver(now)

	today := r.Today()
	if !today.Start.Equal(time.Date(2025, 11, 19, 0, 0, 0, 0, phnomPenh)) {
		t.Fatalf("today start = %v", today.Start)
	}
	if !today.End.Equal(time.Date(2025, 11, 19, 23, 59, 59, 999999000, phnomPenh)) {
		t.Fatalf("today end = %v", today.End)
	}

	month := r.ThisMonth()
	if !month.Start.Equal(time.Date(2025, 11, 1, 0, 0, 0, 0, phnomPenh)) {
		t.Fatalf("month start = %v", month.Start)
	}
	if !month.End.Equal(now) {
		t.Fatalf("this month must end at now, got %v", month.End)
	}
}

func TestResolver_UsesConfiguredLocation(t *testing.T) {
	// 20:00 UTC on the 18th is already the 19th in Phnom Penh.
	r := fixedResolver(time.Date(2025, 11, 18, 20, 0, 0, 0, time.UTC))
	if got := r.Today().Start.Day(); got != 19 {
		t.Fatalf("today should follow the resolver location, got day %d", got)
	}
}

func TestResolver_DayAndMonth(t *testing.T) {
	r := fixedResolver(time.Now())

	day, err := r.Day("2025-11-12")
	if err != nil {
		t.Fatal(err)
	}
	if day.Start.Format(time.DateTime) != "2025-11-12 00:00:00" || day.End.Format(time.DateTime) != "2025-11-12 23:59:59" {
		t.Fatalf("day = %v", day)
	}

	feb, err := r.Month("2024-02")
	if err != nil {
		t.Fatal(err)
	}
	if feb.End.Day() != 29 {
		t.Fatalf("2024-02 should end on the 29th, got %v", feb.End)
	}

	for _, bad := range []string{"2025-13-01", "12-11-2025", "2025/11/12", ""} {
		if _, err := r.Day(bad); !errors.Is(err, ErrInvalidFormat) {
			t.Errorf("Day(%q) = %v, want ErrInvalidFormat", bad, err)
		}
	}
	if _, err := r.Month("2025-00"); !errors.Is(err, ErrInvalidFormat) {
		t.Errorf("expected invalid month")
	}
}

func TestResolver_RangeOrdering(t *testing.T) {
	r := fixedResolver(time.Now())

	if _, err := r.Range("2025-11-12 20:00", "2025-11-12 08:00"); !errors.Is(err, ErrStartNotBefore) {
		t.Fatalf("reversed range: got %v, want ErrStartNotBefore", err)
	}
	if _, err := r.Range("2025-11-12 08:00", "2025-11-12 08:00"); !errors.Is(err, ErrStartNotBefore) {
		t.Fatalf("equal bounds: got %v, want ErrStartNotBefore", err)
	}
	iv, err := r.Range("2025-11-12 08:00", "2025-11-12 20:00")
	if err != nil {
		t.Fatal(err)
	}
	if iv.Start.Hour() != 8 || iv.End.Hour() != 20 {
		t.Fatalf("range = %v", iv)
	}
	if _, err := r.Range("2025-11-12 8am", "2025-11-12 20:00"); !errors.Is(err, ErrInvalidFormat) {
		t.Fatalf("malformed bound: got %v", err)
	}
}

func TestResolver_TimeRange(t *testing.T) {
	r := fixedResolver(time.Date(2025, 11, 19, 14, 30, 0, 0, phnomPenh))

	iv, err := r.TimeRange("08:00", "12:15")
	if err != nil {
		t.Fatal(err)
	}
	if iv.Start.Format(DateTimeLayout) != "2025-11-19 08:00" || iv.End.Format(DateTimeLayout) != "2025-11-19 12:15" {
		t.Fatalf("time range = %v", iv)
	}
	if _, err := r.TimeRange("12:00", "08:00"); !errors.Is(err, ErrStartNotBefore) {
		t.Fatalf("got %v", err)
	}
	if _, err := r.TimeRange("25:00", "08:00"); !errors.Is(err, ErrInvalidFormat) {
		t.Fatalf("got %v", err)
	}
}

func TestResolver_Parse(t *testing.T) {
	r := fixedResolver(time.Now())

	cases := []struct {
		in         string
		start, end string
	}{
		{"2025-11-12", "2025-11-12 00:00", "2025-11-12 23:59"},
		{"2024-02", "2024-02-01 00:00", "2024-02-29 23:59"},
		{"2025-11-01 to 2025-11-03", "2025-11-01 00:00", "2025-11-03 23:59"},
		{"2025-11-01   TO 2025-11-01", "2025-11-01 00:00", "2025-11-01 23:59"},
		{"2025-11-12 08:00 to 2025-11-12 20:30", "2025-11-12 08:00", "2025-11-12 20:30"},
	}
	for _, tc := range cases {
		iv, err := r.Parse(tc.in)
		if err != nil {
			t.Errorf("Parse(%q): %v", tc.in, err)
			continue
		}
		if got := iv.Start.Format(DateTimeLayout); got != tc.start {
			t.Errorf("Parse(%q) start = %s, want %s", tc.in, got, tc.start)
		}
		if got := iv.End.Format(DateTimeLayout); got != tc.end {
			t.Errorf("Parse(%q) end = %s, want %s", tc.in, got, tc.end)
		}
	}

	if _, err := r.Parse("2025-11-03 to 2025-11-01"); !errors.Is(err, ErrStartNotBefore) {
		t.Errorf("reversed dates: %v", err)
	}
	for _, bad := range []string{"", "yesterday", "2025", "a to b", "2025-11-01 to 2025-11-02 to 2025-11-03"} {
		if _, err := r.Parse(bad); !errors.Is(err, ErrInvalidFormat) {
			t.Errorf("Parse(%q) = %v, want ErrInvalidFormat", bad, err)
		}
	}
}

func TestInterval_Contains(t *testing.T) {
	iv := Interval{
		Start: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
		End:   time.Date(2025, 1, 1, 23, 59, 59, 0, time.UTC),
	}
	if !iv.Contains(iv.Start) || !iv.Contains(iv.End) {
		t.Fatal("bounds must be inclusive")
	}
	if iv.Contains(iv.End.Add(time.Second)) {
		t.Fatal("after end must be excluded")
	}
}
