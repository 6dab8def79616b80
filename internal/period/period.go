// Package period turns user-facing period specifications into concrete,
// inclusive datetime intervals in the configured location.
package period

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"
)

const (
	DayLayout      = "2006-01-02"
	MonthLayout    = "2006-01"
	DateTimeLayout = "2006-01-02 15:04"
	ClockLayout    = "15:04"
)

var (
	// ErrInvalidFormat marks input that does not match the expected shape.
	ErrInvalidFormat = errors.New("invalid period format")
	// ErrStartNotBefore marks an interval whose start is not before its end.
	ErrStartNotBefore = errors.New("start must be before end")
)

// Interval is a closed range [Start, End].
type Interval struct {
	Start time.Time
	End   time.Time
}

func (i Interval) Contains(t time.Time) bool {
	return !t.Before(i.Start) && !t.After(i.End)
}

func (i Interval) String() string {
	return fmt.Sprintf("%s → %s", i.Start.Format(DateTimeLayout), i.End.Format(DateTimeLayout))
}

// Resolver computes intervals relative to an injected clock.
type Resolver struct {
	loc *time.Location
	now func() time.Time
}

// NewResolver returns a resolver for loc. A nil clock means time.Now.
func NewResolver(loc *time.Location, now func() time.Time) *Resolver {
	if loc == nil {
		loc = time.UTC
	}
	if now == nil {
		now = time.Now
	}
	return &Resolver{loc: loc, now: now}
}

func (r *Resolver) Location() *time.Location { return r.loc }

// Now returns the current time in the resolver location.
func (r *Resolver) Now() time.Time { return r.now().In(r.loc) }

// StartOfDay truncates t to midnight in its own location.
func StartOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

// EndOfDay returns 23:59:59.999999 on t's calendar day.
func EndOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 23, 59, 59, 999999000, t.Location())
}

// EndOfMonth returns the last instant of t's month. The last day is found by
// jumping to day 28, adding four days and stepping back by the day reached.
func EndOfMonth(t time.Time) time.Time {
	day28 := time.Date(t.Year(), t.Month(), 28, 0, 0, 0, 0, t.Location())
	next := day28.AddDate(0, 0, 4)
	last := next.AddDate(0, 0, -next.Day())
	return EndOfDay(last)
}

// Today is [midnight, end of day] for the current day.
func (r *Resolver) Today() Interval {
	now := r.Now()
	return Interval{Start: StartOfDay(now), End: EndOfDay(now)}
}

// ThisMonth runs from the first of the month up to now.
func (r *Resolver) ThisMonth() Interval {
	now := r.Now()
	return Interval{
		Start: time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, r.loc),
		End:   now,
	}
}

// Day resolves "YYYY-MM-DD".
func (r *Resolver) Day(s string) (Interval, error) {
	d, err := time.ParseInLocation(DayLayout, strings.TrimSpace(s), r.loc)
	if err != nil {
		return Interval{}, fmt.Errorf("%w: day %q", ErrInvalidFormat, s)
	}
	return Interval{Start: d, End: EndOfDay(d)}, nil
}

// Month resolves "YYYY-MM".
func (r *Resolver) Month(s string) (Interval, error) {
	m, err := time.ParseInLocation(MonthLayout, strings.TrimSpace(s), r.loc)
	if err != nil {
		return Interval{}, fmt.Errorf("%w: month %q", ErrInvalidFormat, s)
	}
	return Interval{Start: m, End: EndOfMonth(m)}, nil
}

// DateTime parses one "YYYY-MM-DD HH:MM" bound.
func (r *Resolver) DateTime(s string) (time.Time, error) {
	t, err := time.ParseInLocation(DateTimeLayout, collapseSpaces(s), r.loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: datetime %q", ErrInvalidFormat, s)
	}
	return t, nil
}

// Clock parses one "HH:MM" bound on today's date.
func (r *Resolver) Clock(s string) (time.Time, error) {
	c, err := time.Parse(ClockLayout, strings.TrimSpace(s))
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: time %q", ErrInvalidFormat, s)
	}
	now := r.Now()
	return time.Date(now.Year(), now.Month(), now.Day(), c.Hour(), c.Minute(), 0, 0, r.loc), nil
}

// Range resolves explicit "YYYY-MM-DD HH:MM" start and end values.
func (r *Resolver) Range(start, end string) (Interval, error) {
	s, err := r.DateTime(start)
	if err != nil {
		return Interval{}, err
	}
	e, err := r.DateTime(end)
	if err != nil {
		return Interval{}, err
	}
	return Ordered(s, e)
}

// TimeRange resolves "HH:MM" start and end values on today's date.
func (r *Resolver) TimeRange(start, end string) (Interval, error) {
	s, err := r.Clock(start)
	if err != nil {
		return Interval{}, err
	}
	e, err := r.Clock(end)
	if err != nil {
		return Interval{}, err
	}
	return Ordered(s, e)
}

// Ordered builds an interval, rejecting start >= end.
func Ordered(start, end time.Time) (Interval, error) {
	if !start.Before(end) {
		return Interval{}, ErrStartNotBefore
	}
	return Interval{Start: start, End: end}, nil
}

var (
	rangeSep   = regexp.MustCompile(`(?i)\s+to\s+`)
	spaceRun   = regexp.MustCompile(`\s+`)
	dayShape   = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)
	monthShape = regexp.MustCompile(`^\d{4}-\d{2}$`)
)

func collapseSpaces(s string) string {
	return spaceRun.ReplaceAllString(strings.TrimSpace(s), " ")
}

// Parse resolves the free-text argument of the summarize command: a single
// day, a single month, "A to B" dates, or "A to B" datetimes. Date-only
// ranges cover A's midnight through the end of B.
func (r *Resolver) Parse(args string) (Interval, error) {
	args = collapseSpaces(args)
	if args == "" {
		return Interval{}, ErrInvalidFormat
	}

	parts := rangeSep.Split(args, -1)
	switch len(parts) {
	case 1:
		switch {
		case dayShape.MatchString(args):
			return r.Day(args)
		case monthShape.MatchString(args):
			return r.Month(args)
		}
		return Interval{}, fmt.Errorf("%w: %q", ErrInvalidFormat, args)
	case 2:
		a, b := strings.TrimSpace(parts[0]), strings.TrimSpace(parts[1])
		if dayShape.MatchString(a) && dayShape.MatchString(b) {
			start, err := r.Day(a)
			if err != nil {
				return Interval{}, err
			}
			end, err := r.Day(b)
			if err != nil {
				return Interval{}, err
			}
			return Ordered(start.Start, end.End)
		}
		return r.Range(a, b)
	default:
		return Interval{}, fmt.Errorf("%w: %q", ErrInvalidFormat, args)
	}
}
