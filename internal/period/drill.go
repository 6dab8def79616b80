package period

import (
	"fmt"
	"strconv"
	"time"
)

// Pick is a drill-down selection. Year, month and day are always set; the
// start clock is set once the user has chosen it.
type Pick struct {
	Year, Month, Day int
	StartHour        int
	StartMinute      int
}

// NewPick validates the calendar part of a drill-down selection.
func NewPick(year, month, day, hour, minute string) (Pick, error) {
	vals := make([]int, 0, 5)
	for _, s := range []string{year, month, day, hour, minute} {
		n, err := strconv.Atoi(s)
		if err != nil {
			return Pick{}, fmt.Errorf("%w: %q", ErrInvalidFormat, s)
		}
		vals = append(vals, n)
	}
	p := Pick{Year: vals[0], Month: vals[1], Day: vals[2], StartHour: vals[3], StartMinute: vals[4]}
	if p.Month < 1 || p.Month > 12 || p.Day < 1 || p.Day > 31 ||
		p.StartHour < 0 || p.StartHour > 23 || p.StartMinute < 0 || p.StartMinute > 59 {
		return Pick{}, ErrInvalidFormat
	}
	return p, nil
}

// Date is the picked calendar day formatted as YYYY-MM-DD.
func (p Pick) Date() string {
	return fmt.Sprintf("%04d-%02d-%02d", p.Year, p.Month, p.Day)
}

func (r *Resolver) pickStart(p Pick) time.Time {
	return time.Date(p.Year, time.Month(p.Month), p.Day, p.StartHour, p.StartMinute, 0, 0, r.loc)
}

// Until closes a drill-down at the chosen end clock. The end minute is
// inclusive, so picking the start minute twice covers that whole minute.
func (r *Resolver) Until(p Pick, endHour, endMinute int) (Interval, error) {
	if endHour < 0 || endHour > 23 || endMinute < 0 || endMinute > 59 {
		return Interval{}, ErrInvalidFormat
	}
	start := r.pickStart(p)
	end := time.Date(p.Year, time.Month(p.Month), p.Day, endHour, endMinute, 59, 999999000, r.loc)
	return Ordered(start, end)
}

// ThroughNow closes a drill-down at the current time when the picked day is
// today, otherwise at 23:59 of the picked day.
func (r *Resolver) ThroughNow(p Pick) (Interval, error) {
	start := r.pickStart(p)
	now := r.Now()
	if now.Format(DayLayout) == p.Date() {
		return Ordered(start, now)
	}
	return Ordered(start, time.Date(p.Year, time.Month(p.Month), p.Day, 23, 59, 0, 0, r.loc))
}
