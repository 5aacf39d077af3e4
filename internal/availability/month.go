package availability

import "time"

// Range is a half-open calendar interval [Start, End).
type Range struct {
	Start time.Time
	End   time.Time
}

// StartISO renders Start as RFC3339 in the range's location.
func (r Range) StartISO() string { return r.Start.Format(time.RFC3339) }

// EndISO renders End as RFC3339 in the range's location.
func (r Range) EndISO() string { return r.End.Format(time.RFC3339) }

// Contains reports whether t falls inside the range.
func (r Range) Contains(t time.Time) bool {
	return !t.Before(r.Start) && t.Before(r.End)
}

// MonthRange returns [first of month, first of next month) for the month
// containing anchor, in loc.
func MonthRange(anchor time.Time, loc *time.Location) Range {
	if loc == nil {
		loc = time.UTC
	}
	local := anchor.In(loc)
	start := time.Date(local.Year(), local.Month(), 1, 0, 0, 0, 0, loc)
	return Range{Start: start, End: start.AddDate(0, 1, 0)}
}

// MonthAnchor converts a calendar widget's (year, zero-based month) pair into
// the first instant of that month. Out-of-range months roll over the year.
func MonthAnchor(year, zeroBasedMonth int, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	return time.Date(year, time.Month(zeroBasedMonth+1), 1, 0, 0, 0, 0, loc)
}
