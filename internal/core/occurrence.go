package core

import "time"

// OccurrenceDate returns the date in anchor's month on which a template with
// the given nominal day triggers. Days below 1 are treated as 1; days past the
// month's end are clamped to the last day (Feb 31 -> Feb 28/29). The time
// component is zeroed, UTC.
func OccurrenceDate(day int, anchor time.Time) time.Time {
	last := LastDayOfMonth(anchor)
	if day < 1 {
		day = 1
	}
	if day > last {
		day = last
	}
	return time.Date(anchor.Year(), anchor.Month(), day, 0, 0, 0, 0, time.UTC)
}

// LastDayOfMonth returns the number of days in t's month, leap years included.
func LastDayOfMonth(t time.Time) int {
	return time.Date(t.Year(), t.Month()+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// MonthBounds returns the first and last instant of the calendar month
// containing ref: [start of day 1, end of the last day].
func MonthBounds(ref time.Time) (start, end time.Time) {
	start = time.Date(ref.Year(), ref.Month(), 1, 0, 0, 0, 0, time.UTC)
	end = start.AddDate(0, 1, 0).Add(-time.Nanosecond)
	return start, end
}

// SameMonth reports whether a and b fall in the same calendar year and month.
func SameMonth(a, b time.Time) bool {
	return a.Year() == b.Year() && a.Month() == b.Month()
}
