// Package dates holds day-granularity time helpers used across the
// simulation. A "day" is always a UTC midnight time.Time.
package dates

import "time"

const Layout = "2006-01-02"

// New returns the UTC midnight for the given calendar date.
func New(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

// Parse parses a YYYY-MM-DD string into a UTC midnight.
func Parse(s string) (time.Time, error) {
	return time.Parse(Layout, s)
}

// Day truncates t to its UTC midnight.
func Day(t time.Time) time.Time {
	return New(t.UTC().Year(), t.UTC().Month(), t.UTC().Day())
}

// AddDays shifts a day by n calendar days.
func AddDays(t time.Time, n int) time.Time {
	return t.AddDate(0, 0, n)
}

// IsWeekend reports whether the day falls on Saturday or Sunday.
func IsWeekend(t time.Time) bool {
	wd := t.Weekday()
	return wd == time.Saturday || wd == time.Sunday
}

// Format renders a day as YYYY-MM-DD.
func Format(t time.Time) string {
	return t.Format(Layout)
}
