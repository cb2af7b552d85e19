package domain

import "time"

const (
	dateLayout     = "2006-01-02"
	monthDayLayout = "01-02"
)

// DateOf truncates t to midnight of its calendar day in t's own location.
func DateOf(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// FormatDate renders the calendar day as YYYY-MM-DD.
func FormatDate(t time.Time) string { return t.Format(dateLayout) }

// FormatMonthDay renders the calendar day as MM-DD, ignoring the year.
func FormatMonthDay(t time.Time) string { return t.Format(monthDayLayout) }

// ParseDate parses a YYYY-MM-DD string as a calendar day in loc.
func ParseDate(s string, loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.UTC
	}
	return time.ParseInLocation(dateLayout, s, loc)
}
