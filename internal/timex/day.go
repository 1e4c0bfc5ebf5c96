// Package timex provides calendar-day helpers and a JSON-friendly Duration.
package timex

import "time"

// StartOfDay returns 00:00:00 of the same calendar day in t's location.
func StartOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

// SameDay reports whether two times fall on the same calendar day.
func SameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}

// DayCutoff returns the start of the calendar day `days` days before now.
// Anything strictly before the returned instant is older than `days` whole
// calendar days, regardless of time-of-day.
func DayCutoff(now time.Time, days int) time.Time {
	return StartOfDay(now).AddDate(0, 0, -days)
}
