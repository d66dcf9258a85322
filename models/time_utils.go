package models

import (
	"math"
	"time"
)

const day = 24 * time.Hour

// StartOfDay truncates t to midnight in its own location
func StartOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// StartOfMonth truncates t to the first day of its month
func StartOfMonth(t time.Time) time.Time {
	y, m, _ := t.Date()
	return time.Date(y, m, 1, 0, 0, 0, 0, t.Location())
}

// DaysAgo returns the instant n days before t
func DaysAgo(t time.Time, n int) time.Time {
	return t.Add(-time.Duration(n) * day)
}

// TrailingWindow is the closed range of the last n days ending at now
func TrailingWindow(now time.Time, days int) DateRange {
	return DateRange{From: DaysAgo(now, days), To: now}
}

// DaysBetween is the fractional number of days from a to b
func DaysBetween(a, b time.Time) float64 {
	return b.Sub(a).Hours() / 24
}

// RoundedDaysBetween rounds DaysBetween to the nearest whole day
func RoundedDaysBetween(a, b time.Time) int {
	return int(math.Round(DaysBetween(a, b)))
}
