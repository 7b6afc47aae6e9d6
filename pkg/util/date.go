package util

import "time"

// DayLayout is the label format used for daily buckets.
const DayLayout = "2006-01-02"

// DayStart truncates t to midnight UTC.
func DayStart(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// DaySeries returns every UTC day label from from to to, both inclusive.
// It returns nil when to is before from.
func DaySeries(from, to time.Time) []string {
	start, end := DayStart(from), DayStart(to)
	if end.Before(start) {
		return nil
	}
	out := make([]string, 0, int(end.Sub(start).Hours()/24)+1)
	for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
		out = append(out, d.Format(DayLayout))
	}
	return out
}

// Clamp bounds v to [lo, hi].
func Clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
