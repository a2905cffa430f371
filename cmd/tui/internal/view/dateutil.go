package view

import (
	"time"
)

// Timeframe is one of the statement ranges offered by the picker.
type Timeframe int

const (
	TimeframeThisWeek Timeframe = iota
	TimeframeLastWeek
	TimeframeThisMonth
	TimeframeLastMonth
	TimeframeAll
	TimeframeCustom
)

var timeframeLabels = [...]string{
	TimeframeThisWeek:  "This Week",
	TimeframeLastWeek:  "Last Week",
	TimeframeThisMonth: "This Month",
	TimeframeLastMonth: "Last Month",
	TimeframeAll:       "All Time",
	TimeframeCustom:    "Custom Range",
}

func (t Timeframe) String() string {
	if t < 0 || int(t) >= len(timeframeLabels) {
		return "Unknown"
	}

	return timeframeLabels[t]
}

// TimeframeToDateRange resolves a predefined timeframe relative to now.
// Weeks start on Monday. All and Custom have no fixed range and yield zero
// times.
func TimeframeToDateRange(tf Timeframe, now time.Time) (time.Time, time.Time) {
	monday := startOfDay(now).AddDate(0, 0, -daysSinceMonday(now))
	firstOfMonth := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())

	switch tf {
	case TimeframeThisWeek:
		return monday, now
	case TimeframeLastWeek:
		return monday.AddDate(0, 0, -7), monday.AddDate(0, 0, -1)
	case TimeframeThisMonth:
		return firstOfMonth, now
	case TimeframeLastMonth:
		return firstOfMonth.AddDate(0, -1, 0), firstOfMonth.AddDate(0, 0, -1)
	}

	return time.Time{}, time.Time{}
}

func daysSinceMonday(t time.Time) int {
	return (int(t.Weekday()) + 6) % 7
}

func startOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

// NormalizeDateRange widens a range to whole days in the dates' own
// location, matching the inclusive ranges statements use.
func NormalizeDateRange(start, end time.Time) (time.Time, time.Time) {
	return startOfDay(start), startOfDay(end).AddDate(0, 0, 1).Add(-time.Nanosecond)
}
