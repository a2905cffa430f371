package ledger

import (
	"strings"
	"time"
)

// zonedLayouts carry their own offset; localLayouts are read in the ledger's timezone.
var (
	zonedLayouts = []string{
		time.RFC3339Nano,
		"2006-01-02T15:04:05.999999999Z0700",
		"2006-01-02 15:04:05.999999999Z07:00",
	}
	localLayouts = []string{
		"2006-01-02T15:04:05.999999999",
		"2006-01-02 15:04:05.999999999",
		"2006-01-02T15:04",
		time.DateOnly,
	}
)

// ParseTimestamp resolves an optional ISO-8601 timestamp to UTC at microsecond
// precision. Empty or unparsable input yields now, rounded up to the next
// microsecond so it never precedes the call, and false.
func ParseTimestamp(s string, loc *time.Location, now time.Time) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return clockTime(now), false
	}

	if loc == nil {
		loc = time.UTC
	}

	for _, layout := range zonedLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return normalize(t), true
		}
	}

	for _, layout := range localLayouts {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return normalize(t), true
		}
	}

	return clockTime(now), false
}

// normalize truncates caller-supplied times to what the log stores.
func normalize(t time.Time) time.Time {
	return t.UTC().Truncate(time.Microsecond)
}

// clockTime stamps records from the wall clock.
func clockTime(now time.Time) time.Time {
	t := normalize(now)
	if t.Before(now) {
		t = t.Add(time.Microsecond)
	}

	return t
}
