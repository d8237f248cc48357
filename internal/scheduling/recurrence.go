package scheduling

import (
	"fmt"
	"strings"
	"time"
)

type RecurrenceKind string

const (
	RecurrenceNone   RecurrenceKind = "none"
	RecurrenceWeekly RecurrenceKind = "weekly"
)

// Recurrence describes how a shift repeats. A shift with RecurrenceNone
// occurs exactly once, at its stored window. A weekly shift repeats on the
// weekday of its stored window, at the stored time of day, indefinitely from
// the stored start.
type Recurrence struct {
	Kind RecurrenceKind `json:"kind"`
}

func ParseRecurrenceKind(s string) (RecurrenceKind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", string(RecurrenceNone):
		return RecurrenceNone, nil
	case string(RecurrenceWeekly):
		return RecurrenceWeekly, nil
	default:
		return "", fmt.Errorf("unknown recurrence kind %q", s)
	}
}

// ExpandOnDate projects a possibly recurring window onto the calendar day of
// date, returning the concrete instances that intersect that day. The base
// window carries both the anchor date and the time of day; weekly shifts
// recur on the base window's weekday from the anchor onward.
func ExpandOnDate(base Window, rec Recurrence, date time.Time) []Window {
	if base.Validate() != nil {
		return nil
	}

	day := DayWindow(date)

	switch rec.Kind {
	case RecurrenceWeekly:
		if day.Start.Weekday() != base.Start.Weekday() {
			return nil
		}
		if day.End.Before(base.Start) || day.End.Equal(base.Start) {
			// Day precedes the anchor occurrence.
			return nil
		}
		start := time.Date(
			day.Start.Year(), day.Start.Month(), day.Start.Day(),
			base.Start.Hour(), base.Start.Minute(), base.Start.Second(), 0,
			day.Start.Location(),
		)
		inst := Window{Start: start, End: start.Add(base.Duration())}
		if inst.Start.Before(base.Start) {
			return nil
		}
		return []Window{inst}
	default:
		if base.Overlaps(day) {
			return []Window{base}
		}
		return nil
	}
}
