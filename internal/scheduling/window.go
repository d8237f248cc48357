// Package scheduling holds the time arithmetic shared by shifts, appointments
// and computed slots: half-open time windows, slot grids and recurrence
// expansion. Everything here is pure and clock-free.
package scheduling

import (
	"errors"
	"fmt"
	"time"
)

var ErrInvalidWindow = errors.New("window end must be after start")

// Window is a half-open time interval [Start, End).
type Window struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

func NewWindow(start, end time.Time) (Window, error) {
	w := Window{Start: start, End: end}
	if err := w.Validate(); err != nil {
		return Window{}, err
	}
	return w, nil
}

func (w Window) Validate() error {
	if !w.End.After(w.Start) {
		return ErrInvalidWindow
	}
	return nil
}

// Overlaps reports whether two windows intersect under half-open semantics:
// a window ending exactly when another begins does not overlap it.
func (w Window) Overlaps(other Window) bool {
	return w.Start.Before(other.End) && other.Start.Before(w.End)
}

// Contains reports whether other lies entirely inside w.
func (w Window) Contains(other Window) bool {
	return !other.Start.Before(w.Start) && !other.End.After(w.End)
}

func (w Window) Duration() time.Duration {
	return w.End.Sub(w.Start)
}

func (w Window) Equal(other Window) bool {
	return w.Start.Equal(other.Start) && w.End.Equal(other.End)
}

func (w Window) String() string {
	return fmt.Sprintf("[%s, %s)", w.Start.Format(time.RFC3339), w.End.Format(time.RFC3339))
}

// SlotGrid cuts w into consecutive slots of duration d, walking from the
// start. A trailing remainder shorter than d is discarded rather than
// offered as a partial slot.
func SlotGrid(w Window, d time.Duration) []Window {
	if d <= 0 || w.Validate() != nil {
		return nil
	}

	var slots []Window
	for cur := w.Start; !cur.Add(d).After(w.End); cur = cur.Add(d) {
		slots = append(slots, Window{Start: cur, End: cur.Add(d)})
	}
	return slots
}

// DayWindow returns the window covering the calendar day of date, in the
// date's own location.
func DayWindow(date time.Time) Window {
	start := time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, date.Location())
	return Window{Start: start, End: start.AddDate(0, 0, 1)}
}
