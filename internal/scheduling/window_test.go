package scheduling

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustWindow(t *testing.T, start, end string) Window {
	t.Helper()
	s, err := time.Parse(time.RFC3339, start)
	require.NoError(t, err)
	e, err := time.Parse(time.RFC3339, end)
	require.NoError(t, err)
	return Window{Start: s, End: e}
}

func TestWindowValidate(t *testing.T) {
	w := mustWindow(t, "2025-06-10T09:00:00Z", "2025-06-10T10:00:00Z")
	require.NoError(t, w.Validate())

	backwards := Window{Start: w.End, End: w.Start}
	require.ErrorIs(t, backwards.Validate(), ErrInvalidWindow)

	empty := Window{Start: w.Start, End: w.Start}
	require.ErrorIs(t, empty.Validate(), ErrInvalidWindow)
}

func TestWindowOverlapsHalfOpen(t *testing.T) {
	a := mustWindow(t, "2025-06-10T09:00:00Z", "2025-06-10T09:30:00Z")
	b := mustWindow(t, "2025-06-10T09:30:00Z", "2025-06-10T10:00:00Z")

	// Touching windows do not overlap.
	assert.False(t, a.Overlaps(b))
	assert.False(t, b.Overlaps(a))

	c := mustWindow(t, "2025-06-10T09:15:00Z", "2025-06-10T09:45:00Z")
	assert.True(t, a.Overlaps(c))
	assert.True(t, c.Overlaps(a))
	assert.True(t, b.Overlaps(c))

	inside := mustWindow(t, "2025-06-10T09:10:00Z", "2025-06-10T09:20:00Z")
	assert.True(t, a.Overlaps(inside))
	assert.True(t, inside.Overlaps(a))

	apart := mustWindow(t, "2025-06-10T11:00:00Z", "2025-06-10T11:30:00Z")
	assert.False(t, a.Overlaps(apart))
}

func TestWindowContains(t *testing.T) {
	shift := mustWindow(t, "2025-06-10T09:00:00Z", "2025-06-10T12:00:00Z")

	assert.True(t, shift.Contains(mustWindow(t, "2025-06-10T09:00:00Z", "2025-06-10T09:30:00Z")))
	assert.True(t, shift.Contains(mustWindow(t, "2025-06-10T11:30:00Z", "2025-06-10T12:00:00Z")))
	assert.False(t, shift.Contains(mustWindow(t, "2025-06-10T11:45:00Z", "2025-06-10T12:15:00Z")))
	assert.False(t, shift.Contains(mustWindow(t, "2025-06-10T08:45:00Z", "2025-06-10T09:15:00Z")))
}

func TestSlotGrid(t *testing.T) {
	shift := mustWindow(t, "2025-06-10T09:00:00Z", "2025-06-10T12:00:00Z")

	slots := SlotGrid(shift, 30*time.Minute)
	require.Len(t, slots, 6)
	assert.Equal(t, mustWindow(t, "2025-06-10T09:00:00Z", "2025-06-10T09:30:00Z"), slots[0])
	assert.Equal(t, mustWindow(t, "2025-06-10T11:30:00Z", "2025-06-10T12:00:00Z"), slots[5])

	for i := 1; i < len(slots); i++ {
		assert.Equal(t, slots[i-1].End, slots[i].Start)
	}
}

func TestSlotGridDropsTrailingPartial(t *testing.T) {
	shift := mustWindow(t, "2025-06-10T09:00:00Z", "2025-06-10T10:45:00Z")

	slots := SlotGrid(shift, 30*time.Minute)
	require.Len(t, slots, 3)
	assert.Equal(t, mustWindow(t, "2025-06-10T10:00:00Z", "2025-06-10T10:30:00Z"), slots[2])
}

func TestSlotGridDegenerateInputs(t *testing.T) {
	shift := mustWindow(t, "2025-06-10T09:00:00Z", "2025-06-10T09:20:00Z")

	assert.Nil(t, SlotGrid(shift, 30*time.Minute))
	assert.Nil(t, SlotGrid(shift, 0))
	assert.Nil(t, SlotGrid(Window{Start: shift.End, End: shift.Start}, 30*time.Minute))
}

func TestDayWindow(t *testing.T) {
	at, err := time.Parse(time.RFC3339, "2025-06-10T15:04:05Z")
	require.NoError(t, err)

	day := DayWindow(at)
	assert.Equal(t, mustWindow(t, "2025-06-10T00:00:00Z", "2025-06-11T00:00:00Z"), day)
}
