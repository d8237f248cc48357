package scheduling

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseRecurrenceKind(t *testing.T) {
	for input, want := range map[string]RecurrenceKind{
		"":       RecurrenceNone,
		"none":   RecurrenceNone,
		"weekly": RecurrenceWeekly,
		"Weekly": RecurrenceWeekly,
	} {
		got, err := ParseRecurrenceKind(input)
		require.NoError(t, err, input)
		assert.Equal(t, want, got)
	}

	_, err := ParseRecurrenceKind("daily")
	require.Error(t, err)
}

func TestExpandOneOff(t *testing.T) {
	// 2025-06-10 is a Tuesday.
	base := mustWindow(t, "2025-06-10T09:00:00Z", "2025-06-10T12:00:00Z")
	rec := Recurrence{Kind: RecurrenceNone}

	sameDay := ExpandOnDate(base, rec, base.Start)
	require.Len(t, sameDay, 1)
	assert.Equal(t, base, sameDay[0])

	nextDay := ExpandOnDate(base, rec, base.Start.AddDate(0, 0, 1))
	assert.Empty(t, nextDay)
}

func TestExpandWeekly(t *testing.T) {
	base := mustWindow(t, "2025-06-10T09:00:00Z", "2025-06-10T12:00:00Z")
	rec := Recurrence{Kind: RecurrenceWeekly}

	// Anchor week.
	insts := ExpandOnDate(base, rec, base.Start)
	require.Len(t, insts, 1)
	assert.Equal(t, base, insts[0])

	// Two weeks later, same weekday, same time of day.
	later := ExpandOnDate(base, rec, base.Start.AddDate(0, 0, 14))
	require.Len(t, later, 1)
	assert.Equal(t, mustWindow(t, "2025-06-24T09:00:00Z", "2025-06-24T12:00:00Z"), later[0])

	// Wrong weekday produces nothing.
	assert.Empty(t, ExpandOnDate(base, rec, base.Start.AddDate(0, 0, 15)))

	// Days before the anchor produce nothing.
	assert.Empty(t, ExpandOnDate(base, rec, base.Start.AddDate(0, 0, -7)))
}

func TestExpandInvalidBase(t *testing.T) {
	bad := Window{
		Start: mustWindow(t, "2025-06-10T09:00:00Z", "2025-06-10T12:00:00Z").End,
		End:   mustWindow(t, "2025-06-10T09:00:00Z", "2025-06-10T12:00:00Z").Start,
	}
	assert.Nil(t, ExpandOnDate(bad, Recurrence{Kind: RecurrenceWeekly}, bad.Start))
}
