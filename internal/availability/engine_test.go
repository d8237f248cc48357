package availability

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mknumberone/clinic-scheduling/internal/schedule"
	"github.com/mknumberone/clinic-scheduling/internal/scheduling"
)

type fakeShiftSource struct {
	shifts  map[uuid.UUID][]schedule.Shift
	doctors []uuid.UUID
}

func (f *fakeShiftSource) ListShiftsForDoctorOnDate(_ context.Context, doctorID uuid.UUID, _ time.Time) ([]schedule.Shift, error) {
	return f.shifts[doctorID], nil
}

func (f *fakeShiftSource) ListDoctorIDs(_ context.Context, _ uuid.UUID, _ *string) ([]uuid.UUID, error) {
	return f.doctors, nil
}

type fakeAppointmentSource struct {
	busy map[uuid.UUID][]scheduling.Window
}

func (f *fakeAppointmentSource) ListActiveDoctorWindows(_ context.Context, doctorID uuid.UUID, within scheduling.Window) ([]scheduling.Window, error) {
	var out []scheduling.Window
	for _, w := range f.busy[doctorID] {
		if w.Overlaps(within) {
			out = append(out, w)
		}
	}
	return out, nil
}

func ts(t *testing.T, v string) time.Time {
	t.Helper()
	parsed, err := time.Parse(time.RFC3339, v)
	require.NoError(t, err)
	return parsed
}

func win(t *testing.T, start, end string) scheduling.Window {
	t.Helper()
	return scheduling.Window{Start: ts(t, start), End: ts(t, end)}
}

func oneOffShift(doctorID uuid.UUID, w scheduling.Window) schedule.Shift {
	return schedule.Shift{
		ID:         uuid.New(),
		DoctorID:   doctorID,
		Window:     w,
		Recurrence: scheduling.Recurrence{Kind: scheduling.RecurrenceNone},
	}
}

func newTestEngine(shifts *fakeShiftSource, appts *fakeAppointmentSource, now time.Time) *Engine {
	e := NewEngine(shifts, appts, 0)
	e.now = func() time.Time { return now }
	return e
}

func TestComputeAvailableSlotsEmptyShiftDay(t *testing.T) {
	doctorID := uuid.New()
	e := newTestEngine(
		&fakeShiftSource{shifts: map[uuid.UUID][]schedule.Shift{}},
		&fakeAppointmentSource{},
		ts(t, "2025-06-10T08:00:00Z"),
	)

	slots, err := e.ComputeAvailableSlots(context.Background(), Query{
		DoctorID: &doctorID,
		Date:     ts(t, "2025-06-10T00:00:00Z"),
	})
	require.NoError(t, err)
	assert.Empty(t, slots)
}

func TestComputeAvailableSlotsFullShift(t *testing.T) {
	// A 09:00-12:00 shift at 30 minute granularity yields exactly six slots.
	doctorID := uuid.New()
	shift := oneOffShift(doctorID, win(t, "2025-06-10T09:00:00Z", "2025-06-10T12:00:00Z"))

	e := newTestEngine(
		&fakeShiftSource{shifts: map[uuid.UUID][]schedule.Shift{doctorID: {shift}}},
		&fakeAppointmentSource{},
		ts(t, "2025-06-10T08:00:00Z"),
	)

	slots, err := e.ComputeAvailableSlots(context.Background(), Query{
		DoctorID:     &doctorID,
		Date:         ts(t, "2025-06-10T00:00:00Z"),
		SlotDuration: 30 * time.Minute,
	})
	require.NoError(t, err)
	require.Len(t, slots, 6)

	assert.Equal(t, win(t, "2025-06-10T09:00:00Z", "2025-06-10T09:30:00Z"), slots[0].Window)
	assert.Equal(t, win(t, "2025-06-10T11:30:00Z", "2025-06-10T12:00:00Z"), slots[5].Window)
	for _, s := range slots {
		assert.Equal(t, doctorID, s.DoctorID)
	}
}

func TestComputeAvailableSlotsBookedSlotOmitted(t *testing.T) {
	doctorID := uuid.New()
	shift := oneOffShift(doctorID, win(t, "2025-06-10T09:00:00Z", "2025-06-10T12:00:00Z"))

	e := newTestEngine(
		&fakeShiftSource{shifts: map[uuid.UUID][]schedule.Shift{doctorID: {shift}}},
		&fakeAppointmentSource{busy: map[uuid.UUID][]scheduling.Window{
			doctorID: {win(t, "2025-06-10T10:00:00Z", "2025-06-10T10:30:00Z")},
		}},
		ts(t, "2025-06-10T08:00:00Z"),
	)

	slots, err := e.ComputeAvailableSlots(context.Background(), Query{
		DoctorID:     &doctorID,
		Date:         ts(t, "2025-06-10T00:00:00Z"),
		SlotDuration: 30 * time.Minute,
	})
	require.NoError(t, err)
	require.Len(t, slots, 5)

	for _, s := range slots {
		assert.False(t, s.Window.Overlaps(win(t, "2025-06-10T10:00:00Z", "2025-06-10T10:30:00Z")),
			"slot %s should have been dropped", s.Window)
	}
}

func TestComputeAvailableSlotsPartialOverlapDropsWholeSlot(t *testing.T) {
	doctorID := uuid.New()
	shift := oneOffShift(doctorID, win(t, "2025-06-10T09:00:00Z", "2025-06-10T11:00:00Z"))

	// A 20 minute appointment straddling two grid slots blocks both.
	e := newTestEngine(
		&fakeShiftSource{shifts: map[uuid.UUID][]schedule.Shift{doctorID: {shift}}},
		&fakeAppointmentSource{busy: map[uuid.UUID][]scheduling.Window{
			doctorID: {win(t, "2025-06-10T09:20:00Z", "2025-06-10T09:40:00Z")},
		}},
		ts(t, "2025-06-10T08:00:00Z"),
	)

	slots, err := e.ComputeAvailableSlots(context.Background(), Query{
		DoctorID:     &doctorID,
		Date:         ts(t, "2025-06-10T00:00:00Z"),
		SlotDuration: 30 * time.Minute,
	})
	require.NoError(t, err)
	require.Len(t, slots, 2)
	assert.Equal(t, win(t, "2025-06-10T10:00:00Z", "2025-06-10T10:30:00Z"), slots[0].Window)
	assert.Equal(t, win(t, "2025-06-10T10:30:00Z", "2025-06-10T11:00:00Z"), slots[1].Window)
}

func TestComputeAvailableSlotsDedupesOverlappingShifts(t *testing.T) {
	doctorID := uuid.New()
	w := win(t, "2025-06-10T09:00:00Z", "2025-06-10T12:00:00Z")

	// Duplicate shift rows must not double-offer slots.
	e := newTestEngine(
		&fakeShiftSource{shifts: map[uuid.UUID][]schedule.Shift{
			doctorID: {oneOffShift(doctorID, w), oneOffShift(doctorID, w)},
		}},
		&fakeAppointmentSource{},
		ts(t, "2025-06-10T08:00:00Z"),
	)

	slots, err := e.ComputeAvailableSlots(context.Background(), Query{
		DoctorID:     &doctorID,
		Date:         ts(t, "2025-06-10T00:00:00Z"),
		SlotDuration: 30 * time.Minute,
	})
	require.NoError(t, err)
	assert.Len(t, slots, 6)
}

func TestComputeAvailableSlotsExcludesPast(t *testing.T) {
	doctorID := uuid.New()
	shift := oneOffShift(doctorID, win(t, "2025-06-10T09:00:00Z", "2025-06-10T12:00:00Z"))

	// Mid-morning: slots that already started are gone regardless of bookings.
	e := newTestEngine(
		&fakeShiftSource{shifts: map[uuid.UUID][]schedule.Shift{doctorID: {shift}}},
		&fakeAppointmentSource{},
		ts(t, "2025-06-10T10:10:00Z"),
	)

	slots, err := e.ComputeAvailableSlots(context.Background(), Query{
		DoctorID:     &doctorID,
		Date:         ts(t, "2025-06-10T00:00:00Z"),
		SlotDuration: 30 * time.Minute,
	})
	require.NoError(t, err)
	require.Len(t, slots, 3)
	assert.Equal(t, win(t, "2025-06-10T10:30:00Z", "2025-06-10T11:00:00Z"), slots[0].Window)
}

func TestComputeAvailableSlotsFansOutOverDoctors(t *testing.T) {
	docA := uuid.New()
	docB := uuid.New()

	e := newTestEngine(
		&fakeShiftSource{
			doctors: []uuid.UUID{docA, docB},
			shifts: map[uuid.UUID][]schedule.Shift{
				docA: {oneOffShift(docA, win(t, "2025-06-10T09:00:00Z", "2025-06-10T10:00:00Z"))},
				docB: {oneOffShift(docB, win(t, "2025-06-10T09:30:00Z", "2025-06-10T10:30:00Z"))},
			},
		},
		&fakeAppointmentSource{},
		ts(t, "2025-06-10T08:00:00Z"),
	)

	slots, err := e.ComputeAvailableSlots(context.Background(), Query{
		BranchID:     uuid.New(),
		Date:         ts(t, "2025-06-10T00:00:00Z"),
		SlotDuration: 30 * time.Minute,
	})
	require.NoError(t, err)
	require.Len(t, slots, 4)

	// Ordered by start time across doctors.
	for i := 1; i < len(slots); i++ {
		assert.False(t, slots[i].Window.Start.Before(slots[i-1].Window.Start))
	}
	assert.Equal(t, docA, slots[0].DoctorID)
	assert.Equal(t, docB, slots[3].DoctorID)
}

func TestComputeAvailableSlotsDefaultsDuration(t *testing.T) {
	doctorID := uuid.New()
	shift := oneOffShift(doctorID, win(t, "2025-06-10T09:00:00Z", "2025-06-10T10:00:00Z"))

	e := newTestEngine(
		&fakeShiftSource{shifts: map[uuid.UUID][]schedule.Shift{doctorID: {shift}}},
		&fakeAppointmentSource{},
		ts(t, "2025-06-10T08:00:00Z"),
	)

	slots, err := e.ComputeAvailableSlots(context.Background(), Query{
		DoctorID: &doctorID,
		Date:     ts(t, "2025-06-10T00:00:00Z"),
	})
	require.NoError(t, err)
	assert.Len(t, slots, 2)
}

func TestComputeAvailableSlotsWeeklyShift(t *testing.T) {
	doctorID := uuid.New()
	weekly := schedule.Shift{
		ID:         uuid.New(),
		DoctorID:   doctorID,
		Window:     win(t, "2025-06-10T09:00:00Z", "2025-06-10T11:00:00Z"),
		Recurrence: scheduling.Recurrence{Kind: scheduling.RecurrenceWeekly},
	}

	e := newTestEngine(
		&fakeShiftSource{shifts: map[uuid.UUID][]schedule.Shift{doctorID: {weekly}}},
		&fakeAppointmentSource{},
		ts(t, "2025-06-16T08:00:00Z"),
	)

	slots, err := e.ComputeAvailableSlots(context.Background(), Query{
		DoctorID:     &doctorID,
		Date:         ts(t, "2025-06-17T00:00:00Z"),
		SlotDuration: 30 * time.Minute,
	})
	require.NoError(t, err)
	require.Len(t, slots, 4)
	assert.Equal(t, win(t, "2025-06-17T09:00:00Z", "2025-06-17T09:30:00Z"), slots[0].Window)
}
