// Package availability computes bookable time slots for doctors by
// combining shift schedules with already committed appointments.
package availability

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/mknumberone/clinic-scheduling/internal/schedule"
	"github.com/mknumberone/clinic-scheduling/internal/scheduling"
)

// DefaultSlotDuration is the fallback grid step when a query does not name
// one. Deployments override it through config; it is never baked into the
// computation.
const DefaultSlotDuration = 30 * time.Minute

// ShiftSource resolves shifts and the doctor fan-out set.
type ShiftSource interface {
	ListShiftsForDoctorOnDate(ctx context.Context, doctorID uuid.UUID, date time.Time) ([]schedule.Shift, error)
	ListDoctorIDs(ctx context.Context, branchID uuid.UUID, specialty *string) ([]uuid.UUID, error)
}

// AppointmentSource resolves the active appointment windows that block
// slots. Cancelled and no-show appointments are excluded at the source.
type AppointmentSource interface {
	ListActiveDoctorWindows(ctx context.Context, doctorID uuid.UUID, within scheduling.Window) ([]scheduling.Window, error)
}

// Slot is one bookable window, tagged with the doctor it belongs to.
type Slot struct {
	DoctorID uuid.UUID         `json:"doctor_id"`
	Window   scheduling.Window `json:"window"`
}

type Query struct {
	DoctorID     *uuid.UUID // nil fans out over the branch/specialty filter
	BranchID     uuid.UUID
	Specialty    *string
	Date         time.Time
	SlotDuration time.Duration
}

type Engine struct {
	shifts     ShiftSource
	appts      AppointmentSource
	defaultDur time.Duration
	now        func() time.Time
}

// NewEngine builds an engine whose queries fall back to defaultDur when they
// do not name a slot duration; pass 0 to use DefaultSlotDuration.
func NewEngine(shifts ShiftSource, appts AppointmentSource, defaultDur time.Duration) *Engine {
	if defaultDur <= 0 {
		defaultDur = DefaultSlotDuration
	}
	return &Engine{
		shifts:     shifts,
		appts:      appts,
		defaultDur: defaultDur,
		now:        time.Now,
	}
}

// ComputeAvailableSlots returns the ordered bookable windows for the query
// date. An empty result is a valid answer meaning no availability. The
// overlap predicate here is the same half-open rule the booking path
// enforces, so a returned slot is bookable as-is absent a concurrent race.
func (e *Engine) ComputeAvailableSlots(ctx context.Context, q Query) ([]Slot, error) {
	dur := q.SlotDuration
	if dur <= 0 {
		dur = e.defaultDur
	}

	var doctorIDs []uuid.UUID
	if q.DoctorID != nil {
		doctorIDs = []uuid.UUID{*q.DoctorID}
	} else {
		ids, err := e.shifts.ListDoctorIDs(ctx, q.BranchID, q.Specialty)
		if err != nil {
			return nil, fmt.Errorf("list doctors: %w", err)
		}
		doctorIDs = ids
	}

	var all []Slot
	for _, doctorID := range doctorIDs {
		slots, err := e.slotsForDoctor(ctx, doctorID, q.Date, dur)
		if err != nil {
			return nil, err
		}
		all = append(all, slots...)
	}

	sort.Slice(all, func(i, j int) bool {
		if !all[i].Window.Start.Equal(all[j].Window.Start) {
			return all[i].Window.Start.Before(all[j].Window.Start)
		}
		return all[i].DoctorID.String() < all[j].DoctorID.String()
	})

	return all, nil
}

func (e *Engine) slotsForDoctor(ctx context.Context, doctorID uuid.UUID, date time.Time, dur time.Duration) ([]Slot, error) {
	shifts, err := e.shifts.ListShiftsForDoctorOnDate(ctx, doctorID, date)
	if err != nil {
		return nil, fmt.Errorf("list shifts for doctor %s: %w", doctorID, err)
	}

	// Expand recurrences and grid each occurrence, deduping candidates by
	// (start, end) so overlapping shift entries cannot double-offer a slot.
	seen := make(map[scheduling.Window]struct{})
	var candidates []scheduling.Window
	for _, sh := range shifts {
		for _, inst := range sh.InstancesOn(date) {
			for _, slot := range scheduling.SlotGrid(inst, dur) {
				if _, dup := seen[slot]; dup {
					continue
				}
				seen[slot] = struct{}{}
				candidates = append(candidates, slot)
			}
		}
	}

	if len(candidates) == 0 {
		return nil, nil
	}

	envelope := candidates[0]
	for _, c := range candidates[1:] {
		if c.Start.Before(envelope.Start) {
			envelope.Start = c.Start
		}
		if c.End.After(envelope.End) {
			envelope.End = c.End
		}
	}

	busy, err := e.appts.ListActiveDoctorWindows(ctx, doctorID, envelope)
	if err != nil {
		return nil, fmt.Errorf("list active appointments for doctor %s: %w", doctorID, err)
	}

	now := e.now()

	var out []Slot
	for _, c := range candidates {
		if !c.Start.After(now) {
			continue
		}
		if overlapsAny(c, busy) {
			// Any intersection discards the whole slot; sub-slot splitting
			// is never offered.
			continue
		}
		out = append(out, Slot{DoctorID: doctorID, Window: c})
	}

	return out, nil
}

func overlapsAny(w scheduling.Window, busy []scheduling.Window) bool {
	for _, b := range busy {
		if w.Overlaps(b) {
			return true
		}
	}
	return false
}
