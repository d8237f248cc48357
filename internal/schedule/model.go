// Package schedule manages doctor shifts: the recurring or one-off intervals
// during which a doctor staffs a room and is bookable.
package schedule

import (
	"time"

	"github.com/google/uuid"

	"github.com/mknumberone/clinic-scheduling/internal/scheduling"
)

type Shift struct {
	ID         uuid.UUID
	DoctorID   uuid.UUID
	RoomID     uuid.UUID
	BranchID   uuid.UUID
	Window     scheduling.Window
	Recurrence scheduling.Recurrence
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// InstancesOn returns the concrete occurrences of the shift that intersect
// the calendar day of date.
func (s Shift) InstancesOn(date time.Time) []scheduling.Window {
	return scheduling.ExpandOnDate(s.Window, s.Recurrence, date)
}

type Doctor struct {
	ID        uuid.UUID
	Name      string
	BranchID  uuid.UUID
	Specialty *string
	CreatedAt time.Time
	UpdatedAt time.Time
}

type Room struct {
	ID        uuid.UUID
	BranchID  uuid.UUID
	Name      string
	CreatedAt time.Time
	UpdatedAt time.Time
}
