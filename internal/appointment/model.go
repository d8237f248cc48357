package appointment

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/mknumberone/clinic-scheduling/internal/scheduling"
)

type Status string

const (
	StatusScheduled  Status = "scheduled"
	StatusConfirmed  Status = "confirmed"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
	StatusCancelled  Status = "cancelled"
	StatusNoShow     Status = "no_show"
)

// transitions is the closed edge set of the lifecycle state machine.
// Completed, cancelled and no_show have no outgoing edges: they are terminal.
// Note that scheduled has no edge to completed; an examination must be
// confirmed or started before it can complete.
var transitions = map[Status][]Status{
	StatusScheduled:  {StatusConfirmed, StatusInProgress, StatusCancelled, StatusNoShow},
	StatusConfirmed:  {StatusInProgress, StatusCompleted, StatusCancelled, StatusNoShow},
	StatusInProgress: {StatusCompleted, StatusCancelled, StatusNoShow},
}

// ParseStatus is the normalization boundary for status strings arriving from
// the outside. Storage and wire use the lowercase canonical form only.
func ParseStatus(s string) (Status, error) {
	switch Status(strings.ToLower(strings.TrimSpace(s))) {
	case StatusScheduled:
		return StatusScheduled, nil
	case StatusConfirmed:
		return StatusConfirmed, nil
	case StatusInProgress:
		return StatusInProgress, nil
	case StatusCompleted:
		return StatusCompleted, nil
	case StatusCancelled:
		return StatusCancelled, nil
	case StatusNoShow:
		return StatusNoShow, nil
	default:
		return "", fmt.Errorf("unknown appointment status %q", s)
	}
}

// Active reports whether the status holds its time window: active
// appointments block overlapping bookings for the same doctor or room.
func (s Status) Active() bool {
	switch s {
	case StatusScheduled, StatusConfirmed, StatusInProgress:
		return true
	}
	return false
}

func (s Status) Terminal() bool {
	return len(transitions[s]) == 0
}

func (s Status) CanTransitionTo(target Status) bool {
	for _, t := range transitions[s] {
		if t == target {
			return true
		}
	}
	return false
}

type Patient struct {
	ID        uuid.UUID
	Name      string
	Email     *string
	CreatedAt time.Time
	UpdatedAt time.Time
}

type Appointment struct {
	ID        uuid.UUID
	PatientID uuid.UUID
	DoctorID  *uuid.UUID // nil until triage assigns one
	RoomID    *uuid.UUID
	BranchID  uuid.UUID
	Window    scheduling.Window
	Status    Status
	Type      string
	Notes     string
	Reason    *string // set on cancellation
	CreatedBy uuid.UUID
	CreatedAt time.Time
	UpdatedAt time.Time
}

type EventLog struct {
	ID            int64
	EventType     string
	AppointmentID *uuid.UUID
	Payload       []byte
	CreatedAt     time.Time
}
