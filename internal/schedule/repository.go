package schedule

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	ErrShiftNotFound        = errors.New("shift not found")
	ErrDoctorNotFound       = errors.New("doctor not found")
	ErrRoomNotFound         = errors.New("room not found")
	ErrShiftHasAppointments = errors.New("shift still has active appointments booked inside it")
)

// Repository contains all DB interactions needed by the shift service and
// the availability engine.
type Repository interface {
	GetDoctorByID(ctx context.Context, id uuid.UUID) (*Doctor, error)
	GetRoomByID(ctx context.Context, id uuid.UUID) (*Room, error)

	// ListDoctorIDs resolves the doctors the availability engine fans out
	// over when no doctor is requested explicitly.
	ListDoctorIDs(ctx context.Context, branchID uuid.UUID, specialty *string) ([]uuid.UUID, error)

	GetShiftByID(ctx context.Context, id uuid.UUID) (*Shift, error)
	ListShiftsForDoctorOnDate(ctx context.Context, doctorID uuid.UUID, date time.Time) ([]Shift, error)

	CreateShift(ctx context.Context, s Shift) (*Shift, error)
	UpdateShiftWindow(ctx context.Context, id uuid.UUID, window WindowUpdate) (*Shift, error)
	DeleteShift(ctx context.Context, id uuid.UUID) error

	// CountActiveAppointmentsWithin reports how many active appointments for
	// the doctor fall inside any of the given windows. Used to refuse shift
	// deletion or rescheduling that would orphan committed bookings.
	CountActiveAppointmentsWithin(ctx context.Context, doctorID uuid.UUID, windows []WindowRange) (int, error)
}

// WindowUpdate carries the new bounds for a reschedule.
type WindowUpdate struct {
	Start time.Time
	End   time.Time
}

// WindowRange is a plain (start, end) pair for repository queries.
type WindowRange struct {
	Start time.Time
	End   time.Time
}
