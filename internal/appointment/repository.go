package appointment

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/mknumberone/clinic-scheduling/internal/scheduling"
)

var (
	ErrPatientNotFound     = errors.New("patient not found")
	ErrAppointmentNotFound = errors.New("appointment not found")

	// ErrSlotConflict means the requested window overlaps an active
	// appointment for the same doctor or room. The insert path also returns
	// it when the in-transaction recheck loses a race.
	ErrSlotConflict = errors.New("requested window conflicts with an active appointment")
)

// Repository contains all DB interactions needed by the lifecycle service
// and the availability engine.
type Repository interface {
	GetPatientByID(ctx context.Context, id uuid.UUID) (*Patient, error)
	GetAppointmentByID(ctx context.Context, id uuid.UUID) (*Appointment, error)
	ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]Appointment, error)

	// Overlap reads, filtered to active statuses.
	ListActiveDoctorWindows(ctx context.Context, doctorID uuid.UUID, within scheduling.Window) ([]scheduling.Window, error)
	ListActiveRoomWindows(ctx context.Context, roomID uuid.UUID, within scheduling.Window) ([]scheduling.Window, error)

	// Insert persists a scheduled appointment. The overlap recheck and the
	// insert must run as one atomicity unit; conflicts surface as
	// ErrSlotConflict, never as a silently adjusted window.
	Insert(ctx context.Context, a Appointment) (*Appointment, error)

	// UpdateStatus is a compare-and-swap: it only applies when the current
	// status equals from, and returns ErrAppointmentNotFound when no row
	// matched.
	UpdateStatus(ctx context.Context, id uuid.UUID, from, to Status, reason *string) (*Appointment, error)

	// FindOverdueActive lists scheduled/confirmed appointments whose window
	// ended before the cutoff. Used by the no-show sweeper.
	FindOverdueActive(ctx context.Context, cutoff time.Time) ([]Appointment, error)

	InsertEvent(ctx context.Context, ev EventLog) error
}

// Downstream creates the records that follow a completed examination:
// the medical record and the draft invoice, each back-referencing the
// appointment. Effects only; the lifecycle service never reads them back.
type Downstream interface {
	CreateEncounterRecords(ctx context.Context, a *Appointment) error
}
