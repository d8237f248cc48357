package appointment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	redisclient "github.com/mknumberone/clinic-scheduling/internal/redis"
	"github.com/mknumberone/clinic-scheduling/internal/schedule"
	"github.com/mknumberone/clinic-scheduling/internal/scheduling"
)

const (
	EventAppointmentBooked = "APPOINTMENT_BOOKED"
	EventStatusChanged     = "APPOINTMENT_STATUS_CHANGED"
	EventNoShowSwept       = "APPOINTMENT_NO_SHOW_SWEPT"
)

var (
	// ErrValidation covers malformed input: end before start, a window in
	// the past, a cancellation without a reason, a no-show before the
	// window has ended.
	ErrValidation = errors.New("invalid booking input")

	// ErrInvalidTransition is returned for any status change from a
	// terminal state or along an edge the lifecycle table does not define.
	ErrInvalidTransition = errors.New("invalid status transition")

	// ErrOutsideShiftHours means the requested window lies outside every
	// shift occurrence for the doctor on that date. Staff override bypasses
	// this check and only this check.
	ErrOutsideShiftHours = errors.New("requested window is outside the doctor's shift hours")

	// ErrBookingContended means another booking for the same doctor or room
	// holds the lock right now; the caller should retry.
	ErrBookingContended = errors.New("resource is currently being booked, please retry")

	// ErrDependencyUnavailable wraps persistence timeouts so callers can
	// distinguish them from domain failures. The service itself never
	// retries.
	ErrDependencyUnavailable = errors.New("persistence dependency unavailable")
)

// ShiftSource resolves the shifts that make a doctor bookable on a date.
type ShiftSource interface {
	ListShiftsForDoctorOnDate(ctx context.Context, doctorID uuid.UUID, date time.Time) ([]schedule.Shift, error)
}

type Service struct {
	repo       Repository
	shifts     ShiftSource
	locker     redisclient.Locker
	downstream Downstream
	logger     zerolog.Logger
	now        func() time.Time
}

func NewService(repo Repository, shifts ShiftSource, locker redisclient.Locker, downstream Downstream, logger zerolog.Logger) *Service {
	return &Service{
		repo:       repo,
		shifts:     shifts,
		locker:     locker,
		downstream: downstream,
		logger:     logger,
		now:        time.Now,
	}
}

type BookingRequest struct {
	PatientID     uuid.UUID
	DoctorID      *uuid.UUID
	RoomID        *uuid.UUID
	BranchID      uuid.UUID
	Window        scheduling.Window
	Type          string
	Notes         string
	CreatedBy     uuid.UUID
	StaffOverride bool
}

// Book reserves the requested window. The doctor and room overlap checks run
// inside a distributed lock over both resources, and the repository recheck
// plus insert run as one transaction, so two concurrent requests for the
// same window cannot both commit. The requested time is never adjusted: a
// conflict is always surfaced as ErrSlotConflict.
func (s *Service) Book(ctx context.Context, req BookingRequest) (*Appointment, error) {
	if err := req.Window.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrValidation, err)
	}
	if !req.Window.Start.After(s.now()) {
		return nil, fmt.Errorf("%w: window must start in the future", ErrValidation)
	}

	if _, err := s.repo.GetPatientByID(ctx, req.PatientID); err != nil {
		if errors.Is(err, ErrPatientNotFound) {
			return nil, err
		}
		return nil, s.depErr(fmt.Errorf("load patient: %w", err))
	}

	var lockKeys []string
	if req.DoctorID != nil {
		lockKeys = append(lockKeys, "doctor:"+req.DoctorID.String())
	}
	if req.RoomID != nil {
		lockKeys = append(lockKeys, "room:"+req.RoomID.String())
	}

	var created *Appointment

	err := s.locker.WithResourceLocks(ctx, lockKeys, func(lockCtx context.Context) error {
		if req.DoctorID != nil {
			if !req.StaffOverride {
				if err := s.checkShiftMembership(lockCtx, *req.DoctorID, req.Window); err != nil {
					return err
				}
			}
			// Overlap is checked unconditionally: staff override admits
			// walk-ins outside shift hours, never double-booking.
			busy, err := s.repo.ListActiveDoctorWindows(lockCtx, *req.DoctorID, req.Window)
			if err != nil {
				return s.depErr(fmt.Errorf("check doctor overlap: %w", err))
			}
			if len(busy) > 0 {
				return ErrSlotConflict
			}
		}

		if req.RoomID != nil {
			busy, err := s.repo.ListActiveRoomWindows(lockCtx, *req.RoomID, req.Window)
			if err != nil {
				return s.depErr(fmt.Errorf("check room overlap: %w", err))
			}
			if len(busy) > 0 {
				return ErrSlotConflict
			}
		}

		appt, err := s.repo.Insert(lockCtx, Appointment{
			PatientID: req.PatientID,
			DoctorID:  req.DoctorID,
			RoomID:    req.RoomID,
			BranchID:  req.BranchID,
			Window:    req.Window,
			Status:    StatusScheduled,
			Type:      req.Type,
			Notes:     req.Notes,
			CreatedBy: req.CreatedBy,
		})
		if err != nil {
			if errors.Is(err, ErrSlotConflict) {
				return err
			}
			return s.depErr(fmt.Errorf("insert appointment: %w", err))
		}

		created = appt

		s.logEvent(lockCtx, appt.ID, EventAppointmentBooked, map[string]any{
			"patient_id":     req.PatientID.String(),
			"start":          req.Window.Start,
			"end":            req.Window.End,
			"staff_override": req.StaffOverride,
		})

		return nil
	})

	if err != nil {
		if errors.Is(err, redisclient.ErrLockNotAcquired) {
			return nil, ErrBookingContended
		}
		return nil, err
	}

	return created, nil
}

// ChangeStatus applies one edge of the lifecycle table. Retrying a
// transition that already happened fails with ErrInvalidTransition rather
// than silently succeeding, so client/server state drift stays visible.
func (s *Service) ChangeStatus(ctx context.Context, id uuid.UUID, target Status, reason *string) (*Appointment, error) {
	appt, err := s.repo.GetAppointmentByID(ctx, id)
	if err != nil {
		if errors.Is(err, ErrAppointmentNotFound) {
			return nil, err
		}
		return nil, s.depErr(fmt.Errorf("load appointment: %w", err))
	}

	if !appt.Status.CanTransitionTo(target) {
		return nil, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, appt.Status, target)
	}

	switch target {
	case StatusCancelled:
		if reason == nil || *reason == "" {
			return nil, fmt.Errorf("%w: cancellation requires a reason", ErrValidation)
		}
	case StatusNoShow:
		if !s.now().After(appt.Window.End) {
			return nil, fmt.Errorf("%w: cannot mark no-show before the window has ended", ErrValidation)
		}
	}

	var storedReason *string
	if target == StatusCancelled {
		storedReason = reason
	}

	updated, err := s.repo.UpdateStatus(ctx, id, appt.Status, target, storedReason)
	if err != nil {
		if errors.Is(err, ErrAppointmentNotFound) {
			// The compare-and-swap missed: the row moved under us between
			// the read and the update.
			if cur, getErr := s.repo.GetAppointmentByID(ctx, id); getErr == nil {
				return nil, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, cur.Status, target)
			}
			return nil, ErrAppointmentNotFound
		}
		return nil, s.depErr(fmt.Errorf("update status: %w", err))
	}

	s.logEvent(ctx, updated.ID, EventStatusChanged, map[string]any{
		"from": string(appt.Status),
		"to":   string(target),
	})

	if target == StatusCompleted {
		if err := s.downstream.CreateEncounterRecords(ctx, updated); err != nil {
			s.logger.Error().Err(err).
				Str("appointment_id", updated.ID.String()).
				Msg("encounter record creation failed after completion")
			return nil, fmt.Errorf("create encounter records: %w", err)
		}
	}

	return updated, nil
}

func (s *Service) GetAppointment(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	appt, err := s.repo.GetAppointmentByID(ctx, id)
	if err != nil {
		if errors.Is(err, ErrAppointmentNotFound) {
			return nil, err
		}
		return nil, s.depErr(fmt.Errorf("get appointment: %w", err))
	}
	return appt, nil
}

func (s *Service) ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]Appointment, error) {
	if limit <= 0 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}

	appts, err := s.repo.ListByPatient(ctx, patientID, limit, offset)
	if err != nil {
		return nil, s.depErr(fmt.Errorf("list appointments by patient: %w", err))
	}
	return appts, nil
}

// SweepNoShows marks scheduled and confirmed appointments whose window ended
// more than grace ago as no-show, through the same state machine as manual
// transitions. Intended to be called periodically by the worker.
func (s *Service) SweepNoShows(ctx context.Context, grace time.Duration) (int, error) {
	cutoff := s.now().Add(-grace)

	overdue, err := s.repo.FindOverdueActive(ctx, cutoff)
	if err != nil {
		return 0, s.depErr(fmt.Errorf("find overdue appointments: %w", err))
	}

	swept := 0
	for _, appt := range overdue {
		if _, err := s.ChangeStatus(ctx, appt.ID, StatusNoShow, nil); err != nil {
			// Lost race with a manual transition; skip and move on.
			s.logger.Warn().Err(err).
				Str("appointment_id", appt.ID.String()).
				Msg("no-show sweep skipped appointment")
			continue
		}
		s.logEvent(ctx, appt.ID, EventNoShowSwept, map[string]any{
			"ended_at": appt.Window.End,
		})
		swept++
	}

	return swept, nil
}

func (s *Service) checkShiftMembership(ctx context.Context, doctorID uuid.UUID, win scheduling.Window) error {
	shifts, err := s.shifts.ListShiftsForDoctorOnDate(ctx, doctorID, win.Start)
	if err != nil {
		return s.depErr(fmt.Errorf("list shifts: %w", err))
	}

	for _, sh := range shifts {
		for _, inst := range sh.InstancesOn(win.Start) {
			if inst.Contains(win) {
				return nil
			}
		}
	}
	return ErrOutsideShiftHours
}

func (s *Service) depErr(err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return fmt.Errorf("%w: %v", ErrDependencyUnavailable, err)
	}
	return err
}

func (s *Service) logEvent(ctx context.Context, appointmentID uuid.UUID, eventType string, payload map[string]any) {
	data, err := json.Marshal(payload)
	if err != nil {
		s.logger.Error().Err(err).Str("event_type", eventType).Msg("marshal event payload")
		data = nil
	}

	apptID := appointmentID

	ev := EventLog{
		EventType:     eventType,
		AppointmentID: &apptID,
		Payload:       data,
		CreatedAt:     s.now(),
	}

	if err := s.repo.InsertEvent(ctx, ev); err != nil {
		s.logger.Error().Err(err).
			Str("event_type", eventType).
			Str("appointment_id", appointmentID.String()).
			Msg("insert event log")
	}
}
