package schedule

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/mknumberone/clinic-scheduling/internal/scheduling"
)

// guardHorizon bounds how far ahead we look for booked appointments when a
// recurring shift is deleted or rescheduled. Weekly shifts recur without an
// end date, so the orphan check needs a finite window.
const guardHorizon = 90 * 24 * time.Hour

type Service struct {
	repo   Repository
	logger zerolog.Logger
	now    func() time.Time
}

func NewService(repo Repository, logger zerolog.Logger) *Service {
	return &Service{
		repo:   repo,
		logger: logger,
		now:    time.Now,
	}
}

type CreateShiftRequest struct {
	DoctorID   uuid.UUID
	RoomID     uuid.UUID
	BranchID   uuid.UUID
	Start      time.Time
	End        time.Time
	Recurrence scheduling.Recurrence
}

func (s *Service) CreateShift(ctx context.Context, req CreateShiftRequest) (*Shift, error) {
	win, err := scheduling.NewWindow(req.Start, req.End)
	if err != nil {
		return nil, err
	}

	if _, err := s.repo.GetDoctorByID(ctx, req.DoctorID); err != nil {
		return nil, fmt.Errorf("load doctor: %w", err)
	}
	if _, err := s.repo.GetRoomByID(ctx, req.RoomID); err != nil {
		return nil, fmt.Errorf("load room: %w", err)
	}

	created, err := s.repo.CreateShift(ctx, Shift{
		DoctorID:   req.DoctorID,
		RoomID:     req.RoomID,
		BranchID:   req.BranchID,
		Window:     win,
		Recurrence: req.Recurrence,
	})
	if err != nil {
		return nil, fmt.Errorf("create shift: %w", err)
	}

	s.logger.Info().
		Str("shift_id", created.ID.String()).
		Str("doctor_id", created.DoctorID.String()).
		Str("recurrence", string(created.Recurrence.Kind)).
		Msg("shift created")

	return created, nil
}

// RescheduleShift moves a shift to a new window. The move is refused while
// active appointments remain booked inside the current occurrences: committed
// appointments are authoritative, a shift change never orphans them.
func (s *Service) RescheduleShift(ctx context.Context, id uuid.UUID, start, end time.Time) (*Shift, error) {
	if _, err := scheduling.NewWindow(start, end); err != nil {
		return nil, err
	}

	shift, err := s.repo.GetShiftByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("load shift: %w", err)
	}

	if err := s.guardBookedAppointments(ctx, shift); err != nil {
		return nil, err
	}

	updated, err := s.repo.UpdateShiftWindow(ctx, id, WindowUpdate{Start: start, End: end})
	if err != nil {
		return nil, fmt.Errorf("reschedule shift: %w", err)
	}

	s.logger.Info().
		Str("shift_id", id.String()).
		Time("start", start).
		Time("end", end).
		Msg("shift rescheduled")

	return updated, nil
}

// DeleteShift removes a shift, refusing while active appointments remain
// booked inside its occurrences.
func (s *Service) DeleteShift(ctx context.Context, id uuid.UUID) error {
	shift, err := s.repo.GetShiftByID(ctx, id)
	if err != nil {
		return fmt.Errorf("load shift: %w", err)
	}

	if err := s.guardBookedAppointments(ctx, shift); err != nil {
		return err
	}

	if err := s.repo.DeleteShift(ctx, id); err != nil {
		return fmt.Errorf("delete shift: %w", err)
	}

	s.logger.Info().Str("shift_id", id.String()).Msg("shift deleted")
	return nil
}

func (s *Service) ListShiftsForDoctorOnDate(ctx context.Context, doctorID uuid.UUID, date time.Time) ([]Shift, error) {
	shifts, err := s.repo.ListShiftsForDoctorOnDate(ctx, doctorID, date)
	if err != nil {
		return nil, fmt.Errorf("list shifts: %w", err)
	}
	return shifts, nil
}

func (s *Service) guardBookedAppointments(ctx context.Context, shift *Shift) error {
	windows := s.upcomingInstances(shift)
	if len(windows) == 0 {
		return nil
	}

	n, err := s.repo.CountActiveAppointmentsWithin(ctx, shift.DoctorID, windows)
	if err != nil {
		return fmt.Errorf("count booked appointments: %w", err)
	}
	if n > 0 {
		return fmt.Errorf("%w: %d active", ErrShiftHasAppointments, n)
	}
	return nil
}

func (s *Service) upcomingInstances(shift *Shift) []WindowRange {
	now := s.now()
	horizon := now.Add(guardHorizon)

	var out []WindowRange
	for day := now; day.Before(horizon); day = day.AddDate(0, 0, 1) {
		for _, inst := range shift.InstancesOn(day) {
			if inst.End.Before(now) {
				continue
			}
			out = append(out, WindowRange{Start: inst.Start, End: inst.End})
		}
	}
	return out
}
