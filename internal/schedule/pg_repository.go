package schedule

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mknumberone/clinic-scheduling/internal/scheduling"
)

type PgRepository struct {
	pool *pgxpool.Pool
}

func NewPgRepository(pool *pgxpool.Pool) *PgRepository {
	return &PgRepository{pool: pool}
}

// Helpers

func scanDoctor(row pgx.Row) (*Doctor, error) {
	var d Doctor
	var specialty *string

	err := row.Scan(
		&d.ID,
		&d.Name,
		&d.BranchID,
		&specialty,
		&d.CreatedAt,
		&d.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrDoctorNotFound
		}
		return nil, err
	}

	d.Specialty = specialty
	return &d, nil
}

func scanRoom(row pgx.Row) (*Room, error) {
	var r Room

	err := row.Scan(
		&r.ID,
		&r.BranchID,
		&r.Name,
		&r.CreatedAt,
		&r.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrRoomNotFound
		}
		return nil, err
	}

	return &r, nil
}

func scanShift(row pgx.Row) (*Shift, error) {
	var s Shift
	var kind string

	err := row.Scan(
		&s.ID,
		&s.DoctorID,
		&s.RoomID,
		&s.BranchID,
		&s.Window.Start,
		&s.Window.End,
		&kind,
		&s.CreatedAt,
		&s.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrShiftNotFound
		}
		return nil, err
	}

	s.Recurrence = scheduling.Recurrence{Kind: scheduling.RecurrenceKind(kind)}
	return &s, nil
}

// Interface methods

func (r *PgRepository) GetDoctorByID(ctx context.Context, id uuid.UUID) (*Doctor, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, name, branch_id, specialty, created_at, updated_at
		FROM doctors
		WHERE id = $1
	`, id)
	return scanDoctor(row)
}

func (r *PgRepository) GetRoomByID(ctx context.Context, id uuid.UUID) (*Room, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, branch_id, name, created_at, updated_at
		FROM rooms
		WHERE id = $1
	`, id)
	return scanRoom(row)
}

func (r *PgRepository) ListDoctorIDs(ctx context.Context, branchID uuid.UUID, specialty *string) ([]uuid.UUID, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id
		FROM doctors
		WHERE branch_id = $1
		  AND ($2::text IS NULL OR specialty = $2)
		ORDER BY name
	`, branchID, specialty)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}

	return ids, rows.Err()
}

func (r *PgRepository) GetShiftByID(ctx context.Context, id uuid.UUID) (*Shift, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, doctor_id, room_id, branch_id, start_time, end_time, recurrence, created_at, updated_at
		FROM shifts
		WHERE id = $1
	`, id)
	return scanShift(row)
}

// ListShiftsForDoctorOnDate returns shifts that can produce an occurrence on
// the given calendar date: one-off shifts overlapping the day, plus weekly
// shifts anchored on or before the day. Recurrence expansion itself happens
// in the scheduling package.
func (r *PgRepository) ListShiftsForDoctorOnDate(ctx context.Context, doctorID uuid.UUID, date time.Time) ([]Shift, error) {
	day := scheduling.DayWindow(date)

	rows, err := r.pool.Query(ctx, `
		SELECT id, doctor_id, room_id, branch_id, start_time, end_time, recurrence, created_at, updated_at
		FROM shifts
		WHERE doctor_id = $1
		  AND (
			(recurrence = 'none' AND start_time < $3 AND end_time > $2)
			OR
			(recurrence = 'weekly' AND start_time < $3)
		  )
		ORDER BY start_time
	`, doctorID, day.Start, day.End)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var shifts []Shift
	for rows.Next() {
		s, err := scanShift(rows)
		if err != nil {
			return nil, err
		}
		shifts = append(shifts, *s)
	}

	return shifts, rows.Err()
}

func (r *PgRepository) CreateShift(ctx context.Context, s Shift) (*Shift, error) {
	id := uuid.New()

	row := r.pool.QueryRow(ctx, `
		INSERT INTO shifts (id, doctor_id, room_id, branch_id, start_time, end_time, recurrence, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, now(), now())
		RETURNING id, doctor_id, room_id, branch_id, start_time, end_time, recurrence, created_at, updated_at
	`, id, s.DoctorID, s.RoomID, s.BranchID, s.Window.Start, s.Window.End, string(s.Recurrence.Kind))

	return scanShift(row)
}

func (r *PgRepository) UpdateShiftWindow(ctx context.Context, id uuid.UUID, window WindowUpdate) (*Shift, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE shifts
		SET start_time = $2,
		    end_time = $3,
		    updated_at = now()
		WHERE id = $1
		RETURNING id, doctor_id, room_id, branch_id, start_time, end_time, recurrence, created_at, updated_at
	`, id, window.Start, window.End)

	return scanShift(row)
}

func (r *PgRepository) DeleteShift(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM shifts WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrShiftNotFound
	}
	return nil
}

func (r *PgRepository) CountActiveAppointmentsWithin(ctx context.Context, doctorID uuid.UUID, windows []WindowRange) (int, error) {
	if len(windows) == 0 {
		return 0, nil
	}

	starts := make([]time.Time, len(windows))
	ends := make([]time.Time, len(windows))
	for i, w := range windows {
		starts[i] = w.Start
		ends[i] = w.End
	}

	var n int
	err := r.pool.QueryRow(ctx, `
		SELECT count(*)
		FROM appointments a
		WHERE a.doctor_id = $1
		  AND a.status IN ('scheduled', 'confirmed', 'in_progress')
		  AND EXISTS (
			SELECT 1
			FROM unnest($2::timestamptz[], $3::timestamptz[]) AS w(s, e)
			WHERE a.start_time < w.e AND w.s < a.end_time
		  )
	`, doctorID, starts, ends).Scan(&n)
	if err != nil {
		return 0, err
	}

	return n, nil
}
