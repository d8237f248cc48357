package appointment

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mknumberone/clinic-scheduling/internal/scheduling"
)

const apptColumns = `id, patient_id, doctor_id, room_id, branch_id, start_time, end_time,
	status, appt_type, notes, reason, created_by, created_at, updated_at`

type PgRepository struct {
	pool *pgxpool.Pool
}

func NewPgRepository(pool *pgxpool.Pool) *PgRepository {
	return &PgRepository{pool: pool}
}

// Helpers

func scanPatient(row pgx.Row) (*Patient, error) {
	var p Patient
	var email *string

	err := row.Scan(
		&p.ID,
		&p.Name,
		&email,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrPatientNotFound
		}
		return nil, err
	}

	p.Email = email
	return &p, nil
}

func scanAppointment(row pgx.Row) (*Appointment, error) {
	var a Appointment
	var status string

	err := row.Scan(
		&a.ID,
		&a.PatientID,
		&a.DoctorID,
		&a.RoomID,
		&a.BranchID,
		&a.Window.Start,
		&a.Window.End,
		&status,
		&a.Type,
		&a.Notes,
		&a.Reason,
		&a.CreatedBy,
		&a.CreatedAt,
		&a.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAppointmentNotFound
		}
		return nil, err
	}

	a.Status = Status(status)
	return &a, nil
}

// Interface methods

func (r *PgRepository) GetPatientByID(ctx context.Context, id uuid.UUID) (*Patient, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, name, email, created_at, updated_at
		FROM patients
		WHERE id = $1
	`, id)
	return scanPatient(row)
}

func (r *PgRepository) GetAppointmentByID(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+apptColumns+`
		FROM appointments
		WHERE id = $1
	`, id)
	return scanAppointment(row)
}

func (r *PgRepository) ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]Appointment, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+apptColumns+`
		FROM appointments
		WHERE patient_id = $1
		ORDER BY start_time DESC
		LIMIT $2 OFFSET $3
	`, patientID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return collectAppointments(rows)
}

func (r *PgRepository) ListActiveDoctorWindows(ctx context.Context, doctorID uuid.UUID, within scheduling.Window) ([]scheduling.Window, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT start_time, end_time
		FROM appointments
		WHERE doctor_id = $1
		  AND status IN ('scheduled', 'confirmed', 'in_progress')
		  AND start_time < $3
		  AND end_time > $2
		ORDER BY start_time
	`, doctorID, within.Start, within.End)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return collectWindows(rows)
}

func (r *PgRepository) ListActiveRoomWindows(ctx context.Context, roomID uuid.UUID, within scheduling.Window) ([]scheduling.Window, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT start_time, end_time
		FROM appointments
		WHERE room_id = $1
		  AND status IN ('scheduled', 'confirmed', 'in_progress')
		  AND start_time < $3
		  AND end_time > $2
		ORDER BY start_time
	`, roomID, within.Start, within.End)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return collectWindows(rows)
}

// Insert rechecks overlap and inserts inside one transaction. Advisory
// transaction locks on the doctor and room keys serialize concurrent inserts
// for the same resources, so two bookings racing for one window cannot both
// pass the recheck.
func (r *PgRepository) Insert(ctx context.Context, a Appointment) (*Appointment, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	if a.DoctorID != nil {
		if _, err := tx.Exec(ctx,
			`SELECT pg_advisory_xact_lock(hashtextextended('doctor:' || $1::text, 0))`,
			a.DoctorID.String()); err != nil {
			return nil, fmt.Errorf("lock doctor: %w", err)
		}
		conflict, err := existsActiveOverlap(ctx, tx, "doctor_id", *a.DoctorID, a.Window)
		if err != nil {
			return nil, err
		}
		if conflict {
			return nil, ErrSlotConflict
		}
	}

	if a.RoomID != nil {
		if _, err := tx.Exec(ctx,
			`SELECT pg_advisory_xact_lock(hashtextextended('room:' || $1::text, 0))`,
			a.RoomID.String()); err != nil {
			return nil, fmt.Errorf("lock room: %w", err)
		}
		conflict, err := existsActiveOverlap(ctx, tx, "room_id", *a.RoomID, a.Window)
		if err != nil {
			return nil, err
		}
		if conflict {
			return nil, ErrSlotConflict
		}
	}

	id := uuid.New()

	row := tx.QueryRow(ctx, `
		INSERT INTO appointments
			(id, patient_id, doctor_id, room_id, branch_id, start_time, end_time,
			 status, appt_type, notes, created_by, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, now(), now())
		RETURNING `+apptColumns+`
	`, id, a.PatientID, a.DoctorID, a.RoomID, a.BranchID,
		a.Window.Start, a.Window.End, string(a.Status), a.Type, a.Notes, a.CreatedBy)

	created, err := scanAppointment(row)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}

	return created, nil
}

func existsActiveOverlap(ctx context.Context, tx pgx.Tx, column string, id uuid.UUID, w scheduling.Window) (bool, error) {
	var exists bool
	err := tx.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1
			FROM appointments
			WHERE `+column+` = $1
			  AND status IN ('scheduled', 'confirmed', 'in_progress')
			  AND start_time < $3
			  AND end_time > $2
		)
	`, id, w.Start, w.End).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("recheck %s overlap: %w", column, err)
	}
	return exists, nil
}

func (r *PgRepository) UpdateStatus(ctx context.Context, id uuid.UUID, from, to Status, reason *string) (*Appointment, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE appointments
		SET status = $2,
		    reason = COALESCE($4, reason),
		    updated_at = now()
		WHERE id = $1
		  AND status = $3
		RETURNING `+apptColumns+`
	`, id, string(to), string(from), reason)

	return scanAppointment(row)
}

func (r *PgRepository) FindOverdueActive(ctx context.Context, cutoff time.Time) ([]Appointment, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+apptColumns+`
		FROM appointments
		WHERE status IN ('scheduled', 'confirmed')
		  AND end_time < $1
		ORDER BY end_time
	`, cutoff)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return collectAppointments(rows)
}

func (r *PgRepository) InsertEvent(ctx context.Context, ev EventLog) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO event_logs (event_type, appointment_id, payload, created_at)
		VALUES ($1, $2, $3, COALESCE($4, now()))
	`, ev.EventType, ev.AppointmentID, ev.Payload, nullableTime(ev.CreatedAt))
	if err != nil {
		return fmt.Errorf("insert event log: %w", err)
	}

	return nil
}

func collectAppointments(rows pgx.Rows) ([]Appointment, error) {
	var result []Appointment
	for rows.Next() {
		a, err := scanAppointment(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *a)
	}
	return result, rows.Err()
}

func collectWindows(rows pgx.Rows) ([]scheduling.Window, error) {
	var result []scheduling.Window
	for rows.Next() {
		var w scheduling.Window
		if err := rows.Scan(&w.Start, &w.End); err != nil {
			return nil, err
		}
		result = append(result, w)
	}
	return result, rows.Err()
}

func nullableTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
