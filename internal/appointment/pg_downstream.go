package appointment

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PgDownstream creates the post-completion records in Postgres: one medical
// record and one draft invoice per completed appointment, both
// back-referencing it.
type PgDownstream struct {
	pool *pgxpool.Pool
}

func NewPgDownstream(pool *pgxpool.Pool) *PgDownstream {
	return &PgDownstream{pool: pool}
}

func (d *PgDownstream) CreateEncounterRecords(ctx context.Context, a *Appointment) error {
	tx, err := d.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx, `
		INSERT INTO medical_records (id, appointment_id, patient_id, doctor_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, now(), now())
		ON CONFLICT (appointment_id) DO NOTHING
	`, uuid.New(), a.ID, a.PatientID, a.DoctorID)
	if err != nil {
		return fmt.Errorf("insert medical record: %w", err)
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO invoices (id, appointment_id, patient_id, status, created_at, updated_at)
		VALUES ($1, $2, $3, 'draft', now(), now())
		ON CONFLICT (appointment_id) DO NOTHING
	`, uuid.New(), a.ID, a.PatientID)
	if err != nil {
		return fmt.Errorf("insert invoice: %w", err)
	}

	return tx.Commit(ctx)
}
