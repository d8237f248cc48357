package main

import (
	"context"
	"os"
	"time"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"github.com/mknumberone/clinic-scheduling/internal/db"
)

var logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Logger()

func main() {
	logger.Info().Msg("seed starting")

	dsn := os.Getenv("POSTGRES_DSN")
	if dsn == "" {
		logger.Fatal().Msg("POSTGRES_DSN is required")
	}

	if err := db.Migrate(dsn); err != nil {
		logger.Fatal().Err(err).Msg("migrate")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := db.ConnectPostgres(ctx, dsn)
	if err != nil {
		logger.Fatal().Err(err).Msg("connect postgres")
	}
	defer pool.Close()

	gofakeit.Seed(time.Now().UnixNano())

	seedCtx := context.Background()

	branchIDs, err := seedBranches(seedCtx, pool, 3)
	if err != nil {
		logger.Fatal().Err(err).Msg("seed branches")
	}
	roomsByBranch, err := seedRooms(seedCtx, pool, branchIDs, 4)
	if err != nil {
		logger.Fatal().Err(err).Msg("seed rooms")
	}
	doctors, err := seedDoctors(seedCtx, pool, branchIDs, 40)
	if err != nil {
		logger.Fatal().Err(err).Msg("seed doctors")
	}
	if err := seedPatients(seedCtx, pool, 5000); err != nil {
		logger.Fatal().Err(err).Msg("seed patients")
	}
	if err := seedShifts(seedCtx, pool, doctors, roomsByBranch); err != nil {
		logger.Fatal().Err(err).Msg("seed shifts")
	}

	logger.Info().Msg("seed complete")
}

func seedBranches(ctx context.Context, pool *pgxpool.Pool, count int) ([]uuid.UUID, error) {
	logger.Info().Int("count", count).Msg("seeding branches")

	tx, err := pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	ids := make([]uuid.UUID, 0, count)
	for i := 0; i < count; i++ {
		id := uuid.New()
		name := gofakeit.City() + " Clinic"

		if _, err := tx.Exec(ctx, `
			INSERT INTO branches (id, name, created_at, updated_at)
			VALUES ($1, $2, now(), now())
		`, id, name); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}

	return ids, tx.Commit(ctx)
}

func seedRooms(ctx context.Context, pool *pgxpool.Pool, branchIDs []uuid.UUID, perBranch int) (map[uuid.UUID][]uuid.UUID, error) {
	logger.Info().Int("per_branch", perBranch).Msg("seeding rooms")

	tx, err := pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	byBranch := make(map[uuid.UUID][]uuid.UUID, len(branchIDs))
	for _, branchID := range branchIDs {
		for i := 0; i < perBranch; i++ {
			id := uuid.New()
			name := gofakeit.LetterN(1) + gofakeit.DigitN(2)

			if _, err := tx.Exec(ctx, `
				INSERT INTO rooms (id, branch_id, name, created_at, updated_at)
				VALUES ($1, $2, $3, now(), now())
			`, id, branchID, "Room "+name); err != nil {
				return nil, err
			}
			byBranch[branchID] = append(byBranch[branchID], id)
		}
	}

	return byBranch, tx.Commit(ctx)
}

type seededDoctor struct {
	id       uuid.UUID
	branchID uuid.UUID
}

func seedDoctors(ctx context.Context, pool *pgxpool.Pool, branchIDs []uuid.UUID, count int) ([]seededDoctor, error) {
	logger.Info().Int("count", count).Msg("seeding doctors")

	specialties := []string{
		"Dermatology",
		"Cardiology",
		"General Practice",
		"Orthopedics",
		"Endocrinology",
		"Neurology",
		"Pediatrics",
		"Psychiatry",
		"Ophthalmology",
		"ENT",
	}

	tx, err := pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	doctors := make([]seededDoctor, 0, count)
	for i := 0; i < count; i++ {
		id := uuid.New()
		name := gofakeit.Name()
		spec := specialties[gofakeit.Number(0, len(specialties)-1)]
		branchID := branchIDs[gofakeit.Number(0, len(branchIDs)-1)]

		if _, err := tx.Exec(ctx, `
			INSERT INTO doctors (id, name, branch_id, specialty, created_at, updated_at)
			VALUES ($1, $2, $3, $4, now(), now())
		`, id, name, branchID, spec); err != nil {
			return nil, err
		}
		doctors = append(doctors, seededDoctor{id: id, branchID: branchID})
	}

	return doctors, tx.Commit(ctx)
}

func seedPatients(ctx context.Context, pool *pgxpool.Pool, count int) error {
	logger.Info().Int("count", count).Msg("seeding patients")

	const batchSize = 500

	for offset := 0; offset < count; offset += batchSize {
		end := offset + batchSize
		if end > count {
			end = count
		}

		tx, err := pool.Begin(ctx)
		if err != nil {
			return err
		}

		for i := offset; i < end; i++ {
			id := uuid.New()
			name := gofakeit.Name()
			email := gofakeit.Email()

			if _, err := tx.Exec(ctx, `
				INSERT INTO patients (id, name, email, created_at, updated_at)
				VALUES ($1, $2, $3, now(), now())
			`, id, name, email); err != nil {
				_ = tx.Rollback(ctx)
				return err
			}
		}

		if err := tx.Commit(ctx); err != nil {
			return err
		}

		logger.Info().Int("done", end).Int("total", count).Msg("patients seeded")
	}

	return nil
}

// seedShifts gives every doctor a weekly morning and afternoon shift in a
// room of their own branch, anchored on the upcoming Monday.
func seedShifts(ctx context.Context, pool *pgxpool.Pool, doctors []seededDoctor, roomsByBranch map[uuid.UUID][]uuid.UUID) error {
	logger.Info().Int("doctors", len(doctors)).Msg("seeding shifts")

	anchor := nextMonday(time.Now())

	tx, err := pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	for _, doc := range doctors {
		rooms := roomsByBranch[doc.branchID]
		roomID := rooms[gofakeit.Number(0, len(rooms)-1)]
		day := anchor.AddDate(0, 0, gofakeit.Number(0, 4))

		morning := time.Date(day.Year(), day.Month(), day.Day(), 9, 0, 0, 0, day.Location())
		afternoon := time.Date(day.Year(), day.Month(), day.Day(), 13, 30, 0, 0, day.Location())

		for _, start := range []time.Time{morning, afternoon} {
			if _, err := tx.Exec(ctx, `
				INSERT INTO shifts (id, doctor_id, room_id, branch_id, start_time, end_time, recurrence, created_at, updated_at)
				VALUES ($1, $2, $3, $4, $5, $6, 'weekly', now(), now())
			`, uuid.New(), doc.id, roomID, doc.branchID, start, start.Add(3*time.Hour)); err != nil {
				return err
			}
		}
	}

	return tx.Commit(ctx)
}

func nextMonday(from time.Time) time.Time {
	d := time.Date(from.Year(), from.Month(), from.Day(), 0, 0, 0, 0, from.Location())
	for d.Weekday() != time.Monday {
		d = d.AddDate(0, 0, 1)
	}
	return d
}
