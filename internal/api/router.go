package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/mknumberone/clinic-scheduling/internal/appointment"
	"github.com/mknumberone/clinic-scheduling/internal/availability"
	"github.com/mknumberone/clinic-scheduling/internal/schedule"
)

type RouterConfig struct {
	Appointments *appointment.Service
	Availability *availability.Engine
	Shifts       *schedule.Service
	PgPool       *pgxpool.Pool
	Redis        *redis.Client
	Logger       zerolog.Logger
	Env          string
	Version      string
}

func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	r.Use(RequestIDMiddleware)
	r.Use(LoggingMiddleware(cfg.Logger))
	r.Use(RecoverMiddleware(cfg.Logger))

	health := NewHealthHandler(cfg.PgPool, cfg.Redis, cfg.Env, cfg.Version)
	r.Get("/health/live", health.Liveness)
	r.Get("/health/ready", health.Readiness)

	r.Get("/availability", availabilityHandler(cfg.Availability))

	r.Post("/appointments", bookAppointmentHandler(cfg.Appointments))
	r.Get("/appointments", listAppointmentsHandler(cfg.Appointments))
	r.Get("/appointments/{id}", getAppointmentHandler(cfg.Appointments))
	r.Post("/appointments/{id}/status", changeStatusHandler(cfg.Appointments))

	r.Post("/shifts", createShiftHandler(cfg.Shifts))
	r.Get("/shifts", listShiftsHandler(cfg.Shifts))
	r.Patch("/shifts/{id}", rescheduleShiftHandler(cfg.Shifts))
	r.Delete("/shifts/{id}", deleteShiftHandler(cfg.Shifts))

	return r
}
