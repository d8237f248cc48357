package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/mknumberone/clinic-scheduling/internal/api"
	"github.com/mknumberone/clinic-scheduling/internal/appointment"
	"github.com/mknumberone/clinic-scheduling/internal/availability"
	"github.com/mknumberone/clinic-scheduling/internal/config"
	"github.com/mknumberone/clinic-scheduling/internal/db"
	redisclient "github.com/mknumberone/clinic-scheduling/internal/redis"
	"github.com/mknumberone/clinic-scheduling/internal/schedule"
)

const version = "0.3.0"

func main() {
	cfg, err := config.Load()
	if err != nil {
		fallback := zerolog.New(os.Stderr)
		fallback.Fatal().Err(err).Msg("config load error")
	}

	logger := newLogger(cfg.Env)
	logger.Info().Str("env", cfg.Env).Str("http_port", cfg.HTTPPort).Msg("api-server starting up")

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := db.Migrate(cfg.PostgresDSN); err != nil {
		logger.Fatal().Err(err).Msg("migration error")
	}
	logger.Info().Msg("schema up to date")

	pgCtx, cancelPg := context.WithTimeout(rootCtx, 10*time.Second)
	pgPool, err := db.ConnectPostgres(pgCtx, cfg.PostgresDSN)
	cancelPg()
	if err != nil {
		logger.Fatal().Err(err).Msg("postgres connection error")
	}
	defer pgPool.Close()
	logger.Info().Msg("connected to Postgres")

	rdb, err := redisclient.NewRedisClient(cfg.RedisAddr, cfg.RedisUsername, cfg.RedisPassword)
	if err != nil {
		logger.Fatal().Err(err).Msg("redis connection error")
	}
	defer func() {
		if err := rdb.Close(); err != nil {
			logger.Error().Err(err).Msg("error closing redis")
		}
	}()
	logger.Info().Msg("connected to Redis")

	shiftRepo := schedule.NewPgRepository(pgPool)
	apptRepo := appointment.NewPgRepository(pgPool)
	downstream := appointment.NewPgDownstream(pgPool)
	locker := redisclient.NewRedisResourceLocker(rdb, cfg.LockTTL)

	shiftSvc := schedule.NewService(shiftRepo, logger)
	apptSvc := appointment.NewService(apptRepo, shiftRepo, locker, downstream, logger)
	engine := availability.NewEngine(shiftRepo, apptRepo, cfg.SlotDuration)

	router := api.NewRouter(api.RouterConfig{
		Appointments: apptSvc,
		Availability: engine,
		Shifts:       shiftSvc,
		PgPool:       pgPool,
		Redis:        rdb,
		Logger:       logger,
		Env:          cfg.Env,
		Version:      version,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info().Str("addr", srv.Addr).Msg("listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("http server error")
		}
	}()

	<-rootCtx.Done()
	logger.Info().Msg("shutting down api-server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("shutdown error")
	}
}

func newLogger(env string) zerolog.Logger {
	if env == "dev" {
		return zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Logger()
	}
	return zerolog.New(os.Stdout).With().Timestamp().Logger()
}
