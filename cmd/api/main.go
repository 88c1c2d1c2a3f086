package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"bluegold-backend/internal/config"
	"bluegold-backend/internal/infrastructure/database"
	"bluegold-backend/internal/infrastructure/tracing"
	"bluegold-backend/internal/interfaces/router"
	"bluegold-backend/internal/scheduler"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const shutdownTimeout = 15 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("config load")
	}
	if !cfg.IsProduction() {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	}

	app, err := router.CreateApp(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("app create")
	}

	ctx := context.Background()
	if err := app.Ping(ctx); err != nil {
		log.Fatal().Err(err).Msg("store connection failed")
	}
	if app.DB != nil {
		if err := database.AutoMigrate(app.DB); err != nil {
			log.Fatal().Err(err).Msg("migration failed")
		}
		log.Info().Msg("Postgres connected")
	}
	log.Info().Msg("Redis connected")

	var sched *scheduler.Scheduler
	if cfg.SchedulerEnabled && app.Engine != nil {
		sched = scheduler.New(app.Engine, app.Notifications, 0)
		if err := sched.RegisterAll(cfg.DueDateCron); err != nil {
			log.Fatal().Err(err).Msg("scheduler")
		}
		sched.Start()
	}

	go func() {
		log.Info().Str("port", cfg.Port).Msgf("Server running at http://localhost:%s (health: /health/json)", cfg.Port)
		if err := app.Fiber.Listen(":" + cfg.Port); err != nil {
			log.Fatal().Err(err).Msg("listen")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit
	log.Info().Str("signal", sig.String()).Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(ctx, shutdownTimeout)
	defer cancel()
	if sched != nil {
		sched.Stop(shutdownCtx)
	}
	if err := app.Fiber.ShutdownWithContext(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("http shutdown")
	}
	if err := tracing.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("tracing shutdown")
	}
	if err := app.Close(); err != nil {
		log.Error().Err(err).Msg("close")
	}
	log.Info().Msg("stopped")
}
