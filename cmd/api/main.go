// Package main is the entry point for the fleet calendar API server.
// Its sole responsibility is wiring dependencies together and starting the server.
// No business logic belongs here.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"

	"github.com/pkordes/fleet-calendar/internal/changefeed"
	"github.com/pkordes/fleet-calendar/internal/config"
	"github.com/pkordes/fleet-calendar/internal/handler"
	"github.com/pkordes/fleet-calendar/internal/lock"
	"github.com/pkordes/fleet-calendar/internal/middleware"
	"github.com/pkordes/fleet-calendar/internal/repo"
	"github.com/pkordes/fleet-calendar/internal/service"
	"github.com/pkordes/fleet-calendar/internal/timecodec"
	"github.com/pkordes/fleet-calendar/migrations"
)

func main() {
	// --- Config -----------------------------------------------------------
	cfg, err := config.Load()
	if err != nil {
		// Use plain stderr before the logger is configured.
		slog.Error("configuration error", "error", err)
		os.Exit(1)
	}

	// --- Logger -----------------------------------------------------------
	var logLevel slog.Level
	if err := logLevel.UnmarshalText([]byte(cfg.LogLevel)); err != nil {
		logLevel = slog.LevelInfo
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	}))
	slog.SetDefault(logger)

	// ctx is cancelled on SIGINT/SIGTERM. Live sockets and the change-feed
	// listener derive from it so they stop with the server.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	codec, err := timecodec.New(cfg.Timezone)
	if err != nil {
		slog.Error("invalid timezone", "timezone", cfg.Timezone, "error", err)
		os.Exit(1)
	}

	// --- Database ---------------------------------------------------------
	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		slog.Error("failed to create database pool", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	// Verify the DB is reachable before accepting traffic.
	if err := pool.Ping(ctx); err != nil {
		slog.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	slog.Info("database connection established")

	if cfg.MigrateOnStart {
		// goose drives database/sql; OpenDBFromPool shares the pgx pool.
		db := stdlib.OpenDBFromPool(pool)
		applied, err := migrations.Up(ctx, db)
		_ = db.Close()
		if err != nil {
			slog.Error("failed to apply migrations", "error", err)
			os.Exit(1)
		}
		slog.Info("migrations applied", "count", applied)
	}

	// --- Change feed ------------------------------------------------------
	hub := changefeed.NewHub(logger)
	listener := changefeed.NewListener(pool, hub, logger)
	go func() {
		if err := listener.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			slog.Error("change feed listener stopped", "error", err)
		}
	}()

	// --- Move guard -------------------------------------------------------
	var locker service.Locker = lock.NewMemoryStore(cfg.MoveLockTTL)
	if cfg.RedisURL != "" {
		client, err := lock.NewRedisClient(ctx, cfg.RedisURL)
		if err != nil {
			slog.Error("failed to connect to redis", "error", err)
			os.Exit(1)
		}
		defer client.Close()
		locker = lock.NewRedisStore(client, cfg.MoveLockTTL)
		slog.Info("redis move lock enabled")
	}

	// --- Services ---------------------------------------------------------
	rides := repo.NewRideRepo(pool)
	segments := repo.NewSegmentRepo(pool)
	calendarSvc := service.NewCalendarService(rides, segments, logger)
	mover := service.NewMover(rides, segments, codec, locker, logger)

	// --- Router -----------------------------------------------------------
	// Middleware is applied in order: RequestID → RealIP → Logger → Recoverer
	// → CORS → body limit.
	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.NewSlogLogger(logger))
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.NewCORSHandler(cfg.CORSOrigins))
	r.Use(middleware.NewMaxBodySizeHandler(cfg.MaxBodyBytes))

	api := handler.NewServer(calendarSvc, mover, hub, codec, logger,
		handler.WithAllowedOrigins(cfg.CORSOrigins),
	)
	r.Mount("/", api.Routes())

	// --- HTTP Server ------------------------------------------------------
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
		BaseContext:  func(net.Listener) context.Context { return ctx },
	}

	go func() {
		slog.Info("server starting", "addr", srv.Addr, "timezone", cfg.Timezone)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	slog.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("shutdown error", "error", err)
		os.Exit(1)
	}
	slog.Info("server stopped")
}
