package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"

	"github.com/example/tuition-scheduler/internal/application"
	"github.com/example/tuition-scheduler/internal/cache"
	"github.com/example/tuition-scheduler/internal/config"
	httptransport "github.com/example/tuition-scheduler/internal/http"
	"github.com/example/tuition-scheduler/internal/logging"
	"github.com/example/tuition-scheduler/internal/persistence/sqlite"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		slog.New(slog.NewJSONHandler(os.Stderr, nil)).Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	level, _ := logging.ParseLevel(cfg.LogLevel)
	logger := logging.NewJSONLogger(os.Stdout, level)
	slog.SetDefault(logger)

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("server encountered error", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Config, logger *slog.Logger) error {
	app, err := newApp(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer app.Close()

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:           app.handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("failed to shutdown server", "error", err)
		}
	}()

	logger.Info("tuition API listening", "addr", server.Addr, "redis", cfg.UseRedis())
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// app holds the wired service and the resources it must release.
type app struct {
	handler http.Handler
	closers []func() error
	logger  *slog.Logger
}

func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			a.logger.Error("failed to release resource", "error", err)
		}
	}
	a.closers = nil
}

func newApp(ctx context.Context, cfg config.Config, logger *slog.Logger) (_ *app, err error) {
	a := &app{logger: logger}
	defer func() {
		if err != nil {
			a.Close()
		}
	}()

	pool, err := openDatabase(ctx, cfg.SQLiteDSN, logger)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, pool.Close)

	timetableCache, closeCache, err := newTimetableCache(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	if closeCache != nil {
		a.closers = append(a.closers, closeCache)
	}

	now := func() time.Time { return time.Now().UTC() }
	tuitions := application.NewTuitionServiceWithLogger(sqlite.NewTuitionRepository(pool), timetableCache, uuid.NewString, now, logger)
	students := application.NewStudentServiceWithLogger(sqlite.NewStudentRepository(pool), tuitions, uuid.NewString, now, logger)

	a.handler = httptransport.NewRouter(httptransport.RouterConfig{
		Students:   httptransport.NewStudentHandler(students, cfg.Grid, logger),
		Timetables: httptransport.NewTimetableHandler(tuitions, logger),
		Health:     httptransport.NewHealthHandler(pool, logger),
		Middleware: []func(http.Handler) http.Handler{
			httptransport.RequestLogger(logger),
			httptransport.RateLimit(httptransport.RateLimitOptions{
				PerMinute:      cfg.RateLimitPerMinute,
				TrustedProxies: cfg.TrustedProxies,
			}, logger),
		},
	})
	return a, nil
}

func openDatabase(ctx context.Context, dsn string, logger *slog.Logger) (*sqlite.ConnectionPool, error) {
	pool, err := sqlite.NewConnectionPool(ctx, sqlite.DefaultConfig(dsn))
	if err != nil {
		return nil, fmt.Errorf("failed to open storage: %w", err)
	}
	if err := sqlite.NewMigrator(pool.DB(), logger).Run(ctx); err != nil {
		_ = pool.Close()
		return nil, fmt.Errorf("failed to apply migrations: %w", err)
	}
	return pool, nil
}

// newTimetableCache returns the Redis cache when an address is configured and the
// in-process cache otherwise.
func newTimetableCache(ctx context.Context, cfg config.Config, logger *slog.Logger) (application.TimetableCache, func() error, error) {
	if !cfg.UseRedis() {
		return application.NewMemoryTimetableCache(cfg.CacheTTL, 0, nil), nil, nil
	}
	client, err := cache.NewClient(ctx, cache.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	return cache.NewRedisTimetableCache(client, cfg.CacheTTL, logger), client.Close, nil
}
