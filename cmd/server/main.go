package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hcmut-dev/rollcall-backend/internal/config"
	"github.com/hcmut-dev/rollcall-backend/internal/database"
	"github.com/hcmut-dev/rollcall-backend/internal/handler"
	"github.com/hcmut-dev/rollcall-backend/internal/logger"
	"github.com/hcmut-dev/rollcall-backend/internal/repository"
	"github.com/hcmut-dev/rollcall-backend/internal/router"
	"github.com/hcmut-dev/rollcall-backend/internal/service"
	"github.com/hcmut-dev/rollcall-backend/internal/token"
	"github.com/hcmut-dev/rollcall-backend/internal/validator"
	"github.com/hcmut-dev/rollcall-backend/internal/worker"
	"github.com/rs/zerolog"
)

func main() {
	// ─── Load Configuration ────────────────────────────────────────────
	cfg := config.Load()

	// ─── Initialize Logger ─────────────────────────────────────────────
	log := logger.Setup(cfg.LogLevel, cfg.LogFormat)
	log.Info().
		Str("port", cfg.ServerPort).
		Str("mode", cfg.GinMode).
		Str("log_level", cfg.LogLevel).
		Msg("Starting Rollcall Backend")

	// ─── Initialize Validator ──────────────────────────────────────────
	validator.Setup()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// ─── Connect to PostgreSQL ─────────────────────────────────────────
	pool, err := database.NewPostgresPool(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
	}
	defer pool.Close()

	// ─── Connect to Redis ──────────────────────────────────────────────
	rdb, err := database.NewRedisClient(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to Redis")
	}
	defer rdb.Close()

	// ─── Initialize Repositories ───────────────────────────────────────
	userRepo := repository.NewUserRepository(pool)
	classRepo := repository.NewClassRepository(pool)
	attendanceRepo := repository.NewAttendanceRepository(pool)
	notificationRepo := repository.NewNotificationRepository(pool)

	// ─── Initialize Services ──────────────────────────────────────────
	signer := token.NewSigner(cfg.SessionTokenSecret, time.Now)
	notifier := service.NewRedisNotifier(rdb, log)

	authService := service.NewAuthService(userRepo, cfg, rdb)
	classService := service.NewClassService(classRepo, userRepo)
	userService := service.NewUserService(userRepo, authService)
	attendanceService := service.NewAttendanceService(attendanceRepo, classRepo, signer, notifier, cfg, time.Now, log)
	reconcileService := service.NewReconcileService(attendanceRepo, classRepo, service.NewRedisLocker(rdb, log), log)

	// ─── Initialize Handlers ──────────────────────────────────────────
	handlers := &router.Handlers{
		Auth:       handler.NewAuthHandler(authService, userService),
		Attendance: handler.NewAttendanceHandler(attendanceService, classService),
		CheckIn:    handler.NewCheckInHandler(attendanceService, classService, notificationRepo),
		Class:      handler.NewClassHandler(classService),
		User:       handler.NewUserHandler(userService, authService),
		Reconcile:  handler.NewReconcileHandler(reconcileService),
		WS:         handler.NewWSHandler(rdb, attendanceService, log, cfg.AllowedOrigins),
		System:     handler.NewSystemHandler(rdb, log),
	}

	// ─── Start Background Workers ─────────────────────────────────────
	workerCtx, workerCancel := context.WithCancel(context.Background())

	notifyWorker := worker.NewNotifyWorker(notificationRepo, rdb, log)
	reconcileWorker := worker.NewReconcileWorker(reconcileService, cfg.ReconcileInterval, log)

	go notifyWorker.Start(workerCtx)
	go reconcileWorker.Start(workerCtx)

	// ─── Setup Router ──────────────────────────────────────────────────
	r := router.SetupRouter(authService, handlers, cfg)

	// ─── Create HTTP Server ────────────────────────────────────────────
	srv := &http.Server{
		Addr:    ":" + cfg.ServerPort,
		Handler: r,
	}

	// ─── Start Server in Goroutine ─────────────────────────────────────
	go func() {
		log.Info().Str("addr", ":"+cfg.ServerPort).Msg("Server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Server error")
		}
	}()

	// ─── Graceful Shutdown ─────────────────────────────────────────────
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit

	log.Info().Str("signal", sig.String()).Msg("Shutting down gracefully...")

	// 1. Stop accepting new HTTP requests (5s timeout).
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("HTTP server shutdown error")
	}

	// 2. Stop background workers and wait for queues to drain.
	workerCancel()
	time.Sleep(2 * time.Second) // Allow workers to drain.

	log.Info().Msg("Shutdown complete")
}

// init sets zerolog global defaults before main runs.
func init() {
	zerolog.TimeFieldFormat = time.RFC3339
}
