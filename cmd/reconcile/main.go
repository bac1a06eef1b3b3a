package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/hcmut-dev/rollcall-backend/internal/config"
	"github.com/hcmut-dev/rollcall-backend/internal/database"
	"github.com/hcmut-dev/rollcall-backend/internal/logger"
	"github.com/hcmut-dev/rollcall-backend/internal/repository"
	"github.com/hcmut-dev/rollcall-backend/internal/service"
)

// Runs one reconciliation pass and exits. Useful from cron or by hand
// after bulk roster changes.
func main() {
	cfg := config.Load()
	log := logger.Setup(cfg.LogLevel, cfg.LogFormat)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	pool, err := database.NewPostgresPool(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
	}
	defer pool.Close()

	rdb, err := database.NewRedisClient(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to Redis")
	}
	defer rdb.Close()

	reconcileService := service.NewReconcileService(
		repository.NewAttendanceRepository(pool),
		repository.NewClassRepository(pool),
		service.NewRedisLocker(rdb, log),
		log,
	)

	report, err := reconcileService.Run(ctx)
	if err != nil {
		if errors.Is(err, service.ErrReconcileRunning) {
			fmt.Println("Another reconciliation run is in progress, nothing to do.")
			return
		}
		log.Fatal().Err(err).Msg("Reconciliation failed")
	}

	fmt.Printf("Reconciliation complete: %d deleted, %d rebuilt, %d scanned, %d skipped\n",
		report.SessionsDeleted, report.SessionsRebuilt, report.SessionsScanned, report.SessionsSkipped)
}
