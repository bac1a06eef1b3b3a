package worker

import (
	"context"
	"errors"
	"time"

	"github.com/hcmut-dev/rollcall-backend/internal/service"
	"github.com/rs/zerolog"
)

// ReconcileWorker runs the roster reconciliation job on a fixed interval.
// The job's distributed lock makes overlapping instances harmless, so this
// worker can run on every server replica.
type ReconcileWorker struct {
	reconcileService *service.ReconcileService
	interval         time.Duration
	log              zerolog.Logger
}

// NewReconcileWorker creates a new ReconcileWorker.
func NewReconcileWorker(reconcileService *service.ReconcileService, interval time.Duration, log zerolog.Logger) *ReconcileWorker {
	return &ReconcileWorker{
		reconcileService: reconcileService,
		interval:         interval,
		log:              log.With().Str("component", "reconcile_worker").Logger(),
	}
}

// Start begins the ticker loop. Call in a goroutine. A zero interval
// disables scheduled runs entirely.
func (w *ReconcileWorker) Start(ctx context.Context) {
	if w.interval <= 0 {
		w.log.Info().Msg("Scheduled reconciliation disabled")
		return
	}

	w.log.Info().Dur("interval", w.interval).Msg("ReconcileWorker started")

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.log.Info().Msg("ReconcileWorker stopped")
			return
		case <-ticker.C:
			w.runOnce(ctx)
		}
	}
}

func (w *ReconcileWorker) runOnce(ctx context.Context) {
	_, err := w.reconcileService.Run(ctx)
	if err != nil {
		if errors.Is(err, service.ErrReconcileRunning) {
			w.log.Debug().Msg("Another instance is reconciling, skipping tick")
			return
		}
		w.log.Error().Err(err).Msg("Reconciliation run failed")
	}
}
