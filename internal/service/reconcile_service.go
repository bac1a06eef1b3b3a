package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/hcmut-dev/rollcall-backend/internal/config"
	"github.com/hcmut-dev/rollcall-backend/internal/metrics"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// reconcileLockTTL caps how long a crashed run can hold the lock.
const reconcileLockTTL = 5 * time.Minute

// Locker provides single-flight over the reconciliation job across all
// server instances.
type Locker interface {
	// Acquire returns false when another holder owns the lock.
	Acquire(ctx context.Context) (bool, error)
	Release(ctx context.Context)
}

// RedisLocker implements Locker with SETNX on a shared key.
type RedisLocker struct {
	rdb *redis.Client
	log zerolog.Logger
}

func NewRedisLocker(rdb *redis.Client, log zerolog.Logger) *RedisLocker {
	return &RedisLocker{rdb: rdb, log: log.With().Str("component", "reconcile_lock").Logger()}
}

func (l *RedisLocker) Acquire(ctx context.Context) (bool, error) {
	return l.rdb.SetNX(ctx, config.CacheKey.ReconcileLockKey(), "1", reconcileLockTTL).Result()
}

func (l *RedisLocker) Release(ctx context.Context) {
	if err := l.rdb.Del(ctx, config.CacheKey.ReconcileLockKey()).Err(); err != nil {
		l.log.Warn().Err(err).Msg("failed to release reconcile lock")
	}
}

// ReconcileReport summarizes one reconciliation run.
type ReconcileReport struct {
	SessionsDeleted int `json:"sessions_deleted"`
	SessionsRebuilt int `json:"sessions_rebuilt"`
	SessionsScanned int `json:"sessions_scanned"`
	SessionsSkipped int `json:"sessions_skipped"`
}

// ReconcileService repairs attendance sessions after roster or user churn:
// orphaned sessions (their class was deleted) are reaped, and every
// remaining session's present and absent lists are rebuilt against the
// class's current active roster so the two always partition it.
type ReconcileService struct {
	sessions SessionStore
	classes  ClassStore
	locker   Locker
	log      zerolog.Logger
}

func NewReconcileService(sessions SessionStore, classes ClassStore, locker Locker, log zerolog.Logger) *ReconcileService {
	return &ReconcileService{
		sessions: sessions,
		classes:  classes,
		locker:   locker,
		log:      log.With().Str("component", "reconcile_service").Logger(),
	}
}

// Run executes one full reconciliation pass under the distributed lock.
// Returns ErrReconcileRunning when another pass holds the lock. Per-session
// failures are logged and skipped; one bad row must not block the rest.
func (s *ReconcileService) Run(ctx context.Context) (*ReconcileReport, error) {
	acquired, err := s.locker.Acquire(ctx)
	if err != nil {
		metrics.ReconcileRuns.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("acquire reconcile lock: %w", err)
	}
	if !acquired {
		metrics.ReconcileRuns.WithLabelValues("skipped").Inc()
		return nil, ErrReconcileRunning
	}
	defer s.locker.Release(ctx)

	started := time.Now()
	report, err := s.runLocked(ctx)
	if err != nil {
		metrics.ReconcileRuns.WithLabelValues("error").Inc()
		return nil, err
	}

	metrics.ReconcileRuns.WithLabelValues("ok").Inc()
	s.log.Info().
		Int("deleted", report.SessionsDeleted).
		Int("rebuilt", report.SessionsRebuilt).
		Int("scanned", report.SessionsScanned).
		Int("skipped", report.SessionsSkipped).
		Dur("duration", time.Since(started)).
		Msg("reconciliation pass complete")
	return report, nil
}

func (s *ReconcileService) runLocked(ctx context.Context) (*ReconcileReport, error) {
	report := &ReconcileReport{}

	deleted, err := s.sessions.DeleteOrphans(ctx)
	if err != nil {
		return nil, fmt.Errorf("delete orphaned sessions: %w", err)
	}
	report.SessionsDeleted = int(deleted)
	metrics.ReconcileSessionsDeleted.Add(float64(deleted))

	rosters, err := s.classes.ActiveRostersByClass(ctx)
	if err != nil {
		return nil, fmt.Errorf("load rosters: %w", err)
	}

	sessions, err := s.sessions.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}

	for _, sess := range sessions {
		report.SessionsScanned++
		if sess.ClassID == nil {
			// Orphaned between the reap and the list; next pass gets it.
			continue
		}
		roster := rosters[*sess.ClassID]

		rebuilt, err := s.rebuildSession(ctx, sess.ID, roster)
		if err != nil {
			report.SessionsSkipped++
			s.log.Warn().Err(err).
				Str("session_id", sess.ID.String()).
				Msg("skipping session during reconciliation")
			continue
		}
		if rebuilt {
			report.SessionsRebuilt++
			metrics.ReconcileSessionsRebuilt.Inc()
		}
	}

	return report, nil
}

// rebuildSession reloads the session and applies Rebuild under CAS so a
// check-in landing mid-pass is never overwritten with stale lists.
func (s *ReconcileService) rebuildSession(ctx context.Context, id uuid.UUID, roster []int) (bool, error) {
	for attempt := 0; attempt < casMaxRetries; attempt++ {
		sess, err := s.sessions.GetByID(ctx, id)
		if err != nil {
			return false, fmt.Errorf("reload session: %w", err)
		}
		if !sess.Rebuild(roster) {
			return false, nil
		}

		ok, err := s.sessions.UpdateCAS(ctx, sess)
		if err != nil {
			return false, fmt.Errorf("persist rebuilt session: %w", err)
		}
		if ok {
			return true, nil
		}
		metrics.CASConflicts.Inc()
	}
	return false, ErrUpdateConflict
}
