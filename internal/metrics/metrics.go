// Package metrics exposes Prometheus counters for the attendance engine.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// CheckInsTotal counts check-in attempts by final outcome
	// (present, out_of_range, rejected, conflict).
	CheckInsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "rollcall_checkins_total",
		Help: "Attendance check-in attempts by outcome.",
	}, []string{"outcome"})

	// SessionsOpened counts created or refreshed attendance sessions.
	SessionsOpened = promauto.NewCounter(prometheus.CounterOpts{
		Name: "rollcall_sessions_opened_total",
		Help: "Attendance sessions created or refreshed.",
	})

	// CASConflicts counts optimistic-lock retries on session writes.
	CASConflicts = promauto.NewCounter(prometheus.CounterOpts{
		Name: "rollcall_session_cas_conflicts_total",
		Help: "Compare-and-swap conflicts while mutating a session.",
	})

	// ReconcileRuns counts reconciliation runs by result (ok, skipped, error).
	ReconcileRuns = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "rollcall_reconcile_runs_total",
		Help: "Roster reconciliation runs by result.",
	}, []string{"result"})

	// ReconcileSessionsRebuilt counts sessions rewritten by reconciliation.
	ReconcileSessionsRebuilt = promauto.NewCounter(prometheus.CounterOpts{
		Name: "rollcall_reconcile_sessions_rebuilt_total",
		Help: "Sessions whose lists were rebuilt by reconciliation.",
	})

	// ReconcileSessionsDeleted counts orphaned sessions reaped by reconciliation.
	ReconcileSessionsDeleted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "rollcall_reconcile_sessions_deleted_total",
		Help: "Orphaned sessions deleted by reconciliation.",
	})
)
