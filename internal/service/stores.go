package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/hcmut-dev/rollcall-backend/internal/model"
)

// SessionStore is the persistence surface the attendance engine needs.
// *repository.AttendanceRepository satisfies it; tests use an in-memory
// fake with the same compare-and-swap semantics.
type SessionStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*model.AttendanceSession, error)
	FindOpenSlot(ctx context.Context, classID, week, lesson int, now time.Time) (*model.AttendanceSession, error)
	Create(ctx context.Context, s *model.AttendanceSession) error
	// UpdateCAS persists the session only if its version is unchanged,
	// returning false on a lost race.
	UpdateCAS(ctx context.Context, s *model.AttendanceSession) (bool, error)
	List(ctx context.Context) ([]model.AttendanceSession, error)
	ListByLecturer(ctx context.Context, lecturerID int, classID *int) ([]model.AttendanceSession, error)
	DeleteOrphans(ctx context.Context) (int64, error)
}

// ClassStore supplies class records and active rosters. The engine never
// writes through it; rosters are owned by the class aggregate.
type ClassStore interface {
	GetByID(ctx context.Context, id int) (*model.Class, error)
	ActiveRoster(ctx context.Context, classID int) ([]int, error)
	ActiveRostersByClass(ctx context.Context) (map[int][]int, error)
}
