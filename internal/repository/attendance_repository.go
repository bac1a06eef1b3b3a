package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/hcmut-dev/rollcall-backend/internal/model"
	"github.com/jackc/pgx/v5/pgxpool"
)

// AttendanceRepository handles attendance session data access. The present
// and absent lists are stored as JSONB alongside their derived counts;
// every mutation goes through a versioned compare-and-swap so concurrent
// check-ins never lose an update.
type AttendanceRepository struct {
	pool *pgxpool.Pool
}

// NewAttendanceRepository creates a new AttendanceRepository.
func NewAttendanceRepository(pool *pgxpool.Pool) *AttendanceRepository {
	return &AttendanceRepository{pool: pool}
}

const sessionColumns = `id, class_id, lecturer_id, week, lesson,
	location_lat, location_lng, location_radius_m, location_accuracy_m,
	token, created_at, expires_at, terminated,
	present, absent, present_count, absent_count, version`

func scanSession(row interface{ Scan(...any) error }) (*model.AttendanceSession, error) {
	s := &model.AttendanceSession{}
	var present, absent []byte
	err := row.Scan(&s.ID, &s.ClassID, &s.LecturerID, &s.Week, &s.Lesson,
		&s.Location.Lat, &s.Location.Lng, &s.Location.Radius, &s.Location.Accuracy,
		&s.Token, &s.CreatedAt, &s.ExpiresAt, &s.Terminated,
		&present, &absent, &s.PresentCount, &s.AbsentCount, &s.Version)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(present, &s.Present); err != nil {
		return nil, fmt.Errorf("decode present list: %w", err)
	}
	if err := json.Unmarshal(absent, &s.Absent); err != nil {
		return nil, fmt.Errorf("decode absent list: %w", err)
	}
	return s, nil
}

func marshalLists(s *model.AttendanceSession) (present, absent []byte, err error) {
	if s.Present == nil {
		s.Present = []model.PresentEntry{}
	}
	if s.Absent == nil {
		s.Absent = []int{}
	}
	present, err = json.Marshal(s.Present)
	if err != nil {
		return nil, nil, fmt.Errorf("encode present list: %w", err)
	}
	absent, err = json.Marshal(s.Absent)
	if err != nil {
		return nil, nil, fmt.Errorf("encode absent list: %w", err)
	}
	return present, absent, nil
}

// GetByID retrieves a session by its ID.
func (r *AttendanceRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.AttendanceSession, error) {
	return scanSession(r.pool.QueryRow(ctx,
		`SELECT `+sessionColumns+` FROM attendance_sessions WHERE id = $1`, id))
}

// FindOpenSlot returns the non-expired, non-terminated session for a
// (class, week, lesson) slot, or pgx.ErrNoRows if the slot has no open window.
func (r *AttendanceRepository) FindOpenSlot(ctx context.Context, classID, week, lesson int, now time.Time) (*model.AttendanceSession, error) {
	return scanSession(r.pool.QueryRow(ctx,
		`SELECT `+sessionColumns+`
		 FROM attendance_sessions
		 WHERE class_id = $1 AND week = $2 AND lesson = $3
		   AND NOT terminated AND expires_at > $4
		 ORDER BY created_at DESC
		 LIMIT 1`,
		classID, week, lesson, now))
}

// Create inserts a new session with version 1.
func (r *AttendanceRepository) Create(ctx context.Context, s *model.AttendanceSession) error {
	present, absent, err := marshalLists(s)
	if err != nil {
		return err
	}
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	s.Version = 1

	_, err = r.pool.Exec(ctx,
		`INSERT INTO attendance_sessions
		 (id, class_id, lecturer_id, week, lesson,
		  location_lat, location_lng, location_radius_m, location_accuracy_m,
		  token, created_at, expires_at, terminated,
		  present, absent, present_count, absent_count, version)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)`,
		s.ID, s.ClassID, s.LecturerID, s.Week, s.Lesson,
		s.Location.Lat, s.Location.Lng, s.Location.Radius, s.Location.Accuracy,
		s.Token, s.CreatedAt, s.ExpiresAt, s.Terminated,
		present, absent, s.PresentCount, s.AbsentCount, s.Version)
	return err
}

// UpdateCAS persists the mutable session fields if and only if the stored
// version still equals s.Version. On success the version is bumped both in
// the row and in s, and it returns true. A false return means another
// writer got there first: reload and retry.
func (r *AttendanceRepository) UpdateCAS(ctx context.Context, s *model.AttendanceSession) (bool, error) {
	present, absent, err := marshalLists(s)
	if err != nil {
		return false, err
	}

	tag, err := r.pool.Exec(ctx,
		`UPDATE attendance_sessions
		 SET token = $1, expires_at = $2, terminated = $3,
		     present = $4, absent = $5, present_count = $6, absent_count = $7,
		     version = version + 1
		 WHERE id = $8 AND version = $9`,
		s.Token, s.ExpiresAt, s.Terminated,
		present, absent, s.PresentCount, s.AbsentCount,
		s.ID, s.Version)
	if err != nil {
		return false, err
	}
	if tag.RowsAffected() == 0 {
		return false, nil
	}
	s.Version++
	return true, nil
}

// List retrieves all sessions, for reconciliation.
func (r *AttendanceRepository) List(ctx context.Context) ([]model.AttendanceSession, error) {
	return r.listWhere(ctx, ``)
}

// ListByLecturer retrieves a lecturer's session history, optionally
// narrowed to one class, newest first.
func (r *AttendanceRepository) ListByLecturer(ctx context.Context, lecturerID int, classID *int) ([]model.AttendanceSession, error) {
	if classID != nil {
		return r.listWhere(ctx, ` WHERE lecturer_id = $1 AND class_id = $2`, lecturerID, *classID)
	}
	return r.listWhere(ctx, ` WHERE lecturer_id = $1`, lecturerID)
}

func (r *AttendanceRepository) listWhere(ctx context.Context, where string, args ...any) ([]model.AttendanceSession, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+sessionColumns+` FROM attendance_sessions`+where+` ORDER BY created_at DESC`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sessions []model.AttendanceSession
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, *s)
	}
	return sessions, rows.Err()
}

// DeleteOrphans removes every session whose class no longer exists
// (class_id is NULL after the FK's ON DELETE SET NULL fired).
func (r *AttendanceRepository) DeleteOrphans(ctx context.Context) (int64, error) {
	tag, err := r.pool.Exec(ctx,
		`DELETE FROM attendance_sessions WHERE class_id IS NULL`)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
