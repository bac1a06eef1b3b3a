package repository

import (
	"context"

	"github.com/hcmut-dev/rollcall-backend/internal/model"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ClassRepository handles class and roster data access.
type ClassRepository struct {
	pool *pgxpool.Pool
}

// NewClassRepository creates a new ClassRepository.
func NewClassRepository(pool *pgxpool.Pool) *ClassRepository {
	return &ClassRepository{pool: pool}
}

const classColumns = `id, code, name, lecturer_id, semester,
	location_lat, location_lng, location_radius_m, location_accuracy_m,
	is_active, created_at, updated_at`

func scanClass(row interface{ Scan(...any) error }) (*model.Class, error) {
	c := &model.Class{}
	var lat, lng, radius *float64
	var accuracy *float64
	err := row.Scan(&c.ID, &c.Code, &c.Name, &c.LecturerID, &c.Semester,
		&lat, &lng, &radius, &accuracy,
		&c.IsActive, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if lat != nil && lng != nil && radius != nil {
		c.Location = &model.Location{Lat: *lat, Lng: *lng, Radius: *radius, Accuracy: accuracy}
	}
	return c, nil
}

// GetByID retrieves a class by its ID.
func (r *ClassRepository) GetByID(ctx context.Context, id int) (*model.Class, error) {
	return scanClass(r.pool.QueryRow(ctx,
		`SELECT `+classColumns+` FROM classes WHERE id = $1`, id))
}

// List retrieves all classes.
func (r *ClassRepository) List(ctx context.Context) ([]model.Class, error) {
	return r.listWhere(ctx, ``)
}

// ListByLecturer retrieves the classes a lecturer is responsible for.
func (r *ClassRepository) ListByLecturer(ctx context.Context, lecturerID int) ([]model.Class, error) {
	return r.listWhere(ctx, ` WHERE lecturer_id = $1`, lecturerID)
}

// ListByStudent retrieves the classes a student is enrolled in.
func (r *ClassRepository) ListByStudent(ctx context.Context, studentID int) ([]model.Class, error) {
	return r.listWhere(ctx,
		` WHERE id IN (SELECT class_id FROM class_students WHERE student_id = $1)`, studentID)
}

func (r *ClassRepository) listWhere(ctx context.Context, where string, args ...any) ([]model.Class, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+classColumns+` FROM classes`+where+` ORDER BY code`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var classes []model.Class
	for rows.Next() {
		c, err := scanClass(rows)
		if err != nil {
			return nil, err
		}
		classes = append(classes, *c)
	}
	return classes, rows.Err()
}

// Create inserts a new class.
func (r *ClassRepository) Create(ctx context.Context, c *model.Class) error {
	return r.pool.QueryRow(ctx,
		`INSERT INTO classes (code, name, lecturer_id, semester, is_active)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING id, created_at, updated_at`,
		c.Code, c.Name, c.LecturerID, c.Semester, c.IsActive,
	).Scan(&c.ID, &c.CreatedAt, &c.UpdatedAt)
}

// Update modifies an existing class.
func (r *ClassRepository) Update(ctx context.Context, c *model.Class) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE classes
		 SET code = $1, name = $2, lecturer_id = $3, semester = $4, is_active = $5,
		     updated_at = CURRENT_TIMESTAMP
		 WHERE id = $6`,
		c.Code, c.Name, c.LecturerID, c.Semester, c.IsActive, c.ID,
	)
	return err
}

// SetLocation stores the classroom reference coordinates and geofence radius.
func (r *ClassRepository) SetLocation(ctx context.Context, classID int, loc model.Location) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE classes
		 SET location_lat = $1, location_lng = $2, location_radius_m = $3,
		     location_accuracy_m = $4, updated_at = CURRENT_TIMESTAMP
		 WHERE id = $5`,
		loc.Lat, loc.Lng, loc.Radius, loc.Accuracy, classID,
	)
	return err
}

// Delete removes a class. Sessions referencing it keep a NULL class_id
// (FK ON DELETE SET NULL) until reconciliation reaps them.
func (r *ClassRepository) Delete(ctx context.Context, id int) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM classes WHERE id = $1`, id)
	return err
}

// ─── Roster ─────────────────────────────────────────────────────────

// AddStudent enrolls a student into a class. Enrolling twice is a no-op.
func (r *ClassRepository) AddStudent(ctx context.Context, classID, studentID int) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO class_students (class_id, student_id)
		 VALUES ($1, $2)
		 ON CONFLICT (class_id, student_id) DO NOTHING`,
		classID, studentID,
	)
	return err
}

// RemoveStudent removes a student from a class roster.
func (r *ClassRepository) RemoveStudent(ctx context.Context, classID, studentID int) error {
	_, err := r.pool.Exec(ctx,
		`DELETE FROM class_students WHERE class_id = $1 AND student_id = $2`,
		classID, studentID,
	)
	return err
}

// ActiveRoster returns the ordered IDs of enrolled students whose account
// is enabled. This is the authoritative member set for check-ins, manual
// overrides and reconciliation.
func (r *ClassRepository) ActiveRoster(ctx context.Context, classID int) ([]int, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT cs.student_id
		 FROM class_students cs
		 JOIN users u ON u.id = cs.student_id
		 WHERE cs.class_id = $1 AND u.role = $2 AND u.is_active
		 ORDER BY cs.added_at, cs.student_id`,
		classID, model.RoleStudent,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var roster []int
	for rows.Next() {
		var id int
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		roster = append(roster, id)
	}
	return roster, rows.Err()
}

// ActiveRostersByClass returns the active roster of every class in one
// query, keyed by class ID. Classes with an empty roster are still present
// in the map so reconciliation can tell "empty roster" from "no class".
func (r *ClassRepository) ActiveRostersByClass(ctx context.Context) (map[int][]int, error) {
	rosters := make(map[int][]int)

	classRows, err := r.pool.Query(ctx, `SELECT id FROM classes`)
	if err != nil {
		return nil, err
	}
	defer classRows.Close()
	for classRows.Next() {
		var id int
		if err := classRows.Scan(&id); err != nil {
			return nil, err
		}
		rosters[id] = nil
	}
	if err := classRows.Err(); err != nil {
		return nil, err
	}

	rows, err := r.pool.Query(ctx,
		`SELECT cs.class_id, cs.student_id
		 FROM class_students cs
		 JOIN users u ON u.id = cs.student_id
		 WHERE u.role = $1 AND u.is_active
		 ORDER BY cs.class_id, cs.added_at, cs.student_id`,
		model.RoleStudent,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var classID, studentID int
		if err := rows.Scan(&classID, &studentID); err != nil {
			return nil, err
		}
		rosters[classID] = append(rosters[classID], studentID)
	}
	return rosters, rows.Err()
}
