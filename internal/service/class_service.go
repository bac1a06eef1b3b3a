package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/hcmut-dev/rollcall-backend/internal/model"
	"github.com/hcmut-dev/rollcall-backend/internal/repository"
	"github.com/jackc/pgx/v5"
)

// ClassService handles class management and roster membership.
type ClassService struct {
	classes *repository.ClassRepository
	users   *repository.UserRepository
}

// NewClassService creates a new ClassService.
func NewClassService(classes *repository.ClassRepository, users *repository.UserRepository) *ClassService {
	return &ClassService{classes: classes, users: users}
}

func (s *ClassService) GetByID(ctx context.Context, id int) (*model.Class, error) {
	class, err := s.classes.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrClassNotFound
		}
		return nil, err
	}
	return class, nil
}

func (s *ClassService) List(ctx context.Context) ([]model.Class, error) {
	return s.classes.List(ctx)
}

func (s *ClassService) ListByLecturer(ctx context.Context, lecturerID int) ([]model.Class, error) {
	return s.classes.ListByLecturer(ctx, lecturerID)
}

func (s *ClassService) ListByStudent(ctx context.Context, studentID int) ([]model.Class, error) {
	return s.classes.ListByStudent(ctx, studentID)
}

// Create validates that the assigned lecturer exists and has the lecturer
// role before inserting.
func (s *ClassService) Create(ctx context.Context, class *model.Class) error {
	if err := s.requireLecturer(ctx, class.LecturerID); err != nil {
		return err
	}
	return s.classes.Create(ctx, class)
}

func (s *ClassService) Update(ctx context.Context, class *model.Class) error {
	if err := s.requireLecturer(ctx, class.LecturerID); err != nil {
		return err
	}
	return s.classes.Update(ctx, class)
}

func (s *ClassService) Delete(ctx context.Context, id int) error {
	return s.classes.Delete(ctx, id)
}

// SetLocation configures the geofence anchor for a class. Only the class's
// own lecturer may move it.
func (s *ClassService) SetLocation(ctx context.Context, classID, lecturerID int, loc model.Location) error {
	class, err := s.GetByID(ctx, classID)
	if err != nil {
		return err
	}
	if class.LecturerID != lecturerID {
		return ErrNotOwner
	}
	return s.classes.SetLocation(ctx, classID, loc)
}

// AddStudent enrolls a student into a class roster. Adding the same
// student twice is a no-op.
func (s *ClassService) AddStudent(ctx context.Context, classID, studentID int) error {
	if _, err := s.GetByID(ctx, classID); err != nil {
		return err
	}
	student, err := s.users.GetByID(ctx, studentID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrUserNotFound
		}
		return err
	}
	if student.Role != model.RoleStudent {
		return fmt.Errorf("user %d is not a student", studentID)
	}
	return s.classes.AddStudent(ctx, classID, studentID)
}

func (s *ClassService) RemoveStudent(ctx context.Context, classID, studentID int) error {
	return s.classes.RemoveStudent(ctx, classID, studentID)
}

// Roster returns the class's active roster as user records, preserving
// enrollment order.
func (s *ClassService) Roster(ctx context.Context, classID int) ([]model.User, error) {
	ids, err := s.classes.ActiveRoster(ctx, classID)
	if err != nil {
		return nil, err
	}
	roster := make([]model.User, 0, len(ids))
	for _, id := range ids {
		user, err := s.users.GetByID(ctx, id)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				continue
			}
			return nil, err
		}
		roster = append(roster, *user)
	}
	return roster, nil
}

func (s *ClassService) requireLecturer(ctx context.Context, lecturerID int) error {
	lecturer, err := s.users.GetByID(ctx, lecturerID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrUserNotFound
		}
		return err
	}
	if lecturer.Role != model.RoleLecturer {
		return fmt.Errorf("user %d is not a lecturer", lecturerID)
	}
	return nil
}
