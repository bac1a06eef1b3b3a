package service

import (
	"context"
	"errors"

	"github.com/hcmut-dev/rollcall-backend/internal/model"
	"github.com/hcmut-dev/rollcall-backend/internal/repository"
	"github.com/jackc/pgx/v5"
)

// UserService handles admin-side account management.
type UserService struct {
	users *repository.UserRepository
	auth  *AuthService
}

// NewUserService creates a new UserService.
func NewUserService(users *repository.UserRepository, auth *AuthService) *UserService {
	return &UserService{users: users, auth: auth}
}

func (s *UserService) GetByID(ctx context.Context, id int) (*model.User, error) {
	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return user, nil
}

func (s *UserService) List(ctx context.Context, role *model.Role) ([]model.User, error) {
	return s.users.List(ctx, role)
}

// Create hashes the password and inserts the account.
func (s *UserService) Create(ctx context.Context, req model.CreateUserRequest) (*model.User, error) {
	hash, err := s.auth.HashPassword(req.Password)
	if err != nil {
		return nil, err
	}
	user := &model.User{
		Username:     req.Username,
		Name:         req.Name,
		PasswordHash: hash,
		Role:         req.Role,
		IsActive:     true,
	}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

// Update applies the request on top of the stored record. An empty
// password keeps the existing hash.
func (s *UserService) Update(ctx context.Context, id int, req model.UpdateUserRequest) (*model.User, error) {
	user, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	user.Username = req.Username
	user.Name = req.Name
	user.Role = req.Role
	if req.IsActive != nil {
		user.IsActive = *req.IsActive
	}
	if req.Password != "" {
		hash, err := s.auth.HashPassword(req.Password)
		if err != nil {
			return nil, err
		}
		user.PasswordHash = hash
	} else {
		user.PasswordHash = ""
	}

	if err := s.users.Update(ctx, user); err != nil {
		return nil, err
	}
	return s.GetByID(ctx, id)
}

func (s *UserService) Delete(ctx context.Context, id int) error {
	return s.users.Delete(ctx, id)
}
