package user

import (
	"context"
	"errors"
	"fmt"
	"sort"
)

// Common errors for user operations.
var (
	ErrUserNotFound = errors.New("user not found")
	ErrInvalidUser  = errors.New("invalid user")
)

// Service provides business logic for user management.
type Service struct {
	repo Repository
}

// NewService creates a new user service.
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// GetUser retrieves a user by name.
func (s *Service) GetUser(ctx context.Context, name string) (*User, error) {
	u, err := s.repo.FindByName(ctx, name)
	if err != nil {
		return nil, err
	}
	if u == nil {
		return nil, fmt.Errorf("%w: %s", ErrUserNotFound, name)
	}
	return u, nil
}

// ListUsers retrieves all users, sorted by name.
func (s *Service) ListUsers(ctx context.Context) ([]*User, error) {
	users, err := s.repo.FindAll(ctx)
	if err != nil {
		return nil, err
	}

	sort.Slice(users, func(i, j int) bool {
		return users[i].Name < users[j].Name
	})

	return users, nil
}

// SaveUser validates and stores a user.
func (s *Service) SaveUser(ctx context.Context, u *User) error {
	if u == nil || u.Name == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidUser)
	}
	if (u.Username == "") != (u.Password == "") {
		return fmt.Errorf("%w: %s needs both username and password or neither", ErrInvalidUser, u.Name)
	}
	return s.repo.Save(ctx, u)
}

// DeleteUser removes a user.
func (s *Service) DeleteUser(ctx context.Context, name string) error {
	return s.repo.Delete(ctx, name)
}
