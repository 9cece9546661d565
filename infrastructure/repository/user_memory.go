package repository

import (
	"context"
	"sync"

	"github.com/samber/lo"

	"github.com/matspina/screen-play-wright/domain/user"
)

// MemoryUserRepository implements user.Repository in process memory.
// It backs users loaded from configuration files.
type MemoryUserRepository struct {
	mu    sync.RWMutex
	users map[string]*user.User
}

// NewMemoryUserRepository creates an empty in-memory user repository.
func NewMemoryUserRepository() *MemoryUserRepository {
	return &MemoryUserRepository{users: make(map[string]*user.User)}
}

// FindByName retrieves a copy of the named user, or nil.
func (r *MemoryUserRepository) FindByName(_ context.Context, name string) (*user.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	u, ok := r.users[name]
	if !ok {
		return nil, nil
	}
	return u.Clone(), nil
}

// FindAll retrieves copies of all users.
func (r *MemoryUserRepository) FindAll(_ context.Context) ([]*user.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return lo.MapToSlice(r.users, func(_ string, u *user.User) *user.User {
		return u.Clone()
	}), nil
}

// Save stores a copy of the user, replacing any user with the same name.
func (r *MemoryUserRepository) Save(_ context.Context, u *user.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.users[u.Name] = u.Clone()
	return nil
}

// Delete removes a user by name.
func (r *MemoryUserRepository) Delete(_ context.Context, name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.users[name]; !ok {
		return user.ErrUserNotFound
	}
	delete(r.users, name)
	return nil
}

var _ user.Repository = (*MemoryUserRepository)(nil)
