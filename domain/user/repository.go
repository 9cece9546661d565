package user

import "context"

// Repository defines the interface for user persistence operations.
type Repository interface {
	// FindByName retrieves a user by name.
	// Returns nil if not found.
	FindByName(ctx context.Context, name string) (*User, error)

	// FindAll retrieves all users.
	FindAll(ctx context.Context) ([]*User, error)

	// Save inserts the user or replaces the one with the same name.
	Save(ctx context.Context, user *User) error

	// Delete removes a user by name.
	Delete(ctx context.Context, name string) error
}
