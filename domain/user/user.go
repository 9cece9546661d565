// Package user defines the users that setup routines sign in as.
package user

import (
	"maps"
	"slices"

	"github.com/matspina/screen-play-wright/core/screenplay"
)

// User is a named set of credentials plus free-form properties.
type User struct {
	// ID is the storage identifier; empty for users loaded from files
	ID string

	// Name is the unique display name, e.g. "Generic User"
	Name string

	// Username is the login username or email
	Username string

	// Password is the login password
	Password string

	// Properties holds extra values scripts can reference
	Properties map[string]string
}

// Identity returns a human-readable identifier for the user.
func (u *User) Identity() string {
	if u.Username == "" {
		return u.Name
	}
	return u.Name + " <" + u.Username + ">"
}

// HasCredentials returns true if the user carries a username and password.
func (u *User) HasCredentials() bool {
	return u.Username != "" && u.Password != ""
}

// Actor builds a screenplay actor carrying the user's credentials.
func (u *User) Actor() *screenplay.Actor {
	actor := screenplay.Named(u.Name).
		WithUsername(u.Username).
		WithPassword(u.Password)

	for _, key := range slices.Sorted(maps.Keys(u.Properties)) {
		actor = actor.WithProperty(key, u.Properties[key])
	}
	return actor
}

// Clone creates a deep copy of the user.
func (u *User) Clone() *User {
	clone := &User{
		ID:       u.ID,
		Name:     u.Name,
		Username: u.Username,
		Password: u.Password,
	}

	if len(u.Properties) > 0 {
		clone.Properties = maps.Clone(u.Properties)
	}

	return clone
}
