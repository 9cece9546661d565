// Package screenplay implements the Screenplay pattern: actors with abilities
// perform activities and answer questions about the system under test.
package screenplay

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"sync"
)

// ErrMissingAbility is returned when an actor is asked to use an ability it was never given.
var ErrMissingAbility = errors.New("actor lacks the required ability")

// Activity is something an actor can perform: an interaction or a task made of interactions.
type Activity interface {
	PerformAs(ctx context.Context, actor *Actor) error
}

// ActivityFunc adapts a function to an Activity.
type ActivityFunc func(ctx context.Context, actor *Actor) error

func (f ActivityFunc) PerformAs(ctx context.Context, actor *Actor) error {
	return f(ctx, actor)
}

// Question verifies the state of the system. A nil error means the answer is yes.
type Question interface {
	AskAs(ctx context.Context, actor *Actor) error
}

// QuestionFunc adapts a function to a Question.
type QuestionFunc func(ctx context.Context, actor *Actor) error

func (f QuestionFunc) AskAs(ctx context.Context, actor *Actor) error {
	return f(ctx, actor)
}

// Ability is a capability an actor holds, such as browsing the web.
type Ability interface {
	AbilityName() string
}

// Actor performs activities on behalf of a user.
type Actor struct {
	name     string
	username string
	password string

	mu         sync.RWMutex
	abilities  map[string]Ability
	properties map[string]string
}

// Named creates an actor.
func Named(name string) *Actor {
	return &Actor{
		name:       name,
		abilities:  make(map[string]Ability),
		properties: make(map[string]string),
	}
}

// WithUsername sets the login username.
func (a *Actor) WithUsername(username string) *Actor {
	a.username = username
	return a
}

// WithPassword sets the login password.
func (a *Actor) WithPassword(password string) *Actor {
	a.password = password
	return a
}

// WithProperty stores a custom property.
func (a *Actor) WithProperty(key, value string) *Actor {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.properties[key] = value
	return a
}

func (a *Actor) Name() string     { return a.name }
func (a *Actor) Username() string { return a.username }
func (a *Actor) Password() string { return a.password }

// Property returns a custom property.
func (a *Actor) Property(key string) (string, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	v, ok := a.properties[key]
	return v, ok
}

// Properties returns a copy of the custom properties.
func (a *Actor) Properties() map[string]string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return maps.Clone(a.properties)
}

// Can gives the actor abilities, replacing any ability with the same name.
func (a *Actor) Can(abilities ...Ability) *Actor {
	a.mu.Lock()
	defer a.mu.Unlock()
	for _, ab := range abilities {
		a.abilities[ab.AbilityName()] = ab
	}
	return a
}

// AbilityTo returns the ability registered under name.
func (a *Actor) AbilityTo(name string) (Ability, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	ab, ok := a.abilities[name]
	if !ok {
		return nil, fmt.Errorf("%s cannot %s: %w", a.name, name, ErrMissingAbility)
	}
	return ab, nil
}

// Clone returns an actor with the same identity and properties but no abilities.
// Concurrent setups sharing a user each work on their own clone.
func (a *Actor) Clone() *Actor {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return &Actor{
		name:       a.name,
		username:   a.username,
		password:   a.password,
		abilities:  make(map[string]Ability),
		properties: maps.Clone(a.properties),
	}
}

// AttemptsTo performs activities in order and stops at the first failure.
func (a *Actor) AttemptsTo(ctx context.Context, activities ...Activity) error {
	for _, activity := range activities {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := activity.PerformAs(ctx, a); err != nil {
			return err
		}
	}
	return nil
}

// Asks answers questions in order and fails on the first negative answer.
func (a *Actor) Asks(ctx context.Context, questions ...Question) error {
	for _, q := range questions {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := q.AskAs(ctx, a); err != nil {
			return err
		}
	}
	return nil
}

// KindlyAsks answers a question without failing: it reports the answer as a bool.
func (a *Actor) KindlyAsks(ctx context.Context, q Question) bool {
	return q.AskAs(ctx, a) == nil
}
