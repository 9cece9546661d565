// Package state defines the setup slot state machine.
package state

import (
	"fmt"
	"sync"
)

// SetupState represents the state of one setup execution.
type SetupState int

const (
	// StateQueued is the initial state before the setup gets a slot.
	StateQueued SetupState = iota
	// StateRunning indicates an attempt is in progress.
	StateRunning
	// StateRetrying indicates an attempt failed and another one will follow.
	StateRetrying
	// StateSucceeded indicates the login state was saved.
	StateSucceeded
	// StateCached indicates a fresh state already existed.
	StateCached
	// StateSkipped indicates the setup does not run in this environment.
	StateSkipped
	// StateTolerated indicates the site is not configured for the environment.
	StateTolerated
	// StateFailed indicates all attempts failed.
	StateFailed
)

// String returns the string representation of the state.
func (s SetupState) String() string {
	switch s {
	case StateQueued:
		return "Queued"
	case StateRunning:
		return "Running"
	case StateRetrying:
		return "Retrying"
	case StateSucceeded:
		return "Succeeded"
	case StateCached:
		return "Cached"
	case StateSkipped:
		return "Skipped"
	case StateTolerated:
		return "Tolerated"
	case StateFailed:
		return "Failed"
	default:
		return fmt.Sprintf("Unknown(%d)", s)
	}
}

// validTransitions defines the allowed state transitions.
// Key is the current state, value is a list of valid target states.
var validTransitions = map[SetupState][]SetupState{
	StateQueued:    {StateRunning, StateFailed},
	StateRunning:   {StateRetrying, StateSucceeded, StateCached, StateSkipped, StateTolerated, StateFailed},
	StateRetrying:  {StateRunning, StateFailed},
	StateSucceeded: {},
	StateCached:    {},
	StateSkipped:   {},
	StateTolerated: {},
	StateFailed:    {},
}

// CanTransitionTo checks if transitioning from the current state to the target state is valid.
func (s SetupState) CanTransitionTo(target SetupState) bool {
	allowed, ok := validTransitions[s]
	if !ok {
		return false
	}
	for _, t := range allowed {
		if t == target {
			return true
		}
	}
	return false
}

// ValidTransitions returns the list of valid target states from the current state.
func (s SetupState) ValidTransitions() []SetupState {
	return validTransitions[s]
}

// IsTerminal returns true if the setup has settled.
func (s SetupState) IsTerminal() bool {
	allowed, ok := validTransitions[s]
	return ok && len(allowed) == 0
}

// IsFulfilled returns true for settled states that count as a successful setup.
// Skipped and cached setups are successful no-ops.
func (s SetupState) IsFulfilled() bool {
	return s == StateSucceeded || s == StateCached || s == StateSkipped
}

// Slot tracks the state of one setup execution. It is safe for concurrent use.
type Slot struct {
	mu    sync.Mutex
	state SetupState
}

// NewSlot returns a slot in StateQueued.
func NewSlot() *Slot {
	return &Slot{state: StateQueued}
}

// State returns the current state.
func (s *Slot) State() SetupState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Transition moves the slot to target and returns the previous state.
func (s *Slot) Transition(target SetupState) (SetupState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	from := s.state
	if !from.CanTransitionTo(target) {
		return from, NewTransitionError(from, target, "")
	}
	s.state = target
	return from, nil
}

// TransitionError represents an invalid state transition attempt.
type TransitionError struct {
	From   SetupState
	To     SetupState
	Reason string
}

func (e *TransitionError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("invalid state transition from %s to %s: %s", e.From, e.To, e.Reason)
	}
	return fmt.Sprintf("invalid state transition from %s to %s", e.From, e.To)
}

// NewTransitionError creates a new TransitionError.
func NewTransitionError(from, to SetupState, reason string) *TransitionError {
	return &TransitionError{From: from, To: to, Reason: reason}
}
