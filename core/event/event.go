// Package event defines all events that can be published by the application.
// Events represent progress of a global setup run and are consumed by the presentation layer.
package event

import (
	"time"

	"github.com/matspina/screen-play-wright/core/state"
)

// Event is the base interface for all events.
// Events are published by the application layer and consumed by subscribers.
type Event interface {
	// EventName returns the name of the event for logging/debugging
	EventName() string
}

// SetupEvent is an event that originates from a specific setup.
type SetupEvent interface {
	Event
	// SetupID returns the identity of the source setup
	SetupID() string
	// Label returns the human readable "experience > site" name
	Label() string
}

// baseSetupEvent provides common implementation for setup events.
type baseSetupEvent struct {
	setupID string
	label   string
}

func (e *baseSetupEvent) SetupID() string {
	return e.setupID
}

func (e *baseSetupEvent) Label() string {
	return e.label
}

// SetupStateChanged is published when a setup's state changes.
type SetupStateChanged struct {
	baseSetupEvent
	OldState state.SetupState
	NewState state.SetupState
}

func NewSetupStateChanged(setupID, label string, oldState, newState state.SetupState) *SetupStateChanged {
	return &SetupStateChanged{
		baseSetupEvent: baseSetupEvent{setupID: setupID, label: label},
		OldState:       oldState,
		NewState:       newState,
	}
}

func (e *SetupStateChanged) EventName() string {
	return "SetupStateChanged"
}

// GlobalSetupStarted is published once per run before any setup is scheduled.
type GlobalSetupStarted struct {
	RunID       string
	Env         string
	Instance    string
	Experiences []string
	Setups      int
}

func (e *GlobalSetupStarted) EventName() string {
	return "GlobalSetupStarted"
}

// GlobalSetupFinished is published when a run settles. Error is nil on success.
type GlobalSetupFinished struct {
	RunID    string
	Duration time.Duration
	Skipped  bool
	Error    error
}

func (e *GlobalSetupFinished) EventName() string {
	return "GlobalSetupFinished"
}
