// Package eventbus provides the event bus for publishing and subscribing to events.
package eventbus

import (
	"github.com/matspina/screen-play-wright/core/event"
)

// EventBus is the interface for the event bus.
type EventBus interface {
	// Publish publishes an event to all subscribers.
	// Events are queued for async dispatch. Whether a full queue drops the
	// event or blocks the publisher depends on the bus options.
	Publish(e event.Event)

	// Subscribe subscribes to all events.
	// Returns a subscription ID that can be used to unsubscribe.
	Subscribe(handler EventHandler) string

	// SubscribeSetup subscribes to events from a specific setup.
	// Only events implementing SetupEvent with matching SetupID will be delivered.
	// Returns a subscription ID that can be used to unsubscribe.
	SubscribeSetup(setupID string, handler EventHandler) string

	// Unsubscribe removes a subscription by its ID.
	Unsubscribe(subscriptionID string)

	// Close delivers queued events, then shuts down the event bus.
	// After Close is called, Publish will be a no-op.
	Close()
}

// EventHandler is a function that handles an event.
type EventHandler func(e event.Event)
