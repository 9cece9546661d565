package eventbus

import (
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/matspina/screen-play-wright/core/event"
)

// subscription represents a single event subscription.
type subscription struct {
	id      string
	handler EventHandler
	setupID string // Empty string means subscribe to all events
}

// Option configures a bus created by New.
type Option func(*channelEventBus)

// WithLogger sets the logger used to report dropped events and handler panics.
func WithLogger(logger *slog.Logger) Option {
	return func(b *channelEventBus) {
		if logger != nil {
			b.logger = logger
		}
	}
}

// WithBlockingPublish makes Publish wait for queue space instead of dropping
// the event. Status reporting needs every event.
func WithBlockingPublish() Option {
	return func(b *channelEventBus) {
		b.blocking = true
	}
}

// channelEventBus is a channel-based implementation of EventBus.
type channelEventBus struct {
	eventChan     chan event.Event
	subscriptions map[string]*subscription
	order         []string
	mu            sync.RWMutex
	logger        *slog.Logger
	blocking      bool

	// pubMu guards closed and the send side of eventChan
	pubMu  sync.RWMutex
	closed bool
	wg     sync.WaitGroup
}

// New creates a new EventBus with the specified buffer size.
func New(bufferSize int, opts ...Option) EventBus {
	if bufferSize <= 0 {
		bufferSize = 100
	}

	bus := &channelEventBus{
		eventChan:     make(chan event.Event, bufferSize),
		subscriptions: make(map[string]*subscription),
		logger:        slog.Default(),
	}
	for _, opt := range opts {
		opt(bus)
	}

	bus.wg.Add(1)
	go bus.dispatch()

	return bus
}

// Publish publishes an event to all subscribers.
func (b *channelEventBus) Publish(e event.Event) {
	b.pubMu.RLock()
	defer b.pubMu.RUnlock()

	if b.closed {
		return
	}

	if b.blocking {
		b.eventChan <- e
		return
	}

	// Non-blocking send with select to avoid blocking if buffer is full
	select {
	case b.eventChan <- e:
	default:
		b.logger.Warn("Event bus full, event dropped", "event", e.EventName())
	}
}

// Subscribe subscribes to all events.
func (b *channelEventBus) Subscribe(handler EventHandler) string {
	return b.subscribe("", handler)
}

// SubscribeSetup subscribes to events from a specific setup.
func (b *channelEventBus) SubscribeSetup(setupID string, handler EventHandler) string {
	return b.subscribe(setupID, handler)
}

func (b *channelEventBus) subscribe(setupID string, handler EventHandler) string {
	id := uuid.NewString()

	b.mu.Lock()
	b.subscriptions[id] = &subscription{
		id:      id,
		handler: handler,
		setupID: setupID,
	}
	b.order = append(b.order, id)
	b.mu.Unlock()

	return id
}

// Unsubscribe removes a subscription by its ID.
func (b *channelEventBus) Unsubscribe(subscriptionID string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, ok := b.subscriptions[subscriptionID]; !ok {
		return
	}
	delete(b.subscriptions, subscriptionID)
	for i, id := range b.order {
		if id == subscriptionID {
			b.order = append(b.order[:i], b.order[i+1:]...)
			break
		}
	}
}

// Close shuts down the event bus.
func (b *channelEventBus) Close() {
	b.pubMu.Lock()
	if b.closed {
		b.pubMu.Unlock()
		return // Already closed
	}
	b.closed = true
	close(b.eventChan)
	b.pubMu.Unlock()

	b.wg.Wait()
}

// dispatch is the main event dispatch loop.
func (b *channelEventBus) dispatch() {
	defer b.wg.Done()

	for e := range b.eventChan {
		b.deliverEvent(e)
	}
}

// deliverEvent delivers an event to all matching subscribers in subscription order.
func (b *channelEventBus) deliverEvent(e event.Event) {
	b.mu.RLock()
	// Copy subscriptions to avoid holding lock during handler execution
	subs := make([]*subscription, 0, len(b.order))
	for _, id := range b.order {
		subs = append(subs, b.subscriptions[id])
	}
	b.mu.RUnlock()

	// Get setup ID if this is a setup event
	var eventSetupID string
	if se, ok := e.(event.SetupEvent); ok {
		eventSetupID = se.SetupID()
	}

	for _, sub := range subs {
		// Filter by setup ID if subscription is setup-specific
		if sub.setupID != "" {
			if eventSetupID == "" || sub.setupID != eventSetupID {
				continue
			}
		}

		// Call handler (catch panics to prevent one bad handler from affecting others)
		func() {
			defer func() {
				if r := recover(); r != nil {
					b.logger.Error("Event handler panicked", "event", e.EventName(), "panic", r)
				}
			}()
			sub.handler(e)
		}()
	}
}
