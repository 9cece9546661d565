package eventbus

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/matspina/screen-play-wright/core/event"
)

// mockEvent is a simple event for testing.
type mockEvent struct {
	name string
}

func (e *mockEvent) EventName() string {
	return e.name
}

// mockSetupEvent is a setup event for testing.
type mockSetupEvent struct {
	name    string
	setupID string
}

func (e *mockSetupEvent) EventName() string {
	return e.name
}

func (e *mockSetupEvent) SetupID() string {
	return e.setupID
}

func (e *mockSetupEvent) Label() string {
	return "Demo > " + e.setupID
}

func TestEventBus_PublishSubscribe(t *testing.T) {
	bus := New(10)
	defer bus.Close()

	var received atomic.Int32
	var wg sync.WaitGroup
	wg.Add(1)

	bus.Subscribe(func(e event.Event) {
		received.Add(1)
		wg.Done()
	})

	bus.Publish(&mockEvent{name: "test"})

	// Wait for event to be delivered
	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		if received.Load() != 1 {
			t.Errorf("Expected 1 event, got %d", received.Load())
		}
	case <-time.After(time.Second):
		t.Error("Timeout waiting for event")
	}
}

func TestEventBus_SetupFilter(t *testing.T) {
	bus := New(10)
	defer bus.Close()

	var loginReceived atomic.Int32
	var adminReceived atomic.Int32
	var allReceived atomic.Int32
	var wg sync.WaitGroup
	wg.Add(2) // login subscriber + all subscriber

	// Subscribe to DemoLogin only
	bus.SubscribeSetup("DemoLogin", func(e event.Event) {
		loginReceived.Add(1)
		wg.Done()
	})

	// Subscribe to DemoAdmin only (should not receive)
	bus.SubscribeSetup("DemoAdmin", func(e event.Event) {
		adminReceived.Add(1)
	})

	// Subscribe to all events
	bus.Subscribe(func(e event.Event) {
		allReceived.Add(1)
		wg.Done()
	})

	// Publish event for DemoLogin
	bus.Publish(&mockSetupEvent{name: "test", setupID: "DemoLogin"})

	// Wait for events to be delivered
	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		if loginReceived.Load() != 1 {
			t.Errorf("login subscriber: expected 1, got %d", loginReceived.Load())
		}
		if adminReceived.Load() != 0 {
			t.Errorf("admin subscriber: expected 0, got %d", adminReceived.Load())
		}
		if allReceived.Load() != 1 {
			t.Errorf("all subscriber: expected 1, got %d", allReceived.Load())
		}
	case <-time.After(time.Second):
		t.Error("Timeout waiting for events")
	}
}

func TestEventBus_Unsubscribe(t *testing.T) {
	bus := New(10)
	defer bus.Close()

	var received atomic.Int32

	subID := bus.Subscribe(func(e event.Event) {
		received.Add(1)
	})

	// Unsubscribe
	bus.Unsubscribe(subID)

	// Publish event
	bus.Publish(&mockEvent{name: "test"})

	// Give some time for potential delivery
	time.Sleep(100 * time.Millisecond)

	if received.Load() != 0 {
		t.Errorf("Expected 0 events after unsubscribe, got %d", received.Load())
	}
}

func TestEventBus_Close(t *testing.T) {
	bus := New(10)

	var received atomic.Int32
	bus.Subscribe(func(e event.Event) {
		received.Add(1)
	})

	// Close the bus
	bus.Close()

	// Publish should be no-op after close
	bus.Publish(&mockEvent{name: "test"})

	// Give some time
	time.Sleep(100 * time.Millisecond)

	if received.Load() != 0 {
		t.Errorf("Expected 0 events after close, got %d", received.Load())
	}

	// Close again should not panic
	bus.Close()
}

func TestEventBus_HandlerPanic(t *testing.T) {
	bus := New(10)
	defer bus.Close()

	var received atomic.Int32
	var wg sync.WaitGroup
	wg.Add(1)

	// First handler panics
	bus.Subscribe(func(e event.Event) {
		panic("test panic")
	})

	// Second handler should still receive the event
	bus.Subscribe(func(e event.Event) {
		received.Add(1)
		wg.Done()
	})

	bus.Publish(&mockEvent{name: "test"})

	// Wait for event to be delivered
	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		if received.Load() != 1 {
			t.Errorf("Expected 1 event despite panic, got %d", received.Load())
		}
	case <-time.After(time.Second):
		t.Error("Timeout waiting for event")
	}
}

func TestEventBus_GlobalEventToSetupSubscriber(t *testing.T) {
	bus := New(10)
	defer bus.Close()

	var received atomic.Int32

	// Subscribe to DemoLogin only
	bus.SubscribeSetup("DemoLogin", func(e event.Event) {
		received.Add(1)
	})

	// Publish global event (should not be delivered to setup subscriber)
	bus.Publish(&mockEvent{name: "test"})

	// Give some time
	time.Sleep(100 * time.Millisecond)

	if received.Load() != 0 {
		t.Errorf("Setup subscriber should not receive global events, got %d", received.Load())
	}
}

func TestEventBus_CloseDeliversQueuedEvents(t *testing.T) {
	bus := New(10, WithBlockingPublish())

	var received []string
	var mu sync.Mutex
	bus.Subscribe(func(e event.Event) {
		mu.Lock()
		received = append(received, e.EventName())
		mu.Unlock()
	})

	for _, name := range []string{"a", "b", "c"} {
		bus.Publish(&mockEvent{name: name})
	}
	bus.Close()

	mu.Lock()
	defer mu.Unlock()
	if len(received) != 3 || received[0] != "a" || received[2] != "c" {
		t.Errorf("received = %v, want [a b c]", received)
	}
}

func TestEventBus_BlockingPublishNeverDrops(t *testing.T) {
	bus := New(1, WithBlockingPublish())

	var received atomic.Int32
	bus.Subscribe(func(e event.Event) {
		time.Sleep(time.Millisecond)
		received.Add(1)
	})

	const numEvents = 20
	for i := 0; i < numEvents; i++ {
		bus.Publish(&mockEvent{name: "test"})
	}
	bus.Close()

	if received.Load() != numEvents {
		t.Errorf("Expected %d events, got %d", numEvents, received.Load())
	}
}

func TestEventBus_SubscriptionOrder(t *testing.T) {
	bus := New(10)

	var order []int
	for i := 0; i < 3; i++ {
		i := i
		bus.Subscribe(func(e event.Event) {
			order = append(order, i)
		})
	}

	bus.Publish(&mockEvent{name: "test"})
	bus.Close()

	if len(order) != 3 || order[0] != 0 || order[1] != 1 || order[2] != 2 {
		t.Errorf("order = %v, want [0 1 2]", order)
	}
}

func TestEventBus_RoutesSetupEvents(t *testing.T) {
	bus := New(10, WithBlockingPublish())

	var demo, other []string
	bus.SubscribeSetup("DEMO SITESample Page Test", func(e event.Event) {
		demo = append(demo, e.EventName())
	})
	bus.SubscribeSetup("OTHER SITEPortal", func(e event.Event) {
		other = append(other, e.EventName())
	})

	bus.Publish(event.NewSetupStarted("DEMO SITESample Page Test", "DEMO SITE > Sample Page Test", 1))
	bus.Publish(event.NewSetupTolerated("DEMO SITESample Page Test", "DEMO SITE > Sample Page Test", "QA1", errors.New("Invalid URL")))
	bus.Publish(event.NewSetupCached("OTHER SITEPortal", "OTHER SITE > Portal"))
	bus.Publish(&event.GlobalSetupFinished{RunID: "r1"})
	bus.Close()

	if len(demo) != 2 || demo[0] != "SetupStarted" || demo[1] != "SetupTolerated" {
		t.Errorf("demo subscriber received %v, want [SetupStarted SetupTolerated]", demo)
	}
	if len(other) != 1 || other[0] != "SetupCached" {
		t.Errorf("other subscriber received %v, want [SetupCached]", other)
	}
}
