package browser

import (
	"context"
	"regexp"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/cdproto/page"
)

// NetworkObserver counts in-flight requests of a page so that navigation can
// wait for the network to settle. A request keeps counting for the idle delay
// after it finishes, and a main frame navigation resets the set.
type NetworkObserver struct {
	clock   clock.Clock
	delay   time.Duration
	ignored []*regexp.Regexp

	mu     sync.Mutex
	active map[string]string
	timers []*clock.Timer
	notify chan struct{}
}

// NewNetworkObserver creates an observer using the delay and ignore patterns of cfg.
func NewNetworkObserver(cfg *DriverConfig, clk clock.Clock) *NetworkObserver {
	if cfg == nil {
		cfg = DefaultDriverConfig()
	}
	if clk == nil {
		clk = clock.New()
	}

	o := &NetworkObserver{
		clock:  clk,
		delay:  cfg.IdleDelay,
		active: make(map[string]string),
		notify: make(chan struct{}),
	}
	for _, p := range cfg.IgnoredURLPatterns {
		if re, err := regexp.Compile(p); err == nil {
			o.ignored = append(o.ignored, re)
		}
	}
	return o
}

// Handle consumes a CDP event. It is meant to be passed to chromedp.ListenTarget.
func (o *NetworkObserver) Handle(ev interface{}) {
	switch e := ev.(type) {
	case *network.EventRequestWillBeSent:
		if e.Request != nil {
			o.RequestStarted(string(e.RequestID), e.Request.URL)
		}
	case *network.EventLoadingFinished:
		o.RequestDone(string(e.RequestID))
	case *network.EventLoadingFailed:
		o.RequestDone(string(e.RequestID))
	case *page.EventFrameNavigated:
		if e.Frame != nil && e.Frame.ParentID == "" {
			o.MainFrameNavigated(e.Frame.URL)
		}
	}
}

// RequestStarted marks a request as active unless its URL is ignored.
func (o *NetworkObserver) RequestStarted(id, url string) {
	if o.shouldIgnore(url) {
		return
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	o.active[id] = url
	o.changed()
}

// RequestDone releases a request after the idle delay.
func (o *NetworkObserver) RequestDone(id string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if _, ok := o.active[id]; !ok {
		return
	}
	o.timers = append(o.timers, o.clock.AfterFunc(o.delay, func() {
		o.remove(id)
	}))
}

// MainFrameNavigated drops everything tracked so far and counts the
// navigation itself as a request for the idle delay.
func (o *NetworkObserver) MainFrameNavigated(url string) {
	key := "frame navigation: " + url

	o.mu.Lock()
	defer o.mu.Unlock()
	o.stopTimers()
	o.active = map[string]string{key: url}
	o.changed()
	o.timers = append(o.timers, o.clock.AfterFunc(o.delay, func() {
		o.remove(key)
	}))
}

// Active returns the number of requests still counted as in flight.
func (o *NetworkObserver) Active() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.active)
}

// WaitIdle blocks until no request is in flight or ctx is done.
func (o *NetworkObserver) WaitIdle(ctx context.Context) error {
	for {
		o.mu.Lock()
		n := len(o.active)
		ch := o.notify
		o.mu.Unlock()

		if n == 0 {
			return nil
		}

		select {
		case <-ch:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// Close stops pending timers.
func (o *NetworkObserver) Close() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.stopTimers()
}

func (o *NetworkObserver) remove(id string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if _, ok := o.active[id]; !ok {
		return
	}
	delete(o.active, id)
	o.changed()
}

// changed wakes up waiters. Must be called with o.mu held.
func (o *NetworkObserver) changed() {
	close(o.notify)
	o.notify = make(chan struct{})
}

// stopTimers must be called with o.mu held.
func (o *NetworkObserver) stopTimers() {
	for _, t := range o.timers {
		t.Stop()
	}
	o.timers = nil
}

func (o *NetworkObserver) shouldIgnore(url string) bool {
	for _, re := range o.ignored {
		if re.MatchString(url) {
			return true
		}
	}
	return false
}
