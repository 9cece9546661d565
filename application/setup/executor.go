// Package setup runs global setup descriptors: the executor performs one
// descriptor's login in a fresh browser context, the scheduler runs many of
// them with bounded parallelism.
package setup

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/cenkalti/backoff/v4"

	"github.com/matspina/screen-play-wright/core/event"
	"github.com/matspina/screen-play-wright/core/eventbus"
	"github.com/matspina/screen-play-wright/core/screenplay"
	"github.com/matspina/screen-play-wright/core/state"
	domainsetup "github.com/matspina/screen-play-wright/domain/setup"
	"github.com/matspina/screen-play-wright/infrastructure/browser"
	"github.com/matspina/screen-play-wright/infrastructure/logging"
)

// ExecutorConfig holds configuration for the Executor.
type ExecutorConfig struct {
	// Launcher starts a browser context per attempt
	Launcher browser.Launcher

	// Cache records successful executions
	Cache domainsetup.CacheStore

	// EventBus receives lifecycle events. Nil disables publishing.
	EventBus eventbus.EventBus

	// Env is the environment TTL entries are recorded under
	Env string

	// CI marks a run on a CI server
	CI bool

	// Debug disables retries
	Debug bool

	// Headless is the default headless mode of descriptors without an override
	Headless bool

	// SlowNetwork throttles the browser connection
	SlowNetwork bool

	// Retries is the retry budget of a headless, non-debug run
	Retries int

	// ArtifactsDir receives failure screenshots. Empty disables them.
	ArtifactsDir string

	Clock  clock.Clock
	Logger *slog.Logger
}

// DefaultExecutorConfig returns the defaults of a local headless run.
func DefaultExecutorConfig() *ExecutorConfig {
	return &ExecutorConfig{
		Env:      "qa",
		Headless: true,
		Retries:  2,
	}
}

// Executor runs a single descriptor.
type Executor struct {
	launcher    browser.Launcher
	cache       domainsetup.CacheStore
	eventBus    eventbus.EventBus
	env         string
	ci          bool
	debug       bool
	headless    bool
	slowNetwork bool
	retries     int
	capture     *ScreenCapture
	clock       clock.Clock
	logger      *slog.Logger
}

// NewExecutor creates a new Executor. Launcher and Cache are required.
func NewExecutor(cfg *ExecutorConfig) *Executor {
	if cfg == nil {
		cfg = DefaultExecutorConfig()
	}
	clk := cfg.Clock
	if clk == nil {
		clk = clock.New()
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Executor{
		launcher:    cfg.Launcher,
		cache:       cfg.Cache,
		eventBus:    cfg.EventBus,
		env:         cfg.Env,
		ci:          cfg.CI,
		debug:       cfg.Debug,
		headless:    cfg.Headless,
		slowNetwork: cfg.SlowNetwork,
		retries:     max(cfg.Retries, 0),
		capture:     NewScreenCapture(cfg.ArtifactsDir, clk, logger),
		clock:       clk,
		logger:      logger,
	}
}

// Env returns the environment the executor records TTL entries under.
func (e *Executor) Env() string {
	return e.env
}

// Run executes d and returns the state it settled in. Skipped and cached
// setups return without launching a browser. A setup whose site is not
// configured for the environment is retried like any other failure and,
// once the budget is spent, returns a *ToleratedError. Log lines go to
// the logger carried by ctx when there is one.
func (e *Executor) Run(ctx context.Context, d *domainsetup.Descriptor) (state.SetupState, error) {
	run := &execution{
		Executor: e,
		d:        d,
		slot:     state.NewSlot(),
		logger:   logging.From(ctx, e.logger).With("setup", d.Label()),
	}
	return run.execute(ctx)
}

// RetriesFor returns the retry budget of d: none in debug mode or when the
// browser is visible.
func (e *Executor) RetriesFor(d *domainsetup.Descriptor) int {
	if e.debug || !d.Headless(e.headless) {
		return 0
	}
	return e.retries
}

func (e *Executor) skipReason(d *domainsetup.Descriptor) (event.SkipReason, bool) {
	if !e.ci {
		return "", false
	}
	if d.SkipOnCI() {
		return event.SkipReasonOnCI, true
	}
	if d.ForcesHeaded() {
		return event.SkipReasonHeadedOnCI, true
	}
	return "", false
}

func (e *Executor) publish(ev event.Event) {
	if e.eventBus != nil {
		e.eventBus.Publish(ev)
	}
}

// execution is one Run of one descriptor.
type execution struct {
	*Executor
	d       *domainsetup.Descriptor
	slot    *state.Slot
	logger  *slog.Logger
	attempt int
}

func (x *execution) execute(ctx context.Context) (state.SetupState, error) {
	id, label := x.d.Identity(), x.d.Label()
	x.transition(state.StateRunning)

	if reason, skip := x.skipReason(x.d); skip {
		x.logger.Warn("Skipping global setup on CI", "reason", reason)
		x.transition(state.StateSkipped)
		x.publish(event.NewSetupSkipped(id, label, reason))
		return state.StateSkipped, nil
	}

	expired, err := x.cache.IsExpired(ctx, id, x.env, x.d.CacheDuration())
	if err != nil {
		return x.fail(fmt.Errorf("failed to check ttl of %s: %w", label, err))
	}
	if !expired {
		x.logger.Info("Using cached global setup state", "ttl_minutes", x.d.CacheTTL())
		x.transition(state.StateCached)
		x.publish(event.NewSetupCached(id, label))
		return state.StateCached, nil
	}

	retries := x.RetriesFor(x.d)
	start := x.clock.Now()

	op := func() error {
		x.attempt++
		if x.attempt > 1 {
			x.transition(state.StateRunning)
		}
		x.publish(event.NewSetupStarted(id, label, x.attempt))

		err := x.runAttempt(ctx)
		if err == nil {
			return nil
		}
		if ctx.Err() != nil || errors.Is(err, browser.ErrUnsupportedBrowser) {
			return backoff.Permanent(err)
		}
		return err
	}

	notify := func(err error, _ time.Duration) {
		x.logger.Warn(fmt.Sprintf("Retrying %d of %d", x.attempt, retries), "error", err)
		x.transition(state.StateRetrying)
		x.publish(event.NewSetupRetrying(id, label, x.attempt, retries, err))
	}

	policy := backoff.WithContext(backoff.WithMaxRetries(&backoff.ZeroBackOff{}, uint64(retries)), ctx)
	err = backoff.RetryNotify(op, policy, notify)

	switch {
	case err == nil:
		elapsed := x.clock.Since(start)
		x.logger.Info("Login state saved successfully", "attempts", x.attempt, "duration", elapsed)
		x.transition(state.StateSucceeded)
		x.publish(event.NewSetupSucceeded(id, label, x.d.StorageStateFile(), elapsed))
		return state.StateSucceeded, nil
	case ctx.Err() == nil && IsAcceptableError(err):
		x.logger.Warn("Site is not configured for the environment", "env", x.env, "attempts", x.attempt, "error", err)
		x.transition(state.StateTolerated)
		return state.StateTolerated, &ToleratedError{Identity: id, Label: label, Env: x.env, Err: err}
	default:
		return x.fail(err)
	}
}

func (x *execution) fail(err error) (state.SetupState, error) {
	x.logger.Error("Global setup failed", "attempts", x.attempt, "error", err)
	x.transition(state.StateFailed)
	x.publish(event.NewSetupFailed(x.d.Identity(), x.d.Label(), err))
	return state.StateFailed, err
}

// runAttempt performs one login in a fresh browser context, which is always
// closed before returning.
func (x *execution) runAttempt(ctx context.Context) (err error) {
	bctx, err := x.launcher.LaunchPersistentContext(ctx, browser.LaunchOptions{
		Browser:     x.d.Browser(),
		Headless:    x.d.Headless(x.headless),
		SlowNetwork: x.slowNetwork,
	})
	if err != nil {
		return fmt.Errorf("failed to launch %s: %w", x.d.Browser(), err)
	}
	defer func() {
		if cerr := bctx.Close(); cerr != nil {
			x.logger.Warn("Failed to close browser context", "error", cerr)
		}
	}()

	pages := bctx.Pages()
	if len(pages) == 0 {
		return fmt.Errorf("browser context of %s has no page", x.d.Label())
	}
	page := pages[0]

	defer func() {
		if err != nil && x.capture.Enabled() && !IsAcceptableError(err) {
			x.saveScreenshot(ctx, page)
		}
	}()

	actor := x.d.NewActor().Can(screenplay.BrowseTheWebWith(page))
	if err := actor.AttemptsTo(ctx, x.d.SignIn()); err != nil {
		return err
	}
	if q := x.d.Assertion(); q != nil {
		if err := actor.Asks(ctx, q); err != nil {
			return fmt.Errorf("sign in assertion failed: %w", err)
		}
	}

	if path := x.d.StorageStateFile(); path != "" {
		if err := bctx.StorageState(ctx, path); err != nil {
			return err
		}
	}

	if err := x.cache.RecordExecution(ctx, x.d.Identity(), x.env); err != nil {
		return fmt.Errorf("failed to record setup execution: %w", err)
	}
	return nil
}

func (x *execution) saveScreenshot(ctx context.Context, page browser.Page) {
	path, err := x.capture.CaptureAndSave(ctx, page, x.d.Identity(), x.attempt)
	if err != nil {
		x.logger.Warn("Failed to capture failure screenshot", "error", err)
		return
	}
	x.publish(event.NewArtifactSaved(x.d.Identity(), x.d.Label(), path))
}

func (x *execution) transition(target state.SetupState) {
	old, err := x.slot.Transition(target)
	if err != nil {
		x.logger.Error("Invalid setup state transition", "error", err)
		return
	}
	x.publish(event.NewSetupStateChanged(x.d.Identity(), x.d.Label(), old, target))
}
