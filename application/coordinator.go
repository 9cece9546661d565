// Package application provides the application layer for orchestrating
// global setup runs.
package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/google/uuid"
	"github.com/samber/lo"
	"github.com/spf13/afero"

	"github.com/matspina/screen-play-wright/application/discovery"
	"github.com/matspina/screen-play-wright/application/setup"
	"github.com/matspina/screen-play-wright/core/command"
	"github.com/matspina/screen-play-wright/core/event"
	"github.com/matspina/screen-play-wright/core/eventbus"
	"github.com/matspina/screen-play-wright/domain/environment"
	domainsetup "github.com/matspina/screen-play-wright/domain/setup"
	"github.com/matspina/screen-play-wright/infrastructure/logging"
)

// ErrSetupNotFound is returned for a setup identity that is not registered.
var ErrSetupNotFound = errors.New("setup not found")

// Coordinator handles commands against the registered setups.
type Coordinator struct {
	registry  *domainsetup.Registry
	catalog   *environment.Catalog
	selection environment.Selection
	runner    setup.Runner
	cache     domainsetup.CacheStore
	fs        afero.Fs
	workers   int
	skipState bool

	eventBus eventbus.EventBus
	clock    clock.Clock
	logger   *slog.Logger
}

// CoordinatorConfig holds configuration for the Coordinator.
type CoordinatorConfig struct {
	Registry  *domainsetup.Registry
	Catalog   *environment.Catalog
	Selection environment.Selection

	// Runner executes one setup, normally a *setup.Executor
	Runner setup.Runner

	// Cache is read for status reports
	Cache domainsetup.CacheStore

	// Fs holds the tests directory. Nil uses the OS filesystem.
	Fs afero.Fs

	// Workers bounds the setups running at the same time
	Workers int

	// SkipState turns global setup runs into no-ops
	SkipState bool

	EventBus eventbus.EventBus
	Clock    clock.Clock
	Logger   *slog.Logger
}

// NewCoordinator creates a new coordinator.
func NewCoordinator(cfg *CoordinatorConfig) *Coordinator {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Clock == nil {
		cfg.Clock = clock.New()
	}
	if cfg.Fs == nil {
		cfg.Fs = afero.NewOsFs()
	}
	if cfg.Catalog == nil {
		cfg.Catalog = environment.NewCatalog()
	}

	return &Coordinator{
		registry:  cfg.Registry,
		catalog:   cfg.Catalog,
		selection: cfg.Selection,
		runner:    cfg.Runner,
		cache:     cfg.Cache,
		fs:        cfg.Fs,
		workers:   max(cfg.Workers, 1),
		skipState: cfg.SkipState,
		eventBus:  cfg.EventBus,
		clock:     cfg.Clock,
		logger:    cfg.Logger,
	}
}

// Dispatch runs a command that changes state. ListSetups and
// ShowCacheStatus return data and have their own methods.
func (c *Coordinator) Dispatch(ctx context.Context, cmd command.Command) error {
	c.logger.Debug("Dispatching command", "command", cmd.CommandName())

	switch cmd := cmd.(type) {
	case *command.RunGlobalSetup:
		return c.handleRunGlobalSetup(ctx, cmd)
	case *command.RunSetup:
		return c.handleRunSetup(ctx, cmd)
	case *command.ListSetups, *command.ShowCacheStatus:
		return fmt.Errorf("command %s is a query", cmd.CommandName())
	default:
		return fmt.Errorf("unknown command type: %T", cmd)
	}
}

func (c *Coordinator) handleRunGlobalSetup(ctx context.Context, cmd *command.RunGlobalSetup) error {
	runID := uuid.NewString()
	logger := c.logger.With("run_id", runID)
	ctx = logging.With(ctx, logger)

	if c.skipState {
		logger.Info("Skipping global setup: login states are disabled")
		c.publish(&event.GlobalSetupFinished{RunID: runID, Skipped: true})
		return nil
	}

	needed, experiences, err := c.neededSetups(ctx, cmd.TestsDir)
	if err != nil {
		return err
	}

	logger.Info("Starting global setup",
		"env", c.selection.String(),
		"experiences", experiences,
		"setups", len(needed),
	)
	c.publish(&event.GlobalSetupStarted{
		RunID:       runID,
		Env:         c.selection.Env,
		Instance:    c.selection.Instance,
		Experiences: experiences,
		Setups:      len(needed),
	})

	start := c.clock.Now()
	scheduler := setup.NewScheduler(&setup.SchedulerConfig{
		Runner:   c.runner,
		Workers:  c.workers,
		Env:      c.selection.String(),
		EventBus: c.eventBus,
		Logger:   logger,
	})
	err = scheduler.RunAll(ctx, needed)
	elapsed := c.clock.Since(start)

	c.publish(&event.GlobalSetupFinished{RunID: runID, Duration: elapsed, Error: err})
	if err != nil {
		logger.Error("Global setup failed", "duration", elapsed, "error", err)
		return err
	}
	logger.Info("Global setup finished", "duration", elapsed)
	return nil
}

// neededSetups returns the setups the tests under testsDir need, with the
// experiences those tests belong to. An empty testsDir needs every setup.
func (c *Coordinator) neededSetups(ctx context.Context, testsDir string) ([]*domainsetup.Descriptor, []string, error) {
	all := c.registry.All()
	if testsDir == "" {
		experiences := lo.Uniq(lo.Map(all, func(d *domainsetup.Descriptor, _ int) string {
			return d.ExperienceName()
		}))
		return all, experiences, nil
	}

	d := discovery.New(&discovery.Config{Fs: c.fs, Root: testsDir, Logger: c.logger})
	result, err := d.Discover(ctx, c.catalog, all)
	if err != nil {
		return nil, nil, err
	}
	return result.Needed, result.Experiences, nil
}

func (c *Coordinator) handleRunSetup(ctx context.Context, cmd *command.RunSetup) error {
	d := c.registry.Get(cmd.SetupID())
	if d == nil {
		return fmt.Errorf("%w: %s", ErrSetupNotFound, cmd.SetupID())
	}

	st, err := c.runner.Run(ctx, d)
	if setup.IsAcceptableError(err) {
		c.publish(event.NewSetupTolerated(d.Identity(), d.Label(), c.selection.String(), err))
	}
	if err != nil {
		return err
	}
	c.logger.Info("Setup settled", "setup", d.Label(), "state", st.String())
	return nil
}

// SetupSummary describes one registered setup.
type SetupSummary struct {
	Identity  string
	Label     string
	TestsPath string
	CacheTTL  time.Duration
	Needed    bool
}

// ListSetups returns every registered setup in registration order and
// whether the tests under cmd.TestsDir need it.
func (c *Coordinator) ListSetups(ctx context.Context, cmd *command.ListSetups) ([]SetupSummary, error) {
	needed, _, err := c.neededSetups(ctx, cmd.TestsDir)
	if err != nil {
		return nil, err
	}

	return lo.Map(c.registry.All(), func(d *domainsetup.Descriptor, _ int) SetupSummary {
		return SetupSummary{
			Identity:  d.Identity(),
			Label:     d.Label(),
			TestsPath: d.TestsPath(),
			CacheTTL:  d.CacheDuration(),
			Needed:    lo.Contains(needed, d),
		}
	}), nil
}

// CacheEntry is the TTL state of one setup in the selected environment.
type CacheEntry struct {
	Identity      string
	Label         string
	TTL           time.Duration
	LastExecution time.Time
	Found         bool
	Expired       bool
}

// CacheStatus reports the TTL entry of every registered setup.
func (c *Coordinator) CacheStatus(ctx context.Context, _ *command.ShowCacheStatus) ([]CacheEntry, error) {
	now := c.clock.Now()

	entries := make([]CacheEntry, 0, c.registry.Count())
	for _, d := range c.registry.All() {
		last, found, err := c.cache.LastExecution(ctx, d.Identity(), c.selection.Env)
		if err != nil {
			return nil, fmt.Errorf("failed to read ttl of %s: %w", d.Label(), err)
		}
		entries = append(entries, CacheEntry{
			Identity:      d.Identity(),
			Label:         d.Label(),
			TTL:           d.CacheDuration(),
			LastExecution: last,
			Found:         found,
			Expired:       domainsetup.Expired(last, found, now, d.CacheDuration()),
		})
	}
	return entries, nil
}

func (c *Coordinator) publish(e event.Event) {
	if c.eventBus != nil {
		c.eventBus.Publish(e)
	}
}
