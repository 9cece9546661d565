package setup

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"github.com/matspina/screen-play-wright/core/event"
	"github.com/matspina/screen-play-wright/core/eventbus"
	"github.com/matspina/screen-play-wright/core/state"
	domainsetup "github.com/matspina/screen-play-wright/domain/setup"
)

// Runner executes one descriptor. *Executor implements it.
type Runner interface {
	Run(ctx context.Context, d *domainsetup.Descriptor) (state.SetupState, error)
}

// SchedulerConfig holds configuration for the Scheduler.
type SchedulerConfig struct {
	Runner Runner

	// Workers bounds how many descriptors run at the same time
	Workers int

	// Env names the selected environment in warnings
	Env string

	// EventBus receives queue and tolerance events. Nil disables publishing.
	EventBus eventbus.EventBus

	Logger *slog.Logger
}

// Scheduler runs descriptors with at most Workers in flight. Descriptors
// start in order as slots free up.
type Scheduler struct {
	runner   Runner
	workers  int
	env      string
	eventBus eventbus.EventBus
	logger   *slog.Logger
}

// NewScheduler creates a new Scheduler.
func NewScheduler(cfg *SchedulerConfig) *Scheduler {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		runner:   cfg.Runner,
		workers:  max(cfg.Workers, 1),
		env:      cfg.Env,
		eventBus: cfg.EventBus,
		logger:   logger,
	}
}

// RunAll runs every descriptor once.
//
// A descriptor failing because its site is not configured for the
// environment is reported and dropped. Any other failure cancels the
// descriptors still in flight, prevents queued ones from starting and is
// returned. When no descriptor was fulfilled RunAll returns
// ErrNoSetupSucceeded; an empty list succeeds.
func (s *Scheduler) RunAll(ctx context.Context, descriptors []*domainsetup.Descriptor) error {
	if len(descriptors) == 0 {
		return nil
	}

	for _, d := range descriptors {
		s.publish(event.NewSetupQueued(d.Identity(), d.Label()))
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(min(s.workers, len(descriptors)))

	var fulfilled atomic.Bool
	for _, d := range descriptors {
		// Go blocks until a slot is free
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if gctx.Err() != nil {
				return nil
			}
			return s.runOne(gctx, d, &fulfilled)
		})
	}

	if err := g.Wait(); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if !fulfilled.Load() {
		return ErrNoSetupSucceeded
	}
	return nil
}

func (s *Scheduler) runOne(ctx context.Context, d *domainsetup.Descriptor, fulfilled *atomic.Bool) error {
	st, err := s.runner.Run(ctx, d)
	if err == nil {
		if st.IsFulfilled() {
			fulfilled.Store(true)
		}
		return nil
	}

	if IsAcceptableError(err) {
		s.logger.Warn("Site is not configured properly to run the global setup",
			"setup", d.Label(),
			"env", s.env,
			"error", err,
		)
		s.publish(event.NewSetupTolerated(d.Identity(), d.Label(), s.env, err))
		return nil
	}

	return fmt.Errorf("global setup %s failed: %w", d.Label(), err)
}

func (s *Scheduler) publish(ev event.Event) {
	if s.eventBus != nil {
		s.eventBus.Publish(ev)
	}
}
