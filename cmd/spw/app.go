package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"

	"github.com/benbjohnson/clock"

	"github.com/matspina/screen-play-wright/application"
	"github.com/matspina/screen-play-wright/application/setup"
	"github.com/matspina/screen-play-wright/core/eventbus"
	"github.com/matspina/screen-play-wright/domain/environment"
	domainsetup "github.com/matspina/screen-play-wright/domain/setup"
	"github.com/matspina/screen-play-wright/domain/user"
	"github.com/matspina/screen-play-wright/infrastructure/browser"
	"github.com/matspina/screen-play-wright/infrastructure/config"
	"github.com/matspina/screen-play-wright/infrastructure/repository"
	"github.com/matspina/screen-play-wright/presentation"
	"github.com/matspina/screen-play-wright/resources"
)

// app is the wired object graph of one command.
type app struct {
	coordinator *application.Coordinator
	reporter    *presentation.Reporter
	clock       clock.Clock

	closers []func()
}

// newApp wires the application from the loaded configuration.
func newApp(ctx context.Context, gs *globalState) (*app, error) {
	cfg, logger := gs.cfg, gs.logger
	a := &app{clock: clock.New()}

	sel, err := environment.ParseSelection(cfg.Env)
	if err != nil {
		return nil, err
	}

	// Repositories
	var (
		cache    domainsetup.CacheStore
		userRepo user.Repository
	)
	switch cfg.CacheBackend {
	case config.CacheBackendMongo:
		mongoDB, err := repository.NewMongoDB(ctx, &repository.MongoDBConfig{
			URI:            cfg.MongoURI,
			Database:       cfg.MongoDatabase,
			ConnectTimeout: repository.DefaultMongoDBConfig().ConnectTimeout,
			PingTimeout:    repository.DefaultMongoDBConfig().PingTimeout,
		}, logger)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, func() {
			if err := mongoDB.Close(context.Background()); err != nil {
				logger.Warn("Failed to close MongoDB", "error", err)
			}
		})
		if err := mongoDB.EnsureIndexes(ctx); err != nil {
			a.Close()
			return nil, err
		}
		cache = repository.NewMongoTTLRepository(mongoDB, a.clock, logger)
		userRepo = repository.NewMongoUserRepository(mongoDB, logger)
	default:
		cache = repository.NewFileTTLRepository(&repository.FileTTLConfig{
			Path:   cfg.TTLFile,
			Clock:  a.clock,
			Logger: logger,
		})
		userRepo = repository.NewMemoryUserRepository()
	}

	// Configuration files
	loaded, err := application.LoadSetupConfig(ctx, configFS(cfg.ConfigDir, logger), application.LoadOptions{
		Users:     user.NewService(userRepo),
		Lookup:    user.LookupFunc(cfg.Lookup),
		Selection: sel,
		Logger:    logger,
	})
	if err != nil {
		a.Close()
		return nil, err
	}

	// Browser
	driverCfg := browser.DefaultDriverConfig()
	driverCfg.Docker = cfg.Docker
	// Playwright starts its driver on first launch, so chromedp runs only
	// pay for it when a descriptor asks for webkit.
	pw := browser.NewPlaywrightLauncher(driverCfg)
	a.closers = append(a.closers, func() {
		if err := pw.Stop(); err != nil {
			logger.Warn("Failed to stop playwright", "error", err)
		}
	})
	var launcher browser.Launcher = pw
	if cfg.Engine != config.EnginePlaywright {
		launcher = browser.NewRouter(browser.NewChromeDPLauncher(driverCfg)).Route(browser.WebKit, pw)
	}

	// Event bus and console output
	eventBus := eventbus.New(256, eventbus.WithBlockingPublish(), eventbus.WithLogger(logger))
	a.reporter = presentation.NewReporter(&presentation.ReporterConfig{
		EventBus: eventBus,
		Logger:   logger,
	})
	a.closers = append(a.closers, func() {
		eventBus.Close()
		a.reporter.Close()
	})

	executor := setup.NewExecutor(&setup.ExecutorConfig{
		Launcher:     launcher,
		Cache:        cache,
		EventBus:     eventBus,
		Env:          sel.Env,
		CI:           cfg.InCI(),
		Debug:        cfg.Debug,
		Headless:     cfg.IsHeadless(),
		SlowNetwork:  cfg.SlowNetwork,
		Retries:      cfg.SetupRetries,
		ArtifactsDir: cfg.ArtifactsDir,
		Clock:        a.clock,
		Logger:       logger,
	})

	a.coordinator = application.NewCoordinator(&application.CoordinatorConfig{
		Registry:  loaded.Registry,
		Catalog:   loaded.Catalog,
		Selection: sel,
		Runner:    executor,
		Cache:     cache,
		Workers:   cfg.Workers,
		SkipState: cfg.SkipState,
		EventBus:  eventBus,
		Clock:     a.clock,
		Logger:    logger,
	})
	return a, nil
}

// Close releases resources in reverse order of acquisition. The event bus
// is drained before returning.
func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}

// configFS returns dir when it exists, the bundled configuration otherwise.
func configFS(dir string, logger *slog.Logger) fs.FS {
	if dir != "" {
		info, err := os.Stat(dir)
		switch {
		case err == nil && info.IsDir():
			logger.Debug("Using configuration directory", "dir", dir)
			return os.DirFS(dir)
		case err != nil && !errors.Is(err, fs.ErrNotExist):
			logger.Warn("Cannot read configuration directory", "dir", dir, "error", err)
		}
	}
	logger.Debug("Using bundled configuration")
	return resources.ConfigFS()
}

func withApp(ctx context.Context, gs *globalState, fn func(*app) error) error {
	a, err := newApp(ctx, gs)
	if err != nil {
		return fmt.Errorf("failed to initialize: %w", err)
	}
	defer a.Close()
	return fn(a)
}
