package application

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"

	"github.com/matspina/screen-play-wright/domain/environment"
	domainscript "github.com/matspina/screen-play-wright/domain/script"
	domainsetup "github.com/matspina/screen-play-wright/domain/setup"
	"github.com/matspina/screen-play-wright/domain/user"
)

// SetupConfig is the loaded configuration of a run.
type SetupConfig struct {
	Catalog  *environment.Catalog
	Scripts  *domainscript.Registry
	Registry *domainsetup.Registry
}

// LoadOptions controls LoadSetupConfig.
type LoadOptions struct {
	// Users receives the users files and resolves setup users
	Users *user.Service

	// Lookup expands ${VAR} references in users files
	Lookup user.LookupFunc

	// Selection picks the site URLs scripts are bound to
	Selection environment.Selection

	Logger *slog.Logger
}

// LoadSetupConfig loads environments, users, scripts and setups from fsys.
// Setups are loaded last since they reference the other three.
func LoadSetupConfig(ctx context.Context, fsys fs.FS, opts LoadOptions) (*SetupConfig, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	catalog := environment.NewCatalog()
	if err := environment.NewLoader(catalog).LoadFromFS(fsys); err != nil {
		return nil, fmt.Errorf("failed to load environments: %w", err)
	}
	logger.Info("Environments loaded", "count", len(catalog.All()))

	if err := user.NewLoader(opts.Users, opts.Lookup).LoadFromFS(ctx, fsys); err != nil {
		return nil, fmt.Errorf("failed to load users: %w", err)
	}

	scripts := domainscript.NewRegistry()
	if err := domainscript.NewLoader(scripts).LoadFromFS(fsys); err != nil {
		return nil, fmt.Errorf("failed to load scripts: %w", err)
	}
	logger.Info("Scripts loaded", "count", scripts.Count())

	registry := domainsetup.NewRegistry()
	loader := domainsetup.NewLoader(registry, scripts, catalog, opts.Users, opts.Selection)
	if err := loader.LoadFromFS(ctx, fsys); err != nil {
		return nil, fmt.Errorf("failed to load setups: %w", err)
	}
	logger.Info("Setups loaded", "count", registry.Count())

	return &SetupConfig{Catalog: catalog, Scripts: scripts, Registry: registry}, nil
}
