package setup

import (
	"context"
	"fmt"
	"io/fs"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/matspina/screen-play-wright/domain/environment"
	"github.com/matspina/screen-play-wright/domain/script"
	"github.com/matspina/screen-play-wright/domain/user"
	"github.com/matspina/screen-play-wright/infrastructure/browser"
)

// yamlFile is the YAML structure for setup definition files.
type yamlFile struct {
	Setups []yamlSetup `yaml:"setups"`
}

type yamlSetup struct {
	Experience       string `yaml:"experience"`
	Site             string `yaml:"site"`
	TestsPath        string `yaml:"testsPath"`
	User             string `yaml:"user,omitempty"`
	SignIn           string `yaml:"signIn"`
	Assertion        string `yaml:"assertion,omitempty"`
	StorageStateFile string `yaml:"storageStateFile,omitempty"`
	Browser          string `yaml:"browser,omitempty"`
	SkipOnCI         bool   `yaml:"skipOnCI,omitempty"`
	ForceHeadless    *bool  `yaml:"forceHeadless,omitempty"`
	CacheTTL         int    `yaml:"cacheTTL,omitempty"`
}

// Loader builds descriptors from YAML files, binding their scripts to the
// site URLs of the selected environment.
type Loader struct {
	registry  *Registry
	scripts   *script.Registry
	catalog   *environment.Catalog
	users     *user.Service
	selection environment.Selection
}

// NewLoader creates a loader that populates registry.
func NewLoader(registry *Registry, scripts *script.Registry, catalog *environment.Catalog, users *user.Service, sel environment.Selection) *Loader {
	return &Loader{
		registry:  registry,
		scripts:   scripts,
		catalog:   catalog,
		users:     users,
		selection: sel,
	}
}

// LoadFromFS loads every YAML file of the "setups" directory, in file name order.
func (l *Loader) LoadFromFS(ctx context.Context, fsys fs.FS) error {
	entries, err := fs.ReadDir(fsys, "setups")
	if err != nil {
		return fmt.Errorf("failed to read setups directory: %w", err)
	}

	for _, entry := range entries {
		ext := filepath.Ext(entry.Name())
		if entry.IsDir() || (ext != ".yaml" && ext != ".yml") {
			continue
		}

		if err := l.loadFile(ctx, fsys, "setups/"+entry.Name()); err != nil {
			return err
		}
	}

	return nil
}

func (l *Loader) loadFile(ctx context.Context, fsys fs.FS, path string) error {
	data, err := fs.ReadFile(fsys, path)
	if err != nil {
		return fmt.Errorf("failed to read setup file %s: %w", path, err)
	}

	var yf yamlFile
	if err := yaml.Unmarshal(data, &yf); err != nil {
		return fmt.Errorf("failed to parse setup file %s: %w", path, err)
	}

	for _, ys := range yf.Setups {
		d, err := l.convert(ctx, ys)
		if err != nil {
			return fmt.Errorf("invalid setup file %s: %w", path, err)
		}
		if err := l.registry.Register(d); err != nil {
			return fmt.Errorf("invalid setup file %s: %w", path, err)
		}
	}
	return nil
}

func (l *Loader) convert(ctx context.Context, ys yamlSetup) (*Descriptor, error) {
	label := ys.Experience + " > " + ys.Site
	sites := l.catalog.SessionSites(ys.Experience, l.selection)

	settings := Settings{
		ExperienceName:   ys.Experience,
		SiteName:         ys.Site,
		TestsPath:        ys.TestsPath,
		StorageStateFile: ys.StorageStateFile,
		Browser:          browser.Name(ys.Browser),
		SkipOnCI:         ys.SkipOnCI,
		ForceHeadless:    ys.ForceHeadless,
		CacheTTL:         ys.CacheTTL,
	}

	if ys.SignIn == "" {
		return nil, fmt.Errorf("%w: %s: signIn script is required", ErrInvalidDescriptor, label)
	}
	signIn, err := l.scripts.Lookup(ys.SignIn)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", label, err)
	}
	settings.SignIn = signIn.Bind(sites)

	if ys.Assertion != "" {
		assertion, err := l.scripts.Lookup(ys.Assertion)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", label, err)
		}
		if !assertion.IsAssertionOnly() {
			return nil, fmt.Errorf("%w: %s: assertion script %s performs actions", ErrInvalidDescriptor, label, ys.Assertion)
		}
		settings.Assertion = assertion.BindQuestion(sites)
	}

	if ys.User != "" {
		u, err := l.users.GetUser(ctx, ys.User)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", label, err)
		}
		settings.Actor = u.Actor()
	}

	return NewDescriptor(settings)
}
