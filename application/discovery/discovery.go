// Package discovery finds the test files of a run and selects the setup
// descriptors they need.
package discovery

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/samber/lo"
	"github.com/spf13/afero"

	"github.com/matspina/screen-play-wright/domain/environment"
	domainsetup "github.com/matspina/screen-play-wright/domain/setup"
)

// ErrTestsDirNotFound is returned when the tests directory does not exist.
var ErrTestsDirNotFound = errors.New("tests directory not found")

var (
	// skipPattern marks a whole test file as skipped or fixme
	skipPattern = regexp.MustCompile(`\btest\.describe\.(skip|fixme)\s*\(`)

	storageStatePattern = regexp.MustCompile(`\bstorageState\b`)
)

// Config holds configuration for the Discoverer.
type Config struct {
	// Fs is the filesystem to scan. Nil uses the OS filesystem.
	Fs afero.Fs

	// Root is the tests directory
	Root string

	// Patterns are the base name globs of test files
	Patterns []string

	Logger *slog.Logger
}

// DefaultConfig returns the conventional tests layout.
func DefaultConfig() *Config {
	return &Config{
		Root:     "tests",
		Patterns: []string{"*.spec.ts", "*.test.ts", "*.spec.js", "*.test.js"},
	}
}

// TestFile is one discovered test file.
type TestFile struct {
	// Path uses forward slashes on every platform
	Path string

	// Skipped is set for files whose whole suite is skipped or marked fixme
	Skipped bool

	// UsesStorageState is set for files that load a saved login state
	UsesStorageState bool
}

// NeedsSetup reports whether the file can consume a global setup.
func (f TestFile) NeedsSetup() bool {
	return !f.Skipped && f.UsesStorageState
}

// Result is the outcome of a discovery run.
type Result struct {
	Tests       []TestFile
	Experiences []string
	Needed      []*domainsetup.Descriptor
}

// Discoverer scans test files.
type Discoverer struct {
	fs       afero.Fs
	root     string
	patterns []string
	logger   *slog.Logger
}

// New creates a new Discoverer.
func New(cfg *Config) *Discoverer {
	def := DefaultConfig()
	if cfg == nil {
		cfg = def
	}

	d := &Discoverer{
		fs:       cfg.Fs,
		root:     cfg.Root,
		patterns: cfg.Patterns,
		logger:   cfg.Logger,
	}
	if d.fs == nil {
		d.fs = afero.NewOsFs()
	}
	if d.root == "" {
		d.root = def.Root
	}
	if len(d.patterns) == 0 {
		d.patterns = def.Patterns
	}
	if d.logger == nil {
		d.logger = slog.Default()
	}
	return d
}

// Root returns the scanned directory.
func (d *Discoverer) Root() string {
	return d.root
}

// Scan walks the tests directory and returns its test files in lexical order.
func (d *Discoverer) Scan(ctx context.Context) ([]TestFile, error) {
	ok, err := afero.DirExists(d.fs, d.root)
	if err != nil {
		return nil, fmt.Errorf("failed to stat %s: %w", d.root, err)
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrTestsDirNotFound, d.root)
	}

	var tests []TestFile
	err = afero.Walk(d.fs, d.root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if info.IsDir() {
			if path != d.root && (strings.HasPrefix(info.Name(), ".") || info.Name() == "node_modules") {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.isTestFile(info.Name()) {
			return nil
		}

		data, err := afero.ReadFile(d.fs, path)
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", path, err)
		}
		tests = append(tests, TestFile{
			Path:             filepath.ToSlash(path),
			Skipped:          skipPattern.Match(data),
			UsesStorageState: storageStatePattern.Match(data),
		})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan %s: %w", d.root, err)
	}

	d.logger.Debug("Scanned test files", "root", d.root, "count", len(tests))
	return tests, nil
}

func (d *Discoverer) isTestFile(name string) bool {
	return lo.ContainsBy(d.patterns, func(pattern string) bool {
		ok, _ := filepath.Match(pattern, name)
		return ok
	})
}

// Discover scans the tests directory, reports the experiences running and
// keeps the descriptors needed by at least one test.
func (d *Discoverer) Discover(ctx context.Context, catalog *environment.Catalog, descriptors []*domainsetup.Descriptor) (*Result, error) {
	tests, err := d.Scan(ctx)
	if err != nil {
		return nil, err
	}

	paths := lo.Map(tests, func(t TestFile, _ int) string { return t.Path })
	result := &Result{
		Tests:       tests,
		Experiences: catalog.ExperiencesRunning(paths),
		Needed:      Needed(tests, descriptors),
	}

	for _, desc := range result.Needed {
		d.logger.Debug("Global setup needed", "setup", desc.Label())
	}
	return result, nil
}

// Needed returns, in order, the descriptors whose tests path is part of the
// path of a test that needs a setup.
func Needed(tests []TestFile, descriptors []*domainsetup.Descriptor) []*domainsetup.Descriptor {
	considered := lo.Filter(tests, func(t TestFile, _ int) bool { return t.NeedsSetup() })

	return lo.Filter(descriptors, func(desc *domainsetup.Descriptor, _ int) bool {
		return lo.ContainsBy(considered, func(t TestFile) bool {
			return strings.Contains(t.Path, desc.TestsPath())
		})
	})
}
