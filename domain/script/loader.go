package script

import (
	"fmt"
	"io/fs"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/matspina/screen-play-wright/infrastructure/browser"
)

// yamlScript is the YAML structure for script definitions.
type yamlScript struct {
	Name        string     `yaml:"name"`
	Description string     `yaml:"description"`
	Steps       []yamlStep `yaml:"steps"`
}

type yamlStep struct {
	Type      string   `yaml:"type"`
	URL       string   `yaml:"url,omitempty"`
	WaitUntil string   `yaml:"waitUntil,omitempty"`
	Selector  string   `yaml:"selector,omitempty"`
	Value     string   `yaml:"value,omitempty"`
	Pattern   string   `yaml:"pattern,omitempty"`
	Timeout   duration `yaml:"timeout,omitempty"`
}

// duration is a wrapper for time.Duration that handles YAML parsing.
type duration time.Duration

func (d *duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	*d = duration(parsed)
	return nil
}

// Loader handles loading script definitions from various sources.
type Loader struct {
	registry *Registry
}

// NewLoader creates a new script loader that populates the given registry.
func NewLoader(registry *Registry) *Loader {
	return &Loader{registry: registry}
}

// LoadFromFS loads script definitions from an embedded or real filesystem.
// It expects YAML files in a "scripts" subdirectory.
func (l *Loader) LoadFromFS(fsys fs.FS) error {
	entries, err := fs.ReadDir(fsys, "scripts")
	if err != nil {
		return fmt.Errorf("failed to read scripts directory: %w", err)
	}

	for _, entry := range entries {
		ext := filepath.Ext(entry.Name())
		if entry.IsDir() || (ext != ".yaml" && ext != ".yml") {
			continue
		}

		if err := l.loadFile(fsys, "scripts/"+entry.Name()); err != nil {
			return err
		}
	}

	return nil
}

// loadFile loads a single script definition file.
func (l *Loader) loadFile(fsys fs.FS, path string) error {
	data, err := fs.ReadFile(fsys, path)
	if err != nil {
		return fmt.Errorf("failed to read script file %s: %w", path, err)
	}

	var ys yamlScript
	if err := yaml.Unmarshal(data, &ys); err != nil {
		return fmt.Errorf("failed to parse script file %s: %w", path, err)
	}

	script := convertYAMLScript(&ys)
	if err := script.Validate(); err != nil {
		return fmt.Errorf("invalid script file %s: %w", path, err)
	}
	l.registry.Register(script)

	return nil
}

// convertYAMLScript converts a YAML script to a domain Script.
func convertYAMLScript(ys *yamlScript) *Script {
	script := &Script{
		Name:        ys.Name,
		Description: ys.Description,
		Steps:       make([]Step, len(ys.Steps)),
	}

	for i, ystep := range ys.Steps {
		script.Steps[i] = Step{
			Type:      StepType(ystep.Type),
			URL:       ystep.URL,
			WaitUntil: browser.WaitUntil(ystep.WaitUntil),
			Selector:  ystep.Selector,
			Value:     ystep.Value,
			Pattern:   ystep.Pattern,
			Timeout:   time.Duration(ystep.Timeout),
		}
	}

	return script
}
