package environment

import (
	"fmt"
	"io/fs"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// yamlMap is the YAML structure of an environments file.
type yamlMap struct {
	ExperienceName string                                   `yaml:"experienceName"`
	ExperiencePath string                                   `yaml:"experiencePath"`
	Environments   map[string]map[string]map[string]yamlSite `yaml:"environments"`
}

type yamlSite struct {
	URL          string `yaml:"url"`
	UsernameAuth string `yaml:"usernameAuth"`
	PasswordAuth string `yaml:"passwordAuth"`
}

// Loader reads environment maps into a catalog.
type Loader struct {
	catalog *Catalog
}

// NewLoader creates a loader that populates catalog.
func NewLoader(catalog *Catalog) *Loader {
	return &Loader{catalog: catalog}
}

// LoadFromFS loads every YAML file of the "environments" directory.
func (l *Loader) LoadFromFS(fsys fs.FS) error {
	entries, err := fs.ReadDir(fsys, "environments")
	if err != nil {
		return fmt.Errorf("failed to read environments directory: %w", err)
	}

	for _, entry := range entries {
		ext := filepath.Ext(entry.Name())
		if entry.IsDir() || (ext != ".yaml" && ext != ".yml") {
			continue
		}
		if err := l.loadFile(fsys, "environments/"+entry.Name()); err != nil {
			return err
		}
	}
	return nil
}

func (l *Loader) loadFile(fsys fs.FS, path string) error {
	data, err := fs.ReadFile(fsys, path)
	if err != nil {
		return fmt.Errorf("failed to read environments file %s: %w", path, err)
	}

	var ym yamlMap
	if err := yaml.Unmarshal(data, &ym); err != nil {
		return fmt.Errorf("failed to parse environments file %s: %w", path, err)
	}
	if ym.ExperienceName == "" {
		return fmt.Errorf("environments file %s: experienceName is required", path)
	}

	m := &Map{
		ExperienceName: ym.ExperienceName,
		ExperiencePath: ym.ExperiencePath,
		Environments:   make(map[string]map[string]map[string]Site, len(ym.Environments)),
	}
	for env, instances := range ym.Environments {
		m.Environments[env] = make(map[string]map[string]Site, len(instances))
		for instance, sites := range instances {
			m.Environments[env][instance] = make(map[string]Site, len(sites))
			for name, s := range sites {
				m.Environments[env][instance][name] = Site(s)
			}
		}
	}

	l.catalog.Register(m)
	return nil
}
