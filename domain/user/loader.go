package user

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// LookupFunc resolves ${VAR} references in user files.
type LookupFunc func(key string) (string, bool)

// yamlFile is the YAML structure for user definition files.
type yamlFile struct {
	Users []yamlUser `yaml:"users"`
}

type yamlUser struct {
	Name       string            `yaml:"name"`
	Username   string            `yaml:"username,omitempty"`
	Password   string            `yaml:"password,omitempty"`
	Properties map[string]string `yaml:"properties,omitempty"`
}

// Loader reads user definitions and saves them through a Service.
type Loader struct {
	service *Service
	lookup  LookupFunc
}

// NewLoader creates a loader. A nil lookup leaves ${VAR} references unresolved,
// which fails the load.
func NewLoader(service *Service, lookup LookupFunc) *Loader {
	if lookup == nil {
		lookup = func(string) (string, bool) { return "", false }
	}
	return &Loader{service: service, lookup: lookup}
}

// LoadFromFS loads every YAML file of the "users" directory.
// A missing directory is not an error.
func (l *Loader) LoadFromFS(ctx context.Context, fsys fs.FS) error {
	entries, err := fs.ReadDir(fsys, "users")
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("failed to read users directory: %w", err)
	}

	for _, entry := range entries {
		ext := filepath.Ext(entry.Name())
		if entry.IsDir() || (ext != ".yaml" && ext != ".yml") {
			continue
		}

		if err := l.loadFile(ctx, fsys, "users/"+entry.Name()); err != nil {
			return err
		}
	}

	return nil
}

func (l *Loader) loadFile(ctx context.Context, fsys fs.FS, path string) error {
	data, err := fs.ReadFile(fsys, path)
	if err != nil {
		return fmt.Errorf("failed to read user file %s: %w", path, err)
	}

	var yf yamlFile
	if err := yaml.Unmarshal(data, &yf); err != nil {
		return fmt.Errorf("failed to parse user file %s: %w", path, err)
	}

	for _, yu := range yf.Users {
		u, err := l.convert(yu)
		if err != nil {
			return fmt.Errorf("invalid user file %s: %w", path, err)
		}
		if err := l.service.SaveUser(ctx, u); err != nil {
			return fmt.Errorf("invalid user file %s: %w", path, err)
		}
	}
	return nil
}

func (l *Loader) convert(yu yamlUser) (*User, error) {
	u := &User{Name: yu.Name}

	var err error
	if u.Username, err = l.expand(yu.Username); err != nil {
		return nil, fmt.Errorf("user %s: %w", yu.Name, err)
	}
	if u.Password, err = l.expand(yu.Password); err != nil {
		return nil, fmt.Errorf("user %s: %w", yu.Name, err)
	}

	if len(yu.Properties) > 0 {
		u.Properties = make(map[string]string, len(yu.Properties))
		for k, v := range yu.Properties {
			if u.Properties[k], err = l.expand(v); err != nil {
				return nil, fmt.Errorf("user %s property %s: %w", yu.Name, k, err)
			}
		}
	}
	return u, nil
}

// expand replaces $VAR and ${VAR} with values from the lookup.
func (l *Loader) expand(s string) (string, error) {
	if !strings.Contains(s, "$") {
		return s, nil
	}

	var missing []string
	out := os.Expand(s, func(key string) string {
		v, ok := l.lookup(key)
		if !ok {
			missing = append(missing, key)
		}
		return v
	})
	if len(missing) > 0 {
		return "", fmt.Errorf("unset variables %s", strings.Join(missing, ", "))
	}
	return out, nil
}
