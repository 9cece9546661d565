// Package config loads runtime settings from environment variables.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/mstoykov/envconfig"
)

// Cache backends.
const (
	CacheBackendFile  = "file"
	CacheBackendMongo = "mongo"
)

// Browser engines.
const (
	EngineChromeDP   = "chromedp"
	EnginePlaywright = "playwright"
)

// LookupFunc resolves an environment variable. os.LookupEnv satisfies it.
type LookupFunc func(key string) (string, bool)

// Config holds the settings of a global setup run.
type Config struct {
	// CI is set by most CI servers, often to a server name rather than a
	// boolean. Any non-empty value counts; see InCI.
	CI string `envconfig:"CI"`

	// Docker adds container friendly browser switches.
	Docker bool `envconfig:"SPW_DOCKER"`

	// Debug disables setup retries and raises the log level.
	Debug bool `envconfig:"SPW_DEBUG"`

	// Headless overrides headless mode. Nil means headless.
	Headless *bool `envconfig:"SPW_HEADLESS"`

	// Workers bounds how many setups run at the same time.
	Workers int `envconfig:"SPW_WORKERS" default:"1"`

	// SkipState disables the global setup entirely.
	SkipState bool `envconfig:"SPW_SKIP_STATE"`

	// Env is the environment selection, e.g. "qa" or "uat2".
	Env string `envconfig:"SPW_ENV" default:"qa"`

	// SlowNetwork throttles the browser connection.
	SlowNetwork bool `envconfig:"SPW_SLOW_NETWORK"`

	// Engine selects the browser driver.
	Engine string `envconfig:"SPW_ENGINE" default:"chromedp"`

	// CacheBackend selects where TTL records live.
	CacheBackend string `envconfig:"SPW_CACHE_BACKEND" default:"file"`

	// TTLFile is the path of the file TTL cache.
	TTLFile string `envconfig:"SPW_TTL_FILE" default:"browser-states/ttl/globalSetupTTL.json"`

	// MongoURI and MongoDatabase configure the mongo TTL cache.
	MongoURI      string `envconfig:"SPW_MONGO_URI" default:"mongodb://localhost:27017"`
	MongoDatabase string `envconfig:"SPW_MONGO_DATABASE" default:"spw"`

	// ConfigDir holds the scripts, setups and environments directories.
	ConfigDir string `envconfig:"SPW_CONFIG_DIR" default:"config"`

	// ArtifactsDir receives failure screenshots. Empty disables capture.
	ArtifactsDir string `envconfig:"SPW_ARTIFACTS_DIR" default:"test-results/global-setup"`

	// SetupRetries is the retry budget of a setup outside debug mode.
	SetupRetries int `envconfig:"SPW_SETUP_RETRIES" default:"2"`

	// LogDir receives the log files of prod builds. Empty uses the user config dir.
	LogDir string `envconfig:"SPW_LOG_DIR"`

	lookup LookupFunc
}

// Load reads the configuration through lookup. A nil lookup reads the process environment.
func Load(lookup LookupFunc) (*Config, error) {
	if lookup == nil {
		lookup = os.LookupEnv
	}

	cfg := &Config{}
	if err := envconfig.Process("", cfg, func(key string) (string, bool) {
		return lookup(key)
	}); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	cfg.lookup = lookup

	if err := cfg.normalize(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) normalize() error {
	if c.Workers < 1 {
		c.Workers = 1
	}
	if c.SetupRetries < 0 {
		c.SetupRetries = 0
	}

	c.Engine = strings.ToLower(c.Engine)
	switch c.Engine {
	case EngineChromeDP, EnginePlaywright:
	default:
		return fmt.Errorf("unknown browser engine %q", c.Engine)
	}

	c.CacheBackend = strings.ToLower(c.CacheBackend)
	switch c.CacheBackend {
	case CacheBackendFile, CacheBackendMongo:
	default:
		return fmt.Errorf("unknown cache backend %q", c.CacheBackend)
	}

	c.TTLFile = filepath.Clean(c.TTLFile)
	return nil
}

// InCI reports whether the run happens on a CI server.
func (c *Config) InCI() bool {
	return strings.TrimSpace(c.CI) != ""
}

// IsHeadless resolves the headless flag. Browsers run headless unless SPW_HEADLESS=false.
func (c *Config) IsHeadless() bool {
	return c.Headless == nil || *c.Headless
}

// Lookup resolves variables through the same source the config was loaded from.
// It is used to expand ${VAR} references in setup files.
func (c *Config) Lookup(key string) (string, bool) {
	if c.lookup == nil {
		return os.LookupEnv(key)
	}
	return c.lookup(key)
}

// MapLookup adapts a map to a LookupFunc.
func MapLookup(env map[string]string) LookupFunc {
	return func(key string) (string, bool) {
		v, ok := env[key]
		return v, ok
	}
}
