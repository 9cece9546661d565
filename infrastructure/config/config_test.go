package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(MapLookup(nil))
	require.NoError(t, err)

	assert.False(t, cfg.InCI())
	assert.False(t, cfg.Debug)
	assert.Nil(t, cfg.Headless)
	assert.True(t, cfg.IsHeadless())
	assert.Equal(t, 1, cfg.Workers)
	assert.Equal(t, "qa", cfg.Env)
	assert.Equal(t, EngineChromeDP, cfg.Engine)
	assert.Equal(t, CacheBackendFile, cfg.CacheBackend)
	assert.Equal(t, "browser-states/ttl/globalSetupTTL.json", cfg.TTLFile)
	assert.Equal(t, "config", cfg.ConfigDir)
	assert.Equal(t, 2, cfg.SetupRetries)
}

func TestLoad_FromEnvironment(t *testing.T) {
	cfg, err := Load(MapLookup(map[string]string{
		"CI":                "true",
		"SPW_DOCKER":        "1",
		"SPW_DEBUG":         "true",
		"SPW_HEADLESS":      "false",
		"SPW_WORKERS":       "4",
		"SPW_SKIP_STATE":    "true",
		"SPW_ENV":           "uat2",
		"SPW_ENGINE":        "Playwright",
		"SPW_CACHE_BACKEND": "mongo",
		"SPW_MONGO_URI":     "mongodb://db:27017",
		"SPW_SETUP_RETRIES": "1",
	}))
	require.NoError(t, err)

	assert.True(t, cfg.InCI())
	assert.True(t, cfg.Docker)
	assert.True(t, cfg.Debug)
	require.NotNil(t, cfg.Headless)
	assert.False(t, cfg.IsHeadless())
	assert.Equal(t, 4, cfg.Workers)
	assert.True(t, cfg.SkipState)
	assert.Equal(t, "uat2", cfg.Env)
	assert.Equal(t, EnginePlaywright, cfg.Engine)
	assert.Equal(t, CacheBackendMongo, cfg.CacheBackend)
	assert.Equal(t, "mongodb://db:27017", cfg.MongoURI)
	assert.Equal(t, 1, cfg.SetupRetries)
}

func TestLoad_CIServerNames(t *testing.T) {
	tests := []struct {
		value string
		want  bool
	}{
		{"true", true},
		{"1", true},
		{"jenkins", true},
		{"gitlab-ci", true},
		{"", false},
		{"  ", false},
	}

	for _, tt := range tests {
		t.Run(tt.value, func(t *testing.T) {
			cfg, err := Load(MapLookup(map[string]string{"CI": tt.value}))
			require.NoError(t, err)
			assert.Equal(t, tt.want, cfg.InCI())
		})
	}
}

func TestLoad_ClampsWorkers(t *testing.T) {
	cfg, err := Load(MapLookup(map[string]string{"SPW_WORKERS": "0"}))
	require.NoError(t, err)
	assert.Equal(t, 1, cfg.Workers)
}

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{"bad workers", map[string]string{"SPW_WORKERS": "many"}},
		{"bad bool", map[string]string{"SPW_DEBUG": "perhaps"}},
		{"unknown engine", map[string]string{"SPW_ENGINE": "selenium"}},
		{"unknown backend", map[string]string{"SPW_CACHE_BACKEND": "redis"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(MapLookup(tt.env))
			assert.Error(t, err)
		})
	}
}

func TestConfig_Lookup(t *testing.T) {
	cfg, err := Load(MapLookup(map[string]string{"DEMO_PASSWORD": "secret"}))
	require.NoError(t, err)

	v, ok := cfg.Lookup("DEMO_PASSWORD")
	assert.True(t, ok)
	assert.Equal(t, "secret", v)

	_, ok = cfg.Lookup("MISSING")
	assert.False(t, ok)
}
