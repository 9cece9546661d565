package setup

import (
	"context"
	"errors"
	"testing"
	"testing/fstest"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/matspina/screen-play-wright/core/screenplay"
	"github.com/matspina/screen-play-wright/domain/environment"
	"github.com/matspina/screen-play-wright/domain/script"
	"github.com/matspina/screen-play-wright/domain/user"
	"github.com/matspina/screen-play-wright/infrastructure/browser"
)

var noop = screenplay.ActivityFunc(func(context.Context, *screenplay.Actor) error { return nil })

func validSettings() Settings {
	return Settings{
		ExperienceName: "DEMO SITE",
		SiteName:       "Sample Page Test",
		TestsPath:      "/tests/demo-site/sample-page-test/",
		SignIn:         noop,
	}
}

func TestNewDescriptor(t *testing.T) {
	d, err := NewDescriptor(validSettings())
	require.NoError(t, err)

	assert.Equal(t, "DEMO SITESample Page Test", d.Identity())
	assert.Equal(t, "DEMO SITE > Sample Page Test", d.Label())
	assert.Equal(t, browser.Chromium, d.Browser())
	assert.Equal(t, 0, d.CacheTTL())
	assert.Equal(t, "Sample Page Test", d.ActorName())
	assert.Nil(t, d.Assertion())
}

func TestNewDescriptor_Validation(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Settings)
	}{
		{"no experience", func(s *Settings) { s.ExperienceName = "" }},
		{"no site", func(s *Settings) { s.SiteName = "" }},
		{"no tests path", func(s *Settings) { s.TestsPath = "" }},
		{"no sign in", func(s *Settings) { s.SignIn = nil }},
		{"negative ttl", func(s *Settings) { s.CacheTTL = -1 }},
		{"unknown browser", func(s *Settings) { s.Browser = "firefox" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := validSettings()
			tt.modify(&s)
			_, err := NewDescriptor(s)
			assert.ErrorIs(t, err, ErrInvalidDescriptor)
		})
	}
}

func TestDescriptor_Headless(t *testing.T) {
	headed := false
	headless := true

	tests := []struct {
		name         string
		force        *bool
		def          bool
		want         bool
		forcesHeaded bool
	}{
		{"no override follows default", nil, true, true, false},
		{"no override follows headed default", nil, false, false, false},
		{"forced headed", &headed, true, false, true},
		{"forced headless", &headless, false, true, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := validSettings()
			s.ForceHeadless = tt.force
			d, err := NewDescriptor(s)
			require.NoError(t, err)

			assert.Equal(t, tt.want, d.Headless(tt.def))
			assert.Equal(t, tt.forcesHeaded, d.ForcesHeaded())
		})
	}
}

func TestDescriptor_ForceHeadlessIsCopied(t *testing.T) {
	v := false
	s := validSettings()
	s.ForceHeadless = &v
	d, err := NewDescriptor(s)
	require.NoError(t, err)

	v = true
	got, ok := d.ForceHeadless()
	assert.True(t, ok)
	assert.False(t, got)
}

func TestDescriptor_NewActorIsIsolated(t *testing.T) {
	s := validSettings()
	s.Actor = screenplay.Named("Generic User").WithUsername("u")
	d, err := NewDescriptor(s)
	require.NoError(t, err)

	a1 := d.NewActor()
	a2 := d.NewActor()
	a1.WithProperty("k", "v")

	_, ok := a2.Property("k")
	assert.False(t, ok)
	assert.Equal(t, "u", a2.Username())
}

func TestExpired(t *testing.T) {
	t0 := time.UnixMilli(1_700_000_000_000)
	ttl := 5 * time.Minute

	assert.True(t, Expired(time.Time{}, false, t0, ttl), "missing entry")
	assert.True(t, Expired(t0, true, t0, 0), "cache disabled")
	assert.False(t, Expired(t0, true, t0.Add(4*time.Minute), ttl))
	assert.False(t, Expired(t0, true, t0.Add(ttl), ttl), "exactly ttl is still fresh")
	assert.True(t, Expired(t0, true, t0.Add(6*time.Minute), ttl))
}

func TestRegistry(t *testing.T) {
	registry := NewRegistry()

	names := []string{"c", "a", "b"}
	for _, name := range names {
		s := validSettings()
		s.SiteName = name
		d, err := NewDescriptor(s)
		require.NoError(t, err)
		require.NoError(t, registry.Register(d))
	}

	t.Run("keeps registration order", func(t *testing.T) {
		all := registry.All()
		require.Len(t, all, 3)
		for i, name := range names {
			assert.Equal(t, name, all[i].SiteName())
		}
	})

	t.Run("rejects duplicates", func(t *testing.T) {
		s := validSettings()
		s.SiteName = "a"
		d, err := NewDescriptor(s)
		require.NoError(t, err)
		assert.ErrorIs(t, registry.Register(d), ErrDuplicateDescriptor)
		assert.Equal(t, 3, registry.Count())
	})

	t.Run("Get", func(t *testing.T) {
		assert.NotNil(t, registry.Get("DEMO SITEb"))
		assert.Nil(t, registry.Get("missing"))
	})
}

// usersRepo is a map-backed user.Repository.
type usersRepo map[string]*user.User

func (r usersRepo) FindByName(_ context.Context, name string) (*user.User, error) {
	return r[name], nil
}

func (r usersRepo) FindAll(context.Context) ([]*user.User, error) { return nil, nil }

func (r usersRepo) Save(_ context.Context, u *user.User) error {
	r[u.Name] = u
	return nil
}

func (r usersRepo) Delete(_ context.Context, name string) error {
	delete(r, name)
	return nil
}

const setupsYAML = `
setups:
  - experience: DEMO SITE
    site: Sample Page Test
    testsPath: /tests/demo-site/sample-page-test/
    user: Generic User
    signIn: demo-navigate
    assertion: demo-on-home
    storageStateFile: ./browser-states/demo-sample-page-auth-state.json
    cacheTTL: 20
  - experience: DEMO SITE
    site: Headed Page
    testsPath: /tests/demo-site/headed/
    signIn: demo-navigate
    browser: webkit
    skipOnCI: true
    forceHeadless: false
`

const scriptsYAML = `
name: demo-navigate
steps:
  - type: navigate
    url: '{{ site "demoSite" }}'
    waitUntil: networkidle
`

const assertionYAML = `
name: demo-on-home
steps:
  - type: assertURL
    pattern: globalsqa
`

const environmentsYAML = `
experienceName: DEMO SITE
experiencePath: /tests/demo-site/
environments:
  qa:
    "1":
      demoSite:
        url: https://www.globalsqa.com/
`

func newLoaderFixture(t *testing.T, sel environment.Selection) (*Loader, *Registry, fstest.MapFS) {
	t.Helper()

	fsys := fstest.MapFS{
		"setups/demo.yaml":          {Data: []byte(setupsYAML)},
		"scripts/navigate.yaml":     {Data: []byte(scriptsYAML)},
		"scripts/on-home.yaml":      {Data: []byte(assertionYAML)},
		"environments/demo.yaml":    {Data: []byte(environmentsYAML)},
		"setups/notes.txt":          {Data: []byte("ignored")},
		"environments/README.md":    {Data: []byte("ignored")},
		"scripts/disabled/old.yaml": {Data: []byte("ignored")},
	}

	scripts := script.NewRegistry()
	require.NoError(t, script.NewLoader(scripts).LoadFromFS(fsys))
	catalog := environment.NewCatalog()
	require.NoError(t, environment.NewLoader(catalog).LoadFromFS(fsys))

	users := user.NewService(usersRepo{"Generic User": {Name: "Generic User"}})
	registry := NewRegistry()
	return NewLoader(registry, scripts, catalog, users, sel), registry, fsys
}

func TestLoader_LoadFromFS(t *testing.T) {
	loader, registry, fsys := newLoaderFixture(t, environment.Selection{Env: "qa", Instance: "1"})
	require.NoError(t, loader.LoadFromFS(context.Background(), fsys))

	all := registry.All()
	require.Len(t, all, 2)

	first := all[0]
	assert.Equal(t, "DEMO SITE > Sample Page Test", first.Label())
	assert.Equal(t, "Generic User", first.ActorName())
	assert.Equal(t, 20, first.CacheTTL())
	assert.Equal(t, 20*time.Minute, first.CacheDuration())
	assert.Equal(t, "./browser-states/demo-sample-page-auth-state.json", first.StorageStateFile())
	assert.NotNil(t, first.Assertion())

	second := all[1]
	assert.Equal(t, browser.WebKit, second.Browser())
	assert.True(t, second.SkipOnCI())
	assert.True(t, second.ForcesHeaded())
	assert.Equal(t, "Headed Page", second.ActorName())
}

// navigationPage records the last navigation target.
type navigationPage struct {
	browser.Page
	target string
}

func (p *navigationPage) Goto(_ context.Context, url string, _ browser.WaitUntil) error {
	if url == "" {
		return browser.ErrInvalidURL
	}
	p.target = url
	return nil
}

func TestLoader_BindsSitesOfSelection(t *testing.T) {
	t.Run("configured environment", func(t *testing.T) {
		loader, registry, fsys := newLoaderFixture(t, environment.Selection{Env: "qa", Instance: "3"})
		require.NoError(t, loader.LoadFromFS(context.Background(), fsys))

		page := &navigationPage{}
		actor := registry.All()[0].NewActor().Can(screenplay.BrowseTheWebWith(page))
		require.NoError(t, actor.AttemptsTo(context.Background(), registry.All()[0].SignIn()))
		assert.Equal(t, "https://www.globalsqa.com/", page.target)
	})

	t.Run("environment without the site", func(t *testing.T) {
		loader, registry, fsys := newLoaderFixture(t, environment.Selection{Env: "prod", Instance: "1"})
		require.NoError(t, loader.LoadFromFS(context.Background(), fsys))

		page := &navigationPage{}
		actor := registry.All()[0].NewActor().Can(screenplay.BrowseTheWebWith(page))
		err := actor.AttemptsTo(context.Background(), registry.All()[0].SignIn())
		assert.ErrorIs(t, err, browser.ErrInvalidURL)
	})
}

func TestLoader_Errors(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		wantErr error
	}{
		{
			name:    "unknown script",
			yaml:    "setups:\n  - {experience: E, site: S, testsPath: /t/, signIn: missing}\n",
			wantErr: script.ErrScriptNotFound,
		},
		{
			name:    "unknown user",
			yaml:    "setups:\n  - {experience: E, site: S, testsPath: /t/, signIn: demo-navigate, user: Nobody}\n",
			wantErr: user.ErrUserNotFound,
		},
		{
			name:    "assertion with actions",
			yaml:    "setups:\n  - {experience: E, site: S, testsPath: /t/, signIn: demo-navigate, assertion: demo-navigate}\n",
			wantErr: ErrInvalidDescriptor,
		},
		{
			name:    "missing sign in",
			yaml:    "setups:\n  - {experience: E, site: S, testsPath: /t/}\n",
			wantErr: ErrInvalidDescriptor,
		},
		{
			name:    "duplicate identity",
			yaml:    "setups:\n  - {experience: E, site: S, testsPath: /t/, signIn: demo-navigate}\n  - {experience: E, site: S, testsPath: /u/, signIn: demo-navigate}\n",
			wantErr: ErrDuplicateDescriptor,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			loader, _, fsys := newLoaderFixture(t, environment.Selection{Env: "qa", Instance: "1"})
			fsys["setups/demo.yaml"] = &fstest.MapFile{Data: []byte(tt.yaml)}

			err := loader.LoadFromFS(context.Background(), fsys)
			require.Error(t, err)
			assert.True(t, errors.Is(err, tt.wantErr), "error = %v, want %v", err, tt.wantErr)
		})
	}
}
