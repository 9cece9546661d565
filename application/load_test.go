package application

import (
	"context"
	"strings"
	"testing"
	"testing/fstest"
	"time"

	"github.com/matspina/screen-play-wright/domain/environment"
	"github.com/matspina/screen-play-wright/domain/user"
	"github.com/matspina/screen-play-wright/infrastructure/repository"
	"github.com/matspina/screen-play-wright/resources"
)

func TestLoadSetupConfig_Bundled(t *testing.T) {
	users := user.NewService(repository.NewMemoryUserRepository())

	cfg, err := LoadSetupConfig(context.Background(), resources.ConfigFS(), LoadOptions{
		Users:     users,
		Selection: environment.Selection{Env: "qa"},
	})
	if err != nil {
		t.Fatalf("LoadSetupConfig() error = %v", err)
	}

	d := cfg.Registry.Get("DEMO SITESample Page Test")
	if d == nil {
		t.Fatal("bundled sample page setup not registered")
	}
	if d.CacheDuration() != 20*time.Minute {
		t.Errorf("CacheDuration() = %v, want 20m", d.CacheDuration())
	}
	if d.ActorName() != "Generic User" {
		t.Errorf("ActorName() = %q, want Generic User", d.ActorName())
	}
	if d.Assertion() == nil {
		t.Error("bundled setup should carry its assertion")
	}
	if got := cfg.Catalog.SessionSites("DEMO SITE", environment.Selection{Env: "qa"})["demoSite"]; got != "https://www.globalsqa.com/" {
		t.Errorf("demoSite = %q", got)
	}
	if !cfg.Scripts.Exists("demo-sample-page-sign-in") {
		t.Error("sign in script not registered")
	}
}

func TestLoadSetupConfig_Errors(t *testing.T) {
	env := &fstest.MapFile{Data: []byte("experienceName: DEMO SITE\nexperiencePath: /tests/demo-site/\n")}
	setups := &fstest.MapFile{Data: []byte("setups:\n  - experience: DEMO SITE\n    site: Portal\n    testsPath: /tests/demo-site/\n    signIn: missing\n")}

	tests := []struct {
		name string
		fsys fstest.MapFS
		want string
	}{
		{"missing environments", fstest.MapFS{}, "failed to load environments"},
		{"unknown script", fstest.MapFS{
			"environments/demo.yaml": env,
			"scripts/.keep":          &fstest.MapFile{},
			"setups/demo.yaml":       setups,
		}, "failed to load setups"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadSetupConfig(context.Background(), tt.fsys, LoadOptions{
				Users:     user.NewService(repository.NewMemoryUserRepository()),
				Selection: environment.Selection{Env: "qa"},
			})
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("LoadSetupConfig() error = %v, want %q", err, tt.want)
			}
		})
	}
}
