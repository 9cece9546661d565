// Package browser provides browser automation infrastructure.
package browser

import (
	"context"
	"errors"
	"time"
)

// ErrInvalidURL is returned when a navigation target is empty or cannot be parsed.
// It usually means the site is not configured for the selected environment.
var ErrInvalidURL = errors.New("invalid URL")

// ErrUnsupportedBrowser is returned when a launcher cannot drive the requested engine.
var ErrUnsupportedBrowser = errors.New("unsupported browser")

// Name identifies a browser engine.
type Name string

const (
	Chromium Name = "chromium"
	WebKit   Name = "webkit"
)

// WaitUntil selects when a navigation is considered complete.
type WaitUntil string

const (
	WaitLoad             WaitUntil = "load"
	WaitDOMContentLoaded WaitUntil = "domcontentloaded"
	WaitNetworkIdle      WaitUntil = "networkidle"
	WaitCommit           WaitUntil = "commit"
)

// Launcher starts isolated browser contexts.
// This abstraction allows for different browser implementations (ChromeDP, Playwright).
type Launcher interface {
	// LaunchPersistentContext starts a browser with a fresh persistent context.
	// The caller owns the returned context and must Close it.
	LaunchPersistentContext(ctx context.Context, opts LaunchOptions) (Context, error)
}

// Context is a running browser context.
type Context interface {
	// Pages returns the open pages; a freshly launched context has exactly one.
	Pages() []Page

	// StorageState writes cookies and local storage to path in the
	// Playwright storage-state JSON format.
	StorageState(ctx context.Context, path string) error

	// Close shuts the browser down and releases its resources.
	Close() error
}

// Page is a single browser tab.
type Page interface {
	// Goto navigates to url and waits according to waitUntil.
	Goto(ctx context.Context, url string, waitUntil WaitUntil) error

	// Click clicks the first element matching selector.
	Click(ctx context.Context, selector string) error

	// Fill replaces the value of an input element.
	Fill(ctx context.Context, selector, value string) error

	// WaitVisible waits for an element to become visible.
	WaitVisible(ctx context.Context, selector string, timeout time.Duration) error

	// URL returns the current page URL.
	URL(ctx context.Context) (string, error)

	// Screenshot captures the visible viewport as PNG.
	Screenshot(ctx context.Context) ([]byte, error)

	// SetHTTPCredentials sends basic-auth credentials to origin, and only to
	// origin, for the rest of the page's life.
	SetHTTPCredentials(ctx context.Context, origin, username, password string) error
}

// LaunchOptions holds per-launch settings.
type LaunchOptions struct {
	// Browser is the engine to launch. Empty means Chromium.
	Browser Name

	// Headless runs the browser without a visible window.
	Headless bool

	// Args are extra command line switches passed to the browser.
	Args []string

	// SlowNetwork emulates a throttled connection.
	SlowNetwork bool
}

// DriverConfig holds configuration for browser launchers.
type DriverConfig struct {
	// WindowWidth is the browser window width.
	WindowWidth int

	// WindowHeight is the browser window height.
	WindowHeight int

	// NavigationTimeout bounds a single navigation.
	NavigationTimeout time.Duration

	// ActionTimeout bounds clicks, fills and other element actions.
	ActionTimeout time.Duration

	// IdleDelay is how long a finished request still counts as active.
	IdleDelay time.Duration

	// IgnoredURLPatterns are request URL patterns that never block network idle.
	IgnoredURLPatterns []string

	// Docker adds the switches needed to run Chromium inside a container.
	Docker bool
}

// DefaultDriverConfig returns default browser configuration.
func DefaultDriverConfig() *DriverConfig {
	return &DriverConfig{
		WindowWidth:       1280,
		WindowHeight:      720,
		NavigationTimeout: 60 * time.Second,
		ActionTimeout:     30 * time.Second,
		IdleDelay:         750 * time.Millisecond,
		IgnoredURLPatterns: []string{
			`^https?://([-\w.]*\.)?google-analytics\.com/g/collect`,
			`^https?://([-\w.]*\.)?tr\.snapchat\.com`,
		},
	}
}

// chromiumArgs returns the switches every Chromium launch gets.
func chromiumArgs(cfg *DriverConfig) []string {
	args := []string{"--disable-blink-features=AutomationControlled"}
	if cfg.Docker {
		args = append(args, "--no-sandbox", "--disable-dev-shm-usage")
	}
	return args
}
