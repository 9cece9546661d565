package browser

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/playwright-community/playwright-go"
)

// PlaywrightLauncher implements Launcher on top of a Playwright driver
// process. The driver is started on first launch and shared by all
// contexts until Stop is called.
type PlaywrightLauncher struct {
	config *DriverConfig

	mu sync.Mutex
	pw *playwright.Playwright
}

// NewPlaywrightLauncher creates a new Playwright-based launcher.
func NewPlaywrightLauncher(config *DriverConfig) *PlaywrightLauncher {
	if config == nil {
		config = DefaultDriverConfig()
	}
	return &PlaywrightLauncher{config: config}
}

func (l *PlaywrightLauncher) start() (*playwright.Playwright, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.pw != nil {
		return l.pw, nil
	}
	pw, err := playwright.Run()
	if err != nil {
		return nil, fmt.Errorf("failed to start playwright: %w", err)
	}
	l.pw = pw
	return pw, nil
}

// Stop shuts down the Playwright driver. Contexts still open are closed with it.
func (l *PlaywrightLauncher) Stop() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.pw == nil {
		return nil
	}
	err := l.pw.Stop()
	l.pw = nil
	return err
}

// LaunchPersistentContext starts chromium or webkit with a temporary profile.
func (l *PlaywrightLauncher) LaunchPersistentContext(ctx context.Context, opts LaunchOptions) (Context, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	pw, err := l.start()
	if err != nil {
		return nil, err
	}

	var (
		bt   playwright.BrowserType
		args = opts.Args
	)
	switch opts.Browser {
	case "", Chromium:
		bt = pw.Chromium
		args = append(chromiumArgs(l.config), opts.Args...)
	case WebKit:
		bt = pw.WebKit
	default:
		return nil, fmt.Errorf("playwright cannot drive %s: %w", opts.Browser, ErrUnsupportedBrowser)
	}

	bc, err := bt.LaunchPersistentContext("", playwright.BrowserTypeLaunchPersistentContextOptions{
		Headless: playwright.Bool(opts.Headless),
		Args:     args,
		Viewport: &playwright.Size{
			Width:  l.config.WindowWidth,
			Height: l.config.WindowHeight,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to launch %s: %w", bt.Name(), err)
	}

	bc.SetDefaultTimeout(millis(l.config.ActionTimeout))
	bc.SetDefaultNavigationTimeout(millis(l.config.NavigationTimeout))

	pages := bc.Pages()
	if len(pages) == 0 {
		page, err := bc.NewPage()
		if err != nil {
			_ = bc.Close()
			return nil, fmt.Errorf("failed to open page: %w", err)
		}
		pages = []playwright.Page{page}
	}

	return &playwrightContext{bc: bc, page: &playwrightPage{page: pages[0]}}, nil
}

func millis(d time.Duration) float64 {
	return float64(d.Milliseconds())
}

type playwrightContext struct {
	bc   playwright.BrowserContext
	page *playwrightPage
}

func (c *playwrightContext) Pages() []Page {
	return []Page{c.page}
}

func (c *playwrightContext) StorageState(ctx context.Context, path string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if _, err := c.bc.StorageState(path); err != nil {
		return fmt.Errorf("failed to write storage state %s: %w", path, err)
	}
	return nil
}

func (c *playwrightContext) Close() error {
	return c.bc.Close()
}

type playwrightPage struct {
	page playwright.Page

	creds     atomic.Pointer[httpCredentials]
	routeOnce sync.Once
	routeErr  error
}

func waitUntilState(w WaitUntil) *playwright.WaitUntilState {
	switch w {
	case WaitDOMContentLoaded:
		return playwright.WaitUntilStateDomcontentloaded
	case WaitNetworkIdle:
		return playwright.WaitUntilStateNetworkidle
	case WaitCommit:
		return playwright.WaitUntilStateCommit
	default:
		return playwright.WaitUntilStateLoad
	}
}

func (p *playwrightPage) Goto(ctx context.Context, url string, waitUntil WaitUntil) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := validateURL(url); err != nil {
		return err
	}
	if _, err := p.page.Goto(url, playwright.PageGotoOptions{WaitUntil: waitUntilState(waitUntil)}); err != nil {
		return fmt.Errorf("navigation to %s failed: %w", url, err)
	}
	return nil
}

func (p *playwrightPage) Click(ctx context.Context, selector string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return p.page.Locator(selector).Click()
}

func (p *playwrightPage) Fill(ctx context.Context, selector, value string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return p.page.Locator(selector).Fill(value)
}

func (p *playwrightPage) WaitVisible(ctx context.Context, selector string, timeout time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	opts := playwright.LocatorWaitForOptions{State: playwright.WaitForSelectorStateVisible}
	if timeout > 0 {
		opts.Timeout = playwright.Float(millis(timeout))
	}
	return p.page.Locator(selector).WaitFor(opts)
}

func (p *playwrightPage) URL(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return p.page.URL(), nil
}

func (p *playwrightPage) Screenshot(ctx context.Context) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	buf, err := p.page.Screenshot()
	if err != nil {
		return nil, fmt.Errorf("failed to capture screenshot: %w", err)
	}
	return buf, nil
}

// SetHTTPCredentials adds basic auth to requests bound for origin. Requests
// to other origins are routed through untouched.
func (p *playwrightPage) SetHTTPCredentials(ctx context.Context, origin, username, password string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p.creds.Store(&httpCredentials{origin: origin, username: username, password: password})
	p.routeOnce.Do(func() {
		p.routeErr = p.page.Route("**/*", p.authorize)
	})
	if p.routeErr != nil {
		return fmt.Errorf("failed to route requests: %w", p.routeErr)
	}
	return nil
}

func (p *playwrightPage) authorize(route playwright.Route) {
	req := route.Request()
	creds := p.creds.Load()
	if !creds.matches(req.URL()) {
		_ = route.Continue()
		return
	}
	_ = route.Continue(playwright.RouteContinueOptions{
		Headers: withAuthorization(req.Headers(), creds),
	})
}

// withAuthorization copies headers and sets the Authorization header of creds.
func withAuthorization(headers map[string]string, creds *httpCredentials) map[string]string {
	merged := make(map[string]string, len(headers)+1)
	for k, v := range headers {
		if strings.EqualFold(k, "authorization") {
			continue
		}
		merged[k] = v
	}
	merged["Authorization"] = creds.header()
	return merged
}

var _ Launcher = (*PlaywrightLauncher)(nil)
