package browser

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/chromedp/cdproto/fetch"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/cdproto/storage"
	"github.com/chromedp/chromedp"
)

// ChromeDPLauncher implements Launcher using chromedp. Every launch gets its
// own browser process and a throwaway user data directory.
type ChromeDPLauncher struct {
	config *DriverConfig
	clock  clock.Clock
}

// NewChromeDPLauncher creates a new ChromeDP-based launcher.
func NewChromeDPLauncher(config *DriverConfig) *ChromeDPLauncher {
	if config == nil {
		config = DefaultDriverConfig()
	}
	return &ChromeDPLauncher{
		config: config,
		clock:  clock.New(),
	}
}

// buildExecAllocatorOptions builds chromedp options from config and launch options.
func (l *ChromeDPLauncher) buildExecAllocatorOptions(opts LaunchOptions, userDataDir string) []chromedp.ExecAllocatorOption {
	allocOpts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", opts.Headless),
		chromedp.Flag("disable-infobars", true),
		chromedp.Flag("enable-automation", false),
		chromedp.WindowSize(l.config.WindowWidth, l.config.WindowHeight),
		chromedp.UserDataDir(userDataDir),
	)

	for _, arg := range append(chromiumArgs(l.config), opts.Args...) {
		name, value := splitSwitch(arg)
		allocOpts = append(allocOpts, chromedp.Flag(name, value))
	}

	return allocOpts
}

// splitSwitch turns "--name=value" into ("name", "value") and "--name" into ("name", true).
func splitSwitch(arg string) (string, interface{}) {
	arg = strings.TrimLeft(arg, "-")
	if name, value, ok := strings.Cut(arg, "="); ok {
		return name, value
	}
	return arg, true
}

// LaunchPersistentContext starts a Chromium instance.
func (l *ChromeDPLauncher) LaunchPersistentContext(ctx context.Context, opts LaunchOptions) (Context, error) {
	if opts.Browser != "" && opts.Browser != Chromium {
		return nil, fmt.Errorf("chromedp cannot drive %s: %w", opts.Browser, ErrUnsupportedBrowser)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	userDataDir, err := os.MkdirTemp("", "spw-profile-*")
	if err != nil {
		return nil, fmt.Errorf("failed to create user data dir: %w", err)
	}

	// Create allocator context from context.Background() so the browser
	// lifecycle is owned by Close, not by the caller's context
	allocCtx, allocCancel := chromedp.NewExecAllocator(
		context.Background(),
		l.buildExecAllocatorOptions(opts, userDataDir)...,
	)
	browserCtx, cancel := chromedp.NewContext(allocCtx)

	c := &chromeDPContext{
		userDataDir: userDataDir,
		allocCancel: allocCancel,
		cancel:      cancel,
		browserCtx:  browserCtx,
	}
	c.page = &chromeDPPage{
		ctx:      browserCtx,
		config:   l.config,
		observer: NewNetworkObserver(l.config, l.clock),
		auth:     newAuthResponder(),
	}

	chromedp.ListenTarget(browserCtx, c.page.observer.Handle)
	chromedp.ListenTarget(browserCtx, c.page.handleFetch)

	startup := []chromedp.Action{network.Enable()}
	if opts.SlowNetwork {
		startup = append(startup, network.EmulateNetworkConditions(false, 100, 5000*1024/8, 800*1024/8))
	}

	// The first Run allocates the browser under browserCtx; a deadline on
	// that context would take the process down with it once it expires.
	stop := context.AfterFunc(ctx, cancel)
	err = chromedp.Run(browserCtx, startup...)
	stop()
	if err != nil {
		_ = c.Close()
		return nil, fmt.Errorf("failed to launch chromium: %w", err)
	}

	return c, nil
}

// chromeDPContext is one Chromium process with its single tab.
type chromeDPContext struct {
	userDataDir string
	allocCancel context.CancelFunc
	cancel      context.CancelFunc
	browserCtx  context.Context
	page        *chromeDPPage

	closeOnce sync.Once
	closeErr  error
}

func (c *chromeDPContext) Pages() []Page {
	return []Page{c.page}
}

// StorageState snapshots cookies and the local storage of the current origin.
func (c *chromeDPContext) StorageState(ctx context.Context, path string) error {
	var (
		cookies []*network.Cookie
		origin  string
		entries [][]string
	)

	err := c.page.run(ctx, c.page.config.ActionTimeout,
		chromedp.ActionFunc(func(ctx context.Context) error {
			var err error
			cookies, err = storage.GetCookies().Do(ctx)
			return err
		}),
		chromedp.Evaluate(`window.location.origin`, &origin),
		chromedp.Evaluate(`Object.entries(window.localStorage)`, &entries),
	)
	if err != nil {
		return fmt.Errorf("failed to read storage state: %w", err)
	}

	return writeStorageState(path, stateFromCDP(cookies, origin, entries))
}

// Close stops the browser and removes the user data directory.
func (c *chromeDPContext) Close() error {
	c.closeOnce.Do(func() {
		c.page.observer.Close()
		if err := chromedp.Cancel(c.browserCtx); err != nil && err != context.Canceled {
			c.closeErr = fmt.Errorf("failed to close browser: %w", err)
		}
		c.cancel()
		c.allocCancel()
		if err := os.RemoveAll(c.userDataDir); err != nil && c.closeErr == nil {
			c.closeErr = fmt.Errorf("failed to remove user data dir: %w", err)
		}
	})
	return c.closeErr
}

// chromeDPPage drives the tab of a chromeDPContext.
type chromeDPPage struct {
	ctx      context.Context
	config   *DriverConfig
	observer *NetworkObserver
	auth     *authResponder
}

// run executes actions on the tab with a timeout, honouring cancellation of
// the caller's ctx as well.
func (p *chromeDPPage) run(ctx context.Context, timeout time.Duration, actions ...chromedp.Action) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	execCtx, cancel := context.WithTimeout(p.ctx, timeout)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	return chromedp.Run(execCtx, actions...)
}

func (p *chromeDPPage) Goto(ctx context.Context, url string, waitUntil WaitUntil) error {
	if err := validateURL(url); err != nil {
		return err
	}

	if err := p.run(ctx, p.config.NavigationTimeout, chromedp.Navigate(url)); err != nil {
		return fmt.Errorf("navigation to %s failed: %w", url, err)
	}

	if waitUntil != WaitNetworkIdle {
		return nil
	}

	idleCtx, cancel := context.WithTimeout(ctx, p.config.NavigationTimeout)
	defer cancel()
	if err := p.observer.WaitIdle(idleCtx); err != nil {
		return fmt.Errorf("waiting for network idle on %s: %w", url, err)
	}
	return nil
}

func (p *chromeDPPage) Click(ctx context.Context, selector string) error {
	return p.run(ctx, p.config.ActionTimeout,
		chromedp.Click(selector, chromedp.ByQuery, chromedp.NodeVisible),
	)
}

func (p *chromeDPPage) Fill(ctx context.Context, selector, value string) error {
	return p.run(ctx, p.config.ActionTimeout,
		chromedp.WaitVisible(selector, chromedp.ByQuery),
		chromedp.Clear(selector, chromedp.ByQuery),
		chromedp.SendKeys(selector, value, chromedp.ByQuery),
	)
}

func (p *chromeDPPage) WaitVisible(ctx context.Context, selector string, timeout time.Duration) error {
	if timeout <= 0 {
		timeout = p.config.ActionTimeout
	}
	return p.run(ctx, timeout, chromedp.WaitVisible(selector, chromedp.ByQuery))
}

func (p *chromeDPPage) URL(ctx context.Context) (string, error) {
	var location string
	if err := p.run(ctx, p.config.ActionTimeout, chromedp.Location(&location)); err != nil {
		return "", err
	}
	return location, nil
}

func (p *chromeDPPage) Screenshot(ctx context.Context) ([]byte, error) {
	var buf []byte
	if err := p.run(ctx, p.config.ActionTimeout, chromedp.CaptureScreenshot(&buf)); err != nil {
		return nil, fmt.Errorf("failed to capture screenshot: %w", err)
	}
	return buf, nil
}

// SetHTTPCredentials answers basic-auth challenges from origin. Once set,
// every request of the tab passes through the fetch domain.
func (p *chromeDPPage) SetHTTPCredentials(ctx context.Context, origin, username, password string) error {
	p.auth.set(&httpCredentials{origin: origin, username: username, password: password})
	return p.run(ctx, p.config.ActionTimeout, fetch.Enable().WithHandleAuthRequests(true))
}

// handleFetch resumes requests paused by the fetch domain. It runs on the
// event loop of the tab, so replies are sent from their own goroutine.
func (p *chromeDPPage) handleFetch(ev interface{}) {
	switch ev := ev.(type) {
	case *fetch.EventRequestPaused:
		go p.fetchDo(fetch.ContinueRequest(ev.RequestID))
	case *fetch.EventAuthRequired:
		go p.fetchDo(fetch.ContinueWithAuth(ev.RequestID, p.auth.respond(ev.RequestID, ev.AuthChallenge)))
	}
}

func (p *chromeDPPage) fetchDo(action chromedp.Action) {
	// Errors only happen once the tab is gone.
	_ = chromedp.Run(p.ctx, action)
}

// authResponder decides how a tab answers HTTP auth challenges. A request
// is given the credentials once; a second challenge means they were
// rejected and the request is cancelled instead of looping.
type authResponder struct {
	mu       sync.Mutex
	creds    *httpCredentials
	answered map[fetch.RequestID]bool
}

func newAuthResponder() *authResponder {
	return &authResponder{answered: make(map[fetch.RequestID]bool)}
}

func (r *authResponder) set(creds *httpCredentials) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.creds = creds
}

func (r *authResponder) respond(id fetch.RequestID, challenge *fetch.AuthChallenge) *fetch.AuthChallengeResponse {
	r.mu.Lock()
	defer r.mu.Unlock()

	if challenge == nil || challenge.Source == fetch.AuthChallengeSourceProxy || !r.creds.matches(challenge.Origin) {
		return &fetch.AuthChallengeResponse{Response: fetch.AuthChallengeResponseResponseDefault}
	}
	if r.answered[id] {
		return &fetch.AuthChallengeResponse{Response: fetch.AuthChallengeResponseResponseCancelAuth}
	}
	r.answered[id] = true
	return &fetch.AuthChallengeResponse{
		Response: fetch.AuthChallengeResponseResponseProvideCredentials,
		Username: r.creds.username,
		Password: r.creds.password,
	}
}

// Ensure ChromeDPLauncher implements Launcher
var _ Launcher = (*ChromeDPLauncher)(nil)
