package screenplay

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/matspina/screen-play-wright/infrastructure/browser"
)

// Navigate opens a URL in the actor's page.
type Navigate struct {
	url       string
	waitUntil browser.WaitUntil
}

// NavigateTo builds a navigation that waits for the load event.
func NavigateTo(rawURL string) Navigate {
	return Navigate{url: rawURL, waitUntil: browser.WaitLoad}
}

// WaitingUntil returns a copy that waits for the given navigation state.
func (n Navigate) WaitingUntil(w browser.WaitUntil) Navigate {
	if w != "" {
		n.waitUntil = w
	}
	return n
}

// PerformAs navigates. Credentials embedded in the URL are sent as HTTP
// basic auth to the URL's origin instead of being part of the address.
func (n Navigate) PerformAs(ctx context.Context, actor *Actor) error {
	page, err := BrowseTheWebAs(actor)
	if err != nil {
		return err
	}

	target := n.url
	if username, password, stripped, ok := splitCredentials(n.url); ok {
		if err := page.SetHTTPCredentials(ctx, browser.Origin(stripped), username, password); err != nil {
			return fmt.Errorf("failed to set http credentials: %w", err)
		}
		target = stripped
	}

	return page.Goto(ctx, target, n.waitUntil)
}

// splitCredentials extracts user info from rawURL. ok is false when the URL
// carries no complete username and password pair.
func splitCredentials(rawURL string) (username, password, stripped string, ok bool) {
	u, err := url.Parse(rawURL)
	if err != nil || u.User == nil {
		return "", "", rawURL, false
	}
	password, hasPassword := u.User.Password()
	username = u.User.Username()
	if username == "" || !hasPassword {
		return "", "", rawURL, false
	}
	u.User = nil
	return username, password, u.String(), true
}

// StripCredentials removes user info from rawURL. Unparseable input is returned as is.
func StripCredentials(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return rawURL
	}
	u.User = nil
	return u.String()
}

// Click clicks an element.
type Click struct {
	selector string
}

// ClickOn builds a click on the first element matching selector.
func ClickOn(selector string) Click {
	return Click{selector: selector}
}

func (c Click) PerformAs(ctx context.Context, actor *Actor) error {
	page, err := BrowseTheWebAs(actor)
	if err != nil {
		return err
	}
	if err := page.Click(ctx, c.selector); err != nil {
		return fmt.Errorf("click on %s: %w", c.selector, err)
	}
	return nil
}

// Fill types into an input.
type Fill struct {
	selector string
	value    string
}

// FillIn builds a fill of selector with value.
func FillIn(selector, value string) Fill {
	return Fill{selector: selector, value: value}
}

func (f Fill) PerformAs(ctx context.Context, actor *Actor) error {
	page, err := BrowseTheWebAs(actor)
	if err != nil {
		return err
	}
	if err := page.Fill(ctx, f.selector, f.value); err != nil {
		return fmt.Errorf("fill %s: %w", f.selector, err)
	}
	return nil
}

// Wait waits for an element to become visible.
type Wait struct {
	selector string
	timeout  time.Duration
}

// WaitFor builds a wait on selector using the driver's default timeout.
func WaitFor(selector string) Wait {
	return Wait{selector: selector}
}

// UpTo returns a copy with an explicit timeout.
func (w Wait) UpTo(timeout time.Duration) Wait {
	w.timeout = timeout
	return w
}

func (w Wait) PerformAs(ctx context.Context, actor *Actor) error {
	page, err := BrowseTheWebAs(actor)
	if err != nil {
		return err
	}
	if err := page.WaitVisible(ctx, w.selector, w.timeout); err != nil {
		return fmt.Errorf("wait for %s: %w", w.selector, err)
	}
	return nil
}

// Pause sleeps for a fixed duration. Useful only while debugging flows.
type Pause time.Duration

func (p Pause) PerformAs(ctx context.Context, _ *Actor) error {
	t := time.NewTimer(time.Duration(p))
	defer t.Stop()

	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

var (
	_ Activity = Navigate{}
	_ Activity = Click{}
	_ Activity = Fill{}
	_ Activity = Wait{}
	_ Activity = Pause(0)
)
