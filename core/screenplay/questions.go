package screenplay

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/cenkalti/backoff/v4"
)

const (
	// DefaultQuestionTimeout bounds how long a question waits for a positive answer.
	DefaultQuestionTimeout = 5 * time.Second

	minQuestionTimeout = time.Second
	pollInterval       = 100 * time.Millisecond
)

// PageURL checks the current page URL.
type PageURL struct {
	pattern *regexp.Regexp
	exact   string
	timeout time.Duration
}

// PageURLMatches asks whether the page URL matches pattern.
func PageURLMatches(pattern *regexp.Regexp) PageURL {
	return PageURL{pattern: pattern, timeout: DefaultQuestionTimeout}
}

// PageURLIs asks whether the page URL equals rawURL, ignoring credentials.
func PageURLIs(rawURL string) PageURL {
	return PageURL{exact: StripCredentials(rawURL), timeout: DefaultQuestionTimeout}
}

// WaitingUpTo returns a copy that keeps asking for up to d (at least one second).
func (q PageURL) WaitingUpTo(d time.Duration) PageURL {
	q.timeout = max(d, minQuestionTimeout)
	return q
}

func (q PageURL) AskAs(ctx context.Context, actor *Actor) error {
	page, err := BrowseTheWebAs(actor)
	if err != nil {
		return err
	}

	return poll(ctx, q.timeout, func(ctx context.Context) error {
		current, err := page.URL(ctx)
		if err != nil {
			return err
		}
		switch {
		case q.pattern != nil && !q.pattern.MatchString(current):
			return fmt.Errorf("page url %q does not match %s", current, q.pattern)
		case q.pattern == nil && current != q.exact:
			return fmt.Errorf("page url %q is not %q", current, q.exact)
		}
		return nil
	})
}

// ElementVisible checks that an element is visible.
type ElementVisible struct {
	selector string
	timeout  time.Duration
}

// IsElementVisible asks whether selector matches a visible element.
func IsElementVisible(selector string) ElementVisible {
	return ElementVisible{selector: selector, timeout: DefaultQuestionTimeout}
}

// WaitingUpTo returns a copy with a different timeout.
func (q ElementVisible) WaitingUpTo(d time.Duration) ElementVisible {
	q.timeout = max(d, minQuestionTimeout)
	return q
}

func (q ElementVisible) AskAs(ctx context.Context, actor *Actor) error {
	page, err := BrowseTheWebAs(actor)
	if err != nil {
		return err
	}
	if err := page.WaitVisible(ctx, q.selector, q.timeout); err != nil {
		return fmt.Errorf("element %s is not visible: %w", q.selector, err)
	}
	return nil
}

// poll calls check until it succeeds or timeout elapses, returning the last failure.
func poll(ctx context.Context, timeout time.Duration, check func(ctx context.Context) error) error {
	pollCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var last error
	err := backoff.Retry(func() error {
		last = check(pollCtx)
		if last != nil && ctx.Err() != nil {
			return backoff.Permanent(ctx.Err())
		}
		return last
	}, backoff.WithContext(backoff.NewConstantBackOff(pollInterval), pollCtx))

	if err == nil {
		return nil
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}
	if last != nil && errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("gave up after %s: %w", timeout, last)
	}
	return err
}

var (
	_ Question = PageURL{}
	_ Question = ElementVisible{}
)
