package setup

import (
	"errors"
	"fmt"
	"strings"

	"github.com/samber/lo"

	"github.com/matspina/screen-play-wright/infrastructure/browser"
)

// ErrNoSetupSucceeded is returned by the scheduler when setups were queued
// but none of them was fulfilled.
var ErrNoSetupSucceeded = errors.New("no global setup succeeded")

// acceptableMessages are error texts that mean the site has no URL in the
// selected environment. They cover errors raised outside the browser package.
var acceptableMessages = []string{
	"Invalid URL",
	"Cannot navigate to invalid URL",
	"expected string, got undefined",
}

// ToleratedError is returned for a setup whose site is not configured for
// the selected environment. The run continues without it.
type ToleratedError struct {
	Identity string
	Label    string
	Env      string
	Err      error
}

func (e *ToleratedError) Error() string {
	return fmt.Sprintf("setup %s is not configured for %s: %v", e.Label, e.Env, e.Err)
}

func (e *ToleratedError) Unwrap() error {
	return e.Err
}

// IsAcceptableError reports whether err only means that a site is not
// configured for the selected environment.
func IsAcceptableError(err error) bool {
	if err == nil {
		return false
	}

	var tolerated *ToleratedError
	if errors.As(err, &tolerated) || errors.Is(err, browser.ErrInvalidURL) {
		return true
	}

	msg := err.Error()
	return lo.ContainsBy(acceptableMessages, func(m string) bool {
		return strings.Contains(msg, m)
	})
}
