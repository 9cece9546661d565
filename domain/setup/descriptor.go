// Package setup defines global setup descriptors: one login routine per
// experience site, with its caching and execution policy.
package setup

import (
	"errors"
	"fmt"
	"time"

	"github.com/matspina/screen-play-wright/core/screenplay"
	"github.com/matspina/screen-play-wright/infrastructure/browser"
)

// ErrInvalidDescriptor is returned by NewDescriptor for incomplete settings.
var ErrInvalidDescriptor = errors.New("invalid setup descriptor")

// Settings configures a Descriptor.
type Settings struct {
	// Actor performs the routines. Nil gets an actor named after the site.
	Actor *screenplay.Actor

	// ExperienceName groups sites under a product, e.g. "DEMO SITE"
	ExperienceName string

	// SiteName names the site within the experience
	SiteName string

	// TestsPath marks the tests that need this setup: any test whose path
	// contains it
	TestsPath string

	// SignIn performs the login flow
	SignIn screenplay.Activity

	// Assertion optionally verifies the login succeeded
	Assertion screenplay.Question

	// StorageStateFile receives the session state. Empty skips persisting it.
	StorageStateFile string

	// Browser is the engine to run in. Empty means Chromium.
	Browser browser.Name

	// SkipOnCI skips the setup when running on CI
	SkipOnCI bool

	// ForceHeadless overrides the headless setting when non-nil
	ForceHeadless *bool

	// CacheTTL is how long a successful run stays valid, in minutes.
	// Zero disables caching.
	CacheTTL int
}

// Descriptor is an immutable, validated setup definition.
type Descriptor struct {
	actor            *screenplay.Actor
	experienceName   string
	siteName         string
	testsPath        string
	signIn           screenplay.Activity
	assertion        screenplay.Question
	storageStateFile string
	browser          browser.Name
	skipOnCI         bool
	forceHeadless    *bool
	cacheTTL         int
}

// NewDescriptor validates settings and builds a Descriptor.
func NewDescriptor(s Settings) (*Descriptor, error) {
	switch {
	case s.ExperienceName == "":
		return nil, fmt.Errorf("%w: experience name is required", ErrInvalidDescriptor)
	case s.SiteName == "":
		return nil, fmt.Errorf("%w: site name is required", ErrInvalidDescriptor)
	case s.TestsPath == "":
		return nil, fmt.Errorf("%w: %s > %s: tests path is required", ErrInvalidDescriptor, s.ExperienceName, s.SiteName)
	case s.SignIn == nil:
		return nil, fmt.Errorf("%w: %s > %s: sign in routine is required", ErrInvalidDescriptor, s.ExperienceName, s.SiteName)
	case s.CacheTTL < 0:
		return nil, fmt.Errorf("%w: %s > %s: cache ttl must not be negative", ErrInvalidDescriptor, s.ExperienceName, s.SiteName)
	}

	name := s.Browser
	switch name {
	case "":
		name = browser.Chromium
	case browser.Chromium, browser.WebKit:
	default:
		return nil, fmt.Errorf("%w: %s > %s: unknown browser %q", ErrInvalidDescriptor, s.ExperienceName, s.SiteName, name)
	}

	actor := s.Actor
	if actor == nil {
		actor = screenplay.Named(s.SiteName)
	}

	d := &Descriptor{
		actor:            actor,
		experienceName:   s.ExperienceName,
		siteName:         s.SiteName,
		testsPath:        s.TestsPath,
		signIn:           s.SignIn,
		assertion:        s.Assertion,
		storageStateFile: s.StorageStateFile,
		browser:          name,
		skipOnCI:         s.SkipOnCI,
		cacheTTL:         s.CacheTTL,
	}
	if s.ForceHeadless != nil {
		v := *s.ForceHeadless
		d.forceHeadless = &v
	}
	return d, nil
}

// Identity is the cache key of the descriptor: experience name followed by site name.
func (d *Descriptor) Identity() string { return d.experienceName + d.siteName }

// Label is the display name, e.g. "DEMO SITE > Sample Page Test".
func (d *Descriptor) Label() string { return d.experienceName + " > " + d.siteName }

func (d *Descriptor) ExperienceName() string         { return d.experienceName }
func (d *Descriptor) SiteName() string               { return d.siteName }
func (d *Descriptor) TestsPath() string              { return d.testsPath }
func (d *Descriptor) SignIn() screenplay.Activity    { return d.signIn }
func (d *Descriptor) Assertion() screenplay.Question { return d.assertion }
func (d *Descriptor) StorageStateFile() string       { return d.storageStateFile }
func (d *Descriptor) Browser() browser.Name          { return d.browser }
func (d *Descriptor) SkipOnCI() bool                 { return d.skipOnCI }
func (d *Descriptor) CacheTTL() int                  { return d.cacheTTL }

// CacheDuration is CacheTTL as a duration.
func (d *Descriptor) CacheDuration() time.Duration {
	return time.Duration(d.cacheTTL) * time.Minute
}

// ForceHeadless returns the headless override and whether one is set.
func (d *Descriptor) ForceHeadless() (headless, ok bool) {
	if d.forceHeadless == nil {
		return false, false
	}
	return *d.forceHeadless, true
}

// Headless resolves the headless mode: the override when set, otherwise def.
func (d *Descriptor) Headless(def bool) bool {
	if v, ok := d.ForceHeadless(); ok {
		return v
	}
	return def
}

// ForcesHeaded reports whether the descriptor explicitly asks for a visible browser.
func (d *Descriptor) ForcesHeaded() bool {
	v, ok := d.ForceHeadless()
	return ok && !v
}

// NewActor returns a fresh copy of the descriptor's actor without abilities.
func (d *Descriptor) NewActor() *screenplay.Actor {
	return d.actor.Clone()
}

// ActorName returns the name of the actor performing the routines.
func (d *Descriptor) ActorName() string {
	return d.actor.Name()
}
