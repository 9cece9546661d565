// Package environment resolves which site URLs a test run targets.
package environment

import (
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"slices"
	"strings"
)

// ErrInvalidEnvironment is returned for an unknown environment or a malformed instance number.
var ErrInvalidEnvironment = errors.New("invalid environment")

// ValidEnvironments lists the environments a run can target.
var ValidEnvironments = []string{"dev", "qa", "uat", "prod"}

// DefaultInstance is used when the selection names no instance or one the experience lacks.
const DefaultInstance = "1"

// NoEnvironment is reported when an experience has no data for the selected environment.
const NoEnvironment = "NONE"

var (
	selectionPattern = regexp.MustCompile(`^([^\d]+)(.*)$`)
	instancePattern  = regexp.MustCompile(`^\d+$`)
)

// Selection is an environment plus an optional instance number, e.g. uat2.
type Selection struct {
	Env      string
	Instance string
}

// ParseSelection splits "uat2" into env "uat" and instance "2".
func ParseSelection(s string) (Selection, error) {
	m := selectionPattern.FindStringSubmatch(strings.TrimSpace(s))
	if m == nil {
		return Selection{}, fmt.Errorf("%w: %q", ErrInvalidEnvironment, s)
	}

	sel := Selection{Env: strings.ToLower(m[1]), Instance: m[2]}
	if !slices.Contains(ValidEnvironments, sel.Env) {
		return Selection{}, fmt.Errorf("%w: %q is not one of %s", ErrInvalidEnvironment, sel.Env, strings.Join(ValidEnvironments, " | "))
	}
	if sel.Instance != "" && !instancePattern.MatchString(sel.Instance) {
		return Selection{}, fmt.Errorf("%w: %q is not a valid environment number", ErrInvalidEnvironment, sel.Instance)
	}
	return sel, nil
}

// String renders the selection as typed by users, e.g. "UAT2".
func (s Selection) String() string {
	return strings.ToUpper(s.Env) + s.Instance
}

// Site is one site of an experience in one environment instance.
type Site struct {
	URL          string
	UsernameAuth string
	PasswordAuth string
}

// Map describes where the sites of an experience live per environment.
type Map struct {
	ExperienceName string
	ExperiencePath string

	// Environments maps env -> instance -> site name -> site.
	Environments map[string]map[string]map[string]Site
}

// SessionData is the resolved view of a Map for one selection.
type SessionData struct {
	Env      string
	Instance string
	Sites    map[string]Site
}

// SessionData resolves sel. A missing instance falls back to DefaultInstance;
// a missing environment yields NoEnvironment and no sites.
func (m *Map) SessionData(sel Selection) SessionData {
	instances, ok := m.Environments[sel.Env]
	if !ok {
		return SessionData{Env: NoEnvironment, Instance: NoEnvironment}
	}

	instance := sel.Instance
	if _, ok := instances[instance]; !ok {
		instance = DefaultInstance
	}

	sites := instances[instance]
	if sites == nil {
		sites = map[string]Site{}
	}
	return SessionData{Env: sel.Env, Instance: instance, Sites: sites}
}

// SessionSites returns the URL of every site for sel, with basic auth
// credentials embedded when the site has them.
func (m *Map) SessionSites(sel Selection) map[string]string {
	data := m.SessionData(sel)
	sites := make(map[string]string, len(data.Sites))
	for name, site := range data.Sites {
		sites[name] = site.finalURL()
	}
	return sites
}

func (s Site) finalURL() string {
	if s.UsernameAuth == "" && s.PasswordAuth == "" {
		return s.URL
	}
	u, err := url.Parse(s.URL)
	if err != nil {
		// navigation reports the invalid URL later
		return s.URL
	}
	if s.PasswordAuth != "" {
		u.User = url.UserPassword(s.UsernameAuth, s.PasswordAuth)
	} else {
		u.User = url.User(s.UsernameAuth)
	}
	return u.String()
}
