package browser

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"path/filepath"

	"github.com/chromedp/cdproto/network"
	"github.com/natefinch/atomic"
)

// StorageState mirrors the Playwright storage-state file so that tests can
// load state produced by either launcher.
type StorageState struct {
	Cookies []StateCookie `json:"cookies"`
	Origins []OriginState `json:"origins"`
}

// StateCookie is a cookie entry of a storage-state file.
type StateCookie struct {
	Name     string  `json:"name"`
	Value    string  `json:"value"`
	Domain   string  `json:"domain"`
	Path     string  `json:"path"`
	Expires  float64 `json:"expires"`
	HTTPOnly bool    `json:"httpOnly"`
	Secure   bool    `json:"secure"`
	SameSite string  `json:"sameSite"`
}

// OriginState holds the local storage of one origin.
type OriginState struct {
	Origin       string      `json:"origin"`
	LocalStorage []NameValue `json:"localStorage"`
}

// NameValue is a local storage item.
type NameValue struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// stateFromCDP converts CDP cookies and local storage entries into a StorageState.
func stateFromCDP(cookies []*network.Cookie, origin string, entries [][]string) *StorageState {
	state := &StorageState{
		Cookies: make([]StateCookie, 0, len(cookies)),
		Origins: []OriginState{},
	}

	for _, c := range cookies {
		expires := c.Expires
		if c.Session {
			expires = -1
		}
		sameSite := string(c.SameSite)
		if sameSite == "" {
			sameSite = "Lax"
		}
		state.Cookies = append(state.Cookies, StateCookie{
			Name:     c.Name,
			Value:    c.Value,
			Domain:   c.Domain,
			Path:     c.Path,
			Expires:  expires,
			HTTPOnly: c.HTTPOnly,
			Secure:   c.Secure,
			SameSite: sameSite,
		})
	}

	// about:blank and data: pages report an opaque origin
	if origin == "" || origin == "null" || len(entries) == 0 {
		return state
	}

	items := make([]NameValue, 0, len(entries))
	for _, e := range entries {
		if len(e) != 2 {
			continue
		}
		items = append(items, NameValue{Name: e[0], Value: e[1]})
	}
	state.Origins = append(state.Origins, OriginState{Origin: origin, LocalStorage: items})

	return state
}

// writeStorageState writes the state as a whole file, creating parent directories.
func writeStorageState(path string, state *StorageState) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create storage state directory: %w", err)
	}

	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode storage state: %w", err)
	}

	if err := atomic.WriteFile(path, bytes.NewReader(data)); err != nil {
		return fmt.Errorf("failed to write storage state %s: %w", path, err)
	}
	return nil
}

// validateURL rejects navigation targets that a browser would refuse.
func validateURL(raw string) error {
	if raw == "" {
		return fmt.Errorf("cannot navigate to an empty URL: %w", ErrInvalidURL)
	}
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("cannot navigate to %q: %w", raw, ErrInvalidURL)
	}
	if u.Scheme == "" || (u.Host == "" && u.Scheme != "about" && u.Scheme != "data" && u.Scheme != "file") {
		return fmt.Errorf("cannot navigate to %q: %w", raw, ErrInvalidURL)
	}
	return nil
}
