package browser

import (
	"encoding/base64"
	"net/url"
	"strings"
)

// Origin returns the scheme://host[:port] part of rawURL with default ports
// removed, or "" when rawURL has no host.
func Origin(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return ""
	}
	scheme := strings.ToLower(u.Scheme)
	host := strings.ToLower(u.Hostname())
	port := u.Port()
	if (scheme == "http" && port == "80") || (scheme == "https" && port == "443") {
		port = ""
	}
	if port != "" {
		host += ":" + port
	}
	return scheme + "://" + host
}

// sameOrigin reports whether a and b share scheme, host and port.
func sameOrigin(a, b string) bool {
	oa := Origin(a)
	return oa != "" && oa == Origin(b)
}

// httpCredentials are basic-auth credentials bound to one origin.
type httpCredentials struct {
	origin   string
	username string
	password string
}

// matches reports whether requests to rawURL may carry the credentials.
func (c *httpCredentials) matches(rawURL string) bool {
	return c != nil && sameOrigin(c.origin, rawURL)
}

func (c *httpCredentials) header() string {
	return "Basic " + base64.StdEncoding.EncodeToString([]byte(c.username+":"+c.password))
}
