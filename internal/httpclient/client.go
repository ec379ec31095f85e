// Package httpclient provides the HTTP client used for tracker
// synchronization calls, with cookie support and guarded redirects.
package httpclient

import (
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"

	"github.com/telemat/jiraload/errors"
)

// Client wraps http.Client for the post-commit synchronization calls. The
// tracker authenticates with session cookies, so a jar is always attached.
type Client struct {
	*http.Client
	allowedSchemes []string
	maxRedirects   int
}

// New creates an HTTP client bound to the given timeout. The tracker is
// commonly reachable only on an internal network, so private addresses are
// not rejected; schemes and redirect depth are.
func New(timeout time.Duration) *Client {
	jar, _ := cookiejar.New(nil)
	client := &Client{
		Client: &http.Client{
			Timeout: timeout,
			Jar:     jar,
		},
		allowedSchemes: []string{"http", "https"},
		maxRedirects:   10,
	}

	client.CheckRedirect = func(req *http.Request, via []*http.Request) error {
		if len(via) >= client.maxRedirects {
			return errors.Newf("stopped after %d redirects", client.maxRedirects)
		}
		if err := client.ValidateURL(req.URL); err != nil {
			return errors.Wrap(err, "redirect blocked")
		}
		return nil
	}
	return client
}

// DoNoRedirect performs a request and returns redirect responses instead
// of following them, sharing the session cookie jar. The tracker signals
// login and sudo outcomes through the redirect response itself.
func (c *Client) DoNoRedirect(req *http.Request) (*http.Response, error) {
	if err := c.ValidateURL(req.URL); err != nil {
		return nil, err
	}
	plain := &http.Client{
		Timeout:   c.Timeout,
		Jar:       c.Jar,
		Transport: c.Transport,
		CheckRedirect: func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
	return plain.Do(req)
}

// ValidateURL rejects URLs the synchronization calls must never follow.
func (c *Client) ValidateURL(u *url.URL) error {
	scheme := strings.ToLower(u.Scheme)
	allowed := false
	for _, allowedScheme := range c.allowedSchemes {
		if scheme == allowedScheme {
			allowed = true
			break
		}
	}
	if !allowed {
		return errors.Newf("scheme %q not allowed (allowed: %v)", scheme, c.allowedSchemes)
	}
	if u.User != nil {
		// Credential injection or URL confusion: http://evil.com@localhost/
		return errors.New("URL must not carry userinfo")
	}
	return nil
}
