// Package platform implements the REST client for the downstream workflow
// platform's session endpoints, and the best-effort extraction of the
// platform's session cookie from login responses.
package platform

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// requestTimeout bounds every call to the platform. A platform that does
// not answer within this window is treated as a failed login, which routes
// the callback to the fallback delivery path rather than an error page.
const requestTimeout = 10 * time.Second

// defaultCookieName is the session cookie name used by n8n-compatible
// platforms. Overridable via Config for forks that rename it.
const defaultCookieName = "n8n-auth"

// Sentinel errors returned by the client.
var (
	// ErrLoginFailed is returned when the login call cannot reach the
	// platform or the platform answers with a non-2xx status. Non-fatal
	// for the callback flow — the orchestrator falls back to form delivery.
	ErrLoginFailed = errors.New("platform: login failed")

	// ErrLogoutFailed is returned when the logout call cannot reach the
	// platform or the platform rejects it.
	ErrLogoutFailed = errors.New("platform: logout failed")
)

// Config holds the static platform configuration.
type Config struct {
	// BaseURL is the platform's root URL, e.g. "https://flows.example.com".
	BaseURL string

	// CookieName is the platform's session cookie name.
	// Defaults to "n8n-auth".
	CookieName string
}

// Client talks to the platform's REST session endpoints. Safe for
// concurrent use. Redirects are never followed: the Set-Cookie headers of
// the immediate login response are the whole point of the call.
type Client struct {
	baseURL    string
	cookieName string
	http       *http.Client
}

// NewClient returns a Client for the given platform.
func NewClient(cfg Config) *Client {
	cookieName := cfg.CookieName
	if cookieName == "" {
		cookieName = defaultCookieName
	}
	return &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		cookieName: cookieName,
		http: &http.Client{
			Timeout: requestTimeout,
			CheckRedirect: func(*http.Request, []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
	}
}

// CookieName returns the platform's session cookie name.
func (c *Client) CookieName() string { return c.cookieName }

// LoginURL returns the platform's native login endpoint. The fallback
// delivery page posts the user's credentials here directly.
func (c *Client) LoginURL() string { return c.baseURL + "/rest/login" }

// LandingURL returns the page users are redirected to after login.
func (c *Client) LandingURL() string { return c.baseURL + "/home/workflows" }

// loginRequest is the JSON body the platform's login endpoint expects.
type loginRequest struct {
	EmailOrLDAPLoginID string `json:"emailOrLdapLoginId"`
	Password           string `json:"password"`
}

// Login authenticates against the platform and returns the raw response so
// the caller can extract the session cookie. The response body is drained
// and closed before returning — only status and headers remain meaningful.
// Transport failures and non-2xx statuses both wrap ErrLoginFailed.
func (c *Client) Login(ctx context.Context, email, secret string) (*http.Response, error) {
	body, err := json.Marshal(loginRequest{
		EmailOrLDAPLoginID: email,
		Password:           secret,
	})
	if err != nil {
		return nil, fmt.Errorf("platform: marshaling login request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.LoginURL(), bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("platform: building login request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrLoginFailed, err)
	}
	drainBody(resp)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("%w: platform returned status %d", ErrLoginFailed, resp.StatusCode)
	}

	return resp, nil
}

// Logout terminates the platform session identified by the given session
// cookie value. A missing credential still issues the call — the platform
// treats an unauthenticated logout as a no-op.
func (c *Client) Logout(ctx context.Context, credential string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/rest/logout", nil)
	if err != nil {
		return fmt.Errorf("platform: building logout request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if credential != "" {
		req.AddCookie(&http.Cookie{Name: c.cookieName, Value: credential})
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrLogoutFailed, err)
	}
	drainBody(resp)

	if resp.StatusCode >= 400 {
		return fmt.Errorf("%w: platform returned status %d", ErrLogoutFailed, resp.StatusCode)
	}

	return nil
}

// drainBody reads and closes the response body so the underlying
// connection can be reused.
func drainBody(resp *http.Response) {
	if resp.Body == nil {
		return
	}
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
	_ = resp.Body.Close()
}
