package platform

import (
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ExtractCredential locates the platform's session cookie value in a login
// response. The response shape is not a stable contract, so two strategies
// run in order: the parsed cookie jar first, then a lenient scan of the
// raw Set-Cookie headers with a case-insensitive name match. Cookie
// attributes (domain, path, flags) are discarded — the bridge re-derives
// its own when re-issuing the cookie, so the platform's internal domain
// never leaks into the bridge's response.
//
// Absence is an expected outcome, not a fault: ok is false and the caller
// falls back to form delivery.
func (c *Client) ExtractCredential(resp *http.Response) (credential string, ok bool) {
	if resp == nil {
		return "", false
	}

	for _, cookie := range resp.Cookies() {
		if cookie.Name == c.cookieName && cookie.Value != "" {
			return cookie.Value, true
		}
	}

	// The jar misses cookies the platform emits with non-standard
	// attribute formatting. Scan the raw headers as a second pass.
	for _, header := range resp.Header.Values("Set-Cookie") {
		name, rest, found := strings.Cut(header, "=")
		if !found || !strings.EqualFold(strings.TrimSpace(name), c.cookieName) {
			continue
		}
		value, _, _ := strings.Cut(rest, ";")
		if value = strings.TrimSpace(value); value != "" {
			return value, true
		}
	}

	return "", false
}

// CredentialExpiry derives the expiry for a re-issued session cookie.
// The platform's credential is a JWT, so its own exp claim is the
// authoritative lifetime; the signature is deliberately not verified —
// the bridge only mirrors the expiry, it never trusts the claims for
// authorization. Opaque credentials fall back to the configured window.
func CredentialExpiry(credential string, now time.Time, fallback time.Duration) time.Time {
	token, _, err := jwt.NewParser().ParseUnverified(credential, jwt.MapClaims{})
	if err == nil {
		if exp, err := token.Claims.GetExpirationTime(); err == nil && exp != nil && exp.Time.After(now) {
			return exp.Time
		}
	}
	return now.Add(fallback)
}
