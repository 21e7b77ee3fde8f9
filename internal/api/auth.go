package api

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"net/http"
	"net/url"
	"time"

	"go.uber.org/zap"

	"github.com/flowgate-io/flowgate/internal/broker"
	"github.com/flowgate-io/flowgate/internal/platform"
)

// stateCookieName carries the OAuth state between the login redirect and
// the callback. Short-lived and bound to the browser, never stored
// server-side.
const stateCookieName = "flowgate_oauth_state"

// stateCookieMaxAge bounds how long a login attempt may sit between the
// redirect to the provider and the callback.
const stateCookieMaxAge = 5 * time.Minute

// AuthURLBuilder produces the provider's authorization URL for a state.
type AuthURLBuilder interface {
	AuthCodeURL(state string) string
}

// CallbackProcessor runs the callback orchestration for a code.
type CallbackProcessor interface {
	HandleCallback(ctx context.Context, code string) (*broker.Delivery, error)
}

// PlatformEndpoints is the slice of the platform client the handler needs
// for rendering deliveries.
type PlatformEndpoints interface {
	CookieName() string
	LoginURL() string
	LandingURL() string
}

// AuthHandlerConfig holds the AuthHandler's wiring and policy knobs.
type AuthHandlerConfig struct {
	AuthURL  AuthURLBuilder
	Callback CallbackProcessor
	Platform PlatformEndpoints
	Logger   *zap.Logger

	// Secure controls whether cookies carry the Secure flag. True when
	// the bridge is served over HTTPS.
	Secure bool

	// CookieMaxAge is the fallback lifetime for the re-issued platform
	// cookie when its expiry cannot be read from the credential itself.
	CookieMaxAge time.Duration

	// ErrorRedirectURL receives the browser on callback failure, with the
	// reason appended as an "error" query parameter. When empty, failures
	// are answered with a JSON error instead.
	ErrorRedirectURL string
}

// AuthHandler implements the browser-facing authentication endpoints.
type AuthHandler struct {
	cfg    AuthHandlerConfig
	logger *zap.Logger
}

// NewAuthHandler creates an AuthHandler.
func NewAuthHandler(cfg AuthHandlerConfig) *AuthHandler {
	return &AuthHandler{cfg: cfg, logger: cfg.Logger.Named("api.auth")}
}

// Login starts the authorization-code flow: it plants the state cookie and
// redirects the browser to the identity provider.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	state, err := randomState()
	if err != nil {
		h.logger.Error("generating oauth state", zap.Error(err))
		ErrInternal(w)
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     stateCookieName,
		Value:    state,
		Path:     "/",
		MaxAge:   int(stateCookieMaxAge.Seconds()),
		HttpOnly: true,
		Secure:   h.cfg.Secure,
		SameSite: http.SameSiteLaxMode,
	})

	http.Redirect(w, r, h.cfg.AuthURL.AuthCodeURL(state), http.StatusFound)
}

// Callback completes the flow: it validates state, hands the code to the
// orchestrator, and renders the resulting delivery. All failures land on
// the error redirect with a stable reason code — the browser never sees a
// raw error.
func (h *AuthHandler) Callback(w http.ResponseWriter, r *http.Request) {
	h.clearStateCookie(w)

	if providerErr := r.URL.Query().Get("error"); providerErr != "" {
		h.logger.Warn("provider returned error on callback", zap.String("error", providerErr))
		h.redirectError(w, r, broker.ReasonInvalidGrant)
		return
	}

	if !h.validState(r) {
		h.redirectError(w, r, "invalid_state")
		return
	}

	code := r.URL.Query().Get("code")
	if code == "" {
		h.redirectError(w, r, broker.ReasonInvalidGrant)
		return
	}

	delivery, err := h.cfg.Callback.HandleCallback(r.Context(), code)
	if err != nil {
		reason := broker.ReasonCode(err)
		h.logger.Warn("callback failed", zap.String("reason", reason), zap.Error(err))
		h.redirectError(w, r, reason)
		return
	}

	switch delivery.Mode {
	case broker.DeliverCookie:
		h.deliverCookie(w, r, delivery.Credential)
	default:
		h.deliverForm(w, delivery)
	}
}

// deliverCookie re-issues the platform's session cookie on the bridge's
// response and bounces the browser to the platform.
func (h *AuthHandler) deliverCookie(w http.ResponseWriter, r *http.Request, credential string) {
	http.SetCookie(w, &http.Cookie{
		Name:     h.cfg.Platform.CookieName(),
		Value:    credential,
		Path:     "/",
		Expires:  platform.CredentialExpiry(credential, time.Now(), h.cfg.CookieMaxAge),
		HttpOnly: true,
		Secure:   h.cfg.Secure,
		SameSite: http.SameSiteLaxMode,
	})
	http.Redirect(w, r, h.cfg.Platform.LandingURL(), http.StatusFound)
}

// deliverForm serves the self-submitting login page. The page posts the
// credentials to the platform's own login endpoint from the browser, so
// the platform sets its cookie first-party.
func (h *AuthHandler) deliverForm(w http.ResponseWriter, delivery *broker.Delivery) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	err := loginFormTemplate.Execute(w, loginFormData{
		LoginURL:   h.cfg.Platform.LoginURL(),
		LandingURL: h.cfg.Platform.LandingURL(),
		Email:      delivery.Email,
		Secret:     delivery.Secret,
	})
	if err != nil {
		h.logger.Error("rendering login form", zap.Error(err))
	}
}

// redirectError sends the browser to the configured error page with a
// stable reason code. Without a configured page it degrades to JSON.
func (h *AuthHandler) redirectError(w http.ResponseWriter, r *http.Request, reason string) {
	if h.cfg.ErrorRedirectURL == "" {
		errJSON(w, http.StatusBadGateway, "authentication failed", reason)
		return
	}

	target, err := url.Parse(h.cfg.ErrorRedirectURL)
	if err != nil {
		h.logger.Error("invalid error redirect url", zap.Error(err))
		ErrInternal(w)
		return
	}
	q := target.Query()
	q.Set("error", reason)
	target.RawQuery = q.Encode()

	http.Redirect(w, r, target.String(), http.StatusFound)
}

func (h *AuthHandler) validState(r *http.Request) bool {
	state := r.URL.Query().Get("state")
	cookie, err := r.Cookie(stateCookieName)
	return state != "" && err == nil && cookie.Value == state
}

func (h *AuthHandler) clearStateCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     stateCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.cfg.Secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// randomState returns 32 hex characters of CSPRNG state.
func randomState() (string, error) {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}
