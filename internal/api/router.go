package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// RouterConfig holds the dependencies needed to build the HTTP router.
// Populated in main.go after all components are initialized.
type RouterConfig struct {
	Auth    *AuthHandler
	Webhook *WebhookHandler
	Limiter *IPRateLimiter
	Logger  *zap.Logger
}

// NewRouter builds and returns the fully configured Chi router.
func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	// --- Global middleware ---
	// RequestID generates a unique ID for each request, used in logs for
	// tracing.
	r.Use(middleware.RequestID)

	// RealIP extracts the real client IP from X-Forwarded-For or X-Real-IP
	// headers when the server runs behind a reverse proxy.
	r.Use(middleware.RealIP)

	// RequestLogger logs every request with method, path, status and size.
	r.Use(RequestLogger(cfg.Logger))

	// Recoverer catches panics in handlers, logs them, and returns a 500
	// instead of crashing the server.
	r.Use(middleware.Recoverer)

	// --- Browser-facing routes (rate limited per client IP) ---
	r.Group(func(r chi.Router) {
		r.Use(RateLimit(cfg.Limiter))
		r.Get("/auth/login", cfg.Auth.Login)
		r.Get("/auth/callback", cfg.Auth.Callback)
	})

	// --- Provider-facing routes ---
	r.Post("/webhooks/logout", cfg.Webhook.Logout)

	// --- Operational routes ---
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		JSON(w, http.StatusOK, envelope{"status": "ok"})
	})
	r.Handle("/metrics", promhttp.Handler())

	return r
}
