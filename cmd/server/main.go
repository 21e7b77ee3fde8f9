package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/flowgate-io/flowgate/internal/api"
	"github.com/flowgate-io/flowgate/internal/broker"
	"github.com/flowgate-io/flowgate/internal/db"
	"github.com/flowgate-io/flowgate/internal/housekeeping"
	"github.com/flowgate-io/flowgate/internal/identity"
	"github.com/flowgate-io/flowgate/internal/idp"
	"github.com/flowgate-io/flowgate/internal/platform"
	"github.com/flowgate-io/flowgate/internal/provision"
	"github.com/flowgate-io/flowgate/internal/repository"
	"github.com/flowgate-io/flowgate/internal/session"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

type config struct {
	httpAddr  string
	dbDriver  string
	dbDSN     string
	secretKey string
	logLevel  string

	issuerURL    string
	clientID     string
	clientSecret string
	redirectURL  string
	scopes       string

	platformURL    string
	platformCookie string

	cookieMaxAge     time.Duration
	reuseWindow      time.Duration
	errorRedirectURL string
	secureCookies    bool

	rateLimit float64
	rateBurst int
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	cfg := &config{}

	root := &cobra.Command{
		Use:   "flowgate",
		Short: "Flowgate — identity bridge between an OIDC provider and a workflow platform",
		Long: `Flowgate brokers single sign-on for a workflow automation platform.
It completes the OAuth authorization-code flow against the identity
provider, provisions matching platform accounts on first login, and hands
the browser a platform session, either by re-issuing the platform's
session cookie or by serving a self-submitting login page.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), cfg)
		},
	}

	root.AddCommand(newVersionCmd())

	flags := root.PersistentFlags()
	flags.StringVar(&cfg.httpAddr, "http-addr", envOrDefault("FLOWGATE_HTTP_ADDR", ":8080"), "HTTP listen address")
	flags.StringVar(&cfg.dbDriver, "db-driver", envOrDefault("FLOWGATE_DB_DRIVER", "sqlite"), "Database driver (sqlite or postgres)")
	flags.StringVar(&cfg.dbDSN, "db-dsn", envOrDefault("FLOWGATE_DB_DSN", "./flowgate.db"), "Database DSN or file path for SQLite")
	flags.StringVar(&cfg.secretKey, "secret-key", envOrDefault("FLOWGATE_SECRET_KEY", ""), "32-byte key for encrypting login secrets at rest (required)")
	flags.StringVar(&cfg.logLevel, "log-level", envOrDefault("FLOWGATE_LOG_LEVEL", "info"), "Log level (debug, info, warn, error)")

	flags.StringVar(&cfg.issuerURL, "issuer-url", envOrDefault("FLOWGATE_ISSUER_URL", ""), "OIDC issuer URL of the identity provider (required)")
	flags.StringVar(&cfg.clientID, "client-id", envOrDefault("FLOWGATE_CLIENT_ID", ""), "OAuth client ID (required)")
	flags.StringVar(&cfg.clientSecret, "client-secret", envOrDefault("FLOWGATE_CLIENT_SECRET", ""), "OAuth client secret (required)")
	flags.StringVar(&cfg.redirectURL, "redirect-url", envOrDefault("FLOWGATE_REDIRECT_URL", ""), "Callback URL registered at the provider (required)")
	flags.StringVar(&cfg.scopes, "scopes", envOrDefault("FLOWGATE_SCOPES", ""), "OAuth scopes, comma separated (default: openid,profile,email)")

	flags.StringVar(&cfg.platformURL, "platform-url", envOrDefault("FLOWGATE_PLATFORM_URL", ""), "Base URL of the workflow platform (required)")
	flags.StringVar(&cfg.platformCookie, "platform-cookie", envOrDefault("FLOWGATE_PLATFORM_COOKIE", "n8n-auth"), "Name of the platform's session cookie")

	flags.DurationVar(&cfg.cookieMaxAge, "cookie-max-age", envDurationOrDefault("FLOWGATE_COOKIE_MAX_AGE", 168*time.Hour), "Fallback lifetime for the re-issued session cookie")
	flags.DurationVar(&cfg.reuseWindow, "session-reuse-window", envDurationOrDefault("FLOWGATE_SESSION_REUSE_WINDOW", session.DefaultReuseWindow), "How long a fresh platform session is reused without a new login")
	flags.StringVar(&cfg.errorRedirectURL, "error-redirect-url", envOrDefault("FLOWGATE_ERROR_REDIRECT_URL", ""), "URL the browser is sent to on authentication failure")
	flags.BoolVar(&cfg.secureCookies, "secure-cookies", envOrDefault("FLOWGATE_SECURE_COOKIES", "true") == "true", "Set the Secure flag on cookies (disable only for plain-HTTP development)")

	flags.Float64Var(&cfg.rateLimit, "rate-limit", 5, "Sustained requests per second per client IP on auth endpoints")
	flags.IntVar(&cfg.rateBurst, "rate-burst", 10, "Burst size per client IP on auth endpoints")

	return root
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("flowgate %s (commit: %s, built: %s)\n", version, commit, date)
		},
	}
}

func run(ctx context.Context, cfg *config) error {
	logger, err := buildLogger(cfg.logLevel)
	if err != nil {
		return fmt.Errorf("failed to build logger: %w", err)
	}
	defer logger.Sync() //nolint:errcheck

	if err := validate(cfg); err != nil {
		return err
	}

	logger.Info("starting flowgate",
		zap.String("version", version),
		zap.String("http_addr", cfg.httpAddr),
		zap.String("db_driver", cfg.dbDriver),
		zap.String("issuer_url", cfg.issuerURL),
		zap.String("platform_url", cfg.platformURL),
	)

	ctx, cancel := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := db.InitEncryption([]byte(cfg.secretKey)); err != nil {
		return err
	}

	database, err := db.New(db.Config{
		Driver: cfg.dbDriver,
		DSN:    cfg.dbDSN,
		Logger: logger,
	})
	if err != nil {
		return err
	}

	idpClient, err := idp.New(ctx, idp.Config{
		IssuerURL:    cfg.issuerURL,
		ClientID:     cfg.clientID,
		ClientSecret: cfg.clientSecret,
		RedirectURL:  cfg.redirectURL,
		Scopes:       splitScopes(cfg.scopes),
	})
	if err != nil {
		return err
	}

	platformClient := platform.NewClient(platform.Config{
		BaseURL:    cfg.platformURL,
		CookieName: cfg.platformCookie,
	})

	provisioner := provision.New(repository.NewWorkflowRepository(database), logger)
	reconciler := identity.NewReconciler(database, provisioner, logger)

	sessions := session.NewStore()
	locks := session.NewLocks()

	orchestrator := broker.NewOrchestrator(locks, sessions, idpClient, reconciler, platformClient, cfg.reuseWindow, logger)
	logouts := broker.NewLogoutReconciler(repository.NewAccountRepository(database), sessions, platformClient, logger)

	housekeeper, err := housekeeping.New(sessions, locks, logouts, housekeeping.Config{}, logger)
	if err != nil {
		return err
	}
	if err := housekeeper.Start(); err != nil {
		return err
	}
	defer housekeeper.Stop() //nolint:errcheck

	router := api.NewRouter(api.RouterConfig{
		Auth: api.NewAuthHandler(api.AuthHandlerConfig{
			AuthURL:          idpClient,
			Callback:         orchestrator,
			Platform:         platformClient,
			Logger:           logger,
			Secure:           cfg.secureCookies,
			CookieMaxAge:     cfg.cookieMaxAge,
			ErrorRedirectURL: cfg.errorRedirectURL,
		}),
		Webhook: api.NewWebhookHandler(logouts, logger),
		Limiter: api.NewIPRateLimiter(cfg.rateLimit, cfg.rateBurst),
		Logger:  logger,
	})

	server := &http.Server{
		Addr:              cfg.httpAddr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("http server listening", zap.String("addr", cfg.httpAddr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("http server error: %w", err)
	case <-ctx.Done():
	}

	logger.Info("shutting down flowgate")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()
	return server.Shutdown(shutdownCtx)
}

func validate(cfg *config) error {
	required := []struct{ value, flag, env string }{
		{cfg.secretKey, "--secret-key", "FLOWGATE_SECRET_KEY"},
		{cfg.issuerURL, "--issuer-url", "FLOWGATE_ISSUER_URL"},
		{cfg.clientID, "--client-id", "FLOWGATE_CLIENT_ID"},
		{cfg.clientSecret, "--client-secret", "FLOWGATE_CLIENT_SECRET"},
		{cfg.redirectURL, "--redirect-url", "FLOWGATE_REDIRECT_URL"},
		{cfg.platformURL, "--platform-url", "FLOWGATE_PLATFORM_URL"},
	}
	for _, req := range required {
		if req.value == "" {
			return fmt.Errorf("%s is required (or set %s)", req.flag, req.env)
		}
	}
	return nil
}

func splitScopes(scopes string) []string {
	if scopes == "" {
		return nil
	}
	parts := strings.Split(scopes, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func buildLogger(level string) (*zap.Logger, error) {
	var cfg zap.Config

	switch level {
	case "debug":
		cfg = zap.NewDevelopmentConfig()
	default:
		cfg = zap.NewProductionConfig()
	}

	switch level {
	case "debug":
		cfg.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	case "info":
		cfg.Level = zap.NewAtomicLevelAt(zap.InfoLevel)
	case "warn":
		cfg.Level = zap.NewAtomicLevelAt(zap.WarnLevel)
	case "error":
		cfg.Level = zap.NewAtomicLevelAt(zap.ErrorLevel)
	default:
		cfg.Level = zap.NewAtomicLevelAt(zap.InfoLevel)
	}

	return cfg.Build()
}

func envOrDefault(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func envDurationOrDefault(key string, defaultVal time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return defaultVal
}
