// Package broker contains the callback orchestration core: it sequences
// the exchange lock, the upstream code exchange, account reconciliation,
// the session-freshness decision and the platform login into a single
// delivery instruction for the HTTP layer, and reconciles logout events
// pushed by the identity provider.
package broker

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/flowgate-io/flowgate/internal/identity"
	"github.com/flowgate-io/flowgate/internal/idp"
	"github.com/flowgate-io/flowgate/internal/session"
)

// Exchanger redeems an authorization code for verified identity claims.
type Exchanger interface {
	Exchange(ctx context.Context, code string) (*idp.Claims, error)
}

// AccountResolver maps verified claims to a platform account.
type AccountResolver interface {
	Reconcile(ctx context.Context, claims *idp.Claims) (*identity.Resolved, error)
}

// PlatformSession is the slice of the platform client the orchestrator
// needs: performing the server-side login and pulling the session cookie
// out of its response.
type PlatformSession interface {
	Login(ctx context.Context, email, secret string) (*http.Response, error)
	ExtractCredential(resp *http.Response) (string, bool)
}

// Orchestrator drives the authentication callback end to end.
type Orchestrator struct {
	locks       *session.Locks
	sessions    *session.Store
	exchanger   Exchanger
	resolver    AccountResolver
	platform    PlatformSession
	reuseWindow time.Duration
	logger      *zap.Logger
}

// NewOrchestrator wires the orchestrator. A non-positive reuseWindow falls
// back to session.DefaultReuseWindow.
func NewOrchestrator(
	locks *session.Locks,
	sessions *session.Store,
	exchanger Exchanger,
	resolver AccountResolver,
	platform PlatformSession,
	reuseWindow time.Duration,
	logger *zap.Logger,
) *Orchestrator {
	if reuseWindow <= 0 {
		reuseWindow = session.DefaultReuseWindow
	}
	return &Orchestrator{
		locks:       locks,
		sessions:    sessions,
		exchanger:   exchanger,
		resolver:    resolver,
		platform:    platform,
		reuseWindow: reuseWindow,
		logger:      logger.Named("broker"),
	}
}

// HandleCallback processes one authorization-code callback and returns the
// delivery instruction for the browser. The per-code lock is held for the
// whole sequence; the code is marked processed only once the exchange has
// genuinely been consumed, so a failed exchange stays retryable.
func (o *Orchestrator) HandleCallback(ctx context.Context, code string) (*Delivery, error) {
	lease, err := o.locks.Acquire(ctx, code)
	if err != nil {
		callbacksTotal.WithLabelValues(ReasonCode(err)).Inc()
		return nil, err
	}
	defer lease.Release()

	claims, err := o.exchanger.Exchange(ctx, code)
	if err != nil {
		callbacksTotal.WithLabelValues(ReasonCode(err)).Inc()
		return nil, err
	}

	resolved, err := o.resolver.Reconcile(ctx, claims)
	if err != nil {
		// The code was consumed at the provider even though reconciliation
		// failed; a retry with the same code can never succeed.
		lease.MarkProcessed()
		callbacksTotal.WithLabelValues(ReasonCode(err)).Inc()
		return nil, err
	}

	accountID := resolved.Account.ID
	log := o.logger.With(zap.String("email", resolved.Account.Email))

	if rec, decision := o.sessions.Evaluate(accountID, o.reuseWindow); decision == session.DecisionReuse {
		sessionDecisionsTotal.WithLabelValues("reuse").Inc()
		lease.MarkProcessed()
		callbacksTotal.WithLabelValues("cookie").Inc()
		log.Info("reusing fresh platform session")
		return &Delivery{Mode: DeliverCookie, Credential: rec.Credential}, nil
	}
	sessionDecisionsTotal.WithLabelValues("login").Inc()

	delivery := o.loginAndDeliver(ctx, accountID, resolved, log)
	lease.MarkProcessed()
	return delivery, nil
}

// loginAndDeliver performs the server-side platform login and chooses the
// delivery mode. Login failures are not fatal for the callback: the user
// still holds valid platform credentials, so the form fallback lets the
// browser log in directly. An outright login failure leaves the session
// record untouched so a stale timestamp is not refreshed by a non-login.
func (o *Orchestrator) loginAndDeliver(ctx context.Context, accountID uuid.UUID, resolved *identity.Resolved, log *zap.Logger) *Delivery {
	form := &Delivery{Mode: DeliverForm, Email: resolved.Account.Email, Secret: resolved.Secret}

	resp, err := o.platform.Login(ctx, resolved.Account.Email, resolved.Secret)
	if err != nil {
		platformLoginsTotal.WithLabelValues("failed").Inc()
		callbacksTotal.WithLabelValues("form").Inc()
		log.Warn("platform login failed, falling back to form delivery", zap.Error(err))
		return form
	}

	credential, ok := o.platform.ExtractCredential(resp)
	if !ok {
		// Login succeeded but no cookie surfaced. Remember the attempt as
		// non-persistent so the next callback does not try to reuse it.
		o.sessions.Put(accountID, "", false)
		platformLoginsTotal.WithLabelValues("no_cookie").Inc()
		callbacksTotal.WithLabelValues("form").Inc()
		log.Warn("platform login returned no session cookie, falling back to form delivery")
		return form
	}

	o.sessions.Put(accountID, credential, true)
	platformLoginsTotal.WithLabelValues("ok").Inc()
	callbacksTotal.WithLabelValues("cookie").Inc()
	log.Info("platform session established")
	return &Delivery{Mode: DeliverCookie, Credential: credential}
}
