package broker

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/flowgate-io/flowgate/internal/db"
	"github.com/flowgate-io/flowgate/internal/identity"
	"github.com/flowgate-io/flowgate/internal/repository"
	"github.com/flowgate-io/flowgate/internal/session"
)

// Event is a logout notification from the identity provider, reduced to
// the fields the reconciler acts on.
type Event struct {
	// ID identifies the delivery for idempotency. Providers retry webhook
	// deliveries, so the same ID may arrive more than once.
	ID string

	// Subject and Email identify the user who logged out. At least one
	// must be set for the event to be actionable.
	Subject string
	Email   string
}

// Outcome is the result of reconciling one logout event. Reported back in
// the webhook acknowledgement so the provider's delivery log is useful.
type Outcome string

const (
	OutcomeSessionCleared   Outcome = "session_cleared"
	OutcomeUserNotFound     Outcome = "user_not_found"
	OutcomeDownstreamFailed Outcome = "downstream_logout_failed"
	OutcomeDuplicate        Outcome = "duplicate"
	OutcomeIgnored          Outcome = "ignored"
	OutcomeLookupFailed     Outcome = "lookup_failed"
)

// PlatformLogout is the slice of the platform client the logout reconciler
// needs.
type PlatformLogout interface {
	Logout(ctx context.Context, credential string) error
}

// LogoutReconciler propagates provider-side logouts to the bridge's session
// records and to the platform. Processing is idempotent per event ID, and
// the local record is invalidated regardless of how the downstream call
// goes: the worst case of over-invalidation is one extra platform login.
type LogoutReconciler struct {
	accounts repository.AccountRepository
	sessions *session.Store
	platform PlatformLogout
	logger   *zap.Logger

	mu   sync.Mutex
	seen map[string]time.Time
	now  func() time.Time
}

// NewLogoutReconciler wires a LogoutReconciler.
func NewLogoutReconciler(accounts repository.AccountRepository, sessions *session.Store, platform PlatformLogout, logger *zap.Logger) *LogoutReconciler {
	return &LogoutReconciler{
		accounts: accounts,
		sessions: sessions,
		platform: platform,
		logger:   logger.Named("logout"),
		seen:     make(map[string]time.Time),
		now:      time.Now,
	}
}

// HandleEvent reconciles one logout event. Never returns an error: webhook
// deliveries are acknowledged regardless, and the outcome string carries
// what happened.
func (r *LogoutReconciler) HandleEvent(ctx context.Context, ev Event) Outcome {
	outcome := r.reconcile(ctx, ev)
	logoutEventsTotal.WithLabelValues(string(outcome)).Inc()
	return outcome
}

func (r *LogoutReconciler) reconcile(ctx context.Context, ev Event) Outcome {
	if ev.Subject == "" && ev.Email == "" {
		return OutcomeIgnored
	}
	if ev.ID != "" && !r.markSeen(ev.ID) {
		return OutcomeDuplicate
	}

	account, err := r.findAccount(ctx, ev)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return OutcomeUserNotFound
		}
		// An infrastructure failure, not a missing account: report it as
		// such so the provider's delivery log does not read as a clean miss.
		r.logger.Error("looking up account for logout event", zap.String("event_id", ev.ID), zap.Error(err))
		return OutcomeLookupFailed
	}

	log := r.logger.With(zap.String("email", account.Email), zap.String("event_id", ev.ID))

	rec := r.sessions.Get(account.ID)
	r.sessions.Invalidate(account.ID)

	if rec == nil || rec.Credential == "" {
		// No platform cookie on record to revoke. Rotating the login
		// secret is the only remaining lever: the platform binds its
		// session tokens to the password hash, so a rotation cuts any
		// session the bridge never saw.
		r.rotateCredentials(ctx, account, log)
		log.Info("logout reconciled without stored credential")
		return OutcomeSessionCleared
	}

	if err := r.platform.Logout(ctx, rec.Credential); err != nil {
		log.Warn("platform logout failed, rotating credentials instead", zap.Error(err))
		r.rotateCredentials(ctx, account, log)
		return OutcomeDownstreamFailed
	}

	log.Info("platform session terminated")
	return OutcomeSessionCleared
}

func (r *LogoutReconciler) findAccount(ctx context.Context, ev Event) (*db.Account, error) {
	if ev.Subject != "" {
		account, err := r.accounts.GetBySubject(ctx, ev.Subject)
		if err == nil {
			return account, nil
		}
		if !errors.Is(err, repository.ErrNotFound) {
			return nil, err
		}
	}
	if ev.Email == "" {
		return nil, repository.ErrNotFound
	}
	return r.accounts.GetByEmail(ctx, ev.Email)
}

// rotateCredentials is best effort. Failures are logged and swallowed: the
// local record is already invalidated, which is the part the bridge owns.
func (r *LogoutReconciler) rotateCredentials(ctx context.Context, account *db.Account, log *zap.Logger) {
	secret, err := identity.GenerateSecret()
	if err != nil {
		log.Error("generating replacement secret", zap.Error(err))
		return
	}
	hash, err := identity.HashSecret(secret)
	if err != nil {
		log.Error("hashing replacement secret", zap.Error(err))
		return
	}
	if err := r.accounts.RotateCredentials(ctx, account.ID, hash, db.EncryptedString(secret)); err != nil {
		log.Error("rotating credentials", zap.Error(err))
	}
}

// markSeen records an event ID, returning false when it was already seen.
func (r *LogoutReconciler) markSeen(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.seen[id]; ok {
		return false
	}
	r.seen[id] = r.now()
	return true
}

// PruneSeen drops event-ID markers older than maxAge and returns how many
// were removed.
func (r *LogoutReconciler) PruneSeen(maxAge time.Duration) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	cutoff := r.now().Add(-maxAge)
	pruned := 0
	for id, at := range r.seen {
		if at.Before(cutoff) {
			delete(r.seen, id)
			pruned++
		}
	}
	return pruned
}
