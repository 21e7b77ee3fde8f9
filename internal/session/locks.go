package session

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"sync"
	"time"
)

// Sentinel errors returned by Locks.
var (
	// ErrExchangeInProgress is returned when another request holds the
	// lease for the same authorization code and it was not released within
	// the acquire timeout (or immediately, for TryAcquire).
	ErrExchangeInProgress = errors.New("session: exchange already in progress for this code")

	// ErrCodeAlreadyProcessed is returned when the authorization code has
	// already been redeemed by a completed callback. Duplicate deliveries
	// (double-click, retried webhook, browser prefetch) land here.
	ErrCodeAlreadyProcessed = errors.New("session: authorization code already processed")
)

// defaultAcquireTimeout bounds how long a second arrival waits for the
// first holder to finish before giving up with ErrExchangeInProgress.
const defaultAcquireTimeout = 30 * time.Second

// codeLock is one per-code lease slot. sem is a one-slot semaphore: a
// buffered send acquires, a receive releases. refs counts the holder plus
// all waiters so idle entries can be dropped from the map.
type codeLock struct {
	sem  chan struct{}
	refs int
}

// Locks is the per-authorization-code mutual-exclusion guard. At most one
// callback may redeem a given code at any instant; authorization codes are
// single-use at the identity provider, and a second concurrent exchange
// would legitimately fail upstream and must not corrupt local state.
//
// Codes are keyed by a truncated SHA-256 digest so raw codes never sit in
// a long-lived map. Completed codes stay marked as processed until pruned,
// turning late duplicate deliveries into clean replay rejections.
type Locks struct {
	mu        sync.Mutex
	locks     map[string]*codeLock
	processed map[string]time.Time
	timeout   time.Duration
	now       func() time.Time
}

// NewLocks returns a Locks with the default 30s acquire timeout.
func NewLocks() *Locks {
	return NewLocksWithTimeout(defaultAcquireTimeout)
}

// NewLocksWithTimeout returns a Locks with a custom acquire timeout.
// Non-positive timeouts fall back to the default.
func NewLocksWithTimeout(timeout time.Duration) *Locks {
	if timeout <= 0 {
		timeout = defaultAcquireTimeout
	}
	return &Locks{
		locks:     make(map[string]*codeLock),
		processed: make(map[string]time.Time),
		timeout:   timeout,
		now:       time.Now,
	}
}

// Lease is a held exchange lock. Release must be called on every exit path
// of the critical section; it is idempotent. MarkProcessed should be called
// before Release when the exchange completed, so later arrivals for the
// same code are rejected as replays instead of re-exchanging.
type Lease struct {
	locks *Locks
	key   string
	entry *codeLock
	once  sync.Once
}

// Release frees the lease. Safe to call more than once.
func (le *Lease) Release() {
	le.once.Do(func() {
		<-le.entry.sem
		le.locks.unref(le.key, le.entry)
	})
}

// MarkProcessed records the code as redeemed. Call only while holding the
// lease, after the exchange has genuinely completed — a failed exchange is
// left unmarked so the user's retry can attempt it again.
func (le *Lease) MarkProcessed() {
	le.locks.mu.Lock()
	defer le.locks.mu.Unlock()
	le.locks.processed[le.key] = le.locks.now()
}

// Acquire obtains the lease for the given authorization code, waiting up to
// the acquire timeout if another request holds it. Returns
// ErrCodeAlreadyProcessed when the code was redeemed by an earlier
// callback, and ErrExchangeInProgress when the wait times out.
func (l *Locks) Acquire(ctx context.Context, code string) (*Lease, error) {
	key := lockKey(code)

	entry, err := l.ref(key)
	if err != nil {
		return nil, err
	}

	timer := time.NewTimer(l.timeout)
	defer timer.Stop()

	select {
	case entry.sem <- struct{}{}:
	case <-timer.C:
		l.unref(key, entry)
		return nil, ErrExchangeInProgress
	case <-ctx.Done():
		l.unref(key, entry)
		return nil, fmt.Errorf("session: acquiring exchange lock: %w", ctx.Err())
	}

	// The first holder may have completed the exchange while we waited —
	// observe its result instead of re-exchanging.
	l.mu.Lock()
	_, done := l.processed[key]
	l.mu.Unlock()
	if done {
		lease := &Lease{locks: l, key: key, entry: entry}
		lease.Release()
		return nil, ErrCodeAlreadyProcessed
	}

	return &Lease{locks: l, key: key, entry: entry}, nil
}

// TryAcquire is the fail-fast variant of Acquire: if the lease is held it
// returns ErrExchangeInProgress immediately instead of waiting.
func (l *Locks) TryAcquire(code string) (*Lease, error) {
	key := lockKey(code)

	entry, err := l.ref(key)
	if err != nil {
		return nil, err
	}

	select {
	case entry.sem <- struct{}{}:
		return &Lease{locks: l, key: key, entry: entry}, nil
	default:
		l.unref(key, entry)
		return nil, ErrExchangeInProgress
	}
}

// PruneProcessed drops processed-code markers older than maxAge and returns
// how many were removed. Authorization codes expire at the provider within
// minutes, so markers have no value beyond that horizon.
func (l *Locks) PruneProcessed(maxAge time.Duration) int {
	l.mu.Lock()
	defer l.mu.Unlock()

	cutoff := l.now().Add(-maxAge)
	pruned := 0
	for key, at := range l.processed {
		if at.Before(cutoff) {
			delete(l.processed, key)
			pruned++
		}
	}
	return pruned
}

// ref registers interest in a code's lock entry, creating it on first use.
func (l *Locks) ref(key string) (*codeLock, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, done := l.processed[key]; done {
		return nil, ErrCodeAlreadyProcessed
	}

	entry, ok := l.locks[key]
	if !ok {
		entry = &codeLock{sem: make(chan struct{}, 1)}
		l.locks[key] = entry
	}
	entry.refs++
	return entry, nil
}

// unref drops interest in a code's lock entry and removes it once nobody
// holds or waits on it.
func (l *Locks) unref(key string, entry *codeLock) {
	l.mu.Lock()
	defer l.mu.Unlock()

	entry.refs--
	if entry.refs <= 0 {
		delete(l.locks, key)
	}
}

// lockKey derives the map key for an authorization code: the first 16 hex
// characters of its SHA-256 digest.
func lockKey(code string) string {
	sum := sha256.Sum256([]byte(code))
	return hex.EncodeToString(sum[:])[:16]
}
