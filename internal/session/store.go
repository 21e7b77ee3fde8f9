// Package session holds the bridge's only mutable shared state: the
// per-account record of the last platform credential obtained, and the
// per-authorization-code exchange locks. Both are plain lock-protected
// in-memory maps — swapping in an external cache for horizontal scale-out
// only requires reimplementing these two types behind the same methods.
package session

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// DefaultReuseWindow is how long a freshly obtained credential is trusted
// for reuse without a new platform login. Anything older is refreshed: the
// platform's own session lifetime and invalidation behavior are opaque to
// the bridge, so the conservative default is always to log in again.
const DefaultReuseWindow = 60 * time.Second

// Record is the last known platform session for one account.
type Record struct {
	// Credential is the opaque platform session cookie value. Empty when
	// the last login succeeded without a discoverable cookie.
	Credential string

	// CreatedAt is when the record was last written after a login attempt.
	CreatedAt time.Time

	// Persistent reports whether the record came from a real platform
	// login, as opposed to a lightweight no-cookie path.
	Persistent bool
}

// Decision is the outcome of the session-freshness policy.
type Decision int

const (
	// DecisionLogin means the bridge must perform a fresh platform login.
	DecisionLogin Decision = iota

	// DecisionReuse means the stored credential is fresh enough to serve
	// without contacting the platform.
	DecisionReuse
)

// Decide applies the freshness policy to a record. rec is nil when no
// record exists for the account. Reuse requires a persistent record with a
// credential that is strictly younger than window — a credential aged
// exactly at the window boundary is refreshed.
func Decide(rec *Record, now time.Time, window time.Duration) Decision {
	if rec == nil || !rec.Persistent || rec.Credential == "" {
		return DecisionLogin
	}
	if now.Sub(rec.CreatedAt) < window {
		return DecisionReuse
	}
	return DecisionLogin
}

// Store is the process-wide session record map, keyed by account ID.
// Safe for concurrent use. Records are not actively expired — freshness is
// evaluated at read time via Decide — but PruneOlderThan lets a background
// job bound memory growth.
type Store struct {
	mu      sync.RWMutex
	records map[uuid.UUID]Record
	now     func() time.Time
}

// NewStore returns an empty Store using the wall clock.
func NewStore() *Store {
	return NewStoreWithClock(time.Now)
}

// NewStoreWithClock returns an empty Store with an injectable clock.
// Tests use this to pin time for freshness-boundary assertions.
func NewStoreWithClock(now func() time.Time) *Store {
	return &Store{
		records: make(map[uuid.UUID]Record),
		now:     now,
	}
}

// Get returns a copy of the record for the account, or nil when none exists.
func (s *Store) Get(accountID uuid.UUID) *Record {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.records[accountID]
	if !ok {
		return nil
	}
	return &rec
}

// Put records the outcome of a login attempt. CreatedAt is stamped with the
// store's clock. Two concurrent callbacks for the same account may both
// write here; last write wins, which is safe because both represent a
// genuinely fresh credential.
func (s *Store) Put(accountID uuid.UUID, credential string, persistent bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.records[accountID] = Record{
		Credential: credential,
		CreatedAt:  s.now(),
		Persistent: persistent,
	}
}

// Invalidate clears the credential and persistence flag for an account so
// the next callback is forced through a fresh platform login. The entry is
// kept — an invalidated record and an absent record decide identically.
func (s *Store) Invalidate(accountID uuid.UUID) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[accountID]
	if !ok {
		return
	}
	rec.Credential = ""
	rec.Persistent = false
	s.records[accountID] = rec
}

// Decide reads the account's record and applies the freshness policy.
func (s *Store) Decide(accountID uuid.UUID, window time.Duration) Decision {
	return Decide(s.Get(accountID), s.now(), window)
}

// Evaluate returns a copy of the account's record together with the
// decision made on that same copy. Callers that act on the credential must
// use the returned record: a Get issued after a separate Decide can observe
// a concurrent Invalidate and serve an empty credential.
func (s *Store) Evaluate(accountID uuid.UUID, window time.Duration) (*Record, Decision) {
	rec := s.Get(accountID)
	return rec, Decide(rec, s.now(), window)
}

// PruneOlderThan removes records older than maxAge and returns how many
// were dropped. Called periodically by the housekeeping job; any record old
// enough to be pruned would have decided DecisionLogin anyway.
func (s *Store) PruneOlderThan(maxAge time.Duration) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := s.now().Add(-maxAge)
	pruned := 0
	for id, rec := range s.records {
		if rec.CreatedAt.Before(cutoff) {
			delete(s.records, id)
			pruned++
		}
	}
	return pruned
}

// Len returns the number of records currently held.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}
