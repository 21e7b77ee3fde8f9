package session

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecide(t *testing.T) {
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name string
		rec  *Record
		now  time.Time
		want Decision
	}{
		{
			name: "no record",
			rec:  nil,
			now:  base,
			want: DecisionLogin,
		},
		{
			name: "fresh persistent record",
			rec:  &Record{Credential: "tok", CreatedAt: base, Persistent: true},
			now:  base.Add(30 * time.Second),
			want: DecisionReuse,
		},
		{
			name: "just under the window",
			rec:  &Record{Credential: "tok", CreatedAt: base, Persistent: true},
			now:  base.Add(DefaultReuseWindow - time.Nanosecond),
			want: DecisionReuse,
		},
		{
			name: "exactly at the window boundary",
			rec:  &Record{Credential: "tok", CreatedAt: base, Persistent: true},
			now:  base.Add(DefaultReuseWindow),
			want: DecisionLogin,
		},
		{
			name: "older than the window",
			rec:  &Record{Credential: "tok", CreatedAt: base, Persistent: true},
			now:  base.Add(5 * time.Minute),
			want: DecisionLogin,
		},
		{
			name: "non-persistent record is never reused",
			rec:  &Record{Credential: "tok", CreatedAt: base, Persistent: false},
			now:  base.Add(time.Second),
			want: DecisionLogin,
		},
		{
			name: "persistent record without credential",
			rec:  &Record{Credential: "", CreatedAt: base, Persistent: true},
			now:  base.Add(time.Second),
			want: DecisionLogin,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Decide(tt.rec, tt.now, DefaultReuseWindow))
		})
	}
}

func TestStorePutGetDecide(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	store := NewStoreWithClock(func() time.Time { return now })
	accountID := uuid.New()

	assert.Nil(t, store.Get(accountID))
	assert.Equal(t, DecisionLogin, store.Decide(accountID, DefaultReuseWindow))

	store.Put(accountID, "cookie-value", true)

	rec := store.Get(accountID)
	require.NotNil(t, rec)
	assert.Equal(t, "cookie-value", rec.Credential)
	assert.True(t, rec.Persistent)
	assert.Equal(t, now, rec.CreatedAt)
	assert.Equal(t, DecisionReuse, store.Decide(accountID, DefaultReuseWindow))

	// Advance past the window: same record, different decision.
	now = now.Add(DefaultReuseWindow)
	assert.Equal(t, DecisionLogin, store.Decide(accountID, DefaultReuseWindow))
}

func TestStoreGetReturnsCopy(t *testing.T) {
	store := NewStore()
	accountID := uuid.New()
	store.Put(accountID, "original", true)

	rec := store.Get(accountID)
	rec.Credential = "mutated"

	assert.Equal(t, "original", store.Get(accountID).Credential)
}

func TestStoreInvalidate(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	store := NewStoreWithClock(func() time.Time { return now })
	accountID := uuid.New()

	// Invalidating an absent account is a no-op.
	store.Invalidate(accountID)
	assert.Nil(t, store.Get(accountID))

	store.Put(accountID, "cookie-value", true)
	store.Invalidate(accountID)

	rec := store.Get(accountID)
	require.NotNil(t, rec)
	assert.Empty(t, rec.Credential)
	assert.False(t, rec.Persistent)
	assert.Equal(t, DecisionLogin, store.Decide(accountID, DefaultReuseWindow))
}

func TestStoreEvaluateDecidesOnReturnedRecord(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	store := NewStoreWithClock(func() time.Time { return now })
	accountID := uuid.New()
	store.Put(accountID, "cookie-value", true)

	rec, decision := store.Evaluate(accountID, DefaultReuseWindow)
	require.NotNil(t, rec)
	assert.Equal(t, DecisionReuse, decision)
	assert.Equal(t, "cookie-value", rec.Credential)

	// A concurrent invalidation after Evaluate must not blank the copy a
	// reuse caller is about to serve; the next evaluation sees it.
	store.Invalidate(accountID)
	assert.Equal(t, "cookie-value", rec.Credential)

	rec, decision = store.Evaluate(accountID, DefaultReuseWindow)
	require.NotNil(t, rec)
	assert.Equal(t, DecisionLogin, decision)
	assert.Empty(t, rec.Credential)
}

func TestStorePruneOlderThan(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	store := NewStoreWithClock(func() time.Time { return now })

	old := uuid.New()
	store.Put(old, "stale", true)

	now = now.Add(2 * time.Hour)
	fresh := uuid.New()
	store.Put(fresh, "fresh", true)

	assert.Equal(t, 1, store.PruneOlderThan(time.Hour))
	assert.Nil(t, store.Get(old))
	assert.NotNil(t, store.Get(fresh))
	assert.Equal(t, 1, store.Len())
}
