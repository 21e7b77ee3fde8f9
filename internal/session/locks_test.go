package session

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocksAcquireRelease(t *testing.T) {
	locks := NewLocks()

	lease, err := locks.Acquire(context.Background(), "code-1")
	require.NoError(t, err)

	// A different code is independent.
	other, err := locks.Acquire(context.Background(), "code-2")
	require.NoError(t, err)
	other.Release()

	lease.Release()
	// Release is idempotent.
	lease.Release()

	// The same code can be acquired again once released and not yet
	// marked processed.
	again, err := locks.Acquire(context.Background(), "code-1")
	require.NoError(t, err)
	again.Release()
}

func TestLocksTryAcquireWhileHeld(t *testing.T) {
	locks := NewLocks()

	lease, err := locks.TryAcquire("code")
	require.NoError(t, err)

	_, err = locks.TryAcquire("code")
	assert.ErrorIs(t, err, ErrExchangeInProgress)

	lease.Release()

	second, err := locks.TryAcquire("code")
	require.NoError(t, err)
	second.Release()
}

func TestLocksAcquireTimesOut(t *testing.T) {
	locks := NewLocksWithTimeout(20 * time.Millisecond)

	lease, err := locks.Acquire(context.Background(), "code")
	require.NoError(t, err)
	defer lease.Release()

	start := time.Now()
	_, err = locks.Acquire(context.Background(), "code")
	assert.ErrorIs(t, err, ErrExchangeInProgress)
	assert.GreaterOrEqual(t, time.Since(start), 20*time.Millisecond)
}

func TestLocksAcquireHonorsContext(t *testing.T) {
	locks := NewLocks()

	lease, err := locks.Acquire(context.Background(), "code")
	require.NoError(t, err)
	defer lease.Release()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err = locks.Acquire(ctx, "code")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestLocksProcessedCodeIsRejected(t *testing.T) {
	locks := NewLocks()

	lease, err := locks.Acquire(context.Background(), "code")
	require.NoError(t, err)
	lease.MarkProcessed()
	lease.Release()

	_, err = locks.Acquire(context.Background(), "code")
	assert.ErrorIs(t, err, ErrCodeAlreadyProcessed)

	_, err = locks.TryAcquire("code")
	assert.ErrorIs(t, err, ErrCodeAlreadyProcessed)
}

// A waiter that was blocked while the holder completed the exchange must
// observe the processed marker instead of acquiring a dead lease.
func TestLocksWaiterSeesProcessedResult(t *testing.T) {
	locks := NewLocks()

	lease, err := locks.Acquire(context.Background(), "code")
	require.NoError(t, err)

	waiterErr := make(chan error, 1)
	go func() {
		_, err := locks.Acquire(context.Background(), "code")
		waiterErr <- err
	}()

	// Give the waiter time to block on the semaphore.
	time.Sleep(10 * time.Millisecond)
	lease.MarkProcessed()
	lease.Release()

	select {
	case err := <-waiterErr:
		assert.ErrorIs(t, err, ErrCodeAlreadyProcessed)
	case <-time.After(time.Second):
		t.Fatal("waiter did not return")
	}
}

// Many concurrent arrivals with the same code: exactly one acquires and
// completes, the rest see the in-progress or already-processed errors.
func TestLocksConcurrentSameCode(t *testing.T) {
	locks := NewLocksWithTimeout(50 * time.Millisecond)

	const goroutines = 16
	var (
		wg        sync.WaitGroup
		succeeded atomic.Int32
		rejected  atomic.Int32
	)

	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			lease, err := locks.Acquire(context.Background(), "shared-code")
			if err != nil {
				rejected.Add(1)
				return
			}
			// Hold past every waiter's timeout so nobody else acquires.
			time.Sleep(100 * time.Millisecond)
			lease.MarkProcessed()
			lease.Release()
			succeeded.Add(1)
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), succeeded.Load())
	assert.Equal(t, int32(goroutines-1), rejected.Load())
}

func TestLocksPruneProcessed(t *testing.T) {
	locks := NewLocks()
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	locks.now = func() time.Time { return now }

	lease, err := locks.Acquire(context.Background(), "code")
	require.NoError(t, err)
	lease.MarkProcessed()
	lease.Release()

	now = now.Add(2 * time.Hour)
	assert.Equal(t, 1, locks.PruneProcessed(time.Hour))

	// The code is acquirable again after its marker aged out.
	again, err := locks.Acquire(context.Background(), "code")
	require.NoError(t, err)
	again.Release()
}

func TestLockKeyShape(t *testing.T) {
	key := lockKey("some-authorization-code")
	assert.Len(t, key, 16)
	assert.NotEqual(t, key, lockKey("another-code"))
	assert.Equal(t, key, lockKey("some-authorization-code"))
}
