package session

import (
	"context"
	"sync"
	"testing"
	"time"

	"ai-paperchat-be/pkg/rag/fault"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocker_SerializesSameSession(t *testing.T) {
	locker := NewLocker()
	session := uuid.New()

	var mu sync.Mutex
	var active, maxActive int

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			release, err := locker.Acquire(context.Background(), session)
			require.NoError(t, err)
			defer release()

			mu.Lock()
			active++
			if active > maxActive {
				maxActive = active
			}
			mu.Unlock()

			time.Sleep(time.Millisecond)

			mu.Lock()
			active--
			mu.Unlock()
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, maxActive, "only one holder at a time per session")
}

func TestLocker_DifferentSessionsDoNotContend(t *testing.T) {
	locker := NewLocker()

	releaseA, err := locker.Acquire(context.Background(), uuid.New())
	require.NoError(t, err)
	defer releaseA()

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()
	releaseB, err := locker.Acquire(ctx, uuid.New())
	require.NoError(t, err, "a held lock on one session must not block another")
	releaseB()
}

func TestLocker_AcquireHonorsContext(t *testing.T) {
	locker := NewLocker()
	session := uuid.New()

	release, err := locker.Acquire(context.Background(), session)
	require.NoError(t, err)
	defer release()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err = locker.Acquire(ctx, session)
	require.Error(t, err)
	assert.True(t, fault.IsKind(err, fault.KindSessionBusy))
	assert.True(t, fault.IsRetryable(err))
}

func TestLocker_ReleaseIsIdempotent(t *testing.T) {
	locker := NewLocker()
	session := uuid.New()

	release, err := locker.Acquire(context.Background(), session)
	require.NoError(t, err)
	release()
	release()

	// slot must be free again
	next, err := locker.Acquire(context.Background(), session)
	require.NoError(t, err)
	next()
}

func TestLocker_WaiterProceedsAfterRelease(t *testing.T) {
	locker := NewLocker()
	session := uuid.New()

	release, err := locker.Acquire(context.Background(), session)
	require.NoError(t, err)

	acquired := make(chan struct{})
	go func() {
		r, err := locker.Acquire(context.Background(), session)
		assert.NoError(t, err)
		close(acquired)
		r()
	}()

	select {
	case <-acquired:
		t.Fatal("waiter acquired while the lock was held")
	case <-time.After(30 * time.Millisecond):
	}

	release()

	select {
	case <-acquired:
	case <-time.After(time.Second):
		t.Fatal("waiter never acquired after release")
	}
}
