package cache

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryLocker(t *testing.T) {
	ctx := context.Background()

	t.Run("second acquire fails while held", func(t *testing.T) {
		l := NewMemoryLocker()
		token, err := l.Acquire(ctx, "bill:s1", time.Minute)
		require.NoError(t, err)
		require.NotEmpty(t, token)

		again, err := l.Acquire(ctx, "bill:s1", time.Minute)
		require.NoError(t, err)
		assert.Empty(t, again)

		require.NoError(t, l.Release(ctx, "bill:s1", token))
		again, err = l.Acquire(ctx, "bill:s1", time.Minute)
		require.NoError(t, err)
		assert.NotEmpty(t, again)
	})

	t.Run("expired key can be taken", func(t *testing.T) {
		l := NewMemoryLocker()
		now := time.Now()
		l.now = func() time.Time { return now }
		_, err := l.Acquire(ctx, "cooldown", time.Second)
		require.NoError(t, err)

		l.now = func() time.Time { return now.Add(2 * time.Second) }
		token, err := l.Acquire(ctx, "cooldown", time.Second)
		require.NoError(t, err)
		assert.NotEmpty(t, token)
	})

	t.Run("release with stale token", func(t *testing.T) {
		l := NewMemoryLocker()
		_, err := l.Acquire(ctx, "k", time.Minute)
		require.NoError(t, err)
		assert.ErrorIs(t, l.Release(ctx, "k", "stale"), ErrNotHeld)
	})

	t.Run("only one concurrent winner", func(t *testing.T) {
		l := NewMemoryLocker()
		var wg sync.WaitGroup
		var mu sync.Mutex
		winners := 0
		for i := 0; i < 20; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				token, err := l.Acquire(ctx, "race", time.Minute)
				if err == nil && token != "" {
					mu.Lock()
					winners++
					mu.Unlock()
				}
			}()
		}
		wg.Wait()
		assert.Equal(t, 1, winners)
	})
}

func TestWaitAcquire(t *testing.T) {
	ctx := context.Background()
	l := NewMemoryLocker()
	token, err := l.Acquire(ctx, "k", time.Minute)
	require.NoError(t, err)

	go func() {
		time.Sleep(50 * time.Millisecond)
		_ = l.Release(ctx, "k", token)
	}()

	got, err := WaitAcquire(ctx, l, "k", time.Minute, 2*time.Second)
	require.NoError(t, err)
	assert.NotEmpty(t, got)

	none, err := WaitAcquire(ctx, l, "k", time.Minute, 30*time.Millisecond)
	require.NoError(t, err)
	assert.Empty(t, none)
}
