package cache

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInMemoryIdempotencyStore_MarkProcessed(t *testing.T) {
	store := NewInMemoryIdempotencyStore()
	defer store.Close()
	ctx := context.Background()

	t.Run("marks new key", func(t *testing.T) {
		isNew, err := store.MarkProcessed(ctx, "event-1", time.Hour)
		require.NoError(t, err)
		assert.True(t, isNew)
	})

	t.Run("second mark is a duplicate", func(t *testing.T) {
		_, err := store.MarkProcessed(ctx, "event-2", time.Hour)
		require.NoError(t, err)

		isNew, err := store.MarkProcessed(ctx, "event-2", time.Hour)
		require.NoError(t, err)
		assert.False(t, isNew)
	})

	t.Run("expired mark can be taken again", func(t *testing.T) {
		clock := time.Now()
		store.now = func() time.Time { return clock }

		_, err := store.MarkProcessed(ctx, "event-3", time.Minute)
		require.NoError(t, err)

		clock = clock.Add(2 * time.Minute)
		processed, err := store.IsProcessed(ctx, "event-3")
		require.NoError(t, err)
		assert.False(t, processed)

		isNew, err := store.MarkProcessed(ctx, "event-3", time.Minute)
		require.NoError(t, err)
		assert.True(t, isNew)
	})
}

func TestInMemoryIdempotencyStore_Forget(t *testing.T) {
	store := NewInMemoryIdempotencyStore()
	defer store.Close()
	ctx := context.Background()

	_, err := store.MarkProcessed(ctx, "event-1", time.Hour)
	require.NoError(t, err)
	require.NoError(t, store.Forget(ctx, "event-1"))

	processed, err := store.IsProcessed(ctx, "event-1")
	require.NoError(t, err)
	assert.False(t, processed)
	assert.NoError(t, store.Forget(ctx, "never-seen"))
}

func TestInMemoryIdempotencyStore_LazySweep(t *testing.T) {
	store := NewInMemoryIdempotencyStore()
	ctx := context.Background()

	clock := time.Now()
	store.now = func() time.Time { return clock }

	_, _ = store.MarkProcessed(ctx, "short", time.Minute)
	_, _ = store.MarkProcessed(ctx, "long", time.Hour)
	require.Equal(t, 2, store.Len())

	clock = clock.Add(2 * time.Minute)
	_, _ = store.MarkProcessed(ctx, "other", time.Hour)
	assert.Equal(t, 3, store.Len(), "no sweep before the interval elapses")

	clock = clock.Add(sweepInterval)
	_, _ = store.MarkProcessed(ctx, "trigger", time.Hour)
	assert.Equal(t, 3, store.Len(), "short expired and was swept")
	processed, err := store.IsProcessed(ctx, "long")
	require.NoError(t, err)
	assert.True(t, processed)
}

func TestInMemoryIdempotencyStore_ConcurrentMarkHasOneWinner(t *testing.T) {
	store := NewInMemoryIdempotencyStore()
	defer store.Close()

	var winners atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if ok, _ := store.MarkProcessed(context.Background(), "contended", time.Hour); ok {
				winners.Add(1)
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), winners.Load())

	for i := 0; i < 10; i++ {
		_, _ = store.MarkProcessed(context.Background(), fmt.Sprintf("k-%d", i), time.Hour)
	}
	assert.Equal(t, 11, store.Len())
}

func TestInMemoryIdempotencyStore_CloseIsIdempotent(t *testing.T) {
	store := NewInMemoryIdempotencyStore()
	assert.NoError(t, store.Close())
	assert.NoError(t, store.Close())
}
