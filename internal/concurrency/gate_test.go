package concurrency

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAcquireReleaseRoundTrip(t *testing.T) {
	g := New(2)
	require.NoError(t, g.Acquire(context.Background()))
	require.NoError(t, g.Acquire(context.Background()))
	assert.Equal(t, 2, g.InFlight())

	g.Release()
	assert.Equal(t, 1, g.InFlight())
	g.Release()
	assert.True(t, g.Empty())
}

func TestAcquireBlocksUntilReleased(t *testing.T) {
	g := New(1)
	require.NoError(t, g.Acquire(context.Background()))

	acquired := make(chan struct{})
	go func() {
		_ = g.Acquire(context.Background())
		close(acquired)
	}()

	select {
	case <-acquired:
		t.Fatal("second acquire should have blocked")
	case <-time.After(50 * time.Millisecond):
	}

	g.Release()
	select {
	case <-acquired:
	case <-time.After(time.Second):
		t.Fatal("second acquire never unblocked after release")
	}
}

func TestAcquireRespectsContextCancellation(t *testing.T) {
	g := New(1)
	require.NoError(t, g.Acquire(context.Background()))

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- g.Acquire(ctx) }()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case err := <-errCh:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("acquire did not observe cancellation")
	}
}

func TestSetCapacityRejectsNonPositive(t *testing.T) {
	g := New(3)
	assert.ErrorIs(t, g.SetCapacity(0), ErrInvalidCapacity)
	assert.ErrorIs(t, g.SetCapacity(-1), ErrInvalidCapacity)
}

func TestSetCapacityBlocksUntilEmpty(t *testing.T) {
	g := New(1)
	require.NoError(t, g.Acquire(context.Background()))

	resized := make(chan struct{})
	go func() {
		require.NoError(t, g.SetCapacity(5))
		close(resized)
	}()

	select {
	case <-resized:
		t.Fatal("SetCapacity should block while a permit is outstanding")
	case <-time.After(50 * time.Millisecond):
	}

	g.Release()
	select {
	case <-resized:
	case <-time.After(time.Second):
		t.Fatal("SetCapacity never completed after gate emptied")
	}
	assert.Equal(t, 5, g.Capacity())
}

func TestConcurrentAcquireNeverExceedsCapacity(t *testing.T) {
	g := New(3)
	var mu sync.Mutex
	maxObserved := 0
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = g.Acquire(context.Background())
			mu.Lock()
			if g.InFlight() > maxObserved {
				maxObserved = g.InFlight()
			}
			mu.Unlock()
			time.Sleep(5 * time.Millisecond)
			g.Release()
		}()
	}
	wg.Wait()
	assert.LessOrEqual(t, maxObserved, 3)
	assert.True(t, g.Empty())
}
