// Package concurrency implements a counting semaphore with dynamic capacity
// adjustment and an "empty" signal for graceful resize. It is grounded on
// original_source/handler/BaseScheduler.py's
// TaskConcurrent (a semaphore guarded by a lock, with an asyncio.Event used
// as the "empty" signal that set_max_concurrent waits on).
package concurrency

import (
	"context"
	"errors"
	"sync"
)

// ErrInvalidCapacity is returned by SetCapacity for n <= 0.
var ErrInvalidCapacity = errors.New("concurrency: capacity must be positive")

// Gate is a resizable counting semaphore. Unlike a channel-based semaphore,
// Gate uses a mutex/condition-variable pair so that SetCapacity can change
// the limit without invalidating permits already in flight or stranding a
// goroutine blocked sending on a channel that SetCapacity would otherwise
// have to replace.
type Gate struct {
	mu       sync.Mutex
	cond     *sync.Cond
	capacity int
	inFlight int
}

// New returns a Gate with the given initial capacity.
func New(capacity int) *Gate {
	g := &Gate{capacity: capacity}
	g.cond = sync.NewCond(&g.mu)
	return g
}

// Acquire blocks until a slot is free or ctx is done. Acquire calls made
// before a concurrent SetCapacity observe the capacity in effect when they
// started waiting on each wake-up; acquire calls made after SetCapacity
// completes see the new capacity immediately, since capacity is read fresh
// under the lock on every iteration.
func (g *Gate) Acquire(ctx context.Context) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if ctx != nil && ctx.Done() != nil {
		stop := make(chan struct{})
		defer close(stop)
		go func() {
			select {
			case <-ctx.Done():
				g.mu.Lock()
				g.cond.Broadcast()
				g.mu.Unlock()
			case <-stop:
			}
		}()
	}

	for g.inFlight >= g.capacity {
		if ctx != nil {
			select {
			case <-ctx.Done():
				return ctx.Err()
			default:
			}
		}
		g.cond.Wait()
	}
	g.inFlight++
	return nil
}

// Release frees one slot. It never blocks.
func (g *Gate) Release() {
	g.mu.Lock()
	if g.inFlight > 0 {
		g.inFlight--
	}
	g.cond.Broadcast()
	g.mu.Unlock()
}

// SetCapacity blocks until no acquires are outstanding, then changes the
// capacity. Acquires that arrive while it waits are not held back: they are
// admitted under the old capacity, and SetCapacity keeps waiting until
// inFlight drops to zero.
func (g *Gate) SetCapacity(n int) error {
	if n <= 0 {
		return ErrInvalidCapacity
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	for g.inFlight != 0 {
		g.cond.Wait()
	}
	g.capacity = n
	g.cond.Broadcast()
	return nil
}

// Capacity returns the current capacity.
func (g *Gate) Capacity() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.capacity
}

// InFlight returns the number of outstanding acquires.
func (g *Gate) InFlight() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.inFlight
}

// Empty reports whether there are no outstanding acquires right now.
func (g *Gate) Empty() bool {
	return g.InFlight() == 0
}
