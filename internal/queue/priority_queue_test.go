package queue

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/OSU-Foreclosure-Task-Force/EasyRepost/internal/task"
)

func TestFIFOWithinPriority(t *testing.T) {
	q := New()
	q.Push(task.Task{ID: 1}, task.PriorityDefault)
	q.Push(task.Task{ID: 2}, task.PriorityDefault)
	q.Push(task.Task{ID: 3}, task.PriorityDefault)

	for _, want := range []int64{1, 2, 3} {
		got, ok := q.Pop()
		require.True(t, ok)
		assert.Equal(t, want, got.ID)
	}
}

func TestHigherPriorityDequeuesFirst(t *testing.T) {
	q := New()
	q.Push(task.Task{ID: 1}, task.PriorityDefault)
	q.Push(task.Task{ID: 2}, task.PriorityNoHurry)
	q.Push(task.Task{ID: 3}, task.PriorityInHurry)
	q.Push(task.Task{ID: 4}, task.PriorityDefault)

	var order []int64
	for {
		got, ok := q.Pop()
		if !ok {
			break
		}
		order = append(order, got.ID)
	}
	assert.Equal(t, []int64{3, 1, 4, 2}, order)
}

func TestRemoveTombstonesPendingEntry(t *testing.T) {
	q := New()
	q.Push(task.Task{ID: 1}, task.PriorityDefault)
	q.Push(task.Task{ID: 2}, task.PriorityDefault)

	removed, ok := q.Remove(1)
	require.True(t, ok)
	assert.Equal(t, int64(1), removed.ID)

	got, ok := q.Pop()
	require.True(t, ok)
	assert.Equal(t, int64(2), got.ID)

	_, ok = q.Pop()
	assert.False(t, ok, "tombstoned entry for id 1 must be skipped, not returned")
}

func TestReprioritizeIsIdempotentForceStart(t *testing.T) {
	q := New()
	q.Push(task.Task{ID: 1}, task.PriorityDefault)

	assert.True(t, q.Reprioritize(1, task.PriorityInHurry))
	assert.True(t, q.Reprioritize(1, task.PriorityInHurry))

	assert.Equal(t, 1, q.Len())

	got, ok := q.Pop()
	require.True(t, ok)
	assert.Equal(t, task.PriorityInHurry, got.Priority)

	_, ok = q.Pop()
	assert.False(t, ok, "tombstoned stale entries from the earlier pushes must not surface a second task")
}

func TestRemoveUnknownIDIsNoOp(t *testing.T) {
	q := New()
	_, ok := q.Remove(42)
	assert.False(t, ok)
}

func TestContainsAndLen(t *testing.T) {
	q := New()
	assert.False(t, q.Contains(1))
	q.Push(task.Task{ID: 1}, task.PriorityDefault)
	assert.True(t, q.Contains(1))
	assert.Equal(t, 1, q.Len())
}
