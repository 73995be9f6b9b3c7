// Package queue implements a tombstoned priority queue: a heap of
// (priority, sequence, id) plus a side map id -> task.
// Dequeue skips ids no longer present in the side map instead of mutating
// the heap on cancel, keeping cancel O(1) and dequeue amortized O(log n).
//
// Grounded on original_source/handler/BaseScheduler.py's task_queue
// (asyncio.PriorityQueue) paired with the queue dict side index, where
// remove_task_from_queue only deletes from the dict and get_task_from_queue
// discards any popped id no longer present in it.
package queue

import (
	"container/heap"
	"sync"

	"github.com/OSU-Foreclosure-Task-Force/EasyRepost/internal/task"
)

type entry struct {
	priority task.Priority
	seq      uint64
	id       int64
}

// heapData is a min-heap ordered by (-priority, seq) so that higher
// priority values and, within a priority, earlier sequence numbers come out
// first — strict priority with FIFO tie-breaking.
type heapData []entry

func (h heapData) Len() int { return len(h) }
func (h heapData) Less(i, j int) bool {
	if h[i].priority != h[j].priority {
		return h[i].priority > h[j].priority
	}
	return h[i].seq < h[j].seq
}
func (h heapData) Swap(i, j int) { h[i], h[j] = h[j], h[i] }
func (h *heapData) Push(x any)   { *h = append(*h, x.(entry)) }
func (h *heapData) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}

// PriorityQueue is the tombstoned (priority, id) queue described above. It
// is safe for concurrent use, though the single-dispatcher model it is used
// under means in practice only one goroutine calls Pop.
type PriorityQueue struct {
	mu    sync.Mutex
	heap  heapData
	index map[int64]task.Task
	seq   uint64
}

// New returns an empty PriorityQueue.
func New() *PriorityQueue {
	return &PriorityQueue{index: make(map[int64]task.Task)}
}

// Push inserts t at the given priority. If t.ID is already present, its
// entry is replaced in the side index and a fresh heap entry is pushed.
// The old heap entry still refers to the same id: Pop returns the task at
// whichever entry for that id comes out first and skips the rest as
// tombstones.
func (q *PriorityQueue) Push(t task.Task, priority task.Priority) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.seq++
	heap.Push(&q.heap, entry{priority: priority, seq: q.seq, id: t.ID})
	q.index[t.ID] = t
}

// Pop removes and returns the highest-priority, earliest-inserted live
// task. It returns false if the queue is empty of live entries.
func (q *PriorityQueue) Pop() (task.Task, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for q.heap.Len() > 0 {
		e := heap.Pop(&q.heap).(entry)
		t, ok := q.index[e.id]
		if !ok {
			continue // tombstone: task was removed or re-prioritized since this entry was pushed
		}
		delete(q.index, e.id)
		return t, true
	}
	return task.Task{}, false
}

// Remove deletes id from the side index without touching the heap,
// tombstoning any pending heap entries for it. Returns the removed task and
// whether it was present.
func (q *PriorityQueue) Remove(id int64) (task.Task, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	t, ok := q.index[id]
	if ok {
		delete(q.index, id)
	}
	return t, ok
}

// Reprioritize removes id (if present) and re-pushes it at the new
// priority, implementing force_start's promotion to IN_HURRY idempotently:
// calling it twice in a row leaves exactly one live entry for id.
func (q *PriorityQueue) Reprioritize(id int64, priority task.Priority) bool {
	q.mu.Lock()
	t, ok := q.index[id]
	q.mu.Unlock()
	if !ok {
		return false
	}
	t.Priority = priority
	q.Push(t, priority)
	return true
}

// Contains reports whether id has a live entry in the queue.
func (q *PriorityQueue) Contains(id int64) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	_, ok := q.index[id]
	return ok
}

// Len returns the number of live (non-tombstoned) entries.
func (q *PriorityQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.index)
}
