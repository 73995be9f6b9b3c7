// Package statemachine implements the per-state transition table. Each
// state defines the subset of events legal from it;
// calling an event not defined for the current state is a no-op, never an
// error, so that out-of-order events under races degrade gracefully.
//
// Grounded on original_source/handler/BaseScheduler.py's
// Waiting/InQueue/Processing/Pause/Suspended/Completed/Failed classes. The
// cyclic reference those classes had with BaseScheduler (each state method
// takes the scheduler as an argument) is broken the idiomatic Go way:
// transitions are free functions taking a Scheduler interface
// and a task value; states themselves carry no back-pointer and are
// represented as plain table lookups rather than a class hierarchy.
package statemachine

import (
	"time"

	"github.com/OSU-Foreclosure-Task-Force/EasyRepost/internal/task"
)

// nowFunc is a seam for tests; production code never overrides it.
var nowFunc = time.Now

// Event is one column of the transition table.
type Event string

const (
	EventLoad    Event = "load"
	EventStart   Event = "start"
	EventPause   Event = "pause"
	EventResume  Event = "resume"
	EventCancel  Event = "cancel"
	EventSuspend Event = "suspend"
	EventRetry   Event = "retry"
	EventForce   Event = "force"
)

// Scheduler is the callback surface a transition invokes to act on the
// task's bookkeeping. internal/scheduler.Scheduler implements this.
type Scheduler interface {
	// PutToQueue inserts t into the priority queue at priority and marks
	// it IN_QUEUE in the live index.
	PutToQueue(t task.Task, priority task.Priority)

	// PutToWait parks t on a cancellable delaySeconds timer, after which
	// it is moved to the queue.
	PutToWait(t task.Task, delaySeconds int64)

	// PutToQueueDelay is PutToWait's retry-path sibling: same timer
	// mechanics, driven by the scheduler's configured retry delay.
	PutToQueueDelay(t task.Task, delaySeconds int64)

	// SkipWait cancels t's pending wait timer and returns it so the
	// caller can re-enqueue immediately.
	SkipWait(id int64) (task.Task, bool)

	// RemoveFromQueue drops id from the live queue index (tombstoning any
	// pending heap entry) and returns the removed task.
	RemoveFromQueue(id int64) (task.Task, bool)

	// Reprioritize re-prioritizes an already-queued task in place.
	Reprioritize(t task.Task, priority task.Priority)

	// SpawnWorker starts processing t in the background (IN_QUEUE ->
	// PROCESSING). It acquires no concurrency slot; the caller must already
	// hold one.
	SpawnWorker(t task.Task)

	// StartFromLoad resumes processing a task that was already
	// PROCESSING/PAUSE at restart (the `load` recovery path).
	StartFromLoad(t task.Task, thenPause bool)

	// PauseWorker pauses the live worker for id.
	PauseWorker(id int64)

	// ResumeWorker resumes the paused worker for id.
	ResumeWorker(id int64)

	// CancelWorker cancels the live (or paused) worker for id and tears
	// down its bookkeeping, then destroys the task.
	CancelWorker(t task.Task)

	// SuspendWorker pauses the live worker for id and parks it in
	// suspend_workers without destroying it.
	SuspendWorker(t task.Task)

	// ParkFreshWorker is the `load` recovery path for a SUSPENDED task: a
	// new (paused) worker is created and parked without running it.
	ParkFreshWorker(t task.Task)

	// Destroy deletes t from the repository, tearing down whatever state
	// it was previously in.
	Destroy(t task.Task)

	// Record persists a load-time COMPLETED/FAILED task into the
	// corresponding in-memory bookkeeping map without re-running it.
	Record(t task.Task)

	// RetryDelaySeconds returns the scheduler's currently configured
	// retry delay.
	RetryDelaySeconds() int64
}

// TransitionFunc applies one (state, event) cell of the table, returning
// the task with its State field updated to the cell's destination state.
type TransitionFunc func(s Scheduler, t task.Task) task.Task

var table = map[task.State]map[Event]TransitionFunc{
	task.StateWaiting: {
		EventLoad:   waitingLoad,
		EventCancel: waitingCancel,
		EventForce:  waitingForce,
	},
	task.StateInQueue: {
		EventLoad:  inQueueLoad,
		EventStart: inQueueStart,
		EventCancel: inQueueCancel,
		EventForce: inQueueForce,
	},
	task.StateProcessing: {
		EventLoad:    processingLoad,
		EventPause:   processingPause,
		EventCancel:  processingCancel,
		EventSuspend: processingSuspend,
	},
	task.StatePause: {
		EventLoad:   pauseLoad,
		EventResume: pauseResume,
		EventCancel: pauseCancel,
		EventForce:  pauseForce,
	},
	task.StateSuspended: {
		EventLoad:   suspendedLoad,
		EventResume: suspendedResume,
		EventForce:  suspendedForce,
	},
	task.StateCompleted: {
		EventLoad:  completedLoad,
		EventRetry: completedRetry,
	},
	task.StateFailed: {
		EventLoad:  failedLoad,
		EventRetry: failedRetry,
	},
}

// Apply dispatches ev against t's current state. If the (state, event)
// pair has no defined transition, Apply is a no-op and returns t
// unchanged: illegal calls are no-ops.
func Apply(s Scheduler, t task.Task, ev Event) task.Task {
	byState, ok := table[t.State]
	if !ok {
		return t
	}
	fn, ok := byState[ev]
	if !ok {
		return t
	}
	return fn(s, t)
}

// ---- WAITING ----

func waitingLoad(s Scheduler, t task.Task) task.Task {
	if t.Eligible(nowFunc()) {
		t.State = task.StateInQueue
		s.PutToQueue(t, t.Priority)
		return t
	}
	t.State = task.StateWaiting
	delay := t.WaitTime - nowFunc().Unix()
	if delay < 0 {
		delay = 0
	}
	s.PutToWait(t, delay)
	return t
}

func waitingCancel(s Scheduler, t task.Task) task.Task {
	s.Destroy(t)
	return t
}

func waitingForce(s Scheduler, t task.Task) task.Task {
	skipped, ok := s.SkipWait(t.ID)
	if ok {
		t = skipped
	}
	t.State = task.StateInQueue
	t.Priority = task.PriorityInHurry
	s.PutToQueue(t, task.PriorityInHurry)
	return t
}

// ---- IN_QUEUE ----

func inQueueLoad(s Scheduler, t task.Task) task.Task {
	s.PutToQueue(t, t.Priority)
	return t
}

func inQueueStart(s Scheduler, t task.Task) task.Task {
	t.State = task.StateProcessing
	s.SpawnWorker(t)
	return t
}

func inQueueCancel(s Scheduler, t task.Task) task.Task {
	removed, ok := s.RemoveFromQueue(t.ID)
	if ok {
		t = removed
	}
	s.Destroy(t)
	return t
}

func inQueueForce(s Scheduler, t task.Task) task.Task {
	t.Priority = task.PriorityInHurry
	s.Reprioritize(t, task.PriorityInHurry)
	return t
}

// ---- PROCESSING ----

func processingLoad(s Scheduler, t task.Task) task.Task {
	s.StartFromLoad(t, false)
	return t
}

func processingPause(s Scheduler, t task.Task) task.Task {
	t.State = task.StatePause
	s.PauseWorker(t.ID)
	return t
}

func processingCancel(s Scheduler, t task.Task) task.Task {
	s.CancelWorker(t)
	return t
}

func processingSuspend(s Scheduler, t task.Task) task.Task {
	t.State = task.StateSuspended
	s.SuspendWorker(t)
	return t
}

// ---- PAUSE ----

func pauseLoad(s Scheduler, t task.Task) task.Task {
	s.StartFromLoad(t, true)
	return t
}

func pauseResume(s Scheduler, t task.Task) task.Task {
	t.State = task.StateProcessing
	s.ResumeWorker(t.ID)
	return t
}

func pauseCancel(s Scheduler, t task.Task) task.Task {
	s.CancelWorker(t)
	return t
}

func pauseForce(s Scheduler, t task.Task) task.Task {
	t.State = task.StateProcessing
	s.ResumeWorker(t.ID)
	return t
}

// ---- SUSPENDED ----

func suspendedLoad(s Scheduler, t task.Task) task.Task {
	s.ParkFreshWorker(t)
	return t
}

func suspendedResume(s Scheduler, t task.Task) task.Task {
	t.State = task.StateInQueue
	s.PutToQueue(t, t.Priority)
	return t
}

func suspendedForce(s Scheduler, t task.Task) task.Task {
	t.State = task.StateInQueue
	t.Priority = task.PriorityInHurry
	s.PutToQueue(t, task.PriorityInHurry)
	return t
}

// ---- COMPLETED ----

func completedLoad(s Scheduler, t task.Task) task.Task {
	s.Record(t)
	return t
}

func completedRetry(s Scheduler, t task.Task) task.Task {
	t.State = task.StateWaiting
	s.PutToQueueDelay(t, s.RetryDelaySeconds())
	return t
}

// ---- FAILED ----

func failedLoad(s Scheduler, t task.Task) task.Task {
	s.Record(t)
	return t
}

func failedRetry(s Scheduler, t task.Task) task.Task {
	t.State = task.StateWaiting
	s.PutToQueueDelay(t, s.RetryDelaySeconds())
	return t
}
