// Package scheduler implements the Scheduler: the priority
// queue, wait-timers, active/suspended worker bookkeeping, and the public
// operations (add_new_task, edit_task, on_pause/resume/cancel/force/
// suspend/retry, on_set_concurrent, load_tasks, run) that drive a single
// task kind (download or upload) through internal/statemachine.
//
// Grounded on original_source/handler/BaseScheduler.py for the operations
// and bookkeeping maps, and on
// _examples/GoCodeAlone-modular/modules/scheduler/scheduler.go for the Go
// shape of a supervised background dispatcher with an optional cloudevents
// EventEmitter.
//
// Concurrency model ("single-threaded cooperative" scheduling realized in
// Go): every field below except gate and queue (which have
// their own internal synchronization) is owned exclusively by the single
// goroutine running Run. All other goroutines — HTTP handlers, bus
// listeners, wait timers, worker completions — reach the scheduler only by
// submitting a closure through exec, which the Run loop executes serially.
// This is the Go equivalent of "all Scheduler state is mutated only from
// the one loop that runs run()."
package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/OSU-Foreclosure-Task-Force/EasyRepost/internal/concurrency"
	"github.com/OSU-Foreclosure-Task-Force/EasyRepost/internal/eventbus"
	"github.com/OSU-Foreclosure-Task-Force/EasyRepost/internal/queue"
	"github.com/OSU-Foreclosure-Task-Force/EasyRepost/internal/repository"
	"github.com/OSU-Foreclosure-Task-Force/EasyRepost/internal/statemachine"
	"github.com/OSU-Foreclosure-Task-Force/EasyRepost/internal/task"
	"github.com/OSU-Foreclosure-Task-Force/EasyRepost/internal/worker"
)

// ProcessingError is the payload emitted on eventbus.TopicProcessingError.
type ProcessingError struct {
	Task task.Task
	Err  error
}

type command struct {
	fn   func()
	done chan struct{}
}

// Scheduler owns one task kind's full lifecycle. Construct one per kind via
// New; a SchedulerPair bundles the download and upload instances.
type Scheduler struct {
	kind     task.Kind
	repo     repository.TaskRepository
	bus      *eventbus.Bus
	gate     *concurrency.Gate
	queue    *queue.PriorityQueue
	factory  worker.Factory
	capacity worker.CapacityChecker
	emitter  EventEmitter
	logger   Logger

	cfg Config

	cmds chan command
	wake chan struct{}

	// Dispatcher-owned state; touched only inside exec'd closures or
	// before Run starts (LoadTasks).
	live           map[int64]task.Task
	ongoingWorkers map[int64]worker.Worker
	ongoingCancel  map[int64]context.CancelFunc
	suspendWorkers map[int64]worker.Worker
	waitTimers     map[int64]*time.Timer
}

// Logger is the minimal structured logger the scheduler needs; satisfied by
// github.com/GoCodeAlone/modular's Logger interface.
type Logger interface {
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// New constructs a Scheduler for one kind. capacity may be nil if the
// configured worker factory does not need a cache-space check.
func New(kind task.Kind, repo repository.TaskRepository, bus *eventbus.Bus, factory worker.Factory, capacity worker.CapacityChecker, cfg Config, logger Logger) *Scheduler {
	if cfg.MaxConcurrent <= 0 {
		cfg.MaxConcurrent = 1
	}
	return &Scheduler{
		kind:           kind,
		repo:           repo,
		bus:            bus,
		gate:           concurrency.New(cfg.MaxConcurrent),
		queue:          queue.New(),
		factory:        factory,
		capacity:       capacity,
		cfg:            cfg,
		logger:         logger,
		cmds:           make(chan command),
		wake:           make(chan struct{}, 1),
		live:           make(map[int64]task.Task),
		ongoingWorkers: make(map[int64]worker.Worker),
		ongoingCancel:  make(map[int64]context.CancelFunc),
		suspendWorkers: make(map[int64]worker.Worker),
		waitTimers:     make(map[int64]*time.Timer),
	}
}

// SetEmitter attaches a cloudevents sink for lifecycle telemetry. Safe to
// call before Run starts; nil disables telemetry.
func (s *Scheduler) SetEmitter(e EventEmitter) { s.emitter = e }

// BindAutoRetry, if cfg.AutoRetry is set, wires a listener that re-enters
// the retry transition whenever this scheduler emits processing_error —
// downstream-listener-emits-retry mechanism, kept as an explicit bus
// subscription rather than folding
// auto-retry into finishWorker so that enabling/disabling it is purely a
// config-time wiring decision.
func (s *Scheduler) BindAutoRetry() {
	if !s.cfg.AutoRetry {
		return
	}
	_, _ = s.bus.Bind(eventbus.TopicProcessingError, func(ctx context.Context, payload any) {
		pe, ok := payload.(ProcessingError)
		if !ok {
			return
		}
		_ = s.OnRetry(pe.Task.ID)
	})
}

// exec submits fn to the dispatcher loop and blocks until it has run.
func (s *Scheduler) exec(fn func()) {
	done := make(chan struct{})
	s.cmds <- command{fn: fn, done: done}
	<-done
}

func (s *Scheduler) nudge() {
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

// Run is the dispatcher loop: the sole goroutine permitted to touch the
// scheduler's bookkeeping maps directly. It returns when ctx is cancelled.
// Call LoadTasks before starting Run.
func (s *Scheduler) Run(ctx context.Context) {
	s.drainQueue()
	for {
		select {
		case <-ctx.Done():
			return
		case cmd := <-s.cmds:
			cmd.fn()
			close(cmd.done)
		case <-s.wake:
		}
		s.drainQueue()
	}
}

// drainQueue pops eligible tasks while the gate has room. It must only run
// on the Run goroutine.
func (s *Scheduler) drainQueue() {
	for s.gate.InFlight() < s.gate.Capacity() {
		t, ok := s.queue.Pop()
		if !ok {
			return
		}
		if err := s.gate.Acquire(context.Background()); err != nil {
			return
		}
		t.State = task.StateProcessing
		s.SpawnWorker(t)
		s.bus.Emit(eventbus.TopicProcessing, t)
		s.emitLifecycle(EventTypeTaskStarted, t.ID)
	}
}

func (s *Scheduler) persistAndStore(t task.Task) {
	updated, err := s.repo.Update(context.Background(), t)
	if err != nil {
		if s.logger != nil {
			s.logger.Warn("scheduler: persist failed", "kind", s.kind, "id", t.ID, "error", err)
		}
		s.live[t.ID] = t
		return
	}
	s.live[t.ID] = updated
}

func (s *Scheduler) emitLifecycle(eventType string, id int64) {
	if s.emitter == nil {
		return
	}
	if err := s.emitter.EmitEvent(context.Background(), eventType, map[string]any{"kind": string(s.kind), "task_id": id}); err != nil && s.logger != nil {
		s.logger.Warn("scheduler: emit lifecycle event failed", "event", eventType, "error", err)
	}
}

// ---- statemachine.Scheduler ----

func (s *Scheduler) PutToQueue(t task.Task, priority task.Priority) {
	t.State = task.StateInQueue
	t.Priority = priority
	s.persistAndStore(t)
	s.queue.Push(s.live[t.ID], priority)
}

func (s *Scheduler) PutToWait(t task.Task, delaySeconds int64) {
	if delaySeconds < 0 {
		delaySeconds = 0
	}
	t.State = task.StateWaiting
	t.WaitTime = time.Now().Unix() + delaySeconds
	s.persistAndStore(t)
	s.armWaitTimer(t.ID, time.Duration(delaySeconds)*time.Second)
}

// PutToQueueDelay is mechanically identical to PutToWait; it exists as a
// separate statemachine.Scheduler method because the retry path and the
// add_new_task path are conceptually distinct operations even though both
// reduce to "persist a future wait_time and arm a timer."
func (s *Scheduler) PutToQueueDelay(t task.Task, delaySeconds int64) {
	s.PutToWait(t, delaySeconds)
}

func (s *Scheduler) armWaitTimer(id int64, d time.Duration) {
	if existing, ok := s.waitTimers[id]; ok {
		existing.Stop()
	}
	s.waitTimers[id] = time.AfterFunc(d, func() {
		s.exec(func() { s.fireWaitTimer(id) })
	})
}

func (s *Scheduler) fireWaitTimer(id int64) {
	delete(s.waitTimers, id)
	t, ok := s.live[id]
	if !ok || t.State != task.StateWaiting {
		return
	}
	s.PutToQueue(t, t.Priority)
}

func (s *Scheduler) SkipWait(id int64) (task.Task, bool) {
	if timer, ok := s.waitTimers[id]; ok {
		timer.Stop()
		delete(s.waitTimers, id)
	}
	t, ok := s.live[id]
	return t, ok
}

func (s *Scheduler) RemoveFromQueue(id int64) (task.Task, bool) {
	s.queue.Remove(id)
	t, ok := s.live[id]
	return t, ok
}

func (s *Scheduler) Reprioritize(t task.Task, priority task.Priority) {
	s.queue.Reprioritize(t.ID, priority)
	t.Priority = priority
	s.persistAndStore(t)
}

// SpawnWorker acquires no gate slot itself — callers must already hold
// one (drainQueue acquires it before calling). It reclaims a parked worker from suspendWorkers if present rather
// than constructing a new one.
func (s *Scheduler) SpawnWorker(t task.Task) {
	if w, ok := s.suspendWorkers[t.ID]; ok {
		delete(s.suspendWorkers, t.ID)
		ctx, cancel := context.WithCancel(context.Background())
		s.ongoingWorkers[t.ID] = w
		s.ongoingCancel[t.ID] = cancel
		t.State = task.StateProcessing
		s.persistAndStore(t)
		go func() {
			_ = w.Resume(ctx)
		}()
		return
	}

	w, err := s.factory.New(t, s.capacity)
	if err != nil {
		s.gate.Release()
		s.handleWorkerError(t, err)
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	s.ongoingWorkers[t.ID] = w
	s.ongoingCancel[t.ID] = cancel
	t.State = task.StateProcessing
	s.persistAndStore(t)
	go func() {
		runErr := w.Start(ctx)
		s.exec(func() { s.finishWorker(t.ID, runErr) })
	}()
}

// StartFromLoad is the `load` recovery transition for a task that was
// PROCESSING (thenPause=false) or PAUSE (thenPause=true) when the process
// last stopped. No worker instance survives a restart, so a fresh one is
// built and immediately paused back down if the persisted state was PAUSE.
func (s *Scheduler) StartFromLoad(t task.Task, thenPause bool) {
	if err := s.gate.Acquire(context.Background()); err != nil {
		return
	}
	w, err := s.factory.New(t, s.capacity)
	if err != nil {
		s.gate.Release()
		s.handleWorkerError(t, err)
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	s.ongoingWorkers[t.ID] = w
	s.ongoingCancel[t.ID] = cancel
	t.State = task.StateProcessing
	s.persistAndStore(t)
	go func() {
		if thenPause {
			_ = w.Pause(ctx)
		}
		runErr := w.Start(ctx)
		s.exec(func() { s.finishWorker(t.ID, runErr) })
	}()
	if thenPause {
		t.State = task.StatePause
		s.persistAndStore(t)
	}
}

func (s *Scheduler) PauseWorker(id int64) {
	if w, ok := s.ongoingWorkers[id]; ok {
		go func() { _ = w.Pause(context.Background()) }()
	}
	if t, ok := s.live[id]; ok {
		t.State = task.StatePause
		s.persistAndStore(t)
	}
}

func (s *Scheduler) ResumeWorker(id int64) {
	if w, ok := s.ongoingWorkers[id]; ok {
		go func() { _ = w.Resume(context.Background()) }()
	}
	if t, ok := s.live[id]; ok {
		t.State = task.StateProcessing
		s.persistAndStore(t)
	}
}

// CancelWorker handles cancel from both PROCESSING and PAUSE (ongoing
// worker) as well as SUSPENDED (parked worker), then destroys the task.
// Gate release and bookkeeping removal always happen here, regardless of
// which path the worker's Start() call
// eventually returns through; finishWorker tolerates the resulting "task
// no longer live" race without double-releasing or double-emitting.
func (s *Scheduler) CancelWorker(t task.Task) {
	if w, ok := s.ongoingWorkers[t.ID]; ok {
		cancel := s.ongoingCancel[t.ID]
		delete(s.ongoingWorkers, t.ID)
		delete(s.ongoingCancel, t.ID)
		s.gate.Release()
		go func() {
			_ = w.Cancel(context.Background())
			if cancel != nil {
				cancel()
			}
		}()
	} else if w, ok := s.suspendWorkers[t.ID]; ok {
		delete(s.suspendWorkers, t.ID)
		go func() { _ = w.Cancel(context.Background()) }()
	}
	s.Destroy(t)
	s.emitLifecycle(EventTypeTaskCancelled, t.ID)
}

// SuspendWorker pauses the live worker and parks it in suspendWorkers
// without destroying it, releasing its gate slot: a SUSPENDED task holds
// no gate slot.
func (s *Scheduler) SuspendWorker(t task.Task) {
	if w, ok := s.ongoingWorkers[t.ID]; ok {
		delete(s.ongoingWorkers, t.ID)
		delete(s.ongoingCancel, t.ID)
		s.suspendWorkers[t.ID] = w
		s.gate.Release()
		go func() { _ = w.Pause(context.Background()) }()
	}
	t.State = task.StateSuspended
	s.persistAndStore(t)
	s.emitLifecycle(EventTypeTaskSuspended, t.ID)
}

// ParkFreshWorker is the `load` recovery path for a SUSPENDED task: build a
// worker via the factory and park it without running it, since a suspended
// task holds no gate slot and must not start I/O until resumed.
func (s *Scheduler) ParkFreshWorker(t task.Task) {
	w, err := s.factory.New(t, s.capacity)
	if err != nil {
		if s.logger != nil {
			s.logger.Warn("scheduler: failed to reconstruct suspended worker on load", "kind", s.kind, "id", t.ID, "error", err)
		}
		s.live[t.ID] = t
		return
	}
	s.suspendWorkers[t.ID] = w
	s.live[t.ID] = t
}

func (s *Scheduler) Destroy(t task.Task) {
	if _, err := s.repo.Delete(context.Background(), t.ID); err != nil && s.logger != nil {
		s.logger.Warn("scheduler: delete failed", "kind", s.kind, "id", t.ID, "error", err)
	}
	delete(s.live, t.ID)
}

func (s *Scheduler) Record(t task.Task) {
	s.live[t.ID] = t
}

func (s *Scheduler) RetryDelaySeconds() int64 { return s.cfg.RetryDelaySeconds }

func (s *Scheduler) handleWorkerError(t task.Task, err error) {
	t.State = task.StateFailed
	s.persistAndStore(t)
	s.bus.Emit(eventbus.TopicProcessingError, ProcessingError{Task: s.live[t.ID], Err: err})
	s.emitLifecycle(EventTypeTaskFailed, t.ID)
}

// finishWorker runs when a worker's Start() returns, always on the Run
// goroutine. If the task is no longer live (cancelled out from under the
// worker), it only tears down bookkeeping — CancelWorker already released
// the gate and destroyed the record.
func (s *Scheduler) finishWorker(id int64, runErr error) {
	_, hadWorker := s.ongoingWorkers[id]
	delete(s.ongoingWorkers, id)
	delete(s.ongoingCancel, id)
	if hadWorker {
		s.gate.Release()
	}

	t, ok := s.live[id]
	if !ok {
		return
	}
	if runErr != nil {
		s.handleWorkerError(t, runErr)
		return
	}
	t.State = task.StateCompleted
	s.persistAndStore(t)
	s.bus.Emit(eventbus.TopicComplete, s.live[id])
	s.emitLifecycle(EventTypeTaskCompleted, id)
}

// ---- public operations ----

// AddNewTask persists t as WAITING and immediately dispatches the `load`
// transition, which enqueues it or arms its wait timer depending on
// eligibility. A bare task (WaitTime left at zero) gets AutoWaitSeconds
// added onto the current time when the scheduler's Config enables it.
func (s *Scheduler) AddNewTask(ctx context.Context, t task.Task) (task.Task, error) {
	t.Kind = s.kind
	t.State = task.StateWaiting
	if t.WaitTime == 0 && s.cfg.AutoWaitSeconds > 0 {
		t.WaitTime = time.Now().Unix() + s.cfg.AutoWaitSeconds
	}
	created, err := s.repo.Create(ctx, t)
	if err != nil {
		return task.Task{}, fmt.Errorf("scheduler: create task: %w", err)
	}
	var result task.Task
	s.exec(func() {
		s.live[created.ID] = created
		statemachine.Apply(s, created, statemachine.EventLoad)
		result = s.live[created.ID]
		s.bus.Emit(eventbus.TopicNewTaskCreated, result)
		s.emitLifecycle(EventTypeTaskScheduled, result.ID)
	})
	return result, nil
}

// OnFeed mirrors "on_feed(feed) is effectively equivalent to
// add_new_task(new_task_from_feed(feed))": the caller (the subscriber's
// update-callback handler) is responsible for building t from the parsed
// feed entry.
func (s *Scheduler) OnFeed(ctx context.Context, t task.Task) (task.Task, error) {
	return s.AddNewTask(ctx, t)
}

// EditTask merges delta onto the persisted task if its current state is
// editable; otherwise it returns ErrEditRejected.
func (s *Scheduler) EditTask(ctx context.Context, delta task.Delta) (task.Task, error) {
	var result task.Task
	var editErr error
	s.exec(func() {
		current, ok := s.live[delta.ID]
		if !ok {
			editErr = repository.ErrNotFound
			return
		}
		if !task.EditableStates[current.State] {
			editErr = ErrEditRejected
			return
		}
		merged := delta.Apply(current)
		s.persistAndStore(merged)
		result = s.live[merged.ID]
		s.bus.Emit(eventbus.TopicTaskEdited, result)
	})
	if editErr != nil {
		return task.Task{}, editErr
	}
	return result, nil
}

func (s *Scheduler) dispatch(id int64, ev statemachine.Event) {
	s.exec(func() {
		t, ok := s.live[id]
		if !ok {
			return
		}
		statemachine.Apply(s, t, ev)
	})
}

func (s *Scheduler) OnPause(id int64)   { s.dispatch(id, statemachine.EventPause) }
func (s *Scheduler) OnResume(id int64)  { s.dispatch(id, statemachine.EventResume) }
func (s *Scheduler) OnCancel(id int64)  { s.dispatch(id, statemachine.EventCancel) }
func (s *Scheduler) OnForce(id int64)   { s.dispatch(id, statemachine.EventForce) }
func (s *Scheduler) OnSuspend(id int64) { s.dispatch(id, statemachine.EventSuspend) }

// OnRetry dispatches the retry transition. Unlike the other On* methods it
// reports whether the transition applied, because retry on a COMPLETED
// task is an explicit operator action, and the API layer needs to know
// whether the operator's request was honored.
func (s *Scheduler) OnRetry(id int64) error {
	var opErr error
	s.exec(func() {
		t, ok := s.live[id]
		if !ok {
			opErr = repository.ErrNotFound
			return
		}
		if t.State != task.StateCompleted && t.State != task.StateFailed {
			opErr = ErrIllegalTransition
			return
		}
		statemachine.Apply(s, t, statemachine.EventRetry)
	})
	return opErr
}

// OnSetConcurrent changes the gate's capacity. It deliberately does not
// route through exec: Gate.SetCapacity blocks until no workers are in
// flight, and workers only release their slot via a finishWorker call
// submitted through exec — routing SetCapacity through exec as well would
// deadlock the dispatcher against itself.
func (s *Scheduler) OnSetConcurrent(n int) error {
	if err := s.gate.SetCapacity(n); err != nil {
		return err
	}
	s.cfg.MaxConcurrent = n
	s.emitLifecycle(EventTypeConcurrencySet, 0)
	s.nudge()
	return nil
}

// OnSetRetryDelay changes the retry delay applied to future WAITING
// transitions.
func (s *Scheduler) OnSetRetryDelay(seconds int64) {
	s.exec(func() { s.cfg.RetryDelaySeconds = seconds })
}

// LoadTasks scans the repository and dispatches `load` to every task,
// reconstructing in-memory queue/timer/worker state from persisted state.
// It must be called once, before Run starts — and therefore before any
// other goroutine can reach this scheduler — so it accesses the
// dispatcher-owned maps directly instead of going through exec.
func (s *Scheduler) LoadTasks(ctx context.Context) error {
	tasks, err := s.repo.GetMultiple(ctx, task.Filter{})
	if err != nil {
		return fmt.Errorf("scheduler: load tasks: %w", err)
	}
	for _, t := range tasks {
		s.live[t.ID] = t
		statemachine.Apply(s, t, statemachine.EventLoad)
	}
	return nil
}

// Get returns a snapshot of a known task.
func (s *Scheduler) Get(id int64) (task.Task, bool) {
	var t task.Task
	var ok bool
	s.exec(func() { t, ok = s.live[id] })
	return t, ok
}

// List returns a snapshot of every task matching filter.
func (s *Scheduler) List(filter task.Filter) []task.Task {
	var out []task.Task
	s.exec(func() {
		for _, t := range s.live {
			if matchesFilter(t, filter) {
				out = append(out, t)
			}
		}
	})
	return out
}

func matchesFilter(t task.Task, filter task.Filter) bool {
	if len(filter.States) == 0 {
		return true
	}
	found := false
	for _, st := range filter.States {
		if t.State == st {
			found = true
			break
		}
	}
	if filter.FilterOut {
		return !found
	}
	return found
}
