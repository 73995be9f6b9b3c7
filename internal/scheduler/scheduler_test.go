package scheduler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/OSU-Foreclosure-Task-Force/EasyRepost/internal/eventbus"
	"github.com/OSU-Foreclosure-Task-Force/EasyRepost/internal/repository/memstore"
	"github.com/OSU-Foreclosure-Task-Force/EasyRepost/internal/task"
	"github.com/OSU-Foreclosure-Task-Force/EasyRepost/internal/worker"
)

// fakeWorker blocks in Start until either unblock is closed (simulating
// completion with result) or its context is cancelled.
type fakeWorker struct {
	mu       sync.Mutex
	started  chan struct{}
	unblock  chan struct{}
	result   error
	cancelled bool
}

func newFakeWorker(result error) *fakeWorker {
	return &fakeWorker{started: make(chan struct{}), unblock: make(chan struct{}), result: result}
}

func (w *fakeWorker) Start(ctx context.Context) error {
	close(w.started)
	select {
	case <-w.unblock:
		return w.result
	case <-ctx.Done():
		return ctx.Err()
	}
}
func (w *fakeWorker) Pause(ctx context.Context) error  { return nil }
func (w *fakeWorker) Resume(ctx context.Context) error { return nil }
func (w *fakeWorker) Cancel(ctx context.Context) error {
	w.mu.Lock()
	w.cancelled = true
	w.mu.Unlock()
	close(w.unblock)
	return nil
}
func (w *fakeWorker) Progress() float64 { return 0 }
func (w *fakeWorker) wasCancelled() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.cancelled
}

// instantWorker completes (or fails) the moment Start is called, without
// blocking — used where the test just needs the task to reach a terminal
// state quickly.
type instantWorker struct{ result error }

func (w instantWorker) Start(ctx context.Context) error  { return w.result }
func (w instantWorker) Pause(ctx context.Context) error  { return nil }
func (w instantWorker) Resume(ctx context.Context) error { return nil }
func (w instantWorker) Cancel(ctx context.Context) error { return nil }
func (w instantWorker) Progress() float64                { return 0 }

func waitUntil(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(time.Millisecond)
	}
	require.True(t, cond(), "condition not met within %s", timeout)
}

func newTestScheduler(t *testing.T, cfg Config, factory worker.Factory) (*Scheduler, context.CancelFunc) {
	t.Helper()
	repo := memstore.New(task.KindDownload)
	bus := eventbus.New()
	s := New(task.KindDownload, repo, bus, factory, nil, cfg, nil)
	ctx, cancel := context.WithCancel(context.Background())
	go s.Run(ctx)
	t.Cleanup(cancel)
	return s, cancel
}

func TestAddNewTaskEligibleReachesProcessing(t *testing.T) {
	blocking := map[int64]*fakeWorker{}
	var mu sync.Mutex
	factory := worker.FactoryFunc(func(tk task.Task, capacity worker.CapacityChecker) (worker.Worker, error) {
		w := newFakeWorker(nil)
		mu.Lock()
		blocking[tk.ID] = w
		mu.Unlock()
		return w, nil
	})
	s, _ := newTestScheduler(t, Config{MaxConcurrent: 1}, factory)

	created, err := s.AddNewTask(context.Background(), task.Task{Name: "t1", Priority: task.PriorityDefault})
	require.NoError(t, err)
	require.NotZero(t, created.ID)

	waitUntil(t, time.Second, func() bool {
		got, ok := s.Get(created.ID)
		return ok && got.State == task.StateProcessing
	})
}

func TestPriorityOrderDequeuesHighFirst(t *testing.T) {
	var mu sync.Mutex
	var order []int64
	gateOpen := make(chan struct{})
	factory := worker.FactoryFunc(func(tk task.Task, capacity worker.CapacityChecker) (worker.Worker, error) {
		mu.Lock()
		order = append(order, tk.ID)
		mu.Unlock()
		return &trackingWorker{unblock: gateOpen, onDone: func() {}}, nil
	})
	s, _ := newTestScheduler(t, Config{MaxConcurrent: 1}, factory)

	// Hold the gate open after the first task starts so the remaining
	// three queue up and we can observe strict dequeue order.
	first, err := s.AddNewTask(context.Background(), task.Task{Name: "first", Priority: task.PriorityDefault})
	require.NoError(t, err)
	waitUntil(t, time.Second, func() bool {
		got, ok := s.Get(first.ID)
		return ok && got.State == task.StateProcessing
	})

	noHurry, _ := s.AddNewTask(context.Background(), task.Task{Name: "nohurry", Priority: task.PriorityNoHurry})
	inHurry1, _ := s.AddNewTask(context.Background(), task.Task{Name: "hurry1", Priority: task.PriorityInHurry})
	inHurry2, _ := s.AddNewTask(context.Background(), task.Task{Name: "hurry2", Priority: task.PriorityInHurry})

	close(gateOpen) // let the first worker (and all subsequent ones) run to completion

	waitUntil(t, 2*time.Second, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(order) == 4
	})

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, order, 4)
	assert.Equal(t, first.ID, order[0])
	// both IN_HURRY tasks must precede the NO_HURRY task, in FIFO order
	hurryIdx1 := indexOf(order, inHurry1.ID)
	hurryIdx2 := indexOf(order, inHurry2.ID)
	noHurryIdx := indexOf(order, noHurry.ID)
	assert.Less(t, hurryIdx1, noHurryIdx)
	assert.Less(t, hurryIdx2, noHurryIdx)
	assert.Less(t, hurryIdx1, hurryIdx2)
}

func indexOf(xs []int64, v int64) int {
	for i, x := range xs {
		if x == v {
			return i
		}
	}
	return -1
}

func TestGateNeverExceedsCapacity(t *testing.T) {
	unblock := make(chan struct{})
	var mu sync.Mutex
	peak := 0
	current := 0
	factory := worker.FactoryFunc(func(tk task.Task, capacity worker.CapacityChecker) (worker.Worker, error) {
		mu.Lock()
		current++
		if current > peak {
			peak = current
		}
		mu.Unlock()
		return &trackingWorker{unblock: unblock, onDone: func() {
			mu.Lock()
			current--
			mu.Unlock()
		}}, nil
	})
	s, _ := newTestScheduler(t, Config{MaxConcurrent: 2}, factory)

	for i := 0; i < 5; i++ {
		_, err := s.AddNewTask(context.Background(), task.Task{Name: "t", Priority: task.PriorityDefault})
		require.NoError(t, err)
	}

	waitUntil(t, time.Second, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return current == 2
	})
	mu.Lock()
	assert.LessOrEqual(t, peak, 2)
	mu.Unlock()
	close(unblock)
}

type trackingWorker struct {
	unblock chan struct{}
	onDone  func()
}

func (w *trackingWorker) Start(ctx context.Context) error {
	<-w.unblock
	w.onDone()
	return nil
}
func (w *trackingWorker) Pause(ctx context.Context) error  { return nil }
func (w *trackingWorker) Resume(ctx context.Context) error { return nil }
func (w *trackingWorker) Cancel(ctx context.Context) error { return nil }
func (w *trackingWorker) Progress() float64                { return 0 }

func TestForceStartTwiceIsIdempotent(t *testing.T) {
	hold := make(chan struct{})
	factory := worker.FactoryFunc(func(tk task.Task, capacity worker.CapacityChecker) (worker.Worker, error) {
		return &trackingWorker{unblock: hold, onDone: func() {}}, nil
	})
	// MaxConcurrent 1 with an already-running task keeps the next add in
	// IN_QUEUE so force_start has something to act on.
	s, _ := newTestScheduler(t, Config{MaxConcurrent: 1}, factory)
	blocker, err := s.AddNewTask(context.Background(), task.Task{Name: "blocker", Priority: task.PriorityDefault})
	require.NoError(t, err)
	waitUntil(t, time.Second, func() bool {
		got, _ := s.Get(blocker.ID)
		return got.State == task.StateProcessing
	})

	queued, err := s.AddNewTask(context.Background(), task.Task{Name: "queued", Priority: task.PriorityNoHurry})
	require.NoError(t, err)
	waitUntil(t, time.Second, func() bool {
		got, _ := s.Get(queued.ID)
		return got.State == task.StateInQueue
	})

	s.OnForce(queued.ID)
	s.OnForce(queued.ID)

	got, ok := s.Get(queued.ID)
	require.True(t, ok)
	assert.Equal(t, task.PriorityInHurry, got.Priority)
	assert.Equal(t, 1, s.queue.Len(), "force_start twice must leave exactly one live queue entry")
	close(hold)
}

func TestPauseThenCancelLeavesNoWorkerBehind(t *testing.T) {
	w := newFakeWorker(nil)
	factory := worker.FactoryFunc(func(tk task.Task, capacity worker.CapacityChecker) (worker.Worker, error) {
		return w, nil
	})
	s, _ := newTestScheduler(t, Config{MaxConcurrent: 1}, factory)
	created, err := s.AddNewTask(context.Background(), task.Task{Name: "t", Priority: task.PriorityDefault})
	require.NoError(t, err)
	<-w.started

	s.OnPause(created.ID)
	waitUntil(t, time.Second, func() bool {
		got, _ := s.Get(created.ID)
		return got.State == task.StatePause
	})

	s.OnCancel(created.ID)
	waitUntil(t, time.Second, func() bool {
		_, ok := s.Get(created.ID)
		return !ok
	})
	waitUntil(t, time.Second, w.wasCancelled)
	assert.Equal(t, 0, s.gate.InFlight())
}

func TestRetryNotEarlierThanConfiguredDelay(t *testing.T) {
	factory := worker.FactoryFunc(func(tk task.Task, capacity worker.CapacityChecker) (worker.Worker, error) {
		return instantWorker{result: errors.New("boom")}, nil
	})
	s, _ := newTestScheduler(t, Config{MaxConcurrent: 1, RetryDelaySeconds: 1}, factory)
	created, err := s.AddNewTask(context.Background(), task.Task{Name: "t", Priority: task.PriorityDefault})
	require.NoError(t, err)

	waitUntil(t, time.Second, func() bool {
		got, _ := s.Get(created.ID)
		return got.State == task.StateFailed
	})

	before := time.Now()
	require.NoError(t, s.OnRetry(created.ID))
	got, ok := s.Get(created.ID)
	require.True(t, ok)
	assert.Equal(t, task.StateWaiting, got.State)
	assert.GreaterOrEqual(t, got.WaitTime, before.Add(time.Second).Unix())
}

func TestAddNewTaskAppliesAutoWaitSecondsToBareTask(t *testing.T) {
	w := newFakeWorker(nil)
	factory := worker.FactoryFunc(func(tk task.Task, capacity worker.CapacityChecker) (worker.Worker, error) {
		return w, nil
	})
	s, _ := newTestScheduler(t, Config{MaxConcurrent: 1, AutoWaitSeconds: 3600}, factory)

	before := time.Now()
	created, err := s.AddNewTask(context.Background(), task.Task{Name: "t", Priority: task.PriorityDefault})
	require.NoError(t, err)

	assert.Equal(t, task.StateWaiting, created.State)
	assert.GreaterOrEqual(t, created.WaitTime, before.Add(3600*time.Second).Unix())
}

func TestAddNewTaskLeavesExplicitWaitTimeAlone(t *testing.T) {
	factory := worker.FactoryFunc(func(tk task.Task, capacity worker.CapacityChecker) (worker.Worker, error) {
		return instantWorker{}, nil
	})
	s, _ := newTestScheduler(t, Config{MaxConcurrent: 1, AutoWaitSeconds: 3600}, factory)

	want := time.Now().Add(time.Minute).Unix()
	created, err := s.AddNewTask(context.Background(), task.Task{Name: "t", Priority: task.PriorityDefault, WaitTime: want})
	require.NoError(t, err)
	assert.Equal(t, want, created.WaitTime)
}

func TestOnRetryRejectsNonTerminalState(t *testing.T) {
	w := newFakeWorker(nil)
	factory := worker.FactoryFunc(func(tk task.Task, capacity worker.CapacityChecker) (worker.Worker, error) {
		return w, nil
	})
	s, _ := newTestScheduler(t, Config{MaxConcurrent: 1}, factory)
	created, err := s.AddNewTask(context.Background(), task.Task{Name: "t", Priority: task.PriorityDefault})
	require.NoError(t, err)
	<-w.started

	err = s.OnRetry(created.ID)
	assert.ErrorIs(t, err, ErrIllegalTransition)
}

func TestAutoRetryCyclesFailedBackToProcessing(t *testing.T) {
	var attempts int
	var mu sync.Mutex
	factory := worker.FactoryFunc(func(tk task.Task, capacity worker.CapacityChecker) (worker.Worker, error) {
		mu.Lock()
		attempts++
		n := attempts
		mu.Unlock()
		if n < 3 {
			return instantWorker{result: errors.New("transient")}, nil
		}
		return instantWorker{}, nil
	})
	s, _ := newTestScheduler(t, Config{MaxConcurrent: 1, AutoRetry: true, RetryDelaySeconds: 0}, factory)
	s.BindAutoRetry()

	created, err := s.AddNewTask(context.Background(), task.Task{Name: "t", Priority: task.PriorityDefault})
	require.NoError(t, err)

	waitUntil(t, 2*time.Second, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return attempts >= 3
	})
	waitUntil(t, time.Second, func() bool {
		got, ok := s.Get(created.ID)
		return ok && got.State == task.StateCompleted
	})
}

func TestEditRejectedWhileProcessing(t *testing.T) {
	w := newFakeWorker(nil)
	factory := worker.FactoryFunc(func(tk task.Task, capacity worker.CapacityChecker) (worker.Worker, error) {
		return w, nil
	})
	s, _ := newTestScheduler(t, Config{MaxConcurrent: 1}, factory)
	created, err := s.AddNewTask(context.Background(), task.Task{Name: "t", Priority: task.PriorityDefault})
	require.NoError(t, err)
	<-w.started

	newName := "renamed"
	_, err = s.EditTask(context.Background(), task.Delta{ID: created.ID, Name: &newName})
	assert.ErrorIs(t, err, ErrEditRejected)
}

func TestEditTaskMergesWhileWaiting(t *testing.T) {
	factory := worker.FactoryFunc(func(tk task.Task, capacity worker.CapacityChecker) (worker.Worker, error) {
		return instantWorker{}, nil
	})
	s, _ := newTestScheduler(t, Config{MaxConcurrent: 1}, factory)
	created, err := s.AddNewTask(context.Background(), task.Task{Name: "t", Priority: task.PriorityDefault, WaitTime: time.Now().Add(time.Hour).Unix()})
	require.NoError(t, err)
	got, ok := s.Get(created.ID)
	require.True(t, ok)
	require.Equal(t, task.StateWaiting, got.State)

	newName := "renamed"
	updated, err := s.EditTask(context.Background(), task.Delta{ID: created.ID, Name: &newName})
	require.NoError(t, err)
	assert.Equal(t, "renamed", updated.Name)
}
