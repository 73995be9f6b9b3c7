// Package worker defines the contract the core scheduler invokes to do the
// actual I/O for a task. Concrete implementations (the
// video-site downloader wrapper, the uploader client) live outside this
// module; the core only ever sees this interface.
package worker

import (
	"context"

	"github.com/OSU-Foreclosure-Task-Force/EasyRepost/internal/task"
)

// Worker performs one task's I/O. Start blocks until the task finishes,
// fails, or is cancelled. Pause/Resume/Cancel are idempotent; Cancel also
// terminates a paused worker.
type Worker interface {
	Start(ctx context.Context) error
	Pause(ctx context.Context) error
	Resume(ctx context.Context) error
	Cancel(ctx context.Context) error

	// Progress reports completion fraction in [0,1]. Workers that cannot
	// meaningfully report progress may always return 0.
	Progress() float64
}

// CapacityChecker lets a worker probe cache-space availability before
// starting I/O; workers must not start I/O before it is satisfied.
type CapacityChecker interface {
	HasSpace(ctx context.Context, bytes int64) (bool, error)
}

// Factory constructs a Worker for a task. Suspended tasks are reclaimed by
// id rather than recreated; Factory is only called for tasks with no
// parked worker to reclaim.
type Factory interface {
	New(t task.Task, capacity CapacityChecker) (Worker, error)
}

// FactoryFunc adapts a plain function to Factory.
type FactoryFunc func(t task.Task, capacity CapacityChecker) (Worker, error)

func (f FactoryFunc) New(t task.Task, capacity CapacityChecker) (Worker, error) {
	return f(t, capacity)
}
