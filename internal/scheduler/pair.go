package scheduler

import (
	"context"

	"github.com/OSU-Foreclosure-Task-Force/EasyRepost/internal/task"
)

// Pair bundles the download and upload schedulers. They share no state —
// separate queues, gates, bookkeeping maps, and event buses — but are
// constructed and run together since they come from the same config load
// and shut down on the same signal.
type Pair struct {
	Download *Scheduler
	Upload   *Scheduler
}

// NewPair wraps two already-constructed schedulers. Callers build each
// Scheduler with its own kind-scoped repository, worker factory, and
// eventbus.Bus, then combine them here purely for shared lifecycle.
func NewPair(download, upload *Scheduler) *Pair {
	return &Pair{Download: download, Upload: upload}
}

// LoadAll calls LoadTasks on both schedulers. Must run before Run.
func (p *Pair) LoadAll(ctx context.Context) error {
	if err := p.Download.LoadTasks(ctx); err != nil {
		return err
	}
	return p.Upload.LoadTasks(ctx)
}

// Run starts both dispatcher loops and blocks until ctx is cancelled.
func (p *Pair) Run(ctx context.Context) {
	done := make(chan struct{})
	go func() {
		p.Download.Run(ctx)
		close(done)
	}()
	p.Upload.Run(ctx)
	<-done
}

// For returns the scheduler responsible for kind.
func (p *Pair) For(kind task.Kind) *Scheduler {
	if kind == task.KindUpload {
		return p.Upload
	}
	return p.Download
}
