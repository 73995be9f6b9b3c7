package main

import (
	"context"
	"sync"
	"time"

	"github.com/OSU-Foreclosure-Task-Force/EasyRepost/internal/task"
	"github.com/OSU-Foreclosure-Task-Force/EasyRepost/internal/worker"
)

// simulatedWorker stands in for the real yt-dlp-backed downloader and the
// upload client: concrete site adapters are explicitly out of scope, invoked
// only through the worker.Worker interface, so this is the factory
// cmd/easyrepostd wires until a real one is swapped in.
// It reports linear progress over a fixed duration and honors pause/resume
// by blocking its own progression goroutine.
type simulatedWorker struct {
	mu       sync.Mutex
	paused   bool
	progress float64
	cancel   context.CancelFunc
}

const simulatedWorkDuration = 5 * time.Second

func newSimulatedWorker(t task.Task, capacity worker.CapacityChecker) (worker.Worker, error) {
	return &simulatedWorker{}, nil
}

func (w *simulatedWorker) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	w.mu.Lock()
	w.cancel = cancel
	w.mu.Unlock()

	ticker := time.NewTicker(simulatedWorkDuration / 100)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			w.mu.Lock()
			paused := w.paused
			if !paused {
				w.progress += 0.01
			}
			done := w.progress >= 1
			w.mu.Unlock()
			if done {
				return nil
			}
		}
	}
}

func (w *simulatedWorker) Pause(ctx context.Context) error {
	w.mu.Lock()
	w.paused = true
	w.mu.Unlock()
	return nil
}

func (w *simulatedWorker) Resume(ctx context.Context) error {
	w.mu.Lock()
	w.paused = false
	w.mu.Unlock()
	return nil
}

func (w *simulatedWorker) Cancel(ctx context.Context) error {
	w.mu.Lock()
	cancel := w.cancel
	w.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	return nil
}

func (w *simulatedWorker) Progress() float64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.progress
}
