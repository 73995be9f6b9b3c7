// Package memstore implements repository.TaskRepository purely in memory.
// It exists for tests (scheduler, httpapi) and is grounded on
// _examples/GoCodeAlone-modular/modules/scheduler/memory_store.go's
// map+mutex MemoryJobStore shape.
package memstore

import (
	"context"
	"sync"

	"github.com/OSU-Foreclosure-Task-Force/EasyRepost/internal/repository"
	"github.com/OSU-Foreclosure-Task-Force/EasyRepost/internal/task"
)

// TaskStore is an in-memory repository.TaskRepository.
type TaskStore struct {
	mu     sync.Mutex
	kind   task.Kind
	nextID int64
	tasks  map[int64]task.Task
}

// New returns an empty TaskStore for the given kind.
func New(kind task.Kind) *TaskStore {
	return &TaskStore{kind: kind, tasks: make(map[int64]task.Task)}
}

func matches(t task.Task, filter task.Filter) bool {
	if len(filter.States) == 0 {
		return true
	}
	found := false
	for _, s := range filter.States {
		if t.State == s {
			found = true
			break
		}
	}
	if filter.FilterOut {
		return !found
	}
	return found
}

func (s *TaskStore) GetMultiple(ctx context.Context, filter task.Filter) ([]task.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []task.Task
	for _, t := range s.tasks {
		if matches(t, filter) {
			out = append(out, t)
		}
	}
	return out, nil
}

func (s *TaskStore) Get(ctx context.Context, id int64) (task.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tasks[id]
	if !ok {
		return task.Task{}, repository.ErrNotFound
	}
	return t, nil
}

func (s *TaskStore) Create(ctx context.Context, t task.Task) (task.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	t.ID = s.nextID
	t.Kind = s.kind
	s.tasks[t.ID] = t
	return t, nil
}

func (s *TaskStore) Update(ctx context.Context, t task.Task) (task.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.tasks[t.ID]; !ok {
		return task.Task{}, repository.ErrNotFound
	}
	t.Kind = s.kind
	s.tasks[t.ID] = t
	return t, nil
}

func (s *TaskStore) Delete(ctx context.Context, id int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.tasks[id]; !ok {
		return false, nil
	}
	delete(s.tasks, id)
	return true, nil
}
