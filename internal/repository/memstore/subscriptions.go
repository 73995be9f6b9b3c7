package memstore

import (
	"context"
	"sync"

	"github.com/OSU-Foreclosure-Task-Force/EasyRepost/internal/repository"
)

// HubStore is an in-memory repository.HubRepository.
type HubStore struct {
	mu     sync.Mutex
	nextID int64
	hubs   map[int64]repository.Hub
}

// NewHubStore returns an empty HubStore.
func NewHubStore() *HubStore {
	return &HubStore{hubs: make(map[int64]repository.Hub)}
}

func (s *HubStore) GetMultiple(ctx context.Context) ([]repository.Hub, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]repository.Hub, 0, len(s.hubs))
	for _, h := range s.hubs {
		out = append(out, h)
	}
	return out, nil
}

func (s *HubStore) Get(ctx context.Context, id int64) (repository.Hub, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	h, ok := s.hubs[id]
	if !ok {
		return repository.Hub{}, repository.ErrNotFound
	}
	return h, nil
}

func (s *HubStore) Create(ctx context.Context, h repository.Hub) (repository.Hub, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	h.ID = s.nextID
	s.hubs[h.ID] = h
	return h, nil
}

func (s *HubStore) Update(ctx context.Context, h repository.Hub) (repository.Hub, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.hubs[h.ID]; !ok {
		return repository.Hub{}, repository.ErrNotFound
	}
	s.hubs[h.ID] = h
	return h, nil
}

func (s *HubStore) Delete(ctx context.Context, id int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.hubs[id]; !ok {
		return false, nil
	}
	delete(s.hubs, id)
	return true, nil
}

// SubscriptionStore is an in-memory repository.SubscriptionRepository.
type SubscriptionStore struct {
	mu     sync.Mutex
	nextID int64
	subs   map[int64]repository.Subscription
}

// NewSubscriptionStore returns an empty SubscriptionStore.
func NewSubscriptionStore() *SubscriptionStore {
	return &SubscriptionStore{subs: make(map[int64]repository.Subscription)}
}

func (s *SubscriptionStore) GetMultiple(ctx context.Context) ([]repository.Subscription, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]repository.Subscription, 0, len(s.subs))
	for _, sub := range s.subs {
		out = append(out, sub)
	}
	return out, nil
}

func (s *SubscriptionStore) Get(ctx context.Context, id int64) (repository.Subscription, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sub, ok := s.subs[id]
	if !ok {
		return repository.Subscription{}, repository.ErrNotFound
	}
	return sub, nil
}

func (s *SubscriptionStore) Create(ctx context.Context, sub repository.Subscription) (repository.Subscription, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	sub.ID = s.nextID
	s.subs[sub.ID] = sub
	return sub, nil
}

func (s *SubscriptionStore) Update(ctx context.Context, sub repository.Subscription) (repository.Subscription, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.subs[sub.ID]; !ok {
		return repository.Subscription{}, repository.ErrNotFound
	}
	s.subs[sub.ID] = sub
	return sub, nil
}

func (s *SubscriptionStore) Delete(ctx context.Context, id int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.subs[id]; !ok {
		return false, nil
	}
	delete(s.subs, id)
	return true, nil
}
