// Package repository defines the persistence contract the core consumes.
// The core never touches SQL directly; concrete storage lives in
// internal/repository/sqlitestore.
package repository

import (
	"context"
	"errors"

	"github.com/OSU-Foreclosure-Task-Force/EasyRepost/internal/task"
)

// ErrNotFound is returned by Get/Update/Delete when the id does not exist.
// Surfaced as 404 at the HTTP layer; treated as "already removed" by the
// scheduler.
var ErrNotFound = errors.New("repository: not found")

// TaskRepository is the async CRUD contract over Task records, shared by
// the download and upload schedulers against their own backing tables.
type TaskRepository interface {
	GetMultiple(ctx context.Context, filter task.Filter) ([]task.Task, error)
	Get(ctx context.Context, id int64) (task.Task, error)
	Create(ctx context.Context, t task.Task) (task.Task, error)
	Update(ctx context.Context, t task.Task) (task.Task, error)
	Delete(ctx context.Context, id int64) (bool, error)
}

// Hub is a WebSub hub endpoint.
type Hub struct {
	ID              int64
	Name            string
	URL             string
	SubscriptionAPI string // folded back in from original_source/model.py's Hub.subscription_api
}

// HubRepository is the CRUD contract for Hub entities.
type HubRepository interface {
	GetMultiple(ctx context.Context) ([]Hub, error)
	Get(ctx context.Context, id int64) (Hub, error)
	Create(ctx context.Context, h Hub) (Hub, error)
	Update(ctx context.Context, h Hub) (Hub, error)
	Delete(ctx context.Context, id int64) (bool, error)
}

// Subscription pairs a topic with a hub and carries the encrypted
// per-subscription HMAC secret and lease window.
type Subscription struct {
	ID              int64
	Site            string
	HubID           int64
	TopicURI        string
	EncryptedSecret []byte
	LeaseExpiry     int64 // epoch seconds
	PollingInterval int64 // seconds, RSS mode only; 0 for WebSub
}

// SubscriptionRepository is the CRUD contract for Subscription entities.
type SubscriptionRepository interface {
	GetMultiple(ctx context.Context) ([]Subscription, error)
	Get(ctx context.Context, id int64) (Subscription, error)
	Create(ctx context.Context, s Subscription) (Subscription, error)
	Update(ctx context.Context, s Subscription) (Subscription, error)
	Delete(ctx context.Context, id int64) (bool, error)
}
