package scheduler

import "context"

// EventType constants for the scheduler's lifecycle observability events,
// emitted via EventEmitter in reverse-domain notation, following
// _examples/GoCodeAlone-modular/modules/scheduler/events.go's convention.
// These are distinct from the internal/eventbus topics (events.go in that
// package): eventbus topics drive application-level fan-out (auto-retry,
// SSE, logging); EventType* is cloudevents-shaped operational telemetry.
const (
	EventTypeTaskScheduled  = "com.easyrepost.scheduler.task.scheduled"
	EventTypeTaskStarted    = "com.easyrepost.scheduler.task.started"
	EventTypeTaskCompleted  = "com.easyrepost.scheduler.task.completed"
	EventTypeTaskFailed     = "com.easyrepost.scheduler.task.failed"
	EventTypeTaskCancelled  = "com.easyrepost.scheduler.task.cancelled"
	EventTypeTaskSuspended  = "com.easyrepost.scheduler.task.suspended"
	EventTypeConcurrencySet = "com.easyrepost.scheduler.concurrency.set"
)

// EventEmitter is the cloudevents sink a Scheduler reports lifecycle
// telemetry to. It is optional: a nil EventEmitter silently disables
// telemetry without affecting scheduling behavior.
type EventEmitter interface {
	EmitEvent(ctx context.Context, eventType string, data map[string]any) error
}
