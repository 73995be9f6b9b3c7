package scheduler

import "errors"

var (
	// ErrEditRejected is returned by EditTask when the task's current
	// state does not permit editing (only WAITING, IN_QUEUE, PAUSE,
	// SUSPENDED, COMPLETED, FAILED are editable).
	ErrEditRejected = errors.New("scheduler: task not editable in its current state")

	// ErrIllegalTransition is returned by the explicit operator-facing
	// operations (OnRetry) when the requested transition does not apply
	// to the task's current state. This is distinct from the internal
	// state machine, which treats illegal transitions as silent no-ops;
	// an operator-initiated call gets an error back instead.
	ErrIllegalTransition = errors.New("scheduler: transition not legal from the task's current state")
)
