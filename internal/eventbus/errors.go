package eventbus

import "errors"

// Bus errors.
var (
	// ErrNilListener is returned by Bind/BindOnce when listener is nil.
	ErrNilListener = errors.New("eventbus: listener cannot be nil")

	// ErrUnknownSubscription names the unknown-token condition. Unbind does
	// not return it: Unbind has no return value, and unbinding an
	// already-cancelled or unknown token is a no-op, matching the state
	// machine's "illegal transitions never error" philosophy.
	ErrUnknownSubscription = errors.New("eventbus: unknown subscription")
)
