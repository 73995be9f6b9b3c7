// Package eventbus implements a named, typed, in-process pub/sub bus: async
// fan-out to listeners, one-shot subscriptions, and an implicit error
// channel. It is grounded on original_source/event/Event.py
// (bind/unbind/bind_once/connect, deepcopy-before-dispatch, the "error"
// channel) and shaped after the Event/Subscription split in
// _examples/GoCodeAlone-modular/modules/eventbus/eventbus.go.
package eventbus

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
)

// Listener handles one emitted payload. Handlers are expected to be
// reasonably quick; long-running work should hand off to its own goroutine.
type Listener func(ctx context.Context, payload any)

// Token identifies a subscription for Unbind.
type Token uint64

type subscription struct {
	token    Token
	listener Listener
	once     bool
}

// Bus is a named, asynchronous, in-process publish/subscribe hub.
type Bus struct {
	mu        sync.RWMutex
	listeners map[string][]*subscription
	nextToken atomic.Uint64
}

// New returns an empty, ready-to-use Bus.
func New() *Bus {
	return &Bus{listeners: make(map[string][]*subscription)}
}

// Bind registers listener for every future emission on name and returns a
// token that can later be passed to Unbind.
func (b *Bus) Bind(name string, listener Listener) (Token, error) {
	return b.bind(name, listener, false)
}

// BindOnce registers listener to fire at most once, then auto-unbind.
func (b *Bus) BindOnce(name string, listener Listener) (Token, error) {
	return b.bind(name, listener, true)
}

func (b *Bus) bind(name string, listener Listener, once bool) (Token, error) {
	if listener == nil {
		return 0, ErrNilListener
	}
	token := Token(b.nextToken.Add(1))
	b.mu.Lock()
	b.listeners[name] = append(b.listeners[name], &subscription{token: token, listener: listener, once: once})
	b.mu.Unlock()
	return token, nil
}

// Unbind removes a previously registered listener by its token. It is a
// no-op (not an error condition the caller must branch on) if the token is
// unknown, since callers racing a Cancel with an in-flight once-listener
// should not have to special-case "already fired."
func (b *Bus) Unbind(name string, token Token) {
	b.mu.Lock()
	defer b.mu.Unlock()
	subs := b.listeners[name]
	for i, s := range subs {
		if s.token == token {
			b.listeners[name] = append(subs[:i], subs[i+1:]...)
			return
		}
	}
}

// Connect mirrors original_source/event/Event.py's `connect` decorator: it
// returns a registration function so call sites read as
// `bus.Connect("topic")(handler)`.
func (b *Bus) Connect(name string) func(Listener) (Token, error) {
	return func(l Listener) (Token, error) { return b.Bind(name, l) }
}

// Emit delivers payload to every listener bound to name. Delivery is
// asynchronous and best-effort: each listener runs on its own goroutine, in
// registration order they are *started*, and a panic
// inside one listener is recovered and re-emitted on ErrorTopic instead of
// crashing the process or blocking its siblings.
func (b *Bus) Emit(name string, payload any) {
	snapshot, copied := b.snapshotAndCopy(name, payload)
	for _, s := range snapshot {
		go b.dispatch(name, s, copied)
	}
}

// EmitError fans payload and err out on ErrorTopic, matching
// original_source/event/Event.py's emit_exception.
func (b *Bus) EmitError(err error, payload any) {
	wrapped := ErrorEvent{Err: err, Payload: payload}
	b.Emit(ErrorTopic, wrapped)
}

// ErrorEvent is the payload type delivered on ErrorTopic.
type ErrorEvent struct {
	Err     error
	Payload any
}

func (b *Bus) snapshotAndCopy(name string, payload any) ([]*subscription, any) {
	b.mu.Lock()
	subs := append([]*subscription(nil), b.listeners[name]...)
	var remaining []*subscription
	for _, s := range b.listeners[name] {
		if !s.once {
			remaining = append(remaining, s)
		}
	}
	b.listeners[name] = remaining
	b.mu.Unlock()
	return subs, deepCopy(payload)
}

func (b *Bus) dispatch(name string, s *subscription, payload any) {
	defer func() {
		if r := recover(); r != nil {
			b.EmitError(fmt.Errorf("eventbus: listener for %q panicked: %v", name, r), payload)
		}
	}()
	s.listener(context.Background(), payload)
}

// deepCopy round-trips payload through JSON so that listener mutations
// cannot leak back to the emitter or to sibling listeners.
// See DESIGN.md for why this uses encoding/json rather than a third-party
// structural-copy library. Values that cannot be marshalled (e.g. payloads
// carrying channels or functions) are passed through unchanged: those are
// exclusively internal command payloads the bus's own producers control,
// never external data.
func deepCopy(payload any) any {
	if payload == nil {
		return nil
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return payload
	}
	out := newZeroOf(payload)
	if err := json.Unmarshal(data, out); err != nil {
		return payload
	}
	return derefIfPointer(payload, out)
}
