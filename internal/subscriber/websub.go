package subscriber

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/OSU-Foreclosure-Task-Force/EasyRepost/internal/eventbus"
	"github.com/OSU-Foreclosure-Task-Force/EasyRepost/internal/repository"
)

// pendingValidation tracks one in-flight subscribe or unsubscribe handshake
// keyed by subscription id. result receives true the moment
// HandleValidation confirms the hub's verify_token, or false if the timer
// fires first: cancel on success, natural expiry on timeout.
type pendingValidation struct {
	timer  *time.Timer
	result chan bool
}

// WebSub drives the PubSubHubbub handshake: subscribe, unsubscribe, GET
// validation callbacks, and POST update callbacks. Grounded on
// original_source/handler/Subscriber.py's WebSubSubscriber.
type WebSub struct {
	Core

	mu      sync.Mutex
	pending map[int64]*pendingValidation
}

// NewWebSub wraps core for the WebSub handshake.
func NewWebSub(core Core) *WebSub {
	return &WebSub{Core: core, pending: make(map[int64]*pendingValidation)}
}

// Subscribe creates a Subscription row, POSTs a subscribe request to the
// hub, and blocks until the hub's GET validation callback arrives (via
// HandleValidation) or the validation interval elapses.
func (w *WebSub) Subscribe(ctx context.Context, site string, hubID int64, topicURI string) (repository.Subscription, error) {
	hub, err := w.hubs.Get(ctx, hubID)
	if err != nil {
		return repository.Subscription{}, fmt.Errorf("subscriber: look up hub: %w", err)
	}

	secret, err := randomSecret()
	if err != nil {
		return repository.Subscription{}, err
	}
	sealed, err := w.box.Seal(secret)
	if err != nil {
		return repository.Subscription{}, fmt.Errorf("subscriber: seal secret: %w", err)
	}

	sub, err := w.subs.Create(ctx, repository.Subscription{
		Site:            site,
		HubID:           hubID,
		TopicURI:        topicURI,
		EncryptedSecret: sealed,
	})
	if err != nil {
		return repository.Subscription{}, fmt.Errorf("subscriber: create subscription: %w", err)
	}

	if err := w.handshake(ctx, sub, hub, "subscribe", secret); err != nil {
		_, _ = w.subs.Delete(ctx, sub.ID)
		return repository.Subscription{}, err
	}

	w.bus.Emit(eventbus.TopicSubscribeComplete, sub)
	return sub, nil
}

// Unsubscribe is the symmetric teardown: same handshake, mode=unsubscribe,
// subscription row removed once the hub confirms — symmetric, with
// mode:unsubscribe.
func (w *WebSub) Unsubscribe(ctx context.Context, subscriptionID int64) error {
	sub, err := w.subs.Get(ctx, subscriptionID)
	if err != nil {
		return fmt.Errorf("subscriber: look up subscription: %w", err)
	}
	hub, err := w.hubs.Get(ctx, sub.HubID)
	if err != nil {
		return fmt.Errorf("subscriber: look up hub: %w", err)
	}

	if err := w.handshake(ctx, sub, hub, "unsubscribe", nil); err != nil {
		return err
	}

	if _, err := w.subs.Delete(ctx, sub.ID); err != nil {
		return fmt.Errorf("subscriber: delete subscription: %w", err)
	}
	w.bus.Emit(eventbus.TopicUnsubscribeComplete, sub)
	return nil
}

// handshake posts the subscribe/unsubscribe form and waits for
// HandleValidation to signal success, or for the validation timer to fire
// first.
func (w *WebSub) handshake(ctx context.Context, sub repository.Subscription, hub repository.Hub, mode string, secret []byte) error {
	result := make(chan bool, 1)
	timer := time.AfterFunc(w.validationInterval, func() {
		w.mu.Lock()
		_, stillPending := w.pending[sub.ID]
		delete(w.pending, sub.ID)
		w.mu.Unlock()
		if stillPending {
			result <- false
		}
	})

	w.mu.Lock()
	w.pending[sub.ID] = &pendingValidation{timer: timer, result: result}
	w.mu.Unlock()

	values := url.Values{
		"hub.callback":     {w.callbackURL(sub.Site, sub.ID)},
		"hub.topic":        {sub.TopicURI},
		"hub.mode":         {mode},
		"hub.verify":       {"async"},
		"hub.verify_token": {w.subscriptionToken},
	}
	if mode == "subscribe" {
		values.Set("hub.secret", string(secret))
		values.Set("hub.lease_seconds", strconv.FormatInt(w.leaseSeconds, 10))
	}

	hubURL := hub.SubscriptionAPI
	if hubURL == "" {
		hubURL = hub.URL
	}
	if err := w.client.PostForm(ctx, hubURL, values); err != nil {
		w.cancelPending(sub.ID)
		return fmt.Errorf("subscriber: %s post to hub failed: %w", mode, err)
	}

	select {
	case ok := <-result:
		if !ok {
			return ErrSubscribeTimeout
		}
		return nil
	case <-ctx.Done():
		w.cancelPending(sub.ID)
		return ctx.Err()
	}
}

// cancelPending tears down a pending handshake without signaling its
// result channel, used on the early-failure paths (post error, context
// cancellation) where nobody is left selecting on it.
func (w *WebSub) cancelPending(subscriptionID int64) {
	w.mu.Lock()
	p, ok := w.pending[subscriptionID]
	if ok {
		delete(w.pending, subscriptionID)
	}
	w.mu.Unlock()
	if ok {
		p.timer.Stop()
	}
}

// HandleValidation answers a hub's GET validation callback. It checks
// hub.verify_token against the configured SUBSCRIPTION_TOKEN, cancels the
// pending handshake timer on match, and returns the challenge to echo back
// verbatim.
func (w *WebSub) HandleValidation(ctx context.Context, subscriptionID int64, verifyToken, challenge string) (string, error) {
	if verifyToken != w.subscriptionToken {
		return "", ErrVerifyTokenMismatch
	}
	w.mu.Lock()
	p, ok := w.pending[subscriptionID]
	if ok {
		delete(w.pending, subscriptionID)
	}
	w.mu.Unlock()
	if ok {
		p.timer.Stop()
		select {
		case p.result <- true:
		default:
		}
	}
	return challenge, nil
}

// ReceiveUpdate handles a hub's POST update callback: verifies the
// signature against the subscription's decrypted secret, parses the body,
// and hands the newest entry to the download scheduler.
func (w *WebSub) ReceiveUpdate(ctx context.Context, subscriptionID int64, body []byte, signatureHeader string) error {
	sub, err := w.subs.Get(ctx, subscriptionID)
	if err != nil {
		return fmt.Errorf("subscriber: look up subscription: %w", err)
	}
	secret, err := w.box.Open(sub.EncryptedSecret)
	if err != nil {
		return fmt.Errorf("subscriber: decrypt secret: %w", err)
	}
	if !ValidSignature(secret, body, signatureHeader) {
		return ErrSignatureInvalid
	}
	entries, err := ParseEntries(body)
	if err != nil {
		return fmt.Errorf("subscriber: parse update: %w", err)
	}
	entry, ok := Latest(entries)
	if !ok {
		return nil
	}
	return w.deliver(ctx, sub.Site, entry)
}

func randomSecret() ([]byte, error) {
	buf := make([]byte, 20)
	if _, err := rand.Read(buf); err != nil {
		return nil, fmt.Errorf("subscriber: generate secret: %w", err)
	}
	return []byte(hex.EncodeToString(buf)), nil
}
