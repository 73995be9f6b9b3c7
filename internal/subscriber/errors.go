package subscriber

import "errors"

// ErrSubscribeTimeout is returned when a WebSub hub never validates a
// subscribe or unsubscribe request within the configured validation
// interval.
var ErrSubscribeTimeout = errors.New("subscriber: hub did not validate within the configured interval")

// ErrSignatureInvalid is returned by ReceiveUpdate when the X-Hub-Signature
// header on an update callback does not verify against the subscription's
// decrypted secret.
var ErrSignatureInvalid = errors.New("subscriber: update signature verification failed")

// ErrVerifyTokenMismatch is returned by HandleValidation when the hub's
// hub.verify_token does not match the configured SUBSCRIPTION_TOKEN.
var ErrVerifyTokenMismatch = errors.New("subscriber: verify_token does not match configured SUBSCRIPTION_TOKEN")
