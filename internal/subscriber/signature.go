package subscriber

import (
	"crypto/hmac"
	"crypto/sha1"
	"encoding/hex"
	"strings"
)

// ValidSignature verifies an "X-Hub-Signature: sha1=<hex>" header against
// body under secret, constant-time. WebSub's original PubSubHubbub
// protocol mandates SHA-1 for this header regardless of the
// payload's own hash strength, so this is not a cryptographic-agility
// choice — it is the protocol's own wire format.
func ValidSignature(secret, body []byte, header string) bool {
	const prefix = "sha1="
	if !strings.HasPrefix(header, prefix) {
		return false
	}
	want, err := hex.DecodeString(strings.TrimPrefix(header, prefix))
	if err != nil {
		return false
	}
	mac := hmac.New(sha1.New, secret)
	mac.Write(body)
	return hmac.Equal(mac.Sum(nil), want)
}

// Sign computes the same header value a well-behaved hub would send,
// exposed so tests (and a future mock hub) can construct valid callbacks.
func Sign(secret, body []byte) string {
	mac := hmac.New(sha1.New, secret)
	mac.Write(body)
	return "sha1=" + hex.EncodeToString(mac.Sum(nil))
}
