// Package secretbox implements at-rest encryption for the per-subscription
// WebSub HMAC secret: a key derived by hashing the configured
// WEB_HUB_SECRET_KEY, used with golang.org/x/crypto/nacl/secretbox. Seal's
// output (nonce followed by ciphertext) is persisted as raw bytes, and
// readers decrypt it explicitly with Open — grounded on the same ecosystem
// family (golang.org/x/crypto) other retrieved repos pull in for
// at-rest crypto.
package secretbox

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"

	"golang.org/x/crypto/nacl/secretbox"
)

// ErrCiphertextTooShort is returned by Open when the input is shorter than
// the nonce it must be prefixed with.
var ErrCiphertextTooShort = errors.New("secretbox: ciphertext shorter than nonce")

// ErrDecryptFailed is returned by Open when authentication fails — the
// ciphertext was tampered with or encrypted under a different key.
var ErrDecryptFailed = errors.New("secretbox: decryption failed")

// Box seals and opens secrets under a key derived from a passphrase.
type Box struct {
	key [32]byte
}

// New derives a Box's key by SHA-256 hashing passphrase (the configured
// WEB_HUB_SECRET_KEY). The same passphrase always derives the same key, so
// secrets sealed by one process instance can be opened by another.
func New(passphrase string) *Box {
	return &Box{key: sha256.Sum256([]byte(passphrase))}
}

// Seal encrypts plaintext and returns a byte slice safe to persist as-is in
// a BLOB column.
func (b *Box) Seal(plaintext []byte) ([]byte, error) {
	var nonce [24]byte
	if _, err := rand.Read(nonce[:]); err != nil {
		return nil, fmt.Errorf("secretbox: generate nonce: %w", err)
	}
	return secretbox.Seal(nonce[:], plaintext, &nonce, &b.key), nil
}

// Open decrypts a value previously produced by Seal.
func (b *Box) Open(ciphertext []byte) ([]byte, error) {
	if len(ciphertext) < 24 {
		return nil, ErrCiphertextTooShort
	}
	var nonce [24]byte
	copy(nonce[:], ciphertext[:24])
	plaintext, ok := secretbox.Open(nil, ciphertext[24:], &nonce, &b.key)
	if !ok {
		return nil, ErrDecryptFailed
	}
	return plaintext, nil
}

// EncodeForTransport base64-url encodes a sealed secret for text-only
// fields. The WebSub handshake does not use it: "hub.secret" carries the
// plaintext secret.
func EncodeForTransport(sealed []byte) string {
	return base64.URLEncoding.EncodeToString(sealed)
}
