package security

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"strings"
	"sync"

	"golang.org/x/crypto/pbkdf2"

	"chatrelay/pkg/logger"
)

// Envelope format: "encv1:<b64 nonce>:<b64 ciphertext||tag>". Anything not
// carrying the marker prefix is treated as legacy plaintext and passed
// through unchanged, which allows mixed corpora during migration.
const (
	envelopeMarker = "encv1"
	envelopePrefix = envelopeMarker + ":"

	// Fixed domain-separation salt. The derivation is a reproducible
	// function of the secret alone; this is not a rotation mechanism.
	kdfSalt       = "chatrelay.message-at-rest.v1"
	kdfIterations = 150_000
	keyLen        = 32
	nonceLen      = 12
)

// DecryptFailedPlaceholder is surfaced to readers in place of a body that
// failed authentication. One corrupt row must never break a history fetch.
const DecryptFailedPlaceholder = "[Decryption Error]"

// ErrDecryptFailed indicates a corrupt envelope, wrong key or tampered tag.
var ErrDecryptFailed = errors.New("decrypt failed")

// randRead reads cryptographically secure random bytes. Overridable in
// tests.
var randRead = rand.Read

var (
	keyMu sync.RWMutex
	key   []byte
)

// SetSecret derives the AES-256 key from the application secret via
// PBKDF2-SHA256 with a fixed salt. An empty secret disables encryption:
// Seal becomes a no-op and Open only handles legacy plaintext.
func SetSecret(secret string) {
	keyMu.Lock()
	defer keyMu.Unlock()
	if secret == "" {
		key = nil
		return
	}
	key = pbkdf2.Key([]byte(secret), []byte(kdfSalt), kdfIterations, keyLen, sha256.New)
}

// Enabled reports whether an at-rest encryption key is configured.
func Enabled() bool {
	keyMu.RLock()
	defer keyMu.RUnlock()
	return key != nil
}

// Encrypted reports whether s carries the envelope marker.
func Encrypted(s string) bool { return strings.HasPrefix(s, envelopePrefix) }

func aead() (cipher.AEAD, error) {
	keyMu.RLock()
	k := key
	keyMu.RUnlock()
	if k == nil {
		return nil, errors.New("encryption key not configured")
	}
	block, err := aes.NewCipher(k)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}

// Seal encrypts plaintext into the envelope format. Empty plaintext is a
// no-op and returns the empty string. With encryption disabled the
// plaintext is returned unchanged.
func Seal(plaintext string) (string, error) {
	if plaintext == "" {
		return "", nil
	}
	if !Enabled() {
		return plaintext, nil
	}
	gcm, err := aead()
	if err != nil {
		return "", err
	}
	nonce := make([]byte, nonceLen)
	if _, err := randRead(nonce); err != nil {
		return "", err
	}
	ct := gcm.Seal(nil, nonce, []byte(plaintext), nil)
	return envelopePrefix +
		base64.StdEncoding.EncodeToString(nonce) + ":" +
		base64.StdEncoding.EncodeToString(ct), nil
}

// Open decrypts an envelope produced by Seal. Strings without the marker
// are legacy plaintext and pass through unchanged. Any parse or
// authentication failure yields ErrDecryptFailed; callers on a read path
// should substitute DecryptFailedPlaceholder rather than fail the request.
func Open(stored string) (string, error) {
	if stored == "" {
		return "", nil
	}
	if !Encrypted(stored) {
		return stored, nil
	}
	parts := strings.SplitN(stored, ":", 3)
	if len(parts) != 3 {
		return "", ErrDecryptFailed
	}
	nonce, err := base64.StdEncoding.DecodeString(parts[1])
	if err != nil || len(nonce) != nonceLen {
		return "", ErrDecryptFailed
	}
	ct, err := base64.StdEncoding.DecodeString(parts[2])
	if err != nil {
		return "", ErrDecryptFailed
	}
	gcm, err := aead()
	if err != nil {
		return "", ErrDecryptFailed
	}
	pt, err := gcm.Open(nil, nonce, ct, nil)
	if err != nil {
		return "", ErrDecryptFailed
	}
	return string(pt), nil
}

// OpenOrPlaceholder decrypts for a read path. Failures are logged and
// recovered locally with the fixed placeholder.
func OpenOrPlaceholder(stored string) string {
	pt, err := Open(stored)
	if err != nil {
		logger.Warn("body_decrypt_failed", "error", err)
		decryptFailures.Inc()
		return DecryptFailedPlaceholder
	}
	return pt
}
