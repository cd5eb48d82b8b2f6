// Package domain defines the core vault/item model and the sentinel
// errors shared across the engine. Callers should use errors.Is to
// match these values.
package domain

import "errors"

var (
	// Cryptographic failures. Never retried: retrying cannot fix a
	// wrong key or a tampered payload.
	ErrDecryption       = errors.New("decryption failed")
	ErrInvalidSignature = errors.New("invalid signature")

	// Key hierarchy errors.
	ErrUnknownRotation  = errors.New("unknown key rotation")
	ErrNoActiveRotation = errors.New("vault has no active key rotation")

	// Sync errors.
	ErrConflict = errors.New("revision conflict")
	ErrNotFound = errors.New("not found")
	ErrNetwork  = errors.New("network unavailable")

	// Content errors.
	ErrUnsupportedContent = errors.New("unsupported content format")

	// Plan limits (e.g. alias creation capped).
	ErrQuota = errors.New("quota exceeded")
)
