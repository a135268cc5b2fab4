// Package common defines shared constants and sentinel errors used across
// the Bloomweaver backend. Callers should use errors.Is to match these values.
package common

import "errors"

var (
	// Storage-level errors.
	ErrorNotFound = errors.New("not found")

	// Service-level authorization failure.
	ErrorUnauthorized = errors.New("unauthorized")

	// Cipher errors. ErrorMissingKey means the encryption secret is absent or
	// too short (configuration, never retried). ErrorMalformedBlob means the
	// input is not a valid "hex(iv):base64(ciphertext)" token. ErrorDecrypt
	// covers wrong key, corrupted or truncated ciphertext.
	ErrorMissingKey    = errors.New("encryption key is not configured")
	ErrorMalformedBlob = errors.New("invalid encrypted data format")
	ErrorDecrypt       = errors.New("decryption failed")

	// Index/record divergence or read-after-write lag in the backing store.
	// Retried a bounded number of times before being absorbed.
	ErrorStoreInconsistency = errors.New("transient store inconsistency")

	// Quota rejection.
	ErrorLimitReached = errors.New("message limit reached")

	// Inference API non-success responses.
	ErrorUpstream = errors.New("upstream api error")

	// Auth errors (invalid or malformed token).
	ErrInvalidToken = errors.New("invalid token")
)
