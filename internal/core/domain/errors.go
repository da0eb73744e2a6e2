package domain

import "errors"

// Error taxonomy for the encrypt-at-rest pipeline. Callers branch on these
// with errors.Is; services wrap them with context via fmt.Errorf("%w").
var (
	// ErrKeyServiceUnavailable: the custodian could not be reached or timed
	// out. Transient — callers may retry.
	ErrKeyServiceUnavailable = errors.New("key custodian unavailable")

	// ErrKeyNotFound: the custodian has no material for the requested key id.
	// Permanent for that id; on the retrieval path it means the record's
	// payload is unrecoverable.
	ErrKeyNotFound = errors.New("key not found")

	// ErrKeyExists: a keystore insert collided with an existing id. The
	// custodian retries with a fresh id; it never overwrites.
	ErrKeyExists = errors.New("key id already exists")

	// ErrTamperDetected: GCM tag verification failed. Any corruption of
	// ciphertext, nonce, tag or associated data lands here. This is a
	// security incident, not an I/O error, and is logged accordingly.
	ErrTamperDetected = errors.New("integrity violation: tamper detected")

	// ErrEncryptionFailure / ErrDecryptionFailure: internal codec faults
	// (bad key length, nonce sourcing failure). Non-retryable.
	ErrEncryptionFailure = errors.New("encryption failure")
	ErrDecryptionFailure = errors.New("decryption failure")

	// ErrPersistenceFailure: the envelope store rejected a read or write.
	ErrPersistenceFailure = errors.New("persistence failure")

	// ErrEnvelopeNotFound: no envelope stored under the requested record id.
	ErrEnvelopeNotFound = errors.New("envelope not found")

	// ErrParseFailure: a decrypted payload was not structurally parseable.
	// Per-record, never fatal to a batch.
	ErrParseFailure = errors.New("payload parse failure")
)
