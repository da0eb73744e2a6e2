package crypto_test

import (
	"bytes"
	"crypto/rand"
	"errors"
	"testing"

	"packetvault/internal/core/domain"
	"packetvault/internal/infrastructure/crypto"
)

// generateTestKey creates random 256-bit DEK material
func generateTestKey(t *testing.T) []byte {
	t.Helper()
	key := make([]byte, crypto.KeySize)
	if _, err := rand.Read(key); err != nil {
		t.Fatalf("Failed to generate test key: %v", err)
	}
	return key
}

// ==============================================================================
// 1. Fundamental Correctness
// ==============================================================================

func TestSealOpen_RoundTrip(t *testing.T) {
	key := generateTestKey(t)
	plaintext := []byte(`{"proto":"TCP","src_port":443}`)
	aad := []byte("record-abc-123")

	sealed, err := crypto.Seal(key, plaintext, aad)
	if err != nil {
		t.Fatalf("Seal failed: %v", err)
	}

	if len(sealed.Nonce) != crypto.NonceSize {
		t.Errorf("Expected %d-byte nonce, got %d", crypto.NonceSize, len(sealed.Nonce))
	}
	if len(sealed.Tag) != crypto.TagSize {
		t.Errorf("Expected %d-byte tag, got %d", crypto.TagSize, len(sealed.Tag))
	}
	if len(sealed.Ciphertext) != len(plaintext) {
		t.Errorf("Ciphertext length %d must equal plaintext length %d (tag is separate)",
			len(sealed.Ciphertext), len(plaintext))
	}

	recovered, err := crypto.Open(key, sealed, aad)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	if !bytes.Equal(recovered, plaintext) {
		t.Errorf("Round-trip failed: got %q, want %q", recovered, plaintext)
	}
}

func TestSealOpen_EmptyPlaintext(t *testing.T) {
	key := generateTestKey(t)

	sealed, err := crypto.Seal(key, []byte{}, nil)
	if err != nil {
		t.Fatalf("Seal empty plaintext failed: %v", err)
	}
	if len(sealed.Ciphertext) != 0 {
		t.Errorf("Expected empty ciphertext, got %d bytes", len(sealed.Ciphertext))
	}

	recovered, err := crypto.Open(key, sealed, nil)
	if err != nil {
		t.Fatalf("Open empty plaintext failed: %v", err)
	}
	if len(recovered) != 0 {
		t.Errorf("Expected empty plaintext, got %d bytes", len(recovered))
	}
}

// ==============================================================================
// 2. Tamper Detection (single-bit flips must never decode)
// ==============================================================================

func TestOpen_TamperDetection_BitFlips(t *testing.T) {
	key := generateTestKey(t)
	plaintext := []byte("captured packet payload under analysis")

	sealed, err := crypto.Seal(key, plaintext, nil)
	if err != nil {
		t.Fatalf("Seal failed: %v", err)
	}

	fields := map[string][]byte{
		"ciphertext": sealed.Ciphertext,
		"nonce":      sealed.Nonce,
		"tag":        sealed.Tag,
	}

	for name, field := range fields {
		for i := range field {
			for bit := 0; bit < 8; bit++ {
				corrupted := crypto.SealedPayload{
					Nonce:      append([]byte(nil), sealed.Nonce...),
					Ciphertext: append([]byte(nil), sealed.Ciphertext...),
					Tag:        append([]byte(nil), sealed.Tag...),
				}
				var target []byte
				switch name {
				case "ciphertext":
					target = corrupted.Ciphertext
				case "nonce":
					target = corrupted.Nonce
				case "tag":
					target = corrupted.Tag
				}
				target[i] ^= 1 << bit

				_, err := crypto.Open(key, corrupted, nil)
				if err == nil {
					t.Fatalf("SECURITY VIOLATION: Open succeeded after flipping %s byte %d bit %d", name, i, bit)
				}
				if !errors.Is(err, domain.ErrTamperDetected) {
					t.Fatalf("Expected ErrTamperDetected for corrupted %s, got: %v", name, err)
				}
			}
		}
	}
}

func TestOpen_TamperedAAD(t *testing.T) {
	key := generateTestKey(t)
	sealed, err := crypto.Seal(key, []byte("payload"), []byte("record-1"))
	if err != nil {
		t.Fatalf("Seal failed: %v", err)
	}

	// Attempting to re-home the ciphertext under another record id must fail.
	_, err = crypto.Open(key, sealed, []byte("record-2"))
	if !errors.Is(err, domain.ErrTamperDetected) {
		t.Fatalf("Expected ErrTamperDetected with mismatched AAD, got: %v", err)
	}
}

// ==============================================================================
// 3. Key Isolation
// ==============================================================================

func TestOpen_WrongKey(t *testing.T) {
	keyA := generateTestKey(t)
	keyB := generateTestKey(t)

	sealed, err := crypto.Seal(keyA, []byte("secret payload"), nil)
	if err != nil {
		t.Fatalf("Seal failed: %v", err)
	}

	_, err = crypto.Open(keyB, sealed, nil)
	if err == nil {
		t.Fatal("SECURITY VIOLATION: Open succeeded with the wrong key")
	}
	if !errors.Is(err, domain.ErrTamperDetected) {
		t.Fatalf("Expected ErrTamperDetected with wrong key, got: %v", err)
	}
}

// ==============================================================================
// 4. Nonce Uniqueness (Semantic Security)
// ==============================================================================

func TestSeal_NonceUniqueness(t *testing.T) {
	key := generateTestKey(t)
	plaintext := []byte("identical-plaintext")

	const n = 10000
	seen := make(map[string]bool, n)
	for i := 0; i < n; i++ {
		sealed, err := crypto.Seal(key, plaintext, nil)
		if err != nil {
			t.Fatalf("Seal #%d failed: %v", i, err)
		}
		nonce := string(sealed.Nonce)
		if seen[nonce] {
			t.Fatalf("SECURITY VIOLATION: nonce reuse detected at iteration %d", i)
		}
		seen[nonce] = true
	}
}

// ==============================================================================
// 5. Key Validation
// ==============================================================================

func TestSeal_RejectsBadKeySizes(t *testing.T) {
	for _, size := range []int{0, 16, 24, 31, 33} {
		_, err := crypto.Seal(make([]byte, size), []byte("x"), nil)
		if err == nil {
			t.Fatalf("SECURITY VIOLATION: accepted %d-byte key, must require 32", size)
		}
		if !errors.Is(err, domain.ErrEncryptionFailure) {
			t.Errorf("Expected ErrEncryptionFailure for %d-byte key, got: %v", size, err)
		}
	}
}

func TestOpen_RejectsTruncatedNonceAndTag(t *testing.T) {
	key := generateTestKey(t)
	sealed, err := crypto.Seal(key, []byte("payload"), nil)
	if err != nil {
		t.Fatalf("Seal failed: %v", err)
	}

	short := sealed
	short.Nonce = sealed.Nonce[:8]
	if _, err := crypto.Open(key, short, nil); !errors.Is(err, domain.ErrTamperDetected) {
		t.Errorf("Expected ErrTamperDetected for truncated nonce, got: %v", err)
	}

	short = sealed
	short.Tag = sealed.Tag[:12]
	if _, err := crypto.Open(key, short, nil); !errors.Is(err, domain.ErrTamperDetected) {
		t.Errorf("Expected ErrTamperDetected for truncated tag, got: %v", err)
	}
}
