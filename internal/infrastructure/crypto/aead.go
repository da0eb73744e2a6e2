// Package crypto implements the authenticated-encryption codec for record
// payloads: AES-256-GCM with a random 96-bit nonce per call and the 128-bit
// tag carried separately from the ciphertext, matching the envelope layout.
package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"fmt"
	"io"

	"packetvault/internal/core/domain"
)

const (
	// KeySize is the DEK length: AES-256 only, smaller keys are rejected.
	KeySize = 32

	// NonceSize is the GCM nonce length in bytes (96 bits).
	NonceSize = 12

	// TagSize is the GCM authentication tag length in bytes (128 bits).
	TagSize = 16
)

// SealedPayload is the output of Seal: the three parts an envelope persists.
// Ciphertext is exactly as long as the plaintext; the tag is never
// concatenated onto it in this form.
type SealedPayload struct {
	Nonce      []byte
	Ciphertext []byte
	Tag        []byte
}

func newAEAD(material []byte) (cipher.AEAD, error) {
	if len(material) != KeySize {
		return nil, fmt.Errorf("key must be %d bytes for AES-256, got %d", KeySize, len(material))
	}
	block, err := aes.NewCipher(material)
	if err != nil {
		return nil, fmt.Errorf("block cipher init: %v", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("GCM init: %v", err)
	}
	return aead, nil
}

// Seal encrypts plaintext under the given DEK material with a fresh random
// nonce. Stateless: nonce collision probability under the birthday bound is
// negligible for the bounded per-key usage this system allows (one record
// per DEK by policy). associatedData may be nil.
func Seal(material, plaintext, associatedData []byte) (SealedPayload, error) {
	aead, err := newAEAD(material)
	if err != nil {
		return SealedPayload{}, fmt.Errorf("%w: %v", domain.ErrEncryptionFailure, err)
	}

	nonce := make([]byte, NonceSize)
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return SealedPayload{}, fmt.Errorf("%w: nonce generation: %v", domain.ErrEncryptionFailure, err)
	}

	// GCM appends the tag to the ciphertext; split it off so the envelope
	// stores ciphertext and tag as independent fields.
	sealed := aead.Seal(nil, nonce, plaintext, associatedData)
	cut := len(sealed) - TagSize

	return SealedPayload{
		Nonce:      nonce,
		Ciphertext: sealed[:cut],
		Tag:        sealed[cut:],
	}, nil
}

// Open authenticates and decrypts a sealed payload. Any bit-level corruption
// of ciphertext, nonce, tag or associated data yields domain.ErrTamperDetected
// — never garbage plaintext. Opening with the wrong key fails the same way.
func Open(material []byte, p SealedPayload, associatedData []byte) ([]byte, error) {
	aead, err := newAEAD(material)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrDecryptionFailure, err)
	}
	if len(p.Nonce) != NonceSize {
		return nil, fmt.Errorf("%w: nonce must be %d bytes, got %d",
			domain.ErrTamperDetected, NonceSize, len(p.Nonce))
	}
	if len(p.Tag) != TagSize {
		return nil, fmt.Errorf("%w: tag must be %d bytes, got %d",
			domain.ErrTamperDetected, TagSize, len(p.Tag))
	}

	// Rejoin ciphertext and tag: GCM verifies the tag over exactly this
	// (key, nonce, ciphertext, aad) tuple before releasing any plaintext.
	combined := make([]byte, 0, len(p.Ciphertext)+TagSize)
	combined = append(combined, p.Ciphertext...)
	combined = append(combined, p.Tag...)

	plaintext, err := aead.Open(nil, p.Nonce, combined, associatedData)
	if err != nil {
		return nil, fmt.Errorf("%w: GCM tag verification failed", domain.ErrTamperDetected)
	}
	return plaintext, nil
}
