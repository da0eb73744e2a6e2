package crypto

import (
	"crypto/sha256"
	"fmt"
	"io"

	"golang.org/x/crypto/hkdf"

	"packetvault/internal/core/domain"
)

// KEK wraps DEK material before it reaches the at-rest keystore, so the store
// only ever holds ciphertext even if its backing engine is compromised. The
// wrapping key is derived from the operator-supplied master secret via HKDF
// and lives only in custodian memory.
type KEK struct {
	key []byte
}

const kekInfo = "packetvault/custodian/kek/v1"

// DeriveKEK expands the master secret into a 256-bit wrapping key. The secret
// must be non-empty; config enforces this in production.
func DeriveKEK(masterSecret []byte) (*KEK, error) {
	if len(masterSecret) == 0 {
		return nil, fmt.Errorf("master secret must not be empty")
	}
	r := hkdf.New(sha256.New, masterSecret, nil, []byte(kekInfo))
	key := make([]byte, KeySize)
	if _, err := io.ReadFull(r, key); err != nil {
		return nil, fmt.Errorf("KEK derivation: %w", err)
	}
	return &KEK{key: key}, nil
}

// Wrap seals raw DEK material under the KEK, binding it to its key id so a
// wrapped blob cannot be served for a different id. Returns the combined
// ciphertext+tag blob and the nonce used.
func (k *KEK) Wrap(keyID string, material []byte) (wrapped, nonce []byte, err error) {
	sealed, err := Seal(k.key, material, []byte(keyID))
	if err != nil {
		return nil, nil, err
	}
	wrapped = append(sealed.Ciphertext, sealed.Tag...)
	return wrapped, sealed.Nonce, nil
}

// Unwrap recovers raw DEK material. A stored blob that fails authentication
// surfaces as domain.ErrTamperDetected — the keystore contents were altered.
func (k *KEK) Unwrap(keyID string, wrapped, nonce []byte) ([]byte, error) {
	if len(wrapped) < TagSize {
		return nil, fmt.Errorf("%w: wrapped key blob truncated", domain.ErrTamperDetected)
	}
	cut := len(wrapped) - TagSize
	return Open(k.key, SealedPayload{
		Nonce:      nonce,
		Ciphertext: wrapped[:cut],
		Tag:        wrapped[cut:],
	}, []byte(keyID))
}
