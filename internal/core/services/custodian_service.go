package services

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/google/uuid"

	"packetvault/internal/core/domain"
	"packetvault/internal/infrastructure/crypto"
)

// CustodianService owns the DEK keyspace. It is the only component that ever
// generates or serves raw key material; everything it hands to the KeyStore
// is wrapped under the in-memory KEK first.
type CustodianService struct {
	store  domain.KeyStore
	kek    *crypto.KEK
	logger *slog.Logger
}

func NewCustodianService(store domain.KeyStore, kek *crypto.KEK, logger *slog.Logger) *CustodianService {
	return &CustodianService{store: store, kek: kek, logger: logger}
}

// maxIDAttempts bounds the retry loop on keystore id collisions. A UUID
// collision is already negligible; the loop turns "negligible" into
// "guaranteed unique" because Insert is collision-checked, not assumed.
const maxIDAttempts = 3

// GenerateKey mints 256 bits of CSPRNG material under a fresh `dek-` id,
// wraps it, and appends it to the keyspace. The material is returned to the
// caller exactly once, here, for immediate use sealing a record.
func (s *CustodianService) GenerateKey(ctx context.Context) (string, []byte, error) {
	material := make([]byte, crypto.KeySize)
	if _, err := io.ReadFull(rand.Reader, material); err != nil {
		return "", nil, fmt.Errorf("key material generation: %w", err)
	}

	for attempt := 0; attempt < maxIDAttempts; attempt++ {
		keyID := "dek-" + uuid.NewString()

		wrapped, nonce, err := s.kek.Wrap(keyID, material)
		if err != nil {
			return "", nil, fmt.Errorf("key wrap: %w", err)
		}

		err = s.store.Insert(ctx, domain.KeyRecord{
			KeyID:           keyID,
			WrappedMaterial: wrapped,
			WrapNonce:       nonce,
		})
		if errors.Is(err, domain.ErrKeyExists) {
			s.logger.Warn("key id collision, regenerating", slog.String("key_id", keyID))
			continue
		}
		if err != nil {
			return "", nil, err
		}

		s.logger.Info("generated data key", slog.String("key_id", keyID))
		return keyID, material, nil
	}
	return "", nil, fmt.Errorf("%w: exhausted key id attempts", domain.ErrKeyExists)
}

// Material serves raw DEK bytes for a known id. Confidentiality of this
// response in transit is a transport-layer precondition; the service only
// guarantees the keystore itself never held the raw form.
func (s *CustodianService) Material(ctx context.Context, keyID string) ([]byte, error) {
	rec, err := s.store.Get(ctx, keyID)
	if err != nil {
		return nil, err
	}
	material, err := s.kek.Unwrap(rec.KeyID, rec.WrappedMaterial, rec.WrapNonce)
	if err != nil {
		// A wrapped blob that fails authentication means the keystore
		// contents were altered out from under us.
		s.logger.Error("keystore integrity violation",
			slog.String("key_id", keyID),
			slog.String("error", err.Error()),
		)
		return nil, err
	}
	return material, nil
}
