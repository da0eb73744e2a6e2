package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"packetvault/internal/core/domain"
	"packetvault/internal/infrastructure/crypto"
)

// IngestService seals incoming records and persists the resulting envelopes.
// Policy: one fresh DEK per record — no key reuse across records, which keeps
// the blast radius of any single key compromise to one payload and bounds
// nonce exposure per key to a single seal.
type IngestService struct {
	keys   domain.KeyClient
	store  domain.EnvelopeStore
	logger *slog.Logger
}

func NewIngestService(keys domain.KeyClient, store domain.EnvelopeStore, logger *slog.Logger) *IngestService {
	return &IngestService{keys: keys, store: store, logger: logger}
}

// StoreRecord runs the full ingest pipeline: generate DEK, seal, persist.
// Persistence is the final step, so a failure at any stage leaves no envelope
// behind — the only residue of a failed ingest is an unused key in the
// custodian, which is harmless waste, not a correctness violation. Failures
// keep their class (ErrKeyServiceUnavailable / ErrEncryptionFailure /
// ErrPersistenceFailure) so the caller can decide whether to retry.
func (s *IngestService) StoreRecord(ctx context.Context, rec *domain.RawRecord) (*domain.StoredAck, error) {
	keyID, material, err := s.keys.GenerateKey(ctx)
	if err != nil {
		if !errors.Is(err, domain.ErrKeyServiceUnavailable) {
			err = fmt.Errorf("%w: %v", domain.ErrKeyServiceUnavailable, err)
		}
		return nil, err
	}

	// The record id rides along as AAD, so this ciphertext can never be
	// re-homed under a different record id and still authenticate.
	sealed, err := crypto.Seal(material, rec.Payload, []byte(rec.RecordID))
	if err != nil {
		return nil, err
	}

	env := &domain.Envelope{
		RecordID:            rec.RecordID,
		TimestampMs:         rec.TimestampMs,
		SourceEndpoint:      rec.SourceEndpoint,
		DestinationEndpoint: rec.DestinationEndpoint,
		Ciphertext:          sealed.Ciphertext,
		KeyID:               keyID,
		Nonce:               sealed.Nonce,
		Tag:                 sealed.Tag,
	}
	if err := s.store.Put(ctx, env); err != nil {
		if !errors.Is(err, domain.ErrPersistenceFailure) {
			err = fmt.Errorf("%w: %v", domain.ErrPersistenceFailure, err)
		}
		return nil, err
	}

	s.logger.Info("record sealed and stored",
		slog.String("record_id", rec.RecordID),
		slog.String("key_id", keyID),
		slog.Int("payload_bytes", len(rec.Payload)),
	)
	return &domain.StoredAck{StoredID: rec.RecordID, KeyID: keyID}, nil
}
