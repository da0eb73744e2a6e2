package services

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"

	"packetvault/internal/core/domain"
	"packetvault/internal/infrastructure/crypto"
)

// RetrievalService fetches envelopes by metadata, recovers plaintext, and
// hands structured records to the query engine. Failures are per-record: one
// missing key or one corrupted envelope never aborts the batch, it lands in
// the skip manifest instead.
type RetrievalService struct {
	store  domain.EnvelopeStore
	keys   domain.KeyClient
	alerts domain.AlertSink
	logger *slog.Logger
}

func NewRetrievalService(store domain.EnvelopeStore, keys domain.KeyClient, alerts domain.AlertSink, logger *slog.Logger) *RetrievalService {
	return &RetrievalService{store: store, keys: keys, alerts: alerts, logger: logger}
}

// FetchAndDecrypt returns every record in the criteria window that passed
// both authentication and structural parsing, plus a manifest naming each
// record that did not, with its reason code. The manifest lets callers
// distinguish "no matches" from "matches existed but failed integrity".
// Plaintext exists only for the lifetime of this call; nothing decrypted is
// ever written back.
func (s *RetrievalService) FetchAndDecrypt(ctx context.Context, criteria domain.SelectionCriteria) ([]domain.PlaintextRecord, []domain.SkippedRecord, error) {
	envelopes, err := s.store.Select(ctx, criteria)
	if err != nil {
		return nil, nil, err
	}

	records := make([]domain.PlaintextRecord, 0, len(envelopes))
	skipped := make([]domain.SkippedRecord, 0)

	for i := range envelopes {
		if err := ctx.Err(); err != nil {
			// Caller abandoned the fetch; records already produced stay
			// valid, nothing needs rolling back.
			return records, skipped, err
		}
		env := &envelopes[i]

		rec, skip := s.openEnvelope(ctx, env)
		if skip != nil {
			skipped = append(skipped, *skip)
			continue
		}
		records = append(records, *rec)
	}

	s.logger.Info("retrieval batch complete",
		slog.Int("fetched", len(envelopes)),
		slog.Int("recovered", len(records)),
		slog.Int("skipped", len(skipped)),
	)
	return records, skipped, nil
}

func (s *RetrievalService) openEnvelope(ctx context.Context, env *domain.Envelope) (*domain.PlaintextRecord, *domain.SkippedRecord) {
	material, err := s.keys.KeyMaterial(ctx, env.KeyID)
	if err != nil {
		if errors.Is(err, domain.ErrKeyNotFound) {
			s.logger.Warn("key unresolvable, skipping record",
				slog.String("record_id", env.RecordID),
				slog.String("key_id", env.KeyID),
			)
			s.alerts.IntegrityAlert(env.RecordID, domain.SkipKeyNotFound, "no material for "+env.KeyID)
			return nil, &domain.SkippedRecord{
				RecordID: env.RecordID,
				Reason:   domain.SkipKeyNotFound,
				Detail:   "key " + env.KeyID + " not found",
			}
		}
		// Custodian outage mid-batch: report the record as skipped rather
		// than failing records we already recovered.
		s.logger.Warn("key service unavailable for record",
			slog.String("record_id", env.RecordID),
			slog.String("error", err.Error()),
		)
		return nil, &domain.SkippedRecord{
			RecordID: env.RecordID,
			Reason:   domain.SkipKeyNotFound,
			Detail:   "custodian unavailable: " + err.Error(),
		}
	}

	plaintext, err := crypto.Open(material, crypto.SealedPayload{
		Nonce:      env.Nonce,
		Ciphertext: env.Ciphertext,
		Tag:        env.Tag,
	}, []byte(env.RecordID))
	if err != nil {
		// Tag verification failure is a security incident, not routine
		// unavailability: distinct severity, distinct alert channel.
		s.logger.Error("INTEGRITY VIOLATION: envelope failed authentication",
			slog.String("record_id", env.RecordID),
			slog.String("key_id", env.KeyID),
			slog.String("error", err.Error()),
		)
		s.alerts.IntegrityAlert(env.RecordID, domain.SkipTamperDetected, err.Error())
		return nil, &domain.SkippedRecord{
			RecordID: env.RecordID,
			Reason:   domain.SkipTamperDetected,
			Detail:   "authentication failed",
		}
	}

	fields := make(map[string]any)
	if err := json.Unmarshal(plaintext, &fields); err != nil {
		s.logger.Warn("payload parse failure, skipping record",
			slog.String("record_id", env.RecordID),
			slog.String("error", err.Error()),
		)
		return nil, &domain.SkippedRecord{
			RecordID: env.RecordID,
			Reason:   domain.SkipParseFailure,
			Detail:   err.Error(),
		}
	}

	return &domain.PlaintextRecord{
		RecordID:            env.RecordID,
		TimestampMs:         env.TimestampMs,
		SourceEndpoint:      env.SourceEndpoint,
		DestinationEndpoint: env.DestinationEndpoint,
		Payload:             plaintext,
		Fields:              fields,
	}, nil
}
