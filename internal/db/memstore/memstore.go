// Package memstore provides in-memory implementations of the envelope and key
// stores. They back the development mode (STORE_BACKEND=memory) and the test
// suites; semantics match the Postgres implementations, including append-only
// key inserts and timestamp-ordered envelope selection.
package memstore

import (
	"context"
	"sort"
	"sync"

	"packetvault/internal/core/domain"
)

type EnvelopeStore struct {
	mu        sync.RWMutex
	envelopes map[string]domain.Envelope
}

func NewEnvelopeStore() *EnvelopeStore {
	return &EnvelopeStore{envelopes: make(map[string]domain.Envelope)}
}

func (s *EnvelopeStore) Put(ctx context.Context, env *domain.Envelope) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.envelopes[env.RecordID] = *env
	return nil
}

func (s *EnvelopeStore) Get(ctx context.Context, recordID string) (*domain.Envelope, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	env, ok := s.envelopes[recordID]
	if !ok {
		return nil, domain.ErrEnvelopeNotFound
	}
	return &env, nil
}

func (s *EnvelopeStore) Select(ctx context.Context, c domain.SelectionCriteria) ([]domain.Envelope, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []domain.Envelope
	for _, env := range s.envelopes {
		if c.StartMs != 0 && env.TimestampMs < c.StartMs {
			continue
		}
		if c.EndMs != 0 && env.TimestampMs > c.EndMs {
			continue
		}
		if c.SourceEndpoint != "" && env.SourceEndpoint != c.SourceEndpoint {
			continue
		}
		if c.DestinationEndpoint != "" && env.DestinationEndpoint != c.DestinationEndpoint {
			continue
		}
		out = append(out, env)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].TimestampMs < out[j].TimestampMs })
	return out, nil
}

// Delete exists for test cleanup only; the ingest/retrieval paths never
// delete envelopes (retention is out of scope).
func (s *EnvelopeStore) Delete(recordID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.envelopes, recordID)
}

type KeyStore struct {
	mu   sync.RWMutex
	keys map[string]domain.KeyRecord
}

func NewKeyStore() *KeyStore {
	return &KeyStore{keys: make(map[string]domain.KeyRecord)}
}

// Insert is append-only: an existing id is never overwritten.
func (s *KeyStore) Insert(ctx context.Context, rec domain.KeyRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.keys[rec.KeyID]; exists {
		return domain.ErrKeyExists
	}
	s.keys[rec.KeyID] = rec
	return nil
}

func (s *KeyStore) Get(ctx context.Context, keyID string) (domain.KeyRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.keys[keyID]
	if !ok {
		return domain.KeyRecord{}, domain.ErrKeyNotFound
	}
	return rec, nil
}
