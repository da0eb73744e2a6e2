package services_test

import (
	"context"
	"crypto/rand"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"packetvault/internal/core/domain"
	"packetvault/internal/core/services"
	"packetvault/internal/db/memstore"
	"packetvault/internal/infrastructure/crypto"
)

// mapKeyClient resolves keys from a plain map, standing in for the custodian.
type mapKeyClient struct {
	mu   sync.Mutex
	keys map[string][]byte
}

func (m *mapKeyClient) GenerateKey(ctx context.Context) (string, []byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	keyID := fmt.Sprintf("dek-%d", len(m.keys)+1)
	material := make([]byte, crypto.KeySize)
	if _, err := rand.Read(material); err != nil {
		return "", nil, err
	}
	m.keys[keyID] = material
	return keyID, material, nil
}

func (m *mapKeyClient) KeyMaterial(ctx context.Context, keyID string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	material, ok := m.keys[keyID]
	if !ok {
		return nil, domain.ErrKeyNotFound
	}
	return material, nil
}

func (m *mapKeyClient) forget(keyID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.keys, keyID)
}

// recordingSink captures integrity alerts for assertions.
type recordingSink struct {
	mu     sync.Mutex
	alerts []domain.SkippedRecord
}

func (s *recordingSink) IntegrityAlert(recordID string, reason domain.SkipReason, detail string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.alerts = append(s.alerts, domain.SkippedRecord{RecordID: recordID, Reason: reason, Detail: detail})
}

// seedEnvelope seals a payload under a fresh key and stores the envelope.
func seedEnvelope(t *testing.T, keys *mapKeyClient, store *memstore.EnvelopeStore, recordID string, tsMs int64, payload []byte) *domain.Envelope {
	t.Helper()
	keyID, material, err := keys.GenerateKey(context.Background())
	require.NoError(t, err)

	sealed, err := crypto.Seal(material, payload, []byte(recordID))
	require.NoError(t, err)

	env := &domain.Envelope{
		RecordID:            recordID,
		TimestampMs:         tsMs,
		SourceEndpoint:      "10.0.0.1",
		DestinationEndpoint: "10.0.0.2",
		Ciphertext:          sealed.Ciphertext,
		KeyID:               keyID,
		Nonce:               sealed.Nonce,
		Tag:                 sealed.Tag,
	}
	require.NoError(t, store.Put(context.Background(), env))
	return env
}

func TestRetrievalService_PartialFailureIsolation(t *testing.T) {
	keys := &mapKeyClient{keys: make(map[string][]byte)}
	store := memstore.NewEnvelopeStore()
	sink := &recordingSink{}
	retrieval := services.NewRetrievalService(store, keys, sink, testLogger())
	ctx := context.Background()

	// Five envelopes: one loses its key, one gets a corrupted tag.
	var envs []*domain.Envelope
	for i := 1; i <= 5; i++ {
		payload := []byte(fmt.Sprintf(`{"proto":"TCP","seq":%d}`, i))
		envs = append(envs, seedEnvelope(t, keys, store, fmt.Sprintf("r%d", i), int64(1000+i), payload))
	}
	keys.forget(envs[1].KeyID) // r2: unresolvable key

	tampered := *envs[3] // r4: flip one tag bit
	tampered.Tag = append([]byte(nil), tampered.Tag...)
	tampered.Tag[0] ^= 0x01
	require.NoError(t, store.Put(ctx, &tampered))

	records, skipped, err := retrieval.FetchAndDecrypt(ctx, domain.SelectionCriteria{StartMs: 1, EndMs: 2000})
	require.NoError(t, err)

	require.Len(t, records, 3)
	assert.Equal(t, "r1", records[0].RecordID)
	assert.Equal(t, "r3", records[1].RecordID)
	assert.Equal(t, "r5", records[2].RecordID)
	for _, rec := range records {
		assert.Equal(t, "TCP", rec.Fields["proto"])
	}

	require.Len(t, skipped, 2)
	reasons := map[string]domain.SkipReason{}
	for _, s := range skipped {
		reasons[s.RecordID] = s.Reason
	}
	assert.Equal(t, domain.SkipKeyNotFound, reasons["r2"])
	assert.Equal(t, domain.SkipTamperDetected, reasons["r4"])

	// Both integrity events must have reached the alert sink, tamper included.
	require.Len(t, sink.alerts, 2)
}

func TestRetrievalService_ParseFailureSkipsRecord(t *testing.T) {
	keys := &mapKeyClient{keys: make(map[string][]byte)}
	store := memstore.NewEnvelopeStore()
	retrieval := services.NewRetrievalService(store, keys, &recordingSink{}, testLogger())

	seedEnvelope(t, keys, store, "good", 100, []byte(`{"proto":"UDP"}`))
	seedEnvelope(t, keys, store, "bad", 200, []byte(`this is not a structured payload`))

	records, skipped, err := retrieval.FetchAndDecrypt(context.Background(), domain.SelectionCriteria{StartMs: 1, EndMs: 300})
	require.NoError(t, err)

	require.Len(t, records, 1)
	assert.Equal(t, "good", records[0].RecordID)

	require.Len(t, skipped, 1)
	assert.Equal(t, "bad", skipped[0].RecordID)
	assert.Equal(t, domain.SkipParseFailure, skipped[0].Reason)
}

func TestRetrievalService_EmptyWindow(t *testing.T) {
	keys := &mapKeyClient{keys: make(map[string][]byte)}
	store := memstore.NewEnvelopeStore()
	retrieval := services.NewRetrievalService(store, keys, &recordingSink{}, testLogger())

	records, skipped, err := retrieval.FetchAndDecrypt(context.Background(), domain.SelectionCriteria{StartMs: 1, EndMs: 2})
	require.NoError(t, err)
	assert.Empty(t, records)
	assert.Empty(t, skipped)
}

func TestRetrievalService_CancelledContext(t *testing.T) {
	keys := &mapKeyClient{keys: make(map[string][]byte)}
	store := memstore.NewEnvelopeStore()
	retrieval := services.NewRetrievalService(store, keys, &recordingSink{}, testLogger())

	seedEnvelope(t, keys, store, "r1", 100, []byte(`{"proto":"TCP"}`))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, _, err := retrieval.FetchAndDecrypt(ctx, domain.SelectionCriteria{StartMs: 1, EndMs: 200})
	assert.ErrorIs(t, err, context.Canceled)
}
