package services_test

import (
	"context"
	"crypto/rand"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"packetvault/internal/core/domain"
	"packetvault/internal/core/services"
	"packetvault/internal/db/memstore"
	"packetvault/internal/infrastructure/crypto"
)

// fakeKeyClient hands out a fixed key or a fixed error.
type fakeKeyClient struct {
	keyID    string
	material []byte
	err      error
}

func (f *fakeKeyClient) GenerateKey(ctx context.Context) (string, []byte, error) {
	if f.err != nil {
		return "", nil, f.err
	}
	return f.keyID, f.material, nil
}

func (f *fakeKeyClient) KeyMaterial(ctx context.Context, keyID string) ([]byte, error) {
	if f.err != nil {
		return nil, f.err
	}
	if keyID != f.keyID {
		return nil, domain.ErrKeyNotFound
	}
	return f.material, nil
}

func newFakeKeyClient(t *testing.T) *fakeKeyClient {
	t.Helper()
	material := make([]byte, crypto.KeySize)
	_, err := rand.Read(material)
	require.NoError(t, err)
	return &fakeKeyClient{keyID: "dek-fake-1", material: material}
}

func sampleRecord() *domain.RawRecord {
	return &domain.RawRecord{
		RecordID:            "r1",
		TimestampMs:         1700000000001,
		SourceEndpoint:      "192.168.1.101",
		DestinationEndpoint: "203.0.113.1",
		Payload:             []byte(`{"proto":"TCP","length":120}`),
	}
}

func TestIngestService_StoreRecord(t *testing.T) {
	keys := newFakeKeyClient(t)
	store := memstore.NewEnvelopeStore()
	ingest := services.NewIngestService(keys, store, testLogger())

	ack, err := ingest.StoreRecord(context.Background(), sampleRecord())
	require.NoError(t, err)
	assert.Equal(t, "r1", ack.StoredID)
	assert.Equal(t, "dek-fake-1", ack.KeyID)

	env, err := store.Get(context.Background(), "r1")
	require.NoError(t, err)

	assert.Equal(t, int64(1700000000001), env.TimestampMs)
	assert.Equal(t, "192.168.1.101", env.SourceEndpoint)
	assert.Equal(t, "dek-fake-1", env.KeyID)
	assert.Len(t, env.Nonce, crypto.NonceSize)
	assert.Len(t, env.Tag, crypto.TagSize)

	// Ciphertext length matches plaintext, and the plaintext itself never
	// reached the store.
	payload := sampleRecord().Payload
	assert.Len(t, env.Ciphertext, len(payload))
	assert.NotEqual(t, payload, env.Ciphertext)

	// The stored envelope opens back to the original payload.
	plaintext, err := crypto.Open(keys.material, crypto.SealedPayload{
		Nonce: env.Nonce, Ciphertext: env.Ciphertext, Tag: env.Tag,
	}, []byte("r1"))
	require.NoError(t, err)
	assert.Equal(t, payload, plaintext)
}

func TestIngestService_KeyServiceDown_NothingStored(t *testing.T) {
	keys := &fakeKeyClient{err: domain.ErrKeyServiceUnavailable}
	store := memstore.NewEnvelopeStore()
	ingest := services.NewIngestService(keys, store, testLogger())

	_, err := ingest.StoreRecord(context.Background(), sampleRecord())
	assert.ErrorIs(t, err, domain.ErrKeyServiceUnavailable)

	_, err = store.Get(context.Background(), "r1")
	assert.ErrorIs(t, err, domain.ErrEnvelopeNotFound)
}

func TestIngestService_SealFailure_NothingStored(t *testing.T) {
	// 16-byte material: the codec requires AES-256 and must refuse.
	keys := &fakeKeyClient{keyID: "dek-short", material: make([]byte, 16)}
	store := memstore.NewEnvelopeStore()
	ingest := services.NewIngestService(keys, store, testLogger())

	_, err := ingest.StoreRecord(context.Background(), sampleRecord())
	assert.ErrorIs(t, err, domain.ErrEncryptionFailure)

	_, err = store.Get(context.Background(), "r1")
	assert.ErrorIs(t, err, domain.ErrEnvelopeNotFound)
}

// failingEnvelopeStore rejects every write.
type failingEnvelopeStore struct {
	domain.EnvelopeStore
}

func (s *failingEnvelopeStore) Put(ctx context.Context, env *domain.Envelope) error {
	return errors.New("connection reset by peer")
}

func TestIngestService_PersistenceFailure(t *testing.T) {
	keys := newFakeKeyClient(t)
	store := &failingEnvelopeStore{EnvelopeStore: memstore.NewEnvelopeStore()}
	ingest := services.NewIngestService(keys, store, testLogger())

	_, err := ingest.StoreRecord(context.Background(), sampleRecord())
	assert.ErrorIs(t, err, domain.ErrPersistenceFailure)
}
