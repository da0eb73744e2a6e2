package domain

import "context"

// EnvelopeStore is the keyed persistence capability for sealed envelopes.
// Implementations never see plaintext payloads. Record ids are caller-assigned
// and expected unique; writes to distinct ids are independent.
type EnvelopeStore interface {
	Put(ctx context.Context, env *Envelope) error
	Get(ctx context.Context, recordID string) (*Envelope, error)

	// Select returns all envelopes whose metadata matches the criteria,
	// ordered by timestamp ascending.
	Select(ctx context.Context, criteria SelectionCriteria) ([]Envelope, error)
}

// KeyStore is the custodian's at-rest keyspace. Insert is append-only: an id
// collision returns ErrKeyExists and existing records are never overwritten
// or deleted. Get returns ErrKeyNotFound for unknown ids.
type KeyStore interface {
	Insert(ctx context.Context, rec KeyRecord) error
	Get(ctx context.Context, keyID string) (KeyRecord, error)
}

// KeyClient is the custodian as seen by the ingest and retrieval paths.
// GenerateKey is the one call that yields fresh material alongside the id;
// KeyMaterial serves the retrieval side. Both carry bounded timeouts and
// surface transport failures as ErrKeyServiceUnavailable.
type KeyClient interface {
	GenerateKey(ctx context.Context) (keyID string, material []byte, err error)
	KeyMaterial(ctx context.Context, keyID string) ([]byte, error)
}

// AlertSink receives integrity events raised by the retrieval path. The
// telemetry hub implements this; tests substitute a recording fake.
type AlertSink interface {
	IntegrityAlert(recordID string, reason SkipReason, detail string)
}
