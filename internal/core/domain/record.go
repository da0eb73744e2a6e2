package domain

// Envelope is the persisted unit for one captured record: the sealed payload
// plus everything needed to open it later. The plaintext payload never appears
// here — only its ciphertext and the AES-GCM material (key id, nonce, tag)
// stored as separate columns so the tag authenticates exactly what we wrote.
type Envelope struct {
	RecordID            string `json:"record_id" db:"record_id"`
	TimestampMs         int64  `json:"timestamp_ms" db:"timestamp_ms"`
	SourceEndpoint      string `json:"source_endpoint" db:"source_endpoint"`
	DestinationEndpoint string `json:"destination_endpoint" db:"destination_endpoint"`
	Ciphertext          []byte `json:"-" db:"ciphertext"`
	KeyID               string `json:"key_id" db:"key_id"`
	Nonce               []byte `json:"-" db:"nonce"` // 96-bit GCM nonce, unique per key
	Tag                 []byte `json:"-" db:"tag"`   // 128-bit authentication tag
}

// PlaintextRecord is a decrypted record as it exists inside a single retrieval
// request. It carries the envelope metadata plus the structured fields parsed
// out of the payload, and is never persisted.
type PlaintextRecord struct {
	RecordID            string         `json:"record_id"`
	TimestampMs         int64          `json:"timestamp_ms"`
	SourceEndpoint      string         `json:"source_endpoint"`
	DestinationEndpoint string         `json:"destination_endpoint"`
	Payload             []byte         `json:"-"`
	Fields              map[string]any `json:"fields"`
}

// Field resolves a queryable field by name: envelope metadata first, then the
// parsed payload fields. The second return reports whether the field exists.
func (r *PlaintextRecord) Field(name string) (any, bool) {
	switch name {
	case "record_id":
		return r.RecordID, true
	case "timestamp_ms":
		return r.TimestampMs, true
	case "source_endpoint":
		return r.SourceEndpoint, true
	case "destination_endpoint":
		return r.DestinationEndpoint, true
	}
	v, ok := r.Fields[name]
	return v, ok
}

// KeyRecord pairs a DEK identifier with its material as held by the custodian.
// Material is wrapped under the custodian KEK before it reaches a KeyStore, so
// store implementations only ever see WrappedMaterial.
type KeyRecord struct {
	KeyID           string `db:"key_id"`
	WrappedMaterial []byte `db:"wrapped_material"`
	WrapNonce       []byte `db:"wrap_nonce"`
}

// RawRecord is an incoming record on the ingest boundary, before sealing.
// The payload is an opaque byte sequence; the upstream collector guarantees
// the record id is unique and the payload structurally parseable.
type RawRecord struct {
	RecordID            string
	TimestampMs         int64
	SourceEndpoint      string
	DestinationEndpoint string
	Payload             []byte
}

// StoredAck confirms a successful ingest.
type StoredAck struct {
	StoredID string `json:"stored_id"`
	KeyID    string `json:"key_id"`
}

// SkipReason classifies why a record was excluded from a retrieval batch.
type SkipReason string

const (
	SkipKeyNotFound    SkipReason = "key_not_found"
	SkipTamperDetected SkipReason = "tamper_detected"
	SkipParseFailure   SkipReason = "parse_failure"
)

// SkippedRecord is one entry in the retrieval manifest: a record that matched
// the selection criteria but failed key resolution, authentication or parsing.
type SkippedRecord struct {
	RecordID string     `json:"record_id"`
	Reason   SkipReason `json:"reason"`
	Detail   string     `json:"detail,omitempty"`
}

// SelectionCriteria scopes which envelopes a retrieval fetches. It filters on
// envelope metadata only and is independent of the post-decryption predicate.
type SelectionCriteria struct {
	StartMs             int64
	EndMs               int64
	SourceEndpoint      string
	DestinationEndpoint string
}
