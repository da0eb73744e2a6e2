package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"packetvault/internal/core/domain"
)

// EnvelopeRepository persists sealed envelopes in the `envelopes` table.
// Crypto fields (ciphertext, nonce, tag) are BYTEA and never textually
// reinterpreted; metadata columns carry the range-query indexes.
type EnvelopeRepository struct {
	pool *pgxpool.Pool
}

func NewEnvelopeRepository(pool *pgxpool.Pool) *EnvelopeRepository {
	return &EnvelopeRepository{pool: pool}
}

func (r *EnvelopeRepository) Put(ctx context.Context, env *domain.Envelope) error {
	query := `
		INSERT INTO envelopes (record_id, timestamp_ms, source_endpoint, destination_endpoint,
		                       ciphertext, key_id, nonce, tag)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	_, err := r.pool.Exec(ctx, query,
		env.RecordID,
		env.TimestampMs,
		env.SourceEndpoint,
		env.DestinationEndpoint,
		env.Ciphertext,
		env.KeyID,
		env.Nonce,
		env.Tag,
	)
	if err != nil {
		return fmt.Errorf("%w: envelope insert for %s: %v", domain.ErrPersistenceFailure, env.RecordID, err)
	}
	return nil
}

func (r *EnvelopeRepository) Get(ctx context.Context, recordID string) (*domain.Envelope, error) {
	query := `
		SELECT record_id, timestamp_ms, source_endpoint, destination_endpoint,
		       ciphertext, key_id, nonce, tag
		FROM envelopes WHERE record_id = $1
	`
	rows, err := r.pool.Query(ctx, query, recordID)
	if err != nil {
		return nil, fmt.Errorf("%w: envelope fetch for %s: %v", domain.ErrPersistenceFailure, recordID, err)
	}
	env, err := pgx.CollectOneRow(rows, pgx.RowToStructByName[domain.Envelope])
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrEnvelopeNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%w: envelope scan for %s: %v", domain.ErrPersistenceFailure, recordID, err)
	}
	return &env, nil
}

// Select builds a dynamic WHERE clause over envelope metadata. Zero-valued
// criteria fields are unconstrained; results come back in timestamp order so
// retrieval batches are deterministic.
func (r *EnvelopeRepository) Select(ctx context.Context, c domain.SelectionCriteria) ([]domain.Envelope, error) {
	query := `
		SELECT record_id, timestamp_ms, source_endpoint, destination_endpoint,
		       ciphertext, key_id, nonce, tag
		FROM envelopes WHERE 1=1
	`
	var args []any
	argCount := 1

	if c.StartMs != 0 {
		query += fmt.Sprintf(" AND timestamp_ms >= $%d", argCount)
		args = append(args, c.StartMs)
		argCount++
	}
	if c.EndMs != 0 {
		query += fmt.Sprintf(" AND timestamp_ms <= $%d", argCount)
		args = append(args, c.EndMs)
		argCount++
	}
	if c.SourceEndpoint != "" {
		query += fmt.Sprintf(" AND source_endpoint = $%d", argCount)
		args = append(args, c.SourceEndpoint)
		argCount++
	}
	if c.DestinationEndpoint != "" {
		query += fmt.Sprintf(" AND destination_endpoint = $%d", argCount)
		args = append(args, c.DestinationEndpoint)
		argCount++
	}

	query += " ORDER BY timestamp_ms ASC"

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: envelope select: %v", domain.ErrPersistenceFailure, err)
	}
	defer rows.Close()

	envs, err := pgx.CollectRows(rows, pgx.RowToStructByName[domain.Envelope])
	if err != nil {
		return nil, fmt.Errorf("%w: envelope select scan: %v", domain.ErrPersistenceFailure, err)
	}
	return envs, nil
}
