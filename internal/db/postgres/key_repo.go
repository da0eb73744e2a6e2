package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"packetvault/internal/core/domain"
)

// KeyRepository is the durable keyspace behind the custodian. Inserts are
// append-only: ON CONFLICT DO NOTHING plus a rows-affected check turns an id
// collision into domain.ErrKeyExists instead of ever overwriting material.
// There is no update or delete path.
type KeyRepository struct {
	db *sqlx.DB
}

func NewKeyRepository(db *sqlx.DB) *KeyRepository {
	return &KeyRepository{db: db}
}

func (r *KeyRepository) Insert(ctx context.Context, rec domain.KeyRecord) error {
	query := `
		INSERT INTO data_keys (key_id, wrapped_material, wrap_nonce)
		VALUES (:key_id, :wrapped_material, :wrap_nonce)
		ON CONFLICT (key_id) DO NOTHING
	`
	res, err := r.db.NamedExecContext(ctx, query, rec)
	if err != nil {
		return fmt.Errorf("%w: key insert: %v", domain.ErrPersistenceFailure, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%w: key insert result: %v", domain.ErrPersistenceFailure, err)
	}
	if affected == 0 {
		return domain.ErrKeyExists
	}
	return nil
}

func (r *KeyRepository) Get(ctx context.Context, keyID string) (domain.KeyRecord, error) {
	var rec domain.KeyRecord
	query := `SELECT key_id, wrapped_material, wrap_nonce FROM data_keys WHERE key_id = $1`
	err := r.db.GetContext(ctx, &rec, query, keyID)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.KeyRecord{}, domain.ErrKeyNotFound
	}
	if err != nil {
		return domain.KeyRecord{}, fmt.Errorf("%w: key fetch: %v", domain.ErrPersistenceFailure, err)
	}
	return rec, nil
}
