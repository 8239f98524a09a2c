package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"income-tax/internal/repository"
)

const createCollectionsTable = `
CREATE TABLE IF NOT EXISTS collections (
	key TEXT PRIMARY KEY,
	payload BLOB NOT NULL,
	updated_at DATETIME NOT NULL
);
`

type CollectionStore struct {
	db *sql.DB
}

func NewCollectionStore(db *sql.DB) repository.CollectionStore {
	return &CollectionStore{db: db}
}

func (s *CollectionStore) Init(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, createCollectionsTable); err != nil {
		return fmt.Errorf("create collections table: %w", err)
	}
	return nil
}

func (s *CollectionStore) Get(ctx context.Context, key string) ([]byte, error) {
	var payload []byte
	err := s.db.QueryRowContext(ctx, `
SELECT payload
FROM collections
WHERE key = ?`,
		key,
	).Scan(&payload)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("select collection: %w", err)
	}
	return payload, nil
}

func (s *CollectionStore) Put(ctx context.Context, key string, payload []byte) error {
	_, err := s.db.ExecContext(ctx, `
INSERT INTO collections (key, payload, updated_at)
VALUES (?, ?, ?)
ON CONFLICT(key) DO UPDATE SET
	payload = excluded.payload,
	updated_at = excluded.updated_at`,
		key,
		payload,
		time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("upsert collection: %w", err)
	}
	return nil
}
