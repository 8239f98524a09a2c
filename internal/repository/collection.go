package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"income-tax/internal/domain"
)

// ErrNotFound is returned by a CollectionStore when nothing is stored under a key.
var ErrNotFound = errors.New("collection not found")

// Keys under which the persisted collections live.
const (
	KeyTaxRates = "tax_rates"
	KeyUsers    = "users"
)

// CollectionStore persists opaque whole-collection payloads by key.
type CollectionStore interface {
	Init(ctx context.Context) error
	Get(ctx context.Context, key string) ([]byte, error)
	Put(ctx context.Context, key string, payload []byte) error
}

// RateRepository loads and saves the tax bracket table.
type RateRepository interface {
	Load(ctx context.Context) ([]domain.TaxBracket, error)
	Save(ctx context.Context, brackets []domain.TaxBracket) error
}

// CredentialRepository loads and saves the credential list.
type CredentialRepository interface {
	Load(ctx context.Context) ([]domain.Credential, error)
	Save(ctx context.Context, creds []domain.Credential) error
}

// Gateway reads and writes one typed collection under a fixed key.
type Gateway[T any] struct {
	store CollectionStore
	key   string
}

func NewGateway[T any](store CollectionStore, key string) *Gateway[T] {
	return &Gateway[T]{store: store, key: key}
}

func NewRateRepository(store CollectionStore) RateRepository {
	return NewGateway[domain.TaxBracket](store, KeyTaxRates)
}

func NewCredentialRepository(store CollectionStore) CredentialRepository {
	return NewGateway[domain.Credential](store, KeyUsers)
}

// Load returns ErrNotFound (wrapped) when the key has never been saved.
func (g *Gateway[T]) Load(ctx context.Context) ([]T, error) {
	payload, err := g.store.Get(ctx, g.key)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", g.key, err)
	}

	var items []T
	if err := json.Unmarshal(payload, &items); err != nil {
		return nil, fmt.Errorf("decode %s: %w", g.key, err)
	}
	if items == nil {
		return nil, fmt.Errorf("load %s: %w", g.key, ErrNotFound)
	}
	return items, nil
}

func (g *Gateway[T]) Save(ctx context.Context, items []T) error {
	if items == nil {
		items = []T{}
	}
	payload, err := json.Marshal(items)
	if err != nil {
		return fmt.Errorf("encode %s: %w", g.key, err)
	}
	if err := g.store.Put(ctx, g.key, payload); err != nil {
		return fmt.Errorf("save %s: %w", g.key, err)
	}
	return nil
}
