package service

import (
	"context"
	"errors"

	"income-tax/internal/domain"
	"income-tax/internal/repository"
)

var errStorage = errors.New("disk on fire")

type fakeCollection[T any] struct {
	items   []T
	stored  bool
	loadErr error
	saveErr error
	saves   int
}

func (f *fakeCollection[T]) Load(ctx context.Context) ([]T, error) {
	if f.loadErr != nil {
		return nil, f.loadErr
	}
	if !f.stored {
		return nil, repository.ErrNotFound
	}
	out := make([]T, len(f.items))
	copy(out, f.items)
	return out, nil
}

func (f *fakeCollection[T]) Save(ctx context.Context, items []T) error {
	f.saves++
	if f.saveErr != nil {
		return f.saveErr
	}
	f.items = make([]T, len(items))
	copy(f.items, items)
	f.stored = true
	return nil
}

type fakeCredentials = fakeCollection[domain.Credential]

type fakeRates = fakeCollection[domain.TaxBracket]
