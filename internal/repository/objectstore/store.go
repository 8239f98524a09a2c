// Package objectstore keeps collections as JSON objects in remote object storage.
package objectstore

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"

	"income-tax/internal/repository"
	"income-tax/internal/storage"
)

type Store struct {
	objects storage.Service
	bucket  string
	prefix  string
}

func NewStore(objects storage.Service, bucket, keyPrefix string) repository.CollectionStore {
	return &Store{
		objects: objects,
		bucket:  bucket,
		prefix:  strings.Trim(keyPrefix, "/"),
	}
}

func (s *Store) Init(ctx context.Context) error {
	if s.bucket == "" {
		return fmt.Errorf("storage bucket is required")
	}
	return nil
}

func (s *Store) Get(ctx context.Context, key string) ([]byte, error) {
	payload, err := s.objects.GetObject(ctx, s.bucket, s.objectKey(key))
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotFound) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return payload, nil
}

func (s *Store) Put(ctx context.Context, key string, payload []byte) error {
	return s.objects.PutObject(ctx, s.bucket, s.objectKey(key), payload)
}

func (s *Store) objectKey(key string) string {
	if s.prefix == "" {
		return key + ".json"
	}
	return path.Join(s.prefix, key+".json")
}
