// Package storage defines the blob-store gateway shared by every stage.
//
// Backends live in subpackages: local (filesystem), memory and natsstore
// (JetStream object store). All of them overwrite on Put, return
// errors.ErrNotFound from Get for absent keys and list keys in
// lexicographic order.
package storage

import (
	"context"
	"fmt"

	"b3-dataflow/internal/errors"
)

// Store is a flat key/value blob store addressed by UTF-8 keys.
type Store interface {
	Put(ctx context.Context, key string, data []byte) error
	Get(ctx context.Context, key string) ([]byte, error)
	List(ctx context.Context, prefix string) ([]string, error)
}

// Copy reads key from src and writes the same bytes under the same key in dst.
func Copy(ctx context.Context, src, dst Store, key string) (int, error) {
	data, err := src.Get(ctx, key)
	if err != nil {
		return 0, err
	}
	if err := dst.Put(ctx, key, data); err != nil {
		return 0, err
	}
	return len(data), nil
}

// StorageErr wraps a backend failure with ErrStorage, keeping the cause text.
func StorageErr(op, key string, err error) error {
	return fmt.Errorf("%s %q: %v: %w", op, key, err, errors.ErrStorage)
}

// NotFoundErr reports an absent key.
func NotFoundErr(key string) error {
	return fmt.Errorf("key %q: %w", key, errors.ErrNotFound)
}
