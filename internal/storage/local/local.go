// Package local stores objects as files under a root directory. A key maps
// to root/<key> with "/" as the path separator.
package local

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"b3-dataflow/internal/errors"
	"b3-dataflow/internal/storage"
)

// Store is a filesystem-backed storage.Store.
type Store struct {
	root string
}

var _ storage.Store = (*Store)(nil)

// New returns a store rooted at dir. The directory is created on first Put.
func New(dir string) *Store {
	return &Store{root: filepath.Clean(dir)}
}

// Path returns the file path of key, rejecting keys that escape the root.
func (s *Store) Path(key string) (string, error) {
	clean := filepath.Clean(filepath.FromSlash(key))
	if key == "" || filepath.IsAbs(clean) || clean == ".." || strings.HasPrefix(clean, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("key %q escapes store root: %w", key, errors.ErrStorage)
	}
	return filepath.Join(s.root, clean), nil
}

// Put writes data atomically: a temp file in the target directory is renamed
// over the destination, so readers never observe a partial partition.
func (s *Store) Put(ctx context.Context, key string, data []byte) error {
	if err := ctx.Err(); err != nil {
		return storage.StorageErr("put", key, err)
	}
	path, err := s.Path(key)
	if err != nil {
		return err
	}
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return storage.StorageErr("put", key, err)
	}
	tmp, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return storage.StorageErr("put", key, err)
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return storage.StorageErr("put", key, err)
	}
	if err := tmp.Close(); err != nil {
		return storage.StorageErr("put", key, err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return storage.StorageErr("put", key, err)
	}
	return nil
}

// Get reads the file of key.
func (s *Store) Get(ctx context.Context, key string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, storage.StorageErr("get", key, err)
	}
	path, err := s.Path(key)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, storage.NotFoundErr(key)
		}
		return nil, storage.StorageErr("get", key, err)
	}
	return data, nil
}

// List walks the root and returns sorted keys starting with prefix.
// Temp files left by interrupted writes are skipped.
func (s *Store) List(ctx context.Context, prefix string) ([]string, error) {
	keys := []string{}
	err := filepath.WalkDir(s.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) && path == s.root {
				return fs.SkipAll
			}
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if d.IsDir() || strings.HasPrefix(d.Name(), ".tmp-") {
			return nil
		}
		rel, err := filepath.Rel(s.root, path)
		if err != nil {
			return err
		}
		key := filepath.ToSlash(rel)
		if strings.HasPrefix(key, prefix) {
			keys = append(keys, key)
		}
		return nil
	})
	if err != nil {
		return nil, storage.StorageErr("list", prefix, err)
	}
	sort.Strings(keys)
	return keys, nil
}
