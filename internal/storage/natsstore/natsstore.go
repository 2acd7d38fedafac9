// Package natsstore implements storage.Store on a NATS JetStream object
// store bucket. Object names are the partition keys verbatim.
package natsstore

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"b3-dataflow/internal/errors"
	"b3-dataflow/internal/storage"
)

// Store is a storage.Store backed by one object store bucket.
type Store struct {
	bucket string
	obj    jetstream.ObjectStore
}

var _ storage.Store = (*Store)(nil)

// Dial connects to a NATS server and returns the connection and its
// JetStream context. The caller closes the connection.
func Dial(url, name string) (*nats.Conn, jetstream.JetStream, error) {
	nc, err := nats.Connect(url,
		nats.Name(name),
		nats.Timeout(5*time.Second),
		nats.MaxReconnects(5),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("connect %s: %w", url, err)
	}
	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return nil, nil, fmt.Errorf("jetstream: %w", err)
	}
	return nc, js, nil
}

// Open binds the bucket, creating it when it does not exist yet.
func Open(ctx context.Context, js jetstream.JetStream, bucket string) (*Store, error) {
	obj, err := js.ObjectStore(ctx, bucket)
	if errors.Is(err, jetstream.ErrBucketNotFound) {
		obj, err = js.CreateObjectStore(ctx, jetstream.ObjectStoreConfig{
			Bucket:      bucket,
			Description: "b3-dataflow partitions",
		})
	}
	if err != nil {
		return nil, fmt.Errorf("object store %s: %v: %w", bucket, err, errors.ErrStorage)
	}
	return &Store{bucket: bucket, obj: obj}, nil
}

// Bucket returns the bucket name.
func (s *Store) Bucket() string { return s.bucket }

// Put replaces the object at key.
func (s *Store) Put(ctx context.Context, key string, data []byte) error {
	if _, err := s.obj.PutBytes(ctx, key, data); err != nil {
		return storage.StorageErr("put", key, err)
	}
	return nil
}

// Get returns the object at key.
func (s *Store) Get(ctx context.Context, key string) ([]byte, error) {
	data, err := s.obj.GetBytes(ctx, key)
	if err != nil {
		if errors.Is(err, jetstream.ErrObjectNotFound) {
			return nil, storage.NotFoundErr(key)
		}
		return nil, storage.StorageErr("get", key, err)
	}
	return data, nil
}

// List returns the sorted names of live objects starting with prefix.
func (s *Store) List(ctx context.Context, prefix string) ([]string, error) {
	keys := []string{}
	infos, err := s.obj.List(ctx)
	if err != nil {
		if errors.Is(err, jetstream.ErrNoObjectsFound) {
			return keys, nil
		}
		return nil, storage.StorageErr("list", prefix, err)
	}
	for _, info := range infos {
		if info == nil || info.Deleted {
			continue
		}
		if strings.HasPrefix(info.Name, prefix) {
			keys = append(keys, info.Name)
		}
	}
	sort.Strings(keys)
	return keys, nil
}

// Puts streams the names of objects written after the call, until ctx ends.
// Deletes are skipped. The channel closes when the watch stops.
func (s *Store) Puts(ctx context.Context) (<-chan string, error) {
	w, err := s.obj.Watch(ctx, jetstream.UpdatesOnly())
	if err != nil {
		return nil, fmt.Errorf("watch %s: %v: %w", s.bucket, err, errors.ErrStorage)
	}
	out := make(chan string)
	go func() {
		defer close(out)
		defer func() {
			if err := w.Stop(); err != nil {
				slog.Debug("object watch stop", "bucket", s.bucket, "error", err)
			}
		}()
		for {
			select {
			case <-ctx.Done():
				return
			case info, ok := <-w.Updates():
				if !ok {
					return
				}
				if info == nil || info.Deleted {
					continue
				}
				select {
				case out <- info.Name:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}
