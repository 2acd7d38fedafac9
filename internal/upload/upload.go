// Package upload copies today's local raw partition to the remote store
// under the same key.
package upload

import (
	"context"
	"log/slog"
	"time"

	"b3-dataflow/internal/codec"
	"b3-dataflow/internal/partition"
	"b3-dataflow/internal/slogx"
	"b3-dataflow/internal/storage"
)

// Uploader copies one partition per run.
type Uploader struct {
	dataset  string
	prefix   string
	location *time.Location
	local    storage.Store
	remote   storage.Store
	now      func() time.Time
	log      *slog.Logger
}

// New creates an Uploader for dataset partitions under prefix (empty for
// raw/). A nil location means UTC.
func New(dataset, prefix string, location *time.Location, local, remote storage.Store) *Uploader {
	if location == nil {
		location = time.UTC
	}
	return &Uploader{
		dataset:  dataset,
		prefix:   prefix,
		location: location,
		local:    local,
		remote:   remote,
		now:      time.Now,
		log:      slogx.Component("upload"),
	}
}

// SetClock replaces time.Now. Used by tests.
func (u *Uploader) SetClock(now func() time.Time) { u.now = now }

// Run copies today's raw partition and returns its key. A missing local
// partition is ErrNotFound; write failures are ErrStorage.
func (u *Uploader) Run(ctx context.Context) (string, error) {
	key, err := partition.KeyAt(u.now().In(u.location), partition.Raw, u.prefix, u.dataset, codec.Extension())
	if err != nil {
		return "", err
	}
	n, err := storage.Copy(ctx, u.local, u.remote, key)
	if err != nil {
		return "", err
	}
	u.log.Info("uploaded", "key", key, "bytes", n)
	return key, nil
}
