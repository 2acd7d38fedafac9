// Package partition maps calendar dates to storage keys.
//
// Key layout: {layer}/year={YYYY}/month={MM}/day={DD}/{dataset}.{ext}
//
// Every numeric component is zero-padded to a fixed width, so lexicographic
// order of keys within one layer and dataset is also chronological order.
package partition

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"b3-dataflow/internal/errors"
)

// Layer is the storage layer a partition belongs to.
type Layer string

const (
	Raw     Layer = "raw"
	Refined Layer = "refined"
)

// Ext is the extension of partition data files.
const Ext = "parquet"

// Valid reports whether l is a known layer.
func (l Layer) Valid() bool {
	return l == Raw || l == Refined
}

// Prefix returns the key prefix of the layer, e.g. "raw/".
func (l Layer) Prefix() string {
	return string(l) + "/"
}

// Path returns year=YYYY/month=MM/day=DD for d.
func Path(d time.Time) string {
	return fmt.Sprintf("year=%04d/month=%02d/day=%02d", d.Year(), int(d.Month()), d.Day())
}

// Key builds the partition key for date d. Only the calendar date of d is used.
func Key(d time.Time, layer Layer, dataset, ext string) (string, error) {
	if !layer.Valid() {
		return "", fmt.Errorf("layer %q: %w", layer, errors.ErrInvalidPartition)
	}
	if dataset == "" || strings.ContainsAny(dataset, "/.") {
		return "", fmt.Errorf("dataset %q: %w", dataset, errors.ErrInvalidPartition)
	}
	if ext == "" {
		ext = Ext
	}
	if d.IsZero() || d.Year() < 1 || d.Year() > 9999 {
		return "", fmt.Errorf("date %s: %w", d.Format(time.DateOnly), errors.ErrInvalidPartition)
	}
	return fmt.Sprintf("%s%s/%s.%s", layer.Prefix(), Path(d), dataset, ext), nil
}

// KeyAt is Key with the layer segment replaced by prefix, for stores that
// keep a layer under a configured prefix such as "landing/". An empty
// prefix uses the layer's own.
func KeyAt(d time.Time, layer Layer, prefix, dataset, ext string) (string, error) {
	key, err := Key(d, layer, dataset, ext)
	if err != nil || prefix == "" {
		return key, err
	}
	if !strings.HasSuffix(prefix, "/") || strings.HasPrefix(prefix, "/") {
		return "", fmt.Errorf("prefix %q: %w", prefix, errors.ErrInvalidPartition)
	}
	out, _ := Swap(key, layer.Prefix(), prefix)
	return out, nil
}

// Info is the decoded form of a partition key.
type Info struct {
	Layer   Layer
	Date    time.Time // UTC midnight
	Dataset string
	Ext     string
}

// Parse decodes a key produced by Key.
func Parse(key string) (Info, error) {
	parts := strings.Split(key, "/")
	if len(parts) != 5 {
		return Info{}, fmt.Errorf("key %q: %w", key, errors.ErrInvalidPartition)
	}
	layer := Layer(parts[0])
	if !layer.Valid() {
		return Info{}, fmt.Errorf("key %q: layer %q: %w", key, parts[0], errors.ErrInvalidPartition)
	}
	path := strings.Join(parts[1:4], "/")
	var y, m, d int
	if _, err := fmt.Sscanf(path, "year=%04d/month=%02d/day=%02d", &y, &m, &d); err != nil {
		return Info{}, fmt.Errorf("key %q: %v: %w", key, err, errors.ErrInvalidPartition)
	}
	date := time.Date(y, time.Month(m), d, 0, 0, 0, 0, time.UTC)
	// Rejects both overflowing dates (month=13) and unpadded components.
	if Path(date) != path {
		return Info{}, fmt.Errorf("key %q: not a canonical date path: %w", key, errors.ErrInvalidPartition)
	}
	name := parts[4]
	dot := strings.LastIndexByte(name, '.')
	if dot <= 0 || dot == len(name)-1 {
		return Info{}, fmt.Errorf("key %q: file %q: %w", key, name, errors.ErrInvalidPartition)
	}
	return Info{Layer: layer, Date: date, Dataset: name[:dot], Ext: name[dot+1:]}, nil
}

// Swap replaces the leading from prefix of key with to. The second return is
// false when key does not start with from.
func Swap(key, from, to string) (string, bool) {
	if !strings.HasPrefix(key, from) {
		return key, false
	}
	return to + strings.TrimPrefix(key, from), true
}

// Latest returns the lexicographically greatest key ending in suffix.
// It fails with ErrNoData when no key qualifies.
func Latest(keys []string, suffix string) (string, error) {
	var filtered []string
	for _, k := range keys {
		if strings.HasSuffix(k, suffix) {
			filtered = append(filtered, k)
		}
	}
	if len(filtered) == 0 {
		return "", fmt.Errorf("no keys with suffix %q: %w", suffix, errors.ErrNoData)
	}
	sort.Strings(filtered)
	return filtered[len(filtered)-1], nil
}
