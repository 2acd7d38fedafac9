// Package transform turns raw partitions into refined outputs.
//
// Single-partition mode keeps row granularity and adds the derived columns.
// Batch mode reads every raw partition, derives, and aggregates by ISO week
// into one summary object. Either mode writes exactly one object on success
// and nothing on failure.
package transform

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/zeebo/xxh3"
	"golang.org/x/sync/errgroup"

	"b3-dataflow/internal/codec"
	"b3-dataflow/internal/errors"
	"b3-dataflow/internal/metrics"
	"b3-dataflow/internal/model"
	"b3-dataflow/internal/partition"
	"b3-dataflow/internal/slogx"
	"b3-dataflow/internal/storage"
)

// Modes, as reported to metrics.
const (
	ModePartition = "partition"
	ModeAll       = "all"
	ModeLatest    = "latest"
)

const defaultReadConcurrency = 4

// Config is the transformer's slice of the application config.
type Config struct {
	RawPrefix     string // e.g. raw/
	RefinedPrefix string // e.g. refined/
	Dataset       string // names the batch-mode output
	TickerLabel   string // ticker of raw files lacking a ticker column
	Codec         codec.Options

	// ReadConcurrency bounds parallel raw reads in batch mode.
	ReadConcurrency int
}

// Result describes the refined object written by one run. Checksum is the
// xxh3 hash of the written bytes, equal across idempotent re-runs.
type Result struct {
	Key      string `json:"key"`
	Rows     int    `json:"rows"`
	Columns  int    `json:"columns"`
	Checksum string `json:"checksum"`
}

// Transformer reads from a raw store and writes to a refined store. Both may
// be the same store.
type Transformer struct {
	cfg     Config
	raw     storage.Store
	refined storage.Store
	log     *slog.Logger
	metrics metrics.Collector
}

// Option customizes a Transformer.
type Option func(*Transformer)

func WithLogger(l *slog.Logger) Option {
	return func(t *Transformer) { t.log = l }
}

func WithMetrics(c metrics.Collector) Option {
	return func(t *Transformer) { t.metrics = c }
}

// New creates a Transformer.
func New(cfg Config, raw, refined storage.Store, opts ...Option) *Transformer {
	if cfg.RawPrefix == "" {
		cfg.RawPrefix = partition.Raw.Prefix()
	}
	if cfg.RefinedPrefix == "" {
		cfg.RefinedPrefix = partition.Refined.Prefix()
	}
	if cfg.ReadConcurrency <= 0 {
		cfg.ReadConcurrency = defaultReadConcurrency
	}
	t := &Transformer{
		cfg:     cfg,
		raw:     raw,
		refined: refined,
		log:     slogx.Component("transform"),
		metrics: metrics.NewNop(),
	}
	for _, o := range opts {
		o(t)
	}
	return t
}

// AllKey is the batch-mode output key.
func (t *Transformer) AllKey() string {
	return t.cfg.RefinedPrefix + t.cfg.Dataset + "_refined." + codec.Extension()
}

// TransformPartition derives one raw partition into refinedKey.
func (t *Transformer) TransformPartition(ctx context.Context, rawKey, refinedKey string) (Result, error) {
	res, err := t.transformPartition(ctx, rawKey, refinedKey)
	t.observe(ModePartition, res, err)
	return res, err
}

func (t *Transformer) transformPartition(ctx context.Context, rawKey, refinedKey string) (Result, error) {
	if refinedKey == "" || refinedKey == rawKey {
		return Result{}, fmt.Errorf("refined key %q for %s: %w", refinedKey, rawKey, errors.ErrInvalidPartition)
	}
	rows, err := t.read(ctx, rawKey)
	if err != nil {
		return Result{}, err
	}
	if len(rows) == 0 {
		return Result{}, fmt.Errorf("%s has no rows: %w", rawKey, errors.ErrNoData)
	}
	return write(ctx, t, refinedKey, Derive(Dedupe(rows)))
}

// TransformLatest derives the most recent raw partition into the key
// obtained by swapping the raw prefix for the refined one.
func (t *Transformer) TransformLatest(ctx context.Context) (Result, error) {
	res, err := t.transformLatest(ctx)
	t.observe(ModeLatest, res, err)
	return res, err
}

func (t *Transformer) transformLatest(ctx context.Context) (Result, error) {
	keys, err := t.raw.List(ctx, t.cfg.RawPrefix)
	if err != nil {
		return Result{}, err
	}
	rawKey, err := partition.Latest(keys, "."+codec.Extension())
	if err != nil {
		return Result{}, fmt.Errorf("latest under %s: %w", t.cfg.RawPrefix, err)
	}
	refinedKey, _ := partition.Swap(rawKey, t.cfg.RawPrefix, t.cfg.RefinedPrefix)
	t.log.Info("latest raw partition", "key", rawKey)
	return t.transformPartition(ctx, rawKey, refinedKey)
}

// TransformAll reads every raw partition, derives and aggregates them by
// week, and writes the summary to AllKey.
func (t *Transformer) TransformAll(ctx context.Context) (Result, error) {
	res, err := t.transformAll(ctx)
	t.observe(ModeAll, res, err)
	return res, err
}

func (t *Transformer) transformAll(ctx context.Context) (Result, error) {
	listed, err := t.raw.List(ctx, t.cfg.RawPrefix)
	if err != nil {
		return Result{}, err
	}
	var keys []string
	for _, k := range listed {
		if strings.HasSuffix(k, "."+codec.Extension()) {
			keys = append(keys, k)
		}
	}
	if len(keys) == 0 {
		return Result{}, fmt.Errorf("no raw partitions under %q: %w: %w", t.cfg.RawPrefix, errors.ErrSourceNotFound, errors.ErrNotFound)
	}

	parts := make([][]model.Observation, len(keys))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(t.cfg.ReadConcurrency)
	for i, key := range keys {
		g.Go(func() error {
			rows, err := t.read(gctx, key)
			if err != nil {
				return err
			}
			parts[i] = rows
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return Result{}, err
	}

	var all []model.Observation
	for _, p := range parts {
		all = append(all, p...)
	}
	// Each raw partition holds a lookback window, so neighbouring days
	// overlap. The newest partition wins for a repeated date.
	derived := Derive(Dedupe(all))
	weekly, err := Weekly(derived)
	if err != nil {
		return Result{}, err
	}
	if len(weekly) == 0 {
		return Result{}, fmt.Errorf("%d raw partitions hold no rows: %w", len(keys), errors.ErrNoData)
	}
	t.log.Info("aggregated", "partitions", len(keys), "rows", len(derived), "weeks", len(weekly))
	return write(ctx, t, t.AllKey(), weekly)
}

func (t *Transformer) read(ctx context.Context, key string) ([]model.Observation, error) {
	data, err := t.raw.Get(ctx, key)
	if err != nil {
		if errors.Is(err, errors.ErrNotFound) {
			return nil, fmt.Errorf("raw %s: %w: %w", key, errors.ErrSourceNotFound, err)
		}
		return nil, err
	}
	rows, err := codec.DecodeObservations(data, t.cfg.TickerLabel)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", key, err)
	}
	return rows, nil
}

func write[T any](ctx context.Context, t *Transformer, key string, rows []T) (Result, error) {
	data, err := codec.Encode(rows, t.cfg.Codec)
	if err != nil {
		return Result{}, fmt.Errorf("encode %s: %w", key, err)
	}
	cols, err := codec.Columns(data)
	if err != nil {
		return Result{}, err
	}
	if err := t.refined.Put(ctx, key, data); err != nil {
		return Result{}, err
	}
	sum := fmt.Sprintf("%016x", xxh3.Hash(data))
	t.log.Info("refined written", "key", key, "rows", len(rows), "columns", len(cols), "checksum", sum)
	return Result{Key: key, Rows: len(rows), Columns: len(cols), Checksum: sum}, nil
}

func (t *Transformer) observe(mode string, res Result, err error) {
	switch {
	case err == nil:
	case errors.IsDataError(err):
		t.log.Warn("transform rejected input", "mode", mode, "error", err)
	default:
		t.log.Error("transform failed", "mode", mode, "error", err)
	}
	t.metrics.TransformRun(mode, metrics.Status(err), res.Rows)
}
