// Package extract pulls one window of observations for a ticker and writes
// it as a single raw partition keyed by the invocation date.
package extract

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"b3-dataflow/internal/codec"
	"b3-dataflow/internal/errors"
	"b3-dataflow/internal/metrics"
	"b3-dataflow/internal/model"
	"b3-dataflow/internal/partition"
	"b3-dataflow/internal/provider"
	"b3-dataflow/internal/slogx"
	"b3-dataflow/internal/storage"
)

// Config is the extractor's slice of the application config.
type Config struct {
	Ticker      string        // symbol sent to the provider, e.g. ^BVSP
	TickerLabel string        // value of the ticker column, e.g. IBOV
	Dataset     string        // partition file name, e.g. ibov
	RawPrefix   string        // key prefix of the raw layer, default raw/
	Lookback    time.Duration // window length ending now
	Location    *time.Location
	Codec       codec.Options
}

// Result describes the partition written by one run.
type Result struct {
	Key  string
	Rows int
}

// Extractor runs one fetch-normalize-write cycle.
type Extractor struct {
	cfg      Config
	provider provider.DataProvider
	store    storage.Store
	now      func() time.Time
	log      *slog.Logger
	metrics  metrics.Collector
}

// Option customizes an Extractor.
type Option func(*Extractor)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(e *Extractor) { e.now = now }
}

// WithLogger replaces the default component logger.
func WithLogger(l *slog.Logger) Option {
	return func(e *Extractor) { e.log = l }
}

// WithMetrics records written rows on c.
func WithMetrics(c metrics.Collector) Option {
	return func(e *Extractor) { e.metrics = c }
}

// New returns an Extractor writing to store.
func New(cfg Config, p provider.DataProvider, store storage.Store, opts ...Option) *Extractor {
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if cfg.TickerLabel == "" {
		cfg.TickerLabel = cfg.Ticker
	}
	e := &Extractor{
		cfg:      cfg,
		provider: p,
		store:    store,
		now:      time.Now,
		log:      slogx.Component("extract"),
		metrics:  metrics.NewNop(),
	}
	for _, o := range opts {
		o(e)
	}
	return e
}

// Run fetches the lookback window and writes today's raw partition.
//
// Errors: ErrInvalidDate for a negative lookback, ErrSourceUnavailable when the fetch fails, ErrNoData when it
// returns no usable rows, ErrSchemaMismatch when required columns are
// missing, ErrStorage when the write fails. Nothing is written on error.
func (e *Extractor) Run(ctx context.Context) (Result, error) {
	now := e.now().In(e.cfg.Location)
	window := model.Lookback(now, e.cfg.Lookback)
	if !window.Valid() {
		return Result{}, fmt.Errorf("lookback %s: %w", e.cfg.Lookback, errors.ErrInvalidDate)
	}

	e.log.Info("fetching", "provider", e.provider.GetName(), "ticker", e.cfg.Ticker,
		"from", window.From.Format(time.DateOnly), "to", window.To.Format(time.DateOnly))
	tbl, err := e.provider.Fetch(ctx, e.cfg.Ticker, window)
	if err != nil {
		if !errors.Is(err, errors.ErrSourceUnavailable) {
			err = fmt.Errorf("%v: %w", err, errors.ErrSourceUnavailable)
		}
		return Result{}, err
	}
	if tbl.Len() == 0 {
		return Result{}, fmt.Errorf("%s returned no rows for %s: %w", e.provider.GetName(), e.cfg.Ticker, errors.ErrNoData)
	}

	norm, err := tbl.Normalize()
	if err != nil {
		return Result{}, err
	}
	rows, err := norm.Observations(e.cfg.TickerLabel, e.cfg.Location)
	if err != nil {
		return Result{}, err
	}
	if len(rows) == 0 {
		return Result{}, fmt.Errorf("%s returned only empty candles for %s: %w", e.provider.GetName(), e.cfg.Ticker, errors.ErrNoData)
	}

	key, err := partition.KeyAt(now, partition.Raw, e.cfg.RawPrefix, e.cfg.Dataset, codec.Extension())
	if err != nil {
		return Result{}, err
	}
	data, err := codec.Encode(rows, e.cfg.Codec)
	if err != nil {
		return Result{}, fmt.Errorf("encode %s: %w", key, err)
	}
	if err := e.store.Put(ctx, key, data); err != nil {
		return Result{}, err
	}

	e.log.Info("partition written", "key", key, "rows", len(rows), "bytes", len(data))
	e.metrics.ExtractRows(len(rows))
	return Result{Key: key, Rows: len(rows)}, nil
}
