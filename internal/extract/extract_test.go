package extract

import (
	"context"
	"fmt"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"b3-dataflow/internal/codec"
	"b3-dataflow/internal/errors"
	"b3-dataflow/internal/metrics"
	"b3-dataflow/internal/model"
	"b3-dataflow/internal/slogx"
	"b3-dataflow/internal/storage/memory"
)

type fakeProvider struct {
	table  *model.Table
	err    error
	calls  int
	ticker string
	window model.Window
}

func (f *fakeProvider) GetName() string { return "fake" }
func (f *fakeProvider) Close() error    { return nil }

func (f *fakeProvider) Fetch(_ context.Context, ticker string, w model.Window) (*model.Table, error) {
	f.calls++
	f.ticker, f.window = ticker, w
	return f.table, f.err
}

type rowCounter struct {
	metrics.Nop
	rows int
}

func (c *rowCounter) ExtractRows(n int) { c.rows += n }

var fixedNow = time.Date(2024, time.May, 8, 21, 0, 0, 0, time.UTC)

func testConfig() Config {
	return Config{
		Ticker:      "^BVSP",
		TickerLabel: "IBOV",
		Dataset:     "ibov",
		Lookback:    30 * 24 * time.Hour,
		Codec:       codec.DefaultOptions(),
	}
}

func yahooLikeTable() *model.Table {
	d := func(day int) time.Time { return time.Date(2024, time.May, day, 13, 0, 0, 0, time.UTC) }
	return &model.Table{
		Dates: []time.Time{d(6), d(7)},
		Columns: map[string][]float64{
			"Open": {128000, 128500}, "Close": {128500, 128100},
			"High": {129000, 129100}, "Low": {127000, 127900},
			"Volume": {9e6, 1.1e7},
		},
	}
}

func TestRunWritesTodayPartition(t *testing.T) {
	p := &fakeProvider{table: yahooLikeTable()}
	store := memory.New()
	counter := &rowCounter{}
	e := New(testConfig(), p, store,
		WithClock(func() time.Time { return fixedNow }),
		WithLogger(slogx.Discard()),
		WithMetrics(counter),
	)

	res, err := e.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "raw/year=2024/month=05/day=08/ibov.parquet", res.Key)
	assert.Equal(t, 2, res.Rows)
	assert.Equal(t, 2, counter.rows)

	assert.Equal(t, "^BVSP", p.ticker)
	assert.Equal(t, fixedNow, p.window.To)
	assert.Equal(t, fixedNow.AddDate(0, 0, -30), p.window.From)

	data, err := store.Get(context.Background(), res.Key)
	require.NoError(t, err)
	rows, err := codec.DecodeObservations(data, "")
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, model.Observation{
		Date: "2024-05-06", Ticker: "IBOV", Open: 128000, Close: 128500,
		High: 129000, Low: 127000, Volume: 9000000,
	}, rows[0])
}

func TestRunKeyUsesConfiguredLocation(t *testing.T) {
	cfg := testConfig()
	cfg.Location = time.FixedZone("BRT", -3*3600)
	store := memory.New()
	// 01:00 UTC on the 9th is still the 8th in Sao Paulo.
	now := time.Date(2024, time.May, 9, 1, 0, 0, 0, time.UTC)
	e := New(cfg, &fakeProvider{table: yahooLikeTable()}, store,
		WithClock(func() time.Time { return now }), WithLogger(slogx.Discard()))

	res, err := e.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "raw/year=2024/month=05/day=08/ibov.parquet", res.Key)
}

func TestRunKeyUsesConfiguredPrefix(t *testing.T) {
	cfg := testConfig()
	cfg.RawPrefix = "landing/"
	store := memory.New()
	e := New(cfg, &fakeProvider{table: yahooLikeTable()}, store,
		WithClock(func() time.Time { return fixedNow }), WithLogger(slogx.Discard()))

	res, err := e.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "landing/year=2024/month=05/day=08/ibov.parquet", res.Key)
	keys, err := store.List(context.Background(), "raw/")
	require.NoError(t, err)
	assert.Empty(t, keys)
}

func TestRunErrors(t *testing.T) {
	allNaN := &model.Table{
		Dates: []time.Time{fixedNow},
		Columns: map[string][]float64{
			"open": {math.NaN()}, "close": {math.NaN()}, "high": {math.NaN()},
			"low": {math.NaN()}, "volume": {math.NaN()},
		},
	}
	noLow := yahooLikeTable()
	delete(noLow.Columns, "Low")

	tests := []struct {
		name string
		p    *fakeProvider
		want error
	}{
		{"fetch fails", &fakeProvider{err: fmt.Errorf("dial tcp: refused")}, errors.ErrSourceUnavailable},
		{"nil table", &fakeProvider{}, errors.ErrNoData},
		{"empty table", &fakeProvider{table: model.NewTable(0)}, errors.ErrNoData},
		{"only null candles", &fakeProvider{table: allNaN}, errors.ErrNoData},
		{"missing column", &fakeProvider{table: noLow}, errors.ErrSchemaMismatch},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := memory.New()
			e := New(testConfig(), tt.p, store,
				WithClock(func() time.Time { return fixedNow }), WithLogger(slogx.Discard()))
			_, err := e.Run(context.Background())
			require.ErrorIs(t, err, tt.want)
			assert.Equal(t, 1, tt.p.calls, "fetch is not retried")
			assert.Equal(t, 0, store.Len(), "nothing written on failure")
		})
	}
}

func TestRunNegativeLookback(t *testing.T) {
	cfg := testConfig()
	cfg.Lookback = -time.Hour
	p := &fakeProvider{table: yahooLikeTable()}
	store := memory.New()
	e := New(cfg, p, store, WithClock(func() time.Time { return fixedNow }), WithLogger(slogx.Discard()))

	_, err := e.Run(context.Background())
	require.ErrorIs(t, err, errors.ErrInvalidDate)
	assert.Equal(t, 0, p.calls)
	assert.Equal(t, 0, store.Len())
}

func TestRunOverwritesSameDay(t *testing.T) {
	store := memory.New()
	p := &fakeProvider{table: yahooLikeTable()}
	e := New(testConfig(), p, store,
		WithClock(func() time.Time { return fixedNow }), WithLogger(slogx.Discard()))

	first, err := e.Run(context.Background())
	require.NoError(t, err)
	second, err := e.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, first.Key, second.Key)
	assert.Equal(t, 1, store.Len())
}
