package model

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"b3-dataflow/internal/errors"
)

func TestNormalize(t *testing.T) {
	tests := map[string]string{
		"Open":             ColOpen,
		" close ":          ColClose,
		"o":                ColOpen,
		"Volume":           ColVolume,
		"Date":             ColDate,
		"preco_fechamento": ColClose,
		"Adj Close":        "adj close",
	}
	for in, want := range tests {
		assert.Equal(t, want, Normalize(in), in)
	}
}

func sampleTable() *Table {
	d := func(day int) time.Time { return time.Date(2024, time.May, day, 3, 0, 0, 0, time.UTC) }
	return &Table{
		Dates: []time.Time{d(6), d(7), d(8), d(8)},
		Columns: map[string][]float64{
			"open":      {100, math.NaN(), 102, 103},
			"high":      {110, math.NaN(), 112, 113},
			"low":       {90, math.NaN(), 92, 93},
			"close":     {105, math.NaN(), 101, 104},
			"volume":    {1000, math.NaN(), math.NaN(), 3000},
			"adj close": {105, math.NaN(), 101, 104},
		},
	}
}

func TestTableObservations(t *testing.T) {
	norm, err := sampleTable().Normalize()
	require.NoError(t, err)

	rows, err := norm.Observations("IBOV", time.UTC)
	require.NoError(t, err)
	require.Len(t, rows, 2, "all-NaN row dropped, duplicate date collapsed")

	assert.Equal(t, Observation{
		Date: "2024-05-06", Ticker: "IBOV",
		Open: 100, Close: 105, High: 110, Low: 90, Volume: 1000,
	}, rows[0])
	assert.Equal(t, "2024-05-08", rows[1].Date)
	assert.Equal(t, 103.0, rows[1].Open, "later duplicate wins")
	assert.Equal(t, int64(3000), rows[1].Volume)
}

func TestTableObservationsMissingColumn(t *testing.T) {
	tbl := sampleTable()
	delete(tbl.Columns, "low")
	norm, err := tbl.Normalize()
	require.NoError(t, err)

	_, err = norm.Observations("IBOV", nil)
	require.ErrorIs(t, err, errors.ErrSchemaMismatch)
}

func TestTableNormalizeCollision(t *testing.T) {
	tbl := sampleTable()
	tbl.Columns["o"] = tbl.Columns["open"]
	_, err := tbl.Normalize()
	require.ErrorIs(t, err, errors.ErrSchemaMismatch)
}

func TestTableObservationsTimezone(t *testing.T) {
	loc := time.FixedZone("BRT", -3*3600)
	tbl := &Table{
		// 02:00 UTC is still the previous day in Sao Paulo.
		Dates: []time.Time{time.Date(2024, time.May, 7, 2, 0, 0, 0, time.UTC)},
		Columns: map[string][]float64{
			"open": {1}, "close": {2}, "high": {3}, "low": {0.5}, "volume": {10},
		},
	}
	norm, err := tbl.Normalize()
	require.NoError(t, err)
	rows, err := norm.Observations("IBOV", loc)
	require.NoError(t, err)
	assert.Equal(t, "2024-05-06", rows[0].Date)
}
