package model

import (
	"fmt"
	"math"
	"sort"
	"time"

	"b3-dataflow/internal/errors"
)

// Table is the column-oriented result of a market-data fetch.
// Columns keeps the provider's own names; missing cells are NaN.
type Table struct {
	Dates   []time.Time
	Columns map[string][]float64
}

// NewTable returns an empty table with room for n rows.
func NewTable(n int) *Table {
	return &Table{
		Dates:   make([]time.Time, 0, n),
		Columns: make(map[string][]float64),
	}
}

// Len returns the number of rows.
func (t *Table) Len() int {
	if t == nil {
		return 0
	}
	return len(t.Dates)
}

// Normalize renames every column to the business vocabulary. Two provider
// columns mapping to the same name is a schema mismatch.
func (t *Table) Normalize() (*Table, error) {
	out := &Table{Dates: t.Dates, Columns: make(map[string][]float64, len(t.Columns))}
	names := make([]string, 0, len(t.Columns))
	for name := range t.Columns {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		canon := Normalize(name)
		if _, dup := out.Columns[canon]; dup {
			return nil, fmt.Errorf("columns collide on %q: %w", canon, errors.ErrSchemaMismatch)
		}
		col := t.Columns[name]
		if len(col) != len(t.Dates) {
			return nil, fmt.Errorf("column %q has %d cells for %d rows: %w", name, len(col), len(t.Dates), errors.ErrSchemaMismatch)
		}
		out.Columns[canon] = col
	}
	return out, nil
}

// Observations converts a normalized table into rows tagged with ticker.
// Rows whose prices are all missing are dropped; a missing volume becomes 0.
// A date seen twice keeps the later row so dates stay unique.
func (t *Table) Observations(ticker string, loc *time.Location) ([]Observation, error) {
	have := make(map[string]bool, len(t.Columns)+1)
	for name := range t.Columns {
		have[name] = true
	}
	have[ColDate] = true
	if missing := Missing(have, ObservationColumns); len(missing) > 0 {
		return nil, fmt.Errorf("missing columns %v: %w", missing, errors.ErrSchemaMismatch)
	}
	if loc == nil {
		loc = time.UTC
	}

	open, closePx := t.Columns[ColOpen], t.Columns[ColClose]
	high, low, vol := t.Columns[ColHigh], t.Columns[ColLow], t.Columns[ColVolume]

	rows := make([]Observation, 0, len(t.Dates))
	index := make(map[string]int, len(t.Dates))
	for i, d := range t.Dates {
		if math.IsNaN(open[i]) && math.IsNaN(closePx[i]) && math.IsNaN(high[i]) && math.IsNaN(low[i]) {
			continue
		}
		v := vol[i]
		if math.IsNaN(v) || v < 0 {
			v = 0
		}
		row := Observation{
			Date:   d.In(loc).Format(DateLayout),
			Ticker: ticker,
			Open:   open[i],
			Close:  closePx[i],
			High:   high[i],
			Low:    low[i],
			Volume: int64(v),
		}
		if j, dup := index[row.Date]; dup {
			rows[j] = row
			continue
		}
		index[row.Date] = len(rows)
		rows = append(rows, row)
	}
	return rows, nil
}
