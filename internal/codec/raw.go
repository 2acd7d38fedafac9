package codec

import (
	"bytes"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/parquet-go/parquet-go"

	"b3-dataflow/internal/errors"
	"b3-dataflow/internal/model"
)

const readBatch = 256

// DecodeObservations reads a raw partition regardless of the producer's
// column naming. Column names are normalized through model.Normalize and the
// observation columns are checked once, before any row is read. A missing
// ticker column is filled with defaultTicker.
func DecodeObservations(data []byte, defaultTicker string) ([]model.Observation, error) {
	f, err := parquet.OpenFile(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("open parquet: %v: %w", err, errors.ErrSchemaMismatch)
	}

	leaves := f.Schema().Columns()
	index := make(map[string]int, len(leaves))
	have := make(map[string]bool, len(leaves))
	for i, path := range leaves {
		if len(path) != 1 {
			continue
		}
		canon := model.Normalize(path[0])
		if _, dup := index[canon]; dup {
			return nil, fmt.Errorf("columns collide on %q: %w", canon, errors.ErrSchemaMismatch)
		}
		index[canon] = i
		have[canon] = true
	}
	if missing := model.Missing(have, model.ObservationColumns); len(missing) > 0 {
		return nil, fmt.Errorf("missing columns %v: %w", missing, errors.ErrSchemaMismatch)
	}
	tickerCol, hasTicker := index[model.ColTicker]

	out := make([]model.Observation, 0, f.NumRows())
	cells := make([]parquet.Value, len(leaves))
	buf := make([]parquet.Row, readBatch)
	for _, rg := range f.RowGroups() {
		rows := rg.Rows()
		for {
			n, err := rows.ReadRows(buf)
			for _, row := range buf[:n] {
				for i := range cells {
					cells[i] = parquet.Value{}
				}
				for _, v := range row {
					if c := v.Column(); c >= 0 && c < len(cells) {
						cells[c] = v
					}
				}
				obs, convErr := toObservation(cells, index)
				if convErr != nil {
					rows.Close()
					return nil, fmt.Errorf("row %d: %w", len(out), convErr)
				}
				obs.Ticker = defaultTicker
				if hasTicker && !cells[tickerCol].IsNull() {
					if s := string(cells[tickerCol].ByteArray()); s != "" {
						obs.Ticker = s
					}
				}
				out = append(out, obs)
			}
			if err == io.EOF {
				break
			}
			if err != nil {
				rows.Close()
				return nil, fmt.Errorf("read rows: %w", err)
			}
			if n == 0 {
				break
			}
		}
		if err := rows.Close(); err != nil {
			return nil, fmt.Errorf("close rows: %w", err)
		}
	}
	return out, nil
}

func toObservation(cells []parquet.Value, index map[string]int) (model.Observation, error) {
	d, err := cellDate(cells[index[model.ColDate]])
	if err != nil {
		return model.Observation{}, err
	}
	vol := cellFloat(cells[index[model.ColVolume]])
	if math.IsNaN(vol) || vol < 0 {
		vol = 0
	}
	return model.Observation{
		Date:   d.Format(model.DateLayout),
		Open:   cellFloat(cells[index[model.ColOpen]]),
		Close:  cellFloat(cells[index[model.ColClose]]),
		High:   cellFloat(cells[index[model.ColHigh]]),
		Low:    cellFloat(cells[index[model.ColLow]]),
		Volume: int64(vol),
	}, nil
}

// cellFloat returns NaN for null or non-numeric cells.
func cellFloat(v parquet.Value) float64 {
	if v.IsNull() {
		return math.NaN()
	}
	switch v.Kind() {
	case parquet.Double:
		return v.Double()
	case parquet.Float:
		return float64(v.Float())
	case parquet.Int64:
		return float64(v.Int64())
	case parquet.Int32:
		return float64(v.Int32())
	case parquet.ByteArray:
		f, err := strconv.ParseFloat(strings.TrimSpace(string(v.ByteArray())), 64)
		if err != nil {
			return math.NaN()
		}
		return f
	default:
		return math.NaN()
	}
}

var dateLayouts = []string{
	model.DateLayout,
	time.RFC3339Nano,
	time.DateTime,
	"2006-01-02T15:04:05",
}

// cellDate accepts strings in dateLayouts, int32 days since epoch (parquet
// DATE) and int64 epoch timestamps in s, ms, us or ns.
func cellDate(v parquet.Value) (time.Time, error) {
	if v.IsNull() {
		return time.Time{}, fmt.Errorf("null date: %w", errors.ErrInvalidDate)
	}
	switch v.Kind() {
	case parquet.ByteArray:
		s := strings.TrimSpace(string(v.ByteArray()))
		for _, layout := range dateLayouts {
			if t, err := time.Parse(layout, s); err == nil {
				return t, nil
			}
		}
		return time.Time{}, fmt.Errorf("date %q: %w", s, errors.ErrInvalidDate)
	case parquet.Int32:
		return time.Unix(0, 0).UTC().AddDate(0, 0, int(v.Int32())), nil
	case parquet.Int64:
		return epoch(v.Int64()), nil
	default:
		return time.Time{}, fmt.Errorf("date of kind %s: %w", v.Kind(), errors.ErrInvalidDate)
	}
}

func epoch(n int64) time.Time {
	abs := n
	if abs < 0 {
		abs = -abs
	}
	switch {
	case abs >= 1e17:
		return time.Unix(0, n).UTC()
	case abs >= 1e14:
		return time.UnixMicro(n).UTC()
	case abs >= 1e11:
		return time.UnixMilli(n).UTC()
	default:
		return time.Unix(n, 0).UTC()
	}
}
