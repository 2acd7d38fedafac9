package transform

import (
	"fmt"
	"sort"
	"time"

	"gonum.org/v1/gonum/stat"

	"b3-dataflow/internal/errors"
	"b3-dataflow/internal/model"
)

type isoWeek struct {
	year, week int
}

type bucket struct {
	closes     []float64
	variations []float64
	volume     int64
}

// Weekly groups derived rows by ISO year and week. The result has one row
// per week present in the input, ordered by (year, week); it does not
// depend on input order.
func Weekly(rows []model.Derived) ([]model.Weekly, error) {
	buckets := make(map[isoWeek]*bucket)
	for _, r := range rows {
		d, err := time.Parse(model.DateLayout, r.Date)
		if err != nil {
			return nil, fmt.Errorf("row date %q: %w", r.Date, errors.ErrInvalidDate)
		}
		y, w := d.ISOWeek()
		k := isoWeek{y, w}
		b, ok := buckets[k]
		if !ok {
			b = &bucket{}
			buckets[k] = b
		}
		b.closes = append(b.closes, r.Close)
		b.variations = append(b.variations, r.Variation)
		b.volume += r.Volume
	}

	keys := make([]isoWeek, 0, len(buckets))
	for k := range buckets {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].year != keys[j].year {
			return keys[i].year < keys[j].year
		}
		return keys[i].week < keys[j].week
	})

	out := make([]model.Weekly, 0, len(keys))
	for _, k := range keys {
		b := buckets[k]
		// Sorted inputs make the floating point sums independent of row order.
		sort.Float64s(b.closes)
		sort.Float64s(b.variations)
		out = append(out, model.Weekly{
			Year:          int32(k.year),
			Week:          int32(k.week),
			MeanClose:     stat.Mean(b.closes, nil),
			SumVolume:     b.volume,
			MeanVariation: stat.Mean(b.variations, nil),
		})
	}
	return out, nil
}
