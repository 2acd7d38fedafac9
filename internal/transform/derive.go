package transform

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"

	"b3-dataflow/internal/model"
)

// MovingWindow is the number of closes averaged into media_movel_3d.
const MovingWindow = 3

// Derive adds daily variation columns to every row and returns them sorted
// by date then ticker. pct_variation is NaN when the open price is zero.
// media_movel_3d is the mean of the ticker's last MovingWindow closes in
// date order, NaN for its first MovingWindow-1 rows. A NaN close yields NaN
// for every window containing it.
func Derive(rows []model.Observation) []model.Derived {
	out := make([]model.Derived, len(rows))
	for i, r := range rows {
		variation := r.Close - r.Open
		pct := math.NaN()
		if r.Open != 0 {
			pct = variation / r.Open * 100
		}
		out[i] = model.Derived{
			Date:         r.Date,
			Ticker:       r.Ticker,
			Open:         r.Open,
			Close:        r.Close,
			High:         r.High,
			Low:          r.Low,
			Volume:       r.Volume,
			Variation:    variation,
			PctVariation: pct,
			MovingAvg3:   math.NaN(),
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Date != out[j].Date {
			return out[i].Date < out[j].Date
		}
		return out[i].Ticker < out[j].Ticker
	})

	closes := make(map[string][]float64)
	for i := range out {
		w := append(closes[out[i].Ticker], out[i].Close)
		if len(w) > MovingWindow {
			w = w[1:]
		}
		closes[out[i].Ticker] = w
		if len(w) == MovingWindow {
			out[i].MovingAvg3 = stat.Mean(w, nil)
		}
	}
	return out
}

// Dedupe keeps one row per (date, ticker). Later rows win, so callers pass
// partitions oldest first.
func Dedupe(rows []model.Observation) []model.Observation {
	type id struct{ date, ticker string }
	index := make(map[id]int, len(rows))
	out := make([]model.Observation, 0, len(rows))
	for _, r := range rows {
		k := id{r.Date, r.Ticker}
		if i, ok := index[k]; ok {
			out[i] = r
			continue
		}
		index[k] = len(out)
		out = append(out, r)
	}
	return out
}
