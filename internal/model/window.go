package model

import "time"

// Window is an inclusive date range requested from a market-data provider.
type Window struct {
	From time.Time
	To   time.Time
}

// Lookback returns the window ending at now and starting d earlier.
func Lookback(now time.Time, d time.Duration) Window {
	return Window{From: now.Add(-d), To: now}
}

// Valid reports whether From is not after To and both are set.
func (w Window) Valid() bool {
	return !w.From.IsZero() && !w.To.IsZero() && !w.From.After(w.To)
}
