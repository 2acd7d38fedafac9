package provider

import (
	"context"

	"b3-dataflow/internal/model"
)

// DataProvider is the market-data capability used by the extractor.
// Fetch returns the provider's table for ticker over window, with the
// provider's own column names; the extractor normalizes them.
type DataProvider interface {
	GetName() string
	Fetch(ctx context.Context, ticker string, window model.Window) (*model.Table, error)
	Close() error
}
