package app

import (
	"fmt"
	"strings"

	"b3-dataflow/internal/errors"
	"b3-dataflow/internal/provider"
)

// CreateProvider creates the DataProvider named by cfg.Provider.
func CreateProvider(cfg *Config) (provider.DataProvider, error) {
	switch strings.ToLower(cfg.Provider) {
	case "yahoo":
		return provider.NewYahooProvider(cfg.YahooBaseURL), nil
	case "polygon":
		return createPolygonProvider(cfg)
	default:
		return nil, fmt.Errorf("unsupported data provider: %s. Options: yahoo, polygon: %w", cfg.Provider, errors.ErrInvalidConfig)
	}
}

func createPolygonProvider(cfg *Config) (provider.DataProvider, error) {
	if len(cfg.PolygonAPIKeys) == 0 {
		return nil, fmt.Errorf("B3_POLYGON_API_KEYS not set: %w", errors.ErrInvalidConfig)
	}
	p, err := provider.NewPolygonProvider(cfg.PolygonBaseURL, cfg.PolygonAPIKeys)
	if err != nil {
		return nil, err
	}
	return p, nil
}
