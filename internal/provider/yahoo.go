package provider

import "b3-dataflow/internal/provider/yahoo"

// YahooProvider is a DataProvider backed by the Yahoo chart API.
type YahooProvider struct {
	*yahoo.Client
}

var _ DataProvider = (*YahooProvider)(nil)

// NewYahooProvider creates a Yahoo-backed DataProvider.
func NewYahooProvider(baseURL string) *YahooProvider {
	return &YahooProvider{Client: yahoo.NewClient(baseURL)}
}
