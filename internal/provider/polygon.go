package provider

import (
	"b3-dataflow/internal/provider/polygon"
)

// PolygonProvider is a DataProvider implementation backed by the Polygon API.
// It embeds *polygon.Client to expose its fetch capability with minimal boilerplate.
type PolygonProvider struct {
	*polygon.Client
}

var _ DataProvider = (*PolygonProvider)(nil)

// NewPolygonProvider creates a new Polygon-backed DataProvider.
func NewPolygonProvider(baseURL string, apiKeys []string) (*PolygonProvider, error) {
	client, err := polygon.NewClient(baseURL, apiKeys)
	if err != nil {
		return nil, err
	}
	return &PolygonProvider{Client: client}, nil
}

// GetName returns provider name
func (p *PolygonProvider) GetName() string {
	return "Polygon"
}
