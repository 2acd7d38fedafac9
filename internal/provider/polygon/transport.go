package polygon

import (
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
)

// DefaultBaseURL is the public Polygon REST endpoint.
const DefaultBaseURL = "https://api.polygon.io"

// baseTransportConfig returns the shared HTTP transport configuration used by Polygon clients.
func baseTransportConfig() *http.Transport {
	return &http.Transport{
		ResponseHeaderTimeout: 2 * time.Minute,
		TLSHandshakeTimeout:   10 * time.Second,
		DisableKeepAlives:     true,
	}
}

// newHTTPClient creates an HTTP client configured for Polygon requests.
func newHTTPClient() *http.Client {
	return &http.Client{
		Transport: baseTransportConfig(),
		Timeout:   2 * time.Minute,
	}
}

// NewClient constructs a Client over a shared HTTP client. baseURL may be
// empty for the public endpoint.
func NewClient(baseURL string, apiKeys []string) (*Client, error) {
	if len(apiKeys) == 0 {
		return nil, errMissingKeys
	}
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	r := resty.NewWithClient(newHTTPClient()).
		SetBaseURL(baseURL).
		SetHeader("Accept", "application/json")
	return &Client{http: r, apiKeys: apiKeys, limiters: newLimiters(len(apiKeys), DefaultKeyCooldown)}, nil
}
