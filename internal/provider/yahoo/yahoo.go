// Package yahoo reads daily candles from the Yahoo Finance chart API (v8).
package yahoo

import (
	"context"
	"fmt"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/go-resty/resty/v2"

	"b3-dataflow/internal/errors"
	"b3-dataflow/internal/model"
)

// DefaultBaseURL is the public chart endpoint host.
const DefaultBaseURL = "https://query1.finance.yahoo.com"

const userAgent = "Mozilla/5.0 (compatible; b3-dataflow/1.0)"

// Client is a chart API client. It does not retry.
type Client struct {
	http *resty.Client
}

// NewClient returns a client for baseURL (empty for the public endpoint).
func NewClient(baseURL string) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	hc := &http.Client{
		Transport: &http.Transport{
			TLSHandshakeTimeout:   10 * time.Second,
			ResponseHeaderTimeout: time.Minute,
		},
		Timeout: time.Minute,
	}
	r := resty.NewWithClient(hc).
		SetBaseURL(baseURL).
		SetHeader("User-Agent", userAgent).
		SetHeader("Accept", "application/json")
	return &Client{http: r}
}

// GetName returns provider name
func (c *Client) GetName() string { return "Yahoo" }

// Close releases idle connections.
func (c *Client) Close() error {
	c.http.GetClient().CloseIdleConnections()
	return nil
}

// chartResponse is the subset of the chart payload we read. Quote columns
// are decoded by name so that the extractor can normalize them.
type chartResponse struct {
	Chart struct {
		Result []struct {
			Meta struct {
				Symbol   string `json:"symbol"`
				Currency string `json:"currency"`
				Timezone string `json:"exchangeTimezoneName"`
			} `json:"meta"`
			Timestamp  []int64 `json:"timestamp"`
			Indicators struct {
				Quote []map[string][]*float64 `json:"quote"`
			} `json:"indicators"`
		} `json:"result"`
		Error *struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"error"`
	} `json:"chart"`
}

// Fetch returns daily candles of ticker within window. Null cells become NaN.
func (c *Client) Fetch(ctx context.Context, ticker string, window model.Window) (*model.Table, error) {
	var out chartResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetPathParam("ticker", ticker).
		SetQueryParams(map[string]string{
			"period1":  strconv.FormatInt(window.From.Unix(), 10),
			"period2":  strconv.FormatInt(window.To.Unix(), 10),
			"interval": "1d",
			"events":   "history",
		}).
		SetResult(&out).
		SetError(&out).
		Get("/v8/finance/chart/{ticker}")
	if err != nil {
		return nil, fmt.Errorf("yahoo %s: %v: %w", ticker, err, errors.ErrSourceUnavailable)
	}
	if e := out.Chart.Error; e != nil {
		return nil, fmt.Errorf("yahoo %s: %s: %s: %w", ticker, e.Code, e.Description, errors.ErrSourceUnavailable)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("yahoo %s: status %d: %w", ticker, resp.StatusCode(), errors.ErrSourceUnavailable)
	}
	if len(out.Chart.Result) == 0 {
		return model.NewTable(0), nil
	}

	res := out.Chart.Result[0]
	t := model.NewTable(len(res.Timestamp))
	for _, ts := range res.Timestamp {
		t.Dates = append(t.Dates, time.Unix(ts, 0).UTC())
	}
	if len(res.Indicators.Quote) == 0 {
		return model.NewTable(0), nil
	}
	for name, cells := range res.Indicators.Quote[0] {
		col := make([]float64, len(t.Dates))
		for i := range col {
			col[i] = math.NaN()
			if i < len(cells) && cells[i] != nil {
				col[i] = *cells[i]
			}
		}
		t.Columns[name] = col
	}
	return t, nil
}
