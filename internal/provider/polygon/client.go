package polygon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"
	"golang.org/x/time/rate"

	apperr "b3-dataflow/internal/errors"
	"b3-dataflow/internal/model"
)

// Max 50k results per request; a daily window never comes close.
const maxLimit = 50000

var errMissingKeys = errors.New("polygon: at least one API key is required")

// DefaultKeyCooldown paces each key to the free tier's five requests per
// minute.
const DefaultKeyCooldown = 12 * time.Second

// Client fetches daily aggregates from the Polygon API. API keys are used
// round-robin, one per Fetch, and each key waits out its cooldown before
// being reused. A failed request is not retried.
type Client struct {
	http     *resty.Client
	mu       sync.Mutex
	apiKeys  []string
	limiters []*rate.Limiter
	next     int
}

// SetKeyCooldown changes the minimum interval between two requests with the
// same key. Zero disables pacing.
func (c *Client) SetKeyCooldown(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.limiters = newLimiters(len(c.apiKeys), d)
}

func newLimiters(n int, cooldown time.Duration) []*rate.Limiter {
	limit := rate.Inf
	if cooldown > 0 {
		limit = rate.Every(cooldown)
	}
	out := make([]*rate.Limiter, n)
	for i := range out {
		out[i] = rate.NewLimiter(limit, 1)
	}
	return out
}

// Close releases idle connections.
func (c *Client) Close() error {
	c.http.GetClient().CloseIdleConnections()
	return nil
}

func (c *Client) takeKey(ctx context.Context) (string, error) {
	c.mu.Lock()
	i := c.next % len(c.apiKeys)
	c.next++
	key, lim := c.apiKeys[i], c.limiters[i]
	c.mu.Unlock()

	if err := lim.Wait(ctx); err != nil {
		return "", fmt.Errorf("polygon key %s cooldown: %v: %w", keyPrefix(key), err, apperr.ErrSourceUnavailable)
	}
	return key, nil
}

func keyPrefix(key string) string {
	if len(key) > 8 {
		return key[:8]
	}
	return key
}

// DailyBars returns the daily aggregates of ticker within window.
func (c *Client) DailyBars(ctx context.Context, ticker string, window model.Window) ([]BarRaw, error) {
	key, err := c.takeKey(ctx)
	if err != nil {
		return nil, err
	}
	slog.Debug("polygon request", "ticker", ticker, "from", window.From.Format(time.DateOnly), "to", window.To.Format(time.DateOnly), "key", keyPrefix(key))

	var result AggregatesResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetPathParams(map[string]string{
			"ticker": ticker,
			"from":   window.From.UTC().Format(time.DateOnly),
			"to":     window.To.UTC().Format(time.DateOnly),
		}).
		SetQueryParams(map[string]string{
			"adjusted": "true",
			"sort":     "asc",
			"limit":    strconv.Itoa(maxLimit),
			"apiKey":   key,
		}).
		SetResult(&result).
		Get("/v2/aggs/ticker/{ticker}/range/1/day/{from}/{to}")
	if err != nil {
		return nil, fmt.Errorf("polygon %s: %v: %w", ticker, err, apperr.ErrSourceUnavailable)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("polygon %s: status %d: %s: %w", ticker, resp.StatusCode(), resp.String(), apperr.ErrSourceUnavailable)
	}
	switch result.Status {
	case "OK", "DELAYED":
		// DELAYED still carries results, only the latest bar may lag.
	default:
		return nil, fmt.Errorf("polygon %s: status %q %s: %w", ticker, result.Status, result.Error, apperr.ErrSourceUnavailable)
	}
	return result.Results, nil
}

// Fetch returns the daily aggregates as a table with Polygon's column names
// (t, o, h, l, c, v).
func (c *Client) Fetch(ctx context.Context, ticker string, window model.Window) (*model.Table, error) {
	bars, err := c.DailyBars(ctx, ticker, window)
	if err != nil {
		return nil, err
	}
	t := model.NewTable(len(bars))
	o := make([]float64, 0, len(bars))
	h := make([]float64, 0, len(bars))
	l := make([]float64, 0, len(bars))
	cl := make([]float64, 0, len(bars))
	v := make([]float64, 0, len(bars))
	for _, b := range bars {
		t.Dates = append(t.Dates, time.UnixMilli(b.Timestamp).UTC())
		o = append(o, b.Open)
		h = append(h, b.High)
		l = append(l, b.Low)
		cl = append(cl, b.Close)
		v = append(v, float64(b.Volume.Int64()))
	}
	t.Columns["o"], t.Columns["h"], t.Columns["l"], t.Columns["c"], t.Columns["v"] = o, h, l, cl, v
	return t, nil
}
