// Package marketdata fetches daily price history for tickers from a
// Yahoo-Finance-style chart endpoint, with a circuit breaker around the
// upstream and an optional Redis-backed cache in front of it.
package marketdata

import (
	"context"
	"errors"
	"fmt"
	"time"

	"signal-botv1/internal/model"

	"github.com/go-resty/resty/v2"
)

// ErrTransientFetch marks upstream failures the caller should treat as
// "skip this ticker this cycle"; the next scheduled pass retries naturally.
var ErrTransientFetch = errors.New("transient fetch failure")

// ErrNoData means the upstream answered but returned no usable bars for the
// ticker (unknown symbol, delisted, etc).
var ErrNoData = errors.New("no price data")

const defaultBaseURL = "https://query1.finance.yahoo.com"

// Client fetches daily OHLCV bars over HTTP.
type Client struct {
	http *resty.Client
}

// NewClient creates a chart API client. baseURL may be empty for the default
// endpoint (tests point it at a local server).
func NewClient(baseURL string) *Client {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	http := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(15 * time.Second).
		SetRetryCount(2).
		SetRetryWaitTime(1 * time.Second).
		SetRetryMaxWaitTime(5 * time.Second).
		SetHeader("User-Agent", "signal-botv1")
	return &Client{http: http}
}

// chartResponse mirrors the subset of the chart API payload we consume.
type chartResponse struct {
	Chart struct {
		Result []struct {
			Timestamp  []int64 `json:"timestamp"`
			Indicators struct {
				Quote []struct {
					Open   []float64 `json:"open"`
					High   []float64 `json:"high"`
					Low    []float64 `json:"low"`
					Close  []float64 `json:"close"`
					Volume []int64   `json:"volume"`
				} `json:"quote"`
			} `json:"indicators"`
		} `json:"result"`
		Error *struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"error"`
	} `json:"chart"`
}

// DailyHistory fetches at least lookbackDays daily bars, ordered oldest to
// newest. Network and 5xx failures wrap ErrTransientFetch.
func (c *Client) DailyHistory(ctx context.Context, ticker string, lookbackDays int) ([]model.PricePoint, error) {
	var out chartResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetPathParam("ticker", ticker).
		SetQueryParams(map[string]string{
			"range":    rangeForDays(lookbackDays),
			"interval": "1d",
		}).
		SetResult(&out).
		Get("/v8/finance/chart/{ticker}")
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrTransientFetch, ticker, err)
	}
	if resp.StatusCode() >= 500 || resp.StatusCode() == 429 {
		return nil, fmt.Errorf("%w: %s: status %d", ErrTransientFetch, ticker, resp.StatusCode())
	}
	if resp.StatusCode() != 200 {
		return nil, fmt.Errorf("%w: %s: status %d", ErrNoData, ticker, resp.StatusCode())
	}
	if out.Chart.Error != nil {
		return nil, fmt.Errorf("%w: %s: %s", ErrNoData, ticker, out.Chart.Error.Description)
	}
	if len(out.Chart.Result) == 0 || len(out.Chart.Result[0].Indicators.Quote) == 0 {
		return nil, fmt.Errorf("%w: %s: empty result", ErrNoData, ticker)
	}

	r := out.Chart.Result[0]
	q := r.Indicators.Quote[0]
	bars := make([]model.PricePoint, 0, len(r.Timestamp))
	for i, ts := range r.Timestamp {
		if i >= len(q.Close) || q.Close[i] == 0 {
			continue // half-filled trailing bar or market holiday gap
		}
		bars = append(bars, model.PricePoint{
			Date:   time.Unix(ts, 0).UTC(),
			Open:   at(q.Open, i),
			High:   at(q.High, i),
			Low:    at(q.Low, i),
			Close:  q.Close[i],
			Volume: atInt(q.Volume, i),
		})
	}
	if len(bars) == 0 {
		return nil, fmt.Errorf("%w: %s: no bars in response", ErrNoData, ticker)
	}
	return bars, nil
}

// rangeForDays picks the chart API range bucket that yields at least the
// requested number of daily bars, allowing for weekends and holidays
// (roughly 21 trading days per month).
func rangeForDays(days int) string {
	switch {
	case days <= 3:
		return "5d"
	case days <= 20:
		return "1mo"
	case days <= 62:
		return "3mo"
	case days <= 125:
		return "6mo"
	case days <= 250:
		return "1y"
	default:
		return "2y"
	}
}

func at(vals []float64, i int) float64 {
	if i < len(vals) {
		return vals[i]
	}
	return 0
}

func atInt(vals []int64, i int) int64 {
	if i < len(vals) {
		return vals[i]
	}
	return 0
}
