// Package upstream wraps the external quote provider's HTTP API.
package upstream

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/rs/zerolog"
)

// ErrUnavailable is returned when the provider cannot serve a usable quote.
// Callers fall back to their last-known-good cache.
var ErrUnavailable = errors.New("upstream unavailable")

// Bar is the aggregated day snapshot for one ticker.
type Bar struct {
	Close   float64
	DayHigh float64
	DayLow  float64
	Volume  float64
}

// HistoryBar is a single bar from a historical range query.
type HistoryBar struct {
	Close     float64
	High      float64
	Low       float64
	Volume    float64
	Timestamp time.Time
}

type Client struct {
	baseURL    string
	httpClient *http.Client
	log        zerolog.Logger
}

func NewClient(baseURL string, timeout time.Duration, log zerolog.Logger) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: timeout},
		log:        log.With().Str("component", "upstream").Logger(),
	}
}

type wireBar struct {
	Close  float64 `json:"close"`
	High   float64 `json:"high"`
	Low    float64 `json:"low"`
	Volume float64 `json:"volume"`
	TS     int64   `json:"ts"`
}

type barsResponse struct {
	Bars []wireBar `json:"bars"`
}

type infoResponse struct {
	Bid                 *float64 `json:"bid"`
	Ask                 *float64 `json:"ask"`
	CurrentPrice        *float64 `json:"currentPrice"`
	RegularMarketPrice  *float64 `json:"regularMarketPrice"`
	AverageVolume10Days *float64 `json:"averageVolume10days"`
}

// Snapshot returns the most recent day aggregate for a ticker. Strategies
// are tried in order: one day of 1m bars, five days of 5m bars, then the
// provider's info snapshot. Any provider failure yields ErrUnavailable.
func (c *Client) Snapshot(ctx context.Context, ticker string) (*Bar, error) {
	bars, err := c.bars(ctx, ticker, "1d", "1m")
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if len(bars) == 0 {
		bars, err = c.bars(ctx, ticker, "5d", "5m")
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
	}
	if len(bars) > 0 {
		return aggregate(bars), nil
	}

	info, err := c.info(ctx, ticker)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	bar, ok := barFromInfo(info)
	if !ok {
		return nil, fmt.Errorf("%w: no price in info snapshot for %s", ErrUnavailable, ticker)
	}
	return bar, nil
}

// History fetches a multi-day range of 1-minute bars for backfill.
func (c *Client) History(ctx context.Context, ticker string, days int) ([]HistoryBar, error) {
	bars, err := c.bars(ctx, ticker, fmt.Sprintf("%dd", days), "1m")
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return bars, nil
}

func (c *Client) bars(ctx context.Context, ticker, rng, interval string) ([]HistoryBar, error) {
	params := url.Values{}
	params.Set("ticker", ticker)
	params.Set("range", rng)
	params.Set("interval", interval)

	endpoint := fmt.Sprintf("%s/v1/bars?%s", c.baseURL, params.Encode())

	var resp barsResponse
	if err := c.getJSON(ctx, endpoint, &resp); err != nil {
		return nil, fmt.Errorf("error fetching bars: %w", err)
	}

	bars := make([]HistoryBar, 0, len(resp.Bars))
	for _, b := range resp.Bars {
		bars = append(bars, HistoryBar{
			Close:     b.Close,
			High:      b.High,
			Low:       b.Low,
			Volume:    b.Volume,
			Timestamp: time.Unix(b.TS, 0).UTC(),
		})
	}
	return bars, nil
}

func (c *Client) info(ctx context.Context, ticker string) (*infoResponse, error) {
	params := url.Values{}
	params.Set("ticker", ticker)

	endpoint := fmt.Sprintf("%s/v1/info?%s", c.baseURL, params.Encode())

	var resp infoResponse
	if err := c.getJSON(ctx, endpoint, &resp); err != nil {
		return nil, fmt.Errorf("error fetching info: %w", err)
	}
	return &resp, nil
}

func (c *Client) getJSON(ctx context.Context, endpoint string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("error building request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("error reading response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("API error: %s", string(body))
	}

	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("error parsing response: %w", err)
	}
	return nil
}

// aggregate collapses a bar series into the day snapshot: last bar's
// close/high/low with the volume summed across the series.
func aggregate(bars []HistoryBar) *Bar {
	last := bars[len(bars)-1]
	var volume float64
	for _, b := range bars {
		volume += b.Volume
	}
	return &Bar{
		Close:   last.Close,
		DayHigh: last.High,
		DayLow:  last.Low,
		Volume:  volume,
	}
}

func barFromInfo(info *infoResponse) (*Bar, bool) {
	var mid float64
	switch {
	case info.Bid != nil && info.Ask != nil:
		mid = (*info.Bid + *info.Ask) / 2
	case info.CurrentPrice != nil:
		mid = *info.CurrentPrice
	case info.RegularMarketPrice != nil:
		mid = *info.RegularMarketPrice
	default:
		return nil, false
	}

	var volume float64
	if info.AverageVolume10Days != nil {
		volume = *info.AverageVolume10Days
	}

	return &Bar{
		Close:   mid,
		DayHigh: mid * 1.01,
		DayLow:  mid * 0.99,
		Volume:  volume,
	}, true
}
