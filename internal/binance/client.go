package binance

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

// Client is a read-only market data client for the Binance REST API.
// The engine never places orders; klines and spot prices are all it consumes.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a new market data client
func NewClient(baseURL string, timeout time.Duration) *Client {
	if baseURL == "" {
		baseURL = "https://api.binance.com"
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// Kline represents a single candlestick
type Kline struct {
	OpenTime  int64   `json:"openTime"`
	Open      float64 `json:"open,string"`
	High      float64 `json:"high,string"`
	Low       float64 `json:"low,string"`
	Close     float64 `json:"close,string"`
	Volume    float64 `json:"volume,string"`
	CloseTime int64   `json:"closeTime"`
}

// Body returns the absolute candle body size
func (k Kline) Body() float64 {
	if k.Close >= k.Open {
		return k.Close - k.Open
	}
	return k.Open - k.Close
}

// Range returns the full high-low range
func (k Kline) Range() float64 {
	return k.High - k.Low
}

// IsBullish reports whether the candle closed above its open
func (k Kline) IsBullish() bool {
	return k.Close > k.Open
}

// IsBearish reports whether the candle closed below its open
func (k Kline) IsBearish() bool {
	return k.Close < k.Open
}

// GetKlines fetches candlestick data for a symbol and interval.
// Candles are returned oldest first, as delivered by the exchange.
func (c *Client) GetKlines(ctx context.Context, symbol, interval string, limit int) ([]Kline, error) {
	params := url.Values{}
	params.Set("symbol", symbol)
	params.Set("interval", interval)
	params.Set("limit", strconv.Itoa(limit))

	endpoint := fmt.Sprintf("%s/api/v3/klines?%s", c.baseURL, params.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("error building klines request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("error fetching klines for %s %s: %w", symbol, interval, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("error reading klines response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("klines request failed with status %d: %s", resp.StatusCode, string(body))
	}

	// Binance returns klines as a JSON array of mixed-type arrays
	var raw [][]interface{}
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("error parsing klines response: %w", err)
	}

	klines := make([]Kline, 0, len(raw))
	for _, row := range raw {
		if len(row) < 7 {
			continue
		}
		k, err := parseKlineRow(row)
		if err != nil {
			return nil, fmt.Errorf("error parsing kline row: %w", err)
		}
		klines = append(klines, k)
	}

	return klines, nil
}

// GetPrice fetches the current spot price for a symbol
func (c *Client) GetPrice(ctx context.Context, symbol string) (float64, error) {
	endpoint := fmt.Sprintf("%s/api/v3/ticker/price?symbol=%s", c.baseURL, url.QueryEscape(symbol))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return 0, fmt.Errorf("error building price request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("error fetching price for %s: %w", symbol, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, fmt.Errorf("error reading price response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("price request failed with status %d: %s", resp.StatusCode, string(body))
	}

	var ticker struct {
		Symbol string  `json:"symbol"`
		Price  float64 `json:"price,string"`
	}
	if err := json.Unmarshal(body, &ticker); err != nil {
		return 0, fmt.Errorf("error parsing price response: %w", err)
	}

	return ticker.Price, nil
}

func parseKlineRow(row []interface{}) (Kline, error) {
	var k Kline

	openTime, ok := row[0].(float64)
	if !ok {
		return k, fmt.Errorf("unexpected open time type %T", row[0])
	}
	closeTime, ok := row[6].(float64)
	if !ok {
		return k, fmt.Errorf("unexpected close time type %T", row[6])
	}
	k.OpenTime = int64(openTime)
	k.CloseTime = int64(closeTime)

	fields := []struct {
		idx int
		dst *float64
	}{
		{1, &k.Open},
		{2, &k.High},
		{3, &k.Low},
		{4, &k.Close},
		{5, &k.Volume},
	}
	for _, f := range fields {
		s, ok := row[f.idx].(string)
		if !ok {
			return k, fmt.Errorf("unexpected kline field type %T at %d", row[f.idx], f.idx)
		}
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return k, err
		}
		*f.dst = v
	}

	return k, nil
}
