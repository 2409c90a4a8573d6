package data

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"golang.org/x/time/rate"

	"meanrev/internal/market"
)

const klineBatchLimit = 1000

// BinanceClient downloads historical klines over the public REST API. Calls
// go through a token-bucket limiter so a long paged download stays inside
// Binance's request-weight budget.
type BinanceClient struct {
	BaseURL    string
	HTTPClient *http.Client
	limiter    *rate.Limiter
}

// NewBinanceClient builds a REST client; testnet toggles the base URL.
func NewBinanceClient(testnet bool) *BinanceClient {
	base := "https://api.binance.com"
	if testnet {
		base = "https://testnet.binance.vision"
	}
	return &BinanceClient{
		BaseURL:    base,
		HTTPClient: &http.Client{Timeout: 10 * time.Second},
		limiter:    rate.NewLimiter(rate.Every(time.Second/5), 5),
	}
}

// FetchKlines downloads the closed candles for [start, end) in pages of 1000,
// newest page last. The returned series is validated and strictly ordered.
func (c *BinanceClient) FetchKlines(ctx context.Context, symbol string, tf market.Timeframe, start, end time.Time) ([]market.Bar, error) {
	if !end.After(start) {
		return nil, fmt.Errorf("empty kline range %s..%s", start, end)
	}

	var bars []market.Bar
	cursor := start
	for cursor.Before(end) {
		page, err := c.fetchPage(ctx, symbol, tf, cursor, end)
		if err != nil {
			return nil, err
		}
		if len(page) == 0 {
			break
		}
		bars = append(bars, page...)
		cursor = page[len(page)-1].Time.Add(time.Millisecond)
	}

	if len(bars) == 0 {
		return nil, fmt.Errorf("no klines for %s %s in range", symbol, tf)
	}
	if err := market.ValidateSeries(bars); err != nil {
		return nil, fmt.Errorf("binance series: %w", err)
	}
	return bars, nil
}

func (c *BinanceClient) fetchPage(ctx context.Context, symbol string, tf market.Timeframe, start, end time.Time) ([]market.Bar, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	params := url.Values{}
	params.Set("symbol", symbol)
	params.Set("interval", string(tf))
	params.Set("limit", strconv.Itoa(klineBatchLimit))
	params.Set("startTime", strconv.FormatInt(start.UnixMilli(), 10))
	params.Set("endTime", strconv.FormatInt(end.UnixMilli()-1, 10))

	u := fmt.Sprintf("%s/api/v3/klines?%s", c.BaseURL, params.Encode())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}

	res, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("binance klines status %d", res.StatusCode)
	}

	var raw [][]any
	if err := json.NewDecoder(res.Body).Decode(&raw); err != nil {
		return nil, err
	}

	bars := make([]market.Bar, 0, len(raw))
	for _, item := range raw {
		// Binance returns 12 fields per kline.
		if len(item) < 6 {
			continue
		}
		b := market.Bar{
			Time:   time.UnixMilli(toInt64(item[0])).UTC(),
			Open:   toFloat(item[1]),
			High:   toFloat(item[2]),
			Low:    toFloat(item[3]),
			Close:  toFloat(item[4]),
			Volume: toFloat(item[5]),
		}
		bars = append(bars, b)
	}
	return bars, nil
}

func toFloat(v any) float64 {
	switch t := v.(type) {
	case string:
		f, _ := strconv.ParseFloat(t, 64)
		return f
	case json.Number:
		f, _ := t.Float64()
		return f
	case float64:
		return t
	default:
		return 0
	}
}

func toInt64(v any) int64 {
	switch t := v.(type) {
	case float64:
		return int64(t)
	case int64:
		return t
	case json.Number:
		i, _ := t.Int64()
		return i
	default:
		return 0
	}
}
