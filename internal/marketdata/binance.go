package marketdata

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/imransimsek/Fisher-EMA-Signal-Algorithm/internal/model"

	"github.com/shopspring/decimal"
)

// DefaultBinanceURL is the public spot REST root.
const DefaultBinanceURL = "https://api.binance.com"

// binanceMaxLimit is the klines endpoint's per-request cap.
const binanceMaxLimit = 1000

// Binance fetches klines from the public Binance spot API. No API key is
// needed for market data.
type Binance struct {
	baseURL string
	client  *http.Client
}

// NewBinance creates a Binance source. An empty baseURL selects the public API.
func NewBinance(baseURL string, timeout time.Duration) *Binance {
	if baseURL == "" {
		baseURL = DefaultBinanceURL
	}
	return &Binance{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  newHTTPClient(timeout),
	}
}

// FetchWindow returns the most recent limit klines for pair, oldest first.
// The last kline is the bar still forming.
func (b *Binance) FetchWindow(ctx context.Context, pair model.Pair, limit int) ([]model.Candle, error) {
	if limit <= 0 || limit > binanceMaxLimit {
		limit = binanceMaxLimit
	}
	interval, err := binanceInterval(pair.Interval)
	if err != nil {
		return nil, err
	}
	q := url.Values{}
	q.Set("symbol", strings.ToUpper(pair.Symbol))
	q.Set("interval", interval)
	q.Set("limit", strconv.Itoa(limit))

	body, err := getJSON(ctx, b.client, b.baseURL+"/api/v3/klines?"+q.Encode())
	if err != nil {
		return nil, fmt.Errorf("binance klines %s: %w", pair, err)
	}

	var rows [][]json.RawMessage
	if err := decode(body, &rows); err != nil {
		return nil, fmt.Errorf("binance klines %s: %w", pair, err)
	}

	candles := make([]model.Candle, 0, len(rows))
	for i, row := range rows {
		c, err := parseBinanceKline(row)
		if err != nil {
			return nil, fmt.Errorf("binance klines %s row %d: %w", pair, i, err)
		}
		candles = append(candles, c)
	}
	return candles, nil
}

// parseBinanceKline reads [openTime, open, high, low, close, volume, ...].
func parseBinanceKline(row []json.RawMessage) (model.Candle, error) {
	var c model.Candle
	if len(row) < 6 {
		return c, fmt.Errorf("expected at least 6 fields, got %d", len(row))
	}
	var openMs int64
	if err := json.Unmarshal(row[0], &openMs); err != nil {
		return c, fmt.Errorf("open time: %w", err)
	}
	c.Time = time.UnixMilli(openMs).UTC()

	fields := []*decimal.Decimal{&c.Open, &c.High, &c.Low, &c.Close, &c.Volume}
	for i, dst := range fields {
		if err := json.Unmarshal(row[i+1], dst); err != nil {
			return c, fmt.Errorf("field %d: %w", i+1, err)
		}
	}
	return c, nil
}

// Ping calls /api/v3/ping.
func (b *Binance) Ping(ctx context.Context) error {
	if _, err := getJSON(ctx, b.client, b.baseURL+"/api/v3/ping"); err != nil {
		return fmt.Errorf("binance ping: %w", err)
	}
	return nil
}
