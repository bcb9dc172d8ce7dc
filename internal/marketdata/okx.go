package marketdata

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/imransimsek/Fisher-EMA-Signal-Algorithm/internal/model"

	"github.com/shopspring/decimal"
)

// DefaultOKXURL is the public OKX REST root.
const DefaultOKXURL = "https://www.okx.com"

// okxMaxLimit is the candles endpoint's per-request cap.
const okxMaxLimit = 300

var okxQuotes = []string{"USDT", "USDC", "BTC", "ETH", "EUR"}

// OKX fetches candles from the public OKX v5 market API.
type OKX struct {
	baseURL string
	client  *http.Client
}

// NewOKX creates an OKX source. An empty baseURL selects the public API.
func NewOKX(baseURL string, timeout time.Duration) *OKX {
	if baseURL == "" {
		baseURL = DefaultOKXURL
	}
	return &OKX{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  newHTTPClient(timeout),
	}
}

type okxResponse struct {
	Code string     `json:"code"`
	Msg  string     `json:"msg"`
	Data [][]string `json:"data"`
}

// FetchWindow returns the most recent limit candles for pair, oldest first.
// OKX answers newest first, so the rows are re-sorted.
func (o *OKX) FetchWindow(ctx context.Context, pair model.Pair, limit int) ([]model.Candle, error) {
	if limit <= 0 || limit > okxMaxLimit {
		limit = okxMaxLimit
	}
	bar, err := okxBar(pair.Interval)
	if err != nil {
		return nil, err
	}
	q := url.Values{}
	q.Set("instId", okxInstID(pair.Symbol))
	q.Set("bar", bar)
	q.Set("limit", strconv.Itoa(limit))

	body, err := getJSON(ctx, o.client, o.baseURL+"/api/v5/market/candles?"+q.Encode())
	if err != nil {
		return nil, fmt.Errorf("okx candles %s: %w", pair, err)
	}
	var resp okxResponse
	if err := decode(body, &resp); err != nil {
		return nil, fmt.Errorf("okx candles %s: %w", pair, err)
	}
	if resp.Code != "0" {
		return nil, fmt.Errorf("okx candles %s: api error %s: %s", pair, resp.Code, resp.Msg)
	}

	candles := make([]model.Candle, 0, len(resp.Data))
	for i, row := range resp.Data {
		c, err := parseOKXCandle(row)
		if err != nil {
			return nil, fmt.Errorf("okx candles %s row %d: %w", pair, i, err)
		}
		candles = append(candles, c)
	}
	sort.Slice(candles, func(i, j int) bool { return candles[i].Time.Before(candles[j].Time) })
	return candles, nil
}

// parseOKXCandle reads [ts, o, h, l, c, vol, ...] where every field is a string.
func parseOKXCandle(row []string) (model.Candle, error) {
	var c model.Candle
	if len(row) < 6 {
		return c, fmt.Errorf("expected at least 6 fields, got %d", len(row))
	}
	ms, err := strconv.ParseInt(row[0], 10, 64)
	if err != nil {
		return c, fmt.Errorf("timestamp: %w", err)
	}
	c.Time = time.UnixMilli(ms).UTC()

	fields := []*decimal.Decimal{&c.Open, &c.High, &c.Low, &c.Close, &c.Volume}
	for i, dst := range fields {
		d, err := decimal.NewFromString(row[i+1])
		if err != nil {
			return c, fmt.Errorf("field %d: %w", i+1, err)
		}
		*dst = d
	}
	return c, nil
}

// Ping calls /api/v5/public/time.
func (o *OKX) Ping(ctx context.Context) error {
	body, err := getJSON(ctx, o.client, o.baseURL+"/api/v5/public/time")
	if err != nil {
		return fmt.Errorf("okx ping: %w", err)
	}
	var resp okxResponse
	if err := decode(body, &resp); err == nil && resp.Code != "" && resp.Code != "0" {
		return fmt.Errorf("okx ping: api error %s: %s", resp.Code, resp.Msg)
	}
	return nil
}

// okxInstID turns "BTCUSDT" into "BTC-USDT". Symbols that already carry a
// dash pass through.
func okxInstID(symbol string) string {
	s := strings.ToUpper(symbol)
	if strings.Contains(s, "-") {
		return s
	}
	for _, q := range okxQuotes {
		if strings.HasSuffix(s, q) && len(s) > len(q) {
			return s[:len(s)-len(q)] + "-" + q
		}
	}
	return s
}
