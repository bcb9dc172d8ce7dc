package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Candle represents one OHLCV bar for a symbol at a given interval.
// Prices and volume are decimals as delivered by the exchange, so no
// rounding happens before the indicator math converts them.
type Candle struct {
	Time   time.Time       `json:"time"` // bar open time (UTC)
	Open   decimal.Decimal `json:"open"`
	High   decimal.Decimal `json:"high"`
	Low    decimal.Decimal `json:"low"`
	Close  decimal.Decimal `json:"close"`
	Volume decimal.Decimal `json:"volume"`
}

// Mid returns (high+low)/2 as a float64, the price the oscillator tracks.
func (c *Candle) Mid() float64 {
	f, _ := c.High.Add(c.Low).Div(decimal.NewFromInt(2)).Float64()
	return f
}

// Pair is the unit of scheduling and evaluation: one symbol at one interval.
type Pair struct {
	Symbol   string   `json:"symbol"`
	Interval Interval `json:"interval"`
}

// Key returns "SYMBOL|interval".
func (p Pair) Key() string {
	return p.Symbol + "|" + p.Interval.Name
}

func (p Pair) String() string {
	return p.Symbol + " " + p.Interval.Name
}

// Pairs builds the symbol x interval matrix in configuration order.
func Pairs(symbols []string, intervals []Interval) []Pair {
	pairs := make([]Pair, 0, len(symbols)*len(intervals))
	for _, iv := range intervals {
		for _, s := range symbols {
			pairs = append(pairs, Pair{Symbol: s, Interval: iv})
		}
	}
	return pairs
}
