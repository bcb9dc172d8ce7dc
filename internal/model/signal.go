package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// IndicatorPoint holds the Fisher/EMA band values for one candle.
type IndicatorPoint struct {
	Time       time.Time       `json:"time"`
	Close      decimal.Decimal `json:"close"`
	Oscillator float64         `json:"oscillator"`
	// Trigger is the previous point's oscillator. It is undefined on the
	// first point of a series, where HasTrigger is false and Trigger is 0.
	Trigger    float64 `json:"trigger"`
	HasTrigger bool    `json:"has_trigger"`
	Midline    float64 `json:"midline"`
	UpperBand  float64 `json:"upper_band"`
	LowerBand  float64 `json:"lower_band"`
}

// SignalKind classifies a band crossing.
type SignalKind string

const (
	ExtremeHigh SignalKind = "EXTREME_HIGH" // trigger above the upper band
	ExtremeLow  SignalKind = "EXTREME_LOW"  // trigger below the lower band
)

// Signal is produced at most once per pair and tick, then handed to the
// notifier and discarded.
type Signal struct {
	Kind       SignalKind      `json:"kind"`
	Symbol     string          `json:"symbol"`
	Interval   string          `json:"interval"`
	Time       time.Time       `json:"time"`
	Price      decimal.Decimal `json:"price"`
	Oscillator float64         `json:"oscillator"`
	Trigger    float64         `json:"trigger"`
	Band       float64         `json:"band"`
}
