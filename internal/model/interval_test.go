package model

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func TestParseInterval(t *testing.T) {
	cases := map[string]int{
		"1m":  1,
		"5m":  5,
		"15m": 15,
		"30m": 30,
		"1h":  60,
		"4H":  240,
		"12h": 720,
		"1d":  1440,
	}
	for in, want := range cases {
		iv, err := ParseInterval(in)
		if err != nil {
			t.Fatalf("ParseInterval(%q): %v", in, err)
		}
		if iv.Minutes != want {
			t.Errorf("ParseInterval(%q).Minutes = %d, want %d", in, iv.Minutes, want)
		}
	}
}

func TestParseInterval_Rejects(t *testing.T) {
	for _, in := range []string{"", "m", "0m", "-5m", "7m", "5x", "2d", "1w", "abc"} {
		if _, err := ParseInterval(in); err == nil {
			t.Errorf("ParseInterval(%q): expected error", in)
		}
	}
}

func TestParseInterval_CanonicalName(t *testing.T) {
	cases := map[string]string{"60m": "1h", "4H": "4h", "1440m": "1d", "24h": "1d", "90m": "90m"}
	for in, want := range cases {
		iv, err := ParseInterval(in)
		if err != nil {
			t.Fatalf("ParseInterval(%q): %v", in, err)
		}
		if iv.Name != want {
			t.Errorf("ParseInterval(%q).Name = %q, want %q", in, iv.Name, want)
		}
	}
}

func TestParseIntervals_Duplicate(t *testing.T) {
	if _, err := ParseIntervals([]string{"5m", "15m", "5M"}); err == nil {
		t.Fatal("expected duplicate interval error")
	}
	if _, err := ParseIntervals([]string{"1h", "60m"}); err == nil {
		t.Fatal("expected 1h and 60m to be rejected as duplicates")
	}
}

func TestPairs_Matrix(t *testing.T) {
	ivs := []Interval{MustInterval("5m"), MustInterval("1h")}
	pairs := Pairs([]string{"BTCUSDT", "ETHUSDT"}, ivs)
	if len(pairs) != 4 {
		t.Fatalf("expected 4 pairs, got %d", len(pairs))
	}
	if pairs[0].Key() != "BTCUSDT|5m" || pairs[3].Key() != "ETHUSDT|1h" {
		t.Errorf("unexpected order: %v", pairs)
	}
}

func TestCandle_Mid(t *testing.T) {
	c := Candle{
		Time: time.Now(),
		High: decimal.RequireFromString("101.5"),
		Low:  decimal.RequireFromString("98.5"),
	}
	if c.Mid() != 100.0 {
		t.Errorf("Mid() = %v, want 100", c.Mid())
	}
}
