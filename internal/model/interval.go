package model

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

const minutesPerDay = 24 * 60

// Interval is a candle timeframe such as "5m" or "1h".
// Minutes always divides a day so the interval can be aligned to the clock.
type Interval struct {
	Name    string
	Minutes int
}

// ParseInterval parses "<n>m", "<n>h" or "<n>d" (case-insensitive).
func ParseInterval(s string) (Interval, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if len(s) < 2 {
		return Interval{}, fmt.Errorf("invalid interval %q", s)
	}
	n, err := strconv.Atoi(s[:len(s)-1])
	if err != nil || n <= 0 {
		return Interval{}, fmt.Errorf("invalid interval %q", s)
	}

	var minutes int
	switch s[len(s)-1] {
	case 'm':
		minutes = n
	case 'h':
		minutes = n * 60
	case 'd':
		minutes = n * minutesPerDay
	default:
		return Interval{}, fmt.Errorf("invalid interval unit in %q", s)
	}
	if minutes > minutesPerDay || minutesPerDay%minutes != 0 {
		return Interval{}, fmt.Errorf("interval %q does not divide a day", s)
	}
	return Interval{Name: canonicalName(minutes), Minutes: minutes}, nil
}

// canonicalName picks the largest whole unit, so "60m" and "1h" are the same
// interval with the name exchanges expect.
func canonicalName(minutes int) string {
	switch {
	case minutes%minutesPerDay == 0:
		return strconv.Itoa(minutes/minutesPerDay) + "d"
	case minutes%60 == 0:
		return strconv.Itoa(minutes/60) + "h"
	default:
		return strconv.Itoa(minutes) + "m"
	}
}

// MustInterval is ParseInterval for literals; it panics on bad input.
func MustInterval(s string) Interval {
	iv, err := ParseInterval(s)
	if err != nil {
		panic(err)
	}
	return iv
}

// Duration returns the interval length.
func (iv Interval) Duration() time.Duration {
	return time.Duration(iv.Minutes) * time.Minute
}

func (iv Interval) String() string { return iv.Name }

// ParseIntervals parses a list of interval names, rejecting duplicates.
func ParseIntervals(names []string) ([]Interval, error) {
	out := make([]Interval, 0, len(names))
	seen := make(map[string]bool, len(names))
	for _, n := range names {
		iv, err := ParseInterval(n)
		if err != nil {
			return nil, err
		}
		if seen[iv.Name] {
			return nil, fmt.Errorf("duplicate interval %q", iv.Name)
		}
		seen[iv.Name] = true
		out = append(out, iv)
	}
	return out, nil
}
