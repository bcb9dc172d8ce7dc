package marketdata

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/imransimsek/Fisher-EMA-Signal-Algorithm/internal/model"
)

// Source kinds accepted by DATA_SOURCE.
const (
	SourceBinance = "binance"
	SourceOKX     = "okx"
	SourceSQLite  = "sqlite"
)

// ErrUnsupportedInterval means the exchange has no bar of that length.
var ErrUnsupportedInterval = errors.New("unsupported interval")

// Binance kline intervals that divide a day, by minutes.
var binanceIntervals = map[int]string{
	1: "1m", 3: "3m", 5: "5m", 15: "15m", 30: "30m",
	60: "1h", 120: "2h", 240: "4h", 360: "6h", 480: "8h", 720: "12h",
	1440: "1d",
}

// OKX bar names by minutes. 6h and longer use the UTC-aligned variants so
// bars close on the same boundaries as Binance.
var okxBars = map[int]string{
	1: "1m", 3: "3m", 5: "5m", 15: "15m", 30: "30m",
	60: "1H", 120: "2H", 240: "4H", 360: "6Hutc", 720: "12Hutc",
	1440: "1Dutc",
}

func binanceInterval(iv model.Interval) (string, error) {
	name, ok := binanceIntervals[iv.Minutes]
	if !ok {
		return "", fmt.Errorf("%w %q on binance (supported: %s)", ErrUnsupportedInterval, iv.Name, supported(binanceIntervals))
	}
	return name, nil
}

// okxBar maps an interval to OKX's bar name.
func okxBar(iv model.Interval) (string, error) {
	bar, ok := okxBars[iv.Minutes]
	if !ok {
		return "", fmt.Errorf("%w %q on okx (supported: %s)", ErrUnsupportedInterval, iv.Name, supported(okxBars))
	}
	return bar, nil
}

// CheckInterval reports whether source can serve iv. The SQLite source
// replays whatever was stored, so it accepts every interval.
func CheckInterval(source string, iv model.Interval) error {
	var err error
	switch source {
	case SourceBinance:
		_, err = binanceInterval(iv)
	case SourceOKX:
		_, err = okxBar(iv)
	case SourceSQLite:
	default:
		err = fmt.Errorf("unknown data source %q", source)
	}
	return err
}

// supported lists a table's interval names, shortest first.
func supported(table map[int]string) string {
	minutes := make([]int, 0, len(table))
	for m := range table {
		minutes = append(minutes, m)
	}
	sort.Ints(minutes)
	names := make([]string, len(minutes))
	for i, m := range minutes {
		names[i] = table[m]
	}
	return strings.Join(names, ", ")
}
