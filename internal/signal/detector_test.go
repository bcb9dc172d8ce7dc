package signal

import (
	"strings"
	"testing"
	"time"

	"github.com/imransimsek/Fisher-EMA-Signal-Algorithm/internal/indicator"
	"github.com/imransimsek/Fisher-EMA-Signal-Algorithm/internal/model"

	"github.com/shopspring/decimal"
)

var btc5m = model.Pair{Symbol: "BTCUSDT", Interval: model.MustInterval("5m")}

func point(trigger, midline, offset float64) model.IndicatorPoint {
	return model.IndicatorPoint{
		Time:       time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC),
		Close:      decimal.RequireFromString("64250.5"),
		Oscillator: trigger + 0.1,
		Trigger:    trigger,
		HasTrigger: true,
		Midline:    midline,
		UpperBand:  midline + offset,
		LowerBand:  midline - offset,
	}
}

func TestDetect_ExtremeHigh(t *testing.T) {
	sig, ok := NewDetector(RepeatOnEveryTick).Detect(btc5m, point(3.1, 0.5, 2.5))
	if !ok || sig == nil {
		t.Fatal("expected a signal")
	}
	if sig.Kind != model.ExtremeHigh {
		t.Errorf("kind=%s, want %s", sig.Kind, model.ExtremeHigh)
	}
	if sig.Band != 3.0 {
		t.Errorf("band=%v, want upper band 3.0", sig.Band)
	}
	if sig.Symbol != "BTCUSDT" || sig.Interval != "5m" {
		t.Errorf("unexpected pair on signal: %s %s", sig.Symbol, sig.Interval)
	}
	if !sig.Price.Equal(decimal.RequireFromString("64250.5")) {
		t.Errorf("price=%s", sig.Price)
	}
}

func TestDetect_ExtremeLow(t *testing.T) {
	sig, ok := NewDetector("").Detect(btc5m, point(-2.6, 0, 2.5))
	if !ok || sig.Kind != model.ExtremeLow {
		t.Fatalf("expected ExtremeLow, got %+v", sig)
	}
	if sig.Band != -2.5 {
		t.Errorf("band=%v, want lower band -2.5", sig.Band)
	}
}

func TestDetect_InsideBands(t *testing.T) {
	d := NewDetector(RepeatOnEveryTick)
	for _, trig := range []float64{-2.5, -1, 0, 1, 2.5} {
		if sig, ok := d.Detect(btc5m, point(trig, 0, 2.5)); ok {
			t.Errorf("trigger %v: expected no signal, got %s", trig, sig.Kind)
		}
	}
}

func TestDetect_NoTriggerNoSignal(t *testing.T) {
	pt := point(10, 0, 1)
	pt.HasTrigger = false
	if sig, ok := NewDetector(RepeatOnEveryTick).Detect(btc5m, pt); ok {
		t.Fatalf("point without trigger must not signal, got %s", sig.Kind)
	}
}

func TestClassify_TotalAndExclusive(t *testing.T) {
	triggers := []float64{-100, -3, -2.0001, -2, -1, 0, 1, 2, 2.0001, 3, 100}
	mids := []float64{-1, 0, 1}
	offsets := []float64{0, 0.5, 2}
	for _, tr := range triggers {
		for _, m := range mids {
			for _, off := range offsets {
				pt := point(tr, m, off)
				kind, band, ok := Classify(pt)
				above := pt.Trigger > pt.UpperBand
				below := pt.Trigger < pt.LowerBand
				if above && below {
					t.Fatalf("trigger both above and below: %+v", pt)
				}
				switch {
				case above:
					if !ok || kind != model.ExtremeHigh || band != pt.UpperBand {
						t.Errorf("%+v: expected ExtremeHigh, got %v %s", pt, ok, kind)
					}
				case below:
					if !ok || kind != model.ExtremeLow || band != pt.LowerBand {
						t.Errorf("%+v: expected ExtremeLow, got %v %s", pt, ok, kind)
					}
				default:
					if ok {
						t.Errorf("%+v: expected none, got %s", pt, kind)
					}
				}
			}
		}
	}
}

func TestDetect_RepeatsEveryEvaluation(t *testing.T) {
	d := NewDetector(RepeatOnEveryTick)
	pt := point(5, 0, 2)
	for i := 0; i < 3; i++ {
		if _, ok := d.Detect(btc5m, pt); !ok {
			t.Fatalf("evaluation %d: expected repeat signal", i)
		}
	}
}

func TestParsePolicy(t *testing.T) {
	if p, err := ParsePolicy(""); err != nil || p != RepeatOnEveryTick {
		t.Errorf("empty policy: got %q, %v", p, err)
	}
	if p, err := ParsePolicy("repeat-on-every-tick"); err != nil || p != RepeatOnEveryTick {
		t.Errorf("explicit policy: got %q, %v", p, err)
	}
	if _, err := ParsePolicy("cooldown"); err == nil {
		t.Error("expected error for unknown policy")
	}
}

// 25 candles with mid rising 10..34, length 21, smoothing 5.
func risingCandles() []model.Candle {
	t0 := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	out := make([]model.Candle, 25)
	for i := range out {
		m := float64(10 + i)
		out[i] = model.Candle{
			Time:  t0.Add(time.Duration(i) * 5 * time.Minute),
			High:  decimal.NewFromFloat(m + 0.5),
			Low:   decimal.NewFromFloat(m - 0.5),
			Close: decimal.NewFromFloat(m),
		}
	}
	return out
}

func TestDetect_RisingWindowExample(t *testing.T) {
	for _, offset := range []float64{2.0, 0.1} {
		points, err := indicator.Compute(risingCandles(), indicator.Params{Length: 21, SmoothingLength: 5, BandOffset: offset})
		if err != nil {
			t.Fatalf("Compute: %v", err)
		}
		last := points[len(points)-1]
		sig, ok := NewDetector(RepeatOnEveryTick).Detect(btc5m, last)

		if last.Trigger-last.Midline > offset {
			if !ok || sig.Kind != model.ExtremeHigh {
				t.Fatalf("offset %v: expected ExtremeHigh, got %+v", offset, sig)
			}
			if sig.Band != last.UpperBand {
				t.Errorf("offset %v: band=%v, want upper band %v", offset, sig.Band, last.UpperBand)
			}
		} else if ok {
			t.Errorf("offset %v: expected no signal, got %s", offset, sig.Kind)
		}
	}

	// With offset 0.1 the trigger (≈1.2615) clears the upper band (≈1.1742).
	points, _ := indicator.Compute(risingCandles(), indicator.Params{Length: 21, SmoothingLength: 5, BandOffset: 0.1})
	if _, ok := NewDetector(RepeatOnEveryTick).Detect(btc5m, points[len(points)-1]); !ok {
		t.Fatal("expected ExtremeHigh with offset 0.1")
	}
}

func TestFormat_ContainsFields(t *testing.T) {
	sig, _ := NewDetector(RepeatOnEveryTick).Detect(btc5m, point(3.1, 0.5, 2.5))
	text := Format(sig, time.UTC)
	for _, want := range []string{"EXTREME HIGH ZONE", "BTCUSDT", "5m", "64250.5", "2024-03-01 12:00", "Trigger: 3.1000", "Upper Band: 3.0000"} {
		if !strings.Contains(text, want) {
			t.Errorf("formatted text missing %q:\n%s", want, text)
		}
	}

	low, _ := NewDetector(RepeatOnEveryTick).Detect(btc5m, point(-3, 0, 2.5))
	if !strings.Contains(Format(low, nil), "Lower Band: -2.5000") {
		t.Errorf("low signal text missing lower band:\n%s", Format(low, nil))
	}
}

func TestFormatStartup(t *testing.T) {
	text := FormatStartup(StartupInfo{
		Time:            time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC),
		Symbols:         []string{"BTCUSDT", "ETHUSDT"},
		Intervals:       []string{"5m", "15m"},
		Length:          21,
		SmoothingLength: 89,
		BandOffset:      2.5,
		Policy:          RepeatOnEveryTick,
	})
	for _, want := range []string{"BTCUSDT, ETHUSDT", "5m, 15m", "Fisher length: 21", "EMA length: 89", "Band offset: 2.5"} {
		if !strings.Contains(text, want) {
			t.Errorf("startup text missing %q:\n%s", want, text)
		}
	}
}
