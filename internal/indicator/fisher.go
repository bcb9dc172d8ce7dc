package indicator

import (
	"fmt"
	"math"

	"github.com/imransimsek/Fisher-EMA-Signal-Algorithm/internal/model"
)

const (
	fisherGain   = 0.33
	fisherDecay  = 0.67
	fisherLimit  = 0.99
	fisherClamp  = 0.999
	fisherCarry  = 0.5
	flatRangeRaw = 0.5
)

// fisherState is the accumulator threaded through the fold. The zero value
// is the seed: value1 and fish both start at 0 before the first point.
type fisherState struct {
	value1 float64 // smoothed normalized position, stored unclamped
	fish   float64 // previous oscillator value
}

// step advances the recursion by one normalized position.
func (s fisherState) step(raw float64) fisherState {
	v := fisherGain*2*(raw-0.5) + fisherDecay*s.value1

	// Clamp only the transform input; the recursion keeps the raw v.
	c := v
	if v > fisherLimit {
		c = fisherClamp
	} else if v < -fisherLimit {
		c = -fisherClamp
	}

	return fisherState{
		value1: v,
		fish:   0.5*math.Log((1+c)/(1-c)) + fisherCarry*s.fish,
	}
}

// normalizedPosition returns where mids[i] sits inside the range of the
// last length mids, in [0, 1]. A flat range yields 0.5.
func normalizedPosition(mids []float64, i, length int) float64 {
	hi, lo := mids[i], mids[i]
	for j := i - length + 1; j < i; j++ {
		if mids[j] > hi {
			hi = mids[j]
		}
		if mids[j] < lo {
			lo = mids[j]
		}
	}
	if hi == lo {
		return flatRangeRaw
	}
	return (mids[i] - lo) / (hi - lo)
}

// Compute runs the Fisher/EMA band indicator over an ascending candle
// window. It returns one point per candle from index p.Length on; earlier
// candles only feed the look-back range.
//
// The first point has no trigger (HasTrigger=false). Each later point's
// trigger equals the previous point's oscillator.
func Compute(window []model.Candle, p Params) ([]model.IndicatorPoint, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	if len(window) < p.MinWindow() {
		return nil, fmt.Errorf("%w: window has %d candles, need %d", ErrInsufficientData, len(window), p.MinWindow())
	}

	mids := make([]float64, len(window))
	for i := range window {
		if i > 0 && !window[i].Time.After(window[i-1].Time) {
			return nil, fmt.Errorf("%w: window not ascending at index %d", ErrInsufficientData, i)
		}
		mids[i] = window[i].Mid()
	}

	points := make([]model.IndicatorPoint, 0, len(window)-p.Length)
	midline := NewEMA(p.SmoothingLength)
	var state fisherState

	for i := p.Length; i < len(window); i++ {
		prevFish := state.fish
		state = state.step(normalizedPosition(mids, i, p.Length))
		mid := midline.Update(state.fish)

		pt := model.IndicatorPoint{
			Time:       window[i].Time,
			Close:      window[i].Close,
			Oscillator: state.fish,
			Midline:    mid,
			UpperBand:  mid + p.BandOffset,
			LowerBand:  mid - p.BandOffset,
		}
		if len(points) > 0 {
			pt.Trigger = prevFish
			pt.HasTrigger = true
		}
		points = append(points, pt)
	}
	return points, nil
}

// Latest computes the window and returns only its last point.
func Latest(window []model.Candle, p Params) (model.IndicatorPoint, error) {
	points, err := Compute(window, p)
	if err != nil {
		return model.IndicatorPoint{}, err
	}
	return points[len(points)-1], nil
}
