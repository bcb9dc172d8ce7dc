// Package signal classifies the latest indicator point into a band-crossing
// signal and renders signals as notification text.
package signal

import (
	"fmt"

	"github.com/imransimsek/Fisher-EMA-Signal-Algorithm/internal/model"
)

// Policy names how a pair that stays outside a band is reported.
type Policy string

// RepeatOnEveryTick re-fires on every evaluation while the trigger stays
// outside the band. No cooldown, no edge detection.
const RepeatOnEveryTick Policy = "repeat-on-every-tick"

// ParsePolicy validates a policy name. An empty name selects the default.
func ParsePolicy(s string) (Policy, error) {
	switch Policy(s) {
	case "", RepeatOnEveryTick:
		return RepeatOnEveryTick, nil
	default:
		return "", fmt.Errorf("unknown signal policy %q", s)
	}
}

// Classify applies the band rule to one point. Rules are checked in fixed
// order and the bands never cross, so at most one kind matches. A point
// without a trigger never matches.
func Classify(pt model.IndicatorPoint) (kind model.SignalKind, band float64, ok bool) {
	if !pt.HasTrigger {
		return "", 0, false
	}
	switch {
	case pt.Trigger > pt.UpperBand:
		return model.ExtremeHigh, pt.UpperBand, true
	case pt.Trigger < pt.LowerBand:
		return model.ExtremeLow, pt.LowerBand, true
	default:
		return "", 0, false
	}
}

// Detector turns the latest indicator point of a pair into a signal.
// It is stateless: the result depends only on the point passed in.
type Detector struct {
	policy Policy
}

// NewDetector creates a detector with the given repeat policy.
func NewDetector(policy Policy) *Detector {
	if policy == "" {
		policy = RepeatOnEveryTick
	}
	return &Detector{policy: policy}
}

// Policy returns the detector's repeat policy.
func (d *Detector) Policy() Policy { return d.policy }

// Detect returns a signal for pair when the latest point is outside a band.
func (d *Detector) Detect(pair model.Pair, latest model.IndicatorPoint) (*model.Signal, bool) {
	kind, band, ok := Classify(latest)
	if !ok {
		return nil, false
	}
	return &model.Signal{
		Kind:       kind,
		Symbol:     pair.Symbol,
		Interval:   pair.Interval.Name,
		Time:       latest.Time,
		Price:      latest.Close,
		Oscillator: latest.Oscillator,
		Trigger:    latest.Trigger,
		Band:       band,
	}, true
}
