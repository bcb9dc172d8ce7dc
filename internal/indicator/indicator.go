// Package indicator provides the Fisher transform oscillator with an EMA
// midline and fixed-offset bands, computed over an ordered candle window.
//
// Every computation is a pure left fold over the window: no state survives
// a call, so pairs can be computed in parallel while the recursion inside
// one window stays strictly sequential.
package indicator

import (
	"errors"
	"fmt"
)

// ErrInsufficientData is returned when the window or parameters cannot
// produce a defined oscillator value.
var ErrInsufficientData = errors.New("insufficient data")

// Params configures the Fisher/EMA band computation.
type Params struct {
	Length          int     // Fisher look-back window
	SmoothingLength int     // EMA span of the midline
	BandOffset      float64 // distance of the bands from the midline
}

// DefaultParams mirrors the bot's shipped settings.
func DefaultParams() Params {
	return Params{Length: 21, SmoothingLength: 89, BandOffset: 2.5}
}

// MinWindow is the smallest window that yields at least one point.
func (p Params) MinWindow() int {
	return p.Length + 1
}

// Validate checks the parameter preconditions.
func (p Params) Validate() error {
	if p.Length < 1 {
		return fmt.Errorf("%w: length %d < 1", ErrInsufficientData, p.Length)
	}
	if p.SmoothingLength < 1 {
		return fmt.Errorf("%w: smoothing length %d < 1", ErrInsufficientData, p.SmoothingLength)
	}
	return nil
}
