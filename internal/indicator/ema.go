package indicator

// EMA calculates an exponential moving average with span period.
// O(1) per update. Unlike an SMA-seeded EMA it is seeded with the first
// value it sees, so it is defined from the first update on.
type EMA struct {
	multiplier float64
	current    float64
	count      int
}

// NewEMA creates a new EMA with the given span.
func NewEMA(period int) *EMA {
	return &EMA{multiplier: 2.0 / float64(period+1)}
}

// Update feeds the next value and returns the new average.
func (e *EMA) Update(v float64) float64 {
	e.count++
	if e.count == 1 {
		e.current = v
		return e.current
	}
	// EMA = v*alpha + EMA_prev*(1-alpha)
	e.current = v*e.multiplier + e.current*(1-e.multiplier)
	return e.current
}
