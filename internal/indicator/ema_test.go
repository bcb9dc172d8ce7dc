package indicator

import "testing"

func TestEMA_SeededWithFirstValue(t *testing.T) {
	ema := NewEMA(9)
	if got := ema.Update(3.5); got != 3.5 {
		t.Errorf("first update: got %v, want 3.5", got)
	}
	// alpha = 0.2
	assertClose(t, "second update", ema.Update(8.5), 4.5, 1e-12)
}

func TestEMA_Correctness_Span3(t *testing.T) {
	// alpha = 2/(3+1) = 0.5
	// values: 10, 20, 30, 20
	// ema:    10, 15, 22.5, 21.25
	ema := NewEMA(3)
	values := []float64{10, 20, 30, 20}
	expected := []float64{10, 15, 22.5, 21.25}
	for i, v := range values {
		assertClose(t, "EMA(3)", ema.Update(v), expected[i], 1e-12)
	}
}
