package metrics

import (
	"math"

	"gonum.org/v1/gonum/floats"
)

// History is an append-only record of one value per epoch.
type History struct {
	values []float64
}

// Append records the value for the next epoch and reports whether it is
// strictly below every earlier value. The first value always is.
func (h *History) Append(v float64) bool {
	improved := len(h.values) == 0 || v < floats.Min(h.values)
	h.values = append(h.values, v)
	return improved
}

// Len returns the number of recorded epochs.
func (h *History) Len() int {
	return len(h.values)
}

// Values returns a copy of the recorded values.
func (h *History) Values() []float64 {
	return append([]float64(nil), h.values...)
}

// Last returns the most recent value, or NaN when empty.
func (h *History) Last() float64 {
	if len(h.values) == 0 {
		return math.NaN()
	}
	return h.values[len(h.values)-1]
}

// Min returns the smallest value and its epoch, or (NaN, -1) when empty.
// Ties resolve to the earliest epoch.
func (h *History) Min() (float64, int) {
	if len(h.values) == 0 {
		return math.NaN(), -1
	}
	idx := floats.MinIdx(h.values)
	return h.values[idx], idx
}

// Max returns the largest value and its epoch, or (NaN, -1) when empty.
// Ties resolve to the earliest epoch.
func (h *History) Max() (float64, int) {
	if len(h.values) == 0 {
		return math.NaN(), -1
	}
	idx := floats.MaxIdx(h.values)
	return h.values[idx], idx
}
