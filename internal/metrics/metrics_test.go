package metrics

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMean(t *testing.T) {
	m := NewMean("lossBox")
	assert.Equal(t, "lossBox", m.Name())
	assert.Zero(t, m.Result())

	m.Update(1, 2)
	m.Update(6)
	assert.Equal(t, 3, m.Count())
	assert.InDelta(t, 3.0, m.Result(), 1e-12)

	m.Reset()
	assert.Zero(t, m.Count())
	assert.Zero(t, m.Result())

	var zero Mean
	zero.Update(4)
	assert.InDelta(t, 4.0, zero.Result(), 1e-12)
}

func TestHistoryStrictImprovement(t *testing.T) {
	var h History
	var improved []int
	for i, v := range []float64{5, 3, 4, 2, 2} {
		if h.Append(v) {
			improved = append(improved, i)
		}
	}

	assert.Equal(t, []int{0, 1, 3}, improved)
	assert.Equal(t, []float64{5, 3, 4, 2, 2}, h.Values())
	assert.Equal(t, 5, h.Len())
	assert.Equal(t, 2.0, h.Last())

	v, idx := h.Min()
	assert.Equal(t, 2.0, v)
	assert.Equal(t, 3, idx)

	v, idx = h.Max()
	assert.Equal(t, 5.0, v)
	assert.Equal(t, 0, idx)
}

func TestHistoryEmpty(t *testing.T) {
	var h History
	assert.True(t, math.IsNaN(h.Last()))
	_, idx := h.Min()
	assert.Equal(t, -1, idx)
	_, idx = h.Max()
	assert.Equal(t, -1, idx)
}

func TestHistoryValuesIsCopy(t *testing.T) {
	var h History
	h.Append(1)
	vals := h.Values()
	vals[0] = 99
	assert.Equal(t, 1.0, h.Last())
}
