// Package metrics holds the running accumulators the trainer reports.
package metrics

import "gonum.org/v1/gonum/floats"

// Mean is a running arithmetic mean.
//
// The zero value is ready to use. Result on an empty Mean is 0.
type Mean struct {
	name  string
	sum   float64
	count int
}

// NewMean returns an empty Mean with a display name.
func NewMean(name string) *Mean {
	return &Mean{name: name}
}

// Name returns the display name.
func (m *Mean) Name() string {
	return m.name
}

// Update adds one or more observations.
func (m *Mean) Update(values ...float64) {
	m.sum += floats.Sum(values)
	m.count += len(values)
}

// Result returns the mean of all observations since the last Reset.
func (m *Mean) Result() float64 {
	if m.count == 0 {
		return 0
	}
	return m.sum / float64(m.count)
}

// Count returns the number of observations.
func (m *Mean) Count() int {
	return m.count
}

// Reset discards all observations.
func (m *Mean) Reset() {
	m.sum = 0
	m.count = 0
}
