// Package series accumulates the per-read values of one sampling run.
package series

import "math"

// Series holds values in arrival order with their running extremes.
type Series struct {
	values []float64
	Min    float64
	Peak   float64
}

// New returns an empty series sized for n values.
func New(n int) *Series {
	if n < 0 {
		n = 0
	}
	return &Series{
		values: make([]float64, 0, n),
		Min:    math.Inf(1),
		Peak:   math.Inf(-1),
	}
}

// Add appends v.
func (s *Series) Add(v float64) {
	s.values = append(s.values, v)
	s.Min = math.Min(s.Min, v)
	s.Peak = math.Max(s.Peak, v)
}

// Len returns the number of values added.
func (s *Series) Len() int { return len(s.values) }

// Mean sums in arrival order and divides by the count. NaN when empty.
func (s *Series) Mean() float64 {
	if len(s.values) == 0 {
		return math.NaN()
	}
	var sum float64
	for _, v := range s.values {
		sum += v
	}
	return sum / float64(len(s.values))
}

// Values returns a copy of the values.
func (s *Series) Values() []float64 {
	out := make([]float64, len(s.values))
	copy(out, s.values)
	return out
}
