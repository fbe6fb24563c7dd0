package series

import (
	"math"
	"testing"
)

func TestSeries(t *testing.T) {
	s := New(5)
	for _, v := range []float64{26.8, 15.3, 26.8, 26.8, 26.8} {
		s.Add(v)
	}

	if s.Len() != 5 {
		t.Errorf("Len(): got %d, want 5", s.Len())
	}
	if s.Min != 15.3 {
		t.Errorf("Min: got %v, want 15.3", s.Min)
	}
	if s.Peak != 26.8 {
		t.Errorf("Peak: got %v, want 26.8", s.Peak)
	}
	if got := s.Mean(); got != 24.5 {
		t.Errorf("Mean(): got %v, want 24.5", got)
	}
}

func TestSeriesKeepsEveryValue(t *testing.T) {
	s := New(2)
	for i := 0; i < 4; i++ {
		s.Add(float64(i))
	}
	got := s.Values()
	if len(got) != 4 || got[0] != 0 || got[3] != 3 {
		t.Errorf("Values(): got %v, want [0 1 2 3]", got)
	}
}

func TestEmptyMean(t *testing.T) {
	if got := New(3).Mean(); !math.IsNaN(got) {
		t.Errorf("Mean() of empty series: got %v, want NaN", got)
	}
}

func TestValuesIsCopy(t *testing.T) {
	s := New(2)
	s.Add(1)
	s.Add(2)

	vals := s.Values()
	vals[0] = 99
	if s.Values()[0] != 1 {
		t.Errorf("Values() aliased the series: got %v", s.Values()[0])
	}
}
