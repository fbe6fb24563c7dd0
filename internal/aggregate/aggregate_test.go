package aggregate

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"github.com/luki/heatrisk/internal/sensor"
	"github.com/luki/heatrisk/internal/wbgt"
)

// replay feeds fixed lines through a real sensor.Reader.
type replay struct {
	lines   []string
	pos     int
	flushes int
}

func (r *replay) Flush() error { r.flushes++; return nil }

func (r *replay) ReadLine() (string, error) {
	if r.pos >= len(r.lines) {
		return "", errors.New("no more lines")
	}
	s := r.lines[r.pos]
	r.pos++
	return s, nil
}

func (r *replay) Close() error { return nil }

func repeat(line string, n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = line
	}
	return out
}

func TestAggregateIdenticalReadings(t *testing.T) {
	src := &replay{lines: repeat("50x25\n", 5)}
	s, err := Aggregate(context.Background(), sensor.NewReader(src), DefaultCount)
	if err != nil {
		t.Fatalf("Aggregate: %v", err)
	}

	w, _ := wbgt.Compute(25, 50)
	if s.Temperature != 25 || s.Humidity != 50 {
		t.Errorf("got T=%v rh=%v, want 25 / 50", s.Temperature, s.Humidity)
	}
	if want := wbgt.Round(w, 0); s.WBGT != want {
		t.Errorf("WBGT: got %v, want %v", s.WBGT, want)
	}
	if s.WBGT != 20 {
		t.Errorf("WBGT: got %v, want 20", s.WBGT)
	}
	if s.Count != 5 {
		t.Errorf("Count: got %d, want 5", s.Count)
	}
	if src.pos != 5 || src.flushes != 5 {
		t.Errorf("reads=%d flushes=%d, want 5/5", src.pos, src.flushes)
	}
}

func TestAggregateMeans(t *testing.T) {
	src := &replay{lines: []string{"40x24", "45x25", "50x26", "55x27", "60x28"}}
	s, err := Aggregate(context.Background(), sensor.NewReader(src), 5)
	if err != nil {
		t.Fatalf("Aggregate: %v", err)
	}
	if s.Temperature != 26 || s.Humidity != 50 {
		t.Errorf("got T=%v rh=%v, want 26 / 50", s.Temperature, s.Humidity)
	}
	if s.WBGTMin > s.WBGTMean || s.WBGTPeak < s.WBGTMean {
		t.Errorf("spread %v..%v does not contain mean %v", s.WBGTMin, s.WBGTPeak, s.WBGTMean)
	}
}

// 15.35 and 26.75 sit exactly on a rounding edge at one decimal place: the
// stored binary value of 15.35 is just below it, 26.75 is an exact tie.
func TestAggregateSeriesRoundsExactValue(t *testing.T) {
	src := &replay{lines: append([]string{"31x22"}, repeat("97x27", 4)...)}
	s, err := Aggregate(context.Background(), sensor.NewReader(src), 5)
	if err != nil {
		t.Fatalf("Aggregate: %v", err)
	}

	want := []float64{15.3, 26.8, 26.8, 26.8, 26.8}
	if !reflect.DeepEqual(s.WBGTSeries, want) {
		t.Errorf("series: got %v, want %v", s.WBGTSeries, want)
	}
	if s.WBGTMean != 24.5 {
		t.Errorf("WBGTMean: got %v, want 24.5", s.WBGTMean)
	}
	if s.WBGT != 24 {
		t.Errorf("WBGT: got %v, want 24", s.WBGT)
	}
	if s.WBGTMin != 15.3 || s.WBGTPeak != 26.8 {
		t.Errorf("spread: got %v..%v, want 15.3..26.8", s.WBGTMin, s.WBGTPeak)
	}
}

func TestAggregateProgressCarriesSeriesValue(t *testing.T) {
	src := &replay{lines: []string{"31x22", "97x27"}}
	var got []Progress
	a := New(WithProgress(func(p Progress) { got = append(got, p) }))

	s, err := a.Run(context.Background(), sensor.NewReader(src), 2)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("progress calls: got %d, want 2", len(got))
	}
	for i, p := range got {
		if p.Done != i+1 || p.Total != 2 {
			t.Errorf("progress %d: got %d/%d", i, p.Done, p.Total)
		}
		if p.WBGT != s.WBGTSeries[i] {
			t.Errorf("progress %d: wbgt %v, series has %v", i, p.WBGT, s.WBGTSeries[i])
		}
	}
	if got[0].Reading.Temperature != 22 || got[0].Reading.Humidity != 31 {
		t.Errorf("progress reading: got %+v", got[0].Reading)
	}
}

func TestAggregateParseFailureAbortsRun(t *testing.T) {
	src := &replay{lines: []string{"50x25", "50x25", "garbage", "50x25", "50x25"}}
	s, err := Aggregate(context.Background(), sensor.NewReader(src), 5)

	var ae *AggregationError
	if !errors.As(err, &ae) {
		t.Fatalf("got %v, want AggregationError", err)
	}
	if ae.Index != 2 {
		t.Errorf("Index: got %d, want 2", ae.Index)
	}
	var pe *sensor.ParseError
	if !errors.As(err, &pe) {
		t.Errorf("expected wrapped ParseError, got %v", err)
	}
	if !reflect.DeepEqual(s, Sample{}) {
		t.Errorf("partial sample leaked: %+v", s)
	}
	if src.pos != 3 {
		t.Errorf("reads after failure: pos=%d, want 3", src.pos)
	}
}

func TestAggregateTransportFailure(t *testing.T) {
	src := &replay{lines: []string{"50x25"}}
	_, err := Aggregate(context.Background(), sensor.NewReader(src), 3)
	var te *sensor.TransportError
	if !errors.As(err, &te) {
		t.Fatalf("got %v, want wrapped TransportError", err)
	}
}

func TestAggregateCancelledBetweenReads(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	src := &replay{lines: repeat("50x25", 5)}

	a := New(WithProgress(func(p Progress) {
		if p.Done == 2 {
			cancel()
		}
	}))
	_, err := a.Run(ctx, sensor.NewReader(src), 5)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("got %v, want context.Canceled", err)
	}
	if src.pos != 2 {
		t.Errorf("reads: got %d, want 2", src.pos)
	}
}

func TestAggregateInvalidCount(t *testing.T) {
	_, err := Aggregate(context.Background(), sensor.NewReader(&replay{}), 0)
	if !errors.Is(err, ErrInvalidCount) {
		t.Errorf("got %v, want ErrInvalidCount", err)
	}
}

func TestAggregateNoStateAcrossRuns(t *testing.T) {
	a := New()
	first, err := a.Run(context.Background(), sensor.NewReader(&replay{lines: repeat("90x34", 5)}), 5)
	if err != nil {
		t.Fatal(err)
	}
	second, err := a.Run(context.Background(), sensor.NewReader(&replay{lines: repeat("50x25", 5)}), 5)
	if err != nil {
		t.Fatal(err)
	}
	if first.Temperature == second.Temperature {
		t.Fatal("runs should differ")
	}
	if second.Temperature != 25 || second.WBGT != 20 {
		t.Errorf("second run polluted by first: %+v", second)
	}
}
