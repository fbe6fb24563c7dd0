// Package aggregate drives a fixed number of sequential sensor reads and
// collapses them into one stabilized temperature / humidity / WBGT sample.
package aggregate

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/luki/heatrisk/internal/sensor"
	"github.com/luki/heatrisk/internal/series"
	"github.com/luki/heatrisk/internal/wbgt"
)

// DefaultCount is the number of reads averaged per run.
const DefaultCount = 5

// ErrInvalidCount is returned for a non-positive sample count.
var ErrInvalidCount = errors.New("sample count must be positive")

// SampleReader yields one reading per call, blocking until it has one.
type SampleReader interface {
	ReadOne() (sensor.Reading, error)
}

// Sample is the result of one aggregation run.
type Sample struct {
	Temperature float64   `json:"temperature"` // mean, whole °C
	Humidity    float64   `json:"humidity"`    // mean, whole % RH
	WBGT        float64   `json:"wbgt"`        // mean, whole °C
	WBGTMean    float64   `json:"wbgtMean"`    // unrounded mean of the per-read WBGT series
	WBGTMin     float64   `json:"wbgtMin"`
	WBGTPeak    float64   `json:"wbgtPeak"`
	WBGTSeries  []float64 `json:"wbgtSeries"` // per-read WBGT, 1 dp, in read order
	Count       int       `json:"count"`
}

// Progress describes one completed read of a run.
type Progress struct {
	Done    int
	Total   int
	Reading sensor.Reading
	WBGT    float64 // the value entered into the WBGT series
}

// AggregationError aborts a run. Index is the zero-based read that failed,
// or -1 when the run failed before the first read.
type AggregationError struct {
	Index int
	Err   error
}

func (e *AggregationError) Error() string {
	if e.Index < 0 {
		return fmt.Sprintf("aggregate: %v", e.Err)
	}
	return fmt.Sprintf("aggregate: read %d: %v", e.Index+1, e.Err)
}

func (e *AggregationError) Unwrap() error { return e.Err }

// Option customises an Aggregator.
type Option func(*Aggregator)

// WithLogger sets the logger used for per-read events.
func WithLogger(l *slog.Logger) Option {
	return func(a *Aggregator) { a.log = l }
}

// WithProgress registers a callback invoked after each successful read.
func WithProgress(fn func(Progress)) Option {
	return func(a *Aggregator) { a.progress = fn }
}

// Aggregator runs sampling passes. It holds no state between runs.
type Aggregator struct {
	log      *slog.Logger
	progress func(Progress)
}

// New creates an Aggregator.
func New(opts ...Option) *Aggregator {
	a := &Aggregator{log: slog.Default()}
	for _, o := range opts {
		o(a)
	}
	return a
}

// Aggregate reads n samples with the default Aggregator.
func Aggregate(ctx context.Context, r SampleReader, n int) (Sample, error) {
	return New().Run(ctx, r, n)
}

// Run reads n samples strictly in sequence and returns their means.
// The context is checked between reads, never during one. Any failure
// discards the whole run.
func (a *Aggregator) Run(ctx context.Context, r SampleReader, n int) (Sample, error) {
	if n <= 0 {
		return Sample{}, &AggregationError{Index: -1, Err: ErrInvalidCount}
	}

	temps := series.New(n)
	hums := series.New(n)
	indices := series.New(n)

	for i := 0; i < n; i++ {
		if err := ctx.Err(); err != nil {
			return Sample{}, &AggregationError{Index: i, Err: err}
		}

		rd, err := r.ReadOne()
		if err != nil {
			a.log.Warn("sample_read_failed", "index", i, "error", err)
			return Sample{}, &AggregationError{Index: i, Err: err}
		}
		w, err := wbgt.Compute(rd.Temperature, rd.Humidity)
		if err != nil {
			return Sample{}, &AggregationError{Index: i, Err: err}
		}

		v := wbgt.Round(w, 1)
		temps.Add(rd.Temperature)
		hums.Add(rd.Humidity)
		indices.Add(v)

		a.log.Debug("sample_read", "index", i, "reading", rd.String(), "wbgt", v)
		if a.progress != nil {
			a.progress(Progress{Done: i + 1, Total: n, Reading: rd, WBGT: v})
		}
	}

	mean := indices.Mean()
	return Sample{
		Temperature: wbgt.Round(temps.Mean(), 0),
		Humidity:    wbgt.Round(hums.Mean(), 0),
		WBGT:        wbgt.Round(mean, 0),
		WBGTMean:    mean,
		WBGTMin:     indices.Min,
		WBGTPeak:    indices.Peak,
		WBGTSeries:  indices.Values(),
		Count:       indices.Len(),
	}, nil
}
