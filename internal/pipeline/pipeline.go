// Package pipeline runs one complete measurement: open the sensor transport,
// aggregate a batch of readings, classify the WBGT and diff it against the
// reference. A run either produces a full Report or fails as a unit.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/luki/heatrisk/internal/aggregate"
	"github.com/luki/heatrisk/internal/compare"
	"github.com/luki/heatrisk/internal/risk"
	"github.com/luki/heatrisk/internal/sensor"
	"github.com/luki/heatrisk/internal/transport"
	"github.com/luki/heatrisk/internal/wbgt"
)

// ErrBusy is returned when another run holds the transport.
var ErrBusy = errors.New("a sampling run is already in progress")

// Report is the outcome of one successful run.
type Report struct {
	RunID       uuid.UUID        `json:"runId"`
	StartedAt   time.Time        `json:"startedAt"`
	FinishedAt  time.Time        `json:"finishedAt"`
	Sample      aggregate.Sample `json:"sample"`
	Tier        risk.Tier        `json:"tier"`
	DisplayWBGT float64          `json:"displayWbgt"`
	Deltas      []compare.Delta  `json:"deltas"`
}

// Publisher forwards finished reports to downstream consumers.
type Publisher interface {
	Publish(ctx context.Context, r Report) error
}

// Settings are the per-run knobs.
type Settings struct {
	SampleCount     int
	DisplayRounding int
	Transport       transport.Config
}

// Runner executes runs one at a time.
type Runner struct {
	settings  Settings
	dial      transport.Dialer
	log       *slog.Logger
	publisher Publisher
	progress  func(aggregate.Progress)
	now       func() time.Time

	mu sync.Mutex
}

// Option customises a Runner.
type Option func(*Runner)

// WithDialer replaces the transport dialer.
func WithDialer(d transport.Dialer) Option { return func(r *Runner) { r.dial = d } }

// WithPublisher sends every successful report to p.
func WithPublisher(p Publisher) Option { return func(r *Runner) { r.publisher = p } }

// WithProgress is called after each reading of a run.
func WithProgress(fn func(aggregate.Progress)) Option {
	return func(r *Runner) { r.progress = fn }
}

// New creates a Runner.
func New(s Settings, log *slog.Logger, opts ...Option) *Runner {
	r := &Runner{settings: s, dial: transport.Dial, log: log, now: time.Now}
	for _, o := range opts {
		o(r)
	}
	return r
}

// Run performs one measurement. The transport is held exclusively for the
// whole run and released on every exit path.
func (r *Runner) Run(ctx context.Context, ref compare.Reference) (Report, error) {
	if !r.mu.TryLock() {
		return Report{}, ErrBusy
	}
	defer r.mu.Unlock()

	if missing := ref.Missing(); len(missing) > 0 {
		return Report{}, &compare.IncompleteInputError{Missing: missing}
	}

	id := uuid.New()
	log := r.log.With("run", id.String())
	started := r.now()
	log.Info("run_started", "samples", r.settings.SampleCount, "transport", r.settings.Transport.Kind)

	report, err := r.measure(ctx, log, ref)
	if err != nil {
		log.Error("run_failed", "error", err)
		return Report{}, err
	}
	report.RunID = id
	report.StartedAt = started
	report.FinishedAt = r.now()
	log.Info("run_finished",
		"wbgt", report.Sample.WBGT,
		"tier", report.Tier.String(),
		"temperature", report.Sample.Temperature,
		"humidity", report.Sample.Humidity,
	)

	if r.publisher != nil {
		if err := r.publisher.Publish(ctx, report); err != nil {
			log.Error("report_publish_failed", "error", err)
		}
	}
	return report, nil
}

func (r *Runner) measure(ctx context.Context, log *slog.Logger, ref compare.Reference) (Report, error) {
	t, err := transport.Open(ctx, r.settings.Transport, r.dial, log)
	if err != nil {
		return Report{}, err
	}
	defer func() {
		if err := t.Close(); err != nil {
			log.Warn("transport_close_failed", "error", err)
		}
	}()

	agg := aggregate.New(aggregate.WithLogger(log), aggregate.WithProgress(r.progress))
	sample, err := agg.Run(ctx, sensor.NewReader(t), r.settings.SampleCount)
	if err != nil {
		return Report{}, err
	}

	tier, err := risk.Classify(sample.WBGT)
	if err != nil {
		return Report{}, fmt.Errorf("classify: %w", err)
	}
	deltas, err := compare.Diff(sample, ref)
	if err != nil {
		return Report{}, err
	}

	return Report{
		Sample:      sample,
		Tier:        tier,
		DisplayWBGT: wbgt.Round(sample.WBGTMean, r.settings.DisplayRounding),
		Deltas:      deltas,
	}, nil
}
