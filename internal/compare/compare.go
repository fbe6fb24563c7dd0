// Package compare diffs a local aggregated sample against a reference
// (typically outdoor) temperature / humidity / WBGT triple.
package compare

import (
	"fmt"
	"strings"

	"github.com/luki/heatrisk/internal/aggregate"
	"github.com/luki/heatrisk/internal/wbgt"
)

// Metric names, in Diff output order.
const (
	MetricTemperature = "temperature"
	MetricHumidity    = "humidity"
	MetricWBGT        = "wbgt"
)

// Reference is an externally supplied comparison triple. A nil field means
// the value was not provided.
type Reference struct {
	Temperature *float64 `json:"temperature"`
	Humidity    *float64 `json:"humidity"`
	WBGT        *float64 `json:"wbgt"`
}

// NewReference builds a fully populated reference.
func NewReference(t, rh, w float64) Reference {
	return Reference{Temperature: &t, Humidity: &rh, WBGT: &w}
}

// ReferenceFromConditions derives the reference WBGT from T and rh.
func ReferenceFromConditions(t, rh float64) (Reference, error) {
	w, err := wbgt.Compute(t, rh)
	if err != nil {
		return Reference{}, err
	}
	return NewReference(t, rh, w), nil
}

// Complete reports whether every field is populated.
func (r Reference) Complete() bool {
	return len(r.Missing()) == 0
}

// Missing names the unpopulated fields.
func (r Reference) Missing() []string {
	var missing []string
	if r.Temperature == nil {
		missing = append(missing, "reference "+MetricTemperature)
	}
	if r.Humidity == nil {
		missing = append(missing, "reference "+MetricHumidity)
	}
	if r.WBGT == nil {
		missing = append(missing, "reference "+MetricWBGT)
	}
	return missing
}

// Delta is the signed difference local − reference for one metric.
type Delta struct {
	Metric     string  `json:"metric"`
	Local      float64 `json:"local"`
	Reference  float64 `json:"reference"`
	Difference float64 `json:"difference"`
}

// IncompleteInputError lists the inputs that were missing.
type IncompleteInputError struct {
	Missing []string
}

func (e *IncompleteInputError) Error() string {
	return "compare: missing " + strings.Join(e.Missing, ", ")
}

// Diff returns temperature, humidity and wbgt deltas, in that order.
func Diff(local aggregate.Sample, ref Reference) ([]Delta, error) {
	var missing []string
	if local.Count == 0 {
		missing = append(missing, "local sample")
	}
	missing = append(missing, ref.Missing()...)
	if len(missing) > 0 {
		return nil, &IncompleteInputError{Missing: missing}
	}

	return []Delta{
		delta(MetricTemperature, local.Temperature, *ref.Temperature),
		delta(MetricHumidity, local.Humidity, *ref.Humidity),
		delta(MetricWBGT, local.WBGT, *ref.WBGT),
	}, nil
}

func delta(metric string, local, ref float64) Delta {
	return Delta{Metric: metric, Local: local, Reference: ref, Difference: local - ref}
}

// String formats a delta the way the dashboard shows it, e.g. "+2.0".
func (d Delta) String() string {
	return fmt.Sprintf("%s %+.1f", d.Metric, d.Difference)
}
