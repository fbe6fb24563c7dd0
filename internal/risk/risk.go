// Package risk maps a WBGT value onto the ordered heat-stroke risk tiers.
//
// The band boundaries are a stable public contract: any rendering layer must
// reproduce them exactly.
package risk

import (
	"fmt"
	"math"
)

// Tier is an ordered heat-stroke risk level.
type Tier int

const (
	Minimal Tier = iota
	Moderate
	High
	Severe
)

func (t Tier) String() string {
	switch t {
	case Minimal:
		return "MINIMAL"
	case Moderate:
		return "MODERATE"
	case High:
		return "HIGH"
	case Severe:
		return "SEVERE"
	default:
		return fmt.Sprintf("Tier(%d)", int(t))
	}
}

// MarshalText encodes the tier by name.
func (t Tier) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

// Band is a half-open WBGT interval [Lower, Upper).
type Band struct {
	Lower float64 `json:"lower"`
	Upper float64 `json:"upper"`
	Tier  Tier    `json:"tier"`
}

var bands = [...]Band{
	{0, 25, Minimal},
	{25, 28, Moderate},
	{28, 31, High},
	{31, 35, Severe},
}

// Floor and Ceiling bound the classified domain.
const (
	Floor   = 0.0
	Ceiling = 35.0
)

// Bands returns the band table in ascending order.
func Bands() []Band {
	out := make([]Band, len(bands))
	copy(out, bands[:])
	return out
}

// RangeError reports a WBGT outside the calibrated chart domain [0,35).
type RangeError struct {
	WBGT float64
}

func (e *RangeError) Error() string {
	return fmt.Sprintf("wbgt %v outside classified range [%v,%v)", e.WBGT, Floor, Ceiling)
}

// Classify returns the tier whose band contains w. Values are never clamped.
func Classify(w float64) (Tier, error) {
	if math.IsNaN(w) {
		return 0, &RangeError{WBGT: w}
	}
	for _, b := range bands {
		if w >= b.Lower && w < b.Upper {
			return b.Tier, nil
		}
	}
	return 0, &RangeError{WBGT: w}
}
