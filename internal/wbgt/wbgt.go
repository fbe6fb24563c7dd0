// Package wbgt computes the natural wet-bulb temperature and the wet bulb
// globe temperature (WBGT) heat-stress index from air temperature and
// relative humidity.
package wbgt

import (
	"fmt"
	"math"
	"strconv"

	"github.com/shopspring/decimal"
)

// DomainError reports inputs the formulas are not defined for.
type DomainError struct {
	Temperature float64
	Humidity    float64
	Reason      string
}

func (e *DomainError) Error() string {
	return fmt.Sprintf("wbgt: invalid input T=%v rh=%v: %s", e.Temperature, e.Humidity, e.Reason)
}

func validate(t, rh float64) error {
	switch {
	case math.IsNaN(t) || math.IsInf(t, 0):
		return &DomainError{Temperature: t, Humidity: rh, Reason: "temperature is not finite"}
	case math.IsNaN(rh) || math.IsInf(rh, 0):
		return &DomainError{Temperature: t, Humidity: rh, Reason: "humidity is not finite"}
	case rh < 0 || rh > 100:
		return &DomainError{Temperature: t, Humidity: rh, Reason: "humidity outside [0,100]"}
	}
	return nil
}

// WetBulb returns Stull's empirical wet-bulb approximation in °C.
// The coefficients are calibrated and must not be rounded.
func WetBulb(t, rh float64) (float64, error) {
	if err := validate(t, rh); err != nil {
		return 0, err
	}
	return t*math.Atan(0.151977*math.Sqrt(rh+8.313659)) +
		math.Atan(t+rh) -
		math.Atan(rh-1.676331) +
		0.00391838*math.Pow(rh, 1.5)*math.Atan(0.023101*rh) -
		4.686035, nil
}

// Raw returns the unrounded WBGT: 0.7·wet bulb + 0.3·T.
func Raw(t, rh float64) (float64, error) {
	wb, err := WetBulb(t, rh)
	if err != nil {
		return 0, err
	}
	return 0.7*wb + 0.3*t, nil
}

// Compute returns the WBGT rounded to two decimal places.
func Compute(t, rh float64) (float64, error) {
	v, err := Raw(t, rh)
	if err != nil {
		return 0, err
	}
	return Round(v, 2), nil
}

// Round rounds v to the given number of decimal places. The exact binary
// value of v is rounded, ties to even, so 21.15 (stored as 21.1499...)
// becomes 21.1 while 24.5 becomes 24. Negative places are treated as 0.
// Non-finite values are returned unchanged.
func Round(v float64, places int) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return v
	}
	if places < 0 {
		places = 0
	}
	f, _ := decimal.RequireFromString(strconv.FormatFloat(v, 'f', places, 64)).Float64()
	return f
}
