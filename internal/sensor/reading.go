// Package sensor acquires temperature / relative humidity readings from a
// line-oriented device transport such as an Arduino DHT11 bridge.
package sensor

import (
	"fmt"
	"math"
)

// Reading represents a single temperature / humidity reading.
type Reading struct {
	Temperature float64 // °C
	Humidity    float64 // % RH, 0–100
}

// NewReading validates and constructs a Reading.
func NewReading(temperature, humidity float64) (Reading, error) {
	if math.IsNaN(temperature) || math.IsInf(temperature, 0) {
		return Reading{}, fmt.Errorf("temperature %v is not finite", temperature)
	}
	if math.IsNaN(humidity) || humidity < 0 || humidity > 100 {
		return Reading{}, fmt.Errorf("humidity %v outside [0,100]", humidity)
	}
	return Reading{Temperature: temperature, Humidity: humidity}, nil
}

// String formats the reading for logs.
func (r Reading) String() string {
	return fmt.Sprintf("%.1f°C %.1f%%RH", r.Temperature, r.Humidity)
}
