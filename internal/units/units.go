// Package units provides shared constants and validation for time units
package units

import "strings"

// Unit constants
const (
	Seconds      = "s"
	Milliseconds = "ms"
	Microseconds = "us"
)

// ValidUnits contains all valid unit values
var ValidUnits = []string{Seconds, Milliseconds, Microseconds}

// IsValid checks if the given unit is in the list of valid units
func IsValid(unit string) bool {
	for _, validUnit := range ValidUnits {
		if unit == validUnit {
			return true
		}
	}
	return false
}

// GetValidUnitsString returns a comma-separated string of valid units for error messages
func GetValidUnitsString() string {
	return strings.Join(ValidUnits, ", ")
}

// ConvertTime converts a duration in seconds to the target units
func ConvertTime(seconds float64, targetUnits string) float64 {
	switch targetUnits {
	case Milliseconds:
		return seconds * 1e3
	case Microseconds:
		return seconds * 1e6
	default:
		return seconds
	}
}

// IndexToTime converts a sample index to elapsed time in the target units
// for a signal sampled at sampleRate Hz. A non-positive rate yields 0.
func IndexToTime(index int, sampleRate float64, targetUnits string) float64 {
	if sampleRate <= 0 {
		return 0
	}
	return ConvertTime(float64(index)/sampleRate, targetUnits)
}

// TimeAxis returns the time of each of n samples in the target units
func TimeAxis(n int, sampleRate float64, targetUnits string) []float64 {
	axis := make([]float64, n)
	for i := range axis {
		axis[i] = IndexToTime(i, sampleRate, targetUnits)
	}
	return axis
}

// Label returns the axis label suffix for a unit, e.g. "µs"
func Label(unit string) string {
	switch unit {
	case Milliseconds:
		return "ms"
	case Microseconds:
		return "µs"
	default:
		return "s"
	}
}
