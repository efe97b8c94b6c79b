// Package units provides shared constants and conversion for signal amplitude units
package units

// Unit constants for channel amplitude dimensions as they appear in EDF headers.
const (
	Microvolts = "uV"
	Millivolts = "mV"
	Volts      = "V"
)

// ValidUnits contains all amplitude units the pipeline understands
var ValidUnits = []string{Microvolts, Millivolts, Volts}

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
	return "uV, mV, V"
}

// ToMicrovolts converts an amplitude to microvolts. The pipeline computes in
// microvolts throughout; loaders normalise on the way in.
func ToMicrovolts(value float64, unit string) float64 {
	switch unit {
	case Millivolts:
		return value * 1e3
	case Volts:
		return value * 1e6
	case Microvolts:
		return value
	default:
		return value // unknown dimensions pass through unscaled
	}
}

// FromMicrovolts converts a microvolt amplitude to the target unit.
func FromMicrovolts(valueUV float64, targetUnit string) float64 {
	switch targetUnit {
	case Millivolts:
		return valueUV / 1e3
	case Volts:
		return valueUV / 1e6
	case Microvolts:
		return valueUV
	default:
		return valueUV
	}
}
