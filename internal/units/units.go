// Package units provides shared constants and validation for wavefront and length units
package units

import "strings"

// Wavefront unit constants
const (
	Waves = "waves"
	UM    = "um"
	NM    = "nm"
)

// Length unit constants. Lens data is stored in millimetres.
const (
	MM = "mm"
	CM = "cm"
	M  = "m"
	IN = "in"
)

// ValidWavefrontUnits contains all valid wavefront unit values
var ValidWavefrontUnits = []string{Waves, UM, NM}

// ValidLengthUnits contains all valid length unit values
var ValidLengthUnits = []string{MM, CM, M, IN}

// Normalize folds case and common aliases ("µm", "microns", "wave") onto the
// canonical unit names. Unknown strings are returned lower-cased.
func Normalize(unit string) string {
	u := strings.ToLower(strings.TrimSpace(unit))
	switch u {
	case "", "wave", "waves", "lambda", "λ":
		return Waves
	case "µm", "μm", "micron", "microns", "um":
		return UM
	case "nanometer", "nanometers", "nm":
		return NM
	case "millimeter", "millimeters", "mm":
		return MM
	case "inch", "inches", "in":
		return IN
	}
	return u
}

// IsValidWavefront checks if the given unit is a wavefront unit
func IsValidWavefront(unit string) bool {
	n := Normalize(unit)
	for _, v := range ValidWavefrontUnits {
		if n == v {
			return true
		}
	}
	return false
}

// IsValidLength checks if the given unit is a length unit
func IsValidLength(unit string) bool {
	n := Normalize(unit)
	for _, v := range ValidLengthUnits {
		if n == v {
			return true
		}
	}
	return false
}

// GetValidWavefrontUnitsString returns a comma-separated list for error messages
func GetValidWavefrontUnitsString() string {
	return strings.Join(ValidWavefrontUnits, ", ")
}

// ConvertWavefront converts an optical path difference expressed in waves at
// lambdaUM micrometres to the target unit. Unknown units return waves.
func ConvertWavefront(waves, lambdaUM float64, targetUnits string) float64 {
	switch Normalize(targetUnits) {
	case UM:
		return waves * lambdaUM
	case NM:
		return waves * lambdaUM * 1000
	default:
		return waves
	}
}

// MMToLength converts millimetres to the target length unit
func MMToLength(mm float64, targetUnits string) float64 {
	switch Normalize(targetUnits) {
	case CM:
		return mm / 10
	case M:
		return mm / 1000
	case IN:
		return mm / 25.4
	default:
		return mm
	}
}

// UMToMM converts micrometres to millimetres
func UMToMM(um float64) float64 { return um * 1e-3 }
