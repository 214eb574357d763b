package units

import (
	"math"
	"testing"
)

func TestConvertWavefront(t *testing.T) {
	tests := []struct {
		name     string
		waves    float64
		lambda   float64
		units    string
		expected float64
	}{
		{"waves passthrough", 0.25, 0.5876, Waves, 0.25},
		{"quarter wave to um", 0.25, 0.5876, UM, 0.1469},
		{"quarter wave to nm", 0.25, 0.5876, NM, 146.9},
		{"micro sign alias", 1, 0.55, "µm", 0.55},
		{"empty defaults to waves", 2, 0.55, "", 2},
		{"unknown defaults to waves", 2, 0.55, "furlong", 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := ConvertWavefront(tt.waves, tt.lambda, tt.units)
			if math.Abs(result-tt.expected) > 1e-9 {
				t.Errorf("ConvertWavefront(%f, %f, %s) = %f, want %f", tt.waves, tt.lambda, tt.units, result, tt.expected)
			}
		})
	}
}

func TestIsValid(t *testing.T) {
	for _, u := range []string{"waves", "um", "nm", "NM", "microns"} {
		if !IsValidWavefront(u) {
			t.Errorf("IsValidWavefront(%q) = false, want true", u)
		}
	}
	if IsValidWavefront("mm") {
		t.Error("IsValidWavefront(mm) = true, want false")
	}
	if !IsValidLength("inches") || IsValidLength("waves") {
		t.Error("IsValidLength mismatch")
	}
}

func TestMMToLength(t *testing.T) {
	if got := MMToLength(25.4, IN); math.Abs(got-1) > 1e-12 {
		t.Errorf("MMToLength(25.4, in) = %f", got)
	}
	if got := MMToLength(1500, M); got != 1.5 {
		t.Errorf("MMToLength(1500, m) = %f", got)
	}
	if got := UMToMM(0.5876); math.Abs(got-0.0005876) > 1e-15 {
		t.Errorf("UMToMM = %g", got)
	}
}

func TestGetValidWavefrontUnitsString(t *testing.T) {
	if got := GetValidWavefrontUnitsString(); got != "waves, um, nm" {
		t.Errorf("got %q", got)
	}
}
