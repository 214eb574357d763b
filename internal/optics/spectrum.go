package optics

import (
	"errors"
	"fmt"
	"math"
	"strings"
)

// Wavelength is one spectral sample in micrometres.
type Wavelength struct {
	UM      float64
	Weight  float64
	Primary bool
}

// Wavelengths is an ordered spectral set with one primary.
type Wavelengths []Wavelength

// PrimaryIndex returns the primary wavelength index, or 0 when none is marked.
func (w Wavelengths) PrimaryIndex() int {
	for i, wl := range w {
		if wl.Primary {
			return i
		}
	}
	return 0
}

// Primary returns the primary wavelength in µm, or the d-line for an empty set.
func (w Wavelengths) Primary() float64 {
	if len(w) == 0 {
		return 0.5875618
	}
	return w[w.PrimaryIndex()].UM
}

// Extremes returns the shortest and longest wavelengths.
func (w Wavelengths) Extremes() (short, long float64) {
	if len(w) == 0 {
		p := w.Primary()
		return p, p
	}
	short, long = math.Inf(1), math.Inf(-1)
	for _, wl := range w {
		short = math.Min(short, wl.UM)
		long = math.Max(long, wl.UM)
	}
	return short, long
}

// Validate checks positivity and that exactly one wavelength is primary.
func (w Wavelengths) Validate() error {
	if len(w) == 0 {
		return errors.New("wavelength set is empty")
	}
	primaries := 0
	for i, wl := range w {
		if !(wl.UM > 0) {
			return fmt.Errorf("wavelength %d: %g µm must be positive", i+1, wl.UM)
		}
		if wl.Primary {
			primaries++
		}
	}
	if primaries != 1 {
		return fmt.Errorf("wavelength set must have exactly one primary, found %d", primaries)
	}
	return nil
}

// FieldType distinguishes infinite- and finite-conjugate field points.
type FieldType int

const (
	// FieldAngle points are in degrees.
	FieldAngle FieldType = iota
	// FieldHeight points are object heights in mm.
	FieldHeight
)

func (t FieldType) String() string {
	if t == FieldHeight {
		return "height"
	}
	return "angle"
}

// ParseFieldType maps object row types. Rectangle variants are heights.
func ParseFieldType(s string) (FieldType, error) {
	l := strings.ToLower(strings.TrimSpace(s))
	switch {
	case l == "" || strings.HasPrefix(l, "angle") || strings.HasPrefix(l, "point"):
		return FieldAngle, nil
	case strings.HasPrefix(l, "height") || strings.HasPrefix(l, "rect"):
		return FieldHeight, nil
	}
	return FieldAngle, fmt.Errorf("unknown field type %q", s)
}

// Field is one object point.
type Field struct {
	Type   FieldType
	X, Y   float64
	Weight float64
}

// Radial returns the field magnitude √(x²+y²).
func (f Field) Radial() float64 { return math.Hypot(f.X, f.Y) }

// Fields is an ordered field set.
type Fields []Field

// At returns the 1-based field, defaulting to the first (or on-axis) field
// for n ≤ 0.
func (f Fields) At(n int) (Field, error) {
	if len(f) == 0 {
		return Field{}, nil
	}
	if n <= 0 {
		return f[0], nil
	}
	if n > len(f) {
		return Field{}, fmt.Errorf("field %d out of range (have %d)", n, len(f))
	}
	return f[n-1], nil
}

// MaxRadial returns the largest field magnitude.
func (f Fields) MaxRadial() (Field, float64) {
	var best Field
	m := -1.0
	for _, fl := range f {
		if r := fl.Radial(); r > m {
			best, m = fl, r
		}
	}
	return best, math.Max(m, 0)
}
