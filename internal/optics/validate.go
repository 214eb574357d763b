package optics

import (
	"errors"
	"fmt"
	"math"

	"github.com/banshee-data/lens.design/internal/glass"
)

// ErrInvalidSurface marks a sequence that breaks a structural invariant.
var ErrInvalidSurface = errors.New("invalid surface")

// MaterialResolver reports whether a material name is known.
type MaterialResolver interface {
	Resolves(name string) bool
}

// IndexResolver evaluates a material's refractive index.
type IndexResolver interface {
	IndexAt(material string, lambdaUM float64) (float64, error)
}

// Validate checks the sequence invariants: Object first, exactly one Stop,
// Image last, non-negative finite thickness except on Object, positive
// semi-diameters on physical surfaces and resolvable materials. All
// violations are joined into one error wrapping ErrInvalidSurface.
func Validate(surfaces []Surface, materials MaterialResolver) error {
	var errs []error
	add := func(i int, format string, v ...interface{}) {
		errs = append(errs, fmt.Errorf("%w: surface %d: %s", ErrInvalidSurface, i, fmt.Sprintf(format, v...)))
	}
	if len(surfaces) < 2 {
		return fmt.Errorf("%w: sequence needs at least object and image, got %d surfaces", ErrInvalidSurface, len(surfaces))
	}
	if surfaces[0].Kind != KindObject {
		add(0, "first surface is %s, want Object", surfaces[0].Kind)
	}
	last := len(surfaces) - 1
	if surfaces[last].Kind != KindImage {
		add(last, "last surface is %s, want Image", surfaces[last].Kind)
	}
	stops := 0
	for i, s := range surfaces {
		if s.Kind == KindStop {
			stops++
		}
		if (s.Kind == KindObject && i != 0) || (s.Kind == KindImage && i != last) {
			add(i, "%s surface out of place", s.Kind)
		}
		switch {
		case math.IsNaN(s.Thickness):
			add(i, "thickness is NaN")
		case s.Thickness < 0:
			add(i, "negative thickness %g", s.Thickness)
		case math.IsInf(s.Thickness, 1) && s.Kind != KindObject:
			add(i, "infinite thickness is only valid on the object surface")
		}
		if s.IsPhysical() && !(s.SemiDiameter > 0) {
			add(i, "semi-diameter %g must be positive", s.SemiDiameter)
		}
		if s.Kind != KindObject && !s.Reflective && materials != nil && !glass.IsAir(s.Material) && !materials.Resolves(s.Material) {
			add(i, "material %q does not resolve", s.Material)
		}
	}
	if stops != 1 {
		errs = append(errs, fmt.Errorf("%w: expected exactly one stop, found %d", ErrInvalidSurface, stops))
	}
	return errors.Join(errs...)
}

// Indices returns the refractive index of the medium after each surface at
// lambdaUM. Reflective surfaces keep the incident medium. Unknown materials
// are soft: they contribute n = 1 and are reported through the catalog's
// warning; only hard failures are returned.
func Indices(surfaces []Surface, r IndexResolver, lambdaUM float64) ([]float64, error) {
	out := make([]float64, len(surfaces))
	prev := 1.0
	for i, s := range surfaces {
		if s.Reflective || s.Kind == KindCoordBreak && s.Material == "" {
			out[i] = prev
			continue
		}
		n, err := r.IndexAt(s.Material, lambdaUM)
		if err != nil && !errors.Is(err, glass.ErrUnknownMaterial) {
			return nil, fmt.Errorf("surface %d: %w", i, err)
		}
		out[i] = n
		prev = n
	}
	return out, nil
}
