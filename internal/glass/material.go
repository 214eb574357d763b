package glass

import (
	"errors"
	"fmt"
	"math"
	"strings"
)

var (
	// ErrUnknownMaterial is returned when no source holds the requested name.
	ErrUnknownMaterial = errors.New("unknown material")
	// ErrInvalidWavelength is returned for non-positive or non-finite wavelengths.
	ErrInvalidWavelength = errors.New("invalid wavelength")
)

// Air is the sentinel material name for n = 1.
const Air = "AIR"

// Fraunhofer lines in micrometres.
const (
	LineF = 0.4861327
	Lined = 0.5875618
	LineC = 0.6562725
)

// Sellmeier holds the three-term dispersion coefficients. C terms are in µm².
type Sellmeier struct {
	B1 float64 `json:"B1"`
	B2 float64 `json:"B2"`
	B3 float64 `json:"B3"`
	C1 float64 `json:"C1"`
	C2 float64 `json:"C2"`
	C3 float64 `json:"C3"`
}

// Index evaluates n(λ) = sqrt(1 + Σ Bᵢλ²/(λ²−Cᵢ)).
func (s Sellmeier) Index(lambdaUM float64) (float64, error) {
	if err := checkWavelength(lambdaUM); err != nil {
		return 0, err
	}
	l2 := lambdaUM * lambdaUM
	n2 := 1 + s.B1*l2/(l2-s.C1) + s.B2*l2/(l2-s.C2) + s.B3*l2/(l2-s.C3)
	if !(n2 > 0) || math.IsInf(n2, 0) {
		return 0, fmt.Errorf("%w: %g µm is at a dispersion pole", ErrInvalidWavelength, lambdaUM)
	}
	return math.Sqrt(n2), nil
}

// IsZero reports whether no coefficient is set.
func (s Sellmeier) IsZero() bool {
	return s == Sellmeier{}
}

// Material is one catalog entry.
type Material struct {
	Name      string     `json:"name"`
	Nd        float64    `json:"nd"`
	Vd        float64    `json:"vd,omitempty"`
	Sellmeier *Sellmeier `json:"sellmeier,omitempty"`
}

// HasDispersion reports whether Sellmeier coefficients are available.
func (m Material) HasDispersion() bool {
	return m.Sellmeier != nil && !m.Sellmeier.IsZero()
}

// Index returns n at λ. Materials without coefficients return Nd and
// fellBack=true so the caller can warn.
func (m Material) Index(lambdaUM float64) (n float64, fellBack bool, err error) {
	if err := checkWavelength(lambdaUM); err != nil {
		return 0, false, err
	}
	if m.HasDispersion() {
		n, err := m.Sellmeier.Index(lambdaUM)
		return n, false, err
	}
	if m.Nd <= 0 {
		return 0, true, fmt.Errorf("material %s has neither coefficients nor nd", m.Name)
	}
	return m.Nd, true, nil
}

// IsAir reports whether name denotes the unit-index medium.
func IsAir(name string) bool {
	n := strings.TrimSpace(name)
	return n == "" || strings.EqualFold(n, Air)
}

func checkWavelength(lambdaUM float64) error {
	if !(lambdaUM > 0) || math.IsInf(lambdaUM, 0) {
		return fmt.Errorf("%w: %g µm", ErrInvalidWavelength, lambdaUM)
	}
	return nil
}

func normalizeName(name string) string {
	return strings.ToUpper(strings.TrimSpace(name))
}
