// Package paraxial implements first-order (h, α) ray tracing.
//
// The reduced angle is α = −n·u, so refraction is α' = α + h·φ with surface
// power φ = (n' − n)·c, and transfer over a thickness t in index n' is
// h' = h − t·α'/n'. Mirrors use φ = −2·n·c in an unfolded frame: the
// medium index is unchanged and the following thickness stays positive
// along the flipped axis. Coordinate breaks have no power; their thickness
// still transfers.
package paraxial

import (
	"errors"
	"fmt"
	"math"

	"github.com/banshee-data/lens.design/internal/optics"
)

// minDistance replaces zero object distances so the launch slope is defined.
const minDistance = 1e-18

// afocalAlpha is the |α| below which a system is treated as afocal.
const afocalAlpha = 1e-10

// ErrDegenerate is returned for sequences the paraxial model cannot trace.
var ErrDegenerate = errors.New("degenerate paraxial system")

// State is a paraxial ray at one surface, after refraction.
type State struct {
	H     float64
	Alpha float64
}

// System is a surface sequence with the medium index after each surface at
// one wavelength.
type System struct {
	Surfaces []optics.Surface
	N        []float64
}

// NewSystem pairs surfaces with indices.
func NewSystem(surfaces []optics.Surface, n []float64) (System, error) {
	if len(surfaces) < 2 {
		return System{}, fmt.Errorf("%w: need at least two surfaces, got %d", ErrDegenerate, len(surfaces))
	}
	if len(n) != len(surfaces) {
		return System{}, fmt.Errorf("%w: %d indices for %d surfaces", ErrDegenerate, len(n), len(surfaces))
	}
	for i, v := range n {
		if !(v > 0) {
			return System{}, fmt.Errorf("%w: index %g after surface %d", ErrDegenerate, v, i)
		}
	}
	return System{Surfaces: surfaces, N: n}, nil
}

// Power returns the optical power of surface j.
func (s System) Power(j int) float64 {
	if j <= 0 {
		return 0
	}
	sf := s.Surfaces[j]
	if !sf.IsPhysical() {
		return 0
	}
	c := sf.Curvature()
	if sf.Reflective {
		return -2 * s.N[j-1] * c
	}
	return (s.N[j] - s.N[j-1]) * c
}

// element is one step of a trace: refract with power, then transfer t in n.
type element struct {
	surface int
	power   float64
	t       float64
	n       float64
}

func propagate(elems []element, h, a float64) []State {
	out := make([]State, len(elems))
	for k, e := range elems {
		a += h * e.power
		out[k] = State{H: h, Alpha: a}
		if k < len(elems)-1 {
			h -= e.t * a / e.n
		}
	}
	return out
}

// forward returns elements for surfaces from..to in sequence order.
func (s System) forward(from, to int) []element {
	var out []element
	for j := from; j <= to; j++ {
		out = append(out, element{surface: j, power: s.Power(j), t: s.Surfaces[j].Thickness, n: s.N[j]})
	}
	return out
}

// reversed returns elements for surfaces from down to to, traversed
// backwards. Powers are invariant under reversal.
func (s System) reversed(from, to int) []element {
	var out []element
	for j := from; j >= to; j-- {
		out = append(out, element{surface: j, power: s.Power(j), t: s.Surfaces[j-1].Thickness, n: s.N[j-1]})
	}
	return out
}

// imageOf images an axial point objDist ahead of elems[0] in index n0. It
// returns the image distance after the last element and the magnification.
func imageOf(elems []element, objDist, n0 float64) (dist, mag float64) {
	if len(elems) == 0 {
		return -objDist, 1
	}
	if objDist == 0 {
		objDist = minDistance
	}
	a0 := -n0
	st := propagate(elems, objDist, a0)
	last := st[len(st)-1]
	if math.Abs(last.Alpha) < afocalAlpha {
		return math.Inf(1), 0
	}
	nLast := elems[len(elems)-1].n
	return last.H * nLast / last.Alpha, a0 / last.Alpha
}

// Trace runs a ray launched at surface 1 with height h and reduced angle a
// in object space through every surface up to and including the image.
// States are indexed by surface; index 0 holds the launch values.
func (s System) Trace(h, a float64) []State {
	img := optics.ImageIndex(s.Surfaces)
	st := propagate(s.forward(1, img), h, a)
	return append([]State{{H: h, Alpha: a}}, st...)
}
