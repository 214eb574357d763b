// Package raytrace traces finite rays through a sequential surface model.
//
// Each surface carries its own local frame. Rays are intersected with the
// surface profile in that frame, clipped by the clear aperture, refracted by
// vector Snell or reflected, and returned to world coordinates. Coordinate
// breaks only move the frame of the surfaces that follow; mirrors flip it.
package raytrace

import (
	"errors"
	"fmt"
	"math"

	"github.com/banshee-data/lens.design/internal/optics"
	"gonum.org/v1/gonum/spatial/r3"
)

// Status is the per-ray outcome. It is never an error.
type Status int

const (
	StatusOK Status = iota
	StatusMiss
	StatusAperture
	StatusTIR
	StatusAsphereDivergence
)

var statusNames = [...]string{"ok", "miss", "aperture", "tir", "asphere divergence"}

func (s Status) String() string {
	if int(s) < len(statusNames) {
		return statusNames[s]
	}
	return fmt.Sprintf("status(%d)", int(s))
}

// ErrInvalidSystem is returned when surfaces cannot be traced.
var ErrInvalidSystem = errors.New("invalid ray trace system")

// Ray is a unit-direction ray in world coordinates travelling in a medium.
type Ray struct {
	Origin r3.Vec
	Dir    r3.Vec
	N      float64
}

// Options tune a System.
type Options struct {
	MaxIterations int
	Tolerance     float64
	// IgnoreApertures disables semi-diameter clipping, used when aiming.
	IgnoreApertures bool
}

// Path is a traced ray. Points and Dirs are indexed by surface, with index 0
// holding the launch; entries past Failed are zero.
type Path struct {
	Status Status
	// Failed is the surface where tracing stopped, or -1.
	Failed int
	Points []r3.Vec // world intersection points
	Dirs   []r3.Vec // world directions after each surface
	Local  []r3.Vec // intersection points in each surface frame
	OPL    float64  // optical path from launch to the last reached surface
}

// OK reports whether the ray reached the image.
func (p Path) OK() bool { return p.Status == StatusOK }

// Image returns the local intersection at the last surface.
func (p Path) Image() r3.Vec { return p.Local[len(p.Local)-1] }

// System is an immutable traceable sequence at one wavelength.
type System struct {
	surfaces []optics.Surface
	n        []float64
	frames   []Frame
	opt      Options
}

// NewSystem pairs surfaces with the index after each surface.
func NewSystem(surfaces []optics.Surface, indices []float64, opt Options) (*System, error) {
	if len(surfaces) < 2 {
		return nil, fmt.Errorf("%w: need at least object and image, got %d surfaces", ErrInvalidSystem, len(surfaces))
	}
	if len(indices) != len(surfaces) {
		return nil, fmt.Errorf("%w: %d indices for %d surfaces", ErrInvalidSystem, len(indices), len(surfaces))
	}
	own := optics.Clone(surfaces)
	for i := range own {
		if !(indices[i] > 0) {
			return nil, fmt.Errorf("%w: index %g after surface %d", ErrInvalidSystem, indices[i], i)
		}
		if own[i].Profile == nil {
			own[i].Profile = optics.Plane{}
		}
	}
	return &System{
		surfaces: own,
		n:        append([]float64(nil), indices...),
		frames:   frames(surfaces),
		opt:      opt,
	}, nil
}

// Len returns the number of surfaces including object and image.
func (s *System) Len() int { return len(s.surfaces) }

// Surfaces returns a copy of the traced sequence.
func (s *System) Surfaces() []optics.Surface { return optics.Clone(s.surfaces) }

// Index returns the medium index after surface j.
func (s *System) Index(j int) float64 { return s.n[j] }

// Frame returns the vertex frame of surface j.
func (s *System) Frame(j int) Frame { return s.frames[j] }

// ImageFrame returns the frame of the last surface.
func (s *System) ImageFrame() Frame { return s.frames[len(s.frames)-1] }

// Trace runs r from surface 1 through the image surface.
func (s *System) Trace(r Ray) Path {
	m := len(s.surfaces)
	p := Path{
		Failed: -1,
		Points: make([]r3.Vec, m),
		Dirs:   make([]r3.Vec, m),
		Local:  make([]r3.Vec, m),
	}
	pos, dir := r.Origin, r3.Unit(r.Dir)
	n := r.N
	if n <= 0 {
		n = s.n[0]
	}
	p.Points[0], p.Dirs[0] = pos, dir
	p.Local[0] = s.frames[0].ToLocal(pos)

	for j := 1; j < m; j++ {
		sf := s.surfaces[j]
		fr := s.frames[j]
		if sf.Kind == optics.KindCoordBreak {
			p.Points[j], p.Dirs[j] = pos, dir
			p.Local[j] = fr.Break(sf.Break).ToLocal(pos)
			continue
		}

		o := fr.ToLocal(pos)
		d := fr.DirToLocal(dir)
		iopt := optics.IntersectOptions{MaxIterations: s.opt.MaxIterations, Tolerance: s.opt.Tolerance}
		if sf.HasAperture() {
			iopt.MaxRadius = sf.SemiDiameter
		}
		t, st := sf.Profile.Intersect(o, d, iopt)
		switch st {
		case optics.IntersectMiss:
			return p.fail(StatusMiss, j)
		case optics.IntersectDiverged:
			return p.fail(StatusAsphereDivergence, j)
		}
		hit := r3.Add(o, r3.Scale(t, d))
		p.OPL += n * t
		p.Local[j] = hit
		p.Points[j] = fr.ToWorld(hit)
		pos = p.Points[j]

		if !s.opt.IgnoreApertures && sf.HasAperture() &&
			!optics.InsideAperture(hit.X, hit.Y, sf.SemiDiameter) {
			p.Dirs[j] = dir
			return p.fail(StatusAperture, j)
		}

		if sf.IsPhysical() {
			normal := optics.Normal(sf.Profile, hit)
			if sf.Reflective {
				d = Reflect(d, normal)
			} else if n2 := s.n[j]; n2 != n {
				var ok bool
				d, ok = Refract(d, normal, n, n2)
				if !ok {
					p.Dirs[j] = dir
					return p.fail(StatusTIR, j)
				}
				n = n2
			}
		} else {
			n = s.n[j]
		}
		dir = r3.Unit(fr.DirToWorld(d))
		p.Dirs[j] = dir
	}
	return p
}

func (p Path) fail(st Status, j int) Path {
	p.Status = st
	p.Failed = j
	return p
}

// Refract applies vector Snell's law for a unit direction d crossing a
// surface with unit normal nrm from index n1 into n2. It reports false on
// total internal reflection.
func Refract(d, nrm r3.Vec, n1, n2 float64) (r3.Vec, bool) {
	cos1 := r3.Dot(d, nrm)
	if cos1 < 0 {
		nrm = r3.Scale(-1, nrm)
		cos1 = -cos1
	}
	mu := n1 / n2
	k := 1 - mu*mu*(1-cos1*cos1)
	if k < 0 {
		return r3.Vec{}, false
	}
	out := r3.Add(r3.Scale(mu, d), r3.Scale(math.Sqrt(k)-mu*cos1, nrm))
	return r3.Unit(out), true
}

// Reflect mirrors d about the normal: d' = d − 2(d·N)N.
func Reflect(d, nrm r3.Vec) r3.Vec {
	return r3.Sub(d, r3.Scale(2*r3.Dot(d, nrm), nrm))
}

// Survival counts rays that reached the image.
func Survival(paths []Path) (ok, total int) {
	for _, p := range paths {
		if p.OK() {
			ok++
		}
	}
	return ok, len(paths)
}
