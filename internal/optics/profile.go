package optics

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"
)

// IntersectStatus reports the outcome of a profile intersection.
type IntersectStatus int

const (
	IntersectOK IntersectStatus = iota
	IntersectMiss
	IntersectDiverged
)

// IntersectOptions tune iterative intersection.
type IntersectOptions struct {
	MaxIterations int
	Tolerance     float64
	// MaxRadius is the clear aperture used to prefer in-aperture roots; 0 disables it.
	MaxRadius float64
}

func (o IntersectOptions) withDefaults() IntersectOptions {
	if o.MaxIterations <= 0 {
		o.MaxIterations = 50
	}
	if o.Tolerance <= 0 {
		o.Tolerance = 1e-12
	}
	return o
}

// Profile is the closed set of surface shapes. All geometry is in the local
// frame with the vertex at the origin.
type Profile interface {
	// Curvature is the vertex curvature used by the paraxial trace.
	Curvature() float64
	// Sag returns z at (x, y), NaN where the surface is undefined.
	Sag(x, y float64) float64
	// Slope returns (∂z/∂x, ∂z/∂y).
	Slope(x, y float64) (float64, float64)
	// Intersect returns the path length t along unit direction d from o.
	Intersect(o, d r3.Vec, opt IntersectOptions) (float64, IntersectStatus)
	isProfile()
}

// Normal returns the unit surface normal at p, oriented towards +Z.
func Normal(p Profile, at r3.Vec) r3.Vec {
	sx, sy := p.Slope(at.X, at.Y)
	return r3.Unit(r3.Vec{X: -sx, Y: -sy, Z: 1})
}

// Plane is a flat surface.
type Plane struct{}

func (Plane) isProfile()                             {}
func (Plane) Curvature() float64                     { return 0 }
func (Plane) Sag(x, y float64) float64               { return 0 }
func (Plane) Slope(x, y float64) (float64, float64) { return 0, 0 }

func (Plane) Intersect(o, d r3.Vec, _ IntersectOptions) (float64, IntersectStatus) {
	return planeIntersect(o, d)
}

func planeIntersect(o, d r3.Vec) (float64, IntersectStatus) {
	if math.Abs(d.Z) < 1e-15 {
		return 0, IntersectMiss
	}
	return -o.Z / d.Z, IntersectOK
}

// Sphere is a spherical surface of curvature C = 1/R.
type Sphere struct {
	C float64
}

// NewSphere builds a sphere from radius, returning Plane for flat radii.
func NewSphere(radius float64) Profile {
	c := CurvatureFromRadius(radius)
	if c == 0 {
		return Plane{}
	}
	return Sphere{C: c}
}

func (Sphere) isProfile()           {}
func (s Sphere) Curvature() float64 { return s.C }

func (s Sphere) Sag(x, y float64) float64 {
	return conicSag(s.C, 0, x*x+y*y)
}

func (s Sphere) Slope(x, y float64) (float64, float64) {
	f := conicSlopeOverR(s.C, 0, x*x+y*y)
	return x * f, y * f
}

func (s Sphere) Intersect(o, d r3.Vec, _ IntersectOptions) (float64, IntersectStatus) {
	return sphereIntersect(s.C, o, d)
}

// sphereIntersect solves c|p|² − 2p_z = 0 for the root nearest the vertex.
func sphereIntersect(c float64, o, d r3.Vec) (float64, IntersectStatus) {
	if c == 0 {
		return planeIntersect(o, d)
	}
	b := d.Z - c*r3.Dot(o, d)
	cc := c*r3.Dot(o, o) - 2*o.Z
	disc := b*b - c*cc
	if disc < 0 {
		return 0, IntersectMiss
	}
	den := b + math.Copysign(math.Sqrt(disc), b)
	if den == 0 {
		return 0, IntersectMiss
	}
	return cc / den, IntersectOK
}

// EvenAsphere is a conic plus even polynomial terms Coef[i]·r^(2i+2).
type EvenAsphere struct {
	C    float64
	K    float64
	Coef [10]float64
}

func (EvenAsphere) isProfile()           {}
func (a EvenAsphere) Curvature() float64 { return a.C }

func (a EvenAsphere) Sag(x, y float64) float64 {
	r2 := x*x + y*y
	z := conicSag(a.C, a.K, r2)
	p := r2
	for _, ci := range a.Coef {
		z += ci * p
		p *= r2
	}
	return z
}

func (a EvenAsphere) Slope(x, y float64) (float64, float64) {
	r2 := x*x + y*y
	f := conicSlopeOverR(a.C, a.K, r2)
	// d/dr Σ aᵢ r^(2i) divided by r is Σ 2i·aᵢ r^(2i−2).
	p := 1.0
	for i, ci := range a.Coef {
		f += float64(2*(i+1)) * ci * p
		p *= r2
	}
	return x * f, y * f
}

func (a EvenAsphere) Intersect(o, d r3.Vec, opt IntersectOptions) (float64, IntersectStatus) {
	return newtonIntersect(a, a.C, o, d, opt)
}

// OddAsphere is a conic plus odd polynomial terms Coef[i]·r^(2i+3).
type OddAsphere struct {
	C    float64
	K    float64
	Coef [10]float64
}

func (OddAsphere) isProfile()           {}
func (a OddAsphere) Curvature() float64 { return a.C }

func (a OddAsphere) Sag(x, y float64) float64 {
	r2 := x*x + y*y
	r := math.Sqrt(r2)
	z := conicSag(a.C, a.K, r2)
	p := r2 * r
	for _, ci := range a.Coef {
		z += ci * p
		p *= r2
	}
	return z
}

func (a OddAsphere) Slope(x, y float64) (float64, float64) {
	r2 := x*x + y*y
	r := math.Sqrt(r2)
	f := conicSlopeOverR(a.C, a.K, r2)
	p := r
	for i, ci := range a.Coef {
		f += float64(2*i+3) * ci * p
		p *= r2
	}
	return x * f, y * f
}

func (a OddAsphere) Intersect(o, d r3.Vec, opt IntersectOptions) (float64, IntersectStatus) {
	return newtonIntersect(a, a.C, o, d, opt)
}

// conicSag is c·r²/(1+√(1−(1+k)c²r²)); NaN past the conic's edge.
func conicSag(c, k, r2 float64) float64 {
	if c == 0 {
		return 0
	}
	rad := 1 - (1+k)*c*c*r2
	if rad < 0 {
		return math.NaN()
	}
	return c * r2 / (1 + math.Sqrt(rad))
}

// conicSlopeOverR is (dz/dr)/r = c/√(1−(1+k)c²r²).
func conicSlopeOverR(c, k, r2 float64) float64 {
	if c == 0 {
		return 0
	}
	rad := 1 - (1+k)*c*c*r2
	if rad <= 0 {
		return math.NaN()
	}
	return c / math.Sqrt(rad)
}

// apertureSlack widens a clear aperture by a relative 1e-12 so rays aimed
// exactly at the rim survive rounding.
const apertureSlack = 1 + 1e-12

// InsideAperture reports whether (x, y) lies within semi-diameter semi.
func InsideAperture(x, y, semi float64) bool {
	return x*x+y*y <= semi*semi*apertureSlack
}

// newtonIntersect solves z(t) − sag(x(t), y(t)) = 0 from several seeds:
// both sphere roots of the base curvature and the vertex plane. Roots at or
// behind the ray origin are skipped. A root inside MaxRadius is preferred;
// otherwise the first forward root is returned.
func newtonIntersect(p Profile, c float64, o, d r3.Vec, opt IntersectOptions) (float64, IntersectStatus) {
	opt = opt.withDefaults()

	var seeds []float64
	if t, st := sphereIntersect(c, o, d); st == IntersectOK {
		seeds = append(seeds, t)
		if c != 0 {
			// The far root of the same sphere.
			b := d.Z - c*r3.Dot(o, d)
			cc := c*r3.Dot(o, o) - 2*o.Z
			if disc := b*b - c*cc; disc >= 0 {
				seeds = append(seeds, (b+math.Sqrt(disc))/c, (b-math.Sqrt(disc))/c)
			}
		}
	}
	if t, st := planeIntersect(o, d); st == IntersectOK {
		seeds = append(seeds, t)
	}
	if len(seeds) == 0 {
		return 0, IntersectMiss
	}

	first, found, behind := 0.0, false, false
	for _, t0 := range seeds {
		t, ok := newtonFrom(p, o, d, t0, opt)
		if !ok {
			continue
		}
		if t <= 0 {
			behind = true
			continue
		}
		if opt.MaxRadius <= 0 {
			return t, IntersectOK
		}
		hit := r3.Add(o, r3.Scale(t, d))
		if InsideAperture(hit.X, hit.Y, opt.MaxRadius) {
			return t, IntersectOK
		}
		if !found {
			first, found = t, true
		}
	}
	switch {
	case found:
		return first, IntersectOK
	case behind:
		return 0, IntersectMiss
	}
	return 0, IntersectDiverged
}

func newtonFrom(p Profile, o, d r3.Vec, t float64, opt IntersectOptions) (float64, bool) {
	for i := 0; i < opt.MaxIterations; i++ {
		x := o.X + t*d.X
		y := o.Y + t*d.Y
		z := o.Z + t*d.Z
		sag := p.Sag(x, y)
		sx, sy := p.Slope(x, y)
		if math.IsNaN(sag) || math.IsNaN(sx) || math.IsNaN(sy) {
			return 0, false
		}
		f := z - sag
		fp := d.Z - sx*d.X - sy*d.Y
		if fp == 0 || math.IsInf(fp, 0) {
			return 0, false
		}
		dt := f / fp
		t -= dt
		if math.IsNaN(t) || math.IsInf(t, 0) {
			return 0, false
		}
		if math.Abs(dt) < opt.Tolerance {
			return t, true
		}
	}
	return 0, false
}

// NewProfile builds the narrowest profile for the given parameters: a Plane
// for zero curvature and no terms, a Sphere for zero conic and terms.
func NewProfile(radius, conic float64, coef [10]float64, odd bool) Profile {
	c := CurvatureFromRadius(radius)
	if odd {
		return OddAsphere{C: c, K: conic, Coef: coef}
	}
	if conic == 0 && coef == ([10]float64{}) {
		if c == 0 {
			return Plane{}
		}
		return Sphere{C: c}
	}
	return EvenAsphere{C: c, K: conic, Coef: coef}
}
