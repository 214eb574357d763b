package raytrace

import (
	"fmt"
	"math"

	"github.com/banshee-data/lens.design/internal/optics"
	"github.com/banshee-data/lens.design/internal/paraxial"
	"gonum.org/v1/gonum/spatial/r3"
)

// Model bundles a surface sequence with its spectrum and fields, one
// System per wavelength and the matching paraxial data. Wavelength and field
// arguments are zero-based.
type Model struct {
	Surfaces    []optics.Surface
	Wavelengths optics.Wavelengths
	Fields      optics.Fields

	systems  []*System
	paraxial []paraxial.Result
	parSys   []paraxial.System
	primary  int
}

// NewModel resolves indices per wavelength and prepares every System.
func NewModel(surfaces []optics.Surface, wls optics.Wavelengths, fields optics.Fields, r optics.IndexResolver, opt Options) (*Model, error) {
	if len(wls) == 0 {
		wls = optics.Wavelengths{{UM: wls.Primary(), Weight: 1, Primary: true}}
	}
	if len(fields) == 0 {
		fields = optics.Fields{{Type: optics.FieldAngle, Weight: 1}}
	}
	m := &Model{
		Surfaces:    optics.Clone(surfaces),
		Wavelengths: wls,
		Fields:      fields,
		primary:     wls.PrimaryIndex(),
	}
	chief, _ := fields.MaxRadial()
	for i, wl := range wls {
		n, err := optics.Indices(surfaces, r, wl.UM)
		if err != nil {
			return nil, fmt.Errorf("wavelength %g µm: %w", wl.UM, err)
		}
		sys, err := NewSystem(surfaces, n, opt)
		if err != nil {
			return nil, err
		}
		ps, err := paraxial.NewSystem(surfaces, n)
		if err != nil {
			return nil, err
		}
		pr, err := paraxial.Compute(ps, paraxial.Options{Field: chief})
		if err != nil {
			return nil, fmt.Errorf("wavelength %d: %w", i+1, err)
		}
		m.systems = append(m.systems, sys)
		m.parSys = append(m.parSys, ps)
		m.paraxial = append(m.paraxial, pr)
	}
	return m, nil
}

// Primary returns the primary wavelength index.
func (m *Model) Primary() int { return m.primary }

// System returns the tracer at wavelength w.
func (m *Model) System(w int) *System { return m.systems[w] }

// Paraxial returns first-order data at wavelength w.
func (m *Model) Paraxial(w int) paraxial.Result { return m.paraxial[w] }

// ParaxialSystem returns the paraxial trace at wavelength w.
func (m *Model) ParaxialSystem(w int) paraxial.System { return m.parSys[w] }

// ObjectAtInfinity reports whether the object distance is infinite.
func (m *Model) ObjectAtInfinity() bool { return math.IsInf(m.Surfaces[0].Thickness, 1) }

// Afocal reports whether the primary paraxial EFL is infinite.
func (m *Model) Afocal() bool { return m.paraxial[m.primary].Afocal() }

// pupil returns the entrance pupil position and radius at the primary
// wavelength, substituting the first surface for a pupil at infinity.
func (m *Model) pupil() (pos, radius float64) {
	pr := m.paraxial[m.primary]
	pos, radius = pr.EntrancePupilPos, pr.EntrancePupilDia/2
	if math.IsInf(pos, 0) || math.IsNaN(pos) {
		pos = 0
	}
	if math.IsInf(radius, 0) || math.IsNaN(radius) {
		radius = pr.StopSemiDiameter
	}
	return pos, radius
}

// isAngle reports whether f is launched as a direction. Height fields with
// an object at infinity have no object point and are read as angles.
func (m *Model) isAngle(f optics.Field) bool {
	return f.Type == optics.FieldAngle || m.ObjectAtInfinity()
}

// Launch builds the ray from field f through normalised entrance pupil
// coordinates (px, py) in [−1, 1]. Angle-field rays start on a common plane
// normal to their direction, so their launch phase is equal.
func (m *Model) Launch(f optics.Field, px, py float64) Ray {
	pos, radius := m.pupil()
	target := r3.Vec{X: px * radius, Y: py * radius, Z: pos}
	n0 := m.systems[m.primary].Index(0)
	if m.isAngle(f) {
		dir := r3.Unit(r3.Vec{
			X: math.Tan(f.X * math.Pi / 180),
			Y: math.Tan(f.Y * math.Pi / 180),
			Z: 1,
		})
		back := math.Abs(pos) + 2*radius + 10
		for _, s := range m.Surfaces[1:] {
			if s.HasAperture() {
				back = math.Max(back, math.Abs(pos)+2*s.SemiDiameter+10)
				break
			}
		}
		anchor := r3.Sub(r3.Vec{Z: pos}, r3.Scale(back, dir))
		start := r3.Sub(target, r3.Scale(r3.Dot(r3.Sub(target, anchor), dir), dir))
		return Ray{Origin: start, Dir: dir, N: n0}
	}
	obj := r3.Vec{X: f.X, Y: f.Y, Z: -m.Surfaces[0].Thickness}
	dir := r3.Sub(target, obj)
	if r3.Norm(dir) == 0 {
		dir = r3.Vec{Z: 1}
	}
	return Ray{Origin: obj, Dir: r3.Unit(dir), N: n0}
}

// Trace launches and traces one ray at wavelength w.
func (m *Model) Trace(f optics.Field, w int, px, py float64) Path {
	return m.systems[w].Trace(m.Launch(f, px, py))
}

// Chief traces the ray through the centre of the entrance pupil.
func (m *Model) Chief(f optics.Field, w int) Path {
	return m.Trace(f, w, 0, 0)
}

// ImageFrame returns the image surface frame at the primary wavelength.
func (m *Model) ImageFrame() Frame { return m.systems[m.primary].ImageFrame() }
