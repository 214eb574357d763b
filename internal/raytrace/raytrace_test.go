package raytrace

import (
	"math"
	"testing"

	"github.com/banshee-data/lens.design/internal/glass"
	"github.com/banshee-data/lens.design/internal/optics"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/spatial/r3"
)

func surf(kind optics.SurfaceKind, radius, thickness, semi float64, material string) optics.Surface {
	return optics.Surface{Kind: kind, Profile: optics.NewSphere(radius), Thickness: thickness, SemiDiameter: semi, Material: material}
}

func singlet() []optics.Surface {
	return []optics.Surface{
		surf(optics.KindObject, math.Inf(1), math.Inf(1), 0, ""),
		surf(optics.KindStop, 50, 5, 10, "N-BK7"),
		surf(optics.KindStandard, -50, 46.7, 10, ""),
		surf(optics.KindImage, math.Inf(1), 0, 0, ""),
	}
}

func mustSystem(t *testing.T, s []optics.Surface, n []float64) *System {
	t.Helper()
	sys, err := NewSystem(s, n, Options{})
	require.NoError(t, err)
	return sys
}

func assertVec(t *testing.T, want, got r3.Vec, delta float64) {
	t.Helper()
	assert.InDelta(t, want.X, got.X, delta, "x")
	assert.InDelta(t, want.Y, got.Y, delta, "y")
	assert.InDelta(t, want.Z, got.Z, delta, "z")
}

func TestRefract(t *testing.T) {
	z := r3.Vec{Z: 1}

	out, ok := Refract(z, z, 1, 1.5)
	require.True(t, ok)
	assertVec(t, z, out, 1e-15)

	th := 30 * math.Pi / 180
	d := r3.Vec{Y: math.Sin(th), Z: math.Cos(th)}
	out, ok = Refract(d, r3.Scale(-1, z), 1, 1.5)
	require.True(t, ok)
	assert.InDelta(t, math.Sin(th)/1.5, out.Y, 1e-14)
	assert.InDelta(t, 1, r3.Norm(out), 1e-14)

	steep := r3.Vec{Y: math.Sin(60 * math.Pi / 180), Z: math.Cos(60 * math.Pi / 180)}
	_, ok = Refract(steep, z, 1.5, 1)
	assert.False(t, ok)
}

func TestReflect(t *testing.T) {
	d := r3.Unit(r3.Vec{Y: 1, Z: 1})
	got := Reflect(d, r3.Vec{Z: 1})
	assertVec(t, r3.Unit(r3.Vec{Y: 1, Z: -1}), got, 1e-15)
}

func TestFrameBreakOrder(t *testing.T) {
	b := optics.CoordBreak{DY: 2, TiltX: 90}
	dt := Identity.Break(b)
	assertVec(t, r3.Vec{Y: 2}, dt.Origin, 1e-15)
	assertVec(t, r3.Vec{Y: -1}, dt.Z, 1e-15)

	b.Order = optics.TiltThenDecenter
	td := Identity.Break(b)
	// The shift lands along the tilted Y axis, which now points along +Z.
	assertVec(t, r3.Vec{Z: 2}, td.Origin, 1e-15)

	p := r3.Vec{X: 1, Y: 2, Z: 3}
	assertVec(t, p, td.ToWorld(td.ToLocal(p)), 1e-14)

	f := Identity.Flip()
	assertVec(t, r3.Vec{Z: -1}, f.Z, 0)
	assertVec(t, r3.Vec{Y: 1}, f.Y, 0)
}

func TestTraceSingletFocus(t *testing.T) {
	s := singlet()
	n := []float64{1, 1.5168, 1, 1}
	sys := mustSystem(t, s, n)

	axial := sys.Trace(Ray{Origin: r3.Vec{Z: -10}, Dir: r3.Vec{Z: 1}})
	require.True(t, axial.OK())
	assertVec(t, r3.Vec{Z: 51.7}, axial.Points[3], 1e-12)

	// A near-axis ray crosses the axis close to the paraxial back focus.
	near := sys.Trace(Ray{Origin: r3.Vec{Y: 0.01, Z: -10}, Dir: r3.Vec{Z: 1}})
	require.True(t, near.OK())
	assert.InDelta(t, 0, near.Image().Y, 1e-3)
	assert.Positive(t, near.OPL)
}

func TestTraceApertureClip(t *testing.T) {
	sys := mustSystem(t, singlet(), []float64{1, 1.5168, 1, 1})
	p := sys.Trace(Ray{Origin: r3.Vec{Y: 11, Z: -10}, Dir: r3.Vec{Z: 1}})
	assert.Equal(t, StatusAperture, p.Status)
	assert.Equal(t, 1, p.Failed)

	free, err := NewSystem(singlet(), []float64{1, 1.5168, 1, 1}, Options{IgnoreApertures: true})
	require.NoError(t, err)
	assert.True(t, free.Trace(Ray{Origin: r3.Vec{Y: 11, Z: -10}, Dir: r3.Vec{Z: 1}}).OK())
}

func TestTraceTIR(t *testing.T) {
	s := []optics.Surface{
		surf(optics.KindObject, math.Inf(1), 10, 0, "N-BK7"),
		surf(optics.KindStandard, math.Inf(1), 10, 100, ""),
		surf(optics.KindImage, math.Inf(1), 0, 0, ""),
	}
	sys := mustSystem(t, s, []float64{1.5, 1, 1})
	th := 60 * math.Pi / 180
	p := sys.Trace(Ray{Origin: r3.Vec{Z: -10}, Dir: r3.Vec{Y: math.Sin(th), Z: math.Cos(th)}, N: 1.5})
	assert.Equal(t, StatusTIR, p.Status)
	assert.Equal(t, 1, p.Failed)
}

func TestTraceConcaveMirror(t *testing.T) {
	s := []optics.Surface{
		surf(optics.KindObject, math.Inf(1), math.Inf(1), 0, ""),
		surf(optics.KindStop, -100, 50, 20, optics.MaterialMirror),
		surf(optics.KindImage, math.Inf(1), 0, 0, ""),
	}
	s[1].Reflective = true
	sys := mustSystem(t, s, []float64{1, 1, 1})

	p := sys.Trace(Ray{Origin: r3.Vec{Y: 0.01, Z: -10}, Dir: r3.Vec{Z: 1}})
	require.True(t, p.OK())
	assert.Less(t, p.Dirs[1].Z, 0.0)
	assert.InDelta(t, -50, p.Points[2].Z, 1e-3)
	assert.InDelta(t, 0, p.Image().Y, 1e-5)
}

func TestTraceCoordBreakDecenter(t *testing.T) {
	s := []optics.Surface{
		surf(optics.KindObject, math.Inf(1), math.Inf(1), 0, ""),
		surf(optics.KindStop, math.Inf(1), 5, 10, ""),
		{Kind: optics.KindCoordBreak, Break: optics.CoordBreak{DY: 1}, Thickness: 5},
		surf(optics.KindImage, math.Inf(1), 0, 0, ""),
	}
	sys := mustSystem(t, s, []float64{1, 1, 1, 1})
	p := sys.Trace(Ray{Origin: r3.Vec{Z: -1}, Dir: r3.Vec{Z: 1}})
	require.True(t, p.OK())
	assertVec(t, r3.Vec{Y: -1}, p.Image(), 1e-12)
	assert.InDelta(t, 11, p.OPL, 1e-12)
}

func TestTraceAsphereDivergence(t *testing.T) {
	s := singlet()
	s[1].Profile = optics.EvenAsphere{C: 0.2, Coef: [10]float64{0, 1e-3}}
	s[1].SemiDiameter = 10
	sys := mustSystem(t, s, []float64{1, 1.5168, 1, 1})

	far := sys.Trace(Ray{Origin: r3.Vec{Y: 8, Z: -10}, Dir: r3.Vec{Z: 1}})
	assert.Equal(t, StatusAsphereDivergence, far.Status)

	near := sys.Trace(Ray{Origin: r3.Vec{Y: 0.5, Z: -10}, Dir: r3.Vec{Z: 1}})
	assert.Equal(t, StatusOK, near.Status)

	ok, total := Survival([]Path{far, near})
	assert.Equal(t, 1, ok)
	assert.Equal(t, 2, total)
}

func TestNewSystemRejects(t *testing.T) {
	_, err := NewSystem(singlet(), []float64{1, 1}, Options{})
	assert.ErrorIs(t, err, ErrInvalidSystem)
	_, err = NewSystem(singlet()[:1], []float64{1}, Options{})
	assert.ErrorIs(t, err, ErrInvalidSystem)
	_, err = NewSystem(singlet(), []float64{1, -1, 1, 1}, Options{})
	assert.ErrorIs(t, err, ErrInvalidSystem)
}

func TestModelLaunchAimsAtPupil(t *testing.T) {
	m, err := NewModel(singlet(), optics.Wavelengths{{UM: glass.Lined, Weight: 1, Primary: true}},
		optics.Fields{{Type: optics.FieldAngle}, {Type: optics.FieldAngle, Y: 5}}, glass.DefaultCatalog(), Options{})
	require.NoError(t, err)
	assert.True(t, m.ObjectAtInfinity())
	assert.False(t, m.Afocal())

	for _, f := range m.Fields {
		chief := m.Chief(f, 0)
		require.True(t, chief.OK())
		// The stop is the first surface, so the chief ray crosses its vertex.
		assert.InDelta(t, 0, chief.Local[1].Y, 1e-9)
	}
	edge := m.Trace(m.Fields[0], 0, 0, 0.99)
	require.True(t, edge.OK())
	assert.InDelta(t, 9.9, edge.Local[1].Y, 1e-9)
}

func TestModelRimRaysPassStop(t *testing.T) {
	m, err := NewModel(singlet(), nil, optics.Fields{{Type: optics.FieldAngle}}, glass.DefaultCatalog(), Options{})
	require.NoError(t, err)
	for k := 0; k < 360; k++ {
		a := float64(k) * math.Pi / 180
		p := m.Trace(m.Fields[0], 0, math.Cos(a), math.Sin(a))
		assert.True(t, p.OK(), "azimuth %d: %v", k, p.Status)
	}
	assert.True(t, optics.InsideAperture(10*(1+1e-15), 0, 10))
	assert.False(t, optics.InsideAperture(10.001, 0, 10))
}

func TestModelFiniteObject(t *testing.T) {
	s := singlet()
	s[0].Thickness = 200
	m, err := NewModel(s, nil, optics.Fields{{Type: optics.FieldHeight, Y: 3}}, glass.DefaultCatalog(), Options{})
	require.NoError(t, err)
	r := m.Launch(m.Fields[0], 0, 0)
	assertVec(t, r3.Vec{Y: 3, Z: -200}, r.Origin, 0)
	assert.Less(t, r.Dir.Y, 0.0)
	assert.Equal(t, 0, m.Primary())
	assert.Len(t, m.Wavelengths, 1)
}
