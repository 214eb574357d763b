package optics

import (
	"math"
	"testing"

	"github.com/banshee-data/lens.design/internal/glass"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/spatial/r3"
)

func TestSphereSagAndNormal(t *testing.T) {
	s := Sphere{C: 1.0 / 50}
	r := 10.0
	want := 50 - math.Sqrt(50*50-r*r)
	assert.InDelta(t, want, s.Sag(r, 0), 1e-12)

	p := r3.Vec{X: r, Y: 0, Z: want}
	n := Normal(s, p)
	// Normal points from the surface towards the centre of curvature.
	toCentre := r3.Unit(r3.Sub(r3.Vec{Z: 50}, p))
	assert.InDelta(t, 1, r3.Dot(n, toCentre), 1e-12)
}

func TestSphereIntersect(t *testing.T) {
	tests := []struct {
		name string
		c    float64
		o, d r3.Vec
		want float64
	}{
		{"axial convex", 1.0 / 50, r3.Vec{Z: -5}, r3.Vec{Z: 1}, 5},
		{"axial concave", -1.0 / 50, r3.Vec{Z: -5}, r3.Vec{Z: 1}, 5},
		{"plane", 0, r3.Vec{X: 1, Z: -3}, r3.Vec{Z: 1}, 3},
		{"off axis", 1.0 / 50, r3.Vec{Y: 10, Z: -1}, r3.Vec{Z: 1}, 1 + 50 - math.Sqrt(2400)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, st := sphereIntersect(tt.c, tt.o, tt.d)
			require.Equal(t, IntersectOK, st)
			assert.InDelta(t, tt.want, got, 1e-10)
		})
	}

	_, st := sphereIntersect(1.0/5, r3.Vec{Y: 10, Z: -1}, r3.Vec{Z: 1})
	assert.Equal(t, IntersectMiss, st)
}

func TestEvenAsphereMatchesSphere(t *testing.T) {
	c := 1.0 / 40
	a := EvenAsphere{C: c}
	s := Sphere{C: c}
	o := r3.Vec{X: 2, Y: 7, Z: -4}
	d := r3.Unit(r3.Vec{X: 0.01, Y: -0.05, Z: 1})

	ta, st := a.Intersect(o, d, IntersectOptions{})
	require.Equal(t, IntersectOK, st)
	ts, _ := s.Intersect(o, d, IntersectOptions{})
	assert.InDelta(t, ts, ta, 1e-10)
}

func TestEvenAsphereSag(t *testing.T) {
	a := EvenAsphere{C: 0.02, K: -1, Coef: [10]float64{1e-4, 1e-6}}
	r := 3.0
	// Paraboloid plus r² and r⁴ terms.
	want := 0.02*r*r/2 + 1e-4*r*r + 1e-6*math.Pow(r, 4)
	assert.InDelta(t, want, a.Sag(r, 0), 1e-12)

	sx, _ := a.Slope(r, 0)
	wantSlope := 0.02*r + 2e-4*r + 4e-6*math.Pow(r, 3)
	assert.InDelta(t, wantSlope, sx, 1e-12)
}

func TestOddAsphereSag(t *testing.T) {
	a := OddAsphere{Coef: [10]float64{1e-3}}
	assert.InDelta(t, 1e-3*27, a.Sag(3, 0), 1e-12)
	sx, sy := a.Slope(0, 2)
	assert.Equal(t, 0.0, sx)
	assert.InDelta(t, 3e-3*4, sy, 1e-12)
}

func TestAsphereDivergence(t *testing.T) {
	// The base conic is undefined beyond r = 5 so no seed converges there.
	a := EvenAsphere{C: 0.2, Coef: [10]float64{0, 1e-3}}
	_, st := a.Intersect(r3.Vec{Y: 8, Z: -1}, r3.Vec{Z: 1}, IntersectOptions{MaxIterations: 50})
	assert.NotEqual(t, IntersectOK, st)

	tn, st := a.Intersect(r3.Vec{Y: 0.01, Z: -1}, r3.Vec{Z: 1}, IntersectOptions{})
	require.Equal(t, IntersectOK, st)
	assert.InDelta(t, 1+a.Sag(0, 0.01), tn, 1e-9)
}

func TestAsphereSkipsRootsBehindRay(t *testing.T) {
	a := EvenAsphere{C: 0.02, Coef: [10]float64{1e-6}}
	// Every seed converges on the vertex one unit behind the origin.
	_, st := a.Intersect(r3.Vec{Z: 1}, r3.Vec{Z: 1}, IntersectOptions{})
	assert.Equal(t, IntersectMiss, st)

	tn, st := a.Intersect(r3.Vec{Y: 2, Z: -1}, r3.Vec{Z: 1}, IntersectOptions{MaxRadius: 5})
	require.Equal(t, IntersectOK, st)
	assert.InDelta(t, 1+a.Sag(0, 2), tn, 1e-9)
}

func TestNewProfile(t *testing.T) {
	assert.Equal(t, Plane{}, NewProfile(math.Inf(1), 0, [10]float64{}, false))
	assert.Equal(t, Plane{}, NewProfile(1e-12, 0, [10]float64{}, false))
	assert.Equal(t, Sphere{C: 0.1}, NewProfile(10, 0, [10]float64{}, false))
	assert.IsType(t, EvenAsphere{}, NewProfile(10, -1, [10]float64{}, false))
	assert.IsType(t, OddAsphere{}, NewProfile(10, 0, [10]float64{}, true))
}

func singlet() []Surface {
	return []Surface{
		{Kind: KindObject, Profile: Plane{}, Thickness: math.Inf(1), Material: glass.Air},
		{Kind: KindStop, Profile: Plane{}, SemiDiameter: 5, Material: glass.Air},
		{Kind: KindStandard, Profile: NewSphere(50), Thickness: 5, SemiDiameter: 10, Material: "N-BK7"},
		{Kind: KindStandard, Profile: NewSphere(-50), Thickness: 47, SemiDiameter: 10, Material: glass.Air},
		{Kind: KindImage, Profile: Plane{}, SemiDiameter: 10, Material: glass.Air},
	}
}

func TestValidate(t *testing.T) {
	cat := glass.DefaultCatalog()
	require.NoError(t, Validate(singlet(), cat))

	tests := []struct {
		name   string
		mutate func([]Surface) []Surface
		want   string
	}{
		{"no object", func(s []Surface) []Surface { s[0].Kind = KindStandard; s[0].SemiDiameter = 1; return s }, "want Object"},
		{"no image", func(s []Surface) []Surface { s[4].Kind = KindStandard; return s }, "want Image"},
		{"two stops", func(s []Surface) []Surface { s[2].Kind = KindStop; return s }, "exactly one stop"},
		{"no stop", func(s []Surface) []Surface { s[1].Kind = KindStandard; return s }, "exactly one stop"},
		{"negative thickness", func(s []Surface) []Surface { s[2].Thickness = -1; return s }, "negative thickness"},
		{"infinite gap", func(s []Surface) []Surface { s[3].Thickness = math.Inf(1); return s }, "infinite thickness"},
		{"zero semidia", func(s []Surface) []Surface { s[2].SemiDiameter = 0; return s }, "semi-diameter"},
		{"bad material", func(s []Surface) []Surface { s[2].Material = "UNOBTAINIUM"; return s }, "does not resolve"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Validate(tt.mutate(singlet()), cat)
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrInvalidSurface)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestIndicesMirrorKeepsMedium(t *testing.T) {
	cat := glass.DefaultCatalog()
	s := singlet()
	s[3].Reflective = true
	s[3].Material = MaterialMirror
	n, err := Indices(s, cat, glass.Lined)
	require.NoError(t, err)
	assert.Equal(t, 1.0, n[0])
	assert.InDelta(t, 1.5168, n[2], 1e-4)
	assert.Equal(t, n[2], n[3])
}

func TestStopIndexFallback(t *testing.T) {
	s := singlet()
	assert.Equal(t, 1, StopIndex(s))
	s[1].Kind = KindStandard
	// Physical surfaces are 1, 2, 3; the middle one is 2.
	assert.Equal(t, 2, StopIndex(s))
	assert.Equal(t, 4, ImageIndex(s))
}

func TestWavelengths(t *testing.T) {
	w := Wavelengths{{UM: 0.4861}, {UM: 0.5876, Primary: true}, {UM: 0.6563}}
	require.NoError(t, w.Validate())
	assert.Equal(t, 1, w.PrimaryIndex())
	assert.Equal(t, 0.5876, w.Primary())
	lo, hi := w.Extremes()
	assert.Equal(t, 0.4861, lo)
	assert.Equal(t, 0.6563, hi)

	assert.Error(t, Wavelengths{{UM: 0.5}, {UM: 0.6}}.Validate())
	assert.Error(t, Wavelengths{{UM: -0.5, Primary: true}}.Validate())
}

func TestFields(t *testing.T) {
	ft, err := ParseFieldType("Rectangle")
	require.NoError(t, err)
	assert.Equal(t, FieldHeight, ft)
	ft, err = ParseFieldType("Angle")
	require.NoError(t, err)
	assert.Equal(t, FieldAngle, ft)

	f := Fields{{Y: 0}, {Y: 5}, {X: 3, Y: 4}}
	got, err := f.At(0)
	require.NoError(t, err)
	assert.Equal(t, 0.0, got.Y)
	got, err = f.At(2)
	require.NoError(t, err)
	assert.Equal(t, 5.0, got.Y)
	_, err = f.At(4)
	assert.Error(t, err)

	best, m := f.MaxRadial()
	assert.Equal(t, 5.0, m)
	assert.Equal(t, 5.0, best.Y)
}
