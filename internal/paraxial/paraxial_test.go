package paraxial

import (
	"math"
	"testing"

	"github.com/banshee-data/lens.design/internal/optics"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const nBK7 = 1.5168

func surf(kind optics.SurfaceKind, radius, thickness, semi float64) optics.Surface {
	return optics.Surface{Kind: kind, Profile: optics.NewSphere(radius), Thickness: thickness, SemiDiameter: semi}
}

// singlet returns object, front, back, image for an equiconvex N-BK7 lens.
func singlet(objDist, backGap float64) System {
	s := []optics.Surface{
		surf(optics.KindObject, math.Inf(1), objDist, 0),
		surf(optics.KindStandard, 50, 5, 10),
		surf(optics.KindStandard, -50, backGap, 10),
		surf(optics.KindImage, math.Inf(1), 0, 0),
	}
	return System{Surfaces: s, N: []float64{1, nBK7, 1, 1}}
}

func thickLens() (efl, bfl float64) {
	phi1 := (nBK7 - 1) / 50
	phi2 := (1 - nBK7) / -50.0
	phi := phi1 + phi2 - 5/nBK7*phi1*phi2
	efl = 1 / phi
	return efl, efl * (1 - 5/nBK7*phi1)
}

func TestFocalMatchesThickLens(t *testing.T) {
	wantEFL, wantBFL := thickLens()
	efl, bfl := singlet(math.Inf(1), 40).Focal()
	assert.InEpsilon(t, wantEFL, efl, 1e-8)
	assert.InEpsilon(t, wantBFL, bfl, 1e-8)
}

func TestFocalInvariantUnderReversal(t *testing.T) {
	s := []optics.Surface{
		surf(optics.KindObject, math.Inf(1), math.Inf(1), 0),
		surf(optics.KindStandard, 80, 6, 10),
		surf(optics.KindStandard, -30, 2, 10),
		surf(optics.KindStandard, -120, 30, 10),
		surf(optics.KindImage, math.Inf(1), 0, 0),
	}
	fwd := System{Surfaces: s, N: []float64{1, 1.6, 1.5, 1, 1}}

	// Flip the element: radii change sign, thicknesses and media swap order.
	rev := []optics.Surface{
		surf(optics.KindObject, math.Inf(1), math.Inf(1), 0),
		surf(optics.KindStandard, 120, 2, 10),
		surf(optics.KindStandard, 30, 6, 10),
		surf(optics.KindStandard, -80, 30, 10),
		surf(optics.KindImage, math.Inf(1), 0, 0),
	}
	bwd := System{Surfaces: rev, N: []float64{1, 1.5, 1.6, 1, 1}}

	e1, _ := fwd.Focal()
	e2, _ := bwd.Focal()
	assert.InEpsilon(t, math.Abs(e1), math.Abs(e2), 1e-10)
}

func TestFiniteConjugate(t *testing.T) {
	efl, bfl := thickLens()
	// Symmetric lens: principal planes sit EFL-BFL inside each vertex.
	delta := efl - bfl
	d0 := 150.0
	s := d0 + delta
	sp := 1 / (1/efl - 1/s)
	wantDist := sp - delta
	wantMag := -sp / s

	r, err := Compute(singlet(d0, 40), Options{})
	require.NoError(t, err)
	assert.False(t, r.ObjectAtInf)
	assert.InEpsilon(t, wantDist, r.ImageDistance, 1e-9)
	assert.InEpsilon(t, wantMag, r.Magnification, 1e-9)
	assert.InDelta(t, math.Abs(wantMag*r.NAImage), r.NAObject, 1e-12)
}

func TestFrontStopPupil(t *testing.T) {
	s := []optics.Surface{
		surf(optics.KindObject, math.Inf(1), math.Inf(1), 0),
		surf(optics.KindStop, math.Inf(1), 0, 5),
		surf(optics.KindStandard, 50, 5, 10),
		surf(optics.KindStandard, -50, 47, 10),
		surf(optics.KindImage, math.Inf(1), 0, 0),
	}
	sys, err := NewSystem(s, []float64{1, 1, nBK7, 1, 1})
	require.NoError(t, err)

	r, err := Compute(sys, Options{Field: optics.Field{Type: optics.FieldAngle, Y: 5}})
	require.NoError(t, err)
	efl, _ := thickLens()
	assert.Equal(t, 1, r.StopIndex)
	assert.InDelta(t, 0, r.EntrancePupilPos, 1e-12)
	assert.InDelta(t, 10, r.EntrancePupilDia, 1e-12)
	assert.InEpsilon(t, efl/10, r.FNumber, 1e-9)
	assert.InDelta(t, 5, r.Marginal[1].H, 1e-12)
	assert.InDelta(t, 0, r.Chief[1].H, 1e-12)
	assert.InDelta(t, 52, r.TotalTrack, 1e-12)
}

func TestRearStopPupils(t *testing.T) {
	s := []optics.Surface{
		surf(optics.KindObject, math.Inf(1), math.Inf(1), 0),
		surf(optics.KindStandard, 50, 5, 10),
		surf(optics.KindStandard, -50, 20, 10),
		surf(optics.KindStop, math.Inf(1), 20, 3),
		surf(optics.KindImage, math.Inf(1), 0, 0),
	}
	sys, err := NewSystem(s, []float64{1, nBK7, 1, 1, 1})
	require.NoError(t, err)

	r, err := Compute(sys, Options{Field: optics.Field{Type: optics.FieldAngle, Y: 3}})
	require.NoError(t, err)
	assert.InDelta(t, 6, r.ExitPupilDia, 1e-12)
	assert.InDelta(t, -20, r.ExitPupilPos, 1e-12)

	// The stop sits inside the focal length, so its image is virtual,
	// magnified and behind the lens.
	assert.Greater(t, r.EntrancePupilPos, 20.0)
	assert.Greater(t, r.EntrancePupilDia, 6.0)

	// Rays aimed at the entrance pupil land on the physical stop.
	assert.InDelta(t, 3, r.Marginal[3].H, 1e-9)
	assert.InDelta(t, 0, r.Chief[3].H, 1e-9)
}

func TestConcaveMirrorFocus(t *testing.T) {
	s := []optics.Surface{
		surf(optics.KindObject, math.Inf(1), math.Inf(1), 0),
		surf(optics.KindStandard, -100, 50, 20),
		surf(optics.KindImage, math.Inf(1), 0, 0),
	}
	s[1].Reflective = true
	s[1].Material = optics.MaterialMirror
	sys := System{Surfaces: s, N: []float64{1, 1, 1}}

	assert.InDelta(t, 0.02, sys.Power(1), 1e-15)
	efl, bfl := sys.Focal()
	assert.InDelta(t, 50, efl, 1e-10)
	assert.InDelta(t, 50, bfl, 1e-10)
}

func TestPlateIsAfocal(t *testing.T) {
	s := []optics.Surface{
		surf(optics.KindObject, math.Inf(1), math.Inf(1), 0),
		surf(optics.KindStandard, math.Inf(1), 5, 10),
		surf(optics.KindStandard, math.Inf(1), 10, 10),
		surf(optics.KindImage, math.Inf(1), 0, 0),
	}
	r, err := Compute(System{Surfaces: s, N: []float64{1, 1.5, 1, 1}}, Options{})
	require.NoError(t, err)
	assert.True(t, r.Afocal())
	assert.True(t, math.IsInf(r.EFL, 1))
	assert.True(t, math.IsInf(r.WorkingFNumber, 1))
}

func TestNewSystemRejects(t *testing.T) {
	s := singlet(math.Inf(1), 40).Surfaces
	tests := []struct {
		name string
		n    []float64
	}{
		{"length mismatch", []float64{1, 1.5, 1}},
		{"zero index", []float64{1, 0, 1, 1}},
		{"nan index", []float64{1, math.NaN(), 1, 1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewSystem(s, tt.n)
			assert.ErrorIs(t, err, ErrDegenerate)
		})
	}
}

func TestComputeNeedsObject(t *testing.T) {
	s := singlet(math.Inf(1), 40)
	s.Surfaces[0].Kind = optics.KindStandard
	_, err := Compute(s, Options{})
	assert.ErrorIs(t, err, ErrDegenerate)
}
