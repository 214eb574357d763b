package aberration

import (
	"context"
	"math"
	"testing"

	"github.com/banshee-data/lens.design/internal/glass"
	"github.com/banshee-data/lens.design/internal/optics"
	"github.com/banshee-data/lens.design/internal/progress"
	"github.com/banshee-data/lens.design/internal/raytrace"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func surf(kind optics.SurfaceKind, radius, thickness, semi float64, material string) optics.Surface {
	return optics.Surface{Kind: kind, Profile: optics.NewSphere(radius), Thickness: thickness, SemiDiameter: semi, Material: material}
}

// singlet is an equiconvex N-BK7 lens stopped at its front vertex with the
// image at the paraxial focus.
func singlet(back float64) []optics.Surface {
	s := []optics.Surface{
		surf(optics.KindObject, math.Inf(1), math.Inf(1), 0, ""),
		surf(optics.KindStop, 50, 5, 5, "N-BK7"),
		surf(optics.KindStandard, -50, back, 10, ""),
		surf(optics.KindImage, math.Inf(1), 0, 0, ""),
	}
	s[1].Provenance.BlockID = "L1"
	s[2].Provenance.BlockID = "L1"
	return s
}

var visible = optics.Wavelengths{
	{UM: glass.LineF, Weight: 1},
	{UM: glass.Lined, Weight: 1, Primary: true},
	{UM: glass.LineC, Weight: 1},
}

func model(t *testing.T, s []optics.Surface, wls optics.Wavelengths, fields optics.Fields) *raytrace.Model {
	t.Helper()
	m, err := raytrace.NewModel(s, wls, fields, glass.DefaultCatalog(), raytrace.Options{})
	require.NoError(t, err)
	return m
}

func angles(deg ...float64) optics.Fields {
	var out optics.Fields
	for _, d := range deg {
		out = append(out, optics.Field{Type: optics.FieldAngle, Y: d, Weight: 1})
	}
	return out
}

func TestAnnularDensity(t *testing.T) {
	pts := Annular(501, 10)
	assert.Len(t, pts, 501)
	for _, p := range pts {
		assert.LessOrEqual(t, math.Hypot(p.X, p.Y), 1+1e-12)
	}
	assert.Equal(t, PupilPoint{}, pts[0])
	assert.Equal(t, []float64{-1, -0.5, 0, 0.5, 1}, Fan(5))
}

func TestSpotPlanoPlanoIsPerfect(t *testing.T) {
	s := []optics.Surface{
		surf(optics.KindObject, math.Inf(1), math.Inf(1), 0, ""),
		surf(optics.KindStop, math.Inf(1), 5, 10, "N-BK7"),
		surf(optics.KindStandard, math.Inf(1), 20, 12, ""),
		surf(optics.KindImage, math.Inf(1), 0, 0, ""),
	}
	m := model(t, s, nil, angles(0, 5))
	res, err := Spot(context.Background(), m, SpotOptions{})
	require.NoError(t, err)
	assert.Equal(t, UnitsMRad, res.Units)
	require.Len(t, res.Fields, 2)
	for _, f := range res.Fields {
		assert.Equal(t, 501, f.Total)
		assert.Equal(t, f.Total, f.Survivors, "rim rays at the stop edge survive")
		assert.InDelta(t, 0, f.RMS, 1e-9)
	}
	assert.InDelta(t, 0, res.Fields[0].CentroidX, 1e-12)
	assert.InDelta(t, 0, res.Fields[0].CentroidY, 1e-12)
	// The window leaves the 5° beam direction unchanged.
	assert.InDelta(t, 1000*math.Tan(5*math.Pi/180), res.Fields[1].CentroidY, 1e-9)
}

func TestSpotSinglet(t *testing.T) {
	m := model(t, singlet(47.536), visible, angles(0, 3))
	res, err := Spot(context.Background(), m, SpotOptions{Wavelength: 2})
	require.NoError(t, err)
	assert.Equal(t, UnitsMM, res.Units)

	axis := res.Fields[0]
	assert.Equal(t, 501, axis.Survivors)
	assert.InDelta(t, 0, axis.CentroidX, 1e-9)
	assert.InDelta(t, 0, axis.CentroidY, 1e-9)
	assert.Greater(t, axis.RMS, 0.0)
	assert.LessOrEqual(t, axis.Enclosed[0], axis.Enclosed[1])
	assert.LessOrEqual(t, axis.Enclosed[1], axis.GEO)
	assert.InDelta(t, 2*axis.GEO, axis.Diameter(), 0)

	// Image height follows EFL·tanθ in sign.
	assert.Greater(t, res.Fields[1].CentroidY, 2.0)

	poly, err := Spot(context.Background(), m, SpotOptions{Field: 1})
	require.NoError(t, err)
	require.Len(t, poly.Fields, 1)
	assert.Len(t, poly.Fields[0].Points, 3*501)
	assert.Greater(t, poly.Fields[0].RMS, axis.RMS)
}

func TestSpotSelectionErrors(t *testing.T) {
	m := model(t, singlet(47.536), nil, angles(0))
	_, err := Spot(context.Background(), m, SpotOptions{Field: 2})
	assert.Error(t, err)
	_, err = Spot(context.Background(), m, SpotOptions{Wavelength: -1})
	assert.Error(t, err)
}

func TestSpotCancellation(t *testing.T) {
	m := model(t, singlet(47.536), nil, angles(0, 3))
	calls := 0
	res, err := Spot(context.Background(), m, SpotOptions{Run: Run{
		YieldEvery: 32,
		Progress: func(progress.Report) bool {
			calls++
			return calls < 3
		},
	}})
	assert.ErrorIs(t, err, progress.ErrCancelled)
	assert.True(t, res.Incomplete)
	assert.Empty(t, res.Fields)
}

func TestTransverseOnAxisIsOdd(t *testing.T) {
	m := model(t, singlet(47.536), nil, angles(0))
	res, err := Transverse(context.Background(), m, FanOptions{Rays: 11})
	require.NoError(t, err)
	c := res.Fields[0].Fans[0]
	require.Len(t, c.Rho, 11)
	assert.InDelta(t, 0, c.Tangential[5], 1e-12)
	for i := 0; i < 5; i++ {
		assert.InDelta(t, -c.Tangential[10-i], c.Tangential[i], 1e-9)
		assert.InDelta(t, c.Tangential[i], -c.Sagittal[10-i], 1e-9)
	}
}

func TestLongitudinalUndercorrected(t *testing.T) {
	m := model(t, singlet(47.536), nil, angles(0))
	res, err := Longitudinal(context.Background(), m, FanOptions{Rays: 10})
	require.NoError(t, err)
	d := res.Curves[0].Delta
	require.Len(t, d, 10)
	assert.Less(t, d[9], 0.0)
	assert.Less(t, math.Abs(d[0]), math.Abs(d[9]))
}

func TestAfocalAnalysesRefuse(t *testing.T) {
	s := []optics.Surface{
		surf(optics.KindObject, math.Inf(1), math.Inf(1), 0, ""),
		surf(optics.KindStop, math.Inf(1), 20, 10, ""),
		surf(optics.KindImage, math.Inf(1), 0, 0, ""),
	}
	m := model(t, s, nil, angles(0))
	_, err := Longitudinal(context.Background(), m, FanOptions{})
	assert.ErrorIs(t, err, ErrAfocal)
	_, err = FieldCurves(context.Background(), m, FieldCurveOptions{})
	assert.ErrorIs(t, err, ErrAfocal)
	_, err = Distortion(context.Background(), m, DistortionOptions{})
	assert.ErrorIs(t, err, ErrAfocal)
}

func TestFieldCurvesSweep(t *testing.T) {
	m := model(t, singlet(47.536), nil, angles(0, 5))
	res, err := FieldCurves(context.Background(), m, FieldCurveOptions{})
	require.NoError(t, err)
	require.Len(t, res.Points, 11)
	axis := res.Points[0]
	assert.InDelta(t, axis.Tangential, axis.Sagittal, 1e-6)
	assert.InDelta(t, 5, res.Points[10].Radial, 1e-12)
	// Off axis the tangential focus lies inside the sagittal one.
	assert.Less(t, res.Astigmatism()[10], 0.0)
}

func TestDistortionOnAxisIsZero(t *testing.T) {
	m := model(t, singlet(47.536), nil, angles(0, 5))
	res, err := Distortion(context.Background(), m, DistortionOptions{})
	require.NoError(t, err)
	require.Len(t, res.Points, 2)
	assert.Equal(t, 0.0, res.Points[0].Percent)
	assert.False(t, math.IsNaN(res.Points[1].Percent))
	assert.Less(t, math.Abs(res.Points[1].Percent), 5.0)

	sw, err := Distortion(context.Background(), m, DistortionOptions{Sweep: 4})
	require.NoError(t, err)
	assert.Len(t, sw.Points, 4)
	assert.Equal(t, -1, sw.Points[3].FieldIndex)
}

func TestSeidelSinglet(t *testing.T) {
	m := model(t, singlet(90), nil, angles(0, 5))
	res, err := Seidel(m, SeidelOptions{Resolver: glass.DefaultCatalog()})
	require.NoError(t, err)

	want := SeidelSums{
		SI:   0.016135981983329047,
		SII:  -0.004981832476726629,
		SIII: 0.003229307219369146,
		SIV:  0.002607941040217986,
		SV:   0.0004334701164598095,
		LCA:  0.007737457127000543,
		TCA:  0.00030350076115698895,
	}
	got := res.Total
	assert.InEpsilon(t, want.SI, got.SI, 1e-9)
	assert.InEpsilon(t, want.SII, got.SII, 1e-9)
	assert.InEpsilon(t, want.SIII, got.SIII, 1e-9)
	assert.InEpsilon(t, want.SIV, got.SIV, 1e-9)
	assert.InEpsilon(t, want.SV, got.SV, 1e-9)
	assert.InEpsilon(t, want.LCA, got.LCA, 1e-9)
	assert.InEpsilon(t, want.TCA, got.TCA, 1e-9)

	require.Len(t, res.Surfaces, 2)
	require.Len(t, res.Blocks, 1)
	assert.Equal(t, "L1", res.Blocks[0].BlockID)
	assert.InDelta(t, got.SI, res.Blocks[0].SI, 1e-15)
	assert.InDelta(t, got.SI/8/(glass.Lined/1000), got.WaveCoefficients(glass.Lined)[0], 1e-12)
}

func TestSeidelAchromatCancelsAxialColour(t *testing.T) {
	s := []optics.Surface{
		surf(optics.KindObject, math.Inf(1), math.Inf(1), 0, ""),
		surf(optics.KindStop, 62.8, 4, 10, "N-BK7"),
		surf(optics.KindStandard, -45.7, 2.5, 10, "N-SF5"),
		surf(optics.KindStandard, -139.2, 97, 10, ""),
		surf(optics.KindImage, math.Inf(1), 0, 0, ""),
	}
	m := model(t, s, visible, angles(0, 1))
	res, err := Seidel(m, SeidelOptions{Resolver: glass.DefaultCatalog()})
	require.NoError(t, err)
	assert.Less(t, math.Abs(res.Total.LCA), 1e-4)

	plain, err := Seidel(m, SeidelOptions{})
	require.NoError(t, err)
	assert.Equal(t, 0.0, plain.Total.LCA)
}
