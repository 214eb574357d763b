package wavefront

import (
	"context"
	"math"
	"testing"

	"github.com/banshee-data/lens.design/internal/glass"
	"github.com/banshee-data/lens.design/internal/optics"
	"github.com/banshee-data/lens.design/internal/progress"
	"github.com/banshee-data/lens.design/internal/raytrace"
	"github.com/banshee-data/lens.design/internal/units"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func surf(kind optics.SurfaceKind, radius, thickness, semi float64, material string) optics.Surface {
	return optics.Surface{Kind: kind, Profile: optics.NewSphere(radius), Thickness: thickness, SemiDiameter: semi, Material: material}
}

func singletModel(t *testing.T) *raytrace.Model {
	t.Helper()
	s := []optics.Surface{
		surf(optics.KindObject, math.Inf(1), math.Inf(1), 0, ""),
		surf(optics.KindStop, 50, 5, 5, "N-BK7"),
		surf(optics.KindStandard, -50, 47.536, 10, ""),
		surf(optics.KindImage, math.Inf(1), 0, 0, ""),
	}
	m, err := raytrace.NewModel(s, nil, optics.Fields{{Type: optics.FieldAngle}}, glass.DefaultCatalog(), raytrace.Options{})
	require.NoError(t, err)
	return m
}

// mapOf samples a function of polar pupil coordinates inside the unit disk.
func mapOf(size int, f func(rho, theta float64) float64) *Map {
	m := NewMap(size, 0.55)
	for r := 0; r < size; r++ {
		for c := 0; c < size; c++ {
			x, y := m.Pupil(r, c)
			if x*x+y*y > 1 {
				continue
			}
			m.Total++
			m.Set(r, c, f(math.Hypot(x, y), math.Atan2(y, x)))
		}
	}
	return m
}

func TestNollOrdering(t *testing.T) {
	want := [][2]int{{0, 0}, {1, 1}, {1, -1}, {2, 0}, {2, -2}, {2, 2}, {3, -1}, {3, 1}, {3, -3}, {3, 3}, {4, 0}}
	for i, w := range want {
		n, m := Noll(i + 1)
		assert.Equal(t, w, [2]int{n, m}, "j=%d", i+1)
	}
	n, m := Noll(37)
	assert.Equal(t, [2]int{8, 0}, [2]int{n, m})
}

func TestZernikeDefocusShape(t *testing.T) {
	// Z4 = √3 (2ρ² − 1)
	assert.InDelta(t, -math.Sqrt(3), Zernike(4, 0, 0), 1e-15)
	assert.InDelta(t, math.Sqrt(3), Zernike(4, 1, 1.2), 1e-15)
	// Z2 = 2ρ cos θ
	assert.InDelta(t, 2*0.5*math.Cos(0.3), Zernike(2, 0.5, 0.3), 1e-15)
}

func TestFitZernikeSingleTerm(t *testing.T) {
	for _, j := range []int{1, 4, 7, 11, 22, 37} {
		m := mapOf(48, func(rho, theta float64) float64 { return Zernike(j, rho, theta) })
		fit, err := FitZernike(m, MaxZernikeTerms)
		require.NoError(t, err)
		for k := 1; k <= MaxZernikeTerms; k++ {
			want := 0.0
			if k == j {
				want = 1
			}
			assert.InDelta(t, want, fit.Coefficient(k), 1e-6, "j=%d k=%d", j, k)
		}
		assert.InDelta(t, 0, fit.ResidualRMS, 1e-9)
	}
}

func TestFitZernikeRejects(t *testing.T) {
	m := mapOf(8, func(float64, float64) float64 { return 0 })
	_, err := FitZernike(m, 0)
	assert.Error(t, err)
	_, err = FitZernike(m, 38)
	assert.Error(t, err)
	small := NewMap(2, 0.55)
	small.Set(0, 0, 1)
	_, err = FitZernike(small, 4)
	assert.Error(t, err)
}

func TestOPDOnAxisSinglet(t *testing.T) {
	model := singletModel(t)
	m, err := OPD(context.Background(), model, model.Fields[0], 0, Options{GridSize: 16})
	require.NoError(t, err)
	assert.Equal(t, ReferenceSphere, m.Reference)
	assert.Greater(t, m.Valid, 150)
	assert.Equal(t, m.Total, m.Valid)
	assert.Greater(t, m.RMS(), 0.0)
	assert.GreaterOrEqual(t, m.PV(), m.RMS())

	// Rotational symmetry: mirrored cells carry equal OPD.
	for r := 0; r < 16; r++ {
		for c := 0; c < 16; c++ {
			k := r*16 + c
			if m.Mask[k] {
				assert.InDelta(t, m.OPD[k], m.OPD[(15-r)*16+(15-c)], 1e-6)
			}
		}
	}

	nm, err := m.In(1, units.NM)
	require.NoError(t, err)
	assert.InDelta(t, m.Wavelength*1000, nm, 1e-9)
	_, err = m.In(1, "furlong")
	assert.Error(t, err)
}

func TestOPDCoarseTraceIsRegridded(t *testing.T) {
	model := singletModel(t)
	full, err := OPD(context.Background(), model, model.Fields[0], 0, Options{GridSize: 32})
	require.NoError(t, err)
	coarse, err := OPD(context.Background(), model, model.Fields[0], 0, Options{GridSize: 32, TraceGrid: 16})
	require.NoError(t, err)

	assert.Equal(t, 32, coarse.Size)
	assert.Equal(t, full.Total, coarse.Total)
	assert.Equal(t, coarse.Total, coarse.Valid)
	assert.Equal(t, ReferenceSphere, coarse.Reference)
	assert.Equal(t, full.Radius, coarse.Radius)
	assert.InEpsilon(t, full.RMS(), coarse.RMS(), 0.25)
}

func TestOPDRejectsLargeGrid(t *testing.T) {
	model := singletModel(t)
	_, err := OPD(context.Background(), model, model.Fields[0], 0, Options{GridSize: MaxGridSize + 1})
	assert.Error(t, err)
}

func TestPSFPerfectPupil(t *testing.T) {
	m := mapOf(32, func(float64, float64) float64 { return 0 })
	psf, err := ComputePSF(context.Background(), m, PSFOptions{Padding: 2, WorkingFNumber: 5})
	require.NoError(t, err)
	assert.Equal(t, 64, psf.Size)
	assert.InDelta(t, 1, psf.Strehl, 1e-12)
	assert.InDelta(t, 1, psf.Intensity[32*64+32], 1e-12)
	assert.InDelta(t, psf.FWHMX, psf.FWHMY, 1e-9)
	assert.Greater(t, psf.FWHMX, 0.0)
	assert.LessOrEqual(t, psf.Enclosed[0], psf.Enclosed[1])
	assert.InDelta(t, 0.55*5*32/64, psf.PixelUM, 1e-12)
	assert.InDelta(t, psf.Enclosed[1]*psf.PixelUM, psf.EncircledUM(1), 1e-12)
}

func TestPSFAberratedStrehl(t *testing.T) {
	// A small aberration follows the Maréchal approximation.
	rms := 0.05
	m := mapOf(32, func(rho, theta float64) float64 { return rms * Zernike(4, rho, theta) })
	psf, err := ComputePSF(context.Background(), m, PSFOptions{})
	require.NoError(t, err)
	want := math.Exp(-math.Pow(2*math.Pi*m.RMS(), 2))
	assert.InDelta(t, want, psf.Strehl, 0.02)
	assert.Less(t, psf.Strehl, 1.0)
}

func TestPSFCancellationLeavesPartial(t *testing.T) {
	m := mapOf(MaxGridSize, func(float64, float64) float64 { return 0 })
	rows := 0
	psf, err := ComputePSF(context.Background(), m, PSFOptions{Padding: 1, Progress: func(progress.Report) bool {
		rows++
		return rows < 10
	}})
	assert.ErrorIs(t, err, progress.ErrCancelled)
	require.NotNil(t, psf)
	assert.True(t, psf.Incomplete)
	assert.Equal(t, 10, rows)
}

func TestRegridNearest(t *testing.T) {
	samples := []Sample{{X: -0.5, Y: 0, Waves: -1}, {X: 0.5, Y: 0, Waves: 1}}
	m := Regrid(samples, 8, 0.55, 0)
	assert.Equal(t, m.Total, m.Valid)
	for r := 0; r < 8; r++ {
		for c := 0; c < 8; c++ {
			k := r*8 + c
			if !m.Mask[k] {
				continue
			}
			x, _ := m.Pupil(r, c)
			if x < 0 {
				assert.Equal(t, -1.0, m.OPD[k])
			} else {
				assert.Equal(t, 1.0, m.OPD[k])
			}
		}
	}
	gapped := Regrid(samples, 8, 0.55, 0.2)
	assert.Less(t, gapped.Valid, gapped.Total)

	back := Regrid(m.Samples(), 8, 0.55, 0)
	assert.Equal(t, m.Mask, back.Mask)
	assert.Equal(t, m.Values(), back.Values())
	assert.Len(t, m.Samples(), m.Valid)
}
