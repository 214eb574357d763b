package plotting

import (
	"bytes"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/lens.design/internal/aberration"
	"github.com/banshee-data/lens.design/internal/requirements"
	"github.com/banshee-data/lens.design/internal/wavefront"
)

func testSpot() aberration.FieldSpot {
	fs := aberration.FieldSpot{Index: 1, RMS: 0.004, GEO: 0.01, Survivors: 30, Total: 30}
	for i := 0; i < 30; i++ {
		a := float64(i) / 30 * 2 * math.Pi
		fs.Points = append(fs.Points, aberration.SpotPoint{X: 0.01 * math.Cos(a), Y: 0.01 * math.Sin(a), Wavelength: i % 3})
	}
	return fs
}

func testMap(size int) *wavefront.Map {
	m := wavefront.NewMap(size, 0.5876)
	for r := 0; r < size; r++ {
		for c := 0; c < size; c++ {
			x, y := m.Pupil(r, c)
			if rr := x*x + y*y; rr <= 1 {
				m.Set(r, c, 0.25*(2*rr-1))
			}
		}
	}
	return m
}

func assertFile(t *testing.T, path string) {
	t.Helper()
	st, err := os.Stat(path)
	require.NoError(t, err)
	assert.Greater(t, st.Size(), int64(0))
}

func TestPNGPlots(t *testing.T) {
	dir := t.TempDir()

	spot, err := SpotPlot(testSpot(), aberration.UnitsMM)
	require.NoError(t, err)
	require.NoError(t, Save(spot, filepath.Join(dir, "spot.png")))
	assertFile(t, filepath.Join(dir, "spot.png"))

	rho := []float64{-1, -0.5, 0, 0.5, 1}
	fans := aberration.FieldFans{Units: aberration.UnitsMM, Fans: []aberration.FanCurve{
		{Wavelength: 0, Rho: rho, Tangential: []float64{-0.01, -0.002, 0, 0.002, 0.01}, Sagittal: []float64{-0.005, -0.001, 0, 0.001, math.NaN()}},
	}}
	fan, err := FanPlot(fans)
	require.NoError(t, err)
	require.NoError(t, Save(fan, filepath.Join(dir, "fan.png")))
	assertFile(t, filepath.Join(dir, "fan.png"))

	curves := aberration.FieldCurvesResult{Points: []aberration.FieldCurvePoint{
		{Radial: 0, Tangential: 0, Sagittal: 0},
		{Radial: 1, Tangential: -0.1, Sagittal: -0.05},
		{Radial: 2, Tangential: -0.4, Sagittal: math.NaN()},
	}}
	fc, err := FieldCurvePlot(curves)
	require.NoError(t, err)
	require.NoError(t, Save(fc, filepath.Join(dir, "field.png")))
	assertFile(t, filepath.Join(dir, "field.png"))

	opd, err := OPDPlot(testMap(16))
	require.NoError(t, err)
	require.NoError(t, Save(opd, filepath.Join(dir, "opd.png")))
	assertFile(t, filepath.Join(dir, "opd.png"))

	ps := &wavefront.PSF{Size: 8, Intensity: make([]float64, 64), PixelUM: 0.5, Peak: 1, Strehl: 0.9}
	ps.Intensity[4*8+4] = 1
	psf, err := PSFPlot(ps)
	require.NoError(t, err)
	require.NoError(t, Save(psf, filepath.Join(dir, "psf.png")))
	assertFile(t, filepath.Join(dir, "psf.png"))
}

func TestPlotErrors(t *testing.T) {
	_, err := OPDPlot(wavefront.NewMap(4, 0.5))
	assert.Error(t, err)
	_, err = PSFPlot(&wavefront.PSF{})
	assert.Error(t, err)
}

func TestGridAdapter(t *testing.T) {
	g := grid{n: 4, z: []float64{0, 1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12, 13, 14, 15}, span: 1}
	c, r := g.Dims()
	assert.Equal(t, 4, c)
	assert.Equal(t, 4, r)
	assert.Equal(t, 6.0, g.Z(2, 1))
	assert.InDelta(t, -0.75, g.X(0), 1e-12)
	assert.InDelta(t, 0.75, g.Y(3), 1e-12)

	m := testMap(4)
	x, y := m.Pupil(1, 2)
	mg := grid{n: m.Size, z: m.OPD, span: 1}
	assert.InDelta(t, x, mg.X(2), 1e-12)
	assert.InDelta(t, y, mg.Y(1), 1e-12)
}

func TestGenerateColors(t *testing.T) {
	assert.Nil(t, generateColors(0))
	cs := generateColors(3)
	require.Len(t, cs, 3)
	assert.NotEqual(t, cs[0], cs[1])
	assert.NotEqual(t, cs[1], cs[2])
	assert.Len(t, hexColor(0, 3), 7)
}

func TestHTMLPages(t *testing.T) {
	var buf bytes.Buffer
	res := &aberration.SpotResult{Fields: []aberration.FieldSpot{testSpot()}, Units: aberration.UnitsMM}
	require.NoError(t, SpotHTML(&buf, res))
	assert.Contains(t, buf.String(), "echarts")

	assert.Error(t, SpotHTML(&buf, &aberration.SpotResult{}))

	buf.Reset()
	reqs := []requirements.Requirement{{ID: "efl", Operand: "EFL"}, {ID: "spot", Operand: "SPOT_SIZE_ANNULAR"}}
	updates := []requirements.Update{
		{ID: "efl", Status: requirements.StatusOK},
		{ID: "spot", Status: requirements.StatusNG, Contribution: 0.25, Weight: 1, Violation: 0.5},
	}
	require.NoError(t, RequirementsHTML(&buf, reqs, updates))
	assert.Contains(t, buf.String(), "efl (EFL)")
	assert.Error(t, RequirementsHTML(&buf, reqs, nil))
}
