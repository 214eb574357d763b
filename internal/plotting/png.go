// Package plotting renders analysis results as PNG plots (gonum/plot) and
// interactive HTML pages (go-echarts).
package plotting

import (
	"fmt"
	"image/color"
	"math"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/palette"
	"gonum.org/v1/plot/palette/moreland"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"

	"github.com/banshee-data/lens.design/internal/aberration"
	"github.com/banshee-data/lens.design/internal/wavefront"
)

// Default PNG size.
var (
	Width  = 8 * vg.Inch
	Height = 6 * vg.Inch
)

// Save writes p as a PNG (or any format named by the path extension).
func Save(p *plot.Plot, path string) error {
	if err := p.Save(Width, Height, path); err != nil {
		return fmt.Errorf("save plot %s: %w", path, err)
	}
	return nil
}

func legendTopRight(p *plot.Plot) {
	p.Legend.Top = true
	p.Legend.Left = false
	p.Legend.XOffs = -10
	p.Legend.YOffs = -10
}

// SpotPlot scatters the landings of one field, coloured by wavelength.
func SpotPlot(fs aberration.FieldSpot, units string) (*plot.Plot, error) {
	p := plot.New()
	p.Title.Text = fmt.Sprintf("Spot diagram field %d (rms %.4g %s)", fs.Index+1, fs.RMS, units)
	p.X.Label.Text = "X (" + units + ")"
	p.Y.Label.Text = "Y (" + units + ")"

	byWl := map[int]plotter.XYs{}
	maxWl := 0
	for _, pt := range fs.Points {
		byWl[pt.Wavelength] = append(byWl[pt.Wavelength], plotter.XY{X: pt.X - fs.CentroidX, Y: pt.Y - fs.CentroidY})
		if pt.Wavelength > maxWl {
			maxWl = pt.Wavelength
		}
	}
	colors := generateColors(maxWl + 1)
	for w := 0; w <= maxWl; w++ {
		xy, ok := byWl[w]
		if !ok {
			continue
		}
		s, err := plotter.NewScatter(xy)
		if err != nil {
			return nil, err
		}
		s.GlyphStyle.Color = colors[w]
		s.GlyphStyle.Radius = vg.Points(1.5)
		s.GlyphStyle.Shape = draw.CircleGlyph{}
		p.Add(s)
		p.Legend.Add(fmt.Sprintf("λ%d", w+1), s)
	}
	p.Add(plotter.NewGrid())
	legendTopRight(p)
	return p, nil
}

// FanPlot draws the tangential and sagittal ray fans of one field.
func FanPlot(ff aberration.FieldFans) (*plot.Plot, error) {
	p := plot.New()
	p.Title.Text = fmt.Sprintf("Ray fan field %d", ff.Index+1)
	p.X.Label.Text = "Pupil ρ"
	p.Y.Label.Text = "Transverse aberration (" + ff.Units + ")"
	colors := generateColors(len(ff.Fans))
	for i, c := range ff.Fans {
		for _, fan := range []struct {
			name string
			ys   []float64
			dash bool
		}{{"T", c.Tangential, false}, {"S", c.Sagittal, true}} {
			l, err := plotter.NewLine(finiteXYs(c.Rho, fan.ys))
			if err != nil {
				return nil, err
			}
			l.Color = colors[i]
			l.Width = vg.Points(1)
			if fan.dash {
				l.Dashes = []vg.Length{vg.Points(4), vg.Points(2)}
			}
			p.Add(l)
			p.Legend.Add(fmt.Sprintf("%s λ%d", fan.name, c.Wavelength+1), l)
		}
	}
	p.Add(plotter.NewGrid())
	legendTopRight(p)
	return p, nil
}

// FieldCurvePlot draws tangential and sagittal focus against field.
func FieldCurvePlot(res aberration.FieldCurvesResult) (*plot.Plot, error) {
	p := plot.New()
	p.Title.Text = "Astigmatic field curves"
	p.X.Label.Text = "Focus shift (mm)"
	p.Y.Label.Text = "Field"
	var t, s plotter.XYs
	for _, pt := range res.Points {
		if !math.IsNaN(pt.Tangential) {
			t = append(t, plotter.XY{X: pt.Tangential, Y: pt.Radial})
		}
		if !math.IsNaN(pt.Sagittal) {
			s = append(s, plotter.XY{X: pt.Sagittal, Y: pt.Radial})
		}
	}
	colors := generateColors(2)
	for i, c := range []struct {
		name string
		xy   plotter.XYs
	}{{"Tangential", t}, {"Sagittal", s}} {
		if len(c.xy) == 0 {
			continue
		}
		l, err := plotter.NewLine(c.xy)
		if err != nil {
			return nil, err
		}
		l.Color = colors[i]
		l.Width = vg.Points(1)
		p.Add(l)
		p.Legend.Add(c.name, l)
	}
	p.Add(plotter.NewGrid())
	legendTopRight(p)
	return p, nil
}

func finiteXYs(xs, ys []float64) plotter.XYs {
	out := make(plotter.XYs, 0, len(xs))
	for i := range xs {
		if i < len(ys) && !math.IsNaN(ys[i]) && !math.IsInf(ys[i], 0) {
			out = append(out, plotter.XY{X: xs[i], Y: ys[i]})
		}
	}
	return out
}

// grid adapts a square row-major array to plotter.GridXYZ. Columns run
// along x in [−span, span].
type grid struct {
	n    int
	z    []float64
	span float64
}

func (g grid) Dims() (c, r int)   { return g.n, g.n }
func (g grid) Z(c, r int) float64 { return g.z[r*g.n+c] }
func (g grid) X(c int) float64    { return g.span * (-1 + (2*float64(c)+1)/float64(g.n)) }
func (g grid) Y(r int) float64    { return g.span * (-1 + (2*float64(r)+1)/float64(g.n)) }

func heat(g grid, pal palette.Palette, lo, hi float64) *plotter.HeatMap {
	h := plotter.NewHeatMap(g, pal)
	h.Min, h.Max = lo, hi
	h.NaN = color.Transparent
	return h
}

// OPDPlot is a diverging heat map of an OPD map in waves.
func OPDPlot(m *wavefront.Map) (*plot.Plot, error) {
	vals := m.Values()
	if len(vals) == 0 {
		return nil, fmt.Errorf("opd map has no valid samples")
	}
	lim := 0.0
	for _, v := range vals {
		lim = math.Max(lim, math.Abs(v))
	}
	if lim == 0 {
		lim = 1e-3
	}
	cm := moreland.SmoothBlueRed()
	cm.SetMin(-lim)
	cm.SetMax(lim)

	p := plot.New()
	p.Title.Text = fmt.Sprintf("OPD %.3g µm (rms %.4f, pv %.4f waves)", m.Wavelength, m.RMS(), m.PV())
	p.X.Label.Text = "Pupil x"
	p.Y.Label.Text = "Pupil y"
	p.Add(heat(grid{n: m.Size, z: m.OPD, span: 1}, cm.Palette(255), -lim, lim))
	return p, nil
}

// PSFPlot is a heat map of the normalised PSF. Axes are in µm when the
// pixel pitch is known.
func PSFPlot(ps *wavefront.PSF) (*plot.Plot, error) {
	if ps.Size == 0 {
		return nil, fmt.Errorf("empty psf")
	}
	span, unit := float64(ps.Size)/2, "px"
	if ps.PixelUM > 0 {
		span, unit = span*ps.PixelUM, "µm"
	}
	p := plot.New()
	p.Title.Text = fmt.Sprintf("PSF (Strehl %.4f)", ps.Strehl)
	p.X.Label.Text = "x (" + unit + ")"
	p.Y.Label.Text = "y (" + unit + ")"
	p.Add(heat(grid{n: ps.Size, z: ps.Intensity, span: span}, palette.Heat(64, 1), 0, math.Max(ps.Peak, 1e-12)))
	return p, nil
}

// generateColors spreads n hues around the colour wheel.
func generateColors(n int) []color.Color {
	if n <= 0 {
		return nil
	}
	out := make([]color.Color, n)
	for i := range out {
		r, g, b := hslToRGB(float64(i)/float64(n), 0.7, 0.45)
		out[i] = color.RGBA{R: r, G: g, B: b, A: 255}
	}
	return out
}

func hslToRGB(h, s, l float64) (r, g, b uint8) {
	q := l + s - l*s
	if l < 0.5 {
		q = l * (1 + s)
	}
	p := 2*l - q
	return uint8(hueToRGB(p, q, h+1.0/3.0) * 255), uint8(hueToRGB(p, q, h) * 255), uint8(hueToRGB(p, q, h-1.0/3.0) * 255)
}

func hueToRGB(p, q, t float64) float64 {
	if t < 0 {
		t++
	}
	if t > 1 {
		t--
	}
	switch {
	case t < 1.0/6.0:
		return p + (q-p)*6*t
	case t < 0.5:
		return q
	case t < 2.0/3.0:
		return p + (q-p)*(2.0/3.0-t)*6
	}
	return p
}
