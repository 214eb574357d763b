package aberration

import (
	"context"
	"math"
	"sort"

	"github.com/banshee-data/lens.design/internal/optics"
	"github.com/banshee-data/lens.design/internal/raytrace"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Spot units. Afocal systems report direction tangents.
const (
	UnitsMM   = "mm"
	UnitsMRad = "mrad"
)

// SpotOptions select and sample a spot diagram.
type SpotOptions struct {
	Run
	// Field and Wavelength are 1-based; 0 selects every field or all
	// wavelengths weighted together.
	Field      int
	Wavelength int
	Rays       int
	Rings      int
	// Fractions are the enclosed energy fractions reported per field.
	Fractions []float64
	// MinSurvivor is the surviving ray fraction below which metrics are NaN.
	MinSurvivor float64
}

func (o SpotOptions) withDefaults() SpotOptions {
	if o.Rays <= 0 {
		o.Rays = 501
	}
	if o.Rings <= 0 {
		o.Rings = 10
	}
	if len(o.Fractions) == 0 {
		o.Fractions = []float64{0.5, 0.8}
	}
	if o.MinSurvivor <= 0 {
		o.MinSurvivor = 0.1
	}
	return o
}

// SpotPoint is one ray landing in image coordinates; Wavelength is zero-based.
type SpotPoint struct {
	X, Y       float64
	Wavelength int
}

// FieldSpot collects the landings and metrics for one field.
type FieldSpot struct {
	Index     int
	Field     optics.Field
	Points    []SpotPoint
	CentroidX float64
	CentroidY float64
	RMS       float64
	// GEO is the radius enclosing every ray about the centroid.
	GEO       float64
	Enclosed  []float64
	Survivors int
	Total     int
}

// Diameter is the geometric spot diameter.
func (f FieldSpot) Diameter() float64 { return 2 * f.GEO }

// SpotResult holds every requested field. Incomplete is set when the run
// was cancelled; the populated fields are still valid.
type SpotResult struct {
	Fields     []FieldSpot
	Units      string
	Fractions  []float64
	Incomplete bool
}

// RMS averages the per-field RMS radii, weighted by field weight.
func (r SpotResult) RMS() float64 {
	var v, w []float64
	for _, f := range r.Fields {
		v = append(v, f.RMS)
		w = append(w, fieldWeight(f.Field))
	}
	if len(v) == 0 {
		return math.NaN()
	}
	return stat.Mean(v, w)
}

func fieldWeight(f optics.Field) float64 {
	if f.Weight > 0 {
		return f.Weight
	}
	return 1
}

func wavelengthWeight(w optics.Wavelength) float64 {
	if w.Weight > 0 {
		return w.Weight
	}
	return 1
}

// Spot traces an annular pupil sample to the image for each selected field.
// Afocal systems report landings as image-space direction tangents in mrad.
func Spot(ctx context.Context, m *raytrace.Model, opt SpotOptions) (SpotResult, error) {
	opt = opt.withDefaults()
	fields, err := selection(opt.Field, len(m.Fields), "field")
	if err != nil {
		return SpotResult{}, err
	}
	wls, err := selection(opt.Wavelength, len(m.Wavelengths), "wavelength")
	if err != nil {
		return SpotResult{}, err
	}
	res := SpotResult{Units: UnitsMM, Fractions: opt.Fractions}
	afocal := m.Afocal()
	if afocal {
		res.Units = UnitsMRad
	}

	pupil := Annular(opt.Rays, opt.Rings)
	tr := opt.tracker(ctx)
	tr.Begin(len(fields)*len(wls)*len(pupil), "spot diagram")
	for _, fi := range fields {
		f := m.Fields[fi]
		fs := FieldSpot{Index: fi, Field: f}
		var weights []float64
		for _, w := range wls {
			ww := wavelengthWeight(m.Wavelengths[w])
			for _, pp := range pupil {
				fs.Total++
				p := m.Trace(f, w, pp.X, pp.Y)
				if p.OK() {
					fs.Survivors++
					var x, y float64
					if afocal {
						sx, sy := slopes(m, w, p)
						x, y = 1000*sx, 1000*sy
					} else {
						img := p.Image()
						x, y = img.X, img.Y
					}
					fs.Points = append(fs.Points, SpotPoint{X: x, Y: y, Wavelength: w})
					weights = append(weights, ww)
				}
				if err := tr.Step(1); err != nil {
					res.Incomplete = true
					return res, err
				}
			}
		}
		spotMetrics(&fs, weights, opt)
		res.Fields = append(res.Fields, fs)
	}
	return res, nil
}

func spotMetrics(fs *FieldSpot, weights []float64, opt SpotOptions) {
	fs.Enclosed = make([]float64, len(opt.Fractions))
	if fs.Total == 0 || float64(fs.Survivors)/float64(fs.Total) < opt.MinSurvivor || fs.Survivors == 0 {
		fs.CentroidX, fs.CentroidY = math.NaN(), math.NaN()
		fs.RMS, fs.GEO = math.NaN(), math.NaN()
		for i := range fs.Enclosed {
			fs.Enclosed[i] = math.NaN()
		}
		return
	}
	xs := make([]float64, len(fs.Points))
	ys := make([]float64, len(fs.Points))
	for i, p := range fs.Points {
		xs[i], ys[i] = p.X, p.Y
	}
	fs.CentroidX = stat.Mean(xs, weights)
	fs.CentroidY = stat.Mean(ys, weights)

	type landing struct{ r, w float64 }
	ls := make([]landing, len(xs))
	r2 := make([]float64, len(xs))
	for i := range xs {
		dx, dy := xs[i]-fs.CentroidX, ys[i]-fs.CentroidY
		r2[i] = dx*dx + dy*dy
		ls[i] = landing{r: math.Sqrt(r2[i]), w: weights[i]}
	}
	fs.RMS = math.Sqrt(stat.Mean(r2, weights))
	sort.Slice(ls, func(i, j int) bool { return ls[i].r < ls[j].r })
	rs := make([]float64, len(ls))
	ws := make([]float64, len(ls))
	for i, l := range ls {
		rs[i], ws[i] = l.r, l.w
	}
	fs.GEO = floats.Max(rs)
	for i, frac := range opt.Fractions {
		fs.Enclosed[i] = stat.Quantile(frac, stat.Empirical, rs, ws)
	}
}
