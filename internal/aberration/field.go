package aberration

import (
	"context"
	"math"
	"sort"

	"github.com/banshee-data/lens.design/internal/optics"
	"github.com/banshee-data/lens.design/internal/raytrace"
)

// FieldCurveOptions tune the astigmatic field curve sweep.
type FieldCurveOptions struct {
	Run
	Wavelength int // 1-based, 0 for the primary
	// Points is the sweep length for angle fields.
	Points int
	// FanRays and FanWidth shape the narrow fans around the chief ray.
	FanRays  int
	FanWidth float64
}

func (o FieldCurveOptions) withDefaults() FieldCurveOptions {
	if o.Points < 2 {
		o.Points = 11
	}
	if o.FanRays < 2 {
		o.FanRays = 7
	}
	if o.FanWidth <= 0 || o.FanWidth > 1 {
		o.FanWidth = 0.05
	}
	return o
}

// FieldCurvePoint is the tangential and sagittal focus at one field, in mm
// from the paraxial image.
type FieldCurvePoint struct {
	Field      optics.Field
	Radial     float64
	Tangential float64
	Sagittal   float64
}

// FieldCurvesResult is the sweep in increasing field order.
type FieldCurvesResult struct {
	Wavelength int
	Points     []FieldCurvePoint
	Incomplete bool
}

// Astigmatism returns Tangential − Sagittal at each point.
func (r FieldCurvesResult) Astigmatism() []float64 {
	out := make([]float64, len(r.Points))
	for i, p := range r.Points {
		out[i] = p.Tangential - p.Sagittal
	}
	return out
}

func wavelengthOrPrimary(m *raytrace.Model, n1 int) (int, error) {
	if n1 == 0 {
		return m.Primary(), nil
	}
	s, err := selection(n1, len(m.Wavelengths), "wavelength")
	if err != nil {
		return 0, err
	}
	return s[0], nil
}

// sweep returns field points from the axis to the largest field. Angle
// fields are interpolated; height fields use the declared heights.
func sweep(m *raytrace.Model, points int) []optics.Field {
	maxField, maxR := m.Fields.MaxRadial()
	angle := maxField.Type == optics.FieldAngle || m.ObjectAtInfinity()
	if angle {
		out := make([]optics.Field, points)
		for i := range out {
			out[i] = optics.Field{Type: optics.FieldAngle, Y: maxR * float64(i) / float64(points-1)}
		}
		return out
	}
	hs := []float64{0}
	for _, f := range m.Fields {
		if r := f.Radial(); r > 0 {
			hs = append(hs, r)
		}
	}
	sort.Float64s(hs)
	var out []optics.Field
	for i, h := range hs {
		if i > 0 && h == hs[i-1] {
			continue
		}
		out = append(out, optics.Field{Type: optics.FieldHeight, Y: h})
	}
	return out
}

// FieldCurves finds, at each swept field, the defocus that minimises the
// spread of a narrow meridional and a narrow sagittal fan.
func FieldCurves(ctx context.Context, m *raytrace.Model, opt FieldCurveOptions) (FieldCurvesResult, error) {
	opt = opt.withDefaults()
	if m.Afocal() {
		return FieldCurvesResult{}, ErrAfocal
	}
	w, err := wavelengthOrPrimary(m, opt.Wavelength)
	if err != nil {
		return FieldCurvesResult{}, err
	}
	ref := paraxialImageOffset(m, w)
	fan := Fan(opt.FanRays)
	fields := sweep(m, opt.Points)

	res := FieldCurvesResult{Wavelength: w}
	tr := opt.tracker(ctx)
	tr.Begin(len(fields), "field curves")
	for _, f := range fields {
		pt := FieldCurvePoint{Field: f, Radial: f.Radial(), Tangential: math.NaN(), Sagittal: math.NaN()}
		if chief := m.Chief(f, w); chief.OK() {
			cImg := chief.Image()
			csx, csy := slopes(m, w, chief)
			var tNum, tDen, sNum, sDen float64
			for _, r := range fan {
				if r == 0 {
					continue
				}
				if p := m.Trace(f, w, 0, r*opt.FanWidth); p.OK() {
					_, sy := slopes(m, w, p)
					dy, ds := p.Image().Y-cImg.Y, sy-csy
					tNum += dy * ds
					tDen += ds * ds
				}
				if p := m.Trace(f, w, r*opt.FanWidth, 0); p.OK() {
					sx, _ := slopes(m, w, p)
					dx, ds := p.Image().X-cImg.X, sx-csx
					sNum += dx * ds
					sDen += ds * ds
				}
			}
			if tDen > 0 {
				pt.Tangential = -tNum/tDen - ref
			}
			if sDen > 0 {
				pt.Sagittal = -sNum/sDen - ref
			}
		}
		res.Points = append(res.Points, pt)
		if err := tr.Step(1); err != nil {
			res.Incomplete = true
			return res, err
		}
	}
	return res, nil
}

// DistortionOptions select fields and wavelengths. A positive Sweep replaces
// the declared fields with that many points from the axis to the edge.
type DistortionOptions struct {
	Run
	Field      int
	Wavelength int
	Sweep      int
}

// DistortionPoint compares the real chief ray landing to the paraxial
// prediction along the field direction.
type DistortionPoint struct {
	FieldIndex int // -1 for swept points
	Field      optics.Field
	Wavelength int
	Ideal      float64
	Actual     float64
	Percent    float64
}

// DistortionResult lists points in field-major order.
type DistortionResult struct {
	Points     []DistortionPoint
	Incomplete bool
}

// Distortion reports 100·(actual − ideal)/ideal, with ideal = EFL·tanθ for
// angle fields and β·h for finite heights, both at the primary wavelength.
func Distortion(ctx context.Context, m *raytrace.Model, opt DistortionOptions) (DistortionResult, error) {
	if m.Afocal() {
		return DistortionResult{}, ErrAfocal
	}
	wls, err := selection(opt.Wavelength, len(m.Wavelengths), "wavelength")
	if err != nil {
		return DistortionResult{}, err
	}
	type item struct {
		index int
		f     optics.Field
	}
	var items []item
	if opt.Sweep >= 2 {
		for _, f := range sweep(m, opt.Sweep) {
			items = append(items, item{-1, f})
		}
	} else {
		idx, err := selection(opt.Field, len(m.Fields), "field")
		if err != nil {
			return DistortionResult{}, err
		}
		for _, i := range idx {
			items = append(items, item{i, m.Fields[i]})
		}
	}

	pr := m.Paraxial(m.Primary())
	var res DistortionResult
	tr := opt.tracker(ctx)
	tr.Begin(len(items)*len(wls), "distortion")
	for _, it := range items {
		var ix, iy float64
		if it.f.Type == optics.FieldAngle || m.ObjectAtInfinity() {
			ix = pr.EFL * math.Tan(it.f.X*math.Pi/180)
			iy = pr.EFL * math.Tan(it.f.Y*math.Pi/180)
		} else {
			ix, iy = pr.Magnification*it.f.X, pr.Magnification*it.f.Y
		}
		ideal := math.Hypot(ix, iy)
		for _, w := range wls {
			pt := DistortionPoint{FieldIndex: it.index, Field: it.f, Wavelength: w, Ideal: ideal, Actual: math.NaN(), Percent: math.NaN()}
			if chief := m.Chief(it.f, w); chief.OK() {
				img := chief.Image()
				if ideal == 0 {
					pt.Actual = math.Hypot(img.X, img.Y)
					pt.Percent = 0
				} else {
					pt.Actual = (img.X*ix + img.Y*iy) / ideal
					pt.Percent = 100 * (pt.Actual - ideal) / ideal
				}
			}
			res.Points = append(res.Points, pt)
			if err := tr.Step(1); err != nil {
				res.Incomplete = true
				return res, err
			}
		}
	}
	return res, nil
}
