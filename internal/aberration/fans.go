package aberration

import (
	"context"
	"math"

	"github.com/banshee-data/lens.design/internal/optics"
	"github.com/banshee-data/lens.design/internal/raytrace"
)

// FanOptions select a ray fan analysis.
type FanOptions struct {
	Run
	Field      int // 1-based, 0 for all
	Wavelength int // 1-based, 0 for all
	Rays       int
}

func (o FanOptions) rays() int {
	if o.Rays < 2 {
		return 21
	}
	return o.Rays
}

// FanCurve is one wavelength's transverse aberration. Tangential holds Δy
// and Sagittal Δx relative to the chief ray landing; failed rays are NaN.
type FanCurve struct {
	Wavelength int
	Rho        []float64
	Tangential []float64
	Sagittal   []float64
}

// FieldFans groups the curves for one field.
type FieldFans struct {
	Index int
	Field optics.Field
	Units string
	Fans  []FanCurve
}

// TransverseResult holds the fans of every requested field.
type TransverseResult struct {
	Fields     []FieldFans
	Incomplete bool
}

// Transverse traces meridional and sagittal fans and reports landings
// relative to the chief ray.
func Transverse(ctx context.Context, m *raytrace.Model, opt FanOptions) (TransverseResult, error) {
	fields, err := selection(opt.Field, len(m.Fields), "field")
	if err != nil {
		return TransverseResult{}, err
	}
	wls, err := selection(opt.Wavelength, len(m.Wavelengths), "wavelength")
	if err != nil {
		return TransverseResult{}, err
	}
	rho := Fan(opt.rays())
	afocal := m.Afocal()
	land := func(w int, p raytrace.Path) (float64, float64) {
		if afocal {
			sx, sy := slopes(m, w, p)
			return 1000 * sx, 1000 * sy
		}
		img := p.Image()
		return img.X, img.Y
	}

	var res TransverseResult
	tr := opt.tracker(ctx)
	tr.Begin(len(fields)*len(wls)*(2*len(rho)+1), "ray fans")
	for _, fi := range fields {
		f := m.Fields[fi]
		ff := FieldFans{Index: fi, Field: f, Units: UnitsMM}
		if afocal {
			ff.Units = UnitsMRad
		}
		for _, w := range wls {
			c := FanCurve{
				Wavelength: w,
				Rho:        rho,
				Tangential: make([]float64, len(rho)),
				Sagittal:   make([]float64, len(rho)),
			}
			chief := m.Chief(f, w)
			cx, cy := math.NaN(), math.NaN()
			if chief.OK() {
				cx, cy = land(w, chief)
			}
			if err := tr.Step(1); err != nil {
				res.Incomplete = true
				return res, err
			}
			for i, r := range rho {
				c.Tangential[i], c.Sagittal[i] = math.NaN(), math.NaN()
				if p := m.Trace(f, w, 0, r); p.OK() {
					_, y := land(w, p)
					c.Tangential[i] = y - cy
				}
				if p := m.Trace(f, w, r, 0); p.OK() {
					x, _ := land(w, p)
					c.Sagittal[i] = x - cx
				}
				if err := tr.Step(2); err != nil {
					res.Incomplete = true
					return res, err
				}
			}
			ff.Fans = append(ff.Fans, c)
		}
		res.Fields = append(res.Fields, ff)
	}
	return res, nil
}

// LongitudinalCurve is the axial focus shift per pupil fraction, in mm
// relative to the paraxial focus of the same wavelength.
type LongitudinalCurve struct {
	Wavelength int
	Rho        []float64
	Delta      []float64
}

// LongitudinalResult holds one curve per requested wavelength.
type LongitudinalResult struct {
	Curves     []LongitudinalCurve
	Incomplete bool
}

// Longitudinal traces on-axis meridional rays over ρ ∈ (0, 1] and reports
// where each crosses the axis, relative to the paraxial image.
func Longitudinal(ctx context.Context, m *raytrace.Model, opt FanOptions) (LongitudinalResult, error) {
	if m.Afocal() {
		return LongitudinalResult{}, ErrAfocal
	}
	wls, err := selection(opt.Wavelength, len(m.Wavelengths), "wavelength")
	if err != nil {
		return LongitudinalResult{}, err
	}
	n := opt.rays()
	axis := optics.Field{Type: m.Fields[0].Type}
	var res LongitudinalResult
	tr := opt.tracker(ctx)
	tr.Begin(len(wls)*n, "longitudinal aberration")
	for _, w := range wls {
		ref := paraxialImageOffset(m, w)
		c := LongitudinalCurve{Wavelength: w}
		for i := 1; i <= n; i++ {
			rho := float64(i) / float64(n)
			c.Rho = append(c.Rho, rho)
			d := math.NaN()
			if p := m.Trace(axis, w, 0, rho); p.OK() {
				_, sy := slopes(m, w, p)
				if sy != 0 {
					d = -p.Image().Y/sy - ref
				}
			}
			c.Delta = append(c.Delta, d)
			if err := tr.Step(1); err != nil {
				res.Incomplete = true
				return res, err
			}
		}
		res.Curves = append(res.Curves, c)
	}
	return res, nil
}
