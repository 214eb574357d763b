package operand

import (
	"context"
	"fmt"
	"math"
	"strings"

	"github.com/banshee-data/lens.design/internal/aberration"
	"github.com/banshee-data/lens.design/internal/optics"
	"github.com/banshee-data/lens.design/internal/paraxial"
	"github.com/banshee-data/lens.design/internal/units"
	"github.com/banshee-data/lens.design/internal/wavefront"
)

var (
	pField      = ParamSpec{Name: "field", Default: "1", Help: "1-based field index"}
	pWavelength = ParamSpec{Name: "wavelength", Default: "0", Help: "1-based wavelength index, 0 for primary"}
	pSpotWl     = ParamSpec{Name: "wavelength", Default: "0", Help: "1-based wavelength index, 0 for all weighted"}
	pUnit       = ParamSpec{Name: "unit", Default: units.Waves, Help: units.GetValidWavefrontUnitsString()}
)

// fieldAt resolves a 1-based field argument; values ≤ 0 select the first.
func fieldAt(env *Env, p Params, i int) (optics.Field, int, error) {
	n, err := p.Int(i, 1)
	if err != nil {
		return optics.Field{}, 0, err
	}
	f, err := env.Model.Fields.At(n)
	if err != nil {
		return optics.Field{}, 0, fmt.Errorf("%w: %v", ErrBadParameter, err)
	}
	if n < 1 {
		n = 1
	}
	return f, n, nil
}

// wavelengthAt resolves a 1-based wavelength argument to a zero-based index;
// 0 selects the primary.
func wavelengthAt(env *Env, p Params, i int) (int, error) {
	n, err := p.Int(i, 0)
	if err != nil {
		return 0, err
	}
	if n == 0 {
		return env.Model.Primary(), nil
	}
	if n < 0 || n > len(env.Model.Wavelengths) {
		return 0, fmt.Errorf("%w: wavelength %d out of range 1..%d", ErrBadParameter, n, len(env.Model.Wavelengths))
	}
	return n - 1, nil
}

func finite(v float64, what string) (float64, error) {
	if math.IsNaN(v) {
		return v, fmt.Errorf("%w: %s is undefined", ErrTraceFailed, what)
	}
	return v, nil
}

func paraxialOp(name, desc, unit string, get func(paraxial.Result) float64) *Definition {
	return &Definition{
		Name:        name,
		Description: desc,
		Units:       unit,
		Params:      []ParamSpec{pWavelength},
		Eval: func(_ context.Context, env *Env, p Params) (float64, error) {
			w, err := wavelengthAt(env, p, 0)
			if err != nil {
				return 0, err
			}
			return get(env.Model.Paraxial(w)), nil
		},
	}
}

// spot memoises one spot diagram per field and wavelength selection.
func spot(ctx context.Context, env *Env, field, wl int) (aberration.FieldSpot, error) {
	key := fmt.Sprintf("spot/%d/%d", field, wl)
	v, err := env.Memo(key, func() (interface{}, error) {
		cfg := env.Config
		res, err := aberration.Spot(ctx, env.Model, aberration.SpotOptions{
			Run:         aberration.Run{Progress: env.Progress, YieldEvery: cfg.GetYieldEveryRays()},
			Field:       field,
			Wavelength:  wl,
			Rays:        cfg.GetSpotRays(),
			Rings:       cfg.GetSpotRings(),
			MinSurvivor: cfg.GetMinSurvivorFraction(),
		})
		if err != nil {
			return nil, err
		}
		return res.Fields[0], nil
	})
	if err != nil {
		return aberration.FieldSpot{}, err
	}
	return v.(aberration.FieldSpot), nil
}

func opdMap(ctx context.Context, env *Env, f optics.Field, field, w int) (*wavefront.Map, error) {
	v, err := env.Memo(fmt.Sprintf("opd/%d/%d", field, w), func() (interface{}, error) {
		m, err := wavefront.OPD(ctx, env.Model, f, w, wavefront.Options{
			Progress:  env.Progress,
			GridSize:  env.Config.GetOPDGridSize(),
			TraceGrid: env.Config.GetOPDTraceGrid(),
		})
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrTraceFailed, err)
		}
		if m.Valid == 0 {
			return nil, fmt.Errorf("%w: no pupil samples survived", ErrTraceFailed)
		}
		return m, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*wavefront.Map), nil
}

func zernikeFit(ctx context.Context, env *Env, f optics.Field, field, w, terms int) (wavefront.ZernikeFit, error) {
	if cfg := env.Config.GetZernikeTerms(); cfg > terms {
		terms = cfg
	}
	v, err := env.Memo(fmt.Sprintf("zernike/%d/%d/%d", field, w, terms), func() (interface{}, error) {
		m, err := opdMap(ctx, env, f, field, w)
		if err != nil {
			return nil, err
		}
		return wavefront.FitZernike(m, terms)
	})
	if err != nil {
		return wavefront.ZernikeFit{}, err
	}
	return v.(wavefront.ZernikeFit), nil
}

func psf(ctx context.Context, env *Env, f optics.Field, field, w int) (*wavefront.PSF, error) {
	v, err := env.Memo(fmt.Sprintf("psf/%d/%d", field, w), func() (interface{}, error) {
		m, err := opdMap(ctx, env, f, field, w)
		if err != nil {
			return nil, err
		}
		return wavefront.ComputePSF(ctx, m, wavefront.PSFOptions{
			Progress:       env.Progress,
			Padding:        env.Config.GetPSFPadding(),
			WorkingFNumber: env.Model.Paraxial(env.Model.Primary()).WorkingFNumber,
			Fractions:      []float64{0.5, 0.8},
		})
	})
	if err != nil {
		return nil, err
	}
	return v.(*wavefront.PSF), nil
}

func seidel(env *Env) (aberration.SeidelResult, error) {
	v, err := env.Memo("seidel", func() (interface{}, error) {
		return aberration.Seidel(env.Model, aberration.SeidelOptions{Resolver: env.Resolver})
	})
	if err != nil {
		return aberration.SeidelResult{}, err
	}
	return v.(aberration.SeidelResult), nil
}

func seidelTerm(s aberration.SeidelSums, term string) (float64, error) {
	switch strings.ToUpper(term) {
	case "S1", "SI", "SPHERICAL":
		return s.SI, nil
	case "S2", "SII", "COMA":
		return s.SII, nil
	case "S3", "SIII", "ASTIGMATISM":
		return s.SIII, nil
	case "S4", "SIV", "PETZVAL":
		return s.SIV, nil
	case "S5", "SV", "DISTORTION":
		return s.SV, nil
	case "CL", "LCA":
		return s.LCA, nil
	case "CT", "TCA":
		return s.TCA, nil
	}
	return 0, fmt.Errorf("%w: unknown seidel term %q", ErrBadParameter, term)
}

var waveTerms = []string{"W040", "W131", "W222", "W220", "W311"}

func waveTerm(term string) (int, error) {
	for i, t := range waveTerms {
		if strings.EqualFold(t, term) {
			return i, nil
		}
	}
	return 0, fmt.Errorf("%w: unknown seidel wave term %q", ErrBadParameter, term)
}

// nearest returns ys at the sample of xs closest to x.
func nearest(xs, ys []float64, x float64) float64 {
	best, bestD := math.NaN(), math.Inf(1)
	for i := range xs {
		if d := math.Abs(xs[i] - x); d < bestD {
			best, bestD = ys[i], d
		}
	}
	return best
}

// Builtin returns a fresh registry with the standard operand catalogue.
func Builtin() *Registry {
	r := NewRegistry()

	for _, d := range []*Definition{
		paraxialOp("EFL", "Effective focal length", units.MM, func(r paraxial.Result) float64 { return r.EFL }),
		paraxialOp("BFL", "Back focal length from the last surface", units.MM, func(r paraxial.Result) float64 { return r.BFL }),
		paraxialOp("IMAGE_DISTANCE", "Paraxial image distance from the last surface", units.MM, func(r paraxial.Result) float64 { return r.ImageDistance }),
		paraxialOp("FNO", "Image-space F-number EFL/D_entrance", "", func(r paraxial.Result) float64 { return r.FNumber }),
		paraxialOp("WORKING_FNO", "Working F-number", "", func(r paraxial.Result) float64 { return r.WorkingFNumber }),
		paraxialOp("NA_IMAGE", "Image-space numerical aperture", "", func(r paraxial.Result) float64 { return r.NAImage }),
		paraxialOp("NA_OBJECT", "Object-space numerical aperture", "", func(r paraxial.Result) float64 { return r.NAObject }),
		paraxialOp("OBJECT_FNO", "Object-space F-number", "", func(r paraxial.Result) float64 { return r.ObjectFNumber }),
		paraxialOp("MAGNIFICATION", "Paraxial lateral magnification", "", func(r paraxial.Result) float64 { return r.Magnification }),
		paraxialOp("TOTAL_TRACK", "Sum of thicknesses from surface 1 to the image", units.MM, func(r paraxial.Result) float64 { return r.TotalTrack }),
		paraxialOp("ENP_POS", "Entrance pupil position from surface 1", units.MM, func(r paraxial.Result) float64 { return r.EntrancePupilPos }),
		paraxialOp("ENP_DIA", "Entrance pupil diameter", units.MM, func(r paraxial.Result) float64 { return r.EntrancePupilDia }),
		paraxialOp("EXP_POS", "Exit pupil position from the image plane", units.MM, func(r paraxial.Result) float64 { return r.ExitPupilPos }),
		paraxialOp("EXP_DIA", "Exit pupil diameter", units.MM, func(r paraxial.Result) float64 { return r.ExitPupilDia }),
	} {
		r.Register(d)
	}

	r.Register(&Definition{
		Name:        "SPOT_SIZE_ANNULAR",
		Description: "Spot size from an annular pupil sample about the centroid",
		Units:       units.MM,
		Params:      []ParamSpec{pField, pSpotWl, {Name: "metric", Default: "rms", Help: "rms or dia"}},
		Eval: func(ctx context.Context, env *Env, p Params) (float64, error) {
			_, field, err := fieldAt(env, p, 0)
			if err != nil {
				return 0, err
			}
			wl, err := p.Int(1, 0)
			if err != nil {
				return 0, err
			}
			fs, err := spot(ctx, env, field, wl)
			if err != nil {
				return 0, err
			}
			switch metric := p.String(2, "rms"); metric {
			case "rms":
				return finite(fs.RMS, "spot rms")
			case "dia", "diameter", "geo":
				return finite(fs.Diameter(), "spot diameter")
			default:
				return 0, fmt.Errorf("%w: spot metric %q", ErrBadParameter, metric)
			}
		},
	})

	r.Register(&Definition{
		Name:        "WAVEFRONT_RMS",
		Description: "RMS wavefront error about the mean",
		Params:      []ParamSpec{pField, pWavelength, pUnit},
		Eval: func(ctx context.Context, env *Env, p Params) (float64, error) {
			return wavefrontStat(ctx, env, p, (*wavefront.Map).RMS)
		},
	})
	r.Register(&Definition{
		Name:        "WAVEFRONT_PV",
		Description: "Peak-to-valley wavefront error",
		Params:      []ParamSpec{pField, pWavelength, pUnit},
		Eval: func(ctx context.Context, env *Env, p Params) (float64, error) {
			return wavefrontStat(ctx, env, p, (*wavefront.Map).PV)
		},
	})

	r.Register(&Definition{
		Name:        "ZERNIKE",
		Description: "Noll Zernike coefficient of the OPD map",
		Params:      []ParamSpec{pField, pWavelength, {Name: "term", Default: "4", Help: "Noll index 1..37"}, pUnit},
		Eval: func(ctx context.Context, env *Env, p Params) (float64, error) {
			f, field, err := fieldAt(env, p, 0)
			if err != nil {
				return 0, err
			}
			w, err := wavelengthAt(env, p, 1)
			if err != nil {
				return 0, err
			}
			j, err := p.Int(2, 4)
			if err != nil {
				return 0, err
			}
			if j < 1 || j > wavefront.MaxZernikeTerms {
				return 0, fmt.Errorf("%w: zernike term %d outside 1..%d", ErrBadParameter, j, wavefront.MaxZernikeTerms)
			}
			fit, err := zernikeFit(ctx, env, f, field, w, j)
			if err != nil {
				return 0, err
			}
			return convertWaves(fit.Coefficient(j), env.Model.Wavelengths[w].UM, p.String(3, units.Waves))
		},
	})

	r.Register(&Definition{
		Name:        "STREHL",
		Description: "Strehl ratio of the FFT point spread function",
		Params:      []ParamSpec{pField, pWavelength},
		Eval: func(ctx context.Context, env *Env, p Params) (float64, error) {
			f, field, err := fieldAt(env, p, 0)
			if err != nil {
				return 0, err
			}
			w, err := wavelengthAt(env, p, 1)
			if err != nil {
				return 0, err
			}
			ps, err := psf(ctx, env, f, field, w)
			if err != nil {
				return 0, err
			}
			return ps.Strehl, nil
		},
	})

	r.Register(&Definition{
		Name:        "EE_RADIUS",
		Description: "Encircled energy radius of the point spread function",
		Units:       units.UM,
		Params:      []ParamSpec{pField, pWavelength, {Name: "fraction", Default: "0.8", Help: "0.5 or 0.8"}},
		Eval: func(ctx context.Context, env *Env, p Params) (float64, error) {
			f, field, err := fieldAt(env, p, 0)
			if err != nil {
				return 0, err
			}
			w, err := wavelengthAt(env, p, 1)
			if err != nil {
				return 0, err
			}
			frac, err := p.Float(2, 0.8)
			if err != nil {
				return 0, err
			}
			ps, err := psf(ctx, env, f, field, w)
			if err != nil {
				return 0, err
			}
			for i, q := range ps.Fractions {
				if math.Abs(q-frac) < 1e-9 {
					return finite(ps.EncircledUM(i), "encircled energy pitch")
				}
			}
			return 0, fmt.Errorf("%w: encircled fraction %g not computed", ErrBadParameter, frac)
		},
	})

	r.Register(&Definition{
		Name:        "DISTORTION_PCT",
		Description: "Chief ray distortion against the paraxial image height",
		Units:       "%",
		Params:      []ParamSpec{pField, pWavelength},
		Eval: func(ctx context.Context, env *Env, p Params) (float64, error) {
			_, field, err := fieldAt(env, p, 0)
			if err != nil {
				return 0, err
			}
			w, err := wavelengthAt(env, p, 1)
			if err != nil {
				return 0, err
			}
			res, err := aberration.Distortion(ctx, env.Model, aberration.DistortionOptions{Field: field, Wavelength: w + 1})
			if err != nil {
				return 0, err
			}
			return finite(res.Points[0].Percent, "distortion")
		},
	})

	r.Register(&Definition{
		Name:        "SEIDEL",
		Description: "Seidel sum, optionally restricted to one block",
		Units:       units.MM,
		Params:      []ParamSpec{{Name: "term", Default: "S1", Help: "S1..S5, CL, CT"}, {Name: "block", Help: "block id, blank for the total"}},
		Eval: func(_ context.Context, env *Env, p Params) (float64, error) {
			res, err := seidel(env)
			if err != nil {
				return 0, err
			}
			term := p.String(0, "s1")
			block := p.Raw(1)
			if block == "" {
				return seidelTerm(res.Total, term)
			}
			for _, b := range res.Blocks {
				if b.BlockID == block {
					return seidelTerm(b.SeidelSums, term)
				}
			}
			return 0, fmt.Errorf("%w: no surfaces from block %q", ErrBadParameter, block)
		},
	})

	r.Register(&Definition{
		Name:        "SEIDEL_WAVE",
		Description: "Seidel wavefront coefficient in waves at a wavelength",
		Units:       units.Waves,
		Params:      []ParamSpec{{Name: "term", Default: "W040", Help: "W040, W131, W222, W220 or W311"}, pWavelength},
		Eval: func(_ context.Context, env *Env, p Params) (float64, error) {
			w, err := wavelengthAt(env, p, 1)
			if err != nil {
				return 0, err
			}
			res, err := seidel(env)
			if err != nil {
				return 0, err
			}
			k, err := waveTerm(p.String(0, "W040"))
			if err != nil {
				return 0, err
			}
			return res.Total.WaveCoefficients(env.Model.Wavelengths[w].UM)[k], nil
		},
	})

	r.Register(&Definition{
		Name:        "AXIAL_COLOR",
		Description: "Paraxial image distance at the longest minus the shortest wavelength",
		Units:       units.MM,
		Eval: func(_ context.Context, env *Env, _ Params) (float64, error) {
			short, long := env.Model.Wavelengths.Extremes()
			var zs, zl float64
			for i, wl := range env.Model.Wavelengths {
				if wl.UM == short {
					zs = env.Model.Paraxial(i).ImageDistance
				}
				if wl.UM == long {
					zl = env.Model.Paraxial(i).ImageDistance
				}
			}
			return finite(zl-zs, "axial colour")
		},
	})

	r.Register(&Definition{
		Name:        "LONG_SA",
		Description: "Longitudinal spherical aberration at a pupil fraction",
		Units:       units.MM,
		Params:      []ParamSpec{pWavelength, {Name: "rho", Default: "1"}},
		Eval: func(ctx context.Context, env *Env, p Params) (float64, error) {
			w, err := wavelengthAt(env, p, 0)
			if err != nil {
				return 0, err
			}
			rho, err := p.Float(1, 1)
			if err != nil {
				return 0, err
			}
			res, err := aberration.Longitudinal(ctx, env.Model, aberration.FanOptions{Wavelength: w + 1, Rays: env.Config.GetFanRays()})
			if err != nil {
				return 0, err
			}
			c := res.Curves[0]
			return finite(nearest(c.Rho, c.Delta, rho), "longitudinal aberration")
		},
	})

	r.Register(&Definition{
		Name:        "TRANS_ABERR",
		Description: "Transverse ray aberration relative to the chief ray",
		Units:       units.MM,
		Params:      []ParamSpec{pField, pWavelength, {Name: "rho", Default: "1"}, {Name: "fan", Default: "t", Help: "t or s"}},
		Eval: func(ctx context.Context, env *Env, p Params) (float64, error) {
			_, field, err := fieldAt(env, p, 0)
			if err != nil {
				return 0, err
			}
			w, err := wavelengthAt(env, p, 1)
			if err != nil {
				return 0, err
			}
			rho, err := p.Float(2, 1)
			if err != nil {
				return 0, err
			}
			res, err := aberration.Transverse(ctx, env.Model, aberration.FanOptions{Field: field, Wavelength: w + 1, Rays: env.Config.GetFanRays()})
			if err != nil {
				return 0, err
			}
			c := res.Fields[0].Fans[0]
			if p.String(3, "t") == "s" {
				return finite(nearest(c.Rho, c.Sagittal, rho), "sagittal fan")
			}
			return finite(nearest(c.Rho, c.Tangential, rho), "tangential fan")
		},
	})

	r.Register(&Definition{
		Name:        "FIELD_CURVATURE",
		Description: "Tangential or sagittal focus shift at the edge of the field",
		Units:       units.MM,
		Params:      []ParamSpec{pWavelength, {Name: "focus", Default: "t", Help: "t, s or astig"}},
		Eval: func(ctx context.Context, env *Env, p Params) (float64, error) {
			w, err := wavelengthAt(env, p, 0)
			if err != nil {
				return 0, err
			}
			res, err := aberration.FieldCurves(ctx, env.Model, aberration.FieldCurveOptions{Wavelength: w + 1, Points: env.Config.GetAstigFieldPoints()})
			if err != nil {
				return 0, err
			}
			last := len(res.Points) - 1
			edge := res.Points[last]
			switch p.String(1, "t") {
			case "s":
				return finite(edge.Sagittal, "sagittal focus")
			case "astig", "a":
				return finite(res.Astigmatism()[last], "astigmatism")
			default:
				return finite(edge.Tangential, "tangential focus")
			}
		},
	})

	return r
}

func wavefrontStat(ctx context.Context, env *Env, p Params, stat func(*wavefront.Map) float64) (float64, error) {
	f, field, err := fieldAt(env, p, 0)
	if err != nil {
		return 0, err
	}
	w, err := wavelengthAt(env, p, 1)
	if err != nil {
		return 0, err
	}
	m, err := opdMap(ctx, env, f, field, w)
	if err != nil {
		return 0, err
	}
	return convertWaves(stat(m), m.Wavelength, p.String(2, units.Waves))
}

func convertWaves(v, lambdaUM float64, unit string) (float64, error) {
	if !units.IsValidWavefront(unit) {
		return 0, fmt.Errorf("%w: wavefront unit %q, want one of %s", ErrBadParameter, unit, units.GetValidWavefrontUnitsString())
	}
	return units.ConvertWavefront(v, lambdaUM, unit), nil
}
