package engine

import (
	"context"

	"github.com/banshee-data/lens.design/internal/aberration"
	"github.com/banshee-data/lens.design/internal/design"
	"github.com/banshee-data/lens.design/internal/operand"
	"github.com/banshee-data/lens.design/internal/paraxial"
	"github.com/banshee-data/lens.design/internal/requirements"
	"github.com/banshee-data/lens.design/internal/wavefront"
)

func (e *Engine) run() aberration.Run {
	return aberration.Run{Progress: e.Progress, YieldEvery: e.Config.GetYieldEveryRays()}
}

// Paraxial returns the first-order data at the primary wavelength.
func (e *Engine) Paraxial(doc design.Document, configID string) (paraxial.Result, error) {
	m, err := e.Model(doc, configID)
	if err != nil {
		return paraxial.Result{}, err
	}
	return m.Paraxial(m.Primary()), nil
}

// Spot runs a spot diagram. Zero ray counts take the configured defaults.
func (e *Engine) Spot(ctx context.Context, doc design.Document, configID string, opt aberration.SpotOptions) (aberration.SpotResult, error) {
	m, err := e.Model(doc, configID)
	if err != nil {
		return aberration.SpotResult{}, err
	}
	opt.Run = e.run()
	if opt.Rays == 0 {
		opt.Rays = e.Config.GetSpotRays()
	}
	if opt.Rings == 0 {
		opt.Rings = e.Config.GetSpotRings()
	}
	if opt.MinSurvivor == 0 {
		opt.MinSurvivor = e.Config.GetMinSurvivorFraction()
	}
	return aberration.Spot(ctx, m, opt)
}

// Transverse runs the tangential and sagittal ray fans.
func (e *Engine) Transverse(ctx context.Context, doc design.Document, configID string, opt aberration.FanOptions) (aberration.TransverseResult, error) {
	m, err := e.Model(doc, configID)
	if err != nil {
		return aberration.TransverseResult{}, err
	}
	opt.Run = e.run()
	if opt.Rays == 0 {
		opt.Rays = e.Config.GetFanRays()
	}
	return aberration.Transverse(ctx, m, opt)
}

// Longitudinal runs the axial longitudinal aberration.
func (e *Engine) Longitudinal(ctx context.Context, doc design.Document, configID string, opt aberration.FanOptions) (aberration.LongitudinalResult, error) {
	m, err := e.Model(doc, configID)
	if err != nil {
		return aberration.LongitudinalResult{}, err
	}
	opt.Run = e.run()
	if opt.Rays == 0 {
		opt.Rays = e.Config.GetFanRays()
	}
	return aberration.Longitudinal(ctx, m, opt)
}

// FieldCurves runs the astigmatic field curves.
func (e *Engine) FieldCurves(ctx context.Context, doc design.Document, configID string, opt aberration.FieldCurveOptions) (aberration.FieldCurvesResult, error) {
	m, err := e.Model(doc, configID)
	if err != nil {
		return aberration.FieldCurvesResult{}, err
	}
	opt.Run = e.run()
	if opt.Points == 0 {
		opt.Points = e.Config.GetAstigFieldPoints()
	}
	return aberration.FieldCurves(ctx, m, opt)
}

// Distortion runs the chief-ray distortion analysis.
func (e *Engine) Distortion(ctx context.Context, doc design.Document, configID string, opt aberration.DistortionOptions) (aberration.DistortionResult, error) {
	m, err := e.Model(doc, configID)
	if err != nil {
		return aberration.DistortionResult{}, err
	}
	opt.Run = e.run()
	return aberration.Distortion(ctx, m, opt)
}

// Seidel returns the third-order sums.
func (e *Engine) Seidel(doc design.Document, configID string) (aberration.SeidelResult, error) {
	m, err := e.Model(doc, configID)
	if err != nil {
		return aberration.SeidelResult{}, err
	}
	return aberration.Seidel(m, aberration.SeidelOptions{Resolver: e.Catalog})
}

// Wavefront computes the OPD map of a 1-based field and wavelength; a zero
// wavelength selects the primary.
func (e *Engine) Wavefront(ctx context.Context, doc design.Document, configID string, field, wavelength int) (*wavefront.Map, error) {
	m, err := e.Model(doc, configID)
	if err != nil {
		return nil, err
	}
	f, err := m.Fields.At(field)
	if err != nil {
		return nil, err
	}
	w := m.Primary()
	if wavelength > 0 {
		w = wavelength - 1
	}
	return wavefront.OPD(ctx, m, f, w, wavefront.Options{
		Progress:  e.Progress,
		GridSize:  e.Config.GetOPDGridSize(),
		TraceGrid: e.Config.GetOPDTraceGrid(),
	})
}

// PSF computes the point spread function of a wavefront map using the
// configuration's working F-number for the pixel pitch.
func (e *Engine) PSF(ctx context.Context, doc design.Document, configID string, wm *wavefront.Map) (*wavefront.PSF, error) {
	pr, err := e.Paraxial(doc, configID)
	if err != nil {
		return nil, err
	}
	return wavefront.ComputePSF(ctx, wm, wavefront.PSFOptions{
		Progress:       e.Progress,
		Padding:        e.Config.GetPSFPadding(),
		WorkingFNumber: pr.WorkingFNumber,
		Fractions:      []float64{0.5, 0.8},
	})
}

// Operand evaluates one operand against a configuration.
func (e *Engine) Operand(ctx context.Context, doc design.Document, configID, name string, p operand.Params) (float64, error) {
	env, err := e.Prepare(doc, configID)
	if err != nil {
		return e.Config.GetFailSentinel(), err
	}
	return e.Registry.Evaluate(ctx, env, name, p)
}

// Evaluate runs requirements against doc.
func (e *Engine) Evaluate(ctx context.Context, reqs []requirements.Requirement, doc design.Document) ([]requirements.Update, error) {
	return requirements.Evaluate(ctx, e, reqs, doc)
}
