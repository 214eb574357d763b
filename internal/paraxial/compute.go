package paraxial

import (
	"fmt"
	"math"

	"github.com/banshee-data/lens.design/internal/optics"
)

// Options select the field used for the chief ray.
type Options struct {
	// Field is the full field point; its Y component drives the chief ray.
	// Angle fields are in degrees, height fields in mm.
	Field optics.Field
}

// Result holds first-order properties. Pupil positions are axial distances:
// the entrance pupil from the first surface, the exit pupil from the image
// plane. Infinite values mean afocal or unbounded quantities.
type Result struct {
	EFL           float64
	BFL           float64
	ImageDistance float64 // last surface to paraxial image
	ObjectAtInf   bool

	StopIndex        int
	StopSemiDiameter float64

	EntrancePupilPos float64
	EntrancePupilDia float64
	ExitPupilPos     float64
	ExitPupilDia     float64

	FNumber        float64
	WorkingFNumber float64
	NAImage        float64
	NAObject       float64
	ObjectFNumber  float64
	Magnification  float64
	TotalTrack     float64

	// Marginal and Chief are indexed by surface, object through image.
	Marginal []State
	Chief    []State
}

// Afocal reports whether EFL is infinite.
func (r Result) Afocal() bool { return math.IsInf(r.EFL, 0) }

// Focal traces a ray from infinity (h₁ = 1, α₁ = 0) to the last surface
// before the image and returns EFL = 1/α and BFL = h·n/α.
func (s System) Focal() (efl, bfl float64) {
	img := optics.ImageIndex(s.Surfaces)
	if img < 2 {
		return math.Inf(1), math.Inf(1)
	}
	elems := s.forward(1, img-1)
	st := propagate(elems, 1, 0)
	last := st[len(st)-1]
	if math.Abs(last.Alpha) < afocalAlpha {
		return math.Inf(1), math.Inf(1)
	}
	return 1 / last.Alpha, last.H * s.N[img-1] / last.Alpha
}

// imageDistance returns the paraxial image distance after the last surface
// and the magnification α_initial/α_final for the actual object distance.
func (s System) imageDistance() (dist, mag float64) {
	img := optics.ImageIndex(s.Surfaces)
	d0 := s.Surfaces[0].Thickness
	if math.IsInf(d0, 1) {
		_, bfl := s.Focal()
		return bfl, 0
	}
	return imageOf(s.forward(1, img-1), d0, s.N[0])
}

func (s System) firstPhysical() int {
	for j := 1; j < len(s.Surfaces); j++ {
		if s.Surfaces[j].IsPhysical() {
			return j
		}
	}
	return -1
}

func (s System) lastPhysical() int {
	for j := len(s.Surfaces) - 2; j > 0; j-- {
		if s.Surfaces[j].IsPhysical() {
			return j
		}
	}
	return -1
}

// pathLength sums finite thicknesses of surfaces from..to-1.
func (s System) pathLength(from, to int) float64 {
	sum := 0.0
	for j := from; j < to; j++ {
		if t := s.Surfaces[j].Thickness; !math.IsInf(t, 0) {
			sum += t
		}
	}
	return sum
}

// EntrancePupil images the stop backwards through the surfaces ahead of it.
func (s System) EntrancePupil(stop int) (pos, dia float64) {
	r := s.Surfaces[stop].SemiDiameter
	if fp := s.firstPhysical(); fp < 0 || stop <= fp {
		return s.pathLength(1, stop), 2 * r
	}
	dist, mag := imageOf(s.reversed(stop-1, 1), s.Surfaces[stop-1].Thickness, s.N[stop-1])
	return -dist, math.Abs(mag) * 2 * r
}

// ExitPupil images the stop forwards through the surfaces behind it.
func (s System) ExitPupil(stop int) (pos, dia float64) {
	img := optics.ImageIndex(s.Surfaces)
	r := s.Surfaces[stop].SemiDiameter
	if lp := s.lastPhysical(); lp < 0 || stop >= lp {
		return -s.pathLength(stop, img), 2 * r
	}
	dist, mag := imageOf(s.forward(stop+1, img-1), s.Surfaces[stop].Thickness, s.N[stop])
	return dist - s.Surfaces[img-1].Thickness, math.Abs(mag) * 2 * r
}

// Compute derives every first-order quantity.
func Compute(s System, opt Options) (Result, error) {
	img := optics.ImageIndex(s.Surfaces)
	if img < 2 || s.Surfaces[0].Kind != optics.KindObject {
		return Result{}, fmt.Errorf("%w: need object, at least one surface and image", ErrDegenerate)
	}
	stop := optics.StopIndex(s.Surfaces)
	if stop <= 0 {
		return Result{}, fmt.Errorf("%w: no stop and no physical surface", ErrDegenerate)
	}

	var r Result
	r.StopIndex = stop
	r.StopSemiDiameter = s.Surfaces[stop].SemiDiameter
	r.EFL, r.BFL = s.Focal()
	r.ObjectAtInf = math.IsInf(s.Surfaces[0].Thickness, 1)
	r.ImageDistance, r.Magnification = s.imageDistance()
	r.EntrancePupilPos, r.EntrancePupilDia = s.EntrancePupil(stop)
	r.ExitPupilPos, r.ExitPupilDia = s.ExitPupil(stop)
	r.TotalTrack = s.pathLength(1, img)

	r.FNumber = r.EFL / r.EntrancePupilDia
	// Exit pupil to paraxial image along the axis.
	imageFromPlane := r.ImageDistance - s.Surfaces[img-1].Thickness
	r.WorkingFNumber = math.Abs(imageFromPlane-r.ExitPupilPos) / r.ExitPupilDia
	if math.IsInf(r.ImageDistance, 0) {
		r.WorkingFNumber = math.Inf(1)
	}
	r.NAImage = 1 / (2 * r.WorkingFNumber)
	r.NAObject = math.Abs(r.Magnification * r.NAImage)
	if r.Magnification == 0 {
		r.ObjectFNumber = math.Inf(1)
	} else {
		r.ObjectFNumber = math.Abs(r.WorkingFNumber / r.Magnification)
	}

	r.Marginal = s.Trace(s.marginalLaunch(r))
	r.Chief = s.Trace(s.chiefLaunch(r, opt.Field))
	return r, nil
}

// marginalLaunch aims from the axial object point at the entrance pupil edge.
func (s System) marginalLaunch(r Result) (h, a float64) {
	y := r.EntrancePupilDia / 2
	if r.ObjectAtInf {
		return y, 0
	}
	n0 := s.N[0]
	d0 := s.Surfaces[0].Thickness
	span := d0 + r.EntrancePupilPos
	if span == 0 {
		span = minDistance
	}
	u := y / span
	return u * d0, -n0 * u
}

// chiefLaunch aims from the field point at the entrance pupil centre.
func (s System) chiefLaunch(r Result, f optics.Field) (h, a float64) {
	n0 := s.N[0]
	if r.ObjectAtInf || f.Type == optics.FieldAngle {
		u := math.Tan(f.Y * math.Pi / 180)
		return -r.EntrancePupilPos * u, -n0 * u
	}
	d0 := s.Surfaces[0].Thickness
	span := d0 + r.EntrancePupilPos
	if span == 0 {
		span = minDistance
	}
	u := -f.Y / span
	return f.Y + u*d0, -n0 * u
}

// ImageHeight returns the paraxial chief-ray height at the image plane for
// a field point, used as the distortion reference.
func (s System) ImageHeight(r Result, f optics.Field) float64 {
	st := s.Trace(s.chiefLaunch(r, f))
	return st[len(st)-1].H
}
