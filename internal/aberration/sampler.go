// Package aberration runs the ray-based image quality analyses: spot
// diagrams, ray fans, longitudinal aberration, astigmatic field curves,
// distortion and Seidel sums.
package aberration

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/banshee-data/lens.design/internal/optics"
	"github.com/banshee-data/lens.design/internal/progress"
	"github.com/banshee-data/lens.design/internal/raytrace"
)

// ErrAfocal is returned by analyses that need a finite image.
var ErrAfocal = errors.New("afocal image space")

// Run carries progress reporting shared by every analysis.
type Run struct {
	Progress   progress.Func
	YieldEvery int
}

func (r Run) tracker(ctx context.Context) *progress.Tracker {
	return progress.New(ctx, r.Progress, r.YieldEvery)
}

// PupilPoint is a normalised entrance pupil coordinate.
type PupilPoint struct{ X, Y float64 }

// Annular samples the unit pupil with a centre ray and rings of radius k/R.
// Ring k carries about (n−1)·k/Σk points, so the density is near uniform.
func Annular(n, rings int) []PupilPoint {
	if n < 1 {
		n = 1
	}
	if rings < 1 {
		rings = 1
	}
	out := []PupilPoint{{}}
	sum := rings * (rings + 1) / 2
	for k := 1; k <= rings; k++ {
		count := int(math.Round(float64(n-1) * float64(k) / float64(sum)))
		if count < 1 {
			count = 1
		}
		r := float64(k) / float64(rings)
		for i := 0; i < count; i++ {
			s, c := math.Sincos(2 * math.Pi * float64(i) / float64(count))
			out = append(out, PupilPoint{X: r * c, Y: r * s})
		}
	}
	return out
}

// Fan returns n evenly spaced pupil fractions across [−1, 1].
func Fan(n int) []float64 {
	if n < 2 {
		return []float64{0}
	}
	out := make([]float64, n)
	for i := range out {
		out[i] = -1 + 2*float64(i)/float64(n-1)
	}
	return out
}

// selection resolves a 1-based index into a list of zero-based indices; 0
// selects all.
func selection(n1, count int, what string) ([]int, error) {
	if n1 < 0 || n1 > count {
		return nil, fmt.Errorf("%s %d out of range 1..%d", what, n1, count)
	}
	if n1 > 0 {
		return []int{n1 - 1}, nil
	}
	out := make([]int, count)
	for i := range out {
		out[i] = i
	}
	return out, nil
}

// paraxialImageOffset is the paraxial focus relative to the image plane.
func paraxialImageOffset(m *raytrace.Model, w int) float64 {
	img := optics.ImageIndex(m.Surfaces)
	return m.Paraxial(w).ImageDistance - m.Surfaces[img-1].Thickness
}

// slopes returns the image-frame direction tangents of a path.
func slopes(m *raytrace.Model, w int, p raytrace.Path) (sx, sy float64) {
	d := m.System(w).ImageFrame().DirToLocal(p.Dirs[len(p.Dirs)-1])
	return d.X / d.Z, d.Y / d.Z
}
