// Package wavefront computes exit-pupil optical path difference maps, fits
// Zernike polynomials to them and transforms them into point spread
// functions.
package wavefront

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/banshee-data/lens.design/internal/optics"
	"github.com/banshee-data/lens.design/internal/progress"
	"github.com/banshee-data/lens.design/internal/raytrace"
	"github.com/banshee-data/lens.design/internal/units"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/spatial/r3"
	"gonum.org/v1/gonum/stat"
)

// MaxGridSize bounds the pupil sampling.
const MaxGridSize = 512

// ErrChiefRay is returned when the reference ray cannot be traced.
var ErrChiefRay = errors.New("chief ray failed")

// Reference selects the surface OPD is measured against.
type Reference int

const (
	// ReferenceSphere is centred on the chief ray landing and passes through
	// the exit pupil.
	ReferenceSphere Reference = iota
	// ReferencePlane is normal to the chief ray, used for afocal image space
	// and a telecentric exit pupil.
	ReferencePlane
)

// Options tune OPD sampling.
type Options struct {
	Progress progress.Func
	GridSize int
	// TraceGrid, when below GridSize, traces a TraceGrid² grid and fills
	// the GridSize² map by nearest neighbour.
	TraceGrid int
}

// Map is a square pupil OPD map in waves. Cells are row-major with row 0 at
// pupil y = −1; cells outside the pupil or vignetted are masked out and NaN.
type Map struct {
	Size       int
	OPD        []float64
	Mask       []bool
	Wavelength float64 // µm
	Field      optics.Field
	Reference  Reference
	// Radius is the reference sphere radius in mm, zero for a plane.
	Radius     float64
	Valid      int
	Total      int
	Incomplete bool
}

// NewMap allocates an all-masked map.
func NewMap(size int, lambdaUM float64) *Map {
	m := &Map{Size: size, Wavelength: lambdaUM, OPD: make([]float64, size*size), Mask: make([]bool, size*size)}
	for i := range m.OPD {
		m.OPD[i] = math.NaN()
	}
	return m
}

// Pupil returns the normalised pupil coordinate of cell (row, col).
func (m *Map) Pupil(row, col int) (x, y float64) {
	x = -1 + (2*float64(col)+1)/float64(m.Size)
	y = -1 + (2*float64(row)+1)/float64(m.Size)
	return x, y
}

// Set stores a valid sample.
func (m *Map) Set(row, col int, waves float64) {
	k := row*m.Size + col
	if !m.Mask[k] {
		m.Valid++
	}
	m.Mask[k] = true
	m.OPD[k] = waves
}

// Values returns the valid samples in cell order.
func (m *Map) Values() []float64 {
	out := make([]float64, 0, m.Valid)
	for k, ok := range m.Mask {
		if ok {
			out = append(out, m.OPD[k])
		}
	}
	return out
}

// Samples returns the valid cells as scattered pupil samples.
func (m *Map) Samples() []Sample {
	out := make([]Sample, 0, m.Valid)
	for k, ok := range m.Mask {
		if ok {
			x, y := m.Pupil(k/m.Size, k%m.Size)
			out = append(out, Sample{X: x, Y: y, Waves: m.OPD[k]})
		}
	}
	return out
}

// RMS is the standard deviation of the valid samples, in waves.
func (m *Map) RMS() float64 {
	v := m.Values()
	if len(v) == 0 {
		return math.NaN()
	}
	return math.Sqrt(stat.PopVariance(v, nil))
}

// PV is the peak-to-valley of the valid samples, in waves.
func (m *Map) PV() float64 {
	v := m.Values()
	if len(v) == 0 {
		return math.NaN()
	}
	return floats.Max(v) - floats.Min(v)
}

// In converts a value in waves to unit at the map wavelength.
func (m *Map) In(waves float64, unit string) (float64, error) {
	if !units.IsValidWavefront(unit) {
		return 0, fmt.Errorf("invalid wavefront unit %q, want one of %s", unit, units.GetValidWavefrontUnitsString())
	}
	return units.ConvertWavefront(waves, m.Wavelength, unit), nil
}

// OPD traces a GridSize² pupil grid (or a coarser TraceGrid² one, regridded)
// at field f and wavelength w (zero-based) and stores OPL_chief − OPL_ray in waves, so positive values lead the
// reference. Cancellation returns the partial map marked Incomplete.
func OPD(ctx context.Context, model *raytrace.Model, f optics.Field, w int, opt Options) (*Map, error) {
	size := opt.GridSize
	if size <= 0 {
		size = 32
	}
	if size > MaxGridSize {
		return nil, fmt.Errorf("grid size %d exceeds %d", size, MaxGridSize)
	}
	if w < 0 || w >= len(model.Wavelengths) {
		return nil, fmt.Errorf("wavelength index %d out of range", w)
	}
	lambda := model.Wavelengths[w].UM
	sys := model.System(w)
	frame := sys.ImageFrame()
	img := sys.Len() - 1
	n := sys.Index(img - 1)

	chief := model.Chief(f, w)
	if !chief.OK() {
		return nil, fmt.Errorf("%w: %s at surface %d", ErrChiefRay, chief.Status, chief.Failed)
	}
	pc := chief.Image()
	dc := frame.DirToLocal(chief.Dirs[len(chief.Dirs)-1])

	out := NewMap(size, lambda)
	out.Field = f
	out.Reference = ReferencePlane
	exit := model.Paraxial(model.Primary()).ExitPupilPos
	if !model.Afocal() && !math.IsInf(exit, 0) && dc.Z != 0 {
		if r := math.Abs((exit - pc.Z) / dc.Z); r > 0 {
			out.Reference = ReferenceSphere
			out.Radius = r
		}
	}

	toRef := func(p raytrace.Path) (float64, bool) {
		at := p.Image()
		d := frame.DirToLocal(p.Dirs[len(p.Dirs)-1])
		rel := r3.Sub(at, pc)
		var s float64
		if out.Reference == ReferenceSphere {
			b := r3.Dot(d, rel)
			disc := b*b - (r3.Dot(rel, rel) - out.Radius*out.Radius)
			if disc < 0 {
				return 0, false
			}
			s = -b - math.Sqrt(disc)
		} else {
			cos := r3.Dot(d, dc)
			if cos == 0 {
				return 0, false
			}
			s = -r3.Dot(rel, dc) / cos
		}
		return p.OPL + n*s, true
	}
	ref, ok := toRef(chief)
	if !ok {
		return nil, fmt.Errorf("%w: no reference intersection", ErrChiefRay)
	}
	perWave := units.UMToMM(lambda)

	grid := out
	if opt.TraceGrid > 0 && opt.TraceGrid < size {
		grid = NewMap(opt.TraceGrid, lambda)
		grid.Field, grid.Reference, grid.Radius = out.Field, out.Reference, out.Radius
	}

	tr := progress.New(ctx, opt.Progress, 1)
	tr.Begin(grid.Size, "wavefront")
	for row := 0; row < grid.Size; row++ {
		for col := 0; col < grid.Size; col++ {
			x, y := grid.Pupil(row, col)
			if x*x+y*y > 1 {
				continue
			}
			grid.Total++
			p := model.Trace(f, w, x, y)
			if !p.OK() {
				continue
			}
			if opl, ok := toRef(p); ok {
				grid.Set(row, col, (ref-opl)/perWave)
			}
		}
		if err := tr.Step(1); err != nil {
			grid.Incomplete = true
			return grid, err
		}
	}
	if grid == out {
		return out, nil
	}
	// Cells farther than one and a half trace cells from a sample stay masked.
	fine := Regrid(grid.Samples(), size, lambda, 3/float64(grid.Size))
	fine.Field, fine.Reference, fine.Radius = out.Field, out.Reference, out.Radius
	return fine, nil
}
