package wavefront

import (
	"context"
	"fmt"
	"math"
	"math/cmplx"
	"sort"

	"github.com/banshee-data/lens.design/internal/progress"
	"gonum.org/v1/gonum/dsp/fourier"
)

// PSFOptions tune the transform. Padding multiplies the pupil grid; the
// pixel pitch is λ·F#·M/N for an image-space working F-number.
type PSFOptions struct {
	Progress progress.Func
	Padding  int
	// WorkingFNumber sets the pixel pitch in µm; zero leaves pitch unset.
	WorkingFNumber float64
	Fractions      []float64
}

// PSF is an fft-shifted intensity grid normalised so the diffraction
// limited peak of the same pupil is one.
type PSF struct {
	Size      int
	Intensity []float64
	// PixelUM is the sample pitch in µm, zero when unknown.
	PixelUM float64
	Peak    float64
	Strehl  float64
	// FWHMX and FWHMY are in pixels through the peak.
	FWHMX float64
	FWHMY float64
	// Enclosed holds radii in pixels at Fractions.
	Fractions  []float64
	Enclosed   []float64
	Incomplete bool
}

// EncircledUM converts Enclosed[i] to µm, NaN without a pitch.
func (p *PSF) EncircledUM(i int) float64 {
	if p.PixelUM == 0 {
		return math.NaN()
	}
	return p.Enclosed[i] * p.PixelUM
}

// ComputePSF transforms the pupil amplitude mask·exp(−i·2π·OPD) by a 2-D
// FFT. Cancellation between rows returns the partial grid marked
// Incomplete together with the error.
func ComputePSF(ctx context.Context, m *Map, opt PSFOptions) (*PSF, error) {
	if m.Valid == 0 {
		return nil, fmt.Errorf("wavefront map has no valid samples")
	}
	pad := opt.Padding
	if pad <= 0 {
		pad = 2
	}
	fractions := opt.Fractions
	if len(fractions) == 0 {
		fractions = []float64{0.5, 0.8}
	}
	size := m.Size * pad
	field := make([]complex128, size*size)
	off := (size - m.Size) / 2
	norm := 0.0
	for r := 0; r < m.Size; r++ {
		for c := 0; c < m.Size; c++ {
			k := r*m.Size + c
			if !m.Mask[k] {
				continue
			}
			norm++
			field[(r+off)*size+c+off] = cmplx.Exp(complex(0, -2*math.Pi*m.OPD[k]))
		}
	}

	out := &PSF{Size: size, Intensity: make([]float64, size*size), Fractions: fractions}
	if opt.WorkingFNumber > 0 && !math.IsInf(opt.WorkingFNumber, 0) {
		out.PixelUM = m.Wavelength * opt.WorkingFNumber * float64(m.Size) / float64(size)
	}

	tr := progress.New(ctx, opt.Progress, 1)
	tr.Begin(2*size, "psf")
	fft := fourier.NewCmplxFFT(size)
	line := make([]complex128, size)
	for r := 0; r < size; r++ {
		row := field[r*size : (r+1)*size]
		copy(line, row)
		fft.Coefficients(row, line)
		if err := tr.Step(1); err != nil {
			out.Incomplete = true
			return out, err
		}
	}
	for c := 0; c < size; c++ {
		for r := 0; r < size; r++ {
			line[r] = field[r*size+c]
		}
		col := fft.Coefficients(nil, line)
		for r := 0; r < size; r++ {
			field[r*size+c] = col[r]
		}
		if err := tr.Step(1); err != nil {
			out.Incomplete = true
			return out, err
		}
	}

	scale := 1 / (norm * norm)
	half := size / 2
	for r := 0; r < size; r++ {
		for c := 0; c < size; c++ {
			v := field[r*size+c]
			i := real(v)*real(v) + imag(v)*imag(v)
			out.Intensity[((r+half)%size)*size+(c+half)%size] = i * scale
		}
	}
	out.summarise()
	return out, nil
}

func (p *PSF) summarise() {
	peakAt := 0
	for k, v := range p.Intensity {
		if v > p.Intensity[peakAt] {
			peakAt = k
		}
	}
	p.Peak = p.Intensity[peakAt]
	// The DC term of the aberration-free pupil is Σmask, so the normalised
	// peak is the Strehl ratio.
	p.Strehl = p.Peak
	pr, pc := peakAt/p.Size, peakAt%p.Size

	rowCut := p.Intensity[pr*p.Size : (pr+1)*p.Size]
	colCut := make([]float64, p.Size)
	for r := range colCut {
		colCut[r] = p.Intensity[r*p.Size+pc]
	}
	p.FWHMX = fwhm(rowCut, pc)
	p.FWHMY = fwhm(colCut, pr)

	type px struct{ r, v float64 }
	all := make([]px, len(p.Intensity))
	total := 0.0
	for k, v := range p.Intensity {
		dr, dc := float64(k/p.Size-pr), float64(k%p.Size-pc)
		all[k] = px{math.Hypot(dr, dc), v}
		total += v
	}
	sort.Slice(all, func(i, j int) bool { return all[i].r < all[j].r })
	p.Enclosed = make([]float64, len(p.Fractions))
	for i := range p.Enclosed {
		p.Enclosed[i] = math.NaN()
	}
	acc := 0.0
	next := 0
	order := make([]int, len(p.Fractions))
	for i := range order {
		order[i] = i
	}
	sort.Slice(order, func(a, b int) bool { return p.Fractions[order[a]] < p.Fractions[order[b]] })
	for _, q := range all {
		acc += q.v
		for next < len(order) && acc >= p.Fractions[order[next]]*total {
			p.Enclosed[order[next]] = q.r
			next++
		}
		if next == len(order) {
			break
		}
	}
}

// fwhm returns the full width at half maximum of a cut around index at,
// interpolating linearly between samples.
func fwhm(cut []float64, at int) float64 {
	half := cut[at] / 2
	left := float64(at)
	for i := at; i > 0; i-- {
		if cut[i-1] < half {
			left = float64(i-1) + (half-cut[i-1])/(cut[i]-cut[i-1])
			break
		}
	}
	right := float64(at)
	for i := at; i < len(cut)-1; i++ {
		if cut[i+1] < half {
			right = float64(i) + (cut[i]-half)/(cut[i]-cut[i+1])
			break
		}
	}
	return right - left
}
