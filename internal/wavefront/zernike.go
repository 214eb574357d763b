package wavefront

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// MaxZernikeTerms is the highest supported Noll index.
const MaxZernikeTerms = 37

// Noll returns the radial order n and azimuthal frequency m of Noll index
// j ≥ 1. Positive m is a cosine term, negative a sine term.
func Noll(j int) (n, m int) {
	j1 := j - 1
	for j1 > n {
		n++
		j1 -= n
	}
	m = (n % 2) + 2*((j1+(n+1)%2)/2)
	if j%2 == 1 {
		m = -m
	}
	return n, m
}

func factorial(k int) float64 {
	f := 1.0
	for i := 2; i <= k; i++ {
		f *= float64(i)
	}
	return f
}

func radial(n, m int, rho float64) float64 {
	m = absInt(m)
	sum := 0.0
	for k := 0; k <= (n-m)/2; k++ {
		c := factorial(n-k) / (factorial(k) * factorial((n+m)/2-k) * factorial((n-m)/2-k))
		if k%2 == 1 {
			c = -c
		}
		sum += c * math.Pow(rho, float64(n-2*k))
	}
	return sum
}

func absInt(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

// Zernike evaluates the Noll-normalised polynomial j at polar (ρ, θ). The
// normalisation makes each term's mean square over the unit disk one.
func Zernike(j int, rho, theta float64) float64 {
	n, m := Noll(j)
	r := radial(n, m, rho)
	switch {
	case m == 0:
		return math.Sqrt(float64(n+1)) * r
	case m > 0:
		return math.Sqrt(2*float64(n+1)) * r * math.Cos(float64(m)*theta)
	default:
		return math.Sqrt(2*float64(n+1)) * r * math.Sin(float64(-m)*theta)
	}
}

// ZernikeFit is the least-squares decomposition of a map. Coefficients[k]
// belongs to Noll index k+1; values are in waves.
type ZernikeFit struct {
	Coefficients []float64
	ResidualRMS  float64
	PV           float64
	RMS          float64
}

// Coefficient returns the term for Noll index j, or 0 when not fitted.
func (z ZernikeFit) Coefficient(j int) float64 {
	if j < 1 || j > len(z.Coefficients) {
		return 0
	}
	return z.Coefficients[j-1]
}

// FitZernike projects the valid samples of m onto Noll terms 1..terms.
func FitZernike(m *Map, terms int) (ZernikeFit, error) {
	if terms < 1 || terms > MaxZernikeTerms {
		return ZernikeFit{}, fmt.Errorf("zernike terms %d outside 1..%d", terms, MaxZernikeTerms)
	}
	if m.Valid < terms {
		return ZernikeFit{}, fmt.Errorf("%d valid samples cannot fit %d zernike terms", m.Valid, terms)
	}
	a := mat.NewDense(m.Valid, terms, nil)
	b := mat.NewVecDense(m.Valid, nil)
	row := 0
	for r := 0; r < m.Size; r++ {
		for c := 0; c < m.Size; c++ {
			k := r*m.Size + c
			if !m.Mask[k] {
				continue
			}
			x, y := m.Pupil(r, c)
			rho, theta := math.Hypot(x, y), math.Atan2(y, x)
			for j := 1; j <= terms; j++ {
				a.Set(row, j-1, Zernike(j, rho, theta))
			}
			b.SetVec(row, m.OPD[k])
			row++
		}
	}
	var x mat.VecDense
	if err := x.SolveVec(a, b); err != nil {
		return ZernikeFit{}, fmt.Errorf("zernike least squares: %w", err)
	}
	var fitted mat.VecDense
	fitted.MulVec(a, &x)
	resid := make([]float64, m.Valid)
	for i := range resid {
		resid[i] = b.AtVec(i) - fitted.AtVec(i)
	}
	coef := make([]float64, terms)
	for i := range coef {
		coef[i] = x.AtVec(i)
	}
	return ZernikeFit{
		Coefficients: coef,
		ResidualRMS:  math.Sqrt(floats.Dot(resid, resid) / float64(len(resid))),
		PV:           m.PV(),
		RMS:          m.RMS(),
	}, nil
}
