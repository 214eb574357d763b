package aberration

import (
	"fmt"

	"github.com/banshee-data/lens.design/internal/glass"
	"github.com/banshee-data/lens.design/internal/optics"
	"github.com/banshee-data/lens.design/internal/raytrace"
	"github.com/banshee-data/lens.design/internal/units"
)

// SeidelSums are the five monochromatic sums and two chromatic sums, in mm.
type SeidelSums struct {
	SI   float64 `json:"S1"`
	SII  float64 `json:"S2"`
	SIII float64 `json:"S3"`
	SIV  float64 `json:"S4"`
	SV   float64 `json:"S5"`
	LCA  float64 `json:"CL"`
	TCA  float64 `json:"CT"`
}

func (s *SeidelSums) add(o SeidelSums) {
	s.SI += o.SI
	s.SII += o.SII
	s.SIII += o.SIII
	s.SIV += o.SIV
	s.SV += o.SV
	s.LCA += o.LCA
	s.TCA += o.TCA
}

// WaveCoefficients converts the sums to wavefront coefficients in waves:
// W040, W131, W222, W220 and W311.
func (s SeidelSums) WaveCoefficients(lambdaUM float64) [5]float64 {
	l := units.UMToMM(lambdaUM)
	return [5]float64{s.SI / 8 / l, s.SII / 2 / l, s.SIII / 2 / l, (s.SIII + s.SIV) / 4 / l, s.SV / 2 / l}
}

// SurfaceSeidel is one surface's contribution.
type SurfaceSeidel struct {
	Surface int
	BlockID string
	SeidelSums
}

// BlockSeidel sums the surfaces stamped with one block id.
type BlockSeidel struct {
	BlockID string
	SeidelSums
}

// SeidelResult holds per-surface, per-block and total sums.
type SeidelResult struct {
	Surfaces []SurfaceSeidel
	Blocks   []BlockSeidel
	Total    SeidelSums
	// Lagrange is the optical invariant of the marginal and chief rays.
	Lagrange float64
}

// SeidelOptions name the dispersion source for the chromatic sums. With a
// nil Resolver LCA and TCA are zero.
type SeidelOptions struct {
	Resolver    optics.IndexResolver
	Short, Long float64 // µm, default F and C lines
}

// Seidel accumulates the third-order sums from the paraxial marginal and
// chief rays at the primary wavelength, using A = n(hc + u), Ā = n(h̄c + ū)
// and H = A·h̄ − Ā·h. A mirror is taken as n' = −n.
func Seidel(m *raytrace.Model, opt SeidelOptions) (SeidelResult, error) {
	w := m.Primary()
	ps := m.ParaxialSystem(w)
	pr := m.Paraxial(w)
	mar, chi := pr.Marginal, pr.Chief
	img := optics.ImageIndex(m.Surfaces)
	if len(mar) != len(m.Surfaces) || len(chi) != len(m.Surfaces) {
		return SeidelResult{}, fmt.Errorf("paraxial rays cover %d of %d surfaces", len(mar), len(m.Surfaces))
	}

	dn := make([]float64, len(m.Surfaces))
	if opt.Resolver != nil {
		if opt.Short <= 0 {
			opt.Short = glass.LineF
		}
		if opt.Long <= 0 {
			opt.Long = glass.LineC
		}
		ns, err := optics.Indices(m.Surfaces, opt.Resolver, opt.Short)
		if err != nil {
			return SeidelResult{}, err
		}
		nl, err := optics.Indices(m.Surfaces, opt.Resolver, opt.Long)
		if err != nil {
			return SeidelResult{}, err
		}
		for i := range dn {
			dn[i] = ns[i] - nl[i]
		}
	}

	var res SeidelResult
	blockAt := map[string]int{}
	for j := 1; j < img; j++ {
		sf := m.Surfaces[j]
		if !sf.IsPhysical() {
			continue
		}
		c := sf.Curvature()
		n, n2 := ps.N[j-1], ps.N[j]
		n2sign := n2
		if sf.Reflective {
			n2sign = -n
		}
		h, a0, a1 := mar[j].H, mar[j-1].Alpha, mar[j].Alpha
		hb, ab0 := chi[j].H, chi[j-1].Alpha

		// α = −n·u, so u/n = −α/n².
		A := n*h*c - a0
		Ab := n*hb*c - ab0
		H := A*hb - Ab*h
		dUN := -a1/(n2*n2) + a0/(n*n)
		dInvN := 1/n2sign - 1/n
		dInvN2 := 1/(n2*n2) - 1/(n*n)

		s := SeidelSums{
			SI:   -A * A * h * dUN,
			SII:  -A * Ab * h * dUN,
			SIII: -Ab * Ab * h * dUN,
			SIV:  -H * H * c * dInvN,
			SV:   -Ab*Ab*Ab*h*dInvN2 + Ab*c*hb*dInvN*(2*Ab*h-A*hb),
		}
		if !sf.Reflective {
			d := dn[j]/n2 - dn[j-1]/n
			s.LCA = A * h * d
			s.TCA = Ab * h * d
		}
		res.Lagrange = H
		res.Surfaces = append(res.Surfaces, SurfaceSeidel{Surface: j, BlockID: sf.Provenance.BlockID, SeidelSums: s})
		res.Total.add(s)

		id := sf.Provenance.BlockID
		k, ok := blockAt[id]
		if !ok {
			k = len(res.Blocks)
			blockAt[id] = k
			res.Blocks = append(res.Blocks, BlockSeidel{BlockID: id})
		}
		res.Blocks[k].add(s)
	}
	return res, nil
}
