package blocks

import (
	"fmt"
	"math"
	"strings"

	"github.com/banshee-data/lens.design/internal/design"
	"github.com/banshee-data/lens.design/internal/glass"
	"github.com/banshee-data/lens.design/internal/optics"
)

// Derivation is the block list recovered from a surface sequence.
type Derivation struct {
	Blocks []design.Block
	// ImportMode is set when the sequence does not fit the block taxonomy.
	// Blocks is then nil and Rows carries the full sequence.
	ImportMode bool
	Reason     string
	Rows       []design.SurfaceRow
}

// DeriveOptions tune block recovery.
type DeriveOptions struct {
	// DefaultSemiDiameter is omitted from recovered apertures.
	DefaultSemiDiameter float64
}

type deriver struct {
	opt    DeriveOptions
	blocks []design.Block
	used   map[string]bool
	counts map[string]int
}

func (d *deriver) defaultSD() float64 {
	if d.opt.DefaultSemiDiameter > 0 {
		return d.opt.DefaultSemiDiameter
	}
	return Options{}.defaultSemiDiameter()
}

// id returns the provenance id if it is free, else a fresh prefixN id.
func (d *deriver) id(want, prefix string) string {
	if want != "" && !d.used[want] {
		d.used[want] = true
		return want
	}
	for {
		d.counts[prefix]++
		cand := fmt.Sprintf("%s%d", prefix, d.counts[prefix])
		if !d.used[cand] {
			d.used[cand] = true
			return cand
		}
	}
}

func (d *deriver) add(b design.Block) {
	d.blocks = append(d.blocks, b)
}

// gap emits an AirGap for the trailing thickness of s when it has one.
func (d *deriver) gap(s optics.Surface) {
	if s.Provenance.GapID == "" && s.Thickness == 0 {
		return
	}
	d.add(design.Block{
		BlockID:    d.id(s.Provenance.GapID, "gap"),
		BlockType:  KindAirGap.String(),
		Parameters: design.Params{"thickness": s.Thickness},
	})
}

func (d *deriver) aperture(ap map[string]float64, role string, sd float64) map[string]float64 {
	if sd <= 0 || sd == d.defaultSD() {
		return ap
	}
	if ap == nil {
		ap = map[string]float64{}
	}
	ap[role] = sd
	return ap
}

// writeSurface stores a surface shape under the given keys.
func writeSurface(p design.Params, radiusKey, prefix string, spec SurfaceSpec) {
	p[radiusKey] = spec.Radius
	switch spec.Type {
	case ProfileEvenAsphere:
		p[paramKey(prefix, "SurfType")] = design.SurfEvenAsph
	case ProfileOddAsphere:
		p[paramKey(prefix, "SurfType")] = design.SurfOddAsph
	default:
		return
	}
	if spec.Conic != 0 {
		p[paramKey(prefix, "Conic")] = spec.Conic
	}
	for i, c := range spec.Coef {
		if c != 0 {
			p[paramKey(prefix, fmt.Sprintf("Coef%d", i+1))] = c
		}
	}
}

func isGlass(s optics.Surface) bool {
	return !s.Reflective && !glass.IsAir(s.Material) && !strings.EqualFold(s.Material, optics.MaterialMirror)
}

// Derive recovers design-intent blocks from surfaces. Runs of 2, 3 or 4
// refracting surfaces that start in glass and end in air become a Lens,
// Doublet or Triplet. Anything else puts the derivation into import mode.
func Derive(surfaces []optics.Surface, opt DeriveOptions) Derivation {
	rows := design.SurfacesToRows(surfaces)
	d := &deriver{opt: opt, used: map[string]bool{}, counts: map[string]int{}}
	importMode := func(reason string) Derivation {
		return Derivation{ImportMode: true, Reason: reason, Rows: rows}
	}

	if len(surfaces) < 2 || surfaces[0].Kind != optics.KindObject || surfaces[len(surfaces)-1].Kind != optics.KindImage {
		return importMode("sequence must start with an object and end with an image")
	}

	for i := 0; i < len(surfaces); {
		s := surfaces[i]
		switch {
		case s.Kind == optics.KindObject && s.Provenance.BlockID == "" && math.IsInf(s.Thickness, 1):
			// Supplied by the expander; re-expansion supplies it again.
			i++
		case s.Kind == optics.KindImage && s.Provenance.BlockID == "" && (s.SemiDiameter <= 0 || s.SemiDiameter == d.defaultSD()):
			i++
		case s.Kind == optics.KindObject:
			d.add(design.Block{
				BlockID:    d.id(s.Provenance.BlockID, "obj"),
				BlockType:  KindObjectPlane.String(),
				Parameters: design.Params{"distance": s.Thickness},
			})
			if s.Provenance.GapID != "" {
				return importMode("object distance carries an air gap")
			}
			i++
		case s.Kind == optics.KindImage:
			p := design.Params{}
			if s.SemiDiameter > 0 && s.SemiDiameter != d.defaultSD() {
				p["semiDiameter"] = s.SemiDiameter
			}
			d.add(design.Block{BlockID: d.id(s.Provenance.BlockID, "img"), BlockType: KindImagePlane.String(), Parameters: p})
			if i != len(surfaces)-1 || s.Thickness != 0 {
				return importMode("image plane must be last")
			}
			i++
		case s.Kind == optics.KindStop && !isGlass(s) && s.Curvature() == 0 && s.Provenance.Role != optics.RoleFront && s.Provenance.Role != optics.RoleBack:
			d.add(design.Block{
				BlockID:    d.id(s.Provenance.BlockID, "stop"),
				BlockType:  KindStop.String(),
				Parameters: design.Params{"semiDiameter": s.SemiDiameter},
			})
			d.gap(s)
			i++
		case s.Kind == optics.KindCoordBreak:
			b := s.Break
			d.add(design.Block{
				BlockID:   d.id(s.Provenance.BlockID, "cb"),
				BlockType: KindCoordBreak.String(),
				Parameters: design.Params{
					"decenterX": b.DX, "decenterY": b.DY, "decenterZ": b.DZ,
					"tiltX": b.TiltX, "tiltY": b.TiltY, "tiltZ": b.TiltZ,
					"order": float64(b.Order),
				},
			})
			d.gap(s)
			i++
		case s.Reflective:
			p := design.Params{}
			writeSurface(p, "radius", "", SpecFromProfile(s.Profile))
			d.add(design.Block{
				BlockID:    d.id(s.Provenance.BlockID, "M"),
				BlockType:  KindMirror.String(),
				Parameters: p,
				Aperture:   d.aperture(nil, optics.RoleMirror, s.SemiDiameter),
			})
			d.gap(s)
			i++
		case isGlass(s):
			j := i
			for j < len(surfaces) && isGlass(surfaces[j]) && surfaces[j].IsPhysical() {
				j++
			}
			// surfaces[i:j] are in glass; surfaces[j] must be the air exit.
			if j >= len(surfaces)-1 || !surfaces[j].IsPhysical() || surfaces[j].Reflective {
				return importMode(fmt.Sprintf("glass run starting at surface %d has no air exit", i))
			}
			if !d.group(surfaces[i : j+1]) {
				return importMode(fmt.Sprintf("cemented group of %d surfaces at %d does not fit a block", j-i+1, i))
			}
			i = j + 1
		default:
			return importMode(fmt.Sprintf("surface %d (%s in %s) does not belong to a block", i, s.Kind, s.Material))
		}
	}
	return Derivation{Blocks: d.blocks, Rows: rows}
}

// group emits a Lens, Doublet or Triplet for a glass run ending in air.
func (d *deriver) group(run []optics.Surface) bool {
	for _, s := range run[:len(run)-1] {
		if s.Provenance.GapID != "" {
			return false
		}
	}
	want := run[0].Provenance.BlockID
	for _, s := range run[1:] {
		if s.Provenance.BlockID != want {
			want = ""
		}
	}
	p := design.Params{}
	var ap map[string]float64
	last := run[len(run)-1]

	switch len(run) {
	case 2:
		writeSurface(p, "frontRadius", "front", SpecFromProfile(run[0].Profile))
		writeSurface(p, "backRadius", "back", SpecFromProfile(run[1].Profile))
		p["centerThickness"] = run[0].Thickness
		p["material"] = run[0].Material
		ap = d.aperture(ap, optics.RoleFront, run[0].SemiDiameter)
		ap = d.aperture(ap, optics.RoleBack, run[1].SemiDiameter)
		d.add(design.Block{BlockID: d.id(want, "L"), BlockType: KindLens.String(), Parameters: p, Aperture: ap})
	case 3, 4:
		for k, s := range run {
			writeSurface(p, fmt.Sprintf("radius%d", k+1), fmt.Sprintf("s%d", k+1), SpecFromProfile(s.Profile))
			ap = d.aperture(ap, optics.SurfaceRole(k), s.SemiDiameter)
			if k < len(run)-1 {
				p[fmt.Sprintf("thickness%d", k+1)] = s.Thickness
				p[fmt.Sprintf("material%d", k+1)] = s.Material
			}
		}
		kind, prefix := KindDoublet, "D"
		if len(run) == 4 {
			kind, prefix = KindTriplet, "T"
		}
		d.add(design.Block{BlockID: d.id(want, prefix), BlockType: kind.String(), Parameters: p, Aperture: ap})
	default:
		return false
	}
	d.gap(last)
	return true
}
