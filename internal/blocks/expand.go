package blocks

import (
	"errors"
	"math"

	"github.com/banshee-data/lens.design/internal/config"
	"github.com/banshee-data/lens.design/internal/design"
	"github.com/banshee-data/lens.design/internal/glass"
	"github.com/banshee-data/lens.design/internal/optics"
)

// Options control one expansion.
type Options struct {
	// Overrides are "blockId.key" → value, applied before decoding.
	Overrides map[string]interface{}
	// PreserveLegacy copies the first row's thickness and per-row
	// semi-diameters from Legacy onto the expansion. Stop and Image rows
	// are never overwritten.
	PreserveLegacy bool
	Legacy         []design.SurfaceRow
	// DefaultSemiDiameter applies to surfaces with no explicit aperture.
	DefaultSemiDiameter float64
}

func (o Options) defaultSemiDiameter() float64 {
	if o.DefaultSemiDiameter > 0 {
		return o.DefaultSemiDiameter
	}
	return config.DefaultSemiDiameter
}

// Expansion is the result of expanding a block list.
type Expansion struct {
	Surfaces []optics.Surface
	// Provenance maps a block id to the indices of the surfaces it emitted.
	Provenance map[string][]int
	Issues     []Issue
}

// Fatal reports whether any issue is fatal. Callers must not evaluate a
// fatal expansion.
func (e Expansion) Fatal() bool {
	for _, i := range e.Issues {
		if i.Severity == SeverityFatal {
			return true
		}
	}
	return false
}

// Err joins the fatal issues, or returns nil.
func (e Expansion) Err() error {
	var errs []error
	for _, i := range e.Issues {
		if i.Severity == SeverityFatal {
			errs = append(errs, i)
		}
	}
	return errors.Join(errs...)
}

type expander struct {
	opt      Options
	surfaces []optics.Surface
	issues   []Issue
	sawStop  bool
}

func (x *expander) warn(id, role, msg string) {
	x.issues = append(x.issues, Issue{Severity: SeverityWarning, BlockID: id, Role: role, Message: msg})
}

func (x *expander) fatal(id, role, msg string) {
	x.issues = append(x.issues, Issue{Severity: SeverityFatal, BlockID: id, Role: role, Message: msg})
}

func (x *expander) aperture(ap map[string]float64, role string) float64 {
	if v, ok := ap[role]; ok && v > 0 {
		return v
	}
	return x.opt.defaultSemiDiameter()
}

func (x *expander) emit(s optics.Surface) {
	x.surfaces = append(x.surfaces, s)
}

// Expand turns blocks into surfaces. It is total: every problem becomes an
// Issue and the blocks that can be expanded still are.
func Expand(recs []design.Block, opt Options) Expansion {
	x := &expander{opt: opt}

	applied, unmatched := design.ApplyOverrides(recs, opt.Overrides)
	for _, k := range unmatched {
		x.warn("", "", "override "+k+" does not name a block parameter")
	}

	for i, rec := range applied {
		v, issues := Decode(rec)
		x.issues = append(x.issues, issues...)
		if v == nil {
			continue
		}
		x.expandOne(i, v)
	}
	x.finish()

	if opt.PreserveLegacy && len(opt.Legacy) > 0 {
		x.preserveLegacy(opt.Legacy)
	}

	prov := make(map[string][]int)
	for i, s := range x.surfaces {
		if s.Provenance.BlockID != "" {
			prov[s.Provenance.BlockID] = append(prov[s.Provenance.BlockID], i)
		}
	}
	return Expansion{Surfaces: x.surfaces, Provenance: prov, Issues: x.issues}
}

func stamp(id, role string) optics.Provenance {
	return optics.Provenance{BlockID: id, Role: role}
}

func (x *expander) expandOne(pos int, v Variant) {
	switch b := v.(type) {
	case ObjectPlane:
		if len(x.surfaces) > 0 {
			x.fatal(b.BlockID, optics.RoleObject, "object plane must be the first block")
			return
		}
		x.emit(optics.Surface{
			Kind: optics.KindObject, Profile: optics.Plane{}, Thickness: b.Distance,
			Material: glass.Air, Provenance: stamp(b.BlockID, optics.RoleObject),
		})
	case Stop:
		if x.sawStop {
			x.fatal(b.BlockID, optics.RoleStop, "more than one stop")
			return
		}
		x.sawStop = true
		x.emit(optics.Surface{
			Kind: optics.KindStop, Profile: optics.Plane{}, SemiDiameter: b.SemiDiameter,
			Material: glass.Air, Provenance: stamp(b.BlockID, optics.RoleStop),
		})
	case Lens:
		x.emit(optics.Surface{
			Kind: optics.KindStandard, Profile: b.Front.Profile(), Thickness: b.Thickness,
			SemiDiameter: x.aperture(b.Aperture, optics.RoleFront), Material: b.Material,
			Provenance: stamp(b.BlockID, optics.RoleFront),
		})
		x.emit(optics.Surface{
			Kind: optics.KindStandard, Profile: b.Back.Profile(),
			SemiDiameter: x.aperture(b.Aperture, optics.RoleBack), Material: glass.Air,
			Provenance: stamp(b.BlockID, optics.RoleBack),
		})
	case Doublet:
		x.cemented(b.BlockID, b.Surfaces[:], b.Thickness[:], b.Materials[:], b.Aperture)
	case Triplet:
		x.cemented(b.BlockID, b.Surfaces[:], b.Thickness[:], b.Materials[:], b.Aperture)
	case Mirror:
		x.emit(optics.Surface{
			Kind: optics.KindStandard, Profile: b.Surface.Profile(), Reflective: true,
			SemiDiameter: x.aperture(b.Aperture, optics.RoleMirror), Material: optics.MaterialMirror,
			Provenance: stamp(b.BlockID, optics.RoleMirror),
		})
	case AirGap:
		if len(x.surfaces) == 0 {
			x.fatal(b.BlockID, "", "air gap has no preceding surface")
			return
		}
		last := &x.surfaces[len(x.surfaces)-1]
		last.Thickness += b.Thickness
		if last.Provenance.GapID != "" {
			x.warn(b.BlockID, "", "consecutive air gaps merged into "+last.Provenance.GapID)
			return
		}
		last.Provenance.GapID = b.BlockID
	case ImagePlane:
		sd := b.SemiDiameter
		if sd <= 0 {
			sd = x.opt.defaultSemiDiameter()
		}
		x.emit(optics.Surface{
			Kind: optics.KindImage, Profile: optics.Plane{}, SemiDiameter: sd,
			Material: glass.Air, Provenance: stamp(b.BlockID, optics.RoleImage),
		})
	case CoordBreak:
		x.emit(optics.Surface{
			Kind: optics.KindCoordBreak, Profile: optics.Plane{}, Break: b.Break,
			Provenance: stamp(b.BlockID, optics.RoleBreak),
		})
	}
}

func (x *expander) cemented(id string, specs []SurfaceSpec, thick []float64, mats []string, ap map[string]float64) {
	for i, sp := range specs {
		role := optics.SurfaceRole(i)
		s := optics.Surface{
			Kind: optics.KindStandard, Profile: sp.Profile(),
			SemiDiameter: x.aperture(ap, role), Material: glass.Air,
			Provenance: stamp(id, role),
		}
		if i < len(thick) {
			s.Thickness = thick[i]
			s.Material = mats[i]
		}
		x.emit(s)
	}
}

// finish supplies the fixed Object and Image ends and a stop when the block
// list omits them.
func (x *expander) finish() {
	if len(x.surfaces) == 0 || x.surfaces[0].Kind != optics.KindObject {
		x.warn("", optics.RoleObject, "no object plane; assuming an object at infinity")
		obj := optics.Surface{
			Kind: optics.KindObject, Profile: optics.Plane{}, Thickness: math.Inf(1),
			Material: glass.Air, Provenance: stamp("", optics.RoleObject),
		}
		x.surfaces = append([]optics.Surface{obj}, x.surfaces...)
	}
	last := x.surfaces[len(x.surfaces)-1]
	if last.Kind != optics.KindImage {
		x.warn("", optics.RoleImage, "no image plane; appending one")
		x.emit(optics.Surface{
			Kind: optics.KindImage, Profile: optics.Plane{}, SemiDiameter: x.opt.defaultSemiDiameter(),
			Material: glass.Air, Provenance: stamp("", optics.RoleImage),
		})
	}
	for i := 1; i < len(x.surfaces)-1; i++ {
		if x.surfaces[i].Kind == optics.KindImage {
			x.fatal(x.surfaces[i].Provenance.BlockID, optics.RoleImage, "image plane must be the last block")
		}
	}
	if !x.sawStop {
		if i := optics.StopIndex(x.surfaces); i > 0 && x.surfaces[i].Kind == optics.KindStandard {
			x.surfaces[i].Kind = optics.KindStop
			p := x.surfaces[i].Provenance
			x.warn(p.BlockID, p.Role, "no stop block; using the middle physical surface as the stop")
		}
	}
}

func (x *expander) preserveLegacy(rows []design.SurfaceRow) {
	if x.surfaces[0].Kind == optics.KindObject && rows[0].Thickness.Float() >= 0 {
		x.surfaces[0].Thickness = rows[0].Thickness.Float()
	}

	byRole := make(map[optics.Provenance]design.SurfaceRow)
	for _, r := range rows {
		if r.BlockID != "" {
			byRole[optics.Provenance{BlockID: r.BlockID, Role: r.Role}] = r
		}
	}
	lengthsMatch := len(rows) == len(x.surfaces)
	matched := 0
	for i := range x.surfaces {
		s := &x.surfaces[i]
		if s.Kind != optics.KindStandard {
			continue
		}
		row, ok := byRole[optics.Provenance{BlockID: s.Provenance.BlockID, Role: s.Provenance.Role}]
		if !ok && lengthsMatch {
			row, ok = rows[i], true
		}
		if !ok {
			continue
		}
		matched++
		if sd := row.SemiDia.Float(); sd > 0 && !math.IsInf(sd, 0) {
			s.SemiDiameter = sd
		}
	}
	if matched == 0 {
		x.warn("", "", "legacy surface table does not match the expansion; semi-diameters not preserved")
	}
}
