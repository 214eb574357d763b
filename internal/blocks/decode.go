package blocks

import (
	"fmt"
	"math"
	"strings"

	"github.com/banshee-data/lens.design/internal/design"
	"github.com/banshee-data/lens.design/internal/optics"
)

// Severity grades an expansion issue.
type Severity int

const (
	SeverityWarning Severity = iota
	SeverityFatal
)

func (s Severity) String() string {
	if s == SeverityFatal {
		return "fatal"
	}
	return "warning"
}

// Issue is a problem found while decoding or expanding a block.
type Issue struct {
	Severity Severity
	BlockID  string
	Role     string
	Message  string
}

func (i Issue) Error() string {
	if i.Role != "" {
		return fmt.Sprintf("%s: block %s/%s: %s", i.Severity, i.BlockID, i.Role, i.Message)
	}
	return fmt.Sprintf("%s: block %s: %s", i.Severity, i.BlockID, i.Message)
}

// Unwrap ties fatal issues to optics.ErrInvalidSurface.
func (i Issue) Unwrap() error {
	if i.Severity == SeverityFatal {
		return optics.ErrInvalidSurface
	}
	return nil
}

// decoder reads typed values from a block record, collecting issues.
type decoder struct {
	id     string
	params design.Params
	issues []Issue
}

func newDecoder(rec design.Block) *decoder {
	merged := rec.Parameters.Clone()
	if merged == nil {
		merged = design.Params{}
	}
	for k, v := range rec.Variables {
		if _, ok := merged[k]; !ok && v.Value != nil {
			merged[k] = v.Value
		}
	}
	return &decoder{id: rec.BlockID, params: merged}
}

func (d *decoder) fatalf(format string, v ...interface{}) {
	d.issues = append(d.issues, Issue{Severity: SeverityFatal, BlockID: d.id, Message: fmt.Sprintf(format, v...)})
}

func (d *decoder) warnf(format string, v ...interface{}) {
	d.issues = append(d.issues, Issue{Severity: SeverityWarning, BlockID: d.id, Message: fmt.Sprintf(format, v...)})
}

func (d *decoder) fatal() bool {
	for _, i := range d.issues {
		if i.Severity == SeverityFatal {
			return true
		}
	}
	return false
}

func (d *decoder) number(key string, def float64) float64 {
	v, ok, err := d.params.Number(key)
	if err != nil {
		d.fatalf("%v", err)
		return def
	}
	if !ok {
		return def
	}
	return v
}

// thickness reads a finite non-negative distance.
func (d *decoder) thickness(key string, required bool) float64 {
	v, ok, err := d.params.Number(key)
	switch {
	case err != nil:
		d.fatalf("%v", err)
	case !ok && required:
		d.fatalf("missing parameter %s", key)
	case !ok:
		return 0
	case v < 0:
		d.fatalf("negative thickness %s = %g", key, v)
	case math.IsInf(v, 0):
		d.fatalf("thickness %s must be finite", key)
	default:
		return v
	}
	return 0
}

// radius reads a required radius; zero and INF mean planar.
func (d *decoder) radius(key string) float64 {
	v, ok, err := d.params.Number(key)
	if err != nil {
		d.fatalf("invalid radius %s: %v", key, d.params[key])
		return math.Inf(1)
	}
	if !ok {
		d.fatalf("missing radius %s", key)
		return math.Inf(1)
	}
	if v == 0 || math.IsInf(v, 0) {
		return math.Inf(1)
	}
	return v
}

func (d *decoder) text(key, def string) string {
	s, ok := d.params.String(key)
	if !ok || strings.TrimSpace(s) == "" {
		return def
	}
	return strings.TrimSpace(s)
}

func (d *decoder) material(key string) string {
	m := d.text(key, "")
	if m == "" {
		d.fatalf("missing parameter %s", key)
	}
	return m
}

// paramKey joins a surface prefix and a field name: ("front", "Conic") is
// "frontConic" and ("", "Conic") is "conic".
func paramKey(prefix, name string) string {
	if prefix == "" {
		return strings.ToLower(name[:1]) + name[1:]
	}
	return prefix + name
}

func parseProfileType(s string) ProfileType {
	l := strings.ToLower(strings.ReplaceAll(s, " ", ""))
	switch {
	case strings.Contains(l, "odd"):
		return ProfileOddAsphere
	case strings.Contains(l, "asph") || strings.Contains(l, "even"):
		return ProfileEvenAsphere
	}
	return ProfileStandard
}

func (d *decoder) surface(radiusKey, prefix string) SurfaceSpec {
	s := SurfaceSpec{
		Radius: d.radius(radiusKey),
		Type:   parseProfileType(d.text(paramKey(prefix, "SurfType"), "")),
		Conic:  d.number(paramKey(prefix, "Conic"), 0),
	}
	for i := range s.Coef {
		s.Coef[i] = d.number(paramKey(prefix, fmt.Sprintf("Coef%d", i+1)), 0)
	}
	return s
}

func (d *decoder) semiDiameter(key string) float64 {
	v := d.number(key, 0)
	if v < 0 {
		d.fatalf("negative semi-diameter %s = %g", key, v)
		return 0
	}
	return v
}

// Decode converts a document record into its typed variant. A nil Variant
// is returned together with at least one fatal issue when the record cannot
// be expanded.
func Decode(rec design.Block) (Variant, []Issue) {
	d := newDecoder(rec)
	kind, ok := ParseKind(rec.BlockType)
	if !ok {
		d.fatalf("unknown block type %q", rec.BlockType)
		return nil, d.issues
	}

	var v Variant
	switch kind {
	case KindObjectPlane:
		dist, present, err := d.params.Number("distance")
		switch {
		case err != nil:
			d.fatalf("%v", err)
		case !present:
			dist = math.Inf(1)
		case dist < 0:
			d.fatalf("negative object distance %g", dist)
		}
		v = ObjectPlane{BlockID: rec.BlockID, Distance: dist}
	case KindStop:
		sd := d.semiDiameter("semiDiameter")
		if sd == 0 {
			d.fatalf("stop needs a positive semiDiameter")
		}
		v = Stop{BlockID: rec.BlockID, SemiDiameter: sd}
	case KindLens:
		v = Lens{
			BlockID:   rec.BlockID,
			Front:     d.surface("frontRadius", "front"),
			Back:      d.surface("backRadius", "back"),
			Thickness: d.thickness("centerThickness", true),
			Material:  d.material("material"),
			Aperture:  copyAperture(rec.Aperture),
		}
	case KindDoublet:
		var b Doublet
		b.BlockID = rec.BlockID
		for i := range b.Surfaces {
			b.Surfaces[i] = d.surface(fmt.Sprintf("radius%d", i+1), fmt.Sprintf("s%d", i+1))
		}
		for i := range b.Thickness {
			b.Thickness[i] = d.thickness(fmt.Sprintf("thickness%d", i+1), true)
			b.Materials[i] = d.material(fmt.Sprintf("material%d", i+1))
		}
		b.Aperture = copyAperture(rec.Aperture)
		v = b
	case KindTriplet:
		var b Triplet
		b.BlockID = rec.BlockID
		for i := range b.Surfaces {
			b.Surfaces[i] = d.surface(fmt.Sprintf("radius%d", i+1), fmt.Sprintf("s%d", i+1))
		}
		for i := range b.Thickness {
			b.Thickness[i] = d.thickness(fmt.Sprintf("thickness%d", i+1), true)
			b.Materials[i] = d.material(fmt.Sprintf("material%d", i+1))
		}
		b.Aperture = copyAperture(rec.Aperture)
		v = b
	case KindMirror:
		v = Mirror{BlockID: rec.BlockID, Surface: d.surface("radius", ""), Aperture: copyAperture(rec.Aperture)}
	case KindAirGap:
		v = AirGap{BlockID: rec.BlockID, Thickness: d.thickness("thickness", true)}
	case KindImagePlane:
		v = ImagePlane{BlockID: rec.BlockID, SemiDiameter: d.semiDiameter("semiDiameter")}
	case KindCoordBreak:
		order := d.number("order", 0)
		if order != 0 && order != 1 {
			d.fatalf("coordinate break order must be 0 or 1, got %g", order)
		}
		v = CoordBreak{BlockID: rec.BlockID, Break: optics.CoordBreak{
			DX: d.number("decenterX", 0), DY: d.number("decenterY", 0), DZ: d.number("decenterZ", 0),
			TiltX: d.number("tiltX", 0), TiltY: d.number("tiltY", 0), TiltZ: d.number("tiltZ", 0),
			Order: optics.BreakOrder(int(order)),
		}}
	}
	if d.fatal() {
		return nil, d.issues
	}
	return v, d.issues
}

func copyAperture(m map[string]float64) map[string]float64 {
	if len(m) == 0 {
		return nil
	}
	out := make(map[string]float64, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
