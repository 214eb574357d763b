package design

import (
	"fmt"
	"math"
	"strings"

	"github.com/banshee-data/lens.design/internal/optics"
)

// SurfaceRow is one row of the legacy prescription table.
type SurfaceRow struct {
	ID         int    `json:"id"`
	ObjectType string `json:"object type"`
	SurfType   string `json:"surfType,omitempty"`
	Radius     Num    `json:"radius"`
	Thickness  Num    `json:"thickness"`
	SemiDia    Num    `json:"semidia"`
	Material   string `json:"material"`
	RIndex     *Num   `json:"rindex,omitempty"`
	Abbe       *Num   `json:"abbe,omitempty"`
	Conic      Num    `json:"conic,omitempty"`
	Coef1      Num    `json:"coef1,omitempty"`
	Coef2      Num    `json:"coef2,omitempty"`
	Coef3      Num    `json:"coef3,omitempty"`
	Coef4      Num    `json:"coef4,omitempty"`
	Coef5      Num    `json:"coef5,omitempty"`
	Coef6      Num    `json:"coef6,omitempty"`
	Coef7      Num    `json:"coef7,omitempty"`
	Coef8      Num    `json:"coef8,omitempty"`
	Coef9      Num    `json:"coef9,omitempty"`
	Coef10     Num    `json:"coef10,omitempty"`
	DecenterX  Num    `json:"decenterX,omitempty"`
	DecenterY  Num    `json:"decenterY,omitempty"`
	DecenterZ  Num    `json:"decenterZ,omitempty"`
	TiltX      Num    `json:"tiltX,omitempty"`
	TiltY      Num    `json:"tiltY,omitempty"`
	TiltZ      Num    `json:"tiltZ,omitempty"`
	Order      Num    `json:"order,omitempty"`
	Comment    string `json:"comment,omitempty"`
	BlockID    string `json:"_blockId,omitempty"`
	Role       string `json:"_surfaceRole,omitempty"`
	GapID      string `json:"_gapId,omitempty"`
}

// Surface type spellings in rows.
const (
	SurfStandard = "Standard"
	SurfEvenAsph = "Aspheric even"
	SurfOddAsph  = "Aspheric odd"
	SurfCoordBrk = "Coord Break"
)

// Coefs returns coef1…coef10.
func (r SurfaceRow) Coefs() [10]float64 {
	return [10]float64{
		r.Coef1.Float(), r.Coef2.Float(), r.Coef3.Float(), r.Coef4.Float(), r.Coef5.Float(),
		r.Coef6.Float(), r.Coef7.Float(), r.Coef8.Float(), r.Coef9.Float(), r.Coef10.Float(),
	}
}

// SetCoefs writes coef1…coef10.
func (r *SurfaceRow) SetCoefs(c [10]float64) {
	r.Coef1, r.Coef2, r.Coef3, r.Coef4, r.Coef5 = Num(c[0]), Num(c[1]), Num(c[2]), Num(c[3]), Num(c[4])
	r.Coef6, r.Coef7, r.Coef8, r.Coef9, r.Coef10 = Num(c[5]), Num(c[6]), Num(c[7]), Num(c[8]), Num(c[9])
}

func normalizeSurfType(s string) string {
	l := strings.ToLower(strings.ReplaceAll(strings.TrimSpace(s), " ", ""))
	switch {
	case strings.Contains(l, "coord") || l == "cb":
		return SurfCoordBrk
	case strings.Contains(l, "odd"):
		return SurfOddAsph
	case strings.Contains(l, "asph") || strings.Contains(l, "even"):
		return SurfEvenAsph
	}
	return SurfStandard
}

// IsCoordBreak reports whether the row is a coordinate break.
func (r SurfaceRow) IsCoordBreak() bool {
	t := strings.ToLower(strings.ReplaceAll(r.ObjectType, " ", ""))
	return normalizeSurfType(r.SurfType) == SurfCoordBrk || t == "coordbreak" || t == "cb"
}

// ToSurface converts a row to a surface value.
func (r SurfaceRow) ToSurface() (optics.Surface, error) {
	s := optics.Surface{
		Thickness:    r.Thickness.Float(),
		SemiDiameter: r.SemiDia.Float(),
		Material:     strings.TrimSpace(r.Material),
		Comment:      r.Comment,
		Provenance:   optics.Provenance{BlockID: r.BlockID, Role: r.Role, GapID: r.GapID},
	}
	if r.IsCoordBreak() {
		s.Kind = optics.KindCoordBreak
		s.Profile = optics.Plane{}
		s.Break = optics.CoordBreak{
			DX: r.DecenterX.Float(), DY: r.DecenterY.Float(), DZ: r.DecenterZ.Float(),
			TiltX: r.TiltX.Float(), TiltY: r.TiltY.Float(), TiltZ: r.TiltZ.Float(),
			Order: optics.BreakOrder(int(r.Order.Float())),
		}
		return s, nil
	}
	kind, err := optics.ParseSurfaceKind(r.ObjectType)
	if err != nil {
		return s, fmt.Errorf("row %d: %w", r.ID, err)
	}
	s.Kind = kind
	if strings.EqualFold(s.Material, optics.MaterialMirror) {
		s.Reflective = true
		s.Material = optics.MaterialMirror
	}
	rad := r.Radius.Float()
	if rad == 0 {
		rad = math.Inf(1)
	}
	switch normalizeSurfType(r.SurfType) {
	case SurfOddAsph:
		s.Profile = optics.NewProfile(rad, r.Conic.Float(), r.Coefs(), true)
	case SurfEvenAsph:
		s.Profile = optics.EvenAsphere{C: optics.CurvatureFromRadius(rad), K: r.Conic.Float(), Coef: r.Coefs()}
	default:
		s.Profile = optics.NewProfile(rad, r.Conic.Float(), r.Coefs(), false)
	}
	return s, nil
}

// RowFromSurface converts a surface value to a row with the given id.
func RowFromSurface(id int, s optics.Surface) SurfaceRow {
	r := SurfaceRow{
		ID:        id,
		Thickness: Num(s.Thickness),
		SemiDia:   Num(s.SemiDiameter),
		Material:  s.Material,
		Comment:   s.Comment,
		BlockID:   s.Provenance.BlockID,
		Role:      s.Provenance.Role,
		GapID:     s.Provenance.GapID,
		Radius:    Inf,
		SurfType:  SurfStandard,
	}
	switch s.Kind {
	case optics.KindObject:
		r.ObjectType = "Object"
	case optics.KindStop:
		r.ObjectType = "Stop"
	case optics.KindImage:
		r.ObjectType = "Image"
	case optics.KindCoordBreak:
		r.ObjectType = "CoordBreak"
		r.SurfType = SurfCoordBrk
		r.DecenterX, r.DecenterY, r.DecenterZ = Num(s.Break.DX), Num(s.Break.DY), Num(s.Break.DZ)
		r.TiltX, r.TiltY, r.TiltZ = Num(s.Break.TiltX), Num(s.Break.TiltY), Num(s.Break.TiltZ)
		r.Order = Num(s.Break.Order)
		return r
	}
	if s.Reflective {
		r.Material = optics.MaterialMirror
	}
	switch p := s.Profile.(type) {
	case optics.Sphere:
		r.Radius = Num(1 / p.C)
	case optics.EvenAsphere:
		r.SurfType = SurfEvenAsph
		r.Conic = Num(p.K)
		r.SetCoefs(p.Coef)
		if p.C != 0 {
			r.Radius = Num(1 / p.C)
		}
	case optics.OddAsphere:
		r.SurfType = SurfOddAsph
		r.Conic = Num(p.K)
		r.SetCoefs(p.Coef)
		if p.C != 0 {
			r.Radius = Num(1 / p.C)
		}
	}
	return r
}

// RowsToSurfaces converts a whole table.
func RowsToSurfaces(rows []SurfaceRow) ([]optics.Surface, error) {
	out := make([]optics.Surface, len(rows))
	for i, r := range rows {
		s, err := r.ToSurface()
		if err != nil {
			return nil, err
		}
		out[i] = s
	}
	return out, nil
}

// SurfacesToRows converts a sequence into a table with 0-based ids.
func SurfacesToRows(surfaces []optics.Surface) []SurfaceRow {
	out := make([]SurfaceRow, len(surfaces))
	for i, s := range surfaces {
		out[i] = RowFromSurface(i, s)
	}
	return out
}
