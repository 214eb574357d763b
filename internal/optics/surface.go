package optics

import (
	"fmt"
	"math"
	"strings"
)

// SurfaceKind classifies a surface in the sequence.
type SurfaceKind int

const (
	KindObject SurfaceKind = iota
	KindStandard
	KindStop
	KindImage
	KindCoordBreak
)

func (k SurfaceKind) String() string {
	switch k {
	case KindObject:
		return "Object"
	case KindStandard:
		return "Standard"
	case KindStop:
		return "Stop"
	case KindImage:
		return "Image"
	case KindCoordBreak:
		return "CoordBreak"
	}
	return fmt.Sprintf("SurfaceKind(%d)", int(k))
}

// ParseSurfaceKind maps the row "object type" strings onto a kind.
func ParseSurfaceKind(s string) (SurfaceKind, error) {
	switch strings.ToLower(strings.ReplaceAll(strings.TrimSpace(s), " ", "")) {
	case "object":
		return KindObject, nil
	case "", "standard", "surface":
		return KindStandard, nil
	case "stop":
		return KindStop, nil
	case "image":
		return KindImage, nil
	case "coordbreak", "coordinatebreak", "cb":
		return KindCoordBreak, nil
	}
	return KindStandard, fmt.Errorf("%w: unknown surface kind %q", ErrInvalidSurface, s)
}

// MaterialMirror marks a reflective surface in surface rows.
const MaterialMirror = "MIRROR"

// BreakOrder selects the coordinate break composition.
type BreakOrder int

const (
	// DecenterThenTilt applies the translation first, then the Euler tilts X, Y, Z.
	DecenterThenTilt BreakOrder = 0
	// TiltThenDecenter applies the tilts Z, Y, X, then the translation.
	TiltThenDecenter BreakOrder = 1
)

// CoordBreak is a rigid frame change. Tilts are in degrees.
type CoordBreak struct {
	DX, DY, DZ          float64
	TiltX, TiltY, TiltZ float64
	Order               BreakOrder
}

// IsIdentity reports whether the break leaves the frame unchanged.
func (b CoordBreak) IsIdentity() bool {
	return b.DX == 0 && b.DY == 0 && b.DZ == 0 && b.TiltX == 0 && b.TiltY == 0 && b.TiltZ == 0
}

// Provenance records which block and role emitted a surface. GapID names
// the AirGap block that set the surface's trailing thickness, if any.
type Provenance struct {
	BlockID string `json:"blockId"`
	Role    string `json:"role"`
	GapID   string `json:"gapId,omitempty"`
}

// Fixed roles.
const (
	RoleObject = "object"
	RoleStop   = "stop"
	RoleImage  = "image"
	RoleFront  = "front"
	RoleBack   = "back"
	RoleMirror = "mirror"
	RoleBreak  = "cb"
)

// SurfaceRole returns the role of the n-th (0-based) surface of a cemented group.
func SurfaceRole(n int) string {
	return fmt.Sprintf("s%d", n+1)
}

// Surface is the atomic element of the sequential model.
type Surface struct {
	Kind         SurfaceKind
	Profile      Profile
	Thickness    float64
	SemiDiameter float64
	Material     string
	Reflective   bool
	Break        CoordBreak
	Provenance   Provenance
	Comment      string
}

// Curvature returns the vertex curvature, zero for planes.
func (s Surface) Curvature() float64 {
	if s.Profile == nil {
		return 0
	}
	return s.Profile.Curvature()
}

// Radius returns 1/c, or +Inf for planes.
func (s Surface) Radius() float64 {
	c := s.Curvature()
	if c == 0 {
		return math.Inf(1)
	}
	return 1 / c
}

// IsPhysical reports whether the surface bends or clips rays.
func (s Surface) IsPhysical() bool {
	return s.Kind == KindStandard || s.Kind == KindStop
}

// HasAperture reports whether SemiDiameter clips rays at this surface.
func (s Surface) HasAperture() bool {
	return s.IsPhysical() && s.SemiDiameter > 0 && !math.IsInf(s.SemiDiameter, 1)
}

// CurvatureFromRadius converts a radius to a curvature, treating |R| < 1e-10
// and infinities as planar.
func CurvatureFromRadius(r float64) float64 {
	if math.IsInf(r, 0) || math.IsNaN(r) || math.Abs(r) < 1e-10 {
		return 0
	}
	return 1 / r
}

// StopIndex returns the index of the Stop surface. Without a tagged stop it
// falls back to the middle physical surface; -1 means no candidate exists.
func StopIndex(surfaces []Surface) int {
	var physical []int
	for i, s := range surfaces {
		if s.Kind == KindStop {
			return i
		}
		if s.IsPhysical() {
			physical = append(physical, i)
		}
	}
	if len(physical) == 0 {
		return -1
	}
	return physical[(len(physical)-1)/2]
}

// ImageIndex returns the index of the last Image surface, or len-1.
func ImageIndex(surfaces []Surface) int {
	for i := len(surfaces) - 1; i >= 0; i-- {
		if surfaces[i].Kind == KindImage {
			return i
		}
	}
	return len(surfaces) - 1
}

// Clone returns an independent copy of the sequence.
func Clone(surfaces []Surface) []Surface {
	return append([]Surface(nil), surfaces...)
}
