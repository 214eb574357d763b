// Package blocks turns design-intent blocks into an ordered surface sequence
// and back.
//
// Block records from the document are decoded into a closed set of typed
// variants before expansion, so every variant has exactly one expansion rule
// and an unknown block type is reported as a fatal Issue rather than
// silently skipped.
package blocks

import (
	"fmt"
	"math"
	"strings"

	"github.com/banshee-data/lens.design/internal/optics"
)

// Kind enumerates the block taxonomy.
type Kind int

const (
	KindObjectPlane Kind = iota
	KindStop
	KindLens
	KindDoublet
	KindTriplet
	KindMirror
	KindAirGap
	KindImagePlane
	KindCoordBreak
)

var kindNames = map[Kind]string{
	KindObjectPlane: "ObjectPlane",
	KindStop:        "Stop",
	KindLens:        "Lens",
	KindDoublet:     "Doublet",
	KindTriplet:     "Triplet",
	KindMirror:      "Mirror",
	KindAirGap:      "AirGap",
	KindImagePlane:  "ImagePlane",
	KindCoordBreak:  "CoordBreak",
}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// ParseKind maps a blockType string, ignoring case, spaces and dashes.
func ParseKind(s string) (Kind, bool) {
	norm := strings.ToLower(strings.NewReplacer(" ", "", "-", "", "_", "").Replace(s))
	for k, name := range kindNames {
		if strings.ToLower(name) == norm {
			return k, true
		}
	}
	switch norm {
	case "object":
		return KindObjectPlane, true
	case "image":
		return KindImagePlane, true
	case "gap", "air":
		return KindAirGap, true
	case "singlet":
		return KindLens, true
	case "coordinatebreak", "cb":
		return KindCoordBreak, true
	}
	return 0, false
}

// ProfileType selects the surface shape family of a block surface.
type ProfileType int

const (
	ProfileStandard ProfileType = iota
	ProfileEvenAsphere
	ProfileOddAsphere
)

// SurfaceSpec is the shape of one block surface.
type SurfaceSpec struct {
	Radius float64
	Type   ProfileType
	Conic  float64
	Coef   [10]float64
}

// Profile builds the optics profile.
func (s SurfaceSpec) Profile() optics.Profile {
	switch s.Type {
	case ProfileOddAsphere:
		return optics.NewProfile(s.Radius, s.Conic, s.Coef, true)
	case ProfileEvenAsphere:
		return optics.EvenAsphere{C: optics.CurvatureFromRadius(s.Radius), K: s.Conic, Coef: s.Coef}
	}
	return optics.NewProfile(s.Radius, s.Conic, s.Coef, false)
}

// SpecFromProfile recovers the block surface shape from a profile.
func SpecFromProfile(p optics.Profile) SurfaceSpec {
	radius := func(c float64) float64 {
		if c == 0 {
			return math.Inf(1)
		}
		return 1 / c
	}
	switch v := p.(type) {
	case optics.Sphere:
		return SurfaceSpec{Radius: radius(v.C)}
	case optics.EvenAsphere:
		return SurfaceSpec{Radius: radius(v.C), Type: ProfileEvenAsphere, Conic: v.K, Coef: v.Coef}
	case optics.OddAsphere:
		return SurfaceSpec{Radius: radius(v.C), Type: ProfileOddAsphere, Conic: v.K, Coef: v.Coef}
	}
	return SurfaceSpec{Radius: math.Inf(1)}
}

// Variant is one decoded block.
type Variant interface {
	Kind() Kind
	ID() string
}

// ObjectPlane emits the Object surface. Distance may be +Inf.
type ObjectPlane struct {
	BlockID  string
	Distance float64
}

// Stop emits the aperture stop.
type Stop struct {
	BlockID      string
	SemiDiameter float64
}

// Lens is a singlet: front surface in Material, back surface in AIR.
type Lens struct {
	BlockID   string
	Front     SurfaceSpec
	Back      SurfaceSpec
	Thickness float64
	Material  string
	Aperture  map[string]float64
}

// Doublet is a cemented pair of three surfaces.
type Doublet struct {
	BlockID   string
	Surfaces  [3]SurfaceSpec
	Thickness [2]float64
	Materials [2]string
	Aperture  map[string]float64
}

// Triplet is a cemented group of four surfaces.
type Triplet struct {
	BlockID   string
	Surfaces  [4]SurfaceSpec
	Thickness [3]float64
	Materials [3]string
	Aperture  map[string]float64
}

// Mirror is a single reflective surface.
type Mirror struct {
	BlockID  string
	Surface  SurfaceSpec
	Aperture map[string]float64
}

// AirGap adds Thickness to the previous surface.
type AirGap struct {
	BlockID   string
	Thickness float64
}

// ImagePlane emits the Image surface.
type ImagePlane struct {
	BlockID      string
	SemiDiameter float64
}

// CoordBreak emits a coordinate break surface.
type CoordBreak struct {
	BlockID string
	Break   optics.CoordBreak
}

func (b ObjectPlane) Kind() Kind { return KindObjectPlane }
func (b Stop) Kind() Kind        { return KindStop }
func (b Lens) Kind() Kind        { return KindLens }
func (b Doublet) Kind() Kind     { return KindDoublet }
func (b Triplet) Kind() Kind     { return KindTriplet }
func (b Mirror) Kind() Kind      { return KindMirror }
func (b AirGap) Kind() Kind      { return KindAirGap }
func (b ImagePlane) Kind() Kind  { return KindImagePlane }
func (b CoordBreak) Kind() Kind  { return KindCoordBreak }

func (b ObjectPlane) ID() string { return b.BlockID }
func (b Stop) ID() string        { return b.BlockID }
func (b Lens) ID() string        { return b.BlockID }
func (b Doublet) ID() string     { return b.BlockID }
func (b Triplet) ID() string     { return b.BlockID }
func (b Mirror) ID() string      { return b.BlockID }
func (b AirGap) ID() string      { return b.BlockID }
func (b ImagePlane) ID() string  { return b.BlockID }
func (b CoordBreak) ID() string  { return b.BlockID }
