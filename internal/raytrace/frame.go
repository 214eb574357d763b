package raytrace

import (
	"math"

	"github.com/banshee-data/lens.design/internal/optics"
	"gonum.org/v1/gonum/spatial/r3"
)

// Frame is a right-handed orthonormal basis placed at Origin. X, Y and Z are
// the local axes expressed in world coordinates.
type Frame struct {
	Origin  r3.Vec
	X, Y, Z r3.Vec
}

// Identity is the world frame.
var Identity = Frame{X: r3.Vec{X: 1}, Y: r3.Vec{Y: 1}, Z: r3.Vec{Z: 1}}

// ToLocal expresses a world point in the frame.
func (f Frame) ToLocal(p r3.Vec) r3.Vec {
	return f.DirToLocal(r3.Sub(p, f.Origin))
}

// ToWorld expresses a local point in world coordinates.
func (f Frame) ToWorld(p r3.Vec) r3.Vec {
	return r3.Add(f.Origin, f.DirToWorld(p))
}

// DirToLocal rotates a world direction into the frame.
func (f Frame) DirToLocal(d r3.Vec) r3.Vec {
	return r3.Vec{X: r3.Dot(d, f.X), Y: r3.Dot(d, f.Y), Z: r3.Dot(d, f.Z)}
}

// DirToWorld rotates a local direction into world coordinates.
func (f Frame) DirToWorld(d r3.Vec) r3.Vec {
	return r3.Add(r3.Add(r3.Scale(d.X, f.X), r3.Scale(d.Y, f.Y)), r3.Scale(d.Z, f.Z))
}

// Advance moves the origin t along the local Z axis.
func (f Frame) Advance(t float64) Frame {
	f.Origin = r3.Add(f.Origin, r3.Scale(t, f.Z))
	return f
}

// Decenter shifts the origin by a local offset.
func (f Frame) Decenter(dx, dy, dz float64) Frame {
	f.Origin = f.ToWorld(r3.Vec{X: dx, Y: dy, Z: dz})
	return f
}

// rotX, rotY and rotZ rotate the basis about its own axes by an angle in
// degrees, right-handed.
func (f Frame) rotX(deg float64) Frame {
	s, c := math.Sincos(deg * math.Pi / 180)
	f.Y, f.Z = r3.Add(r3.Scale(c, f.Y), r3.Scale(s, f.Z)), r3.Sub(r3.Scale(c, f.Z), r3.Scale(s, f.Y))
	return f
}

func (f Frame) rotY(deg float64) Frame {
	s, c := math.Sincos(deg * math.Pi / 180)
	f.Z, f.X = r3.Add(r3.Scale(c, f.Z), r3.Scale(s, f.X)), r3.Sub(r3.Scale(c, f.X), r3.Scale(s, f.Z))
	return f
}

func (f Frame) rotZ(deg float64) Frame {
	s, c := math.Sincos(deg * math.Pi / 180)
	f.X, f.Y = r3.Add(r3.Scale(c, f.X), r3.Scale(s, f.Y)), r3.Sub(r3.Scale(c, f.Y), r3.Scale(s, f.X))
	return f
}

// Break applies a coordinate break. DecenterThenTilt shifts first and then
// tilts about X, Y and Z in turn; TiltThenDecenter applies Z, Y, X and then
// shifts in the tilted frame.
func (f Frame) Break(b optics.CoordBreak) Frame {
	if b.Order == optics.TiltThenDecenter {
		return f.rotZ(b.TiltZ).rotY(b.TiltY).rotX(b.TiltX).Decenter(b.DX, b.DY, b.DZ)
	}
	return f.Decenter(b.DX, b.DY, b.DZ).rotX(b.TiltX).rotY(b.TiltY).rotZ(b.TiltZ)
}

// Flip turns the frame half a revolution about its Y axis, so that the
// sequence continues along the reflected direction after a mirror.
func (f Frame) Flip() Frame {
	f.X = r3.Scale(-1, f.X)
	f.Z = r3.Scale(-1, f.Z)
	return f
}

// frames places every surface vertex in world coordinates. Surface 1 sits at
// the world origin; a finite object sits d₀ before it.
func frames(surfaces []optics.Surface) []Frame {
	out := make([]Frame, len(surfaces))
	if len(surfaces) == 0 {
		return out
	}
	out[0] = Identity
	if d0 := surfaces[0].Thickness; !math.IsInf(d0, 0) {
		out[0] = Identity.Advance(-d0)
	}
	cur := Identity
	for j := 1; j < len(surfaces); j++ {
		out[j] = cur
		s := surfaces[j]
		switch {
		case s.Kind == optics.KindCoordBreak:
			cur = cur.Break(s.Break)
		case s.Reflective:
			cur = cur.Flip()
		}
		if t := s.Thickness; !math.IsInf(t, 0) {
			cur = cur.Advance(t)
		}
	}
	return out
}
