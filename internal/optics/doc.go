// Package optics defines the sequential surface model shared by the
// expander, the paraxial engine and the real ray tracer.
//
// Surfaces are plain values. Each one carries a Profile (Plane, Sphere,
// EvenAsphere or OddAsphere) that knows its sag, slope, normal and how to
// intersect a ray expressed in the surface's local frame, where the vertex
// sits at the origin and the optical axis runs along +Z. Thickness is the
// distance to the next vertex along the local axis; Material names the
// medium that follows the surface.
package optics
