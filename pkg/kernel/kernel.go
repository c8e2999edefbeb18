// Package kernel defines the geometry kernel used to turn scene primitives
// into solids, bounds and triangle meshes. Implementations live in the
// sdfx and manifold subpackages.
package kernel

// Solid is an opaque handle to a geometry kernel solid.
// Implementations wrap their internal representation.
type Solid interface {
	// Bounds returns the axis-aligned bounding box in local coordinates.
	Bounds() Bounds
}

// Kernel builds primitive solids and meshes them.
type Kernel interface {
	// Box has its minimum corner at the origin and extends along +X, +Y, +Z.
	Box(x, y, z float64) Solid
	// Cylinder stands on the XY plane with its axis along +Z.
	Cylinder(height, radius float64) Solid

	ToMesh(s Solid) (*Mesh, error)
}
