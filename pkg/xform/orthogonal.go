package xform

import (
	"errors"
	"math"

	"gonum.org/v1/gonum/spatial/r3"
)

// OrthoTolerance bounds the cosine between two basis axes that still counts
// as perpendicular.
const OrthoTolerance = 1e-6

// ErrDegenerateBasis is returned when the linear part collapses (a zero or
// parallel axis) and no perpendicular basis can be derived from it.
var ErrDegenerateBasis = errors.New("xform: degenerate basis")

// IsOrthogonal reports whether the three axes are pairwise perpendicular
// within tol. Axes may carry any non-zero scale; zero-length axes are never
// orthogonal.
func IsOrthogonal(x, y, z r3.Vec, tol float64) bool {
	nx, ny, nz := r3.Norm(x), r3.Norm(y), r3.Norm(z)
	if nx == 0 || ny == 0 || nz == 0 {
		return false
	}
	return math.Abs(r3.Dot(x, y))/(nx*ny) <= tol &&
		math.Abs(r3.Dot(y, z))/(ny*nz) <= tol &&
		math.Abs(r3.Dot(x, z))/(nx*nz) <= tol
}

// Orthogonalize rebuilds a skewed basis. X is kept as-is; Y is replaced by
// (X×Y)×X, which is perpendicular to X and stays on Y's side of the plane;
// Z is X×Y'. Y' and Z' keep the lengths of the original Y and Z so
// non-uniform scale survives, and Z' keeps the original handedness.
func Orthogonalize(x, y, z r3.Vec) (r3.Vec, r3.Vec, r3.Vec, error) {
	lenY, lenZ := r3.Norm(y), r3.Norm(z)
	if r3.Norm(x) == 0 || lenY == 0 {
		return x, y, z, ErrDegenerateBasis
	}
	normal := r3.Cross(x, y)
	if r3.Norm(normal) == 0 {
		return x, y, z, ErrDegenerateBasis
	}

	ny := r3.Scale(lenY, r3.Unit(r3.Cross(normal, x)))
	nz := r3.Unit(r3.Cross(x, ny))
	if lenZ == 0 {
		lenZ = lenY
	}
	nz = r3.Scale(lenZ, nz)
	if r3.Dot(nz, z) < 0 {
		nz = r3.Scale(-1, nz)
	}
	return x, ny, nz, nil
}
