// Package xform converts placement transforms between a host's 4x4
// representation and the portable matrix carried on the wire, rebases
// translations between unit systems, and repairs linear parts that have
// drifted away from orthogonality.
package xform

import (
	"fmt"

	"gonum.org/v1/gonum/spatial/r3"
)

// Matrix4x4 is the portable transform: 16 values in column-major order.
// Element (row r, column c) lives at index c*4+r, so the translation is
// stored at indices 12, 13 and 14.
type Matrix4x4 [16]float64

// HostTransform is a host-side transform laid out row-major, the way most
// CAD APIs expose it (M[row][col], translation in the last column).
type HostTransform [4][4]float64

// Identity returns the identity matrix.
func Identity() Matrix4x4 {
	return Matrix4x4{
		1, 0, 0, 0,
		0, 1, 0, 0,
		0, 0, 1, 0,
		0, 0, 0, 1,
	}
}

// HostIdentity returns the identity host transform.
func HostIdentity() HostTransform {
	return HostTransform{
		{1, 0, 0, 0},
		{0, 1, 0, 0},
		{0, 0, 1, 0},
		{0, 0, 0, 1},
	}
}

// Translation returns a host transform that only translates.
func Translation(x, y, z float64) HostTransform {
	t := HostIdentity()
	t[0][3], t[1][3], t[2][3] = x, y, z
	return t
}

// At returns the element at row r, column c.
func (m Matrix4x4) At(r, c int) float64 {
	return m[c*4+r]
}

// Set stores v at row r, column c.
func (m *Matrix4x4) Set(r, c int, v float64) {
	m[c*4+r] = v
}

// Translation returns the translation column.
func (m Matrix4x4) Translation() r3.Vec {
	return r3.Vec{X: m[12], Y: m[13], Z: m[14]}
}

// Basis returns the three axis columns of the linear part.
func (m Matrix4x4) Basis() (x, y, z r3.Vec) {
	x = r3.Vec{X: m[0], Y: m[1], Z: m[2]}
	y = r3.Vec{X: m[4], Y: m[5], Z: m[6]}
	z = r3.Vec{X: m[8], Y: m[9], Z: m[10]}
	return x, y, z
}

// Mul returns m*n.
func (m Matrix4x4) Mul(n Matrix4x4) Matrix4x4 {
	var out Matrix4x4
	for r := 0; r < 4; r++ {
		for c := 0; c < 4; c++ {
			var sum float64
			for k := 0; k < 4; k++ {
				sum += m.At(r, k) * n.At(k, c)
			}
			out.Set(r, c, sum)
		}
	}
	return out
}

// Apply transforms the point p (w = 1).
func (m Matrix4x4) Apply(p r3.Vec) r3.Vec {
	return r3.Vec{
		X: m[0]*p.X + m[4]*p.Y + m[8]*p.Z + m[12],
		Y: m[1]*p.X + m[5]*p.Y + m[9]*p.Z + m[13],
		Z: m[2]*p.X + m[6]*p.Y + m[10]*p.Z + m[14],
	}
}

// Equal reports whether every element of m and n differs by at most tol.
func (m Matrix4x4) Equal(n Matrix4x4, tol float64) bool {
	for i := range m {
		d := m[i] - n[i]
		if d > tol || d < -tol {
			return false
		}
	}
	return true
}

func (m Matrix4x4) String() string {
	return fmt.Sprintf("[%g %g %g %g | %g %g %g %g | %g %g %g %g | %g %g %g %g]",
		m.At(0, 0), m.At(0, 1), m.At(0, 2), m.At(0, 3),
		m.At(1, 0), m.At(1, 1), m.At(1, 2), m.At(1, 3),
		m.At(2, 0), m.At(2, 1), m.At(2, 2), m.At(2, 3),
		m.At(3, 0), m.At(3, 1), m.At(3, 2), m.At(3, 3))
}

// Basis returns the three axis columns of the host transform's linear part.
func (h HostTransform) Basis() (x, y, z r3.Vec) {
	x = r3.Vec{X: h[0][0], Y: h[1][0], Z: h[2][0]}
	y = r3.Vec{X: h[0][1], Y: h[1][1], Z: h[2][1]}
	z = r3.Vec{X: h[0][2], Y: h[1][2], Z: h[2][2]}
	return x, y, z
}

// SetBasis replaces the linear part, leaving translation and the bottom row
// untouched.
func (h *HostTransform) SetBasis(x, y, z r3.Vec) {
	h[0][0], h[1][0], h[2][0] = x.X, x.Y, x.Z
	h[0][1], h[1][1], h[2][1] = y.X, y.Y, y.Z
	h[0][2], h[1][2], h[2][2] = z.X, z.Y, z.Z
}

// Offset returns the translation column.
func (h HostTransform) Offset() r3.Vec {
	return r3.Vec{X: h[0][3], Y: h[1][3], Z: h[2][3]}
}

// ToPortable remaps a host transform into the portable column-major layout.
// No arithmetic is applied.
func ToPortable(h HostTransform) Matrix4x4 {
	var m Matrix4x4
	for r := 0; r < 4; r++ {
		for c := 0; c < 4; c++ {
			m[c*4+r] = h[r][c]
		}
	}
	return m
}

// ToHost converts a portable matrix expressed in sourceUnits into a host
// transform for a document measured in targetUnits. Only the translation is
// rescaled. When the linear part is no longer orthogonal it is rebuilt with
// Orthogonalize; the translation is never touched by that step.
func ToHost(m Matrix4x4, sourceUnits, targetUnits string) (HostTransform, error) {
	scale, err := UnitScale(sourceUnits, targetUnits)
	if err != nil {
		return HostTransform{}, err
	}

	var h HostTransform
	for r := 0; r < 4; r++ {
		for c := 0; c < 4; c++ {
			h[r][c] = m[c*4+r]
		}
	}
	h[0][3] *= scale
	h[1][3] *= scale
	h[2][3] *= scale

	x, y, z := h.Basis()
	if IsOrthogonal(x, y, z, OrthoTolerance) {
		return h, nil
	}
	nx, ny, nz, err := Orthogonalize(x, y, z)
	if err != nil {
		return HostTransform{}, err
	}
	h.SetBasis(nx, ny, nz)
	return h, nil
}
