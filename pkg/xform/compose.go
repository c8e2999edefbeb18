package xform

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"
)

// Compose builds a host transform that scales uniformly, rotates by Euler
// angles in degrees (about X, then Y, then Z, the order the geometry kernel
// uses) and then translates. A zero scale is treated as 1.
func Compose(translation, rotationDeg r3.Vec, scale float64) HostTransform {
	if scale == 0 {
		scale = 1
	}
	rx := rotationDeg.X * math.Pi / 180
	ry := rotationDeg.Y * math.Pi / 180
	rz := rotationDeg.Z * math.Pi / 180
	cx, sx := math.Cos(rx), math.Sin(rx)
	cy, sy := math.Cos(ry), math.Sin(ry)
	cz, sz := math.Cos(rz), math.Sin(rz)

	// R = Rz * Ry * Rx
	r := [3][3]float64{
		{cz * cy, cz*sy*sx - sz*cx, cz*sy*cx + sz*sx},
		{sz * cy, sz*sy*sx + cz*cx, sz*sy*cx - cz*sx},
		{-sy, cy * sx, cy * cx},
	}

	h := HostIdentity()
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			h[i][j] = r[i][j] * scale
		}
	}
	h[0][3], h[1][3], h[2][3] = translation.X, translation.Y, translation.Z
	return h
}

// Mul returns h·a: a placed in the frame of h.
func (h HostTransform) Mul(a HostTransform) HostTransform {
	return fromPortableExact(ToPortable(h).Mul(ToPortable(a)))
}

func fromPortableExact(m Matrix4x4) HostTransform {
	var h HostTransform
	for r := 0; r < 4; r++ {
		for c := 0; c < 4; c++ {
			h[r][c] = m[c*4+r]
		}
	}
	return h
}
