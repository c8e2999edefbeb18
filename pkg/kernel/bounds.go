package kernel

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/chazu/instancegraph/pkg/xform"
)

// Bounds is an axis-aligned box. The zero value is a degenerate box at the
// origin; use EmptyBounds to start an accumulation.
type Bounds struct {
	Min r3.Vec `json:"min"`
	Max r3.Vec `json:"max"`
}

// EmptyBounds returns a box that contains nothing and grows on Extend.
func EmptyBounds() Bounds {
	inf := math.Inf(1)
	return Bounds{
		Min: r3.Vec{X: inf, Y: inf, Z: inf},
		Max: r3.Vec{X: -inf, Y: -inf, Z: -inf},
	}
}

// IsEmpty reports whether b contains no point.
func (b Bounds) IsEmpty() bool {
	return b.Min.X > b.Max.X || b.Min.Y > b.Max.Y || b.Min.Z > b.Max.Z
}

// Extend returns b grown to contain p.
func (b Bounds) Extend(p r3.Vec) Bounds {
	b.Min = r3.Vec{X: math.Min(b.Min.X, p.X), Y: math.Min(b.Min.Y, p.Y), Z: math.Min(b.Min.Z, p.Z)}
	b.Max = r3.Vec{X: math.Max(b.Max.X, p.X), Y: math.Max(b.Max.Y, p.Y), Z: math.Max(b.Max.Z, p.Z)}
	return b
}

// Union returns the smallest box containing b and o.
func (b Bounds) Union(o Bounds) Bounds {
	if o.IsEmpty() {
		return b
	}
	return b.Extend(o.Min).Extend(o.Max)
}

// Size returns the extent along each axis.
func (b Bounds) Size() r3.Vec {
	if b.IsEmpty() {
		return r3.Vec{}
	}
	return r3.Sub(b.Max, b.Min)
}

// Corners returns the eight corners of b.
func (b Bounds) Corners() [8]r3.Vec {
	var c [8]r3.Vec
	for i := range c {
		c[i] = b.Min
		if i&1 != 0 {
			c[i].X = b.Max.X
		}
		if i&2 != 0 {
			c[i].Y = b.Max.Y
		}
		if i&4 != 0 {
			c[i].Z = b.Max.Z
		}
	}
	return c
}

// Transform returns the axis-aligned box around b placed by m.
func (b Bounds) Transform(m xform.Matrix4x4) Bounds {
	if b.IsEmpty() {
		return b
	}
	out := EmptyBounds()
	for _, p := range b.Corners() {
		out = out.Extend(m.Apply(p))
	}
	return out
}

// ApproxEqual compares two boxes component-wise within tol.
func (b Bounds) ApproxEqual(o Bounds, tol float64) bool {
	d1, d2 := r3.Sub(b.Min, o.Min), r3.Sub(b.Max, o.Max)
	for _, v := range []float64{d1.X, d1.Y, d1.Z, d2.X, d2.Y, d2.Z} {
		if math.Abs(v) > tol {
			return false
		}
	}
	return true
}
