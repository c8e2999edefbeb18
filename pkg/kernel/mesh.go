package kernel

import (
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/chazu/instancegraph/pkg/xform"
)

// Mesh is a triangle mesh suitable for rendering.
// All arrays are flat: vertices has 3 floats per vertex (x,y,z),
// normals has 3 floats per vertex, indices has 3 uint32s per triangle.
type Mesh struct {
	Vertices []float32 `json:"vertices" msgpack:"vertices"` // [x0,y0,z0, x1,y1,z1, ...]
	Normals  []float32 `json:"normals" msgpack:"normals"`   // [nx0,ny0,nz0, ...]
	Indices  []uint32  `json:"indices" msgpack:"indices"`   // [i0,i1,i2, ...] triangles
	Name     string    `json:"name,omitempty" msgpack:"name,omitempty"`
}

// VertexCount returns the number of vertices.
func (m *Mesh) VertexCount() int {
	return len(m.Vertices) / 3
}

// TriangleCount returns the number of triangles.
func (m *Mesh) TriangleCount() int {
	return len(m.Indices) / 3
}

// IsEmpty returns true if the mesh has no geometry.
func (m *Mesh) IsEmpty() bool {
	return len(m.Vertices) == 0
}

func (m *Mesh) vertex(i int) r3.Vec {
	return r3.Vec{X: float64(m.Vertices[i*3]), Y: float64(m.Vertices[i*3+1]), Z: float64(m.Vertices[i*3+2])}
}

// Bounds returns the box around all vertices.
func (m *Mesh) Bounds() Bounds {
	b := EmptyBounds()
	for i := 0; i < m.VertexCount(); i++ {
		b = b.Extend(m.vertex(i))
	}
	return b
}

// Transform returns a copy of m placed by t. Normals go through the
// cofactor of the linear part so non-uniform scale keeps them
// perpendicular; a mirroring transform also reverses triangle winding.
func (m *Mesh) Transform(t xform.Matrix4x4) *Mesh {
	a, b, c := t.Basis()
	cof := [3]r3.Vec{r3.Cross(b, c), r3.Cross(c, a), r3.Cross(a, b)}
	mirrored := r3.Dot(a, cof[0]) < 0

	out := &Mesh{
		Vertices: make([]float32, 0, len(m.Vertices)),
		Normals:  make([]float32, 0, len(m.Normals)),
		Indices:  make([]uint32, len(m.Indices)),
		Name:     m.Name,
	}
	for i := 0; i < m.VertexCount(); i++ {
		p := t.Apply(m.vertex(i))
		out.Vertices = append(out.Vertices, float32(p.X), float32(p.Y), float32(p.Z))
	}
	for i := 0; i+2 < len(m.Normals); i += 3 {
		n := r3.Add(r3.Add(
			r3.Scale(float64(m.Normals[i]), cof[0]),
			r3.Scale(float64(m.Normals[i+1]), cof[1])),
			r3.Scale(float64(m.Normals[i+2]), cof[2]))
		if mirrored {
			n = r3.Scale(-1, n)
		}
		if r3.Norm(n) > 0 {
			n = r3.Unit(n)
		}
		out.Normals = append(out.Normals, float32(n.X), float32(n.Y), float32(n.Z))
	}
	copy(out.Indices, m.Indices)
	if mirrored {
		for i := 0; i+2 < len(out.Indices); i += 3 {
			out.Indices[i+1], out.Indices[i+2] = out.Indices[i+2], out.Indices[i+1]
		}
	}
	return out
}

// Append adds o's triangles to m.
func (m *Mesh) Append(o *Mesh) {
	base := uint32(m.VertexCount())
	m.Vertices = append(m.Vertices, o.Vertices...)
	m.Normals = append(m.Normals, o.Normals...)
	for _, idx := range o.Indices {
		m.Indices = append(m.Indices, base+idx)
	}
}
