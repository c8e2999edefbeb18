package kernel

import (
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/chazu/instancegraph/pkg/xform"
)

// --- Mesh helper method tests ---

func TestMeshCounts(t *testing.T) {
	tests := []struct {
		name      string
		mesh      Mesh
		vertices  int
		triangles int
		empty     bool
	}{
		{"empty", Mesh{}, 0, 0, true},
		{"one vertex", Mesh{Vertices: []float32{1, 2, 3}}, 1, 0, false},
		{"quad", Mesh{
			Vertices: []float32{0, 0, 0, 1, 0, 0, 1, 1, 0, 0, 1, 0},
			Indices:  []uint32{0, 1, 2, 2, 3, 0},
		}, 4, 2, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.mesh.VertexCount(); got != tt.vertices {
				t.Errorf("VertexCount() = %d, want %d", got, tt.vertices)
			}
			if got := tt.mesh.TriangleCount(); got != tt.triangles {
				t.Errorf("TriangleCount() = %d, want %d", got, tt.triangles)
			}
			if got := tt.mesh.IsEmpty(); got != tt.empty {
				t.Errorf("IsEmpty() = %v, want %v", got, tt.empty)
			}
		})
	}
}

// triangle is one upward-facing triangle in the XY plane.
func triangle() *Mesh {
	return &Mesh{
		Vertices: []float32{0, 0, 0, 1, 0, 0, 0, 1, 0},
		Normals:  []float32{0, 0, 1, 0, 0, 1, 0, 0, 1},
		Indices:  []uint32{0, 1, 2},
		Name:     "tri",
	}
}

func TestMeshTransformTranslatesAndRotates(t *testing.T) {
	h := xform.Compose(r3.Vec{X: 10}, r3.Vec{X: 90}, 1)
	got := triangle().Transform(xform.ToPortable(h))

	// Rotating 90 degrees about X maps +Y to +Z and +Z to -Y.
	want := []float32{10, 0, 0, 11, 0, 0, 10, 0, 1}
	for i := range want {
		if math.Abs(float64(got.Vertices[i]-want[i])) > 1e-6 {
			t.Fatalf("vertices = %v, want %v", got.Vertices, want)
		}
	}
	if math.Abs(float64(got.Normals[1]+1)) > 1e-6 {
		t.Errorf("normal = %v, want (0,-1,0)", got.Normals[:3])
	}
	if diff := cmp.Diff([]uint32{0, 1, 2}, got.Indices); diff != "" {
		t.Errorf("indices (-want +got):\n%s", diff)
	}
	if got.Name != "tri" {
		t.Errorf("name lost: %q", got.Name)
	}
}

func TestMeshTransformNonUniformScaleKeepsNormalsUnit(t *testing.T) {
	h := xform.HostIdentity()
	h[0][0], h[2][2] = 4, 0.5
	got := triangle().Transform(xform.ToPortable(h))
	n := r3.Vec{X: float64(got.Normals[0]), Y: float64(got.Normals[1]), Z: float64(got.Normals[2])}
	if math.Abs(r3.Norm(n)-1) > 1e-6 || math.Abs(n.Z-1) > 1e-6 {
		t.Errorf("normal = %+v, want unit +Z", n)
	}
}

func TestMeshTransformMirrorFlipsWinding(t *testing.T) {
	h := xform.HostIdentity()
	h[2][2] = -1
	got := triangle().Transform(xform.ToPortable(h))
	if diff := cmp.Diff([]uint32{0, 2, 1}, got.Indices); diff != "" {
		t.Errorf("indices (-want +got):\n%s", diff)
	}
	if got.Normals[2] != -1 {
		t.Errorf("normal z = %v, want -1", got.Normals[2])
	}
}

func TestMeshAppendOffsetsIndices(t *testing.T) {
	m := triangle()
	m.Append(triangle())
	if diff := cmp.Diff([]uint32{0, 1, 2, 3, 4, 5}, m.Indices); diff != "" {
		t.Errorf("indices (-want +got):\n%s", diff)
	}
	if m.VertexCount() != 6 {
		t.Errorf("VertexCount() = %d", m.VertexCount())
	}
}

// --- Bounds ---

func TestBounds(t *testing.T) {
	b := EmptyBounds()
	if !b.IsEmpty() || b.Size() != (r3.Vec{}) {
		t.Fatalf("EmptyBounds() = %+v", b)
	}
	b = b.Extend(r3.Vec{X: 1, Y: 2, Z: 3}).Extend(r3.Vec{X: -1})
	want := Bounds{Min: r3.Vec{X: -1}, Max: r3.Vec{X: 1, Y: 2, Z: 3}}
	if b != want {
		t.Errorf("Extend = %+v, want %+v", b, want)
	}
	if u := b.Union(EmptyBounds()); u != b {
		t.Errorf("Union with empty changed the box: %+v", u)
	}
	if got := triangle().Bounds(); got != (Bounds{Max: r3.Vec{X: 1, Y: 1}}) {
		t.Errorf("mesh Bounds() = %+v", got)
	}
}

func TestBoundsTransform(t *testing.T) {
	b := Bounds{Max: r3.Vec{X: 100, Y: 10, Z: 10}}
	h := xform.Compose(r3.Vec{X: 5, Y: 5}, r3.Vec{Z: 90}, 1)
	got := b.Transform(xform.ToPortable(h))
	want := Bounds{Min: r3.Vec{X: -5, Y: 5}, Max: r3.Vec{X: 5, Y: 105, Z: 10}}
	if !got.ApproxEqual(want, 1e-9) {
		t.Errorf("Transform = %+v, want %+v", got, want)
	}
	if e := EmptyBounds().Transform(xform.ToPortable(h)); !e.IsEmpty() {
		t.Errorf("transformed empty box is not empty: %+v", e)
	}
}
