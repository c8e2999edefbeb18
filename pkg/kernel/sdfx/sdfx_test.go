package sdfx

import (
	"testing"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/chazu/instancegraph/pkg/kernel"
	"github.com/chazu/instancegraph/pkg/xform"
)

func TestBoxBoundsStartAtOrigin(t *testing.T) {
	k := New()
	got := k.Box(100, 50, 25).Bounds()
	want := kernel.Bounds{Max: r3.Vec{X: 100, Y: 50, Z: 25}}
	if !got.ApproxEqual(want, 0.01) {
		t.Errorf("Bounds() = %+v, want %+v", got, want)
	}
}

func TestCylinderStandsOnXY(t *testing.T) {
	k := New()
	got := k.Cylinder(50, 10).Bounds()
	want := kernel.Bounds{Min: r3.Vec{X: -10, Y: -10}, Max: r3.Vec{X: 10, Y: 10, Z: 50}}
	if !got.ApproxEqual(want, 0.01) {
		t.Errorf("Bounds() = %+v, want %+v", got, want)
	}
}

func TestBoxMesh(t *testing.T) {
	k := New(WithMeshCells(16))
	mesh, err := k.ToMesh(k.Box(100, 50, 25))
	if err != nil {
		t.Fatalf("ToMesh failed: %v", err)
	}
	if mesh.IsEmpty() || mesh.TriangleCount() == 0 {
		t.Fatal("mesh is empty")
	}
	if len(mesh.Vertices) != len(mesh.Normals) {
		t.Fatalf("vertices length %d != normals length %d", len(mesh.Vertices), len(mesh.Normals))
	}
	if len(mesh.Indices) != mesh.TriangleCount()*3 {
		t.Fatalf("indices length %d != triCount*3", len(mesh.Indices))
	}

	// Marching cubes stays within one cell of the true surface.
	b := mesh.Bounds()
	want := kernel.Bounds{Max: r3.Vec{X: 100, Y: 50, Z: 25}}
	if !b.ApproxEqual(want, 100.0/16) {
		t.Errorf("mesh bounds = %+v, want about %+v", b, want)
	}
}

func TestCylinderMeshPlaced(t *testing.T) {
	k := New(WithMeshCells(16))
	mesh, err := k.ToMesh(k.Cylinder(50, 10))
	if err != nil {
		t.Fatalf("ToMesh failed: %v", err)
	}
	placed := mesh.Transform(xform.ToPortable(xform.Translation(1000, 0, 0)))
	b := placed.Bounds()
	if b.Min.X < 985 || b.Max.X > 1015 {
		t.Errorf("placed cylinder bounds = %+v", b)
	}
}

type foreign struct{}

func (foreign) Bounds() kernel.Bounds { return kernel.Bounds{} }

func TestToMeshRejectsForeignSolid(t *testing.T) {
	if _, err := New().ToMesh(foreign{}); err == nil {
		t.Error("expected error for a solid from another kernel")
	}
}

func TestWithMeshCellsFloor(t *testing.T) {
	if k := New(WithMeshCells(1)); k.cells != 8 {
		t.Errorf("cells = %d, want 8", k.cells)
	}
}
