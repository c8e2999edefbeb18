//go:build manifold

// Package manifold binds the Manifold geometry library
// (https://github.com/elalish/manifold) through its C API. Meshes come out
// exact rather than sampled, which suits large scenes of simple boards.
//
// This package requires the Manifold C library (manifoldc) to be installed.
// Build with: go build -tags=manifold
package manifold

/*
#cgo CFLAGS: -I/usr/local/include
#cgo LDFLAGS: -L/usr/local/lib -lmanifoldc

#include <stdlib.h>
#include <manifold/manifoldc.h>
*/
import "C"

import (
	"fmt"
	"math"
	"runtime"
	"unsafe"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/chazu/instancegraph/pkg/kernel"
)

var (
	_ kernel.Kernel = (*Kernel)(nil)
	_ kernel.Solid  = (*solid)(nil)
)

// solid owns a C ManifoldManifold; a finalizer frees it.
type solid struct {
	ptr *C.ManifoldManifold
}

func (s *solid) Bounds() kernel.Bounds {
	bbox := C.manifold_bounding_box(C.manifold_alloc_box(), s.ptr)
	defer C.manifold_delete_box(bbox)
	return kernel.Bounds{
		Min: r3.Vec{
			X: float64(C.manifold_box_min_x(bbox)),
			Y: float64(C.manifold_box_min_y(bbox)),
			Z: float64(C.manifold_box_min_z(bbox)),
		},
		Max: r3.Vec{
			X: float64(C.manifold_box_max_x(bbox)),
			Y: float64(C.manifold_box_max_y(bbox)),
			Z: float64(C.manifold_box_max_z(bbox)),
		},
	}
}

func newSolid(ptr *C.ManifoldManifold) *solid {
	s := &solid{ptr: ptr}
	runtime.SetFinalizer(s, func(s *solid) {
		if s.ptr != nil {
			C.manifold_delete_manifold(s.ptr)
			s.ptr = nil
		}
	})
	return s
}

// Kernel implements kernel.Kernel with Manifold.
type Kernel struct {
	segments int
}

// New returns a Manifold kernel.
func New(opts ...Option) (kernel.Kernel, error) {
	k := &Kernel{segments: DefaultSegments}
	for _, o := range opts {
		o(k)
	}
	return k, nil
}

// Box has its minimum corner at the origin.
func (k *Kernel) Box(x, y, z float64) kernel.Solid {
	ptr := C.manifold_cube(C.manifold_alloc_manifold(),
		C.double(x), C.double(y), C.double(z),
		C.int(0), // not centred
	)
	return newSolid(ptr)
}

// Cylinder stands on the XY plane, centred on the Z axis.
func (k *Kernel) Cylinder(height, radius float64) kernel.Solid {
	ptr := C.manifold_cylinder(C.manifold_alloc_manifold(),
		C.double(height),
		C.double(radius), C.double(radius),
		C.int(k.segments),
		C.int(0),
	)
	return newSolid(ptr)
}

// ToMesh extracts the MeshGL of s. Positions are the first three vertex
// properties; normals follow when present and are computed otherwise.
func (k *Kernel) ToMesh(s kernel.Solid) (*kernel.Mesh, error) {
	ms, ok := s.(*solid)
	if !ok {
		return nil, fmt.Errorf("manifold: foreign solid %T", s)
	}
	meshGL := C.manifold_get_meshgl(C.manifold_alloc_meshgl(), ms.ptr)
	defer C.manifold_delete_meshgl(meshGL)

	numVert := int(C.manifold_meshgl_num_vert(meshGL))
	numTri := int(C.manifold_meshgl_num_tri(meshGL))
	if numVert == 0 || numTri == 0 {
		return &kernel.Mesh{}, nil
	}
	numProp := int(C.manifold_meshgl_num_prop(meshGL))

	props := make([]float32, numVert*numProp)
	C.manifold_meshgl_vert_properties((*C.float)(unsafe.Pointer(&props[0])), meshGL)
	indices := make([]uint32, numTri*3)
	C.manifold_meshgl_tri_verts((*C.uint32_t)(unsafe.Pointer(&indices[0])), meshGL)

	hasNormals := numProp >= 6
	vertices := make([]float32, numVert*3)
	var normals []float32
	if hasNormals {
		normals = make([]float32, numVert*3)
	}
	for i := 0; i < numVert; i++ {
		base := i * numProp
		copy(vertices[i*3:i*3+3], props[base:base+3])
		if hasNormals {
			copy(normals[i*3:i*3+3], props[base+3:base+6])
		}
	}
	if !hasNormals {
		normals = vertexNormals(vertices, indices)
	}

	runtime.KeepAlive(ms)
	return &kernel.Mesh{Vertices: vertices, Normals: normals, Indices: indices}, nil
}

// vertexNormals averages the face normals around each vertex.
func vertexNormals(vertices []float32, indices []uint32) []float32 {
	normals := make([]float32, len(vertices))
	for t := 0; t+2 < len(indices); t += 3 {
		i0, i1, i2 := indices[t], indices[t+1], indices[t+2]
		a := r3.Vec{X: float64(vertices[i0*3]), Y: float64(vertices[i0*3+1]), Z: float64(vertices[i0*3+2])}
		b := r3.Vec{X: float64(vertices[i1*3]), Y: float64(vertices[i1*3+1]), Z: float64(vertices[i1*3+2])}
		c := r3.Vec{X: float64(vertices[i2*3]), Y: float64(vertices[i2*3+1]), Z: float64(vertices[i2*3+2])}
		n := r3.Cross(r3.Sub(b, a), r3.Sub(c, a))
		for _, idx := range []uint32{i0, i1, i2} {
			normals[idx*3] += float32(n.X)
			normals[idx*3+1] += float32(n.Y)
			normals[idx*3+2] += float32(n.Z)
		}
	}
	for i := 0; i+2 < len(normals); i += 3 {
		l := math.Sqrt(float64(normals[i]*normals[i] + normals[i+1]*normals[i+1] + normals[i+2]*normals[i+2]))
		if l > 1e-12 {
			normals[i] = float32(float64(normals[i]) / l)
			normals[i+1] = float32(float64(normals[i+1]) / l)
			normals[i+2] = float32(float64(normals[i+2]) / l)
		}
	}
	return normals
}
