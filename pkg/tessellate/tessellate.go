// Package tessellate walks a scene document and produces world-space parts
// using a geometry kernel: one part per visible primitive reachable from a
// top-level object, with every enclosing instance matrix applied.
package tessellate

import (
	"context"
	"errors"
	"fmt"

	"github.com/chazu/instancegraph/internal/ctxlog"
	"github.com/chazu/instancegraph/pkg/kernel"
	"github.com/chazu/instancegraph/pkg/scene"
	"github.com/chazu/instancegraph/pkg/xform"
)

// ErrCycle is returned when a definition contains itself.
var ErrCycle = errors.New("tessellate: definition cycle")

// Part is one primitive placed in world space.
type Part struct {
	ID     scene.ID
	Name   string
	Path   []string // names of the enclosing instances, outermost first
	World  xform.HostTransform
	Bounds kernel.Bounds // world-space
	Mesh   *kernel.Mesh  // world-space; nil unless WithMeshes
}

// Option configures a walk.
type Option func(*walker)

// WithMeshes makes Parts mesh every primitive. Meshing is the expensive
// step; without it only bounds are computed.
func WithMeshes() Option {
	return func(w *walker) { w.meshes = true }
}

// Solid builds the kernel solid for primitive data.
func Solid(k kernel.Kernel, data scene.NodeData) (kernel.Solid, error) {
	switch d := data.(type) {
	case scene.BoardData:
		return k.Box(d.Dimensions.X, d.Dimensions.Y, d.Dimensions.Z), nil
	case scene.DowelData:
		return k.Cylinder(d.Length, d.Diameter/2), nil
	}
	return nil, fmt.Errorf("tessellate: no solid for %T", data)
}

// transformStack accumulates instance matrices during traversal.
type transformStack struct {
	frames []xform.HostTransform
}

func (ts *transformStack) push(t xform.HostTransform) {
	ts.frames = append(ts.frames, ts.top().Mul(t))
}

func (ts *transformStack) pop() {
	if len(ts.frames) > 0 {
		ts.frames = ts.frames[:len(ts.frames)-1]
	}
}

func (ts *transformStack) top() xform.HostTransform {
	if len(ts.frames) == 0 {
		return xform.HostIdentity()
	}
	return ts.frames[len(ts.frames)-1]
}

type walker struct {
	doc    *scene.Document
	k      kernel.Kernel
	meshes bool

	stack  transformStack
	path   []string
	active map[scene.ID]bool
	local  map[scene.ID]*kernel.Mesh // primitive meshes before placement
	parts  []Part
}

// Parts walks every top-level object of d. Hidden objects and everything
// under them are skipped. Instances show their effective definition.
func Parts(ctx context.Context, d *scene.Document, k kernel.Kernel, opts ...Option) ([]Part, error) {
	if d == nil {
		return nil, nil
	}
	w := &walker{
		doc:    d,
		k:      k,
		active: make(map[scene.ID]bool),
		local:  make(map[scene.ID]*kernel.Mesh),
	}
	for _, o := range opts {
		o(w)
	}

	for _, id := range d.Roots {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		n := d.Get(id)
		if n == nil {
			continue
		}
		if err := w.node(n); err != nil {
			return nil, fmt.Errorf("tessellate: root %s: %w", id.Short(), err)
		}
	}
	ctxlog.FromContext(ctx).Debug("tessellated document", "parts", len(w.parts), "meshes", w.meshes)
	return w.parts, nil
}

// Tessellate returns one world-space mesh per visible primitive.
func Tessellate(ctx context.Context, d *scene.Document, k kernel.Kernel) ([]*kernel.Mesh, error) {
	parts, err := Parts(ctx, d, k, WithMeshes())
	if err != nil {
		return nil, err
	}
	meshes := make([]*kernel.Mesh, 0, len(parts))
	for _, p := range parts {
		meshes = append(meshes, p.Mesh)
	}
	return meshes, nil
}

// Bounds returns the world-space box around every visible primitive.
func Bounds(ctx context.Context, d *scene.Document, k kernel.Kernel) (kernel.Bounds, error) {
	parts, err := Parts(ctx, d, k)
	if err != nil {
		return kernel.Bounds{}, err
	}
	b := kernel.EmptyBounds()
	for _, p := range parts {
		b = b.Union(p.Bounds)
	}
	return b, nil
}

func (w *walker) node(n *scene.Node) error {
	if n.Attrs.Hidden {
		return nil
	}
	switch data := n.Data.(type) {
	case scene.InstanceData:
		return w.instance(n, data)
	case scene.DefinitionData:
		// Definitions only contribute geometry through their instances.
		return nil
	default:
		return w.primitive(n)
	}
}

func (w *walker) instance(n *scene.Node, data scene.InstanceData) error {
	defID := data.Definition
	if !data.Effective.IsZero() {
		defID = data.Effective
	}
	def := w.doc.Get(defID)
	if def == nil {
		return fmt.Errorf("instance %s: definition %s missing", n.ID.Short(), defID.Short())
	}
	if w.active[defID] {
		return fmt.Errorf("%w: %q", ErrCycle, def.Name)
	}

	local, err := xform.ToHost(xform.ToPortable(data.Transform), data.Units, w.doc.Units())
	if err != nil {
		return fmt.Errorf("instance %s: %w", n.ID.Short(), err)
	}

	w.active[defID] = true
	w.stack.push(local)
	w.path = append(w.path, def.Name)
	defer func() {
		w.path = w.path[:len(w.path)-1]
		w.stack.pop()
		delete(w.active, defID)
	}()

	for _, m := range w.doc.Members(def) {
		if err := w.node(m); err != nil {
			return err
		}
	}
	return nil
}

func (w *walker) primitive(n *scene.Node) error {
	solid, err := Solid(w.k, n.Data)
	if err != nil {
		return fmt.Errorf("primitive %s: %w", n.ID.Short(), err)
	}
	world := w.stack.top()
	m := xform.ToPortable(world)

	part := Part{
		ID:     n.ID,
		Name:   n.Name,
		Path:   append([]string(nil), w.path...),
		World:  world,
		Bounds: solid.Bounds().Transform(m),
	}
	if part.Name == "" {
		part.Name = n.ID.Short()
	}
	if w.meshes {
		mesh, ok := w.local[n.ID]
		if !ok {
			mesh, err = w.k.ToMesh(solid)
			if err != nil {
				return fmt.Errorf("primitive %s: ToMesh: %w", n.ID.Short(), err)
			}
			mesh.Name = part.Name
			w.local[n.ID] = mesh
		}
		part.Mesh = mesh.Transform(m)
	}
	w.parts = append(w.parts, part)
	return nil
}
