package scene

import (
	"context"
	"fmt"

	"github.com/chazu/instancegraph/pkg/host"
	"github.com/chazu/instancegraph/pkg/xform"
)

var (
	_ host.Traverser       = (*Document)(nil)
	_ host.Builder         = (*Document)(nil)
	_ host.DefinitionTable = (*Document)(nil)
	_ host.Transactor      = (*Document)(nil)
	_ host.LayerIndex      = (*Document)(nil)
	_ host.DynamicInstance = Placement{}
	_ host.Definition      = Block{}
)

// ---------------------------------------------------------------------------
// Views
// ---------------------------------------------------------------------------

// Part is the host.Object view of a primitive.
type Part struct{ n *Node }

func (p Part) ID() string  { return string(p.n.ID) }
func (p Part) Node() *Node { return p.n }

// Placement is the host.Instance view of an instance node.
type Placement struct{ n *Node }

func (p Placement) ID() string                     { return string(p.n.ID) }
func (p Placement) Node() *Node                    { return p.n }
func (p Placement) DefinitionID() string           { return string(p.data().Definition) }
func (p Placement) EffectiveDefinitionID() string  { return string(p.data().Effective) }
func (p Placement) Transform() xform.HostTransform { return p.data().Transform }
func (p Placement) Units() string                  { return p.data().Units }

func (p Placement) data() InstanceData { return p.n.Data.(InstanceData) }

// Block is the host.Definition view of a definition node.
type Block struct{ n *Node }

func (b Block) ID() string   { return string(b.n.ID) }
func (b Block) Name() string { return b.n.Name }
func (b Block) Node() *Node  { return b.n }

// View wraps n in the host view matching its kind.
func View(n *Node) host.Object {
	switch n.Kind {
	case KindInstance:
		return Placement{n}
	case KindDefinition:
		return Block{n}
	default:
		return Part{n}
	}
}

// NodeOf returns the node behind a view produced by this package, or looks
// the id up in d for foreign objects.
func (d *Document) NodeOf(obj host.Object) *Node {
	switch v := obj.(type) {
	case Part:
		return v.n
	case Placement:
		return v.n
	case Block:
		return v.n
	}
	return d.Nodes[ID(obj.ID())]
}

// Object returns the view of id.
func (d *Document) Object(id ID) (host.Object, error) {
	n, ok := d.Nodes[id]
	if !ok {
		return nil, fmt.Errorf("scene: %s: %w", id.Short(), host.ErrNotFound)
	}
	return View(n), nil
}

// Objects returns views of the top-level objects, in creation order. This is
// the usual send selection.
func (d *Document) Objects() []host.Object {
	out := make([]host.Object, 0, len(d.Roots))
	for _, id := range d.Roots {
		if n := d.Nodes[id]; n != nil {
			out = append(out, View(n))
		}
	}
	return out
}

// ---------------------------------------------------------------------------
// host.Traverser
// ---------------------------------------------------------------------------

func (d *Document) Definition(_ context.Context, id string) (host.Definition, error) {
	n, ok := d.Nodes[ID(id)]
	if !ok {
		return nil, fmt.Errorf("scene: definition %s: %w", ID(id).Short(), host.ErrNotFound)
	}
	if n.Kind != KindDefinition {
		return nil, fmt.Errorf("%w: %s is a %s", ErrNotDefinition, ID(id).Short(), n.Kind)
	}
	return Block{n}, nil
}

func (d *Document) Children(_ context.Context, def host.Definition) ([]host.Object, error) {
	n, ok := d.Nodes[ID(def.ID())]
	if !ok || n.Kind != KindDefinition {
		return nil, fmt.Errorf("scene: definition %s: %w", ID(def.ID()).Short(), host.ErrNotFound)
	}
	members := d.Members(n)
	out := make([]host.Object, len(members))
	for i, m := range members {
		out[i] = View(m)
	}
	return out, nil
}

func (d *Document) IsVisible(obj host.Object) bool {
	n := d.NodeOf(obj)
	return n != nil && !n.Attrs.Hidden
}

// ---------------------------------------------------------------------------
// host.Builder
// ---------------------------------------------------------------------------

func (d *Document) CreateDefinition(_ context.Context, name string, members []host.Object) (host.Definition, error) {
	ids := make([]ID, len(members))
	for i, m := range members {
		ids[i] = ID(m.ID())
	}
	id, err := d.Define(name, ids...)
	if err != nil {
		return nil, err
	}
	return Block{d.Nodes[id]}, nil
}

// CreateInstance places def. The transform is taken to be in document units.
func (d *Document) CreateInstance(_ context.Context, def host.Definition, t xform.HostTransform, attrs host.Attributes) (host.Object, error) {
	a := Attrs{Material: attrs.Material}
	if attrs.Layer != nil {
		a.Layer = append([]string(nil), attrs.Layer...)
	}
	if attrs.Color != nil {
		c := *attrs.Color
		a.Color = &c
	}
	id, err := d.Place(ID(def.ID()), t, d.units, a)
	if err != nil {
		return nil, err
	}
	return Placement{d.Nodes[id]}, nil
}

// ---------------------------------------------------------------------------
// host.DefinitionTable
// ---------------------------------------------------------------------------

func (d *Document) Definitions(context.Context) ([]host.Definition, error) {
	nodes := d.DefinitionNodes()
	out := make([]host.Definition, len(nodes))
	for i, n := range nodes {
		out[i] = Block{n}
	}
	return out, nil
}

func (d *Document) InstancesOf(_ context.Context, def host.Definition) ([]host.Object, error) {
	refs := d.Placements(ID(def.ID()))
	out := make([]host.Object, len(refs))
	for i, n := range refs {
		out[i] = Placement{n}
	}
	return out, nil
}

func (d *Document) Erase(_ context.Context, obj host.Object) error {
	return d.Remove(ID(obj.ID()))
}

// ObjectsOnLayer returns views of the top-level objects whose layer path
// starts with root, in creation order.
func (d *Document) ObjectsOnLayer(_ context.Context, root string) ([]host.Object, error) {
	var out []host.Object
	for _, id := range d.Roots {
		n := d.Nodes[id]
		if n == nil || len(n.Attrs.Layer) == 0 || n.Attrs.Layer[0] != root {
			continue
		}
		out = append(out, View(n))
	}
	return out, nil
}

// ---------------------------------------------------------------------------
// host.Transactor
// ---------------------------------------------------------------------------

// Transaction runs fn against d. If fn returns an error or panics, d is
// rolled back to its state before the call.
func (d *Document) Transaction(ctx context.Context, fn func(ctx context.Context) error) (err error) {
	snapshot := d.Clone()
	defer func() {
		if r := recover(); r != nil {
			d.restore(snapshot)
			err = fmt.Errorf("scene: transaction aborted: %v", r)
		}
	}()
	if err := fn(ctx); err != nil {
		d.restore(snapshot)
		return err
	}
	return nil
}
