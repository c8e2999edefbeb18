package scene

import (
	"errors"
	"fmt"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/chazu/instancegraph/pkg/host"
	"github.com/chazu/instancegraph/pkg/xform"
)

var (
	ErrDuplicateName = errors.New("scene: definition name already in use")
	ErrOwned         = errors.New("scene: object already belongs to a definition")
	ErrInUse         = errors.New("scene: definition still placed")
	ErrNotDefinition = errors.New("scene: not a definition")
)

// Document is an in-memory host document: top-level objects, definitions
// and the instances placing them. It is not safe for concurrent mutation;
// concurrent reads are fine.
type Document struct {
	Nodes     map[ID]*Node
	Roots     []ID          // top-level objects in creation order
	NameIndex map[string]ID // definition name -> id

	units    string
	defOrder []ID
	newID    IDGenerator
}

// Option configures a Document.
type Option func(*Document)

// WithUnits sets the document units (default millimeters).
func WithUnits(u string) Option {
	return func(d *Document) { d.units = u }
}

// WithIDGenerator replaces the UUIDv7 id generator.
func WithIDGenerator(g IDGenerator) Option {
	return func(d *Document) { d.newID = g }
}

// New creates an empty document.
func New(opts ...Option) *Document {
	d := &Document{
		Nodes:     make(map[ID]*Node),
		NameIndex: make(map[string]ID),
		units:     xform.UnitsMillimeters,
		newID:     UUIDv7(),
	}
	for _, o := range opts {
		o(d)
	}
	return d
}

func (d *Document) add(n *Node) ID {
	if n.ID.IsZero() {
		n.ID = ID(d.newID())
	}
	d.Nodes[n.ID] = n
	d.Roots = append(d.Roots, n.ID)
	return n.ID
}

// AddBoard adds a top-level board.
func (d *Document) AddBoard(name string, dims r3.Vec, attrs Attrs) ID {
	return d.add(&Node{Kind: KindPrimitive, Name: name, Attrs: attrs, Data: BoardData{Dimensions: dims}})
}

// AddDowel adds a top-level dowel.
func (d *Document) AddDowel(name string, diameter, length float64, attrs Attrs) ID {
	return d.add(&Node{Kind: KindPrimitive, Name: name, Attrs: attrs, Data: DowelData{Diameter: diameter, Length: length}})
}

// Define creates a definition named name and moves members, which must be
// top-level objects, into it. Order is kept.
func (d *Document) Define(name string, members ...ID) (ID, error) {
	if _, ok := d.NameIndex[name]; ok {
		return "", fmt.Errorf("%w: %q", ErrDuplicateName, name)
	}
	for i, m := range members {
		n, ok := d.Nodes[m]
		if !ok {
			return "", fmt.Errorf("scene: member %s: %w", m.Short(), host.ErrNotFound)
		}
		if !n.Owner.IsZero() {
			return "", fmt.Errorf("%w: %s in %s", ErrOwned, m.Short(), n.Owner.Short())
		}
		if n.Kind == KindDefinition {
			return "", fmt.Errorf("scene: member %s is a definition", m.Short())
		}
		for _, prev := range members[:i] {
			if prev == m {
				return "", fmt.Errorf("scene: member %s listed twice", m.Short())
			}
		}
	}

	id := ID(d.newID())
	d.Nodes[id] = &Node{
		ID:   id,
		Kind: KindDefinition,
		Name: name,
		Data: DefinitionData{Members: append([]ID{}, members...)},
	}
	d.NameIndex[name] = id
	d.defOrder = append(d.defOrder, id)

	for _, m := range members {
		d.Nodes[m].Owner = id
		d.removeRoot(m)
	}
	return id, nil
}

// Place adds a top-level instance of def.
func (d *Document) Place(def ID, t xform.HostTransform, units string, attrs Attrs) (ID, error) {
	n, ok := d.Nodes[def]
	if !ok {
		return "", fmt.Errorf("scene: definition %s: %w", def.Short(), host.ErrNotFound)
	}
	if n.Kind != KindDefinition {
		return "", fmt.Errorf("%w: %s is a %s", ErrNotDefinition, def.Short(), n.Kind)
	}
	if units == "" {
		units = d.units
	}
	return d.add(&Node{
		Kind:  KindInstance,
		Name:  n.Name,
		Attrs: attrs,
		Data:  InstanceData{Definition: def, Transform: t, Units: units},
	}), nil
}

// SetEffective marks inst as currently showing the variant definition
// effective instead of its canonical one.
func (d *Document) SetEffective(inst, effective ID) error {
	n, ok := d.Nodes[inst]
	if !ok || n.Kind != KindInstance {
		return fmt.Errorf("scene: instance %s: %w", inst.Short(), host.ErrNotFound)
	}
	if e, ok := d.Nodes[effective]; !ok || e.Kind != KindDefinition {
		return fmt.Errorf("%w: %s", ErrNotDefinition, effective.Short())
	}
	data := n.Data.(InstanceData)
	data.Effective = effective
	n.Data = data
	return nil
}

// SetHidden toggles visibility.
func (d *Document) SetHidden(id ID, hidden bool) error {
	n, ok := d.Nodes[id]
	if !ok {
		return fmt.Errorf("scene: %s: %w", id.Short(), host.ErrNotFound)
	}
	n.Attrs.Hidden = hidden
	return nil
}

// Units returns the document units.
func (d *Document) Units() string { return d.units }

// Lookup returns the definition with the given name, or nil.
func (d *Document) Lookup(name string) *Node {
	id, ok := d.NameIndex[name]
	if !ok {
		return nil
	}
	return d.Nodes[id]
}

// MustLookup returns the definition with the given name, or panics.
func (d *Document) MustLookup(name string) *Node {
	n := d.Lookup(name)
	if n == nil {
		panic(fmt.Sprintf("scene: no definition named %q", name))
	}
	return n
}

// Get returns the node with the given id, or nil.
func (d *Document) Get(id ID) *Node {
	return d.Nodes[id]
}

// Members returns the member nodes of definition n.
func (d *Document) Members(n *Node) []*Node {
	data, ok := n.Data.(DefinitionData)
	if !ok {
		return nil
	}
	out := make([]*Node, 0, len(data.Members))
	for _, id := range data.Members {
		if c := d.Nodes[id]; c != nil {
			out = append(out, c)
		}
	}
	return out
}

// DefinitionNodes returns definitions in creation order.
func (d *Document) DefinitionNodes() []*Node {
	out := make([]*Node, 0, len(d.defOrder))
	for _, id := range d.defOrder {
		if n := d.Nodes[id]; n != nil {
			out = append(out, n)
		}
	}
	return out
}

// Placements returns every instance of def, top level or nested, in a
// stable order. Dynamic instances count for both their canonical and their
// effective definition.
func (d *Document) Placements(def ID) []*Node {
	var out []*Node
	visit := func(id ID) {
		n := d.Nodes[id]
		if n == nil || n.Kind != KindInstance {
			return
		}
		if data := n.Data.(InstanceData); data.Definition == def || data.Effective == def {
			out = append(out, n)
		}
	}
	for _, id := range d.Roots {
		visit(id)
	}
	for _, dn := range d.DefinitionNodes() {
		for _, id := range dn.Data.(DefinitionData).Members {
			visit(id)
		}
	}
	return out
}

// Count returns the number of nodes of kind k.
func (d *Document) Count(k Kind) int {
	n := 0
	for _, node := range d.Nodes {
		if node.Kind == k {
			n++
		}
	}
	return n
}

// NodeCount returns the total number of nodes.
func (d *Document) NodeCount() int {
	return len(d.Nodes)
}

// Remove deletes id. A definition that is still placed cannot be removed;
// removing a definition removes the members it still owns.
func (d *Document) Remove(id ID) error {
	n, ok := d.Nodes[id]
	if !ok {
		return fmt.Errorf("scene: %s: %w", id.Short(), host.ErrNotFound)
	}

	if n.Kind == KindDefinition {
		if refs := d.Placements(id); len(refs) > 0 {
			return fmt.Errorf("%w: %s by %d instance(s)", ErrInUse, n.Name, len(refs))
		}
		for _, m := range n.Data.(DefinitionData).Members {
			if child, ok := d.Nodes[m]; ok && child.Owner == id {
				child.Owner = ""
				if err := d.Remove(m); err != nil {
					return err
				}
			}
		}
		delete(d.NameIndex, n.Name)
		d.defOrder = removeID(d.defOrder, id)
	}

	if n.Owner.IsZero() {
		d.removeRoot(id)
	} else if owner, ok := d.Nodes[n.Owner]; ok {
		data := owner.Data.(DefinitionData)
		data.Members = removeID(data.Members, id)
		owner.Data = data
	}
	delete(d.Nodes, id)
	return nil
}

func (d *Document) removeRoot(id ID) {
	d.Roots = removeID(d.Roots, id)
}

func removeID(ids []ID, id ID) []ID {
	out := ids[:0]
	for _, x := range ids {
		if x != id {
			out = append(out, x)
		}
	}
	return out
}

// Clone returns a deep copy of the document sharing its id generator.
func (d *Document) Clone() *Document {
	c := &Document{
		Nodes:     make(map[ID]*Node, len(d.Nodes)),
		Roots:     append([]ID(nil), d.Roots...),
		NameIndex: make(map[string]ID, len(d.NameIndex)),
		units:     d.units,
		defOrder:  append([]ID(nil), d.defOrder...),
		newID:     d.newID,
	}
	for id, n := range d.Nodes {
		c.Nodes[id] = n.clone()
	}
	for k, v := range d.NameIndex {
		c.NameIndex[k] = v
	}
	return c
}

// restore replaces d's contents with snapshot's.
func (d *Document) restore(snapshot *Document) {
	d.Nodes = snapshot.Nodes
	d.Roots = snapshot.Roots
	d.NameIndex = snapshot.NameIndex
	d.units = snapshot.units
	d.defOrder = snapshot.defOrder
}
