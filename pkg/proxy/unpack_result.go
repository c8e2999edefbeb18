package proxy

import "github.com/chazu/instancegraph/pkg/host"

// UnpackResult is the flattened form of a selection: every atomic object,
// every instance proxy and every definition proxy, plus an index of the
// instance proxies that share each definition. It is built by one unpack
// operation and must not change once Freeze has been called.
type UnpackResult struct {
	Atomics               map[string]*AtomicObjectRef
	Instances             map[string]*InstanceProxy
	Definitions           map[string]*InstanceDefinitionProxy
	InstancesByDefinition map[string][]*InstanceProxy

	atomicOrder   []string
	instanceOrder []string
	defOrder      []string
	frozen        bool
}

// NewUnpackResult returns an empty, writable result.
func NewUnpackResult() *UnpackResult {
	return &UnpackResult{
		Atomics:               make(map[string]*AtomicObjectRef),
		Instances:             make(map[string]*InstanceProxy),
		Definitions:           make(map[string]*InstanceDefinitionProxy),
		InstancesByDefinition: make(map[string][]*InstanceProxy),
	}
}

func (r *UnpackResult) mustBeWritable() {
	if r.frozen {
		panic("proxy: UnpackResult modified after Freeze")
	}
}

// AddAtomic registers obj as an atomic object. Registering the same id twice
// keeps the first reference.
func (r *UnpackResult) AddAtomic(obj host.Object) *AtomicObjectRef {
	r.mustBeWritable()
	id := obj.ID()
	if ref, ok := r.Atomics[id]; ok {
		return ref
	}
	ref := &AtomicObjectRef{ApplicationID: id, Object: obj}
	r.Atomics[id] = ref
	r.atomicOrder = append(r.atomicOrder, id)
	return ref
}

// UpsertInstance returns the proxy stored under p.ApplicationID, inserting p
// when none exists. An existing proxy keeps the deeper of the two depths.
func (r *UnpackResult) UpsertInstance(p *InstanceProxy) *InstanceProxy {
	r.mustBeWritable()
	if existing, ok := r.Instances[p.ApplicationID]; ok {
		existing.Raise(p.MaxDepth)
		return existing
	}
	r.Instances[p.ApplicationID] = p
	r.instanceOrder = append(r.instanceOrder, p.ApplicationID)
	return p
}

// AddDefinition stores d. It panics if the id is already present: callers
// memoize on the id and must check first.
func (r *UnpackResult) AddDefinition(d *InstanceDefinitionProxy) {
	r.mustBeWritable()
	if _, ok := r.Definitions[d.ApplicationID]; ok {
		panic("proxy: duplicate definition " + d.ApplicationID)
	}
	r.Definitions[d.ApplicationID] = d
	r.defOrder = append(r.defOrder, d.ApplicationID)
}

// Share records that p places definitionID, raising every proxy already
// sharing that definition to depth. p is appended at most once.
func (r *UnpackResult) Share(definitionID string, p *InstanceProxy, depth int) {
	r.mustBeWritable()
	list := r.InstancesByDefinition[definitionID]
	seen := false
	for _, other := range list {
		other.Raise(depth)
		if other == p {
			seen = true
		}
	}
	if !seen {
		list = append(list, p)
	}
	r.InstancesByDefinition[definitionID] = list
}

// Freeze marks the result read-only.
func (r *UnpackResult) Freeze() { r.frozen = true }

// Frozen reports whether Freeze has been called.
func (r *UnpackResult) Frozen() bool { return r.frozen }

// AtomicList returns the atomic references in discovery order.
func (r *UnpackResult) AtomicList() []*AtomicObjectRef {
	out := make([]*AtomicObjectRef, 0, len(r.atomicOrder))
	for _, id := range r.atomicOrder {
		out = append(out, r.Atomics[id])
	}
	return out
}

// InstanceList returns the instance proxies in discovery order.
func (r *UnpackResult) InstanceList() []*InstanceProxy {
	out := make([]*InstanceProxy, 0, len(r.instanceOrder))
	for _, id := range r.instanceOrder {
		out = append(out, r.Instances[id])
	}
	return out
}

// DefinitionList returns the definition proxies in discovery order.
func (r *UnpackResult) DefinitionList() []*InstanceDefinitionProxy {
	out := make([]*InstanceDefinitionProxy, 0, len(r.defOrder))
	for _, id := range r.defOrder {
		out = append(out, r.Definitions[id])
	}
	return out
}

// Components returns definitions followed by instances, each in discovery
// order, paired with path. The scheduler decides the final order.
func (r *UnpackResult) Components(path []string) []Bakeable {
	out := make([]Bakeable, 0, len(r.defOrder)+len(r.instanceOrder))
	for _, d := range r.DefinitionList() {
		out = append(out, Bakeable{Path: path, Component: d})
	}
	for _, p := range r.InstanceList() {
		out = append(out, Bakeable{Path: path, Component: p})
	}
	return out
}
