// Package unpack flattens a selection of host objects into proxies. It walks
// instance references depth-first, records one definition proxy per distinct
// definition, and keeps nesting depths consistent so the receive side can
// rebuild deep definitions before the shallower ones that use them.
package unpack

import (
	"context"
	"errors"
	"fmt"

	"github.com/chazu/instancegraph/internal/ctxlog"
	"github.com/chazu/instancegraph/pkg/host"
	"github.com/chazu/instancegraph/pkg/proxy"
	"github.com/chazu/instancegraph/pkg/xform"
)

// DefaultMaxDepth caps instance nesting. Real documents stay far below it.
const DefaultMaxDepth = 256

var (
	// ErrCyclicDefinition is returned when a definition contains, directly or
	// through nested instances, a placement of itself.
	ErrCyclicDefinition = errors.New("unpack: cyclic definition")
	// ErrDepthExceeded is returned when nesting goes deeper than the cap.
	ErrDepthExceeded = errors.New("unpack: nesting depth exceeded")
)

// Unpacker flattens selections read through a host.Traverser.
type Unpacker struct {
	host     host.Traverser
	maxDepth int
}

// Option configures an Unpacker.
type Option func(*Unpacker)

// WithMaxDepth overrides DefaultMaxDepth.
func WithMaxDepth(n int) Option {
	return func(u *Unpacker) {
		if n > 0 {
			u.maxDepth = n
		}
	}
}

// New returns an Unpacker reading from t.
func New(t host.Traverser, opts ...Option) *Unpacker {
	u := &Unpacker{host: t, maxDepth: DefaultMaxDepth}
	for _, o := range opts {
		o(u)
	}
	return u
}

// walk holds the per-operation arena: the result being built and the set of
// definitions on the current traversal path.
type walk struct {
	host     host.Traverser
	maxDepth int
	result   *proxy.UnpackResult
	active   map[string]bool
}

// Selection flattens objects. Roots start at depth 0. Every selected object
// is registered as an atomic object, instance or not; instances additionally
// produce an instance proxy and, on first sight of their definition, a
// definition proxy with its members. The returned result is frozen.
func (u *Unpacker) Selection(ctx context.Context, objects []host.Object) (*proxy.UnpackResult, error) {
	w := &walk{
		host:     u.host,
		maxDepth: u.maxDepth,
		result:   proxy.NewUnpackResult(),
		active:   make(map[string]bool),
	}

	for _, obj := range objects {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if inst, ok := obj.(host.Instance); ok {
			if err := w.instance(ctx, inst, 0); err != nil {
				return nil, err
			}
		}
		w.result.AddAtomic(obj)
	}

	w.result.Freeze()
	ctxlog.FromContext(ctx).Info("unpacked selection",
		"roots", len(objects),
		"atomics", len(w.result.Atomics),
		"instances", len(w.result.Instances),
		"definitions", len(w.result.Definitions))
	return w.result, nil
}

// definitionID prefers the effective definition of a dynamic instance.
func definitionID(inst host.Instance) string {
	if dyn, ok := inst.(host.DynamicInstance); ok {
		if id := dyn.EffectiveDefinitionID(); id != "" {
			return id
		}
	}
	return inst.DefinitionID()
}

func (w *walk) instance(ctx context.Context, inst host.Instance, depth int) error {
	if depth > w.maxDepth {
		return fmt.Errorf("%w: instance %s at depth %d (limit %d)", ErrDepthExceeded, inst.ID(), depth, w.maxDepth)
	}

	defID := definitionID(inst)
	p := w.result.UpsertInstance(&proxy.InstanceProxy{
		ApplicationID: inst.ID(),
		DefinitionID:  defID,
		Transform:     xform.ToPortable(inst.Transform()),
		Units:         inst.Units(),
		MaxDepth:      depth,
	})
	w.result.Share(defID, p, depth)

	if def, ok := w.result.Definitions[defID]; ok {
		if w.active[defID] {
			return fmt.Errorf("%w: %s is reached again through instance %s", ErrCyclicDefinition, defID, inst.ID())
		}
		if delta := depth - def.MaxDepth; delta > 0 {
			ctxlog.FromContext(ctx).Debug("definition found deeper, propagating",
				"definition", defID, "from", def.MaxDepth, "to", depth)
			w.cascade(def, delta)
		}
		return nil
	}

	hostDef, err := w.host.Definition(ctx, defID)
	if err != nil {
		return fmt.Errorf("unpack: definition %s of instance %s: %w", defID, inst.ID(), err)
	}
	def := &proxy.InstanceDefinitionProxy{
		ApplicationID: defID,
		Name:          hostDef.Name(),
		Objects:       []string{},
		MaxDepth:      depth,
	}
	w.result.AddDefinition(def)

	w.active[defID] = true
	defer delete(w.active, defID)

	children, err := w.host.Children(ctx, hostDef)
	if err != nil {
		return fmt.Errorf("unpack: members of %s: %w", defID, err)
	}
	for _, child := range children {
		if !w.host.IsVisible(child) {
			continue
		}
		if nested, ok := child.(host.Instance); ok {
			if err := w.instance(ctx, nested, depth+1); err != nil {
				return err
			}
		}
		def.Objects = append(def.Objects, child.ID())
		w.result.AddAtomic(child)
	}
	return nil
}

// cascade shifts root and everything nested under it by delta: the
// definition itself, every instance proxy among its members, and,
// recursively, the definitions those instances place. Each definition is
// shifted once even when reachable along several paths. Containers of root
// are not touched.
func (w *walk) cascade(root *proxy.InstanceDefinitionProxy, delta int) {
	visited := make(map[string]bool)
	var shift func(def *proxy.InstanceDefinitionProxy)
	shift = func(def *proxy.InstanceDefinitionProxy) {
		if visited[def.ApplicationID] {
			return
		}
		visited[def.ApplicationID] = true
		def.Shift(delta)

		for _, id := range def.Objects {
			p, ok := w.result.Instances[id]
			if !ok {
				continue
			}
			p.Shift(delta)
			if sub, ok := w.result.Definitions[p.DefinitionID]; ok {
				shift(sub)
			}
		}
	}
	shift(root)
}
