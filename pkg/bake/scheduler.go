// Package bake rebuilds host definitions and instances from a flattened proxy
// set, in an order where every definition exists before anything uses it.
package bake

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/chazu/instancegraph/internal/ctxlog"
	"github.com/chazu/instancegraph/pkg/host"
	"github.com/chazu/instancegraph/pkg/proxy"
	"github.com/chazu/instancegraph/pkg/xform"
)

var (
	// ErrNoMembers is the item error for a definition none of whose members
	// resolved to a baked object.
	ErrNoMembers = errors.New("bake: definition has no resolvable members")
	// ErrDefinitionNotBaked is the item error for an instance whose definition
	// has no host counterpart at its scheduled position.
	ErrDefinitionNotBaked = errors.New("bake: definition not baked")
	// ErrUnresolvedMembers is the warning cause for a definition baked with
	// some members missing.
	ErrUnresolvedMembers = errors.New("bake: some definition members did not resolve")
)

// Scheduler drives host creation for one receive operation.
type Scheduler struct {
	builder   host.Builder
	decorator host.Decorator
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithDecorator sets the source of colour/material overrides.
func WithDecorator(d host.Decorator) Option {
	return func(s *Scheduler) { s.decorator = d }
}

// New returns a Scheduler creating objects through b.
func New(b host.Builder, opts ...Option) *Scheduler {
	s := &Scheduler{builder: b, decorator: MapDecorator{}}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Order returns a copy of components sorted for baking: descending depth,
// and at equal depth definitions before instances. The sort is stable so
// ties keep their input order.
func Order(components []proxy.Bakeable) []proxy.Bakeable {
	out := make([]proxy.Bakeable, len(components))
	copy(out, components)
	sort.SliceStable(out, func(i, j int) bool {
		di, dj := out[i].Component.Depth(), out[j].Component.Depth()
		if di != dj {
			return di > dj
		}
		return rank(out[i].Component) < rank(out[j].Component)
	})
	return out
}

func rank(c proxy.Component) int {
	if _, ok := c.(*proxy.InstanceDefinitionProxy); ok {
		return 0
	}
	return 1
}

// run holds the state of one Instances call.
type run struct {
	atomics     map[string]host.Object
	definitions map[string]host.Definition // by definition application id
	instances   map[string]host.Object     // by instance application id
	baseName    string
	result      *proxy.BakeResult
}

// Instances bakes components against the already-baked atomic objects
// (keyed by application id). Item failures become error outcomes and never
// stop the batch; the returned error is the batch-level failure, if any, or
// the context error when cancelled between items.
func (s *Scheduler) Instances(ctx context.Context, components []proxy.Bakeable, atomics map[string]host.Object, baseName string) (*proxy.BakeResult, error) {
	logger := ctxlog.FromContext(ctx)
	r := &run{
		atomics:     atomics,
		definitions: make(map[string]host.Definition),
		instances:   make(map[string]host.Object),
		baseName:    baseName,
		result:      proxy.NewBakeResult(),
	}

	for _, item := range Order(components) {
		if err := ctx.Err(); err != nil {
			return r.result, err
		}
		o := s.bakeItem(ctx, r, item)
		logger.Debug("baked component",
			"kind", o.Kind, "id", o.ApplicationID, "status", o.Status.String(), "host_id", o.HostID)
		if o.Err != nil && o.Status == proxy.StatusError {
			logger.Warn("component failed", "kind", o.Kind, "id", o.ApplicationID, "err", o.Err)
		}
		r.result.Record(o)
	}

	logger.Info("bake finished",
		"items", len(r.result.Outcomes),
		"succeeded", r.result.Count(proxy.StatusSuccess),
		"warned", r.result.Count(proxy.StatusWarning),
		"failed", r.result.Count(proxy.StatusError))
	return r.result, r.result.Err()
}

// bakeItem converts a panic in host code into an item error.
func (s *Scheduler) bakeItem(ctx context.Context, r *run, item proxy.Bakeable) (o proxy.Outcome) {
	kind := proxy.Kind(item.Component)
	id := ""
	if item.Component != nil {
		id = item.Component.ID()
	}
	defer func() {
		if rec := recover(); rec != nil {
			o = failed(kind, id, fmt.Errorf("panic: %v", rec))
		}
	}()

	switch c := item.Component.(type) {
	case *proxy.InstanceDefinitionProxy:
		return s.definition(ctx, r, c)
	case *proxy.InstanceProxy:
		return s.instance(ctx, r, c, item.Path)
	default:
		return proxy.Outcome{
			ApplicationID: id,
			Kind:          kind,
			Status:        proxy.StatusSkipped,
			Err:           &proxy.ItemError{ApplicationID: id, Kind: kind, Err: host.ErrUnsupported},
		}
	}
}

func failed(kind, id string, err error) proxy.Outcome {
	return proxy.Outcome{
		ApplicationID: id,
		Kind:          kind,
		Status:        proxy.StatusError,
		Err:           &proxy.ItemError{ApplicationID: id, Kind: kind, Err: err},
	}
}

func (s *Scheduler) definition(ctx context.Context, r *run, d *proxy.InstanceDefinitionProxy) proxy.Outcome {
	const kind = "definition"

	members := make([]host.Object, 0, len(d.Objects))
	var missing []string
	for _, id := range d.Objects {
		if obj, ok := r.atomics[id]; ok {
			members = append(members, obj)
			continue
		}
		if obj, ok := r.instances[id]; ok {
			members = append(members, obj)
			continue
		}
		missing = append(missing, id)
	}
	if len(members) == 0 {
		return failed(kind, d.ApplicationID, ErrNoMembers)
	}

	name := DefinitionName(d.Name, d.ApplicationID, r.baseName)
	def, err := s.builder.CreateDefinition(ctx, name, members)
	if err != nil {
		return failed(kind, d.ApplicationID, fmt.Errorf("create %q: %w", name, err))
	}
	r.definitions[d.ApplicationID] = def
	for _, m := range members {
		r.result.Consume(m.ID())
	}

	o := proxy.Outcome{ApplicationID: d.ApplicationID, Kind: kind, Status: proxy.StatusSuccess, HostID: def.ID()}
	if len(missing) > 0 {
		o.Status = proxy.StatusWarning
		o.Err = &proxy.ItemError{
			ApplicationID: d.ApplicationID,
			Kind:          kind,
			Err:           fmt.Errorf("%w: %s", ErrUnresolvedMembers, strings.Join(missing, ", ")),
		}
	}
	return o
}

func (s *Scheduler) instance(ctx context.Context, r *run, p *proxy.InstanceProxy, path []string) proxy.Outcome {
	const kind = "instance"

	def, ok := r.definitions[p.DefinitionID]
	if !ok {
		return failed(kind, p.ApplicationID, fmt.Errorf("%w: %s", ErrDefinitionNotBaked, p.DefinitionID))
	}

	t, err := xform.ToHost(p.Transform, p.Units, s.builder.Units())
	if err != nil {
		return failed(kind, p.ApplicationID, err)
	}

	attrs := host.Attributes{Layer: path}
	if c, ok := s.decorator.ColorOverride(p.ApplicationID); ok {
		attrs.Color = &c
	}
	if m, ok := s.decorator.MaterialOverride(p.ApplicationID); ok {
		attrs.Material = m
	}

	obj, err := s.builder.CreateInstance(ctx, def, t, attrs)
	if err != nil {
		return failed(kind, p.ApplicationID, fmt.Errorf("create instance of %s: %w", p.DefinitionID, err))
	}
	r.instances[p.ApplicationID] = obj
	return proxy.Outcome{ApplicationID: p.ApplicationID, Kind: kind, Status: proxy.StatusSuccess, HostID: obj.ID()}
}
