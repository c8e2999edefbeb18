package unpack

import (
	"context"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/chazu/instancegraph/pkg/host"
	"github.com/chazu/instancegraph/pkg/xform"
)

// ---------------------------------------------------------------------------
// Fake host
// ---------------------------------------------------------------------------

type atom struct {
	id     string
	hidden bool
}

func (a *atom) ID() string { return a.id }

type ref struct {
	id, def string
	units   string
	t       xform.HostTransform
	hidden  bool
}

func (r *ref) ID() string                     { return r.id }
func (r *ref) DefinitionID() string           { return r.def }
func (r *ref) Transform() xform.HostTransform { return r.t }
func (r *ref) Units() string                  { return r.units }

type dynRef struct {
	ref
	effective string
}

func (d *dynRef) EffectiveDefinitionID() string { return d.effective }

type block struct {
	id, name string
	members  []host.Object
}

func (b *block) ID() string   { return b.id }
func (b *block) Name() string { return b.name }

type fakeHost struct {
	blocks        map[string]*block
	childrenCalls map[string]int
}

func newFakeHost(blocks ...*block) *fakeHost {
	h := &fakeHost{blocks: make(map[string]*block), childrenCalls: make(map[string]int)}
	for _, b := range blocks {
		h.blocks[b.id] = b
	}
	return h
}

func (h *fakeHost) Definition(_ context.Context, id string) (host.Definition, error) {
	b, ok := h.blocks[id]
	if !ok {
		return nil, host.ErrNotFound
	}
	return b, nil
}

func (h *fakeHost) Children(_ context.Context, def host.Definition) ([]host.Object, error) {
	h.childrenCalls[def.ID()]++
	return h.blocks[def.ID()].members, nil
}

func (h *fakeHost) IsVisible(obj host.Object) bool {
	switch o := obj.(type) {
	case *atom:
		return !o.hidden
	case *ref:
		return !o.hidden
	}
	return true
}

func place(id, def string) *ref {
	return &ref{id: id, def: def, units: xform.UnitsMillimeters, t: xform.HostIdentity()}
}

// ---------------------------------------------------------------------------
// Tests
// ---------------------------------------------------------------------------

func TestConcreteScenario(t *testing.T) {
	// A (root) places D1; D1's only member is B, which places D2.
	leaf := &atom{id: "leaf"}
	b := place("B", "D2")
	a := place("A", "D1")
	h := newFakeHost(
		&block{id: "D1", name: "outer", members: []host.Object{b}},
		&block{id: "D2", name: "inner", members: []host.Object{leaf}},
	)

	res, err := New(h).Selection(context.Background(), []host.Object{a})
	if err != nil {
		t.Fatalf("Selection: %v", err)
	}
	if len(res.Definitions) != 2 || len(res.Instances) != 2 {
		t.Fatalf("got %d definitions, %d instances; want 2, 2", len(res.Definitions), len(res.Instances))
	}

	depths := map[string]int{
		"D1": res.Definitions["D1"].MaxDepth,
		"D2": res.Definitions["D2"].MaxDepth,
		"A":  res.Instances["A"].MaxDepth,
		"B":  res.Instances["B"].MaxDepth,
	}
	want := map[string]int{"D1": 0, "D2": 1, "A": 0, "B": 1}
	if diff := cmp.Diff(want, depths); diff != "" {
		t.Errorf("depths (-want +got):\n%s", diff)
	}

	if diff := cmp.Diff([]string{"B"}, res.Definitions["D1"].Objects); diff != "" {
		t.Errorf("D1 objects (-want +got):\n%s", diff)
	}
	for _, id := range []string{"A", "B", "leaf"} {
		if _, ok := res.Atomics[id]; !ok {
			t.Errorf("atomic %q not registered", id)
		}
	}
	if !res.Frozen() {
		t.Error("result not frozen")
	}
}

func TestDefinitionMemoized(t *testing.T) {
	h := newFakeHost(
		&block{id: "D", name: "d", members: []host.Object{&atom{id: "x"}}},
		&block{id: "P", name: "p", members: []host.Object{place("p1", "D"), place("p2", "D")}},
	)
	sel := []host.Object{place("r1", "D"), place("r2", "P"), place("r3", "D")}

	res, err := New(h).Selection(context.Background(), sel)
	if err != nil {
		t.Fatalf("Selection: %v", err)
	}
	if got := h.childrenCalls["D"]; got != 1 {
		t.Errorf("definition D traversed %d times, want 1", got)
	}
	if len(res.Definitions) != 2 {
		t.Errorf("definitions = %d, want 2", len(res.Definitions))
	}
	if got := len(res.InstancesByDefinition["D"]); got != 4 {
		t.Errorf("instances sharing D = %d, want 4", got)
	}
}

func TestDepthCascade(t *testing.T) {
	// First root reaches D at depth 1; second root reaches it at depth 3.
	// D contains I, which places E.
	h := newFakeHost(
		&block{id: "E", name: "e", members: []host.Object{&atom{id: "e-leaf"}}},
		&block{id: "D", name: "d", members: []host.Object{place("I", "E")}},
		&block{id: "P1", name: "p1", members: []host.Object{place("a1", "D")}},
		&block{id: "P2", name: "p2", members: []host.Object{place("m1", "P3")}},
		&block{id: "P3", name: "p3", members: []host.Object{place("m2", "P4")}},
		&block{id: "P4", name: "p4", members: []host.Object{place("d2", "D")}},
	)
	sel := []host.Object{place("X1", "P1"), place("X2", "P2")}

	res, err := New(h).Selection(context.Background(), sel)
	if err != nil {
		t.Fatalf("Selection: %v", err)
	}

	got := map[string]int{
		"D":  res.Definitions["D"].MaxDepth,
		"E":  res.Definitions["E"].MaxDepth,
		"I":  res.Instances["I"].MaxDepth,
		"a1": res.Instances["a1"].MaxDepth,
		"d2": res.Instances["d2"].MaxDepth,
		"P1": res.Definitions["P1"].MaxDepth,
	}
	want := map[string]int{
		"D":  3,
		"E":  4, // 2 + delta 2
		"I":  4,
		"a1": 3, // raised as a sibling placement of D
		"d2": 3,
		"P1": 0, // containers are not re-raised
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("depths (-want +got):\n%s", diff)
	}
}

func TestCascadeRaisesSharedDefinitionOnce(t *testing.T) {
	// D contains two placements of E (a diamond). Reaching D deeper must
	// raise E by the delta exactly once.
	h := newFakeHost(
		&block{id: "E", name: "e", members: []host.Object{&atom{id: "leaf"}}},
		&block{id: "D", name: "d", members: []host.Object{place("i1", "E"), place("i2", "E")}},
		&block{id: "P", name: "p", members: []host.Object{place("deep", "D")}},
	)
	sel := []host.Object{place("shallow", "D"), place("wrap", "P")}

	res, err := New(h).Selection(context.Background(), sel)
	if err != nil {
		t.Fatalf("Selection: %v", err)
	}
	if got := res.Definitions["D"].MaxDepth; got != 1 {
		t.Errorf("D depth = %d, want 1", got)
	}
	if got := res.Definitions["E"].MaxDepth; got != 2 {
		t.Errorf("E depth = %d, want 2", got)
	}
	for _, id := range []string{"i1", "i2"} {
		if got := res.Instances[id].MaxDepth; got != 2 {
			t.Errorf("%s depth = %d, want 2", id, got)
		}
	}
}

func TestCoDefinitionalDepthsAgree(t *testing.T) {
	h := newFakeHost(
		&block{id: "D", name: "d", members: []host.Object{&atom{id: "x"}}},
		&block{id: "P", name: "p", members: []host.Object{place("q", "Q")}},
		&block{id: "Q", name: "q", members: []host.Object{place("deep", "D")}},
	)
	sel := []host.Object{place("top", "D"), place("outer", "P")}

	res, err := New(h).Selection(context.Background(), sel)
	if err != nil {
		t.Fatalf("Selection: %v", err)
	}
	def := res.Definitions["D"]
	for _, p := range res.InstancesByDefinition["D"] {
		if p.MaxDepth != def.MaxDepth {
			t.Errorf("instance %s depth %d, definition depth %d", p.ApplicationID, p.MaxDepth, def.MaxDepth)
		}
	}
	if def.MaxDepth != 2 {
		t.Errorf("D depth = %d, want 2", def.MaxDepth)
	}
}

func TestInstanceKeepsDeepestDepth(t *testing.T) {
	// "inner" is selected directly and also found inside P.
	inner := place("inner", "D")
	h := newFakeHost(
		&block{id: "D", name: "d", members: []host.Object{&atom{id: "x"}}},
		&block{id: "P", name: "p", members: []host.Object{inner}},
	)

	res, err := New(h).Selection(context.Background(), []host.Object{place("outer", "P"), inner})
	if err != nil {
		t.Fatalf("Selection: %v", err)
	}
	if got := res.Instances["inner"].MaxDepth; got != 1 {
		t.Errorf("inner depth = %d, want 1", got)
	}
	if len(res.Instances) != 2 {
		t.Errorf("instances = %d, want 2", len(res.Instances))
	}
}

func TestHiddenMembersSkipped(t *testing.T) {
	hiddenRef := place("h-ref", "E")
	hiddenRef.hidden = true
	h := newFakeHost(
		&block{id: "D", name: "d", members: []host.Object{
			&atom{id: "shown"},
			&atom{id: "hidden", hidden: true},
			hiddenRef,
		}},
		&block{id: "E", name: "e"},
	)

	res, err := New(h).Selection(context.Background(), []host.Object{place("a", "D")})
	if err != nil {
		t.Fatalf("Selection: %v", err)
	}
	if diff := cmp.Diff([]string{"shown"}, res.Definitions["D"].Objects); diff != "" {
		t.Errorf("objects (-want +got):\n%s", diff)
	}
	for _, id := range []string{"hidden", "h-ref"} {
		if _, ok := res.Atomics[id]; ok {
			t.Errorf("hidden member %q registered", id)
		}
	}
	if _, ok := res.Definitions["E"]; ok {
		t.Error("definition behind hidden instance was unpacked")
	}
}

func TestEmptyDefinition(t *testing.T) {
	h := newFakeHost(&block{id: "D", name: "empty"})

	res, err := New(h).Selection(context.Background(), []host.Object{place("a", "D")})
	if err != nil {
		t.Fatalf("Selection: %v", err)
	}
	objs := res.Definitions["D"].Objects
	if objs == nil || len(objs) != 0 {
		t.Errorf("Objects = %#v, want empty non-nil slice", objs)
	}
}

func TestAtomicSelection(t *testing.T) {
	res, err := New(newFakeHost()).Selection(context.Background(), []host.Object{&atom{id: "solo"}})
	if err != nil {
		t.Fatalf("Selection: %v", err)
	}
	if len(res.Atomics) != 1 || len(res.Instances) != 0 || len(res.Definitions) != 0 {
		t.Errorf("got %d/%d/%d atomics/instances/definitions", len(res.Atomics), len(res.Instances), len(res.Definitions))
	}
}

func TestDynamicInstancePrefersEffectiveDefinition(t *testing.T) {
	h := newFakeHost(
		&block{id: "canonical", name: "c", members: []host.Object{&atom{id: "c1"}}},
		&block{id: "variant", name: "v", members: []host.Object{&atom{id: "v1"}}},
	)
	dyn := &dynRef{ref: *place("dyn", "canonical"), effective: "variant"}

	res, err := New(h).Selection(context.Background(), []host.Object{dyn})
	if err != nil {
		t.Fatalf("Selection: %v", err)
	}
	if got := res.Instances["dyn"].DefinitionID; got != "variant" {
		t.Errorf("DefinitionID = %q, want variant", got)
	}
	if _, ok := res.Definitions["canonical"]; ok {
		t.Error("canonical definition unpacked for a dynamic instance")
	}
}

func TestTransformAndUnitsCarried(t *testing.T) {
	r := place("a", "D")
	r.units = xform.UnitsFeet
	r.t = xform.Translation(1, 2, 3)
	h := newFakeHost(&block{id: "D", name: "d", members: []host.Object{&atom{id: "x"}}})

	res, err := New(h).Selection(context.Background(), []host.Object{r})
	if err != nil {
		t.Fatalf("Selection: %v", err)
	}
	p := res.Instances["a"]
	if p.Units != xform.UnitsFeet {
		t.Errorf("Units = %q", p.Units)
	}
	if p.Transform != xform.ToPortable(r.t) {
		t.Errorf("Transform = %v, want %v", p.Transform, xform.ToPortable(r.t))
	}
}

func TestCycleDetected(t *testing.T) {
	tests := []struct {
		name   string
		blocks []*block
	}{
		{
			name:   "self reference",
			blocks: []*block{{id: "D", name: "d", members: []host.Object{place("self", "D")}}},
		},
		{
			name: "indirect",
			blocks: []*block{
				{id: "D", name: "d", members: []host.Object{place("toE", "E")}},
				{id: "E", name: "e", members: []host.Object{place("toD", "D")}},
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newFakeHost(tt.blocks...)
			_, err := New(h).Selection(context.Background(), []host.Object{place("root", "D")})
			if !errors.Is(err, ErrCyclicDefinition) {
				t.Errorf("err = %v, want ErrCyclicDefinition", err)
			}
		})
	}
}

func TestDepthLimit(t *testing.T) {
	h := newFakeHost(
		&block{id: "L1", name: "l1", members: []host.Object{place("i2", "L2")}},
		&block{id: "L2", name: "l2", members: []host.Object{place("i3", "L3")}},
		&block{id: "L3", name: "l3", members: []host.Object{place("i4", "L4")}},
		&block{id: "L4", name: "l4", members: []host.Object{&atom{id: "x"}}},
	)
	sel := []host.Object{place("i1", "L1")}

	if _, err := New(h, WithMaxDepth(2)).Selection(context.Background(), sel); !errors.Is(err, ErrDepthExceeded) {
		t.Errorf("err = %v, want ErrDepthExceeded", err)
	}
	if _, err := New(h, WithMaxDepth(3)).Selection(context.Background(), sel); err != nil {
		t.Errorf("limit 3: %v", err)
	}
}

func TestMissingDefinition(t *testing.T) {
	_, err := New(newFakeHost()).Selection(context.Background(), []host.Object{place("a", "ghost")})
	if !errors.Is(err, host.ErrNotFound) {
		t.Errorf("err = %v, want host.ErrNotFound", err)
	}
}

func TestCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := New(newFakeHost()).Selection(ctx, []host.Object{&atom{id: "x"}})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
}
