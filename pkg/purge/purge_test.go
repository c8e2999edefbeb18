package purge

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/chazu/instancegraph/pkg/host"
	"github.com/chazu/instancegraph/pkg/xform"
)

type atom string

func (a atom) ID() string { return string(a) }

type placement struct{ id, def string }

func (p placement) ID() string                     { return p.id }
func (p placement) DefinitionID() string           { return p.def }
func (p placement) Transform() xform.HostTransform { return xform.HostIdentity() }
func (p placement) Units() string                  { return xform.UnitsNone }

type block struct{ id, name string }

func (b block) ID() string   { return b.id }
func (b block) Name() string { return b.name }

// table is a fake document that refuses to erase a definition while a live
// placement still points at it.
type table struct {
	order   []block
	members map[string][]host.Object
	live    map[string]bool
	erased  []string
}

func newTable() *table {
	return &table{members: make(map[string][]host.Object), live: make(map[string]bool)}
}

func (t *table) addDef(id, name string, members ...host.Object) {
	t.order = append(t.order, block{id: id, name: name})
	t.members[id] = members
	t.live[id] = true
	for _, m := range members {
		t.live[m.ID()] = true
	}
}

func (t *table) addTop(objs ...host.Object) {
	for _, o := range objs {
		t.live[o.ID()] = true
		t.members[""] = append(t.members[""], o)
	}
}

func (t *table) Definitions(context.Context) ([]host.Definition, error) {
	var out []host.Definition
	for _, b := range t.order {
		if t.live[b.id] {
			out = append(out, b)
		}
	}
	return out, nil
}

func (t *table) Definition(_ context.Context, id string) (host.Definition, error) {
	for _, b := range t.order {
		if b.id == id && t.live[id] {
			return b, nil
		}
	}
	return nil, host.ErrNotFound
}

func (t *table) Children(_ context.Context, def host.Definition) ([]host.Object, error) {
	if !t.live[def.ID()] {
		return nil, host.ErrNotFound
	}
	return t.members[def.ID()], nil
}

func (t *table) InstancesOf(_ context.Context, def host.Definition) ([]host.Object, error) {
	var out []host.Object
	for _, objs := range t.members {
		for _, o := range objs {
			if p, ok := o.(placement); ok && p.def == def.ID() && t.live[p.id] {
				out = append(out, p)
			}
		}
	}
	return out, nil
}

func (t *table) Erase(ctx context.Context, obj host.Object) error {
	if !t.live[obj.ID()] {
		return host.ErrNotFound
	}
	if b, ok := obj.(block); ok {
		if refs, _ := t.InstancesOf(ctx, b); len(refs) > 0 {
			return fmt.Errorf("definition %s still placed by %s", b.id, refs[0].ID())
		}
	}
	t.live[obj.ID()] = false
	t.erased = append(t.erased, obj.ID())
	return nil
}

func (t *table) liveCount() int {
	n := 0
	for _, alive := range t.live {
		if alive {
			n++
		}
	}
	return n
}

func TestByPrefixErasesBottomUp(t *testing.T) {
	tb := newTable()
	tb.addDef("d2", "inner-(D2)-Kitchen", atom("leaf"))
	tb.addDef("d1", "outer-(D1)-Kitchen", placement{id: "b", def: "d2"})
	tb.addDef("other", "shelf-(S)-Garage", atom("plank"))
	tb.addTop(placement{id: "a", def: "d1"}, placement{id: "g", def: "other"})

	rep, err := New(tb).ByPrefix(context.Background(), "Kitchen")
	if err != nil {
		t.Fatalf("ByPrefix: %v", err)
	}
	if rep.Definitions != 2 {
		t.Errorf("definitions erased = %d, want 2", rep.Definitions)
	}
	for _, id := range []string{"d1", "d2", "a", "b", "leaf"} {
		if tb.live[id] {
			t.Errorf("%s survived the purge", id)
		}
	}
	for _, id := range []string{"other", "plank", "g"} {
		if !tb.live[id] {
			t.Errorf("%s was erased but does not match the prefix", id)
		}
	}

	pos := map[string]int{}
	for i, id := range tb.erased {
		pos[id] = i
	}
	if pos["d2"] > pos["d1"] {
		t.Errorf("outer definition erased before nested one: %v", tb.erased)
	}
	if pos["b"] > pos["d2"] || pos["a"] > pos["d1"] {
		t.Errorf("definition erased before its placements: %v", tb.erased)
	}
}

func TestByPrefixIsIdempotent(t *testing.T) {
	tb := newTable()
	tb.addDef("d", "thing-(D)-Root", atom("x"))
	tb.addTop(placement{id: "i", def: "d"})

	p := New(tb)
	if _, err := p.ByPrefix(context.Background(), "Root"); err != nil {
		t.Fatalf("first purge: %v", err)
	}
	before := tb.liveCount()
	rep, err := p.ByPrefix(context.Background(), "Root")
	if err != nil {
		t.Fatalf("second purge: %v", err)
	}
	if rep.Definitions != 0 || rep.Objects != 0 {
		t.Errorf("second purge erased %+v", rep)
	}
	if tb.liveCount() != before {
		t.Error("second purge changed the document")
	}
}

func TestByPrefixSharedNestedDefinition(t *testing.T) {
	// Both outer definitions hold a placement of the same nested one.
	tb := newTable()
	tb.addDef("n", "bolt-(N)-Root", atom("shank"))
	tb.addDef("o1", "left-(O1)-Root", placement{id: "p1", def: "n"})
	tb.addDef("o2", "right-(O2)-Root", placement{id: "p2", def: "n"})

	rep, err := New(tb).ByPrefix(context.Background(), "Root")
	if err != nil {
		t.Fatalf("ByPrefix: %v", err)
	}
	if rep.Definitions != 3 {
		t.Errorf("definitions erased = %d, want 3", rep.Definitions)
	}
	if tb.liveCount() != 0 {
		t.Errorf("%d objects survived", tb.liveCount())
	}
}

type failingTable struct{ *table }

func (f failingTable) Erase(context.Context, host.Object) error { return errors.New("locked") }

func TestByPrefixPropagatesHostErrors(t *testing.T) {
	tb := newTable()
	tb.addDef("d", "x-(D)-Root", atom("m"))

	if _, err := New(failingTable{tb}).ByPrefix(context.Background(), "Root"); err == nil {
		t.Error("expected erase failure to surface")
	}
}

func TestByPrefixRejectsEmptyPrefix(t *testing.T) {
	if _, err := New(newTable()).ByPrefix(context.Background(), ""); err == nil {
		t.Error("empty prefix accepted")
	}
}

func TestMatchingUsesPredicate(t *testing.T) {
	tb := newTable()
	tb.addDef("d1", "leg-(L)-dining", atom("a"))
	tb.addDef("d2", "leg-(L)-dining-room", atom("b"))
	tb.addTop(placement{id: "p1", def: "d1"}, placement{id: "p2", def: "d2"})

	rep, err := New(tb).Matching(context.Background(), func(name string) bool {
		return strings.HasSuffix(name, ")-dining")
	})
	if err != nil {
		t.Fatal(err)
	}
	if rep.Definitions != 1 || tb.live["d1"] || tb.live["p1"] {
		t.Errorf("report %+v, live %v", rep, tb.live)
	}
	for _, id := range []string{"d2", "b", "p2"} {
		if !tb.live[id] {
			t.Errorf("%s erased by a predicate it does not satisfy", id)
		}
	}
}
