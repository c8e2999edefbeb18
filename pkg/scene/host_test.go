package scene

import (
	"context"
	"errors"
	"testing"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/chazu/instancegraph/pkg/host"
	"github.com/chazu/instancegraph/pkg/xform"
)

func TestViewsMatchKinds(t *testing.T) {
	d, top := chair(t)
	ctx := context.Background()

	obj, err := d.Object(top)
	if err != nil {
		t.Fatal(err)
	}
	inst, ok := obj.(host.Instance)
	if !ok {
		t.Fatalf("top-level chair placement is %T, not a host.Instance", obj)
	}
	if inst.DefinitionID() != string(d.MustLookup("chair").ID) {
		t.Errorf("DefinitionID = %q", inst.DefinitionID())
	}
	if inst.Units() != xform.UnitsMillimeters {
		t.Errorf("Units = %q", inst.Units())
	}

	def, err := d.Definition(ctx, inst.DefinitionID())
	if err != nil {
		t.Fatalf("Definition: %v", err)
	}
	if def.Name() != "chair" {
		t.Errorf("Name = %q", def.Name())
	}
	children, err := d.Children(ctx, def)
	if err != nil {
		t.Fatalf("Children: %v", err)
	}
	if _, isInst := children[0].(host.Instance); isInst {
		t.Error("seat board viewed as an instance")
	}
	for _, c := range children[1:] {
		if _, isInst := c.(host.Instance); !isInst {
			t.Errorf("leg placement %s viewed as %T", c.ID(), c)
		}
	}

	if _, err := d.Definition(ctx, children[0].ID()); !errors.Is(err, ErrNotDefinition) {
		t.Errorf("Definition(board) err = %v", err)
	}
}

func TestIsVisible(t *testing.T) {
	d := newTestDoc()
	b := d.AddBoard("b", r3.Vec{X: 1, Y: 1, Z: 1}, Attrs{Hidden: true})
	obj, _ := d.Object(b)
	if d.IsVisible(obj) {
		t.Error("hidden board reported visible")
	}
	if err := d.SetHidden(b, false); err != nil {
		t.Fatal(err)
	}
	if !d.IsVisible(obj) {
		t.Error("board still hidden after SetHidden(false)")
	}
}

func TestBuilderTransfersOwnership(t *testing.T) {
	d := newTestDoc()
	ctx := context.Background()
	b := d.AddBoard("b", r3.Vec{X: 1, Y: 2, Z: 3}, Attrs{})
	obj, _ := d.Object(b)

	def, err := d.CreateDefinition(ctx, "block-(app)-root", []host.Object{obj})
	if err != nil {
		t.Fatalf("CreateDefinition: %v", err)
	}
	if len(d.Roots) != 0 {
		t.Errorf("roots = %v, member not moved", d.Roots)
	}

	red := host.Color{R: 255, A: 255}
	inst, err := d.CreateInstance(ctx, def, xform.Translation(5, 0, 0), host.Attributes{
		Layer: []string{"a", "b"}, Color: &red, Material: "oak",
	})
	if err != nil {
		t.Fatalf("CreateInstance: %v", err)
	}
	n := d.NodeOf(inst)
	if n.Attrs.Material != "oak" || n.Attrs.Color == nil || *n.Attrs.Color != red || len(n.Attrs.Layer) != 2 {
		t.Errorf("attrs = %+v", n.Attrs)
	}
	if n.Data.(InstanceData).Units != d.Units() {
		t.Errorf("instance units = %q, want document units", n.Data.(InstanceData).Units)
	}

	if _, err := d.CreateDefinition(ctx, "block-(app)-root", nil); !errors.Is(err, ErrDuplicateName) {
		t.Errorf("duplicate name err = %v", err)
	}
}

func TestDefinitionTable(t *testing.T) {
	d, top := chair(t)
	ctx := context.Background()

	defs, err := d.Definitions(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(defs) != 2 || defs[0].Name() != "leg" || defs[1].Name() != "chair" {
		t.Errorf("definitions = %v", defs)
	}
	legs, err := d.InstancesOf(ctx, defs[0])
	if err != nil || len(legs) != 4 {
		t.Errorf("InstancesOf(leg) = %d, %v", len(legs), err)
	}

	topObj, _ := d.Object(top)
	if err := d.Erase(ctx, topObj); err != nil {
		t.Fatalf("Erase: %v", err)
	}
	if err := d.Erase(ctx, topObj); !errors.Is(err, host.ErrNotFound) {
		t.Errorf("second Erase err = %v, want host.ErrNotFound", err)
	}
}

func TestDynamicInstanceCountsForBothDefinitions(t *testing.T) {
	d := newTestDoc()
	a, _ := d.Define("closed", d.AddBoard("door", r3.Vec{X: 1, Y: 1, Z: 1}, Attrs{}))
	b, _ := d.Define("open", d.AddBoard("door-open", r3.Vec{X: 1, Y: 1, Z: 1}, Attrs{}))
	inst, _ := d.Place(a, xform.HostIdentity(), "", Attrs{})
	if err := d.SetEffective(inst, b); err != nil {
		t.Fatal(err)
	}

	obj, _ := d.Object(inst)
	dyn, ok := obj.(host.DynamicInstance)
	if !ok || dyn.EffectiveDefinitionID() != string(b) {
		t.Fatalf("effective definition not exposed: %T", obj)
	}
	if len(d.Placements(a)) != 1 || len(d.Placements(b)) != 1 {
		t.Error("dynamic instance not counted for both definitions")
	}
	if err := d.Remove(b); !errors.Is(err, ErrInUse) {
		t.Errorf("removing effective definition err = %v, want ErrInUse", err)
	}
}

func TestObjectsOnLayer(t *testing.T) {
	d := newTestDoc()
	ctx := context.Background()
	a := d.AddBoard("a", r3.Vec{X: 1, Y: 1, Z: 1}, Attrs{Layer: []string{"recv", "x"}})
	d.AddBoard("b", r3.Vec{X: 1, Y: 1, Z: 1}, Attrs{Layer: []string{"other"}})
	d.AddBoard("c", r3.Vec{X: 1, Y: 1, Z: 1}, Attrs{})
	nested := d.AddBoard("n", r3.Vec{X: 1, Y: 1, Z: 1}, Attrs{Layer: []string{"recv"}})
	if _, err := d.Define("blk", nested); err != nil {
		t.Fatal(err)
	}
	e := d.AddDowel("e", 1, 1, Attrs{Layer: []string{"recv"}})

	got, err := d.ObjectsOnLayer(ctx, "recv")
	if err != nil {
		t.Fatal(err)
	}
	var ids []ID
	for _, o := range got {
		ids = append(ids, ID(o.ID()))
	}
	if len(ids) != 2 || ids[0] != a || ids[1] != e {
		t.Errorf("ObjectsOnLayer = %v, want [%s %s]", ids, a, e)
	}
}
