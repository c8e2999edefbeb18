package proxy

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
)

type stubObject string

func (s stubObject) ID() string { return string(s) }

func TestRaiseNeverLowers(t *testing.T) {
	p := &InstanceProxy{ApplicationID: "i", MaxDepth: 3}
	p.Raise(1)
	if p.MaxDepth != 3 {
		t.Errorf("Raise(1) lowered depth to %d", p.MaxDepth)
	}
	p.Raise(5)
	if p.MaxDepth != 5 {
		t.Errorf("Raise(5) = %d, want 5", p.MaxDepth)
	}
	p.Shift(-2)
	if p.MaxDepth != 5 {
		t.Errorf("Shift(-2) changed depth to %d", p.MaxDepth)
	}
	p.Shift(2)
	if p.MaxDepth != 7 {
		t.Errorf("Shift(2) = %d, want 7", p.MaxDepth)
	}
}

func TestUpsertInstanceKeepsDeepest(t *testing.T) {
	r := NewUnpackResult()
	first := r.UpsertInstance(&InstanceProxy{ApplicationID: "a", MaxDepth: 2})
	second := r.UpsertInstance(&InstanceProxy{ApplicationID: "a", MaxDepth: 1})
	if first != second {
		t.Fatal("upsert returned a different proxy for the same id")
	}
	if first.MaxDepth != 2 {
		t.Errorf("MaxDepth = %d, want 2", first.MaxDepth)
	}
	r.UpsertInstance(&InstanceProxy{ApplicationID: "a", MaxDepth: 4})
	if first.MaxDepth != 4 {
		t.Errorf("MaxDepth = %d, want 4", first.MaxDepth)
	}
	if len(r.InstanceList()) != 1 {
		t.Errorf("InstanceList len = %d, want 1", len(r.InstanceList()))
	}
}

func TestShareRaisesSiblings(t *testing.T) {
	r := NewUnpackResult()
	a := r.UpsertInstance(&InstanceProxy{ApplicationID: "a", DefinitionID: "d", MaxDepth: 0})
	r.Share("d", a, 0)
	b := r.UpsertInstance(&InstanceProxy{ApplicationID: "b", DefinitionID: "d", MaxDepth: 2})
	r.Share("d", b, 2)
	r.Share("d", b, 2) // appended once

	if a.MaxDepth != 2 {
		t.Errorf("sibling depth = %d, want 2", a.MaxDepth)
	}
	if got := len(r.InstancesByDefinition["d"]); got != 2 {
		t.Errorf("shared list len = %d, want 2", got)
	}
}

func TestDiscoveryOrder(t *testing.T) {
	r := NewUnpackResult()
	for _, id := range []string{"z", "a", "m", "a"} {
		r.AddAtomic(stubObject(id))
	}
	var got []string
	for _, ref := range r.AtomicList() {
		got = append(got, ref.ApplicationID)
	}
	if diff := cmp.Diff([]string{"z", "a", "m"}, got); diff != "" {
		t.Errorf("AtomicList order (-want +got):\n%s", diff)
	}
}

func TestFreezePanicsOnWrite(t *testing.T) {
	r := NewUnpackResult()
	r.Freeze()
	if !r.Frozen() {
		t.Fatal("Frozen() = false after Freeze")
	}
	defer func() {
		if recover() == nil {
			t.Error("AddAtomic after Freeze did not panic")
		}
	}()
	r.AddAtomic(stubObject("x"))
}

func TestAddDefinitionDuplicatePanics(t *testing.T) {
	r := NewUnpackResult()
	r.AddDefinition(&InstanceDefinitionProxy{ApplicationID: "d"})
	defer func() {
		if recover() == nil {
			t.Error("duplicate AddDefinition did not panic")
		}
	}()
	r.AddDefinition(&InstanceDefinitionProxy{ApplicationID: "d"})
}

func TestComponentsAndKind(t *testing.T) {
	r := NewUnpackResult()
	r.AddDefinition(&InstanceDefinitionProxy{ApplicationID: "d", MaxDepth: 1})
	r.UpsertInstance(&InstanceProxy{ApplicationID: "i", DefinitionID: "d"})

	comps := r.Components([]string{"root"})
	if len(comps) != 2 {
		t.Fatalf("Components len = %d, want 2", len(comps))
	}
	if Kind(comps[0].Component) != "definition" || Kind(comps[1].Component) != "instance" {
		t.Errorf("kinds = %s, %s", Kind(comps[0].Component), Kind(comps[1].Component))
	}
	if comps[0].Component.Depth() != 1 || comps[0].Component.ID() != "d" {
		t.Errorf("definition component = %s@%d", comps[0].Component.ID(), comps[0].Component.Depth())
	}
	if Kind(nil) != "unknown" {
		t.Errorf("Kind(nil) = %q", Kind(nil))
	}
}

func TestBakeResultErr(t *testing.T) {
	tests := []struct {
		name     string
		statuses []Status
		want     error
	}{
		{"empty", nil, nil},
		{"all success", []Status{StatusSuccess, StatusSuccess}, nil},
		{"one success among errors", []Status{StatusError, StatusSuccess, StatusError}, nil},
		{"warning counts as success", []Status{StatusWarning, StatusError}, nil},
		{"all errors", []Status{StatusError, StatusError}, ErrBatchFailed},
		{"errors and skips", []Status{StatusError, StatusSkipped}, ErrBatchFailed},
		{"all skipped", []Status{StatusSkipped, StatusSkipped}, ErrAllSkipped},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewBakeResult()
			for i, s := range tt.statuses {
				r.Record(Outcome{ApplicationID: string(rune('a' + i)), Status: s})
			}
			if err := r.Err(); !errors.Is(err, tt.want) {
				t.Errorf("Err() = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestBakeResultTopLevel(t *testing.T) {
	r := NewBakeResult()
	r.Record(Outcome{ApplicationID: "a", Status: StatusSuccess, HostID: "h1"})
	r.Record(Outcome{ApplicationID: "b", Status: StatusSuccess, HostID: "h2"})
	r.Record(Outcome{ApplicationID: "c", Status: StatusError, HostID: "h3"})
	r.Consume("h1")

	if diff := cmp.Diff([]string{"h2"}, r.TopLevel()); diff != "" {
		t.Errorf("TopLevel (-want +got):\n%s", diff)
	}
	if r.AppToHost["b"] != "h2" {
		t.Errorf("AppToHost[b] = %q", r.AppToHost["b"])
	}
	if _, ok := r.AppToHost["c"]; ok {
		t.Error("failed item recorded in AppToHost")
	}
}

func TestItemErrorUnwrap(t *testing.T) {
	base := errors.New("boom")
	err := error(&ItemError{ApplicationID: "x", Kind: "instance", Err: base})
	if !errors.Is(err, base) {
		t.Error("ItemError does not unwrap to its cause")
	}
	if err.Error() != "instance x: boom" {
		t.Errorf("Error() = %q", err.Error())
	}
}
