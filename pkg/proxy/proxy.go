package proxy

import (
	"github.com/chazu/instancegraph/pkg/host"
	"github.com/chazu/instancegraph/pkg/xform"
)

// AtomicObjectRef records a leaf object found during unpacking.
type AtomicObjectRef struct {
	ApplicationID string      `json:"applicationId" msgpack:"applicationId"`
	Object        host.Object `json:"-" msgpack:"-"`
}

// InstanceProxy is one placement of a definition.
type InstanceProxy struct {
	ApplicationID string          `json:"applicationId" msgpack:"applicationId"`
	DefinitionID  string          `json:"definitionId" msgpack:"definitionId"`
	Transform     xform.Matrix4x4 `json:"transform" msgpack:"transform"`
	Units         string          `json:"units" msgpack:"units"`
	MaxDepth      int             `json:"maxDepth" msgpack:"maxDepth"`
}

// Raise lifts MaxDepth to depth if depth is deeper. It never lowers it.
func (p *InstanceProxy) Raise(depth int) {
	if depth > p.MaxDepth {
		p.MaxDepth = depth
	}
}

// Shift adds a positive delta to MaxDepth. Non-positive deltas are ignored.
func (p *InstanceProxy) Shift(delta int) {
	if delta > 0 {
		p.MaxDepth += delta
	}
}

// InstanceDefinitionProxy is a reusable definition and the ids of its
// members, in host order. Members are atomic object ids or nested instance
// ids.
type InstanceDefinitionProxy struct {
	ApplicationID string   `json:"applicationId" msgpack:"applicationId"`
	Name          string   `json:"name" msgpack:"name"`
	Objects       []string `json:"objects" msgpack:"objects"`
	MaxDepth      int      `json:"maxDepth" msgpack:"maxDepth"`
}

// Raise lifts MaxDepth to depth if depth is deeper.
func (d *InstanceDefinitionProxy) Raise(depth int) {
	if depth > d.MaxDepth {
		d.MaxDepth = depth
	}
}

// Shift adds a positive delta to MaxDepth.
func (d *InstanceDefinitionProxy) Shift(delta int) {
	if delta > 0 {
		d.MaxDepth += delta
	}
}
