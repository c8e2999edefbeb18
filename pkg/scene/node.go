package scene

import (
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/chazu/instancegraph/pkg/host"
	"github.com/chazu/instancegraph/pkg/xform"
)

// ID is the host identity of a scene object.
type ID string

// IsZero reports whether id is empty.
func (id ID) IsZero() bool { return id == "" }

// Short returns the first 8 characters, for messages.
func (id ID) Short() string {
	if len(id) <= 8 {
		return string(id)
	}
	return string(id[:8])
}

// Kind enumerates the types of objects in a scene.
type Kind int

const (
	KindPrimitive  Kind = iota // leaf geometry (board, dowel)
	KindInstance               // placement of a definition
	KindDefinition             // reusable block
)

func (k Kind) String() string {
	switch k {
	case KindPrimitive:
		return "primitive"
	case KindInstance:
		return "instance"
	case KindDefinition:
		return "definition"
	default:
		return "unknown"
	}
}

// Attrs are the display attributes every object carries.
type Attrs struct {
	Layer    []string    `json:"layer,omitempty"`
	Hidden   bool        `json:"hidden,omitempty"`
	Color    *host.Color `json:"color,omitempty"`
	Material string      `json:"material,omitempty"`
}

func (a Attrs) clone() Attrs {
	out := a
	if a.Layer != nil {
		out.Layer = append([]string(nil), a.Layer...)
	}
	if a.Color != nil {
		c := *a.Color
		out.Color = &c
	}
	return out
}

// Node is one object in the scene.
type Node struct {
	ID    ID       `json:"id"`
	Kind  Kind     `json:"kind"`
	Name  string   `json:"name,omitempty"`
	Owner ID       `json:"owner,omitempty"` // containing definition; zero at top level
	Attrs Attrs    `json:"attrs"`
	Data  NodeData `json:"data"`
}

func (n *Node) clone() *Node {
	c := *n
	c.Attrs = n.Attrs.clone()
	if d, ok := n.Data.(DefinitionData); ok {
		d.Members = append([]ID(nil), d.Members...)
		c.Data = d
	}
	return &c
}

// NodeData is the interface for kind-specific node payloads.
type NodeData interface {
	nodeData() // marker method restricting implementations to this package
}

// ---------------------------------------------------------------------------
// Primitives
// ---------------------------------------------------------------------------

// BoardData is a rectangular solid, dimensions in document units.
type BoardData struct {
	Dimensions r3.Vec `json:"dimensions"` // length x width x thickness
}

func (BoardData) nodeData() {}

// DowelData is a cylinder along Z.
type DowelData struct {
	Diameter float64 `json:"diameter"`
	Length   float64 `json:"length"`
}

func (DowelData) nodeData() {}

// ---------------------------------------------------------------------------
// Instancing
// ---------------------------------------------------------------------------

// InstanceData places a definition.
type InstanceData struct {
	Definition ID                  `json:"definition"`
	Effective  ID                  `json:"effective,omitempty"` // dynamic variant shown instead, if any
	Transform  xform.HostTransform `json:"transform"`
	Units      string              `json:"units"`
}

func (InstanceData) nodeData() {}

// DefinitionData lists the members a definition owns, in order.
type DefinitionData struct {
	Members []ID `json:"members"`
}

func (DefinitionData) nodeData() {}
