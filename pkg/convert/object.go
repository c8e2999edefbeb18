// Package convert turns atomic scene objects into their portable form and
// back. Conversion runs in parallel and caches computed geometry by shape.
package convert

import (
	"fmt"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/chazu/instancegraph/pkg/host"
	"github.com/chazu/instancegraph/pkg/kernel"
	"github.com/chazu/instancegraph/pkg/scene"
	"github.com/chazu/instancegraph/pkg/xform"
)

// Shape types.
const (
	ShapeBoard = "board"
	ShapeDowel = "dowel"
)

// Shape is the parametric description of a primitive.
type Shape struct {
	Type       string  `json:"type" msgpack:"type"`
	Dimensions r3.Vec  `json:"dimensions,omitempty" msgpack:"dimensions,omitempty"`
	Diameter   float64 `json:"diameter,omitempty" msgpack:"diameter,omitempty"`
	Length     float64 `json:"length,omitempty" msgpack:"length,omitempty"`
}

// key identifies geometrically identical shapes.
func (s Shape) key() string {
	return fmt.Sprintf("%s/%g/%g/%g/%g/%g", s.Type, s.Dimensions.X, s.Dimensions.Y, s.Dimensions.Z, s.Diameter, s.Length)
}

// Data returns the scene primitive the shape describes.
func (s Shape) Data() (scene.NodeData, error) {
	switch s.Type {
	case ShapeBoard:
		return scene.BoardData{Dimensions: s.Dimensions}, nil
	case ShapeDowel:
		return scene.DowelData{Diameter: s.Diameter, Length: s.Length}, nil
	}
	return nil, fmt.Errorf("convert: shape %q: %w", s.Type, host.ErrUnsupported)
}

func shapeOf(data scene.NodeData) (Shape, error) {
	switch d := data.(type) {
	case scene.BoardData:
		return Shape{Type: ShapeBoard, Dimensions: d.Dimensions}, nil
	case scene.DowelData:
		return Shape{Type: ShapeDowel, Diameter: d.Diameter, Length: d.Length}, nil
	}
	return Shape{}, fmt.Errorf("convert: %T: %w", data, host.ErrUnsupported)
}

// Object is the portable form of one atomic object. Bounds and Mesh are in
// the object's local frame.
type Object struct {
	ApplicationID string        `json:"applicationId" msgpack:"applicationId"`
	Name          string        `json:"name,omitempty" msgpack:"name,omitempty"`
	Shape         Shape         `json:"shape" msgpack:"shape"`
	Bounds        kernel.Bounds `json:"bounds" msgpack:"bounds"`
	Mesh          *kernel.Mesh  `json:"mesh,omitempty" msgpack:"mesh,omitempty"`
	Layer         []string      `json:"layer,omitempty" msgpack:"layer,omitempty"`
	Color         *host.Color   `json:"color,omitempty" msgpack:"color,omitempty"`
	Material      string        `json:"material,omitempty" msgpack:"material,omitempty"`
}

// Scaled returns a copy of o with its geometry scaled by f, for a receiving
// document in other units.
func (o *Object) Scaled(f float64) *Object {
	c := *o
	c.Shape.Dimensions = r3.Scale(f, o.Shape.Dimensions)
	c.Shape.Diameter *= f
	c.Shape.Length *= f
	c.Bounds = kernel.Bounds{Min: r3.Scale(f, o.Bounds.Min), Max: r3.Scale(f, o.Bounds.Max)}
	if o.Mesh != nil {
		m := xform.Identity()
		m.Set(0, 0, f)
		m.Set(1, 1, f)
		m.Set(2, 2, f)
		c.Mesh = o.Mesh.Transform(m)
	}
	if o.Layer != nil {
		c.Layer = append([]string(nil), o.Layer...)
	}
	return &c
}
