package convert

import (
	"context"
	"fmt"

	"github.com/chazu/instancegraph/pkg/host"
	"github.com/chazu/instancegraph/pkg/scene"
)

// SceneBaker creates received atomic objects in a scene document.
type SceneBaker struct {
	doc *scene.Document
}

// NewSceneBaker returns a baker writing into doc.
func NewSceneBaker(doc *scene.Document) *SceneBaker {
	return &SceneBaker{doc: doc}
}

// BakeAtomic adds o as a top-level primitive on the layer path. The object's
// own layer is ignored; received content lives under path.
func (b *SceneBaker) BakeAtomic(ctx context.Context, o *Object, path []string) (host.Object, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	attrs := scene.Attrs{Material: o.Material}
	if len(path) > 0 {
		attrs.Layer = append([]string(nil), path...)
	}
	if o.Color != nil {
		c := *o.Color
		attrs.Color = &c
	}

	data, err := o.Shape.Data()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", o.ApplicationID, err)
	}
	var id scene.ID
	switch d := data.(type) {
	case scene.BoardData:
		if d.Dimensions.X <= 0 || d.Dimensions.Y <= 0 || d.Dimensions.Z <= 0 {
			return nil, fmt.Errorf("convert: board %s: non-positive dimensions", o.ApplicationID)
		}
		id = b.doc.AddBoard(o.Name, d.Dimensions, attrs)
	case scene.DowelData:
		if d.Diameter <= 0 || d.Length <= 0 {
			return nil, fmt.Errorf("convert: dowel %s: non-positive size", o.ApplicationID)
		}
		id = b.doc.AddDowel(o.Name, d.Diameter, d.Length, attrs)
	}
	return b.doc.Object(id)
}
