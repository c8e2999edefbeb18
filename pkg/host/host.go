// Package host declares the narrow collaborator interfaces through which the
// flattening and baking engine talks to a host application. Adapters for a
// concrete host (see pkg/scene for the in-memory reference host) implement
// them; the engine never calls host APIs directly.
package host

import (
	"context"
	"errors"

	"github.com/chazu/instancegraph/pkg/xform"
)

// ErrNotFound is returned when a host object or definition does not exist
// (or has already been erased).
var ErrNotFound = errors.New("host: object not found")

// ErrUnsupported is returned by converters and bakers for content they
// cannot represent.
var ErrUnsupported = errors.New("host: unsupported object")

// Object is an opaque reference to a host scene object.
type Object interface {
	// ID returns the stable host identity of the object.
	ID() string
}

// Instance is a host object that places a definition.
type Instance interface {
	Object
	DefinitionID() string
	Transform() xform.HostTransform
	// Units names the unit system the transform is expressed in. Linked or
	// external definitions may differ from the document's units.
	Units() string
}

// DynamicInstance is implemented by instances whose displayed definition can
// differ from the canonical one (parametric or dynamic blocks). A non-empty
// effective id takes precedence over DefinitionID.
type DynamicInstance interface {
	Instance
	EffectiveDefinitionID() string
}

// Definition is a reusable block/family/component definition.
type Definition interface {
	Object
	Name() string
}

// Traverser exposes the read primitives used while unpacking.
type Traverser interface {
	Definition(ctx context.Context, id string) (Definition, error)
	Children(ctx context.Context, def Definition) ([]Object, error)
	IsVisible(obj Object) bool
}

// Color is an RGBA colour override.
type Color struct {
	R, G, B, A uint8
}

// Attributes decorate an instance created during baking.
type Attributes struct {
	Layer    []string
	Color    *Color
	Material string
}

// Builder creates host definitions and instances.
type Builder interface {
	// CreateDefinition builds a named definition and moves ownership of the
	// members into it.
	CreateDefinition(ctx context.Context, name string, members []Object) (Definition, error)
	CreateInstance(ctx context.Context, def Definition, transform xform.HostTransform, attrs Attributes) (Object, error)
	// Units returns the document units targets are expressed in.
	Units() string
}

// Eraser removes a host object. Erasing an object that no longer exists
// returns ErrNotFound.
type Eraser interface {
	Erase(ctx context.Context, obj Object) error
}

// DefinitionTable is the view of a document the purge manager needs.
type DefinitionTable interface {
	Eraser
	Definitions(ctx context.Context) ([]Definition, error)
	Definition(ctx context.Context, id string) (Definition, error)
	Children(ctx context.Context, def Definition) ([]Object, error)
	// InstancesOf returns every live placement of def, top level or nested.
	InstancesOf(ctx context.Context, def Definition) ([]Object, error)
}

// Decorator resolves optional per-instance overrides by application id.
type Decorator interface {
	ColorOverride(applicationID string) (Color, bool)
	MaterialOverride(applicationID string) (string, bool)
}

// Transactor runs fn inside one logical host transaction: if fn returns an
// error nothing fn created survives.
type Transactor interface {
	Transaction(ctx context.Context, fn func(ctx context.Context) error) error
}

// LayerIndex finds top-level objects by layer. A receive clears the objects
// a previous receive left on its root layer.
type LayerIndex interface {
	// ObjectsOnLayer returns top-level objects whose layer path begins with
	// root.
	ObjectsOnLayer(ctx context.Context, root string) ([]Object, error)
}
