package convert

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync/atomic"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/errgroup"

	"github.com/chazu/instancegraph/internal/ctxlog"
	"github.com/chazu/instancegraph/pkg/host"
	"github.com/chazu/instancegraph/pkg/kernel"
	"github.com/chazu/instancegraph/pkg/scene"
	"github.com/chazu/instancegraph/pkg/tessellate"
)

// DefaultCacheSize is the number of distinct shapes kept in the geometry
// cache.
const DefaultCacheSize = 1024

// ErrNotAtomic marks objects that travel as proxies rather than as
// converted objects: instances and definitions.
var ErrNotAtomic = fmt.Errorf("convert: not an atomic object: %w", host.ErrUnsupported)

type geometry struct {
	bounds kernel.Bounds
	mesh   *kernel.Mesh
}

// Converter converts primitives of one scene document.
type Converter struct {
	doc     *scene.Document
	k       kernel.Kernel
	meshes  bool
	workers int
	size    int
	cache   *lru.Cache[string, geometry]

	hits, misses atomic.Uint64
}

// Option configures a Converter.
type Option func(*Converter)

// WithMeshes attaches a local-frame mesh to every converted object.
func WithMeshes(on bool) Option {
	return func(c *Converter) { c.meshes = on }
}

// WithWorkers bounds the parallelism of All. Zero or less means GOMAXPROCS.
func WithWorkers(n int) Option {
	return func(c *Converter) { c.workers = n }
}

// WithCacheSize sets the number of cached shapes.
func WithCacheSize(n int) Option {
	return func(c *Converter) { c.size = n }
}

// New returns a converter reading doc and building geometry with k.
func New(doc *scene.Document, k kernel.Kernel, opts ...Option) (*Converter, error) {
	c := &Converter{doc: doc, k: k, size: DefaultCacheSize}
	for _, o := range opts {
		o(c)
	}
	if c.workers <= 0 {
		c.workers = runtime.GOMAXPROCS(0)
	}
	if c.size <= 0 {
		c.size = DefaultCacheSize
	}
	cache, err := lru.New[string, geometry](c.size)
	if err != nil {
		return nil, fmt.Errorf("convert: cache: %w", err)
	}
	c.cache = cache
	return c, nil
}

// CacheStats returns geometry cache hits and misses so far.
func (c *Converter) CacheStats() (hits, misses uint64) {
	return c.hits.Load(), c.misses.Load()
}

// ConvertAtomic converts one primitive. Instances and definitions yield
// ErrNotAtomic.
func (c *Converter) ConvertAtomic(ctx context.Context, obj host.Object) (*Object, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	n := c.doc.NodeOf(obj)
	if n == nil {
		return nil, fmt.Errorf("convert: %s: %w", obj.ID(), host.ErrNotFound)
	}
	if n.Kind != scene.KindPrimitive {
		return nil, fmt.Errorf("%w: %s is a %s", ErrNotAtomic, obj.ID(), n.Kind)
	}
	shape, err := shapeOf(n.Data)
	if err != nil {
		return nil, err
	}
	geo, err := c.geometry(shape, n.Data)
	if err != nil {
		return nil, fmt.Errorf("convert: %s: %w", obj.ID(), err)
	}

	out := &Object{
		ApplicationID: string(n.ID),
		Name:          n.Name,
		Shape:         shape,
		Bounds:        geo.bounds,
		Mesh:          geo.mesh,
		Material:      n.Attrs.Material,
	}
	if n.Attrs.Layer != nil {
		out.Layer = append([]string(nil), n.Attrs.Layer...)
	}
	if n.Attrs.Color != nil {
		col := *n.Attrs.Color
		out.Color = &col
	}
	return out, nil
}

func (c *Converter) geometry(shape Shape, data scene.NodeData) (geometry, error) {
	key := shape.key()
	if g, ok := c.cache.Get(key); ok && (g.mesh != nil || !c.meshes) {
		c.hits.Add(1)
		return g, nil
	}
	c.misses.Add(1)

	solid, err := tessellate.Solid(c.k, data)
	if err != nil {
		return geometry{}, err
	}
	g := geometry{bounds: solid.Bounds()}
	if c.meshes {
		if g.mesh, err = c.k.ToMesh(solid); err != nil {
			return geometry{}, err
		}
	}
	c.cache.Add(key, g)
	return g, nil
}

// All converts objs with bounded parallelism. Objects that are not atomic
// are returned in skipped; any other failure aborts the batch. Converted
// objects keep the order of objs.
func (c *Converter) All(ctx context.Context, objs []host.Object) (converted []*Object, skipped []string, err error) {
	results := make([]*Object, len(objs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.workers)
	for i, obj := range objs {
		g.Go(func() error {
			o, err := c.ConvertAtomic(gctx, obj)
			if errors.Is(err, ErrNotAtomic) {
				return nil
			}
			if err != nil {
				return err
			}
			results[i] = o
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}

	for i, o := range results {
		if o == nil {
			skipped = append(skipped, objs[i].ID())
			continue
		}
		converted = append(converted, o)
	}
	hits, misses := c.CacheStats()
	ctxlog.FromContext(ctx).Debug("converted atomics",
		"converted", len(converted), "skipped", len(skipped), "cacheHits", hits, "cacheMisses", misses)
	return converted, skipped, nil
}
