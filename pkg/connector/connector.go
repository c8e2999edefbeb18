// Package connector runs whole send and receive operations: it ties the
// unpacker, atomic conversion, payload codecs, the store, purge and the bake
// scheduler together.
package connector

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/chazu/instancegraph/internal/ctxlog"
	"github.com/chazu/instancegraph/pkg/bake"
	"github.com/chazu/instancegraph/pkg/convert"
	"github.com/chazu/instancegraph/pkg/host"
	"github.com/chazu/instancegraph/pkg/payload"
	"github.com/chazu/instancegraph/pkg/proxy"
	"github.com/chazu/instancegraph/pkg/purge"
	"github.com/chazu/instancegraph/pkg/store"
	"github.com/chazu/instancegraph/pkg/unpack"
	"github.com/chazu/instancegraph/pkg/xform"
)

// AtomicConverter turns one host atomic object into its portable form.
// Objects carried by proxies (instances, definitions) yield an error
// wrapping host.ErrUnsupported.
type AtomicConverter interface {
	ConvertAtomic(ctx context.Context, obj host.Object) (*convert.Object, error)
}

// AtomicBaker creates a received atomic object on the layer path.
type AtomicBaker interface {
	BakeAtomic(ctx context.Context, o *convert.Object, path []string) (host.Object, error)
}

// batchConverter is implemented by converters that convert in parallel.
type batchConverter interface {
	All(ctx context.Context, objs []host.Object) ([]*convert.Object, []string, error)
}

// Source is the host a send reads from.
type Source interface {
	host.Traverser
	Units() string
}

// Target is the host a receive writes to.
type Target interface {
	host.Builder
	host.DefinitionTable
	host.Transactor
	host.LayerIndex
}

// Connector moves selections between hosts through a store.
type Connector struct {
	store     store.Store
	codec     payload.Codec
	metrics   *Metrics
	maxDepth  int
	decorator host.Decorator
}

// Option configures a Connector.
type Option func(*Connector)

// WithCodec sets the codec payloads are written with. Reads detect the codec.
func WithCodec(c payload.Codec) Option {
	return func(cn *Connector) { cn.codec = c }
}

// WithMetrics records operations in m.
func WithMetrics(m *Metrics) Option {
	return func(cn *Connector) { cn.metrics = m }
}

// WithMaxDepth bounds unpack nesting.
func WithMaxDepth(n int) Option {
	return func(cn *Connector) { cn.maxDepth = n }
}

// WithDecorator supplies colour and material overrides for baked instances.
func WithDecorator(d host.Decorator) Option {
	return func(cn *Connector) { cn.decorator = d }
}

// New returns a connector over s.
func New(s store.Store, opts ...Option) *Connector {
	c := &Connector{store: s, codec: payload.JSON{}, maxDepth: unpack.DefaultMaxDepth}
	for _, o := range opts {
		o(c)
	}
	return c
}

// SendReport describes a finished send.
type SendReport struct {
	Key     string
	Info    store.Info
	Stats   payload.Stats
	Skipped []string // atomic ids carried by proxies instead of as objects
}

// Send flattens objects, converts the atomic ones and stores the payload
// under rootName, replacing any earlier send of the same root.
func (c *Connector) Send(ctx context.Context, src Source, conv AtomicConverter, objects []host.Object, rootName string) (rep SendReport, err error) {
	start := time.Now()
	defer func() { c.metrics.observe("send", start, err) }()
	logger := ctxlog.FromContext(ctx).With("op", "send", "root", rootName)
	ctx = ctxlog.WithLogger(ctx, logger)

	if err := store.ValidateKey(rootName); err != nil {
		return rep, fmt.Errorf("connector: root name: %w", err)
	}

	res, err := unpack.New(src, unpack.WithMaxDepth(c.maxDepth)).Selection(ctx, objects)
	if err != nil {
		return rep, err
	}
	atomics := make([]host.Object, 0, len(res.Atomics))
	for _, a := range res.AtomicList() {
		atomics = append(atomics, a.Object)
	}
	converted, skipped, err := convertAll(ctx, conv, atomics)
	if err != nil {
		return rep, err
	}

	p := payload.New(rootName, src.Units(), res, converted)
	data, err := c.codec.Marshal(p)
	if err != nil {
		return rep, err
	}
	info, err := c.store.Put(ctx, rootName, data, c.codec.ContentType())
	if err != nil {
		return rep, err
	}
	c.metrics.payloadBytes("send", len(data))

	rep = SendReport{Key: rootName, Info: info, Stats: p.Stats(), Skipped: skipped}
	logger.Info("sent",
		"objects", rep.Stats.Objects,
		"instances", rep.Stats.Instances,
		"definitions", rep.Stats.Definitions,
		"bytes", len(data),
		"codec", c.codec.Name())
	return rep, nil
}

func convertAll(ctx context.Context, conv AtomicConverter, objs []host.Object) ([]*convert.Object, []string, error) {
	if bc, ok := conv.(batchConverter); ok {
		return bc.All(ctx, objs)
	}
	var (
		out     []*convert.Object
		skipped []string
	)
	for _, obj := range objs {
		o, err := conv.ConvertAtomic(ctx, obj)
		if errors.Is(err, host.ErrUnsupported) {
			skipped = append(skipped, obj.ID())
			continue
		}
		if err != nil {
			return nil, nil, err
		}
		out = append(out, o)
	}
	return out, skipped, nil
}

// ReceiveReport describes a finished receive.
type ReceiveReport struct {
	Key      string
	BaseName string
	Purge    purge.Report
	Cleared  int // loose objects erased from the base layer
	Result   *proxy.BakeResult
}

// Load fetches and decodes the payload stored under key.
func (c *Connector) Load(ctx context.Context, key string) (*payload.Payload, int, error) {
	data, _, err := c.store.Get(ctx, key)
	if err != nil {
		return nil, 0, err
	}
	p, err := payload.Detect(data).Unmarshal(data)
	if err != nil {
		return nil, len(data), fmt.Errorf("connector: %s: %w", key, err)
	}
	return p, len(data), nil
}

// Receive loads the payload under key and rebuilds it in dst under the
// payload's root name, replacing what an earlier receive of that root
// created. Everything happens in one dst transaction: if the batch fails
// as a whole, dst is left as it was.
func (c *Connector) Receive(ctx context.Context, dst Target, baker AtomicBaker, key string) (rep ReceiveReport, err error) {
	start := time.Now()
	defer func() { c.metrics.observe("receive", start, err) }()

	p, n, err := c.Load(ctx, key)
	if err != nil {
		return ReceiveReport{Key: key}, err
	}
	c.metrics.payloadBytes("receive", n)
	return c.Apply(ctx, dst, baker, key, p)
}

// Apply bakes an already decoded payload into dst. See Receive.
func (c *Connector) Apply(ctx context.Context, dst Target, baker AtomicBaker, key string, p *payload.Payload) (ReceiveReport, error) {
	rep := ReceiveReport{Key: key, BaseName: p.RootName}
	if err := p.Validate(); err != nil {
		return rep, err
	}
	logger := ctxlog.FromContext(ctx).With("op", "receive", "root", p.RootName)
	ctx = ctxlog.WithLogger(ctx, logger)
	path := []string{p.RootName}

	err := dst.Transaction(ctx, func(ctx context.Context) error {
		var err error
		rep.Purge, err = purge.New(dst).Matching(ctx, func(name string) bool {
			return bake.BakedUnder(name, p.RootName)
		})
		if err != nil {
			return err
		}
		if rep.Cleared, err = clearLayer(ctx, dst, p.RootName); err != nil {
			return err
		}

		objs, err := inUnits(p, dst.Units())
		if err != nil {
			return err
		}
		result, atomics, err := bakeAtomics(ctx, baker, objs, path)
		if err != nil {
			return err
		}
		opts := []bake.Option{}
		if c.decorator != nil {
			opts = append(opts, bake.WithDecorator(c.decorator))
		}
		instances, err := bake.New(dst, opts...).Instances(ctx, p.Components(path), atomics, p.RootName)
		result.Merge(instances)
		rep.Result = result
		if err != nil && !errors.Is(err, proxy.ErrBatchFailed) && !errors.Is(err, proxy.ErrAllSkipped) {
			return err
		}
		return result.Err()
	})
	c.metrics.purge(rep.Purge.Definitions)
	c.metrics.bake(rep.Result)
	if err != nil {
		logger.Warn("receive rolled back", "error", err)
		return rep, err
	}

	logger.Info("received",
		"purged", rep.Purge.Definitions,
		"cleared", rep.Cleared,
		"succeeded", rep.Result.Count(proxy.StatusSuccess),
		"warned", rep.Result.Count(proxy.StatusWarning),
		"failed", rep.Result.Count(proxy.StatusError),
		"top_level", len(rep.Result.TopLevel()))
	return rep, nil
}

// inUnits scales the payload's objects into the target document's units.
func inUnits(p *payload.Payload, target string) ([]*convert.Object, error) {
	f, err := xform.UnitScale(p.Units, target)
	if err != nil {
		return nil, fmt.Errorf("connector: %w", err)
	}
	if f == 1 {
		return p.Objects, nil
	}
	out := make([]*convert.Object, len(p.Objects))
	for i, o := range p.Objects {
		out[i] = o.Scaled(f)
	}
	return out, nil
}

func clearLayer(ctx context.Context, dst Target, root string) (int, error) {
	objs, err := dst.ObjectsOnLayer(ctx, root)
	if err != nil {
		return 0, fmt.Errorf("connector: objects on layer %s: %w", root, err)
	}
	n := 0
	for _, o := range objs {
		err := dst.Erase(ctx, o)
		if errors.Is(err, host.ErrNotFound) {
			continue
		}
		if err != nil {
			return n, fmt.Errorf("connector: clear %s: %w", o.ID(), err)
		}
		n++
	}
	return n, nil
}

// bakeAtomics creates every converted object and indexes the results by
// application id for the instance bake.
func bakeAtomics(ctx context.Context, baker AtomicBaker, objs []*convert.Object, path []string) (*proxy.BakeResult, map[string]host.Object, error) {
	const kind = "atomic"
	logger := ctxlog.FromContext(ctx)
	result := proxy.NewBakeResult()
	atomics := make(map[string]host.Object, len(objs))
	for _, o := range objs {
		if err := ctx.Err(); err != nil {
			return result, nil, err
		}
		obj, err := baker.BakeAtomic(ctx, o, path)
		out := proxy.Outcome{ApplicationID: o.ApplicationID, Kind: kind}
		switch {
		case errors.Is(err, host.ErrUnsupported):
			out.Status = proxy.StatusSkipped
			out.Err = &proxy.ItemError{ApplicationID: o.ApplicationID, Kind: kind, Err: err}
		case err != nil:
			out.Status = proxy.StatusError
			out.Err = &proxy.ItemError{ApplicationID: o.ApplicationID, Kind: kind, Err: err}
			logger.Warn("atomic failed", "id", o.ApplicationID, "err", err)
		default:
			out.Status = proxy.StatusSuccess
			out.HostID = obj.ID()
			atomics[o.ApplicationID] = obj
		}
		result.Record(out)
	}
	return result, atomics, nil
}
