package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"

	"github.com/dustin/go-humanize"

	"github.com/chazu/instancegraph/pkg/connector"
	"github.com/chazu/instancegraph/pkg/convert"
	"github.com/chazu/instancegraph/pkg/payload"
	"github.com/chazu/instancegraph/pkg/proxy"
	"github.com/chazu/instancegraph/pkg/purge"
	"github.com/chazu/instancegraph/pkg/scene"
	"github.com/chazu/instancegraph/pkg/store"
)

func (a *App) connector(s store.Store, opts ...connector.Option) *connector.Connector {
	return connector.New(s, append([]connector.Option{connector.WithMaxDepth(a.cfg.MaxDepth)}, opts...)...)
}

func parse(fs *flag.FlagSet, args []string) error {
	if err := fs.Parse(args); err != nil {
		return usageErrorf("%v", err)
	}
	return nil
}

// ---------------------------------------------------------------------------
// send
// ---------------------------------------------------------------------------

func cmdSend(ctx context.Context, a *App, args []string, out io.Writer) error {
	fs := subcommand("send")
	root := fs.String("root", a.cfg.RootName, "root `name` to store under (default: script base name)")
	codecName := fs.String("codec", a.cfg.Codec, "payload codec: json or msgpack")
	if err := parse(fs, args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return usageErrorf("send [-root name] [-codec json|msgpack] <scene.lisp>")
	}
	path := fs.Arg(0)
	if *root == "" {
		*root = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	codec, err := payload.CodecByName(*codecName)
	if err != nil {
		return usageErrorf("%v", err)
	}

	doc, err := a.LoadScene(path)
	if err != nil {
		return err
	}
	conv, err := convert.New(doc, a.kernel,
		convert.WithMeshes(a.cfg.Convert.Mesh),
		convert.WithWorkers(a.cfg.Convert.Workers),
		convert.WithCacheSize(a.cfg.Convert.CacheSize))
	if err != nil {
		return err
	}
	s, err := openStore(ctx, a.cfg.Store)
	if err != nil {
		return err
	}
	defer s.Close()

	rep, err := a.connector(s, connector.WithCodec(codec)).Send(ctx, doc, conv, doc.Objects(), *root)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "sent %s: %d objects, %d instances, %d definitions, depth %d (%s, %s)\n",
		rep.Key, rep.Stats.Objects, rep.Stats.Instances, rep.Stats.Definitions, rep.Stats.MaxDepth,
		codec.Name(), humanize.Bytes(uint64(rep.Info.Size)))
	return nil
}

// ---------------------------------------------------------------------------
// receive
// ---------------------------------------------------------------------------

func cmdReceive(ctx context.Context, a *App, args []string, out io.Writer) error {
	fs := subcommand("receive")
	onto := fs.String("onto", "", "scene `script` to receive into (default: an empty document)")
	meshOut := fs.String("mesh", "", "write the resulting scene as JSON meshes to `file` (- for stdout)")
	overridesPath := fs.String("overrides", "", "YAML `file` of per-object colour and material overrides")
	if err := parse(fs, args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return usageErrorf("receive [-onto scene.lisp] [-mesh out.json] [-overrides file.yaml] <key>")
	}
	key := fs.Arg(0)

	var opts []connector.Option
	if *overridesPath != "" {
		ov, err := loadOverrides(*overridesPath)
		if err != nil {
			return err
		}
		opts = append(opts, connector.WithDecorator(ov))
	}

	doc := scene.New(scene.WithUnits(a.cfg.TargetUnits))
	if *onto != "" {
		var err error
		if doc, err = a.LoadScene(*onto); err != nil {
			return err
		}
	}
	s, err := openStore(ctx, a.cfg.Store)
	if err != nil {
		return err
	}
	defer s.Close()

	rep, err := a.connector(s, opts...).Receive(ctx, doc, convert.NewSceneBaker(doc), key)
	if rep.Result != nil {
		printReceive(out, rep)
	}
	if err != nil {
		return err
	}

	if *meshOut != "" {
		meshes, err := a.meshes(ctx, doc)
		if err != nil {
			return err
		}
		return writeJSON(*meshOut, out, meshes)
	}
	return nil
}

func printReceive(out io.Writer, rep connector.ReceiveReport) {
	r := rep.Result
	fmt.Fprintf(out, "received %s as %q: purged %d definitions, cleared %d objects\n",
		rep.Key, rep.BaseName, rep.Purge.Definitions, rep.Cleared)
	fmt.Fprintf(out, "  %d baked, %d warnings, %d failed, %d skipped, %d top-level objects\n",
		r.Count(proxy.StatusSuccess), r.Count(proxy.StatusWarning), r.Count(proxy.StatusError),
		r.Count(proxy.StatusSkipped), len(r.TopLevel()))
	for _, o := range r.Outcomes {
		if o.Status == proxy.StatusWarning || o.Status == proxy.StatusError {
			fmt.Fprintf(out, "  %s %s %s: %v\n", o.Status, o.Kind, o.ApplicationID, o.Err)
		}
	}
}

// ---------------------------------------------------------------------------
// purge
// ---------------------------------------------------------------------------

func cmdPurge(ctx context.Context, a *App, args []string, out io.Writer) error {
	fs := subcommand("purge")
	if err := parse(fs, args); err != nil {
		return err
	}
	if fs.NArg() != 2 {
		return usageErrorf("purge <scene.lisp> <prefix>")
	}
	doc, err := a.LoadScene(fs.Arg(0))
	if err != nil {
		return err
	}
	before := doc.NodeCount()
	rep, err := purge.New(doc).ByPrefix(ctx, fs.Arg(1))
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "purged %d definitions and %d objects (%d already gone); %d of %d objects remain\n",
		rep.Definitions, rep.Objects, rep.Missing, doc.NodeCount(), before)
	return nil
}

// ---------------------------------------------------------------------------
// inspect
// ---------------------------------------------------------------------------

func cmdInspect(ctx context.Context, a *App, args []string, out io.Writer) error {
	fs := subcommand("inspect")
	verbose := fs.Bool("v", false, "list definitions and instances")
	if err := parse(fs, args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return usageErrorf("inspect [-v] <key>")
	}
	s, err := openStore(ctx, a.cfg.Store)
	if err != nil {
		return err
	}
	defer s.Close()

	data, info, err := s.Get(ctx, fs.Arg(0))
	if err != nil {
		return err
	}
	codec := payload.Detect(data)
	p, err := codec.Unmarshal(data)
	if err != nil {
		return err
	}
	st := p.Stats()

	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "key\t%s\n", info.Key)
	fmt.Fprintf(tw, "root\t%s\n", p.RootName)
	fmt.Fprintf(tw, "units\t%s\n", p.Units)
	fmt.Fprintf(tw, "codec\t%s\n", codec.Name())
	fmt.Fprintf(tw, "size\t%s\n", humanize.Bytes(uint64(info.Size)))
	if !info.UpdatedAt.IsZero() {
		fmt.Fprintf(tw, "updated\t%s\n", humanize.Time(info.UpdatedAt))
	}
	fmt.Fprintf(tw, "atomics\t%s\n", humanize.Comma(int64(st.Atomics)))
	fmt.Fprintf(tw, "objects\t%s\n", humanize.Comma(int64(st.Objects)))
	fmt.Fprintf(tw, "instances\t%s\n", humanize.Comma(int64(st.Instances)))
	fmt.Fprintf(tw, "definitions\t%s\n", humanize.Comma(int64(st.Definitions)))
	fmt.Fprintf(tw, "max depth\t%d\n", st.MaxDepth)
	if *verbose {
		fmt.Fprintln(tw)
		for _, d := range p.DefinitionProxies {
			fmt.Fprintf(tw, "definition\t%s\t%d members\tdepth %d\n", d.Name, len(d.Objects), d.MaxDepth)
		}
		for _, in := range p.InstanceProxies {
			fmt.Fprintf(tw, "instance\t%s\tof %s\tdepth %d\n", in.ApplicationID, in.DefinitionID, in.MaxDepth)
		}
	}
	return tw.Flush()
}

// ---------------------------------------------------------------------------
// list
// ---------------------------------------------------------------------------

func cmdList(ctx context.Context, a *App, args []string, out io.Writer) error {
	fs := subcommand("list")
	if err := parse(fs, args); err != nil {
		return err
	}
	if fs.NArg() > 1 {
		return usageErrorf("list [prefix]")
	}
	s, err := openStore(ctx, a.cfg.Store)
	if err != nil {
		return err
	}
	defer s.Close()

	infos, err := s.List(ctx, fs.Arg(0))
	if err != nil {
		return err
	}
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "KEY\tSIZE\tTYPE\tUPDATED")
	for _, info := range infos {
		updated := "-"
		if !info.UpdatedAt.IsZero() {
			updated = humanize.Time(info.UpdatedAt)
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", info.Key, humanize.Bytes(uint64(info.Size)), info.ContentType, updated)
	}
	return tw.Flush()
}

// ---------------------------------------------------------------------------
// mesh
// ---------------------------------------------------------------------------

func cmdMesh(ctx context.Context, a *App, args []string, out io.Writer) error {
	fs := subcommand("mesh")
	dst := fs.String("o", "-", "output `file` (- for stdout)")
	if err := parse(fs, args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return usageErrorf("mesh [-o out.json] <scene.lisp>")
	}
	src, err := os.ReadFile(fs.Arg(0))
	if err != nil {
		return err
	}
	result := a.Evaluate(string(src))
	if err := writeJSON(*dst, out, result); err != nil {
		return err
	}
	if n := len(result.Errors); n > 0 {
		return fmt.Errorf("%s: %d errors", fs.Arg(0), n)
	}
	return nil
}

// writeJSON encodes v to path, or to out when path is "-".
func writeJSON(path string, out io.Writer, v any) (err error) {
	w := out
	if path != "-" {
		f, err := os.Create(path)
		if err != nil {
			return err
		}
		defer func() {
			if cerr := f.Close(); err == nil {
				err = cerr
			}
		}()
		w = f
	}
	return json.NewEncoder(w).Encode(v)
}
