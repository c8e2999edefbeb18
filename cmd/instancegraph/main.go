// Command instancegraph flattens block/instance graphs of scene scripts into
// portable payloads and rebuilds them in other documents.
//
//	instancegraph [-config file.yaml] <command> [flags] [args]
//
// Commands:
//
//	send     evaluate a scene script and store its top-level objects
//	receive  rebuild a stored payload, optionally onto an existing scene
//	purge    remove received definitions matching a prefix from a scene
//	inspect  describe one stored payload
//	list     list stored payloads
//	mesh     tessellate a scene script to JSON meshes
//	serve    expose the configured store over HTTP
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sort"
	"syscall"

	"github.com/chazu/instancegraph/internal/ctxlog"
	"github.com/chazu/instancegraph/pkg/config"
)

type command struct {
	summary string
	run     func(ctx context.Context, a *App, args []string, out io.Writer) error
}

var commands = map[string]command{
	"send":    {"evaluate a scene script and store its top-level objects", cmdSend},
	"receive": {"rebuild a stored payload, optionally onto an existing scene", cmdReceive},
	"purge":   {"remove received definitions matching a prefix from a scene", cmdPurge},
	"inspect": {"describe one stored payload", cmdInspect},
	"list":    {"list stored payloads", cmdList},
	"mesh":    {"tessellate a scene script to JSON meshes", cmdMesh},
	"serve":   {"expose the configured store over HTTP", cmdServe},
}

// errUsage marks bad command-line input; run exits with status 2.
var errUsage = errors.New("usage")

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()
	os.Exit(run(ctx, os.Args[1:], os.Stdout, os.Stderr))
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("instancegraph", flag.ContinueOnError)
	fs.SetOutput(stderr)
	configPath := fs.String("config", os.Getenv(config.EnvPrefix+"CONFIG"), "YAML configuration `file`")
	fs.Usage = func() { usage(fs, stderr) }
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if fs.NArg() == 0 {
		fs.Usage()
		return 2
	}
	name := fs.Arg(0)
	cmd, ok := commands[name]
	if !ok {
		fmt.Fprintf(stderr, "instancegraph: unknown command %q\n", name)
		fs.Usage()
		return 2
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintln(stderr, err)
		return 1
	}
	logger := ctxlog.New(cfg.Log.Level, cfg.Log.Format, stderr)
	ctx = ctxlog.WithLogger(ctx, logger)

	app, err := NewApp(cfg, logger)
	if err != nil {
		fmt.Fprintf(stderr, "instancegraph: %v\n", err)
		return 1
	}
	if err := cmd.run(ctx, app, fs.Args()[1:], stdout); err != nil {
		fmt.Fprintf(stderr, "instancegraph %s: %v\n", name, err)
		if errors.Is(err, errUsage) {
			return 2
		}
		return 1
	}
	return 0
}

func usage(fs *flag.FlagSet, w io.Writer) {
	fmt.Fprintln(w, "usage: instancegraph [-config file.yaml] <command> [flags] [args]")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "commands:")
	names := make([]string, 0, len(commands))
	for n := range commands {
		names = append(names, n)
	}
	sort.Strings(names)
	for _, n := range names {
		fmt.Fprintf(w, "  %-8s %s\n", n, commands[n].summary)
	}
	fmt.Fprintln(w)
	fs.PrintDefaults()
}

// subcommand returns a flag set that returns parse errors instead of
// printing them and exiting.
func subcommand(name string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	return fs
}

func usageErrorf(format string, args ...any) error {
	return fmt.Errorf("%w: "+format, append([]any{errUsage}, args...)...)
}
