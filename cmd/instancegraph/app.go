package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/chazu/instancegraph/internal/ctxlog"
	"github.com/chazu/instancegraph/pkg/config"
	"github.com/chazu/instancegraph/pkg/engine"
	"github.com/chazu/instancegraph/pkg/host"
	"github.com/chazu/instancegraph/pkg/kernel"
	"github.com/chazu/instancegraph/pkg/kernel/manifold"
	"github.com/chazu/instancegraph/pkg/kernel/sdfx"
	"github.com/chazu/instancegraph/pkg/scene"
	"github.com/chazu/instancegraph/pkg/tessellate"
)

// colorPalette is a default palette used to assign distinct colors to parts
// that carry no colour of their own.
var colorPalette = []string{
	"#4A90D9", "#E67E22", "#2ECC71", "#9B59B6",
	"#E74C3C", "#1ABC9C", "#F39C12", "#3498DB",
}

// App holds what every subcommand shares: the configuration, the script
// engine and the geometry kernel.
type App struct {
	cfg    *config.Config
	engine *engine.Engine
	kernel kernel.Kernel
	logger *slog.Logger
}

// MeshData is the JSON mesh format written by the mesh and receive commands.
type MeshData struct {
	Vertices []float32 `json:"vertices"`
	Normals  []float32 `json:"normals"`
	Indices  []uint32  `json:"indices"`
	PartName string    `json:"partName"`
	Path     []string  `json:"path,omitempty"`
	Color    string    `json:"color"`
}

// EvalErrorData is a JSON-serializable eval error.
type EvalErrorData struct {
	Line    int    `json:"line"`
	Col     int    `json:"col"`
	Message string `json:"message"`
}

// EvalResult is the full result of evaluating a scene script.
type EvalResult struct {
	Meshes   []MeshData      `json:"meshes"`
	Errors   []EvalErrorData `json:"errors"`
	Warnings []EvalErrorData `json:"warnings"`
}

// NewApp creates an App from cfg. A nil cfg means config.Default().
func NewApp(cfg *config.Config, logger *slog.Logger) (*App, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	if logger == nil {
		logger = ctxlog.Discard()
	}
	k, err := newKernel(cfg.Convert)
	if err != nil {
		return nil, err
	}
	return &App{
		cfg: cfg,
		engine: engine.NewEngine(
			engine.WithTimeout(cfg.EvalTimeout),
			engine.WithSceneOptions(scene.WithUnits(cfg.TargetUnits)),
		),
		kernel: k,
		logger: logger,
	}, nil
}

func newKernel(cfg config.ConvertConfig) (kernel.Kernel, error) {
	switch cfg.Kernel {
	case config.KernelManifold:
		return manifold.New(manifold.WithSegments(cfg.Segments))
	case config.KernelSdfx, "":
		return sdfx.New(sdfx.WithMeshCells(cfg.MeshCells)), nil
	default:
		return nil, fmt.Errorf("unknown kernel %q", cfg.Kernel)
	}
}

func (a *App) context(ctx context.Context) context.Context {
	return ctxlog.WithLogger(ctx, a.logger)
}

// Evaluate takes scene source and returns mesh data and errors.
func (a *App) Evaluate(source string) EvalResult {
	result := EvalResult{
		Meshes:   []MeshData{},
		Errors:   []EvalErrorData{},
		Warnings: []EvalErrorData{},
	}

	doc, evalErrs, err := a.engine.Evaluate(source)
	if err != nil {
		a.logger.Error("evaluate failed", "error", err)
		result.Errors = append(result.Errors, EvalErrorData{Message: err.Error()})
		return result
	}
	if len(evalErrs) > 0 {
		for _, e := range evalErrs {
			result.Errors = append(result.Errors, EvalErrorData{Line: e.Line, Col: e.Col, Message: e.Message})
		}
		return result
	}

	for _, issue := range scene.Validate(doc) {
		e := EvalErrorData{Message: issue.Error()}
		if issue.Severity == scene.SeverityError {
			result.Errors = append(result.Errors, e)
		} else {
			result.Warnings = append(result.Warnings, e)
		}
	}
	if len(result.Errors) > 0 {
		return result
	}

	meshes, err := a.meshes(a.context(context.Background()), doc)
	if err != nil {
		a.logger.Error("tessellate failed", "error", err)
		result.Errors = append(result.Errors, EvalErrorData{Message: "tessellation failed: " + err.Error()})
		return result
	}
	result.Meshes = meshes
	return result
}

// meshes tessellates every visible primitive of doc in world space.
func (a *App) meshes(ctx context.Context, doc *scene.Document) ([]MeshData, error) {
	parts, err := tessellate.Parts(ctx, doc, a.kernel, tessellate.WithMeshes())
	if err != nil {
		return nil, err
	}
	out := make([]MeshData, 0, len(parts))
	for i, p := range parts {
		color := colorPalette[i%len(colorPalette)]
		if n := doc.Get(p.ID); n != nil && n.Attrs.Color != nil {
			color = hexColor(*n.Attrs.Color)
		}
		out = append(out, MeshData{
			Vertices: p.Mesh.Vertices,
			Normals:  p.Mesh.Normals,
			Indices:  p.Mesh.Indices,
			PartName: p.Name,
			Path:     p.Path,
			Color:    color,
		})
	}
	return out, nil
}

func hexColor(c host.Color) string {
	return fmt.Sprintf("#%02X%02X%02X", c.R, c.G, c.B)
}

// LoadScene evaluates the script at path into a document. Script errors
// are joined into one error.
func (a *App) LoadScene(path string) (*scene.Document, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	doc, evalErrs, err := a.engine.Evaluate(string(src))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	if len(evalErrs) > 0 {
		errs := make([]error, len(evalErrs))
		for i, e := range evalErrs {
			errs[i] = e
		}
		return nil, fmt.Errorf("%s: %w", path, errors.Join(errs...))
	}
	if issues := scene.Validate(doc); scene.HasErrors(issues) {
		errs := make([]error, 0, len(issues))
		for _, issue := range issues {
			errs = append(errs, issue)
		}
		return nil, fmt.Errorf("%s: %w", path, errors.Join(errs...))
	}
	return doc, nil
}
