package engine

import (
	"fmt"
	"strings"

	zygo "github.com/glycerine/zygomys/zygo"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/chazu/instancegraph/pkg/host"
	"github.com/chazu/instancegraph/pkg/scene"
	"github.com/chazu/instancegraph/pkg/xform"
)

// ---------------------------------------------------------------------------
// Custom Sexp types for passing Go values through the zygomys environment
// ---------------------------------------------------------------------------

// sexpRef wraps a scene.ID so it can be passed between builtins.
type sexpRef struct {
	id   scene.ID
	name string // human-readable name for error messages
}

func (n *sexpRef) SexpString(ps *zygo.PrintState) string {
	if n.name != "" {
		return fmt.Sprintf("(ref %q)", n.name)
	}
	return fmt.Sprintf("(ref %s)", n.id.Short())
}
func (n *sexpRef) Type() *zygo.RegisteredType { return nil }

type sexpVec3 struct {
	vec r3.Vec
}

func (v *sexpVec3) SexpString(ps *zygo.PrintState) string {
	return fmt.Sprintf("(vec3 %.1f %.1f %.1f)", v.vec.X, v.vec.Y, v.vec.Z)
}
func (v *sexpVec3) Type() *zygo.RegisteredType { return nil }

type sexpColor struct {
	c host.Color
}

func (c *sexpColor) SexpString(ps *zygo.PrintState) string {
	return fmt.Sprintf("(rgb %d %d %d %d)", c.c.R, c.c.G, c.c.B, c.c.A)
}
func (c *sexpColor) Type() *zygo.RegisteredType { return nil }

// ---------------------------------------------------------------------------
// Keyword argument parsing
// ---------------------------------------------------------------------------

// isKW checks if a Sexp is a preprocessed keyword string.
// Returns the keyword name (without prefix) and true if it is.
func isKW(s zygo.Sexp) (string, bool) {
	str, ok := s.(*zygo.SexpStr)
	if !ok {
		return "", false
	}
	if strings.HasPrefix(str.S, kwPrefix) {
		return str.S[len(kwPrefix):], true
	}
	return "", false
}

// kwArgs holds the result of parsing a mixed positional+keyword argument list.
type kwArgs struct {
	kw         map[string]zygo.Sexp
	positional []zygo.Sexp
}

// parseArgs separates args into keyword and positional arguments.
func parseArgs(args []zygo.Sexp) kwArgs {
	result := kwArgs{kw: make(map[string]zygo.Sexp)}
	for i := 0; i < len(args); i++ {
		name, ok := isKW(args[i])
		if !ok {
			result.positional = append(result.positional, args[i])
			continue
		}
		if i+1 < len(args) {
			result.kw[name] = args[i+1]
			i++
		} else {
			result.kw[name] = zygo.SexpNull
		}
	}
	return result
}

// number reads an optional numeric keyword.
func (a kwArgs) number(key string) (float64, bool, error) {
	v, ok := a.kw[key]
	if !ok {
		return 0, false, nil
	}
	f, err := toFloat64(v)
	if err != nil {
		return 0, false, fmt.Errorf("%s: %w", key, err)
	}
	return f, true, nil
}

// attrs reads the display keywords every object builtin accepts:
// :layer "a/b", :color (rgb ...) and :material "name".
func (a kwArgs) attrs() (scene.Attrs, error) {
	var out scene.Attrs
	if v, ok := a.kw["layer"]; ok {
		s, err := toString(v)
		if err != nil {
			return out, fmt.Errorf("layer: %w", err)
		}
		out.Layer = splitLayer(s)
	}
	if v, ok := a.kw["color"]; ok {
		c, err := toColor(v)
		if err != nil {
			return out, fmt.Errorf("color: %w", err)
		}
		out.Color = &c
	}
	if v, ok := a.kw["material"]; ok {
		s, err := toString(v)
		if err != nil {
			return out, fmt.Errorf("material: %w", err)
		}
		out.Material = s
	}
	return out, nil
}

func splitLayer(s string) []string {
	var path []string
	for _, p := range strings.Split(s, "/") {
		if p = strings.TrimSpace(p); p != "" {
			path = append(path, p)
		}
	}
	return path
}

// ---------------------------------------------------------------------------
// Value extraction helpers
// ---------------------------------------------------------------------------

// toFloat64 extracts a float64 from a Sexp (SexpInt or SexpFloat).
func toFloat64(s zygo.Sexp) (float64, error) {
	switch v := s.(type) {
	case *zygo.SexpInt:
		return float64(v.Val), nil
	case *zygo.SexpFloat:
		return v.Val, nil
	}
	return 0, fmt.Errorf("expected number, got %T (%s)", s, s.SexpString(nil))
}

// toString extracts a string from a Sexp.
func toString(s zygo.Sexp) (string, error) {
	if str, ok := s.(*zygo.SexpStr); ok {
		return str.S, nil
	}
	return "", fmt.Errorf("expected string, got %T (%s)", s, s.SexpString(nil))
}

// toKeywordString extracts a keyword name or plain string from a Sexp.
// Handles both preprocessed keywords (__kw_mm) and plain strings ("mm").
func toKeywordString(s zygo.Sexp) (string, error) {
	str, ok := s.(*zygo.SexpStr)
	if !ok {
		return "", fmt.Errorf("expected keyword or string, got %T (%s)", s, s.SexpString(nil))
	}
	return strings.TrimPrefix(str.S, kwPrefix), nil
}

func toVec3(s zygo.Sexp) (r3.Vec, error) {
	if v, ok := s.(*sexpVec3); ok {
		return v.vec, nil
	}
	return r3.Vec{}, fmt.Errorf("expected vec3, got %T (%s)", s, s.SexpString(nil))
}

func toColor(s zygo.Sexp) (host.Color, error) {
	if c, ok := s.(*sexpColor); ok {
		return c.c, nil
	}
	return host.Color{}, fmt.Errorf("expected rgb, got %T (%s)", s, s.SexpString(nil))
}

// toRef extracts a node id from a sexpRef.
func toRef(s zygo.Sexp) (scene.ID, error) {
	if ref, ok := s.(*sexpRef); ok {
		return ref.id, nil
	}
	return "", fmt.Errorf("expected object reference, got %T (%s)", s, s.SexpString(nil))
}

// toDefinition accepts either a reference or a definition name.
func toDefinition(doc *scene.Document, s zygo.Sexp) (scene.ID, error) {
	if str, ok := s.(*zygo.SexpStr); ok {
		n := doc.Lookup(str.S)
		if n == nil {
			return "", fmt.Errorf("no block named %q", str.S)
		}
		return n.ID, nil
	}
	return toRef(s)
}

func toByte(s zygo.Sexp) (uint8, error) {
	f, err := toFloat64(s)
	if err != nil {
		return 0, err
	}
	if f < 0 || f > 255 {
		return 0, fmt.Errorf("channel %v out of range 0-255", f)
	}
	return uint8(f), nil
}

// sexpListToSlice converts a SexpPair (Lisp list) or SexpArray to a Go slice.
func sexpListToSlice(s zygo.Sexp) ([]zygo.Sexp, error) {
	switch v := s.(type) {
	case *zygo.SexpPair:
		return zygo.ListToArray(v)
	case *zygo.SexpArray:
		return v.Val, nil
	case *zygo.SexpSentinel:
		if v == zygo.SexpNull {
			return nil, nil
		}
	}
	return nil, fmt.Errorf("expected list or array, got %T", s)
}

// flattenRefs collects references from args, descending into lists so that
// a block body can be built with (map ...) or a literal array.
func flattenRefs(args []zygo.Sexp) ([]scene.ID, error) {
	var ids []scene.ID
	for i, a := range args {
		if ref, ok := a.(*sexpRef); ok {
			ids = append(ids, ref.id)
			continue
		}
		items, err := sexpListToSlice(a)
		if err != nil {
			return nil, fmt.Errorf("member %d: expected object reference, got %T (%s)", i, a, a.SexpString(nil))
		}
		nested, err := flattenRefs(items)
		if err != nil {
			return nil, err
		}
		ids = append(ids, nested...)
	}
	return ids, nil
}

// ---------------------------------------------------------------------------
// Builtin registration
// ---------------------------------------------------------------------------

// registerBuiltins installs the scene DSL builtins into a zygomys
// environment. The builtins populate doc during evaluation.
//
// Source code must be preprocessed with preprocessSource() before evaluation so
// that :keyword tokens are converted to recognizable string literals.
func registerBuiltins(env *zygo.Zlisp, doc *scene.Document) {

	// -----------------------------------------------------------------------
	// (vec3 1 2 3)
	// -----------------------------------------------------------------------
	env.AddFunction("vec3", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		if len(args) != 3 {
			return zygo.SexpNull, fmt.Errorf("vec3 requires exactly 3 arguments, got %d", len(args))
		}
		var c [3]float64
		for i, a := range args {
			f, err := toFloat64(a)
			if err != nil {
				return zygo.SexpNull, fmt.Errorf("vec3: %c: %w", "xyz"[i], err)
			}
			c[i] = f
		}
		return &sexpVec3{vec: r3.Vec{X: c[0], Y: c[1], Z: c[2]}}, nil
	})

	// -----------------------------------------------------------------------
	// (rgb 200 10 10) or (rgb 200 10 10 128)
	// -----------------------------------------------------------------------
	env.AddFunction("rgb", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		if len(args) != 3 && len(args) != 4 {
			return zygo.SexpNull, fmt.Errorf("rgb requires 3 or 4 arguments, got %d", len(args))
		}
		ch := [4]uint8{3: 255}
		for i, a := range args {
			b, err := toByte(a)
			if err != nil {
				return zygo.SexpNull, fmt.Errorf("rgb: %w", err)
			}
			ch[i] = b
		}
		return &sexpColor{c: host.Color{R: ch[0], G: ch[1], B: ch[2], A: ch[3]}}, nil
	})

	// -----------------------------------------------------------------------
	// (board "seat" :length 400 :width 400 :thickness 20 :material "oak")
	// -----------------------------------------------------------------------
	env.AddFunction("board", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		pa := parseArgs(args)
		label, err := optionalName(pa)
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("board: %w", err)
		}
		var dims r3.Vec
		for key, dst := range map[string]*float64{"length": &dims.X, "width": &dims.Y, "thickness": &dims.Z} {
			f, ok, err := pa.number(key)
			if err != nil {
				return zygo.SexpNull, fmt.Errorf("board: %w", err)
			}
			if !ok {
				return zygo.SexpNull, fmt.Errorf("board: missing :%s", key)
			}
			*dst = f
		}
		attrs, err := pa.attrs()
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("board: %w", err)
		}
		return &sexpRef{id: doc.AddBoard(label, dims, attrs), name: label}, nil
	})

	// -----------------------------------------------------------------------
	// (dowel "peg" :diameter 8 :length 40)
	// -----------------------------------------------------------------------
	env.AddFunction("dowel", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		pa := parseArgs(args)
		label, err := optionalName(pa)
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("dowel: %w", err)
		}
		dia, ok, err := pa.number("diameter")
		if err != nil || !ok {
			return zygo.SexpNull, fmt.Errorf("dowel: diameter required: %v", err)
		}
		length, ok, err := pa.number("length")
		if err != nil || !ok {
			return zygo.SexpNull, fmt.Errorf("dowel: length required: %v", err)
		}
		attrs, err := pa.attrs()
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("dowel: %w", err)
		}
		return &sexpRef{id: doc.AddDowel(label, dia, length, attrs), name: label}, nil
	})

	// -----------------------------------------------------------------------
	// (defblock "chair" (board ...) (insert "leg" ...) ...)
	// -----------------------------------------------------------------------
	env.AddFunction("defblock", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		if len(args) < 1 {
			return zygo.SexpNull, fmt.Errorf("defblock requires a name argument")
		}
		blockName, err := toString(args[0])
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("defblock: name: %w", err)
		}
		members, err := flattenRefs(args[1:])
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("defblock %q: %w", blockName, err)
		}
		id, err := doc.Define(blockName, members...)
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("defblock %q: %w", blockName, err)
		}
		return &sexpRef{id: id, name: blockName}, nil
	})

	// -----------------------------------------------------------------------
	// (block "chair")
	// -----------------------------------------------------------------------
	env.AddFunction("block", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		if len(args) != 1 {
			return zygo.SexpNull, fmt.Errorf("block requires a name argument")
		}
		id, err := toDefinition(doc, args[0])
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("block: %w", err)
		}
		return &sexpRef{id: id, name: doc.Get(id).Name}, nil
	})

	// -----------------------------------------------------------------------
	// (insert "chair" :at (vec3 0 0 0) :rotate (vec3 0 0 90) :scale 1
	//                 :units :m :variant "chair-red" :layer "furniture")
	// -----------------------------------------------------------------------
	env.AddFunction("insert", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		pa := parseArgs(args)
		if len(pa.positional) != 1 {
			return zygo.SexpNull, fmt.Errorf("insert requires a block name or reference")
		}
		def, err := toDefinition(doc, pa.positional[0])
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("insert: %w", err)
		}

		var at, rot r3.Vec
		if v, ok := pa.kw["at"]; ok {
			if at, err = toVec3(v); err != nil {
				return zygo.SexpNull, fmt.Errorf("insert: at: %w", err)
			}
		}
		if v, ok := pa.kw["rotate"]; ok {
			if rot, err = toVec3(v); err != nil {
				return zygo.SexpNull, fmt.Errorf("insert: rotate: %w", err)
			}
		}
		scale, _, err := pa.number("scale")
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("insert: %w", err)
		}
		var units string
		if v, ok := pa.kw["units"]; ok {
			if units, err = toKeywordString(v); err != nil {
				return zygo.SexpNull, fmt.Errorf("insert: units: %w", err)
			}
			if units, err = xform.NormalizeUnits(units); err != nil {
				return zygo.SexpNull, fmt.Errorf("insert: %w", err)
			}
		}
		attrs, err := pa.attrs()
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("insert: %w", err)
		}

		id, err := doc.Place(def, xform.Compose(at, rot, scale), units, attrs)
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("insert: %w", err)
		}
		if v, ok := pa.kw["variant"]; ok {
			variant, err := toDefinition(doc, v)
			if err != nil {
				return zygo.SexpNull, fmt.Errorf("insert: variant: %w", err)
			}
			if err := doc.SetEffective(id, variant); err != nil {
				return zygo.SexpNull, fmt.Errorf("insert: variant: %w", err)
			}
		}
		return &sexpRef{id: id, name: doc.Get(def).Name}, nil
	})

	// -----------------------------------------------------------------------
	// (hide (board ...)) marks an object hidden and returns it.
	// -----------------------------------------------------------------------
	env.AddFunction("hide", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		if len(args) != 1 {
			return zygo.SexpNull, fmt.Errorf("hide requires one object reference")
		}
		id, err := toRef(args[0])
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("hide: %w", err)
		}
		if err := doc.SetHidden(id, true); err != nil {
			return zygo.SexpNull, fmt.Errorf("hide: %w", err)
		}
		return args[0], nil
	})
}

// optionalName returns the leading positional string, if any.
func optionalName(pa kwArgs) (string, error) {
	if len(pa.positional) == 0 {
		return "", nil
	}
	return toString(pa.positional[0])
}
