package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/chazu/instancegraph/pkg/host"
)

// overrides decorates received instances from a YAML file keyed by
// application id:
//
//	colors:
//	  <application id>: "#RRGGBB"
//	materials:
//	  <application id>: walnut
type overrides struct {
	Colors    map[string]string `yaml:"colors"`
	Materials map[string]string `yaml:"materials"`

	colors map[string]host.Color
}

var _ host.Decorator = (*overrides)(nil)

func loadOverrides(path string) (*overrides, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return parseOverrides(data)
}

func parseOverrides(data []byte) (*overrides, error) {
	ov := &overrides{}
	if err := yaml.Unmarshal(data, ov); err != nil {
		return nil, fmt.Errorf("overrides: %w", err)
	}
	ov.colors = make(map[string]host.Color, len(ov.Colors))
	for id, s := range ov.Colors {
		c, err := parseHexColor(s)
		if err != nil {
			return nil, fmt.Errorf("overrides: colors.%s: %w", id, err)
		}
		ov.colors[id] = c
	}
	return ov, nil
}

func (o *overrides) ColorOverride(applicationID string) (host.Color, bool) {
	c, ok := o.colors[applicationID]
	return c, ok
}

func (o *overrides) MaterialOverride(applicationID string) (string, bool) {
	m, ok := o.Materials[applicationID]
	return m, ok && m != ""
}

// parseHexColor reads "#RRGGBB" or "#RRGGBBAA". Alpha defaults to opaque.
func parseHexColor(s string) (host.Color, error) {
	h := strings.TrimPrefix(s, "#")
	if len(h) != 6 && len(h) != 8 {
		return host.Color{}, fmt.Errorf("bad colour %q", s)
	}
	if len(h) == 6 {
		h += "FF"
	}
	v, err := strconv.ParseUint(h, 16, 32)
	if err != nil {
		return host.Color{}, fmt.Errorf("bad colour %q", s)
	}
	return host.Color{R: uint8(v >> 24), G: uint8(v >> 16), B: uint8(v >> 8), A: uint8(v)}, nil
}
