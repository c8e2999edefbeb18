package bake

import (
	"fmt"
	"strings"

	"github.com/chazu/instancegraph/pkg/host"
)

// illegal lists characters hosts reject in definition names.
const illegal = `<>/\":;?*|,=` + "`"

// DefinitionName composes the host name of a baked definition:
// "<name>-(<application id>)" followed by RootSuffix(baseName).
func DefinitionName(name, applicationID, baseName string) string {
	return Sanitize(fmt.Sprintf("%s-(%s", name, applicationID)) + RootSuffix(baseName)
}

// RootSuffix is the tail every definition baked under baseName ends with.
// It carries the sanitized base name, so roots like "team/dining" match the
// names actually created.
func RootSuffix(baseName string) string {
	return Sanitize(")-" + baseName)
}

// BakedUnder reports whether name was composed by DefinitionName for
// baseName. A root that merely starts with baseName does not match.
func BakedUnder(name, baseName string) bool {
	return strings.HasSuffix(name, RootSuffix(baseName))
}

// Sanitize replaces host-illegal and control characters with '_'.
func Sanitize(s string) string {
	return strings.Map(func(r rune) rune {
		if r < 0x20 || r == 0x7f || strings.ContainsRune(illegal, r) {
			return '_'
		}
		return r
	}, s)
}

// MapDecorator serves overrides from injected maps keyed by application id.
// The zero value has no overrides.
type MapDecorator struct {
	Colors    map[string]host.Color
	Materials map[string]string
}

// ColorOverride returns the colour injected for applicationID, if any.
func (m MapDecorator) ColorOverride(applicationID string) (host.Color, bool) {
	c, ok := m.Colors[applicationID]
	return c, ok
}

// MaterialOverride returns the material injected for applicationID, if any.
func (m MapDecorator) MaterialOverride(applicationID string) (string, bool) {
	mat, ok := m.Materials[applicationID]
	return mat, ok
}
