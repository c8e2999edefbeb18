package xform

import (
	"errors"
	"fmt"
	"strings"
)

// Canonical unit names.
const (
	UnitsNone        = "none"
	UnitsMillimeters = "mm"
	UnitsCentimeters = "cm"
	UnitsMeters      = "m"
	UnitsKilometers  = "km"
	UnitsInches      = "in"
	UnitsFeet        = "ft"
	UnitsYards       = "yd"
	UnitsMiles       = "mi"
)

// ErrUnknownUnits is returned for a unit name that is not recognised.
var ErrUnknownUnits = errors.New("xform: unknown units")

// metersPerUnit maps canonical names to their size in meters.
var metersPerUnit = map[string]float64{
	UnitsMillimeters: 0.001,
	UnitsCentimeters: 0.01,
	UnitsMeters:      1,
	UnitsKilometers:  1000,
	UnitsInches:      0.0254,
	UnitsFeet:        0.3048,
	UnitsYards:       0.9144,
	UnitsMiles:       1609.344,
}

var unitAliases = map[string]string{
	"":            UnitsNone,
	"none":        UnitsNone,
	"unitless":    UnitsNone,
	"mm":          UnitsMillimeters,
	"millimeter":  UnitsMillimeters,
	"millimeters": UnitsMillimeters,
	"millimetre":  UnitsMillimeters,
	"millimetres": UnitsMillimeters,
	"cm":          UnitsCentimeters,
	"centimeter":  UnitsCentimeters,
	"centimeters": UnitsCentimeters,
	"m":           UnitsMeters,
	"meter":       UnitsMeters,
	"meters":      UnitsMeters,
	"metre":       UnitsMeters,
	"metres":      UnitsMeters,
	"km":          UnitsKilometers,
	"kilometer":   UnitsKilometers,
	"kilometers":  UnitsKilometers,
	"in":          UnitsInches,
	"inch":        UnitsInches,
	"inches":      UnitsInches,
	"ft":          UnitsFeet,
	"foot":        UnitsFeet,
	"feet":        UnitsFeet,
	"yd":          UnitsYards,
	"yard":        UnitsYards,
	"yards":       UnitsYards,
	"mi":          UnitsMiles,
	"mile":        UnitsMiles,
	"miles":       UnitsMiles,
}

// NormalizeUnits returns the canonical name for a unit string.
func NormalizeUnits(name string) (string, error) {
	canon, ok := unitAliases[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownUnits, name)
	}
	return canon, nil
}

// UnitScale returns the factor that converts a length in source units into
// target units. Unitless on either side yields 1.
func UnitScale(source, target string) (float64, error) {
	src, err := NormalizeUnits(source)
	if err != nil {
		return 0, err
	}
	dst, err := NormalizeUnits(target)
	if err != nil {
		return 0, err
	}
	if src == UnitsNone || dst == UnitsNone || src == dst {
		return 1, nil
	}
	return metersPerUnit[src] / metersPerUnit[dst], nil
}
