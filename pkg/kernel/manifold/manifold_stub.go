//go:build !manifold

// Package manifold binds the Manifold geometry library. Without the
// "manifold" build tag only this stub is compiled and New fails.
//
// Build with: go build -tags=manifold
package manifold

import (
	"errors"

	"github.com/chazu/instancegraph/pkg/kernel"
)

// ErrUnavailable is returned by New in builds without the manifold tag.
var ErrUnavailable = errors.New("manifold kernel not available: build with -tags=manifold")

// Kernel is never constructed in builds without the manifold tag.
type Kernel struct {
	segments int
}

// New returns ErrUnavailable.
func New(opts ...Option) (kernel.Kernel, error) {
	return nil, ErrUnavailable
}
