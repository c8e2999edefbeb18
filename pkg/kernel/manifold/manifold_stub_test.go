//go:build !manifold

package manifold

import (
	"errors"
	"testing"
)

func TestNewReturnsError(t *testing.T) {
	k, err := New(WithSegments(16))
	if !errors.Is(err, ErrUnavailable) {
		t.Fatalf("New() error = %v, want ErrUnavailable", err)
	}
	if k != nil {
		t.Fatal("New() returned a kernel without the manifold tag")
	}
}

func TestWithSegmentsFloor(t *testing.T) {
	k := &Kernel{}
	WithSegments(3)(k)
	if k.segments != 8 {
		t.Errorf("segments = %d, want 8", k.segments)
	}
}
