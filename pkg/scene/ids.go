package scene

import (
	"fmt"
	"sync/atomic"

	"github.com/google/uuid"
)

// IDGenerator returns a fresh object id on every call.
type IDGenerator func() string

// UUIDv7 generates time-ordered UUIDs, the default.
func UUIDv7() IDGenerator {
	return func() string {
		return uuid.Must(uuid.NewV7()).String()
	}
}

// Sequential generates prefix-1, prefix-2, ... . Deterministic ids make
// tests and golden files stable.
func Sequential(prefix string) IDGenerator {
	var n atomic.Uint64
	return func() string {
		return fmt.Sprintf("%s-%d", prefix, n.Add(1))
	}
}
