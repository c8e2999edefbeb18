// Package store persists encoded payloads under string keys. Backends live in
// subpackages (sqlstore, s3store, httpstore); Memory is kept here for tests
// and single-process use.
package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Driver identifies a store backend.
type Driver string

const (
	DriverMemory   Driver = "memory"
	DriverSQLite   Driver = "sqlite"
	DriverPostgres Driver = "postgres"
	DriverS3       Driver = "s3"
	DriverHTTP     Driver = "http"
)

// MaxKeyLen bounds key length for every backend.
const MaxKeyLen = 512

var (
	// ErrNotFound is returned by Get and Delete for missing keys.
	ErrNotFound = errors.New("store: key not found")
	// ErrInvalidKey is returned for keys no backend can hold.
	ErrInvalidKey = errors.New("store: invalid key")
)

// Info describes a stored payload.
type Info struct {
	Key         string    `json:"key"`
	Size        int64     `json:"size"`
	ContentType string    `json:"contentType,omitempty"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// Store is a flat key/value store for payload bytes. Put replaces any
// existing value under the key.
type Store interface {
	Put(ctx context.Context, key string, data []byte, contentType string) (Info, error)
	Get(ctx context.Context, key string) ([]byte, Info, error)
	Delete(ctx context.Context, key string) error
	// List returns entries whose key starts with prefix, sorted by key.
	List(ctx context.Context, prefix string) ([]Info, error)
	Driver() Driver
	Close() error
}

// ValidateKey rejects keys that would not survive every backend: empty,
// absolute, containing a ".." segment or control characters, or too long.
func ValidateKey(key string) error {
	switch {
	case key == "":
		return fmt.Errorf("%w: empty", ErrInvalidKey)
	case len(key) > MaxKeyLen:
		return fmt.Errorf("%w: longer than %d bytes", ErrInvalidKey, MaxKeyLen)
	case strings.HasPrefix(key, "/"):
		return fmt.Errorf("%w: %q is absolute", ErrInvalidKey, key)
	}
	for _, seg := range strings.Split(key, "/") {
		if seg == ".." || seg == "" {
			return fmt.Errorf("%w: %q has an empty or parent segment", ErrInvalidKey, key)
		}
	}
	for _, r := range key {
		if r < 0x20 || r == 0x7f {
			return fmt.Errorf("%w: %q contains control characters", ErrInvalidKey, key)
		}
	}
	return nil
}
