// Package storetest checks that a store.Store implementation behaves like
// the in-memory reference.
package storetest

import (
	"context"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/chazu/instancegraph/pkg/store"
)

// Run exercises s, which must start empty.
func Run(t *testing.T, s store.Store) {
	t.Helper()
	ctx := context.Background()

	t.Run("put and get", func(t *testing.T) {
		info, err := s.Put(ctx, "chairs/a", []byte(`{"v":1}`), "application/json")
		if err != nil {
			t.Fatal(err)
		}
		if info.Key != "chairs/a" || info.Size != 7 {
			t.Errorf("Put info = %+v", info)
		}
		data, got, err := s.Get(ctx, "chairs/a")
		if err != nil {
			t.Fatal(err)
		}
		if string(data) != `{"v":1}` {
			t.Errorf("Get = %q", data)
		}
		if got.ContentType != "application/json" || got.Size != 7 {
			t.Errorf("Get info = %+v", got)
		}
	})

	t.Run("put replaces", func(t *testing.T) {
		if _, err := s.Put(ctx, "chairs/a", []byte("second"), "application/msgpack"); err != nil {
			t.Fatal(err)
		}
		data, info, err := s.Get(ctx, "chairs/a")
		if err != nil {
			t.Fatal(err)
		}
		if string(data) != "second" || info.ContentType != "application/msgpack" {
			t.Errorf("after replace: %q %+v", data, info)
		}
	})

	t.Run("list by prefix", func(t *testing.T) {
		for _, k := range []string{"chairs/b", "tables/a", "chairs_x"} {
			if _, err := s.Put(ctx, k, []byte(k), ""); err != nil {
				t.Fatal(err)
			}
		}
		infos, err := s.List(ctx, "chairs/")
		if err != nil {
			t.Fatal(err)
		}
		var keys []string
		for _, i := range infos {
			keys = append(keys, i.Key)
		}
		if diff := cmp.Diff([]string{"chairs/a", "chairs/b"}, keys); diff != "" {
			t.Errorf("List mismatch (-want +got):\n%s", diff)
		}
		all, err := s.List(ctx, "")
		if err != nil {
			t.Fatal(err)
		}
		if len(all) != 4 {
			t.Errorf("List(\"\") returned %d entries, want 4", len(all))
		}
	})

	t.Run("delete", func(t *testing.T) {
		if err := s.Delete(ctx, "tables/a"); err != nil {
			t.Fatal(err)
		}
		if _, _, err := s.Get(ctx, "tables/a"); !errors.Is(err, store.ErrNotFound) {
			t.Errorf("Get after delete err = %v, want ErrNotFound", err)
		}
		if err := s.Delete(ctx, "tables/a"); !errors.Is(err, store.ErrNotFound) {
			t.Errorf("second Delete err = %v, want ErrNotFound", err)
		}
	})

	t.Run("missing key", func(t *testing.T) {
		if _, _, err := s.Get(ctx, "nope"); !errors.Is(err, store.ErrNotFound) {
			t.Errorf("err = %v, want ErrNotFound", err)
		}
	})

	t.Run("invalid key", func(t *testing.T) {
		for _, k := range []string{"", "/abs", "a/../b", "a//b"} {
			if _, err := s.Put(ctx, k, nil, ""); !errors.Is(err, store.ErrInvalidKey) {
				t.Errorf("Put(%q) err = %v, want ErrInvalidKey", k, err)
			}
		}
	})

	t.Run("binary data", func(t *testing.T) {
		blob := []byte{0x00, 0xff, 0x81, '\r', '\n', 0x00}
		if _, err := s.Put(ctx, "bin", blob, "application/msgpack"); err != nil {
			t.Fatal(err)
		}
		data, _, err := s.Get(ctx, "bin")
		if err != nil {
			t.Fatal(err)
		}
		if diff := cmp.Diff(blob, data); diff != "" {
			t.Errorf("binary mismatch (-want +got):\n%s", diff)
		}
	})
}
