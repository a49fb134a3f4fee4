// Package storagetest holds a behavioural test suite shared by every
// [storage.Store] backend.
package storagetest

import (
	"bytes"
	"context"
	"errors"
	"slices"
	"testing"

	"github.com/MrWong99/lectern/pkg/storage"
)

// Run exercises the [storage.Store] contract against stores built by newStore.
// Each subtest receives a fresh, empty store.
func Run(t *testing.T, newStore func(t *testing.T) storage.Store) {
	t.Helper()
	ctx := context.Background()

	t.Run("GetMissing", func(t *testing.T) {
		s := newStore(t)
		if _, err := s.Get(ctx, "absent"); !errors.Is(err, storage.ErrNotFound) {
			t.Errorf("Get(absent) err = %v, want ErrNotFound", err)
		}
	})

	t.Run("SetGetOverwrite", func(t *testing.T) {
		s := newStore(t)
		if err := s.Set(ctx, "k", []byte("one")); err != nil {
			t.Fatalf("Set: %v", err)
		}
		if err := s.Set(ctx, "k", []byte("two")); err != nil {
			t.Fatalf("Set overwrite: %v", err)
		}
		got, err := s.Get(ctx, "k")
		if err != nil {
			t.Fatalf("Get: %v", err)
		}
		if !bytes.Equal(got, []byte("two")) {
			t.Errorf("Get = %q, want %q", got, "two")
		}
	})

	t.Run("Delete", func(t *testing.T) {
		s := newStore(t)
		if err := s.Set(ctx, "k", []byte("v")); err != nil {
			t.Fatalf("Set: %v", err)
		}
		if err := s.Delete(ctx, "k"); err != nil {
			t.Fatalf("Delete: %v", err)
		}
		if _, err := s.Get(ctx, "k"); !errors.Is(err, storage.ErrNotFound) {
			t.Errorf("Get after Delete err = %v, want ErrNotFound", err)
		}
		if err := s.Delete(ctx, "never-set"); err != nil {
			t.Errorf("Delete(missing) = %v, want nil", err)
		}
	})

	t.Run("KeysByPrefix", func(t *testing.T) {
		s := newStore(t)
		for _, k := range []string{"interview_v1_en_b", "interview_v1_en_a", "linux_v1_en_a", "img_interview_v1_x/y"} {
			if err := s.Set(ctx, k, []byte("v")); err != nil {
				t.Fatalf("Set(%q): %v", k, err)
			}
		}
		got, err := s.Keys(ctx, "interview_")
		if err != nil {
			t.Fatalf("Keys: %v", err)
		}
		want := []string{"interview_v1_en_a", "interview_v1_en_b"}
		if !slices.Equal(got, want) {
			t.Errorf("Keys = %v, want %v", got, want)
		}

		all, err := s.Keys(ctx, "")
		if err != nil {
			t.Fatalf("Keys(all): %v", err)
		}
		if len(all) != 4 {
			t.Errorf("Keys(all) = %v, want 4 keys", all)
		}
	})

	t.Run("Ping", func(t *testing.T) {
		s := newStore(t)
		if err := s.Ping(ctx); err != nil {
			t.Errorf("Ping: %v", err)
		}
	})
}

// RunQuota checks that a store built with a small byte quota rejects
// oversize writes and keeps the previous value. newStore must return a store
// whose quota is maxBytes.
func RunQuota(t *testing.T, maxBytes int, newStore func(t *testing.T) storage.Store) {
	t.Helper()
	ctx := context.Background()
	s := newStore(t)

	small := bytes.Repeat([]byte("a"), maxBytes/2)
	if err := s.Set(ctx, "k", small); err != nil {
		t.Fatalf("Set within quota: %v", err)
	}

	big := bytes.Repeat([]byte("b"), maxBytes+1)
	if err := s.Set(ctx, "k", big); !errors.Is(err, storage.ErrQuotaExceeded) {
		t.Fatalf("Set over quota err = %v, want ErrQuotaExceeded", err)
	}
	got, err := s.Get(ctx, "k")
	if err != nil {
		t.Fatalf("Get after rejected Set: %v", err)
	}
	if !bytes.Equal(got, small) {
		t.Error("rejected Set replaced the previous value")
	}

	// Replacing a value counts only the new size.
	if err := s.Set(ctx, "k", bytes.Repeat([]byte("c"), maxBytes)); err != nil {
		t.Errorf("Set replacing at exactly quota: %v", err)
	}
}
