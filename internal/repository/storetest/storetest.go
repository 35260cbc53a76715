// Package storetest holds the behaviour every repository.Store backend must
// share. Backend tests call Run against a fresh store.
package storetest

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"testing"

	"dispatch/internal/repository"
)

// Run exercises s under keys starting with prefix. The backend should be
// empty under that prefix before the call.
func Run(t *testing.T, s repository.Store, prefix string) {
	t.Helper()
	ctx := context.Background()
	key := prefix + "_conformance"

	t.Run("absent key", func(t *testing.T) {
		value, ok, err := s.Get(ctx, key)
		if err != nil {
			t.Fatalf("Get failed: %v", err)
		}
		if ok || value != "" {
			t.Errorf("Expected absent key, got %q (ok=%v)", value, ok)
		}
	})

	t.Run("set then get", func(t *testing.T) {
		if err := s.Set(ctx, key, `[{"id":"r1"}]`); err != nil {
			t.Fatalf("Set failed: %v", err)
		}
		value, ok, err := s.Get(ctx, key)
		if err != nil || !ok {
			t.Fatalf("Get failed: ok=%v err=%v", ok, err)
		}
		if value != `[{"id":"r1"}]` {
			t.Errorf("Expected stored document back, got %q", value)
		}
	})

	t.Run("overwrite", func(t *testing.T) {
		s.Set(ctx, key, "first")
		s.Set(ctx, key, "second")
		value, _, _ := s.Get(ctx, key)
		if value != "second" {
			t.Errorf("Expected last write to win, got %q", value)
		}
	})

	t.Run("delete", func(t *testing.T) {
		if err := s.Delete(ctx, key); err != nil {
			t.Fatalf("Delete failed: %v", err)
		}
		if _, ok, _ := s.Get(ctx, key); ok {
			t.Error("Expected key to be gone after Delete")
		}
		if err := s.Delete(ctx, key); err != nil {
			t.Errorf("Expected deleting an absent key to succeed, got %v", err)
		}
	})

	t.Run("update creates absent key", func(t *testing.T) {
		err := s.Update(ctx, key, func(current string, ok bool) (string, error) {
			if ok || current != "" {
				t.Errorf("Expected absent key in update, got %q (ok=%v)", current, ok)
			}
			return "created", nil
		})
		if err != nil {
			t.Fatalf("Update failed: %v", err)
		}
		if value, _, _ := s.Get(ctx, key); value != "created" {
			t.Errorf("Expected created, got %q", value)
		}
	})

	t.Run("update error writes nothing", func(t *testing.T) {
		errAbort := errors.New("abort")
		err := s.Update(ctx, key, func(string, bool) (string, error) {
			return "discarded", errAbort
		})
		if !errors.Is(err, errAbort) {
			t.Errorf("Expected fn error back, got %v", err)
		}
		if value, _, _ := s.Get(ctx, key); value != "created" {
			t.Errorf("Expected value untouched, got %q", value)
		}
	})

	t.Run("concurrent updates lose nothing", func(t *testing.T) {
		counter := key + "_counter"
		const n = 10
		var wg sync.WaitGroup
		for i := 0; i < n; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				err := s.Update(ctx, counter, func(current string, ok bool) (string, error) {
					v := 0
					if ok {
						v, _ = strconv.Atoi(current)
					}
					return strconv.Itoa(v + 1), nil
				})
				if err != nil {
					t.Errorf("Update failed: %v", err)
				}
			}()
		}
		wg.Wait()

		if value, _, _ := s.Get(ctx, counter); value != strconv.Itoa(n) {
			t.Errorf("Expected counter %d, got %q", n, value)
		}
		s.Delete(ctx, counter)
		s.Delete(ctx, key)
	})
}
