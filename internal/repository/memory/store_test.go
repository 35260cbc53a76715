package memory

import (
	"context"
	"testing"

	"dispatch/internal/repository/storetest"
)

func TestStore_Conformance(t *testing.T) {
	storetest.Run(t, NewStore(), "test")
}

func TestStore_DeleteDropsEntry(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	s.Set(ctx, "a", "1")
	s.Set(ctx, "b", "2")
	s.Delete(ctx, "a")

	if s.size() != 1 {
		t.Errorf("Expected 1 key, got %d", s.size())
	}
}

func TestStore_UpdateOnAbsentKeyCanLeaveItAbsent(t *testing.T) {
	ctx := context.Background()
	s := NewStore()

	s.Update(ctx, "a", func(current string, ok bool) (string, error) {
		return current, nil
	})

	if s.size() != 0 {
		t.Errorf("Expected an unchanged update to create nothing, got %d keys", s.size())
	}
}
