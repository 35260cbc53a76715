package utils

import (
	"strconv"
	"testing"

	"github.com/google/uuid"
)

func TestGenerateID(t *testing.T) {
	a, b := GenerateID(), GenerateID()
	if a == b {
		t.Error("Expected two generated ids to differ")
	}
	if _, err := uuid.Parse(a); err != nil {
		t.Errorf("Expected a valid uuid, got %q: %v", a, err)
	}
}

func TestGenerateShortID_Range(t *testing.T) {
	for i := 0; i < 1000; i++ {
		id := GenerateShortID()
		n, err := strconv.Atoi(id)
		if err != nil || len(id) != 4 || n < 1000 || n > 9999 {
			t.Fatalf("Expected 4-digit code, got %q", id)
		}
	}
}

func TestUniqueShortID_AvoidsTaken(t *testing.T) {
	taken := make(map[string]bool)
	for n := 1000; n <= 9999; n++ {
		taken[strconv.Itoa(n)] = true
	}
	delete(taken, "4242")

	// With a single free code, a large attempt budget should find it.
	got := UniqueShortID(taken, 200000)
	if got != "4242" {
		t.Errorf("Expected the only free code 4242, got %q", got)
	}
}

func TestUniqueShortID_GivesUp(t *testing.T) {
	taken := make(map[string]bool)
	for n := 1000; n <= 9999; n++ {
		taken[strconv.Itoa(n)] = true
	}

	got := UniqueShortID(taken, 3)
	if len(got) != 4 {
		t.Errorf("Expected a 4-digit code even when all are taken, got %q", got)
	}
}
