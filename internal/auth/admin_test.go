package auth

import (
	"errors"
	"testing"
	"time"
)

func newGate(t *testing.T) *AdminGate {
	t.Helper()
	g, err := NewAdminGate("adminpass", "secret", time.Hour)
	if err != nil {
		t.Fatalf("NewAdminGate failed: %v", err)
	}
	return g
}

func TestAdminGate_Login(t *testing.T) {
	g := newGate(t)

	tests := []struct {
		passphrase string
		wantErr    error
	}{
		{"adminpass", nil},
		{"AdminPass", ErrInvalidPassphrase},
		{"adminpass ", ErrInvalidPassphrase},
		{"", ErrInvalidPassphrase},
	}

	for _, tt := range tests {
		t.Run(tt.passphrase, func(t *testing.T) {
			token, err := g.Login(tt.passphrase)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("Expected %v, got %v", tt.wantErr, err)
			}
			if tt.wantErr == nil && token == "" {
				t.Error("Expected a token")
			}
		})
	}
}

func TestAdminGate_Verify(t *testing.T) {
	g := newGate(t)
	token, _ := g.Login("adminpass")

	if err := g.Verify(token); err != nil {
		t.Errorf("Expected issued token to verify, got %v", err)
	}
	if err := g.Verify("garbage"); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("Expected ErrInvalidToken, got %v", err)
	}

	other, _ := NewAdminGate("adminpass", "different-secret", time.Hour)
	if err := other.Verify(token); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("Expected token signed with another key to fail, got %v", err)
	}
}

func TestAdminGate_TokenExpires(t *testing.T) {
	g := newGate(t)
	issued := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	g.now = func() time.Time { return issued }
	token, _ := g.Login("adminpass")

	g.now = func() time.Time { return issued.Add(2 * time.Hour) }
	if err := g.Verify(token); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("Expected expired token to fail, got %v", err)
	}
}
