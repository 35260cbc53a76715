// Package auth guards the dispatch desk: one shared passphrase exchanged
// for a short-lived signed token.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
)

const RoleAdmin = "admin"

var (
	ErrInvalidPassphrase = errors.New("invalid access key")
	ErrInvalidToken      = errors.New("invalid token")
)

type AdminClaims struct {
	jwt.RegisteredClaims
	Role string `json:"role"`
}

// AdminGate checks the passphrase and issues and verifies admin tokens.
// Only a bcrypt hash of the passphrase is kept after construction.
type AdminGate struct {
	hash       []byte
	signingKey []byte
	ttl        time.Duration
	now        func() time.Time
}

func NewAdminGate(passphrase, signingKey string, ttl time.Duration) (*AdminGate, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(passphrase), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash admin passphrase: %w", err)
	}
	return &AdminGate{
		hash:       hash,
		signingKey: []byte(signingKey),
		ttl:        ttl,
		now:        time.Now,
	}, nil
}

// Login compares passphrase case-sensitively and returns a signed token.
func (g *AdminGate) Login(passphrase string) (string, error) {
	if bcrypt.CompareHashAndPassword(g.hash, []byte(passphrase)) != nil {
		return "", ErrInvalidPassphrase
	}

	now := g.now()
	claims := AdminClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   RoleAdmin,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(g.ttl)),
		},
		Role: RoleAdmin,
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(g.signingKey)
}

// Verify accepts only unexpired HS256 tokens carrying the admin role.
func (g *AdminGate) Verify(token string) error {
	tok, err := jwt.ParseWithClaims(token, &AdminClaims{}, func(t *jwt.Token) (any, error) {
		if t.Method != jwt.SigningMethodHS256 {
			return nil, fmt.Errorf("unexpected signing method")
		}
		return g.signingKey, nil
	}, jwt.WithTimeFunc(g.now))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	claims, ok := tok.Claims.(*AdminClaims)
	if !ok || !tok.Valid || claims.Role != RoleAdmin {
		return ErrInvalidToken
	}
	return nil
}
