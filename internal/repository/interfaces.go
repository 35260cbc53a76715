package repository

import (
	"context"
	"errors"
)

var (
	ErrCorruptRecord = errors.New("stored record is not valid JSON")
	ErrNotFound      = errors.New("record not found")
)

// Store is durable key-value storage holding structured text. It plays the
// role browser local storage played for the first version of the desk: a
// handful of keys, each holding one JSON document.
//
// Implementations live in repository/memory, repository/redis and
// repository/postgres.
type Store interface {
	// Get returns the value and true, or "" and false when key is absent.
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
	// Delete removes key; deleting an absent key is not an error.
	Delete(ctx context.Context, key string) error
	// Update replaces the value at key with what fn returns, with no other
	// write to key landing in between. fn may be called more than once and
	// must not touch the store itself. Returning current unchanged writes
	// nothing; an error from fn aborts and is returned as is.
	Update(ctx context.Context, key string, fn UpdateFunc) error
}

// UpdateFunc computes a new value from the current one. ok is false when the
// key is absent, in which case current is "".
type UpdateFunc func(current string, ok bool) (string, error)
